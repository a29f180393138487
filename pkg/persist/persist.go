package persist

import (
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/avena-robotics/control-core/pkg/fsm"
)

var (
	bucketFSMState         = []byte("fsm_state")
	bucketScenarioCounters = []byte("scenario_counters")
)

// Store is a single bbolt file holding every machine's last-committed FSM
// state and every scenario's execution counters.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if absent) the bbolt file at path and ensures its
// buckets exist.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("persist: opening %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketFSMState, bucketScenarioCounters} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("creating bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveFSMState records machine's most recently committed state. Its
// signature matches fsm.PersistenceCallback so a Store can be wired in
// directly via FSMPersistenceCallback.
func (s *Store) SaveFSMState(machine string, state fsm.State) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFSMState).Put([]byte(machine), []byte(state.String()))
	})
}

// LoadFSMState returns the last state recorded for machine, or ErrNotFound
// if none was ever saved.
func (s *Store) LoadFSMState(machine string) (fsm.State, error) {
	var state fsm.State
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketFSMState).Get([]byte(machine))
		if data == nil {
			return ErrNotFound
		}
		state = fsm.FromString(string(data))
		return nil
	})
	return state, err
}

// FSMPersistenceCallback adapts SaveFSMState to fsm.PersistenceCallback, for
// passing straight into listener.WithPersistence / fsm.WithPersistence.
func (s *Store) FSMPersistenceCallback() fsm.PersistenceCallback {
	return s.SaveFSMState
}

// scenarioCounters is the JSON-encoded record kept per scenario name.
type scenarioCounters struct {
	ExecutionCount int64 `json:"execution_count"`
}

// SaveScenarioCounters snapshots one scenario's cumulative execution count.
func (s *Store) SaveScenarioCounters(name string, executionCount int64) error {
	data, err := json.Marshal(scenarioCounters{ExecutionCount: executionCount})
	if err != nil {
		return fmt.Errorf("persist: marshaling counters for %s: %w", name, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketScenarioCounters).Put([]byte(name), data)
	})
}

// LoadScenarioCounters returns the last snapshotted execution count for
// name, or ErrNotFound if none was ever saved.
func (s *Store) LoadScenarioCounters(name string) (int64, error) {
	var out scenarioCounters
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketScenarioCounters).Get([]byte(name))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &out)
	})
	if err != nil {
		return 0, err
	}
	return out.ExecutionCount, nil
}

// LoadAllScenarioCounters returns every scenario's snapshotted execution
// count, keyed by name.
func (s *Store) LoadAllScenarioCounters() (map[string]int64, error) {
	out := make(map[string]int64)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketScenarioCounters).ForEach(func(k, v []byte) error {
			var c scenarioCounters
			if err := json.Unmarshal(v, &c); err != nil {
				return err
			}
			out[string(k)] = c.ExecutionCount
			return nil
		})
	})
	return out, err
}
