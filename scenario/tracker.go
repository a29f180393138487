// SPDX-License-Identifier: BSD-3-Clause

package scenario

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-catrate"
)

// cooldownCategory is the sole category key passed to a tracker's rate
// limiter: each Scenario already owns one Limiter, so there is nothing
// further to key on.
const cooldownCategory = "run"

// tracker holds the runtime execution bookkeeping for one loaded Scenario
// (spec.md §4.5 "execution tracking"): in-flight and total counts, the
// cooldown gate, and whether max_executions has been exhausted. One tracker
// is created per Scenario when the engine is built and lives for the
// engine's lifetime; CMD_ACK resets it (spec.md §3.9).
type tracker struct {
	scenario *Scenario

	mu             sync.Mutex
	cooldown       *catrate.Limiter // nil when Scenario.Cooldown == 0
	executionCount int64
	inFlightCount  int32
}

func newTracker(s *Scenario) *tracker {
	t := &tracker{scenario: s}
	if s.Cooldown > 0 {
		t.cooldown = catrate.NewLimiter(map[time.Duration]int{s.Cooldown: 1})
	}
	return t
}

// tryStart attempts to begin one execution, enforcing cooldown,
// max_concurrent_executions, and max_executions (spec.md §3.9 "Blocked"
// reasons). It returns ok=false with no side effect when the scenario
// cannot currently run.
func (t *tracker) tryStart() (ok bool, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.scenario.MaxExecutions > 0 && t.executionCount >= int64(t.scenario.MaxExecutions) {
		return false, "max_executions_reached"
	}
	if int(t.inFlightCount) >= t.scenario.MaxConcurrentExecutions {
		return false, "max_concurrent_executions_reached"
	}
	if t.cooldown != nil {
		if _, allowed := t.cooldown.Allow(cooldownCategory); !allowed {
			return false, "cooldown_active"
		}
	}

	atomic.AddInt32(&t.inFlightCount, 1)
	return true, ""
}

// finish marks one execution complete. Only a run that successfully
// completed increments the total execution count (spec.md §3.9: failed runs
// do not count against max_executions).
func (t *tracker) finish(succeeded bool) {
	atomic.AddInt32(&t.inFlightCount, -1)
	if succeeded {
		t.mu.Lock()
		t.executionCount++
		t.mu.Unlock()
	}
}

// reset clears execution_count and in_flight_count, used by the engine's
// CMD_ACK handling to let previously exhausted scenarios run again.
func (t *tracker) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.executionCount = 0
	atomic.StoreInt32(&t.inFlightCount, 0)
	if t.scenario.Cooldown > 0 {
		t.cooldown = catrate.NewLimiter(map[time.Duration]int{t.scenario.Cooldown: 1})
	}
}

func (t *tracker) snapshot() (executionCount int64, inFlight int32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.executionCount, t.inFlightCount
}
