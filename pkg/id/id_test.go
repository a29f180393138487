// SPDX-License-Identifier: BSD-3-Clause

package id

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIDGeneratesDistinctValues(t *testing.T) {
	assert.NotEqual(t, NewID(), NewID())
}

func TestGetOrCreatePersistentIDCreatesOnFirstCall(t *testing.T) {
	dir := t.TempDir()

	got, err := GetOrCreatePersistentID("instance.uuid", dir)
	require.NoError(t, err)
	assert.NotEmpty(t, got)
}

func TestGetOrCreatePersistentIDReturnsSameValueOnSubsequentCalls(t *testing.T) {
	dir := t.TempDir()

	first, err := GetOrCreatePersistentID("instance.uuid", dir)
	require.NoError(t, err)

	second, err := GetOrCreatePersistentID("instance.uuid", dir)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestGetOrCreatePersistentIDRejectsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "instance.uuid"), []byte("not-a-uuid"), 0o600))

	_, err := GetOrCreatePersistentID("instance.uuid", dir)
	assert.ErrorIs(t, err, ErrInvalidUUID)
}
