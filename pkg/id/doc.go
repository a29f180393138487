// SPDX-License-Identifier: BSD-3-Clause

// Package id generates identifiers: NewID for ephemeral UUIDs (scenario
// execution IDs), GetOrCreatePersistentID for a UUID that survives process
// restarts by reading or atomically creating a file under a given directory.
package id
