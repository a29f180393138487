// SPDX-License-Identifier: BSD-3-Clause

// Package file provides AtomicCreateFile: write-to-temp-then-rename-no-replace
// file creation, so a reader never observes a partially written file and a
// concurrent creator never clobbers one that already exists. Linux-only
// (uses unix.Renameat2's RENAME_NOREPLACE).
package file
