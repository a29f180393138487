// SPDX-License-Identifier: BSD-3-Clause

package persist

import "errors"

// ErrNotFound is returned when a snapshot has no record for the requested key.
var ErrNotFound = errors.New("persist: not found")
