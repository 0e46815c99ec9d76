package kvstore

import "errors"

// ErrNotFound is returned when a CAS update targets a hash that does
// not exist.
var ErrNotFound = errors.New("kvstore: not found")
