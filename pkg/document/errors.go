package document

import "errors"

// ErrNotFound is returned by a Store when the requested document id has
// no persisted record.
var ErrNotFound = errors.New("document: not found")
