package ledgerdb

import "errors"

// ErrNotFound indicates the mirror holds no such row.
var ErrNotFound = errors.New("not found in mirror")
