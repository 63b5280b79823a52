package assignment

import "errors"

// ErrBatchInProgress is returned when another auto-assign run holds the batch lock.
var ErrBatchInProgress = errors.New("auto-assign already in progress")
