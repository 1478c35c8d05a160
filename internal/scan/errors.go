package scan

import "errors"

// Fatal run errors. A run that returns one of these made no record or marker changes.
var (
	ErrConfiguration     = errors.New("configuration error")
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrSinkUnavailable   = errors.New("sink unavailable")
)

// ErrSinkWrite is a per-message write failure that survived one reopen-and-retry.
var ErrSinkWrite = errors.New("sink write failed")
