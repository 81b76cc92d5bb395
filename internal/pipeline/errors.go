package pipeline

import "errors"

// ErrClosed is returned by Process after Close.
var ErrClosed = errors.New("pipeline closed")
