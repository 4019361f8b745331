package types

import "errors"

// Error taxonomy for the pipeline. Per-file failures are local: the pipeline
// never aborts because one file fails. ErrConfig is the only construction-time
// fatal; ErrCache is best-effort and never surfaced to callers.
var (
	ErrConfig    = errors.New("configuration error")
	ErrIO        = errors.New("io error")
	ErrParse     = errors.New("parse error")
	ErrCache     = errors.New("cache error")
	ErrSink      = errors.New("sink error")
	ErrCancelled = errors.New("cancelled")
)
