package disc

import "errors"

// Errors returned by the load and create paths. Simulated hardware failures
// never surface here; those reach the controller through its callbacks.
var (
	ErrBadDrive      = errors.New("drive index out of range")
	ErrNoFilename    = errors.New("no image filename supplied")
	ErrNoExtension   = errors.New("image filename has no extension")
	ErrUnknownFormat = errors.New("unrecognised disc image format")
	ErrVariableSize  = errors.New("format has no fixed image size")
	ErrCorruptImage  = errors.New("corrupt disc image")
)
