package catalog

import "errors"

var (
	// ErrInvalidPath is returned for malformed path or filename input.
	ErrInvalidPath = errors.New("invalid path")

	// ErrPathViolation is returned when a resolved path escapes the
	// music root.
	ErrPathViolation = errors.New("path escapes music root")

	// ErrUnknownTrack is returned when a mapping target is not in the
	// catalog after one rescan.
	ErrUnknownTrack = errors.New("unknown track")

	// ErrInvalidTag is returned for malformed tag identifiers.
	ErrInvalidTag = errors.New("invalid tag id")

	// ErrStorage wraps I/O failures reading or writing the database.
	ErrStorage = errors.New("storage error")
)
