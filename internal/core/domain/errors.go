package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown filter or format type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrUnknownFormat indicates a format string that does not resolve
	// against the format registry.
	ErrUnknownFormat = errors.New("unknown bitstream format")

	// ErrRunInProgress indicates a media filter run is already active.
	ErrRunInProgress = errors.New("media filter run in progress")

	// ErrToolNotFound indicates an external conversion tool is not installed.
	ErrToolNotFound = errors.New("conversion tool not found")

	// ErrSkipRequested signals that a filter declined to process a bitstream.
	// It is not a failure and is never counted as one.
	ErrSkipRequested = errors.New("skip requested")
)
