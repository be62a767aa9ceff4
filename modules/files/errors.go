package files

import "errors"

// Sentinel errors for blob storage operations.
var (
	// ErrBlobNotFound is returned when the requested blob does not exist.
	ErrBlobNotFound = errors.New("blob not found")

	// ErrInvalidPath is returned when a public path does not name a blob.
	ErrInvalidPath = errors.New("invalid blob path")

	// ErrTooLarge is returned when an upload exceeds the limit of its kind.
	ErrTooLarge = errors.New("file exceeds size limit")

	// ErrUnknownKind is returned for an unsupported upload kind.
	ErrUnknownKind = errors.New("unknown upload kind")
)
