package types

import "errors"

// Storage lifecycle errors.
var (
	ErrDetached         = errors.New("storage is detached")
	ErrAlreadyAttached  = errors.New("storage is already attached")
	ErrDocumentNotFound = errors.New("document not found")
	ErrBlobNotFound     = errors.New("external data not found")
)
