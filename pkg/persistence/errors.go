package persistence

import (
	"errors"
	"fmt"
)

// Contract errors. These are raised with panic: they indicate a bug in the
// calling code, not a runtime condition to recover from.
var (
	ErrContractViolation = errors.New("persistence contract violation")
	ErrReadOnlyProperty  = errors.New("property is read-only")
)

// Storage errors returned from external data accessors.
var (
	ErrNoStorage = errors.New("object has no persistent storage")
)

// mustf panics with an ErrContractViolation when cond is false.
func mustf(cond bool, format string, args ...any) {
	if cond {
		return
	}
	panic(fmt.Errorf("%w: %s", ErrContractViolation, fmt.Sprintf(format, args...)))
}
