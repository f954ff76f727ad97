package undo

import (
	"errors"
	"fmt"

	"github.com/mesh-intelligence/docgraph/pkg/persistence"
)

// Contract errors. They are raised with panic, wrapped in
// persistence.ErrContractViolation.
var (
	ErrEmptyStack  = errors.New("undo stack is empty")
	ErrNilCommand  = errors.New("nil command")
	ErrCannotMerge = errors.New("commands cannot merge")
)

func violation(err error) error {
	return fmt.Errorf("%w: %w", persistence.ErrContractViolation, err)
}
