package undo

import (
	"fmt"
	"log/slog"

	"github.com/mesh-intelligence/docgraph/internal/metrics"
)

// Stack holds undo and redo history. The last element of each slice is the
// most recent command.
type Stack struct {
	undo []*Command
	redo []*Command

	logger  *slog.Logger
	metrics *metrics.Metrics
}

// StackOption configures a Stack.
type StackOption func(*Stack)

// WithLogger sets the logger for stack activity.
func WithLogger(logger *slog.Logger) StackOption {
	return func(s *Stack) { s.logger = logger }
}

// WithMetrics records stack activity.
func WithMetrics(m *metrics.Metrics) StackOption {
	return func(s *Stack) { s.metrics = m }
}

// NewStack creates an empty stack.
func NewStack(opts ...StackOption) *Stack {
	s := &Stack{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Push commits cmd and records it. A mergeable command is folded into the
// top of the undo stack when possible. Pushing always discards and closes
// the redo history.
func (s *Stack) Push(cmd *Command) {
	if cmd == nil {
		panic(violation(ErrNilCommand))
	}
	cmd.Commit()
	if top := s.LastCommand(); top != nil && top.CanMerge(cmd) {
		top.Merge(cmd)
		cmd.Close()
		s.metrics.UndoOp("merge")
		s.logger.Debug("undo command merged", "title", top.Title(), "id", top.ID())
	} else {
		s.undo = append(s.undo, cmd)
		s.metrics.UndoOp("push")
		s.logger.Debug("undo command pushed", "title", cmd.Title())
	}
	s.clearRedo()
}

// Undo pops the top undo command, undoes it and moves it to the redo stack.
// Check CanUndo first: undoing an empty stack panics. When the command fails
// the target no longer matches any recorded fingerprint, so the whole
// history is discarded and the error returned.
func (s *Stack) Undo() error {
	if len(s.undo) == 0 {
		panic(violation(ErrEmptyStack))
	}
	cmd := s.undo[len(s.undo)-1]
	s.undo = s.undo[:len(s.undo)-1]
	if err := cmd.Undo(); err != nil {
		return s.fail("undo", cmd, err)
	}
	s.redo = append(s.redo, cmd)
	s.metrics.UndoOp("undo")
	s.logger.Debug("undo", "title", cmd.Title())
	return nil
}

// Redo pops the top redo command, redoes it and moves it to the undo stack.
// Check CanRedo first: redoing an empty stack panics. Failure discards the
// history like Undo.
func (s *Stack) Redo() error {
	if len(s.redo) == 0 {
		panic(violation(ErrEmptyStack))
	}
	cmd := s.redo[len(s.redo)-1]
	s.redo = s.redo[:len(s.redo)-1]
	if err := cmd.Redo(); err != nil {
		return s.fail("redo", cmd, err)
	}
	s.undo = append(s.undo, cmd)
	s.metrics.UndoOp("redo")
	s.logger.Debug("redo", "title", cmd.Title())
	return nil
}

func (s *Stack) fail(op string, cmd *Command, err error) error {
	s.logger.Warn(op+" failed", "title", cmd.Title(), "err", err)
	cmd.Close()
	s.metrics.StackInvalidated()
	s.Clear()
	return fmt.Errorf("%s %q: %w", op, cmd.Title(), err)
}

// CanUndo reports whether the top undo command is still valid.
func (s *Stack) CanUndo() bool {
	return len(s.undo) > 0 && s.undo[len(s.undo)-1].IsUndoValid()
}

// CanRedo reports whether the top redo command is still valid.
func (s *Stack) CanRedo() bool {
	return len(s.redo) > 0 && s.redo[len(s.redo)-1].IsRedoValid()
}

// Validate discards the whole history when the top undo command no longer
// matches the target's fingerprint.
func (s *Stack) Validate() {
	if len(s.undo) > 0 && !s.undo[len(s.undo)-1].IsUndoValid() {
		s.logger.Debug("undo history invalidated", "undo", len(s.undo), "redo", len(s.redo))
		s.metrics.StackInvalidated()
		s.Clear()
	}
}

// Clear closes and discards every command, redo history first.
func (s *Stack) Clear() {
	s.clearRedo()
	for len(s.undo) > 0 {
		cmd := s.undo[len(s.undo)-1]
		s.undo = s.undo[:len(s.undo)-1]
		cmd.Close()
	}
	s.metrics.UndoOp("clear")
}

func (s *Stack) clearRedo() {
	for len(s.redo) > 0 {
		cmd := s.redo[len(s.redo)-1]
		s.redo = s.redo[:len(s.redo)-1]
		cmd.Close()
	}
}

// Close releases all history.
func (s *Stack) Close() { s.Clear() }

// UndoTitle returns the menu title for undo.
func (s *Stack) UndoTitle() string {
	if s.CanUndo() {
		return "Undo " + s.undo[len(s.undo)-1].Title()
	}
	return "Undo"
}

// RedoTitle returns the menu title for redo.
func (s *Stack) RedoTitle() string {
	if s.CanRedo() {
		return "Redo " + s.redo[len(s.redo)-1].Title()
	}
	return "Redo"
}

// LastCommand returns the top of the undo stack, or nil.
func (s *Stack) LastCommand() *Command {
	if len(s.undo) == 0 {
		return nil
	}
	return s.undo[len(s.undo)-1]
}

func (s *Stack) UndoCount() int { return len(s.undo) }
func (s *Stack) RedoCount() int { return len(s.redo) }
