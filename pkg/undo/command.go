// Package undo implements command-pattern undo and redo validated by modified
// state fingerprints rather than diffs. A command records the fingerprint of
// its target before and after it runs; undo is only valid while the target
// still carries the after fingerprint, and redo only while it carries the
// before fingerprint.
package undo

import (
	"reflect"
)

// Action is the domain half of a command.
type Action interface {
	// ModifiedState returns the current fingerprint of the target. Any
	// comparable value works, including structs covering several objects.
	ModifiedState() any
	// SetModifiedState restores a fingerprint captured earlier.
	SetModifiedState(state any)
	// Undo reverses the action. On error the target is left as the action
	// found it or partially reverted; the command does not restore its
	// fingerprint.
	Undo() error
}

// Redoer is implemented by actions whose forward path differs from Undo.
// Actions without it are treated as involutions: redo calls Undo again.
type Redoer interface {
	Redo() error
}

// Performer is implemented by actions that apply themselves.
type Performer interface {
	Perform() error
}

// StateComparer overrides fingerprint comparison, typically to compare only
// part of a compound fingerprint.
type StateComparer interface {
	CompareModifiedStates(a, b any) bool
}

// Merger folds a later action of the same kind into this one.
type Merger interface {
	Merge(other Action)
}

// Closer releases resources held by an action.
type Closer interface {
	Close()
}

// CommandOption configures a Command.
type CommandOption func(*Command)

// WithCommandID tags the command so consecutive commands with the same tag
// can merge.
func WithCommandID(id string) CommandOption {
	return func(c *Command) { c.id = id }
}

// Mergeable allows the command to absorb later commands with the same id.
func Mergeable() CommandOption {
	return func(c *Command) { c.mergeable = true }
}

// Command pairs an Action with the fingerprints recorded around it.
type Command struct {
	title     string
	id        string
	mergeable bool
	action    Action

	oldState any
	newState any
	closed   bool
}

// NewCommand wraps action. Call Initialize before changing the target.
func NewCommand(title string, action Action, opts ...CommandOption) *Command {
	c := &Command{title: title, action: action}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Command) Title() string  { return c.title }
func (c *Command) ID() string     { return c.id }
func (c *Command) Action() Action { return c.action }
func (c *Command) OldState() any  { return c.oldState }
func (c *Command) NewState() any  { return c.newState }
func (c *Command) IsClosed() bool { return c.closed }

// Initialize records the fingerprint before the change.
func (c *Command) Initialize() {
	c.oldState = c.action.ModifiedState()
}

// InitializeWithState records state as the fingerprint before the change, for
// callers that captured it ahead of building the command.
func (c *Command) InitializeWithState(state any) {
	c.oldState = state
}

// Commit records the fingerprint after the change.
func (c *Command) Commit() {
	c.newState = c.action.ModifiedState()
}

// Perform applies the action, if it knows how.
func (c *Command) Perform() error {
	if p, ok := c.action.(Performer); ok {
		return p.Perform()
	}
	return nil
}

// Undo reverses the action and restores the before fingerprint. A failed
// undo keeps whatever fingerprint the action left behind.
func (c *Command) Undo() error {
	if err := c.action.Undo(); err != nil {
		return err
	}
	c.action.SetModifiedState(c.oldState)
	return nil
}

// Redo reapplies the action and restores the after fingerprint.
func (c *Command) Redo() error {
	var err error
	if r, ok := c.action.(Redoer); ok {
		err = r.Redo()
	} else {
		err = c.action.Undo()
	}
	if err != nil {
		return err
	}
	c.action.SetModifiedState(c.newState)
	return nil
}

// IsUndoValid reports whether the target still carries the after fingerprint.
func (c *Command) IsUndoValid() bool {
	return c.compare(c.newState, c.action.ModifiedState())
}

// IsRedoValid reports whether the target still carries the before fingerprint.
func (c *Command) IsRedoValid() bool {
	return c.compare(c.oldState, c.action.ModifiedState())
}

func (c *Command) compare(a, b any) bool {
	if sc, ok := c.action.(StateComparer); ok {
		return sc.CompareModifiedStates(a, b)
	}
	return reflect.DeepEqual(a, b)
}

// CanMerge reports whether other can be folded into c. Besides matching ids,
// other must have started from c's after fingerprint: a change made between
// the two in the meantime keeps them apart.
func (c *Command) CanMerge(other *Command) bool {
	if other == nil || !c.mergeable || !other.mergeable {
		return false
	}
	if c.id == "" || c.id != other.id {
		return false
	}
	if _, ok := c.action.(Merger); !ok {
		return false
	}
	return c.compare(c.newState, other.oldState)
}

// Merge folds other into c and takes the current fingerprint as the new after
// fingerprint. The caller closes other.
func (c *Command) Merge(other *Command) {
	if !c.CanMerge(other) {
		panic(violation(ErrCannotMerge))
	}
	c.action.(Merger).Merge(other.action)
	c.newState = c.action.ModifiedState()
}

// Close releases the action. Closing twice is a no-op.
func (c *Command) Close() {
	if c.closed {
		return
	}
	c.closed = true
	if cl, ok := c.action.(Closer); ok {
		cl.Close()
	}
}
