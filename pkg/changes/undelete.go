// Package changes records compensating actions that reverse a cascading
// delete.
package changes

import (
	"fmt"
	"slices"
)

// Undelete reverses one deletion against a model of type M.
type Undelete[M any] interface {
	Undelete(model M) error
	Close()
}

// UndeleteFunc adapts a function to Undelete.
type UndeleteFunc[M any] func(model M) error

func (f UndeleteFunc[M]) Undelete(model M) error { return f(model) }
func (f UndeleteFunc[M]) Close()                 {}

// UndeleteLog is an ordered list of compensating actions, in the order the
// deletions happened.
type UndeleteLog[M any] struct {
	entries []Undelete[M]
}

// Append records entry after the existing ones.
func (l *UndeleteLog[M]) Append(entry Undelete[M]) {
	l.entries = append(l.entries, entry)
}

// AppendLog moves every entry of other onto l, leaving other empty.
func (l *UndeleteLog[M]) AppendLog(other *UndeleteLog[M]) {
	l.entries = append(l.entries, other.entries...)
	other.entries = nil
}

// Len returns the number of entries.
func (l *UndeleteLog[M]) Len() int { return len(l.entries) }

// UndeleteAll replays the entries newest first, since later deletions in a
// cascade can depend on structure removed by earlier ones. The first failing
// entry stops the replay.
func (l *UndeleteLog[M]) UndeleteAll(model M) error {
	for i, entry := range slices.Backward(l.entries) {
		if err := entry.Undelete(model); err != nil {
			return fmt.Errorf("undelete entry %d: %w", i, err)
		}
	}
	return nil
}

// Close closes every entry and empties the log.
func (l *UndeleteLog[M]) Close() {
	for _, entry := range l.entries {
		entry.Close()
	}
	l.entries = nil
}
