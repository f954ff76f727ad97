package undo

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/docgraph/internal/metrics"
	"github.com/mesh-intelligence/docgraph/pkg/persistence"
)

// target is a value whose fingerprint advances on every change.
type target struct {
	value int
	count int64
	state int64
}

func (t *target) set(v int) {
	t.value = v
	t.count++
	t.state = t.count
}

// setAction swaps a value in and out; it is its own inverse.
type setAction struct {
	t      *target
	other  int
	closed bool
}

func (a *setAction) ModifiedState() any     { return a.t.state }
func (a *setAction) SetModifiedState(s any) { a.t.state = s.(int64) }
func (a *setAction) Undo() error {
	cur := a.t.value
	a.t.set(a.other)
	a.other = cur
	return nil
}
func (a *setAction) Close() { a.closed = true }

// mergingAction keeps the first old value across merges.
type mergingAction struct {
	setAction
	merged int
}

func (a *mergingAction) Merge(Action) { a.merged++ }

func change(stack *Stack, t *target, v int, opts ...CommandOption) *setAction {
	a := &setAction{t: t, other: t.value}
	cmd := NewCommand("Set", a, opts...)
	cmd.Initialize()
	t.set(v)
	stack.Push(cmd)
	return a
}

func requireViolation(t *testing.T, want error, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(error)
		require.True(t, ok)
		assert.True(t, errors.Is(err, persistence.ErrContractViolation))
		assert.True(t, errors.Is(err, want))
	}()
	fn()
}

func TestUndoRedoRestoresValueAndFingerprint(t *testing.T) {
	stack := NewStack()
	tg := &target{}
	tg.set(1)
	before := tg.state

	change(stack, tg, 2)
	after := tg.state

	require.True(t, stack.CanUndo())
	assert.Equal(t, "Undo Set", stack.UndoTitle())
	require.NoError(t, stack.Undo())
	assert.Equal(t, 1, tg.value)
	assert.Equal(t, before, tg.state)
	assert.False(t, stack.CanUndo())

	require.True(t, stack.CanRedo())
	assert.Equal(t, "Redo Set", stack.RedoTitle())
	require.NoError(t, stack.Redo())
	assert.Equal(t, 2, tg.value)
	assert.Equal(t, after, tg.state)
	assert.Equal(t, "Redo", stack.RedoTitle())
}

func TestValidateClearsAfterExternalMutation(t *testing.T) {
	stack := NewStack()
	tg := &target{}
	change(stack, tg, 1)
	change(stack, tg, 2)
	require.NoError(t, stack.Undo())
	require.Equal(t, 1, stack.UndoCount())
	require.Equal(t, 1, stack.RedoCount())

	tg.set(7)
	stack.Validate()

	assert.False(t, stack.CanUndo())
	assert.False(t, stack.CanRedo())
	assert.Equal(t, 0, stack.UndoCount())
	assert.Equal(t, 0, stack.RedoCount())
}

func TestValidateKeepsValidHistory(t *testing.T) {
	stack := NewStack()
	tg := &target{}
	change(stack, tg, 1)

	stack.Validate()

	assert.Equal(t, 1, stack.UndoCount())
}

func TestPushClearsRedo(t *testing.T) {
	stack := NewStack()
	tg := &target{}
	first := change(stack, tg, 1)
	require.NoError(t, stack.Undo())
	require.True(t, stack.CanRedo())

	change(stack, tg, 5)

	assert.False(t, stack.CanRedo())
	assert.Equal(t, 0, stack.RedoCount())
	assert.True(t, first.closed)
}

func TestCanUndoFalseAfterOutOfBandChange(t *testing.T) {
	stack := NewStack()
	tg := &target{}
	change(stack, tg, 1)
	tg.set(2)

	assert.False(t, stack.CanUndo())
	assert.Equal(t, "Undo", stack.UndoTitle())
	assert.Equal(t, 1, stack.UndoCount())
}

func TestEmptyStackPanics(t *testing.T) {
	stack := NewStack()
	requireViolation(t, ErrEmptyStack, func() { _ = stack.Undo() })
	requireViolation(t, ErrEmptyStack, func() { _ = stack.Redo() })
	requireViolation(t, ErrNilCommand, func() { stack.Push(nil) })
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name      string
		firstID   string
		secondID  string
		mergeable bool
		wantCount int
	}{
		{"same id", "nudge", "nudge", true, 1},
		{"different id", "nudge", "resize", true, 2},
		{"empty id", "", "", true, 2},
		{"not mergeable", "nudge", "nudge", false, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stack := NewStack()
			tg := &target{}
			push := func(id string, v int) *mergingAction {
				a := &mergingAction{setAction: setAction{t: tg, other: tg.value}}
				opts := []CommandOption{WithCommandID(id)}
				if tt.mergeable {
					opts = append(opts, Mergeable())
				}
				cmd := NewCommand("Nudge", a, opts...)
				cmd.Initialize()
				tg.set(v)
				stack.Push(cmd)
				return a
			}
			first := push(tt.firstID, 1)
			second := push(tt.secondID, 2)

			assert.Equal(t, tt.wantCount, stack.UndoCount())
			assert.True(t, stack.CanUndo())
			if tt.wantCount == 1 {
				assert.Equal(t, 1, first.merged)
				assert.True(t, second.closed)
			} else {
				assert.Equal(t, 0, first.merged)
				assert.False(t, second.closed)
			}
		})
	}
}

func TestMergeIncompatiblePanics(t *testing.T) {
	tg := &target{}
	a := NewCommand("A", &setAction{t: tg})
	b := NewCommand("B", &setAction{t: tg})
	requireViolation(t, ErrCannotMerge, func() { a.Merge(b) })
}

func TestClearClosesEverything(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	stack := NewStack(WithMetrics(m))
	tg := &target{}
	a := change(stack, tg, 1)
	b := change(stack, tg, 2)
	require.NoError(t, stack.Undo())

	stack.Close()

	assert.True(t, a.closed)
	assert.True(t, b.closed)
	assert.Nil(t, stack.LastCommand())
}

// compoundAction fingerprints two targets but only compares the first.
type compoundAction struct {
	setAction
	other *target
}

type pair struct{ a, b int64 }

func (c *compoundAction) ModifiedState() any { return pair{c.t.state, c.other.state} }
func (c *compoundAction) SetModifiedState(s any) {
	p := s.(pair)
	c.t.state = p.a
}
func (c *compoundAction) CompareModifiedStates(x, y any) bool {
	return x.(pair).a == y.(pair).a
}

func TestCompoundFingerprintComparison(t *testing.T) {
	stack := NewStack()
	tg, other := &target{}, &target{}
	a := &compoundAction{setAction: setAction{t: tg}, other: other}
	cmd := NewCommand("Compound", a)
	cmd.Initialize()
	tg.set(3)
	stack.Push(cmd)

	other.set(9)

	assert.True(t, stack.CanUndo())
	assert.Equal(t, pair{tg.state, 0}, cmd.NewState())
}

func TestPerformAndInitializeWithState(t *testing.T) {
	tg := &target{}
	a := &performAction{setAction: setAction{t: tg}, to: 4}
	cmd := NewCommand("Perform", a)
	cmd.InitializeWithState(tg.state)
	require.NoError(t, cmd.Perform())
	cmd.Commit()

	assert.Equal(t, 4, tg.value)
	assert.True(t, cmd.IsUndoValid())
	require.NoError(t, cmd.Undo())
	assert.Equal(t, 0, tg.value)
	assert.True(t, cmd.IsRedoValid())
	require.NoError(t, cmd.Redo())
	assert.Equal(t, 4, tg.value)
	assert.Equal(t, 1, a.redone)
}

type performAction struct {
	setAction
	to     int
	redone int
}

func (p *performAction) Perform() error {
	p.other = p.t.value
	p.t.set(p.to)
	return nil
}

func (p *performAction) Redo() error {
	p.redone++
	return p.Perform()
}

func TestMergeSkippedAfterOutOfBandChange(t *testing.T) {
	stack := NewStack()
	tg := &target{}
	push := func(v int) *mergingAction {
		a := &mergingAction{setAction: setAction{t: tg, other: tg.value}}
		cmd := NewCommand("Nudge", a, WithCommandID("nudge"), Mergeable())
		cmd.Initialize()
		tg.set(v)
		stack.Push(cmd)
		return a
	}
	first := push(1)
	tg.set(5)
	require.False(t, stack.CanUndo())

	push(2)

	assert.Equal(t, 0, first.merged)
	assert.Equal(t, 2, stack.UndoCount())
	require.True(t, stack.CanUndo())
	require.NoError(t, stack.Undo())
	assert.Equal(t, 5, tg.value)
	assert.False(t, stack.CanUndo(), "first command stays invalid")

	stack.Validate()
	assert.Equal(t, 0, stack.UndoCount())
}

// failingAction reverts nothing and reports err.
type failingAction struct {
	setAction
	err error
}

func (a *failingAction) Undo() error { return a.err }

var errReplay = errors.New("replay failed")

func TestFailedUndoDiscardsHistory(t *testing.T) {
	stack := NewStack()
	tg := &target{}
	earlier := change(stack, tg, 1)

	a := &failingAction{setAction: setAction{t: tg, other: tg.value}, err: errReplay}
	cmd := NewCommand("Broken", a)
	cmd.Initialize()
	tg.set(2)
	stack.Push(cmd)
	after := tg.state

	err := stack.Undo()
	require.ErrorIs(t, err, errReplay)
	assert.Contains(t, err.Error(), `undo "Broken"`)
	assert.Equal(t, after, tg.state, "fingerprint not rolled back")
	assert.Equal(t, 2, tg.value)
	assert.Equal(t, 0, stack.UndoCount())
	assert.Equal(t, 0, stack.RedoCount())
	assert.False(t, stack.CanRedo())
	assert.True(t, a.closed)
	assert.True(t, earlier.closed)
}

func TestFailedRedoDiscardsHistory(t *testing.T) {
	stack := NewStack()
	tg := &target{}
	a := &failingAction{setAction: setAction{t: tg, other: tg.value}}
	cmd := NewCommand("Flaky", a)
	cmd.Initialize()
	tg.set(3)
	stack.Push(cmd)

	// Without a Redoer, redo runs Undo again.
	require.NoError(t, stack.Undo())
	a.err = errReplay

	require.ErrorIs(t, stack.Redo(), errReplay)
	assert.Equal(t, 0, stack.UndoCount())
	assert.Equal(t, 0, stack.RedoCount())
}
