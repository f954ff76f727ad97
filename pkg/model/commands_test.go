package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangePropertyCommandUndoRedo(t *testing.T) {
	doc := New()
	d := doc.Project.CreateDisplay("A", "image")
	g := rect(t, "start")
	d.AddGraphic(g)

	doc.Push(ChangePropertyCommand(doc.Project, g, "label", "one"))
	doc.Push(ChangePropertyCommand(doc.Project, g, "label", "two"))
	assert.Equal(t, 1, doc.Undo.UndoCount(), "consecutive edits of one property merge")
	assert.Equal(t, "Undo Change label", doc.Undo.UndoTitle())

	require.True(t, doc.Undo.CanUndo())
	require.NoError(t, doc.Undo.Undo())
	assert.Equal(t, "start", g.Label())

	require.True(t, doc.Undo.CanRedo())
	require.NoError(t, doc.Undo.Redo())
	assert.Equal(t, "two", g.Label())
	assert.True(t, doc.Undo.CanUndo())
}

func TestChangesToDifferentPropertiesDoNotMerge(t *testing.T) {
	doc := New()
	doc.Push(ChangePropertyCommand(doc.Project, doc.Project, "title", "x"))
	d := doc.Project.CreateDisplay("A", "image")
	doc.Push(ChangePropertyCommand(doc.Project, d, "display_type", "line_plot"))
	assert.Equal(t, 2, doc.Undo.UndoCount())

	require.True(t, doc.Undo.CanUndo())
	require.NoError(t, doc.Undo.Undo())
	assert.Equal(t, "image", d.DisplayType())
	assert.False(t, doc.Undo.CanUndo(), "CreateDisplay ran outside the stack")
}

func TestUndoInvalidatedByOutOfBandEdit(t *testing.T) {
	doc := New()
	doc.Push(ChangePropertyCommand(doc.Project, doc.Project, "title", "tracked"))
	require.True(t, doc.Undo.CanUndo())

	doc.Project.SetTitle("untracked")
	assert.False(t, doc.Undo.CanUndo())

	doc.Undo.Validate()
	assert.Zero(t, doc.Undo.UndoCount())
	assert.Equal(t, "untracked", doc.Project.Title())
}

func TestNestedUndoKeepsEarlierCommandsValid(t *testing.T) {
	doc := New()
	d := doc.Project.CreateDisplay("A", "image")
	g := rect(t, "roi")
	doc.Push(InsertGraphicCommand(doc.Project, d, 0, g))
	doc.Push(ChangePropertyCommand(doc.Project, g, "label", "renamed"))

	require.NoError(t, doc.Undo.Undo())
	assert.Equal(t, "roi", g.Label())
	require.True(t, doc.Undo.CanUndo(), "insert still undoable after undoing the nested edit")
	require.NoError(t, doc.Undo.Undo())
	assert.Empty(t, d.Graphics())
}

func TestInsertGraphicCommand(t *testing.T) {
	doc := New()
	d := doc.Project.CreateDisplay("A", "image")
	d.AddGraphic(rect(t, "a"))
	d.AddGraphic(rect(t, "c"))
	g := rect(t, "b")
	spec := g.Specifier()

	doc.Push(InsertGraphicCommand(doc.Project, d, 1, g))
	assert.Equal(t, []string{"a", "b", "c"}, labels(d))

	require.NoError(t, doc.Undo.Undo())
	assert.Equal(t, []string{"a", "c"}, labels(d))
	assert.Nil(t, doc.Context.RegisteredObject(spec))

	require.True(t, doc.Undo.CanRedo())
	require.NoError(t, doc.Undo.Redo())
	assert.Equal(t, []string{"a", "b", "c"}, labels(d))
	assert.NotNil(t, d.GraphicBySpecifier(spec), "redo restores the same identity")
	assert.True(t, doc.Undo.CanUndo())
}

func TestRemoveGraphicCommand(t *testing.T) {
	doc := New()
	d := doc.Project.CreateDisplay("A", "image")
	var mid *Graphic
	for _, l := range []string{"g0", "g1", "g2"} {
		g := rect(t, l)
		d.AddGraphic(g)
		if l == "g1" {
			mid = g
		}
	}

	cmd, err := RemoveGraphicCommand(doc.Project, d, mid)
	require.NoError(t, err)
	doc.Push(cmd)
	assert.Equal(t, []string{"g0", "g2"}, labels(d))

	require.NoError(t, doc.Undo.Undo())
	assert.Equal(t, []string{"g0", "g1", "g2"}, labels(d))

	require.NoError(t, doc.Undo.Redo())
	assert.Equal(t, []string{"g0", "g2"}, labels(d))

	_, err = RemoveGraphicCommand(doc.Project, d, rect(t, "stray"))
	assert.ErrorIs(t, err, ErrGraphicNotFound)
}

func TestRemoveDisplayItemCommand(t *testing.T) {
	doc := New()
	d := doc.Project.CreateDisplay("A", "image")
	d.AddGraphic(rect(t, "g0"))
	d.AddGraphic(rect(t, "g1"))
	spec := d.Specifier()

	cmd, err := RemoveDisplayItemCommand(doc.Project, d)
	require.NoError(t, err)
	doc.Push(cmd)
	assert.Empty(t, doc.Project.DisplayItems())

	require.NoError(t, doc.Undo.Undo())
	restored := doc.Project.DisplayItemBySpecifier(spec)
	require.NotNil(t, restored)
	assert.Equal(t, []string{"g0", "g1"}, labels(restored))
	assert.Equal(t, "A", restored.DataItem().Title())

	require.NoError(t, doc.Undo.Redo())
	assert.Empty(t, doc.Project.DisplayItems())

	doc.Undo.Clear()
	assert.True(t, cmd.IsClosed())
}

func TestNotRecordablePropertySkipsHistory(t *testing.T) {
	doc := New()
	doc.Project.CreateDisplay("A", "image")
	data := doc.Project.DataItems()[0]
	before := doc.Undo.UndoCount()

	cmd := ChangePropertyCommand(doc.Project, data, "session_id", "s-1")
	doc.Push(cmd)

	assert.Nil(t, cmd)
	assert.Equal(t, "s-1", data.SessionID())
	assert.Equal(t, before, doc.Undo.UndoCount())
}

func TestMergeAfterOutOfBandEditStartsNewCommand(t *testing.T) {
	doc := New()
	doc.Push(ChangePropertyCommand(doc.Project, doc.Project, "title", "one"))
	d := doc.Project.CreateDisplay("A", "image")
	require.False(t, doc.Undo.CanUndo())

	doc.Push(ChangePropertyCommand(doc.Project, doc.Project, "title", "two"))
	assert.Equal(t, 2, doc.Undo.UndoCount())

	require.NoError(t, doc.Undo.Undo())
	assert.Equal(t, "one", doc.Project.Title())
	assert.NotNil(t, doc.Project.DisplayItemBySpecifier(d.Specifier()))
	assert.False(t, doc.Undo.CanUndo(), "edit before the display stays out of reach")
}

func TestFailedUndeleteAbortsUndo(t *testing.T) {
	doc := New()
	d := doc.Project.CreateDisplay("A", "image")
	g := rect(t, "g0")
	d.AddGraphic(g)

	cmd, err := RemoveGraphicCommand(doc.Project, d, g)
	require.NoError(t, err)
	doc.Push(cmd)
	_, err = doc.Project.RemoveDisplayItem(d)
	require.NoError(t, err)
	after := doc.Project.ModifiedState()

	err = doc.Undo.Undo()
	require.ErrorIs(t, err, ErrDisplayItemNotFound)
	assert.Equal(t, after, doc.Project.ModifiedState(), "fingerprint not restored")
	assert.False(t, doc.Undo.CanRedo())
	assert.Equal(t, 0, doc.Undo.UndoCount())
	assert.Equal(t, 0, doc.Undo.RedoCount())
}
