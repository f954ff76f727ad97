package model

import (
	"fmt"

	"github.com/mesh-intelligence/docgraph/pkg/changes"
	"github.com/mesh-intelligence/docgraph/pkg/persistence"
	"github.com/mesh-intelligence/docgraph/pkg/undo"
)

// resolve looks spec up in the project's context.
func resolve(p *Project, spec persistence.Specifier) persistence.Persistent {
	ctx := p.PersistentObjectContext()
	if ctx == nil {
		return nil
	}
	return ctx.RegisteredObject(spec)
}

// projectAction fingerprints the project's modified state. Every edit in
// the document advances it, so a command is only undoable while nothing else
// changed after it.
type projectAction struct {
	project *Project
}

func (a *projectAction) ModifiedState() any { return a.project.ModifiedState() }

func (a *projectAction) SetModifiedState(state any) {
	if v, ok := state.(int64); ok {
		a.project.SetModifiedState(v)
	}
}

// changePropertyAction swaps a property value in and out. Targets are held by
// specifier so the action survives the target being rebuilt by an undelete.
type changePropertyAction struct {
	projectAction
	target persistence.Specifier
	name   string
	other  any
}

func (a *changePropertyAction) Undo() error {
	obj := resolve(a.project, a.target)
	if obj == nil {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, a.target)
	}
	cur := obj.PersistentObject().PropertyValue(a.name)
	obj.PersistentObject().SetPropertyValue(a.name, a.other)
	a.other = cur
	return nil
}

// Merge keeps the first value so one undo reverts the whole run.
func (a *changePropertyAction) Merge(undo.Action) {}

// ChangePropertyCommand sets a property on target and returns the command
// recording it. Consecutive changes of the same property merge on the stack.
// Properties defined NotRecordable are set directly and yield nil.
func ChangePropertyCommand(p *Project, target persistence.Persistent, name string, value any) *undo.Command {
	obj := target.PersistentObject()
	if !obj.PropertyRecordable(name) {
		obj.SetPropertyValue(name, value)
		return nil
	}
	a := &changePropertyAction{
		projectAction: projectAction{project: p},
		target:        obj.Specifier(),
		name:          name,
		other:         obj.PropertyValue(name),
	}
	cmd := undo.NewCommand("Change "+name, a,
		undo.WithCommandID(fmt.Sprintf("change-property:%s:%s", obj.UUID(), name)),
		undo.Mergeable())
	cmd.Initialize()
	obj.SetPropertyValue(name, value)
	return cmd
}

// displayAction edits the graphics of one display item.
type displayAction struct {
	projectAction
	display persistence.Specifier
}

func (a *displayAction) item() *DisplayItem {
	return a.project.DisplayItemBySpecifier(a.display)
}

// insertGraphicAction inserts a graphic; undo removes it again.
type insertGraphicAction struct {
	displayAction
	index   int
	graphic persistence.Specifier
	dict    map[string]any
}

func (a *insertGraphicAction) Perform() error {
	d := a.item()
	if d == nil {
		return fmt.Errorf("%w: %s", ErrDisplayItemNotFound, a.display)
	}
	g, ok := readObject(graphicFactory, a.dict).(*Graphic)
	if !ok {
		return fmt.Errorf("%w: %v", ErrUnknownGraphicType, a.dict[persistence.KeyType])
	}
	d.InsertGraphic(min(a.index, len(d.Graphics())), g)
	return nil
}

func (a *insertGraphicAction) Undo() error {
	d := a.item()
	if d == nil {
		return fmt.Errorf("%w: %s", ErrDisplayItemNotFound, a.display)
	}
	g := d.GraphicBySpecifier(a.graphic)
	if g == nil {
		return fmt.Errorf("%w: %s", ErrGraphicNotFound, a.graphic)
	}
	a.dict = g.WriteToDict()
	d.RemoveItem("graphics", g)
	return nil
}

func (a *insertGraphicAction) Redo() error { return a.Perform() }

// InsertGraphicCommand inserts g into d before index and returns the
// command recording it.
func InsertGraphicCommand(p *Project, d *DisplayItem, index int, g *Graphic) *undo.Command {
	a := &insertGraphicAction{
		displayAction: displayAction{projectAction: projectAction{project: p}, display: d.Specifier()},
		index:         index,
		graphic:       g.Specifier(),
	}
	cmd := undo.NewCommand("Insert Graphic", a)
	cmd.Initialize()
	d.InsertGraphic(index, g)
	return cmd
}

// undeleteAll replays *log against p and releases it. The log is released
// on failure too: a partial replay cannot be retried.
func undeleteAll(p *Project, log **changes.UndeleteLog[*Project]) error {
	if *log == nil {
		return nil
	}
	err := (*log).UndeleteAll(p)
	(*log).Close()
	*log = nil
	return err
}

// removeGraphicAction removes a graphic; undo replays its undelete log.
type removeGraphicAction struct {
	displayAction
	graphic persistence.Specifier
	log     *changes.UndeleteLog[*Project]
}

func (a *removeGraphicAction) perform() error {
	d := a.item()
	if d == nil {
		return fmt.Errorf("%w: %s", ErrDisplayItemNotFound, a.display)
	}
	g := d.GraphicBySpecifier(a.graphic)
	if g == nil {
		return fmt.Errorf("%w: %s", ErrGraphicNotFound, a.graphic)
	}
	log, err := d.RemoveGraphic(g)
	if err != nil {
		return err
	}
	a.log = log
	return nil
}

func (a *removeGraphicAction) Undo() error {
	return undeleteAll(a.project, &a.log)
}

func (a *removeGraphicAction) Redo() error { return a.perform() }

func (a *removeGraphicAction) Close() {
	if a.log != nil {
		a.log.Close()
	}
}

// RemoveGraphicCommand removes g from d and returns the command recording it.
func RemoveGraphicCommand(p *Project, d *DisplayItem, g *Graphic) (*undo.Command, error) {
	a := &removeGraphicAction{
		displayAction: displayAction{projectAction: projectAction{project: p}, display: d.Specifier()},
		graphic:       g.Specifier(),
	}
	cmd := undo.NewCommand("Remove Graphic", a)
	cmd.Initialize()
	if err := a.perform(); err != nil {
		return nil, err
	}
	return cmd, nil
}

// removeDisplayAction removes a display item with its graphics.
type removeDisplayAction struct {
	displayAction
	log *changes.UndeleteLog[*Project]
}

func (a *removeDisplayAction) perform() error {
	d := a.item()
	if d == nil {
		return fmt.Errorf("%w: %s", ErrDisplayItemNotFound, a.display)
	}
	log, err := a.project.RemoveDisplayItem(d)
	if err != nil {
		return err
	}
	a.log = log
	return nil
}

func (a *removeDisplayAction) Undo() error {
	return undeleteAll(a.project, &a.log)
}

func (a *removeDisplayAction) Redo() error { return a.perform() }

func (a *removeDisplayAction) Close() {
	if a.log != nil {
		a.log.Close()
	}
}

// RemoveDisplayItemCommand removes d and its graphics and returns the command
// recording it.
func RemoveDisplayItemCommand(p *Project, d *DisplayItem) (*undo.Command, error) {
	a := &removeDisplayAction{
		displayAction: displayAction{projectAction: projectAction{project: p}, display: d.Specifier()},
	}
	cmd := undo.NewCommand("Remove Display", a)
	cmd.Initialize()
	if err := a.perform(); err != nil {
		return nil, err
	}
	return cmd, nil
}
