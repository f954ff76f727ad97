package model

import (
	"fmt"
	"slices"

	"github.com/mesh-intelligence/docgraph/pkg/changes"
	"github.com/mesh-intelligence/docgraph/pkg/persistence"
)

// Project is the document root.
type Project struct {
	persistence.Object
}

// NewProject returns an empty, detached project.
func NewProject() *Project {
	p := &Project{}
	p.Init(p, TypeProject)
	p.DefineProperty("title", "")
	p.DefineRelationship("data_items", dataItemFactory)
	p.DefineRelationship("display_items", displayItemFactory, persistence.WithRelationshipKey("displays"))
	return p
}

func (p *Project) Title() string         { return persistence.Get[string](p, "title") }
func (p *Project) SetTitle(title string) { p.SetPropertyValue("title", title) }

// DataItems returns the data items in order.
func (p *Project) DataItems() []*DataItem {
	values := p.Relationship("data_items")
	out := make([]*DataItem, 0, len(values))
	for _, v := range values {
		out = append(out, v.(*DataItem))
	}
	return out
}

// DisplayItems returns the display items in order.
func (p *Project) DisplayItems() []*DisplayItem {
	values := p.Relationship("display_items")
	out := make([]*DisplayItem, 0, len(values))
	for _, v := range values {
		out = append(out, v.(*DisplayItem))
	}
	return out
}

func (p *Project) AppendDataItem(d *DataItem)       { p.AppendItem("data_items", d) }
func (p *Project) AppendDisplayItem(d *DisplayItem) { p.AppendItem("display_items", d) }

// InsertDisplayItem inserts d before index.
func (p *Project) InsertDisplayItem(index int, d *DisplayItem) {
	p.InsertItem("display_items", index, d)
}

// DataItemBySpecifier returns the data item with spec, or nil.
func (p *Project) DataItemBySpecifier(spec persistence.Specifier) *DataItem {
	d, _ := p.ItemByUUID("data_items", spec.UUID()).(*DataItem)
	return d
}

// DisplayItemBySpecifier returns the display item with spec, or nil.
func (p *Project) DisplayItemBySpecifier(spec persistence.Specifier) *DisplayItem {
	d, _ := p.ItemByUUID("display_items", spec.UUID()).(*DisplayItem)
	return d
}

// CreateDisplay adds a data item titled title and a display of displayType
// showing it, and returns the display.
func (p *Project) CreateDisplay(title, displayType string) *DisplayItem {
	data := NewDataItem()
	data.SetTitle(title)
	p.AppendDataItem(data)
	display := NewDisplayItem(displayType)
	display.SetDataChannel(NewDataChannel(data))
	p.AppendDisplayItem(display)
	return display
}

// RemoveDataItem removes d. Displays showing it keep their specifier and
// resolve again if an item with the same identity returns.
func (p *Project) RemoveDataItem(d *DataItem) *changes.UndeleteLog[*Project] {
	log := &changes.UndeleteLog[*Project]{}
	index := p.IndexOf("data_items", d)
	if index < 0 {
		return log
	}
	log.Append(projectUndelete{
		relationship: "data_items",
		index:        index,
		dict:         d.WriteToDict(),
	})
	p.RemoveItem("data_items", d)
	return log
}

// RemoveDisplayItem removes d's graphics, last first, and then d. Replaying
// the returned log restores the display and its graphics in their original
// order.
func (p *Project) RemoveDisplayItem(d *DisplayItem) (*changes.UndeleteLog[*Project], error) {
	index := p.IndexOf("display_items", d)
	if index < 0 {
		return nil, fmt.Errorf("%w: %s", ErrDisplayItemNotFound, d.UUID())
	}
	log := &changes.UndeleteLog[*Project]{}
	for _, g := range slices.Backward(d.Graphics()) {
		entry, err := d.RemoveGraphic(g)
		if err != nil {
			log.Close()
			return nil, err
		}
		log.AppendLog(entry)
	}
	log.Append(projectUndelete{
		relationship: "display_items",
		index:        index,
		dict:         d.WriteToDict(),
	})
	p.RemoveItem("display_items", d)
	return log, nil
}

// projectUndelete reinserts a removed top-level item.
type projectUndelete struct {
	relationship string
	index        int
	dict         map[string]any
}

func (u projectUndelete) Undelete(p *Project) error {
	factory := dataItemFactory
	if u.relationship == "display_items" {
		factory = displayItemFactory
	}
	obj := readObject(factory, u.dict)
	if obj == nil {
		return fmt.Errorf("cannot rebuild %v in %s", u.dict["type"], u.relationship)
	}
	p.InsertItem(u.relationship, min(u.index, p.RelationshipCount(u.relationship)), obj)
	return nil
}

func (projectUndelete) Close() {}
