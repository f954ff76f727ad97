package model

import (
	"fmt"

	"github.com/mesh-intelligence/docgraph/pkg/changes"
	"github.com/mesh-intelligence/docgraph/pkg/persistence"
)

// DataChannel connects a display to the data item it shows. The data item is
// held by a Reference resolved through the channel's context, so the channel
// never owns it.
type DataChannel struct {
	persistence.Object

	ref *persistence.Reference
}

// NewDataChannel returns a channel showing item, or an empty one for nil.
func NewDataChannel(item *DataItem) *DataChannel {
	c := &DataChannel{}
	c.Init(c, TypeDataChannel)
	c.DefineProperty("data_item_specifier", "",
		persistence.WithChanged(func(_ string, v any) { c.retarget(v) }),
		persistence.WithReader(func(p *persistence.Property, properties map[string]any) any {
			raw, ok := properties[p.Key()].(string)
			if !ok {
				return nil
			}
			c.retarget(raw)
			return raw
		}))
	c.ref = persistence.NewReference(nil)
	c.ContextChangedEvent.Listen(func(struct{}) {
		c.ref.SetPersistentObjectContext(c.PersistentObjectContext())
	})
	c.AboutToCloseEvent.Listen(func(struct{}) { c.ref.Close() })
	if item != nil {
		c.SetDataItem(item)
	}
	return c
}

// DataItem returns the data item once it is registered, or nil.
func (c *DataChannel) DataItem() *DataItem {
	d, _ := c.ref.Item().(*DataItem)
	return d
}

// DataItemSpecifier returns the specifier of the shown data item.
func (c *DataChannel) DataItemSpecifier() persistence.Specifier {
	return c.ref.ItemSpecifier()
}

// SetDataItem points the channel at item.
func (c *DataChannel) SetDataItem(item *DataItem) {
	spec := ""
	if item != nil {
		spec = item.Specifier().Write()
	}
	c.SetPropertyValue("data_item_specifier", spec)
}

func (c *DataChannel) retarget(v any) {
	if c.ref == nil {
		return
	}
	spec, _ := persistence.ReadSpecifier(v)
	c.ref.SetItemSpecifier(spec)
}

// DisplayItem shows one data item through its data channel, with graphics
// drawn over it.
type DisplayItem struct {
	persistence.Object
}

// NewDisplayItem returns a display of the given type ("image", "line_plot").
func NewDisplayItem(displayType string) *DisplayItem {
	d := &DisplayItem{}
	d.Init(d, TypeDisplayItem)
	d.DefineProperty("display_type", displayType)
	d.DefineItem("display_data_channel", dataChannelFactory)
	d.DefineRelationship("graphics", graphicFactory)
	return d
}

func (d *DisplayItem) DisplayType() string { return persistence.Get[string](d, "display_type") }

// DataChannel returns the channel, or nil.
func (d *DisplayItem) DataChannel() *DataChannel {
	c, _ := d.Item("display_data_channel").(*DataChannel)
	return c
}

// SetDataChannel replaces the channel. The old one is closed.
func (d *DisplayItem) SetDataChannel(c *DataChannel) {
	if c == nil {
		d.SetItem("display_data_channel", nil)
		return
	}
	d.SetItem("display_data_channel", c)
}

// DataItem returns the data item shown, or nil.
func (d *DisplayItem) DataItem() *DataItem {
	if c := d.DataChannel(); c != nil {
		return c.DataItem()
	}
	return nil
}

// Graphics returns the graphics in drawing order.
func (d *DisplayItem) Graphics() []*Graphic {
	values := d.Relationship("graphics")
	out := make([]*Graphic, 0, len(values))
	for _, v := range values {
		out = append(out, v.(*Graphic))
	}
	return out
}

// AddGraphic appends g.
func (d *DisplayItem) AddGraphic(g *Graphic) { d.AppendItem("graphics", g) }

// InsertGraphic inserts g before index.
func (d *DisplayItem) InsertGraphic(index int, g *Graphic) { d.InsertItem("graphics", index, g) }

// GraphicIndex returns the position of g, or -1.
func (d *DisplayItem) GraphicIndex(g *Graphic) int { return d.IndexOf("graphics", g) }

// GraphicBySpecifier returns the graphic with the given specifier, or nil.
func (d *DisplayItem) GraphicBySpecifier(spec persistence.Specifier) *Graphic {
	g, _ := d.ItemByUUID("graphics", spec.UUID()).(*Graphic)
	return g
}

// DuplicateGraphic inserts a copy of g with fresh identity right after it.
func (d *DisplayItem) DuplicateGraphic(g *Graphic) *Graphic {
	index := d.GraphicIndex(g)
	if index < 0 {
		return nil
	}
	dup := persistence.Clone(g, graphicFactory).(*Graphic)
	d.InsertGraphic(index+1, dup)
	return dup
}

// RemoveGraphic removes g and returns a log that puts it back at the same
// position.
func (d *DisplayItem) RemoveGraphic(g *Graphic) (*changes.UndeleteLog[*Project], error) {
	index := d.GraphicIndex(g)
	if index < 0 {
		return nil, fmt.Errorf("%w: %s", ErrGraphicNotFound, g.UUID())
	}
	entry := graphicUndelete{
		display: d.Specifier(),
		index:   index,
		dict:    g.WriteToDict(),
	}
	d.RemoveItem("graphics", g)
	log := &changes.UndeleteLog[*Project]{}
	log.Append(entry)
	return log, nil
}

// graphicUndelete reinserts a removed graphic into its display.
type graphicUndelete struct {
	display persistence.Specifier
	index   int
	dict    map[string]any
}

func (u graphicUndelete) Undelete(p *Project) error {
	d := p.DisplayItemBySpecifier(u.display)
	if d == nil {
		return fmt.Errorf("%w: %s", ErrDisplayItemNotFound, u.display)
	}
	g, ok := readObject(graphicFactory, u.dict).(*Graphic)
	if !ok {
		return fmt.Errorf("%w: %v", ErrUnknownGraphicType, u.dict["type"])
	}
	d.InsertGraphic(min(u.index, len(d.Graphics())), g)
	return nil
}

func (graphicUndelete) Close() {}
