package model

import (
	"context"
	"time"

	"github.com/mesh-intelligence/docgraph/pkg/persistence"
)

// DataName is the external data slot holding a data item's samples.
const DataName = "data"

// Calibration maps raw sample values to physical units.
type Calibration struct {
	Offset float64
	Scale  float64
	Units  string
}

// ReadDict implements persistence.DictValue.
func (c *Calibration) ReadDict(d map[string]any) {
	c.Offset, _ = d["offset"].(float64)
	c.Scale, _ = d["scale"].(float64)
	c.Units, _ = d["units"].(string)
}

// WriteDict implements persistence.DictValue.
func (c *Calibration) WriteDict() map[string]any {
	d := map[string]any{"offset": c.Offset, "scale": c.Scale}
	if c.Units != "" {
		d["units"] = c.Units
	}
	return d
}

// Apply converts a raw value.
func (c *Calibration) Apply(raw float64) float64 { return c.Offset + c.Scale*raw }

type timeConverter struct{}

func (timeConverter) Convert(value any) any {
	t, _ := value.(time.Time)
	return persistence.FormatModified(t)
}

func (timeConverter) ConvertBack(value any) any {
	if s, ok := value.(string); ok {
		if t, ok := persistence.ParseModified(s); ok {
			return t
		}
	}
	return time.Time{}
}

// DataItem is a recorded data set. Its samples live in external data; the
// dictionary carries only metadata.
type DataItem struct {
	persistence.Object

	source *persistence.Proxy
}

// NewDataItem returns an untitled data item created now.
func NewDataItem() *DataItem {
	d := &DataItem{}
	d.Init(d, TypeDataItem)
	d.DefineProperty("title", "")
	d.DefineProperty("created", time.Now().UTC().Truncate(time.Microsecond),
		persistence.ReadOnly(), persistence.WithConverter(timeConverter{}))
	d.DefineProperty("calibration", &Calibration{Scale: 1},
		persistence.WithMake(func() persistence.DictValue { return &Calibration{} }))
	d.DefineProperty("session_id", "", persistence.Hidden(), persistence.NotRecordable())
	d.DefineProperty("source_specifier", "", persistence.ReadOnly(),
		persistence.WithChanged(func(_ string, v any) { d.retargetSource(v) }),
		persistence.WithReader(func(p *persistence.Property, properties map[string]any) any {
			raw, ok := properties[p.Key()].(string)
			if !ok {
				return nil
			}
			d.retargetSource(raw)
			return raw
		}))
	d.source = persistence.NewProxy(d, nil)
	d.AboutToCloseEvent.Listen(func(struct{}) { d.source.Close() })
	return d
}

func (d *DataItem) Title() string         { return persistence.Get[string](d, "title") }
func (d *DataItem) SetTitle(title string) { d.SetPropertyValue("title", title) }
func (d *DataItem) Created() time.Time    { return persistence.Get[time.Time](d, "created") }
func (d *DataItem) SessionID() string     { return persistence.Get[string](d, "session_id") }
func (d *DataItem) SetSessionID(id string) {
	d.SetPropertyValue("session_id", id)
}

// Calibration returns a copy of the calibration.
func (d *DataItem) Calibration() *Calibration {
	if c := persistence.Get[*Calibration](d, "calibration"); c != nil {
		return c
	}
	return &Calibration{Scale: 1}
}

func (d *DataItem) SetCalibration(c *Calibration) { d.SetPropertyValue("calibration", c) }

// SetSource records the data item d was derived from.
func (d *DataItem) SetSource(src *DataItem) {
	spec := ""
	if src != nil {
		spec = src.Specifier().Write()
	}
	d.SetPropertyValue("source_specifier", spec)
}

// Source returns the data item d was derived from once it is registered in
// d's context.
func (d *DataItem) Source() *DataItem {
	if d.source == nil {
		return nil
	}
	src, _ := d.source.Item().(*DataItem)
	return src
}

func (d *DataItem) retargetSource(v any) {
	if d.source == nil {
		return
	}
	d.source.Close()
	spec, ok := persistence.ReadSpecifier(v)
	if !ok {
		d.source = persistence.NewProxy(d, nil)
		return
	}
	d.source = persistence.NewSpecifierProxy(d, spec)
}

// Data reads the samples.
func (d *DataItem) Data(ctx context.Context) ([]byte, error) {
	return d.ReadExternalData(ctx, DataName)
}

// SetData writes the samples.
func (d *DataItem) SetData(ctx context.Context, data []byte) error {
	return d.WriteExternalData(ctx, DataName, data)
}

// ReserveData allocates zeroed samples of size bytes.
func (d *DataItem) ReserveData(ctx context.Context, size int) error {
	return d.ReserveExternalData(ctx, DataName, size)
}
