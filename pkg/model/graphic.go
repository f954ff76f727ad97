package model

import (
	"fmt"

	"github.com/mesh-intelligence/docgraph/pkg/persistence"
)

// Graphic is an annotation drawn over a display: a line, a rectangle or a
// point. Bounds are normalized (top, left, height, width).
type Graphic struct {
	persistence.Object
}

// NewGraphic returns an empty graphic of the given type.
func NewGraphic(graphicType string) (*Graphic, error) {
	switch graphicType {
	case TypeLineGraphic, TypeRectGraphic, TypePointGraphic:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownGraphicType, graphicType)
	}
	g := &Graphic{}
	g.Init(g, graphicType)
	g.DefineProperty("label", "")
	g.DefineProperty("bounds", []float64{0, 0, 1, 1},
		persistence.WithValidate(func(v any) any { return floats(v, 4) }),
		persistence.WithConverter(floatsConverter{n: 4}))
	if graphicType == TypeLineGraphic {
		for _, name := range []string{"start", "end"} {
			g.DefineProperty(name, []float64{0, 0},
				persistence.WithValidate(func(v any) any { return floats(v, 2) }),
				persistence.WithConverter(floatsConverter{n: 2}))
		}
	}
	return g, nil
}

func (g *Graphic) Label() string         { return persistence.Get[string](g, "label") }
func (g *Graphic) SetLabel(label string) { g.SetPropertyValue("label", label) }
func (g *Graphic) Bounds() []float64     { return persistence.Get[[]float64](g, "bounds") }

// SetBounds stores bounds, padding or truncating to four values.
func (g *Graphic) SetBounds(bounds []float64) { g.SetPropertyValue("bounds", bounds) }

// Display returns the display item holding g, or nil.
func (g *Graphic) Display() *DisplayItem {
	if parent := g.Parent(); parent != nil {
		d, _ := parent.Object.(*DisplayItem)
		return d
	}
	return nil
}

// floats coerces v into a fresh []float64 of length n. Non-numeric entries
// become zero.
func floats(v any, n int) []float64 {
	out := make([]float64, n)
	switch t := v.(type) {
	case []float64:
		copy(out, t)
	case []any:
		for i := 0; i < n && i < len(t); i++ {
			out[i] = toFloat(t[i])
		}
	case []int:
		for i := 0; i < n && i < len(t); i++ {
			out[i] = float64(t[i])
		}
	}
	return out
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	}
	return 0
}

type floatsConverter struct{ n int }

func (c floatsConverter) Convert(value any) any     { return floats(value, c.n) }
func (c floatsConverter) ConvertBack(value any) any { return floats(value, c.n) }
