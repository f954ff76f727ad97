package model

import (
	"errors"

	"github.com/mesh-intelligence/docgraph/pkg/persistence"
)

// Type names written under the "type" key.
const (
	TypeProject      = "project"
	TypeDataItem     = "data_item"
	TypeDisplayItem  = "display_item"
	TypeDataChannel  = "data_channel"
	TypeLineGraphic  = "line-graphic"
	TypeRectGraphic  = "rect-graphic"
	TypePointGraphic = "point-graphic"
)

var (
	ErrDisplayItemNotFound = errors.New("display item not found")
	ErrDataItemNotFound    = errors.New("data item not found")
	ErrGraphicNotFound     = errors.New("graphic not found")
	ErrObjectNotFound      = errors.New("object not found")
	ErrUnknownGraphicType  = errors.New("unknown graphic type")
)

func typeOf(lookup persistence.LookupFunc) string {
	s, _ := lookup(persistence.KeyType, "").(string)
	return s
}

// Factory builds any model object from its dictionary type.
func Factory(lookup persistence.LookupFunc) persistence.Persistent {
	switch t := typeOf(lookup); t {
	case TypeProject:
		return NewProject()
	case TypeDataItem:
		return NewDataItem()
	case TypeDisplayItem:
		return NewDisplayItem("")
	case TypeDataChannel:
		return NewDataChannel(nil)
	default:
		if g, err := NewGraphic(t); err == nil {
			return g
		}
		return nil
	}
}

func dataItemFactory(lookup persistence.LookupFunc) persistence.Persistent {
	if typeOf(lookup) == TypeDataItem {
		return NewDataItem()
	}
	return nil
}

func displayItemFactory(lookup persistence.LookupFunc) persistence.Persistent {
	if typeOf(lookup) == TypeDisplayItem {
		return NewDisplayItem("")
	}
	return nil
}

func dataChannelFactory(lookup persistence.LookupFunc) persistence.Persistent {
	if typeOf(lookup) == TypeDataChannel {
		return NewDataChannel(nil)
	}
	return nil
}

func graphicFactory(lookup persistence.LookupFunc) persistence.Persistent {
	g, err := NewGraphic(typeOf(lookup))
	if err != nil {
		return nil
	}
	return g
}

// readObject builds an object from d with factory and reads d into it.
func readObject(factory persistence.Factory, d map[string]any) persistence.Persistent {
	obj := factory(func(name string, def any) any {
		if v, ok := d[name]; ok {
			return v
		}
		return def
	})
	if obj == nil {
		return nil
	}
	obj.PersistentObject().ReadFromDict(d)
	return obj
}
