package persistence

// Converter translates a property value to and from its dictionary form.
type Converter interface {
	Convert(value any) any
	ConvertBack(value any) any
}

// DictValue is a nested value object with its own dictionary encoding. A
// property defined WithMake stores one of these.
type DictValue interface {
	ReadDict(properties map[string]any)
	WriteDict() map[string]any
}

// PropertyReader decodes a property from the object's dictionary. A nil result
// leaves the current value in place.
type PropertyReader func(p *Property, properties map[string]any) any

// PropertyWriter encodes a property into the object's dictionary.
type PropertyWriter func(p *Property, properties map[string]any, value any)

// Property is a single-valued field of a persistent object.
type Property struct {
	name       string
	key        string
	value      any
	make       func() DictValue
	readOnly   bool
	hidden     bool
	recordable bool
	validate   func(any) any
	converter  Converter
	changed    func(name string, value any)
	reader     PropertyReader
	writer     PropertyWriter
}

// PropertyOption configures a Property at definition time.
type PropertyOption func(*Property)

// WithKey sets the storage key when it differs from the property name.
func WithKey(key string) PropertyOption {
	return func(p *Property) { p.key = key }
}

// WithMake stores the value as a DictValue built by fn.
func WithMake(fn func() DictValue) PropertyOption {
	return func(p *Property) { p.make = fn }
}

// ReadOnly rejects writes through generic attribute access.
func ReadOnly() PropertyOption {
	return func(p *Property) { p.readOnly = true }
}

// Hidden excludes the property from generic attribute access.
func Hidden() PropertyOption {
	return func(p *Property) { p.hidden = true }
}

// NotRecordable excludes the property from undo recording.
func NotRecordable() PropertyOption {
	return func(p *Property) { p.recordable = false }
}

// WithValidate normalizes incoming values. The validator replaces the default
// deep copy, so it must return a value that shares nothing with its input.
func WithValidate(fn func(any) any) PropertyOption {
	return func(p *Property) { p.validate = fn }
}

// WithConverter sets the value/dictionary converter.
func WithConverter(c Converter) PropertyOption {
	return func(p *Property) { p.converter = c }
}

// WithChanged registers a callback fired after every set.
func WithChanged(fn func(name string, value any)) PropertyOption {
	return func(p *Property) { p.changed = fn }
}

// WithReader overrides dictionary decoding.
func WithReader(fn PropertyReader) PropertyOption {
	return func(p *Property) { p.reader = fn }
}

// WithWriter overrides dictionary encoding.
func WithWriter(fn PropertyWriter) PropertyOption {
	return func(p *Property) { p.writer = fn }
}

func newProperty(name string, value any, opts ...PropertyOption) *Property {
	p := &Property{name: name, key: name, recordable: true}
	for _, opt := range opts {
		opt(p)
	}
	p.value = deepCopy(value)
	return p
}

func (p *Property) Name() string     { return p.name }
func (p *Property) Key() string      { return p.key }
func (p *Property) ReadOnly() bool   { return p.readOnly }
func (p *Property) Hidden() bool     { return p.hidden }
func (p *Property) Recordable() bool { return p.recordable }

// Value returns a copy of the stored value.
func (p *Property) Value() any {
	return deepCopy(p.value)
}

// SetValue validates (or copies) value, stores it and fires the changed
// callback. It does not touch the owning object's modified state; use
// Object.SetPropertyValue for that.
func (p *Property) SetValue(value any) {
	if p.validate != nil {
		value = p.validate(value)
	} else {
		value = deepCopy(value)
	}
	p.value = value
	if p.changed != nil {
		p.changed(p.name, deepCopy(value))
	}
}

func (p *Property) readFromDict(properties map[string]any) {
	if p.reader != nil {
		if v := p.reader(p, properties); v != nil {
			p.value = v
		}
		return
	}
	raw, ok := properties[p.key]
	if !ok {
		return
	}
	if p.make != nil {
		v := p.make()
		if m, ok := raw.(map[string]any); ok {
			v.ReadDict(m)
		}
		p.value = v
		return
	}
	if p.converter != nil {
		p.value = p.converter.ConvertBack(deepCopy(raw))
		return
	}
	p.value = deepCopy(raw)
}

func (p *Property) writeToDict(properties map[string]any) {
	if p.writer != nil {
		p.writer(p, properties, p.Value())
		return
	}
	if p.make != nil {
		if v, ok := p.value.(DictValue); ok && !isNilValue(v) {
			properties[p.key] = v.WriteDict()
		} else {
			delete(properties, p.key)
		}
		return
	}
	if p.value == nil {
		delete(properties, p.key)
		return
	}
	var v any
	if p.converter != nil {
		v = p.converter.Convert(p.value)
	} else {
		v = deepCopy(p.value)
	}
	if m, ok := v.(map[string]any); (ok && len(m) == 0) || v == nil {
		delete(properties, p.key)
		return
	}
	properties[p.key] = v
}
