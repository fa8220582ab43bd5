package vm

// JObject represents a guest object instance. Arrays keep their elements in
// Elems; strings and other built-in types keep Go state in Native.
type JObject struct {
	id     Ref
	Class  *Class
	Fields []Value
	Elems  []Value
	Native any
	marked bool
}

// Tracer is implemented by Native payloads that hold guest references, so
// the collector can reach them.
type Tracer interface {
	Trace(mark func(*JObject))
}

// ID returns the object's stable reference.
func (o *JObject) ID() Ref {
	if o == nil {
		return 0
	}
	return o.id
}

// IsArray reports whether the object is an array.
func (o *JObject) IsArray() bool {
	return o.Class.IsArray()
}

// GetField returns the named instance field, or the zero Value when the
// class declares no such field.
func (o *JObject) GetField(name string) Value {
	f := o.Class.LookupField(name)
	if f == nil || f.IsStatic() {
		return Value{}
	}
	return o.Fields[f.slot]
}

// SetField stores v into the named instance field.
func (o *JObject) SetField(name string, v Value) bool {
	f := o.Class.LookupField(name)
	if f == nil || f.IsStatic() {
		return false
	}
	o.Fields[f.slot] = narrow(f.Kind(), v)
	return true
}

// StringValue returns the contents of a java/lang/String object.
func (o *JObject) StringValue() (string, bool) {
	if o == nil {
		return "", false
	}
	s, ok := o.Native.(string)
	return s, ok
}

func (o *JObject) trace(mark func(*JObject)) {
	for _, v := range o.Fields {
		if v.Ref != nil {
			mark(v.Ref)
		}
	}
	for _, v := range o.Elems {
		if v.Ref != nil {
			mark(v.Ref)
		}
	}
	switch n := o.Native.(type) {
	case *Class:
		n.trace(mark)
	case Tracer:
		n.Trace(mark)
	}
}
