package vm

import (
	stderrors "errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/daimatz/jbridge/pkg/classfile"
)

// The methods in this file are the host entry points. Each attaches to
// the runtime for its duration. References returned to the host are
// pinned once on the caller's behalf and must be released with Unpin.

// ErrInvalidRef is returned for references that do not name a live object.
var ErrInvalidRef = stderrors.New("invalid guest reference")

// ObjectKind classifies a heap object for the host.
type ObjectKind uint8

const (
	ObjectInstance ObjectKind = iota
	ObjectArray
	ObjectString
	ObjectBox
	ObjectClass
)

func (k ObjectKind) String() string {
	switch k {
	case ObjectArray:
		return "array"
	case ObjectString:
		return "string"
	case ObjectBox:
		return "box"
	case ObjectClass:
		return "class"
	}
	return "instance"
}

var boxClasses = map[string]Kind{
	"java/lang/Boolean":   KindBoolean,
	"java/lang/Byte":      KindByte,
	"java/lang/Character": KindChar,
	"java/lang/Short":     KindShort,
	"java/lang/Integer":   KindInt,
	"java/lang/Long":      KindLong,
	"java/lang/Float":     KindFloat,
	"java/lang/Double":    KindDouble,
}

// BoxKind reports the primitive kind wrapped by instances of c.
func BoxKind(c *Class) (Kind, bool) {
	k, ok := boxClasses[c.Name]
	return k, ok
}

// BoxClassName returns the wrapper class for primitive kind k.
func BoxClassName(k Kind) string {
	for name, bk := range boxClasses {
		if bk == k {
			return name
		}
	}
	return ""
}

// enter runs fn attached and converts escaping guest exceptions.
func (v *VM) enter(fn func() error) (err error) {
	detach := v.Attach()
	defer detach()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("guest runtime panic: %v", r)
		}
	}()
	return v.hostError(fn())
}

// hostError converts a guest exception escaping to the host into a
// *GuestException. Other errors are returned unchanged.
func (v *VM) hostError(err error) error {
	var je *JavaException
	if !stderrors.As(err, &je) {
		return err
	}
	ge := v.toGuestException(je)
	Logger().Debug("guest exception escaped",
		zap.String("class", ge.ClassName),
		zap.String("message", ge.Message))
	return ge
}

func (v *VM) deref(r Ref) (*JObject, error) {
	obj, ok := v.heap.lookup(r)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRef, r)
	}
	return obj, nil
}

// out pins obj for the host.
func (v *VM) out(obj *JObject) Ref {
	v.heap.pin(obj)
	return obj.ID()
}

func (v *VM) fromValue(k Kind, val Value) JValue {
	switch k {
	case KindVoid:
		return JVoid()
	case KindReference:
		if val.Ref == nil {
			return JNull()
		}
		return JRef(v.out(val.Ref))
	case KindFloat:
		return JFloat(val.Float())
	case KindDouble:
		return JDouble(val.F)
	}
	return JValue{Kind: k, I: narrow(k, val).I}
}

// toValue converts a host value for a slot of type t.
func (v *VM) toValue(t classfile.FieldType, j JValue) (Value, error) {
	k := KindOf(t)
	if j.Kind.computational() != k.computational() {
		return Value{}, fmt.Errorf("%s value for %s", j.Kind, t.JavaName())
	}
	switch k {
	case KindReference:
		if j.Ref == 0 {
			return NullValue(), nil
		}
		obj, err := v.deref(j.Ref)
		if err != nil {
			return Value{}, err
		}
		if c, err := v.resolveClass(t.InternalName()); err == nil && !obj.Class.IsSubclassOf(c) {
			return Value{}, fmt.Errorf("%s is not assignable to %s", obj.Class.JavaName(), t.JavaName())
		}
		return RefValue(obj), nil
	case KindLong:
		return LongValue(j.I), nil
	case KindFloat:
		return FloatValue(float32(j.F)), nil
	case KindDouble:
		return DoubleValue(j.F), nil
	}
	return narrow(k, Value{Kind: KindInt, I: int64(int32(j.I))}), nil
}

func (v *VM) args(m *Method, in []JValue) ([]Value, error) {
	if len(in) != len(m.Params) {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", m, len(m.Params), len(in))
	}
	out := make([]Value, len(in))
	for i, j := range in {
		val, err := v.toValue(m.Params[i], j)
		if err != nil {
			return nil, fmt.Errorf("%s argument %d: %w", m, i, err)
		}
		out[i] = val
	}
	return out, nil
}

// Describe returns the classification and class of a live object.
func (v *VM) Describe(r Ref) (kind ObjectKind, c *Class, err error) {
	err = v.enter(func() error {
		obj, err := v.deref(r)
		if err != nil {
			return err
		}
		c = obj.Class
		switch {
		case c.IsArray():
			kind = ObjectArray
		case c.Name == "java/lang/String":
			kind = ObjectString
		case c.Name == "java/lang/Class":
			kind = ObjectClass
		default:
			if _, ok := BoxKind(c); ok {
				kind = ObjectBox
			}
		}
		return nil
	})
	return kind, c, err
}

// Pin adds a guest-side pin to r, keeping it alive across collections.
func (v *VM) Pin(r Ref) error {
	return v.enter(func() error {
		obj, err := v.deref(r)
		if err != nil {
			return err
		}
		v.heap.pin(obj)
		return nil
	})
}

// Unpin drops one pin from r.
func (v *VM) Unpin(r Ref) error {
	return v.enter(func() error {
		if !v.heap.unpin(r) {
			return fmt.Errorf("unpin: %w: %d is not pinned", ErrInvalidRef, r)
		}
		return nil
	})
}

// PinCount returns the number of guest-side pins held on r.
func (v *VM) PinCount(r Ref) int {
	detach := v.Attach()
	defer detach()
	return v.heap.pins[r]
}

// IsLive reports whether r still names an object on the guest heap.
func (v *VM) IsLive(r Ref) bool {
	detach := v.Attach()
	defer detach()
	_, ok := v.heap.lookup(r)
	return ok
}

// Mirror returns the pinned java/lang/Class object for c.
func (v *VM) Mirror(c *Class) (r Ref, err error) {
	err = v.enter(func() error {
		r = v.out(v.mirror(c))
		return nil
	})
	return r, err
}

// ClassOf returns the class of the object r.
func (v *VM) ClassOf(r Ref) (c *Class, err error) {
	err = v.enter(func() error {
		obj, err := v.deref(r)
		if err != nil {
			return err
		}
		c = obj.Class
		return nil
	})
	return c, err
}

// MirrorClass returns the class a java/lang/Class object stands for.
func (v *VM) MirrorClass(r Ref) (c *Class, err error) {
	err = v.enter(func() error {
		obj, err := v.deref(r)
		if err != nil {
			return err
		}
		var ok bool
		if c, ok = obj.Native.(*Class); !ok {
			return fmt.Errorf("%s is not a class mirror", obj.Class.JavaName())
		}
		return nil
	})
	return c, err
}

// NewObject allocates an instance of c and runs ctor on it.
func (v *VM) NewObject(c *Class, ctor *Method, args []JValue) (r Ref, err error) {
	err = v.enter(func() error {
		if ctor.Class != c || !ctor.IsConstructor() {
			return fmt.Errorf("%s is not a constructor of %s", ctor, c)
		}
		if c.Flags&(classfile.AccAbstract|classfile.AccInterface) != 0 {
			return v.throw("java/lang/InstantiationError", "%s", c.JavaName())
		}
		if err := v.ensureInitialized(c); err != nil {
			return err
		}
		in, err := v.args(ctor, args)
		if err != nil {
			return err
		}
		obj := v.heap.alloc(c)
		if _, err := v.executeMethod(ctor, append([]Value{RefValue(obj)}, in...)); err != nil {
			return err
		}
		r = v.out(obj)
		return nil
	})
	return r, err
}

// Invoke calls m on recv with virtual dispatch. Static methods ignore
// recv.
func (v *VM) Invoke(recv Ref, m *Method, args []JValue) (JValue, error) {
	if m.IsStatic() {
		return v.InvokeStatic(m, args)
	}
	var ret JValue
	err := v.enter(func() error {
		if recv == 0 {
			return v.NullPointer()
		}
		obj, err := v.deref(recv)
		if err != nil {
			return err
		}
		target := obj.Class.LookupMethod(m.Name, m.Descriptor)
		if target == nil {
			return v.throw("java/lang/AbstractMethodError", "%s", m)
		}
		in, err := v.args(m, args)
		if err != nil {
			return err
		}
		res, err := v.executeMethod(target, append([]Value{RefValue(obj)}, in...))
		if err != nil {
			return err
		}
		ret = v.fromValue(m.ReturnKind(), res)
		return nil
	})
	return ret, err
}

// InvokeStatic calls the static method m, initializing its class first.
func (v *VM) InvokeStatic(m *Method, args []JValue) (JValue, error) {
	var ret JValue
	err := v.enter(func() error {
		if !m.IsStatic() {
			return fmt.Errorf("%s is not static", m)
		}
		if err := v.ensureInitialized(m.Class); err != nil {
			return err
		}
		in, err := v.args(m, args)
		if err != nil {
			return err
		}
		res, err := v.executeMethod(m, in)
		if err != nil {
			return err
		}
		ret = v.fromValue(m.ReturnKind(), res)
		return nil
	})
	return ret, err
}

// GetField reads an instance field of r.
func (v *VM) GetField(r Ref, f *Field) (JValue, error) {
	var ret JValue
	err := v.enter(func() error {
		obj, err := v.deref(r)
		if err != nil {
			return err
		}
		if f.IsStatic() || !obj.Class.IsSubclassOf(f.Class) {
			return fmt.Errorf("%s has no instance field %s.%s", obj.Class.JavaName(), f.Class.JavaName(), f.Name)
		}
		ret = v.fromValue(f.Kind(), obj.Fields[f.slot])
		return nil
	})
	return ret, err
}

// SetField writes an instance field of r.
func (v *VM) SetField(r Ref, f *Field, val JValue) error {
	return v.enter(func() error {
		obj, err := v.deref(r)
		if err != nil {
			return err
		}
		if f.IsStatic() || !obj.Class.IsSubclassOf(f.Class) {
			return fmt.Errorf("%s has no instance field %s.%s", obj.Class.JavaName(), f.Class.JavaName(), f.Name)
		}
		in, err := v.toValue(f.Type, val)
		if err != nil {
			return v.throw("java/lang/IllegalArgumentException", "field %s: %v", f.Name, err)
		}
		obj.Fields[f.slot] = in
		return nil
	})
}

// GetStatic reads a static field, initializing its class first.
func (v *VM) GetStatic(f *Field) (JValue, error) {
	var ret JValue
	err := v.enter(func() error {
		if !f.IsStatic() {
			return fmt.Errorf("%s.%s is not static", f.Class.JavaName(), f.Name)
		}
		if err := v.ensureInitialized(f.Class); err != nil {
			return err
		}
		ret = v.fromValue(f.Kind(), f.Class.statics[f.slot])
		return nil
	})
	return ret, err
}

// SetStatic writes a static field, initializing its class first.
func (v *VM) SetStatic(f *Field, val JValue) error {
	return v.enter(func() error {
		if !f.IsStatic() {
			return fmt.Errorf("%s.%s is not static", f.Class.JavaName(), f.Name)
		}
		if err := v.ensureInitialized(f.Class); err != nil {
			return err
		}
		in, err := v.toValue(f.Type, val)
		if err != nil {
			return v.throw("java/lang/IllegalArgumentException", "field %s: %v", f.Name, err)
		}
		f.Class.statics[f.slot] = in
		return nil
	})
}

func (v *VM) array(r Ref) (*JObject, error) {
	obj, err := v.deref(r)
	if err != nil {
		return nil, err
	}
	if !obj.IsArray() {
		return nil, fmt.Errorf("%s is not an array", obj.Class.JavaName())
	}
	return obj, nil
}

// ArrayLength returns the length of the array r.
func (v *VM) ArrayLength(r Ref) (n int, err error) {
	err = v.enter(func() error {
		arr, err := v.array(r)
		if err != nil {
			return err
		}
		n = len(arr.Elems)
		return nil
	})
	return n, err
}

// ArrayGet reads element i of the array r.
func (v *VM) ArrayGet(r Ref, i int) (JValue, error) {
	var ret JValue
	err := v.enter(func() error {
		arr, err := v.array(r)
		if err != nil {
			return err
		}
		if i < 0 || i >= len(arr.Elems) {
			return v.throw("java/lang/ArrayIndexOutOfBoundsException", "Index %d out of bounds for length %d", i, len(arr.Elems))
		}
		ret = v.fromValue(KindOf(arr.Class.Elem()), arr.Elems[i])
		return nil
	})
	return ret, err
}

// ArraySet writes element i of the array r.
func (v *VM) ArraySet(r Ref, i int, val JValue) error {
	return v.enter(func() error {
		arr, err := v.array(r)
		if err != nil {
			return err
		}
		if i < 0 || i >= len(arr.Elems) {
			return v.throw("java/lang/ArrayIndexOutOfBoundsException", "Index %d out of bounds for length %d", i, len(arr.Elems))
		}
		in, err := v.toValue(arr.Class.Elem(), val)
		if err != nil {
			return v.throw("java/lang/ArrayStoreException", "%v", err)
		}
		arr.Elems[i] = in
		return nil
	})
}

// NewArray allocates a zeroed array of n elements of type elem.
func (v *VM) NewArray(elem classfile.FieldType, n int) (r Ref, err error) {
	err = v.enter(func() error {
		if n < 0 {
			return v.throw("java/lang/NegativeArraySizeException", "%d", n)
		}
		arr, err := v.NewArrayOf(elem, n)
		if err != nil {
			return err
		}
		r = v.out(arr)
		return nil
	})
	return r, err
}

// NewString allocates a guest string holding s.
func (v *VM) NewString(s string) (r Ref, err error) {
	err = v.enter(func() error {
		r = v.out(v.newString(s))
		return nil
	})
	return r, err
}

// StringValue returns the contents of the string object r.
func (v *VM) StringValue(r Ref) (s string, err error) {
	err = v.enter(func() error {
		obj, err := v.deref(r)
		if err != nil {
			return err
		}
		var ok bool
		if s, ok = obj.StringValue(); !ok {
			return fmt.Errorf("%s is not a string", obj.Class.JavaName())
		}
		return nil
	})
	return s, err
}

// Box wraps a primitive value in its wrapper class.
func (v *VM) Box(val JValue) (r Ref, err error) {
	err = v.enter(func() error {
		if !val.Kind.IsPrimitive() {
			return fmt.Errorf("cannot box %s", val.Kind)
		}
		c, err := v.findClass(BoxClassName(val.Kind))
		if err != nil {
			return err
		}
		in, err := v.toValue(classfile.FieldType{Base: primitiveBase[val.Kind]}, val)
		if err != nil {
			return err
		}
		obj := v.heap.alloc(c)
		obj.SetField("value", in)
		r = v.out(obj)
		return nil
	})
	return r, err
}

// Unbox returns the primitive held by the wrapper object r.
func (v *VM) Unbox(r Ref) (ret JValue, err error) {
	err = v.enter(func() error {
		obj, err := v.deref(r)
		if err != nil {
			return err
		}
		k, ok := BoxKind(obj.Class)
		if !ok {
			return fmt.Errorf("%s is not a primitive wrapper", obj.Class.JavaName())
		}
		ret = v.fromValue(k, obj.GetField("value"))
		return nil
	})
	return ret, err
}

var primitiveBase = map[Kind]byte{
	KindBoolean: 'Z',
	KindByte:    'B',
	KindChar:    'C',
	KindShort:   'S',
	KindInt:     'I',
	KindLong:    'J',
	KindFloat:   'F',
	KindDouble:  'D',
}

// HeapStats reports the number of live objects and of pinned references.
func (v *VM) HeapStats() (objects, pinned int) {
	detach := v.Attach()
	defer detach()
	return len(v.heap.objects), len(v.heap.pins)
}
