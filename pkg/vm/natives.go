package vm

import (
	"fmt"

	"github.com/daimatz/jbridge/pkg/classfile"
)

// The methods in this file are for NativeFunc implementations. They run
// inside guest execution, with the attach lock already held.

// Class returns the initialized class called name.
func (v *VM) Class(name string) (*Class, error) {
	return v.findClass(internalName(name))
}

// New allocates an instance of the named class without running a
// constructor.
func (v *VM) New(className string) (*JObject, error) {
	c, err := v.findClass(className)
	if err != nil {
		return nil, err
	}
	return v.heap.alloc(c), nil
}

// NewInstance allocates an instance and runs the constructor with the
// given descriptor.
func (v *VM) NewInstance(className, desc string, args ...Value) (*JObject, error) {
	obj, err := v.New(className)
	if err != nil {
		return nil, err
	}
	if _, err := v.CallSpecial(obj, obj.Class, "<init>", desc, args...); err != nil {
		return nil, err
	}
	return obj, nil
}

// String allocates a java/lang/String holding s.
func (v *VM) String(s string) Value {
	return RefValue(v.newString(s))
}

// Throw returns a new guest exception of the named class. An empty format
// leaves the message null.
func (v *VM) Throw(className, format string, args ...any) error {
	return v.throw(className, format, args...)
}

// NullPointer is the exception for a null receiver or argument.
func (v *VM) NullPointer() error {
	return v.throw("java/lang/NullPointerException", "")
}

// MirrorOf returns the java/lang/Class object for c.
func (v *VM) MirrorOf(c *Class) *JObject {
	return v.mirror(c)
}

// NewArrayOf allocates a zeroed array with component type elem.
func (v *VM) NewArrayOf(elem classfile.FieldType, n int) (*JObject, error) {
	c, err := v.arrayClass(elem)
	if err != nil {
		return nil, err
	}
	return v.newArray(c, n), nil
}

// CallMethod invokes name/desc on obj with virtual dispatch.
func (v *VM) CallMethod(obj *JObject, name, desc string, args ...Value) (Value, error) {
	if obj == nil {
		return Value{}, v.NullPointer()
	}
	m := obj.Class.LookupMethod(name, desc)
	if m == nil {
		return Value{}, v.throw("java/lang/AbstractMethodError", "%s.%s%s", obj.Class.JavaName(), name, desc)
	}
	return v.executeMethod(m, append([]Value{RefValue(obj)}, args...))
}

// CallSpecial invokes the method declared for c without virtual dispatch.
func (v *VM) CallSpecial(obj *JObject, c *Class, name, desc string, args ...Value) (Value, error) {
	m := c.LookupMethod(name, desc)
	if m == nil {
		return Value{}, v.throw("java/lang/NoSuchMethodError", "%s.%s%s", c.JavaName(), name, desc)
	}
	return v.executeMethod(m, append([]Value{RefValue(obj)}, args...))
}

// CallStatic invokes a static method.
func (v *VM) CallStatic(className, name, desc string, args ...Value) (Value, error) {
	c, err := v.findClass(className)
	if err != nil {
		return Value{}, err
	}
	m := c.LookupMethod(name, desc)
	if m == nil || !m.IsStatic() {
		return Value{}, v.throw("java/lang/NoSuchMethodError", "%s.%s%s", c.JavaName(), name, desc)
	}
	return v.executeMethod(m, args)
}

// ToString calls toString on obj and returns the Go string. A null
// reference gives "null".
func (v *VM) ToString(obj *JObject) (string, error) {
	if obj == nil {
		return "null", nil
	}
	if s, ok := obj.StringValue(); ok {
		return s, nil
	}
	res, err := v.CallMethod(obj, "toString", "()Ljava/lang/String;")
	if err != nil {
		return "", err
	}
	if res.IsNull() {
		return "null", nil
	}
	s, ok := res.Ref.StringValue()
	if !ok {
		return "", fmt.Errorf("toString of %s returned %s", obj.Class.Name, res.Ref.Class.Name)
	}
	return s, nil
}

// Equals calls a.equals(b).
func (v *VM) Equals(a, b *JObject) (bool, error) {
	if a == nil {
		return b == nil, nil
	}
	res, err := v.CallMethod(a, "equals", "(Ljava/lang/Object;)Z", RefValue(b))
	if err != nil {
		return false, err
	}
	return res.Bool(), nil
}

// HashCode calls obj.hashCode(). Null hashes to 0.
func (v *VM) HashCode(obj *JObject) (int32, error) {
	if obj == nil {
		return 0, nil
	}
	res, err := v.CallMethod(obj, "hashCode", "()I")
	if err != nil {
		return 0, err
	}
	return res.Int(), nil
}

// Printf writes to the VM's standard output.
func (v *VM) Printf(format string, args ...any) {
	fmt.Fprintf(v.Stdout, format, args...)
}
