package vm

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/daimatz/jbridge/pkg/classfile"
)

// NativeFunc implements a method in Go. this is nil for static methods.
type NativeFunc func(v *VM, this *JObject, args []Value) (Value, error)

type initState uint8

const (
	classLoaded initState = iota
	classInitializing
	classInitialized
)

// Class is a loaded guest class, interface or array type.
type Class struct {
	Name       string // internal form, e.g. java/lang/String or [I
	Super      *Class
	Interfaces []*Class
	Flags      uint16

	// elem is the component type of an array class.
	elem      classfile.FieldType
	isArray   bool
	Component *Class

	file    *classfile.ClassFile
	fields  []*Field
	methods []*Method
	nslots  int
	statics []Value
	mirror  *JObject

	state  initState
	ready  atomic.Bool // state == classInitialized, readable without the attach lock
	initFn func(v *VM, c *Class) error
}

// Field is a declared field.
type Field struct {
	Class      *Class
	Name       string
	Descriptor string
	Type       classfile.FieldType
	Flags      uint16
	slot       int
	constant   uint16
}

func (f *Field) IsStatic() bool { return f.Flags&classfile.AccStatic != 0 }
func (f *Field) IsPublic() bool { return f.Flags&classfile.AccPublic != 0 }
func (f *Field) Kind() Kind     { return KindOf(f.Type) }

// Method is a declared method or constructor.
type Method struct {
	Class      *Class
	Name       string
	Descriptor string
	Flags      uint16
	Params     []classfile.FieldType
	Return     classfile.FieldType
	Code       *classfile.CodeAttribute
	Native     NativeFunc
	argSlots   int
}

func (m *Method) IsStatic() bool      { return m.Flags&classfile.AccStatic != 0 }
func (m *Method) IsAbstract() bool    { return m.Flags&classfile.AccAbstract != 0 }
func (m *Method) IsPublic() bool      { return m.Flags&classfile.AccPublic != 0 }
func (m *Method) IsConstructor() bool { return m.Name == "<init>" }

// IsBridge reports whether the compiler generated m, such as the bridge
// method forwarding an erased generic signature to a covariant override.
func (m *Method) IsBridge() bool {
	return m.Flags&(classfile.AccBridge|classfile.AccSynthetic) != 0
}

// paramKey identifies the parameter list of m regardless of its return
// type.
func (m *Method) paramKey() string {
	return m.Descriptor[:strings.IndexByte(m.Descriptor, ')')+1]
}

// ReturnKind returns the declared kind of the method's result.
func (m *Method) ReturnKind() Kind { return KindOf(m.Return) }

// String renders the method as Java source would declare it, e.g.
// "jep.Test.add(int, java.lang.String)".
func (m *Method) String() string {
	params := make([]string, len(m.Params))
	for i, p := range m.Params {
		params[i] = p.JavaName()
	}
	name := m.Name
	if m.IsConstructor() {
		name = m.Class.SimpleName()
	}
	return fmt.Sprintf("%s.%s(%s)", m.Class.JavaName(), name, strings.Join(params, ", "))
}

func newMethod(c *Class, name, desc string, flags uint16) (*Method, error) {
	params, ret, err := classfile.ParseMethodDescriptor(desc)
	if err != nil {
		return nil, fmt.Errorf("method %s.%s: %w", c.Name, name, err)
	}
	m := &Method{Class: c, Name: name, Descriptor: desc, Flags: flags, Params: params, Return: ret}
	for _, p := range params {
		m.argSlots++
		if KindOf(p).IsWide() {
			m.argSlots++
		}
	}
	if flags&classfile.AccStatic == 0 {
		m.argSlots++
	}
	return m, nil
}

// JavaName returns the binary name with dots, as Class.getName reports it.
func (c *Class) JavaName() string {
	return strings.ReplaceAll(c.Name, "/", ".")
}

// SimpleName returns the name without its package, e.g. "String" or "int[]".
func (c *Class) SimpleName() string {
	if c.isArray {
		t := c.elem
		if t.Base == 'L' {
			t.ClassName = t.ClassName[strings.LastIndexByte(t.ClassName, '/')+1:]
		}
		return t.ArrayOf().JavaName()
	}
	return c.Name[strings.LastIndexByte(c.Name, '/')+1:]
}

// IsArray reports whether c is an array class.
func (c *Class) IsArray() bool { return c.isArray }

// Elem returns the component type of an array class.
func (c *Class) Elem() classfile.FieldType { return c.elem }

// IsInterface reports whether c is an interface.
func (c *Class) IsInterface() bool { return c.Flags&classfile.AccInterface != 0 }

// Fields returns the fields c declares, in declaration order.
func (c *Class) Fields() []*Field { return c.fields }

// DeclaredMethods returns the methods and constructors c declares.
func (c *Class) DeclaredMethods() []*Method { return c.methods }

// DeclaredMethod finds a method declared directly on c.
func (c *Class) DeclaredMethod(name, desc string) *Method {
	for _, m := range c.methods {
		if m.Name == name && m.Descriptor == desc {
			return m
		}
	}
	return nil
}

// LookupMethod resolves name and desc through the superclass chain and
// then through superinterfaces for default methods.
func (c *Class) LookupMethod(name, desc string) *Method {
	for k := c; k != nil; k = k.Super {
		if m := k.DeclaredMethod(name, desc); m != nil {
			return m
		}
	}
	var found *Method
	c.walkInterfaces(func(i *Class) bool {
		if m := i.DeclaredMethod(name, desc); m != nil && !m.IsAbstract() {
			found = m
			return false
		}
		return true
	})
	if found == nil {
		c.walkInterfaces(func(i *Class) bool {
			if m := i.DeclaredMethod(name, desc); m != nil {
				found = m
				return false
			}
			return true
		})
	}
	return found
}

func (c *Class) walkInterfaces(fn func(*Class) bool) {
	seen := map[*Class]bool{}
	var visit func(*Class) bool
	visit = func(k *Class) bool {
		for _, i := range k.Interfaces {
			if seen[i] {
				continue
			}
			seen[i] = true
			if !fn(i) || !visit(i) {
				return false
			}
		}
		return true
	}
	for k := c; k != nil; k = k.Super {
		if !visit(k) {
			return
		}
	}
}

// MethodsNamed returns the public methods called name that are visible on
// c, including inherited ones. An override hides the method it overrides,
// also when it narrows the return type, and compiler-generated bridge
// methods are left out. Static methods are included only when static is
// set; instance methods only when it is not.
func (c *Class) MethodsNamed(name string, static bool) []*Method {
	var out []*Method
	seen := map[string]bool{}
	add := func(m *Method) {
		if m.Name != name || m.IsStatic() != static || !m.IsPublic() || m.IsBridge() {
			return
		}
		key := m.paramKey()
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, m)
	}
	for k := c; k != nil; k = k.Super {
		for _, m := range k.methods {
			add(m)
		}
	}
	if !static {
		c.walkInterfaces(func(i *Class) bool {
			for _, m := range i.methods {
				add(m)
			}
			return true
		})
	}
	return out
}

// HasMethodNamed reports whether any method called name is visible on c.
func (c *Class) HasMethodNamed(name string) bool {
	return len(c.MethodsNamed(name, false)) > 0 || len(c.MethodsNamed(name, true)) > 0
}

// Constructors returns the public constructors c declares.
func (c *Class) Constructors() []*Method {
	var out []*Method
	for _, m := range c.methods {
		if m.IsConstructor() && m.IsPublic() {
			out = append(out, m)
		}
	}
	return out
}

// LookupField resolves a field by name through the class hierarchy.
func (c *Class) LookupField(name string) *Field {
	for k := c; k != nil; k = k.Super {
		for _, f := range k.fields {
			if f.Name == name {
				return f
			}
		}
	}
	var found *Field
	c.walkInterfaces(func(i *Class) bool {
		for _, f := range i.fields {
			if f.Name == name {
				found = f
				return false
			}
		}
		return true
	})
	return found
}

// Static returns the value of a static field c declares. The attach lock
// must be held.
func (c *Class) Static(name string) Value {
	for _, f := range c.fields {
		if f.Name == name && f.IsStatic() {
			return c.statics[f.slot]
		}
	}
	return Value{}
}

// SetStatic stores into a static field c declares, typically from a
// ClassSpec Init. The attach lock must be held.
func (c *Class) SetStatic(name string, val Value) bool {
	for _, f := range c.fields {
		if f.Name == name && f.IsStatic() {
			c.statics[f.slot] = narrow(f.Kind(), val)
			return true
		}
	}
	return false
}

// IsSubclassOf reports whether c is target or inherits from it.
func (c *Class) IsSubclassOf(target *Class) bool {
	return c.Distance(target) >= 0
}

// Distance counts the inheritance steps from c up to target, or returns -1
// when c is not assignable to target. Arrays follow Java covariance.
func (c *Class) Distance(target *Class) int {
	if c == target {
		return 0
	}
	if c.isArray {
		switch target.Name {
		case "java/lang/Object":
			return 2
		case "java/lang/Cloneable", "java/io/Serializable":
			return 1
		}
		if !target.isArray {
			return -1
		}
		ce, te := c.elem, target.elem
		if !ce.IsReference() || !te.IsReference() {
			return -1
		}
		if c.Component == nil || target.Component == nil {
			return -1
		}
		return c.Component.Distance(target.Component)
	}

	// breadth first over super and interfaces
	type step struct {
		k *Class
		d int
	}
	queue := []step{{c, 0}}
	seen := map[*Class]bool{c: true}
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		if s.k == target {
			return s.d
		}
		next := append([]*Class{}, s.k.Interfaces...)
		if s.k.Super != nil {
			next = append(next, s.k.Super)
		}
		for _, n := range next {
			if !seen[n] {
				seen[n] = true
				queue = append(queue, step{n, s.d + 1})
			}
		}
	}
	// interfaces are Objects too
	if target.Name == "java/lang/Object" {
		return 1
	}
	return -1
}

func (c *Class) trace(mark func(*JObject)) {
	for _, v := range c.statics {
		if v.Ref != nil {
			mark(v.Ref)
		}
	}
	if c.mirror != nil {
		mark(c.mirror)
	}
}

func (c *Class) String() string { return c.JavaName() }

// ClassSpec describes a class implemented in Go.
type ClassSpec struct {
	Name       string
	Super      string
	Interfaces []string
	Flags      uint16
	Fields     []FieldSpec
	Methods    []MethodSpec
	// Init runs once, as the static initializer.
	Init func(v *VM, c *Class) error
}

// FieldSpec declares a field of a ClassSpec.
type FieldSpec struct {
	Name       string
	Descriptor string
	Flags      uint16
}

// MethodSpec declares a method of a ClassSpec. A nil Fn declares an
// abstract method.
type MethodSpec struct {
	Name       string
	Descriptor string
	Flags      uint16
	Fn         NativeFunc
}
