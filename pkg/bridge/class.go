package bridge

import (
	"github.com/daimatz/jbridge/pkg/errors"
	"github.com/daimatz/jbridge/pkg/vm"
)

// Class is a handle on a guest type. It pins the type's java.lang.Class
// object, of which there is exactly one per type, so handles compare by
// reference however they were obtained.
type Class struct {
	*proxy
	typ *vm.Class
}

// Type returns the guest class the handle denotes.
func (c *Class) Type() *vm.Class { return c.typ }

// Name returns the dotted class name, as Class.getName reports it.
func (c *Class) Name() string { return c.typ.JavaName() }

func (c *Class) String() string {
	if c.typ.IsInterface() {
		return "interface " + c.Name()
	}
	return "class " + c.Name()
}

// Equal reports whether both handles denote the same type. It never calls
// the guest.
func (c *Class) Equal(o *Class) bool {
	return c != nil && o != nil && c.ref == o.ref
}

// New constructs an instance with the public constructor that best fits
// args.
func (c *Class) New(args ...any) (any, error) {
	var out any
	err := c.with("new", func(vm.Ref) error {
		var err error
		out, err = c.b.invoke(0, c.typ, "<init>", c.typ.Constructors(), args)
		return err
	})
	return out, err
}

// Invoke calls the public static method name. Names the type has no
// static method for are looked up on the java.lang.Class object itself,
// so getName and friends work on handles.
func (c *Class) Invoke(name string, args ...any) (any, error) {
	var out any
	err := c.with("invoke", func(r vm.Ref) error {
		var err error
		if methods := c.typ.MethodsNamed(name, true); len(methods) > 0 {
			out, err = c.b.invoke(0, c.typ, name, methods, args)
		} else {
			out, err = c.b.invoke(r, c.class, name, c.class.MethodsNamed(name, false), args)
		}
		return err
	})
	return out, err
}

func staticField(c *vm.Class, name string) (*vm.Field, error) {
	f, err := publicField(c, name)
	if err != nil {
		return nil, err
	}
	if !f.IsStatic() {
		return nil, errors.NoSuchField(c.JavaName(), name)
	}
	return f, nil
}

// Static reads the public static field name.
func (c *Class) Static(name string) (any, error) {
	var out any
	err := c.with("static", func(vm.Ref) error {
		f, err := staticField(c.typ, name)
		if err != nil {
			return err
		}
		res, err := c.b.vm.GetStatic(f)
		if err != nil {
			return c.b.fault("static", err)
		}
		out, err = c.b.wrap(res)
		return err
	})
	return out, err
}

// SetStatic writes the public static field name.
func (c *Class) SetStatic(name string, v any) error {
	return c.with("static.set", func(vm.Ref) error {
		f, err := staticField(c.typ, name)
		if err != nil {
			return err
		}
		val, temp, err := c.b.convert("static.set", v, f.Type)
		if err != nil {
			return err
		}
		if temp != 0 {
			defer c.b.drop(temp)
		}
		if err := c.b.vm.SetStatic(f, val); err != nil {
			return c.b.fault("static.set", err)
		}
		return nil
	})
}
