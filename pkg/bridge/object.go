package bridge

import (
	"github.com/daimatz/jbridge/pkg/errors"
	"github.com/daimatz/jbridge/pkg/vm"
)

// Object is a proxy for a guest object. Methods and public fields are
// reached reflectively by name.
type Object struct {
	*proxy
}

// invoke resolves name among methods and calls it on recv.
func (b *Bridge) invoke(recv vm.Ref, c *vm.Class, name string, methods []*vm.Method, args []any) (any, error) {
	cl, err := b.resolve(c, name, methods, args)
	if err != nil {
		return nil, err
	}
	defer cl.release(b)

	var res vm.JValue
	if cl.method.IsStatic() {
		res, err = b.vm.InvokeStatic(cl.method, cl.args)
	} else if cl.method.IsConstructor() {
		var r vm.Ref
		r, err = b.vm.NewObject(c, cl.method, cl.args)
		res = vm.JRef(r)
	} else {
		res, err = b.vm.Invoke(recv, cl.method, cl.args)
	}
	if err != nil {
		return nil, b.fault("invoke", err)
	}
	return b.wrap(res)
}

// Invoke calls the public method name, instance or static, choosing the
// overload that best fits args. Arguments may be host scalars, strings,
// nil or proxies.
func (o *Object) Invoke(name string, args ...any) (any, error) {
	var out any
	err := o.with("invoke", func(r vm.Ref) error {
		methods := append(o.class.MethodsNamed(name, false), o.class.MethodsNamed(name, true)...)
		var err error
		out, err = o.b.invoke(r, o.class, name, methods, args)
		return err
	})
	return out, err
}

func publicField(c *vm.Class, name string) (*vm.Field, error) {
	f := c.LookupField(name)
	if f == nil || !f.IsPublic() {
		return nil, errors.NoSuchField(c.JavaName(), name)
	}
	return f, nil
}

// Field reads the public field name.
func (o *Object) Field(name string) (any, error) {
	var out any
	err := o.with("field", func(r vm.Ref) error {
		f, err := publicField(o.class, name)
		if err != nil {
			return err
		}
		var res vm.JValue
		if f.IsStatic() {
			res, err = o.b.vm.GetStatic(f)
		} else {
			res, err = o.b.vm.GetField(r, f)
		}
		if err != nil {
			return o.b.fault("field", err)
		}
		out, err = o.b.wrap(res)
		return err
	})
	return out, err
}

// SetField writes the public field name.
func (o *Object) SetField(name string, v any) error {
	return o.with("field.set", func(r vm.Ref) error {
		f, err := publicField(o.class, name)
		if err != nil {
			return err
		}
		val, temp, err := o.b.convert("field.set", v, f.Type)
		if err != nil {
			return err
		}
		if temp != 0 {
			defer o.b.drop(temp)
		}
		if f.IsStatic() {
			err = o.b.vm.SetStatic(f, val)
		} else {
			err = o.b.vm.SetField(r, f, val)
		}
		if err != nil {
			return o.b.fault("field.set", err)
		}
		return nil
	})
}

// Text returns the result of the object's toString.
func (o *Object) Text() (string, error) {
	var s string
	err := o.with("text", func(r vm.Ref) error {
		var err error
		s, err = o.b.text(r, o.class)
		return err
	})
	return s, err
}

func (b *Bridge) text(r vm.Ref, c *vm.Class) (string, error) {
	m := c.LookupMethod("toString", "()Ljava/lang/String;")
	if m == nil {
		return "", errors.NoSuchMethod(c.JavaName(), "toString", 0)
	}
	res, err := b.vm.Invoke(r, m, nil)
	if err != nil {
		return "", b.fault("text", err)
	}
	if res.IsNull() {
		return "null", nil
	}
	defer b.drop(res.Ref)
	return b.vm.StringValue(res.Ref)
}

// String returns Text, or the class name and reference when toString
// fails.
func (o *Object) String() string {
	s, err := o.Text()
	if err != nil {
		return o.describe()
	}
	return s
}

// Class returns the handle of the object's class.
func (o *Object) Class() (*Class, error) {
	var c *Class
	err := o.with("class", func(vm.Ref) error {
		var err error
		c, err = o.b.classHandle(o.class)
		return err
	})
	return c, err
}

// ClassName returns the dotted name of the object's class.
func (o *Object) ClassName() string {
	return o.class.JavaName()
}
