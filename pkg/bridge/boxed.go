package bridge

import (
	"fmt"

	"github.com/daimatz/jbridge/pkg/vm"
)

// Boxed is a proxy for a primitive wrapper such as java.lang.Long. The
// generic Object operations work on it too.
type Boxed struct {
	Object
	kind vm.Kind
}

// Kind returns the primitive kind the wrapper holds.
func (x *Boxed) Kind() vm.Kind { return x.kind }

// Unwrap returns the wrapped primitive.
func (x *Boxed) Unwrap() vm.JValue {
	var val vm.JValue
	err := x.with("unwrap", func(r vm.Ref) error {
		var err error
		val, err = x.b.vm.Unbox(r)
		return err
	})
	if err != nil {
		// the pin keeps the wrapper alive, so this is a runtime bug
		panic(fmt.Sprintf("bridge: unwrapping %s: %v", x.describe(), err))
	}
	return val
}

// Value returns the wrapped primitive decoded to a host scalar.
func (x *Boxed) Value() any {
	v, _ := Decode(x.Unwrap())
	return v
}

// Int64 returns the value of an integral or char wrapper.
func (x *Boxed) Int64() (int64, bool) {
	if !isIntegral(x.kind) {
		return 0, false
	}
	return x.Unwrap().I, true
}

// Float64 returns the value of any numeric wrapper as a float64.
func (x *Boxed) Float64() (float64, bool) {
	switch {
	case x.kind == vm.KindFloat || x.kind == vm.KindDouble:
		return x.Unwrap().F, true
	case isIntegral(x.kind):
		return float64(x.Unwrap().I), true
	}
	return 0, false
}

// Bool returns the value of a java.lang.Boolean.
func (x *Boxed) Bool() (bool, bool) {
	if x.kind != vm.KindBoolean {
		return false, false
	}
	return x.Unwrap().I != 0, true
}
