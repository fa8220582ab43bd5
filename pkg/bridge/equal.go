package bridge

import (
	"reflect"

	"github.com/daimatz/jbridge/pkg/vm"
)

// Same reports whether a and b are proxies of the identical guest object.
// Distinct proxies of one reference are the same; non-proxies never are.
func Same(a, b any) bool {
	pa, pb := proxyOf(a), proxyOf(b)
	return pa != nil && pb != nil && pa.ref == pb.ref
}

// Equal reports whether the guest considers a and b equal. Identical
// objects are always equal. Objects and boxes delegate to the guest's
// equals; arrays and class handles compare by identity only. Host scalars
// and text compared with a proxy are converted to guest values first.
func Equal(a, b any) (bool, error) {
	if Same(a, b) {
		return true, nil
	}
	pa, pb := proxyOf(a), proxyOf(b)
	if pa == nil && pb != nil {
		return Equal(b, a)
	}
	if pa == nil {
		return hostEqual(a, b), nil
	}
	switch x := a.(type) {
	case *Object:
		return x.equals(vm.KindVoid, b)
	case *Boxed:
		return x.equals(x.kind, b)
	}
	return false, nil
}

func hostEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	if !reflect.TypeOf(a).Comparable() {
		return false
	}
	return a == b
}

// equals calls the guest equals(Object) with other. A host scalar is boxed
// as kind when it fits, which lets a boxed Integer equal a Go int.
func (o *Object) equals(kind vm.Kind, other any) (bool, error) {
	var eq bool
	err := o.with("equals", func(r vm.Ref) error {
		arg, temp, ok := o.b.equalsArgument(kind, other)
		if !ok {
			return nil
		}
		if temp != 0 {
			defer o.b.drop(temp)
		}
		m := o.class.LookupMethod("equals", "(Ljava/lang/Object;)Z")
		res, err := o.b.vm.Invoke(r, m, []vm.JValue{arg})
		if err != nil {
			return o.b.fault("equals", err)
		}
		eq = res.I != 0
		return nil
	})
	return eq, err
}

// equalsArgument converts other to a reference for equals. ok is false for
// host values that have no guest counterpart.
func (b *Bridge) equalsArgument(kind vm.Kind, other any) (arg vm.JValue, temp vm.Ref, ok bool) {
	if p := proxyOf(other); p != nil {
		if p.closed.Load() {
			return vm.JValue{}, 0, false
		}
		return vm.JRef(p.ref), 0, true
	}
	switch x := other.(type) {
	case nil:
		return vm.JNull(), 0, true
	case string:
		r, err := b.vm.NewString(x)
		return vm.JRef(r), r, err == nil
	}
	var codec Codec
	prim, err := codec.Encode(other, kind)
	if err != nil {
		hk, isScalar := hostKind(other)
		if !isScalar {
			return vm.JValue{}, 0, false
		}
		if prim, err = codec.Encode(other, hk); err != nil {
			return vm.JValue{}, 0, false
		}
	}
	r, err := b.vm.Box(prim)
	return vm.JRef(r), r, err == nil
}
