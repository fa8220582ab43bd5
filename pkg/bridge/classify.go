package bridge

import (
	"github.com/daimatz/jbridge/pkg/vm"
)

var objectKinds = map[ProxyKind]vm.ObjectKind{
	ProxyGeneric: vm.ObjectInstance,
	ProxyArray:   vm.ObjectArray,
	ProxyBoxed:   vm.ObjectBox,
	ProxyClass:   vm.ObjectClass,
}

// classify reports how the guest object r is exposed. A proxy already
// alive for r answers without a trip into the guest.
func (b *Bridge) classify(r vm.Ref) (vm.ObjectKind, *vm.Class, error) {
	if p := b.pins.live(r); p != nil {
		return objectKinds[p.kind], p.class, nil
	}
	return b.vm.Describe(r)
}

// wrap converts a value returned by the guest into its host form.
// References arrive pinned once for the caller: proxies adopt that pin,
// strings are decoded and the pin dropped.
func (b *Bridge) wrap(val vm.JValue) (any, error) {
	if val.Kind != vm.KindReference {
		return Decode(val)
	}
	if val.Ref == 0 {
		return nil, nil
	}
	kind, c, err := b.classify(val.Ref)
	if err != nil {
		b.drop(val.Ref)
		return nil, err
	}
	switch kind {
	case vm.ObjectString:
		s, err := b.vm.StringValue(val.Ref)
		b.drop(val.Ref)
		return s, err
	case vm.ObjectArray:
		return b.newArray(val.Ref, c)
	case vm.ObjectBox:
		k, _ := vm.BoxKind(c)
		return &Boxed{Object: Object{proxy: b.newProxy(val.Ref, c, ProxyBoxed)}, kind: k}, nil
	case vm.ObjectClass:
		typ, err := b.vm.MirrorClass(val.Ref)
		if err != nil {
			b.drop(val.Ref)
			return nil, err
		}
		return &Class{proxy: b.newProxy(val.Ref, c, ProxyClass), typ: typ}, nil
	}
	return &Object{proxy: b.newProxy(val.Ref, c, ProxyGeneric)}, nil
}

// proxyOf returns the proxy state of a host value, or nil when v is not a
// proxy.
func proxyOf(v any) *proxy {
	switch x := v.(type) {
	case *Object:
		if x != nil {
			return x.proxy
		}
	case *Boxed:
		if x != nil {
			return x.proxy
		}
	case *Array:
		if x != nil {
			return x.proxy
		}
	case *Class:
		if x != nil {
			return x.proxy
		}
	}
	return nil
}
