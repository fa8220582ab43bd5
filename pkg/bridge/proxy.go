package bridge

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/daimatz/jbridge/pkg/errors"
	"github.com/daimatz/jbridge/pkg/vm"
)

// ProxyKind classifies a proxy.
type ProxyKind uint8

const (
	ProxyGeneric ProxyKind = iota
	ProxyArray
	ProxyBoxed
	ProxyClass
)

func (k ProxyKind) String() string {
	switch k {
	case ProxyArray:
		return "array"
	case ProxyBoxed:
		return "boxed"
	case ProxyClass:
		return "class"
	}
	return "generic"
}

// proxy is the state shared by every host wrapper of a guest reference.
// It holds one count in the pin table until it is closed or becomes
// unreachable.
type proxy struct {
	b     *Bridge
	ref   vm.Ref
	class *vm.Class
	kind  ProxyKind

	closed  atomic.Bool
	cleanup runtime.Cleanup
}

func (b *Bridge) newProxy(r vm.Ref, c *vm.Class, kind ProxyKind) *proxy {
	p := &proxy{b: b, ref: r, class: c, kind: kind}
	b.pins.acquire(p)
	return p
}

// Ref returns the guest reference the proxy pins.
func (p *proxy) Ref() vm.Ref { return p.ref }

// ProxyKind returns the proxy's classification.
func (p *proxy) ProxyKind() ProxyKind { return p.kind }

// Close releases the proxy's pin now instead of when the proxy is
// collected. Closing twice does nothing; any other use after Close panics.
func (p *proxy) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.cleanup.Stop()
	p.b.pins.release(p.ref)
	return nil
}

// with runs fn on the proxy's reference, keeping the proxy reachable
// until fn returns so its cleanup cannot drop the pin mid-call.
func (p *proxy) with(op string, fn func(r vm.Ref) error) error {
	if p.closed.Load() {
		panic(errors.DanglingReference(op, p.ref))
	}
	err := fn(p.ref)
	runtime.KeepAlive(p)
	return err
}

func (p *proxy) describe() string {
	return fmt.Sprintf("%s@%d", p.class.JavaName(), p.ref)
}
