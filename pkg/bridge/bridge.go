// Package bridge exposes objects living in a guest VM to Go code.
//
// Guest values cross into Go as plain scalars (bool, int64, float64),
// host text for guest strings, or proxies: *Array, *Boxed, *Object and
// *Class. Every proxy pins its guest object until it is closed or
// collected, so the guest collector never reclaims an object Go code can
// still reach.
package bridge

import (
	stderrors "errors"

	"go.uber.org/zap"

	"github.com/daimatz/jbridge/pkg/classfile"
	"github.com/daimatz/jbridge/pkg/errors"
	"github.com/daimatz/jbridge/pkg/vm"
)

// Bridge is a host session on a guest VM.
type Bridge struct {
	vm    *vm.VM
	pins  *pinTable
	codec Codec
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithIntegerWrap makes out-of-range integer arguments wrap around
// instead of failing with a type mismatch.
func WithIntegerWrap(wrap bool) Option {
	return func(b *Bridge) {
		b.codec.Wrap = wrap
	}
}

// New creates a bridge into v.
func New(v *vm.VM, opts ...Option) *Bridge {
	b := &Bridge{vm: v, pins: newPinTable(v)}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// VM returns the guest runtime.
func (b *Bridge) VM() *vm.VM { return b.vm }

// Codec returns the codec used for arguments.
func (b *Bridge) Codec() Codec { return b.codec }

// Stats reports the pin table.
func (b *Bridge) Stats() Stats { return b.pins.stats() }

// FindClass returns the handle of a class by its fully qualified name,
// dotted or slashed.
func (b *Bridge) FindClass(name string) (*Class, error) {
	c, err := b.vm.FindClass(name)
	if err != nil {
		if stderrors.Is(err, errors.ErrClassNotFound) {
			return nil, err
		}
		return nil, b.fault("find-class", err)
	}
	return b.classHandle(c)
}

// NewArray allocates a zeroed guest array of n elements of the type
// described by desc, such as "I" or "Ljava/lang/String;".
func (b *Bridge) NewArray(desc string, n int) (*Array, error) {
	elem, err := classfile.ParseFieldType(desc)
	if err != nil {
		return nil, errors.TypeMismatch("array.new", desc, "bad element descriptor: %v", err)
	}
	r, err := b.vm.NewArray(elem, n)
	if err != nil {
		return nil, b.fault("array.new", err)
	}
	c, err := b.vm.ClassOf(r)
	if err != nil {
		b.drop(r)
		return nil, err
	}
	return b.newArray(r, c)
}

func (b *Bridge) classHandle(c *vm.Class) (*Class, error) {
	r, err := b.vm.Mirror(c)
	if err != nil {
		return nil, b.fault("class", err)
	}
	mc, err := b.vm.ClassOf(r)
	if err != nil {
		b.drop(r)
		return nil, err
	}
	return &Class{proxy: b.newProxy(r, mc, ProxyClass), typ: c}, nil
}

// fault converts an exception escaping a guest call into a GuestFault
// carrying a proxy of the exception object. Other errors pass through.
func (b *Bridge) fault(op string, err error) error {
	var ge *vm.GuestException
	if !stderrors.As(err, &ge) {
		return err
	}
	var exc any
	if c, cerr := b.vm.ClassOf(ge.Ref); cerr == nil {
		exc = &Object{proxy: b.newProxy(ge.Ref, c, ProxyGeneric)}
	} else {
		b.drop(ge.Ref)
	}
	Logger().Debug("guest fault",
		zap.String("op", op),
		zap.String("class", ge.ClassName),
		zap.String("message", ge.Message))
	return errors.GuestFault(op, ge.ClassName, ge.Message, exc, err)
}

// drop releases a transient guest pin the host API took for us.
func (b *Bridge) drop(r vm.Ref) {
	if err := b.vm.Unpin(r); err != nil {
		Logger().Warn("dropping transient pin", zap.Uint64("ref", uint64(r)), zap.Error(err))
	}
}
