package bridge

import (
	"iter"
	"strconv"
	"strings"

	"github.com/daimatz/jbridge/pkg/classfile"
	"github.com/daimatz/jbridge/pkg/errors"
	"github.com/daimatz/jbridge/pkg/vm"
)

// Array is a proxy for a guest array. Reads and writes go to the guest
// array itself; nothing is copied.
type Array struct {
	*proxy
	elem classfile.FieldType
	n    int
}

func (b *Bridge) newArray(r vm.Ref, c *vm.Class) (*Array, error) {
	n, err := b.vm.ArrayLength(r)
	if err != nil {
		b.drop(r)
		return nil, err
	}
	return &Array{proxy: b.newProxy(r, c, ProxyArray), elem: c.Elem(), n: n}, nil
}

// Len returns the array length.
func (a *Array) Len() int { return a.n }

// ElementType returns the component type.
func (a *Array) ElementType() classfile.FieldType { return a.elem }

// Get returns element i: a scalar for primitive arrays, text for string
// elements, nil for null, and a proxy for anything else.
func (a *Array) Get(i int) (any, error) {
	if i < 0 || i >= a.n {
		return nil, errors.OutOfBounds("array.get", i, a.n)
	}
	var out any
	err := a.with("array.get", func(r vm.Ref) error {
		res, err := a.b.vm.ArrayGet(r, i)
		if err != nil {
			return a.b.fault("array.get", err)
		}
		out, err = a.b.wrap(res)
		return err
	})
	return out, err
}

// Set stores v at index i. Primitive arrays take scalars of a compatible
// kind; reference arrays take nil, text or proxies assignable to the
// component type.
func (a *Array) Set(i int, v any) error {
	if i < 0 || i >= a.n {
		return errors.OutOfBounds("array.set", i, a.n)
	}
	return a.with("array.set", func(r vm.Ref) error {
		val, temp, err := a.b.convert("array.set", v, a.elem)
		if err != nil {
			return err
		}
		if temp != 0 {
			defer a.b.drop(temp)
		}
		if err := a.b.vm.ArraySet(r, i, val); err != nil {
			return a.b.fault("array.set", err)
		}
		return nil
	})
}

// All iterates over the elements. Each pass reads the guest array afresh;
// iteration stops at the first element that cannot be read.
func (a *Array) All() iter.Seq2[int, any] {
	return func(yield func(int, any) bool) {
		for i := range a.n {
			v, err := a.Get(i)
			if err != nil || !yield(i, v) {
				return
			}
		}
	}
}

// Values reads every element.
func (a *Array) Values() ([]any, error) {
	out := make([]any, a.n)
	for i := range a.n {
		v, err := a.Get(i)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// hostText renders a decoded scalar or text element. Proxies are not
// text.
func hostText(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "null", true
	case string:
		return x, true
	case bool:
		return strconv.FormatBool(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), true
	}
	return "", false
}

// Join reads every element and concatenates their text with sep. Only
// scalar, text and null elements can be joined.
func (a *Array) Join(sep string) (string, error) {
	vals, err := a.Values()
	if err != nil {
		return "", err
	}
	parts := make([]string, len(vals))
	for i, v := range vals {
		s, ok := hostText(v)
		if !ok {
			closeAll(vals)
			return "", errors.TypeMismatch("array.join", v, "element %d is a %T, not text", i, v)
		}
		parts[i] = s
	}
	return strings.Join(parts, sep), nil
}

// String renders the decoded elements in brackets. Proxy elements show
// their class and reference.
func (a *Array) String() string {
	vals, err := a.Values()
	if err != nil {
		return a.describe()
	}
	defer closeAll(vals)
	parts := make([]string, len(vals))
	for i, v := range vals {
		if s, ok := hostText(v); ok {
			parts[i] = s
		} else if p := proxyOf(v); p != nil {
			parts[i] = p.describe()
		}
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func closeAll(vals []any) {
	for _, v := range vals {
		if p := proxyOf(v); p != nil {
			p.Close()
		}
	}
}
