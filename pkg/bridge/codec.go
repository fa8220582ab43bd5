package bridge

import (
	"math"
	"unicode/utf16"

	"github.com/daimatz/jbridge/pkg/errors"
	"github.com/daimatz/jbridge/pkg/vm"
)

// Void is the host value of a guest method that returns nothing.
type Void struct{}

func (Void) String() string { return "void" }

// Codec converts host scalars to guest primitives.
type Codec struct {
	// Wrap truncates out-of-range integers with two's-complement
	// wraparound instead of failing.
	Wrap bool
}

type intRange struct {
	min, max int64
}

var intRanges = map[vm.Kind]intRange{
	vm.KindByte:  {math.MinInt8, math.MaxInt8},
	vm.KindShort: {math.MinInt16, math.MaxInt16},
	vm.KindChar:  {0, math.MaxUint16},
	vm.KindInt:   {math.MinInt32, math.MaxInt32},
	vm.KindLong:  {math.MinInt64, math.MaxInt64},
}

// hostInt extracts a host integer. big is set for unsigned values above
// MaxInt64.
func hostInt(host any) (n int64, big bool, ok bool) {
	switch x := host.(type) {
	case int:
		return int64(x), false, true
	case int8:
		return int64(x), false, true
	case int16:
		return int64(x), false, true
	case int32:
		return int64(x), false, true
	case int64:
		return x, false, true
	case uint:
		return int64(x), uint64(x) > math.MaxInt64, true
	case uint8:
		return int64(x), false, true
	case uint16:
		return int64(x), false, true
	case uint32:
		return int64(x), false, true
	case uint64:
		return int64(x), x > math.MaxInt64, true
	case uintptr:
		return int64(x), uint64(x) > math.MaxInt64, true
	}
	return 0, false, false
}

func hostFloat(host any) (float64, bool) {
	switch x := host.(type) {
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

// charOf returns the UTF-16 code unit of a one-character string.
func charOf(s string) (uint16, bool) {
	units := utf16.Encode([]rune(s))
	if len(units) != 1 {
		return 0, false
	}
	return units[0], true
}

// Encode converts host to a guest primitive of the given kind.
func (c Codec) Encode(host any, kind vm.Kind) (vm.JValue, error) {
	mismatch := func() (vm.JValue, error) {
		return vm.JValue{}, errors.TypeMismatch("encode", host, "%T cannot be encoded as %s", host, kind)
	}
	switch kind {
	case vm.KindBoolean:
		b, ok := host.(bool)
		if !ok {
			return mismatch()
		}
		return vm.JBoolean(b), nil

	case vm.KindByte, vm.KindShort, vm.KindChar, vm.KindInt, vm.KindLong:
		n, big, ok := hostInt(host)
		if !ok && kind == vm.KindChar {
			if s, isString := host.(string); isString {
				u, one := charOf(s)
				if !one {
					return vm.JValue{}, errors.TypeMismatch("encode", host, "%q is not a single UTF-16 character", s)
				}
				return vm.JChar(u), nil
			}
		}
		if !ok {
			return mismatch()
		}
		r := intRanges[kind]
		if (big || n < r.min || n > r.max) && !c.Wrap {
			return vm.JValue{}, errors.TypeMismatch("encode", host, "%v is out of range for %s", host, kind)
		}
		return truncate(n, kind), nil

	case vm.KindFloat, vm.KindDouble:
		f, ok := hostFloat(host)
		if !ok {
			n, big, isInt := hostInt(host)
			if !isInt {
				return mismatch()
			}
			f = float64(n)
			if big {
				f = float64(uint64(n))
			}
		}
		if kind == vm.KindFloat {
			return vm.JFloat(float32(f)), nil
		}
		return vm.JDouble(f), nil
	}
	return mismatch()
}

func truncate(n int64, kind vm.Kind) vm.JValue {
	switch kind {
	case vm.KindByte:
		return vm.JByte(int8(n))
	case vm.KindShort:
		return vm.JShort(int16(n))
	case vm.KindChar:
		return vm.JChar(uint16(n))
	case vm.KindInt:
		return vm.JInt(int32(n))
	}
	return vm.JLong(n)
}

// Decode converts a guest primitive to its host form: bool, int64,
// float64, a one-character string for char, or Void.
func Decode(v vm.JValue) (any, error) {
	switch v.Kind {
	case vm.KindVoid:
		return Void{}, nil
	case vm.KindBoolean:
		return v.I != 0, nil
	case vm.KindByte:
		return int64(int8(v.I)), nil
	case vm.KindShort:
		return int64(int16(v.I)), nil
	case vm.KindInt:
		return int64(int32(v.I)), nil
	case vm.KindLong:
		return v.I, nil
	case vm.KindChar:
		return string(utf16.Decode([]uint16{uint16(v.I)})), nil
	case vm.KindFloat:
		return float64(float32(v.F)), nil
	case vm.KindDouble:
		return v.F, nil
	}
	return nil, errors.TypeMismatch("decode", v, "%s is not a primitive", v.Kind)
}
