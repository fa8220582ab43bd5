package vm

import (
	"github.com/daimatz/jbridge/pkg/classfile"
)

// Kind is the declared type of a guest value.
type Kind uint8

const (
	KindVoid Kind = iota
	KindBoolean
	KindByte
	KindChar
	KindShort
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindReference
)

var kindNames = [...]string{
	KindVoid:      "void",
	KindBoolean:   "boolean",
	KindByte:      "byte",
	KindChar:      "char",
	KindShort:     "short",
	KindInt:       "int",
	KindLong:      "long",
	KindFloat:     "float",
	KindDouble:    "double",
	KindReference: "reference",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// IsPrimitive reports whether k is one of the eight primitive kinds.
func (k Kind) IsPrimitive() bool {
	return k >= KindBoolean && k <= KindDouble
}

// IsWide reports whether values of kind k occupy two local variable slots.
func (k Kind) IsWide() bool {
	return k == KindLong || k == KindDouble
}

// computational maps a declared kind onto the kind used on the operand stack.
func (k Kind) computational() Kind {
	switch k {
	case KindBoolean, KindByte, KindChar, KindShort:
		return KindInt
	}
	return k
}

// KindOf returns the kind of values of type t.
func KindOf(t classfile.FieldType) Kind {
	if t.IsReference() {
		return KindReference
	}
	return kindOfBase(t.Base)
}

func kindOfBase(b byte) Kind {
	switch b {
	case 'Z':
		return KindBoolean
	case 'B':
		return KindByte
	case 'C':
		return KindChar
	case 'S':
		return KindShort
	case 'I':
		return KindInt
	case 'J':
		return KindLong
	case 'F':
		return KindFloat
	case 'D':
		return KindDouble
	case 'V':
		return KindVoid
	}
	return KindReference
}

// Value is a value on the operand stack, in a local variable, a field or
// an array element. Sub-int kinds are held as KindInt.
type Value struct {
	Kind Kind
	I    int64
	F    float64
	Ref  *JObject
}

// IntValue creates an integer Value.
func IntValue(v int32) Value {
	return Value{Kind: KindInt, I: int64(v)}
}

// LongValue creates a long Value.
func LongValue(v int64) Value {
	return Value{Kind: KindLong, I: v}
}

// FloatValue creates a float Value.
func FloatValue(v float32) Value {
	return Value{Kind: KindFloat, F: float64(v)}
}

// DoubleValue creates a double Value.
func DoubleValue(v float64) Value {
	return Value{Kind: KindDouble, F: v}
}

// RefValue creates a reference Value. A nil object is the null reference.
func RefValue(obj *JObject) Value {
	return Value{Kind: KindReference, Ref: obj}
}

// NullValue creates a null reference Value.
func NullValue() Value {
	return Value{Kind: KindReference}
}

func (v Value) Int() int32       { return int32(v.I) }
func (v Value) Long() int64      { return v.I }
func (v Value) Float() float32   { return float32(v.F) }
func (v Value) Double() float64  { return v.F }
func (v Value) IsNull() bool     { return v.Kind == KindReference && v.Ref == nil }
func (v Value) Bool() bool       { return v.I != 0 }
func (v Value) Object() *JObject { return v.Ref }

// zeroValue returns the default value of a field or array element of kind k.
func zeroValue(k Kind) Value {
	switch k.computational() {
	case KindInt:
		return IntValue(0)
	case KindLong:
		return LongValue(0)
	case KindFloat:
		return FloatValue(0)
	case KindDouble:
		return DoubleValue(0)
	}
	return NullValue()
}

// narrow truncates an int value to the width of a sub-int kind, the way
// stores into fields and arrays of that kind do.
func narrow(k Kind, v Value) Value {
	switch k {
	case KindBoolean:
		return IntValue(v.Int() & 1)
	case KindByte:
		return IntValue(int32(int8(v.I)))
	case KindChar:
		return IntValue(int32(uint16(v.I)))
	case KindShort:
		return IntValue(int32(int16(v.I)))
	}
	return v
}
