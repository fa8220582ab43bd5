package vm

import "fmt"

// Ref identifies a guest object across the host boundary. Refs are never
// reused; 0 is the null reference.
type Ref uint64

// JValue is a tagged guest value as seen by the host. Sub-int kinds keep
// their declared kind, with the payload in I.
type JValue struct {
	Kind Kind
	I    int64
	F    float64
	Ref  Ref
}

func (v JValue) String() string {
	switch v.Kind {
	case KindVoid:
		return "void"
	case KindFloat, KindDouble:
		return fmt.Sprintf("%s(%v)", v.Kind, v.F)
	case KindReference:
		if v.Ref == 0 {
			return "null"
		}
		return fmt.Sprintf("ref(%d)", v.Ref)
	}
	return fmt.Sprintf("%s(%d)", v.Kind, v.I)
}

// IsNull reports whether v is the null reference.
func (v JValue) IsNull() bool {
	return v.Kind == KindReference && v.Ref == 0
}

// Constructors for host values.
func JBoolean(b bool) JValue {
	if b {
		return JValue{Kind: KindBoolean, I: 1}
	}
	return JValue{Kind: KindBoolean}
}
func JByte(v int8) JValue     { return JValue{Kind: KindByte, I: int64(v)} }
func JChar(v uint16) JValue   { return JValue{Kind: KindChar, I: int64(v)} }
func JShort(v int16) JValue   { return JValue{Kind: KindShort, I: int64(v)} }
func JInt(v int32) JValue     { return JValue{Kind: KindInt, I: int64(v)} }
func JLong(v int64) JValue    { return JValue{Kind: KindLong, I: v} }
func JFloat(v float32) JValue { return JValue{Kind: KindFloat, F: float64(v)} }
func JDouble(v float64) JValue { return JValue{Kind: KindDouble, F: v} }
func JRef(r Ref) JValue        { return JValue{Kind: KindReference, Ref: r} }
func JNull() JValue            { return JValue{Kind: KindReference} }
func JVoid() JValue            { return JValue{} }
