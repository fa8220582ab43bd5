package classfile

import (
	"fmt"
	"strings"
)

// FieldType is a parsed field descriptor such as "I", "Ljava/lang/String;"
// or "[[D".
type FieldType struct {
	// Base is the descriptor character of the innermost element type:
	// one of BCDFIJSZ, 'L' for classes, or 'V' for void returns.
	Base byte
	// ClassName is set when Base is 'L', in internal form (java/lang/String).
	ClassName string
	// Dims is the number of array dimensions.
	Dims int
}

// IsReference reports whether values of the type are object references.
func (t FieldType) IsReference() bool {
	return t.Dims > 0 || t.Base == 'L'
}

// IsArray reports whether the type is an array type.
func (t FieldType) IsArray() bool { return t.Dims > 0 }

// Elem returns the component type of an array type.
func (t FieldType) Elem() FieldType {
	if t.Dims == 0 {
		return t
	}
	t.Dims--
	return t
}

// ArrayOf returns the array type whose component is t.
func (t FieldType) ArrayOf() FieldType {
	t.Dims++
	return t
}

// String returns the descriptor form.
func (t FieldType) String() string {
	var b strings.Builder
	for i := 0; i < t.Dims; i++ {
		b.WriteByte('[')
	}
	b.WriteByte(t.Base)
	if t.Base == 'L' {
		b.WriteString(t.ClassName)
		b.WriteByte(';')
	}
	return b.String()
}

// InternalName returns the name the class loader uses for the type: the
// class name for plain classes and the descriptor for arrays.
func (t FieldType) InternalName() string {
	if t.Dims == 0 && t.Base == 'L' {
		return t.ClassName
	}
	return t.String()
}

var primitiveNames = map[byte]string{
	'Z': "boolean",
	'B': "byte",
	'C': "char",
	'S': "short",
	'I': "int",
	'J': "long",
	'F': "float",
	'D': "double",
	'V': "void",
}

// JavaName renders the type the way Java source spells it, e.g.
// "java.lang.String[]" or "int".
func (t FieldType) JavaName() string {
	var name string
	if t.Base == 'L' {
		name = strings.ReplaceAll(t.ClassName, "/", ".")
	} else {
		name = primitiveNames[t.Base]
	}
	return name + strings.Repeat("[]", t.Dims)
}

// ParseFieldType parses a complete field descriptor.
func ParseFieldType(desc string) (FieldType, error) {
	t, n, err := parseFieldType(desc, 0)
	if err != nil {
		return FieldType{}, err
	}
	if n != len(desc) {
		return FieldType{}, fmt.Errorf("trailing characters in field descriptor %q", desc)
	}
	return t, nil
}

// MustFieldType is ParseFieldType for descriptors known at compile time.
func MustFieldType(desc string) FieldType {
	t, err := ParseFieldType(desc)
	if err != nil {
		panic(err)
	}
	return t
}

func parseFieldType(desc string, i int) (FieldType, int, error) {
	var t FieldType
	for i < len(desc) && desc[i] == '[' {
		t.Dims++
		i++
	}
	if i >= len(desc) {
		return FieldType{}, i, fmt.Errorf("truncated descriptor %q", desc)
	}
	switch c := desc[i]; c {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
		t.Base = c
		return t, i + 1, nil
	case 'L':
		end := strings.IndexByte(desc[i:], ';')
		if end <= 1 {
			return FieldType{}, i, fmt.Errorf("unterminated class name in descriptor %q", desc)
		}
		t.Base = 'L'
		t.ClassName = desc[i+1 : i+end]
		return t, i + end + 1, nil
	default:
		return FieldType{}, i, fmt.Errorf("invalid type descriptor char '%c' in %s", c, desc)
	}
}

// ParseMethodDescriptor splits a method descriptor such as
// "(I[Ljava/lang/String;)V" into parameter and return types.
func ParseMethodDescriptor(desc string) ([]FieldType, FieldType, error) {
	if len(desc) < 3 || desc[0] != '(' {
		return nil, FieldType{}, fmt.Errorf("invalid method descriptor: %s", desc)
	}
	var params []FieldType
	i := 1
	for i < len(desc) && desc[i] != ')' {
		t, n, err := parseFieldType(desc, i)
		if err != nil {
			return nil, FieldType{}, err
		}
		params = append(params, t)
		i = n
	}
	if i >= len(desc) {
		return nil, FieldType{}, fmt.Errorf("invalid method descriptor: %s", desc)
	}
	i++ // ')'
	if desc[i:] == "V" {
		return params, FieldType{Base: 'V'}, nil
	}
	ret, err := ParseFieldType(desc[i:])
	if err != nil {
		return nil, FieldType{}, err
	}
	return params, ret, nil
}

// MethodDescriptor assembles a descriptor from parameter and return types.
func MethodDescriptor(params []FieldType, ret FieldType) string {
	var b strings.Builder
	b.WriteByte('(')
	for _, p := range params {
		b.WriteString(p.String())
	}
	b.WriteByte(')')
	b.WriteString(ret.String())
	return b.String()
}
