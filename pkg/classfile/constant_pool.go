package classfile

import (
	"fmt"
	"math"
)

// Constant pool tags
const (
	TagUtf8               = 1
	TagInteger            = 3
	TagFloat              = 4
	TagLong               = 5
	TagDouble             = 6
	TagClass              = 7
	TagString             = 8
	TagFieldref           = 9
	TagMethodref          = 10
	TagInterfaceMethodref = 11
	TagNameAndType        = 12
	TagMethodHandle       = 15
	TagMethodType         = 16
	TagDynamic            = 17
	TagInvokeDynamic      = 18
)

// parseConstantPool reads constant_pool_count-1 entries from the reader.
// The returned slice is 1-indexed: index 0 is nil.
func parseConstantPool(r *reader, count uint16) ([]ConstantPoolEntry, error) {
	pool := make([]ConstantPoolEntry, count)

	for i := uint16(1); i < count; i++ {
		tag := r.u1()
		switch tag {
		case TagUtf8:
			length := r.u2()
			pool[i] = &ConstantUtf8{Value: decodeModifiedUTF8(r.bytes(int(length)))}
		case TagInteger:
			pool[i] = &ConstantInteger{Value: int32(r.u4())}
		case TagFloat:
			pool[i] = &ConstantFloat{Value: math.Float32frombits(r.u4())}
		case TagLong:
			pool[i] = &ConstantLong{Value: int64(r.u8())}
			i++ // long takes 2 slots
		case TagDouble:
			pool[i] = &ConstantDouble{Value: math.Float64frombits(r.u8())}
			i++ // double takes 2 slots
		case TagClass:
			pool[i] = &ConstantClass{NameIndex: r.u2()}
		case TagString:
			pool[i] = &ConstantString{StringIndex: r.u2()}
		case TagFieldref, TagMethodref, TagInterfaceMethodref:
			pool[i] = &ConstantMemberref{tag: tag, ClassIndex: r.u2(), NameAndTypeIndex: r.u2()}
		case TagNameAndType:
			pool[i] = &ConstantNameAndType{NameIndex: r.u2(), DescriptorIndex: r.u2()}
		case TagMethodHandle:
			// reference_kind (u1) + reference_index (u2)
			r.skip(3)
			pool[i] = &constantPlaceholder{tag: tag}
		case TagMethodType:
			r.skip(2)
			pool[i] = &constantPlaceholder{tag: tag}
		case TagDynamic, TagInvokeDynamic:
			// bootstrap_method_attr_index (u2) + name_and_type_index (u2)
			r.skip(4)
			pool[i] = &constantPlaceholder{tag: tag}
		default:
			if r.err != nil {
				return nil, fmt.Errorf("reading constant pool tag at index %d: %w", i, r.err)
			}
			return nil, fmt.Errorf("unknown constant pool tag %d at index %d", tag, i)
		}
		if r.err != nil {
			return nil, fmt.Errorf("reading constant pool entry %d (tag=%d): %w", i, tag, r.err)
		}
	}

	return pool, nil
}

// decodeModifiedUTF8 decodes the JVM's modified UTF-8. The two-byte
// encoding of U+0000 and surrogate pairs encoded as separate three-byte
// sequences are folded back into Go strings.
func decodeModifiedUTF8(b []byte) string {
	units := make([]uint16, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c < 0x80:
			units = append(units, uint16(c))
			i++
		case c&0xE0 == 0xC0 && i+1 < len(b):
			units = append(units, uint16(c&0x1F)<<6|uint16(b[i+1]&0x3F))
			i += 2
		case c&0xF0 == 0xE0 && i+2 < len(b):
			units = append(units, uint16(c&0x0F)<<12|uint16(b[i+1]&0x3F)<<6|uint16(b[i+2]&0x3F))
			i += 3
		default:
			units = append(units, 0xFFFD)
			i++
		}
	}
	return utf16ToString(units)
}

// constantPlaceholder is used for constant pool entries we don't fully parse.
type constantPlaceholder struct {
	tag uint8
}

func (c *constantPlaceholder) Tag() uint8 { return c.tag }

func entryAt(pool []ConstantPoolEntry, index uint16) (ConstantPoolEntry, error) {
	if int(index) >= len(pool) || pool[index] == nil {
		return nil, fmt.Errorf("invalid constant pool index %d", index)
	}
	return pool[index], nil
}

// GetUtf8 returns the Utf8 string at the given constant pool index.
func GetUtf8(pool []ConstantPoolEntry, index uint16) (string, error) {
	e, err := entryAt(pool, index)
	if err != nil {
		return "", err
	}
	utf8, ok := e.(*ConstantUtf8)
	if !ok {
		return "", fmt.Errorf("constant pool index %d is not Utf8 (tag=%d)", index, e.Tag())
	}
	return utf8.Value, nil
}

// GetClassName returns the class name referenced by a CONSTANT_Class entry.
func GetClassName(pool []ConstantPoolEntry, classIndex uint16) (string, error) {
	e, err := entryAt(pool, classIndex)
	if err != nil {
		return "", err
	}
	class, ok := e.(*ConstantClass)
	if !ok {
		return "", fmt.Errorf("constant pool index %d is not Class", classIndex)
	}
	return GetUtf8(pool, class.NameIndex)
}

// MethodRefInfo holds resolved method reference info.
type MethodRefInfo struct {
	ClassName  string
	MethodName string
	Descriptor string
}

// FieldRefInfo holds resolved field reference info.
type FieldRefInfo struct {
	ClassName  string
	FieldName  string
	Descriptor string
}

func resolveMember(pool []ConstantPoolEntry, index uint16, tags ...uint8) (class, name, desc string, err error) {
	e, err := entryAt(pool, index)
	if err != nil {
		return "", "", "", err
	}
	ref, ok := e.(*ConstantMemberref)
	if !ok || !containsTag(tags, ref.tag) {
		return "", "", "", fmt.Errorf("constant pool index %d is not a member reference of tag %v (tag=%d)", index, tags, e.Tag())
	}

	class, err = GetClassName(pool, ref.ClassIndex)
	if err != nil {
		return "", "", "", fmt.Errorf("resolving member class: %w", err)
	}

	ne, err := entryAt(pool, ref.NameAndTypeIndex)
	if err != nil {
		return "", "", "", fmt.Errorf("invalid NameAndType index %d", ref.NameAndTypeIndex)
	}
	nat, ok := ne.(*ConstantNameAndType)
	if !ok {
		return "", "", "", fmt.Errorf("constant pool index %d is not NameAndType", ref.NameAndTypeIndex)
	}

	if name, err = GetUtf8(pool, nat.NameIndex); err != nil {
		return "", "", "", fmt.Errorf("resolving member name: %w", err)
	}
	if desc, err = GetUtf8(pool, nat.DescriptorIndex); err != nil {
		return "", "", "", fmt.Errorf("resolving member descriptor: %w", err)
	}
	return class, name, desc, nil
}

func containsTag(tags []uint8, tag uint8) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

// ResolveMethodref resolves a CONSTANT_Methodref or, since invokestatic and
// invokespecial may name interface methods, a CONSTANT_InterfaceMethodref.
func ResolveMethodref(pool []ConstantPoolEntry, index uint16) (*MethodRefInfo, error) {
	class, name, desc, err := resolveMember(pool, index, TagMethodref, TagInterfaceMethodref)
	if err != nil {
		return nil, err
	}
	return &MethodRefInfo{ClassName: class, MethodName: name, Descriptor: desc}, nil
}

// ResolveInterfaceMethodref resolves a CONSTANT_InterfaceMethodref entry.
func ResolveInterfaceMethodref(pool []ConstantPoolEntry, index uint16) (*MethodRefInfo, error) {
	class, name, desc, err := resolveMember(pool, index, TagInterfaceMethodref)
	if err != nil {
		return nil, err
	}
	return &MethodRefInfo{ClassName: class, MethodName: name, Descriptor: desc}, nil
}

// ResolveFieldref resolves a CONSTANT_Fieldref entry.
func ResolveFieldref(pool []ConstantPoolEntry, index uint16) (*FieldRefInfo, error) {
	class, name, desc, err := resolveMember(pool, index, TagFieldref)
	if err != nil {
		return nil, err
	}
	return &FieldRefInfo{ClassName: class, FieldName: name, Descriptor: desc}, nil
}
