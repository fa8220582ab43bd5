package classfile

import "fmt"

// Builder assembles a ClassFile in memory. It is used to define classes
// without a compiler, mostly from tests and tooling.
type Builder struct {
	cf    ClassFile
	index map[string]uint16
}

// NewBuilder starts a class with the given internal name and super class.
// An empty super names a root class.
func NewBuilder(name, super string) *Builder {
	b := &Builder{
		cf: ClassFile{
			MajorVersion: 61,
			ConstantPool: []ConstantPoolEntry{nil},
			AccessFlags:  AccPublic | AccSuper,
		},
		index: make(map[string]uint16),
	}
	b.cf.ThisClass = b.Class(name)
	if super != "" {
		b.cf.SuperClass = b.Class(super)
	}
	b.Utf8("Code")
	b.Utf8("ConstantValue")
	return b
}

// Flags replaces the class access flags.
func (b *Builder) Flags(flags uint16) *Builder {
	b.cf.AccessFlags = flags
	return b
}

// Implements adds direct super interfaces.
func (b *Builder) Implements(names ...string) *Builder {
	for _, n := range names {
		b.cf.Interfaces = append(b.cf.Interfaces, b.Class(n))
	}
	return b
}

func (b *Builder) add(key string, e ConstantPoolEntry, wide bool) uint16 {
	if idx, ok := b.index[key]; ok {
		return idx
	}
	idx := uint16(len(b.cf.ConstantPool))
	b.cf.ConstantPool = append(b.cf.ConstantPool, e)
	if wide {
		b.cf.ConstantPool = append(b.cf.ConstantPool, nil)
	}
	b.index[key] = idx
	return idx
}

// Utf8 interns a CONSTANT_Utf8 entry.
func (b *Builder) Utf8(s string) uint16 {
	return b.add("U"+s, &ConstantUtf8{Value: s}, false)
}

// Class interns a CONSTANT_Class entry.
func (b *Builder) Class(name string) uint16 {
	n := b.Utf8(name)
	return b.add("C"+name, &ConstantClass{NameIndex: n}, false)
}

// String interns a CONSTANT_String entry.
func (b *Builder) String(s string) uint16 {
	n := b.Utf8(s)
	return b.add("S"+s, &ConstantString{StringIndex: n}, false)
}

// Integer interns a CONSTANT_Integer entry.
func (b *Builder) Integer(v int32) uint16 {
	return b.add(fmt.Sprintf("I%d", v), &ConstantInteger{Value: v}, false)
}

// Float interns a CONSTANT_Float entry.
func (b *Builder) Float(v float32) uint16 {
	return b.add(fmt.Sprintf("F%x", v), &ConstantFloat{Value: v}, false)
}

// Long interns a CONSTANT_Long entry, which occupies two slots.
func (b *Builder) Long(v int64) uint16 {
	return b.add(fmt.Sprintf("J%d", v), &ConstantLong{Value: v}, true)
}

// Double interns a CONSTANT_Double entry, which occupies two slots.
func (b *Builder) Double(v float64) uint16 {
	return b.add(fmt.Sprintf("D%x", v), &ConstantDouble{Value: v}, true)
}

// NameAndType interns a CONSTANT_NameAndType entry.
func (b *Builder) NameAndType(name, desc string) uint16 {
	n, d := b.Utf8(name), b.Utf8(desc)
	return b.add("N"+name+":"+desc, &ConstantNameAndType{NameIndex: n, DescriptorIndex: d}, false)
}

func (b *Builder) member(tag uint8, class, name, desc string) uint16 {
	c, nt := b.Class(class), b.NameAndType(name, desc)
	key := fmt.Sprintf("M%d %s.%s:%s", tag, class, name, desc)
	return b.add(key, &ConstantMemberref{tag: tag, ClassIndex: c, NameAndTypeIndex: nt}, false)
}

// Methodref interns a CONSTANT_Methodref entry.
func (b *Builder) Methodref(class, name, desc string) uint16 {
	return b.member(TagMethodref, class, name, desc)
}

// InterfaceMethodref interns a CONSTANT_InterfaceMethodref entry.
func (b *Builder) InterfaceMethodref(class, name, desc string) uint16 {
	return b.member(TagInterfaceMethodref, class, name, desc)
}

// Fieldref interns a CONSTANT_Fieldref entry.
func (b *Builder) Fieldref(class, name, desc string) uint16 {
	return b.member(TagFieldref, class, name, desc)
}

// Field declares a field.
func (b *Builder) Field(flags uint16, name, desc string) *Builder {
	b.Utf8(name)
	b.Utf8(desc)
	b.cf.Fields = append(b.cf.Fields, FieldInfo{AccessFlags: flags, Name: name, Descriptor: desc})
	return b
}

// ConstField declares a static final field initialized from the constant
// pool entry at value.
func (b *Builder) ConstField(flags uint16, name, desc string, value uint16) *Builder {
	b.Field(flags|AccStatic|AccFinal, name, desc)
	b.cf.Fields[len(b.cf.Fields)-1].ConstantValue = value
	return b
}

// Method declares a method. Abstract and native methods pass nil code.
func (b *Builder) Method(flags uint16, name, desc string, maxStack, maxLocals uint16, code []byte, handlers ...ExceptionHandler) *Builder {
	b.Utf8(name)
	b.Utf8(desc)
	m := MethodInfo{AccessFlags: flags, Name: name, Descriptor: desc}
	if code != nil {
		m.Code = &CodeAttribute{
			MaxStack:          maxStack,
			MaxLocals:         maxLocals,
			Code:              code,
			ExceptionHandlers: handlers,
		}
	}
	b.cf.Methods = append(b.cf.Methods, m)
	return b
}

// Build returns the assembled class. The builder must not be used afterwards.
func (b *Builder) Build() *ClassFile {
	cf := b.cf
	return &cf
}
