package classfile

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"unicode/utf16"
)

const classMagic = 0xCAFEBABE

// reader wraps a byte source and remembers the first error, so callers
// can read a run of fields and check once.
type reader struct {
	r   io.Reader
	buf [8]byte
	err error
}

func (r *reader) fill(n int) []byte {
	if r.err != nil {
		return r.buf[:n:n]
	}
	if _, err := io.ReadFull(r.r, r.buf[:n]); err != nil {
		r.err = err
	}
	return r.buf[:n]
}

func (r *reader) u1() uint8 {
	b := r.fill(1)
	if r.err != nil {
		return 0
	}
	return b[0]
}

func (r *reader) u2() uint16 {
	b := r.fill(2)
	if r.err != nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (r *reader) u4() uint32 {
	b := r.fill(4)
	if r.err != nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (r *reader) u8() uint64 {
	b := r.fill(8)
	if r.err != nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func (r *reader) bytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r.r, data); err != nil {
		r.err = err
		return nil
	}
	return data
}

func (r *reader) skip(n int) {
	if r.err != nil {
		return
	}
	if _, err := io.CopyN(io.Discard, r.r, int64(n)); err != nil {
		r.err = err
	}
}

func utf16ToString(units []uint16) string {
	return string(utf16.Decode(units))
}

// ParseFile opens and parses a .class file from the given path.
func ParseFile(path string) (*ClassFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(bufio.NewReader(f))
}

// ParseBytes parses an in-memory class file.
func ParseBytes(data []byte) (*ClassFile, error) {
	return Parse(bytes.NewReader(data))
}

// Parse reads a .class file from the given reader and returns a ClassFile.
func Parse(src io.Reader) (*ClassFile, error) {
	r := &reader{r: src}
	cf := &ClassFile{}

	magic := r.u4()
	if r.err != nil {
		return nil, fmt.Errorf("reading magic number: %w", r.err)
	}
	if magic != classMagic {
		return nil, fmt.Errorf("invalid magic number: 0x%X (expected 0xCAFEBABE)", magic)
	}

	cf.MinorVersion = r.u2()
	cf.MajorVersion = r.u2()
	cpCount := r.u2()
	if r.err != nil {
		return nil, fmt.Errorf("reading header: %w", r.err)
	}

	pool, err := parseConstantPool(r, cpCount)
	if err != nil {
		return nil, fmt.Errorf("parsing constant pool: %w", err)
	}
	cf.ConstantPool = pool

	cf.AccessFlags = r.u2()
	cf.ThisClass = r.u2()
	cf.SuperClass = r.u2()

	interfacesCount := r.u2()
	cf.Interfaces = make([]uint16, interfacesCount)
	for i := range cf.Interfaces {
		cf.Interfaces[i] = r.u2()
	}
	if r.err != nil {
		return nil, fmt.Errorf("reading class header: %w", r.err)
	}

	cf.Fields, err = parseFields(r, cf.ConstantPool)
	if err != nil {
		return nil, fmt.Errorf("parsing fields: %w", err)
	}

	cf.Methods, err = parseMethods(r, cf.ConstantPool)
	if err != nil {
		return nil, fmt.Errorf("parsing methods: %w", err)
	}

	// Class-level attributes (parse BootstrapMethods, skip others)
	attrs, err := parseAttributeInfos(r, cf.ConstantPool)
	if err != nil {
		return nil, fmt.Errorf("parsing class attributes: %w", err)
	}
	for _, attr := range attrs {
		if attr.Name == "BootstrapMethods" {
			cf.BootstrapMethods, err = parseBootstrapMethods(attr.Data)
			if err != nil {
				return nil, fmt.Errorf("parsing BootstrapMethods: %w", err)
			}
		}
	}

	return cf, nil
}

// memberHeader reads access_flags, name and descriptor shared by fields and methods.
func memberHeader(r *reader, pool []ConstantPoolEntry) (flags uint16, name, desc string, attrs []AttributeInfo, err error) {
	flags = r.u2()
	nameIndex := r.u2()
	descIndex := r.u2()
	if r.err != nil {
		return 0, "", "", nil, r.err
	}
	if name, err = GetUtf8(pool, nameIndex); err != nil {
		return 0, "", "", nil, fmt.Errorf("resolving name: %w", err)
	}
	if desc, err = GetUtf8(pool, descIndex); err != nil {
		return 0, "", "", nil, fmt.Errorf("resolving descriptor of %s: %w", name, err)
	}
	if attrs, err = parseAttributeInfos(r, pool); err != nil {
		return 0, "", "", nil, fmt.Errorf("attributes of %s: %w", name, err)
	}
	return flags, name, desc, attrs, nil
}

func parseFields(r *reader, pool []ConstantPoolEntry) ([]FieldInfo, error) {
	count := r.u2()
	if r.err != nil {
		return nil, r.err
	}
	fields := make([]FieldInfo, count)
	for i := range fields {
		flags, name, desc, attrs, err := memberHeader(r, pool)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		f := FieldInfo{AccessFlags: flags, Name: name, Descriptor: desc, Attributes: attrs}
		for _, attr := range attrs {
			if attr.Name == "ConstantValue" && len(attr.Data) == 2 {
				f.ConstantValue = binary.BigEndian.Uint16(attr.Data)
			}
		}
		fields[i] = f
	}
	return fields, nil
}

func parseMethods(r *reader, pool []ConstantPoolEntry) ([]MethodInfo, error) {
	count := r.u2()
	if r.err != nil {
		return nil, r.err
	}
	methods := make([]MethodInfo, count)
	for i := range methods {
		flags, name, desc, attrs, err := memberHeader(r, pool)
		if err != nil {
			return nil, fmt.Errorf("method %d: %w", i, err)
		}
		m := MethodInfo{AccessFlags: flags, Name: name, Descriptor: desc, Attributes: attrs}

		for _, attr := range attrs {
			if attr.Name == "Code" {
				code, err := parseCodeAttribute(attr.Data)
				if err != nil {
					return nil, fmt.Errorf("parsing Code attribute for method %s: %w", name, err)
				}
				m.Code = code
				break
			}
		}

		methods[i] = m
	}
	return methods, nil
}

func parseAttributeInfos(r *reader, pool []ConstantPoolEntry) ([]AttributeInfo, error) {
	count := r.u2()
	if r.err != nil {
		return nil, r.err
	}
	attrs := make([]AttributeInfo, 0, count)
	for i := uint16(0); i < count; i++ {
		nameIndex := r.u2()
		length := r.u4()
		data := r.bytes(int(length))
		if r.err != nil {
			return nil, fmt.Errorf("reading attribute %d: %w", i, r.err)
		}
		name, err := GetUtf8(pool, nameIndex)
		if err != nil {
			return nil, fmt.Errorf("resolving attribute %d name: %w", i, err)
		}
		attrs = append(attrs, AttributeInfo{Name: name, Data: data})
	}
	return attrs, nil
}

func parseCodeAttribute(data []byte) (*CodeAttribute, error) {
	r := &reader{r: bytes.NewReader(data)}

	maxStack := r.u2()
	maxLocals := r.u2()
	codeLength := r.u4()
	code := r.bytes(int(codeLength))
	if r.err != nil {
		return nil, fmt.Errorf("Code attribute truncated: %w", r.err)
	}

	exTableLen := r.u2()
	var handlers []ExceptionHandler
	for i := uint16(0); i < exTableLen; i++ {
		h := ExceptionHandler{
			StartPC:   r.u2(),
			EndPC:     r.u2(),
			HandlerPC: r.u2(),
			CatchType: r.u2(),
		}
		if r.err != nil {
			return nil, fmt.Errorf("exception table truncated at entry %d: %w", i, r.err)
		}
		handlers = append(handlers, h)
	}

	return &CodeAttribute{
		MaxStack:          maxStack,
		MaxLocals:         maxLocals,
		Code:              code,
		ExceptionHandlers: handlers,
	}, nil
}

func parseBootstrapMethods(data []byte) ([]BootstrapMethod, error) {
	r := &reader{r: bytes.NewReader(data)}
	numMethods := r.u2()
	methods := make([]BootstrapMethod, 0, numMethods)
	for i := uint16(0); i < numMethods; i++ {
		bm := BootstrapMethod{MethodRef: r.u2()}
		numArgs := r.u2()
		for j := uint16(0); j < numArgs; j++ {
			bm.BootstrapArguments = append(bm.BootstrapArguments, r.u2())
		}
		if r.err != nil {
			return nil, fmt.Errorf("BootstrapMethods truncated at method %d: %w", i, r.err)
		}
		methods = append(methods, bm)
	}
	return methods, nil
}

// ClassName returns the fully qualified name of this class.
func (cf *ClassFile) ClassName() (string, error) {
	return GetClassName(cf.ConstantPool, cf.ThisClass)
}

// FindMethod finds a method by name and descriptor.
func (cf *ClassFile) FindMethod(name, descriptor string) *MethodInfo {
	for i := range cf.Methods {
		if cf.Methods[i].Name == name && cf.Methods[i].Descriptor == descriptor {
			return &cf.Methods[i]
		}
	}
	return nil
}

// FindMethodByName finds a method by name only (first match).
func (cf *ClassFile) FindMethodByName(name string) *MethodInfo {
	for i := range cf.Methods {
		if cf.Methods[i].Name == name {
			return &cf.Methods[i]
		}
	}
	return nil
}
