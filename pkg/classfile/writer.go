package classfile

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"unicode/utf16"
)

// Encode writes cf in class file format. Fields with a ConstantValue and
// methods with Code get those attributes regenerated; other raw attributes
// are written back as parsed.
func Encode(w io.Writer, cf *ClassFile) error {
	bw := bufio.NewWriter(w)
	e := &encoder{w: bw, pool: cf.ConstantPool}

	e.u4(classMagic)
	e.u2(cf.MinorVersion)
	e.u2(cf.MajorVersion)

	e.u2(uint16(len(cf.ConstantPool)))
	for i := 1; i < len(cf.ConstantPool); i++ {
		entry := cf.ConstantPool[i]
		if entry == nil {
			continue // upper half of a long or double
		}
		if err := e.constant(entry); err != nil {
			return fmt.Errorf("constant pool entry %d: %w", i, err)
		}
	}

	e.u2(cf.AccessFlags)
	e.u2(cf.ThisClass)
	e.u2(cf.SuperClass)
	e.u2(uint16(len(cf.Interfaces)))
	for _, idx := range cf.Interfaces {
		e.u2(idx)
	}

	e.u2(uint16(len(cf.Fields)))
	for _, f := range cf.Fields {
		e.member(f.AccessFlags, f.Name, f.Descriptor)
		var attrs []AttributeInfo
		if f.ConstantValue != 0 {
			attrs = append(attrs, AttributeInfo{Name: "ConstantValue", Data: binary.BigEndian.AppendUint16(nil, f.ConstantValue)})
		}
		for _, a := range f.Attributes {
			if a.Name != "ConstantValue" {
				attrs = append(attrs, a)
			}
		}
		e.attributes(attrs)
	}

	e.u2(uint16(len(cf.Methods)))
	for _, m := range cf.Methods {
		e.member(m.AccessFlags, m.Name, m.Descriptor)
		var attrs []AttributeInfo
		if m.Code != nil {
			attrs = append(attrs, AttributeInfo{Name: "Code", Data: encodeCode(m.Code)})
		}
		for _, a := range m.Attributes {
			if a.Name != "Code" {
				attrs = append(attrs, a)
			}
		}
		e.attributes(attrs)
	}

	e.u2(0) // class attributes

	if e.err != nil {
		return e.err
	}
	return bw.Flush()
}

// EncodeBytes returns the class file bytes of cf.
func EncodeBytes(cf *ClassFile) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, cf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type encoder struct {
	w    *bufio.Writer
	pool []ConstantPoolEntry
	err  error
}

func (e *encoder) write(b []byte) {
	if e.err != nil {
		return
	}
	_, e.err = e.w.Write(b)
}

func (e *encoder) u1(v uint8)  { e.write([]byte{v}) }
func (e *encoder) u2(v uint16) { e.write(binary.BigEndian.AppendUint16(nil, v)) }
func (e *encoder) u4(v uint32) { e.write(binary.BigEndian.AppendUint32(nil, v)) }
func (e *encoder) u8(v uint64) { e.write(binary.BigEndian.AppendUint64(nil, v)) }

func (e *encoder) constant(entry ConstantPoolEntry) error {
	e.u1(entry.Tag())
	switch c := entry.(type) {
	case *ConstantUtf8:
		b := encodeModifiedUTF8(c.Value)
		e.u2(uint16(len(b)))
		e.write(b)
	case *ConstantInteger:
		e.u4(uint32(c.Value))
	case *ConstantFloat:
		e.u4(math.Float32bits(c.Value))
	case *ConstantLong:
		e.u8(uint64(c.Value))
	case *ConstantDouble:
		e.u8(math.Float64bits(c.Value))
	case *ConstantClass:
		e.u2(c.NameIndex)
	case *ConstantString:
		e.u2(c.StringIndex)
	case *ConstantMemberref:
		e.u2(c.ClassIndex)
		e.u2(c.NameAndTypeIndex)
	case *ConstantNameAndType:
		e.u2(c.NameIndex)
		e.u2(c.DescriptorIndex)
	default:
		return fmt.Errorf("cannot encode constant with tag %d", entry.Tag())
	}
	return nil
}

func (e *encoder) utf8Index(s string) uint16 {
	for i, entry := range e.pool {
		if u, ok := entry.(*ConstantUtf8); ok && u.Value == s {
			return uint16(i)
		}
	}
	if e.err == nil {
		e.err = fmt.Errorf("constant pool has no Utf8 entry %q", s)
	}
	return 0
}

func (e *encoder) member(flags uint16, name, desc string) {
	e.u2(flags)
	e.u2(e.utf8Index(name))
	e.u2(e.utf8Index(desc))
}

func (e *encoder) attributes(attrs []AttributeInfo) {
	e.u2(uint16(len(attrs)))
	for _, a := range attrs {
		e.u2(e.utf8Index(a.Name))
		e.u4(uint32(len(a.Data)))
		e.write(a.Data)
	}
}

func encodeCode(c *CodeAttribute) []byte {
	var b []byte
	b = binary.BigEndian.AppendUint16(b, c.MaxStack)
	b = binary.BigEndian.AppendUint16(b, c.MaxLocals)
	b = binary.BigEndian.AppendUint32(b, uint32(len(c.Code)))
	b = append(b, c.Code...)
	b = binary.BigEndian.AppendUint16(b, uint16(len(c.ExceptionHandlers)))
	for _, h := range c.ExceptionHandlers {
		b = binary.BigEndian.AppendUint16(b, h.StartPC)
		b = binary.BigEndian.AppendUint16(b, h.EndPC)
		b = binary.BigEndian.AppendUint16(b, h.HandlerPC)
		b = binary.BigEndian.AppendUint16(b, h.CatchType)
	}
	return binary.BigEndian.AppendUint16(b, 0) // code attributes
}

func encodeModifiedUTF8(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, u := range utf16.Encode([]rune(s)) {
		switch {
		case u != 0 && u < 0x80:
			out = append(out, byte(u))
		case u < 0x800:
			out = append(out, 0xC0|byte(u>>6), 0x80|byte(u&0x3F))
		default:
			out = append(out, 0xE0|byte(u>>12), 0x80|byte(u>>6&0x3F), 0x80|byte(u&0x3F))
		}
	}
	return out
}
