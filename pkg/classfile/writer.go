package classfile

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Write serializes cf in class file format. Every attribute name it needs
// ("Code", "LineNumberTable", "SourceFile", "BootstrapMethods") must already
// be in the constant pool; Builder takes care of that.
func Write(w io.Writer, cf *ClassFile) error {
	cw := &classWriter{pool: cf.ConstantPool}
	cw.u32(classMagic)
	cw.u16(cf.MinorVersion, cf.MajorVersion, uint16(len(cf.ConstantPool)))
	for i := 1; i < len(cf.ConstantPool); i++ {
		e := cf.ConstantPool[i]
		if e == nil {
			continue // second slot of a Long or Double
		}
		if err := cw.constant(e); err != nil {
			return fmt.Errorf("writing constant %d: %w", i, err)
		}
	}

	cw.u16(cf.AccessFlags, cf.ThisClass, cf.SuperClass, uint16(len(cf.Interfaces)))
	cw.u16(cf.Interfaces...)

	cw.u16(uint16(len(cf.Fields)))
	for _, f := range cf.Fields {
		cw.member(f.AccessFlags, f.Name, f.Descriptor, f.Attributes, nil)
	}
	cw.u16(uint16(len(cf.Methods)))
	for _, m := range cf.Methods {
		cw.member(m.AccessFlags, m.Name, m.Descriptor, m.Attributes, m.Code)
	}

	var attrs []AttributeInfo
	if cf.SourceFile != "" {
		attrs = append(attrs, AttributeInfo{Name: "SourceFile", Data: be16(cw.utf8(cf.SourceFile))})
	}
	if len(cf.BootstrapMethods) > 0 {
		var data bytes.Buffer
		binary.Write(&data, binary.BigEndian, uint16(len(cf.BootstrapMethods)))
		for _, bm := range cf.BootstrapMethods {
			binary.Write(&data, binary.BigEndian, []uint16{bm.MethodRef, uint16(len(bm.BootstrapArguments))})
			binary.Write(&data, binary.BigEndian, bm.BootstrapArguments)
		}
		attrs = append(attrs, AttributeInfo{Name: "BootstrapMethods", Data: data.Bytes()})
	}
	cw.attributes(attrs)

	if cw.err != nil {
		return cw.err
	}
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(cw.buf.Bytes()); err != nil {
		return err
	}
	return bw.Flush()
}

type classWriter struct {
	buf  bytes.Buffer
	pool []ConstantPoolEntry
	err  error
}

func be16(v uint16) []byte { return []byte{byte(v >> 8), byte(v)} }

func (cw *classWriter) u16(vs ...uint16) {
	for _, v := range vs {
		cw.buf.Write(be16(v))
	}
}

func (cw *classWriter) u32(v uint32) {
	binary.Write(&cw.buf, binary.BigEndian, v)
}

func (cw *classWriter) utf8(s string) uint16 {
	for i, e := range cw.pool {
		if u, ok := e.(*ConstantUtf8); ok && u.Value == s {
			return uint16(i)
		}
	}
	if cw.err == nil {
		cw.err = fmt.Errorf("utf8 %q not in constant pool", s)
	}
	return 0
}

func (cw *classWriter) constant(e ConstantPoolEntry) error {
	cw.buf.WriteByte(e.Tag())
	switch c := e.(type) {
	case *ConstantUtf8:
		cw.u16(uint16(len(c.Value)))
		cw.buf.WriteString(c.Value)
	case *ConstantInteger:
		cw.u32(uint32(c.Value))
	case *ConstantFloat:
		cw.u32(math.Float32bits(c.Value))
	case *ConstantLong:
		binary.Write(&cw.buf, binary.BigEndian, c.Value)
	case *ConstantDouble:
		binary.Write(&cw.buf, binary.BigEndian, math.Float64bits(c.Value))
	case *ConstantClass:
		cw.u16(c.NameIndex)
	case *ConstantString:
		cw.u16(c.StringIndex)
	case *ConstantNameAndType:
		cw.u16(c.NameIndex, c.DescriptorIndex)
	case *ConstantMethodref:
		cw.u16(c.ClassIndex, c.NameAndTypeIndex)
	case *ConstantInterfaceMethodref:
		cw.u16(c.ClassIndex, c.NameAndTypeIndex)
	case *ConstantFieldref:
		cw.u16(c.ClassIndex, c.NameAndTypeIndex)
	default:
		return fmt.Errorf("cannot encode constant %T", e)
	}
	return nil
}

func (cw *classWriter) member(flags uint16, name, desc string, raw []AttributeInfo, code *CodeAttribute) {
	cw.u16(flags, cw.utf8(name), cw.utf8(desc))
	var attrs []AttributeInfo
	if code != nil {
		attrs = append(attrs, AttributeInfo{Name: "Code", Data: cw.code(code)})
	}
	for _, a := range raw {
		if a.Name != "Code" {
			attrs = append(attrs, a)
		}
	}
	cw.attributes(attrs)
}

func (cw *classWriter) code(c *CodeAttribute) []byte {
	var b bytes.Buffer
	binary.Write(&b, binary.BigEndian, []uint16{c.MaxStack, c.MaxLocals})
	binary.Write(&b, binary.BigEndian, uint32(len(c.Code)))
	b.Write(c.Code)
	binary.Write(&b, binary.BigEndian, uint16(len(c.ExceptionHandlers)))
	binary.Write(&b, binary.BigEndian, c.ExceptionHandlers)
	if len(c.LineNumbers) == 0 {
		binary.Write(&b, binary.BigEndian, uint16(0))
		return b.Bytes()
	}
	binary.Write(&b, binary.BigEndian, []uint16{1, cw.utf8("LineNumberTable")})
	binary.Write(&b, binary.BigEndian, uint32(2+4*len(c.LineNumbers)))
	binary.Write(&b, binary.BigEndian, uint16(len(c.LineNumbers)))
	binary.Write(&b, binary.BigEndian, c.LineNumbers)
	return b.Bytes()
}

func (cw *classWriter) attributes(attrs []AttributeInfo) {
	cw.u16(uint16(len(attrs)))
	for _, a := range attrs {
		cw.u16(cw.utf8(a.Name))
		cw.u32(uint32(len(a.Data)))
		cw.buf.Write(a.Data)
	}
}
