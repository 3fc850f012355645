package classfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

const classMagic = 0xCAFEBABE

// ParseFile opens and parses a .class file from the given path.
func ParseFile(path string) (*ClassFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a .class file from the given reader and returns a ClassFile.
func Parse(r io.Reader) (*ClassFile, error) {
	cf := &ClassFile{}

	var magic uint32
	if err := binary.Read(r, binary.BigEndian, &magic); err != nil {
		return nil, fmt.Errorf("reading magic number: %w", err)
	}
	if magic != classMagic {
		return nil, fmt.Errorf("invalid magic number: 0x%X (expected 0xCAFEBABE)", magic)
	}

	var header struct {
		Minor, Major uint16
	}
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, fmt.Errorf("reading version: %w", err)
	}
	cf.MinorVersion, cf.MajorVersion = header.Minor, header.Major

	var cpCount uint16
	if err := binary.Read(r, binary.BigEndian, &cpCount); err != nil {
		return nil, fmt.Errorf("reading constant pool count: %w", err)
	}
	pool, err := parseConstantPool(r, cpCount)
	if err != nil {
		return nil, fmt.Errorf("parsing constant pool: %w", err)
	}
	cf.ConstantPool = pool

	var decl struct {
		AccessFlags, ThisClass, SuperClass, InterfacesCount uint16
	}
	if err := binary.Read(r, binary.BigEndian, &decl); err != nil {
		return nil, fmt.Errorf("reading class declaration: %w", err)
	}
	cf.AccessFlags, cf.ThisClass, cf.SuperClass = decl.AccessFlags, decl.ThisClass, decl.SuperClass

	cf.Interfaces = make([]uint16, decl.InterfacesCount)
	if err := binary.Read(r, binary.BigEndian, cf.Interfaces); err != nil {
		return nil, fmt.Errorf("reading interfaces: %w", err)
	}

	fields, err := parseMembers(r, pool)
	if err != nil {
		return nil, fmt.Errorf("parsing fields: %w", err)
	}
	for _, m := range fields {
		cf.Fields = append(cf.Fields, FieldInfo{
			AccessFlags: m.AccessFlags,
			Name:        m.Name,
			Descriptor:  m.Descriptor,
			Attributes:  m.Attributes,
		})
	}

	cf.Methods, err = parseMembers(r, pool)
	if err != nil {
		return nil, fmt.Errorf("parsing methods: %w", err)
	}
	for i := range cf.Methods {
		m := &cf.Methods[i]
		for _, attr := range m.Attributes {
			if attr.Name != "Code" {
				continue
			}
			code, err := parseCodeAttribute(attr.Data, pool)
			if err != nil {
				return nil, fmt.Errorf("parsing Code attribute for method %s: %w", m.Name, err)
			}
			m.Code = code
			break
		}
	}

	if err := cf.parseClassAttributes(r); err != nil {
		return nil, fmt.Errorf("parsing class attributes: %w", err)
	}

	return cf, nil
}

// parseMembers reads a members_count-prefixed field or method table.
// Fields and methods share the same layout.
func parseMembers(r io.Reader, pool []ConstantPoolEntry) ([]MethodInfo, error) {
	var count uint16
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, fmt.Errorf("reading count: %w", err)
	}
	members := make([]MethodInfo, count)
	for i := range members {
		var hdr struct {
			AccessFlags, NameIndex, DescIndex, AttrCount uint16
		}
		if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
			return nil, fmt.Errorf("reading member %d header: %w", i, err)
		}

		name, err := GetUtf8(pool, hdr.NameIndex)
		if err != nil {
			return nil, fmt.Errorf("resolving member %d name: %w", i, err)
		}
		desc, err := GetUtf8(pool, hdr.DescIndex)
		if err != nil {
			return nil, fmt.Errorf("resolving member %d descriptor: %w", i, err)
		}
		attrs, err := parseAttributeInfos(r, pool, hdr.AttrCount)
		if err != nil {
			return nil, fmt.Errorf("parsing member %d attributes: %w", i, err)
		}

		members[i] = MethodInfo{
			AccessFlags: hdr.AccessFlags,
			Name:        name,
			Descriptor:  desc,
			Attributes:  attrs,
		}
	}
	return members, nil
}

func parseAttributeInfos(r io.Reader, pool []ConstantPoolEntry, count uint16) ([]AttributeInfo, error) {
	attrs := make([]AttributeInfo, count)
	for i := uint16(0); i < count; i++ {
		var nameIndex uint16
		if err := binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
			return nil, fmt.Errorf("reading attribute %d name index: %w", i, err)
		}
		var length uint32
		if err := binary.Read(r, binary.BigEndian, &length); err != nil {
			return nil, fmt.Errorf("reading attribute %d length: %w", i, err)
		}
		data := make([]byte, length)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, fmt.Errorf("reading attribute %d data: %w", i, err)
		}

		name, err := GetUtf8(pool, nameIndex)
		if err != nil {
			return nil, fmt.Errorf("resolving attribute %d name: %w", i, err)
		}

		attrs[i] = AttributeInfo{Name: name, Data: data}
	}
	return attrs, nil
}

func parseCodeAttribute(data []byte, pool []ConstantPoolEntry) (*CodeAttribute, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("Code attribute too short: %d bytes", len(data))
	}

	maxStack := binary.BigEndian.Uint16(data[0:2])
	maxLocals := binary.BigEndian.Uint16(data[2:4])
	codeLength := binary.BigEndian.Uint32(data[4:8])

	if len(data) < 8+int(codeLength) {
		return nil, fmt.Errorf("Code attribute data too short for code_length %d", codeLength)
	}

	code := make([]byte, codeLength)
	copy(code, data[8:8+codeLength])

	attr := &CodeAttribute{
		MaxStack:  maxStack,
		MaxLocals: maxLocals,
		Code:      code,
	}

	r := bytes.NewReader(data[8+codeLength:])
	var exTableLen uint16
	if err := binary.Read(r, binary.BigEndian, &exTableLen); err != nil {
		// Older hand-assembled classes stop right after the bytecode.
		return attr, nil
	}
	attr.ExceptionHandlers = make([]ExceptionHandler, exTableLen)
	if err := binary.Read(r, binary.BigEndian, attr.ExceptionHandlers); err != nil {
		return nil, fmt.Errorf("reading exception table: %w", err)
	}

	var attrCount uint16
	if err := binary.Read(r, binary.BigEndian, &attrCount); err != nil {
		return attr, nil
	}
	nested, err := parseAttributeInfos(r, pool, attrCount)
	if err != nil {
		return nil, fmt.Errorf("parsing Code attributes: %w", err)
	}
	for _, a := range nested {
		if a.Name != "LineNumberTable" {
			continue
		}
		lines, err := parseLineNumberTable(a.Data)
		if err != nil {
			return nil, err
		}
		// A method may carry several tables; they concatenate.
		attr.LineNumbers = append(attr.LineNumbers, lines...)
	}

	return attr, nil
}

func parseLineNumberTable(data []byte) ([]LineNumber, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("LineNumberTable too short: %d bytes", len(data))
	}
	n := int(binary.BigEndian.Uint16(data[0:2]))
	if len(data) < 2+4*n {
		return nil, fmt.Errorf("LineNumberTable truncated: want %d entries", n)
	}
	lines := make([]LineNumber, n)
	for i := range lines {
		off := 2 + 4*i
		lines[i] = LineNumber{
			StartPC: binary.BigEndian.Uint16(data[off : off+2]),
			Line:    binary.BigEndian.Uint16(data[off+2 : off+4]),
		}
	}
	return lines, nil
}

func (cf *ClassFile) parseClassAttributes(r io.Reader) error {
	var count uint16
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return err
	}
	attrs, err := parseAttributeInfos(r, cf.ConstantPool, count)
	if err != nil {
		return err
	}
	for _, attr := range attrs {
		switch attr.Name {
		case "BootstrapMethods":
			cf.BootstrapMethods, err = parseBootstrapMethods(attr.Data)
			if err != nil {
				return fmt.Errorf("parsing BootstrapMethods: %w", err)
			}
		case "SourceFile":
			if len(attr.Data) != 2 {
				return fmt.Errorf("SourceFile attribute has length %d", len(attr.Data))
			}
			cf.SourceFile, err = GetUtf8(cf.ConstantPool, binary.BigEndian.Uint16(attr.Data))
			if err != nil {
				return fmt.Errorf("resolving SourceFile: %w", err)
			}
		}
	}
	return nil
}

func parseBootstrapMethods(data []byte) ([]BootstrapMethod, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("BootstrapMethods data too short")
	}
	numMethods := binary.BigEndian.Uint16(data[0:2])
	offset := 2
	methods := make([]BootstrapMethod, numMethods)
	for i := uint16(0); i < numMethods; i++ {
		if offset+4 > len(data) {
			return nil, fmt.Errorf("BootstrapMethods truncated at method %d", i)
		}
		methodRef := binary.BigEndian.Uint16(data[offset : offset+2])
		numArgs := binary.BigEndian.Uint16(data[offset+2 : offset+4])
		offset += 4
		args := make([]uint16, numArgs)
		for j := uint16(0); j < numArgs; j++ {
			if offset+2 > len(data) {
				return nil, fmt.Errorf("BootstrapMethods truncated at arg %d of method %d", j, i)
			}
			args[j] = binary.BigEndian.Uint16(data[offset : offset+2])
			offset += 2
		}
		methods[i] = BootstrapMethod{MethodRef: methodRef, BootstrapArguments: args}
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
