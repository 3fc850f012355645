package classfile

// Builder assembles a ClassFile in memory, interning constant pool entries
// as they are referenced. It is used for synthetic classes (bootstrap
// classes, YAML class definitions, tests) that never existed as bytes.
type Builder struct {
	cf      *ClassFile
	utf8    map[string]uint16
	classes map[string]uint16
	nats    map[[2]string]uint16
	refs    map[memberKey]uint16
}

type memberKey struct {
	tag                     uint8
	class, name, descriptor string
}

// NewBuilder starts a class with the given name, super class ("" for none)
// and access flags.
func NewBuilder(name, super string, flags uint16) *Builder {
	b := &Builder{
		cf: &ClassFile{
			MajorVersion: 52,
			ConstantPool: []ConstantPoolEntry{nil},
			AccessFlags:  flags,
		},
		utf8:    make(map[string]uint16),
		classes: make(map[string]uint16),
		nats:    make(map[[2]string]uint16),
		refs:    make(map[memberKey]uint16),
	}
	b.cf.ThisClass = b.Class(name)
	if super != "" {
		b.cf.SuperClass = b.Class(super)
	}
	return b
}

func (b *Builder) add(e ConstantPoolEntry) uint16 {
	b.cf.ConstantPool = append(b.cf.ConstantPool, e)
	return uint16(len(b.cf.ConstantPool) - 1)
}

// Utf8 interns a CONSTANT_Utf8 entry.
func (b *Builder) Utf8(s string) uint16 {
	if idx, ok := b.utf8[s]; ok {
		return idx
	}
	idx := b.add(&ConstantUtf8{Value: s})
	b.utf8[s] = idx
	return idx
}

// Class interns a CONSTANT_Class entry.
func (b *Builder) Class(name string) uint16 {
	if idx, ok := b.classes[name]; ok {
		return idx
	}
	idx := b.add(&ConstantClass{NameIndex: b.Utf8(name)})
	b.classes[name] = idx
	return idx
}

// Integer adds a CONSTANT_Integer entry.
func (b *Builder) Integer(v int32) uint16 {
	return b.add(&ConstantInteger{Value: v})
}

// Long adds a CONSTANT_Long entry and its unusable second slot.
func (b *Builder) Long(v int64) uint16 {
	idx := b.add(&ConstantLong{Value: v})
	b.cf.ConstantPool = append(b.cf.ConstantPool, nil)
	return idx
}

// String adds a CONSTANT_String entry.
func (b *Builder) String(s string) uint16 {
	return b.add(&ConstantString{StringIndex: b.Utf8(s)})
}

// NameAndType interns a CONSTANT_NameAndType entry.
func (b *Builder) NameAndType(name, descriptor string) uint16 {
	key := [2]string{name, descriptor}
	if idx, ok := b.nats[key]; ok {
		return idx
	}
	idx := b.add(&ConstantNameAndType{NameIndex: b.Utf8(name), DescriptorIndex: b.Utf8(descriptor)})
	b.nats[key] = idx
	return idx
}

func (b *Builder) memberRef(tag uint8, class, name, descriptor string) uint16 {
	key := memberKey{tag, class, name, descriptor}
	if idx, ok := b.refs[key]; ok {
		return idx
	}
	ci, nat := b.Class(class), b.NameAndType(name, descriptor)
	var e ConstantPoolEntry
	switch tag {
	case TagFieldref:
		e = &ConstantFieldref{ClassIndex: ci, NameAndTypeIndex: nat}
	case TagInterfaceMethodref:
		e = &ConstantInterfaceMethodref{ClassIndex: ci, NameAndTypeIndex: nat}
	default:
		e = &ConstantMethodref{ClassIndex: ci, NameAndTypeIndex: nat}
	}
	idx := b.add(e)
	b.refs[key] = idx
	return idx
}

// MethodRef interns a CONSTANT_Methodref entry and returns its index.
func (b *Builder) MethodRef(class, name, descriptor string) uint16 {
	return b.memberRef(TagMethodref, class, name, descriptor)
}

// InterfaceMethodRef interns a CONSTANT_InterfaceMethodref entry.
func (b *Builder) InterfaceMethodRef(class, name, descriptor string) uint16 {
	return b.memberRef(TagInterfaceMethodref, class, name, descriptor)
}

// FieldRef interns a CONSTANT_Fieldref entry.
func (b *Builder) FieldRef(class, name, descriptor string) uint16 {
	return b.memberRef(TagFieldref, class, name, descriptor)
}

// AddInterface appends a directly implemented interface.
func (b *Builder) AddInterface(name string) *Builder {
	b.cf.Interfaces = append(b.cf.Interfaces, b.Class(name))
	return b
}

// AddField declares a field.
func (b *Builder) AddField(flags uint16, name, descriptor string) *Builder {
	b.Utf8(name)
	b.Utf8(descriptor)
	b.cf.Fields = append(b.cf.Fields, FieldInfo{AccessFlags: flags, Name: name, Descriptor: descriptor})
	return b
}

// AddMethod declares a method. code may be nil for abstract and native methods.
func (b *Builder) AddMethod(flags uint16, name, descriptor string, code *CodeAttribute) *Builder {
	b.Utf8(name)
	b.Utf8(descriptor)
	if code != nil {
		b.Utf8("Code")
		if len(code.LineNumbers) > 0 {
			b.Utf8("LineNumberTable")
		}
	}
	b.cf.Methods = append(b.cf.Methods, MethodInfo{
		AccessFlags: flags,
		Name:        name,
		Descriptor:  descriptor,
		Code:        code,
	})
	return b
}

// SetSourceFile records the SourceFile attribute.
func (b *Builder) SetSourceFile(name string) *Builder {
	b.Utf8("SourceFile")
	b.Utf8(name)
	b.cf.SourceFile = name
	return b
}

// Build returns the assembled class file. The builder must not be used
// afterwards.
func (b *Builder) Build() *ClassFile {
	return b.cf
}
