package vm

import (
	"github.com/daimatz/javavm/pkg/classfile"
)

// Method is a method declared by a loaded class.
type Method struct {
	name        string
	descriptor  string
	flags       uint16
	class       *Class
	code        *classfile.CodeAttribute
	vtableIndex int
}

// NewMethod creates a method that is not yet attached to a class. code is nil
// for abstract and native methods.
func NewMethod(flags uint16, name, descriptor string, code *classfile.CodeAttribute) *Method {
	return &Method{
		name:        name,
		descriptor:  descriptor,
		flags:       flags,
		code:        code,
		vtableIndex: InvalidVtableIndex,
	}
}

// NewSyntheticMethod creates a native method held by c without adding it to
// c's member table, so ordinary lookups never find it. Method handle
// intrinsics are created this way.
func (c *Class) NewSyntheticMethod(flags uint16, name, descriptor string) *Method {
	m := NewMethod(flags|classfile.AccNative|classfile.AccSynthetic, name, descriptor, nil)
	m.class = c
	if !m.IsStatic() {
		m.vtableIndex = NonvirtualVtableIndex
	}
	return m
}

func (m *Method) Name() string        { return m.name }
func (m *Method) Descriptor() string  { return m.descriptor }
func (m *Method) AccessFlags() uint16 { return m.flags }

// Class returns the declaring class.
func (m *Method) Class() *Class { return m.class }

// Code returns the Code attribute, nil for abstract and native methods.
func (m *Method) Code() *classfile.CodeAttribute { return m.code }

// LineNumbers returns the method's line number table in class file order.
func (m *Method) LineNumbers() []classfile.LineNumber {
	if m.code == nil {
		return nil
	}
	return m.code.LineNumbers
}

// VtableIndex returns the vtable slot assigned when the declaring class was
// linked, or one of the sentinel indexes.
func (m *Method) VtableIndex() int { return m.vtableIndex }

func (m *Method) IsStatic() bool    { return m.flags&classfile.AccStatic != 0 }
func (m *Method) IsPublic() bool    { return m.flags&classfile.AccPublic != 0 }
func (m *Method) IsPrivate() bool   { return m.flags&classfile.AccPrivate != 0 }
func (m *Method) IsProtected() bool { return m.flags&classfile.AccProtected != 0 }
func (m *Method) IsFinal() bool     { return m.flags&classfile.AccFinal != 0 }
func (m *Method) IsAbstract() bool  { return m.flags&classfile.AccAbstract != 0 }
func (m *Method) IsNative() bool    { return m.flags&classfile.AccNative != 0 }

// IsInitializer reports whether m is an instance or class initializer.
func (m *Method) IsInitializer() bool {
	return m.name == "<init>" || m.name == "<clinit>"
}

// String formats the method as owner.name+descriptor.
func (m *Method) String() string {
	owner := "?"
	if m.class != nil {
		owner = m.class.name
	}
	return owner + "." + m.name + m.descriptor
}

// Field is a field declared by a loaded class.
type Field struct {
	name       string
	descriptor string
	flags      uint16
	class      *Class
}

// NewField creates a field that is not yet attached to a class.
func NewField(flags uint16, name, descriptor string) *Field {
	return &Field{name: name, descriptor: descriptor, flags: flags}
}

func (f *Field) Name() string        { return f.name }
func (f *Field) Descriptor() string  { return f.descriptor }
func (f *Field) AccessFlags() uint16 { return f.flags }

// Class returns the declaring class.
func (f *Field) Class() *Class { return f.class }

func (f *Field) IsStatic() bool  { return f.flags&classfile.AccStatic != 0 }
func (f *Field) IsPublic() bool  { return f.flags&classfile.AccPublic != 0 }
func (f *Field) IsPrivate() bool { return f.flags&classfile.AccPrivate != 0 }
func (f *Field) IsFinal() bool   { return f.flags&classfile.AccFinal != 0 }

func (f *Field) String() string {
	owner := "?"
	if f.class != nil {
		owner = f.class.name
	}
	return owner + "." + f.name + ":" + f.descriptor
}
