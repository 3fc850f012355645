package vm

import (
	"testing"

	"github.com/daimatz/javavm/pkg/classfile"
)

// newTestDict returns a dictionary serving the bootstrap classes plus cfs.
func newTestDict(t *testing.T, cfs ...*classfile.ClassFile) *Dictionary {
	t.Helper()
	cl, err := NewMapClassLoader(cfs...)
	if err != nil {
		t.Fatalf("NewMapClassLoader: %v", err)
	}
	d, err := NewDictionary(cl)
	if err != nil {
		t.Fatalf("NewDictionary: %v", err)
	}
	return d
}

func mustLoad(t *testing.T, d *Dictionary, name string) *Class {
	t.Helper()
	c, err := d.LoadClass(name)
	if err != nil {
		t.Fatalf("LoadClass(%s): %v", name, err)
	}
	return c
}

func returnCode() *classfile.CodeAttribute {
	return &classfile.CodeAttribute{MaxLocals: 1, Code: []byte{classfile.OpReturn}}
}

// class builds a class with void methods; flags of each method are given
// alongside its name.
func class(name, super string, flags uint16, methods map[string]uint16) *classfile.ClassFile {
	b := classfile.NewBuilder(name, super, flags)
	for m, mf := range methods {
		var code *classfile.CodeAttribute
		if mf&(classfile.AccAbstract|classfile.AccNative) == 0 {
			code = returnCode()
		}
		b.AddMethod(mf, m, "()V", code)
	}
	return b.Build()
}
