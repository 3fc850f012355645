package link

import (
	"errors"
	"testing"

	"github.com/daimatz/javavm/pkg/classfile"
	"github.com/daimatz/javavm/pkg/intrinsics"
	"github.com/daimatz/javavm/pkg/vm"
)

const (
	pub      = classfile.AccPublic
	abstract = classfile.AccAbstract
	final    = classfile.AccFinal
	static   = classfile.AccStatic
	private  = classfile.AccPrivate
	iface    = classfile.AccInterface | classfile.AccAbstract
)

type method struct {
	flags      uint16
	name, desc string
}

func m(flags uint16, name string) method { return method{flags, name, "()V"} }

// def builds a class; methods that are neither abstract nor native get a
// body that returns.
func def(name, super string, flags uint16, ifaces []string, methods ...method) *classfile.ClassFile {
	b := classfile.NewBuilder(name, super, flags|classfile.AccSuper)
	for _, in := range ifaces {
		b.AddInterface(in)
	}
	for _, mm := range methods {
		var code *classfile.CodeAttribute
		if mm.flags&(classfile.AccAbstract|classfile.AccNative) == 0 {
			code = &classfile.CodeAttribute{MaxLocals: 1, Code: []byte{classfile.OpReturn}}
		}
		b.AddMethod(mm.flags, mm.name, mm.desc, code)
	}
	return b.Build()
}

type universe struct {
	t   *testing.T
	d   *vm.Dictionary
	vm  *vm.VM
	reg *intrinsics.Registry
	r   *Resolver
}

func newUniverse(t *testing.T, cfs ...*classfile.ClassFile) *universe {
	t.Helper()
	cl, err := vm.NewMapClassLoader(cfs...)
	if err != nil {
		t.Fatalf("NewMapClassLoader: %v", err)
	}
	d, err := vm.NewDictionary(cl)
	if err != nil {
		t.Fatalf("NewDictionary: %v", err)
	}
	machine := vm.NewVM(d)
	reg := intrinsics.NewRegistry(d.MethodHandle())
	return &universe{t: t, d: d, vm: machine, reg: reg, r: NewResolver(d, machine, reg)}
}

func (u *universe) class(name string) *vm.Class {
	u.t.Helper()
	c, err := u.d.LoadClass(name)
	if err != nil {
		u.t.Fatalf("LoadClass(%s): %v", name, err)
	}
	return c
}

func (u *universe) li(class, name, desc string) LinkInfo {
	u.t.Helper()
	return LinkInfo{ResolvedClass: u.class(class), Name: name, Descriptor: desc}
}

func (u *universe) object(class string) vm.Value {
	u.t.Helper()
	return vm.RefValue(vm.NewObject(u.class(class)))
}

func wantKind(t *testing.T, err error, kind Kind) *Error {
	t.Helper()
	var le *Error
	if !errors.As(err, &le) {
		t.Fatalf("got error %v, want a %s link error", err, kind)
	}
	if le.Kind != kind {
		t.Fatalf("got kind %s (%v), want %s", le.Kind, err, kind)
	}
	return le
}
