package interp

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/daimatz/javavm/pkg/classfile"
	"github.com/daimatz/javavm/pkg/intrinsics"
	"github.com/daimatz/javavm/pkg/link"
	"github.com/daimatz/javavm/pkg/vm"
)

const (
	pubSuper     = classfile.AccPublic | classfile.AccSuper
	publicStatic = classfile.AccPublic | classfile.AccStatic
)

// asm assembles method bodies.
type asm []byte

func (a asm) op(ops ...byte) asm { return append(a, ops...) }

func (a asm) u16(op byte, index uint16) asm { return append(a, op, byte(index>>8), byte(index)) }

func (a asm) code(lines ...classfile.LineNumber) *classfile.CodeAttribute {
	return &classfile.CodeAttribute{MaxStack: 8, MaxLocals: 4, Code: a, LineNumbers: lines}
}

// ctor adds a no-arg constructor delegating to super.
func ctor(b *classfile.Builder, super string) {
	b.AddMethod(classfile.AccPublic, "<init>", "()V",
		asm{}.op(classfile.OpAload0).u16(classfile.OpInvokespecial, b.MethodRef(super, "<init>", "()V")).
			op(classfile.OpReturn).code())
}

func newInterp(t *testing.T, cfs ...*classfile.ClassFile) (*Interpreter, *bytes.Buffer) {
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
	r := link.NewResolver(d, machine, intrinsics.NewRegistry(d.MethodHandle()))
	in := New(machine, link.NewLinker(r, d, link.DefaultOptions()), nil)
	var out bytes.Buffer
	in.Stdout = &out
	return in, &out
}

// call runs a static method of class on a fresh thread.
func call(t *testing.T, in *Interpreter, class, name, desc string, args ...vm.Value) (vm.Value, error) {
	t.Helper()
	c, err := in.VM.Dict.LoadClass(class)
	if err != nil {
		t.Fatalf("LoadClass(%s): %v", class, err)
	}
	m := c.FindMethod(name, desc)
	if m == nil {
		t.Fatalf("%s.%s%s not found", class, name, desc)
	}
	th := in.VM.NewThread("main")
	if err := in.initialize(th, c); err != nil {
		return vm.Value{}, err
	}
	return in.Invoke(th, m, args)
}

// execInt runs code as the body of a static method taking locals as int
// arguments.
func execInt(t *testing.T, code []byte, locals ...int32) (int32, error) {
	t.Helper()
	maxLocals := uint16(len(locals))
	if maxLocals < 4 {
		maxLocals = 4
	}
	desc := "(" + strings.Repeat("I", len(locals)) + ")I"
	b := classfile.NewBuilder("demo/T", vm.ObjectClass, pubSuper)
	b.AddMethod(publicStatic, "f", desc, &classfile.CodeAttribute{MaxStack: 10, MaxLocals: maxLocals, Code: code})
	in, _ := newInterp(t, b.Build())

	args := make([]vm.Value, len(locals))
	for i, l := range locals {
		args[i] = vm.IntValue(l)
	}
	v, err := call(t, in, "demo/T", "f", desc, args...)
	return v.Int, err
}

func executeAndGetInt(t *testing.T, code []byte, locals ...int32) int32 {
	t.Helper()
	got, err := execInt(t, code, locals...)
	if err != nil {
		t.Fatalf("execution error: %v", err)
	}
	return got
}

// wantThrown checks that err is the Java exception className.
func wantThrown(t *testing.T, err error, className string) *vm.JavaException {
	t.Helper()
	var ex *vm.JavaException
	if !errors.As(err, &ex) {
		t.Fatalf("got error %v, want %s", err, className)
	}
	if ex.Object.ClassName() != className {
		t.Fatalf("got %s, want %s", ex, className)
	}
	return ex
}
