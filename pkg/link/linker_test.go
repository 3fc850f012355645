package link

import (
	"errors"
	"strings"
	"testing"

	"github.com/daimatz/javavm/pkg/classfile"
	"github.com/daimatz/javavm/pkg/vm"
)

type callSites struct {
	virtual, static, special, iface, missingClass uint16
	field, staticField, goneField                 uint16
}

func linkerUniverse(t *testing.T) (*Linker, *universe, *vm.Class, callSites) {
	t.Helper()
	a := classfile.NewBuilder("demo/A", vm.ObjectClass, pub|classfile.AccSuper)
	a.AddField(pub, "f", "I")
	a.AddField(pub|static, "total", "I")
	a.AddMethod(pub, "<init>", "()V", &classfile.CodeAttribute{MaxLocals: 1, Code: []byte{classfile.OpReturn}})
	a.AddMethod(pub, "m", "()V", &classfile.CodeAttribute{MaxLocals: 1, Code: []byte{classfile.OpReturn}})
	a.AddMethod(pub|static, "s", "()V", &classfile.CodeAttribute{Code: []byte{classfile.OpReturn}})

	main := classfile.NewBuilder("demo/Main", vm.ObjectClass, pub|classfile.AccSuper)
	sites := callSites{
		virtual:      main.MethodRef("demo/A", "m", "()V"),
		static:       main.MethodRef("demo/A", "s", "()V"),
		special:      main.MethodRef("demo/A", "<init>", "()V"),
		iface:        main.InterfaceMethodRef("demo/I", "toString", "()Ljava/lang/String;"),
		missingClass: main.MethodRef("demo/Gone", "m", "()V"),
		field:        main.FieldRef("demo/B", "f", "I"),
		staticField:  main.FieldRef("demo/B", "total", "I"),
		goneField:    main.FieldRef("demo/Gone", "x", "I"),
	}

	u := newUniverse(t,
		a.Build(),
		def("demo/B", "demo/A", pub, []string{"demo/I"}, m(pub, "m")),
		def("demo/I", vm.ObjectClass, iface|pub, nil),
		main.Build(),
	)
	return NewLinker(u.r, u.d, DefaultOptions()), u, u.class("demo/Main"), sites
}

func TestLinkerResolveInvoke(t *testing.T) {
	l, u, caller, sites := linkerUniverse(t)
	th := u.vm.NewThread("main")
	recv := u.object("demo/B")

	tests := []struct {
		name     string
		op       byte
		index    uint16
		kind     CallKind
		selected string
	}{
		{"invokevirtual", classfile.OpInvokevirtual, sites.virtual, Virtual, "demo/B.m()V"},
		{"invokestatic", classfile.OpInvokestatic, sites.static, Static, "demo/A.s()V"},
		{"invokespecial", classfile.OpInvokespecial, sites.special, Special, "demo/A.<init>()V"},
		{"invokeinterface", classfile.OpInvokeinterface, sites.iface, Virtual, "java/lang/Object.toString()Ljava/lang/String;"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ci, err := l.ResolveInvoke(th, caller, tt.op, tt.index, recv)
			if err != nil {
				t.Fatalf("ResolveInvoke: %v", err)
			}
			if ci.Kind != tt.kind {
				t.Errorf("kind: got %s, want %s", ci.Kind, tt.kind)
			}
			sel := ci.SelectedMethod
			if got := sel.Class().Name() + "." + sel.Name() + sel.Descriptor(); got != tt.selected {
				t.Errorf("selected: got %s, want %s", got, tt.selected)
			}
		})
	}

	t.Run("null receiver", func(t *testing.T) {
		_, err := l.ResolveInvoke(th, caller, classfile.OpInvokevirtual, sites.virtual, vm.NullValue())
		wantKind(t, err, NullReference)
	})
	t.Run("missing class", func(t *testing.T) {
		_, err := l.ResolveInvoke(th, caller, classfile.OpInvokestatic, sites.missingClass, vm.NullValue())
		if !errors.Is(err, vm.ErrClassNotFound) {
			t.Errorf("got %v, want class not found", err)
		}
	})
	t.Run("not an invoke", func(t *testing.T) {
		_, err := l.ResolveInvoke(th, caller, classfile.OpNop, sites.virtual, recv)
		if err == nil || !strings.Contains(err.Error(), "not an invoke") {
			t.Errorf("got %v", err)
		}
	})
	t.Run("field reference as method", func(t *testing.T) {
		if _, err := l.ResolveInvoke(th, caller, classfile.OpInvokevirtual, sites.field, recv); err == nil {
			t.Error("expected an error")
		}
	})
}

func TestLinkerResolveFieldAccess(t *testing.T) {
	l, u, caller, sites := linkerUniverse(t)
	th := u.vm.NewThread("main")

	fd, err := l.ResolveFieldAccess(th, caller, classfile.OpPutfield, sites.field)
	if err != nil {
		t.Fatalf("putfield: %v", err)
	}
	if fd.DeclaringClass.Name() != "demo/A" || !fd.IsPut || fd.IsStatic {
		t.Errorf("got %+v", fd)
	}

	fd, err = l.ResolveFieldAccess(th, caller, classfile.OpGetstatic, sites.staticField)
	if err != nil {
		t.Fatalf("getstatic: %v", err)
	}
	if !fd.IsStatic || fd.Field.Name() != "total" {
		t.Errorf("got %+v", fd)
	}

	_, err = l.ResolveFieldAccess(th, caller, classfile.OpGetstatic, sites.goneField)
	le := wantKind(t, err, NoSuchField)
	if le.Message != "x" {
		t.Errorf("message: got %q", le.Message)
	}
}

func TestLinkerClassOf(t *testing.T) {
	l, u, _, _ := linkerUniverse(t)
	arr, err := u.d.LoadClass("[I")
	if err != nil {
		t.Fatalf("LoadClass: %v", err)
	}

	tests := []struct {
		name string
		v    vm.Value
		want string
	}{
		{"object", u.object("demo/B"), "demo/B"},
		{"array", vm.RefValue(&vm.JArray{Class: arr}), "[I"},
		{"string", vm.RefValue("hello"), "java/lang/String"},
		{"null", vm.NullValue(), ""},
		{"int", vm.IntValue(3), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := l.ClassOf(tt.v)
			got := ""
			if c != nil {
				got = c.Name()
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
