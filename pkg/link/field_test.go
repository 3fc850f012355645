package link

import (
	"testing"

	"github.com/daimatz/javavm/pkg/classfile"
	"github.com/daimatz/javavm/pkg/vm"
)

func fieldUniverse(t *testing.T, clinitRuns *int) *universe {
	t.Helper()
	k := classfile.NewBuilder("demo/K", vm.ObjectClass, iface|pub)
	k.AddField(pub|static|final, "LIMIT", "I")

	a := classfile.NewBuilder("demo/A", vm.ObjectClass, pub|classfile.AccSuper)
	a.AddField(pub, "f", "I")
	a.AddField(pub|static, "count", "J")
	a.AddMethod(static, "<clinit>", "()V", &classfile.CodeAttribute{Code: []byte{classfile.OpReturn}})

	u := newUniverse(t,
		k.Build(),
		a.Build(),
		def("demo/B", "demo/A", pub, []string{"demo/K"}),
		def("demo/C", "demo/B", pub, nil),
	)
	u.vm.Clinit = vm.ClinitFunc(func(*vm.Thread, *vm.Class, *vm.Method) error {
		*clinitRuns++
		return nil
	})
	return u
}

func TestResolveField(t *testing.T) {
	var runs int
	u := fieldUniverse(t, &runs)
	th := u.vm.NewThread("main")

	tests := []struct {
		name              string
		li                LinkInfo
		op                byte
		declaredBy        string
		wantStatic, isPut bool
	}{
		{"inherited instance field", u.li("demo/C", "f", "I"), classfile.OpGetfield, "demo/A", false, false},
		{"put instance field", u.li("demo/B", "f", "I"), classfile.OpPutfield, "demo/A", false, true},
		{"interface constant", u.li("demo/C", "LIMIT", "I"), classfile.OpGetstatic, "demo/K", true, false},
		{"put static field", u.li("demo/C", "count", "J"), classfile.OpPutstatic, "demo/A", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fd, err := u.r.ResolveField(th, tt.li, tt.op, false)
			if err != nil {
				t.Fatalf("ResolveField: %v", err)
			}
			if fd.DeclaringClass.Name() != tt.declaredBy || fd.Field.Class() != fd.DeclaringClass {
				t.Errorf("declaring class: got %s, want %s", fd.DeclaringClass, tt.declaredBy)
			}
			if fd.IsStatic != tt.wantStatic || fd.IsPut != tt.isPut {
				t.Errorf("flags: got static=%v put=%v", fd.IsStatic, fd.IsPut)
			}
		})
	}
	if runs != 0 {
		t.Errorf("resolution without initialization ran %d initializers", runs)
	}
}

func TestResolveFieldInitializesDeclaringClass(t *testing.T) {
	var runs int
	u := fieldUniverse(t, &runs)
	th := u.vm.NewThread("main")

	if _, err := u.r.ResolveField(th, u.li("demo/C", "f", "I"), classfile.OpGetfield, true); err != nil {
		t.Fatalf("getfield: %v", err)
	}
	if runs != 0 {
		t.Fatalf("instance access initialized the class")
	}

	for i := 0; i < 2; i++ {
		if _, err := u.r.ResolveField(th, u.li("demo/C", "count", "J"), classfile.OpGetstatic, true); err != nil {
			t.Fatalf("getstatic: %v", err)
		}
	}
	if runs != 1 {
		t.Errorf("initializer runs: got %d, want 1", runs)
	}
	if u.class("demo/A").ShouldBeInitialized() {
		t.Error("demo/A is not initialized")
	}
}

func TestResolveFieldErrors(t *testing.T) {
	var runs int
	u := fieldUniverse(t, &runs)
	th := u.vm.NewThread("main")

	t.Run("missing field", func(t *testing.T) {
		_, err := u.r.ResolveField(th, u.li("demo/C", "g", "I"), classfile.OpGetfield, true)
		le := wantKind(t, err, NoSuchField)
		if le.Message != "g" {
			t.Errorf("message: got %q, want the field name", le.Message)
		}
	})
	t.Run("wrong descriptor", func(t *testing.T) {
		_, err := u.r.ResolveField(th, u.li("demo/C", "f", "J"), classfile.OpGetfield, true)
		wantKind(t, err, NoSuchField)
	})
	t.Run("absent class", func(t *testing.T) {
		_, err := u.r.ResolveField(th, LinkInfo{Name: "x", Descriptor: "I"}, classfile.OpGetstatic, true)
		le := wantKind(t, err, NoSuchField)
		if le.Message != "x" {
			t.Errorf("message: got %q", le.Message)
		}
	})
	t.Run("access check", func(t *testing.T) {
		li := u.li("demo/C", "f", "I")
		li.CheckAccess = true
		_, err := u.r.ResolveField(th, li, classfile.OpGetfield, true)
		wantKind(t, err, Unsupported)
		if !IsUnsupported(err) {
			t.Error("IsUnsupported = false")
		}
	})
	t.Run("not a field instruction", func(t *testing.T) {
		_, err := u.r.ResolveField(th, u.li("demo/C", "f", "I"), classfile.OpInvokevirtual, true)
		if err == nil {
			t.Fatal("expected an error")
		}
		if _, ok := KindOf(err); ok {
			t.Errorf("got link error %v for a host mistake", err)
		}
	})
}
