package link

import (
	"errors"
	"strings"
	"testing"

	"github.com/daimatz/javavm/pkg/classfile"
	"github.com/daimatz/javavm/pkg/intrinsics"
	"github.com/daimatz/javavm/pkg/vm"
)

// hierarchy: demo/A <- demo/B <- demo/C, B overrides m.
func hierarchy(t *testing.T, extra ...*classfile.ClassFile) *universe {
	t.Helper()
	cfs := []*classfile.ClassFile{
		def("demo/A", vm.ObjectClass, pub, nil,
			m(pub, "<init>"), m(pub, "m"), m(pub|final, "f"), m(private, "p"), m(pub|static, "s")),
		def("demo/B", "demo/A", pub, nil, m(pub, "m")),
		def("demo/C", "demo/B", pub, nil),
	}
	return newUniverse(t, append(cfs, extra...)...)
}

func TestResolveMethodShadowing(t *testing.T) {
	u := hierarchy(t)
	tests := []struct {
		class, name string
		want        string
	}{
		{"demo/A", "m", "demo/A"},
		{"demo/B", "m", "demo/B"},
		{"demo/C", "m", "demo/B"},
		{"demo/C", "f", "demo/A"},
		{"demo/C", "hashCode", vm.ObjectClass},
	}
	for _, tt := range tests {
		t.Run(tt.class+"."+tt.name, func(t *testing.T) {
			desc := "()V"
			if tt.name == "hashCode" {
				desc = "()I"
			}
			got, err := u.r.ResolveMethod(u.li(tt.class, tt.name, desc), true)
			if err != nil {
				t.Fatalf("ResolveMethod: %v", err)
			}
			if got.Class().Name() != tt.want {
				t.Errorf("got %s, want a method of %s", got, tt.want)
			}
		})
	}
}

func TestResolveMethodNotFound(t *testing.T) {
	u := hierarchy(t)
	_, err := u.r.ResolveMethod(u.li("demo/C", "nope", "()V"), true)
	le := wantKind(t, err, NoSuchMethod)
	if le.Message != "demo/C.nope()V" {
		t.Errorf("message: got %q", le.Message)
	}
	if le.Owner != "demo/C" || le.Name != "nope" || le.Descriptor != "()V" {
		t.Errorf("reference: got %s.%s%s", le.Owner, le.Name, le.Descriptor)
	}
	if IsUnsupported(err) {
		t.Error("a missing method is not an engine limitation")
	}
}

func TestResolveVirtualCall(t *testing.T) {
	u := hierarchy(t)
	a := u.class("demo/A")
	am := a.UncachedLookupMethod("m", "()V")
	bm := u.class("demo/B").UncachedLookupMethod("m", "()V")

	tests := []struct {
		name         string
		recv         string
		method       string
		wantResolved *vm.Method
		wantSelected *vm.Method
		wantIndex    int
	}{
		{"own class", "demo/A", "m", am, am, am.VtableIndex()},
		{"override selected", "demo/B", "m", am, bm, am.VtableIndex()},
		{"inherited override", "demo/C", "m", am, bm, am.VtableIndex()},
		{"final method", "demo/C", "f", a.UncachedLookupMethod("f", "()V"), a.UncachedLookupMethod("f", "()V"), vm.NonvirtualVtableIndex},
		{"private method", "demo/A", "p", a.UncachedLookupMethod("p", "()V"), a.UncachedLookupMethod("p", "()V"), vm.NonvirtualVtableIndex},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recv := u.object(tt.recv)
			ci, err := u.r.ResolveVirtualCall(recv, u.class(tt.recv), u.li("demo/A", tt.method, "()V"), true)
			if err != nil {
				t.Fatalf("ResolveVirtualCall: %v", err)
			}
			if ci.Kind != Virtual {
				t.Errorf("kind: got %s", ci.Kind)
			}
			if ci.ResolvedMethod != tt.wantResolved {
				t.Errorf("resolved: got %s, want %s", ci.ResolvedMethod, tt.wantResolved)
			}
			if ci.SelectedMethod != tt.wantSelected {
				t.Errorf("selected: got %s, want %s", ci.SelectedMethod, tt.wantSelected)
			}
			if ci.VtableIndex != tt.wantIndex {
				t.Errorf("vtable index: got %d, want %d", ci.VtableIndex, tt.wantIndex)
			}
			if ci.ReceiverClass != u.class(tt.recv) || ci.ResolvedClass != a {
				t.Errorf("classes: got %s on %s", ci.ResolvedClass, ci.ReceiverClass)
			}
		})
	}
}

func TestResolveVirtualCallNullReceiver(t *testing.T) {
	u := hierarchy(t)
	c := u.class("demo/C")
	before := c.LookupCount()

	_, err := u.r.ResolveVirtualCall(vm.NullValue(), c, u.li("demo/A", "m", "()V"), true)
	le := wantKind(t, err, NullReference)
	if le.Message != "" {
		t.Errorf("message: got %q, want empty", le.Message)
	}
	// レシーバのクラスは一度も参照されない
	if got := c.LookupCount(); got != before {
		t.Errorf("receiver class lookups: got %d, want %d", got, before)
	}

	t.Run("unchecked", func(t *testing.T) {
		ci, err := u.r.ResolveVirtualCall(vm.NullValue(), nil, u.li("demo/A", "m", "()V"), false)
		if err != nil {
			t.Fatalf("ResolveVirtualCall: %v", err)
		}
		if ci.ReceiverClass != u.class("demo/A") {
			t.Errorf("receiver class: got %s, want the resolved class", ci.ReceiverClass)
		}
	})
}

func TestResolveVirtualCallErrors(t *testing.T) {
	u := hierarchy(t,
		def("demo/I", vm.ObjectClass, iface|pub, nil, m(private, "p"), m(pub|abstract, "run")),
		def("demo/Shape", vm.ObjectClass, pub|abstract, nil, m(pub|abstract, "area")),
		def("demo/Square", "demo/Shape", pub, nil, m(pub, "area")),
	)

	tests := []struct {
		name     string
		li       LinkInfo
		recv     string
		kind     Kind
		contains string
	}{
		{"private interface method", u.li("demo/I", "p", "()V"), "demo/A", IncompatibleLinkage, "demo/I"},
		{"interface reference", u.li("demo/I", "run", "()V"), "demo/A", IncompatibleLinkage, "Found interface demo/I, but class was expected"},
		{"static method", u.li("demo/A", "s", "()V"), "demo/A", IncompatibleLinkage, "Expecting non-static method"},
		{"missing method", u.li("demo/A", "nope", "()V"), "demo/A", NoSuchMethod, "demo/A.nope()V"},
		{"receiver without the slot", u.li("demo/A", "m", "()V"), vm.ObjectClass, NoSuchMethod, "demo/A.m()V"},
		{"abstract selection", u.li("demo/Shape", "area", "()V"), "demo/Shape", AbstractMethodInvocation, "demo/Shape.area()V"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := u.r.ResolveVirtualCall(u.object(tt.recv), u.class(tt.recv), tt.li, true)
			le := wantKind(t, err, tt.kind)
			if !strings.Contains(le.Message, tt.contains) {
				t.Errorf("message: got %q, want it to contain %q", le.Message, tt.contains)
			}
			if !le.Catchable() {
				t.Error("linkage errors are delivered to the program")
			}
		})
	}

	t.Run("abstract unchecked", func(t *testing.T) {
		ci, err := u.r.ResolveVirtualCall(u.object("demo/Shape"), u.class("demo/Shape"), u.li("demo/Shape", "area", "()V"), false)
		if err != nil {
			t.Fatalf("ResolveVirtualCall: %v", err)
		}
		if !ci.SelectedMethod.IsAbstract() {
			t.Errorf("selected: got %s, want the abstract declaration", ci.SelectedMethod)
		}
	})

	t.Run("concrete override", func(t *testing.T) {
		ci, err := u.r.ResolveVirtualCall(u.object("demo/Square"), u.class("demo/Square"), u.li("demo/Shape", "area", "()V"), true)
		if err != nil {
			t.Fatalf("ResolveVirtualCall: %v", err)
		}
		if ci.SelectedMethod.Class().Name() != "demo/Square" {
			t.Errorf("selected: got %s", ci.SelectedMethod)
		}
	})
}

func TestResolveVirtualCallUnrelatedReceiver(t *testing.T) {
	// 同じ長さの vtable を持つ無関係なクラス
	u := newUniverse(t,
		def("demo/A", vm.ObjectClass, pub, nil, m(pub, "m")),
		def("demo/B", vm.ObjectClass, pub, nil, m(pub, "other")),
		def("demo/Sub", "demo/A", pub, nil, m(pub, "m")),
	)
	a, b := u.class("demo/A"), u.class("demo/B")
	if am, bm := a.FindMethod("m", "()V"), b.FindMethod("other", "()V"); am.VtableIndex() != bm.VtableIndex() {
		t.Fatalf("vtable slots differ: %d and %d", am.VtableIndex(), bm.VtableIndex())
	}

	for _, checked := range []bool{true, false} {
		_, err := u.r.ResolveVirtualCall(u.object("demo/B"), b, u.li("demo/A", "m", "()V"), checked)
		le := wantKind(t, err, NoSuchMethod)
		if !strings.Contains(le.Message, "demo/A.m()V") || !strings.Contains(le.Message, "demo/B") {
			t.Errorf("checked=%v message: got %q", checked, le.Message)
		}
	}

	ci, err := u.r.ResolveVirtualCall(u.object("demo/Sub"), u.class("demo/Sub"), u.li("demo/A", "m", "()V"), true)
	if err != nil {
		t.Fatalf("ResolveVirtualCall: %v", err)
	}
	if ci.SelectedMethod.Class().Name() != "demo/Sub" {
		t.Errorf("selected: got %s, want demo/Sub.m()V", ci.SelectedMethod)
	}
}

func TestResolveInterfaceCall(t *testing.T) {
	u := newUniverse(t,
		def("demo/I", vm.ObjectClass, iface|pub, nil,
			m(pub|abstract, "run"), m(pub|static, "util")),
		def("demo/Impl", vm.ObjectClass, pub, []string{"demo/I"},
			m(pub, "run"), method{pub, "hashCode", "()I"}),
		def("demo/Plain", vm.ObjectClass, pub, nil),
	)
	impl := u.object("demo/Impl")

	t.Run("object method", func(t *testing.T) {
		ci, err := u.r.ResolveInterfaceCall(impl, u.class("demo/Impl"), u.li("demo/I", "hashCode", "()I"), true)
		if err != nil {
			t.Fatalf("ResolveInterfaceCall: %v", err)
		}
		if ci.ResolvedMethod.Class() != u.d.Object() {
			t.Errorf("resolved: got %s", ci.ResolvedMethod)
		}
		if ci.SelectedMethod.Class().Name() != "demo/Impl" {
			t.Errorf("selected: got %s", ci.SelectedMethod)
		}
	})

	t.Run("interface dispatch", func(t *testing.T) {
		_, err := u.r.ResolveInterfaceCall(impl, u.class("demo/Impl"), u.li("demo/I", "run", "()V"), true)
		if !IsUnsupported(err) {
			t.Fatalf("got %v, want an unsupported error", err)
		}
		if !errors.Is(err, ErrUnsupported) {
			t.Error("errors.Is(err, ErrUnsupported) = false")
		}
		le := wantKind(t, err, Unsupported)
		if le.Catchable() {
			t.Error("unsupported paths are not catchable")
		}
		if _, terr := le.Throwable(u.vm); terr == nil {
			t.Error("Throwable of an unsupported error should fail")
		}
	})

	tests := []struct {
		name     string
		li       LinkInfo
		kind     Kind
		contains string
	}{
		{"class reference", u.li("demo/Plain", "hashCode", "()I"), IncompatibleLinkage, "Found class demo/Plain, but interface was expected"},
		{"static interface method", u.li("demo/I", "util", "()V"), IncompatibleLinkage, "Expected instance not static method"},
		{"protected object member", u.li("demo/I", "clone", "()Ljava/lang/Object;"), NoSuchMethod, "demo/I.clone"},
		{"missing", u.li("demo/I", "nope", "()V"), NoSuchMethod, "demo/I.nope()V"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := u.r.ResolveInterfaceCall(impl, u.class("demo/Impl"), tt.li, true)
			le := wantKind(t, err, tt.kind)
			if !strings.Contains(le.Message, tt.contains) {
				t.Errorf("message: got %q, want it to contain %q", le.Message, tt.contains)
			}
		})
	}
}

func TestInterfaceHidesObjectMembers(t *testing.T) {
	u := newUniverse(t,
		def("demo/I", vm.ObjectClass, iface|pub, nil),
		def("demo/A", vm.ObjectClass, pub, nil),
	)
	i := u.class("demo/I")
	a := u.class("demo/A")

	tests := []struct {
		name, desc string
		visible    bool
	}{
		{"toString", "()Ljava/lang/String;", true},
		{"hashCode", "()I", true},
		{"clone", "()Ljava/lang/Object;", false},
		{"finalize", "()V", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := u.r.LookupMethodInClasses(i, tt.name, tt.desc, false, true)
			if h.IsFound() != tt.visible {
				t.Errorf("from interface: found = %v, want %v", h.IsFound(), tt.visible)
			}
			// クラスからは常に見える
			if !u.r.LookupMethodInClasses(a, tt.name, tt.desc, true, false).IsFound() {
				t.Errorf("from class: %s not found", tt.name)
			}
		})
	}
}

func TestLookupMethodsInInterfaces(t *testing.T) {
	u := newUniverse(t,
		def("demo/I", vm.ObjectClass, iface|pub, nil, m(pub, "greet")),
		def("demo/Impl", vm.ObjectClass, pub, []string{"demo/I"}),
	)
	h := u.r.LookupMethodsInInterfaces(u.class("demo/Impl"), "greet", "()V")
	if h.IsFound() {
		t.Fatal("default methods are never found")
	}
	if reason, ok := h.IsNotImplemented(); !ok || reason == "" {
		t.Errorf("IsNotImplemented: got (%q, %v)", reason, ok)
	}

	_, err := u.r.ResolveMethod(u.li("demo/Impl", "greet", "()V"), true)
	wantKind(t, err, NoSuchMethod)
}

func TestResolveSpecialCall(t *testing.T) {
	u := hierarchy(t,
		def("demo/Shape", vm.ObjectClass, pub|abstract, nil, m(pub, "<init>"), m(pub|abstract, "area")),
		def("demo/Square", "demo/Shape", pub, nil, m(pub, "area")),
	)
	a := u.class("demo/A")
	am := a.UncachedLookupMethod("m", "()V")
	bm := u.class("demo/B").UncachedLookupMethod("m", "()V")

	tests := []struct {
		name    string
		li      LinkInfo
		current string
		want    *vm.Method
	}{
		{"super call binds to closest override", u.li("demo/A", "m", "()V"), "demo/C", bm},
		{"direct super call", u.li("demo/A", "m", "()V"), "demo/B", am},
		{"host call", u.li("demo/A", "m", "()V"), "", am},
		{"constructor", u.li("demo/A", "<init>", "()V"), "demo/C", a.UncachedLookupMethod("<init>", "()V")},
		{"private method", u.li("demo/A", "p", "()V"), "demo/A", a.UncachedLookupMethod("p", "()V")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			li := tt.li
			if tt.current != "" {
				li.CurrentClass = u.class(tt.current)
			}
			ci, err := u.r.ResolveSpecialCall(li, false)
			if err != nil {
				t.Fatalf("ResolveSpecialCall: %v", err)
			}
			if ci.Kind != Special || ci.VtableIndex != vm.NonvirtualVtableIndex {
				t.Errorf("got %s with index %d", ci.Kind, ci.VtableIndex)
			}
			if ci.SelectedMethod != tt.want {
				t.Errorf("selected: got %s, want %s", ci.SelectedMethod, tt.want)
			}
		})
	}

	t.Run("static method", func(t *testing.T) {
		_, err := u.r.ResolveSpecialCall(u.li("demo/A", "s", "()V"), false)
		wantKind(t, err, IncompatibleLinkage)
	})
	t.Run("abstract super method", func(t *testing.T) {
		li := u.li("demo/Shape", "area", "()V")
		li.CurrentClass = u.class("demo/Square")
		_, err := u.r.ResolveSpecialCall(li, false)
		wantKind(t, err, AbstractMethodInvocation)
	})
}

func TestResolveStaticCall(t *testing.T) {
	u := hierarchy(t,
		def("demo/I", vm.ObjectClass, iface|pub, nil, m(pub|static, "util")),
	)
	th := u.vm.NewThread("main")

	t.Run("class method", func(t *testing.T) {
		ci, err := u.r.ResolveStaticCall(th, u.li("demo/C", "s", "()V"), true)
		if err != nil {
			t.Fatalf("ResolveStaticCall: %v", err)
		}
		if ci.Kind != Static || ci.SelectedMethod != ci.ResolvedMethod {
			t.Errorf("got %s", ci)
		}
		if ci.SelectedMethod.Class().Name() != "demo/A" {
			t.Errorf("selected: got %s", ci.SelectedMethod)
		}
		if ci.VtableIndex != vm.InvalidVtableIndex {
			t.Errorf("vtable index: got %d", ci.VtableIndex)
		}
	})

	t.Run("interface method", func(t *testing.T) {
		ci, err := u.r.ResolveStaticCall(th, u.li("demo/I", "util", "()V"), true)
		if err != nil {
			t.Fatalf("ResolveStaticCall: %v", err)
		}
		if ci.SelectedMethod.Class().Name() != "demo/I" {
			t.Errorf("selected: got %s", ci.SelectedMethod)
		}
	})

	t.Run("instance method", func(t *testing.T) {
		_, err := u.r.ResolveStaticCall(th, u.li("demo/A", "m", "()V"), true)
		le := wantKind(t, err, IncompatibleLinkage)
		if le.Message != "Expected static method demo/A.m()V" {
			t.Errorf("message: got %q", le.Message)
		}
	})
}

// initUniverse declares demo/S whose class initializer replaces the static
// method old with fresh.
func initUniverse(t *testing.T, runs *int, fail error) *universe {
	t.Helper()
	u := newUniverse(t, def("demo/S", vm.ObjectClass, pub, nil,
		m(static, "<clinit>"), m(pub|static, "old")))
	u.vm.Clinit = vm.ClinitFunc(func(_ *vm.Thread, c *vm.Class, _ *vm.Method) error {
		*runs++
		if fail != nil {
			return fail
		}
		c.RemoveMethod("old", "()V")
		c.RedefineMethod(vm.NewMethod(pub|static, "fresh", "()V",
			&classfile.CodeAttribute{MaxLocals: 0, Code: []byte{classfile.OpReturn}}))
		return nil
	})
	return u
}

func TestResolveStaticCallInitialization(t *testing.T) {
	t.Run("method created by the initializer", func(t *testing.T) {
		var runs int
		u := initUniverse(t, &runs, nil)
		ci, err := u.r.ResolveStaticCall(u.vm.NewThread("main"), u.li("demo/S", "fresh", "()V"), true)
		if err != nil {
			t.Fatalf("ResolveStaticCall: %v", err)
		}
		if ci.SelectedMethod.Name() != "fresh" {
			t.Errorf("selected: got %s", ci.SelectedMethod)
		}
		if runs != 1 {
			t.Errorf("initializer runs: got %d, want 1", runs)
		}
	})

	t.Run("method removed by the initializer", func(t *testing.T) {
		var runs int
		u := initUniverse(t, &runs, nil)
		_, err := u.r.ResolveStaticCall(u.vm.NewThread("main"), u.li("demo/S", "old", "()V"), true)
		wantKind(t, err, NoSuchMethod)
		if runs != 1 {
			t.Errorf("initializer runs: got %d, want 1", runs)
		}
	})

	t.Run("without initialization", func(t *testing.T) {
		var runs int
		u := initUniverse(t, &runs, nil)
		_, err := u.r.ResolveStaticCall(u.vm.NewThread("main"), u.li("demo/S", "fresh", "()V"), false)
		wantKind(t, err, NoSuchMethod)
		if runs != 0 || !u.class("demo/S").ShouldBeInitialized() {
			t.Errorf("class was initialized (%d runs)", runs)
		}
	})

	t.Run("already initialized", func(t *testing.T) {
		var runs int
		u := initUniverse(t, &runs, nil)
		th := u.vm.NewThread("main")
		for i := 0; i < 3; i++ {
			if _, err := u.r.ResolveStaticCall(th, u.li("demo/S", "fresh", "()V"), true); err != nil {
				t.Fatalf("call %d: %v", i, err)
			}
		}
		if runs != 1 {
			t.Errorf("initializer runs: got %d, want 1", runs)
		}
	})

	t.Run("failing initializer", func(t *testing.T) {
		var runs int
		boom := errors.New("boom")
		u := initUniverse(t, &runs, boom)
		_, err := u.r.ResolveStaticCall(u.vm.NewThread("main"), u.li("demo/S", "old", "()V"), true)
		if !errors.Is(err, boom) {
			t.Fatalf("got %v, want the initializer's error", err)
		}
		if _, ok := KindOf(err); ok {
			t.Errorf("initializer failure reported as a link error: %v", err)
		}
	})

	t.Run("other link errors are not deferred", func(t *testing.T) {
		var runs int
		u := initUniverse(t, &runs, nil)
		u.class("demo/S").RedefineMethod(vm.NewMethod(pub, "inst", "()V",
			&classfile.CodeAttribute{MaxLocals: 1, Code: []byte{classfile.OpReturn}}))
		_, err := u.r.ResolveStaticCall(u.vm.NewThread("main"), u.li("demo/S", "inst", "()V"), true)
		wantKind(t, err, IncompatibleLinkage)
		if runs != 0 {
			t.Errorf("initializer runs: got %d, want 0", runs)
		}
	})
}

func TestResolveArrayMethods(t *testing.T) {
	u := newUniverse(t)
	arr := u.class("[Ljava/lang/String;")

	tests := []struct {
		name, desc string
		owner      *vm.Class
	}{
		{"clone", "()Ljava/lang/Object;", arr},
		{"hashCode", "()I", u.d.Object()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := u.r.ResolveMethod(LinkInfo{ResolvedClass: arr, Name: tt.name, Descriptor: tt.desc}, true)
			if err != nil {
				t.Fatalf("ResolveMethod: %v", err)
			}
			if got.Class() != tt.owner {
				t.Errorf("got %s, want a method of %s", got, tt.owner)
			}
		})
	}

	_, err := u.r.ResolveMethod(LinkInfo{ResolvedClass: arr, Name: "length", Descriptor: "()I"}, true)
	wantKind(t, err, NoSuchMethod)
}

func TestResolvePolymorphicMethod(t *testing.T) {
	u := newUniverse(t, def("demo/MyHandle", vm.MethodHandleClass, pub, nil))
	basic, err := u.reg.Spin(intrinsics.InvokeBasic, "(Ljava/lang/Object;I)I")
	if err != nil {
		t.Fatalf("Spin: %v", err)
	}
	spun, err := u.reg.Spin(intrinsics.LinkToStatic, "(Ljava/lang/Object;Ljava/lang/invoke/MemberName;)V")
	if err != nil {
		t.Fatalf("Spin: %v", err)
	}

	tests := []struct {
		name, desc string
		want       *vm.Method
	}{
		{"invokeBasic", "(Ljava/lang/String;I)Z", basic},
		{"invokeBasic", "(Ljava/util/List;S)C", basic},
		{"linkToStatic", "(Ljava/lang/String;Ljava/lang/invoke/MemberName;)V", spun},
	}
	for _, tt := range tests {
		t.Run(tt.name+tt.desc, func(t *testing.T) {
			got, err := u.r.ResolveMethod(u.li(vm.MethodHandleClass, tt.name, tt.desc), true)
			if err != nil {
				t.Fatalf("ResolveMethod: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}

	errTests := []struct {
		name, class, method, desc string
		kind                      Kind
	}{
		{"unregistered shape", vm.MethodHandleClass, "invokeBasic", "(J)J", NoSuchMethod},
		// 汎用の宣言そのものは見つからない
		{"generic declaration", vm.MethodHandleClass, "invokeBasic", "([Ljava/lang/Object;)Ljava/lang/Object;", NoSuchMethod},
		{"invokeExact", vm.MethodHandleClass, "invokeExact", "(I)V", Unsupported},
		{"invoke", vm.MethodHandleClass, "invoke", "([Ljava/lang/Object;)Ljava/lang/Object;", Unsupported},
		{"subclass", "demo/MyHandle", "invokeBasic", "(Ljava/lang/Object;I)I", NoSuchMethod},
	}
	for _, tt := range errTests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := u.r.ResolveMethod(u.li(tt.class, tt.method, tt.desc), true)
			wantKind(t, err, tt.kind)
		})
	}
}

func TestResolvePolymorphicWithoutRegistry(t *testing.T) {
	u := newUniverse(t)
	r := NewResolver(u.d, nil, nil)
	_, err := r.ResolveMethod(u.li(vm.MethodHandleClass, "invokeBasic", "(I)I"), true)
	wantKind(t, err, NoSuchMethod)
}

func TestMethodAccessCheck(t *testing.T) {
	u := hierarchy(t)
	li := u.li("demo/A", "m", "()V")
	li.CheckAccess = true
	li.CurrentClass = u.class("demo/C")

	if _, err := u.r.ResolveMethod(li, true); err != nil {
		t.Fatalf("permissive access check: %v", err)
	}

	u.r.StrictAccess = true
	_, err := u.r.ResolveMethod(li, true)
	wantKind(t, err, Unsupported)
	if !IsUnsupported(err) {
		t.Error("IsUnsupported = false")
	}
}
