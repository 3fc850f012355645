package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/daimatz/javavm/pkg/config"
	"github.com/daimatz/javavm/pkg/link"
	"github.com/daimatz/javavm/pkg/stacktrace"
)

const universe = `
classes:
  - name: demo/Shape
    flags: [public, super, abstract]
    methods:
      - {name: area, desc: ()I, flags: [public, abstract]}
      - name: <init>
        desc: ()V
        flags: [public]
        code: [aload_0, "invokespecial java/lang/Object.<init>:()V", return]

  - name: demo/Square
    super: demo/Shape
    flags: [public, super]
    fields:
      - {name: UNIT, desc: I, flags: [public, static]}
    methods:
      - name: area
        desc: ()I
        flags: [public]
        code: [iconst_4, ireturn]

  - name: demo/Main
    flags: [public, super]
    source: Main.java
    methods:
      - name: main
        desc: ([Ljava/lang/String;)V
        flags: [public, static]
        code:
          - .line 9
          - iconst_1
          - iconst_0
          - idiv
          - pop
          - return
`

func newTestEnvironment(t *testing.T) *environment {
	t.Helper()
	dir := t.TempDir()
	defs := filepath.Join(dir, "universe.yaml")
	if err := os.WriteFile(defs, []byte(universe), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Dir = dir
	cfg.Loader.Defs = []string{"universe.yaml"}
	cfg.Loader.Jmod = filepath.Join(dir, "missing.jmod")

	env, err := newEnvironment(cfg)
	if err != nil {
		t.Fatalf("newEnvironment: %v", err)
	}
	return env
}

func TestParseRef(t *testing.T) {
	tests := []struct {
		in                string
		owner, name, desc string
		wantErr           bool
	}{
		{in: "demo/Shape.area:()I", owner: "demo/Shape", name: "area", desc: "()I"},
		{in: "java.lang.Object.hashCode:()I", owner: "java/lang/Object", name: "hashCode", desc: "()I"},
		{in: "demo/Shape.area", wantErr: true},
		{in: "area:()I", wantErr: true},
		{in: "demo/Shape.:()I", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			owner, name, desc, err := parseRef(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %s %s %s", owner, name, desc)
				}
				return
			}
			if err != nil || owner != tt.owner || name != tt.name || desc != tt.desc {
				t.Errorf("got %q %q %q %v", owner, name, desc, err)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	env := newTestEnvironment(t)

	tests := []struct {
		name, op, ref, receiver string
		want                    string
		wantKind                link.Kind
	}{
		{name: "virtual", op: "invokevirtual", ref: "demo/Shape.area:()I", receiver: "demo/Square", want: "demo/Square.area()I"},
		{name: "special", op: "invokespecial", ref: "demo/Shape.<init>:()V", want: "demo/Shape.<init>()V"},
		{name: "static field", op: "getstatic", ref: "demo/Square.UNIT:I", want: "static field"},
		{name: "missing method", op: "invokestatic", ref: "demo/Square.nope:()V", wantKind: link.NoSuchMethod},
		{name: "missing field", op: "getfield", ref: "demo/Square.nope:I", wantKind: link.NoSuchField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := env.resolve(&out, tt.op, tt.ref, "", tt.receiver)
			if tt.want == "" {
				var le *link.Error
				if !errors.As(err, &le) || le.Kind != tt.wantKind {
					t.Fatalf("got %v, want %s", err, tt.wantKind)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if !strings.Contains(out.String(), tt.want) {
				t.Errorf("got %q, want it to contain %q", out.String(), tt.want)
			}
		})
	}

	if err := env.resolve(&bytes.Buffer{}, "invokedynamic", "a/B.c:()V", "", ""); err == nil {
		t.Error("unknown instruction accepted")
	}
}

func TestRunWritesTrace(t *testing.T) {
	env := newTestEnvironment(t)
	out := filepath.Join(t.TempDir(), "trace.cbor")

	if code := env.run("demo/Main", nil, out); code != 1 {
		t.Fatalf("exit code: got %d, want 1", code)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	r, err := stacktrace.Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if r.Exception != "java.lang.ArithmeticException" || r.Message != "/ by zero" {
		t.Errorf("got %s: %s", r.Exception, r.Message)
	}
	if len(r.Elements) != 1 || r.Elements[0].LineNumber != 9 || r.Elements[0].FileName != "Main.java" {
		t.Errorf("elements: got %+v", r.Elements)
	}
}

func TestPreload(t *testing.T) {
	env := newTestEnvironment(t)
	if err := env.preload(t.Context(), []string{"demo/Square", " demo/Main", ""}); err != nil {
		t.Fatalf("preload: %v", err)
	}
	if env.machine.Dict.Lookup("demo/Shape") == nil {
		t.Error("supertype of a preloaded class not loaded")
	}
}

func TestWatch(t *testing.T) {
	env := newTestEnvironment(t)
	var out bytes.Buffer
	if err := env.watch(&out, "demo/Main.main:([Ljava/lang/String;)V@2"); err != nil {
		t.Fatalf("watch: %v", err)
	}
	env.run("demo/Main", nil, "")
	if got, want := out.String(), "watch demo/Main.main([Ljava/lang/String;)V@2 stack=[1, 0]"; !strings.HasPrefix(got, want) {
		t.Errorf("got %q, want prefix %q", got, want)
	}

	for _, bad := range []string{"demo/Main.main:()V", "demo/Main.main:()V@x", "demo/Main.nope:()V@0"} {
		if err := env.watch(&out, bad); err == nil {
			t.Errorf("%s: expected error", bad)
		}
	}
}
