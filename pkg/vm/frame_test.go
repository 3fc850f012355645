package vm

import (
	"testing"

	"github.com/daimatz/javavm/pkg/classfile"
)

func newTestFrame(maxLocals, maxStack uint16) *Frame {
	m := NewMethod(classfile.AccStatic, "test", "()V", &classfile.CodeAttribute{
		MaxStack:  maxStack,
		MaxLocals: maxLocals,
		Code:      []byte{classfile.OpNop, classfile.OpIconst1, classfile.OpReturn},
	})
	return NewFrame(m)
}

func TestFramePushPop(t *testing.T) {
	t.Run("LIFO order", func(t *testing.T) {
		frame := newTestFrame(0, 10)

		frame.Push(IntValue(10))
		frame.Push(IntValue(20))
		frame.Push(IntValue(30))

		v := frame.Pop()
		if v.Int != 30 {
			t.Errorf("first Pop: got %d, want 30", v.Int)
		}

		v = frame.Pop()
		if v.Int != 20 {
			t.Errorf("second Pop: got %d, want 20", v.Int)
		}

		v = frame.Pop()
		if v.Int != 10 {
			t.Errorf("third Pop: got %d, want 10", v.Int)
		}
	})

	t.Run("push after pop reuses space", func(t *testing.T) {
		frame := newTestFrame(0, 10)

		frame.Push(IntValue(1))
		frame.Push(IntValue(2))
		frame.Pop() // remove 2

		frame.Push(IntValue(3))
		v := frame.Pop()
		if v.Int != 3 {
			t.Errorf("got %d, want 3", v.Int)
		}

		v = frame.Pop()
		if v.Int != 1 {
			t.Errorf("got %d, want 1", v.Int)
		}
	})

	t.Run("single push pop", func(t *testing.T) {
		frame := newTestFrame(0, 10)

		frame.Push(IntValue(42))
		v := frame.Pop()
		if v.Int != 42 {
			t.Errorf("got %d, want 42", v.Int)
		}
	})

	t.Run("negative values", func(t *testing.T) {
		frame := newTestFrame(0, 10)

		frame.Push(IntValue(-100))
		v := frame.Pop()
		if v.Int != -100 {
			t.Errorf("got %d, want -100", v.Int)
		}
	})
}

func TestFrameLocalVars(t *testing.T) {
	t.Run("basic set and get", func(t *testing.T) {
		frame := newTestFrame(4, 10)

		frame.SetLocal(0, IntValue(10))
		frame.SetLocal(1, IntValue(20))
		frame.SetLocal(2, IntValue(30))
		frame.SetLocal(3, IntValue(40))

		if v := frame.GetLocal(0); v.Int != 10 {
			t.Errorf("GetLocal(0): got %d, want 10", v.Int)
		}
		if v := frame.GetLocal(1); v.Int != 20 {
			t.Errorf("GetLocal(1): got %d, want 20", v.Int)
		}
		if v := frame.GetLocal(2); v.Int != 30 {
			t.Errorf("GetLocal(2): got %d, want 30", v.Int)
		}
		if v := frame.GetLocal(3); v.Int != 40 {
			t.Errorf("GetLocal(3): got %d, want 40", v.Int)
		}
	})

	t.Run("overwrite local variable", func(t *testing.T) {
		frame := newTestFrame(4, 10)

		frame.SetLocal(0, IntValue(10))
		frame.SetLocal(0, IntValue(99))

		if v := frame.GetLocal(0); v.Int != 99 {
			t.Errorf("GetLocal(0) after overwrite: got %d, want 99", v.Int)
		}
	})

	t.Run("non-contiguous set", func(t *testing.T) {
		frame := newTestFrame(4, 10)

		frame.SetLocal(0, IntValue(100))
		frame.SetLocal(3, IntValue(300))

		if v := frame.GetLocal(0); v.Int != 100 {
			t.Errorf("GetLocal(0): got %d, want 100", v.Int)
		}
		if v := frame.GetLocal(3); v.Int != 300 {
			t.Errorf("GetLocal(3): got %d, want 300", v.Int)
		}
	})

	t.Run("local vars independent from stack", func(t *testing.T) {
		frame := newTestFrame(4, 10)

		frame.SetLocal(0, IntValue(10))
		frame.Push(IntValue(99))

		if v := frame.GetLocal(0); v.Int != 10 {
			t.Errorf("GetLocal(0) after push: got %d, want 10", v.Int)
		}

		v := frame.Pop()
		if v.Int != 99 {
			t.Errorf("Pop after SetLocal: got %d, want 99", v.Int)
		}
	})
}

func TestFrameFetch(t *testing.T) {
	frame := newTestFrame(0, 1)
	if frame.InsnPC != NoPC {
		t.Fatalf("InsnPC before first fetch: got %d, want %d", frame.InsnPC, NoPC)
	}

	want := []byte{classfile.OpNop, classfile.OpIconst1, classfile.OpReturn}
	for pc, op := range want {
		if got := frame.Fetch(); got != op {
			t.Errorf("Fetch at %d: got 0x%02X, want 0x%02X", pc, got, op)
		}
		if frame.InsnPC != pc {
			t.Errorf("InsnPC: got %d, want %d", frame.InsnPC, pc)
		}
		if frame.PC != pc+1 {
			t.Errorf("PC: got %d, want %d", frame.PC, pc+1)
		}
	}
}

func TestFrameReadOperands(t *testing.T) {
	m := NewMethod(classfile.AccStatic, "ops", "()V", &classfile.CodeAttribute{
		Code: []byte{0xFF, 0xFE, 0x01, 0x02, 0xFF, 0xFF, 0xFF, 0xFC, 0x00, 0x01, 0x00, 0x00},
	})
	frame := NewFrame(m)
	if got := frame.ReadI8(); got != -1 {
		t.Errorf("ReadI8: got %d, want -1", got)
	}
	if got := frame.ReadU8(); got != 0xFE {
		t.Errorf("ReadU8: got %d, want 254", got)
	}
	if got := frame.ReadU16(); got != 0x0102 {
		t.Errorf("ReadU16: got %d, want 258", got)
	}
	if got := frame.ReadI32(); got != -4 {
		t.Errorf("ReadI32: got %d, want -4", got)
	}
	if got := frame.ReadI32(); got != 0x10000 {
		t.Errorf("ReadI32: got %d, want 65536", got)
	}
	if frame.PC != 12 {
		t.Errorf("PC: got %d, want 12", frame.PC)
	}
}

func TestNativeFrame(t *testing.T) {
	m := NewMethod(classfile.AccNative, "hashCode", "()I", nil)
	frame := NewFrame(m)
	if frame.Code != nil || frame.InsnPC != NoPC {
		t.Errorf("native frame: got code=%v InsnPC=%d", frame.Code, frame.InsnPC)
	}
}

func TestZeroValue(t *testing.T) {
	tests := []struct {
		desc string
		want Value
	}{
		{"I", IntValue(0)},
		{"Z", IntValue(0)},
		{"J", LongValue(0)},
		{"Ljava/lang/String;", NullValue()},
		{"[I", NullValue()},
	}
	for _, tt := range tests {
		if got := ZeroValue(tt.desc); got != tt.want {
			t.Errorf("ZeroValue(%q): got %+v, want %+v", tt.desc, got, tt.want)
		}
	}
}
