package interp

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/daimatz/javavm/pkg/native"
	"github.com/daimatz/javavm/pkg/vm"
)

// Breakpoint is the state of a frame about to execute a watched
// instruction. Stack and Locals are copies.
type Breakpoint struct {
	Thread *vm.Thread
	Method *vm.Method
	PC     int
	Stack  []vm.Value // bottom first
	Locals []vm.Value

	env *native.Env
}

func (b Breakpoint) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s@%d stack=[", b.Method, b.PC)
	for i, v := range b.Stack {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(b.describe(v))
	}
	sb.WriteString("] locals=[")
	for i, v := range b.Locals {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(b.describe(v))
	}
	sb.WriteString("]")
	return sb.String()
}

func (b Breakpoint) describe(v vm.Value) string {
	switch {
	case v.Type == vm.TypeInt:
		return strconv.Itoa(int(v.Int))
	case v.Type == vm.TypeLong:
		return strconv.FormatInt(v.Long, 10) + "L"
	case v.IsNull():
		return "null"
	}
	if s, ok := v.Ref.(string); ok {
		return strconv.Quote(s)
	}
	return native.Display(b.env, v)
}

type watchKey struct {
	method *vm.Method
	pc     int
}

type watchlist struct {
	n  atomic.Int32
	mu sync.RWMutex
	fn map[watchKey]func(Breakpoint)
}

// Watch calls fn on the executing thread each time m is about to run the
// instruction at pc. A later Watch of the same instruction replaces fn.
func (in *Interpreter) Watch(m *vm.Method, pc int, fn func(Breakpoint)) {
	w := &in.watches
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fn == nil {
		w.fn = make(map[watchKey]func(Breakpoint))
	}
	w.fn[watchKey{m, pc}] = fn
	w.n.Store(int32(len(w.fn)))
}

// Unwatch removes the watch on m at pc.
func (in *Interpreter) Unwatch(m *vm.Method, pc int) {
	w := &in.watches
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.fn, watchKey{m, pc})
	w.n.Store(int32(len(w.fn)))
}

func (in *Interpreter) notify(t *vm.Thread, frame *vm.Frame) {
	w := &in.watches
	w.mu.RLock()
	fn := w.fn[watchKey{frame.Method, frame.PC}]
	w.mu.RUnlock()
	if fn == nil {
		return
	}
	fn(Breakpoint{
		Thread: t,
		Method: frame.Method,
		PC:     frame.PC,
		Stack:  append([]vm.Value(nil), frame.OperandStack[:frame.SP]...),
		Locals: append([]vm.Value(nil), frame.LocalVars...),
		env:    &native.Env{VM: in.VM, Thread: t, Stdout: in.Stdout, Natives: in.Natives},
	})
}
