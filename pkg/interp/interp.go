// Package interp executes bytecode on vm threads, linking every invoke and
// field instruction through package link.
package interp

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/daimatz/javavm/pkg/classfile"
	"github.com/daimatz/javavm/pkg/link"
	"github.com/daimatz/javavm/pkg/native"
	"github.com/daimatz/javavm/pkg/stacktrace"
	"github.com/daimatz/javavm/pkg/vm"
)

var log = commonlog.GetLogger("javavm.interp")

// ErrUnboundNative is returned when a native method has no implementation.
var ErrUnboundNative = errors.New("native method not bound")

// Interpreter runs methods of one VM.
type Interpreter struct {
	VM      *vm.VM
	Linker  *link.Linker
	Natives *native.Registry
	Stdout  io.Writer

	watches watchlist
}

// New creates an interpreter and installs it as the VM's class
// initializer runner. A nil natives selects the default registry.
func New(machine *vm.VM, linker *link.Linker, natives *native.Registry) *Interpreter {
	if natives == nil {
		natives = native.NewDefaultRegistry(stacktrace.Capturer{})
	}
	in := &Interpreter{
		VM:      machine,
		Linker:  linker,
		Natives: natives,
		Stdout:  os.Stdout,
	}
	machine.Clinit = in
	return in
}

// RunClinit implements vm.ClinitRunner.
func (in *Interpreter) RunClinit(t *vm.Thread, c *vm.Class, clinit *vm.Method) error {
	_, err := in.Invoke(t, clinit, nil)
	return err
}

// RunMain initializes className and runs its main method with args.
func (in *Interpreter) RunMain(t *vm.Thread, className string, args []string) error {
	c, err := in.VM.Dict.LoadClass(className)
	if err != nil {
		return err
	}
	m := c.FindMethod("main", "([Ljava/lang/String;)V")
	if m == nil || !m.IsStatic() {
		return fmt.Errorf("%s: main method not found", className)
	}
	arrClass, err := in.VM.Dict.LoadClass("[Ljava/lang/String;")
	if err != nil {
		return err
	}
	argv := &vm.JArray{Class: arrClass, Elements: make([]vm.Value, len(args))}
	for i, a := range args {
		argv.Elements[i] = vm.RefValue(a)
	}
	if err := in.initialize(t, c); err != nil {
		return err
	}
	_, err = in.Invoke(t, m, []vm.Value{vm.RefValue(argv)})
	return err
}

// Invoke runs m on t with args, the receiver first for instance methods.
// A Java exception escaping m is returned as a *vm.JavaException.
func (in *Interpreter) Invoke(t *vm.Thread, m *vm.Method, args []vm.Value) (vm.Value, error) {
	if m.IsAbstract() {
		return vm.Value{}, in.throw(t, "java/lang/AbstractMethodError", m.String())
	}
	frame := vm.NewFrame(m)
	if err := t.PushFrame(frame); err != nil {
		if errors.Is(err, vm.ErrStackOverflow) {
			return vm.Value{}, in.throw(t, "java/lang/StackOverflowError", "")
		}
		return vm.Value{}, err
	}
	defer t.PopFrame()
	log.Debugf("invoke %s on %s", m, t)

	if m.IsNative() {
		fn, ok := in.Natives.Lookup(m)
		if !ok {
			return vm.Value{}, fmt.Errorf("%w: %s", ErrUnboundNative, m)
		}
		return fn(&native.Env{VM: in.VM, Thread: t, Stdout: in.Stdout, Natives: in.Natives}, args)
	}
	if frame.Code == nil {
		return vm.Value{}, fmt.Errorf("method %s has no Code attribute", m)
	}

	// long arguments take two local slots
	slot := 0
	for _, arg := range args {
		frame.SetLocal(slot, arg)
		slot++
		if arg.Type == vm.TypeLong {
			slot++
		}
	}

	for frame.PC < len(frame.Code) {
		if in.watches.n.Load() > 0 {
			in.notify(t, frame)
		}
		opcode := frame.Fetch()
		retVal, hasReturn, err := in.executeInstruction(t, frame, opcode)
		if err != nil {
			ex, ok := err.(*vm.JavaException)
			if !ok {
				return vm.Value{}, err
			}
			handler, found := in.findHandler(frame, ex.Object)
			if !found {
				return vm.Value{}, ex
			}
			frame.SP = 0
			frame.Push(vm.RefValue(ex.Object))
			frame.PC = handler
			continue
		}
		if hasReturn {
			return retVal, nil
		}
	}

	// Fell off the end of the method (implicit return for void methods)
	return vm.Value{}, nil
}

// findHandler searches the exception table of frame's method for the
// first handler covering the current instruction that catches obj.
func (in *Interpreter) findHandler(frame *vm.Frame, obj *vm.JObject) (int, bool) {
	code := frame.Method.Code()
	pc := frame.InsnPC
	for _, h := range code.ExceptionHandlers {
		if pc < int(h.StartPC) || pc >= int(h.EndPC) {
			continue
		}
		if h.CatchType == 0 {
			return int(h.HandlerPC), true
		}
		name, err := classfile.GetClassName(frame.Class().ClassFile().ConstantPool, h.CatchType)
		if err != nil {
			log.Warningf("exception table of %s: %v", frame.Method, err)
			continue
		}
		c, err := in.VM.Dict.LoadClass(name)
		if err != nil {
			continue
		}
		if c.IsAssignableFrom(obj.Class) {
			return int(h.HandlerPC), true
		}
	}
	return 0, false
}

// throw allocates className with a trace of t's current frames.
func (in *Interpreter) throw(t *vm.Thread, className, message string) error {
	ex, err := in.VM.NewThrowable(className, message)
	if err != nil {
		return err
	}
	in.Natives.FillInStackTrace(t, ex.Object)
	return ex
}

// fault turns a linkage or initialization failure into the exception the
// running program sees. Failures the program cannot observe are returned
// unchanged and stop the run.
func (in *Interpreter) fault(t *vm.Thread, err error) error {
	var le *link.Error
	if errors.As(err, &le) {
		if !le.Catchable() {
			return err
		}
		return in.throw(t, le.Kind.ExceptionClass(), le.Message)
	}
	if errors.Is(err, vm.ErrClassNotFound) {
		return in.throw(t, "java/lang/NoClassDefFoundError", err.Error())
	}
	if errors.Is(err, vm.ErrErroneousClass) {
		return in.throw(t, "java/lang/NoClassDefFoundError", err.Error())
	}
	var ex *vm.JavaException
	if errors.As(err, &ex) {
		if isError(in.VM.Dict, ex.Object.Class) {
			return ex
		}
		return in.throw(t, "java/lang/ExceptionInInitializerError", ex.Error())
	}
	return err
}

func isError(d *vm.Dictionary, c *vm.Class) bool {
	e := d.Lookup("java/lang/Error")
	return e != nil && e.IsAssignableFrom(c)
}

// initialize runs class initialization, reporting failures as exceptions.
func (in *Interpreter) initialize(t *vm.Thread, c *vm.Class) error {
	if err := in.VM.Initialize(t, c); err != nil {
		return in.fault(t, err)
	}
	return nil
}

func dotted(name string) string {
	return strings.ReplaceAll(name, "/", ".")
}
