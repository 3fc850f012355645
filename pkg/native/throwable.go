package native

import (
	"fmt"

	"github.com/daimatz/javavm/pkg/stacktrace"
	"github.com/daimatz/javavm/pkg/vm"
)

const backtraceKey = "backtrace"

// FillInStackTrace captures the current frames of t into obj.
func (r *Registry) FillInStackTrace(t *vm.Thread, obj *vm.JObject) *stacktrace.Trace {
	tr := r.Capturer.Capture(t, obj.Class)
	obj.SetMetadata(backtraceKey, tr)
	return tr
}

// Backtrace returns the trace stored on a throwable, if any.
func Backtrace(obj *vm.JObject) (*stacktrace.Trace, bool) {
	v, ok := obj.Metadata(backtraceKey)
	if !ok {
		return nil, false
	}
	tr, ok := v.(*stacktrace.Trace)
	return tr, ok
}

// RegisterThrowable binds the stack trace natives of java/lang/Throwable.
func RegisterThrowable(r *Registry) {
	r.Register(vm.ThrowableClass, "fillInStackTrace", "(I)Ljava/lang/Throwable;", fillInStackTrace)
	r.Register(vm.ThrowableClass, "getStackTraceDepth", "()I", getStackTraceDepth)
	r.Register(vm.ThrowableClass, "getStackTraceElement", "(I)Ljava/lang/StackTraceElement;", getStackTraceElement)
}

func fillInStackTrace(env *Env, args []vm.Value) (vm.Value, error) {
	obj, err := receiver(args)
	if err != nil {
		return vm.Value{}, err
	}
	env.Natives.FillInStackTrace(env.Thread, obj)
	return args[0], nil
}

func getStackTraceDepth(env *Env, args []vm.Value) (vm.Value, error) {
	obj, err := receiver(args)
	if err != nil {
		return vm.Value{}, err
	}
	tr, ok := Backtrace(obj)
	if !ok {
		return vm.IntValue(0), nil
	}
	return vm.IntValue(int32(tr.Depth())), nil
}

func getStackTraceElement(env *Env, args []vm.Value) (vm.Value, error) {
	obj, err := receiver(args)
	if err != nil {
		return vm.Value{}, err
	}
	tr, ok := Backtrace(obj)
	if !ok {
		tr = &stacktrace.Trace{}
	}
	e, err := tr.Element(int(args[1].Int))
	if err != nil {
		ex, terr := env.VM.NewThrowable("java/lang/ArrayIndexOutOfBoundsException", err.Error())
		if terr != nil {
			return vm.Value{}, terr
		}
		env.Natives.FillInStackTrace(env.Thread, ex.Object)
		return vm.Value{}, ex
	}
	ste, err := NewStackTraceElement(env.VM.Dict, e)
	if err != nil {
		return vm.Value{}, err
	}
	return vm.RefValue(ste), nil
}

// NewStackTraceElement allocates the java/lang/StackTraceElement of e.
func NewStackTraceElement(d *vm.Dictionary, e stacktrace.Element) (*vm.JObject, error) {
	c := d.StackTraceElement()
	if c == nil {
		return nil, fmt.Errorf("stack trace element: %s is not loaded", vm.StackTraceElementClass)
	}
	obj := vm.NewObject(c)
	obj.Fields["declaringClass"] = vm.RefValue(e.ClassName)
	obj.Fields["methodName"] = vm.RefValue(e.MethodName)
	if e.FileName != "" {
		obj.Fields["fileName"] = vm.RefValue(e.FileName)
	}
	obj.Fields["lineNumber"] = vm.IntValue(int32(e.LineNumber))
	return obj, nil
}
