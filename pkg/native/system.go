package native

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/daimatz/javavm/pkg/vm"
)

const streamKey = "stream"

// PrintStream is the host side of a java.io.PrintStream.
type PrintStream struct {
	Writer io.Writer
}

// Println prints a value followed by a newline.
func (ps *PrintStream) Println(args ...interface{}) {
	if len(args) == 0 {
		fmt.Fprintln(ps.Writer)
		return
	}
	fmt.Fprintln(ps.Writer, args[0])
}

// RegisterSystem binds java/lang/System and java/io/PrintStream.
func RegisterSystem(r *Registry) {
	r.Register("java/lang/System", "initOut", "()Ljava/io/PrintStream;", initOut)
	r.Register("java/lang/System", "currentTimeMillis", "()J", func(*Env, []vm.Value) (vm.Value, error) {
		return vm.LongValue(time.Now().UnixMilli()), nil
	})
	for _, desc := range []string{"()V", "(I)V", "(J)V", "(Z)V", "(Ljava/lang/String;)V", "(Ljava/lang/Object;)V"} {
		r.Register("java/io/PrintStream", "println", desc, printlnFunc(desc))
	}
}

func initOut(env *Env, _ []vm.Value) (vm.Value, error) {
	c, err := env.VM.Dict.LoadClass("java/io/PrintStream")
	if err != nil {
		return vm.Value{}, err
	}
	w := env.Stdout
	if w == nil {
		w = os.Stdout
	}
	obj := vm.NewObject(c)
	obj.SetMetadata(streamKey, &PrintStream{Writer: w})
	return vm.RefValue(obj), nil
}

func printlnFunc(desc string) Func {
	return func(env *Env, args []vm.Value) (vm.Value, error) {
		obj, err := receiver(args)
		if err != nil {
			return vm.Value{}, err
		}
		v, ok := obj.Metadata(streamKey)
		if !ok {
			return vm.Value{}, fmt.Errorf("println: %s has no stream", obj.ClassName())
		}
		ps := v.(*PrintStream)
		if desc == "()V" {
			ps.Println()
			return vm.Value{}, nil
		}
		arg := args[1]
		switch desc {
		case "(I)V":
			ps.Println(arg.Int)
		case "(J)V":
			ps.Println(arg.Long)
		case "(Z)V":
			ps.Println(arg.Int != 0)
		default:
			ps.Println(Display(env, arg))
		}
		return vm.Value{}, nil
	}
}

// Display renders a reference the way String.valueOf would.
func Display(env *Env, v vm.Value) string {
	if v.IsNull() {
		return "null"
	}
	switch ref := v.Ref.(type) {
	case string:
		return ref
	case *vm.JObject:
		if c, ok := MirroredClass(ref); ok {
			return "class " + strings.ReplaceAll(c.Name(), "/", ".")
		}
		if env.VM.Dict.Throwable().IsAssignableFrom(ref.Class) {
			msg, _ := ref.Fields["detailMessage"].Ref.(string)
			return (&vm.JavaException{Object: ref, Message: msg}).Error()
		}
		return identity(ref.ClassName(), ref)
	case *vm.JArray:
		return identity(ref.Class.Name(), ref)
	}
	return fmt.Sprint(v.Ref)
}
