package native

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/daimatz/javavm/pkg/vm"
)

var (
	hashes   sync.Map
	nextHash atomic.Int32
)

// IdentityHash returns the identity hash code of ref. Codes are handed out
// in allocation order of the first request.
func IdentityHash(ref any) int32 {
	if h, ok := hashes.Load(ref); ok {
		return h.(int32)
	}
	h, _ := hashes.LoadOrStore(ref, nextHash.Add(1)*0x61c8+0x2a)
	return h.(int32)
}

func identity(className string, ref any) string {
	return fmt.Sprintf("%s@%x", strings.ReplaceAll(className, "/", "."), IdentityHash(ref))
}

// RegisterObject binds java/lang/Object, java/lang/String, java/lang/Class
// and array clone.
func RegisterObject(r *Registry) {
	r.Register(vm.ObjectClass, "hashCode", "()I", func(_ *Env, args []vm.Value) (vm.Value, error) {
		return vm.IntValue(IdentityHash(args[0].Ref)), nil
	})
	r.Register(vm.ObjectClass, "toString", "()Ljava/lang/String;", func(env *Env, args []vm.Value) (vm.Value, error) {
		obj, err := receiver(args)
		if err != nil {
			return vm.Value{}, err
		}
		return vm.RefValue(identity(obj.ClassName(), obj)), nil
	})
	r.Register(vm.ObjectClass, "getClass", "()Ljava/lang/Class;", getClass)
	r.Register(vm.ObjectClass, "clone", "()Ljava/lang/Object;", cloneObject)
	r.Register(ArrayOwner, "clone", "()Ljava/lang/Object;", cloneObject)
	r.Register(vm.ObjectClass, "notify", "()V", func(*Env, []vm.Value) (vm.Value, error) { return vm.Value{}, nil })
	r.Register(vm.ObjectClass, "wait", "(J)V", func(*Env, []vm.Value) (vm.Value, error) { return vm.Value{}, nil })

	r.Register("java/lang/String", "length", "()I", func(_ *Env, args []vm.Value) (vm.Value, error) {
		s, _ := args[0].Ref.(string)
		return vm.IntValue(int32(len([]rune(s)))), nil
	})
	r.Register("java/lang/String", "toString", "()Ljava/lang/String;", func(_ *Env, args []vm.Value) (vm.Value, error) {
		return args[0], nil
	})
	r.Register("java/lang/Class", "getName", "()Ljava/lang/String;", func(_ *Env, args []vm.Value) (vm.Value, error) {
		obj, err := receiver(args)
		if err != nil {
			return vm.Value{}, err
		}
		c, ok := MirroredClass(obj)
		if !ok {
			return vm.Value{}, fmt.Errorf("getName: %s is not a class mirror", obj.ClassName())
		}
		return vm.RefValue(strings.ReplaceAll(c.Name(), "/", ".")), nil
	})
}

func getClass(env *Env, args []vm.Value) (vm.Value, error) {
	var c *vm.Class
	switch ref := args[0].Ref.(type) {
	case *vm.JObject:
		c = ref.Class
	case *vm.JArray:
		c = ref.Class
	case string:
		sc, err := env.VM.Dict.LoadClass("java/lang/String")
		if err != nil {
			return vm.Value{}, err
		}
		c = sc
	default:
		return vm.Value{}, fmt.Errorf("getClass: unexpected receiver %T", ref)
	}
	m, err := env.Natives.Mirror(env.VM.Dict, c)
	if err != nil {
		return vm.Value{}, err
	}
	return vm.RefValue(m), nil
}

func cloneObject(env *Env, args []vm.Value) (vm.Value, error) {
	switch ref := args[0].Ref.(type) {
	case *vm.JArray:
		return vm.RefValue(&vm.JArray{Class: ref.Class, Elements: append([]vm.Value(nil), ref.Elements...)}), nil
	case *vm.JObject:
		cloneable, err := env.VM.Dict.LoadClass("java/lang/Cloneable")
		if err != nil {
			return vm.Value{}, err
		}
		if !cloneable.IsAssignableFrom(ref.Class) {
			ex, err := env.VM.NewThrowable("java/lang/CloneNotSupportedException", ref.ClassName())
			if err != nil {
				return vm.Value{}, err
			}
			env.Natives.FillInStackTrace(env.Thread, ex.Object)
			return vm.Value{}, ex
		}
		cp := vm.NewObject(ref.Class)
		for k, v := range ref.Fields {
			cp.Fields[k] = v
		}
		return vm.RefValue(cp), nil
	}
	return vm.Value{}, fmt.Errorf("clone: unexpected receiver %T", args[0].Ref)
}
