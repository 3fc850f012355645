// Package native binds Go implementations to the native methods declared
// by the bootstrap classes.
package native

import (
	"fmt"
	"io"
	"sync"

	"github.com/tliron/commonlog"

	"github.com/daimatz/javavm/pkg/stacktrace"
	"github.com/daimatz/javavm/pkg/vm"
)

var log = commonlog.GetLogger("javavm.native")

// Env is what a native method sees of the running machine.
type Env struct {
	VM     *vm.VM
	Thread *vm.Thread
	Stdout io.Writer
	// Natives is the registry the method was found in.
	Natives *Registry
}

// Func implements a native method. For instance methods args[0] is the
// receiver.
type Func func(env *Env, args []vm.Value) (vm.Value, error)

type key struct {
	owner, name, desc string
}

// Registry maps native methods to their implementations. It also owns
// the java/lang/Class mirrors handed out by getClass so that a class has
// one mirror.
type Registry struct {
	Capturer stacktrace.Capturer

	mu      sync.RWMutex
	funcs   map[key]Func
	mirrors map[*vm.Class]*vm.JObject
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		funcs:   make(map[key]Func),
		mirrors: make(map[*vm.Class]*vm.JObject),
	}
}

// NewDefaultRegistry returns a registry holding every native method of
// the bootstrap classes.
func NewDefaultRegistry(capt stacktrace.Capturer) *Registry {
	r := NewRegistry()
	r.Capturer = capt
	RegisterObject(r)
	RegisterThrowable(r)
	RegisterSystem(r)
	return r
}

// Register binds fn to owner.name desc, replacing any earlier binding.
func (r *Registry) Register(owner, name, desc string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[key{owner, name, desc}] = fn
}

// ArrayOwner registers a native method on every array class.
const ArrayOwner = "[]"

// Lookup returns the implementation of m.
func (r *Registry) Lookup(m *vm.Method) (Func, bool) {
	owner := m.Class().Name()
	if m.Class().IsArray() {
		owner = ArrayOwner
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[key{owner, m.Name(), m.Descriptor()}]
	return fn, ok
}

// Len returns the number of bound methods.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.funcs)
}

// Mirror returns the java/lang/Class object of c.
func (r *Registry) Mirror(d *vm.Dictionary, c *vm.Class) (*vm.JObject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.mirrors[c]; ok {
		return m, nil
	}
	cls, err := d.LoadClass("java/lang/Class")
	if err != nil {
		return nil, fmt.Errorf("mirror of %s: %w", c, err)
	}
	m := vm.NewObject(cls)
	m.SetMetadata(mirrorKey, c)
	r.mirrors[c] = m
	return m, nil
}

const mirrorKey = "mirror"

// MirroredClass returns the class a java/lang/Class object stands for.
func MirroredClass(obj *vm.JObject) (*vm.Class, bool) {
	v, ok := obj.Metadata(mirrorKey)
	if !ok {
		return nil, false
	}
	c, ok := v.(*vm.Class)
	return c, ok
}

// receiver returns args[0] as an object.
func receiver(args []vm.Value) (*vm.JObject, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("native: missing receiver")
	}
	obj, ok := args[0].Ref.(*vm.JObject)
	if !ok {
		return nil, fmt.Errorf("native: receiver is %T, not an object", args[0].Ref)
	}
	return obj, nil
}
