package intrinsics

import (
	"fmt"
	"sync"

	"github.com/tliron/commonlog"

	"github.com/daimatz/javavm/pkg/classfile"
	"github.com/daimatz/javavm/pkg/vm"
)

var log = commonlog.GetLogger("javavm.intrinsics")

type key struct {
	id        ID
	signature string
}

// Registry holds the method handle intrinsics known to one VM, keyed by
// intrinsic id and basic type signature. It is safe for concurrent use.
type Registry struct {
	holder *vm.Class

	mu      sync.RWMutex
	methods map[key]*vm.Method
}

// NewRegistry creates an empty registry whose spun methods belong to holder,
// normally the dictionary's java/lang/invoke/MethodHandle.
func NewRegistry(holder *vm.Class) *Registry {
	return &Registry{holder: holder, methods: make(map[key]*vm.Method)}
}

// Find returns the intrinsic registered for id and basic signature, or nil.
func (r *Registry) Find(id ID, basicSignature string) *vm.Method {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.methods[key{id, basicSignature}]
}

// Register installs m as the implementation of id for basicSignature,
// replacing any earlier one.
func (r *Registry) Register(id ID, basicSignature string, m *vm.Method) error {
	if !IsSignaturePolymorphicIntrinsic(id) {
		return fmt.Errorf("register %s%s: not a signature-polymorphic intrinsic", id, basicSignature)
	}
	r.mu.Lock()
	r.methods[key{id, basicSignature}] = m
	r.mu.Unlock()
	log.Debugf("registered %s%s -> %s", id, basicSignature, m)
	return nil
}

// Spin returns the intrinsic for id and basicSignature, creating a native
// method on the holder class when none is registered yet.
func (r *Registry) Spin(id ID, basicSignature string) (*vm.Method, error) {
	if !IsSignaturePolymorphicIntrinsic(id) {
		return nil, fmt.Errorf("spin %s%s: not a signature-polymorphic intrinsic", id, basicSignature)
	}
	if _, err := classfile.ParseMethodDescriptor(basicSignature); err != nil {
		return nil, fmt.Errorf("spin %s: %w", id, err)
	}

	k := key{id, basicSignature}
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.methods[k]; ok {
		return m, nil
	}
	flags := uint16(classfile.AccFinal)
	if IsSignaturePolymorphicStatic(id) {
		flags = classfile.AccStatic
	}
	m := r.holder.NewSyntheticMethod(flags, id.String(), basicSignature)
	r.methods[k] = m
	log.Debugf("spun %s", m)
	return m, nil
}

// Len returns the number of registered intrinsics.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.methods)
}
