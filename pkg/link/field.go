package link

import (
	"fmt"

	"github.com/daimatz/javavm/pkg/classfile"
	"github.com/daimatz/javavm/pkg/vm"
)

// ResolveField finds the field li names by walking li.ResolvedClass, its
// superinterfaces and its superclasses. op is one of getstatic, putstatic,
// getfield and putfield and only decides the flags of the result. With
// initializeClass set, a static access initializes the declaring class on t.
//
// Access checking is not implemented. Unlike method resolution, a
// requested field access check fails as unsupported instead of passing.
func (r *Resolver) ResolveField(t *vm.Thread, li LinkInfo, op byte, initializeClass bool) (*FieldDescriptor, error) {
	var isStatic, isPut bool
	switch op {
	case classfile.OpGetstatic:
		isStatic = true
	case classfile.OpPutstatic:
		isStatic, isPut = true, true
	case classfile.OpGetfield:
	case classfile.OpPutfield:
		isPut = true
	default:
		return nil, fmt.Errorf("resolve field %s: %s is not a field access", li.Name, classfile.OpName(op))
	}

	if li.ResolvedClass == nil {
		return nil, newError(NoSuchField, "", li.Name, li.Descriptor, "%s", li.Name)
	}
	f := li.ResolvedClass.FindField(li.Name, li.Descriptor)
	if f == nil {
		return nil, newError(NoSuchField, li.owner(), li.Name, li.Descriptor, "%s", li.Name)
	}
	if li.CheckAccess {
		return nil, unsupported(li.owner(), li.Name, li.Descriptor, "checking access is unsupported")
	}

	if initializeClass && isStatic && r.init != nil && f.Class().ShouldBeInitialized() {
		if err := r.init.Initialize(t, f.Class()); err != nil {
			return nil, err
		}
	}
	log.Debugf("resolved field %s to %s", li, f)
	return &FieldDescriptor{
		Field:          f,
		DeclaringClass: f.Class(),
		IsStatic:       isStatic,
		IsPut:          isPut,
	}, nil
}
