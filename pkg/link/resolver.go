// Package link resolves symbolic method and field references to the
// members the interpreter executes, following the JVM's linkage rules.
package link

import (
	"errors"

	"github.com/daimatz/javavm/pkg/classfile"
	"github.com/daimatz/javavm/pkg/intrinsics"
	"github.com/daimatz/javavm/pkg/vm"
)

// Initializer runs class initialization. *vm.VM implements it.
type Initializer interface {
	Initialize(t *vm.Thread, c *vm.Class) error
}

// Resolver implements method and field resolution over one class universe.
// It keeps no state between calls and may be re-entered from a class
// initializer running inside ResolveStaticCall.
type Resolver struct {
	dict       *vm.Dictionary
	init       Initializer
	intrinsics *intrinsics.Registry

	// StrictAccess makes requested method access checks fail as
	// unsupported, the way field access checks always do. By default
	// method access checks pass.
	StrictAccess bool
}

// NewResolver creates a resolver. init and reg may be nil: classes are then
// never initialized and no method handle intrinsic is found.
func NewResolver(dict *vm.Dictionary, init Initializer, reg *intrinsics.Registry) *Resolver {
	return &Resolver{dict: dict, init: init, intrinsics: reg}
}

// ResolveVirtualCall resolves an invokevirtual site against li.ResolvedClass
// and selects the method that runs for a receiver of class recvClass.
func (r *Resolver) ResolveVirtualCall(recv vm.Value, recvClass *vm.Class, li LinkInfo, checkNullAndAbstract bool) (*CallInfo, error) {
	resolved, err := r.linktimeResolveVirtualMethod(li)
	if err != nil {
		return nil, err
	}
	return r.runtimeResolveVirtualMethod(resolved, li, recv, recvClass, checkNullAndAbstract)
}

func (r *Resolver) linktimeResolveVirtualMethod(li LinkInfo) (*vm.Method, error) {
	m, err := r.ResolveMethod(li, true)
	if err != nil {
		return nil, err
	}

	if li.ResolvedClass.IsInterface() && m.IsPrivate() {
		caller := "null"
		if li.CurrentClass != nil {
			caller = li.CurrentClass.Name()
		}
		return nil, newError(IncompatibleLinkage, li.owner(), li.Name, li.Descriptor,
			"private interface method requires invokespecial, not invokevirtual: method %s, caller-class:%s", m, caller)
	}
	if m.IsStatic() {
		return nil, newError(IncompatibleLinkage, li.owner(), li.Name, li.Descriptor,
			"Expecting non-static method %s", m)
	}
	return m, nil
}

func (r *Resolver) runtimeResolveVirtualMethod(resolved *vm.Method, li LinkInfo, recv vm.Value, recvClass *vm.Class, checkNullAndAbstract bool) (*CallInfo, error) {
	if checkNullAndAbstract && recv.IsNull() {
		return nil, newError(NullReference, li.owner(), li.Name, li.Descriptor, "")
	}
	if recvClass == nil {
		recvClass = li.ResolvedClass
	}

	if resolved.Class().IsInterface() {
		return nil, unsupported(li.owner(), li.Name, li.Descriptor,
			"interface method dispatch of %s on %s is unsupported", resolved, recvClass)
	}

	// Unverified code may pass a receiver outside the resolved hierarchy.
	if !resolved.Class().IsAssignableFrom(recvClass) {
		return nil, newError(NoSuchMethod, li.owner(), li.Name, li.Descriptor,
			"%s.%s%s on receiver %s", li.owner(), resolved.Name(), resolved.Descriptor(), recvClass)
	}

	index := resolved.VtableIndex()
	var selected *vm.Method
	if index == vm.NonvirtualVtableIndex {
		selected = resolved
	} else {
		selected = recvClass.MethodAtVtable(index)
	}

	if selected == nil || selected.Name() != resolved.Name() || selected.Descriptor() != resolved.Descriptor() {
		return nil, newError(NoSuchMethod, li.owner(), li.Name, li.Descriptor,
			"%s.%s%s", li.owner(), resolved.Name(), resolved.Descriptor())
	}
	if checkNullAndAbstract && selected.IsAbstract() {
		return nil, newError(AbstractMethodInvocation, li.owner(), li.Name, li.Descriptor,
			"%s.%s%s", li.owner(), selected.Name(), selected.Descriptor())
	}

	log.Debugf("virtual %s on %s selected %s (vtable %d)", resolved, recvClass, selected, index)
	return &CallInfo{
		Kind:           Virtual,
		ResolvedClass:  li.ResolvedClass,
		ReceiverClass:  recvClass,
		ResolvedMethod: resolved,
		SelectedMethod: selected,
		VtableIndex:    index,
	}, nil
}

// ResolveInterfaceCall resolves an invokeinterface site. Only methods that
// the interface inherits from java/lang/Object can be dispatched; itable
// dispatch is unsupported.
func (r *Resolver) ResolveInterfaceCall(recv vm.Value, recvClass *vm.Class, li LinkInfo, checkNullAndAbstract bool) (*CallInfo, error) {
	m, err := r.ResolveInterfaceMethod(li, false)
	if err != nil {
		return nil, err
	}
	if m.IsStatic() {
		return nil, newError(IncompatibleLinkage, li.owner(), li.Name, li.Descriptor,
			"Expecting non-static method %s", m)
	}
	return r.runtimeResolveVirtualMethod(m, li, recv, recvClass, checkNullAndAbstract)
}

// ResolveSpecialCall resolves an invokespecial site: constructors, private
// methods and super calls. When the caller's class has ACC_SUPER and the
// target is a method of one of its superclasses, the call binds to the
// closest override above the caller.
func (r *Resolver) ResolveSpecialCall(li LinkInfo, interfaceRef bool) (*CallInfo, error) {
	var m *vm.Method
	var err error
	if interfaceRef {
		m, err = r.ResolveInterfaceMethod(li, false)
	} else {
		m, err = r.ResolveMethod(li, false)
	}
	if err != nil {
		return nil, err
	}
	if m.IsStatic() {
		return nil, newError(IncompatibleLinkage, li.owner(), li.Name, li.Descriptor,
			"Expecting non-static method %s", m)
	}

	selected := m
	cur := li.CurrentClass
	if cur != nil && cur.AccessFlags()&classfile.AccSuper != 0 && !m.IsInitializer() &&
		!li.ResolvedClass.IsInterface() && li.ResolvedClass != cur &&
		li.ResolvedClass.IsAssignableFrom(cur) && cur.Superclass() != nil {
		selected = cur.Superclass().FindMethod(li.Name, li.Descriptor)
		if selected == nil {
			return nil, newError(NoSuchMethod, li.owner(), li.Name, li.Descriptor,
				"%s.%s%s", li.owner(), li.Name, li.Descriptor)
		}
	}
	if selected.IsAbstract() {
		return nil, newError(AbstractMethodInvocation, li.owner(), li.Name, li.Descriptor,
			"%s.%s%s", li.owner(), selected.Name(), selected.Descriptor())
	}
	return &CallInfo{
		Kind:           Special,
		ResolvedClass:  li.ResolvedClass,
		ResolvedMethod: m,
		SelectedMethod: selected,
		VtableIndex:    vm.NonvirtualVtableIndex,
	}, nil
}

// ResolveStaticCall resolves an invokestatic site. With initialize set, a
// class that still needs initialization is initialized on t and the method
// is resolved again, since the initializer may have redefined it.
func (r *Resolver) ResolveStaticCall(t *vm.Thread, li LinkInfo, initialize bool) (*CallInfo, error) {
	m, err := r.linktimeResolveStaticMethod(li)

	c := li.ResolvedClass
	if initialize && r.init != nil && c.ShouldBeInitialized() {
		// A method the initializer creates is not an error yet.
		if err != nil {
			if kind, _ := KindOf(err); kind != NoSuchMethod {
				return nil, err
			}
		}
		log.Debugf("initializing %s before resolving %s", c, li)
		if err := r.init.Initialize(t, c); err != nil {
			return nil, err
		}
		m, err = r.linktimeResolveStaticMethod(li)
	}
	if err != nil {
		return nil, err
	}
	return newStaticCall(c, m), nil
}

func (r *Resolver) linktimeResolveStaticMethod(li LinkInfo) (*vm.Method, error) {
	var m *vm.Method
	var err error
	if li.ResolvedClass.IsInterface() {
		m, err = r.ResolveInterfaceMethod(li, true)
	} else {
		m, err = r.ResolveMethod(li, false)
	}
	if err != nil {
		return nil, err
	}
	if !m.IsStatic() {
		return nil, newError(IncompatibleLinkage, li.owner(), li.Name, li.Descriptor,
			"Expected static method %s", li.owner()+"."+m.Name()+m.Descriptor())
	}
	return m, nil
}

// IsUnsupported reports whether err marks an engine limitation.
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrUnsupported)
}
