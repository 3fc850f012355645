package link

import (
	"github.com/daimatz/javavm/pkg/intrinsics"
	"github.com/daimatz/javavm/pkg/vm"
)

// ResolveMethod finds the method li names, starting at li.ResolvedClass:
// the class itself, its superclasses, default methods of its interfaces and
// finally the signature-polymorphic intrinsics. requireMethodRef rejects an
// interface as the resolved class.
func (r *Resolver) ResolveMethod(li LinkInfo, requireMethodRef bool) (*vm.Method, error) {
	c := li.ResolvedClass
	if requireMethodRef && c.IsInterface() {
		return nil, newError(IncompatibleLinkage, li.owner(), li.Name, li.Descriptor,
			"Found interface %s, but class was expected", c.Name())
	}

	h := r.LookupMethodInClasses(c, li.Name, li.Descriptor, true, false)
	if !h.IsFound() && !c.IsArray() {
		h = r.LookupMethodsInInterfaces(c, li.Name, li.Descriptor)
		if !h.IsFound() {
			var err error
			if h, err = r.LookupPolymorphicMethod(c, li.Name, li.Descriptor); err != nil {
				return nil, err
			}
		}
	}

	m, ok := h.Get()
	if !ok {
		return nil, newError(NoSuchMethod, li.owner(), li.Name, li.Descriptor,
			"%s.%s%s", c.Name(), li.Name, li.Descriptor)
	}
	if li.CheckAccess {
		if err := r.checkMethodAccess(li, m); err != nil {
			return nil, err
		}
	}
	log.Debugf("resolved %s to %s", li, m)
	return m, nil
}

// ResolveInterfaceMethod finds a method named by an interface method
// reference: the interface itself, then the public instance members of
// java/lang/Object. Unless allowStatic is set, static interface methods are an
// incompatible linkage for the invokeinterface and invokespecial callers.
func (r *Resolver) ResolveInterfaceMethod(li LinkInfo, allowStatic bool) (*vm.Method, error) {
	c := li.ResolvedClass
	if !c.IsInterface() {
		return nil, newError(IncompatibleLinkage, li.owner(), li.Name, li.Descriptor,
			"Found class %s, but interface was expected", c.Name())
	}

	h := r.LookupMethodInClasses(c, li.Name, li.Descriptor, false, true).
		OrElse(func() Handle[*vm.Method] {
			return r.LookupMethodsInInterfaces(c, li.Name, li.Descriptor)
		})
	m, ok := h.Get()
	if !ok {
		return nil, newError(NoSuchMethod, li.owner(), li.Name, li.Descriptor,
			"%s.%s%s", c.Name(), li.Name, li.Descriptor)
	}
	if !allowStatic && m.IsStatic() {
		return nil, newError(IncompatibleLinkage, li.owner(), li.Name, li.Descriptor,
			"Expected instance not static method %s", m)
	}
	if li.CheckAccess {
		if err := r.checkMethodAccess(li, m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// LookupMethodInClasses searches c's own methods and then its superclass
// chain. Array classes only expose their own synthetic method set. In
// interface method resolution, static and non-public members of
// java/lang/Object are hidden. With checkPolymorphism, the generic
// declarations of signature-polymorphic methods are skipped so the call site
// resolves to an intrinsic for its own descriptor.
func (r *Resolver) LookupMethodInClasses(c *vm.Class, name, descriptor string, checkPolymorphism, inImethodResolve bool) Handle[*vm.Method] {
	m := c.UncachedLookupMethod(name, descriptor)
	if c.IsArray() {
		return Maybe(m)
	}

	if inImethodResolve && r.hiddenFromInterface(c, m) {
		m = nil
	}
	if m == nil {
		m = c.FindMethod(name, descriptor)
		if inImethodResolve && r.hiddenFromInterface(c, m) {
			m = nil
		}
	}

	if checkPolymorphism && m != nil && m.Class() == r.dict.MethodHandle() &&
		intrinsics.IsSignaturePolymorphic(intrinsics.NameID(m.Name())) {
		return NotFound[*vm.Method]()
	}
	return Maybe(m)
}

func (r *Resolver) hiddenFromInterface(c *vm.Class, m *vm.Method) bool {
	return m != nil && c.IsInterface() &&
		(m.IsStatic() || !m.IsPublic()) &&
		m.Class() == r.dict.Object()
}

// LookupMethodsInInterfaces would find default and miranda methods that c
// inherits from its interfaces. It is not implemented and never finds one.
func (r *Resolver) LookupMethodsInInterfaces(c *vm.Class, name, descriptor string) Handle[*vm.Method] {
	log.Debugf("default method lookup of %s.%s%s skipped", c, name, descriptor)
	return NotImplemented[*vm.Method]("default method lookup")
}

// LookupPolymorphicMethod resolves a signature-polymorphic call site on
// java/lang/invoke/MethodHandle to the intrinsic registered for the site's
// basic type signature. Other classes never match. A MethodHandle method
// that is not an intrinsic, such as invoke or invokeExact, is unsupported.
func (r *Resolver) LookupPolymorphicMethod(c *vm.Class, name, descriptor string) (Handle[*vm.Method], error) {
	if c != r.dict.MethodHandle() {
		return NotFound[*vm.Method](), nil
	}

	id := intrinsics.NameID(name)
	if !intrinsics.IsSignaturePolymorphicIntrinsic(id) {
		return NotFound[*vm.Method](), unsupported(c.Name(), name, descriptor,
			"signature-polymorphic method %s.%s%s is unsupported", c.Name(), name, descriptor)
	}

	basic, err := intrinsics.BasicTypeSignature(descriptor, intrinsics.IsSignaturePolymorphicStatic(id))
	if err != nil {
		log.Warningf("%s.%s: %v", c.Name(), name, err)
		return NotFound[*vm.Method](), nil
	}
	if r.intrinsics == nil {
		return NotFound[*vm.Method](), nil
	}
	m := r.intrinsics.Find(id, basic)
	if m != nil {
		log.Debugf("intrinsic %s%s for %s%s", id, basic, name, descriptor)
	}
	return Maybe(m), nil
}

// checkMethodAccess is where method access control belongs. It is not
// implemented: checks pass unless StrictAccess is set.
func (r *Resolver) checkMethodAccess(li LinkInfo, m *vm.Method) error {
	if r.StrictAccess {
		return unsupported(li.owner(), li.Name, li.Descriptor, "checking access to %s is unsupported", m)
	}
	return nil
}
