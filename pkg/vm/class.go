package vm

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/daimatz/javavm/pkg/classfile"
)

// Vtable index sentinels, matching the values HotSpot uses.
const (
	// InvalidVtableIndex marks a call that is statically bound by
	// construction (invokestatic) or an interface method (itable).
	InvalidVtableIndex = -4
	// NonvirtualVtableIndex marks a method that can never be overridden
	// and therefore never occupies a vtable slot.
	NonvirtualVtableIndex = -2
)

// Class is the runtime view of a loaded class, interface or array type.
//
// Metadata is read concurrently by resolvers on every interpreter thread.
// The only writer is class initialization (RedefineMethod, RemoveMethod),
// which holds the write lock while it swaps member tables.
type Class struct {
	name       string
	flags      uint16
	super      *Class
	interfaces []*Class
	sourceFile string
	file       *classfile.ClassFile

	component *Class // array element type, nil for non-arrays

	mu         sync.RWMutex
	methods    []*Method
	fields     []*Field
	vtable     []*Method
	subclasses []*Class

	statics map[string]Value

	lookups atomic.Uint64

	init classInit
}

// Name returns the internal (slash separated) class name.
func (c *Class) Name() string { return c.name }

// AccessFlags returns the raw class access flags.
func (c *Class) AccessFlags() uint16 { return c.flags }

// SourceFile returns the SourceFile attribute, or "" when absent.
func (c *Class) SourceFile() string { return c.sourceFile }

// ClassFile returns the parsed class file this class was defined from, if any.
func (c *Class) ClassFile() *classfile.ClassFile { return c.file }

// Superclass returns the direct superclass, nil for java/lang/Object.
func (c *Class) Superclass() *Class { return c.super }

// Interfaces returns the directly implemented (or extended) interfaces.
func (c *Class) Interfaces() []*Class { return c.interfaces }

// Component returns the element type of an array class.
func (c *Class) Component() *Class { return c.component }

func (c *Class) IsInterface() bool { return c.flags&classfile.AccInterface != 0 }
func (c *Class) IsAbstract() bool  { return c.flags&classfile.AccAbstract != 0 }
func (c *Class) IsPublic() bool    { return c.flags&classfile.AccPublic != 0 }
func (c *Class) IsFinal() bool     { return c.flags&classfile.AccFinal != 0 }
func (c *Class) IsArray() bool     { return c.component != nil }

// RuntimePackage returns the package part of the class name. Classes from
// different loaders are not distinguished.
func (c *Class) RuntimePackage() string {
	name := c.name
	if c.IsArray() {
		name = c.bottomElement().name
	}
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[:i]
	}
	return ""
}

func (c *Class) bottomElement() *Class {
	e := c
	for e.component != nil {
		e = e.component
	}
	return e
}

// IsSubclassOf returns true if c is other or extends it through the
// superclass chain.
func (c *Class) IsSubclassOf(other *Class) bool {
	for current := c; current != nil; current = current.super {
		if current == other {
			return true
		}
	}
	return false
}

// Implements returns true if c or one of its supertypes implements iface.
func (c *Class) Implements(iface *Class) bool {
	for current := c; current != nil; current = current.super {
		for _, i := range current.interfaces {
			if i == iface || i.Implements(iface) {
				return true
			}
		}
	}
	return false
}

// IsAssignableFrom reports whether a value of type other can be stored in
// a variable of type c.
func (c *Class) IsAssignableFrom(other *Class) bool {
	if other == nil {
		return false
	}
	if c == other {
		return true
	}
	if other.IsArray() {
		if !c.IsArray() {
			// Arrays are Objects, Cloneable and Serializable.
			switch c.name {
			case "java/lang/Object", "java/lang/Cloneable", "java/io/Serializable":
				return true
			}
			return false
		}
		ce, oe := c.component, other.component
		if ce.IsPrimitive() || oe.IsPrimitive() {
			return ce == oe
		}
		return ce.IsAssignableFrom(oe)
	}
	if c.IsInterface() {
		return other.Implements(c)
	}
	return other.IsSubclassOf(c)
}

// IsPrimitive reports whether c is one of the primitive type classes
// used as array components.
func (c *Class) IsPrimitive() bool {
	return c.super == nil && len(c.name) == 1 && strings.ContainsAny(c.name, "BCDFIJSZV")
}

// LookupCount returns how many member-table lookups have been made against
// this class. Profiling uses it to spot hot resolution targets.
func (c *Class) LookupCount() uint64 { return c.lookups.Load() }

// Methods returns a snapshot of the declared methods.
func (c *Class) Methods() []*Method {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*Method(nil), c.methods...)
}

// Fields returns a snapshot of the declared fields.
func (c *Class) Fields() []*Field {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*Field(nil), c.fields...)
}

// UncachedLookupMethod searches only the methods declared by c itself.
// Array classes expose their synthetic method set followed by the members
// of java/lang/Object.
func (c *Class) UncachedLookupMethod(name, descriptor string) *Method {
	c.lookups.Add(1)
	if m := c.declaredMethod(name, descriptor); m != nil {
		return m
	}
	if c.IsArray() && c.super != nil {
		return c.super.declaredMethod(name, descriptor)
	}
	return nil
}

func (c *Class) declaredMethod(name, descriptor string) *Method {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, m := range c.methods {
		if m.name == name && m.descriptor == descriptor {
			return m
		}
	}
	return nil
}

// FindMethod walks the superclass chain starting at c and returns the
// first method with the given name and descriptor.
func (c *Class) FindMethod(name, descriptor string) *Method {
	c.lookups.Add(1)
	for current := c; current != nil; current = current.super {
		if m := current.declaredMethod(name, descriptor); m != nil {
			return m
		}
	}
	return nil
}

// FindField looks a field up the way field resolution does: fields
// declared by c, then its superinterfaces recursively, then its superclass.
func (c *Class) FindField(name, descriptor string) *Field {
	c.lookups.Add(1)
	return c.findField(name, descriptor)
}

func (c *Class) findField(name, descriptor string) *Field {
	c.mu.RLock()
	for _, f := range c.fields {
		if f.name == name && f.descriptor == descriptor {
			c.mu.RUnlock()
			return f
		}
	}
	c.mu.RUnlock()

	for _, iface := range c.interfaces {
		if f := iface.findField(name, descriptor); f != nil {
			return f
		}
	}
	if c.super != nil {
		return c.super.findField(name, descriptor)
	}
	return nil
}

// MethodAtVtable returns the method occupying a vtable slot, or nil.
func (c *Class) MethodAtVtable(index int) *Method {
	c.lookups.Add(1)
	c.mu.RLock()
	defer c.mu.RUnlock()
	if index < 0 || index >= len(c.vtable) {
		return nil
	}
	return c.vtable[index]
}

// VtableLength returns the number of vtable slots.
func (c *Class) VtableLength() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.vtable)
}

// RedefineMethod installs m on c, replacing any method with the same name
// and descriptor, and relinks the vtables of c and its loaded subclasses.
// Class initializers of obfuscated programs use this to rewrite themselves.
func (c *Class) RedefineMethod(m *Method) {
	m.class = c
	c.mu.Lock()
	replaced := false
	for i, old := range c.methods {
		if old.name == m.name && old.descriptor == m.descriptor {
			c.methods[i] = m
			replaced = true
			break
		}
	}
	if !replaced {
		c.methods = append(c.methods, m)
	}
	c.mu.Unlock()
	c.relink()
}

// RemoveMethod drops a declared method. It reports whether one was removed.
func (c *Class) RemoveMethod(name, descriptor string) bool {
	c.mu.Lock()
	removed := false
	for i, m := range c.methods {
		if m.name == name && m.descriptor == descriptor {
			c.methods = append(c.methods[:i:i], c.methods[i+1:]...)
			removed = true
			break
		}
	}
	c.mu.Unlock()
	if removed {
		c.relink()
	}
	return removed
}

func (c *Class) relink() {
	c.link()
	c.mu.RLock()
	subs := append([]*Class(nil), c.subclasses...)
	c.mu.RUnlock()
	for _, s := range subs {
		s.relink()
	}
}

// link lays out the vtable: the superclass table is copied, overriding
// methods take over the slot they override, and new virtual methods are
// appended. Methods that override nothing and can never be overridden get
// NonvirtualVtableIndex instead of a slot.
func (c *Class) link() {
	var vt []*Method
	if c.super != nil {
		c.super.mu.RLock()
		vt = append(vt, c.super.vtable...)
		c.super.mu.RUnlock()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.IsArray() {
		for _, m := range c.methods {
			m.vtableIndex = NonvirtualVtableIndex
		}
		c.vtable = vt
		return
	}

	for _, m := range c.methods {
		switch {
		case m.IsStatic() || m.IsPrivate() || m.IsInitializer():
			m.vtableIndex = NonvirtualVtableIndex
			continue
		case c.IsInterface():
			m.vtableIndex = InvalidVtableIndex
			continue
		}

		m.vtableIndex = NonvirtualVtableIndex
		overrides := false
		for i, sm := range vt {
			if sm.name == m.name && sm.descriptor == m.descriptor && canOverride(sm, c) {
				vt[i] = m
				if !overrides {
					m.vtableIndex = i
				}
				overrides = true
			}
		}
		if !overrides && !m.IsFinal() && !c.IsFinal() {
			m.vtableIndex = len(vt)
			vt = append(vt, m)
		}
	}
	c.vtable = vt
}

// canOverride reports whether a method declared in sub may take over the
// vtable slot of super. Package-private methods are only overridden from
// the same runtime package.
func canOverride(super *Method, sub *Class) bool {
	if super.IsPrivate() {
		return false
	}
	if super.IsPublic() || super.IsProtected() {
		return true
	}
	return super.class.RuntimePackage() == sub.RuntimePackage()
}

// GetStatic returns the value of a static field, or the zero value for its
// descriptor when it was never written.
func (c *Class) GetStatic(f *Field) Value {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if v, ok := c.statics[f.name]; ok {
		return v
	}
	return ZeroValue(f.descriptor)
}

// SetStatic stores the value of a static field.
func (c *Class) SetStatic(f *Field, v Value) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.statics == nil {
		c.statics = make(map[string]Value)
	}
	c.statics[f.name] = v
}

func (c *Class) String() string { return c.name }
