package vm

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/daimatz/javavm/pkg/classfile"
)

var (
	// ErrClassCircularity is returned when a class is its own supertype.
	ErrClassCircularity = errors.New("class circularity")
	// ErrIncompatibleSupertype is returned when a class extends an interface
	// or implements a class.
	ErrIncompatibleSupertype = errors.New("incompatible supertype")
	// ErrDuplicateClass is returned by Define for an already loaded name.
	ErrDuplicateClass = errors.New("duplicate class definition")
)

var primitiveNames = []string{"B", "C", "D", "F", "I", "J", "S", "Z", "V"}

// Dictionary is the class universe shared by every thread of one VM. It
// defines classes on first use, loading supertypes first, and links them
// before they become visible.
type Dictionary struct {
	loader ClassLoader

	mu      sync.RWMutex
	classes map[string]*Class

	object            *Class
	throwable         *Class
	methodHandle      *Class
	stackTraceElement *Class
}

// NewDictionary creates a dictionary whose bootstrap classes take precedence
// over the ones served by loader. loader may be nil.
func NewDictionary(loader ClassLoader) (*Dictionary, error) {
	boot, err := NewMapClassLoader(BootstrapClasses()...)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	d := &Dictionary{
		loader:  ChainClassLoader{boot, loader},
		classes: make(map[string]*Class),
	}
	for _, p := range primitiveNames {
		c := &Class{name: p, flags: classfile.AccPublic | classfile.AccFinal | classfile.AccAbstract}
		c.init.state = initDone
		d.classes[p] = c
	}

	for _, wk := range []struct {
		name string
		dst  **Class
	}{
		{ObjectClass, &d.object},
		{ThrowableClass, &d.throwable},
		{MethodHandleClass, &d.methodHandle},
		{StackTraceElementClass, &d.stackTraceElement},
	} {
		c, err := d.LoadClass(wk.name)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: %w", err)
		}
		*wk.dst = c
	}
	return d, nil
}

func (d *Dictionary) Object() *Class            { return d.object }
func (d *Dictionary) Throwable() *Class         { return d.throwable }
func (d *Dictionary) MethodHandle() *Class      { return d.methodHandle }
func (d *Dictionary) StackTraceElement() *Class { return d.stackTraceElement }

// Lookup returns an already loaded class, or nil.
func (d *Dictionary) Lookup(name string) *Class {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.classes[name]
}

// Classes returns every loaded class sorted by name.
func (d *Dictionary) Classes() []*Class {
	d.mu.RLock()
	out := make([]*Class, 0, len(d.classes))
	for _, c := range d.classes {
		out = append(out, c)
	}
	d.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// LoadClass returns the named class, defining it and its supertypes on
// first use. Array names use descriptor syntax ("[I", "[Ljava/lang/String;").
func (d *Dictionary) LoadClass(name string) (*Class, error) {
	return d.load(name, nil)
}

// Define creates a class directly from a parsed class file.
func (d *Dictionary) Define(cf *classfile.ClassFile) (*Class, error) {
	name, err := cf.ClassName()
	if err != nil {
		return nil, fmt.Errorf("define: %w", err)
	}
	if d.Lookup(name) != nil {
		return nil, fmt.Errorf("define %s: %w", name, ErrDuplicateClass)
	}
	return d.define(cf, []string{name})
}

func (d *Dictionary) load(name string, path []string) (*Class, error) {
	if c := d.Lookup(name); c != nil {
		return c, nil
	}
	if slices.Contains(path, name) {
		return nil, fmt.Errorf("%w: %s", ErrClassCircularity, strings.Join(append(path, name), " -> "))
	}
	path = append(path[:len(path):len(path)], name)

	if strings.HasPrefix(name, "[") {
		return d.defineArray(name, path)
	}
	cf, err := d.loader.LoadClass(name)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", name, err)
	}
	return d.define(cf, path)
}

func (d *Dictionary) define(cf *classfile.ClassFile, path []string) (*Class, error) {
	name, err := cf.ClassName()
	if err != nil {
		return nil, fmt.Errorf("define: %w", err)
	}
	c := &Class{
		name:       name,
		flags:      cf.AccessFlags,
		sourceFile: cf.SourceFile,
		file:       cf,
	}

	if superName := cf.SuperClassName(); superName != "" {
		super, err := d.load(superName, path)
		if err != nil {
			return nil, fmt.Errorf("define %s: super class: %w", name, err)
		}
		if super.IsInterface() {
			return nil, fmt.Errorf("define %s: %w: super class %s is an interface", name, ErrIncompatibleSupertype, superName)
		}
		c.super = super
	} else if name != ObjectClass {
		return nil, fmt.Errorf("define %s: no super class", name)
	}

	ifaceNames, err := cf.InterfaceNames()
	if err != nil {
		return nil, fmt.Errorf("define %s: interfaces: %w", name, err)
	}
	for _, in := range ifaceNames {
		iface, err := d.load(in, path)
		if err != nil {
			return nil, fmt.Errorf("define %s: interface: %w", name, err)
		}
		if !iface.IsInterface() {
			return nil, fmt.Errorf("define %s: %w: %s is not an interface", name, ErrIncompatibleSupertype, in)
		}
		c.interfaces = append(c.interfaces, iface)
	}

	for _, mi := range cf.Methods {
		m := NewMethod(mi.AccessFlags, mi.Name, mi.Descriptor, mi.Code)
		m.class = c
		c.methods = append(c.methods, m)
	}
	for _, fi := range cf.Fields {
		f := NewField(fi.AccessFlags, fi.Name, fi.Descriptor)
		f.class = c
		c.fields = append(c.fields, f)
	}
	return d.install(c), nil
}

func (d *Dictionary) defineArray(name string, path []string) (*Class, error) {
	elem := name[1:]
	var component *Class
	var err error
	switch {
	case elem == "":
		return nil, fmt.Errorf("invalid array class name %q", name)
	case elem[0] == '[':
		component, err = d.load(elem, path)
	case elem[0] == 'L' && strings.HasSuffix(elem, ";"):
		component, err = d.load(elem[1:len(elem)-1], path)
	case len(elem) == 1 && elem != "V":
		component = d.Lookup(elem)
	}
	if err != nil {
		return nil, fmt.Errorf("array %s: %w", name, err)
	}
	if component == nil {
		return nil, fmt.Errorf("invalid array class name %q", name)
	}

	object, err := d.load(ObjectClass, path)
	if err != nil {
		return nil, err
	}
	c := &Class{
		name:      name,
		flags:     classfile.AccPublic | classfile.AccFinal | classfile.AccAbstract,
		super:     object,
		component: component,
	}
	for _, in := range []string{"java/lang/Cloneable", "java/io/Serializable"} {
		iface, err := d.load(in, path)
		if err != nil {
			return nil, fmt.Errorf("array %s: %w", name, err)
		}
		c.interfaces = append(c.interfaces, iface)
	}
	clone := NewMethod(classfile.AccPublic|classfile.AccNative, "clone", "()Ljava/lang/Object;", nil)
	clone.class = c
	c.methods = []*Method{clone}
	c.init.state = initDone
	return d.install(c), nil
}

// install publishes a fully built class. When another thread defined the
// same name first, its class wins and c is dropped.
func (d *Dictionary) install(c *Class) *Class {
	d.mu.Lock()
	defer d.mu.Unlock()
	if existing, ok := d.classes[c.name]; ok {
		return existing
	}
	if c.super != nil {
		c.super.mu.Lock()
		c.super.subclasses = append(c.super.subclasses, c)
		c.super.mu.Unlock()
	}
	c.link()
	d.classes[c.name] = c
	log.Debugf("defined %s (vtable %d)", c.name, c.VtableLength())
	return c
}
