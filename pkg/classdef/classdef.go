// Package classdef builds class files from YAML class definitions, so a
// class universe can be described without a Java compiler.
//
// A definition file holds a list of classes:
//
//	classes:
//	  - name: demo/Shape
//	    flags: [public, super, abstract]
//	    source: Shape.java
//	    methods:
//	      - name: area
//	        desc: ()I
//	        flags: [public, abstract]
//	      - name: describe
//	        desc: ()I
//	        flags: [public]
//	        code:
//	          - .line 7
//	          - aload_0
//	          - invokevirtual demo/Shape.area:()I
//	          - ireturn
//
// Method bodies use the assembler syntax described in asm.go.
package classdef

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/daimatz/javavm/pkg/classfile"
	"github.com/daimatz/javavm/pkg/vm"
)

// File is one YAML definition document.
type File struct {
	Classes []Class `yaml:"classes"`
}

// Class defines one class or interface.
type Class struct {
	Name string `yaml:"name"`
	// Super defaults to java/lang/Object. An explicit empty string means
	// no superclass.
	Super      *string  `yaml:"super"`
	Flags      []string `yaml:"flags"`
	Interfaces []string `yaml:"interfaces"`
	Source     string   `yaml:"source"`
	Fields     []Field  `yaml:"fields"`
	Methods    []Method `yaml:"methods"`
}

// Field declares a field.
type Field struct {
	Name  string   `yaml:"name"`
	Desc  string   `yaml:"desc"`
	Flags []string `yaml:"flags"`
}

// Method declares a method and, unless it is abstract or native, its body.
type Method struct {
	Name      string    `yaml:"name"`
	Desc      string    `yaml:"desc"`
	Flags     []string  `yaml:"flags"`
	MaxStack  uint16    `yaml:"max_stack"`
	MaxLocals uint16    `yaml:"max_locals"`
	Code      Code      `yaml:"code"`
	Handlers  []Handler `yaml:"handlers"`
}

// Code is a method body, one assembler line per entry. YAML reads a label
// line such as "- loop:" as a one-key mapping, so that form is accepted
// and turned back into the line it was written as.
type Code []string

func (c *Code) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: code must be a list of instructions", node.Line)
	}
	lines := make(Code, 0, len(node.Content))
	for _, n := range node.Content {
		line, err := codeLine(n)
		if err != nil {
			return err
		}
		lines = append(lines, line)
	}
	*c = lines
	return nil
}

func codeLine(n *yaml.Node) (string, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		return n.Value, nil
	case yaml.MappingNode:
		if len(n.Content) != 2 || n.Content[0].Kind != yaml.ScalarNode || n.Content[1].Kind != yaml.ScalarNode {
			break
		}
		key, val := n.Content[0], n.Content[1]
		if val.ShortTag() == "!!null" && val.Value == "" {
			return key.Value + ":", nil
		}
		// an unquoted ": " inside an instruction, as in ldc "a: b"
		return key.Value + ": " + val.Value, nil
	}
	return "", fmt.Errorf("line %d: code entries must be single instructions", n.Line)
}

// Handler is an exception table entry expressed with code labels. An
// empty Type catches everything.
type Handler struct {
	Start   string `yaml:"start"`
	End     string `yaml:"end"`
	Handler string `yaml:"handler"`
	Type    string `yaml:"type"`
}

const defaultMaxStack = 16

var accessFlags = map[string]uint16{
	"public":       classfile.AccPublic,
	"private":      classfile.AccPrivate,
	"protected":    classfile.AccProtected,
	"static":       classfile.AccStatic,
	"final":        classfile.AccFinal,
	"super":        classfile.AccSuper,
	"synchronized": classfile.AccSynchronized,
	"volatile":     classfile.AccVolatile,
	"bridge":       classfile.AccBridge,
	"transient":    classfile.AccTransient,
	"varargs":      classfile.AccVarargs,
	"native":       classfile.AccNative,
	"interface":    classfile.AccInterface,
	"abstract":     classfile.AccAbstract,
	"strict":       classfile.AccStrict,
	"synthetic":    classfile.AccSynthetic,
	"annotation":   classfile.AccAnnotation,
	"enum":         classfile.AccEnum,
}

func parseFlags(names []string) (uint16, error) {
	var flags uint16
	for _, n := range names {
		f, ok := accessFlags[n]
		if !ok {
			return 0, fmt.Errorf("unknown access flag %q", n)
		}
		flags |= f
	}
	return flags, nil
}

// Parse decodes a YAML definition document and builds its classes.
// Unknown keys are errors.
func Parse(data []byte) ([]*classfile.ClassFile, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}

	seen := make(map[string]bool)
	var out []*classfile.ClassFile
	for i := range f.Classes {
		c := &f.Classes[i]
		if seen[c.Name] {
			return nil, fmt.Errorf("class %s defined twice", c.Name)
		}
		seen[c.Name] = true

		cf, err := c.Build()
		if err != nil {
			return nil, err
		}
		out = append(out, cf)
	}
	return out, nil
}

// Build assembles the class file.
func (c *Class) Build() (*classfile.ClassFile, error) {
	if c.Name == "" {
		return nil, errors.New("class without a name")
	}
	flags, err := parseFlags(c.Flags)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.Name, err)
	}
	super := vm.ObjectClass
	if c.Super != nil {
		super = *c.Super
	} else if c.Name == vm.ObjectClass {
		super = ""
	}

	b := classfile.NewBuilder(c.Name, super, flags)
	for _, iface := range c.Interfaces {
		b.AddInterface(iface)
	}
	if c.Source != "" {
		b.SetSourceFile(c.Source)
	}
	for _, f := range c.Fields {
		ff, err := parseFlags(f.Flags)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", c.Name, f.Name, err)
		}
		if f.Name == "" || f.Desc == "" {
			return nil, fmt.Errorf("%s: field needs a name and a desc", c.Name)
		}
		b.AddField(ff, f.Name, f.Desc)
	}
	for i := range c.Methods {
		m := &c.Methods[i]
		code, flags, err := m.build(b)
		if err != nil {
			return nil, fmt.Errorf("%s.%s%s: %w", c.Name, m.Name, m.Desc, err)
		}
		b.AddMethod(flags, m.Name, m.Desc, code)
	}
	return b.Build(), nil
}

func (m *Method) build(b *classfile.Builder) (*classfile.CodeAttribute, uint16, error) {
	flags, err := parseFlags(m.Flags)
	if err != nil {
		return nil, 0, err
	}
	md, err := classfile.ParseMethodDescriptor(m.Desc)
	if err != nil {
		return nil, 0, err
	}

	bodyless := flags&(classfile.AccAbstract|classfile.AccNative) != 0
	switch {
	case bodyless && len(m.Code) > 0:
		return nil, 0, errors.New("abstract and native methods have no code")
	case bodyless:
		return nil, flags, nil
	case len(m.Code) == 0:
		return nil, 0, errors.New("missing code")
	}

	a := newAssembler(b)
	for n, line := range m.Code {
		if err := a.line(line); err != nil {
			return nil, 0, fmt.Errorf("code line %d %q: %w", n+1, line, err)
		}
	}
	code, err := a.finish()
	if err != nil {
		return nil, 0, err
	}
	for _, h := range m.Handlers {
		eh, err := a.handler(h)
		if err != nil {
			return nil, 0, err
		}
		code.ExceptionHandlers = append(code.ExceptionHandlers, eh)
	}

	code.MaxStack = m.MaxStack
	if code.MaxStack == 0 {
		code.MaxStack = defaultMaxStack
	}
	code.MaxLocals = m.MaxLocals
	if slots := argSlots(md, flags); code.MaxLocals < slots {
		code.MaxLocals = slots
	}
	if code.MaxLocals < a.maxLocal {
		code.MaxLocals = a.maxLocal
	}
	return code, flags, nil
}

// argSlots counts the local slots taken by the receiver and arguments.
func argSlots(md *classfile.MethodDescriptor, flags uint16) uint16 {
	var n uint16
	if flags&classfile.AccStatic == 0 {
		n++
	}
	for _, p := range md.Params {
		n++
		if p == "J" || p == "D" {
			n++
		}
	}
	return n
}

// LoadFiles parses definition files in order.
func LoadFiles(paths ...string) ([]*classfile.ClassFile, error) {
	var out []*classfile.ClassFile
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cannot read %s: %w", path, err)
		}
		cfs, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		out = append(out, cfs...)
	}
	return out, nil
}

// NewClassLoader returns a loader serving the classes of the given
// definition files. Later files replace classes of earlier ones.
func NewClassLoader(paths ...string) (*vm.MapClassLoader, error) {
	cfs, err := LoadFiles(paths...)
	if err != nil {
		return nil, err
	}
	return vm.NewMapClassLoader(cfs...)
}
