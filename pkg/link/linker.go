package link

import (
	"errors"
	"fmt"

	"github.com/daimatz/javavm/pkg/classfile"
	"github.com/daimatz/javavm/pkg/vm"
)

// Options control the checks the linker asks the resolver for.
type Options struct {
	CheckAccess            bool
	CheckNullAndAbstract   bool
	InitializeOnStaticCall bool
}

// DefaultOptions matches what the interpreter needs to run ordinary code.
func DefaultOptions() Options {
	return Options{CheckNullAndAbstract: true, InitializeOnStaticCall: true}
}

// Linker resolves the operands of invoke and field instructions, read from
// the calling class's constant pool.
type Linker struct {
	Resolver *Resolver
	Dict     *vm.Dictionary
	Options  Options
}

// NewLinker creates a linker.
func NewLinker(r *Resolver, dict *vm.Dictionary, opts Options) *Linker {
	return &Linker{Resolver: r, Dict: dict, Options: opts}
}

// MethodRef decodes the method reference at cpIndex in caller's constant
// pool and loads the class it names. iface is set for interface method
// references.
func (l *Linker) MethodRef(caller *vm.Class, cpIndex uint16) (li LinkInfo, iface bool, err error) {
	cf := caller.ClassFile()
	if cf == nil {
		return LinkInfo{}, false, fmt.Errorf("%s has no constant pool", caller)
	}
	ref, err := classfile.ResolveMethodref(cf.ConstantPool, cpIndex)
	if err != nil {
		return LinkInfo{}, false, fmt.Errorf("%s: %w", caller, err)
	}
	c, err := l.Dict.LoadClass(ref.ClassName)
	if err != nil {
		return LinkInfo{}, false, err
	}
	return LinkInfo{
		ResolvedClass: c,
		Name:          ref.MethodName,
		Descriptor:    ref.Descriptor,
		CurrentClass:  caller,
		CheckAccess:   l.Options.CheckAccess,
	}, ref.Interface, nil
}

// ResolveInvoke resolves the invoke instruction op whose operand is cpIndex.
// receiver is ignored for invokestatic.
func (l *Linker) ResolveInvoke(t *vm.Thread, caller *vm.Class, op byte, cpIndex uint16, receiver vm.Value) (*CallInfo, error) {
	li, iface, err := l.MethodRef(caller, cpIndex)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", classfile.OpName(op), err)
	}
	return l.Dispatch(t, op, li, iface, receiver)
}

// Dispatch resolves an invoke instruction whose method reference was
// already decoded by MethodRef.
func (l *Linker) Dispatch(t *vm.Thread, op byte, li LinkInfo, iface bool, receiver vm.Value) (*CallInfo, error) {
	switch op {
	case classfile.OpInvokevirtual:
		return l.Resolver.ResolveVirtualCall(receiver, l.ClassOf(receiver), li, l.Options.CheckNullAndAbstract)
	case classfile.OpInvokeinterface:
		return l.Resolver.ResolveInterfaceCall(receiver, l.ClassOf(receiver), li, l.Options.CheckNullAndAbstract)
	case classfile.OpInvokespecial:
		return l.Resolver.ResolveSpecialCall(li, iface)
	case classfile.OpInvokestatic:
		return l.Resolver.ResolveStaticCall(t, li, l.Options.InitializeOnStaticCall)
	}
	return nil, fmt.Errorf("resolve invoke: opcode 0x%02X is not an invoke", op)
}

// ResolveFieldAccess resolves the field instruction op whose operand is
// cpIndex. A field of a class that cannot be found is a NoSuchField error.
func (l *Linker) ResolveFieldAccess(t *vm.Thread, caller *vm.Class, op byte, cpIndex uint16) (*FieldDescriptor, error) {
	cf := caller.ClassFile()
	if cf == nil {
		return nil, fmt.Errorf("%s: %s has no constant pool", classfile.OpName(op), caller)
	}
	ref, err := classfile.ResolveFieldref(cf.ConstantPool, cpIndex)
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", classfile.OpName(op), caller, err)
	}
	c, err := l.Dict.LoadClass(ref.ClassName)
	if err != nil && !errors.Is(err, vm.ErrClassNotFound) {
		return nil, err
	}
	li := LinkInfo{
		ResolvedClass: c,
		Name:          ref.FieldName,
		Descriptor:    ref.Descriptor,
		CurrentClass:  caller,
		CheckAccess:   l.Options.CheckAccess,
	}
	return l.Resolver.ResolveField(t, li, op, true)
}

// ClassOf returns the runtime class of a reference value, or nil for null
// and non-reference values.
func (l *Linker) ClassOf(v vm.Value) *vm.Class {
	if v.IsNull() {
		return nil
	}
	switch ref := v.Ref.(type) {
	case *vm.JObject:
		return ref.Class
	case *vm.JArray:
		return ref.Class
	case string:
		c, err := l.Dict.LoadClass("java/lang/String")
		if err != nil {
			return nil
		}
		return c
	}
	return nil
}
