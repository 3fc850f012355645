package interp

import (
	"fmt"

	"github.com/daimatz/javavm/pkg/classfile"
	"github.com/daimatz/javavm/pkg/vm"
)

// primitiveArrays maps newarray's atype operand to the array class.
var primitiveArrays = map[uint8]string{
	4:  "[Z",
	5:  "[C",
	6:  "[F",
	7:  "[D",
	8:  "[B",
	9:  "[S",
	10: "[I",
	11: "[J",
}

// executeLdc handles the ldc instruction.
func (in *Interpreter) executeLdc(t *vm.Thread, frame *vm.Frame, index uint16) error {
	pool := frame.Class().ClassFile().ConstantPool
	if int(index) >= len(pool) || pool[index] == nil {
		return fmt.Errorf("ldc: invalid constant pool index %d", index)
	}

	switch c := pool[index].(type) {
	case *classfile.ConstantInteger:
		frame.Push(vm.IntValue(c.Value))
	case *classfile.ConstantString:
		str, err := classfile.GetUtf8(pool, c.StringIndex)
		if err != nil {
			return fmt.Errorf("ldc: resolving string: %w", err)
		}
		frame.Push(vm.RefValue(str))
	case *classfile.ConstantClass:
		name, err := classfile.GetUtf8(pool, c.NameIndex)
		if err != nil {
			return fmt.Errorf("ldc: resolving class: %w", err)
		}
		cls, err := in.VM.Dict.LoadClass(name)
		if err != nil {
			return in.fault(t, err)
		}
		mirror, err := in.Natives.Mirror(in.VM.Dict, cls)
		if err != nil {
			return err
		}
		frame.Push(vm.RefValue(mirror))
	default:
		return fmt.Errorf("ldc: unsupported constant pool entry type at index %d (tag=%d)", index, pool[index].Tag())
	}
	return nil
}

// executeField handles getstatic, putstatic, getfield and putfield.
func (in *Interpreter) executeField(t *vm.Thread, frame *vm.Frame, opcode byte) error {
	index := frame.ReadU16()
	fd, err := in.Linker.ResolveFieldAccess(t, frame.Class(), opcode, index)
	if err != nil {
		return in.fault(t, err)
	}

	switch opcode {
	case classfile.OpGetstatic:
		frame.Push(fd.DeclaringClass.GetStatic(fd.Field))
	case classfile.OpPutstatic:
		fd.DeclaringClass.SetStatic(fd.Field, frame.Pop())
	case classfile.OpGetfield:
		obj, err := in.object(t, frame.Pop())
		if err != nil {
			return err
		}
		val, ok := obj.Fields[fd.Field.Name()]
		if !ok {
			val = vm.ZeroValue(fd.Field.Descriptor())
		}
		frame.Push(val)
	case classfile.OpPutfield:
		value := frame.Pop()
		obj, err := in.object(t, frame.Pop())
		if err != nil {
			return err
		}
		obj.Fields[fd.Field.Name()] = value
	}
	return nil
}

// executeInvoke handles the four invoke instructions. Arguments are popped
// before dispatch so that the receiver is known.
func (in *Interpreter) executeInvoke(t *vm.Thread, frame *vm.Frame, opcode byte) error {
	index := frame.ReadU16()
	if opcode == classfile.OpInvokeinterface {
		frame.ReadU8() // count
		frame.ReadU8() // 0
	}
	li, iface, err := in.Linker.MethodRef(frame.Class(), index)
	if err != nil {
		return in.fault(t, err)
	}
	paramCount, err := classfile.CountParams(li.Descriptor)
	if err != nil {
		return fmt.Errorf("%s: %w", classfile.OpName(opcode), err)
	}
	args := make([]vm.Value, paramCount, paramCount+1)
	for i := paramCount - 1; i >= 0; i-- {
		args[i] = frame.Pop()
	}
	var receiver vm.Value
	if opcode != classfile.OpInvokestatic {
		receiver = frame.Pop()
	}

	ci, err := in.Linker.Dispatch(t, opcode, li, iface, receiver)
	if err != nil {
		return in.fault(t, err)
	}
	m := ci.SelectedMethod
	if m.IsStatic() {
		if err := in.initialize(t, m.Class()); err != nil {
			return err
		}
	} else {
		if receiver.IsNull() {
			return in.throw(t, npe, fmt.Sprintf("Cannot invoke \"%s.%s()\" because value is null", dotted(li.ResolvedClass.Name()), li.Name))
		}
		args = append([]vm.Value{receiver}, args...)
	}
	log.Debugf("%s", ci)

	retVal, err := in.Invoke(t, m, args)
	if err != nil {
		return err
	}
	if !classfile.IsVoidReturn(li.Descriptor) {
		frame.Push(retVal)
	}
	return nil
}

// executeNew handles the new instruction.
func (in *Interpreter) executeNew(t *vm.Thread, frame *vm.Frame) error {
	c, err := in.classOperand(t, frame)
	if err != nil {
		return err
	}
	if c.IsAbstract() || c.IsInterface() {
		return in.throw(t, "java/lang/InstantiationError", dotted(c.Name()))
	}
	if err := in.initialize(t, c); err != nil {
		return err
	}
	frame.Push(vm.RefValue(vm.NewObject(c)))
	return nil
}

func (in *Interpreter) newArray(t *vm.Thread, frame *vm.Frame, name string) error {
	count := frame.Pop().Int
	if count < 0 {
		return in.throw(t, "java/lang/NegativeArraySizeException", fmt.Sprint(count))
	}
	c, err := in.VM.Dict.LoadClass(name)
	if err != nil {
		return in.fault(t, err)
	}
	zero := vm.ZeroValue(name[1:])
	elements := make([]vm.Value, count)
	for i := range elements {
		elements[i] = zero
	}
	frame.Push(vm.RefValue(&vm.JArray{Class: c, Elements: elements}))
	return nil
}

// classOperand loads the class named by the constant pool operand of the
// current instruction.
func (in *Interpreter) classOperand(t *vm.Thread, frame *vm.Frame) (*vm.Class, error) {
	name, err := classfile.GetClassName(frame.Class().ClassFile().ConstantPool, frame.ReadU16())
	if err != nil {
		return nil, err
	}
	c, err := in.VM.Dict.LoadClass(name)
	if err != nil {
		return nil, in.fault(t, err)
	}
	return c, nil
}

func (in *Interpreter) object(t *vm.Thread, v vm.Value) (*vm.JObject, error) {
	if v.IsNull() {
		return nil, in.throw(t, npe, "")
	}
	obj, ok := v.Ref.(*vm.JObject)
	if !ok {
		return nil, fmt.Errorf("receiver is %T, not an object", v.Ref)
	}
	return obj, nil
}

func (in *Interpreter) array(t *vm.Thread, v vm.Value) (*vm.JArray, error) {
	if v.IsNull() {
		return nil, in.throw(t, npe, "")
	}
	arr, ok := v.Ref.(*vm.JArray)
	if !ok {
		return nil, fmt.Errorf("reference is %T, not an array", v.Ref)
	}
	return arr, nil
}

func (in *Interpreter) checkedArray(t *vm.Thread, v vm.Value, index int32) (*vm.JArray, error) {
	arr, err := in.array(t, v)
	if err != nil {
		return nil, err
	}
	if index < 0 || int(index) >= len(arr.Elements) {
		return nil, in.throw(t, aioobe,
			fmt.Sprintf("Index %d out of bounds for length %d", index, len(arr.Elements)))
	}
	return arr, nil
}
