package interp

import (
	"fmt"

	"github.com/daimatz/javavm/pkg/classfile"
	"github.com/daimatz/javavm/pkg/vm"
)

const (
	npe    = "java/lang/NullPointerException"
	aioobe = "java/lang/ArrayIndexOutOfBoundsException"
)

// executeInstruction executes a single instruction.
// Returns (returnValue, hasReturn, error).
func (in *Interpreter) executeInstruction(t *vm.Thread, frame *vm.Frame, opcode byte) (vm.Value, bool, error) {
	switch opcode {
	case classfile.OpNop:
		// do nothing

	// --- Constant load instructions ---
	case classfile.OpAconstNull:
		frame.Push(vm.NullValue())

	case classfile.OpIconstM1, classfile.OpIconst0, classfile.OpIconst1, classfile.OpIconst2,
		classfile.OpIconst3, classfile.OpIconst4, classfile.OpIconst5:
		frame.Push(vm.IntValue(int32(opcode) - classfile.OpIconst0))

	case classfile.OpLconst0:
		frame.Push(vm.LongValue(0))
	case classfile.OpLconst1:
		frame.Push(vm.LongValue(1))

	case classfile.OpBipush:
		frame.Push(vm.IntValue(int32(frame.ReadI8())))

	case classfile.OpSipush:
		frame.Push(vm.IntValue(int32(frame.ReadI16())))

	case classfile.OpLdc:
		return vm.Value{}, false, in.executeLdc(t, frame, uint16(frame.ReadU8()))

	case classfile.OpLdcW:
		return vm.Value{}, false, in.executeLdc(t, frame, frame.ReadU16())

	case classfile.OpLdc2W:
		index := frame.ReadU16()
		pool := frame.Class().ClassFile().ConstantPool
		if int(index) >= len(pool) || pool[index] == nil {
			return vm.Value{}, false, fmt.Errorf("ldc2_w: invalid constant pool index %d", index)
		}
		c, ok := pool[index].(*classfile.ConstantLong)
		if !ok {
			return vm.Value{}, false, fmt.Errorf("ldc2_w: unsupported constant pool entry type at index %d (tag=%d)", index, pool[index].Tag())
		}
		frame.Push(vm.LongValue(c.Value))

	// --- Local variable load instructions ---
	case classfile.OpIload, classfile.OpLload, classfile.OpAload:
		frame.Push(frame.GetLocal(int(frame.ReadU8())))
	case classfile.OpIload0, classfile.OpIload1, classfile.OpIload2, classfile.OpIload3:
		frame.Push(frame.GetLocal(int(opcode - classfile.OpIload0)))
	case classfile.OpLload0, classfile.OpLload1, classfile.OpLload2, classfile.OpLload3:
		frame.Push(frame.GetLocal(int(opcode - classfile.OpLload0)))
	case classfile.OpAload0, classfile.OpAload1, classfile.OpAload2, classfile.OpAload3:
		frame.Push(frame.GetLocal(int(opcode - classfile.OpAload0)))

	// --- Array load ---
	case classfile.OpIaload, classfile.OpLaload, classfile.OpAaload, classfile.OpBaload,
		classfile.OpCaload, classfile.OpSaload:
		index := frame.Pop().Int
		arr, err := in.checkedArray(t, frame.Pop(), index)
		if err != nil {
			return vm.Value{}, false, err
		}
		frame.Push(arr.Elements[index])

	// --- Local variable store instructions ---
	case classfile.OpIstore, classfile.OpLstore, classfile.OpAstore:
		index := frame.ReadU8()
		frame.SetLocal(int(index), frame.Pop())
	case classfile.OpIstore0, classfile.OpIstore1, classfile.OpIstore2, classfile.OpIstore3:
		frame.SetLocal(int(opcode-classfile.OpIstore0), frame.Pop())
	case classfile.OpLstore0, classfile.OpLstore1, classfile.OpLstore2, classfile.OpLstore3:
		frame.SetLocal(int(opcode-classfile.OpLstore0), frame.Pop())
	case classfile.OpAstore0, classfile.OpAstore1, classfile.OpAstore2, classfile.OpAstore3:
		frame.SetLocal(int(opcode-classfile.OpAstore0), frame.Pop())

	// --- Array store ---
	case classfile.OpIastore, classfile.OpLastore, classfile.OpAastore, classfile.OpBastore,
		classfile.OpCastore, classfile.OpSastore:
		value := frame.Pop()
		index := frame.Pop().Int
		arr, err := in.checkedArray(t, frame.Pop(), index)
		if err != nil {
			return vm.Value{}, false, err
		}
		switch opcode {
		case classfile.OpBastore:
			value = vm.IntValue(int32(int8(value.Int)))
		case classfile.OpCastore:
			value = vm.IntValue(int32(uint16(value.Int)))
		case classfile.OpSastore:
			value = vm.IntValue(int32(int16(value.Int)))
		}
		arr.Elements[index] = value

	// --- Stack manipulation ---
	case classfile.OpPop:
		frame.Pop()

	case classfile.OpDup:
		v := frame.Pop()
		frame.Push(v)
		frame.Push(v)

	case classfile.OpDupX1:
		v1 := frame.Pop()
		v2 := frame.Pop()
		frame.Push(v1)
		frame.Push(v2)
		frame.Push(v1)

	case classfile.OpDupX2:
		v1 := frame.Pop()
		v2 := frame.Pop()
		v3 := frame.Pop()
		frame.Push(v1)
		frame.Push(v3)
		frame.Push(v2)
		frame.Push(v1)

	case classfile.OpSwap:
		v2 := frame.Pop()
		v1 := frame.Pop()
		frame.Push(v2)
		frame.Push(v1)

	// --- Arithmetic ---
	case classfile.OpIadd, classfile.OpIsub, classfile.OpImul, classfile.OpIdiv, classfile.OpIrem,
		classfile.OpIshl, classfile.OpIshr, classfile.OpIushr, classfile.OpIand, classfile.OpIor, classfile.OpIxor:
		v2 := frame.Pop().Int
		v1 := frame.Pop().Int
		r, err := in.intOp(t, opcode, v1, v2)
		if err != nil {
			return vm.Value{}, false, err
		}
		frame.Push(vm.IntValue(r))

	case classfile.OpLadd, classfile.OpLsub, classfile.OpLmul, classfile.OpLdiv, classfile.OpLrem,
		classfile.OpLand, classfile.OpLor, classfile.OpLxor:
		v2 := frame.Pop().Long
		v1 := frame.Pop().Long
		r, err := in.longOp(t, opcode, v1, v2)
		if err != nil {
			return vm.Value{}, false, err
		}
		frame.Push(vm.LongValue(r))

	// shift distance is an int
	case classfile.OpLshl:
		s := uint(frame.Pop().Int) & 0x3f
		frame.Push(vm.LongValue(frame.Pop().Long << s))
	case classfile.OpLshr:
		s := uint(frame.Pop().Int) & 0x3f
		frame.Push(vm.LongValue(frame.Pop().Long >> s))
	case classfile.OpLushr:
		s := uint(frame.Pop().Int) & 0x3f
		frame.Push(vm.LongValue(int64(uint64(frame.Pop().Long) >> s)))

	case classfile.OpIneg:
		frame.Push(vm.IntValue(-frame.Pop().Int))
	case classfile.OpLneg:
		frame.Push(vm.LongValue(-frame.Pop().Long))

	case classfile.OpIinc:
		index := frame.ReadU8()
		constVal := frame.ReadI8()
		local := frame.GetLocal(int(index))
		frame.SetLocal(int(index), vm.IntValue(local.Int+int32(constVal)))

	// --- Type conversions ---
	case classfile.OpI2l:
		frame.Push(vm.LongValue(int64(frame.Pop().Int)))
	case classfile.OpL2i:
		frame.Push(vm.IntValue(int32(frame.Pop().Long)))
	case classfile.OpI2b:
		frame.Push(vm.IntValue(int32(int8(frame.Pop().Int))))
	case classfile.OpI2c:
		frame.Push(vm.IntValue(int32(uint16(frame.Pop().Int))))
	case classfile.OpI2s:
		frame.Push(vm.IntValue(int32(int16(frame.Pop().Int))))

	// --- Comparisons ---
	case classfile.OpLcmp:
		v2 := frame.Pop()
		v1 := frame.Pop()
		switch {
		case v1.Long > v2.Long:
			frame.Push(vm.IntValue(1))
		case v1.Long < v2.Long:
			frame.Push(vm.IntValue(-1))
		default:
			frame.Push(vm.IntValue(0))
		}

	// --- Comparison and branch ---
	case classfile.OpIfeq:
		branchUnary(frame, func(v int32) bool { return v == 0 })
	case classfile.OpIfne:
		branchUnary(frame, func(v int32) bool { return v != 0 })
	case classfile.OpIflt:
		branchUnary(frame, func(v int32) bool { return v < 0 })
	case classfile.OpIfge:
		branchUnary(frame, func(v int32) bool { return v >= 0 })
	case classfile.OpIfgt:
		branchUnary(frame, func(v int32) bool { return v > 0 })
	case classfile.OpIfle:
		branchUnary(frame, func(v int32) bool { return v <= 0 })

	case classfile.OpIfIcmpeq:
		branchBinary(frame, func(v1, v2 int32) bool { return v1 == v2 })
	case classfile.OpIfIcmpne:
		branchBinary(frame, func(v1, v2 int32) bool { return v1 != v2 })
	case classfile.OpIfIcmplt:
		branchBinary(frame, func(v1, v2 int32) bool { return v1 < v2 })
	case classfile.OpIfIcmpge:
		branchBinary(frame, func(v1, v2 int32) bool { return v1 >= v2 })
	case classfile.OpIfIcmpgt:
		branchBinary(frame, func(v1, v2 int32) bool { return v1 > v2 })
	case classfile.OpIfIcmple:
		branchBinary(frame, func(v1, v2 int32) bool { return v1 <= v2 })

	case classfile.OpIfAcmpeq, classfile.OpIfAcmpne:
		branchPC := frame.InsnPC
		offset := frame.ReadI16()
		v2 := frame.Pop()
		v1 := frame.Pop()
		if sameRef(v1, v2) == (opcode == classfile.OpIfAcmpeq) {
			frame.PC = branchPC + int(offset)
		}

	case classfile.OpIfnull, classfile.OpIfnonnull:
		branchPC := frame.InsnPC
		offset := frame.ReadI16()
		if frame.Pop().IsNull() == (opcode == classfile.OpIfnull) {
			frame.PC = branchPC + int(offset)
		}

	case classfile.OpGoto:
		branchPC := frame.InsnPC
		offset := frame.ReadI16()
		frame.PC = branchPC + int(offset)

	case classfile.OpGotoW:
		branchPC := frame.InsnPC
		offset := frame.ReadI32()
		frame.PC = branchPC + int(offset)

	case classfile.OpTableswitch:
		opcodePC := frame.InsnPC
		// Padding to align to 4-byte boundary
		for frame.PC%4 != 0 {
			frame.PC++
		}
		defaultOffset := frame.ReadI32()
		low := frame.ReadI32()
		high := frame.ReadI32()
		offsets := make([]int32, int(high-low+1))
		for i := range offsets {
			offsets[i] = frame.ReadI32()
		}
		index := frame.Pop().Int
		if index >= low && index <= high {
			frame.PC = opcodePC + int(offsets[index-low])
		} else {
			frame.PC = opcodePC + int(defaultOffset)
		}

	case classfile.OpLookupswitch:
		opcodePC := frame.InsnPC
		for frame.PC%4 != 0 {
			frame.PC++
		}
		defaultOffset := frame.ReadI32()
		npairs := frame.ReadI32()
		key := frame.Pop().Int
		target := opcodePC + int(defaultOffset)
		for i := int32(0); i < npairs; i++ {
			match := frame.ReadI32()
			offset := frame.ReadI32()
			if key == match {
				target = opcodePC + int(offset)
			}
		}
		frame.PC = target

	// --- Return ---
	case classfile.OpIreturn, classfile.OpLreturn, classfile.OpAreturn:
		return frame.Pop(), true, nil

	case classfile.OpReturn:
		return vm.Value{}, true, nil

	// --- Method invocation and field access ---
	case classfile.OpGetstatic, classfile.OpPutstatic, classfile.OpGetfield, classfile.OpPutfield:
		return vm.Value{}, false, in.executeField(t, frame, opcode)

	case classfile.OpInvokevirtual, classfile.OpInvokespecial, classfile.OpInvokestatic, classfile.OpInvokeinterface:
		return vm.Value{}, false, in.executeInvoke(t, frame, opcode)

	// --- Objects and arrays ---
	case classfile.OpNew:
		return vm.Value{}, false, in.executeNew(t, frame)

	case classfile.OpNewarray:
		atype := frame.ReadU8()
		name, ok := primitiveArrays[atype]
		if !ok {
			return vm.Value{}, false, fmt.Errorf("newarray: invalid array type %d", atype)
		}
		return vm.Value{}, false, in.newArray(t, frame, name)

	case classfile.OpAnewarray:
		name, err := classfile.GetClassName(frame.Class().ClassFile().ConstantPool, frame.ReadU16())
		if err != nil {
			return vm.Value{}, false, fmt.Errorf("anewarray: %w", err)
		}
		if name[0] == '[' {
			name = "[" + name
		} else {
			name = "[L" + name + ";"
		}
		return vm.Value{}, false, in.newArray(t, frame, name)

	case classfile.OpArraylength:
		arr, err := in.array(t, frame.Pop())
		if err != nil {
			return vm.Value{}, false, err
		}
		frame.Push(vm.IntValue(int32(len(arr.Elements))))

	case classfile.OpAthrow:
		excRef := frame.Pop()
		if excRef.IsNull() {
			return vm.Value{}, false, in.throw(t, npe, "")
		}
		obj, ok := excRef.Ref.(*vm.JObject)
		if !ok {
			return vm.Value{}, false, fmt.Errorf("athrow: non-object on stack")
		}
		msg, _ := obj.Fields["detailMessage"].Ref.(string)
		return vm.Value{}, false, &vm.JavaException{Object: obj, Message: msg}

	case classfile.OpCheckcast:
		target, err := in.classOperand(t, frame)
		if err != nil {
			return vm.Value{}, false, err
		}
		val := frame.Peek()
		if val.IsNull() {
			break
		}
		c := in.Linker.ClassOf(val)
		if c == nil {
			return vm.Value{}, false, fmt.Errorf("checkcast: %v is not a reference", val)
		}
		if !target.IsAssignableFrom(c) {
			return vm.Value{}, false, in.throw(t, "java/lang/ClassCastException",
				fmt.Sprintf("class %s cannot be cast to class %s", dotted(c.Name()), dotted(target.Name())))
		}

	case classfile.OpInstanceof:
		target, err := in.classOperand(t, frame)
		if err != nil {
			return vm.Value{}, false, err
		}
		c := in.Linker.ClassOf(frame.Pop())
		if c != nil && target.IsAssignableFrom(c) {
			frame.Push(vm.IntValue(1))
		} else {
			frame.Push(vm.IntValue(0))
		}

	default:
		return vm.Value{}, false, fmt.Errorf("unknown opcode: 0x%02X at PC=%d", opcode, frame.InsnPC)
	}

	return vm.Value{}, false, nil
}

func (in *Interpreter) intOp(t *vm.Thread, opcode byte, v1, v2 int32) (int32, error) {
	switch opcode {
	case classfile.OpIadd:
		return v1 + v2, nil
	case classfile.OpIsub:
		return v1 - v2, nil
	case classfile.OpImul:
		return v1 * v2, nil
	case classfile.OpIdiv, classfile.OpIrem:
		if v2 == 0 {
			return 0, in.throw(t, "java/lang/ArithmeticException", "/ by zero")
		}
		// MinInt32 / -1 wraps in Java
		if v2 == -1 {
			if opcode == classfile.OpIdiv {
				return -v1, nil
			}
			return 0, nil
		}
		if opcode == classfile.OpIdiv {
			return v1 / v2, nil
		}
		return v1 % v2, nil
	case classfile.OpIshl:
		return v1 << (uint(v2) & 0x1f), nil
	case classfile.OpIshr:
		return v1 >> (uint(v2) & 0x1f), nil
	case classfile.OpIushr:
		return int32(uint32(v1) >> (uint(v2) & 0x1f)), nil
	case classfile.OpIand:
		return v1 & v2, nil
	case classfile.OpIor:
		return v1 | v2, nil
	}
	return v1 ^ v2, nil
}

func (in *Interpreter) longOp(t *vm.Thread, opcode byte, v1, v2 int64) (int64, error) {
	switch opcode {
	case classfile.OpLadd:
		return v1 + v2, nil
	case classfile.OpLsub:
		return v1 - v2, nil
	case classfile.OpLmul:
		return v1 * v2, nil
	case classfile.OpLdiv, classfile.OpLrem:
		if v2 == 0 {
			return 0, in.throw(t, "java/lang/ArithmeticException", "/ by zero")
		}
		if v2 == -1 {
			if opcode == classfile.OpLdiv {
				return -v1, nil
			}
			return 0, nil
		}
		if opcode == classfile.OpLdiv {
			return v1 / v2, nil
		}
		return v1 % v2, nil
	case classfile.OpLand:
		return v1 & v2, nil
	case classfile.OpLor:
		return v1 | v2, nil
	}
	return v1 ^ v2, nil
}

// branchUnary handles unary branch instructions (ifeq, ifne, etc.)
func branchUnary(frame *vm.Frame, cond func(int32) bool) {
	branchPC := frame.InsnPC
	offset := frame.ReadI16()
	if cond(frame.Pop().Int) {
		frame.PC = branchPC + int(offset)
	}
}

// branchBinary handles binary branch instructions (if_icmpeq, etc.)
func branchBinary(frame *vm.Frame, cond func(int32, int32) bool) {
	branchPC := frame.InsnPC
	offset := frame.ReadI16()
	v2 := frame.Pop()
	v1 := frame.Pop()
	if cond(v1.Int, v2.Int) {
		frame.PC = branchPC + int(offset)
	}
}

func sameRef(v1, v2 vm.Value) bool {
	if v1.IsNull() || v2.IsNull() {
		return v1.IsNull() && v2.IsNull()
	}
	return v1.Ref == v2.Ref
}
