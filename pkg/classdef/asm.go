package classdef

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/daimatz/javavm/pkg/classfile"
)

// Method bodies are written one instruction per line:
//
//	iload_0                      no operands
//	bipush -3                    immediate
//	iload 4                      local variable index
//	iinc 1 -1                    local index and increment
//	ldc 42 / ldc "text" / ldc class demo/T
//	ldc2_w 1099511627776
//	ifeq done                    branch to a label
//	done:                        label
//	getfield demo/T.count:I      field reference
//	invokevirtual demo/T.f:(I)I  method reference
//	new demo/T                   class reference
//	newarray int                 primitive array type
//	.line 12                     line number from here on
//
// Text after '#' is a comment.

type operand int

const (
	none operand = iota
	local
	local2 // long locals take two slots
	imm8
	imm16
	constant
	constant2
	increment
	branch
	branchWide
	fieldRef
	methodRef
	interfaceMethodRef
	classRef
	arrayType
)

type mnemonic struct {
	op   byte
	kind operand
}

var mnemonics = map[string]mnemonic{
	"nop":             {classfile.OpNop, none},
	"aconst_null":     {classfile.OpAconstNull, none},
	"iconst_m1":       {classfile.OpIconstM1, none},
	"iconst_0":        {classfile.OpIconst0, none},
	"iconst_1":        {classfile.OpIconst1, none},
	"iconst_2":        {classfile.OpIconst2, none},
	"iconst_3":        {classfile.OpIconst3, none},
	"iconst_4":        {classfile.OpIconst4, none},
	"iconst_5":        {classfile.OpIconst5, none},
	"lconst_0":        {classfile.OpLconst0, none},
	"lconst_1":        {classfile.OpLconst1, none},
	"bipush":          {classfile.OpBipush, imm8},
	"sipush":          {classfile.OpSipush, imm16},
	"ldc":             {classfile.OpLdc, constant},
	"ldc2_w":          {classfile.OpLdc2W, constant2},
	"iload":           {classfile.OpIload, local},
	"lload":           {classfile.OpLload, local2},
	"aload":           {classfile.OpAload, local},
	"iload_0":         {classfile.OpIload0, none},
	"iload_1":         {classfile.OpIload1, none},
	"iload_2":         {classfile.OpIload2, none},
	"iload_3":         {classfile.OpIload3, none},
	"lload_0":         {classfile.OpLload0, none},
	"lload_1":         {classfile.OpLload1, none},
	"lload_2":         {classfile.OpLload2, none},
	"lload_3":         {classfile.OpLload3, none},
	"aload_0":         {classfile.OpAload0, none},
	"aload_1":         {classfile.OpAload1, none},
	"aload_2":         {classfile.OpAload2, none},
	"aload_3":         {classfile.OpAload3, none},
	"iaload":          {classfile.OpIaload, none},
	"laload":          {classfile.OpLaload, none},
	"aaload":          {classfile.OpAaload, none},
	"baload":          {classfile.OpBaload, none},
	"caload":          {classfile.OpCaload, none},
	"saload":          {classfile.OpSaload, none},
	"istore":          {classfile.OpIstore, local},
	"lstore":          {classfile.OpLstore, local2},
	"astore":          {classfile.OpAstore, local},
	"istore_0":        {classfile.OpIstore0, none},
	"istore_1":        {classfile.OpIstore1, none},
	"istore_2":        {classfile.OpIstore2, none},
	"istore_3":        {classfile.OpIstore3, none},
	"lstore_0":        {classfile.OpLstore0, none},
	"lstore_1":        {classfile.OpLstore1, none},
	"lstore_2":        {classfile.OpLstore2, none},
	"lstore_3":        {classfile.OpLstore3, none},
	"astore_0":        {classfile.OpAstore0, none},
	"astore_1":        {classfile.OpAstore1, none},
	"astore_2":        {classfile.OpAstore2, none},
	"astore_3":        {classfile.OpAstore3, none},
	"iastore":         {classfile.OpIastore, none},
	"lastore":         {classfile.OpLastore, none},
	"aastore":         {classfile.OpAastore, none},
	"bastore":         {classfile.OpBastore, none},
	"castore":         {classfile.OpCastore, none},
	"sastore":         {classfile.OpSastore, none},
	"pop":             {classfile.OpPop, none},
	"dup":             {classfile.OpDup, none},
	"dup_x1":          {classfile.OpDupX1, none},
	"dup_x2":          {classfile.OpDupX2, none},
	"swap":            {classfile.OpSwap, none},
	"iadd":            {classfile.OpIadd, none},
	"ladd":            {classfile.OpLadd, none},
	"isub":            {classfile.OpIsub, none},
	"lsub":            {classfile.OpLsub, none},
	"imul":            {classfile.OpImul, none},
	"lmul":            {classfile.OpLmul, none},
	"idiv":            {classfile.OpIdiv, none},
	"ldiv":            {classfile.OpLdiv, none},
	"irem":            {classfile.OpIrem, none},
	"lrem":            {classfile.OpLrem, none},
	"ineg":            {classfile.OpIneg, none},
	"lneg":            {classfile.OpLneg, none},
	"ishl":            {classfile.OpIshl, none},
	"lshl":            {classfile.OpLshl, none},
	"ishr":            {classfile.OpIshr, none},
	"lshr":            {classfile.OpLshr, none},
	"iushr":           {classfile.OpIushr, none},
	"lushr":           {classfile.OpLushr, none},
	"iand":            {classfile.OpIand, none},
	"land":            {classfile.OpLand, none},
	"ior":             {classfile.OpIor, none},
	"lor":             {classfile.OpLor, none},
	"ixor":            {classfile.OpIxor, none},
	"lxor":            {classfile.OpLxor, none},
	"iinc":            {classfile.OpIinc, increment},
	"i2l":             {classfile.OpI2l, none},
	"l2i":             {classfile.OpL2i, none},
	"i2b":             {classfile.OpI2b, none},
	"i2c":             {classfile.OpI2c, none},
	"i2s":             {classfile.OpI2s, none},
	"lcmp":            {classfile.OpLcmp, none},
	"ifeq":            {classfile.OpIfeq, branch},
	"ifne":            {classfile.OpIfne, branch},
	"iflt":            {classfile.OpIflt, branch},
	"ifge":            {classfile.OpIfge, branch},
	"ifgt":            {classfile.OpIfgt, branch},
	"ifle":            {classfile.OpIfle, branch},
	"if_icmpeq":       {classfile.OpIfIcmpeq, branch},
	"if_icmpne":       {classfile.OpIfIcmpne, branch},
	"if_icmplt":       {classfile.OpIfIcmplt, branch},
	"if_icmpge":       {classfile.OpIfIcmpge, branch},
	"if_icmpgt":       {classfile.OpIfIcmpgt, branch},
	"if_icmple":       {classfile.OpIfIcmple, branch},
	"if_acmpeq":       {classfile.OpIfAcmpeq, branch},
	"if_acmpne":       {classfile.OpIfAcmpne, branch},
	"goto":            {classfile.OpGoto, branch},
	"ireturn":         {classfile.OpIreturn, none},
	"lreturn":         {classfile.OpLreturn, none},
	"areturn":         {classfile.OpAreturn, none},
	"return":          {classfile.OpReturn, none},
	"getstatic":       {classfile.OpGetstatic, fieldRef},
	"putstatic":       {classfile.OpPutstatic, fieldRef},
	"getfield":        {classfile.OpGetfield, fieldRef},
	"putfield":        {classfile.OpPutfield, fieldRef},
	"invokevirtual":   {classfile.OpInvokevirtual, methodRef},
	"invokespecial":   {classfile.OpInvokespecial, methodRef},
	"invokestatic":    {classfile.OpInvokestatic, methodRef},
	"invokeinterface": {classfile.OpInvokeinterface, interfaceMethodRef},
	"new":             {classfile.OpNew, classRef},
	"newarray":        {classfile.OpNewarray, arrayType},
	"anewarray":       {classfile.OpAnewarray, classRef},
	"arraylength":     {classfile.OpArraylength, none},
	"athrow":          {classfile.OpAthrow, none},
	"checkcast":       {classfile.OpCheckcast, classRef},
	"instanceof":      {classfile.OpInstanceof, classRef},
	"ifnull":          {classfile.OpIfnull, branch},
	"ifnonnull":       {classfile.OpIfnonnull, branch},
	"goto_w":          {classfile.OpGotoW, branchWide},
}

var arrayTypes = map[string]byte{
	"boolean": 4, "char": 5, "float": 6, "double": 7,
	"byte": 8, "short": 9, "int": 10, "long": 11,
}

type fixup struct {
	at     int // offset of the branch operand
	insnPC int
	label  string
	wide   bool
}

type assembler struct {
	b        *classfile.Builder
	code     []byte
	labels   map[string]int
	fixups   []fixup
	lines    []classfile.LineNumber
	maxLocal uint16
}

func newAssembler(b *classfile.Builder) *assembler {
	return &assembler{b: b, labels: make(map[string]int)}
}

func (a *assembler) emit(bs ...byte) { a.code = append(a.code, bs...) }

func (a *assembler) emit16(v uint16) { a.emit(byte(v>>8), byte(v)) }

func (a *assembler) useLocal(index, width uint16) {
	if index+width > a.maxLocal {
		a.maxLocal = index + width
	}
}

// implicitLocal records the local used by forms such as iload_2.
func (a *assembler) implicitLocal(name string) {
	kind, n, ok := strings.Cut(name, "_")
	if !ok || len(n) != 1 || n[0] < '0' || n[0] > '3' {
		return
	}
	switch kind {
	case "iload", "aload", "istore", "astore":
		a.useLocal(uint16(n[0]-'0'), 1)
	case "lload", "lstore":
		a.useLocal(uint16(n[0]-'0'), 2)
	}
}

func (a *assembler) line(text string) error {
	if i := strings.IndexByte(text, '#'); i >= 0 && !strings.Contains(text[:i], `"`) {
		text = text[:i]
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	name, rest, _ := strings.Cut(text, " ")
	rest = strings.TrimSpace(rest)

	if strings.HasSuffix(name, ":") && rest == "" {
		label := strings.TrimSuffix(name, ":")
		if _, dup := a.labels[label]; dup {
			return fmt.Errorf("label %s defined twice", label)
		}
		a.labels[label] = len(a.code)
		return nil
	}
	if name == ".line" {
		n, err := strconv.ParseUint(rest, 10, 16)
		if err != nil {
			return fmt.Errorf("bad line number %q", rest)
		}
		a.lines = append(a.lines, classfile.LineNumber{StartPC: uint16(len(a.code)), Line: uint16(n)})
		return nil
	}

	mn, ok := mnemonics[name]
	if !ok {
		return fmt.Errorf("unknown instruction %s", name)
	}
	if mn.kind == none {
		if rest != "" {
			return fmt.Errorf("%s takes no operand", name)
		}
		a.implicitLocal(name)
		a.emit(mn.op)
		return nil
	}
	if rest == "" {
		return fmt.Errorf("%s needs an operand", name)
	}
	return a.instruction(name, mn, rest)
}

func (a *assembler) instruction(name string, mn mnemonic, arg string) error {
	insnPC := len(a.code)
	switch mn.kind {
	case local, local2:
		n, err := strconv.ParseUint(arg, 10, 8)
		if err != nil {
			return fmt.Errorf("bad local index %q", arg)
		}
		width := uint16(1)
		if mn.kind == local2 {
			width = 2
		}
		a.useLocal(uint16(n), width)
		a.emit(mn.op, byte(n))

	case imm8:
		n, err := strconv.ParseInt(arg, 0, 8)
		if err != nil {
			return fmt.Errorf("bad byte %q", arg)
		}
		a.emit(mn.op, byte(int8(n)))

	case imm16:
		n, err := strconv.ParseInt(arg, 0, 16)
		if err != nil {
			return fmt.Errorf("bad short %q", arg)
		}
		a.emit(mn.op)
		a.emit16(uint16(int16(n)))

	case constant:
		index, err := a.constant(arg)
		if err != nil {
			return err
		}
		if index <= math.MaxUint8 {
			a.emit(classfile.OpLdc, byte(index))
		} else {
			a.emit(classfile.OpLdcW)
			a.emit16(index)
		}

	case constant2:
		n, err := strconv.ParseInt(arg, 0, 64)
		if err != nil {
			return fmt.Errorf("bad long %q", arg)
		}
		a.emit(mn.op)
		a.emit16(a.b.Long(n))

	case increment:
		fields := strings.Fields(arg)
		if len(fields) != 2 {
			return errors.New("iinc needs an index and an increment")
		}
		index, err := strconv.ParseUint(fields[0], 10, 8)
		if err != nil {
			return fmt.Errorf("bad local index %q", fields[0])
		}
		delta, err := strconv.ParseInt(fields[1], 0, 8)
		if err != nil {
			return fmt.Errorf("bad increment %q", fields[1])
		}
		a.useLocal(uint16(index), 1)
		a.emit(mn.op, byte(index), byte(int8(delta)))

	case branch, branchWide:
		a.emit(mn.op)
		a.fixups = append(a.fixups, fixup{at: len(a.code), insnPC: insnPC, label: arg, wide: mn.kind == branchWide})
		if mn.kind == branchWide {
			a.emit(0, 0, 0, 0)
		} else {
			a.emit(0, 0)
		}

	case fieldRef, methodRef, interfaceMethodRef:
		owner, member, desc, err := splitRef(arg)
		if err != nil {
			return err
		}
		switch mn.kind {
		case fieldRef:
			a.emit(mn.op)
			a.emit16(a.b.FieldRef(owner, member, desc))
		case methodRef:
			a.emit(mn.op)
			a.emit16(a.b.MethodRef(owner, member, desc))
		default:
			md, err := classfile.ParseMethodDescriptor(desc)
			if err != nil {
				return err
			}
			slots := 1 + argSlots(md, classfile.AccStatic)
			a.emit(mn.op)
			a.emit16(a.b.InterfaceMethodRef(owner, member, desc))
			a.emit(byte(slots), 0)
		}

	case classRef:
		a.emit(mn.op)
		a.emit16(a.b.Class(arg))

	case arrayType:
		atype, ok := arrayTypes[arg]
		if !ok {
			return fmt.Errorf("unknown array type %q", arg)
		}
		a.emit(mn.op, atype)

	default:
		return fmt.Errorf("%s cannot be assembled", name)
	}
	return nil
}

// constant interns the constant named by an ldc operand.
func (a *assembler) constant(arg string) (uint16, error) {
	switch {
	case strings.HasPrefix(arg, `"`):
		s, err := strconv.Unquote(arg)
		if err != nil {
			return 0, fmt.Errorf("bad string %s", arg)
		}
		return a.b.String(s), nil
	case strings.HasPrefix(arg, "class "):
		return a.b.Class(strings.TrimSpace(strings.TrimPrefix(arg, "class "))), nil
	}
	n, err := strconv.ParseInt(arg, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("bad constant %q", arg)
	}
	return a.b.Integer(int32(n)), nil
}

// splitRef splits "owner.name:descriptor".
func splitRef(ref string) (owner, name, desc string, err error) {
	member, desc, ok := strings.Cut(ref, ":")
	dot := strings.LastIndexByte(member, '.')
	if !ok || dot <= 0 || dot == len(member)-1 || desc == "" {
		return "", "", "", fmt.Errorf("bad member reference %q, want owner.name:descriptor", ref)
	}
	return member[:dot], member[dot+1:], desc, nil
}

func (a *assembler) finish() (*classfile.CodeAttribute, error) {
	for _, f := range a.fixups {
		target, ok := a.labels[f.label]
		if !ok {
			return nil, fmt.Errorf("undefined label %s", f.label)
		}
		offset := target - f.insnPC
		if f.wide {
			v := uint32(int32(offset))
			a.code[f.at], a.code[f.at+1], a.code[f.at+2], a.code[f.at+3] = byte(v>>24), byte(v>>16), byte(v>>8), byte(v)
			continue
		}
		if offset < math.MinInt16 || offset > math.MaxInt16 {
			return nil, fmt.Errorf("branch to %s out of range, use goto_w", f.label)
		}
		v := uint16(int16(offset))
		a.code[f.at], a.code[f.at+1] = byte(v>>8), byte(v)
	}
	return &classfile.CodeAttribute{Code: a.code, LineNumbers: a.lines}, nil
}

func (a *assembler) handler(h Handler) (classfile.ExceptionHandler, error) {
	var eh classfile.ExceptionHandler
	for _, p := range []struct {
		label string
		dst   *uint16
	}{{h.Start, &eh.StartPC}, {h.End, &eh.EndPC}, {h.Handler, &eh.HandlerPC}} {
		pc, ok := a.labels[p.label]
		if !ok {
			return eh, fmt.Errorf("handler: undefined label %q", p.label)
		}
		*p.dst = uint16(pc)
	}
	if eh.StartPC >= eh.EndPC {
		return eh, fmt.Errorf("handler: empty range %s..%s", h.Start, h.End)
	}
	if h.Type != "" {
		eh.CatchType = a.b.Class(h.Type)
	}
	return eh, nil
}
