package vm

import (
	"github.com/daimatz/javavm/pkg/classfile"
)

// Well-known class names.
const (
	ObjectClass            = "java/lang/Object"
	ThrowableClass         = "java/lang/Throwable"
	StackTraceElementClass = "java/lang/StackTraceElement"
	MethodHandleClass      = "java/lang/invoke/MethodHandle"
)

// bytecode is a tiny assembler for the bodies of bootstrap methods.
type bytecode []byte

func (b bytecode) op(ops ...byte) bytecode { return append(b, ops...) }

func (b bytecode) ref(op byte, index uint16) bytecode {
	return append(b, op, byte(index>>8), byte(index))
}

func (b bytecode) code(maxStack, maxLocals uint16, lines ...classfile.LineNumber) *classfile.CodeAttribute {
	return &classfile.CodeAttribute{
		MaxStack:    maxStack,
		MaxLocals:   maxLocals,
		Code:        b,
		LineNumbers: lines,
	}
}

const (
	accPublicNative      = classfile.AccPublic | classfile.AccNative
	accPublicFinalNative = classfile.AccPublic | classfile.AccFinal | classfile.AccNative
	accPolymorphic       = classfile.AccFinal | classfile.AccNative | classfile.AccVarargs
	accStaticPolymorphic = classfile.AccStatic | classfile.AccNative | classfile.AccVarargs
)

// throwableSubclasses lists the emulated exception hierarchy below Throwable
// as (class, super) pairs, parents first.
var throwableSubclasses = [][2]string{
	{"java/lang/Exception", ThrowableClass},
	{"java/lang/Error", ThrowableClass},
	{"java/lang/RuntimeException", "java/lang/Exception"},
	{"java/lang/LinkageError", "java/lang/Error"},
	{"java/lang/VirtualMachineError", "java/lang/Error"},
	{"java/lang/IncompatibleClassChangeError", "java/lang/LinkageError"},
	{"java/lang/NoClassDefFoundError", "java/lang/LinkageError"},
	{"java/lang/ExceptionInInitializerError", "java/lang/LinkageError"},
	{"java/lang/NoSuchMethodError", "java/lang/IncompatibleClassChangeError"},
	{"java/lang/InstantiationError", "java/lang/IncompatibleClassChangeError"},
	{"java/lang/NoSuchFieldError", "java/lang/IncompatibleClassChangeError"},
	{"java/lang/AbstractMethodError", "java/lang/IncompatibleClassChangeError"},
	{"java/lang/StackOverflowError", "java/lang/VirtualMachineError"},
	{"java/lang/InternalError", "java/lang/VirtualMachineError"},
	{"java/lang/NullPointerException", "java/lang/RuntimeException"},
	{"java/lang/ArithmeticException", "java/lang/RuntimeException"},
	{"java/lang/ClassCastException", "java/lang/RuntimeException"},
	{"java/lang/NegativeArraySizeException", "java/lang/RuntimeException"},
	{"java/lang/ArrayIndexOutOfBoundsException", "java/lang/RuntimeException"},
	{"java/lang/IllegalArgumentException", "java/lang/RuntimeException"},
	{"java/lang/UnsupportedOperationException", "java/lang/RuntimeException"},
	{"java/lang/CloneNotSupportedException", "java/lang/Exception"},
}

// BootstrapClasses returns the synthetic core classes every dictionary
// starts from. They carry just enough members for linkage, exception
// construction and stack traces to work without a JDK.
func BootstrapClasses() []*classfile.ClassFile {
	classes := []*classfile.ClassFile{
		objectClass(),
		marker("java/lang/Cloneable"),
		marker("java/io/Serializable"),
		stringClass(),
		classClass(),
		throwableClass(),
		stackTraceElementClass(),
		methodHandleClass(),
		printStreamClass(),
		systemClass(),
	}
	for _, pair := range throwableSubclasses {
		classes = append(classes, throwableSubclass(pair[0], pair[1]))
	}
	return classes
}

func objectClass() *classfile.ClassFile {
	b := classfile.NewBuilder(ObjectClass, "", classfile.AccPublic|classfile.AccSuper)
	b.SetSourceFile("Object.java")
	b.AddMethod(classfile.AccPublic, "<init>", "()V",
		bytecode{}.op(classfile.OpReturn).code(0, 1, classfile.LineNumber{StartPC: 0, Line: 37}))
	b.AddMethod(accPublicNative, "hashCode", "()I", nil)
	b.AddMethod(classfile.AccPublic, "equals", "(Ljava/lang/Object;)Z",
		bytecode{}.op(classfile.OpAload0, classfile.OpAload1, classfile.OpIfAcmpne, 0x00, 0x05,
			classfile.OpIconst1, classfile.OpIreturn, classfile.OpIconst0, classfile.OpIreturn).
			code(2, 2, classfile.LineNumber{StartPC: 0, Line: 149}))
	b.AddMethod(accPublicNative, "toString", "()Ljava/lang/String;", nil)
	b.AddMethod(accPublicFinalNative, "getClass", "()Ljava/lang/Class;", nil)
	b.AddMethod(classfile.AccProtected|classfile.AccNative, "clone", "()Ljava/lang/Object;", nil)
	b.AddMethod(classfile.AccProtected, "finalize", "()V",
		bytecode{}.op(classfile.OpReturn).code(0, 1, classfile.LineNumber{StartPC: 0, Line: 555}))
	b.AddMethod(accPublicFinalNative, "notify", "()V", nil)
	b.AddMethod(accPublicFinalNative, "wait", "(J)V", nil)
	return b.Build()
}

func marker(name string) *classfile.ClassFile {
	return classfile.NewBuilder(name, ObjectClass,
		classfile.AccPublic|classfile.AccInterface|classfile.AccAbstract).Build()
}

func stringClass() *classfile.ClassFile {
	b := classfile.NewBuilder("java/lang/String", ObjectClass, classfile.AccPublic|classfile.AccFinal|classfile.AccSuper)
	b.AddInterface("java/io/Serializable")
	b.AddMethod(accPublicNative, "length", "()I", nil)
	b.AddMethod(accPublicNative, "toString", "()Ljava/lang/String;", nil)
	return b.Build()
}

func classClass() *classfile.ClassFile {
	b := classfile.NewBuilder("java/lang/Class", ObjectClass, classfile.AccPublic|classfile.AccFinal|classfile.AccSuper)
	b.AddMethod(accPublicNative, "getName", "()Ljava/lang/String;", nil)
	return b.Build()
}

func throwableClass() *classfile.ClassFile {
	b := classfile.NewBuilder(ThrowableClass, ObjectClass, classfile.AccPublic|classfile.AccSuper)
	b.AddInterface("java/io/Serializable")
	b.SetSourceFile("Throwable.java")
	b.AddField(classfile.AccPrivate, "detailMessage", "Ljava/lang/String;")
	b.AddField(classfile.AccPrivate|classfile.AccTransient, "backtrace", "Ljava/lang/Object;")
	b.AddField(classfile.AccPrivate|classfile.AccTransient, "depth", "I")

	objInit := b.MethodRef(ObjectClass, "<init>", "()V")
	fill := b.MethodRef(ThrowableClass, "fillInStackTrace", "()Ljava/lang/Throwable;")
	fillNative := b.MethodRef(ThrowableClass, "fillInStackTrace", "(I)Ljava/lang/Throwable;")
	msg := b.FieldRef(ThrowableClass, "detailMessage", "Ljava/lang/String;")

	b.AddMethod(classfile.AccPublic, "<init>", "()V",
		bytecode{}.op(classfile.OpAload0).ref(classfile.OpInvokespecial, objInit).
			op(classfile.OpAload0).ref(classfile.OpInvokevirtual, fill).
			op(classfile.OpPop, classfile.OpReturn).
			code(1, 1, classfile.LineNumber{StartPC: 0, Line: 250}, classfile.LineNumber{StartPC: 4, Line: 251}))
	b.AddMethod(classfile.AccPublic, "<init>", "(Ljava/lang/String;)V",
		bytecode{}.op(classfile.OpAload0).ref(classfile.OpInvokespecial, objInit).
			op(classfile.OpAload0).ref(classfile.OpInvokevirtual, fill).
			op(classfile.OpPop, classfile.OpAload0, classfile.OpAload1).ref(classfile.OpPutfield, msg).
			op(classfile.OpReturn).
			code(2, 2,
				classfile.LineNumber{StartPC: 0, Line: 264},
				classfile.LineNumber{StartPC: 4, Line: 265},
				classfile.LineNumber{StartPC: 9, Line: 266}))
	b.AddMethod(classfile.AccPublic, "getMessage", "()Ljava/lang/String;",
		bytecode{}.op(classfile.OpAload0).ref(classfile.OpGetfield, msg).op(classfile.OpAreturn).
			code(1, 1, classfile.LineNumber{StartPC: 0, Line: 389}))
	b.AddMethod(classfile.AccPublic|classfile.AccSynchronized, "fillInStackTrace", "()Ljava/lang/Throwable;",
		bytecode{}.op(classfile.OpAload0, classfile.OpIconst0).ref(classfile.OpInvokevirtual, fillNative).
			op(classfile.OpAreturn).
			code(2, 1, classfile.LineNumber{StartPC: 0, Line: 784}))
	b.AddMethod(classfile.AccPrivate|classfile.AccNative, "fillInStackTrace", "(I)Ljava/lang/Throwable;", nil)
	b.AddMethod(classfile.AccNative, "getStackTraceDepth", "()I", nil)
	b.AddMethod(classfile.AccNative, "getStackTraceElement", "(I)Ljava/lang/StackTraceElement;", nil)
	return b.Build()
}

// throwableSubclass declares name with the two usual constructors, each
// delegating to the same constructor of super.
func throwableSubclass(name, super string) *classfile.ClassFile {
	b := classfile.NewBuilder(name, super, classfile.AccPublic|classfile.AccSuper)
	b.AddMethod(classfile.AccPublic, "<init>", "()V",
		bytecode{}.op(classfile.OpAload0).ref(classfile.OpInvokespecial, b.MethodRef(super, "<init>", "()V")).
			op(classfile.OpReturn).code(1, 1))
	b.AddMethod(classfile.AccPublic, "<init>", "(Ljava/lang/String;)V",
		bytecode{}.op(classfile.OpAload0, classfile.OpAload1).
			ref(classfile.OpInvokespecial, b.MethodRef(super, "<init>", "(Ljava/lang/String;)V")).
			op(classfile.OpReturn).code(2, 2))
	return b.Build()
}

func stackTraceElementClass() *classfile.ClassFile {
	b := classfile.NewBuilder(StackTraceElementClass, ObjectClass, classfile.AccPublic|classfile.AccFinal|classfile.AccSuper)
	b.AddInterface("java/io/Serializable")
	getters := []struct{ field, desc, getter string }{
		{"declaringClass", "Ljava/lang/String;", "getClassName"},
		{"methodName", "Ljava/lang/String;", "getMethodName"},
		{"fileName", "Ljava/lang/String;", "getFileName"},
		{"lineNumber", "I", "getLineNumber"},
	}
	for _, g := range getters {
		b.AddField(classfile.AccPrivate|classfile.AccFinal, g.field, g.desc)
		ret := byte(classfile.OpAreturn)
		if g.desc == "I" {
			ret = classfile.OpIreturn
		}
		b.AddMethod(classfile.AccPublic, g.getter, "()"+g.desc,
			bytecode{}.op(classfile.OpAload0).
				ref(classfile.OpGetfield, b.FieldRef(StackTraceElementClass, g.field, g.desc)).
				op(ret).code(1, 1))
	}
	return b.Build()
}

func methodHandleClass() *classfile.ClassFile {
	const generic = "([Ljava/lang/Object;)Ljava/lang/Object;"
	b := classfile.NewBuilder(MethodHandleClass, ObjectClass, classfile.AccPublic|classfile.AccAbstract|classfile.AccSuper)
	b.AddMethod(classfile.AccPublic|accPolymorphic, "invokeExact", generic, nil)
	b.AddMethod(classfile.AccPublic|accPolymorphic, "invoke", generic, nil)
	b.AddMethod(accPolymorphic, "invokeBasic", generic, nil)
	for _, name := range []string{"linkToVirtual", "linkToStatic", "linkToSpecial", "linkToInterface"} {
		b.AddMethod(accStaticPolymorphic, name, generic, nil)
	}
	return b.Build()
}

func printStreamClass() *classfile.ClassFile {
	b := classfile.NewBuilder("java/io/PrintStream", ObjectClass, classfile.AccPublic|classfile.AccSuper)
	for _, desc := range []string{"()V", "(I)V", "(J)V", "(Z)V", "(Ljava/lang/String;)V", "(Ljava/lang/Object;)V"} {
		b.AddMethod(accPublicNative, "println", desc, nil)
	}
	return b.Build()
}

func systemClass() *classfile.ClassFile {
	b := classfile.NewBuilder("java/lang/System", ObjectClass, classfile.AccPublic|classfile.AccFinal|classfile.AccSuper)
	b.AddField(classfile.AccPublic|classfile.AccStatic|classfile.AccFinal, "out", "Ljava/io/PrintStream;")
	b.AddMethod(classfile.AccPrivate|classfile.AccStatic|classfile.AccNative, "initOut", "()Ljava/io/PrintStream;", nil)
	b.AddMethod(classfile.AccStatic, "<clinit>", "()V",
		bytecode{}.ref(classfile.OpInvokestatic, b.MethodRef("java/lang/System", "initOut", "()Ljava/io/PrintStream;")).
			ref(classfile.OpPutstatic, b.FieldRef("java/lang/System", "out", "Ljava/io/PrintStream;")).
			op(classfile.OpReturn).code(1, 0))
	b.AddMethod(classfile.AccPublic|classfile.AccStatic|classfile.AccNative, "currentTimeMillis", "()J", nil)
	return b.Build()
}
