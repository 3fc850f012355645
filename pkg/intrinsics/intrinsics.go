// Package intrinsics identifies the signature-polymorphic methods of
// java/lang/invoke/MethodHandle and keeps the table of their per-shape
// implementations.
package intrinsics

// ID identifies a signature-polymorphic intrinsic.
type ID int

const (
	None ID = iota
	// InvokeGeneric covers invoke and invokeExact. They go through a
	// MethodType check and are not intrinsics themselves.
	InvokeGeneric
	InvokeBasic
	LinkToVirtual
	LinkToStatic
	LinkToSpecial
	LinkToInterface
)

var names = map[string]ID{
	"invoke":          InvokeGeneric,
	"invokeExact":     InvokeGeneric,
	"invokeBasic":     InvokeBasic,
	"linkToVirtual":   LinkToVirtual,
	"linkToStatic":    LinkToStatic,
	"linkToSpecial":   LinkToSpecial,
	"linkToInterface": LinkToInterface,
}

// NameID maps a MethodHandle method name to its intrinsic id, or None.
func NameID(name string) ID {
	return names[name]
}

// IsSignaturePolymorphic reports whether id names any signature-polymorphic
// method.
func IsSignaturePolymorphic(id ID) bool {
	return id >= InvokeGeneric && id <= LinkToInterface
}

// IsSignaturePolymorphicIntrinsic reports whether id has a registered
// implementation per basic signature. The generic invokers do not.
func IsSignaturePolymorphicIntrinsic(id ID) bool {
	return IsSignaturePolymorphic(id) && id != InvokeGeneric
}

// IsSignaturePolymorphicStatic reports whether the intrinsic is one of the
// static linkTo* forms, whose trailing MemberName argument keeps its type.
func IsSignaturePolymorphicStatic(id ID) bool {
	return id >= LinkToVirtual && id <= LinkToInterface
}

func (id ID) String() string {
	switch id {
	case None:
		return "none"
	case InvokeGeneric:
		return "invokeGeneric"
	case InvokeBasic:
		return "invokeBasic"
	case LinkToVirtual:
		return "linkToVirtual"
	case LinkToStatic:
		return "linkToStatic"
	case LinkToSpecial:
		return "linkToSpecial"
	case LinkToInterface:
		return "linkToInterface"
	}
	return "unknown"
}
