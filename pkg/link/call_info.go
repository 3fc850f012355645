package link

import (
	"fmt"

	"github.com/daimatz/javavm/pkg/vm"
)

// CallKind says how the interpreter dispatches a resolved call.
type CallKind int

const (
	// Static calls are bound at link time; SelectedMethod == ResolvedMethod.
	Static CallKind = iota
	// Virtual calls select an override through the receiver's vtable.
	Virtual
	// Special calls (constructors, private and super calls) need a
	// receiver but are bound without vtable dispatch.
	Special
)

func (k CallKind) String() string {
	switch k {
	case Static:
		return "static"
	case Virtual:
		return "virtual"
	case Special:
		return "special"
	}
	return fmt.Sprintf("CallKind(%d)", int(k))
}

// LinkInfo is the symbolic reference observed at a call or field access
// site, plus the context it is resolved in.
type LinkInfo struct {
	ResolvedClass *vm.Class
	Name          string
	Descriptor    string
	// CurrentClass is the class containing the call site. It may be nil
	// for calls made by the host.
	CurrentClass *vm.Class
	CheckAccess  bool
}

func (li LinkInfo) owner() string {
	if li.ResolvedClass == nil {
		return ""
	}
	return li.ResolvedClass.Name()
}

func (li LinkInfo) String() string {
	return li.owner() + "." + li.Name + li.Descriptor
}

// CallInfo is the result of resolving one call site.
type CallInfo struct {
	Kind           CallKind
	ResolvedClass  *vm.Class
	ReceiverClass  *vm.Class // nil for static calls
	ResolvedMethod *vm.Method
	SelectedMethod *vm.Method
	VtableIndex    int
}

func newStaticCall(resolvedClass *vm.Class, m *vm.Method) *CallInfo {
	return &CallInfo{
		Kind:           Static,
		ResolvedClass:  resolvedClass,
		ResolvedMethod: m,
		SelectedMethod: m,
		VtableIndex:    vm.InvalidVtableIndex,
	}
}

func (ci *CallInfo) String() string {
	s := fmt.Sprintf("%s call %s", ci.Kind, ci.ResolvedMethod)
	if ci.SelectedMethod != ci.ResolvedMethod {
		s += " -> " + ci.SelectedMethod.String()
	}
	if ci.Kind == Virtual {
		s += fmt.Sprintf(" (receiver %s, vtable %d)", ci.ReceiverClass, ci.VtableIndex)
	}
	return s
}

// FieldDescriptor is the result of resolving a field access site.
type FieldDescriptor struct {
	Field          *vm.Field
	DeclaringClass *vm.Class
	IsStatic       bool
	IsPut          bool
}
