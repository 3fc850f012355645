package link

import (
	"errors"
	"fmt"

	"github.com/daimatz/javavm/pkg/vm"
)

// ErrUnsupported is wrapped by every error that marks an engine
// limitation rather than a linkage failure of the emulated program.
var ErrUnsupported = errors.New("unsupported")

// Kind classifies a linkage failure.
type Kind int

const (
	IncompatibleLinkage Kind = iota + 1
	NoSuchMethod
	NoSuchField
	AbstractMethodInvocation
	NullReference
	Unsupported
)

var kindNames = map[Kind]string{
	IncompatibleLinkage:      "IncompatibleLinkage",
	NoSuchMethod:             "NoSuchMethod",
	NoSuchField:              "NoSuchField",
	AbstractMethodInvocation: "AbstractMethodInvocation",
	NullReference:            "NullReference",
	Unsupported:              "Unsupported",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ExceptionClass returns the Java class thrown into the emulated program
// for this kind, or "" for Unsupported.
func (k Kind) ExceptionClass() string {
	switch k {
	case IncompatibleLinkage:
		return "java/lang/IncompatibleClassChangeError"
	case NoSuchMethod:
		return "java/lang/NoSuchMethodError"
	case NoSuchField:
		return "java/lang/NoSuchFieldError"
	case AbstractMethodInvocation:
		return "java/lang/AbstractMethodError"
	case NullReference:
		return "java/lang/NullPointerException"
	}
	return ""
}

// Error is a failed resolution. Owner, Name and Descriptor identify the
// symbolic reference being resolved; Message is what the emulated program
// sees as the exception message.
type Error struct {
	Kind       Kind
	Owner      string
	Name       string
	Descriptor string
	Message    string
}

func newError(kind Kind, owner, name, desc, format string, args ...any) *Error {
	return &Error{
		Kind:       kind,
		Owner:      owner,
		Name:       name,
		Descriptor: desc,
		Message:    fmt.Sprintf(format, args...),
	}
}

func unsupported(owner, name, desc, format string, args ...any) *Error {
	e := newError(Unsupported, owner, name, desc, format, args...)
	log.Warningf("%s", e.Message)
	return e
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Message
}

func (e *Error) Unwrap() error {
	if e.Kind == Unsupported {
		return ErrUnsupported
	}
	return nil
}

// Catchable reports whether the failure is delivered to the emulated
// program as an exception. Unsupported paths stop the run instead.
func (e *Error) Catchable() bool { return e.Kind.ExceptionClass() != "" }

// Throwable builds the emulated exception for a catchable error.
func (e *Error) Throwable(machine *vm.VM) (*vm.JavaException, error) {
	if !e.Catchable() {
		return nil, e
	}
	return machine.NewThrowable(e.Kind.ExceptionClass(), e.Message)
}

// KindOf returns the kind of a resolution error anywhere in err's chain.
func KindOf(err error) (Kind, bool) {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind, true
	}
	return 0, false
}
