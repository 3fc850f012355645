package vm

import (
	"fmt"
)

// VM ties a class universe to the machinery that runs code against it.
type VM struct {
	Dict *Dictionary
	// Clinit runs class initializers. When nil, classes are marked
	// initialized without running <clinit>.
	Clinit ClinitRunner
	// MaxFrameDepth bounds the frame stack of threads created by NewThread.
	MaxFrameDepth int
}

// NewVM creates a VM over dict.
func NewVM(dict *Dictionary) *VM {
	return &VM{
		Dict:          dict,
		MaxFrameDepth: DefaultMaxFrameDepth,
	}
}

// NewThread creates an interpreter thread bound to this VM's limits.
func (vm *VM) NewThread(name string) *Thread {
	return NewThread(name, vm.MaxFrameDepth)
}

// NewThrowable allocates an instance of the named throwable class and wraps
// it as a JavaException. No constructor runs; callers that need a stack
// trace capture it separately.
func (vm *VM) NewThrowable(className, message string) (*JavaException, error) {
	c, err := vm.Dict.LoadClass(className)
	if err != nil {
		return nil, fmt.Errorf("throwable %s: %w", className, err)
	}
	if !vm.Dict.Throwable().IsAssignableFrom(c) {
		return nil, fmt.Errorf("throwable %s: not a subclass of %s", className, ThrowableClass)
	}
	return NewJavaException(NewObject(c), message), nil
}
