// Package stacktrace captures the frame history of an interpreter thread
// when a throwable is filled in and maps captured frames back to source
// lines on demand.
package stacktrace

import (
	"fmt"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/daimatz/javavm/pkg/vm"
)

var log = commonlog.GetLogger("javavm.stacktrace")

// NoPC marks a holder without an instruction position.
const NoPC = vm.NoPC

// Holder is one captured frame: the method that was executing and the
// offset of its current instruction.
type Holder struct {
	Class  *vm.Class
	Method *vm.Method
	PC     int
}

func (h Holder) String() string {
	return fmt.Sprintf("%s.%s%s@%d", h.Class, h.Method.Name(), h.Method.Descriptor(), h.PC)
}

// Trace is the trimmed frame sequence stored on a throwable, innermost
// frame first.
type Trace struct {
	Holders []Holder
}

// Depth returns the number of frames.
func (tr *Trace) Depth() int { return len(tr.Holders) }

// Element builds the stack trace element of frame i, mapping its line
// number at this point.
func (tr *Trace) Element(i int) (Element, error) {
	if i < 0 || i >= len(tr.Holders) {
		return Element{}, fmt.Errorf("stack trace element %d: index out of range [0,%d)", i, len(tr.Holders))
	}
	return NewElement(tr.Holders[i]), nil
}

// Elements maps every frame.
func (tr *Trace) Elements() []Element {
	out := make([]Element, len(tr.Holders))
	for i, h := range tr.Holders {
		out[i] = NewElement(h)
	}
	return out
}

// Capturer snapshots thread frames. A zero Capturer keeps every frame.
type Capturer struct {
	// MaxDepth bounds the trace after trimming; outermost frames are
	// dropped. Zero or less means no bound.
	MaxDepth int
}

// Capture snapshots t's frames with no depth bound.
func Capture(t *vm.Thread, throwable *vm.Class) *Trace {
	return Capturer{}.Capture(t, throwable)
}

// Capture snapshots the frames of t, innermost first, and strips the
// frames that belong to filling in the trace: fillInStackTrace frames and
// constructors of throwable and its superclasses. Trimming stops at the
// first frame that is neither. Only t's own frames are read.
func (c Capturer) Capture(t *vm.Thread, throwable *vm.Class) *Trace {
	frames := t.Frames()
	holders := make([]Holder, 0, len(frames))
	for _, f := range frames {
		holders = append(holders, Holder{Class: f.Class(), Method: f.Method, PC: f.InsnPC})
	}

	trimmed := 0
	for len(holders) > 0 && isFillFrame(holders[0], throwable) {
		holders = holders[1:]
		trimmed++
	}
	if c.MaxDepth > 0 && len(holders) > c.MaxDepth {
		holders = holders[:c.MaxDepth]
	}
	log.Debugf("captured %d frames on %s for %s (%d trimmed)", len(holders), t, throwable, trimmed)
	return &Trace{Holders: holders}
}

func isFillFrame(h Holder, throwable *vm.Class) bool {
	name := h.Method.Name()
	if strings.EqualFold(name, "fillInStackTrace") || strings.EqualFold(name, "fillInStackTrace0") {
		return true
	}
	return name == "<init>" && throwable != nil && h.Class.IsAssignableFrom(throwable)
}
