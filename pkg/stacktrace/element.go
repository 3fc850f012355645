package stacktrace

import (
	"fmt"
	"strings"
)

// Line numbers reported for frames without a usable line table entry.
const (
	UnknownLine = -1
	NativeLine  = -2
)

// Element is the host form of java.lang.StackTraceElement.
type Element struct {
	ClassName  string `cbor:"1,keyasint"`
	MethodName string `cbor:"2,keyasint"`
	FileName   string `cbor:"3,keyasint,omitempty"`
	LineNumber int    `cbor:"4,keyasint"`
}

// NewElement describes h, mapping its line number.
func NewElement(h Holder) Element {
	return Element{
		ClassName:  strings.ReplaceAll(h.Class.Name(), "/", "."),
		MethodName: h.Method.Name(),
		FileName:   h.Class.SourceFile(),
		LineNumber: Line(h),
	}
}

// String formats the element the way Java prints it.
func (e Element) String() string {
	var where string
	switch {
	case e.LineNumber == NativeLine:
		where = "Native Method"
	case e.FileName == "":
		where = "Unknown Source"
	case e.LineNumber >= 0:
		where = fmt.Sprintf("%s:%d", e.FileName, e.LineNumber)
	default:
		where = e.FileName
	}
	return fmt.Sprintf("%s.%s(%s)", e.ClassName, e.MethodName, where)
}

// Line maps a captured frame to its source line. Native methods report
// NativeLine. Otherwise the line table is searched backward from the
// captured instruction for the nearest entry starting at or before it;
// with none, or without an instruction, the line is UnknownLine.
func Line(h Holder) int {
	if h.Method.IsNative() {
		return NativeLine
	}
	if h.PC < 0 {
		return UnknownLine
	}
	line, start := UnknownLine, -1
	for _, ln := range h.Method.LineNumbers() {
		s := int(ln.StartPC)
		if s <= h.PC && s > start {
			line, start = int(ln.Line), s
		}
	}
	return line
}
