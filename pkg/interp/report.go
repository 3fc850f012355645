package interp

import (
	"fmt"
	"io"

	"github.com/daimatz/javavm/pkg/native"
	"github.com/daimatz/javavm/pkg/stacktrace"
	"github.com/daimatz/javavm/pkg/vm"
)

// Report describes an exception that escaped t.
func Report(t *vm.Thread, ex *vm.JavaException) *stacktrace.Report {
	tr, ok := native.Backtrace(ex.Object)
	if !ok {
		tr = &stacktrace.Trace{}
	}
	return stacktrace.NewReport(t.ID().String(), dotted(ex.Object.ClassName()), ex.Message, tr)
}

// PrintStackTrace writes r the way the JVM prints an uncaught exception.
func PrintStackTrace(w io.Writer, thread string, r *stacktrace.Report) {
	fmt.Fprintf(w, "Exception in thread %q %s", thread, r.Exception)
	if r.Message != "" {
		fmt.Fprintf(w, ": %s", r.Message)
	}
	fmt.Fprintln(w)
	for _, e := range r.Elements {
		fmt.Fprintf(w, "\tat %s\n", e)
	}
}
