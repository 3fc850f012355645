package stacktrace

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("stacktrace: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Report is a self-contained record of one thrown exception, detached from
// the class universe it was captured in.
type Report struct {
	Thread    string    `cbor:"1,keyasint"`
	Exception string    `cbor:"2,keyasint"`
	Message   string    `cbor:"3,keyasint,omitempty"`
	Elements  []Element `cbor:"4,keyasint"`
}

// NewReport maps every frame of tr into a report.
func NewReport(thread, exception, message string, tr *Trace) *Report {
	return &Report{
		Thread:    thread,
		Exception: exception,
		Message:   message,
		Elements:  tr.Elements(),
	}
}

// Marshal serializes a report to canonical CBOR.
func Marshal(r *Report) ([]byte, error) {
	return cborEncMode.Marshal(r)
}

// Unmarshal deserializes a report from CBOR bytes.
func Unmarshal(data []byte) (*Report, error) {
	var r Report
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("stacktrace: unmarshal report: %w", err)
	}
	return &r, nil
}
