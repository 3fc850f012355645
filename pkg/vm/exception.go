package vm

import (
	"fmt"
	"strings"
)

// JavaException represents a JVM exception being thrown.
type JavaException struct {
	Object  *JObject
	Message string
}

func (e *JavaException) Error() string {
	name := strings.ReplaceAll(e.Object.ClassName(), "/", ".")
	if e.Message == "" {
		return name
	}
	return fmt.Sprintf("%s: %s", name, e.Message)
}

// NewJavaException wraps a throwable instance. The message is copied into
// the detailMessage field when the class declares one.
func NewJavaException(obj *JObject, message string) *JavaException {
	if _, ok := obj.Fields["detailMessage"]; ok && message != "" {
		obj.Fields["detailMessage"] = RefValue(message)
	}
	return &JavaException{Object: obj, Message: message}
}
