package classfile

import (
	"fmt"
	"strings"
)

// MethodDescriptor is a parsed method descriptor such as "(ILjava/lang/String;)V".
type MethodDescriptor struct {
	Params []string // one field descriptor per parameter
	Return string   // field descriptor, or "V"
}

// ParseMethodDescriptor splits a method descriptor into its parameter and
// return type descriptors.
func ParseMethodDescriptor(descriptor string) (*MethodDescriptor, error) {
	if !strings.HasPrefix(descriptor, "(") {
		return nil, fmt.Errorf("invalid method descriptor: %s", descriptor)
	}
	end := strings.IndexByte(descriptor, ')')
	if end == -1 {
		return nil, fmt.Errorf("invalid method descriptor: %s", descriptor)
	}

	md := &MethodDescriptor{}
	params := descriptor[1:end]
	for i := 0; i < len(params); {
		n, err := fieldTypeLen(params[i:])
		if err != nil {
			return nil, fmt.Errorf("%w in %s", err, descriptor)
		}
		md.Params = append(md.Params, params[i:i+n])
		i += n
	}

	ret := descriptor[end+1:]
	if ret != "V" {
		n, err := fieldTypeLen(ret)
		if err != nil || n != len(ret) {
			return nil, fmt.Errorf("invalid return type in %s", descriptor)
		}
	}
	md.Return = ret
	return md, nil
}

// fieldTypeLen returns the length of the field descriptor at the start of s.
func fieldTypeLen(s string) (int, error) {
	i := 0
	for i < len(s) && s[i] == '[' {
		i++
	}
	if i >= len(s) {
		return 0, fmt.Errorf("truncated type descriptor")
	}
	switch s[i] {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
		return i + 1, nil
	case 'L':
		semi := strings.IndexByte(s[i:], ';')
		if semi == -1 {
			return 0, fmt.Errorf("unterminated class type descriptor")
		}
		return i + semi + 1, nil
	default:
		return 0, fmt.Errorf("invalid type descriptor char '%c'", s[i])
	}
}

// CountParams counts the number of parameters in a method descriptor.
func CountParams(descriptor string) (int, error) {
	md, err := ParseMethodDescriptor(descriptor)
	if err != nil {
		return 0, err
	}
	return len(md.Params), nil
}

// IsVoidReturn checks if a method descriptor has void return type.
func IsVoidReturn(descriptor string) bool {
	return strings.HasSuffix(descriptor, ")V")
}

// IsReference reports whether a field descriptor names a class or array type.
func IsReference(fieldType string) bool {
	return strings.HasPrefix(fieldType, "L") || strings.HasPrefix(fieldType, "[")
}
