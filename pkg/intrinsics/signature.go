package intrinsics

import (
	"fmt"
	"strings"

	"github.com/daimatz/javavm/pkg/classfile"
)

const objectDescriptor = "Ljava/lang/Object;"

// BasicTypeSignature erases a method descriptor to its basic shape: every
// class and array type becomes java/lang/Object and the sub-word types
// boolean, byte, short and char become int. With keepLastArg the final
// parameter keeps its exact type.
func BasicTypeSignature(descriptor string, keepLastArg bool) (string, error) {
	md, err := classfile.ParseMethodDescriptor(descriptor)
	if err != nil {
		return "", fmt.Errorf("basic type signature: %w", err)
	}

	var sb strings.Builder
	sb.WriteByte('(')
	for i, p := range md.Params {
		if keepLastArg && i == len(md.Params)-1 {
			sb.WriteString(p)
			continue
		}
		sb.WriteString(basicType(p))
	}
	sb.WriteByte(')')
	sb.WriteString(basicType(md.Return))
	return sb.String(), nil
}

func basicType(t string) string {
	switch t[0] {
	case 'L', '[':
		return objectDescriptor
	case 'Z', 'B', 'S', 'C':
		return "I"
	}
	return t
}
