package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/daimatz/javavm/pkg/classfile"
	"github.com/daimatz/javavm/pkg/link"
	"github.com/daimatz/javavm/pkg/vm"
)

var resolveOps = map[string]byte{
	"invokevirtual":   classfile.OpInvokevirtual,
	"invokespecial":   classfile.OpInvokespecial,
	"invokestatic":    classfile.OpInvokestatic,
	"invokeinterface": classfile.OpInvokeinterface,
	"getfield":        classfile.OpGetfield,
	"putfield":        classfile.OpPutfield,
	"getstatic":       classfile.OpGetstatic,
	"putstatic":       classfile.OpPutstatic,
}

func resolveOpNames() []string {
	names := make([]string, 0, len(resolveOps))
	for n := range resolveOps {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// parseRef splits "owner.name:descriptor". Owners may use dots or slashes;
// the member name is whatever follows the last dot.
func parseRef(ref string) (owner, name, desc string, err error) {
	member, desc, ok := strings.Cut(ref, ":")
	dot := strings.LastIndexByte(member, '.')
	if !ok || dot <= 0 || dot == len(member)-1 || desc == "" {
		return "", "", "", fmt.Errorf("bad reference %q, want owner.name:descriptor", ref)
	}
	return strings.ReplaceAll(member[:dot], ".", "/"), member[dot+1:], desc, nil
}

// resolve links one symbolic reference the way the instruction opName
// would and prints the outcome.
func (e *environment) resolve(w io.Writer, opName, ref, callerName, receiverName string) error {
	op, ok := resolveOps[opName]
	if !ok {
		return fmt.Errorf("unknown instruction %q, want one of %s", opName, strings.Join(resolveOpNames(), ", "))
	}
	owner, name, desc, err := parseRef(ref)
	if err != nil {
		return err
	}

	dict := e.machine.Dict
	resolved, err := dict.LoadClass(owner)
	if err != nil && !errors.Is(err, vm.ErrClassNotFound) {
		return err
	}
	caller := resolved
	if callerName != "" {
		if caller, err = dict.LoadClass(strings.ReplaceAll(callerName, ".", "/")); err != nil {
			return err
		}
	}

	li := link.LinkInfo{
		ResolvedClass: resolved,
		Name:          name,
		Descriptor:    desc,
		CurrentClass:  caller,
		CheckAccess:   e.linker.Options.CheckAccess,
	}
	t := e.machine.NewThread("main")

	switch op {
	case classfile.OpGetfield, classfile.OpPutfield, classfile.OpGetstatic, classfile.OpPutstatic:
		fd, err := e.linker.Resolver.ResolveField(t, li, op, true)
		if err != nil {
			return err
		}
		kind := "instance"
		if fd.IsStatic {
			kind = "static"
		}
		fmt.Fprintf(w, "%s field %s declared in %s\n", kind, fd.Field, fd.DeclaringClass)
		return nil
	}

	if resolved == nil {
		return fmt.Errorf("%s: %w", owner, vm.ErrClassNotFound)
	}
	recv := vm.NullValue()
	if receiverName != "" {
		rc, err := dict.LoadClass(strings.ReplaceAll(receiverName, ".", "/"))
		if err != nil {
			return err
		}
		recv = vm.RefValue(vm.NewObject(rc))
	}
	ci, err := e.linker.Dispatch(t, op, li, resolved.IsInterface(), recv)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, ci)
	return nil
}
