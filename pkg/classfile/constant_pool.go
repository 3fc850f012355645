package classfile

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Constant pool tags
const (
	TagUtf8               = 1
	TagInteger            = 3
	TagFloat              = 4
	TagLong               = 5
	TagDouble             = 6
	TagClass              = 7
	TagString             = 8
	TagFieldref           = 9
	TagMethodref          = 10
	TagInterfaceMethodref = 11
	TagNameAndType        = 12
	TagMethodHandle       = 15
	TagMethodType         = 16
	TagDynamic            = 17
	TagInvokeDynamic      = 18
)

// parseConstantPool reads constant_pool_count-1 entries from the reader.
// The returned slice is 1-indexed: index 0 is nil, as is the slot after
// every Long and Double entry.
func parseConstantPool(r io.Reader, count uint16) ([]ConstantPoolEntry, error) {
	pool := make([]ConstantPoolEntry, count)

	for i := uint16(1); i < count; i++ {
		var tag uint8
		if err := binary.Read(r, binary.BigEndian, &tag); err != nil {
			return nil, fmt.Errorf("reading constant pool tag at index %d: %w", i, err)
		}

		entry, err := parseConstant(r, tag)
		if err != nil {
			return nil, fmt.Errorf("reading constant pool entry %d (tag=%d): %w", i, tag, err)
		}
		pool[i] = entry
		if tag == TagLong || tag == TagDouble {
			i++ // 8-byte constants take two slots
		}
	}

	return pool, nil
}

func parseConstant(r io.Reader, tag uint8) (ConstantPoolEntry, error) {
	switch tag {
	case TagUtf8:
		var length uint16
		if err := binary.Read(r, binary.BigEndian, &length); err != nil {
			return nil, err
		}
		bytes := make([]byte, length)
		if _, err := io.ReadFull(r, bytes); err != nil {
			return nil, err
		}
		return &ConstantUtf8{Value: string(bytes)}, nil

	case TagInteger:
		var val int32
		err := binary.Read(r, binary.BigEndian, &val)
		return &ConstantInteger{Value: val}, err

	case TagFloat:
		var bits uint32
		err := binary.Read(r, binary.BigEndian, &bits)
		return &ConstantFloat{Value: math.Float32frombits(bits)}, err

	case TagLong:
		var val int64
		err := binary.Read(r, binary.BigEndian, &val)
		return &ConstantLong{Value: val}, err

	case TagDouble:
		var bits uint64
		err := binary.Read(r, binary.BigEndian, &bits)
		return &ConstantDouble{Value: math.Float64frombits(bits)}, err

	case TagClass:
		var nameIndex uint16
		err := binary.Read(r, binary.BigEndian, &nameIndex)
		return &ConstantClass{NameIndex: nameIndex}, err

	case TagString:
		var stringIndex uint16
		err := binary.Read(r, binary.BigEndian, &stringIndex)
		return &ConstantString{StringIndex: stringIndex}, err

	case TagFieldref, TagMethodref, TagInterfaceMethodref, TagNameAndType:
		var pair [2]uint16
		if err := binary.Read(r, binary.BigEndian, &pair); err != nil {
			return nil, err
		}
		switch tag {
		case TagFieldref:
			return &ConstantFieldref{ClassIndex: pair[0], NameAndTypeIndex: pair[1]}, nil
		case TagMethodref:
			return &ConstantMethodref{ClassIndex: pair[0], NameAndTypeIndex: pair[1]}, nil
		case TagInterfaceMethodref:
			return &ConstantInterfaceMethodref{ClassIndex: pair[0], NameAndTypeIndex: pair[1]}, nil
		default:
			return &ConstantNameAndType{NameIndex: pair[0], DescriptorIndex: pair[1]}, nil
		}

	case TagMethodHandle, TagMethodType, TagDynamic, TagInvokeDynamic:
		// Kept as placeholders: reference_kind+index, descriptor index,
		// or bootstrap index+NameAndType.
		size := map[uint8]int{TagMethodHandle: 3, TagMethodType: 2, TagDynamic: 4, TagInvokeDynamic: 4}[tag]
		if _, err := io.ReadFull(r, make([]byte, size)); err != nil {
			return nil, err
		}
		return &constantPlaceholder{tag: tag}, nil

	default:
		return nil, fmt.Errorf("unknown constant pool tag %d", tag)
	}
}

// constantPlaceholder is used for constant pool entries we don't fully parse.
type constantPlaceholder struct {
	tag uint8
}

func (c *constantPlaceholder) Tag() uint8 { return c.tag }

// GetUtf8 returns the Utf8 string at the given constant pool index.
func GetUtf8(pool []ConstantPoolEntry, index uint16) (string, error) {
	if int(index) >= len(pool) || pool[index] == nil {
		return "", fmt.Errorf("invalid constant pool index %d", index)
	}
	utf8, ok := pool[index].(*ConstantUtf8)
	if !ok {
		return "", fmt.Errorf("constant pool index %d is not Utf8 (tag=%d)", index, pool[index].Tag())
	}
	return utf8.Value, nil
}

// GetClassName returns the class name referenced by a CONSTANT_Class entry.
func GetClassName(pool []ConstantPoolEntry, classIndex uint16) (string, error) {
	if int(classIndex) >= len(pool) || pool[classIndex] == nil {
		return "", fmt.Errorf("invalid constant pool index %d", classIndex)
	}
	class, ok := pool[classIndex].(*ConstantClass)
	if !ok {
		return "", fmt.Errorf("constant pool index %d is not Class", classIndex)
	}
	return GetUtf8(pool, class.NameIndex)
}

// MemberRefInfo holds a resolved field or method reference.
type MemberRefInfo struct {
	ClassName  string
	Name       string
	Descriptor string
	// Interface is set for CONSTANT_InterfaceMethodref entries.
	Interface bool
}

// MethodRefInfo holds resolved method reference info.
type MethodRefInfo struct {
	ClassName  string
	MethodName string
	Descriptor string
	Interface  bool
}

// FieldRefInfo holds resolved field reference info.
type FieldRefInfo struct {
	ClassName  string
	FieldName  string
	Descriptor string
}

// ResolveMemberref resolves a Fieldref, Methodref or InterfaceMethodref entry.
func ResolveMemberref(pool []ConstantPoolEntry, index uint16) (*MemberRefInfo, error) {
	if int(index) >= len(pool) || pool[index] == nil {
		return nil, fmt.Errorf("invalid constant pool index %d", index)
	}

	var classIndex, natIndex uint16
	var iface bool
	switch ref := pool[index].(type) {
	case *ConstantFieldref:
		classIndex, natIndex = ref.ClassIndex, ref.NameAndTypeIndex
	case *ConstantMethodref:
		classIndex, natIndex = ref.ClassIndex, ref.NameAndTypeIndex
	case *ConstantInterfaceMethodref:
		classIndex, natIndex = ref.ClassIndex, ref.NameAndTypeIndex
		iface = true
	default:
		return nil, fmt.Errorf("constant pool index %d is not a member reference (tag=%d)", index, pool[index].Tag())
	}

	className, err := GetClassName(pool, classIndex)
	if err != nil {
		return nil, fmt.Errorf("resolving member class: %w", err)
	}
	name, desc, err := GetNameAndType(pool, natIndex)
	if err != nil {
		return nil, err
	}
	return &MemberRefInfo{ClassName: className, Name: name, Descriptor: desc, Interface: iface}, nil
}

// GetNameAndType returns the name and descriptor of a CONSTANT_NameAndType entry.
func GetNameAndType(pool []ConstantPoolEntry, index uint16) (string, string, error) {
	if int(index) >= len(pool) || pool[index] == nil {
		return "", "", fmt.Errorf("invalid NameAndType index %d", index)
	}
	nat, ok := pool[index].(*ConstantNameAndType)
	if !ok {
		return "", "", fmt.Errorf("constant pool index %d is not NameAndType", index)
	}
	name, err := GetUtf8(pool, nat.NameIndex)
	if err != nil {
		return "", "", fmt.Errorf("resolving member name: %w", err)
	}
	desc, err := GetUtf8(pool, nat.DescriptorIndex)
	if err != nil {
		return "", "", fmt.Errorf("resolving member descriptor: %w", err)
	}
	return name, desc, nil
}

// ResolveMethodref resolves a CONSTANT_Methodref or CONSTANT_InterfaceMethodref entry.
func ResolveMethodref(pool []ConstantPoolEntry, index uint16) (*MethodRefInfo, error) {
	ref, err := ResolveMemberref(pool, index)
	if err != nil {
		return nil, err
	}
	if _, ok := pool[index].(*ConstantFieldref); ok {
		return nil, fmt.Errorf("constant pool index %d is not Methodref", index)
	}
	return &MethodRefInfo{
		ClassName:  ref.ClassName,
		MethodName: ref.Name,
		Descriptor: ref.Descriptor,
		Interface:  ref.Interface,
	}, nil
}

// ResolveFieldref resolves a CONSTANT_Fieldref entry.
func ResolveFieldref(pool []ConstantPoolEntry, index uint16) (*FieldRefInfo, error) {
	if int(index) < len(pool) && pool[index] != nil {
		if _, ok := pool[index].(*ConstantFieldref); !ok {
			return nil, fmt.Errorf("constant pool index %d is not Fieldref", index)
		}
	}
	ref, err := ResolveMemberref(pool, index)
	if err != nil {
		return nil, err
	}
	return &FieldRefInfo{
		ClassName:  ref.ClassName,
		FieldName:  ref.Name,
		Descriptor: ref.Descriptor,
	}, nil
}
