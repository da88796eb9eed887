package codec

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	bin "github.com/gagliardetto/binary"
)

// Wire is implemented by fixed-size types that encode themselves.
type Wire interface {
	WireSize() int
	EncodeWire(enc *bin.Encoder) error
}

// WireDecoder is the pointer-side counterpart of Wire.
type WireDecoder interface {
	DecodeWire(dec *bin.Decoder) error
}

type kind uint8

const (
	kindBool kind = iota
	kindU8
	kindI8
	kindU16
	kindI16
	kindU32
	kindI32
	kindU64
	kindI64
	kindF32
	kindF64
	kindWire
	kindEnum
	kindBytes
	kindArray
	kindStruct
	kindOption
	kindVec
	kindString
)

var kindNames = [...]string{
	kindBool:   "bool",
	kindU8:     "u8",
	kindI8:     "i8",
	kindU16:    "u16",
	kindI16:    "i16",
	kindU32:    "u32",
	kindI32:    "i32",
	kindU64:    "u64",
	kindI64:    "i64",
	kindF32:    "f32",
	kindF64:    "f64",
	kindWire:   "wire",
	kindEnum:   "enum",
	kindBytes:  "bytes",
	kindArray:  "array",
	kindStruct: "struct",
	kindOption: "option",
	kindVec:    "vec",
	kindString: "string",
}

func (k kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

var (
	wireType        = reflect.TypeOf((*Wire)(nil)).Elem()
	wireDecoderType = reflect.TypeOf((*WireDecoder)(nil)).Elem()
	enumType        = reflect.TypeOf((*Enum)(nil)).Elem()
	byteType        = reflect.TypeOf(byte(0))
)

const (
	vecLengthSize = 4
	dynamicSize   = -1
)

type node struct {
	kind    kind
	typ     reflect.Type
	size    int
	minSize int
	length  int
	elem    *node
	fields  []fieldNode

	enumName string
	variants []string
}

type fieldNode struct {
	name  string
	index int
	node  *node
}

// Schema describes the wire layout of a Go type.
type Schema struct {
	root *node
}

// FieldInfo is one top-level field of a struct schema.
type FieldInfo struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	// Size is the exact encoded width, or -1 for dynamic fields.
	Size int `json:"size"`
}

func (s *Schema) Type() reflect.Type {
	return s.root.typ
}

// FixedSize reports the exact encoded length when the layout has no dynamic part.
func (s *Schema) FixedSize() (int, bool) {
	if s.root.size == dynamicSize {
		return 0, false
	}
	return s.root.size, true
}

// MinSize is the smallest possible encoding: empty vecs, absent options and empty strings.
func (s *Schema) MinSize() int {
	return s.root.minSize
}

func (s *Schema) Fields() []FieldInfo {
	out := make([]FieldInfo, 0, len(s.root.fields))
	for _, f := range s.root.fields {
		out = append(out, FieldInfo{Name: f.name, Kind: describe(f.node), Size: f.node.size})
	}
	return out
}

func describe(n *node) string {
	switch n.kind {
	case kindEnum:
		return n.enumName
	case kindBytes:
		return fmt.Sprintf("[u8; %d]", n.length)
	case kindArray:
		return fmt.Sprintf("[%s; %d]", describe(n.elem), n.length)
	case kindOption:
		return "Option<" + describe(n.elem) + ">"
	case kindVec:
		return "Vec<" + describe(n.elem) + ">"
	case kindStruct, kindWire:
		return n.typ.Name()
	default:
		return n.kind.String()
	}
}

var schemaCache sync.Map

// SchemaOf returns the cached schema for the dynamic type of v, which may be a
// value or a pointer to one.
func SchemaOf(v any) (*Schema, error) {
	t := reflect.TypeOf(v)
	if t == nil {
		return nil, fmt.Errorf("%w: nil", ErrUnsupportedType)
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return SchemaFor(t)
}

func SchemaFor(t reflect.Type) (*Schema, error) {
	n, err := nodeFor(t)
	if err != nil {
		return nil, err
	}
	return &Schema{root: n}, nil
}

func nodeFor(t reflect.Type) (*node, error) {
	if cached, ok := schemaCache.Load(t); ok {
		return cached.(*node), nil
	}
	n, err := buildNode(t)
	if err != nil {
		return nil, err
	}
	actual, _ := schemaCache.LoadOrStore(t, n)
	return actual.(*node), nil
}

func fixed(k kind, t reflect.Type, size int) *node {
	return &node{kind: k, typ: t, size: size, minSize: size}
}

func buildNode(t reflect.Type) (*node, error) {
	if t.Implements(wireType) && reflect.PointerTo(t).Implements(wireDecoderType) {
		size := reflect.Zero(t).Interface().(Wire).WireSize()
		return fixed(kindWire, t, size), nil
	}
	if t.Kind() == reflect.Uint8 && t.Implements(enumType) {
		zero := reflect.Zero(t).Interface().(Enum)
		n := fixed(kindEnum, t, 1)
		n.enumName = zero.EnumName()
		n.variants = zero.Variants()
		return n, nil
	}

	switch t.Kind() {
	case reflect.Bool:
		return fixed(kindBool, t, 1), nil
	case reflect.Uint8:
		return fixed(kindU8, t, 1), nil
	case reflect.Int8:
		return fixed(kindI8, t, 1), nil
	case reflect.Uint16:
		return fixed(kindU16, t, 2), nil
	case reflect.Int16:
		return fixed(kindI16, t, 2), nil
	case reflect.Uint32:
		return fixed(kindU32, t, 4), nil
	case reflect.Int32:
		return fixed(kindI32, t, 4), nil
	case reflect.Uint64:
		return fixed(kindU64, t, 8), nil
	case reflect.Int64:
		return fixed(kindI64, t, 8), nil
	case reflect.Float32:
		return fixed(kindF32, t, 4), nil
	case reflect.Float64:
		return fixed(kindF64, t, 8), nil
	case reflect.String:
		return &node{kind: kindString, typ: t, size: dynamicSize, minSize: vecLengthSize}, nil
	case reflect.Array:
		elem, err := nodeFor(t.Elem())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t, err)
		}
		if elem.kind == kindU8 && t.Elem() == byteType {
			return &node{kind: kindBytes, typ: t, size: t.Len(), minSize: t.Len(), length: t.Len(), elem: elem}, nil
		}
		n := &node{kind: kindArray, typ: t, length: t.Len(), elem: elem, minSize: elem.minSize * t.Len()}
		n.size = dynamicSize
		if elem.size != dynamicSize {
			n.size = elem.size * t.Len()
		}
		return n, nil
	case reflect.Slice:
		elem, err := nodeFor(t.Elem())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t, err)
		}
		return &node{kind: kindVec, typ: t, elem: elem, size: dynamicSize, minSize: vecLengthSize}, nil
	case reflect.Pointer:
		elem, err := nodeFor(t.Elem())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t, err)
		}
		return &node{kind: kindOption, typ: t, elem: elem, size: dynamicSize, minSize: 1}, nil
	case reflect.Struct:
		return buildStruct(t)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, t)
	}
}

func buildStruct(t reflect.Type) (*node, error) {
	n := &node{kind: kindStruct, typ: t}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() || sf.Tag.Get("bin") == "-" {
			continue
		}
		child, err := nodeFor(sf.Type)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", t.Name(), sf.Name, err)
		}
		n.fields = append(n.fields, fieldNode{name: fieldName(sf), index: i, node: child})
		n.minSize += child.minSize
		if n.size != dynamicSize {
			if child.size == dynamicSize {
				n.size = dynamicSize
			} else {
				n.size += child.size
			}
		}
	}
	return n, nil
}

func fieldName(sf reflect.StructField) string {
	if tag, ok := sf.Tag.Lookup("json"); ok {
		name, _, _ := strings.Cut(tag, ",")
		if name != "" && name != "-" {
			return name
		}
	}
	return sf.Name
}
