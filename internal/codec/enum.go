package codec

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
)

// VariantSet names a closed, ordered set of unit variants. Implementations are
// empty struct types; the discriminant of a variant is its index.
type VariantSet interface {
	Name() string
	Variants() []string
}

// Enum is implemented by every Unit instantiation.
type Enum interface {
	EnumName() string
	Variants() []string
}

// Unit is a one-byte enum whose variants carry no data.
type Unit[S VariantSet] uint8

func (u Unit[S]) EnumName() string {
	var s S
	return s.Name()
}

func (u Unit[S]) Variants() []string {
	var s S
	return s.Variants()
}

func (u Unit[S]) Valid() bool {
	return int(u) < len(u.Variants())
}

func (u Unit[S]) String() string {
	variants := u.Variants()
	if int(u) < len(variants) {
		return variants[u]
	}
	return fmt.Sprintf("%s(%d)", u.EnumName(), uint8(u))
}

func (u Unit[S]) MarshalText() ([]byte, error) {
	if !u.Valid() {
		return nil, &UnknownDiscriminantError{Type: u.EnumName(), Value: uint8(u), Count: len(u.Variants())}
	}
	return []byte(u.String()), nil
}

func (u *Unit[S]) UnmarshalText(text []byte) error {
	value, err := ParseVariant(u.Variants(), string(text))
	if err != nil {
		return fmt.Errorf("%s: %w", u.EnumName(), err)
	}
	*u = Unit[S](value)
	return nil
}

// ParseVariant returns the discriminant of name within variants.
func ParseVariant(variants []string, name string) (uint8, error) {
	for i, v := range variants {
		if v == name {
			return uint8(i), nil
		}
	}
	return 0, fmt.Errorf("unknown variant %q", name)
}

// DecodeEnum reads a single discriminant byte and checks it against variants.
func DecodeEnum(dec *bin.Decoder, typeName string, variants []string) (uint8, error) {
	if dec.Remaining() < 1 {
		return 0, truncated(1, dec.Remaining())
	}
	b, err := dec.ReadUint8()
	if err != nil {
		return 0, err
	}
	if int(b) >= len(variants) {
		return 0, &UnknownDiscriminantError{Type: typeName, Value: b, Count: len(variants)}
	}
	return b, nil
}

// EncodeEnum writes value as a single discriminant byte.
func EncodeEnum(enc *bin.Encoder, typeName string, value uint8, variants []string) error {
	if int(value) >= len(variants) {
		return &UnknownDiscriminantError{Type: typeName, Value: value, Count: len(variants)}
	}
	return enc.WriteUint8(value)
}
