package codec

import (
	"bytes"
	"fmt"
	"math"
	"reflect"
	"strconv"

	bin "github.com/gagliardetto/binary"
)

// Marshal encodes v (a value or a pointer to one) in declared field order.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(bin.NewBorshEncoder(&buf), v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode writes v to enc.
func Encode(enc *bin.Encoder, v any) error {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return fmt.Errorf("%w: nil", ErrUnsupportedType)
	}
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return fmt.Errorf("%w: nil %T", ErrUnsupportedType, v)
		}
		rv = rv.Elem()
	}
	n, err := nodeFor(rv.Type())
	if err != nil {
		return err
	}
	return encodeValue(enc, n, rv)
}

func encodeValue(enc *bin.Encoder, n *node, v reflect.Value) error {
	switch n.kind {
	case kindBool:
		return enc.WriteBool(v.Bool())
	case kindU8:
		return enc.WriteUint8(uint8(v.Uint()))
	case kindI8:
		return enc.WriteInt8(int8(v.Int()))
	case kindU16:
		return enc.WriteUint16(uint16(v.Uint()), bin.LE)
	case kindI16:
		return enc.WriteInt16(int16(v.Int()), bin.LE)
	case kindU32:
		return enc.WriteUint32(uint32(v.Uint()), bin.LE)
	case kindI32:
		return enc.WriteInt32(int32(v.Int()), bin.LE)
	case kindU64:
		return enc.WriteUint64(v.Uint(), bin.LE)
	case kindI64:
		return enc.WriteInt64(v.Int(), bin.LE)
	case kindF32:
		if f, ok := v.Interface().(float32); ok {
			return enc.WriteUint32(math.Float32bits(f), bin.LE)
		}
		return enc.WriteUint32(math.Float32bits(float32(v.Float())), bin.LE)
	case kindF64:
		return enc.WriteUint64(math.Float64bits(v.Float()), bin.LE)
	case kindWire:
		return v.Interface().(Wire).EncodeWire(enc)
	case kindEnum:
		return EncodeEnum(enc, n.enumName, uint8(v.Uint()), n.variants)
	case kindBytes:
		raw := make([]byte, n.length)
		reflect.Copy(reflect.ValueOf(raw), v)
		return enc.WriteBytes(raw, false)
	case kindArray:
		for i := 0; i < n.length; i++ {
			if err := encodeValue(enc, n.elem, v.Index(i)); err != nil {
				return wrapField("["+strconv.Itoa(i)+"]", err)
			}
		}
		return nil
	case kindStruct:
		for _, f := range n.fields {
			if err := encodeValue(enc, f.node, v.Field(f.index)); err != nil {
				return wrapField(f.name, err)
			}
		}
		return nil
	case kindOption:
		if v.IsNil() {
			return enc.WriteUint8(0)
		}
		if err := enc.WriteUint8(1); err != nil {
			return err
		}
		return encodeValue(enc, n.elem, v.Elem())
	case kindVec:
		if v.Len() > math.MaxUint32 {
			return fmt.Errorf("%w: vec length %d", ErrValueOutOfRange, v.Len())
		}
		if err := enc.WriteUint32(uint32(v.Len()), bin.LE); err != nil {
			return err
		}
		if n.typ.Elem() == byteType {
			return enc.WriteBytes(v.Bytes(), false)
		}
		for i := 0; i < v.Len(); i++ {
			if err := encodeValue(enc, n.elem, v.Index(i)); err != nil {
				return wrapField("["+strconv.Itoa(i)+"]", err)
			}
		}
		return nil
	case kindString:
		s := v.String()
		if err := enc.WriteUint32(uint32(len(s)), bin.LE); err != nil {
			return err
		}
		return enc.WriteBytes([]byte(s), false)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedType, n.typ)
	}
}
