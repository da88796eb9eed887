package codec

import (
	"fmt"
	"math"
	"reflect"
	"strconv"

	bin "github.com/gagliardetto/binary"
)

// Unmarshal decodes data into v, which must be a non-nil pointer. Bytes past
// the end of the layout are ignored.
func Unmarshal(data []byte, v any) error {
	return Decode(bin.NewBorshDecoder(data), v)
}

// Decode reads one value of v's type from dec.
func Decode(dec *bin.Decoder, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("%w: decode target must be a non-nil pointer, got %T", ErrUnsupportedType, v)
	}
	n, err := nodeFor(rv.Elem().Type())
	if err != nil {
		return err
	}
	return decodeValue(dec, n, rv.Elem())
}

func need(dec *bin.Decoder, n int) error {
	if rem := dec.Remaining(); rem < n {
		return truncated(n, rem)
	}
	return nil
}

func decodeValue(dec *bin.Decoder, n *node, v reflect.Value) error {
	if n.size != dynamicSize && n.kind != kindStruct && n.kind != kindArray {
		if err := need(dec, n.size); err != nil {
			return err
		}
	}

	switch n.kind {
	case kindBool:
		b, err := dec.ReadUint8()
		if err != nil {
			return err
		}
		v.SetBool(b != 0)
	case kindU8:
		b, err := dec.ReadUint8()
		if err != nil {
			return err
		}
		v.SetUint(uint64(b))
	case kindI8:
		b, err := dec.ReadInt8()
		if err != nil {
			return err
		}
		v.SetInt(int64(b))
	case kindU16:
		x, err := dec.ReadUint16(bin.LE)
		if err != nil {
			return err
		}
		v.SetUint(uint64(x))
	case kindI16:
		x, err := dec.ReadInt16(bin.LE)
		if err != nil {
			return err
		}
		v.SetInt(int64(x))
	case kindU32:
		x, err := dec.ReadUint32(bin.LE)
		if err != nil {
			return err
		}
		v.SetUint(uint64(x))
	case kindI32:
		x, err := dec.ReadInt32(bin.LE)
		if err != nil {
			return err
		}
		v.SetInt(int64(x))
	case kindU64:
		x, err := dec.ReadUint64(bin.LE)
		if err != nil {
			return err
		}
		v.SetUint(x)
	case kindI64:
		x, err := dec.ReadInt64(bin.LE)
		if err != nil {
			return err
		}
		v.SetInt(x)
	case kindF32:
		// Raw bits: NaN payloads must survive, and the borsh float readers reject NaN.
		bits, err := dec.ReadUint32(bin.LE)
		if err != nil {
			return err
		}
		if p, ok := v.Addr().Interface().(*float32); ok {
			*p = math.Float32frombits(bits)
		} else {
			v.SetFloat(float64(math.Float32frombits(bits)))
		}
	case kindF64:
		bits, err := dec.ReadUint64(bin.LE)
		if err != nil {
			return err
		}
		v.SetFloat(math.Float64frombits(bits))
	case kindWire:
		return v.Addr().Interface().(WireDecoder).DecodeWire(dec)
	case kindEnum:
		b, err := DecodeEnum(dec, n.enumName, n.variants)
		if err != nil {
			return err
		}
		v.SetUint(uint64(b))
	case kindBytes:
		raw, err := dec.ReadNBytes(n.length)
		if err != nil {
			return err
		}
		reflect.Copy(v, reflect.ValueOf(raw))
	case kindArray:
		for i := 0; i < n.length; i++ {
			if err := decodeValue(dec, n.elem, v.Index(i)); err != nil {
				return wrapField("["+strconv.Itoa(i)+"]", err)
			}
		}
	case kindStruct:
		for _, f := range n.fields {
			if err := decodeValue(dec, f.node, v.Field(f.index)); err != nil {
				return wrapField(f.name, err)
			}
		}
	case kindOption:
		return decodeOption(dec, n, v)
	case kindVec:
		return decodeVec(dec, n, v)
	case kindString:
		raw, err := readLengthPrefixed(dec)
		if err != nil {
			return err
		}
		v.SetString(string(raw))
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedType, n.typ)
	}
	return nil
}

func decodeOption(dec *bin.Decoder, n *node, v reflect.Value) error {
	if err := need(dec, 1); err != nil {
		return err
	}
	tag, err := dec.ReadUint8()
	if err != nil {
		return err
	}
	switch tag {
	case 0:
		v.SetZero()
		return nil
	case 1:
		elem := reflect.New(n.elem.typ)
		if err := decodeValue(dec, n.elem, elem.Elem()); err != nil {
			return err
		}
		v.Set(elem)
		return nil
	default:
		return fmt.Errorf("%w: %d", ErrInvalidOptionTag, tag)
	}
}

func decodeVec(dec *bin.Decoder, n *node, v reflect.Value) error {
	if err := need(dec, vecLengthSize); err != nil {
		return err
	}
	count, err := dec.ReadUint32(bin.LE)
	if err != nil {
		return err
	}

	if n.typ.Elem() == byteType {
		if err := need(dec, int(count)); err != nil {
			return err
		}
		raw, err := dec.ReadNBytes(int(count))
		if err != nil {
			return err
		}
		out := reflect.MakeSlice(n.typ, int(count), int(count))
		reflect.Copy(out, reflect.ValueOf(raw))
		v.Set(out)
		return nil
	}

	// Capacity is bounded by what the remaining bytes could possibly hold so a
	// corrupt count cannot force a huge allocation.
	capacity := int(count)
	if n.elem.minSize > 0 {
		if limit := dec.Remaining()/n.elem.minSize + 1; limit < capacity {
			capacity = limit
		}
	}
	out := reflect.MakeSlice(n.typ, 0, capacity)
	elem := reflect.New(n.elem.typ).Elem()
	for i := 0; i < int(count); i++ {
		elem.SetZero()
		if err := decodeValue(dec, n.elem, elem); err != nil {
			return wrapField("["+strconv.Itoa(i)+"]", err)
		}
		out = reflect.Append(out, elem)
	}
	v.Set(out)
	return nil
}

func readLengthPrefixed(dec *bin.Decoder) ([]byte, error) {
	if err := need(dec, vecLengthSize); err != nil {
		return nil, err
	}
	length, err := dec.ReadUint32(bin.LE)
	if err != nil {
		return nil, err
	}
	if err := need(dec, int(length)); err != nil {
		return nil, err
	}
	return dec.ReadNBytes(int(length))
}
