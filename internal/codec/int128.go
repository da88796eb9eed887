package codec

import (
	"fmt"
	"math/big"
	"strings"

	bin "github.com/gagliardetto/binary"
)

var (
	two64      = new(big.Int).Lsh(big.NewInt(1), 64)
	two128     = new(big.Int).Lsh(big.NewInt(1), 128)
	maxInt128  = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	minInt128  = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
	maxUint128 = new(big.Int).Sub(two128, big.NewInt(1))
	uint64Mask = new(big.Int).Sub(two64, big.NewInt(1))
)

const (
	int128Size  = 16
	signBitHigh = uint64(1) << 63
)

// Int128 is a signed 128-bit integer in two's complement, split into halves.
type Int128 struct {
	Lo uint64
	Hi uint64
}

// Uint128 is an unsigned 128-bit integer split into halves.
type Uint128 struct {
	Lo uint64
	Hi uint64
}

func Int128FromInt64(v int64) Int128 {
	hi := uint64(0)
	if v < 0 {
		hi = ^uint64(0)
	}
	return Int128{Lo: uint64(v), Hi: hi}
}

func Int128FromBig(v *big.Int) (Int128, error) {
	if v.Cmp(minInt128) < 0 || v.Cmp(maxInt128) > 0 {
		return Int128{}, fmt.Errorf("%w: %s does not fit in i128", ErrValueOutOfRange, v)
	}
	lo, hi := splitTwosComplement(v)
	return Int128{Lo: lo, Hi: hi}, nil
}

func (i Int128) BigInt() *big.Int {
	return joinTwosComplement(i.Lo, i.Hi)
}

func (i Int128) String() string {
	return i.BigInt().String()
}

func (i Int128) WireSize() int { return int128Size }

func (i Int128) EncodeWire(enc *bin.Encoder) error {
	return enc.WriteInt128(bin.Int128{Lo: i.Lo, Hi: i.Hi}, bin.LE)
}

func (i *Int128) DecodeWire(dec *bin.Decoder) error {
	raw, err := dec.ReadInt128(bin.LE)
	if err != nil {
		return err
	}
	i.Lo, i.Hi = raw.Lo, raw.Hi
	return nil
}

func (i Int128) MarshalJSON() ([]byte, error) {
	return []byte(`"` + i.String() + `"`), nil
}

func (i *Int128) UnmarshalJSON(data []byte) error {
	v, err := parseJSONInteger(data)
	if err != nil {
		return err
	}
	out, err := Int128FromBig(v)
	if err != nil {
		return err
	}
	*i = out
	return nil
}

func Uint128FromUint64(v uint64) Uint128 {
	return Uint128{Lo: v}
}

func Uint128FromBig(v *big.Int) (Uint128, error) {
	if v.Sign() < 0 || v.Cmp(maxUint128) > 0 {
		return Uint128{}, fmt.Errorf("%w: %s does not fit in u128", ErrValueOutOfRange, v)
	}
	return Uint128{
		Lo: new(big.Int).And(v, uint64Mask).Uint64(),
		Hi: new(big.Int).Rsh(v, 64).Uint64(),
	}, nil
}

func (u Uint128) BigInt() *big.Int {
	out := new(big.Int).SetUint64(u.Hi)
	out.Lsh(out, 64)
	return out.Or(out, new(big.Int).SetUint64(u.Lo))
}

func (u Uint128) String() string {
	return u.BigInt().String()
}

func (u Uint128) WireSize() int { return int128Size }

func (u Uint128) EncodeWire(enc *bin.Encoder) error {
	return enc.WriteUint128(bin.Uint128{Lo: u.Lo, Hi: u.Hi}, bin.LE)
}

func (u *Uint128) DecodeWire(dec *bin.Decoder) error {
	raw, err := dec.ReadUint128(bin.LE)
	if err != nil {
		return err
	}
	u.Lo, u.Hi = raw.Lo, raw.Hi
	return nil
}

func (u Uint128) MarshalJSON() ([]byte, error) {
	return []byte(`"` + u.String() + `"`), nil
}

func (u *Uint128) UnmarshalJSON(data []byte) error {
	v, err := parseJSONInteger(data)
	if err != nil {
		return err
	}
	out, err := Uint128FromBig(v)
	if err != nil {
		return err
	}
	*u = out
	return nil
}

func splitTwosComplement(v *big.Int) (lo, hi uint64) {
	n := new(big.Int).Set(v)
	if n.Sign() < 0 {
		n.Add(n, two128)
	}
	lo = new(big.Int).And(n, uint64Mask).Uint64()
	hi = new(big.Int).Rsh(n, 64).Uint64()
	return lo, hi
}

func joinTwosComplement(lo, hi uint64) *big.Int {
	out := new(big.Int).SetUint64(hi)
	out.Lsh(out, 64)
	out.Or(out, new(big.Int).SetUint64(lo))
	if hi&signBitHigh != 0 {
		out.Sub(out, two128)
	}
	return out
}

func parseJSONInteger(data []byte) (*big.Int, error) {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", raw)
	}
	return v, nil
}
