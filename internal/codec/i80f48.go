package codec

import (
	"fmt"
	"math/big"
	"strings"

	bin "github.com/gagliardetto/binary"
)

// I80F48FracBits is the number of fractional bits in an I80F48.
const I80F48FracBits = 48

var (
	i80f48One   = new(big.Int).Lsh(big.NewInt(1), I80F48FracBits)
	i80f48Scale = new(big.Int).Exp(big.NewInt(5), big.NewInt(I80F48FracBits), nil)

	// MinI80F48 and MaxI80F48 hold the extreme raw values -2^127 and 2^127-1.
	MinI80F48 = I80F48{raw: Int128{Lo: 0, Hi: signBitHigh}}
	MaxI80F48 = I80F48{raw: Int128{Lo: ^uint64(0), Hi: ^signBitHigh}}
)

// I80F48 is a signed fixed-point number with 80 integer and 48 fractional
// bits, stored as its raw 128-bit integer. The codec only carries the value;
// no arithmetic is defined beyond comparison.
type I80F48 struct {
	raw Int128
}

func I80F48FromRaw(raw Int128) I80F48 {
	return I80F48{raw: raw}
}

func I80F48FromBig(v *big.Int) (I80F48, error) {
	raw, err := Int128FromBig(v)
	if err != nil {
		return I80F48{}, err
	}
	return I80F48{raw: raw}, nil
}

// I80F48FromInt returns n with a zero fractional part. Every int64 fits.
func I80F48FromInt(n int64) I80F48 {
	v := new(big.Int).Lsh(big.NewInt(n), I80F48FracBits)
	lo, hi := splitTwosComplement(v)
	return I80F48{raw: Int128{Lo: lo, Hi: hi}}
}

// I80F48FromString parses a decimal string, truncating toward zero below 2^-48.
func I80F48FromString(s string) (I80F48, error) {
	r, ok := new(big.Rat).SetString(strings.TrimSpace(s))
	if !ok {
		return I80F48{}, fmt.Errorf("invalid decimal %q", s)
	}
	num := new(big.Int).Mul(r.Num(), i80f48One)
	bits := new(big.Int).Quo(num, r.Denom())
	return I80F48FromBig(bits)
}

func (x I80F48) Raw() Int128 {
	return x.raw
}

func (x I80F48) Bits() *big.Int {
	return x.raw.BigInt()
}

func (x I80F48) IsZero() bool {
	return x.raw.Lo == 0 && x.raw.Hi == 0
}

func (x I80F48) Sign() int {
	return x.Bits().Sign()
}

func (x I80F48) Cmp(y I80F48) int {
	return x.Bits().Cmp(y.Bits())
}

// String renders the exact decimal value. 2^-48 has 48 decimal digits, so
// bits*5^48 is the value scaled by 10^48 without rounding.
func (x I80F48) String() string {
	bits := x.Bits()
	neg := bits.Sign() < 0
	if neg {
		bits.Neg(bits)
	}
	scaled := new(big.Int).Mul(bits, i80f48Scale)
	digits := scaled.String()
	if len(digits) <= I80F48FracBits {
		digits = strings.Repeat("0", I80F48FracBits-len(digits)+1) + digits
	}
	intPart := digits[:len(digits)-I80F48FracBits]
	fracPart := strings.TrimRight(digits[len(digits)-I80F48FracBits:], "0")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteString(intPart)
	if fracPart != "" {
		b.WriteByte('.')
		b.WriteString(fracPart)
	}
	return b.String()
}

func (x I80F48) Float64() float64 {
	f := new(big.Float).SetInt(x.Bits())
	f.Quo(f, new(big.Float).SetInt(i80f48One))
	out, _ := f.Float64()
	return out
}

func (x I80F48) WireSize() int { return int128Size }

func (x I80F48) EncodeWire(enc *bin.Encoder) error {
	return x.raw.EncodeWire(enc)
}

func (x *I80F48) DecodeWire(dec *bin.Decoder) error {
	return x.raw.DecodeWire(dec)
}

func (x I80F48) MarshalJSON() ([]byte, error) {
	return []byte(`"` + x.String() + `"`), nil
}

func (x *I80F48) UnmarshalJSON(data []byte) error {
	out, err := I80F48FromString(strings.Trim(strings.TrimSpace(string(data)), `"`))
	if err != nil {
		return err
	}
	*x = out
	return nil
}

// DecodeI80F48 reads one I80F48 from dec.
func DecodeI80F48(dec *bin.Decoder) (I80F48, error) {
	if dec.Remaining() < int128Size {
		return I80F48{}, truncated(int128Size, dec.Remaining())
	}
	var out I80F48
	if err := out.DecodeWire(dec); err != nil {
		return I80F48{}, err
	}
	return out, nil
}
