package codec

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	bin "github.com/gagliardetto/binary"
)

// DiscriminatorSize is the length of account and instruction tags.
const DiscriminatorSize = 8

// DecodeAccount checks the 8-byte tag and then decodes the body into v.
// The body is not read when the tag differs.
func DecodeAccount(data []byte, discriminator [DiscriminatorSize]byte, v any) error {
	if len(data) < DiscriminatorSize {
		return truncated(DiscriminatorSize, len(data))
	}
	if !bytes.Equal(data[:DiscriminatorSize], discriminator[:]) {
		return fmt.Errorf("%w: expected %s, got %s", ErrDiscriminatorMismatch,
			hex.EncodeToString(discriminator[:]), hex.EncodeToString(data[:DiscriminatorSize]))
	}
	return Decode(bin.NewBorshDecoder(data[DiscriminatorSize:]), v)
}

// EncodeAccount returns discriminator followed by the encoded body of v.
func EncodeAccount(discriminator [DiscriminatorSize]byte, v any) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(discriminator[:])
	if err := Encode(bin.NewBorshEncoder(&buf), v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// HasDiscriminator reports whether data starts with discriminator.
func HasDiscriminator(data []byte, discriminator [DiscriminatorSize]byte) bool {
	return len(data) >= DiscriminatorSize && bytes.Equal(data[:DiscriminatorSize], discriminator[:])
}

// AccountDiscriminator derives the anchor account tag for name.
func AccountDiscriminator(name string) [DiscriminatorSize]byte {
	return sighash("account:" + name)
}

// InstructionDiscriminator derives the anchor instruction opcode for a snake_case name.
func InstructionDiscriminator(name string) [DiscriminatorSize]byte {
	return sighash("global:" + name)
}

func sighash(preimage string) [DiscriminatorSize]byte {
	sum := sha256.Sum256([]byte(preimage))
	var out [DiscriminatorSize]byte
	copy(out[:], sum[:DiscriminatorSize])
	return out
}
