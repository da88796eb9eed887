package mango

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// Encodings accepted by ParseData.
const (
	EncodingBase64 = "base64"
	EncodingBase58 = "base58"
	EncodingHex    = "hex"
)

// ParseData decodes raw account or instruction bytes given in one of the
// RPC text encodings. An empty encoding means base64.
func ParseData(encoding, text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", EncodingBase64:
		data, err := base64.StdEncoding.DecodeString(text)
		if err != nil {
			return nil, fmt.Errorf("decode base64: %w", err)
		}
		return data, nil
	case EncodingBase58:
		data, err := base58.Decode(text)
		if err != nil {
			return nil, fmt.Errorf("decode base58: %w", err)
		}
		return data, nil
	case EncodingHex:
		data, err := hex.DecodeString(strings.TrimPrefix(text, "0x"))
		if err != nil {
			return nil, fmt.Errorf("decode hex: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q (expected base64|base58|hex)", encoding)
	}
}
