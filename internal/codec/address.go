package codec

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
)

// AddressType is the version byte prefixed to a hash before encoding.
type AddressType byte

const (
	PubKeyHash AddressType = 0
	ScriptHash AddressType = 8
)

// AddressEncoder renders a typed hash as a network address string.
type AddressEncoder interface {
	Encode(t AddressType, hash []byte) (string, error)
}

// Bech32Encoder encodes addresses as bech32 strings under a network prefix.
type Bech32Encoder struct {
	Prefix string
}

// NewBech32Encoder returns an encoder for the given human-readable prefix.
func NewBech32Encoder(prefix string) *Bech32Encoder {
	return &Bech32Encoder{Prefix: prefix}
}

// Encode packs the type byte and hash into 5-bit groups and bech32-encodes
// them under the configured prefix.
func (e *Bech32Encoder) Encode(t AddressType, hash []byte) (string, error) {
	if e.Prefix == "" {
		return "", errors.New("codec: bech32: empty prefix")
	}
	if len(hash) == 0 {
		return "", errors.New("codec: bech32: empty hash")
	}
	payload := make([]byte, 0, len(hash)+1)
	payload = append(payload, byte(t))
	payload = append(payload, hash...)

	conv, err := bech32.ConvertBits(payload, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("codec: bech32: convert bits: %w", err)
	}
	addr, err := bech32.Encode(e.Prefix, conv)
	if err != nil {
		return "", fmt.Errorf("codec: bech32: encode: %w", err)
	}
	return addr, nil
}

// Decode reverses Encode, returning the address type and hash.
func (e *Bech32Encoder) Decode(addr string) (AddressType, []byte, error) {
	hrp, data, err := bech32.Decode(addr)
	if err != nil {
		return 0, nil, fmt.Errorf("codec: bech32: decode: %w", err)
	}
	if hrp != e.Prefix {
		return 0, nil, fmt.Errorf("codec: bech32: prefix %q, want %q", hrp, e.Prefix)
	}
	payload, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return 0, nil, fmt.Errorf("codec: bech32: convert bits: %w", err)
	}
	if len(payload) < 2 {
		return 0, nil, errors.New("codec: bech32: payload too short")
	}
	return AddressType(payload[0]), payload[1:], nil
}
