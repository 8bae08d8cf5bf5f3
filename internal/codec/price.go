package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/tokenbook/internal/domain"
)

// InversePrecision is the number of fractional digits kept when an inverted
// price is divided out. It is the only rounding step in price decoding.
const InversePrecision int32 = 40

// scriptPriceLen is the width of the covenant's big-endian price field.
const scriptPriceLen = 4

// IsInverted reports whether a decoded power buffer marks the price as
// inverted. Only a two-byte buffer whose second byte is 1 qualifies.
func IsInverted(power []byte) bool {
	return len(power) == 2 && power[1] == 1
}

// ScriptPrice is a decoded covenant price.
type ScriptPrice struct {
	Value    decimal.Decimal // per whole unit of the asset
	Raw      uint32          // integer as written in the script
	Inverted bool
}

// DecodePrice turns the covenant's encoded power and script price into a
// price per whole unit of an asset with the given decimal count.
func DecodePrice(decimals int32, encodedPower, encodedScriptPrice string) (ScriptPrice, error) {
	priceBuf, err := DecodeBytes(encodedScriptPrice)
	if err != nil {
		return ScriptPrice{}, fmt.Errorf("codec: price: %w", err)
	}
	if len(priceBuf) != scriptPriceLen {
		return ScriptPrice{}, fmt.Errorf("codec: price is %d bytes, want %d: %w",
			len(priceBuf), scriptPriceLen, domain.ErrInvalidPrice)
	}
	raw := binary.BigEndian.Uint32(priceBuf)

	powerBuf, err := DecodeBytes(encodedPower)
	if err != nil {
		return ScriptPrice{}, fmt.Errorf("codec: power: %w", err)
	}

	scale := decimal.New(1, decimals)
	if !IsInverted(powerBuf) {
		return ScriptPrice{Value: decimal.NewFromInt(int64(raw)).Mul(scale), Raw: raw}, nil
	}
	if raw == 0 {
		return ScriptPrice{}, fmt.Errorf("codec: inverted zero price: %w", domain.ErrDivisionByZero)
	}
	return ScriptPrice{
		Value:    scale.DivRound(decimal.NewFromInt(int64(raw)), InversePrecision),
		Raw:      raw,
		Inverted: true,
	}, nil
}

// DecodeAddress decodes a raw public-key-hash token and renders it as a
// pay-to-public-key-hash address. Hash length is left to the encoder.
func DecodeAddress(enc AddressEncoder, encodedHash string) (string, error) {
	hash, err := DecodeBytes(encodedHash)
	if err != nil {
		return "", fmt.Errorf("codec: address: %w", err)
	}
	addr, err := enc.Encode(PubKeyHash, hash)
	if err != nil {
		return "", fmt.Errorf("codec: address: %w", err)
	}
	return addr, nil
}
