// Package covenant recomputes the settlement address of an offer covenant
// from its encoded terms.
package covenant

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/ripemd160"

	"github.com/alanyoungcy/tokenbook/internal/codec"
	"github.com/alanyoungcy/tokenbook/internal/domain"
)

// templateVersion prefixes every serialized template.
const templateVersion byte = 1

// Deriver builds the covenant template for a set of terms and encodes its
// hash160 as a script-hash address.
type Deriver struct {
	encoder codec.AddressEncoder
}

// NewDeriver creates a Deriver that renders addresses with enc.
func NewDeriver(enc codec.AddressEncoder) *Deriver {
	return &Deriver{encoder: enc}
}

// SettlementAddress returns the address the covenant for terms pays to.
func (d *Deriver) SettlementAddress(terms domain.ContractTerms) (string, error) {
	tmpl, err := Template(terms)
	if err != nil {
		return "", err
	}
	addr, err := d.encoder.Encode(codec.ScriptHash, hash160(tmpl))
	if err != nil {
		return "", fmt.Errorf("covenant: encode address: %w", err)
	}
	return addr, nil
}

// Template serializes terms in canonical order. Decimals are rendered
// without trailing zeros so equal values always produce equal bytes.
func Template(terms domain.ContractTerms) ([]byte, error) {
	switch {
	case terms.AssetID == "":
		return nil, errors.New("covenant: empty asset id")
	case terms.ReceivingAddress == "":
		return nil, errors.New("covenant: empty receiving address")
	case terms.Fee.Divisor == 0:
		return nil, fmt.Errorf("covenant: fee divisor: %w", domain.ErrDivisionByZero)
	}

	buf := []byte{templateVersion}
	buf = appendField(buf, []byte(terms.AssetID))
	buf = binary.BigEndian.AppendUint32(buf, uint32(terms.DecimalScale))
	buf = appendField(buf, []byte(terms.SaleAmount.String()))
	buf = appendField(buf, []byte(terms.PricePerUnit.String()))
	buf = appendField(buf, []byte(terms.ReceivingAddress))
	buf = appendField(buf, []byte(terms.Fee.Address))
	buf = binary.BigEndian.AppendUint64(buf, terms.Fee.Divisor)
	return buf, nil
}

func appendField(buf, field []byte) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(field)))
	return append(buf, field...)
}

func hash160(b []byte) []byte {
	sum := sha256.Sum256(b)
	h := ripemd160.New()
	h.Write(sum[:])
	return h.Sum(nil)
}
