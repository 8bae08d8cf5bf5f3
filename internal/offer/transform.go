// Package offer turns raw indexer transactions into verified offers and
// maintains the live, price-ordered offer book of one asset.
package offer

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/tokenbook/internal/codec"
	"github.com/alanyoungcy/tokenbook/internal/domain"
)

// covenantOutput is the output index holding the covenant value.
const covenantOutput uint32 = 1

// RejectReason says why a transaction does not yield an offer.
type RejectReason string

const (
	ReasonNone             RejectReason = ""
	ReasonNoMarker         RejectReason = "no_marker"
	ReasonMissingField     RejectReason = "missing_field"
	ReasonBadPrice         RejectReason = "bad_price"
	ReasonMissingOutput    RejectReason = "missing_output"
	ReasonBadAddress       RejectReason = "bad_address"
	ReasonDerivationFailed RejectReason = "derivation_failed"
	ReasonAddressMismatch  RejectReason = "address_mismatch"
)

// Result is the outcome of a transform: either an offer or a reason.
type Result struct {
	Offer  domain.Offer
	Reason RejectReason
	Detail string
}

// OK reports whether the result carries a verified offer.
func (r Result) OK() bool { return r.Reason == ReasonNone }

func reject(reason RejectReason, format string, args ...any) Result {
	return Result{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// Transformer classifies raw transactions for one network.
type Transformer struct {
	tag     string
	encoder codec.AddressEncoder
	deriver domain.SettlementDeriver
	fees    domain.FeeSettings
}

// NewTransformer creates a Transformer that recognises inputs carrying tag
// and verifies covenants against deriver using the network fee settings.
func NewTransformer(tag string, enc codec.AddressEncoder, deriver domain.SettlementDeriver, fees domain.FeeSettings) *Transformer {
	return &Transformer{tag: tag, encoder: enc, deriver: deriver, fees: fees}
}

// Transform decides whether tx opens a valid offer for assetID. It never
// panics and never returns an error; malformed transactions are rejected.
func (t *Transformer) Transform(assetID string, decimals int32, tx domain.RawTx) (res Result) {
	stage := ReasonMissingField
	defer func() {
		if r := recover(); r != nil {
			res = reject(stage, "recovered: %v", r)
		}
	}()

	in, ok := t.marker(tx)
	if !ok {
		return Result{Reason: ReasonNoMarker}
	}
	if in.Price == nil || in.Power == nil || in.Receiver == nil {
		return reject(ReasonMissingField, "marker input lacks offer terms")
	}

	stage = ReasonBadPrice
	price, err := codec.DecodePrice(decimals, *in.Power, *in.Price)
	if err != nil {
		return reject(ReasonBadPrice, "%v", err)
	}

	stage = ReasonMissingOutput
	held, ok := tx.Output(covenantOutput)
	if !ok {
		return reject(ReasonMissingOutput, "no output %d", covenantOutput)
	}
	if len(tx.TokenTransfers) == 0 {
		return reject(ReasonMissingOutput, "no token transfer")
	}
	qty, err := decimal.NewFromString(tx.TokenTransfers[0].Amount)
	if err != nil {
		return reject(ReasonMissingOutput, "token amount: %v", err)
	}
	sale := qty.Shift(-decimals)

	stage = ReasonBadAddress
	receiver, err := codec.DecodeAddress(t.encoder, *in.Receiver)
	if err != nil {
		return reject(ReasonBadAddress, "%v", err)
	}

	stage = ReasonDerivationFailed
	expected, err := t.deriver.SettlementAddress(domain.ContractTerms{
		AssetID:          assetID,
		DecimalScale:     decimals,
		SaleAmount:       sale,
		PricePerUnit:     price.Value,
		ReceivingAddress: receiver,
		Fee:              t.fees,
	})
	if err != nil {
		return reject(ReasonDerivationFailed, "%v", err)
	}
	if expected != held.Address {
		return reject(ReasonAddressMismatch, "expected %s, output pays %s", expected, held.Address)
	}

	return Result{Offer: domain.Offer{
		AssetID:           assetID,
		Ref:               domain.UtxoRef{TxID: tx.TxID, Index: covenantOutput},
		PricePerUnit:      price.Value,
		RawScriptPrice:    price.Raw,
		Inverted:          price.Inverted,
		SaleAmount:        sale,
		ValueHeld:         held.Value,
		ReceivingAddress:  receiver,
		SettlementAddress: held.Address,
		CreatedAt:         tx.BlockTime,
	}}
}

// HasMarker reports whether any input of tx carries the protocol tag.
func (t *Transformer) HasMarker(tx domain.RawTx) bool {
	_, ok := t.marker(tx)
	return ok
}

// marker returns the first input, by position, carrying the protocol tag.
func (t *Transformer) marker(tx domain.RawTx) (domain.RawInput, bool) {
	for _, in := range tx.Inputs {
		if in.ProtocolTag != "" && in.ProtocolTag == t.tag {
			return in, true
		}
	}
	return domain.RawInput{}, false
}
