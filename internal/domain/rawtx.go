package domain

import "time"

// RawTx is a transaction record as reported by the indexing service. Fields
// carrying offer terms are opaque base64 tokens and may be absent.
type RawTx struct {
	TxID           string
	BlockTime      *time.Time // nil for mempool transactions
	Inputs         []RawInput
	Outputs        []RawOutput
	TokenTransfers []TokenTransfer
}

// RawInput is a transaction input. PrevTxID/PrevIndex name the output it
// spends. ProtocolTag is set when the unlocking data carries an exchange
// protocol marker; Price, Power and Receiver hold the encoded offer terms.
type RawInput struct {
	PrevTxID    string
	PrevIndex   uint32
	ProtocolTag string
	Price       *string
	Power       *string
	Receiver    *string
}

// Spends returns the output reference consumed by this input.
func (in RawInput) Spends() UtxoRef {
	return UtxoRef{TxID: in.PrevTxID, Index: in.PrevIndex}
}

// RawOutput is a transaction output with its base-currency value and the
// address it pays to.
type RawOutput struct {
	Index   uint32
	Value   uint64
	Address string
}

// TokenTransfer is one entry of the asset-transfer detail list. Amount is the
// integer quantity in the asset's smallest unit.
type TokenTransfer struct {
	AssetID string
	Amount  string
}

// Output returns the output with the given index.
func (tx RawTx) Output(index uint32) (RawOutput, bool) {
	for _, out := range tx.Outputs {
		if out.Index == index {
			return out, true
		}
	}
	return RawOutput{}, false
}
