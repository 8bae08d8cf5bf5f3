package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// UtxoRef identifies a transaction output by transaction id and output index.
type UtxoRef struct {
	TxID  string `json:"txid"`
	Index uint32 `json:"vout"`
}

// String renders the reference in the conventional "txid:vout" form.
func (r UtxoRef) String() string {
	return fmt.Sprintf("%s:%d", r.TxID, r.Index)
}

// Offer is an open sell order backed by a specific unspent output whose
// settlement address has been re-derived from the encoded terms and matched
// against the address actually holding the funds.
type Offer struct {
	AssetID           string          `json:"asset_id"`
	Ref               UtxoRef         `json:"utxo"`
	PricePerUnit      decimal.Decimal `json:"price_per_unit"`
	RawScriptPrice    uint32          `json:"raw_script_price"`
	Inverted          bool            `json:"inverted"`
	SaleAmount        decimal.Decimal `json:"sale_amount"`
	ValueHeld         uint64          `json:"value_held"`
	ReceivingAddress  string          `json:"receiving_address"`
	SettlementAddress string          `json:"settlement_address"`
	CreatedAt         *time.Time      `json:"created_at,omitempty"` // nil while unconfirmed
}

// BatchKind tells where a live notification batch originated.
type BatchKind string

const (
	BatchUnconfirmed BatchKind = "unconfirmed"
	BatchConfirmed   BatchKind = "confirmed"
)

// Batch is one notification message from the indexer subscription.
type Batch struct {
	AssetID string
	Kind    BatchKind
	Txs     []RawTx
}
