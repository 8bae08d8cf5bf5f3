package domain

import "github.com/shopspring/decimal"

// FeeSettings is the protocol fee split baked into every covenant.
type FeeSettings struct {
	Address string
	Divisor uint64
}

// ContractTerms are the inputs to settlement-address derivation.
type ContractTerms struct {
	AssetID          string
	DecimalScale     int32
	SaleAmount       decimal.Decimal
	PricePerUnit     decimal.Decimal
	ReceivingAddress string
	Fee              FeeSettings
}

// SettlementDeriver recomputes the address an offer covenant must pay to.
// Implementations must be deterministic.
type SettlementDeriver interface {
	SettlementAddress(terms ContractTerms) (string, error)
}
