package indexer

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/tokenbook/internal/domain"
)

// flexInt unmarshals from a JSON number or a numeric string, since the
// indexer serialises 64-bit values as strings.
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexInt(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

// unixTime converts an optional unix timestamp to a UTC time.
func unixTime(ts *flexInt) *time.Time {
	if ts == nil || *ts <= 0 {
		return nil
	}
	t := time.Unix(int64(*ts), 0).UTC()
	return &t
}

// --------------------------------------------------------------------------
// Transaction DTOs (shared by GraphQL and websocket payloads)
// --------------------------------------------------------------------------

// APITx is a transaction record as served by the indexer.
type APITx struct {
	TxID           string             `json:"txid"`
	BlockTime      *flexInt           `json:"block_time"`
	Inputs         []APIInput         `json:"inputs"`
	Outputs        []APIOutput        `json:"outputs"`
	TokenTransfers []APITokenTransfer `json:"token_transfers"`
}

// APIInput is a transaction input with any decoded offer terms.
type APIInput struct {
	PrevTxID    string  `json:"prev_txid"`
	PrevVout    flexInt `json:"prev_vout"`
	ProtocolTag string  `json:"protocol_tag"`
	Price       *string `json:"price"`
	Power       *string `json:"power"`
	Receiver    *string `json:"receiver"`
}

// APIOutput is a transaction output.
type APIOutput struct {
	Vout    flexInt `json:"vout"`
	Value   flexInt `json:"value"`
	Address string  `json:"address"`
}

// APITokenTransfer is one asset-transfer detail row.
type APITokenTransfer struct {
	AssetID string `json:"asset_id"`
	Amount  string `json:"amount"`
}

// TxToDomain converts an indexer transaction to the domain record. Output
// indexes and values must be non-negative and indexes must fit 32 bits.
func TxToDomain(a *APITx) (domain.RawTx, error) {
	tx := domain.RawTx{
		TxID:           a.TxID,
		BlockTime:      unixTime(a.BlockTime),
		Inputs:         make([]domain.RawInput, 0, len(a.Inputs)),
		Outputs:        make([]domain.RawOutput, 0, len(a.Outputs)),
		TokenTransfers: make([]domain.TokenTransfer, 0, len(a.TokenTransfers)),
	}
	for i, in := range a.Inputs {
		prev, err := outputIndex(in.PrevVout)
		if err != nil {
			return domain.RawTx{}, fmt.Errorf("tx %s input %d prev_vout: %w", a.TxID, i, err)
		}
		tx.Inputs = append(tx.Inputs, domain.RawInput{
			PrevTxID:    in.PrevTxID,
			PrevIndex:   prev,
			ProtocolTag: in.ProtocolTag,
			Price:       in.Price,
			Power:       in.Power,
			Receiver:    in.Receiver,
		})
	}
	for i, out := range a.Outputs {
		idx, err := outputIndex(out.Vout)
		if err != nil {
			return domain.RawTx{}, fmt.Errorf("tx %s output %d vout: %w", a.TxID, i, err)
		}
		if out.Value < 0 {
			return domain.RawTx{}, fmt.Errorf("tx %s output %d value %d is negative", a.TxID, i, out.Value)
		}
		tx.Outputs = append(tx.Outputs, domain.RawOutput{
			Index:   idx,
			Value:   uint64(out.Value),
			Address: out.Address,
		})
	}
	for _, tt := range a.TokenTransfers {
		tx.TokenTransfers = append(tx.TokenTransfers, domain.TokenTransfer{AssetID: tt.AssetID, Amount: tt.Amount})
	}
	return tx, nil
}

func outputIndex(v flexInt) (uint32, error) {
	if v < 0 || v > math.MaxUint32 {
		return 0, fmt.Errorf("%d out of range", v)
	}
	return uint32(v), nil
}

func txsToDomain(in []APITx) ([]domain.RawTx, error) {
	out := make([]domain.RawTx, 0, len(in))
	for i := range in {
		tx, err := TxToDomain(&in[i])
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

// --------------------------------------------------------------------------
// Overview DTOs
// --------------------------------------------------------------------------

// APIToken is a token registry row.
type APIToken struct {
	AssetID           string          `json:"assetId"`
	Name              string          `json:"name"`
	Symbol            string          `json:"symbol"`
	Decimals          flexInt         `json:"decimals"`
	CirculatingSupply decimal.Decimal `json:"circulatingSupply"`
}

// APITradeTotals is a per-asset offer count row.
type APITradeTotals struct {
	AssetID      string        `json:"assetId"`
	OpenOffers   flexInt       `json:"openOffers"`
	ClosedOffers flexInt       `json:"closedOffers"`
	LastTrade    *APILastTrade `json:"lastTrade"`
}

// APILastTrade is the most recent trade attached to a totals row.
type APILastTrade struct {
	Price     string   `json:"price"`
	Power     string   `json:"power"`
	Timestamp *flexInt `json:"timestamp"`
	Accepted  bool     `json:"accepted"`
}

// APIVolume is a per-asset 24h volume row.
type APIVolume struct {
	AssetID     string          `json:"assetId"`
	Trades      flexInt         `json:"trades"`
	TokenAmount decimal.Decimal `json:"tokenAmount"`
	Value       decimal.Decimal `json:"value"`
}

// APIPricePoint is the latest priced transaction before a cutoff.
type APIPricePoint struct {
	AssetID   string  `json:"assetId"`
	Price     string  `json:"price"`
	Power     string  `json:"power"`
	Timestamp flexInt `json:"timestamp"`
}

func tokenToDomain(t APIToken) (domain.AssetMetadata, error) {
	if t.Decimals < math.MinInt32 || t.Decimals > math.MaxInt32 {
		return domain.AssetMetadata{}, fmt.Errorf("token %s decimals %d out of range", t.AssetID, t.Decimals)
	}
	return domain.AssetMetadata{
		AssetID:           t.AssetID,
		Name:              t.Name,
		Symbol:            t.Symbol,
		Decimals:          int32(t.Decimals),
		CirculatingSupply: t.CirculatingSupply,
	}, nil
}

func totalsToDomain(t APITradeTotals) domain.TradeTotals {
	out := domain.TradeTotals{
		AssetID:      t.AssetID,
		OpenOffers:   int64(t.OpenOffers),
		ClosedOffers: int64(t.ClosedOffers),
	}
	if lt := t.LastTrade; lt != nil {
		out.LastTrade = &domain.LastTrade{
			Price:    lt.Price,
			Power:    lt.Power,
			Time:     unixTime(lt.Timestamp),
			Accepted: lt.Accepted,
		}
	}
	return out
}

func volumeToDomain(v APIVolume) domain.VolumeStat {
	return domain.VolumeStat{
		AssetID:     v.AssetID,
		Trades:      int64(v.Trades),
		TokenAmount: v.TokenAmount,
		Value:       v.Value,
	}
}

func priceToDomain(p APIPricePoint) domain.PricePoint {
	return domain.PricePoint{
		AssetID: p.AssetID,
		Price:   p.Price,
		Power:   p.Power,
		Time:    time.Unix(int64(p.Timestamp), 0).UTC(),
	}
}

// --------------------------------------------------------------------------
// Websocket DTOs
// --------------------------------------------------------------------------

// WSCommand is a subscription command sent to the indexer websocket.
type WSCommand struct {
	Type   string   `json:"type"`
	Assets []string `json:"assets"`
}

// WSTransactions is a transaction notification pushed by the indexer.
type WSTransactions struct {
	Type         string  `json:"type"`
	AssetID      string  `json:"asset_id"`
	Kind         string  `json:"kind"`
	Transactions []APITx `json:"transactions"`
}

// BatchToDomain converts a notification to a domain batch. Unknown kinds are
// treated as confirmed so they never mutate a live book.
func BatchToDomain(m *WSTransactions) (domain.Batch, error) {
	kind := domain.BatchConfirmed
	if m.Kind == string(domain.BatchUnconfirmed) {
		kind = domain.BatchUnconfirmed
	}
	txs, err := txsToDomain(m.Transactions)
	if err != nil {
		return domain.Batch{}, err
	}
	return domain.Batch{AssetID: m.AssetID, Kind: kind, Txs: txs}, nil
}
