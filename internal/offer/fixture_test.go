package offer

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tokenbook/internal/codec"
	"github.com/alanyoungcy/tokenbook/internal/covenant"
	"github.com/alanyoungcy/tokenbook/internal/domain"
)

const (
	testTag    = "tbx-offer-v1"
	testPrefix = "tbx"
	testAsset  = "asset-1"
)

var testFees = domain.FeeSettings{Address: "tbx1feecollector", Divisor: 200}

type fixture struct {
	t       *testing.T
	enc     *codec.Bech32Encoder
	deriver *covenant.Deriver
	tr      *Transformer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	enc := codec.NewBech32Encoder(testPrefix)
	deriver := covenant.NewDeriver(enc)
	return &fixture{
		t:       t,
		enc:     enc,
		deriver: deriver,
		tr:      NewTransformer(testTag, enc, deriver, testFees),
	}
}

func b64(b []byte) *string {
	s := base64.StdEncoding.EncodeToString(b)
	return &s
}

func priceToken(v uint32) *string {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, v)
	return b64(buf)
}

var receiverHash = bytes.Repeat([]byte{0x7a}, 20)

type offerSpec struct {
	txid     string
	price    uint32
	inverted bool
	amount   string
	decimals int32
	spends   []domain.UtxoRef
}

// offerTx builds a transaction whose covenant output pays to the address
// the deriver expects for its terms.
func (f *fixture) offerTx(s offerSpec) domain.RawTx {
	f.t.Helper()
	if s.amount == "" {
		s.amount = "100"
	}
	power := []byte{}
	if s.inverted {
		power = []byte{0x00, 0x01}
	}
	powerTok := b64(power)
	priceTok := priceToken(s.price)

	price, err := codec.DecodePrice(s.decimals, *powerTok, *priceTok)
	require.NoError(f.t, err)
	receiver, err := f.enc.Encode(codec.PubKeyHash, receiverHash)
	require.NoError(f.t, err)
	qty := decimal.RequireFromString(s.amount).Shift(-s.decimals)

	settlement, err := f.deriver.SettlementAddress(domain.ContractTerms{
		AssetID:          testAsset,
		DecimalScale:     s.decimals,
		SaleAmount:       qty,
		PricePerUnit:     price.Value,
		ReceivingAddress: receiver,
		Fee:              testFees,
	})
	require.NoError(f.t, err)

	inputs := []domain.RawInput{{
		PrevTxID:    "fund-" + s.txid,
		PrevIndex:   0,
		ProtocolTag: testTag,
		Price:       priceTok,
		Power:       powerTok,
		Receiver:    b64(receiverHash),
	}}
	for _, ref := range s.spends {
		inputs = append(inputs, domain.RawInput{PrevTxID: ref.TxID, PrevIndex: ref.Index})
	}
	return domain.RawTx{
		TxID:   s.txid,
		Inputs: inputs,
		Outputs: []domain.RawOutput{
			{Index: 0, Value: 546, Address: "tbx1change"},
			{Index: 1, Value: 1000, Address: settlement},
		},
		TokenTransfers: []domain.TokenTransfer{{AssetID: testAsset, Amount: s.amount}},
	}
}

// spendTx builds a plain transaction without any protocol marker.
func spendTx(txid string, refs ...domain.UtxoRef) domain.RawTx {
	tx := domain.RawTx{TxID: txid}
	for _, ref := range refs {
		tx.Inputs = append(tx.Inputs, domain.RawInput{PrevTxID: ref.TxID, PrevIndex: ref.Index})
	}
	return tx
}

func refOf(txid string) domain.UtxoRef {
	return domain.UtxoRef{TxID: txid, Index: 1}
}
