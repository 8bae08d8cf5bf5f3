package covenant

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tokenbook/internal/codec"
	"github.com/alanyoungcy/tokenbook/internal/domain"
)

func sampleTerms() domain.ContractTerms {
	return domain.ContractTerms{
		AssetID:          "asset-1",
		DecimalScale:     2,
		SaleAmount:       decimal.RequireFromString("12.5"),
		PricePerUnit:     decimal.NewFromInt(700),
		ReceivingAddress: "tbx1receiver",
		Fee:              domain.FeeSettings{Address: "tbx1fee", Divisor: 100},
	}
}

func TestDeriver_Deterministic(t *testing.T) {
	enc := codec.NewBech32Encoder("tbx")
	d := NewDeriver(enc)

	a, err := d.SettlementAddress(sampleTerms())
	require.NoError(t, err)
	b, err := d.SettlementAddress(sampleTerms())
	require.NoError(t, err)
	assert.Equal(t, a, b)

	typ, hash, err := enc.Decode(a)
	require.NoError(t, err)
	assert.Equal(t, codec.ScriptHash, typ)
	assert.Len(t, hash, 20)
}

func TestDeriver_TrailingZerosDoNotMatter(t *testing.T) {
	d := NewDeriver(codec.NewBech32Encoder("tbx"))

	terms := sampleTerms()
	want, err := d.SettlementAddress(terms)
	require.NoError(t, err)

	terms.SaleAmount = decimal.RequireFromString("12.5000")
	got, err := d.SettlementAddress(terms)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDeriver_EveryTermChangesAddress(t *testing.T) {
	d := NewDeriver(codec.NewBech32Encoder("tbx"))
	base, err := d.SettlementAddress(sampleTerms())
	require.NoError(t, err)

	mutations := map[string]func(*domain.ContractTerms){
		"asset":    func(c *domain.ContractTerms) { c.AssetID = "asset-2" },
		"scale":    func(c *domain.ContractTerms) { c.DecimalScale = 3 },
		"amount":   func(c *domain.ContractTerms) { c.SaleAmount = decimal.NewFromInt(13) },
		"price":    func(c *domain.ContractTerms) { c.PricePerUnit = decimal.NewFromInt(701) },
		"receiver": func(c *domain.ContractTerms) { c.ReceivingAddress = "tbx1other" },
		"fee addr": func(c *domain.ContractTerms) { c.Fee.Address = "tbx1fee2" },
		"divisor":  func(c *domain.ContractTerms) { c.Fee.Divisor = 50 },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			terms := sampleTerms()
			mutate(&terms)
			addr, err := d.SettlementAddress(terms)
			require.NoError(t, err)
			assert.NotEqual(t, base, addr)
		})
	}
}

func TestDeriver_RejectsIncompleteTerms(t *testing.T) {
	d := NewDeriver(codec.NewBech32Encoder("tbx"))

	terms := sampleTerms()
	terms.AssetID = ""
	_, err := d.SettlementAddress(terms)
	assert.Error(t, err)

	terms = sampleTerms()
	terms.ReceivingAddress = ""
	_, err = d.SettlementAddress(terms)
	assert.Error(t, err)

	terms = sampleTerms()
	terms.Fee.Divisor = 0
	_, err = d.SettlementAddress(terms)
	assert.ErrorIs(t, err, domain.ErrDivisionByZero)
}
