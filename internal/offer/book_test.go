package offer

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tokenbook/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestBook(t *testing.T) (*fixture, *Book) {
	t.Helper()
	f := newFixture(t)
	return f, NewBook(testAsset, 0, f.tr, discardLogger())
}

func refs(offers []domain.Offer) []string {
	out := make([]string, len(offers))
	for i, o := range offers {
		out[i] = o.Ref.TxID
	}
	return out
}

func unconfirmed(txs ...domain.RawTx) domain.Batch {
	return domain.Batch{AssetID: testAsset, Kind: domain.BatchUnconfirmed, Txs: txs}
}

func assertAscending(t *testing.T, offers []domain.Offer) {
	t.Helper()
	for i := 1; i < len(offers); i++ {
		assert.False(t, offers[i].PricePerUnit.LessThan(offers[i-1].PricePerUnit),
			"offer %d (%s) below offer %d (%s)", i, offers[i].PricePerUnit, i-1, offers[i-1].PricePerUnit)
	}
}

func TestBook_SpendThenOpen(t *testing.T) {
	f, book := newTestBook(t)
	book.LoadSnapshot([]domain.RawTx{
		f.offerTx(offerSpec{txid: "A", price: 10}),
		f.offerTx(offerSpec{txid: "B", price: 5}),
	})
	assert.Equal(t, []string{"B", "A"}, refs(book.Offers()))

	book.Apply(unconfirmed(
		spendTx("buyA", refOf("A")),
		f.offerTx(offerSpec{txid: "C", price: 7}),
	))

	got := book.Offers()
	assert.Equal(t, []string{"B", "C"}, refs(got))
	assertAscending(t, got)
}

func TestBook_SpendInsideOfferTransaction(t *testing.T) {
	f, book := newTestBook(t)
	book.LoadSnapshot([]domain.RawTx{f.offerTx(offerSpec{txid: "A", price: 10})})

	book.Apply(unconfirmed(f.offerTx(offerSpec{txid: "C", price: 3, spends: []domain.UtxoRef{refOf("A")}})))
	assert.Equal(t, []string{"C"}, refs(book.Offers()))
}

func TestBook_ConfirmedBatchesIgnored(t *testing.T) {
	f, book := newTestBook(t)
	book.LoadSnapshot([]domain.RawTx{f.offerTx(offerSpec{txid: "A", price: 10})})

	calls := 0
	book.OnChange(func([]domain.Offer) { calls++ })
	book.Apply(domain.Batch{
		AssetID: testAsset,
		Kind:    domain.BatchConfirmed,
		Txs:     []domain.RawTx{spendTx("buyA", refOf("A")), f.offerTx(offerSpec{txid: "C", price: 7})},
	})

	assert.Equal(t, []string{"A"}, refs(book.Offers()))
	assert.Zero(t, calls)
}

func TestBook_NoDuplicateRefs(t *testing.T) {
	f, book := newTestBook(t)
	a := f.offerTx(offerSpec{txid: "A", price: 10})
	book.LoadSnapshot([]domain.RawTx{a, a})
	assert.Equal(t, 1, book.Len())

	book.Apply(unconfirmed(a))
	book.Apply(unconfirmed(a, a))
	assert.Equal(t, 1, book.Len())
}

func TestBook_ClosedOutputsStayClosed(t *testing.T) {
	f, book := newTestBook(t)
	a := f.offerTx(offerSpec{txid: "A", price: 10})
	book.LoadSnapshot([]domain.RawTx{a})

	book.Apply(unconfirmed(spendTx("buyA", refOf("A"))))
	assert.Zero(t, book.Len())

	book.Apply(unconfirmed(a))
	assert.Zero(t, book.Len())

	book.BeginResync()
	book.LoadSnapshot([]domain.RawTx{a})
	assert.Zero(t, book.Len())
}

func TestBook_BuffersUntilSnapshot(t *testing.T) {
	f, book := newTestBook(t)
	var notified [][]string
	book.OnChange(func(offers []domain.Offer) { notified = append(notified, refs(offers)) })

	book.Apply(unconfirmed(spendTx("buyA", refOf("A"))))
	book.Apply(unconfirmed(f.offerTx(offerSpec{txid: "C", price: 7})))
	assert.False(t, book.Loaded())
	assert.Zero(t, book.Len())
	assert.Empty(t, notified)

	book.LoadSnapshot([]domain.RawTx{
		f.offerTx(offerSpec{txid: "A", price: 10}),
		f.offerTx(offerSpec{txid: "B", price: 5}),
	})

	assert.True(t, book.Loaded())
	require.Len(t, notified, 1)
	assert.Equal(t, []string{"B", "C"}, notified[0])
}

func TestBook_ResyncReplacesOpenSet(t *testing.T) {
	f, book := newTestBook(t)
	book.LoadSnapshot([]domain.RawTx{f.offerTx(offerSpec{txid: "A", price: 10})})

	book.BeginResync()
	book.Apply(unconfirmed(f.offerTx(offerSpec{txid: "C", price: 7})))
	assert.Equal(t, []string{"A"}, refs(book.Offers()))

	book.LoadSnapshot([]domain.RawTx{f.offerTx(offerSpec{txid: "B", price: 5})})
	assert.Equal(t, []string{"B", "C"}, refs(book.Offers()))
}

func TestBook_ObserversOncePerBatchInOrder(t *testing.T) {
	f, book := newTestBook(t)
	var order []string
	book.OnChange(func([]domain.Offer) { order = append(order, "first") })
	book.OnChange(func([]domain.Offer) { order = append(order, "second") })

	book.LoadSnapshot(nil)
	book.Apply(unconfirmed(
		f.offerTx(offerSpec{txid: "A", price: 10}),
		f.offerTx(offerSpec{txid: "B", price: 5}),
		spendTx("noise"),
	))

	assert.Equal(t, []string{"first", "second", "first", "second"}, order)
}

func TestBook_ObserverCopyIsIsolated(t *testing.T) {
	f, book := newTestBook(t)
	book.OnChange(func(offers []domain.Offer) {
		for i := range offers {
			offers[i].Ref.TxID = "mutated"
		}
	})
	book.LoadSnapshot([]domain.RawTx{f.offerTx(offerSpec{txid: "A", price: 10})})
	assert.Equal(t, []string{"A"}, refs(book.Offers()))
}

func TestBook_EqualPricesKeepArrivalOrder(t *testing.T) {
	f, book := newTestBook(t)
	book.LoadSnapshot([]domain.RawTx{
		f.offerTx(offerSpec{txid: "A", price: 5}),
		f.offerTx(offerSpec{txid: "B", price: 9}),
	})
	book.Apply(unconfirmed(
		f.offerTx(offerSpec{txid: "C", price: 5}),
		f.offerTx(offerSpec{txid: "D", price: 5}),
	))
	assert.Equal(t, []string{"A", "C", "D", "B"}, refs(book.Offers()))
}

func TestBook_MalformedTransactionDoesNotAbortBatch(t *testing.T) {
	f, book := newTestBook(t)
	book.LoadSnapshot(nil)

	broken := f.offerTx(offerSpec{txid: "X", price: 3})
	broken.Outputs[1].Address = "tbx1spoof"
	book.Apply(unconfirmed(
		broken,
		f.offerTx(offerSpec{txid: "C", price: 7}),
	))
	assert.Equal(t, []string{"C"}, refs(book.Offers()))
}
