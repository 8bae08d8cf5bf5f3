package indexer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tokenbook/internal/domain"
)

// graphqlServer answers each request with respond(request).
func graphqlServer(t *testing.T, respond func(req graphqlRequest) string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var req graphqlRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(respond(req)))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchSnapshot_FollowsPages(t *testing.T) {
	var cursors []any
	srv := graphqlServer(t, func(req graphqlRequest) string {
		assert.Equal(t, "asset-1", req.Variables["asset"])
		assert.EqualValues(t, 2, req.Variables["first"])
		cursors = append(cursors, req.Variables["after"])
		if req.Variables["after"] == nil {
			return `{"data":{"unspentOffers":{
				"nodes":[{"txid":"a","block_time":"1700000000","inputs":[{"prev_txid":"f","prev_vout":0,"protocol_tag":"tag","price":"AAAABw==","power":"","receiver":"eno="}],
				          "outputs":[{"vout":1,"value":"1000","address":"tbx1x"}],"token_transfers":[{"asset_id":"asset-1","amount":"5"}]},
				         {"txid":"b","block_time":null}],
				"pageInfo":{"hasNextPage":true,"endCursor":"c1"}}}}`
		}
		return `{"data":{"unspentOffers":{"nodes":[{"txid":"c"}],"pageInfo":{"hasNextPage":false,"endCursor":""}}}}`
	})

	c := NewClient(srv.URL, "secret", 2, time.Second)
	txs, err := c.FetchSnapshot(context.Background(), "asset-1")
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, []any{nil, "c1"}, cursors)

	a := txs[0]
	assert.Equal(t, "a", a.TxID)
	require.NotNil(t, a.BlockTime)
	assert.Equal(t, int64(1700000000), a.BlockTime.Unix())
	require.Len(t, a.Inputs, 1)
	assert.Equal(t, "tag", a.Inputs[0].ProtocolTag)
	require.NotNil(t, a.Inputs[0].Power)
	assert.Equal(t, "", *a.Inputs[0].Power)
	out, ok := a.Output(1)
	require.True(t, ok)
	assert.Equal(t, uint64(1000), out.Value)
	assert.Equal(t, "5", a.TokenTransfers[0].Amount)

	assert.Nil(t, txs[1].BlockTime)
}

func TestFetchAssetMetadata(t *testing.T) {
	srv := graphqlServer(t, func(graphqlRequest) string {
		return `{"data":{"tokens":[{"assetId":"a","name":"Alpha","symbol":"ALP","decimals":8,"circulatingSupply":"21000000.5"}]}}`
	})
	c := NewClient(srv.URL, "secret", 0, 0)

	rows, err := c.FetchAssetMetadata(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int32(8), rows[0].Decimals)
	assert.True(t, decimal.RequireFromString("21000000.5").Equal(rows[0].CirculatingSupply))
}

func TestFetchAssetMetadata_RejectsDecimalsBeyondInt32(t *testing.T) {
	srv := graphqlServer(t, func(graphqlRequest) string {
		return `{"data":{"tokens":[{"assetId":"a","name":"Alpha","symbol":"ALP","decimals":"4294967304","circulatingSupply":"1"}]}}`
	})
	_, err := NewClient(srv.URL, "secret", 0, 0).FetchAssetMetadata(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decimals 4294967304 out of range")
}

func TestFetchSnapshot_RejectsNegativeIndexes(t *testing.T) {
	srv := graphqlServer(t, func(graphqlRequest) string {
		return `{"data":{"unspentOffers":{"nodes":[{"txid":"a","outputs":[{"vout":-1,"value":"10","address":"x"}]}],
			"pageInfo":{"hasNextPage":false,"endCursor":""}}}}`
	})
	_, err := NewClient(srv.URL, "secret", 0, 0).FetchSnapshot(context.Background(), "asset-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tx a output 0 vout")
}

func TestFetchTradeTotals_PartitionVariable(t *testing.T) {
	srv := graphqlServer(t, func(req graphqlRequest) string {
		if req.Variables["confirmed"] == true {
			return `{"data":{"tradeTotals":[{"assetId":"a","openOffers":"3","closedOffers":4,
				"lastTrade":{"price":"AAAACg==","power":"","timestamp":1700000100,"accepted":true}}]}}`
		}
		return `{"data":{"tradeTotals":[{"assetId":"a","openOffers":1,"closedOffers":0,"lastTrade":null}]}}`
	})
	c := NewClient(srv.URL, "secret", 0, 0)

	conf, err := c.FetchTradeTotals(context.Background(), domain.PartitionConfirmed)
	require.NoError(t, err)
	require.Len(t, conf, 1)
	assert.Equal(t, int64(3), conf[0].OpenOffers)
	require.NotNil(t, conf[0].LastTrade)
	assert.True(t, conf[0].LastTrade.Accepted)
	require.NotNil(t, conf[0].LastTrade.Time)

	unconf, err := c.FetchTradeTotals(context.Background(), domain.PartitionUnconfirmed)
	require.NoError(t, err)
	assert.Nil(t, unconf[0].LastTrade)
}

func TestFetchVolumeAndPrice(t *testing.T) {
	since := time.Unix(1700000000, 0)
	srv := graphqlServer(t, func(req graphqlRequest) string {
		if _, ok := req.Variables["since"]; ok {
			assert.Equal(t, "1700000000", req.Variables["since"])
			return `{"data":{"volume":[{"assetId":"a","trades":2,"tokenAmount":"150","value":"3000"}]}}`
		}
		assert.Equal(t, "1700000000", req.Variables["before"])
		return `{"data":{"lastPriceBefore":[{"assetId":"a","price":"AAAACg==","power":"","timestamp":"1699990000"}]}}`
	})
	c := NewClient(srv.URL, "secret", 0, 0)

	vols, err := c.FetchVolume(context.Background(), domain.PartitionConfirmed, since)
	require.NoError(t, err)
	require.Len(t, vols, 1)
	assert.Equal(t, int64(2), vols[0].Trades)
	assert.True(t, decimal.NewFromInt(3000).Equal(vols[0].Value))

	prices, err := c.FetchPriceBefore(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, prices, 1)
	assert.Equal(t, int64(1699990000), prices[0].Time.Unix())
}

func TestDoQuery_Errors(t *testing.T) {
	srv := graphqlServer(t, func(graphqlRequest) string {
		return `{"data":null,"errors":[{"message":"unknown field"}]}`
	})
	_, err := NewClient(srv.URL, "secret", 0, 0).FetchAssetMetadata(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown field")

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer down.Close()
	_, err = NewClient(down.URL, "", 0, 0).FetchAssetMetadata(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 503")
}
