package indexer

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tokenbook/internal/domain"
)

func TestWSClient_SubscribeAndReceive(t *testing.T) {
	commands := make(chan WSCommand, 1)
	release := make(chan struct{})
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var cmd WSCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}
		commands <- cmd

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"heartbeat"}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"transactions","asset_id":"asset-1","kind":"unconfirmed",
			"transactions":[{"txid":"bad","inputs":[{"prev_txid":"p","prev_vout":-1}]}]}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"transactions","asset_id":"asset-1","kind":"unconfirmed",
			"transactions":[{"txid":"t1","inputs":[{"prev_txid":"p","prev_vout":"1"}]}]}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"transactions","asset_id":"asset-1","kind":"mystery","transactions":[]}`))
		<-release
	}))
	defer srv.Close()

	batches := make(chan domain.Batch, 4)
	c := NewWSClient("ws"+strings.TrimPrefix(srv.URL, "http"), "", slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.OnBatch(func(b domain.Batch) { batches <- b })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Connect(ctx))
	require.NoError(t, c.Subscribe([]string{"asset-1"}))

	cmd := <-commands
	assert.Equal(t, "subscribe", cmd.Type)
	assert.Equal(t, []string{"asset-1"}, cmd.Assets)

	first := <-batches
	assert.Equal(t, domain.BatchUnconfirmed, first.Kind)
	require.Len(t, first.Txs, 1)
	assert.Equal(t, domain.UtxoRef{TxID: "p", Index: 1}, first.Txs[0].Inputs[0].Spends())

	second := <-batches
	assert.Equal(t, domain.BatchConfirmed, second.Kind)

	assert.NoError(t, c.Err())
	close(release)

	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not end after server closed")
	}
	assert.ErrorIs(t, c.Err(), domain.ErrWSDisconnect)
	assert.NoError(t, c.Close())
}

func TestWSClient_SubscribeBeforeConnect(t *testing.T) {
	c := NewWSClient("ws://127.0.0.1:1", "", slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.ErrorIs(t, c.Subscribe([]string{"a"}), domain.ErrWSDisconnect)
}
