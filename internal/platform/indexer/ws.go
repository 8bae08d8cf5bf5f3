package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/tokenbook/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	handshakeTimeout = 15 * time.Second
)

// BatchHandler is called for every transaction notification.
type BatchHandler func(domain.Batch)

// WSClient is a single websocket session with the indexer. It does not
// reconnect: once the connection drops, Done is closed and the owner is
// expected to start a new session and resynchronise.
type WSClient struct {
	wsURL  string
	apiKey string
	logger *slog.Logger

	mu     sync.Mutex // guards conn writes and closed
	conn   *websocket.Conn
	closed bool

	handlerMu sync.RWMutex
	handlers  []BatchHandler

	done    chan struct{}
	errOnce sync.Once
	err     error
}

// NewWSClient creates a client for the given websocket URL.
func NewWSClient(wsURL, apiKey string, logger *slog.Logger) *WSClient {
	return &WSClient{
		wsURL:  wsURL,
		apiKey: apiKey,
		logger: logger.With(slog.String("component", "indexer_ws")),
		done:   make(chan struct{}),
	}
}

// OnBatch registers a handler for transaction notifications. Handlers run
// on the read goroutine in registration order.
func (w *WSClient) OnBatch(h BatchHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.handlers = append(w.handlers, h)
}

// Connect dials the indexer and starts the read and ping loops.
func (w *WSClient) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || w.conn != nil {
		return fmt.Errorf("indexer/ws: connect: %w", domain.ErrWSDisconnect)
	}

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	header := http.Header{}
	if w.apiKey != "" {
		header.Set("Authorization", "Bearer "+w.apiKey)
	}
	conn, _, err := dialer.DialContext(ctx, w.wsURL, header)
	if err != nil {
		return fmt.Errorf("indexer/ws: connect: %w", err)
	}
	w.conn = conn

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go w.readLoop(conn)
	go w.pingLoop(conn)
	return nil
}

// Subscribe asks the indexer to push transactions touching the given assets.
func (w *WSClient) Subscribe(assetIDs []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil || w.closed {
		return fmt.Errorf("indexer/ws: subscribe: %w", domain.ErrWSDisconnect)
	}
	if err := w.sendCommand(WSCommand{Type: "subscribe", Assets: assetIDs}); err != nil {
		return fmt.Errorf("indexer/ws: subscribe: %w", err)
	}
	return nil
}

// Done is closed when the session ends.
func (w *WSClient) Done() <-chan struct{} { return w.done }

// Err returns why the session ended, or nil while it is running.
func (w *WSClient) Err() error {
	select {
	case <-w.done:
		return w.err
	default:
		return nil
	}
}

// Close ends the session.
func (w *WSClient) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	w.finish(domain.ErrWSDisconnect)

	if w.conn == nil {
		return nil
	}
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = w.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	return w.conn.Close()
}

func (w *WSClient) finish(err error) {
	w.errOnce.Do(func() {
		w.err = err
		close(w.done)
	})
}

// sendCommand writes a JSON command. Caller must hold w.mu.
func (w *WSClient) sendCommand(cmd WSCommand) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

func (w *WSClient) readLoop(conn *websocket.Conn) {
	defer conn.Close()
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			w.finish(fmt.Errorf("indexer/ws: read: %w: %w", domain.ErrWSDisconnect, err))
			return
		}
		w.handleMessage(message)
	}
}

func (w *WSClient) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.mu.Lock()
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			w.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// handleMessage routes one websocket frame. Frames other than transaction
// notifications are ignored.
func (w *WSClient) handleMessage(raw []byte) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		w.logger.Debug("dropping unparseable frame", slog.String("error", err.Error()))
		return
	}
	if envelope.Type != "transactions" {
		return
	}

	var msg WSTransactions
	if err := json.Unmarshal(raw, &msg); err != nil {
		w.logger.Debug("dropping malformed transactions frame", slog.String("error", err.Error()))
		return
	}
	batch, err := BatchToDomain(&msg)
	if err != nil {
		w.logger.Warn("dropping transactions frame",
			slog.String("asset_id", msg.AssetID),
			slog.String("error", err.Error()),
		)
		return
	}

	w.handlerMu.RLock()
	handlers := w.handlers
	w.handlerMu.RUnlock()

	for _, h := range handlers {
		h(batch)
	}
}
