package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/roh1t-coder/Speech-Emotion-Recognition-SER/internal/metrics"
	"github.com/roh1t-coder/Speech-Emotion-Recognition-SER/internal/protocol"
)

// State represents the connection state
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

// String returns a human-readable state name
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// ErrTransportClosed is returned by Send once the connection left the Open state
var ErrTransportClosed = errors.New("transport is not open")

// Handler receives asynchronous events from the streaming socket
type Handler interface {
	OnResult(result protocol.Result)
	OnServerError(msg string)
	OnClosed(err error)
}

// Transport is one persistent bidirectional socket to the inference service.
// Flushed segments go out as binary frames; results come back as text frames.
// A closed or errored connection stays closed: reconnecting is the caller's
// decision, made by activating a fresh transport.
type Transport struct {
	conn    *websocket.Conn
	logger  *slog.Logger
	metrics *metrics.Metrics

	state      atomic.Int32
	writeMu    sync.Mutex
	closeOnce  sync.Once
	listenOnce sync.Once
}

// Dial opens the streaming socket and returns it in the Open state
func Dial(ctx context.Context, url string, logger *slog.Logger, m *metrics.Metrics) (*Transport, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}

	t := &Transport{
		conn:    conn,
		logger:  logger,
		metrics: m,
	}
	t.state.Store(int32(StateOpen))

	logger.Info("streaming socket open", slog.String("url", url))

	return t, nil
}

// Send forwards one flushed segment as a binary frame
func (t *Transport) Send(data []byte) error {
	if t.State() != StateOpen {
		return ErrTransportClosed
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := t.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		t.state.Store(int32(StateClosed))
		t.metrics.RecordChunkSendError()
		return fmt.Errorf("failed to send segment: %w", err)
	}

	t.metrics.RecordChunkSent()
	return nil
}

// Listen starts the read loop delivering server events to the handler.
// It may be called once per transport.
func (t *Transport) Listen(h Handler) {
	t.listenOnce.Do(func() {
		go t.readLoop(h)
	})
}

func (t *Transport) readLoop(h Handler) {
	for {
		msgType, message, err := t.conn.ReadMessage()
		if err != nil {
			closing := t.State() == StateClosing
			t.state.Store(int32(StateClosed))

			if !closing && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.logger.Warn("streaming socket closed unexpectedly", slog.String("error", err.Error()))
			} else {
				t.logger.Debug("streaming socket closed", slog.String("error", err.Error()))
			}

			h.OnClosed(err)
			return
		}

		if msgType != websocket.TextMessage {
			t.metrics.RecordMalformedMessage()
			t.logger.Warn("dropping unexpected non-text frame", slog.Int("type", msgType))
			continue
		}

		msg, err := protocol.ParseServerMessage(message)
		if err != nil {
			t.metrics.RecordMalformedMessage()
			t.logger.Warn("dropping malformed server frame", slog.String("error", err.Error()))
			continue
		}

		if msg.IsError() {
			t.metrics.RecordServerError()
			t.logger.Warn("server reported error", slog.String("message", msg.Error))
			h.OnServerError(msg.Error)
			continue
		}

		t.metrics.RecordResultReceived()
		h.OnResult(*msg.Result)
	}
}

// Close shuts the socket down exactly once. The read loop observes the
// closure and fires OnClosed on its way out.
func (t *Transport) Close() error {
	var err error

	t.closeOnce.Do(func() {
		t.state.Store(int32(StateClosing))

		t.writeMu.Lock()
		writeErr := t.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		t.writeMu.Unlock()
		if writeErr != nil {
			t.logger.Debug("close frame not delivered", slog.String("error", writeErr.Error()))
		}

		err = t.conn.Close()
		t.state.Store(int32(StateClosed))
		t.logger.Info("streaming socket closed")
	})

	if err != nil {
		return fmt.Errorf("failed to close socket: %w", err)
	}

	return nil
}

// State returns the current connection state
func (t *Transport) State() State {
	return State(t.state.Load())
}
