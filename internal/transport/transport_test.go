package transport

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/roh1t-coder/Speech-Emotion-Recognition-SER/internal/metrics"
	"github.com/roh1t-coder/Speech-Emotion-Recognition-SER/internal/protocol"
)

type recordingHandler struct {
	results      chan protocol.Result
	serverErrors chan string
	closed       chan error
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		results:      make(chan protocol.Result, 16),
		serverErrors: make(chan string, 16),
		closed:       make(chan error, 1),
	}
}

func (h *recordingHandler) OnResult(result protocol.Result) { h.results <- result }
func (h *recordingHandler) OnServerError(msg string)        { h.serverErrors <- msg }
func (h *recordingHandler) OnClosed(err error)              { h.closed <- err }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testMetrics() *metrics.Metrics {
	return metrics.NewMetrics(prometheus.NewRegistry())
}

// newWSServer runs an in-process socket endpoint driving one connection
func newWSServer(t *testing.T, serve func(conn *websocket.Conn)) (*httptest.Server, string) {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Upgrade failed: %v", err)
			return
		}
		defer conn.Close()
		serve(conn)
	}))

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	return srv, wsURL
}

func TestDialFailure(t *testing.T) {
	_, err := Dial(context.Background(), "ws://127.0.0.1:1/ws", testLogger(), testMetrics())
	if err == nil {
		t.Fatal("Expected error dialing unreachable endpoint")
	}
}

func TestSendDeliversBinaryFrameAndResultComesBack(t *testing.T) {
	received := make(chan []byte, 1)

	srv, wsURL := newWSServer(t, func(conn *websocket.Conn) {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.BinaryMessage {
			t.Errorf("Expected binary frame, got type %d", msgType)
		}
		received <- data

		conn.WriteMessage(websocket.TextMessage, []byte(`{"emotion": "happy", "confidence": 87}`))

		// hold the connection until the client hangs up
		conn.ReadMessage()
	})
	defer srv.Close()

	tr, err := Dial(context.Background(), wsURL, testLogger(), testMetrics())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer tr.Close()

	if tr.State() != StateOpen {
		t.Errorf("Expected state open after dial, got %v", tr.State())
	}

	h := newRecordingHandler()
	tr.Listen(h)

	payload := []byte("riff-segment-bytes")
	if err := tr.Send(payload); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	select {
	case data := <-received:
		if string(data) != string(payload) {
			t.Errorf("Expected payload %q, got %q", payload, data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for server to receive frame")
	}

	select {
	case result := <-h.results:
		if result.Emotion != "happy" || result.Confidence != 87 {
			t.Errorf("Expected happy/87, got %s/%g", result.Emotion, result.Confidence)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for result")
	}
}

func TestMalformedFramesAreDroppedConnectionStaysOpen(t *testing.T) {
	srv, wsURL := newWSServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(`not json at all`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"status": "ok"}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"emotion": "x", "confidence": 900}`))
		conn.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02})
		conn.WriteMessage(websocket.TextMessage, []byte(`{"emotion": "calm", "confidence": 64}`))
		conn.ReadMessage()
	})
	defer srv.Close()

	tr, err := Dial(context.Background(), wsURL, testLogger(), testMetrics())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer tr.Close()

	h := newRecordingHandler()
	tr.Listen(h)

	select {
	case result := <-h.results:
		if result.Emotion != "calm" {
			t.Errorf("Expected the one valid result 'calm', got '%s'", result.Emotion)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for the valid result after malformed frames")
	}

	if tr.State() != StateOpen {
		t.Errorf("Expected connection to stay open, got %v", tr.State())
	}

	select {
	case err := <-h.closed:
		t.Errorf("Expected no close event, got %v", err)
	default:
	}
}

func TestServerErrorFrameSurfacedWithoutClosing(t *testing.T) {
	srv, wsURL := newWSServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(`{"error": "Decode error: bad header"}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"emotion": "sad", "confidence": 41}`))
		conn.ReadMessage()
	})
	defer srv.Close()

	tr, err := Dial(context.Background(), wsURL, testLogger(), testMetrics())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer tr.Close()

	h := newRecordingHandler()
	tr.Listen(h)

	select {
	case msg := <-h.serverErrors:
		if !strings.Contains(msg, "Decode error") {
			t.Errorf("Expected decode error message, got '%s'", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for server error")
	}

	select {
	case result := <-h.results:
		if result.Emotion != "sad" {
			t.Errorf("Expected result after error frame, got '%s'", result.Emotion)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for result after error frame")
	}
}

func TestServerCloseEndsSendPath(t *testing.T) {
	srv, wsURL := newWSServer(t, func(conn *websocket.Conn) {
		// server drops the connection immediately
	})
	defer srv.Close()

	tr, err := Dial(context.Background(), wsURL, testLogger(), testMetrics())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer tr.Close()

	h := newRecordingHandler()
	tr.Listen(h)

	select {
	case <-h.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for close event")
	}

	if tr.State() != StateClosed {
		t.Errorf("Expected state closed, got %v", tr.State())
	}

	if err := tr.Send([]byte("late")); !errors.Is(err, ErrTransportClosed) {
		t.Errorf("Expected ErrTransportClosed, got %v", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	srv, wsURL := newWSServer(t, func(conn *websocket.Conn) {
		conn.ReadMessage()
	})
	defer srv.Close()

	tr, err := Dial(context.Background(), wsURL, testLogger(), testMetrics())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}

	if err := tr.Close(); err != nil {
		t.Errorf("First close failed: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Errorf("Second close failed: %v", err)
	}

	if tr.State() != StateClosed {
		t.Errorf("Expected state closed, got %v", tr.State())
	}

	if err := tr.Send([]byte("late")); !errors.Is(err, ErrTransportClosed) {
		t.Errorf("Expected ErrTransportClosed after close, got %v", err)
	}
}
