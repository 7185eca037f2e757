package capture

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roh1t-coder/Speech-Emotion-Recognition-SER/internal/config"
	"github.com/roh1t-coder/Speech-Emotion-Recognition-SER/internal/metrics"
)

// fakeCapturer is a device backend driven by the test
type fakeCapturer struct {
	frames chan []int16

	mu       sync.Mutex
	running  bool
	startErr error
	stopErr  error
	stops    int
}

func newFakeCapturer() *fakeCapturer {
	return &fakeCapturer{frames: make(chan []int16, 32)}
}

func (f *fakeCapturer) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.running = true
	return nil
}

func (f *fakeCapturer) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		close(f.frames)
	}
	f.running = false
	f.stops++
	return f.stopErr
}

func (f *fakeCapturer) Frames() <-chan []int16 { return f.frames }
func (f *fakeCapturer) Err() error             { return nil }

func (f *fakeCapturer) IsRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeCapturer) stopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testMetrics() *metrics.Metrics {
	return metrics.NewMetrics(prometheus.NewRegistry())
}

func factoryFor(c Capturer, err error) CapturerFactory {
	return func(cfg config.AudioConfig, logger *slog.Logger) (Capturer, error) {
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

func TestAcquireAndRelease(t *testing.T) {
	fake := newFakeCapturer()

	session, err := Acquire(config.DefaultConfig(), testLogger(), testMetrics(), factoryFor(fake, nil))
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	if session.ID() == "" {
		t.Error("Expected session ID to be set")
	}
	if session.AcquiredAt().IsZero() {
		t.Error("Expected acquisition time to be set")
	}
	if session.LiveTracks() != 1 {
		t.Errorf("Expected 1 live track, got %d", session.LiveTracks())
	}
	if session.Released() {
		t.Error("Expected fresh session to not be released")
	}

	if err := session.Release(); err != nil {
		t.Errorf("Release failed: %v", err)
	}

	if session.LiveTracks() != 0 {
		t.Errorf("Expected 0 live tracks after release, got %d", session.LiveTracks())
	}
	if !session.Released() {
		t.Error("Expected session to report released")
	}
	if fake.IsRunning() {
		t.Error("Expected device backend to be stopped")
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	fake := newFakeCapturer()

	session, err := Acquire(config.DefaultConfig(), testLogger(), testMetrics(), factoryFor(fake, nil))
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := session.Release(); err != nil {
			t.Errorf("Release call %d failed: %v", i+1, err)
		}
	}

	if fake.stopCount() != 1 {
		t.Errorf("Expected device stopped exactly once, got %d stops", fake.stopCount())
	}
}

func TestFramesFlowThroughSession(t *testing.T) {
	fake := newFakeCapturer()

	session, err := Acquire(config.DefaultConfig(), testLogger(), testMetrics(), factoryFor(fake, nil))
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer session.Release()

	loud := make([]int16, 160)
	for i := range loud {
		loud[i] = 15000
	}
	fake.frames <- loud

	select {
	case frame := <-session.Frames():
		if len(frame) != 160 {
			t.Errorf("Expected 160-sample frame, got %d", len(frame))
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for frame")
	}

	if session.Level() <= 0 {
		t.Errorf("Expected mic level above 0 after loud frame, got %f", session.Level())
	}
}

func TestFramesChannelClosesOnRelease(t *testing.T) {
	fake := newFakeCapturer()

	session, err := Acquire(config.DefaultConfig(), testLogger(), testMetrics(), factoryFor(fake, nil))
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	if err := session.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	select {
	case _, ok := <-session.Frames():
		if ok {
			t.Error("Expected frames channel to be closed after release")
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for frames channel to close")
	}
}

func TestAcquireFactoryFailure(t *testing.T) {
	boom := fmt.Errorf("no input device")

	_, err := Acquire(config.DefaultConfig(), testLogger(), testMetrics(), factoryFor(nil, boom))
	if err == nil {
		t.Fatal("Expected error when factory fails")
	}

	var devErr *DeviceError
	if !errors.As(err, &devErr) {
		t.Fatalf("Expected DeviceError, got %T: %v", err, err)
	}
	if !errors.Is(err, boom) {
		t.Error("Expected DeviceError to wrap the cause")
	}
}

func TestAcquireStartFailure(t *testing.T) {
	fake := newFakeCapturer()
	fake.startErr = fmt.Errorf("permission denied")

	_, err := Acquire(config.DefaultConfig(), testLogger(), testMetrics(), factoryFor(fake, nil))
	if err == nil {
		t.Fatal("Expected error when device start fails")
	}

	var devErr *DeviceError
	if !errors.As(err, &devErr) {
		t.Fatalf("Expected DeviceError, got %T: %v", err, err)
	}
	if fake.stopCount() == 0 {
		t.Error("Expected failed start to stop the backend")
	}
}
