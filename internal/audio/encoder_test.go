package audio

import (
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func wavFormat(t *testing.T) Format {
	t.Helper()
	format, err := Negotiate(PriorityFormats())
	if err != nil {
		t.Fatalf("Negotiate failed: %v", err)
	}
	return format
}

func TestEncoderFlushesOneSegment(t *testing.T) {
	src := make(chan []int16, 16)
	encoder := NewEncoder(wavFormat(t), src, 16000, testLogger())

	if encoder.State() != EncoderCreated {
		t.Errorf("Expected state created, got %v", encoder.State())
	}

	if err := encoder.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// three frame blocks of 160 samples each
	for block := 0; block < 3; block++ {
		frame := make([]int16, 160)
		for i := range frame {
			frame[i] = int16(block*1000 + i)
		}
		src <- frame
	}

	waitForSamples(t, encoder, 480)

	segment, err := encoder.Stop()
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if segment.Empty() {
		t.Fatal("Expected non-empty segment")
	}
	if segment.Samples != 480 {
		t.Errorf("Expected 480 samples, got %d", segment.Samples)
	}
	if segment.MIME != "audio/wav" {
		t.Errorf("Expected MIME 'audio/wav', got '%s'", segment.MIME)
	}
	if segment.Duration != 30*time.Millisecond {
		t.Errorf("Expected duration 30ms, got %v", segment.Duration)
	}

	// the segment must decode standalone
	decoded, rate, err := DecodeWAV(segment.Data)
	if err != nil {
		t.Fatalf("Segment does not decode independently: %v", err)
	}
	if rate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", rate)
	}
	if len(decoded) != 480 {
		t.Errorf("Expected 480 decoded samples, got %d", len(decoded))
	}
	if decoded[0] != 0 || decoded[160] != 1000 {
		t.Errorf("Decoded samples out of order: [0]=%d, [160]=%d", decoded[0], decoded[160])
	}
}

func TestEncoderIsSingleUse(t *testing.T) {
	src := make(chan []int16, 1)
	encoder := NewEncoder(wavFormat(t), src, 16000, testLogger())

	if err := encoder.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if err := encoder.Start(); !errors.Is(err, ErrEncoderStarted) {
		t.Errorf("Expected ErrEncoderStarted on second Start, got %v", err)
	}

	if _, err := encoder.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if encoder.State() != EncoderStopped {
		t.Errorf("Expected state stopped, got %v", encoder.State())
	}

	if _, err := encoder.Stop(); !errors.Is(err, ErrEncoderStopped) {
		t.Errorf("Expected ErrEncoderStopped on second Stop, got %v", err)
	}

	if err := encoder.Start(); !errors.Is(err, ErrEncoderStopped) {
		t.Errorf("Expected ErrEncoderStopped on Start after Stop, got %v", err)
	}
}

func TestEncoderStopWithoutStart(t *testing.T) {
	src := make(chan []int16)
	encoder := NewEncoder(wavFormat(t), src, 16000, testLogger())

	segment, err := encoder.Stop()
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if !segment.Empty() {
		t.Errorf("Expected empty segment, got %d bytes", segment.Size())
	}
}

func TestEncoderEmptySource(t *testing.T) {
	src := make(chan []int16)
	encoder := NewEncoder(wavFormat(t), src, 16000, testLogger())

	if err := encoder.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	segment, err := encoder.Stop()
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if !segment.Empty() {
		t.Errorf("Expected empty segment without input, got %d bytes", segment.Size())
	}
}

func TestBackToBackEncodersShareSource(t *testing.T) {
	src := make(chan []int16, 16)

	first := NewEncoder(wavFormat(t), src, 16000, testLogger())
	if err := first.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	src <- make([]int16, 160)
	waitForSamples(t, first, 160)

	if _, err := first.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	// frames arriving between encoder runs go to the successor
	src <- make([]int16, 320)

	second := NewEncoder(wavFormat(t), src, 16000, testLogger())
	if err := second.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitForSamples(t, second, 320)

	segment, err := second.Stop()
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if segment.Samples != 320 {
		t.Errorf("Expected successor to pick up 320 samples, got %d", segment.Samples)
	}
}

func waitForSamples(t *testing.T, encoder *Encoder, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for encoder.BufferedSamples() < want {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %d samples, have %d", want, encoder.BufferedSamples())
		}
		time.Sleep(time.Millisecond)
	}
}
