package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// EncoderState represents the lifecycle state of a chunk encoder
type EncoderState int

const (
	EncoderCreated EncoderState = iota
	EncoderRecording
	EncoderStopped
)

// String returns a human-readable state name
func (s EncoderState) String() string {
	switch s {
	case EncoderCreated:
		return "created"
	case EncoderRecording:
		return "recording"
	case EncoderStopped:
		return "stopped"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Encoder lifecycle errors
var (
	ErrEncoderStarted = errors.New("encoder already started")
	ErrEncoderStopped = errors.New("encoder already stopped")
)

// Encoder is a single-use chunk encoder. It drains PCM frames from a source
// channel into an internal buffer; Stop flushes exactly one independently
// decodable segment and terminates the encoder. A stopped encoder cannot be
// restarted; each chunk gets a fresh instance.
type Encoder struct {
	format     Format
	sampleRate int
	src        <-chan []int16
	logger     *slog.Logger

	mu      sync.Mutex
	state   EncoderState
	samples []int16

	stop chan struct{}
	done chan struct{}
}

// NewEncoder creates an encoder bound to a PCM frame source
func NewEncoder(format Format, src <-chan []int16, sampleRate int, logger *slog.Logger) *Encoder {
	return &Encoder{
		format:     format,
		sampleRate: sampleRate,
		src:        src,
		logger:     logger,
		state:      EncoderCreated,
		samples:    make([]int16, 0, sampleRate*2),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start begins draining frames from the source channel
func (e *Encoder) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case EncoderRecording:
		return ErrEncoderStarted
	case EncoderStopped:
		return ErrEncoderStopped
	}

	e.state = EncoderRecording
	go e.drain()

	return nil
}

// drain appends source frames to the sample buffer until stopped.
// Frames still queued in the source channel at stop time are left for the
// next encoder instance so nothing is lost between back-to-back chunks.
func (e *Encoder) drain() {
	defer close(e.done)

	for {
		select {
		case frame, ok := <-e.src:
			if !ok {
				return
			}
			e.mu.Lock()
			e.samples = append(e.samples, frame...)
			e.mu.Unlock()
		case <-e.stop:
			return
		}
	}
}

// Stop terminates the encoder and flushes its single segment. The flush
// happens only after the drain loop has fully exited, so a segment never
// carries a partially appended frame. A second Stop returns ErrEncoderStopped.
func (e *Encoder) Stop() (*Segment, error) {
	e.mu.Lock()
	if e.state == EncoderStopped {
		e.mu.Unlock()
		return nil, ErrEncoderStopped
	}

	started := e.state == EncoderRecording
	e.state = EncoderStopped
	e.mu.Unlock()

	if started {
		close(e.stop)
		<-e.done
	}

	e.mu.Lock()
	samples := e.samples
	e.samples = nil
	e.mu.Unlock()

	if len(samples) == 0 {
		return &Segment{MIME: e.format.MIME, Format: e.format.Name}, nil
	}

	data, err := e.format.Encode(samples, e.sampleRate)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s segment: %w", e.format.Name, err)
	}

	duration := time.Duration(len(samples)) * time.Second / time.Duration(e.sampleRate)
	e.logger.Debug("flushed audio segment",
		slog.String("format", e.format.Name),
		slog.Int("samples", len(samples)),
		slog.Int("bytes", len(data)),
		slog.Duration("duration", duration),
	)

	return &Segment{
		Data:     data,
		MIME:     e.format.MIME,
		Format:   e.format.Name,
		Duration: duration,
		Samples:  len(samples),
	}, nil
}

// State returns the current encoder state
func (e *Encoder) State() EncoderState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// BufferedSamples returns the number of samples accumulated so far
func (e *Encoder) BufferedSamples() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.samples)
}
