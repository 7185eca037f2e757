package capture

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/roh1t-coder/Speech-Emotion-Recognition-SER/internal/audio"
	"github.com/roh1t-coder/Speech-Emotion-Recognition-SER/internal/config"
	"github.com/roh1t-coder/Speech-Emotion-Recognition-SER/internal/metrics"
)

// ErrSessionReleased is returned when a released session is asked for frames
var ErrSessionReleased = errors.New("capture session already released")

// DeviceError wraps a capture device failure. Activation paths treat it as
// fatal: the mode never enters its active state and nothing is retried.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("capture device %s failed: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

// Capturer is the device backend behind a capture session. Frames delivers
// mono 16-bit PCM blocks; the channel closes after Stop once the read loop
// has exited.
type Capturer interface {
	Start() error
	Stop() error
	Frames() <-chan []int16
	Err() error
	IsRunning() bool
}

// CapturerFactory builds the device backend for a session
type CapturerFactory func(cfg config.AudioConfig, logger *slog.Logger) (Capturer, error)

// Session owns one live microphone stream. It is acquired on demand by a
// recording mode and must be released exactly once on every exit path;
// Release is idempotent so teardown can call it unconditionally.
type Session struct {
	id         string
	acquiredAt time.Time
	capturer   Capturer
	meter      *audio.Meter
	logger     *slog.Logger
	metrics    *metrics.Metrics

	frames   chan []int16
	released atomic.Bool
	stopOnce sync.Once
	pumpDone chan struct{}
}

// Acquire opens the capture device and starts delivering PCM frames.
// A nil factory selects the PortAudio backend. Failures are wrapped in
// DeviceError; no partial resources remain on error.
func Acquire(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics, factory CapturerFactory) (*Session, error) {
	if factory == nil {
		factory = NewPortAudioCapturer
	}

	capturer, err := factory(cfg.Audio, logger)
	if err != nil {
		m.RecordDeviceAcquisition(false)
		return nil, &DeviceError{Op: "open", Err: err}
	}

	if err := capturer.Start(); err != nil {
		capturer.Stop()
		m.RecordDeviceAcquisition(false)
		return nil, &DeviceError{Op: "start", Err: err}
	}

	meter, err := audio.NewMeter(cfg.Level.Smoothing)
	if err != nil {
		capturer.Stop()
		m.RecordDeviceAcquisition(false)
		return nil, &DeviceError{Op: "meter", Err: err}
	}

	s := &Session{
		id:         uuid.New().String(),
		acquiredAt: time.Now(),
		capturer:   capturer,
		meter:      meter,
		logger:     logger,
		metrics:    m,
		frames:     make(chan []int16, 64),
		pumpDone:   make(chan struct{}),
	}

	go s.pump()

	m.RecordDeviceAcquisition(true)
	m.SetLiveTracks(1)
	logger.Info("capture session acquired",
		slog.String("session_id", s.id),
		slog.Int("sample_rate", cfg.Audio.SampleRate),
		slog.Int("frames_per_buffer", cfg.Audio.FramesPerBuffer),
	)

	return s, nil
}

// pump forwards device frames to consumers, metering each block.
// Consumers that lag lose frames rather than stalling the device.
func (s *Session) pump() {
	defer close(s.pumpDone)
	defer close(s.frames)

	for frame := range s.capturer.Frames() {
		s.metrics.RecordFrameCaptured()
		s.metrics.SetMicLevel(s.meter.Update(frame))

		select {
		case s.frames <- frame:
		default:
			s.metrics.RecordFrameDropped()
		}
	}
}

// Frames returns the PCM frame channel consumed by chunk encoders.
// The channel closes once the session is released.
func (s *Session) Frames() <-chan []int16 {
	return s.frames
}

// Release stops the device stream exactly once. Further calls are no-ops
// returning nil so every teardown path can release unconditionally.
func (s *Session) Release() error {
	var err error

	s.stopOnce.Do(func() {
		s.released.Store(true)
		err = s.capturer.Stop()
		<-s.pumpDone

		s.metrics.SetLiveTracks(0)
		s.metrics.SetMicLevel(0)
		s.logger.Info("capture session released",
			slog.String("session_id", s.id),
			slog.Duration("lifetime", time.Since(s.acquiredAt)),
		)
	})

	if err != nil {
		return fmt.Errorf("failed to stop capture device: %w", err)
	}

	return nil
}

// Released reports whether the session has been released
func (s *Session) Released() bool {
	return s.released.Load()
}

// LiveTracks returns the number of live device tracks (1 while open, 0 after release)
func (s *Session) LiveTracks() int {
	if s.released.Load() {
		return 0
	}
	return 1
}

// ID returns the session identifier used in logs
func (s *Session) ID() string {
	return s.id
}

// AcquiredAt returns the device acquisition time
func (s *Session) AcquiredAt() time.Time {
	return s.acquiredAt
}

// Level returns the current smoothed microphone level
func (s *Session) Level() float64 {
	return s.meter.Level()
}
