package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roh1t-coder/Speech-Emotion-Recognition-SER/internal/audio"
	"github.com/roh1t-coder/Speech-Emotion-Recognition-SER/internal/capture"
	"github.com/roh1t-coder/Speech-Emotion-Recognition-SER/internal/config"
	"github.com/roh1t-coder/Speech-Emotion-Recognition-SER/internal/metrics"
	"github.com/roh1t-coder/Speech-Emotion-Recognition-SER/internal/predict"
	"github.com/roh1t-coder/Speech-Emotion-Recognition-SER/internal/protocol"
	"github.com/roh1t-coder/Speech-Emotion-Recognition-SER/internal/transport"
)

// Mode represents the active recording mode
type Mode int

const (
	ModeIdle Mode = iota
	ModeRealtime
	ModeBounded
)

// String returns a human-readable mode name
func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeRealtime:
		return "realtime"
	case ModeBounded:
		return "bounded"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// ErrModeActive is returned when a mode is activated while another one is
// active. Modes never transition into each other directly; both funnel
// through Idle.
var ErrModeActive = errors.New("another recording mode is active")

// Status is a point-in-time snapshot of the controller for observability
type Status struct {
	Mode           string           `json:"mode"`
	Epoch          uint64           `json:"epoch"`
	ActivationID   string           `json:"activation_id,omitempty"`
	LiveTracks     int              `json:"live_tracks"`
	MicLevel       float64          `json:"mic_level"`
	TransportState string           `json:"transport_state"`
	LastResult     *protocol.Result `json:"last_result,omitempty"`
}

// Controller is the top-level session state machine. Exactly one recording
// mode is active at a time; every activation mints a new epoch and every
// asynchronous continuation (timer fire, encoder flush, socket event) checks
// its captured epoch under the controller mutex before acting.
type Controller struct {
	cfg       *config.Config
	logger    *slog.Logger
	metrics   *metrics.Metrics
	predictor *predict.Client
	factory   capture.CapturerFactory

	mu           sync.Mutex
	mode         Mode
	epoch        uint64
	activationID string

	timer     *time.Timer
	encoder   *audio.Encoder
	capture   *capture.Session
	transport *transport.Transport
	format    audio.Format

	lastResult *protocol.Result
	onResult   func(protocol.Result)
	onError    func(error)
}

// NewController creates an idle controller. A nil capturer factory selects
// the default microphone backend.
func NewController(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics,
	predictor *predict.Client, factory capture.CapturerFactory) *Controller {

	return &Controller{
		cfg:       cfg,
		logger:    logger,
		metrics:   m,
		predictor: predictor,
		factory:   factory,
		mode:      ModeIdle,
	}
}

// CurrentMode returns the active recording mode
func (c *Controller) CurrentMode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// CurrentEpoch returns the epoch of the most recent transition
func (c *Controller) CurrentEpoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// LastResult returns a copy of the most recently applied inference result,
// or nil when none is displayed
func (c *Controller) LastResult() *protocol.Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lastResult == nil {
		return nil
	}
	result := *c.lastResult
	return &result
}

// OnResult registers the listener invoked for every applied result
func (c *Controller) OnResult(fn func(protocol.Result)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onResult = fn
}

// OnError registers the listener invoked for surfaced failures
func (c *Controller) OnError(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = fn
}

// Status returns a snapshot of the controller state
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := Status{
		Mode:           c.mode.String(),
		Epoch:          c.epoch,
		ActivationID:   c.activationID,
		TransportState: "none",
	}

	if c.capture != nil {
		status.LiveTracks = c.capture.LiveTracks()
		status.MicLevel = c.capture.Level()
	}
	if c.transport != nil {
		status.TransportState = c.transport.State().String()
	}
	if c.lastResult != nil {
		result := *c.lastResult
		status.LastResult = &result
	}

	return status
}

// Deactivate tears down whichever mode is active. It is idempotent and safe
// to call when nothing is active. All resource releases run even if one
// fails; failures are logged, never propagated.
func (c *Controller) Deactivate() {
	c.mu.Lock()
	if c.mode == ModeIdle {
		c.mu.Unlock()
		return
	}

	mode := c.mode
	c.epoch++
	timer, enc, sess, tr := c.timer, c.encoder, c.capture, c.transport
	c.timer, c.encoder, c.capture, c.transport = nil, nil, nil, nil
	c.mode = ModeIdle
	c.activationID = ""
	c.mu.Unlock()

	c.releaseAll(timer, enc, sess, tr)

	c.metrics.RecordDeactivation(mode.String())
	c.logger.Info("recording mode deactivated", slog.String("mode", mode.String()))
}

// Close tears the controller down. Component unmount funnels through the
// same guaranteed-release path as a manual deactivation.
func (c *Controller) Close() {
	c.Deactivate()
}

// releaseAll performs the four isolated teardown releases: cancel the timer,
// stop the encoder (tolerating one already in a terminal state), release the
// capture device, close the transport. A failure in one never skips the rest.
func (c *Controller) releaseAll(timer *time.Timer, enc *audio.Encoder, sess *capture.Session, tr *transport.Transport) {
	if timer != nil {
		timer.Stop()
	}

	if enc != nil {
		if _, err := enc.Stop(); err != nil && !errors.Is(err, audio.ErrEncoderStopped) {
			c.logger.Warn("encoder stop failed during teardown", slog.String("error", err.Error()))
		}
	}

	if sess != nil {
		if err := sess.Release(); err != nil {
			c.logger.Warn("capture release failed during teardown", slog.String("error", err.Error()))
		}
	}

	if tr != nil {
		if err := tr.Close(); err != nil {
			c.logger.Warn("transport close failed during teardown", slog.String("error", err.Error()))
		}
	}
}

// abortActivation rolls the controller back to Idle after a failed
// activation, provided no other transition happened in the meantime
func (c *Controller) abortActivation(epoch uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch == epoch && c.mode != ModeIdle {
		c.epoch++
		c.mode = ModeIdle
		c.activationID = ""
	}
}

// epochMatches reports whether the captured epoch is still current
func (c *Controller) epochMatches(epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch == epoch
}

// applyResult installs a new displayed result, last write wins
func (c *Controller) applyResult(result protocol.Result) {
	c.mu.Lock()
	c.lastResult = &result
	fn := c.onResult
	c.mu.Unlock()

	if fn != nil {
		fn(result)
	}
}

// clearResult drops the displayed result
func (c *Controller) clearResult() {
	c.mu.Lock()
	c.lastResult = nil
	c.mu.Unlock()
}

// emitError surfaces a failure to the registered listener
func (c *Controller) emitError(err error) {
	c.mu.Lock()
	fn := c.onError
	c.mu.Unlock()

	if fn != nil {
		fn(err)
	}
}
