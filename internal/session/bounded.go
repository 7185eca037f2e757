package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/roh1t-coder/Speech-Emotion-Recognition-SER/internal/audio"
	"github.com/roh1t-coder/Speech-Emotion-Recognition-SER/internal/capture"
)

// StartBounded begins a single bounded recording: one capture session, one
// encoder, one hard-cap timer. The recording flushes exactly one segment,
// uploaded via the one-shot prediction endpoint when the cap fires or
// StopBounded is called, whichever comes first. Calling StartBounded while a
// bounded recording is active is a no-op; while Realtime is active it fails
// with ErrModeActive.
func (c *Controller) StartBounded() error {
	c.mu.Lock()
	if c.mode == ModeBounded {
		c.mu.Unlock()
		return nil
	}
	if c.mode != ModeIdle {
		mode := c.mode
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrModeActive, mode)
	}
	c.epoch++
	epoch := c.epoch
	c.mode = ModeBounded
	c.activationID = uuid.New().String()
	activationID := c.activationID
	c.mu.Unlock()

	logger := c.logger.With(
		slog.String("activation_id", activationID),
		slog.Uint64("epoch", epoch),
	)

	sess, err := capture.Acquire(c.cfg, logger, c.metrics, c.factory)
	if err != nil {
		c.abortActivation(epoch)
		return err
	}

	format, err := audio.Negotiate(audio.PriorityFormats())
	if err != nil {
		c.releaseAll(nil, nil, sess, nil)
		c.abortActivation(epoch)
		return &capture.DeviceError{Op: "negotiate", Err: err}
	}

	enc := audio.NewEncoder(format, sess.Frames(), c.cfg.Audio.SampleRate, logger)
	if err := enc.Start(); err != nil {
		c.releaseAll(nil, nil, sess, nil)
		c.abortActivation(epoch)
		return fmt.Errorf("failed to start recording encoder: %w", err)
	}

	c.mu.Lock()
	if c.epoch != epoch || c.mode != ModeBounded {
		c.mu.Unlock()
		c.releaseAll(nil, enc, sess, nil)
		return fmt.Errorf("bounded activation superseded during setup")
	}
	c.capture = sess
	c.encoder = enc
	c.format = format
	c.timer = time.AfterFunc(c.cfg.Bounded.GetMaxDuration(), func() { c.finishBounded(epoch, "cap") })
	c.mu.Unlock()

	c.metrics.RecordActivation(ModeBounded.String())
	logger.Info("bounded recording started",
		slog.String("format", format.Name),
		slog.Duration("cap", c.cfg.Bounded.GetMaxDuration()),
	)

	return nil
}

// StopBounded ends the bounded recording before the cap. It is a no-op when
// no bounded recording is active.
func (c *Controller) StopBounded() {
	c.mu.Lock()
	if c.mode != ModeBounded {
		c.mu.Unlock()
		return
	}
	epoch := c.epoch
	c.mu.Unlock()

	c.finishBounded(epoch, "manual")
}

// finishBounded performs the single stop+upload of a bounded recording. The
// cap timer and a manual stop both funnel through here; the first caller
// advances the epoch so the loser of the race is a no-op, and the cap timer
// is always cancelled.
func (c *Controller) finishBounded(epoch uint64, reason string) {
	c.mu.Lock()
	if c.epoch != epoch || c.mode != ModeBounded {
		c.mu.Unlock()
		return
	}
	c.epoch++
	timer, enc, sess := c.timer, c.encoder, c.capture
	format := c.format
	c.timer, c.encoder, c.capture = nil, nil, nil
	c.mode = ModeIdle
	c.activationID = ""
	c.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}

	seg, stopErr := enc.Stop()

	if err := sess.Release(); err != nil {
		c.logger.Warn("capture release failed", slog.String("error", err.Error()))
	}

	c.metrics.RecordDeactivation(ModeBounded.String())

	if stopErr != nil {
		c.logger.Error("bounded recording flush failed", slog.String("error", stopErr.Error()))
		c.emitError(stopErr)
		return
	}

	if seg.Empty() {
		c.logger.Info("bounded recording captured no audio, skipping upload",
			slog.String("reason", reason))
		return
	}

	c.metrics.RecordChunkEncoded(seg.Duration.Seconds(), seg.Size())
	c.logger.Info("bounded recording flushed",
		slog.String("reason", reason),
		slog.Duration("duration", seg.Duration),
		slog.Int("bytes", seg.Size()),
	)

	filename := fmt.Sprintf("bounded_%s.%s", uuid.New().String(), format.Ext)
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Backend.GetRequestTimeout())
	defer cancel()

	result, err := c.predictor.Predict(ctx, seg, filename)
	if err != nil {
		c.clearResult()
		c.emitError(err)
		c.logger.Warn("bounded prediction failed", slog.String("error", err.Error()))
		return
	}

	c.applyResult(*result)
}
