package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/roh1t-coder/Speech-Emotion-Recognition-SER/internal/audio"
	"github.com/roh1t-coder/Speech-Emotion-Recognition-SER/internal/capture"
	"github.com/roh1t-coder/Speech-Emotion-Recognition-SER/internal/protocol"
	"github.com/roh1t-coder/Speech-Emotion-Recognition-SER/internal/transport"
)

// ActivateRealtime starts the continuous chunk cycle: open the streaming
// transport, acquire the capture device, negotiate the encoding format, then
// encode back-to-back fixed-window chunks and send each flushed segment as
// one binary frame. The cycle runs until the mode is deactivated or the
// transport closes. Activation failures leave no partial resources behind.
func (c *Controller) ActivateRealtime(ctx context.Context) error {
	c.mu.Lock()
	if c.mode != ModeIdle {
		mode := c.mode
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrModeActive, mode)
	}
	c.epoch++
	epoch := c.epoch
	c.mode = ModeRealtime
	c.activationID = uuid.New().String()
	activationID := c.activationID
	c.mu.Unlock()

	logger := c.logger.With(
		slog.String("activation_id", activationID),
		slog.Uint64("epoch", epoch),
	)

	tr, err := transport.Dial(ctx, c.cfg.Backend.WSURL, logger, c.metrics)
	if err != nil {
		c.abortActivation(epoch)
		return fmt.Errorf("failed to open streaming transport: %w", err)
	}

	sess, err := capture.Acquire(c.cfg, logger, c.metrics, c.factory)
	if err != nil {
		c.releaseAll(nil, nil, nil, tr)
		c.abortActivation(epoch)
		return err
	}

	format, err := audio.Negotiate(audio.PriorityFormats())
	if err != nil {
		c.releaseAll(nil, nil, sess, tr)
		c.abortActivation(epoch)
		return &capture.DeviceError{Op: "negotiate", Err: err}
	}

	enc := audio.NewEncoder(format, sess.Frames(), c.cfg.Audio.SampleRate, logger)
	if err := enc.Start(); err != nil {
		c.releaseAll(nil, nil, sess, tr)
		c.abortActivation(epoch)
		return fmt.Errorf("failed to start chunk encoder: %w", err)
	}

	c.mu.Lock()
	if c.epoch != epoch || c.mode != ModeRealtime {
		c.mu.Unlock()
		c.releaseAll(nil, enc, sess, tr)
		return fmt.Errorf("realtime activation superseded during setup")
	}
	c.transport = tr
	c.capture = sess
	c.encoder = enc
	c.format = format
	c.timer = time.AfterFunc(c.cfg.Realtime.GetChunkWindow(), func() { c.chunkFire(epoch) })
	c.mu.Unlock()

	tr.Listen(&realtimeHandler{controller: c, epoch: epoch})

	c.metrics.RecordActivation(ModeRealtime.String())
	logger.Info("realtime mode active",
		slog.String("format", format.Name),
		slog.Duration("chunk_window", c.cfg.Realtime.GetChunkWindow()),
	)

	return nil
}

// chunkFire is the chunk timer continuation. It stops the running encoder,
// sends the flushed segment while the transport is open, and immediately
// starts the next encoder under the same epoch. Every step re-validates the
// epoch; a stale fire is a guaranteed no-op.
func (c *Controller) chunkFire(epoch uint64) {
	c.mu.Lock()
	if c.epoch != epoch || c.mode != ModeRealtime || c.encoder == nil {
		c.mu.Unlock()
		return
	}
	enc := c.encoder
	tr := c.transport
	sess := c.capture
	format := c.format
	c.mu.Unlock()

	// Stop waits for the drain loop, so the segment never carries a
	// partially appended frame.
	seg, err := enc.Stop()
	if err != nil {
		if !errors.Is(err, audio.ErrEncoderStopped) {
			c.logger.Error("chunk flush failed", slog.String("error", err.Error()))
			c.windDown(epoch)
		}
		return
	}

	if !seg.Empty() {
		c.metrics.RecordChunkEncoded(seg.Duration.Seconds(), seg.Size())
	}

	if !c.epochMatches(epoch) {
		// deactivated while flushing; the segment is discarded
		return
	}

	if tr.State() != transport.StateOpen {
		c.logger.Info("transport no longer open, stopping chunk cycle")
		c.windDown(epoch)
		return
	}

	if !seg.Empty() {
		if err := tr.Send(seg.Data); err != nil {
			c.logger.Warn("segment send failed, stopping chunk cycle", slog.String("error", err.Error()))
			c.windDown(epoch)
			return
		}
	}

	next := audio.NewEncoder(format, sess.Frames(), c.cfg.Audio.SampleRate, c.logger)
	if err := next.Start(); err != nil {
		c.logger.Error("failed to start next chunk encoder", slog.String("error", err.Error()))
		c.windDown(epoch)
		return
	}

	c.mu.Lock()
	if c.epoch != epoch || c.mode != ModeRealtime {
		c.mu.Unlock()
		next.Stop()
		return
	}
	c.encoder = next
	c.timer = time.AfterFunc(c.cfg.Realtime.GetChunkWindow(), func() { c.chunkFire(epoch) })
	c.mu.Unlock()
}

// windDown releases the capture side of a realtime activation whose send
// path is gone. The displayed result is left untouched and the mode stays
// Realtime until the user deactivates; advancing the epoch makes any
// in-flight continuation from this activation inert.
func (c *Controller) windDown(epoch uint64) {
	c.mu.Lock()
	if c.epoch != epoch || c.mode != ModeRealtime {
		c.mu.Unlock()
		return
	}
	c.epoch++
	timer, enc, sess := c.timer, c.encoder, c.capture
	c.timer, c.encoder, c.capture = nil, nil, nil
	c.mu.Unlock()

	c.releaseAll(timer, enc, sess, nil)
	c.logger.Info("chunk cycle wound down, awaiting deactivation")
}

// realtimeHandler delivers streaming socket events into the controller,
// bound to the epoch of the activation that opened the connection
type realtimeHandler struct {
	controller *Controller
	epoch      uint64
}

func (h *realtimeHandler) OnResult(result protocol.Result) {
	if !h.controller.epochMatches(h.epoch) {
		return
	}
	h.controller.applyResult(result)
}

func (h *realtimeHandler) OnServerError(msg string) {
	if !h.controller.epochMatches(h.epoch) {
		return
	}
	h.controller.emitError(fmt.Errorf("inference backend reported: %s", msg))
}

func (h *realtimeHandler) OnClosed(err error) {
	h.controller.windDown(h.epoch)
}
