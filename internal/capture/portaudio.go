package capture

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/roh1t-coder/Speech-Emotion-Recognition-SER/internal/config"
)

// PortAudioCapturer reads mono 16-bit PCM from the default input device.
// It owns the PortAudio host lifecycle: Initialize on construction,
// Terminate on Stop.
type PortAudioCapturer struct {
	sampleRate      int
	framesPerBuffer int
	logger          *slog.Logger

	stream *portaudio.Stream
	buf    []int16
	frames chan []int16

	mu      sync.Mutex
	running bool
	err     error

	stopCh chan struct{}
	done   chan struct{}
}

// NewPortAudioCapturer opens the default input device
func NewPortAudioCapturer(cfg config.AudioConfig, logger *slog.Logger) (Capturer, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize audio host: %w", err)
	}

	buf := make([]int16, cfg.FramesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(cfg.SampleRate), cfg.FramesPerBuffer, buf)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open default input stream: %w", err)
	}

	return &PortAudioCapturer{
		sampleRate:      cfg.SampleRate,
		framesPerBuffer: cfg.FramesPerBuffer,
		logger:          logger,
		stream:          stream,
		buf:             buf,
		frames:          make(chan []int16, 32),
		stopCh:          make(chan struct{}),
		done:            make(chan struct{}),
	}, nil
}

// Start begins the blocking read loop
func (p *PortAudioCapturer) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("capturer already running")
	}

	if err := p.stream.Start(); err != nil {
		return fmt.Errorf("failed to start input stream: %w", err)
	}

	p.running = true
	go p.readLoop()

	return nil
}

func (p *PortAudioCapturer) readLoop() {
	defer close(p.done)
	defer close(p.frames)

	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		if err := p.stream.Read(); err != nil {
			if err == portaudio.InputOverflowed {
				// the host skipped samples; the stream itself is still healthy
				p.logger.Debug("input overflow, samples skipped")
				continue
			}
			p.setErr(fmt.Errorf("input stream read failed: %w", err))
			return
		}

		frame := make([]int16, len(p.buf))
		copy(frame, p.buf)

		select {
		case p.frames <- frame:
		default:
			p.logger.Debug("frame dropped, consumer lagging")
		}
	}
}

// Stop ends the read loop and releases the device and host
func (p *PortAudioCapturer) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		p.stream.Close()
		portaudio.Terminate()
		return nil
	}
	p.running = false
	p.mu.Unlock()

	close(p.stopCh)
	<-p.done

	var firstErr error
	if err := p.stream.Stop(); err != nil {
		firstErr = fmt.Errorf("failed to stop input stream: %w", err)
	}
	if err := p.stream.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to close input stream: %w", err)
	}
	if err := portaudio.Terminate(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to terminate audio host: %w", err)
	}

	return firstErr
}

// Frames returns the PCM frame channel
func (p *PortAudioCapturer) Frames() <-chan []int16 {
	return p.frames
}

// Err returns the first fatal stream error, nil while healthy
func (p *PortAudioCapturer) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// IsRunning reports whether the read loop is active
func (p *PortAudioCapturer) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *PortAudioCapturer) setErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err == nil {
		p.err = err
	}
	p.running = false
}
