package audio

import (
	"fmt"
	"math"
	"sync"
)

// Meter tracks a smoothed microphone input level from PCM frames.
// Levels are RMS energy normalized to [0, 1].
type Meter struct {
	smoothing float64

	mu      sync.RWMutex
	level   float64
	updates uint64
}

// NewMeter creates a level meter with the given smoothing factor in (0, 1].
// Higher factors follow the signal faster, lower factors smooth harder.
func NewMeter(smoothing float64) (*Meter, error) {
	if smoothing <= 0 || smoothing > 1 {
		return nil, fmt.Errorf("smoothing must be in (0, 1], got %f", smoothing)
	}

	return &Meter{smoothing: smoothing}, nil
}

// Update folds one frame block into the level and returns the new value
func (m *Meter) Update(samples []int16) float64 {
	if len(samples) == 0 {
		return m.Level()
	}

	var energy float64
	for _, sample := range samples {
		energy += float64(sample) * float64(sample)
	}
	rms := math.Sqrt(energy/float64(len(samples))) / 32768.0
	if rms > 1 {
		rms = 1
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.updates == 0 {
		m.level = rms
	} else {
		m.level = m.smoothing*rms + (1-m.smoothing)*m.level
	}
	m.updates++

	return m.level
}

// Level returns the current smoothed level
func (m *Meter) Level() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.level
}

// Reset clears the meter state
func (m *Meter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.level = 0
	m.updates = 0
}
