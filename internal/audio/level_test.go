package audio

import (
	"math"
	"testing"
)

func TestNewMeterValidation(t *testing.T) {
	if _, err := NewMeter(0); err == nil {
		t.Error("Expected error for zero smoothing")
	}
	if _, err := NewMeter(1.5); err == nil {
		t.Error("Expected error for smoothing above 1")
	}
	if _, err := NewMeter(0.2); err != nil {
		t.Errorf("Expected valid smoothing to be accepted, got %v", err)
	}
}

func TestMeterSilence(t *testing.T) {
	meter, err := NewMeter(0.2)
	if err != nil {
		t.Fatalf("NewMeter failed: %v", err)
	}

	level := meter.Update(make([]int16, 512))
	if level != 0 {
		t.Errorf("Expected level 0 for silence, got %f", level)
	}
}

func TestMeterFullScaleSine(t *testing.T) {
	meter, err := NewMeter(1.0) // no smoothing, level follows input directly
	if err != nil {
		t.Fatalf("NewMeter failed: %v", err)
	}

	samples := make([]int16, 1024)
	for i := range samples {
		samples[i] = int16(32000 * math.Sin(2*math.Pi*float64(i)/64))
	}

	level := meter.Update(samples)

	// RMS of a full-scale sine is amplitude/sqrt(2)
	expected := (32000.0 / 32768.0) / math.Sqrt2
	if math.Abs(level-expected) > 0.02 {
		t.Errorf("Expected level near %.3f, got %.3f", expected, level)
	}
}

func TestMeterSmoothing(t *testing.T) {
	meter, err := NewMeter(0.5)
	if err != nil {
		t.Fatalf("NewMeter failed: %v", err)
	}

	loud := make([]int16, 256)
	for i := range loud {
		loud[i] = 20000
	}

	first := meter.Update(loud)
	second := meter.Update(make([]int16, 256)) // silence

	if second >= first {
		t.Errorf("Expected level to decay toward silence, got %f -> %f", first, second)
	}
	if second == 0 {
		t.Error("Expected smoothed level to decay gradually, got immediate zero")
	}
}

func TestMeterReset(t *testing.T) {
	meter, err := NewMeter(0.2)
	if err != nil {
		t.Fatalf("NewMeter failed: %v", err)
	}

	loud := make([]int16, 256)
	for i := range loud {
		loud[i] = 20000
	}
	meter.Update(loud)

	meter.Reset()
	if meter.Level() != 0 {
		t.Errorf("Expected level 0 after reset, got %f", meter.Level())
	}
}

func TestMeterEmptyFrame(t *testing.T) {
	meter, err := NewMeter(0.2)
	if err != nil {
		t.Fatalf("NewMeter failed: %v", err)
	}

	loud := make([]int16, 256)
	for i := range loud {
		loud[i] = 10000
	}
	before := meter.Update(loud)

	after := meter.Update(nil)
	if after != before {
		t.Errorf("Expected empty frame to leave level at %f, got %f", before, after)
	}
}
