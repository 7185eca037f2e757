package audio

import (
	"bytes"
	"fmt"
	"io"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Segment represents one flushed, independently decodable audio unit.
// Each segment carries its own container header; no sequence metadata is
// attached, ordering is solely the order of transmission.
type Segment struct {
	Data     []byte        // complete container bytes
	MIME     string        // declared container type
	Format   string        // negotiated format name
	Duration time.Duration // audio duration covered by the payload
	Samples  int           // PCM sample count behind the payload
}

// Empty reports whether the segment carries no audio payload
func (s *Segment) Empty() bool {
	return s == nil || len(s.Data) == 0
}

// Size returns the container size in bytes
func (s *Segment) Size() int {
	if s == nil {
		return 0
	}
	return len(s.Data)
}

// String returns a human-readable representation of the segment
func (s *Segment) String() string {
	return fmt.Sprintf("Segment{Format:%s, Size:%d, Duration:%v}", s.Format, s.Size(), s.Duration)
}

// EncodeWAV encodes mono 16-bit PCM samples into a self-contained WAV file
func EncodeWAV(samples []int16, sampleRate int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("no samples to encode")
	}

	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	ws := &writeSeeker{}
	encoder := wav.NewEncoder(ws, sampleRate, 16, 1, 1)

	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		SourceBitDepth: 16,
		Data:           make([]int, len(samples)),
	}
	for i, s := range samples {
		buf.Data[i] = int(s)
	}

	if err := encoder.Write(buf); err != nil {
		return nil, fmt.Errorf("failed to write samples: %w", err)
	}

	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize container: %w", err)
	}

	return ws.Bytes(), nil
}

// DecodeWAV decodes a standalone WAV file into mono PCM samples and its sample rate
func DecodeWAV(data []byte) ([]int16, int, error) {
	decoder := wav.NewDecoder(bytes.NewReader(data))
	if !decoder.IsValidFile() {
		return nil, 0, fmt.Errorf("not a valid WAV file")
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode PCM data: %w", err)
	}

	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = int16(v)
	}

	return samples, int(decoder.SampleRate), nil
}

// writeSeeker is an in-memory io.WriteSeeker for the WAV encoder, which seeks
// back to patch the RIFF size fields on Close
type writeSeeker struct {
	buf []byte
	pos int
}

func (ws *writeSeeker) Write(p []byte) (int, error) {
	if extra := ws.pos + len(p) - len(ws.buf); extra > 0 {
		ws.buf = append(ws.buf, make([]byte, extra)...)
	}
	copy(ws.buf[ws.pos:], p)
	ws.pos += len(p)
	return len(p), nil
}

func (ws *writeSeeker) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(ws.pos) + offset
	case io.SeekEnd:
		abs = int64(len(ws.buf)) + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("negative seek position %d", abs)
	}
	ws.pos = int(abs)
	return abs, nil
}

func (ws *writeSeeker) Bytes() []byte {
	return ws.buf
}
