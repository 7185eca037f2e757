package audio

import (
	"errors"
	"sync"
)

// Format names in negotiation priority order
const (
	FormatOpusWebM = "opus-webm"
	FormatWebM     = "webm"
	FormatWAV      = "wav"
)

// ErrEncodingUnsupported means no format in the priority list has an encoder
var ErrEncodingUnsupported = errors.New("no supported encoding format")

// EncodeFunc encodes mono 16-bit PCM samples into a self-contained container
type EncodeFunc func(samples []int16, sampleRate int) ([]byte, error)

// Format describes one encodable container format
type Format struct {
	Name   string
	MIME   string
	Ext    string
	Encode EncodeFunc // nil when no encoder is linked in
}

// Supported reports whether an encoder is available for this format
func (f Format) Supported() bool {
	return f.Encode != nil
}

var (
	webmMu          sync.RWMutex
	webmOpusEncoder EncodeFunc
	webmEncoder     EncodeFunc
)

// RegisterWebMEncoders makes WebM container encoders available to format
// negotiation. The engine ships without one; builds that link a WebM/Opus
// encoder call this from an init function. Either argument may be nil.
func RegisterWebMEncoders(opus, plain EncodeFunc) {
	webmMu.Lock()
	defer webmMu.Unlock()
	webmOpusEncoder = opus
	webmEncoder = plain
}

// PriorityFormats returns the candidate formats in negotiation order:
// preferred codec-in-container first, then the container default, then
// the uncompressed fallback.
func PriorityFormats() []Format {
	webmMu.RLock()
	opus, plain := webmOpusEncoder, webmEncoder
	webmMu.RUnlock()

	return []Format{
		{Name: FormatOpusWebM, MIME: "audio/webm;codecs=opus", Ext: "webm", Encode: opus},
		{Name: FormatWebM, MIME: "audio/webm", Ext: "webm", Encode: plain},
		{Name: FormatWAV, MIME: "audio/wav", Ext: "wav", Encode: EncodeWAV},
	}
}

// Negotiate returns the first supported format from the candidate list
func Negotiate(formats []Format) (Format, error) {
	for _, f := range formats {
		if f.Supported() {
			return f, nil
		}
	}
	return Format{}, ErrEncodingUnsupported
}
