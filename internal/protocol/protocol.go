package protocol

import (
	"encoding/json"
	"fmt"
)

// Wire contract constants
const (
	// JSON field names used by the inference backend
	FieldEmotion    = "emotion"
	FieldConfidence = "confidence"
	FieldError      = "error"
	FieldDetail     = "detail"

	// Confidence bounds (percent)
	MinConfidence = 0
	MaxConfidence = 100
)

// Result represents one inference result from the backend
type Result struct {
	Emotion    string  `json:"emotion"`
	Confidence float64 `json:"confidence"` // percent in [0, 100]
}

// ServerMessage represents one decoded text frame from the streaming socket:
// either a result or a server-side error report
type ServerMessage struct {
	Result *Result
	Error  string
}

// rawMessage mirrors the union wire shape; pointer fields distinguish
// absent from zero-valued
type rawMessage struct {
	Emotion    *string  `json:"emotion"`
	Confidence *float64 `json:"confidence"`
	Error      *string  `json:"error"`
}

// IsError reports whether the message carries a server error instead of a result
func (m *ServerMessage) IsError() bool {
	return m.Result == nil
}

// ParseServerMessage parses one text frame from the streaming socket.
// A frame must be a JSON object carrying either an emotion/confidence pair
// or an error string; anything else is malformed and should be dropped.
func ParseServerMessage(data []byte) (*ServerMessage, error) {
	var raw rawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("frame is not valid JSON: %w", err)
	}

	if raw.Error != nil {
		return &ServerMessage{Error: *raw.Error}, nil
	}

	if raw.Emotion == nil || raw.Confidence == nil {
		return nil, fmt.Errorf("frame carries neither a result nor an error")
	}

	result := &Result{Emotion: *raw.Emotion, Confidence: *raw.Confidence}
	if err := result.Validate(); err != nil {
		return nil, fmt.Errorf("invalid result frame: %w", err)
	}

	return &ServerMessage{Result: result}, nil
}

// ParsePredictionResponse parses the JSON body of a successful /predict response
func ParsePredictionResponse(data []byte) (*Result, error) {
	var raw rawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("response is not valid JSON: %w", err)
	}

	if raw.Emotion == nil || raw.Confidence == nil {
		return nil, fmt.Errorf("response missing emotion or confidence field")
	}

	result := &Result{Emotion: *raw.Emotion, Confidence: *raw.Confidence}
	if err := result.Validate(); err != nil {
		return nil, fmt.Errorf("invalid prediction response: %w", err)
	}

	return result, nil
}

// ParseErrorDetail extracts the detail string from a non-2xx /predict body.
// The backend reports failures as {"detail": "..."}; when the body does not
// match that shape the raw body is returned as-is.
func ParseErrorDetail(data []byte) string {
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(data, &body); err != nil || body.Detail == "" {
		return string(data)
	}
	return body.Detail
}

// Validate checks the result against the wire contract bounds
func (r *Result) Validate() error {
	if r.Emotion == "" {
		return fmt.Errorf("emotion cannot be empty")
	}

	if r.Confidence < MinConfidence || r.Confidence > MaxConfidence {
		return fmt.Errorf("confidence must be between %d and %d, got %g",
			MinConfidence, MaxConfidence, r.Confidence)
	}

	return nil
}

// String returns a human-readable representation of the result
func (r *Result) String() string {
	return fmt.Sprintf("Result{Emotion:%q, Confidence:%.0f}", r.Emotion, r.Confidence)
}

// String returns a human-readable representation of the server message
func (m *ServerMessage) String() string {
	if m.IsError() {
		return fmt.Sprintf("ServerMessage{Error:%q}", m.Error)
	}
	return fmt.Sprintf("ServerMessage{%s}", m.Result.String())
}
