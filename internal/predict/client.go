package predict

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/roh1t-coder/Speech-Emotion-Recognition-SER/internal/audio"
	"github.com/roh1t-coder/Speech-Emotion-Recognition-SER/internal/config"
	"github.com/roh1t-coder/Speech-Emotion-Recognition-SER/internal/metrics"
	"github.com/roh1t-coder/Speech-Emotion-Recognition-SER/internal/protocol"
)

// Client performs one-shot prediction requests against the inference backend
type Client struct {
	config     config.BackendConfig
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics

	mu              sync.RWMutex
	totalRequests   uint64
	successRequests uint64
	failedRequests  uint64
	lastLatency     time.Duration
}

// Stats represents one-shot prediction client statistics
type Stats struct {
	TotalRequests   uint64        `json:"total_requests"`
	SuccessRequests uint64        `json:"success_requests"`
	FailedRequests  uint64        `json:"failed_requests"`
	LastLatency     time.Duration `json:"last_latency"`
}

// New creates a prediction client for the configured backend
func New(cfg config.BackendConfig, logger *slog.Logger, m *metrics.Metrics) *Client {
	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.GetRequestTimeout(),
		},
		logger:  logger,
		metrics: m,
	}
}

// Predict submits one flushed audio segment as a named file and returns the
// backend's result. Any failure (transport, non-2xx status, unparseable body)
// is returned after exactly one attempt; the client never retries.
func (c *Client) Predict(ctx context.Context, seg *audio.Segment, filename string) (*protocol.Result, error) {
	if seg.Empty() {
		return nil, fmt.Errorf("cannot predict from an empty segment")
	}

	return c.doRequest(ctx, seg.Data, seg.MIME, filename)
}

// PredictFile submits a pre-existing audio file from disk. The payload MIME
// type is inferred from the file extension.
func (c *Client) PredictFile(ctx context.Context, path string) (*protocol.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio file %s: %w", path, err)
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("audio file %s is empty", path)
	}

	return c.doRequest(ctx, data, MIMEForPath(path), filepath.Base(path))
}

// Health probes the backend root endpoint
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("failed to create health request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend health check returned status %d", resp.StatusCode)
	}

	return nil
}

// doRequest performs the single multipart POST to the prediction endpoint
func (c *Client) doRequest(ctx context.Context, data []byte, mimeType, filename string) (*protocol.Result, error) {
	startTime := time.Now()
	c.recordRequest()

	body, contentType, err := buildMultipartBody(data, mimeType, filename)
	if err != nil {
		c.recordFailure(time.Since(startTime))
		return nil, fmt.Errorf("failed to build multipart request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/predict", body)
	if err != nil {
		c.recordFailure(time.Since(startTime))
		return nil, fmt.Errorf("failed to create prediction request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.recordFailure(time.Since(startTime))
		return nil, fmt.Errorf("prediction request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.recordFailure(time.Since(startTime))
		return nil, fmt.Errorf("failed to read prediction response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.recordFailure(time.Since(startTime))
		detail := protocol.ParseErrorDetail(respBody)
		return nil, fmt.Errorf("prediction failed with status %d: %s", resp.StatusCode, detail)
	}

	result, err := protocol.ParsePredictionResponse(respBody)
	if err != nil {
		c.recordFailure(time.Since(startTime))
		return nil, fmt.Errorf("failed to parse prediction response: %w", err)
	}

	latency := time.Since(startTime)
	c.recordSuccess(latency)
	c.logger.Debug("prediction completed",
		slog.String("filename", filename),
		slog.String("emotion", result.Emotion),
		slog.Float64("confidence", result.Confidence),
		slog.Duration("latency", latency),
	)

	return result, nil
}

// buildMultipartBody creates a multipart/form-data body carrying exactly one
// file part named "file" with an explicit payload content type
func buildMultipartBody(data []byte, mimeType, filename string) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	header.Set("Content-Type", mimeType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create file part: %w", err)
	}

	if _, err := part.Write(data); err != nil {
		return nil, "", fmt.Errorf("failed to write audio payload: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}

// MIMEForPath maps an audio file extension to its MIME type
func MIMEForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return "audio/wav"
	case ".webm":
		return "audio/webm"
	case ".ogg":
		return "audio/ogg"
	case ".mp3":
		return "audio/mpeg"
	default:
		return "application/octet-stream"
	}
}

func (c *Client) recordRequest() {
	c.mu.Lock()
	c.totalRequests++
	c.mu.Unlock()

	c.metrics.RecordPredictionRequest()
}

func (c *Client) recordSuccess(latency time.Duration) {
	c.mu.Lock()
	c.successRequests++
	c.lastLatency = latency
	c.mu.Unlock()

	c.metrics.RecordPredictionSuccess(latency.Seconds())
}

func (c *Client) recordFailure(latency time.Duration) {
	c.mu.Lock()
	c.failedRequests++
	c.lastLatency = latency
	c.mu.Unlock()

	c.metrics.RecordPredictionFailure(latency.Seconds())
}

// GetStats returns current client statistics
func (c *Client) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Stats{
		TotalRequests:   c.totalRequests,
		SuccessRequests: c.successRequests,
		FailedRequests:  c.failedRequests,
		LastLatency:     c.lastLatency,
	}
}
