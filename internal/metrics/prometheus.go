package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the capture engine
type Metrics struct {
	// Session metrics
	Activations   *prometheus.CounterVec
	Deactivations *prometheus.CounterVec
	ModeActive    *prometheus.GaugeVec

	// Capture metrics
	DeviceAcquisitions *prometheus.CounterVec
	LiveTracks         prometheus.Gauge
	FramesCaptured     prometheus.Counter
	FramesDropped      prometheus.Counter
	MicLevel           prometheus.Gauge

	// Encoder metrics
	ChunksEncoded prometheus.Counter
	ChunkDuration prometheus.Histogram
	ChunkSize     prometheus.Histogram

	// Transport metrics
	ChunksSent        prometheus.Counter
	ChunkSendErrors   prometheus.Counter
	ResultsReceived   prometheus.Counter
	ServerErrors      prometheus.Counter
	MalformedMessages prometheus.Counter

	// Prediction metrics
	PredictionRequests  prometheus.Counter
	PredictionSuccesses prometheus.Counter
	PredictionFailures  prometheus.Counter
	PredictionDuration  prometheus.Histogram
}

// NewMetrics creates all engine metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Session metrics
		Activations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ser_activations_total",
			Help: "Total number of mode activations",
		}, []string{"mode"}),
		Deactivations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ser_deactivations_total",
			Help: "Total number of mode deactivations",
		}, []string{"mode"}),
		ModeActive: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ser_mode_active",
			Help: "Whether a recording mode is currently active (1 or 0)",
		}, []string{"mode"}),

		// Capture metrics
		DeviceAcquisitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ser_device_acquisitions_total",
			Help: "Total number of capture device acquisition attempts",
		}, []string{"status"}),
		LiveTracks: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ser_capture_live_tracks",
			Help: "Current number of live capture tracks",
		}),
		FramesCaptured: factory.NewCounter(prometheus.CounterOpts{
			Name: "ser_frames_captured_total",
			Help: "Total number of PCM frame blocks read from the device",
		}),
		FramesDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "ser_frames_dropped_total",
			Help: "Total number of PCM frame blocks dropped because the consumer lagged",
		}),
		MicLevel: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ser_mic_level",
			Help: "Smoothed microphone RMS level between 0 and 1",
		}),

		// Encoder metrics
		ChunksEncoded: factory.NewCounter(prometheus.CounterOpts{
			Name: "ser_chunks_encoded_total",
			Help: "Total number of flushed audio segments",
		}),
		ChunkDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ser_chunk_duration_seconds",
			Help:    "Duration of flushed audio segments",
			Buckets: []float64{0.25, 0.5, 1.0, 1.35, 2.0, 3.0, 5.0},
		}),
		ChunkSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ser_chunk_size_bytes",
			Help:    "Size of flushed audio segments",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		}),

		// Transport metrics
		ChunksSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "ser_chunks_sent_total",
			Help: "Total number of binary frames sent on the streaming socket",
		}),
		ChunkSendErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "ser_chunk_send_errors_total",
			Help: "Total number of failed binary frame sends",
		}),
		ResultsReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "ser_results_received_total",
			Help: "Total number of result frames received from the backend",
		}),
		ServerErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "ser_server_errors_total",
			Help: "Total number of error frames received from the backend",
		}),
		MalformedMessages: factory.NewCounter(prometheus.CounterOpts{
			Name: "ser_malformed_messages_total",
			Help: "Total number of dropped malformed socket frames",
		}),

		// Prediction metrics
		PredictionRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "ser_prediction_requests_total",
			Help: "Total number of one-shot prediction requests",
		}),
		PredictionSuccesses: factory.NewCounter(prometheus.CounterOpts{
			Name: "ser_prediction_successes_total",
			Help: "Total number of successful one-shot predictions",
		}),
		PredictionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "ser_prediction_failures_total",
			Help: "Total number of failed one-shot predictions",
		}),
		PredictionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ser_prediction_duration_seconds",
			Help:    "Duration of one-shot prediction requests",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// RecordActivation records a mode activation
func (m *Metrics) RecordActivation(mode string) {
	m.Activations.WithLabelValues(mode).Inc()
	m.ModeActive.WithLabelValues(mode).Set(1)
}

// RecordDeactivation records a mode deactivation
func (m *Metrics) RecordDeactivation(mode string) {
	m.Deactivations.WithLabelValues(mode).Inc()
	m.ModeActive.WithLabelValues(mode).Set(0)
}

// RecordDeviceAcquisition records a capture device acquisition attempt
func (m *Metrics) RecordDeviceAcquisition(ok bool) {
	status := "ok"
	if !ok {
		status = "error"
	}
	m.DeviceAcquisitions.WithLabelValues(status).Inc()
}

// SetLiveTracks sets the current number of live capture tracks
func (m *Metrics) SetLiveTracks(count int) {
	m.LiveTracks.Set(float64(count))
}

// RecordFrameCaptured increments the captured frame counter
func (m *Metrics) RecordFrameCaptured() {
	m.FramesCaptured.Inc()
}

// RecordFrameDropped increments the dropped frame counter
func (m *Metrics) RecordFrameDropped() {
	m.FramesDropped.Inc()
}

// SetMicLevel sets the current smoothed microphone level
func (m *Metrics) SetMicLevel(level float64) {
	m.MicLevel.Set(level)
}

// RecordChunkEncoded records a flushed audio segment
func (m *Metrics) RecordChunkEncoded(durationSeconds float64, sizeBytes int) {
	m.ChunksEncoded.Inc()
	m.ChunkDuration.Observe(durationSeconds)
	m.ChunkSize.Observe(float64(sizeBytes))
}

// RecordChunkSent increments the sent frame counter
func (m *Metrics) RecordChunkSent() {
	m.ChunksSent.Inc()
}

// RecordChunkSendError increments the send error counter
func (m *Metrics) RecordChunkSendError() {
	m.ChunkSendErrors.Inc()
}

// RecordResultReceived increments the received result counter
func (m *Metrics) RecordResultReceived() {
	m.ResultsReceived.Inc()
}

// RecordServerError increments the server error frame counter
func (m *Metrics) RecordServerError() {
	m.ServerErrors.Inc()
}

// RecordMalformedMessage increments the malformed frame counter
func (m *Metrics) RecordMalformedMessage() {
	m.MalformedMessages.Inc()
}

// RecordPredictionRequest increments the prediction request counter
func (m *Metrics) RecordPredictionRequest() {
	m.PredictionRequests.Inc()
}

// RecordPredictionSuccess records a successful prediction
func (m *Metrics) RecordPredictionSuccess(durationSeconds float64) {
	m.PredictionSuccesses.Inc()
	m.PredictionDuration.Observe(durationSeconds)
}

// RecordPredictionFailure records a failed prediction
func (m *Metrics) RecordPredictionFailure(durationSeconds float64) {
	m.PredictionFailures.Inc()
	m.PredictionDuration.Observe(durationSeconds)
}
