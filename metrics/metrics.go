// Package metrics provides Prometheus metrics for deepfake analyses.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/okieraised/go-deepfake-pipeline/config"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess = "success"

	VerdictReal = "real"
	VerdictFake = "fake"
)

// AnalysisMetrics contains all Prometheus metrics related to media analysis.
type AnalysisMetrics struct {
	AnalysesTotal    *prometheus.CounterVec
	AnalysisDuration *prometheus.HistogramVec
	VerdictsTotal    *prometheus.CounterVec
	ModelAvailable   prometheus.Gauge

	registry *prometheus.Registry
}

// NewAnalysisMetrics creates the analysis metrics and registers them on registry.
func NewAnalysisMetrics(registry *prometheus.Registry) (*AnalysisMetrics, error) {
	m := &AnalysisMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register analysis metrics: %w", err)
	}
	return m, nil
}

func (m *AnalysisMetrics) initMetrics() {
	m.AnalysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deepfake_analyses_total",
			Help: "Total number of analyses partitioned by media type and outcome",
		},
		[]string{"media_type", "outcome"},
	)

	m.AnalysisDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deepfake_analysis_duration_seconds",
			Help:    "Time taken to analyse one media file",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		},
		[]string{"media_type"},
	)

	m.VerdictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deepfake_verdicts_total",
			Help: "Total number of verdicts partitioned by media type and label",
		},
		[]string{"media_type", "verdict"},
	)

	m.ModelAvailable = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "deepfake_model_available",
			Help: "Whether the deepfake classifier is loaded (1) or scoring is disabled (0)",
		},
	)
}

/*
RecordAnalysis records one finished analysis.
Inputs:

  - mediaType (config.MediaType): analysed media kind, may be empty when routing failed.
  - duration (time.Duration): wall time of the analysis.
  - report (*config.VerdictReport): the verdict, nil on failure.
  - err (error): the analysis failure, nil on success.
*/
func (m *AnalysisMetrics) RecordAnalysis(mediaType config.MediaType, duration time.Duration, report *config.VerdictReport, err error) {
	label := string(mediaType)
	if label == "" {
		label = "unknown"
	}

	m.AnalysisDuration.WithLabelValues(label).Observe(duration.Seconds())
	if err != nil {
		m.AnalysesTotal.WithLabelValues(label, FailureOutcome(err)).Inc()
		return
	}

	m.AnalysesTotal.WithLabelValues(label, OutcomeSuccess).Inc()
	if report == nil {
		return
	}
	verdict := VerdictReal
	if report.IsFake {
		verdict = VerdictFake
	}
	m.VerdictsTotal.WithLabelValues(label, verdict).Inc()
}

// SetModelAvailable records whether scoring is enabled.
func (m *AnalysisMetrics) SetModelAvailable(available bool) {
	if available {
		m.ModelAvailable.Set(1)
		return
	}
	m.ModelAvailable.Set(0)
}

// FailureOutcome returns the outcome label for an analysis error.
func FailureOutcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, config.ErrNoFaceDetected):
		return "no_face_detected"
	case errors.Is(err, config.ErrNoFacesDetected):
		return "no_faces_detected"
	case errors.Is(err, config.ErrNoFramesReadable):
		return "no_frames_readable"
	case errors.Is(err, config.ErrDecode):
		return "decode_error"
	case errors.Is(err, config.ErrOpen):
		return "open_error"
	case errors.Is(err, config.ErrPreprocess):
		return "preprocess_error"
	case errors.Is(err, config.ErrModelUnavailable):
		return "model_unavailable"
	default:
		return "internal_error"
	}
}

// Describe implements the prometheus.Collector interface.
func (m *AnalysisMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.AnalysesTotal.Describe(ch)
	m.AnalysisDuration.Describe(ch)
	m.VerdictsTotal.Describe(ch)
	m.ModelAvailable.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *AnalysisMetrics) Collect(ch chan<- prometheus.Metric) {
	m.AnalysesTotal.Collect(ch)
	m.AnalysisDuration.Collect(ch)
	m.VerdictsTotal.Collect(ch)
	m.ModelAvailable.Collect(ch)
}
