package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/okieraised/go-deepfake-pipeline/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAnalysis(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewAnalysisMetrics(registry)
	require.NoError(t, err)

	m.RecordAnalysis(config.MediaTypeImage, 120*time.Millisecond, &config.VerdictReport{IsFake: true, Type: config.MediaTypeImage}, nil)
	m.RecordAnalysis(config.MediaTypeImage, 80*time.Millisecond, &config.VerdictReport{IsFake: false, Type: config.MediaTypeImage}, nil)
	m.RecordAnalysis(config.MediaTypeVideo, time.Second, nil,
		config.NewAnalysisFailure(config.ErrNoFacesDetected, config.MediaTypeVideo, nil))
	m.RecordAnalysis("", time.Millisecond, nil, config.NewAnalysisFailure(config.ErrDecode, "", nil))

	assert.Equal(t, float64(2), testutil.ToFloat64(m.AnalysesTotal.WithLabelValues("image", OutcomeSuccess)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.AnalysesTotal.WithLabelValues("video", "no_faces_detected")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.AnalysesTotal.WithLabelValues("unknown", "decode_error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.VerdictsTotal.WithLabelValues("image", VerdictFake)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.VerdictsTotal.WithLabelValues("image", VerdictReal)))
	assert.Equal(t, 3, testutil.CollectAndCount(m.AnalysisDuration))
}

func TestSetModelAvailable(t *testing.T) {
	m, err := NewAnalysisMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.SetModelAvailable(true)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ModelAvailable))
	m.SetModelAvailable(false)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.ModelAvailable))
}

func TestNewAnalysisMetrics_DuplicateRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := NewAnalysisMetrics(registry)
	require.NoError(t, err)

	_, err = NewAnalysisMetrics(registry)
	assert.Error(t, err)
}

func TestFailureOutcome(t *testing.T) {
	testCases := []struct {
		err      error
		expected string
	}{
		{nil, OutcomeSuccess},
		{config.NewAnalysisFailure(config.ErrNoFaceDetected, config.MediaTypeImage, nil), "no_face_detected"},
		{config.NewAnalysisFailure(config.ErrNoFramesReadable, config.MediaTypeVideo, config.ErrOpen), "no_frames_readable"},
		{config.NewAnalysisFailure(config.ErrPreprocess, config.MediaTypeImage, nil), "preprocess_error"},
		{config.NewAnalysisFailure(config.ErrModelUnavailable, config.MediaTypeImage, nil), "model_unavailable"},
		{fmt.Errorf("wrapped: %w", config.ErrOpen), "open_error"},
		{errors.New("boom"), "internal_error"},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.expected, FailureOutcome(tc.err))
	}
}
