package modules

import (
	"testing"

	"github.com/okieraised/go-deepfake-pipeline/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
	"gorgonia.org/tensor"
)

type staticDetector struct {
	candidates []config.FaceDetectionOutput
}

func (d staticDetector) Detect(gocv.Mat) ([]config.FaceDetectionOutput, error) {
	return d.candidates, nil
}

func candidate(x1, y1, x2, y2, score float32) config.FaceDetectionOutput {
	return config.FaceDetectionOutput{
		Box:   tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(4), tensor.WithBacking([]float32{x1, y1, x2, y2})),
		Score: tensor.New(tensor.FromScalar(score)),
	}
}

func newTestFrame(rows, cols int) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(10, 20, 30, 0), rows, cols, gocv.MatTypeCV8UC3)
}

func TestFaceLocator_PicksMostConfident(t *testing.T) {
	frame := newTestFrame(100, 120)
	defer frame.Close()

	locator := NewFaceLocator(staticDetector{candidates: []config.FaceDetectionOutput{
		candidate(0, 0, 10, 10, 0.91),
		candidate(20, 30, 60, 80, 0.99),
		candidate(50, 50, 70, 70, 0.95),
	}}, config.DefaultFaceDetectionParams, nil)

	crop, err := locator.Locate(frame)
	require.NoError(t, err)
	require.NotNil(t, crop)
	defer crop.Close()

	assert.InDelta(t, 0.99, crop.Confidence, 1e-6)
	assert.Equal(t, config.BoundingBox{X1: 15, Y1: 25, X2: 65, Y2: 85}, crop.Box)
	assert.Equal(t, 60, crop.Image.Rows())
	assert.Equal(t, 50, crop.Image.Cols())
}

func TestFaceLocator_ClampsMarginToFrame(t *testing.T) {
	frame := newTestFrame(50, 40)
	defer frame.Close()

	locator := NewFaceLocator(staticDetector{candidates: []config.FaceDetectionOutput{
		candidate(-3, 2, 38, 49, 0.97),
	}}, config.DefaultFaceDetectionParams, nil)

	crop, err := locator.Locate(frame)
	require.NoError(t, err)
	require.NotNil(t, crop)
	defer crop.Close()

	assert.Equal(t, config.BoundingBox{X1: 0, Y1: 0, X2: 40, Y2: 50}, crop.Box)
	assert.Equal(t, 50, crop.Image.Rows())
	assert.Equal(t, 40, crop.Image.Cols())
}

func TestFaceLocator_NoCandidates(t *testing.T) {
	frame := newTestFrame(20, 20)
	defer frame.Close()

	crop, err := NewFaceLocator(staticDetector{}, nil, nil).Locate(frame)
	assert.NoError(t, err)
	assert.Nil(t, crop)
}

func TestFaceLocator_BelowThreshold(t *testing.T) {
	frame := newTestFrame(20, 20)
	defer frame.Close()

	params := config.NewFaceDetectionParams("scrfd", 127.5, 1/127.5, 0.7, 5, 0)
	locator := NewFaceLocator(staticDetector{candidates: []config.FaceDetectionOutput{
		candidate(2, 2, 10, 10, 0.69),
	}}, params, nil)

	crop, err := locator.Locate(frame)
	assert.NoError(t, err)
	assert.Nil(t, crop)

	params.ConfidenceThreshold = 0.69
	crop, err = locator.Locate(frame)
	require.NoError(t, err)
	require.NotNil(t, crop)
	crop.Close()
}

func TestFaceLocator_DegenerateBoxGivesEmptyCrop(t *testing.T) {
	frame := newTestFrame(20, 20)
	defer frame.Close()

	locator := NewFaceLocator(staticDetector{candidates: []config.FaceDetectionOutput{
		candidate(60, 60, 80, 80, 0.99),
	}}, config.DefaultFaceDetectionParams, nil)

	crop, err := locator.Locate(frame)
	require.NoError(t, err)
	require.NotNil(t, crop)
	defer crop.Close()

	assert.True(t, crop.Box.Empty())
	assert.True(t, crop.Image.Empty())

	face, err := NewFaceNormalizer(224, 224).Normalize(crop.Image)
	assert.NoError(t, err)
	assert.Nil(t, face)
}
