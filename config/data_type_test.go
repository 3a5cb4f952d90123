package config

import (
	"encoding/json"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func TestModelSignature_Layout(t *testing.T) {
	nhwc := ModelSignature{Input: []int64{224, 224, 3}, Output: []int64{2}}
	assert.True(t, nhwc.ChannelsLast())
	assert.False(t, nhwc.ChannelsFirst())
	assert.Equal(t, int64(2), nhwc.OutputWidth())
	h, w, ok := nhwc.SpatialSize()
	assert.True(t, ok)
	assert.Equal(t, 224, h)
	assert.Equal(t, 224, w)

	nchw := ModelSignature{Input: []int64{3, 128, 96}, Output: []int64{}}
	assert.True(t, nchw.ChannelsFirst())
	assert.Equal(t, int64(1), nchw.OutputWidth())
	h, w, ok = nchw.SpatialSize()
	assert.True(t, ok)
	assert.Equal(t, 128, h)
	assert.Equal(t, 96, w)

	dynamic := ModelSignature{Input: []int64{3, -1, -1}, Output: []int64{1}}
	_, _, ok = dynamic.SpatialSize()
	assert.False(t, ok)

	_, _, ok = ModelSignature{Input: []int64{10}}.SpatialSize()
	assert.False(t, ok)
}

func TestBoundingBox(t *testing.T) {
	box := BoundingBox{X1: 10, Y1: 20, X2: 50, Y2: 80}
	assert.Equal(t, 40, box.Width())
	assert.Equal(t, 60, box.Height())
	assert.False(t, box.Empty())
	assert.Equal(t, image.Rect(10, 20, 50, 80), box.Rect())

	assert.True(t, BoundingBox{X1: 5, Y1: 5, X2: 5, Y2: 9}.Empty())
}

func TestVerdictReport_JSON(t *testing.T) {
	imageReport, err := json.Marshal(VerdictReport{IsFake: true, Confidence: 90, Type: MediaTypeImage})
	require.NoError(t, err)
	assert.JSONEq(t, `{"isFake":true,"confidence":90,"type":"image","details":null}`, string(imageReport))

	video, err := json.Marshal(VerdictReport{
		IsFake:     false,
		Confidence: 71.5,
		Type:       MediaTypeVideo,
		Details: &VideoDetails{
			SamplingDetails: SamplingDetails{FramesTotal: 10, FramesExtracted: 4, FramesDecoded: 4},
			FacesAnalyzed:   2,
			FaceDetected:    50,
			RealFrames:      100,
			RealFrameCount:  2,
			AverageScore:    0.715,
		},
	})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(video, &decoded))
	details := decoded["details"].(map[string]any)
	assert.Equal(t, float64(10), details["framesTotal"])
	assert.Equal(t, float64(4), details["framesExtracted"])
	assert.Equal(t, float64(50), details["faceDetected"])
	assert.Equal(t, float64(0), details["fakeFrames"])
}

func TestFaceDetectionOutput_Accessors(t *testing.T) {
	out := FaceDetectionOutput{
		Box:   tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(4), tensor.WithBacking([]float32{10.4, 20.6, 99.5, 140})),
		Score: tensor.New(tensor.FromScalar(float32(0.97))),
	}
	assert.InDelta(t, 0.97, out.Confidence(), 1e-6)
	assert.Equal(t, BoundingBox{X1: 10, Y1: 21, X2: 100, Y2: 140}, out.BoundingBox())

	assert.Equal(t, float32(0), FaceDetectionOutput{}.Confidence())
	assert.True(t, FaceDetectionOutput{}.BoundingBox().Empty())
}

func TestMediaTypeFromPath(t *testing.T) {
	tests := []struct {
		path     string
		expected MediaType
		ok       bool
	}{
		{"uploads/a.jpg", MediaTypeImage, true},
		{"uploads/a.JPEG", MediaTypeImage, true},
		{"a.png", MediaTypeImage, true},
		{"a.bmp", MediaTypeImage, true},
		{"clip.mp4", MediaTypeVideo, true},
		{"clip.AVI", MediaTypeVideo, true},
		{"clip.mov", MediaTypeVideo, true},
		{"notes.txt", "", false},
		{"noext", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			actual, ok := MediaTypeFromPath(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, actual)
		})
	}
}
