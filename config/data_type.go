package config

import (
	"image"
	"math"
	"path/filepath"
	"strings"

	"gorgonia.org/tensor"
)

type FaceDetectionOutput struct {
	Box      *tensor.Dense
	Score    *tensor.Dense
	ClassID  *tensor.Dense
	Landmark *tensor.Dense
}

// Confidence returns the detector score of the candidate, 0 when it is missing.
func (o FaceDetectionOutput) Confidence() float32 {
	if o.Score == nil {
		return 0
	}
	switch v := o.Score.Data().(type) {
	case float32:
		return v
	case []float32:
		if len(v) > 0 {
			return v[0]
		}
	}
	return 0
}

// BoundingBox rounds the x1, y1, x2, y2 box of the candidate to pixels.
func (o FaceDetectionOutput) BoundingBox() BoundingBox {
	if o.Box == nil {
		return BoundingBox{}
	}
	coords, ok := o.Box.Data().([]float32)
	if !ok || len(coords) < 4 {
		return BoundingBox{}
	}
	return BoundingBox{
		X1: int(math.Round(float64(coords[0]))),
		Y1: int(math.Round(float64(coords[1]))),
		X2: int(math.Round(float64(coords[2]))),
		Y2: int(math.Round(float64(coords[3]))),
	}
}

type Size struct {
	Width  int
	Height int
}

func (s *Size) Max() int {
	if s.Height > s.Width {
		return s.Height
	}
	return s.Width
}

func (s *Size) Min() int {
	if s.Height < s.Width {
		return s.Height
	}
	return s.Width
}

// BoundingBox is a face box in source pixel coordinates, X2/Y2 exclusive.
type BoundingBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

func (b BoundingBox) Width() int {
	return b.X2 - b.X1
}

func (b BoundingBox) Height() int {
	return b.Y2 - b.Y1
}

func (b BoundingBox) Empty() bool {
	return b.Width() <= 0 || b.Height() <= 0
}

func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.X1, b.Y1, b.X2, b.Y2)
}

// MediaType routes an analysis to the image or video pipeline.
type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
)

// ModelKind is the calling convention of the loaded classifier.
type ModelKind string

const (
	ModelKindAuto            ModelKind = "auto"
	ModelKindTwoClassSoftmax ModelKind = "two-class-softmax"
	ModelKindSigmoidScalar   ModelKind = "sigmoid-scalar"
	ModelKindUnavailable     ModelKind = "unavailable"
)

// ModelSignature describes the per-item input and output shapes of a classifier,
// without the batch dimension. Negative dimensions are dynamic.
type ModelSignature struct {
	Input  []int64 `json:"input"`
	Output []int64 `json:"output"`
}

// ChannelsLast reports whether the input is laid out as [H, W, 3].
func (s ModelSignature) ChannelsLast() bool {
	return len(s.Input) == 3 && s.Input[2] == 3
}

// ChannelsFirst reports whether the input is laid out as [3, H, W].
func (s ModelSignature) ChannelsFirst() bool {
	return len(s.Input) == 3 && s.Input[0] == 3
}

// OutputWidth returns the number of values produced per item, 1 for a scalar output.
func (s ModelSignature) OutputWidth() int64 {
	width := int64(1)
	for _, d := range s.Output {
		width *= d
	}
	return width
}

// SpatialSize returns the fixed input resolution, or ok=false when it is dynamic.
func (s ModelSignature) SpatialSize() (height, width int, ok bool) {
	var h, w int64
	switch {
	case s.ChannelsLast():
		h, w = s.Input[0], s.Input[1]
	case s.ChannelsFirst():
		h, w = s.Input[1], s.Input[2]
	default:
		return 0, 0, false
	}
	if h <= 0 || w <= 0 {
		return 0, 0, false
	}
	return int(h), int(w), true
}

// VerdictReport defines the structure of a finished analysis.
type VerdictReport struct {
	IsFake     bool          `json:"isFake"`     // IsFake is true when the aggregate score is at or below 0.5.
	Confidence float64       `json:"confidence"` // Confidence is the distance from the boundary toward the chosen label, in percent.
	Type       MediaType     `json:"type"`       // Type is the analysed media kind.
	Details    *VideoDetails `json:"details"`    // Details is only populated for videos.
}

// SamplingDetails counts what the video pipeline read before scoring.
type SamplingDetails struct {
	FramesTotal     int `json:"framesTotal"`     // FramesTotal is the frame count reported by the container.
	FramesExtracted int `json:"framesExtracted"` // FramesExtracted is the number of sampled indices, whether or not they decoded.
	FramesDecoded   int `json:"framesDecoded"`   // FramesDecoded is the number of sampled indices that produced a frame.
}

type VideoDetails struct {
	SamplingDetails
	FacesAnalyzed  int     `json:"facesAnalyzed"`
	FaceDetected   float64 `json:"faceDetected"` // FaceDetected is facesAnalyzed / framesExtracted in percent.
	RealFrames     float64 `json:"realFrames"`
	FakeFrames     float64 `json:"fakeFrames"`
	RealFrameCount int     `json:"realFrameCount"`
	FakeFrameCount int     `json:"fakeFrameCount"`
	AverageScore   float64 `json:"averageScore"`
}

var (
	imageExtensions = map[string]struct{}{"jpg": {}, "jpeg": {}, "png": {}, "bmp": {}}
	videoExtensions = map[string]struct{}{"mp4": {}, "avi": {}, "mov": {}}
)

// MediaTypeFromPath classifies a file by extension, ok is false for unsupported extensions.
func MediaTypeFromPath(path string) (MediaType, bool) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if _, ok := imageExtensions[ext]; ok {
		return MediaTypeImage, true
	}
	if _, ok := videoExtensions[ext]; ok {
		return MediaTypeVideo, true
	}
	return "", false
}
