package modules

import (
	"log/slog"

	"github.com/okieraised/go-deepfake-pipeline/config"
	"github.com/okieraised/go-deepfake-pipeline/utils"
	"gocv.io/x/gocv"
)

// FaceCrop is the sub-image around the most confident face of a frame.
// Image owns its pixels and must be closed by the consumer.
type FaceCrop struct {
	Image      gocv.Mat
	Box        config.BoundingBox
	Confidence float32
}

func (f *FaceCrop) Close() error {
	return f.Image.Close()
}

type FaceLocator struct {
	detector FaceDetector
	params   *config.FaceDetectionParams
	logger   *slog.Logger
}

func NewFaceLocator(detector FaceDetector, params *config.FaceDetectionParams, logger *slog.Logger) *FaceLocator {
	if params == nil {
		params = config.DefaultFaceDetectionParams
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FaceLocator{
		detector: detector,
		params:   params,
		logger:   logger.With("component", "face_locator"),
	}
}

/*
Locate crops the most confident face from the frame.
Inputs:

  - frame (gocv.Mat): RGB frame.

Outputs:

  - (*FaceCrop): the face expanded by the configured margin and clamped to the frame,
    nil when there is no candidate or the best candidate is below the confidence threshold.
*/
func (l *FaceLocator) Locate(frame gocv.Mat) (*FaceCrop, error) {
	candidates, err := l.detector.Detect(frame)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	best := candidates[0]
	for _, candidate := range candidates[1:] {
		if candidate.Confidence() > best.Confidence() {
			best = candidate
		}
	}

	confidence := best.Confidence()
	if confidence < l.params.ConfidenceThreshold {
		l.logger.Debug("best face below threshold", "confidence", confidence, "threshold", l.params.ConfidenceThreshold)
		return nil, nil
	}

	box := l.expand(best.BoundingBox(), frame.Cols(), frame.Rows())
	crop := &FaceCrop{
		Box:        box,
		Confidence: confidence,
	}
	if box.Empty() {
		crop.Image = gocv.NewMat()
		return crop, nil
	}

	region := frame.Region(box.Rect())
	crop.Image = region.Clone()
	region.Close()
	return crop, nil
}

func (l *FaceLocator) expand(box config.BoundingBox, width, height int) config.BoundingBox {
	margin := l.params.Margin
	return config.BoundingBox{
		X1: utils.Clamp(box.X1-margin, 0, width),
		Y1: utils.Clamp(box.Y1-margin, 0, height),
		X2: utils.Clamp(box.X2+margin, 0, width),
		Y2: utils.Clamp(box.Y2+margin, 0, height),
	}
}
