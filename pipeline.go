package go_deepfake_pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/okieraised/go-deepfake-pipeline/config"
	"github.com/okieraised/go-deepfake-pipeline/modules"
	"gorgonia.org/tensor"
)

// DeepfakePipeline defines the structure of the deepfake detection pipeline.
// It holds no per-request state and may be shared by concurrent callers.
type DeepfakePipeline struct {
	Locator     *modules.FaceLocator
	Normalizer  *modules.FaceNormalizer
	Adapter     *modules.InferenceAdapter
	decoder     modules.MediaDecoder
	videoParams *config.VideoParams
	logger      *slog.Logger
	onFrame     func(sampled, total int)
}

type PipelineOption func(*DeepfakePipeline)

func WithLogger(logger *slog.Logger) PipelineOption {
	return func(p *DeepfakePipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func WithMediaDecoder(decoder modules.MediaDecoder) PipelineOption {
	return func(p *DeepfakePipeline) {
		if decoder != nil {
			p.decoder = decoder
		}
	}
}

func WithVideoParams(params *config.VideoParams) PipelineOption {
	return func(p *DeepfakePipeline) {
		if params != nil {
			p.videoParams = params
		}
	}
}

// WithFrameProgress registers a callback fired after each sampled video frame.
func WithFrameProgress(fn func(sampled, total int)) PipelineOption {
	return func(p *DeepfakePipeline) {
		p.onFrame = fn
	}
}

/*
NewDeepfakePipeline initializes a new pipeline.
Inputs:

  - detector (modules.FaceDetector): face detector used by the locator.
  - runtime (modules.ClassifierRuntime): loaded classifier, nil runs the pipeline in degraded mode.
  - detectionParams (*config.FaceDetectionParams): locator threshold and margin.
  - classifierParams (*config.ClassifierParams): model kind override and fallback input size.

Outputs:

  - (*DeepfakePipeline): ready pipeline; the classifier is in evaluation mode.
*/
func NewDeepfakePipeline(
	detector modules.FaceDetector,
	runtime modules.ClassifierRuntime,
	detectionParams *config.FaceDetectionParams,
	classifierParams *config.ClassifierParams,
	opts ...PipelineOption,
) *DeepfakePipeline {
	if classifierParams == nil {
		classifierParams = config.DefaultClassifierParams
	}

	pipeline := &DeepfakePipeline{
		decoder:     modules.NewGocvMediaDecoder(),
		videoParams: config.DefaultVideoParams,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(pipeline)
	}

	pipeline.Adapter = modules.NewInferenceAdapter(runtime, classifierParams.Kind, pipeline.logger)

	// Prefer the resolution baked into the model over the configured one.
	height, width, ok := pipeline.Adapter.Signature().SpatialSize()
	if !ok {
		height, width = classifierParams.ImgSize, classifierParams.ImgSize
	}
	pipeline.Normalizer = modules.NewFaceNormalizer(height, width)
	pipeline.Locator = modules.NewFaceLocator(detector, detectionParams, pipeline.logger)

	return pipeline
}

// ModelKind returns the calling convention of the loaded classifier.
func (p *DeepfakePipeline) ModelKind() config.ModelKind {
	return p.Adapter.Kind()
}

func (p *DeepfakePipeline) Close() error {
	return p.Adapter.Close()
}

/*
Analyze routes the file to the image or video pipeline.
Inputs:

  - path (string): file to analyse.
  - hint (config.MediaType): media kind, empty to infer it from the file extension.

Outputs:

  - (*config.VerdictReport): the verdict, nil on failure.
  - (error): always a *config.AnalysisFailure when not nil.
*/
func (p *DeepfakePipeline) Analyze(path string, hint config.MediaType) (*config.VerdictReport, error) {
	if hint == "" {
		mediaType, ok := config.MediaTypeFromPath(path)
		if !ok {
			return nil, config.NewAnalysisFailure(config.ErrDecode, "", fmt.Errorf("unsupported file type: %s", path))
		}
		hint = mediaType
	}

	switch hint {
	case config.MediaTypeImage:
		return p.AnalyzeImage(path)
	case config.MediaTypeVideo:
		return p.AnalyzeVideo(path)
	}
	return nil, config.NewAnalysisFailure(config.ErrDecode, hint, fmt.Errorf("unknown media type %q", hint))
}

// AnalyzeImage reads the image at path and returns its verdict.
func (p *DeepfakePipeline) AnalyzeImage(path string) (*config.VerdictReport, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, config.NewAnalysisFailure(config.ErrDecode, config.MediaTypeImage, err)
	}
	return p.AnalyzeImageBytes(content)
}

/*
AnalyzeImageBytes scores the single most confident face of an encoded image.
Inputs:

  - content ([]byte): encoded image.

Outputs:

  - (*config.VerdictReport): the verdict without details.
*/
func (p *DeepfakePipeline) AnalyzeImageBytes(content []byte) (report *config.VerdictReport, err error) {
	start := time.Now()
	defer p.recoverFailure(config.MediaTypeImage, &report, &err)

	img, err := p.decoder.DecodeImage(content)
	if err != nil {
		return nil, config.NewAnalysisFailure(config.ErrDecode, config.MediaTypeImage, err)
	}
	defer img.Close()

	crop, err := p.Locator.Locate(img)
	if err != nil {
		return nil, config.NewAnalysisFailure(config.ErrInternal, config.MediaTypeImage, fmt.Errorf("face detection: %w", err))
	}
	if crop == nil {
		return nil, config.NewAnalysisFailure(config.ErrNoFaceDetected, config.MediaTypeImage, nil)
	}
	defer crop.Close()

	face, err := p.Normalizer.Normalize(crop.Image)
	if err != nil || face == nil {
		return nil, config.NewAnalysisFailure(config.ErrPreprocess, config.MediaTypeImage, err)
	}

	scores, err := p.score([]*tensor.Dense{face}, config.MediaTypeImage)
	if err != nil {
		return nil, err
	}

	report = Verdict(float64(scores[0]), config.MediaTypeImage)
	p.logger.Info("analysis finished",
		"media_type", config.MediaTypeImage,
		"is_fake", report.IsFake,
		"confidence", report.Confidence,
		"face_confidence", crop.Confidence,
		"duration", time.Since(start),
	)
	return report, nil
}

func (p *DeepfakePipeline) score(faces []*tensor.Dense, mediaType config.MediaType) ([]float32, error) {
	scores, err := p.Adapter.Score(faces)
	if errors.Is(err, config.ErrModelUnavailable) {
		return nil, config.NewAnalysisFailure(config.ErrModelUnavailable, mediaType, nil)
	}
	if err != nil {
		return nil, config.NewAnalysisFailure(config.ErrInternal, mediaType, err)
	}
	if len(scores) != len(faces) {
		return nil, config.NewAnalysisFailure(config.ErrInternal, mediaType,
			fmt.Errorf("classifier returned %d scores for %d faces", len(scores), len(faces)))
	}
	for i, s := range scores {
		if math.IsNaN(float64(s)) || math.IsInf(float64(s), 0) || s < 0 || s > 1 {
			return nil, config.NewAnalysisFailure(config.ErrInternal, mediaType,
				fmt.Errorf("classifier returned score %v for face %d", s, i))
		}
	}
	return scores, nil
}

// recoverFailure turns a panic from the numeric or OpenCV runtime into an internal failure.
func (p *DeepfakePipeline) recoverFailure(mediaType config.MediaType, report **config.VerdictReport, err *error) {
	r := recover()
	if r == nil {
		return
	}
	p.logger.Error("analysis panicked", "media_type", mediaType, "panic", r)
	*report = nil
	*err = config.NewAnalysisFailure(config.ErrInternal, mediaType, fmt.Errorf("panic: %v", r))
}
