package go_deepfake_pipeline

import (
	"errors"
	"io"
	"log/slog"
	"math"

	"github.com/okieraised/go-deepfake-pipeline/config"
	"github.com/okieraised/go-deepfake-pipeline/modules"
	"gocv.io/x/gocv"
	"gorgonia.org/tensor"
)

const testFrameSize = 64

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// newFrame returns a frame whose pixels all equal value; value 255 marks a frame with a face.
func newFrame(value float64) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(value, value, value, 0), testFrameSize, testFrameSize, gocv.MatTypeCV8UC3)
}

func candidate(x1, y1, x2, y2, score float32) config.FaceDetectionOutput {
	return config.FaceDetectionOutput{
		Box:   tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(4), tensor.WithBacking([]float32{x1, y1, x2, y2})),
		Score: tensor.New(tensor.FromScalar(score)),
	}
}

// brightFaceDetector finds one confident face in bright frames and nothing in dark ones.
type brightFaceDetector struct{}

func (brightFaceDetector) Detect(img gocv.Mat) ([]config.FaceDetectionOutput, error) {
	if img.GetVecbAt(0, 0)[0] < 128 {
		return nil, nil
	}
	return []config.FaceDetectionOutput{
		candidate(4, 4, 20, 20, 0.75),
		candidate(8, 8, 40, 40, 0.98),
	}, nil
}

type failingDetector struct{}

func (failingDetector) Detect(gocv.Mat) ([]config.FaceDetectionOutput, error) {
	return nil, errors.New("detector offline")
}

// scriptedRuntime is a sigmoid-scalar classifier returning the logits of a fixed score sequence.
type scriptedRuntime struct {
	scores     []float32
	next       int
	evalCalls  int
	batchSizes []int
	panicOn    bool
}

func logit(p float32) float32 {
	return float32(math.Log(float64(p) / float64(1-p)))
}

func (r *scriptedRuntime) Signature() config.ModelSignature {
	return config.ModelSignature{Input: []int64{3, 32, 32}, Output: []int64{1}}
}

func (r *scriptedRuntime) Eval() error {
	r.evalCalls++
	return nil
}

func (r *scriptedRuntime) Forward(batch *tensor.Dense) (*tensor.Dense, error) {
	if r.panicOn {
		panic("runtime fault")
	}
	n := batch.Shape()[0]
	r.batchSizes = append(r.batchSizes, n)
	logits := make([]float32, n)
	for i := range logits {
		logits[i] = logit(r.scores[r.next%len(r.scores)])
		r.next++
	}
	return tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(n, 1), tensor.WithBacking(logits)), nil
}

func (r *scriptedRuntime) Close() error {
	return nil
}

// fakeVideo serves generated frames; faces marks the indices holding a face.
type fakeVideo struct {
	frames     int
	faces      map[int]bool
	unreadable map[int]bool
	closed     bool
}

func (v *fakeVideo) FrameCount() int {
	return v.frames
}

func (v *fakeVideo) ReadFrameAt(index int) (gocv.Mat, bool) {
	if index >= v.frames || v.unreadable[index] {
		return gocv.Mat{}, false
	}
	if v.faces[index] {
		return newFrame(255), true
	}
	return newFrame(0), true
}

func (v *fakeVideo) Close() error {
	v.closed = true
	return nil
}

type fakeDecoder struct {
	videos  map[string]*fakeVideo
	noFaces bool
}

func (d *fakeDecoder) DecodeImage(content []byte) (gocv.Mat, error) {
	if string(content) == "corrupt" {
		return gocv.Mat{}, config.ErrDecode
	}
	if d.noFaces {
		return newFrame(0), nil
	}
	return newFrame(255), nil
}

func (d *fakeDecoder) OpenVideo(path string) (modules.VideoHandle, error) {
	video, ok := d.videos[path]
	if !ok {
		return nil, config.ErrOpen
	}
	return video, nil
}

func newTestPipeline(detector modules.FaceDetector, runtime modules.ClassifierRuntime, decoder *fakeDecoder, opts ...PipelineOption) *DeepfakePipeline {
	opts = append([]PipelineOption{WithLogger(discardLogger), WithMediaDecoder(decoder)}, opts...)
	return NewDeepfakePipeline(detector, runtime, config.DefaultFaceDetectionParams, config.DefaultClassifierParams, opts...)
}
