package config

import "time"

type FaceDetectionParams struct {
	ModelName           string        `json:"model_name"`
	Mean                float64       `json:"mean"`
	Scale               float64       `json:"scale"`
	ConfidenceThreshold float32       `json:"confidence_threshold"`
	Margin              int           `json:"margin"`
	Timeout             time.Duration `json:"timeout"`
}

func NewFaceDetectionParams(modelName string, mean, scale float64, confidenceThreshold float32, margin int, timeout time.Duration) *FaceDetectionParams {
	return &FaceDetectionParams{
		ModelName:           modelName,
		Mean:                mean,
		Scale:               scale,
		ConfidenceThreshold: confidenceThreshold,
		Margin:              margin,
		Timeout:             timeout,
	}
}

var DefaultFaceDetectionParams = &FaceDetectionParams{
	ModelName:           "scrfd",
	Mean:                127.5,
	Scale:               0.00784313725490196,
	ConfidenceThreshold: 0.9,
	Margin:              5,
	Timeout:             10 * time.Second,
}

// Backend selects the runtime that executes the deepfake classifier.
type Backend string

const (
	BackendAuto   Backend = "auto"
	BackendTriton Backend = "triton"
	BackendONNX   Backend = "onnx"
	BackendTFLite Backend = "tflite"
)

type ClassifierParams struct {
	ModelName  string        `json:"model_name"`
	ModelPath  string        `json:"model_path"`
	Backend    Backend       `json:"backend"`
	Kind       ModelKind     `json:"kind"`
	ImgSize    int           `json:"img_size"`
	NumThreads int           `json:"num_threads"`
	Timeout    time.Duration `json:"timeout"`
}

func NewClassifierParams(modelName, modelPath string, backend Backend, kind ModelKind, imgSize, numThreads int, timeout time.Duration) *ClassifierParams {
	return &ClassifierParams{
		ModelName:  modelName,
		ModelPath:  modelPath,
		Backend:    backend,
		Kind:       kind,
		ImgSize:    imgSize,
		NumThreads: numThreads,
		Timeout:    timeout,
	}
}

var DefaultClassifierParams = &ClassifierParams{
	ModelName:  "deepfake_detector",
	Backend:    BackendAuto,
	Kind:       ModelKindAuto,
	ImgSize:    224,
	NumThreads: 4,
	Timeout:    10 * time.Second,
}

type VideoParams struct {
	FrameSkip int `json:"frame_skip"`
}

func NewVideoParams(frameSkip int) *VideoParams {
	return &VideoParams{
		FrameSkip: frameSkip,
	}
}

var DefaultVideoParams = &VideoParams{
	FrameSkip: 3,
}
