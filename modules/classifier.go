package modules

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/okieraised/go-deepfake-pipeline/config"
	gotritonclient "github.com/okieraised/go-triton-client"
	"gorgonia.org/tensor"
)

var ErrNotEvaluating = errors.New("classifier must be switched to evaluation mode before inference")

// ClassifierRuntime executes a deepfake classifier on a batch of preprocessed faces.
type ClassifierRuntime interface {
	// Signature returns per-item shapes without the batch dimension.
	Signature() config.ModelSignature
	// Eval puts the model into inference mode. It is called once, before the first Forward.
	Eval() error
	// Forward returns the raw logits for the batch, batch dimension first.
	Forward(batch *tensor.Dense) (*tensor.Dense, error)
	Close() error
}

// ResolveBackend picks the runtime for the classifier, using the model file extension in auto mode.
func ResolveBackend(params *config.ClassifierParams) (config.Backend, error) {
	if params.Backend != "" && params.Backend != config.BackendAuto {
		return params.Backend, nil
	}
	switch ext := strings.ToLower(filepath.Ext(params.ModelPath)); ext {
	case ".onnx":
		return config.BackendONNX, nil
	case ".tflite":
		return config.BackendTFLite, nil
	case "":
		if params.ModelPath == "" {
			return config.BackendTriton, nil
		}
		return "", fmt.Errorf("cannot infer classifier backend from %q", params.ModelPath)
	default:
		return "", fmt.Errorf("unsupported classifier model format %q", ext)
	}
}

/*
LoadClassifierRuntime loads the classifier with the backend selected by params.
Inputs:

  - params (*config.ClassifierParams): classifier parameters.
  - triton (*gotritonclient.TritonGRPCClient): used by the triton backend only, may be nil otherwise.
  - onnxLibraryPath (string): onnxruntime shared library, empty for the system default.

Outputs:

  - (ClassifierRuntime): the loaded runtime, not yet in evaluation mode.
*/
func LoadClassifierRuntime(params *config.ClassifierParams, triton *gotritonclient.TritonGRPCClient, onnxLibraryPath string) (ClassifierRuntime, error) {
	backend, err := ResolveBackend(params)
	if err != nil {
		return nil, err
	}

	switch backend {
	case config.BackendTriton:
		if triton == nil {
			return nil, errors.New("triton backend requires a triton client")
		}
		return NewTritonClassifier(triton, params)
	case config.BackendONNX:
		if err = InitializeOnnxRuntime(onnxLibraryPath); err != nil {
			return nil, err
		}
		return NewOnnxClassifier(params)
	case config.BackendTFLite:
		return NewTFLiteClassifier(params)
	}
	return nil, fmt.Errorf("unknown classifier backend %q", backend)
}
