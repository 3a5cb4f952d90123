package modules

import (
	"errors"
	"fmt"
	"sync"

	"github.com/okieraised/go-deepfake-pipeline/config"
	"github.com/okieraised/go-deepfake-pipeline/utils"
	ort "github.com/yalue/onnxruntime_go"
	"gorgonia.org/tensor"
)

var (
	ortInitialized bool
	ortInitMu      sync.Mutex
)

// InitializeOnnxRuntime sets up the ONNX Runtime environment once per process.
func InitializeOnnxRuntime(libraryPath string) error {
	ortInitMu.Lock()
	defer ortInitMu.Unlock()

	if ortInitialized {
		return nil
	}
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
	}
	ortInitialized = true
	return nil
}

// ShutdownOnnxRuntime releases the ONNX Runtime environment.
func ShutdownOnnxRuntime() error {
	ortInitMu.Lock()
	defer ortInitMu.Unlock()

	if !ortInitialized {
		return nil
	}
	if err := ort.DestroyEnvironment(); err != nil {
		return err
	}
	ortInitialized = false
	return nil
}

// OnnxClassifier runs the deepfake classifier in-process with ONNX Runtime.
type OnnxClassifier struct {
	ModelParams *config.ClassifierParams
	inputName   string
	outputName  string
	signature   config.ModelSignature
	session     *ort.DynamicAdvancedSession
}

func NewOnnxClassifier(cfg *config.ClassifierParams) (*OnnxClassifier, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read model info from %s: %w", cfg.ModelPath, err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, fmt.Errorf("model %s has no input or output", cfg.ModelPath)
	}

	return &OnnxClassifier{
		ModelParams: cfg,
		inputName:   inputs[0].Name,
		outputName:  outputs[0].Name,
		signature: config.ModelSignature{
			Input:  dropBatchDim(inputs[0].Dimensions),
			Output: dropBatchDim(outputs[0].Dimensions),
		},
	}, nil
}

func dropBatchDim(dims []int64) []int64 {
	if len(dims) == 0 {
		return []int64{}
	}
	return append([]int64(nil), dims[1:]...)
}

func (c *OnnxClassifier) Signature() config.ModelSignature {
	return c.signature
}

// Eval creates the inference session.
func (c *OnnxClassifier) Eval() error {
	if c.session != nil {
		return nil
	}
	options, err := ort.NewSessionOptions()
	if err != nil {
		return fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	if c.ModelParams.NumThreads > 0 {
		if err = options.SetIntraOpNumThreads(c.ModelParams.NumThreads); err != nil {
			return fmt.Errorf("failed to set thread count: %w", err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(
		c.ModelParams.ModelPath,
		[]string{c.inputName},
		[]string{c.outputName},
		options,
	)
	if err != nil {
		return fmt.Errorf("failed to create session for %s: %w", c.ModelParams.ModelPath, err)
	}
	c.session = session
	return nil
}

func (c *OnnxClassifier) Forward(batch *tensor.Dense) (*tensor.Dense, error) {
	if c.session == nil {
		return nil, ErrNotEvaluating
	}

	n := batch.Shape()[0]
	inputTensor, err := ort.NewTensor(ort.NewShape(utils.ToInt64(batch.Shape())...), batch.Float32s())
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputShape := append([]int64{int64(n)}, c.signature.Output...)
	for _, d := range outputShape {
		if d <= 0 {
			return nil, errors.New("classifier output shape must be static")
		}
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(outputShape...))
	if err != nil {
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer outputTensor.Destroy()

	if err = c.session.Run([]ort.Value{inputTensor}, []ort.Value{outputTensor}); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	raw := outputTensor.GetData()
	logits := make([]float32, len(raw))
	copy(logits, raw)
	return tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(n, len(logits)/n),
		tensor.WithBacking(logits),
	), nil
}

func (c *OnnxClassifier) Close() error {
	if c.session != nil {
		return c.session.Destroy()
	}
	return nil
}
