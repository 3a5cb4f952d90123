package modules

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/okieraised/go-deepfake-pipeline/config"
	"github.com/tphakala/go-tflite"
	"gorgonia.org/tensor"
)

// TFLiteClassifier runs the deepfake classifier with TensorFlow Lite.
// The interpreter is not reentrant, so Forward is serialized.
type TFLiteClassifier struct {
	ModelParams *config.ClassifierParams
	mu          sync.Mutex
	model       *tflite.Model
	options     *tflite.InterpreterOptions
	interpreter *tflite.Interpreter
	signature   config.ModelSignature
	allocated   bool
}

func NewTFLiteClassifier(cfg *config.ClassifierParams) (*TFLiteClassifier, error) {
	model := tflite.NewModelFromFile(cfg.ModelPath)
	if model == nil {
		return nil, fmt.Errorf("cannot load model from %s", cfg.ModelPath)
	}

	threads := cfg.NumThreads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	options := tflite.NewInterpreterOptions()
	options.SetNumThread(threads)

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		options.Delete()
		model.Delete()
		return nil, errors.New("cannot create interpreter")
	}

	return &TFLiteClassifier{
		ModelParams: cfg,
		model:       model,
		options:     options,
		interpreter: interpreter,
		signature: config.ModelSignature{
			Input:  tensorDims(interpreter.GetInputTensor(0)),
			Output: tensorDims(interpreter.GetOutputTensor(0)),
		},
	}, nil
}

// tensorDims returns the tensor dimensions after the batch dimension.
func tensorDims(t *tflite.Tensor) []int64 {
	if t == nil {
		return []int64{}
	}
	dims := make([]int64, 0, t.NumDims())
	for i := 1; i < t.NumDims(); i++ {
		dims = append(dims, int64(t.Dim(i)))
	}
	return dims
}

func (c *TFLiteClassifier) Signature() config.ModelSignature {
	return c.signature
}

// Eval allocates the interpreter tensors.
func (c *TFLiteClassifier) Eval() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.allocated {
		return nil
	}
	if status := c.interpreter.AllocateTensors(); status != tflite.OK {
		return errors.New("tensor allocation failed")
	}
	c.allocated = true
	return nil
}

// Forward invokes the interpreter once per item; the model has a fixed batch of one.
func (c *TFLiteClassifier) Forward(batch *tensor.Dense) (*tensor.Dense, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.allocated {
		return nil, ErrNotEvaluating
	}

	n := batch.Shape()[0]
	itemSize := batch.Size() / n
	data := batch.Float32s()

	var logits []float32
	for i := 0; i < n; i++ {
		input := c.interpreter.GetInputTensor(0)
		if input == nil {
			return nil, errors.New("cannot get input tensor")
		}
		inputData := input.Float32s()
		if len(inputData) != itemSize {
			return nil, fmt.Errorf("input tensor holds %d values, face has %d", len(inputData), itemSize)
		}
		copy(inputData, data[i*itemSize:(i+1)*itemSize])

		if status := c.interpreter.Invoke(); status != tflite.OK {
			return nil, errors.New("tensor invoke failed")
		}

		output := c.interpreter.GetOutputTensor(0)
		if output == nil {
			return nil, errors.New("cannot get output tensor")
		}
		logits = append(logits, output.Float32s()...)
	}

	return tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(n, len(logits)/n),
		tensor.WithBacking(logits),
	), nil
}

func (c *TFLiteClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.interpreter != nil {
		c.interpreter.Delete()
		c.interpreter = nil
	}
	if c.options != nil {
		c.options.Delete()
		c.options = nil
	}
	if c.model != nil {
		c.model.Delete()
		c.model = nil
	}
	return nil
}
