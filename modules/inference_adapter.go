package modules

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/okieraised/go-deepfake-pipeline/config"
	"gorgonia.org/tensor"
)

// ClassifyModel derives the calling convention from a classifier signature.
func ClassifyModel(sig config.ModelSignature) config.ModelKind {
	switch {
	case sig.ChannelsLast() && sig.OutputWidth() == 2:
		return config.ModelKindTwoClassSoftmax
	case sig.ChannelsFirst() && sig.OutputWidth() == 1:
		return config.ModelKindSigmoidScalar
	}
	return config.ModelKindUnavailable
}

// InferenceAdapter scores normalized faces with whichever classifier convention was loaded.
// The kind is fixed at construction and the runtime is only read afterwards.
type InferenceAdapter struct {
	runtime   ClassifierRuntime
	kind      config.ModelKind
	signature config.ModelSignature
	logger    *slog.Logger
}

/*
NewInferenceAdapter classifies the runtime once and switches it to evaluation mode.
Inputs:

  - runtime (ClassifierRuntime): loaded classifier, nil when no model could be loaded.
  - override (config.ModelKind): forces a kind, config.ModelKindAuto to infer it from the signature.
  - logger (*slog.Logger): may be nil.

Outputs:

  - (*InferenceAdapter): never nil; its kind is unavailable when the model cannot be used.
*/
func NewInferenceAdapter(runtime ClassifierRuntime, override config.ModelKind, logger *slog.Logger) *InferenceAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	adapter := &InferenceAdapter{
		kind:   config.ModelKindUnavailable,
		logger: logger.With("component", "inference_adapter"),
	}
	if runtime == nil {
		adapter.logger.Warn("no classifier loaded, scoring disabled")
		return adapter
	}

	adapter.runtime = runtime
	adapter.signature = runtime.Signature()
	kind := ClassifyModel(adapter.signature)
	if override != "" && override != config.ModelKindAuto {
		kind = override
	}
	if kind == config.ModelKindUnavailable {
		adapter.logger.Warn("unrecognized classifier signature, scoring disabled",
			"input", adapter.signature.Input, "output", adapter.signature.Output)
		return adapter
	}

	if err := runtime.Eval(); err != nil {
		adapter.logger.Warn("failed to switch classifier to evaluation mode, scoring disabled", "error", err)
		return adapter
	}
	adapter.kind = kind
	adapter.logger.Info("classifier ready", "kind", kind, "input", adapter.signature.Input, "output", adapter.signature.Output)
	return adapter
}

func (a *InferenceAdapter) Kind() config.ModelKind {
	return a.kind
}

func (a *InferenceAdapter) Available() bool {
	return a.kind != config.ModelKindUnavailable
}

func (a *InferenceAdapter) Signature() config.ModelSignature {
	return a.signature
}

/*
Score runs one batch of faces through the classifier.
Inputs:

  - faces ([]*tensor.Dense): [H, W, 3] tensors in [0, 1], all of the same shape; not modified.

Outputs:

  - ([]float32): one probability of "real" per face, in input order.
*/
func (a *InferenceAdapter) Score(faces []*tensor.Dense) ([]float32, error) {
	if !a.Available() {
		return nil, config.ErrModelUnavailable
	}
	if len(faces) == 0 {
		return []float32{}, nil
	}

	batch, err := a.buildBatch(faces)
	if err != nil {
		return nil, err
	}

	logits, err := a.runtime.Forward(batch)
	if err != nil {
		return nil, fmt.Errorf("classifier forward: %w", err)
	}
	return activate(a.kind, logits, len(faces))
}

// buildBatch stacks faces into NHWC and transposes to NCHW for channel-first models.
func (a *InferenceAdapter) buildBatch(faces []*tensor.Dense) (*tensor.Dense, error) {
	itemShape := []int(faces[0].Shape())
	if len(itemShape) != 3 || itemShape[2] != 3 {
		return nil, fmt.Errorf("expected [H, W, 3] faces, got %v", itemShape)
	}
	itemSize := itemShape[0] * itemShape[1] * itemShape[2]

	backing := make([]float32, 0, itemSize*len(faces))
	for i, face := range faces {
		if !slices.Equal([]int(face.Shape()), itemShape) {
			return nil, fmt.Errorf("face %d has shape %v, expected %v", i, face.Shape(), itemShape)
		}
		data, ok := face.Data().([]float32)
		if !ok || len(data) != itemSize {
			return nil, fmt.Errorf("face %d is not a dense float32 tensor", i)
		}
		backing = append(backing, data...)
	}

	batch := tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(len(faces), itemShape[0], itemShape[1], itemShape[2]),
		tensor.WithBacking(backing),
	)
	if a.kind != config.ModelKindSigmoidScalar {
		return batch, nil
	}

	if err := batch.T(0, 3, 1, 2); err != nil {
		return nil, err
	}
	if err := batch.Transpose(); err != nil {
		return nil, err
	}
	return batch, nil
}

func (a *InferenceAdapter) Close() error {
	if a.runtime == nil {
		return nil
	}
	return a.runtime.Close()
}
