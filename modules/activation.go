package modules

import (
	"fmt"

	"github.com/okieraised/go-deepfake-pipeline/config"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

/*
activate turns raw classifier logits into one "real" probability per item.
Inputs:

  - kind (config.ModelKind): two-class-softmax or sigmoid-scalar.
  - logits (*tensor.Dense): [N, 2] or [N] / [N, 1] logits; not modified.
  - n (int): batch size.

Outputs:

  - ([]float32): n scores in [0, 1].
*/
func activate(kind config.ModelKind, logits *tensor.Dense, n int) ([]float32, error) {
	values, ok := logits.Data().([]float32)
	if !ok {
		return nil, fmt.Errorf("expected float32 logits, got %v", logits.Dtype())
	}

	switch kind {
	case config.ModelKindTwoClassSoftmax:
		if len(values) != n*2 {
			return nil, fmt.Errorf("expected %d logits for %d items, got %d", n*2, n, len(values))
		}
		// softmax(l0, l1)[1] == sigmoid(l1 - l0), computed per row.
		margins := make([]float32, n)
		for i := range margins {
			margins[i] = values[i*2+1] - values[i*2]
		}
		return runActivation(margins, []int{n}, gorgonia.Sigmoid)

	case config.ModelKindSigmoidScalar:
		if len(values) != n {
			return nil, fmt.Errorf("expected %d logits for %d items, got %d", n, n, len(values))
		}
		return runActivation(values, []int{n}, gorgonia.Sigmoid)
	}
	return nil, fmt.Errorf("no activation for model kind %q", kind)
}

// runActivation evaluates op over a copy of values on a forward-only tape machine.
func runActivation(values []float32, shape []int, op func(*gorgonia.Node) (*gorgonia.Node, error)) ([]float32, error) {
	backing := make([]float32, len(values))
	copy(backing, values)
	input := tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(shape...),
		tensor.WithBacking(backing),
	)

	g := gorgonia.NewGraph()
	x := gorgonia.NodeFromAny(g, input, gorgonia.WithName("logits"))
	out, err := op(x)
	if err != nil {
		return nil, err
	}

	vm := gorgonia.NewTapeMachine(g)
	defer vm.Close()
	if err = vm.RunAll(); err != nil {
		return nil, err
	}

	result, ok := out.Value().Data().([]float32)
	if !ok {
		return nil, fmt.Errorf("unexpected activation output %T", out.Value().Data())
	}
	scores := make([]float32, len(result))
	copy(scores, result)
	return scores, nil
}
