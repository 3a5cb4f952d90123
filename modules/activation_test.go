package modules

import (
	"math"
	"testing"

	"github.com/okieraised/go-deepfake-pipeline/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func logits(shape []int, values ...float32) *tensor.Dense {
	return tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(shape...), tensor.WithBacking(values))
}

func TestActivate_Softmax(t *testing.T) {
	scores, err := activate(config.ModelKindTwoClassSoftmax, logits([]int{2, 2}, 0, 0, 0, float32(math.Log(3))), 2)
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.InDelta(t, 0.5, scores[0], 1e-6)
	assert.InDelta(t, 0.75, scores[1], 1e-6)
}

func TestActivate_SoftmaxRowsAreIndependent(t *testing.T) {
	scores, err := activate(config.ModelKindTwoClassSoftmax, logits([]int{2, 2}, 60, -60, -50, -45), 2)
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.InDelta(t, 0.0, scores[0], 1e-6)
	assert.InDelta(t, 1/(1+math.Exp(-5)), scores[1], 1e-5)

	scores, err = activate(config.ModelKindTwoClassSoftmax, logits([]int{4, 2}, 1000, -1000, -1000, 1000, 100, 100, 0, 0), 4)
	require.NoError(t, err)
	expected := []float64{0, 1, 0.5, 0.5}
	for i, s := range scores {
		assert.False(t, math.IsNaN(float64(s)), "score %d is NaN", i)
		assert.InDelta(t, expected[i], s, 1e-6)
	}
}

func TestActivate_Sigmoid(t *testing.T) {
	scores, err := activate(config.ModelKindSigmoidScalar, logits([]int{3, 1}, 0, 20, -20), 3)
	require.NoError(t, err)
	require.Len(t, scores, 3)
	assert.InDelta(t, 0.5, scores[0], 1e-6)
	assert.InDelta(t, 1.0, scores[1], 1e-6)
	assert.InDelta(t, 0.0, scores[2], 1e-6)
}

func TestActivate_DoesNotModifyLogits(t *testing.T) {
	in := logits([]int{1, 2}, 1, 2)
	_, err := activate(config.ModelKindTwoClassSoftmax, in, 1)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, in.Float32s())
}

func TestActivate_Errors(t *testing.T) {
	_, err := activate(config.ModelKindTwoClassSoftmax, logits([]int{3}, 1, 2, 3), 2)
	assert.Error(t, err)

	_, err = activate(config.ModelKindSigmoidScalar, logits([]int{2}, 1, 2), 1)
	assert.Error(t, err)

	_, err = activate(config.ModelKindUnavailable, logits([]int{1}, 1), 1)
	assert.Error(t, err)

	ints := tensor.New(tensor.WithShape(1), tensor.WithBacking([]int32{1}))
	_, err = activate(config.ModelKindSigmoidScalar, ints, 1)
	assert.Error(t, err)
}
