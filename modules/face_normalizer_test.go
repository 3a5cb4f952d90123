package modules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestFaceNormalizer_StretchesToTarget(t *testing.T) {
	crop := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 51, 0), 30, 90, gocv.MatTypeCV8UC3)
	defer crop.Close()

	face, err := NewFaceNormalizer(224, 224).Normalize(crop)
	require.NoError(t, err)
	require.NotNil(t, face)

	assert.Equal(t, []int{224, 224, 3}, []int(face.Shape()))
	data := face.Float32s()
	assert.InDelta(t, 1.0, data[0], 1e-6)
	assert.InDelta(t, 0.0, data[1], 1e-6)
	assert.InDelta(t, 0.2, data[2], 1e-6)
	for _, v := range data {
		assert.True(t, v >= 0 && v <= 1)
	}
}

func TestFaceNormalizer_NonSquareTarget(t *testing.T) {
	crop := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(1, 2, 3, 0), 10, 10, gocv.MatTypeCV8UC3)
	defer crop.Close()

	face, err := NewFaceNormalizer(48, 32).Normalize(crop)
	require.NoError(t, err)
	assert.Equal(t, []int{48, 32, 3}, []int(face.Shape()))
}

func TestFaceNormalizer_EmptyCrop(t *testing.T) {
	crop := gocv.NewMat()
	defer crop.Close()

	face, err := NewFaceNormalizer(224, 224).Normalize(crop)
	assert.NoError(t, err)
	assert.Nil(t, face)
}

func TestNewFaceNormalizer_Defaults(t *testing.T) {
	n := NewFaceNormalizer(0, -1)
	assert.Equal(t, 224, n.Height)
	assert.Equal(t, 224, n.Width)
}
