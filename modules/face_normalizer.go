package modules

import (
	"image"

	"github.com/okieraised/go-deepfake-pipeline/config"
	"github.com/okieraised/go-deepfake-pipeline/utils"
	"gocv.io/x/gocv"
	"gorgonia.org/tensor"
)

// FaceNormalizer stretches face crops to the classifier resolution.
type FaceNormalizer struct {
	Height int
	Width  int
}

func NewFaceNormalizer(height, width int) *FaceNormalizer {
	if height <= 0 || width <= 0 {
		height, width = config.DefaultClassifierParams.ImgSize, config.DefaultClassifierParams.ImgSize
	}
	return &FaceNormalizer{
		Height: height,
		Width:  width,
	}
}

/*
Normalize resizes the crop without preserving aspect ratio and scales pixels to [0, 1].
Inputs:

  - crop (gocv.Mat): RGB face crop.

Outputs:

  - (*tensor.Dense): [H, W, 3] float32 tensor, nil when the crop has no area.
*/
func (n *FaceNormalizer) Normalize(crop gocv.Mat) (*tensor.Dense, error) {
	if crop.Empty() || crop.Rows() == 0 || crop.Cols() == 0 {
		return nil, nil
	}

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(crop, &resized, image.Point{X: n.Width, Y: n.Height}, 0, 0, gocv.InterpolationLinear)

	return utils.MatToTensor(resized)
}
