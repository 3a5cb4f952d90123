package utils

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
	"gorgonia.org/tensor"
)

var ErrEmptyImage = errors.New("image is empty")

// ConvertImageToMat decodes encoded image bytes into an RGB Mat.
// The returned Mat is only valid when err is nil and must be closed by the caller.
func ConvertImageToMat(bImage []byte) (gocv.Mat, error) {
	if len(bImage) == 0 {
		return gocv.Mat{}, ErrEmptyImage
	}
	srcMat, err := gocv.IMDecode(bImage, gocv.IMReadColor)
	if err != nil {
		return gocv.Mat{}, err
	}
	defer srcMat.Close()
	if srcMat.Empty() {
		return gocv.Mat{}, ErrEmptyImage
	}

	dstMat := gocv.NewMat()
	gocv.CvtColor(srcMat, &dstMat, gocv.ColorBGRToRGB)
	return dstMat, nil
}

// BGRToRGB converts a decoded frame in place.
func BGRToRGB(img *gocv.Mat) {
	gocv.CvtColor(*img, img, gocv.ColorBGRToRGB)
}

// MatToTensor converts an 8-bit 3-channel Mat into an [H, W, 3] float32 tensor scaled to [0, 1].
func MatToTensor(img gocv.Mat) (*tensor.Dense, error) {
	if img.Empty() {
		return nil, ErrEmptyImage
	}
	if img.Type() != gocv.MatTypeCV8UC3 {
		return nil, fmt.Errorf("expected 8-bit 3-channel image, got type %v", img.Type())
	}

	src := img
	if !img.IsContinuous() {
		src = img.Clone()
		defer src.Close()
	}

	raw := src.ToBytes()
	backing := make([]float32, len(raw))
	for i, v := range raw {
		backing[i] = float32(v) / 255.0
	}

	return tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(src.Rows(), src.Cols(), 3),
		tensor.WithBacking(backing),
	), nil
}
