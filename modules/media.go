package modules

import (
	"fmt"
	"os"

	"github.com/okieraised/go-deepfake-pipeline/config"
	"github.com/okieraised/go-deepfake-pipeline/utils"
	"gocv.io/x/gocv"
)

// MediaDecoder turns media on disk or in memory into RGB frames.
type MediaDecoder interface {
	DecodeImage(content []byte) (gocv.Mat, error)
	OpenVideo(path string) (VideoHandle, error)
}

// VideoHandle gives random access to the frames of an opened video.
type VideoHandle interface {
	FrameCount() int
	// ReadFrameAt seeks to index and decodes one RGB frame; ok is false when the frame cannot be read.
	ReadFrameAt(index int) (frame gocv.Mat, ok bool)
	Close() error
}

// GocvMediaDecoder decodes media with OpenCV.
type GocvMediaDecoder struct{}

func NewGocvMediaDecoder() *GocvMediaDecoder {
	return &GocvMediaDecoder{}
}

func (d *GocvMediaDecoder) DecodeImage(content []byte) (gocv.Mat, error) {
	img, err := utils.ConvertImageToMat(content)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("%w: %w", config.ErrDecode, err)
	}
	return img, nil
}

func (d *GocvMediaDecoder) OpenVideo(path string) (VideoHandle, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrOpen, err)
	}
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrOpen, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("%w: cannot open video %s", config.ErrOpen, path)
	}
	return &gocvVideo{capture: capture}, nil
}

type gocvVideo struct {
	capture *gocv.VideoCapture
}

func (v *gocvVideo) FrameCount() int {
	return max(int(v.capture.Get(gocv.VideoCaptureFrameCount)), 0)
}

func (v *gocvVideo) ReadFrameAt(index int) (gocv.Mat, bool) {
	v.capture.Set(gocv.VideoCapturePosFrames, float64(index))

	frame := gocv.NewMat()
	if ok := v.capture.Read(&frame); !ok || frame.Empty() {
		frame.Close()
		return gocv.Mat{}, false
	}
	utils.BGRToRGB(&frame)
	return frame, true
}

func (v *gocvVideo) Close() error {
	return v.capture.Close()
}
