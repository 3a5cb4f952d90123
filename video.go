package go_deepfake_pipeline

import (
	"time"

	"github.com/okieraised/go-deepfake-pipeline/config"
	"github.com/okieraised/go-deepfake-pipeline/modules"
	"github.com/okieraised/go-deepfake-pipeline/utils"
	"gorgonia.org/tensor"
)

// SampleFrameIndices returns 0, stride, 2*stride, ... below total.
func SampleFrameIndices(total, stride int) []int {
	if total <= 0 {
		return []int{}
	}
	if stride <= 0 {
		stride = 1
	}
	indices := make([]int, 0, (total+stride-1)/stride)
	for i := 0; i < total; i += stride {
		indices = append(indices, i)
	}
	return indices
}

/*
Aggregate summarizes per-frame scores.
Inputs:

  - scores ([]float32): one score per analysed face, at least one.
  - sampling (config.SamplingDetails): counts collected while reading the video.

Outputs:

  - (*config.VideoDetails): rounded statistics for the report.
  - (float64): the unrounded mean score the verdict is based on.
*/
func Aggregate(scores []float32, sampling config.SamplingDetails) (*config.VideoDetails, float64) {
	avg := utils.Mean(scores)

	realCount := 0
	for _, s := range scores {
		if s > RealThreshold {
			realCount++
		}
	}
	fakeCount := len(scores) - realCount

	return &config.VideoDetails{
		SamplingDetails: sampling,
		FacesAnalyzed:   len(scores),
		FaceDetected:    utils.Round(utils.Percent(len(scores), sampling.FramesExtracted), 2),
		RealFrames:      utils.Round(utils.Percent(realCount, len(scores)), 2),
		FakeFrames:      utils.Round(utils.Percent(fakeCount, len(scores)), 2),
		RealFrameCount:  realCount,
		FakeFrameCount:  fakeCount,
		AverageScore:    utils.Round(avg, 4),
	}, avg
}

/*
AnalyzeVideo samples every frame_skip-th frame, scores the faces found in one batch
and reports the verdict of the mean score.
Inputs:

  - path (string): video file.

Outputs:

  - (*config.VerdictReport): the verdict with video details.
*/
func (p *DeepfakePipeline) AnalyzeVideo(path string) (report *config.VerdictReport, err error) {
	start := time.Now()
	defer p.recoverFailure(config.MediaTypeVideo, &report, &err)

	handle, err := p.decoder.OpenVideo(path)
	if err != nil {
		return nil, config.NewAnalysisFailure(config.ErrNoFramesReadable, config.MediaTypeVideo, err)
	}
	defer func() {
		if cErr := handle.Close(); cErr != nil {
			p.logger.Warn("failed to close video", "path", path, "error", cErr)
		}
	}()

	total := handle.FrameCount()
	if total <= 0 {
		return nil, config.NewAnalysisFailure(config.ErrNoFramesReadable, config.MediaTypeVideo, nil)
	}

	indices := SampleFrameIndices(total, p.videoParams.FrameSkip)
	sampling := config.SamplingDetails{
		FramesTotal:     total,
		FramesExtracted: len(indices),
	}
	if sampling.FramesExtracted == 0 {
		return nil, config.NewAnalysisFailure(config.ErrNoFramesReadable, config.MediaTypeVideo, nil)
	}

	faces := make([]*tensor.Dense, 0, len(indices))
	for i, index := range indices {
		face, decoded := p.extractFace(handle, index)
		if decoded {
			sampling.FramesDecoded++
		}
		if face != nil {
			faces = append(faces, face)
		}
		if p.onFrame != nil {
			p.onFrame(i+1, len(indices))
		}
	}
	p.logger.Debug("frames sampled",
		"frames_total", sampling.FramesTotal,
		"frames_extracted", sampling.FramesExtracted,
		"frames_decoded", sampling.FramesDecoded,
		"faces", len(faces),
	)

	if len(faces) == 0 {
		return nil, config.NewAnalysisFailure(config.ErrNoFacesDetected, config.MediaTypeVideo, nil).WithDetails(&sampling)
	}

	scores, err := p.score(faces, config.MediaTypeVideo)
	if err != nil {
		return nil, err
	}

	details, avg := Aggregate(scores, sampling)
	report = Verdict(avg, config.MediaTypeVideo)
	report.Details = details

	p.logger.Info("analysis finished",
		"media_type", config.MediaTypeVideo,
		"is_fake", report.IsFake,
		"confidence", report.Confidence,
		"faces", details.FacesAnalyzed,
		"duration", time.Since(start),
	)
	return report, nil
}

// extractFace reads one sampled frame and normalizes its face.
// decoded reports whether the frame itself could be read.
func (p *DeepfakePipeline) extractFace(handle modules.VideoHandle, index int) (face *tensor.Dense, decoded bool) {
	frame, ok := handle.ReadFrameAt(index)
	if !ok {
		return nil, false
	}
	defer frame.Close()

	crop, err := p.Locator.Locate(frame)
	if err != nil {
		p.logger.Debug("face detection failed", "frame", index, "error", err)
		return nil, true
	}
	if crop == nil {
		return nil, true
	}
	defer crop.Close()

	face, err = p.Normalizer.Normalize(crop.Image)
	if err != nil {
		p.logger.Debug("face normalization failed", "frame", index, "error", err)
		return nil, true
	}
	return face, true
}
