package config

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrDecode           = errors.New("failed to decode media")
	ErrOpen             = errors.New("failed to open media")
	ErrNoFramesReadable = errors.New("no frames could be read from video")
	ErrNoFaceDetected   = errors.New("no face detected in image")
	ErrNoFacesDetected  = errors.New("no faces detected in video")
	ErrPreprocess       = errors.New("failed to preprocess face")
	ErrModelUnavailable = errors.New("model not loaded")
	ErrInternal         = errors.New("internal error")
)

// failureKinds lists the sentinels an AnalysisFailure may carry as its kind.
var failureKinds = []error{
	ErrDecode,
	ErrOpen,
	ErrNoFramesReadable,
	ErrNoFaceDetected,
	ErrNoFacesDetected,
	ErrPreprocess,
	ErrModelUnavailable,
	ErrInternal,
}

// AnalysisFailure is the single failure type leaving the pipeline.
// Kind is one of the Err* sentinels, Err the underlying cause if any.
type AnalysisFailure struct {
	Kind      error
	MediaType MediaType
	Details   *SamplingDetails
	Err       error
}

func NewAnalysisFailure(kind error, mediaType MediaType, cause error) *AnalysisFailure {
	if !isFailureKind(kind) {
		kind, cause = ErrInternal, errors.Join(kind, cause)
	}
	return &AnalysisFailure{
		Kind:      kind,
		MediaType: mediaType,
		Err:       cause,
	}
}

func (f *AnalysisFailure) WithDetails(details *SamplingDetails) *AnalysisFailure {
	f.Details = details
	return f
}

func (f *AnalysisFailure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s analysis: %v", f.MediaType, f.Kind)
	}
	return fmt.Sprintf("%s analysis: %v: %v", f.MediaType, f.Kind, f.Err)
}

func (f *AnalysisFailure) Unwrap() []error {
	if f.Err == nil {
		return []error{f.Kind}
	}
	return []error{f.Kind, f.Err}
}

// Message is the user-visible text of the failure.
func (f *AnalysisFailure) Message() string {
	switch {
	case errors.Is(f.Kind, ErrNoFaceDetected):
		return "No face detected in the image"
	case errors.Is(f.Kind, ErrNoFacesDetected):
		return "No faces detected in video"
	case errors.Is(f.Kind, ErrNoFramesReadable):
		return "Could not extract frames from video"
	case errors.Is(f.Kind, ErrDecode), errors.Is(f.Kind, ErrOpen):
		return "Could not read media file"
	case errors.Is(f.Kind, ErrPreprocess):
		return "Failed to preprocess face"
	case errors.Is(f.Kind, ErrModelUnavailable):
		return "Model not loaded"
	default:
		return "Internal error during analysis"
	}
}

// ClientError reports whether the caller can correct the failure by sending different media.
func (f *AnalysisFailure) ClientError() bool {
	return !errors.Is(f.Kind, ErrModelUnavailable) && !errors.Is(f.Kind, ErrInternal)
}

func (f *AnalysisFailure) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Error   string           `json:"error"`
		Details *SamplingDetails `json:"details,omitempty"`
	}{
		Error:   f.Message(),
		Details: f.Details,
	})
}

func isFailureKind(err error) bool {
	for _, kind := range failureKinds {
		if err == kind {
			return true
		}
	}
	return false
}
