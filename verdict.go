package go_deepfake_pipeline

import (
	"github.com/okieraised/go-deepfake-pipeline/config"
	"github.com/okieraised/go-deepfake-pipeline/utils"
)

// RealThreshold separates the labels: scores above it lean real, at or below it lean fake.
const RealThreshold = 0.5

/*
Verdict applies the decision rule to an aggregate score.
Inputs:

  - score (float64): probability of "real" in [0, 1].
  - mediaType (config.MediaType): analysed media kind.

Outputs:

  - (*config.VerdictReport): isFake when score <= 0.5, confidence as the distance toward
    the chosen label in percent, rounded to two decimals. A tie is fake at 50%.
*/
func Verdict(score float64, mediaType config.MediaType) *config.VerdictReport {
	isFake := score <= RealThreshold
	confidence := score
	if isFake {
		confidence = 1 - score
	}
	return &config.VerdictReport{
		IsFake:     isFake,
		Confidence: utils.Round(confidence*100, 2),
		Type:       mediaType,
	}
}
