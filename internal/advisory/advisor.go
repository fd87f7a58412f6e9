package advisory

import (
	"math"

	"go.uber.org/zap"
)

// Recommendation is the merged, non-authoritative verdict. It informs the
// human verifier and never triggers a lifecycle transition itself.
type Recommendation string

const (
	RecommendApprove Recommendation = "recommend-approve"
	RecommendReview  Recommendation = "recommend-review"
	RecommendReject  Recommendation = "recommend-reject"
)

// Analyzer sources.
const (
	SourceVision     = "vision"
	SourceVegetation = "vegetation-index"
)

// Fixed decision thresholds.
const (
	approveThreshold = 0.6
	rejectThreshold  = 0.3
)

// Signal is one analyzer's advisory confidence score
type Signal struct {
	Score   float64 `json:"score"`
	Anomaly bool    `json:"anomaly"`
	Source  string  `json:"source"`
}

// Advisor merges the vision and vegetation-index signals into a single
// recommendation using fixed thresholds.
type Advisor struct {
	logger *zap.Logger
}

// NewAdvisor creates an advisor
func NewAdvisor(logger *zap.Logger) *Advisor {
	return &Advisor{logger: logger}
}

// Recommend merges the two analyzer signals. A malformed signal (score out
// of [0,1], NaN, or an unexpected source) degrades the verdict to review;
// it can never produce an auto-approve.
func (a *Advisor) Recommend(vision, vegetation Signal) Recommendation {
	visionValid := validSignal(vision, SourceVision)
	vegetationValid := validSignal(vegetation, SourceVegetation)

	// Anomaly flags on well-formed signals are hard rejects regardless of score.
	if (visionValid && vision.Anomaly) || (vegetationValid && vegetation.Anomaly) {
		return RecommendReject
	}
	if visionValid && vision.Score < rejectThreshold {
		return RecommendReject
	}
	if vegetationValid && vegetation.Score < rejectThreshold {
		return RecommendReject
	}

	if !visionValid || !vegetationValid {
		a.logger.Warn("malformed advisory signal, degrading to review",
			zap.Bool("vision_valid", visionValid),
			zap.Bool("vegetation_valid", vegetationValid),
		)
		return RecommendReview
	}

	if vision.Score > approveThreshold && vegetation.Score > approveThreshold {
		return RecommendApprove
	}
	return RecommendReview
}

func validSignal(s Signal, wantSource string) bool {
	if s.Source != wantSource {
		return false
	}
	if math.IsNaN(s.Score) || s.Score < 0 || s.Score > 1 {
		return false
	}
	return true
}
