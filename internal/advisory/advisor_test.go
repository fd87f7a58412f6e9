package advisory

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func vision(score float64) Signal {
	return Signal{Score: score, Source: SourceVision}
}

func vegetation(score float64) Signal {
	return Signal{Score: score, Source: SourceVegetation}
}

func TestRecommend(t *testing.T) {
	advisor := NewAdvisor(zap.NewNop())

	tests := []struct {
		name       string
		vision     Signal
		vegetation Signal
		want       Recommendation
	}{
		{"both high", vision(0.9), vegetation(0.8), RecommendApprove},
		{"both at threshold", vision(0.6), vegetation(0.6), RecommendReview},
		{"just above threshold", vision(0.61), vegetation(0.61), RecommendApprove},
		{"one middling", vision(0.9), vegetation(0.5), RecommendReview},
		{"vision low", vision(0.2), vegetation(0.9), RecommendReject},
		{"vegetation low", vision(0.9), vegetation(0.29), RecommendReject},
		{"at reject threshold", vision(0.3), vegetation(0.3), RecommendReview},
		{
			"anomaly overrides high scores",
			Signal{Score: 0.95, Anomaly: true, Source: SourceVision},
			vegetation(0.95),
			RecommendReject,
		},
		{
			"vegetation anomaly",
			vision(0.95),
			Signal{Score: 0.95, Anomaly: true, Source: SourceVegetation},
			RecommendReject,
		},
		{"score above one", vision(1.5), vegetation(0.9), RecommendReview},
		{"negative score", vision(0.9), vegetation(-0.1), RecommendReview},
		{"nan score", vision(math.NaN()), vegetation(0.9), RecommendReview},
		{
			"wrong source",
			Signal{Score: 0.9, Source: "thermal"},
			vegetation(0.9),
			RecommendReview,
		},
		{
			"swapped sources",
			Signal{Score: 0.9, Source: SourceVegetation},
			Signal{Score: 0.9, Source: SourceVision},
			RecommendReview,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, advisor.Recommend(tc.vision, tc.vegetation))
		})
	}
}

func TestMalformedSignalNeverApproves(t *testing.T) {
	advisor := NewAdvisor(zap.NewNop())

	// Even paired with a perfect counterpart, a malformed signal caps the
	// verdict at review.
	got := advisor.Recommend(Signal{Score: math.NaN(), Source: SourceVision}, vegetation(1.0))
	assert.Equal(t, RecommendReview, got)
}

func TestMalformedSignalStillRejectsOnCounterpart(t *testing.T) {
	advisor := NewAdvisor(zap.NewNop())

	// A valid low counterpart score is still a reject.
	got := advisor.Recommend(Signal{Score: 2.0, Source: SourceVision}, vegetation(0.1))
	assert.Equal(t, RecommendReject, got)
}
