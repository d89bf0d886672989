package scoring

import "github.com/TerraFitLab/terrafit/backend/internal/activity"

// Sub-score weights for the composite total.
const (
	activityWeight   = 0.3
	weightLossWeight = 0.5
	streakWeight     = 0.2

	pointsPerPost    = 10
	pointsPerComment = 5
	pointsPerLike    = 2
	pointsPerMessage = 1

	pointsPerLossKg    = 100
	pointsPerActiveDay = 5
)

// Breakdown carries the three named sub-scores and the composite total for
// one member in one window.
type Breakdown struct {
	Activity   float64
	WeightLoss float64
	Streak     float64
	Total      float64
}

// ComputeBreakdown converts raw signals into a score breakdown.
//
// Weight loss considers only the boundary samples of the in-window series:
// with fewer than two samples, or when the last sample is not strictly
// lower than the first, the sub-score is zero. Intermediate samples are
// ignored on purpose; the sub-score is never negative.
func ComputeBreakdown(signals activity.Signals) Breakdown {
	activityScore := float64(signals.Posts*pointsPerPost +
		signals.Comments*pointsPerComment +
		signals.Likes*pointsPerLike +
		signals.Messages*pointsPerMessage)

	weightLossScore := 0.0
	if len(signals.WeightSeries) >= 2 {
		first := signals.WeightSeries[0].WeightKg
		last := signals.WeightSeries[len(signals.WeightSeries)-1].WeightKg
		if loss := first - last; loss > 0 {
			weightLossScore = loss * pointsPerLossKg
		}
	}

	streakScore := float64(signals.PostDays * pointsPerActiveDay)

	return Breakdown{
		Activity:   activityScore,
		WeightLoss: weightLossScore,
		Streak:     streakScore,
		Total:      activityWeight*activityScore + weightLossWeight*weightLossScore + streakWeight*streakScore,
	}
}
