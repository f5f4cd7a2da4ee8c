package pipeline

import "github.com/fiscora/docaudit/internal/model"

// silenceGoal is the target share of documents handled without human
// attention.
const silenceGoal = 0.95

// ComputeStats aggregates a batch of processing results. Pure function;
// results carrying no judgment count as rejections.
func ComputeStats(results []*model.ProcessingResult) model.ProcessingStats {
	stats := model.ProcessingStats{TotalProcessed: len(results)}
	if len(results) == 0 {
		return stats
	}

	var confidenceSum float64
	var confidenceCount int

	for _, r := range results {
		switch r.Outcome() {
		case model.OutcomeAutoApprove:
			stats.AutoApproved++
		case model.OutcomeNeedsReview:
			stats.NeedsReview++
		default:
			stats.Rejected++
		}
		if r.EarlyRejected() {
			stats.EarlyRejected++
		}
		if r.Record != nil {
			confidenceSum += r.Record.Confidence
			confidenceCount++
		}
	}

	stats.AutoApproveRate = float64(stats.AutoApproved) / float64(stats.TotalProcessed)
	if confidenceCount > 0 {
		stats.AvgConfidence = confidenceSum / float64(confidenceCount)
	}
	stats.MeetsSilenceGoal = stats.AutoApproveRate >= silenceGoal

	return stats
}
