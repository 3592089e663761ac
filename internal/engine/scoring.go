package engine

import (
	"math"

	"github.com/faultlinehq/faultline/internal/models"
	"github.com/faultlinehq/faultline/internal/utils"
)

// scoreLogClusters turns ranked clusters into candidates. New signatures
// (absent from the baseline) score 0.9 plus a small volume bonus; grown
// signatures scale with their spike ratio up to 0.9.
func scoreLogClusters(clusters []models.LogCluster, limit int) []models.Candidate {
	if limit > 0 && len(clusters) > limit {
		clusters = clusters[:limit]
	}
	candidates := make([]models.Candidate, 0, len(clusters))
	for _, c := range clusters {
		var score float64
		switch {
		case c.CountBaseline == 0 && c.CountIncident > 0:
			score = 0.9 + math.Min(0.1, float64(c.CountIncident)/200.0)
		case c.CountBaseline > 0:
			ratio := float64(c.CountIncident) / float64(c.CountBaseline)
			score = math.Min(0.9, math.Max(0, (ratio-1.0)/5.0))
		}
		candidates = append(candidates, models.Candidate{
			Kind:     models.KindLogs,
			Title:    "Log signature spike: " + utils.TruncateRunes(c.Template, 120),
			Score:    clamp(score, 0, 1),
			Evidence: c,
		})
	}
	sortCandidates(candidates)
	return candidates
}

func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
