package analytics

import (
	"fmt"
	"strings"

	"perfpulse/internal/types"
)

// Strength buckets for narrative wording.
const (
	strengthModerate = 30
	strengthStrong   = 60
)

// Recommendation trigger levels.
const (
	declineActionStrength = 50
	gainActionStrength    = 60
)

// interpret renders the deterministic one-line narrative for a trend result.
// Template selection is keyed by (direction, strength bucket); the wording is
// stable so repeated analysis of the same series produces identical text.
func interpret(r *types.TrendResult) string {
	name := strings.ReplaceAll(r.MetricName, "_", " ")

	var movement string
	switch r.Direction {
	case types.TrendIncreasing:
		movement = "is trending upward"
	case types.TrendDecreasing:
		movement = "is trending downward"
	case types.TrendVolatile:
		movement = "shows volatile movement with no reliable direction"
	default:
		movement = "is holding steady"
	}

	var qualifier string
	switch {
	case r.Strength > strengthStrong:
		qualifier = "strongly"
	case r.Strength >= strengthModerate:
		qualifier = "moderately"
	default:
		qualifier = "weakly"
	}

	if r.Direction == types.TrendStable || r.Direction == types.TrendVolatile {
		return fmt.Sprintf("%s %s (trend strength %d, change %+.2f%%)",
			name, movement, r.Strength, r.PercentChange)
	}
	return fmt.Sprintf("%s %s %s (trend strength %d, change %+.2f%%)",
		name, movement, qualifier, r.Strength, r.PercentChange)
}

// recommend selects recommendations via deterministic rules keyed by
// (direction, strength, category). The list is never empty: when no rule
// matches, a single generic monitoring recommendation is emitted.
func recommend(r *types.TrendResult) []string {
	var recs []string

	if r.Direction == types.TrendDecreasing {
		if r.Category == types.CategoryPerformance && r.Strength > declineActionStrength {
			recs = append(recs, "Investigate root causes of the sustained performance decline before it compounds.")
		}
		if r.Category == types.CategoryWellbeing {
			recs = append(recs, "Prioritize support measures and review workload distribution for affected members.")
		}
		if r.Category == types.CategoryGoals && r.Strength > declineActionStrength {
			recs = append(recs, "Review goal planning and clear blockers on at-risk goals.")
		}
		if r.Category == types.CategoryFeedback {
			recs = append(recs, "Encourage more frequent peer feedback to counter the declining engagement signal.")
		}
	}

	if r.Direction == types.TrendIncreasing && r.Strength > gainActionStrength {
		recs = append(recs, "Identify and reinforce the practices driving the improvement.")
	}

	if r.Direction == types.TrendVolatile {
		recs = append(recs, "Stabilize measurement inputs and investigate irregular spikes before acting on this metric.")
	}

	for _, p := range r.Patterns {
		if strings.HasPrefix(p, "anomalies_detected_") {
			recs = append(recs, "Review the flagged outlier periods for data quality issues or one-off events.")
			break
		}
	}

	if len(recs) == 0 {
		recs = append(recs, "Continue monitoring; no action needed at current trend levels.")
	}
	return recs
}
