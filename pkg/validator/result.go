package validator

import (
	"github.com/NeuralTrust/ReplyGuard/pkg/types"
)

// buildResult assembles a ValidationResult from collected issues, applying
// the severity invariants: status is reject iff any issue is medium or
// higher, and any critical issue forces an escalate/reject recommendation.
func buildResult(direction types.Direction, issues []types.Issue, degraded []string) types.ValidationResult {
	result := types.ValidationResult{
		Status:         types.StatusPass,
		Issues:         issues,
		Recommendation: types.RecommendationProceed,
		Degraded:       degraded,
	}

	for _, issue := range issues {
		if issue.Severity.AtLeast(types.SeverityMedium) {
			result.Status = types.StatusReject
			break
		}
	}
	if result.Status == types.StatusPass {
		return result
	}

	if result.HasCritical() {
		// Regeneration cannot be trusted to avoid repeating a severe
		// leak without review.
		if direction == types.DirectionOutput {
			result.Recommendation = types.RecommendationEscalate
		} else {
			result.Recommendation = types.RecommendationReject
		}
		return result
	}

	if direction == types.DirectionOutput {
		result.Recommendation = types.RecommendationRegenerate
		return result
	}

	if hasCategory(issues, types.CategoryRateLimit) {
		result.Recommendation = types.RecommendationThrottle
		return result
	}
	result.Recommendation = types.RecommendationReject
	return result
}

func hasCategory(issues []types.Issue, category types.Category) bool {
	for _, issue := range issues {
		if issue.Category == category {
			return true
		}
	}
	return false
}
