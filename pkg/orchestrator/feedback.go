package orchestrator

import (
	"fmt"

	"github.com/NeuralTrust/ReplyGuard/pkg/infra/generator"
	"github.com/NeuralTrust/ReplyGuard/pkg/types"
)

// buildFeedback turns a rejection into the structured payload the generator
// consumes on a retry: the raw issue list plus one deterministic directive
// per category. No natural-language template is assumed.
func buildFeedback(attempt int, result types.ValidationResult) *generator.Feedback {
	fb := &generator.Feedback{
		Attempt: attempt,
		Issues:  result.Issues,
	}
	seen := make(map[types.Category]bool)
	for _, issue := range result.Issues {
		if seen[issue.Category] {
			continue
		}
		seen[issue.Category] = true
		fb.Directives = append(fb.Directives, directiveFor(issue))
	}
	return fb
}

func directiveFor(issue types.Issue) string {
	switch issue.Category {
	case types.CategoryProfanity:
		return fmt.Sprintf("avoid profane language (%s); regenerate without it", issue.Location)
	case types.CategoryHarmfulAdvice:
		return fmt.Sprintf("remove the flagged advice (%s) and defer to a qualified professional", issue.Location)
	case types.CategoryPolicyViolation:
		if issue.Remediation != "" {
			return issue.Remediation
		}
		return fmt.Sprintf("remove content violating rule %s", issue.Location)
	default:
		return fmt.Sprintf("remove content flagged as %s at %s", issue.Category, issue.Location)
	}
}
