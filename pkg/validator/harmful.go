package validator

import (
	"context"
	"fmt"

	"github.com/NeuralTrust/ReplyGuard/pkg/infra/classifier"
	"github.com/NeuralTrust/ReplyGuard/pkg/policy"
	"github.com/NeuralTrust/ReplyGuard/pkg/types"
)

const defaultHarmfulThreshold = 0.7

// checkHarmful asks the scored classifier for per-category confidence and
// gates each score against the policy threshold. A classifier failure is
// reported to the caller so the check can be recorded as degraded rather
// than silently passed.
func checkHarmful(ctx context.Context, text string, p *policy.ContentPolicy, client classifier.Client) ([]types.Issue, error) {
	if !p.CheckEnabled("harmful") || len(p.Harmful.Categories) == 0 {
		return nil, nil
	}

	scores, err := client.Score(ctx, text, p.Harmful.Categories)
	if err != nil {
		return nil, err
	}

	var issues []types.Issue
	for _, category := range p.Harmful.Categories {
		score, ok := scores[category]
		if !ok {
			continue
		}
		threshold, ok := p.Harmful.Thresholds[category]
		if !ok || threshold <= 0 {
			threshold = defaultHarmfulThreshold
		}
		if score < threshold {
			continue
		}
		issues = append(issues, types.Issue{
			Category:    types.CategoryHarmfulAdvice,
			Severity:    types.SeverityHigh,
			Location:    fmt.Sprintf("%s (score %.2f)", category, score),
			Remediation: "remove the advice and defer to a qualified professional",
		})
	}
	return issues, nil
}
