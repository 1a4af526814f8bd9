package validator

import (
	"context"
	"fmt"

	"github.com/NeuralTrust/ReplyGuard/pkg/infra/classifier"
	"github.com/NeuralTrust/ReplyGuard/pkg/policy"
	"github.com/NeuralTrust/ReplyGuard/pkg/types"
)

const injectionCategory = "prompt_injection"

// checkInjection combines pattern signatures with the scored classifier.
// Signatures catch the cheap, well-known override phrasings without a network
// call; the classifier covers paraphrased attempts. A classifier failure
// degrades the check to signature-only and reports the degradation.
func checkInjection(
	ctx context.Context,
	text string,
	p *policy.ContentPolicy,
	client classifier.Client,
) (issues []types.Issue, degraded bool) {
	if !p.CheckEnabled("injection") {
		return nil, false
	}

	for _, re := range p.InjectionSignatures() {
		if loc := re.FindStringIndex(text); loc != nil {
			return []types.Issue{{
				Category:    types.CategoryPromptInjection,
				Severity:    types.SeverityHigh,
				Location:    fmt.Sprintf("signature match at offset %d", loc[0]),
				Remediation: "treat as adversarial input, do not forward",
			}}, false
		}
	}

	scores, err := client.Score(ctx, text, []string{injectionCategory})
	if err != nil {
		return nil, true
	}
	score, ok := scores[injectionCategory]
	if !ok || score < p.Injection.Threshold {
		return nil, false
	}
	return []types.Issue{{
		Category:    types.CategoryPromptInjection,
		Severity:    types.SeverityHigh,
		Location:    fmt.Sprintf("classifier score %.2f", score),
		Remediation: "treat as adversarial input, do not forward",
	}}, false
}
