package validator

import (
	"github.com/NeuralTrust/ReplyGuard/pkg/policy"
	"github.com/NeuralTrust/ReplyGuard/pkg/types"
)

// checkCompliance evaluates the domain-specific rules in the policy snapshot,
// e.g. unauthorized discount language or commitments beyond authority.
func checkCompliance(text string, p *policy.ContentPolicy) []types.Issue {
	if !p.CheckEnabled("compliance") {
		return nil
	}

	var issues []types.Issue
	for i, rule := range p.Compliance {
		if !p.CompliancePattern(i).MatchString(text) {
			continue
		}
		severity := types.Severity(rule.Severity)
		if severity == "" {
			severity = types.SeverityMedium
		}
		issues = append(issues, types.Issue{
			Category:    types.CategoryPolicyViolation,
			Severity:    severity,
			Location:    rule.Name,
			Remediation: rule.Message,
		})
	}
	return issues
}
