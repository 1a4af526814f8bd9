package validator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/NeuralTrust/ReplyGuard/pkg/policy"
	"github.com/NeuralTrust/ReplyGuard/pkg/types"
)

// tokenizedPlaceholder matches the fixed placeholder formats that upstream
// tokenization produces, e.g. [MASKED_EMAIL] or {{TOKEN:CARD_4821}}. Text
// inside a placeholder is allowed and must never raise a PII issue.
var tokenizedPlaceholder = regexp.MustCompile(`\[MASKED_[A-Z0-9_]+\]|\{\{TOKEN:[A-Za-z0-9_-]+\}\}`)

// checkPII scans for raw identifier patterns. Any untokenized match is a
// critical issue: PII detection is a local pattern match and is never subject
// to dependency degradation.
func checkPII(text string, p *policy.ContentPolicy) []types.Issue {
	if !p.CheckEnabled("pii") {
		return nil
	}

	// Blank out placeholders so their surroundings still get scanned but
	// the token contents cannot match.
	scrubbed := tokenizedPlaceholder.ReplaceAllStringFunc(text, func(m string) string {
		return strings.Repeat(" ", len(m))
	})

	var issues []types.Issue
	for category, re := range p.PIIPatterns() {
		// Every match is a candidate: a rejected early match (a digit run
		// that fails the card checksum) must not shadow a real hit later
		// in the text.
		for _, loc := range re.FindAllStringIndex(scrubbed, -1) {
			if category == "card" && !luhnValid(scrubbed[loc[0]:loc[1]]) {
				continue
			}
			issues = append(issues, types.Issue{
				Category:    types.CategoryPIILeakage,
				Severity:    types.SeverityCritical,
				Location:    fmt.Sprintf("%s at offset %d", category, loc[0]),
				Remediation: "replace the raw identifier with a tokenized placeholder",
			})
			break
		}
	}
	return issues
}

// luhnValid filters card-like digit runs through the Luhn checksum so order
// numbers and tracking codes do not trip the card pattern.
func luhnValid(s string) bool {
	var digits []int
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits = append(digits, int(r-'0'))
		}
	}
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := digits[i]
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
