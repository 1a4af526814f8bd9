package validator

import (
	"fmt"
	"strings"

	"github.com/NeuralTrust/ReplyGuard/pkg/policy"
	"github.com/NeuralTrust/ReplyGuard/pkg/types"
)

// leetReplacer folds common character substitutions before blocklist
// comparison, so "pr0f4nity" matches "profanity".
var leetReplacer = strings.NewReplacer(
	"0", "o",
	"1", "i",
	"3", "e",
	"4", "a",
	"5", "s",
	"7", "t",
	"8", "b",
	"@", "a",
	"$", "s",
	"!", "i",
	"+", "t",
)

func normalizeLeet(s string) string {
	return leetReplacer.Replace(strings.ToLower(s))
}

// checkProfanity matches the normalized text against the policy blocklist,
// honoring the exception list (medical terminology and similar documented
// carve-outs).
func checkProfanity(text string, p *policy.ContentPolicy) []types.Issue {
	if !p.CheckEnabled("profanity") || len(p.Profanity.Terms) == 0 {
		return nil
	}

	normalized := normalizeLeet(text)

	exceptions := make([]string, 0, len(p.Profanity.Exceptions))
	for _, exc := range p.Profanity.Exceptions {
		exceptions = append(exceptions, normalizeLeet(exc))
	}

	var issues []types.Issue
	for _, term := range p.Profanity.Terms {
		normalizedTerm := normalizeLeet(term)
		idx := indexOutsideExceptions(normalized, normalizedTerm, exceptions)
		if idx < 0 {
			continue
		}
		issues = append(issues, types.Issue{
			Category:    types.CategoryProfanity,
			Severity:    types.SeverityMedium,
			Location:    fmt.Sprintf("offset %d", idx),
			Remediation: "rephrase without the flagged term",
		})
	}
	return issues
}

// indexOutsideExceptions finds the first occurrence of term that is not part
// of an allowed exception phrase. Returns -1 when every occurrence is covered
// by an exception.
func indexOutsideExceptions(text, term string, exceptions []string) int {
	offset := 0
	for {
		idx := strings.Index(text[offset:], term)
		if idx < 0 {
			return -1
		}
		abs := offset + idx
		if !coveredByException(text, abs, len(term), exceptions) {
			return abs
		}
		offset = abs + len(term)
	}
}

func coveredByException(text string, at, length int, exceptions []string) bool {
	for _, exc := range exceptions {
		sub := strings.Index(exc, text[at:at+length])
		if sub < 0 {
			continue
		}
		start := at - sub
		if start < 0 || start+len(exc) > len(text) {
			continue
		}
		if text[start:start+len(exc)] == exc {
			return true
		}
	}
	return false
}
