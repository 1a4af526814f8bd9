package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NeuralTrust/ReplyGuard/pkg/policy"
	"github.com/NeuralTrust/ReplyGuard/pkg/types"
)

func profanityPolicy(t *testing.T, terms, exceptions []string) *policy.ContentPolicy {
	t.Helper()
	return compiledPolicy(t, policy.ContentPolicy{
		Profanity: policy.ProfanityRules{Terms: terms, Exceptions: exceptions},
	})
}

func TestCheckProfanity_BlocklistedTerm(t *testing.T) {
	p := profanityPolicy(t, []string{"damn"}, nil)

	issues := checkProfanity("that is a damn shame", p)

	require.Len(t, issues, 1)
	assert.Equal(t, types.CategoryProfanity, issues[0].Category)
	assert.Equal(t, types.SeverityMedium, issues[0].Severity)
}

func TestCheckProfanity_LeetSubstitutions(t *testing.T) {
	p := profanityPolicy(t, []string{"damn"}, nil)

	tests := []string{
		"that is a d4mn shame",
		"that is a D4MN shame",
		"that is a d@mn shame",
	}
	for _, text := range tests {
		assert.Len(t, checkProfanity(text, p), 1, "text: %s", text)
	}
}

func TestCheckProfanity_ExceptionCarveOut(t *testing.T) {
	p := profanityPolicy(t, []string{"hell"}, []string{"hello"})

	assert.Empty(t, checkProfanity("well hello there", p))
	assert.Len(t, checkProfanity("what the hell is this", p), 1)
	// One covered occurrence does not excuse a later raw one.
	assert.Len(t, checkProfanity("hello, what the hell", p), 1)
}

func TestCheckProfanity_NoTermsConfigured(t *testing.T) {
	p := profanityPolicy(t, nil, nil)

	assert.Empty(t, checkProfanity("anything at all", p))
}

func TestCheckProfanity_DisabledCheckSkips(t *testing.T) {
	p := compiledPolicy(t, policy.ContentPolicy{
		Profanity:     policy.ProfanityRules{Terms: []string{"damn"}},
		EnabledChecks: map[string]bool{"profanity": false},
	})

	assert.Empty(t, checkProfanity("damn", p))
}
