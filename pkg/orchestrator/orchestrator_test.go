package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NeuralTrust/ReplyGuard/pkg/infra/generator"
	"github.com/NeuralTrust/ReplyGuard/pkg/types"
)

type scriptedValidator struct {
	results  []types.ValidationResult
	calls    int
	attempts []int
}

func (s *scriptedValidator) ValidateOutput(_ context.Context, req types.ValidationRequest) types.ValidationResult {
	s.attempts = append(s.attempts, req.Context.Attempt)
	result := s.results[s.calls]
	s.calls++
	return result
}

type scriptedGenerator struct {
	candidates []string
	err        error
	feedbacks  []*generator.Feedback
}

func (s *scriptedGenerator) RequestCandidateResponse(
	_ context.Context, _ string, _ types.ValidationContext, feedback *generator.Feedback,
) (string, error) {
	s.feedbacks = append(s.feedbacks, feedback)
	if s.err != nil {
		return "", s.err
	}
	candidate := s.candidates[len(s.feedbacks)-1]
	return candidate, nil
}

type capturingSink struct {
	payloads []types.EscalationPayload
	err      error
}

func (s *capturingSink) Escalate(_ context.Context, payload types.EscalationPayload) error {
	s.payloads = append(s.payloads, payload)
	return s.err
}

func pass() types.ValidationResult {
	return types.ValidationResult{Status: types.StatusPass, Recommendation: types.RecommendationProceed}
}

func rejectMedium() types.ValidationResult {
	return types.ValidationResult{
		Status: types.StatusReject,
		Issues: []types.Issue{
			{Category: types.CategoryProfanity, Severity: types.SeverityMedium, Location: "offset 3"},
		},
		Recommendation: types.RecommendationRegenerate,
	}
}

func rejectCritical() types.ValidationResult {
	return types.ValidationResult{
		Status: types.StatusReject,
		Issues: []types.Issue{
			{Category: types.CategoryPIILeakage, Severity: types.SeverityCritical, Location: "email at offset 10"},
		},
		Recommendation: types.RecommendationEscalate,
	}
}

func newTestOrchestrator(v OutputValidator, g generator.Client, sink *capturingSink) *Orchestrator {
	return NewOrchestrator(Config{MaxAttempts: 3}, v, g, sink, logrus.New())
}

func run(o *Orchestrator) (Outcome, error) {
	return o.Run(context.Background(), "where is my order?", "candidate-1", types.ValidationContext{
		CustomerID:     "cust-1",
		ConversationID: "conv-1",
	})
}

func TestRun_FirstCandidatePasses(t *testing.T) {
	v := &scriptedValidator{results: []types.ValidationResult{pass()}}
	g := &scriptedGenerator{}
	sink := &capturingSink{}

	outcome, err := run(newTestOrchestrator(v, g, sink))

	require.NoError(t, err)
	assert.Equal(t, StateSent, outcome.State)
	assert.Equal(t, "candidate-1", outcome.Response)
	assert.Equal(t, 1, outcome.Attempts)
	assert.Len(t, outcome.History, 1)
	assert.Empty(t, g.feedbacks, "generator must not be called when the first candidate passes")
	assert.Empty(t, sink.payloads)
}

func TestRun_SecondCandidatePasses(t *testing.T) {
	v := &scriptedValidator{results: []types.ValidationResult{rejectMedium(), pass()}}
	g := &scriptedGenerator{candidates: []string{"candidate-2"}}
	sink := &capturingSink{}

	outcome, err := run(newTestOrchestrator(v, g, sink))

	require.NoError(t, err)
	assert.Equal(t, StateSent, outcome.State)
	assert.Equal(t, "candidate-2", outcome.Response)
	assert.Equal(t, 2, outcome.Attempts)
	assert.Len(t, outcome.History, 2)
	assert.Equal(t, []int{0, 1}, v.attempts)

	require.Len(t, g.feedbacks, 1)
	fb := g.feedbacks[0]
	require.NotNil(t, fb)
	assert.Equal(t, 1, fb.Attempt)
	assert.Len(t, fb.Issues, 1)
	assert.NotEmpty(t, fb.Directives)
}

func TestRun_CriticalIssueEscalatesWithoutRegeneration(t *testing.T) {
	v := &scriptedValidator{results: []types.ValidationResult{rejectCritical()}}
	g := &scriptedGenerator{}
	sink := &capturingSink{}

	outcome, err := run(newTestOrchestrator(v, g, sink))

	require.NoError(t, err)
	assert.Equal(t, StateEscalated, outcome.State)
	assert.Empty(t, outcome.Response, "a critically rejected candidate must never leak into the outcome")
	assert.Equal(t, 1, outcome.Attempts)
	assert.Empty(t, g.feedbacks, "a critical issue must not trigger regeneration")

	require.Len(t, sink.payloads, 1)
	payload := sink.payloads[0]
	assert.Equal(t, "critical_issue", payload.Reason)
	assert.Equal(t, "conv-1", payload.ConversationID)
	assert.Len(t, payload.History, 1)
}

func TestRun_AttemptBudgetExhausted(t *testing.T) {
	v := &scriptedValidator{results: []types.ValidationResult{rejectMedium(), rejectMedium(), rejectMedium()}}
	g := &scriptedGenerator{candidates: []string{"candidate-2", "candidate-3"}}
	sink := &capturingSink{}

	outcome, err := run(newTestOrchestrator(v, g, sink))

	require.NoError(t, err)
	assert.Equal(t, StateEscalated, outcome.State)
	assert.Empty(t, outcome.Response)
	assert.Equal(t, 3, outcome.Attempts)
	assert.Len(t, outcome.History, 3)
	assert.Len(t, g.feedbacks, 2, "three attempts mean exactly two regenerations")

	require.Len(t, sink.payloads, 1)
	assert.Equal(t, "attempts_exhausted", sink.payloads[0].Reason)
	assert.Len(t, sink.payloads[0].History, 3)
}

func TestRun_GeneratorFailureEscalates(t *testing.T) {
	v := &scriptedValidator{results: []types.ValidationResult{rejectMedium()}}
	g := &scriptedGenerator{err: errors.New("generator unavailable")}
	sink := &capturingSink{}

	outcome, err := run(newTestOrchestrator(v, g, sink))

	require.NoError(t, err)
	assert.Equal(t, StateEscalated, outcome.State)
	require.Len(t, sink.payloads, 1)
	assert.Equal(t, "generator_failure", sink.payloads[0].Reason)
}

func TestRun_SinkFailureStillEscalates(t *testing.T) {
	v := &scriptedValidator{results: []types.ValidationResult{rejectCritical()}}
	g := &scriptedGenerator{}
	sink := &capturingSink{err: errors.New("review queue unreachable")}

	outcome, err := run(newTestOrchestrator(v, g, sink))

	assert.Error(t, err)
	assert.Equal(t, StateEscalated, outcome.State)
	assert.Empty(t, outcome.Response)
}

func TestRun_CanceledContextEscalates(t *testing.T) {
	v := &scriptedValidator{results: []types.ValidationResult{rejectMedium()}}
	g := &scriptedGenerator{candidates: []string{"candidate-2"}}
	sink := &capturingSink{}
	o := newTestOrchestrator(v, g, sink)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	outcome, err := o.Run(ctx, "query", "candidate-1", types.ValidationContext{ConversationID: "conv-1"})

	require.NoError(t, err)
	assert.Equal(t, StateEscalated, outcome.State)
	require.Len(t, sink.payloads, 1)
	assert.Equal(t, "canceled", sink.payloads[0].Reason)
}

func TestBuildFeedback_DeduplicatesDirectivesPerCategory(t *testing.T) {
	result := types.ValidationResult{
		Status: types.StatusReject,
		Issues: []types.Issue{
			{Category: types.CategoryProfanity, Severity: types.SeverityMedium, Location: "offset 3"},
			{Category: types.CategoryProfanity, Severity: types.SeverityMedium, Location: "offset 40"},
			{Category: types.CategoryPolicyViolation, Severity: types.SeverityMedium, Remediation: "drop the discount"},
		},
	}

	fb := buildFeedback(2, result)

	assert.Equal(t, 2, fb.Attempt)
	assert.Len(t, fb.Issues, 3)
	require.Len(t, fb.Directives, 2)
	assert.Contains(t, fb.Directives[1], "drop the discount")
}
