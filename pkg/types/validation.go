package types

import (
	"time"
)

type Direction string

const (
	DirectionInput  Direction = "input"
	DirectionOutput Direction = "output"
)

type Category string

const (
	CategoryProfanity       Category = "profanity"
	CategoryPIILeakage      Category = "pii_leakage"
	CategoryHarmfulAdvice   Category = "harmful_advice"
	CategoryPolicyViolation Category = "policy_violation"
	CategoryPromptInjection Category = "prompt_injection"
	CategoryRateLimit       Category = "rate_limit"
	CategoryExcessiveLength Category = "excessive_length"
	CategorySpam            Category = "spam"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// AtLeast reports whether s is as severe as other.
func (s Severity) AtLeast(other Severity) bool {
	return severityRank[s] >= severityRank[other]
}

type Status string

const (
	StatusPass   Status = "pass"
	StatusReject Status = "reject"
)

type Recommendation string

const (
	RecommendationProceed    Recommendation = "proceed"
	RecommendationReject     Recommendation = "reject"
	RecommendationRegenerate Recommendation = "regenerate"
	RecommendationThrottle   Recommendation = "throttle"
	RecommendationEscalate   Recommendation = "escalate"
)

// Issue is a single detected problem within a validated text.
type Issue struct {
	Category    Category `json:"category"`
	Severity    Severity `json:"severity"`
	Location    string   `json:"location,omitempty"`
	Remediation string   `json:"remediation,omitempty"`
}

// ValidationContext carries per-call metadata through the validators.
type ValidationContext struct {
	CustomerID     string `json:"customer_id"`
	ConversationID string `json:"conversation_id"`
	Attempt        int    `json:"attempt"`
	Intent         string `json:"intent,omitempty"`
}

// ValidationRequest is the input to either validator. It lives for the
// duration of one call plus its audit record.
type ValidationRequest struct {
	Text      string            `json:"text"`
	Direction Direction         `json:"direction"`
	Context   ValidationContext `json:"context"`
}

type ValidationResult struct {
	Status         Status         `json:"status"`
	Issues         []Issue        `json:"issues,omitempty"`
	Recommendation Recommendation `json:"recommendation"`
	// Degraded lists checks that could not complete (timeout, dependency
	// failure) and therefore contributed no issues.
	Degraded []string `json:"degraded,omitempty"`
}

// Rejected reports whether the result blocks the text.
func (r ValidationResult) Rejected() bool {
	return r.Status == StatusReject
}

// HasCritical reports whether any issue carries critical severity.
func (r ValidationResult) HasCritical() bool {
	for _, issue := range r.Issues {
		if issue.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// MaxSeverity returns the highest severity among the issues, or low when
// there are none.
func (r ValidationResult) MaxSeverity() Severity {
	max := SeverityLow
	for _, issue := range r.Issues {
		if issue.Severity.AtLeast(max) {
			max = issue.Severity
		}
	}
	return max
}

// AuditLogEntry is the immutable record of one validation decision.
type AuditLogEntry struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Direction Direction         `json:"direction"`
	Result    ValidationResult  `json:"result"`
	Context   ValidationContext `json:"context"`
	Latency   time.Duration     `json:"latency_ms"`
	Aborted   bool              `json:"aborted,omitempty"`
	Note      string            `json:"note,omitempty"`
}

// EscalationPayload is handed to the human-review queue when the
// regeneration loop cannot produce a compliant response.
type EscalationPayload struct {
	ConversationID string             `json:"conversation_id"`
	CustomerID     string             `json:"customer_id"`
	OriginalQuery  string             `json:"original_query"`
	History        []ValidationResult `json:"validation_history"`
	Reason         string             `json:"reason"`
	Attempts       int                `json:"attempts"`
}
