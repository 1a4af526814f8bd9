package validator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/NeuralTrust/ReplyGuard/pkg/audit"
	"github.com/NeuralTrust/ReplyGuard/pkg/infra/classifier"
	"github.com/NeuralTrust/ReplyGuard/pkg/infra/prometheus"
	"github.com/NeuralTrust/ReplyGuard/pkg/policy"
	"github.com/NeuralTrust/ReplyGuard/pkg/ratelimit"
	"github.com/NeuralTrust/ReplyGuard/pkg/types"
)

type InputConfig struct {
	SpamWindow    time.Duration `mapstructure:"spam_window"`
	SpamThreshold float64       `mapstructure:"spam_threshold"`
}

// InputValidator judges raw customer messages before they reach the rest of
// the pipeline. Checks run cheapest-first and short-circuit on the first
// rejection; the caller must translate any rejection into a generic,
// non-diagnostic refusal.
type InputValidator struct {
	policies   *policy.Store
	limiter    *ratelimit.Limiter
	classifier classifier.Client
	spam       *spamTracker
	auditor    audit.Recorder
	logger     *logrus.Logger
}

func NewInputValidator(
	cfg InputConfig,
	policies *policy.Store,
	limiter *ratelimit.Limiter,
	classifierClient classifier.Client,
	auditor audit.Recorder,
	logger *logrus.Logger,
) *InputValidator {
	return &InputValidator{
		policies:   policies,
		limiter:    limiter,
		classifier: classifierClient,
		spam:       newSpamTracker(cfg.SpamWindow, cfg.SpamThreshold),
		auditor:    auditor,
		logger:     logger,
	}
}

func (v *InputValidator) ValidateInput(ctx context.Context, req types.ValidationRequest) types.ValidationResult {
	start := time.Now()
	p := v.policies.Current()

	result, degradedNote := v.runChecks(ctx, req, p)

	latency := time.Since(start)
	prometheus.ValidationTotal.WithLabelValues(string(types.DirectionInput), string(result.Status)).Inc()
	prometheus.ValidationLatency.WithLabelValues(string(types.DirectionInput)).Observe(float64(latency.Milliseconds()))
	for _, issue := range result.Issues {
		prometheus.RejectTotal.WithLabelValues(string(types.DirectionInput), string(issue.Category)).Inc()
	}

	v.auditor.Record(types.AuditLogEntry{
		ID:        uuid.NewString(),
		Timestamp: start,
		Direction: types.DirectionInput,
		Result:    result,
		Context:   req.Context,
		Latency:   latency,
		Note:      degradedNote,
	})

	if result.Rejected() {
		v.logger.WithFields(logrus.Fields{
			"customer_id":     req.Context.CustomerID,
			"conversation_id": req.Context.ConversationID,
			"categories":      categories(result.Issues),
		}).Warn("input rejected")
	}
	return result
}

func (v *InputValidator) runChecks(
	ctx context.Context,
	req types.ValidationRequest,
	p *policy.ContentPolicy,
) (types.ValidationResult, string) {
	allowed, _ := v.limiter.Check(req.Context.CustomerID)
	if !allowed {
		return buildResult(types.DirectionInput, []types.Issue{{
			Category:    types.CategoryRateLimit,
			Severity:    types.SeverityMedium,
			Location:    "message frequency",
			Remediation: "slow down and retry later",
		}}, nil), ""
	}

	if len(req.Text) > p.Input.MaxLength {
		return buildResult(types.DirectionInput, []types.Issue{{
			Category:    types.CategoryExcessiveLength,
			Severity:    types.SeverityMedium,
			Location:    "message body",
			Remediation: "shorten the message",
		}}, nil), ""
	}

	issues, degraded := checkInjection(ctx, req.Text, p, v.classifier)
	if degraded {
		prometheus.CheckDegradedTotal.WithLabelValues("injection").Inc()
	}
	if len(issues) > 0 {
		var degradedChecks []string
		if degraded {
			degradedChecks = []string{"injection"}
		}
		return buildResult(types.DirectionInput, issues, degradedChecks), ""
	}

	if v.spam.Observe(req.Context.CustomerID, req.Text) {
		return buildResult(types.DirectionInput, []types.Issue{{
			Category:    types.CategorySpam,
			Severity:    types.SeverityMedium,
			Location:    "repeated message",
			Remediation: "wait for the previous answer",
		}}, nil), ""
	}

	var note string
	var degradedChecks []string
	if degraded {
		degradedChecks = []string{"injection"}
		note = "injection check degraded to signature-only"
	}
	return buildResult(types.DirectionInput, nil, degradedChecks), note
}

func categories(issues []types.Issue) []string {
	out := make([]string, 0, len(issues))
	for _, issue := range issues {
		out = append(out, string(issue.Category))
	}
	return out
}
