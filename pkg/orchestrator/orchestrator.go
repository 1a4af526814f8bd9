package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/NeuralTrust/ReplyGuard/pkg/infra/escalation"
	"github.com/NeuralTrust/ReplyGuard/pkg/infra/generator"
	"github.com/NeuralTrust/ReplyGuard/pkg/infra/prometheus"
	"github.com/NeuralTrust/ReplyGuard/pkg/types"
)

// OutputValidator is the verdict dependency of the loop, satisfied by
// validator.OutputValidator.
type OutputValidator interface {
	ValidateOutput(ctx context.Context, req types.ValidationRequest) types.ValidationResult
}

type State string

const (
	StateGenerated           State = "GENERATED"
	StateValidating          State = "VALIDATING"
	StateRegenerateRequested State = "REGENERATE_REQUESTED"
	StateSent                State = "SENT"
	StateEscalated           State = "ESCALATED"
)

type Config struct {
	MaxAttempts   int           `mapstructure:"max_attempts"`
	CycleDeadline time.Duration `mapstructure:"cycle_deadline"`
}

func (c *Config) applyDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.CycleDeadline <= 0 {
		c.CycleDeadline = 10 * time.Second
	}
}

// RetryContext is the mutable state of one in-flight candidate cycle. It is
// owned exclusively by the orchestrator and destroyed when the cycle
// terminates.
type retryContext struct {
	conversationID string
	attempt        int
	history        []types.ValidationResult
	deadline       time.Time
}

// Outcome is the terminal result of one customer-facing turn: exactly one of
// SENT or ESCALATED.
type Outcome struct {
	State    State
	Response string
	Attempts int
	History  []types.ValidationResult
}

// Orchestrator drives the bounded regeneration loop. Sequential within one
// conversation, fully concurrent across conversations; no lock is held
// across the generator call.
type Orchestrator struct {
	cfg       Config
	validator OutputValidator
	generator generator.Client
	sink      escalation.Sink
	logger    *logrus.Logger
}

func NewOrchestrator(
	cfg Config,
	outputValidator OutputValidator,
	generatorClient generator.Client,
	sink escalation.Sink,
	logger *logrus.Logger,
) *Orchestrator {
	cfg.applyDefaults()
	return &Orchestrator{
		cfg:       cfg,
		validator: outputValidator,
		generator: generatorClient,
		sink:      sink,
		logger:    logger,
	}
}

// Run validates candidate and, on rejection, loops through regeneration until
// the candidate passes, the attempt budget is exhausted, or the cycle
// deadline expires. It never releases a response that most recently failed
// validation.
func (o *Orchestrator) Run(
	ctx context.Context,
	query string,
	candidate string,
	vctx types.ValidationContext,
) (Outcome, error) {
	start := time.Now()
	rc := &retryContext{
		conversationID: vctx.ConversationID,
		deadline:       start.Add(o.cfg.CycleDeadline),
	}
	cycleCtx, cancel := context.WithDeadline(ctx, rc.deadline)
	defer cancel()

	outcome, err := o.loop(cycleCtx, query, candidate, vctx, rc)
	prometheus.RegenerationCycleLatency.Observe(float64(time.Since(start).Milliseconds()))
	prometheus.RegenerationOutcomeTotal.WithLabelValues(string(outcome.State), strconv.Itoa(outcome.Attempts)).Inc()
	return outcome, err
}

func (o *Orchestrator) loop(
	ctx context.Context,
	query string,
	candidate string,
	vctx types.ValidationContext,
	rc *retryContext,
) (Outcome, error) {
	for {
		// GENERATED -> VALIDATING
		vctx.Attempt = rc.attempt
		result := o.validator.ValidateOutput(ctx, types.ValidationRequest{
			Text:      candidate,
			Direction: types.DirectionOutput,
			Context:   vctx,
		})
		rc.history = append(rc.history, result)

		if !result.Rejected() {
			// VALIDATING -> SENT
			return Outcome{
				State:    StateSent,
				Response: candidate,
				Attempts: rc.attempt + 1,
				History:  rc.history,
			}, nil
		}

		if result.HasCritical() {
			// VALIDATING -> ESCALATED: a severe leak is never retried.
			return o.escalate(ctx, query, vctx, rc, "critical_issue")
		}

		// VALIDATING -> REGENERATE_REQUESTED
		if rc.attempt+1 >= o.cfg.MaxAttempts {
			return o.escalate(ctx, query, vctx, rc, "attempts_exhausted")
		}
		if err := ctx.Err(); err != nil {
			reason := "deadline_exceeded"
			if errors.Is(err, context.Canceled) {
				reason = "canceled"
			}
			return o.escalate(ctx, query, vctx, rc, reason)
		}

		feedback := buildFeedback(rc.attempt+1, result)
		next, err := o.generator.RequestCandidateResponse(ctx, query, vctx, feedback)
		if err != nil {
			o.logger.WithError(err).WithField("conversation_id", rc.conversationID).
				Error("regeneration request failed")
			return o.escalate(ctx, query, vctx, rc, "generator_failure")
		}

		// REGENERATE_REQUESTED -> GENERATED
		rc.attempt++
		candidate = next
	}
}

// escalate is the side terminal: hand the full validation history to human
// review and send nothing automated to the customer.
func (o *Orchestrator) escalate(
	ctx context.Context,
	query string,
	vctx types.ValidationContext,
	rc *retryContext,
	reason string,
) (Outcome, error) {
	prometheus.EscalationTotal.WithLabelValues(reason).Inc()

	payload := types.EscalationPayload{
		ConversationID: vctx.ConversationID,
		CustomerID:     vctx.CustomerID,
		OriginalQuery:  query,
		History:        rc.history,
		Reason:         reason,
		Attempts:       rc.attempt + 1,
	}

	// The cycle context may already be past its deadline; the handoff still
	// has to go out.
	sinkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if err := o.sink.Escalate(sinkCtx, payload); err != nil {
		o.logger.WithError(err).WithField("conversation_id", rc.conversationID).
			Error("escalation handoff failed")
		return Outcome{
			State:    StateEscalated,
			Attempts: rc.attempt + 1,
			History:  rc.history,
		}, fmt.Errorf("escalation handoff: %w", err)
	}

	o.logger.WithFields(logrus.Fields{
		"conversation_id": rc.conversationID,
		"reason":          reason,
		"attempts":        rc.attempt + 1,
	}).Warn("cycle escalated to human review")

	return Outcome{
		State:    StateEscalated,
		Attempts: rc.attempt + 1,
		History:  rc.history,
	}, nil
}
