package validator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/NeuralTrust/ReplyGuard/pkg/audit"
	"github.com/NeuralTrust/ReplyGuard/pkg/infra/classifier"
	"github.com/NeuralTrust/ReplyGuard/pkg/infra/prometheus"
	"github.com/NeuralTrust/ReplyGuard/pkg/policy"
	"github.com/NeuralTrust/ReplyGuard/pkg/types"
)

const defaultCheckTimeout = 150 * time.Millisecond

type OutputConfig struct {
	CheckTimeout time.Duration `mapstructure:"check_timeout"`
}

// OutputValidator judges candidate responses before they reach the customer.
// Its four checks are independent reads of the same text and run
// concurrently; a check that misses its deadline contributes no issues and
// is recorded as degraded, never treated as a pass.
type OutputValidator struct {
	policies     *policy.Store
	classifier   classifier.Client
	auditor      audit.Recorder
	logger       *logrus.Logger
	checkTimeout time.Duration
}

func NewOutputValidator(
	cfg OutputConfig,
	policies *policy.Store,
	classifierClient classifier.Client,
	auditor audit.Recorder,
	logger *logrus.Logger,
) *OutputValidator {
	timeout := cfg.CheckTimeout
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}
	return &OutputValidator{
		policies:     policies,
		classifier:   classifierClient,
		auditor:      auditor,
		logger:       logger,
		checkTimeout: timeout,
	}
}

type namedCheck struct {
	name string
	run  func(ctx context.Context, text string, p *policy.ContentPolicy) ([]types.Issue, error)
}

func (v *OutputValidator) ValidateOutput(ctx context.Context, req types.ValidationRequest) types.ValidationResult {
	start := time.Now()
	p := v.policies.Current()

	checks := []namedCheck{
		{name: "profanity", run: func(_ context.Context, text string, p *policy.ContentPolicy) ([]types.Issue, error) {
			return checkProfanity(text, p), nil
		}},
		{name: "pii", run: func(_ context.Context, text string, p *policy.ContentPolicy) ([]types.Issue, error) {
			return checkPII(text, p), nil
		}},
		{name: "harmful", run: func(ctx context.Context, text string, p *policy.ContentPolicy) ([]types.Issue, error) {
			return checkHarmful(ctx, text, p, v.classifier)
		}},
		{name: "compliance", run: func(_ context.Context, text string, p *policy.ContentPolicy) ([]types.Issue, error) {
			return checkCompliance(text, p), nil
		}},
	}

	var mu sync.Mutex
	var issues []types.Issue
	var degraded []string

	g, groupCtx := errgroup.WithContext(ctx)
	for _, check := range checks {
		check := check
		g.Go(func() error {
			checkCtx, cancel := context.WithTimeout(groupCtx, v.checkTimeout)
			defer cancel()

			found, err := v.runWithDeadline(checkCtx, check, req.Text, p)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// Degraded, not failed closed: the local checks
				// still decide, and the skip is visible in audit
				// and metrics.
				degraded = append(degraded, check.name)
				prometheus.CheckDegradedTotal.WithLabelValues(check.name).Inc()
				v.logger.WithError(err).WithField("check", check.name).Warn("output check degraded")
				return nil
			}
			issues = append(issues, found...)
			return nil
		})
	}
	// Workers never return errors; they report degradation instead.
	_ = g.Wait()

	result := buildResult(types.DirectionOutput, issues, degraded)

	latency := time.Since(start)
	prometheus.ValidationTotal.WithLabelValues(string(types.DirectionOutput), string(result.Status)).Inc()
	prometheus.ValidationLatency.WithLabelValues(string(types.DirectionOutput)).Observe(float64(latency.Milliseconds()))
	for _, issue := range result.Issues {
		prometheus.RejectTotal.WithLabelValues(string(types.DirectionOutput), string(issue.Category)).Inc()
	}

	v.auditor.Record(types.AuditLogEntry{
		ID:        uuid.NewString(),
		Timestamp: start,
		Direction: types.DirectionOutput,
		Result:    result,
		Context:   req.Context,
		Latency:   latency,
		Aborted:   ctx.Err() != nil,
	})

	return result
}

// runWithDeadline executes one check in its own goroutine so a check that
// ignores its context cannot hold the whole fan-out past the deadline.
func (v *OutputValidator) runWithDeadline(
	ctx context.Context,
	check namedCheck,
	text string,
	p *policy.ContentPolicy,
) ([]types.Issue, error) {
	type outcome struct {
		issues []types.Issue
		err    error
	}
	resultCh := make(chan outcome, 1)
	go func() {
		found, err := check.run(ctx, text, p)
		resultCh <- outcome{issues: found, err: err}
	}()

	select {
	case res := <-resultCh:
		return res.issues, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
