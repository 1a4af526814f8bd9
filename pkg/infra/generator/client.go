package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"

	"github.com/NeuralTrust/ReplyGuard/pkg/infra/httpx"
	"github.com/NeuralTrust/ReplyGuard/pkg/infra/prometheus"
	"github.com/NeuralTrust/ReplyGuard/pkg/types"
)

const generatePath = "/v1/generate"

var ErrGeneratorUnavailable = errors.New("response generator unavailable")

// Feedback is the structured rejection summary sent back to the response
// producer on a retry: a machine-readable issue list, not a prose template.
type Feedback struct {
	Attempt int           `json:"attempt"`
	Issues  []types.Issue `json:"issues"`
	// Directives carries one short instruction per issue category, derived
	// deterministically from the issue list.
	Directives []string `json:"directives,omitempty"`
}

// Client requests candidate responses from the upstream producer. Feedback is
// nil on the first attempt and populated on retries.
type Client interface {
	RequestCandidateResponse(ctx context.Context, query string, vctx types.ValidationContext, feedback *Feedback) (string, error)
}

type Config struct {
	BaseURL string        `mapstructure:"base_url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type httpClient struct {
	client  httpx.Client
	breaker httpx.CircuitBreaker
	logger  *logrus.Logger
	cfg     Config
}

func NewClient(cfg Config, client httpx.Client, breaker httpx.CircuitBreaker, logger *logrus.Logger) Client {
	if client == nil {
		client = &http.Client{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &httpClient{
		client:  client,
		breaker: breaker,
		logger:  logger,
		cfg:     cfg,
	}
}

type generateRequest struct {
	Query          string    `json:"query"`
	CustomerID     string    `json:"customer_id"`
	ConversationID string    `json:"conversation_id"`
	Intent         string    `json:"intent,omitempty"`
	Feedback       *Feedback `json:"feedback,omitempty"`
}

type generateResponse struct {
	Text string `json:"text"`
}

func (c *httpClient) RequestCandidateResponse(
	ctx context.Context,
	query string,
	vctx types.ValidationContext,
	feedback *Feedback,
) (string, error) {
	var candidate string

	backoff := retry.WithMaxRetries(1, retry.NewConstant(200*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		execErr := c.breaker.Execute(func() error {
			text, err := c.executeGenerateRequest(ctx, query, vctx, feedback)
			if err != nil {
				return err
			}
			candidate = text
			return nil
		})
		if execErr != nil && !errors.Is(execErr, context.Canceled) {
			return retry.RetryableError(execErr)
		}
		return execErr
	})
	if err != nil {
		prometheus.DependencyFailureTotal.WithLabelValues("generator").Inc()
		if !errors.Is(err, context.Canceled) {
			c.logger.WithError(err).Error("candidate generation failed")
		}
		return "", fmt.Errorf("%w: %v", ErrGeneratorUnavailable, err)
	}
	return candidate, nil
}

func (c *httpClient) executeGenerateRequest(
	ctx context.Context,
	query string,
	vctx types.ValidationContext,
	feedback *Feedback,
) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(generateRequest{
		Query:          query,
		CustomerID:     vctx.CustomerID,
		ConversationID: vctx.ConversationID,
		Intent:         vctx.Intent,
		Feedback:       feedback,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.cfg.BaseURL+generatePath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Token", c.cfg.Token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call generator: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generator returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("generate response read error: %w", err)
	}

	var genResp generateResponse
	if err := json.Unmarshal(raw, &genResp); err != nil {
		return "", fmt.Errorf("invalid generate response: %w", err)
	}
	if genResp.Text == "" {
		return "", fmt.Errorf("generator returned empty candidate")
	}
	return genResp.Text, nil
}
