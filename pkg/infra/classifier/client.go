package classifier

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
)

const scorePath = "/v1/score"

var ErrClassifierUnavailable = errors.New("classifier service unavailable")

// Client scores text against a set of categories using the external scored
// classifier. The classifier is opaque: the Supervisor only consumes
// per-category confidence scores.
type Client interface {
	Score(ctx context.Context, text string, categories []string) (map[string]float64, error)
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
		cfg.Timeout = 2 * time.Second
	}
	return &httpClient{
		client:  client,
		breaker: breaker,
		logger:  logger,
		cfg:     cfg,
	}
}

type scoreRequest struct {
	Text       string   `json:"text"`
	Categories []string `json:"categories"`
}

type scoreResponse struct {
	Scores map[string]float64 `json:"scores"`
}

// Score calls the classifier with a hard timeout and retries once with a
// short backoff before reporting the dependency as unavailable.
func (c *httpClient) Score(ctx context.Context, text string, categories []string) (map[string]float64, error) {
	var result map[string]float64

	backoff := retry.WithMaxRetries(1, retry.NewConstant(100*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		execErr := c.breaker.Execute(func() error {
			scores, err := c.executeScoreRequest(ctx, text, categories)
			if err != nil {
				return err
			}
			result = scores
			return nil
		})
		if execErr != nil && !errors.Is(execErr, context.Canceled) {
			return retry.RetryableError(execErr)
		}
		return execErr
	})
	if err != nil {
		prometheus.DependencyFailureTotal.WithLabelValues("classifier").Inc()
		if !errors.Is(err, context.Canceled) {
			c.logger.WithError(err).Warn("classifier call failed")
		}
		return nil, fmt.Errorf("%w: %v", ErrClassifierUnavailable, err)
	}
	return result, nil
}

func (c *httpClient) executeScoreRequest(ctx context.Context, text string, categories []string) (map[string]float64, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(scoreRequest{Text: text, Categories: categories})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal score request: %w", err)
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.cfg.BaseURL+scorePath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create score request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Token", c.cfg.Token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call classifier: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classifier returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("score response read error: %w", err)
	}

	var scoreResp scoreResponse
	if err := json.Unmarshal(raw, &scoreResp); err != nil {
		return nil, fmt.Errorf("invalid score response: %w", err)
	}
	if scoreResp.Scores == nil {
		return nil, fmt.Errorf("score response carried no scores")
	}
	return scoreResp.Scores, nil
}
