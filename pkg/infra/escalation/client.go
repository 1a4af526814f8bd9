package escalation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/NeuralTrust/ReplyGuard/pkg/infra/httpx"
	"github.com/NeuralTrust/ReplyGuard/pkg/infra/prometheus"
	"github.com/NeuralTrust/ReplyGuard/pkg/types"
)

const escalatePath = "/v1/escalations"

// Sink is the one-way handoff to the human-review queue. The Supervisor does
// not track resolution.
type Sink interface {
	Escalate(ctx context.Context, payload types.EscalationPayload) error
}

type Config struct {
	BaseURL string        `mapstructure:"base_url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type httpSink struct {
	client httpx.Client
	logger *logrus.Logger
	cfg    Config
}

func NewSink(cfg Config, client httpx.Client, logger *logrus.Logger) Sink {
	if client == nil {
		client = &http.Client{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	return &httpSink{client: client, logger: logger, cfg: cfg}
}

func (s *httpSink) Escalate(ctx context.Context, payload types.EscalationPayload) error {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal escalation payload: %w", err)
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, s.cfg.BaseURL+escalatePath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create escalation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.Token != "" {
		req.Header.Set("Token", s.cfg.Token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		prometheus.DependencyFailureTotal.WithLabelValues("escalation").Inc()
		if !errors.Is(err, context.Canceled) {
			s.logger.WithError(err).Error("escalation handoff failed")
		}
		return fmt.Errorf("failed to call escalation sink: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		prometheus.DependencyFailureTotal.WithLabelValues("escalation").Inc()
		return fmt.Errorf("escalation sink returned status %d", resp.StatusCode)
	}
	return nil
}
