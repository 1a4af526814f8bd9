package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/NeuralTrust/ReplyGuard/pkg/orchestrator"
	"github.com/NeuralTrust/ReplyGuard/pkg/types"
)

type validateOutputRequest struct {
	Query          string `json:"query"`
	Candidate      string `json:"candidate"`
	CustomerID     string `json:"customer_id"`
	ConversationID string `json:"conversation_id"`
	Intent         string `json:"intent,omitempty"`
}

type validateOutputResponse struct {
	State    string `json:"state"`
	Response string `json:"response,omitempty"`
	Attempts int    `json:"attempts"`
}

type validateOutputHandler struct {
	orchestrator *orchestrator.Orchestrator
	logger       *logrus.Logger
}

func NewValidateOutputHandler(orch *orchestrator.Orchestrator, logger *logrus.Logger) Handler {
	return &validateOutputHandler{
		orchestrator: orch,
		logger:       logger,
	}
}

// Handle runs the full validate-and-regenerate cycle on a candidate
// response. An escalated cycle carries no response text: silence pending
// human follow-up beats leaking policy-violating content.
func (h *validateOutputHandler) Handle(c *fiber.Ctx) error {
	var req validateOutputRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.Candidate == "" || req.ConversationID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "candidate and conversation_id are required"})
	}

	outcome, err := h.orchestrator.Run(c.UserContext(), req.Query, req.Candidate, types.ValidationContext{
		CustomerID:     req.CustomerID,
		ConversationID: req.ConversationID,
		Intent:         req.Intent,
	})
	if err != nil {
		h.logger.WithError(err).WithField("conversation_id", req.ConversationID).
			Error("regeneration cycle finished with handoff error")
	}

	return c.Status(fiber.StatusOK).JSON(validateOutputResponse{
		State:    string(outcome.State),
		Response: outcome.Response,
		Attempts: outcome.Attempts,
	})
}
