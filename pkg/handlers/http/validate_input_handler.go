package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/NeuralTrust/ReplyGuard/pkg/types"
	"github.com/NeuralTrust/ReplyGuard/pkg/validator"
)

const genericRefusal = "We can't process this message. Please rephrase and try again."

type validateInputRequest struct {
	Message        string `json:"message"`
	CustomerID     string `json:"customer_id"`
	ConversationID string `json:"conversation_id"`
	Intent         string `json:"intent,omitempty"`
}

type validateInputResponse struct {
	Allowed bool   `json:"allowed"`
	Message string `json:"message,omitempty"`
}

type validateInputHandler struct {
	validator *validator.InputValidator
	logger    *logrus.Logger
}

func NewValidateInputHandler(inputValidator *validator.InputValidator, logger *logrus.Logger) Handler {
	return &validateInputHandler{
		validator: inputValidator,
		logger:    logger,
	}
}

// Handle judges a raw customer message. A rejection is returned as a generic
// refusal: the triggering rule is never disclosed to the caller.
func (h *validateInputHandler) Handle(c *fiber.Ctx) error {
	var req validateInputRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.CustomerID == "" || req.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "customer_id and message are required"})
	}

	result := h.validator.ValidateInput(c.UserContext(), types.ValidationRequest{
		Text:      req.Message,
		Direction: types.DirectionInput,
		Context: types.ValidationContext{
			CustomerID:     req.CustomerID,
			ConversationID: req.ConversationID,
			Intent:         req.Intent,
		},
	})

	if result.Rejected() {
		return c.Status(fiber.StatusOK).JSON(validateInputResponse{
			Allowed: false,
			Message: genericRefusal,
		})
	}
	return c.Status(fiber.StatusOK).JSON(validateInputResponse{Allowed: true})
}
