package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/NeuralTrust/ReplyGuard/pkg/audit"
	"github.com/NeuralTrust/ReplyGuard/pkg/policy"
)

type healthHandler struct {
	policies *policy.Store
	auditor  *audit.Writer
}

func NewHealthHandler(policies *policy.Store, auditor *audit.Writer) Handler {
	return &healthHandler{
		policies: policies,
		auditor:  auditor,
	}
}

func (h *healthHandler) Handle(c *fiber.Ctx) error {
	status := fiber.StatusOK
	auditHealthy := h.auditor == nil || h.auditor.Healthy()
	if !auditHealthy {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(fiber.Map{
		"status":         statusText(auditHealthy),
		"policy_version": h.policies.Current().Version,
		"audit_healthy":  auditHealthy,
	})
}

func statusText(healthy bool) string {
	if healthy {
		return "ok"
	}
	return "degraded"
}
