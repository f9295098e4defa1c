package handler

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/celebmatch/internal/domain"
)

// QuotaAdmin inspects and clears per-user match quotas
type QuotaAdmin interface {
	GetCurrentCount(ctx context.Context, userID uuid.UUID) (int, error)
	ResetLimit(ctx context.Context, userID uuid.UUID) error
}

type QuotaHandler struct {
	quota  QuotaAdmin
	limit  int
	logger *slog.Logger
}

func NewQuotaHandler(quota QuotaAdmin, limit int, logger *slog.Logger) *QuotaHandler {
	return &QuotaHandler{quota: quota, limit: limit, logger: logger}
}

type QuotaResponse struct {
	UserID    uuid.UUID `json:"user_id"`
	Used      int       `json:"used"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
}

// Get GET /v1/admin/quota/:user_id
func (h *QuotaHandler) Get(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("user_id"))
	if err != nil {
		return domain.ErrValidationFailed.WithError(err)
	}

	used, err := h.quota.GetCurrentCount(c.UserContext(), userID)
	if err != nil {
		return err
	}

	return c.JSON(QuotaResponse{
		UserID:    userID,
		Used:      used,
		Limit:     h.limit,
		Remaining: max(h.limit-used, 0),
	})
}

// Reset DELETE /v1/admin/quota/:user_id
func (h *QuotaHandler) Reset(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("user_id"))
	if err != nil {
		return domain.ErrValidationFailed.WithError(err)
	}

	if err := h.quota.ResetLimit(c.UserContext(), userID); err != nil {
		return err
	}

	h.logger.Info("match quota reset", slog.String("user_id", userID.String()))
	return c.SendStatus(fiber.StatusNoContent)
}
