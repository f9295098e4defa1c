package handler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/celebmatch/internal/domain"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/matching"
)

// Initializer controls the initialization lifecycle
type Initializer interface {
	Status() matching.Status
	Retry(ctx context.Context) error
	Reload(ctx context.Context) (*matching.BuildReport, error)
}

// AdminHandler exposes the initialization state and its controls
type AdminHandler struct {
	init   Initializer
	logger *slog.Logger
}

func NewAdminHandler(init Initializer, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{init: init, logger: logger}
}

// StatusResponse is the public view of matching.Status
type StatusResponse struct {
	matching.Status
	Ready bool `json:"ready"`
}

type RebuildResponse struct {
	Report *matching.BuildReport `json:"report"`
	Status matching.Status       `json:"status"`
}

// Status GET /v1/status
func (h *AdminHandler) Status(c *fiber.Ctx) error {
	st := h.init.Status()
	return c.JSON(StatusResponse{Status: st, Ready: st.State == matching.StateReady})
}

// Rebuild POST /v1/admin/cache/rebuild
func (h *AdminHandler) Rebuild(c *fiber.Ctx) error {
	report, err := h.init.Reload(c.UserContext())
	if err != nil {
		if errors.Is(err, matching.ErrNotReady) {
			return domain.ErrInvalidState.WithError(err)
		}
		return err
	}

	h.logger.Info("descriptor cache rebuilt by admin",
		slog.Int("succeeded", report.Succeeded),
		slog.Int("failures", len(report.Failures)),
		slog.Uint64("version", report.Version),
	)

	return c.JSON(RebuildResponse{Report: report, Status: h.init.Status()})
}

// Retry POST /v1/admin/init/retry
func (h *AdminHandler) Retry(c *fiber.Ctx) error {
	// The retried lifecycle outlives this request
	if err := h.init.Retry(context.WithoutCancel(c.UserContext())); err != nil {
		if errors.Is(err, matching.ErrNotFailed) {
			return domain.ErrInvalidState.WithError(err)
		}
		return err
	}

	return c.Status(fiber.StatusAccepted).JSON(StatusResponse{Status: h.init.Status()})
}
