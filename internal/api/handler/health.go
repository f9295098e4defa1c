package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/celebmatch/internal/matching"
)

// StatusSource reports the initialization state
type StatusSource interface {
	Status() matching.Status
}

type HealthHandler struct {
	status  StatusSource
	version string
}

func NewHealthHandler(status StatusSource, version string) *HealthHandler {
	return &HealthHandler{status: status, version: version}
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	State   string `json:"state,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:  "ok",
		Version: h.version,
	})
}

// Ready answers 200 only once the descriptor cache is serving
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	st := h.status.Status()
	if st.State != matching.StateReady {
		return c.Status(fiber.StatusServiceUnavailable).JSON(HealthResponse{
			Status: "not_ready",
			State:  string(st.State),
			Reason: st.Reason,
		})
	}

	return c.JSON(HealthResponse{
		Status: "ready",
		State:  string(st.State),
	})
}
