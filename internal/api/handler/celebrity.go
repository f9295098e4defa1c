package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/celebmatch/internal/domain"
)

// CatalogReader lists the configured celebrities
type CatalogReader interface {
	Records() []domain.Celebrity
}

type CelebrityHandler struct {
	catalog CatalogReader
}

func NewCelebrityHandler(catalog CatalogReader) *CelebrityHandler {
	return &CelebrityHandler{catalog: catalog}
}

type CelebrityListResponse struct {
	Celebrities []domain.Celebrity `json:"celebrities"`
	Total       int                `json:"total"`
}

// List GET /v1/celebrities
func (h *CelebrityHandler) List(c *fiber.Ctx) error {
	records := h.catalog.Records()
	return c.JSON(CelebrityListResponse{
		Celebrities: records,
		Total:       len(records),
	})
}
