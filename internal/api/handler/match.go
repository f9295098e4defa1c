package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/celebmatch/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/domain"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/service"
)

const (
	defaultMaxImageSize = 10 * 1024 * 1024 // 10MB
	maxHistoryLimit     = 100
)

var validImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
}

// MatchService is the matching use case
type MatchService interface {
	Match(ctx context.Context, req service.MatchRequest) (*domain.MatchOutcome, error)
	History(ctx context.Context, userID uuid.UUID, limit int) ([]domain.MatchHistoryEntry, error)
	GetMatch(ctx context.Context, userID, id uuid.UUID) (*domain.MatchHistoryEntry, error)
}

// MatchHandler handles match requests and history
type MatchHandler struct {
	service      MatchService
	defaultTopK  int
	maxImageSize int64
}

// NewMatchHandler creates a new MatchHandler instance
func NewMatchHandler(service MatchService, defaultTopK int, maxImageSize int64) *MatchHandler {
	if maxImageSize <= 0 {
		maxImageSize = defaultMaxImageSize
	}
	return &MatchHandler{
		service:      service,
		defaultTopK:  defaultTopK,
		maxImageSize: maxImageSize,
	}
}

type MatchHistoryResponse struct {
	Matches []domain.MatchHistoryEntry `json:"matches"`
	Total   int                        `json:"total"`
}

// Match POST /v1/match - rank celebrities by similarity to the uploaded face
func (h *MatchHandler) Match(c *fiber.Ctx) error {
	// 1. Parse top_k
	topK, err := h.parseTopK(c.FormValue("top_k"))
	if err != nil {
		return err
	}

	// 2. Extract and validate image
	imageBytes, err := h.extractAndValidateImage(c)
	if err != nil {
		return fmt.Errorf("match: %w", err)
	}

	// 3. Match, attributing the request when authenticated
	outcome, err := h.service.Match(c.UserContext(), service.MatchRequest{
		UserID: middleware.OptionalUserID(c),
		Image:  imageBytes,
		TopK:   topK,
	})
	if err != nil {
		return err
	}

	return c.JSON(outcome)
}

// History GET /v1/matches - the caller's recent matches
func (h *MatchHandler) History(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}

	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > maxHistoryLimit {
		return domain.ErrValidationFailed.WithError(fmt.Errorf("limit must be between 1 and %d", maxHistoryLimit))
	}

	entries, err := h.service.History(c.UserContext(), userID, limit)
	if err != nil {
		return err
	}

	return c.JSON(MatchHistoryResponse{Matches: entries, Total: len(entries)})
}

// Get GET /v1/matches/:id
func (h *MatchHandler) Get(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return domain.ErrMatchNotFound
	}

	entry, err := h.service.GetMatch(c.UserContext(), userID, id)
	if err != nil {
		return err
	}

	return c.JSON(entry)
}

func (h *MatchHandler) parseTopK(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return h.defaultTopK, nil
	}
	topK, err := strconv.Atoi(raw)
	if err != nil || topK < 1 || topK > service.MaxTopK {
		return 0, domain.ErrValidationFailed.WithError(fmt.Errorf("top_k must be between 1 and %d", service.MaxTopK))
	}
	return topK, nil
}

// extractAndValidateImage extracts and validates the image from the form
func (h *MatchHandler) extractAndValidateImage(c *fiber.Ctx) ([]byte, error) {
	// 1. Extract file
	file, err := c.FormFile("image")
	if err != nil {
		return nil, domain.ErrValidationFailed.WithError(errors.New("image is required"))
	}

	// 2. Validate size
	if file.Size == 0 || file.Size > h.maxImageSize {
		return nil, domain.ErrInvalidImage.WithError(fmt.Errorf("image size %d outside 1..%d bytes", file.Size, h.maxImageSize))
	}

	// 3. Validate Content-Type
	contentType := strings.ToLower(file.Header.Get("Content-Type"))
	if !validImageTypes[contentType] {
		return nil, domain.ErrInvalidImage.WithError(fmt.Errorf("unsupported content type %q", contentType))
	}

	// 4. Read image bytes
	f, err := file.Open()
	if err != nil {
		return nil, domain.ErrInvalidImage.WithError(err)
	}
	defer func() {
		_ = f.Close()
	}()

	imageBytes, err := io.ReadAll(f)
	if err != nil {
		return nil, domain.ErrInvalidImage.WithError(err)
	}

	return imageBytes, nil
}
