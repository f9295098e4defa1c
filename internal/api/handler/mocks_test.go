package handler

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/textproto"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/saturnino-fabrica-de-software/celebmatch/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/domain"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/matching"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/service"
)

// MockMatchService is a mock implementation of MatchService
type MockMatchService struct {
	mock.Mock
}

func (m *MockMatchService) Match(ctx context.Context, req service.MatchRequest) (*domain.MatchOutcome, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MatchOutcome), args.Error(1)
}

func (m *MockMatchService) History(ctx context.Context, userID uuid.UUID, limit int) ([]domain.MatchHistoryEntry, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.MatchHistoryEntry), args.Error(1)
}

func (m *MockMatchService) GetMatch(ctx context.Context, userID, id uuid.UUID) (*domain.MatchHistoryEntry, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MatchHistoryEntry), args.Error(1)
}

// MockAuthService is a mock implementation of AuthService
type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Register(ctx context.Context, email, password, name string) (*service.AuthResult, error) {
	args := m.Called(ctx, email, password, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AuthResult), args.Error(1)
}

func (m *MockAuthService) Login(ctx context.Context, email, password string) (*service.AuthResult, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AuthResult), args.Error(1)
}

func (m *MockAuthService) Me(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

// MockInitializer is a mock implementation of Initializer
type MockInitializer struct {
	mock.Mock
}

func (m *MockInitializer) Status() matching.Status {
	return m.Called().Get(0).(matching.Status)
}

func (m *MockInitializer) Retry(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockInitializer) Reload(ctx context.Context) (*matching.BuildReport, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*matching.BuildReport), args.Error(1)
}

// MockQuotaAdmin is a mock implementation of QuotaAdmin
type MockQuotaAdmin struct {
	mock.Mock
}

func (m *MockQuotaAdmin) GetCurrentCount(ctx context.Context, userID uuid.UUID) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockQuotaAdmin) ResetLimit(ctx context.Context, userID uuid.UUID) error {
	return m.Called(ctx, userID).Error(0)
}

type staticStatus matching.Status

func (s staticStatus) Status() matching.Status { return matching.Status(s) }

// testLogger returns a logger that discards all output
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestApp wires the production error handler and, when userID is
// non-nil, simulates an authenticated request.
func newTestApp(userID *uuid.UUID) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(testLogger())})
	if userID != nil {
		app.Use(func(c *fiber.Ctx) error {
			c.Locals(middleware.LocalUserID, *userID)
			return c.Next()
		})
	}
	return app
}

// Helper to create multipart request
func createMultipartRequest(fields map[string]string, imageContent []byte, contentType string) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for k, v := range fields {
		_ = writer.WriteField(k, v)
	}

	if imageContent != nil {
		// Create part with custom Content-Type header
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="image"; filename="face.jpg"`)
		h.Set("Content-Type", contentType)

		part, err := writer.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		_, _ = part.Write(imageContent)
	}

	_ = writer.Close()
	return body, writer.FormDataContentType(), nil
}
