package handler

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/celebmatch/internal/domain"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/service"
)

var jpegBytes = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}

func sampleOutcome() *domain.MatchOutcome {
	return &domain.MatchOutcome{
		Results: []domain.MatchResult{
			{CelebrityID: "1", Name: "Ana", MatchPercentage: 91, Distance: 0.35},
			{CelebrityID: "2", Name: "Bia", MatchPercentage: 40, Distance: 0.8},
		},
		LatencyMs: 12,
	}
}

func TestMatchHandler_Match(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name           string
		userID         *uuid.UUID
		fields         map[string]string
		image          []byte
		contentType    string
		setupMock      func(*MockMatchService)
		expectedStatus int
		expectedCode   string
	}{
		{
			name:        "anonymous match uses default top_k",
			image:       jpegBytes,
			contentType: "image/jpeg",
			setupMock: func(m *MockMatchService) {
				m.On("Match", mock.Anything, mock.MatchedBy(func(req service.MatchRequest) bool {
					return req.UserID == nil && req.TopK == 3 && len(req.Image) == len(jpegBytes)
				})).Return(sampleOutcome(), nil)
			},
			expectedStatus: 200,
		},
		{
			name:        "authenticated match forwards user and top_k",
			userID:      &userID,
			fields:      map[string]string{"top_k": "5"},
			image:       jpegBytes,
			contentType: "image/png",
			setupMock: func(m *MockMatchService) {
				m.On("Match", mock.Anything, mock.MatchedBy(func(req service.MatchRequest) bool {
					return req.UserID != nil && *req.UserID == userID && req.TopK == 5
				})).Return(sampleOutcome(), nil)
			},
			expectedStatus: 200,
		},
		{
			name:           "missing image",
			setupMock:      func(m *MockMatchService) {},
			expectedStatus: 422,
			expectedCode:   "VALIDATION_FAILED",
		},
		{
			name:           "unsupported content type",
			image:          []byte("GIF89a"),
			contentType:    "image/gif",
			setupMock:      func(m *MockMatchService) {},
			expectedStatus: 422,
			expectedCode:   "INVALID_IMAGE",
		},
		{
			name:           "top_k out of range",
			fields:         map[string]string{"top_k": "11"},
			image:          jpegBytes,
			contentType:    "image/jpeg",
			setupMock:      func(m *MockMatchService) {},
			expectedStatus: 422,
			expectedCode:   "VALIDATION_FAILED",
		},
		{
			name:           "top_k not a number",
			fields:         map[string]string{"top_k": "many"},
			image:          jpegBytes,
			contentType:    "image/jpeg",
			setupMock:      func(m *MockMatchService) {},
			expectedStatus: 422,
			expectedCode:   "VALIDATION_FAILED",
		},
		{
			name:        "cache not ready is retryable",
			image:       jpegBytes,
			contentType: "image/jpeg",
			setupMock: func(m *MockMatchService) {
				m.On("Match", mock.Anything, mock.Anything).Return(nil, domain.ErrCacheNotReady)
			},
			expectedStatus: 503,
			expectedCode:   "CACHE_NOT_READY",
		},
		{
			name:        "no face",
			image:       jpegBytes,
			contentType: "image/jpeg",
			setupMock: func(m *MockMatchService) {
				m.On("Match", mock.Anything, mock.Anything).Return(nil, domain.ErrNoFaceDetected)
			},
			expectedStatus: 422,
			expectedCode:   "NO_FACE_DETECTED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockMatchService)
			tt.setupMock(svc)

			app := newTestApp(tt.userID)
			h := NewMatchHandler(svc, 3, 0)
			app.Post("/v1/match", h.Match)

			body, contentType, err := createMultipartRequest(tt.fields, tt.image, tt.contentType)
			require.NoError(t, err)

			req := httptest.NewRequest("POST", "/v1/match", body)
			req.Header.Set("Content-Type", contentType)

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedCode != "" {
				var errBody struct {
					Error struct {
						Code string `json:"code"`
					} `json:"error"`
				}
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&errBody))
				assert.Equal(t, tt.expectedCode, errBody.Error.Code)
			} else {
				var outcome domain.MatchOutcome
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&outcome))
				assert.Len(t, outcome.Results, 2)
				assert.Equal(t, 91, outcome.Results[0].MatchPercentage)
			}

			svc.AssertExpectations(t)
		})
	}
}

func TestMatchHandler_ImageTooLarge(t *testing.T) {
	svc := new(MockMatchService)
	app := newTestApp(nil)
	h := NewMatchHandler(svc, 3, 8)
	app.Post("/v1/match", h.Match)

	body, contentType, err := createMultipartRequest(nil, []byte(strings.Repeat("x", 9)), "image/jpeg")
	require.NoError(t, err)
	req := httptest.NewRequest("POST", "/v1/match", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 422, resp.StatusCode)
	svc.AssertNotCalled(t, "Match", mock.Anything, mock.Anything)
}

func TestMatchHandler_History(t *testing.T) {
	userID := uuid.New()
	entries := []domain.MatchHistoryEntry{
		{ID: uuid.New(), UserID: userID, Results: sampleOutcome().Results, CreatedAt: time.Now()},
	}

	t.Run("requires authentication", func(t *testing.T) {
		svc := new(MockMatchService)
		app := newTestApp(nil)
		app.Get("/v1/matches", NewMatchHandler(svc, 3, 0).History)

		resp, err := app.Test(httptest.NewRequest("GET", "/v1/matches", nil))
		require.NoError(t, err)
		assert.Equal(t, 401, resp.StatusCode)
	})

	t.Run("lists with limit", func(t *testing.T) {
		svc := new(MockMatchService)
		svc.On("History", mock.Anything, userID, 5).Return(entries, nil)

		app := newTestApp(&userID)
		app.Get("/v1/matches", NewMatchHandler(svc, 3, 0).History)

		resp, err := app.Test(httptest.NewRequest("GET", "/v1/matches?limit=5", nil))
		require.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)

		var result MatchHistoryResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
		assert.Equal(t, 1, result.Total)
		assert.Equal(t, entries[0].ID, result.Matches[0].ID)
		svc.AssertExpectations(t)
	})

	t.Run("rejects limit above maximum", func(t *testing.T) {
		svc := new(MockMatchService)
		app := newTestApp(&userID)
		app.Get("/v1/matches", NewMatchHandler(svc, 3, 0).History)

		resp, err := app.Test(httptest.NewRequest("GET", "/v1/matches?limit=500", nil))
		require.NoError(t, err)
		assert.Equal(t, 422, resp.StatusCode)
	})
}

func TestMatchHandler_Get(t *testing.T) {
	userID := uuid.New()
	matchID := uuid.New()

	tests := []struct {
		name           string
		path           string
		setupMock      func(*MockMatchService)
		expectedStatus int
	}{
		{
			name: "found",
			path: "/v1/matches/" + matchID.String(),
			setupMock: func(m *MockMatchService) {
				m.On("GetMatch", mock.Anything, userID, matchID).
					Return(&domain.MatchHistoryEntry{ID: matchID, UserID: userID}, nil)
			},
			expectedStatus: 200,
		},
		{
			name: "belongs to someone else",
			path: "/v1/matches/" + matchID.String(),
			setupMock: func(m *MockMatchService) {
				m.On("GetMatch", mock.Anything, userID, matchID).Return(nil, domain.ErrMatchNotFound)
			},
			expectedStatus: 404,
		},
		{
			name:           "malformed id",
			path:           "/v1/matches/not-a-uuid",
			setupMock:      func(m *MockMatchService) {},
			expectedStatus: 404,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockMatchService)
			tt.setupMock(svc)

			app := newTestApp(&userID)
			app.Get("/v1/matches/:id", NewMatchHandler(svc, 3, 0).Get)

			resp, err := app.Test(httptest.NewRequest("GET", tt.path, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
			svc.AssertExpectations(t)
		})
	}
}
