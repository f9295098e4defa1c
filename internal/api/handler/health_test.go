package handler

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/celebmatch/internal/matching"
)

func TestHealthHandler_Health(t *testing.T) {
	app := newTestApp(nil)
	handler := NewHealthHandler(staticStatus{State: matching.StateIdle}, "1.2.3")
	app.Get("/health", handler.Health)

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var result HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "ok", result.Status)
	assert.Equal(t, "1.2.3", result.Version)
}

func TestHealthHandler_Ready(t *testing.T) {
	tests := []struct {
		name           string
		status         matching.Status
		expectedStatus int
		expectedBody   HealthResponse
	}{
		{
			name:           "ready",
			status:         matching.Status{State: matching.StateReady, Entries: 3},
			expectedStatus: 200,
			expectedBody:   HealthResponse{Status: "ready", State: "ready"},
		},
		{
			name:           "still building",
			status:         matching.Status{State: matching.StateBuildingCache},
			expectedStatus: 503,
			expectedBody:   HealthResponse{Status: "not_ready", State: string(matching.StateBuildingCache)},
		},
		{
			name:           "failed carries reason",
			status:         matching.Status{State: matching.StateFailed, Reason: "MODEL_LOAD_ERROR"},
			expectedStatus: 503,
			expectedBody:   HealthResponse{Status: "not_ready", State: string(matching.StateFailed), Reason: "MODEL_LOAD_ERROR"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(nil)
			handler := NewHealthHandler(staticStatus(tt.status), "test")
			app.Get("/ready", handler.Ready)

			resp, err := app.Test(httptest.NewRequest("GET", "/ready", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			var result HealthResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
			assert.Equal(t, tt.expectedBody, result)
		})
	}
}
