package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlogLogger_Log(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name          string
		event         Event
		wantEventType string
		wantContains  []string
	}{
		{
			name: "anonymous photo matched",
			event: Event{
				EventType: EventPhotoMatched,
				Success:   true,
				Metadata:  map[string]string{"top_celebrity_id": "42"},
			},
			wantEventType: string(EventPhotoMatched),
			wantContains:  []string{"top_celebrity_id"},
		},
		{
			name: "photo stored for user",
			event: Event{
				EventType: EventPhotoStored,
				UserID:    &userID,
				Subject:   "https://storage.example.com/user-uploads/1_abc.jpg",
				Success:   true,
			},
			wantEventType: string(EventPhotoStored),
			wantContains:  []string{userID.String(), "1_abc.jpg"},
		},
		{
			name: "failed login",
			event: Event{
				EventType: EventLoginFailed,
				Subject:   "ana@example.com",
				Success:   false,
				Error:     "invalid credentials",
			},
			wantEventType: string(EventLoginFailed),
			wantContains:  []string{"invalid credentials", "ana@example.com"},
		},
		{
			name: "descriptors built",
			event: Event{
				EventType: EventDescriptorsBuilt,
				Success:   true,
				Metadata:  map[string]string{"version": "3", "entries": "98"},
			},
			wantEventType: string(EventDescriptorsBuilt),
			wantContains:  []string{"98"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))

			auditLogger := NewSlogLogger(logger)
			err := auditLogger.Log(context.Background(), tt.event)
			require.NoError(t, err)

			output := buf.String()
			assert.Contains(t, output, tt.wantEventType)
			assert.Contains(t, output, "audit_event")
			assert.Contains(t, output, `"component":"audit"`)
			for _, s := range tt.wantContains {
				assert.Contains(t, output, s)
			}
		})
	}
}

func TestSlogLogger_Log_GeneratesIDAndTimestamp(t *testing.T) {
	var buf bytes.Buffer
	auditLogger := NewSlogLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	err := auditLogger.Log(context.Background(), Event{EventType: EventAccountCreated, Success: true})
	require.NoError(t, err)

	var logEntry map[string]interface{}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &logEntry))

	eventID, ok := logEntry["event_id"].(string)
	assert.True(t, ok)
	_, err = uuid.Parse(eventID)
	assert.NoError(t, err)
	assert.Equal(t, "", logEntry["user_id"])
}

func TestSlogLogger_Log_UsesProvidedIDAndTimestamp(t *testing.T) {
	var buf bytes.Buffer
	auditLogger := NewSlogLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	expectedID := uuid.New()
	expectedTimestamp := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	err := auditLogger.Log(context.Background(), Event{
		ID:        expectedID,
		Timestamp: expectedTimestamp,
		EventType: EventLoginSucceeded,
		Success:   true,
	})
	require.NoError(t, err)

	var logEntry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &logEntry))
	assert.Equal(t, expectedID.String(), logEntry["event_id"])

	var event Event
	require.NoError(t, json.Unmarshal([]byte(logEntry["event_data"].(string)), &event))
	assert.True(t, event.Timestamp.Equal(expectedTimestamp))
}

func TestNoOpLogger(t *testing.T) {
	var l Logger = &NoOpLogger{}
	assert.NoError(t, l.Log(context.Background(), Event{EventType: EventPhotoMatched}))
}
