package domain

import (
	"time"

	"github.com/google/uuid"
)

// MatchResult is one ranked celebrity for a user photo
type MatchResult struct {
	CelebrityID     string  `json:"celebrity_id"`
	Name            string  `json:"name"`
	ImageRef        string  `json:"image_ref"`
	MatchPercentage int     `json:"match_percentage"`
	Distance        float64 `json:"distance"`
}

// MatchHistoryEntry is a persisted match for an authenticated user
type MatchHistoryEntry struct {
	ID           uuid.UUID     `json:"id"`
	UserID       uuid.UUID     `json:"-"`
	UserImageRef string        `json:"user_image_ref"`
	Results      []MatchResult `json:"results"`
	CreatedAt    time.Time     `json:"created_at"`
}

// ShareContent is the text offered to the user for social sharing
type ShareContent struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Hashtags    string `json:"hashtags"`
	ShareURL    string `json:"share_url"`
}

// MatchOutcome is everything produced by one match request
type MatchOutcome struct {
	MatchID      *uuid.UUID    `json:"match_id,omitempty"`
	UserImageRef string        `json:"user_image_ref,omitempty"`
	Results      []MatchResult `json:"results"`
	Share        *ShareContent `json:"share,omitempty"`
	LatencyMs    int64         `json:"latency_ms"`
}
