package ws

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventInitState      EventType = "init.state"
	EventCachePublished EventType = "cache.published"
	EventMatchCompleted EventType = "match.completed"
)

// Event is pushed to websocket clients. A nil UserID reaches every client.
type Event struct {
	UserID    *uuid.UUID  `json:"-"`
	Type      EventType   `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// CachePublished is the payload of EventCachePublished
type CachePublished struct {
	Version uint64 `json:"version"`
	Entries int    `json:"entries"`
}
