package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/saturnino-fabrica-de-software/celebmatch/internal/domain"
)

const memoKeyPrefix = "descriptor:"

// DescriptorMemo remembers user photo descriptors by image digest so a
// repeated upload skips the provider.
type DescriptorMemo struct {
	store  Store
	ttl    time.Duration
	logger *slog.Logger
}

func NewDescriptorMemo(store Store, ttl time.Duration, logger *slog.Logger) *DescriptorMemo {
	if store == nil {
		store = NopStore{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DescriptorMemo{store: store, ttl: ttl, logger: logger}
}

// Key returns the memo key for an image
func Key(image []byte) string {
	sum := sha256.Sum256(image)
	return memoKeyPrefix + hex.EncodeToString(sum[:])
}

// Get returns the remembered descriptor. Store failures count as a miss.
func (m *DescriptorMemo) Get(ctx context.Context, image []byte) (domain.Descriptor, bool) {
	key := Key(image)
	raw, err := m.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) && !errors.Is(err, ErrCacheExpired) {
			m.logger.Warn("descriptor memo read failed", slog.String("key", key), slog.Any("error", err))
		}
		return nil, false
	}

	var d domain.Descriptor
	if err := json.Unmarshal(raw, &d); err != nil || len(d) != domain.DescriptorDimension {
		m.logger.Warn("descriptor memo entry unusable, dropping", slog.String("key", key))
		_ = m.store.Delete(ctx, key)
		return nil, false
	}
	return d, true
}

// Put stores d; errors are logged and swallowed
func (m *DescriptorMemo) Put(ctx context.Context, image []byte, d domain.Descriptor) {
	key := Key(image)
	raw, err := json.Marshal(d)
	if err != nil {
		return
	}
	if err := m.store.Set(ctx, key, raw, m.ttl); err != nil {
		m.logger.Warn("descriptor memo write failed", slog.String("key", key), slog.Any("error", err))
	}
}
