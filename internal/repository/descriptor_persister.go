package repository

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/saturnino-fabrica-de-software/celebmatch/internal/matching"
)

// DescriptorWriter replaces the stored descriptor set
type DescriptorWriter interface {
	ReplaceAll(ctx context.Context, model string, version uint64, items []StoredDescriptor) error
}

// DescriptorPersister stores published snapshots for warm starts. Writes are
// serialized and never move the table back to an older snapshot version.
// Restored snapshots are skipped since their rows are already stored.
type DescriptorPersister struct {
	writer  DescriptorWriter
	model   string
	timeout time.Duration
	logger  *slog.Logger

	mu   sync.Mutex
	last uint64
}

// NewDescriptorPersister tags every stored row with model, the fingerprint
// of the provider that built the snapshots.
func NewDescriptorPersister(writer DescriptorWriter, model string, timeout time.Duration, logger *slog.Logger) *DescriptorPersister {
	if logger == nil {
		logger = slog.Default()
	}
	return &DescriptorPersister{
		writer:  writer,
		model:   model,
		timeout: timeout,
		logger:  logger,
	}
}

// Persist writes snap and reports whether it did. Restored snapshots and
// versions not newer than the last write are skipped.
func (p *DescriptorPersister) Persist(ctx context.Context, snap *matching.Snapshot) (bool, error) {
	if snap == nil || snap.Restored() {
		return false, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if snap.Version() <= p.last {
		return false, nil
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	if err := p.writer.ReplaceAll(ctx, p.model, snap.Version(), StoredDescriptorsOf(snap)); err != nil {
		return false, err
	}
	p.last = snap.Version()
	return true, nil
}

// Observe is a DescriptorCache.OnPublish hook. The write runs in the
// background so publishing never waits on the database.
func (p *DescriptorPersister) Observe(snap *matching.Snapshot) {
	go func() {
		written, err := p.Persist(context.Background(), snap)
		switch {
		case err != nil:
			p.logger.Warn("descriptor snapshot not persisted",
				slog.Uint64("version", snap.Version()),
				slog.Any("error", err),
			)
		case written:
			p.logger.Info("descriptor snapshot persisted",
				slog.Uint64("version", snap.Version()),
				slog.Int("entries", snap.Len()),
			)
		}
	}()
}

// StoredDescriptorsOf converts the entries of snap into rows
func StoredDescriptorsOf(snap *matching.Snapshot) []StoredDescriptor {
	entries := snap.Entries()
	items := make([]StoredDescriptor, 0, len(entries))
	for _, e := range entries {
		celebrity, ok := snap.Celebrity(e.CelebrityID)
		if !ok {
			continue
		}
		items = append(items, StoredDescriptor{Celebrity: celebrity, Descriptor: e.Descriptor})
	}
	return items
}
