package matching

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/saturnino-fabrica-de-software/celebmatch/internal/catalog"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/domain"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/provider"
)

// Entry is one usable celebrity descriptor
type Entry struct {
	CelebrityID string            `json:"celebrity_id"`
	Descriptor  domain.Descriptor `json:"descriptor"`
}

// Snapshot is an immutable published cache generation
type Snapshot struct {
	entries []Entry
	records map[string]domain.Celebrity
	version  uint64
	builtAt  time.Time
	restored bool
}

func newSnapshot(entries []Entry, records []domain.Celebrity, version uint64) *Snapshot {
	byID := make(map[string]domain.Celebrity, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}
	return &Snapshot{
		entries: entries,
		records: byID,
		version: version,
		builtAt: time.Now().UTC(),
	}
}

func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

// Entries returns a deep copy in catalog order
func (s *Snapshot) Entries() []Entry {
	if s == nil {
		return nil
	}
	out := make([]Entry, len(s.entries))
	for i, e := range s.entries {
		out[i] = Entry{CelebrityID: e.CelebrityID, Descriptor: e.Descriptor.Clone()}
	}
	return out
}

// Celebrity returns the catalog record behind an entry
func (s *Snapshot) Celebrity(id string) (domain.Celebrity, bool) {
	if s == nil {
		return domain.Celebrity{}, false
	}
	r, ok := s.records[id]
	return r, ok
}

func (s *Snapshot) Version() uint64 {
	if s == nil {
		return 0
	}
	return s.version
}

// Restored reports whether the snapshot came from Restore rather than a
// Build against the provider
func (s *Snapshot) Restored() bool {
	if s == nil {
		return false
	}
	return s.restored
}

func (s *Snapshot) BuiltAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.builtAt
}

// FailureReason classifies why a celebrity was left out of a build
type FailureReason string

const (
	ReasonNoFace        FailureReason = "no_face"
	ReasonDetection     FailureReason = "detection_error"
	ReasonFetch         FailureReason = "fetch_error"
	ReasonTimeout       FailureReason = "timeout"
	ReasonShapeMismatch FailureReason = "shape_mismatch"
	ReasonNotAttempted  FailureReason = "not_attempted"
)

// BuildFailure is one excluded celebrity
type BuildFailure struct {
	CelebrityID string        `json:"celebrity_id"`
	Reason      FailureReason `json:"reason"`
	Err         error         `json:"-"`
}

// BuildReport describes the outcome of one Build call
type BuildReport struct {
	Total     int            `json:"total"`
	Succeeded int            `json:"succeeded"`
	Failures  []BuildFailure `json:"failures"`
	TimedOut  bool           `json:"timed_out"`
	Duration  time.Duration  `json:"duration"`
	Version   uint64         `json:"version"`
}

// Partial reports whether some but not all records made it in
func (r *BuildReport) Partial() bool {
	return r.Succeeded > 0 && r.Succeeded < r.Total
}

// BuildOptions bounds a cache build
type BuildOptions struct {
	Concurrency  int
	TaskTimeout  time.Duration
	BuildTimeout time.Duration
}

func DefaultBuildOptions() BuildOptions {
	return BuildOptions{
		Concurrency:  4,
		TaskTimeout:  15 * time.Second,
		BuildTimeout: 2 * time.Minute,
	}
}

// DescriptorCache holds the live snapshot and rebuilds it on demand.
// Readers never block; rebuilds are serialized.
type DescriptorCache struct {
	fetcher catalog.ImageFetcher
	opts    BuildOptions
	logger  *slog.Logger

	current atomic.Pointer[Snapshot]
	version atomic.Uint64
	buildMu sync.Mutex

	obsMu          sync.RWMutex
	observers      []func(*Snapshot)
	buildObservers []func(*BuildReport, error)
}

func NewDescriptorCache(fetcher catalog.ImageFetcher, opts BuildOptions, logger *slog.Logger) *DescriptorCache {
	defaults := DefaultBuildOptions()
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaults.Concurrency
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = defaults.TaskTimeout
	}
	if opts.BuildTimeout <= 0 {
		opts.BuildTimeout = defaults.BuildTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DescriptorCache{
		fetcher: fetcher,
		opts:    opts,
		logger:  logger,
	}
}

// OnPublish registers fn to run after every publish
func (c *DescriptorCache) OnPublish(fn func(*Snapshot)) {
	c.obsMu.Lock()
	c.observers = append(c.observers, fn)
	c.obsMu.Unlock()
}

// OnBuild registers fn to run after every Build, successful or not
func (c *DescriptorCache) OnBuild(fn func(*BuildReport, error)) {
	c.obsMu.Lock()
	c.buildObservers = append(c.buildObservers, fn)
	c.obsMu.Unlock()
}

func (c *DescriptorCache) IsReady() bool {
	return c.current.Load().Len() > 0
}

// Snapshot returns the live generation or nil
func (c *DescriptorCache) Snapshot() *Snapshot {
	return c.current.Load()
}

func (c *DescriptorCache) Entries() []Entry {
	return c.current.Load().Entries()
}

// slot is written by exactly one task
type slot struct {
	done       bool
	descriptor domain.Descriptor
	reason     FailureReason
	err        error
}

// accumulator stops accepting writes once sealed so late tasks cannot
// change a committed build
type accumulator struct {
	mu     sync.Mutex
	sealed bool
	slots  []slot
}

func (a *accumulator) put(i int, s slot) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sealed {
		return
	}
	s.done = true
	a.slots[i] = s
}

func (a *accumulator) seal() []slot {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sealed = true
	out := make([]slot, len(a.slots))
	copy(out, a.slots)
	return out
}

// Build runs p over every record and publishes a fresh snapshot. Failed
// records are excluded and reported. With no usable entry it returns
// domain.ErrEmptyCatalog and the previous snapshot stays live.
func (c *DescriptorCache) Build(ctx context.Context, records []domain.Celebrity, p provider.DescriptorProvider) (*BuildReport, error) {
	c.buildMu.Lock()
	defer c.buildMu.Unlock()

	start := time.Now()
	report := &BuildReport{Total: len(records)}

	buildCtx, cancel := context.WithTimeout(ctx, c.opts.BuildTimeout)
	defer cancel()

	acc := &accumulator{slots: make([]slot, len(records))}
	workers := pool.New().WithMaxGoroutines(c.opts.Concurrency)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i, rec := range records {
			if buildCtx.Err() != nil {
				break
			}
			workers.Go(func() {
				acc.put(i, c.describe(buildCtx, rec, p))
			})
		}
		workers.Wait()
	}()

	select {
	case <-done:
	case <-buildCtx.Done():
		report.TimedOut = ctx.Err() == nil
	}

	slots := acc.seal()

	entries := make([]Entry, 0, len(records))
	for i, s := range slots {
		rec := records[i]
		switch {
		case !s.done:
			report.Failures = append(report.Failures, BuildFailure{
				CelebrityID: rec.ID,
				Reason:      ReasonNotAttempted,
				Err:         context.DeadlineExceeded,
			})
		case s.err != nil:
			report.Failures = append(report.Failures, BuildFailure{
				CelebrityID: rec.ID,
				Reason:      s.reason,
				Err:         s.err,
			})
		default:
			entries = append(entries, Entry{CelebrityID: rec.ID, Descriptor: s.descriptor})
		}
	}

	for _, f := range report.Failures {
		c.logger.Warn("celebrity excluded from descriptor cache",
			slog.String("celebrity_id", f.CelebrityID),
			slog.String("reason", string(f.Reason)),
			slog.Any("error", f.Err),
		)
	}

	report.Succeeded = len(entries)
	report.Duration = time.Since(start)

	if len(entries) == 0 {
		c.logger.Error("descriptor cache build produced no entries",
			slog.Int("total", report.Total),
			slog.Bool("timed_out", report.TimedOut),
		)
		c.notifyBuild(report, domain.ErrEmptyCatalog)
		return report, domain.ErrEmptyCatalog
	}

	snap := c.publish(newSnapshot(entries, records, c.version.Add(1)))
	report.Version = snap.version

	c.logger.Info("descriptor cache published",
		slog.Uint64("version", snap.version),
		slog.Int("entries", report.Succeeded),
		slog.Int("failures", len(report.Failures)),
		slog.Duration("duration", report.Duration),
	)

	c.notifyBuild(report, nil)
	return report, nil
}

func (c *DescriptorCache) notifyBuild(report *BuildReport, err error) {
	c.obsMu.RLock()
	observers := append([]func(*BuildReport, error){}, c.buildObservers...)
	c.obsMu.RUnlock()

	for _, fn := range observers {
		fn(report, err)
	}
}

// Restore publishes previously computed entries, keeping only those whose
// celebrity is in records and whose descriptor has the expected length.
func (c *DescriptorCache) Restore(entries []Entry, records []domain.Celebrity) (*Snapshot, error) {
	c.buildMu.Lock()
	defer c.buildMu.Unlock()

	byID := make(map[string]domain.Descriptor, len(entries))
	for _, e := range entries {
		if len(e.Descriptor) == domain.DescriptorDimension {
			byID[e.CelebrityID] = e.Descriptor
		}
	}

	kept := make([]Entry, 0, len(records))
	for _, r := range records {
		if d, ok := byID[r.ID]; ok {
			kept = append(kept, Entry{CelebrityID: r.ID, Descriptor: d.Clone()})
		}
	}

	if len(kept) == 0 {
		return nil, domain.ErrEmptyCatalog
	}

	snap := newSnapshot(kept, records, c.version.Add(1))
	snap.restored = true
	return c.publish(snap), nil
}

func (c *DescriptorCache) publish(snap *Snapshot) *Snapshot {
	c.current.Store(snap)

	c.obsMu.RLock()
	observers := append([]func(*Snapshot){}, c.observers...)
	c.obsMu.RUnlock()

	for _, fn := range observers {
		fn(snap)
	}
	return snap
}

// describe fetches one image and asks the provider for its descriptor
func (c *DescriptorCache) describe(buildCtx context.Context, rec domain.Celebrity, p provider.DescriptorProvider) slot {
	if err := buildCtx.Err(); err != nil {
		return slot{reason: ReasonTimeout, err: err}
	}

	ctx, cancel := context.WithTimeout(buildCtx, c.opts.TaskTimeout)
	defer cancel()

	img, err := c.fetcher.Fetch(ctx, rec.ImageRef)
	if err != nil {
		if ctx.Err() != nil {
			return slot{reason: ReasonTimeout, err: err}
		}
		return slot{reason: ReasonFetch, err: err}
	}

	d, err := p.DetectDescriptor(ctx, img)
	switch {
	case errors.Is(err, provider.ErrNoFace):
		return slot{reason: ReasonNoFace, err: err}
	case err != nil && ctx.Err() != nil:
		return slot{reason: ReasonTimeout, err: err}
	case err != nil:
		return slot{reason: ReasonDetection, err: err}
	}

	if len(d) != domain.DescriptorDimension {
		return slot{
			reason: ReasonShapeMismatch,
			err:    fmt.Errorf("descriptor has %d values, want %d", len(d), domain.DescriptorDimension),
		}
	}

	return slot{descriptor: d.Clone()}
}
