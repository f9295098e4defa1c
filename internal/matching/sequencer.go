package matching

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/saturnino-fabrica-de-software/celebmatch/internal/domain"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/provider"
)

// State of the initialization lifecycle
type State string

const (
	StateIdle            State = "idle"
	StateLoadingProvider State = "loading_provider"
	StateBuildingCache   State = "building_cache"
	StateReady           State = "ready"
	StateFailed          State = "failed"
)

var (
	ErrNotFailed = errors.New("sequencer is not in failed state")
	ErrNotReady  = errors.New("sequencer is not ready")
)

// Status is a point-in-time view of the sequencer
type Status struct {
	State    State  `json:"state"`
	Reason   string `json:"reason,omitempty"`
	Err      error  `json:"-"`
	Entries  int    `json:"entries"`
	Failures int    `json:"failures"`
	Attempt  int    `json:"attempt"`
	// Refreshing is set while a fresh build replaces a restored snapshot
	Refreshing bool      `json:"refreshing,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Catalog is the record source for cache builds
type Catalog interface {
	Records() []domain.Celebrity
}

// SeedFunc returns descriptors computed by an earlier run, if any
type SeedFunc func(ctx context.Context) ([]Entry, error)

// Sequencer drives provider load then cache build exactly once per
// lifecycle. Concurrent callers share the in-flight lifecycle.
type Sequencer struct {
	provider provider.DescriptorProvider
	cache    *DescriptorCache
	catalog  Catalog
	seed     SeedFunc
	logger   *slog.Logger

	mu        sync.Mutex
	status    Status
	started   bool
	done      chan struct{}
	observers []func(Status)
}

// SequencerOption configures optional behaviour
type SequencerOption func(*Sequencer)

// WithSeed makes the sequencer publish previously computed descriptors so
// matching is available early. A full build still runs afterwards and
// replaces the seeded snapshot.
func WithSeed(seed SeedFunc) SequencerOption {
	return func(s *Sequencer) {
		s.seed = seed
	}
}

func NewSequencer(p provider.DescriptorProvider, cache *DescriptorCache, cat Catalog, logger *slog.Logger, opts ...SequencerOption) *Sequencer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sequencer{
		provider: p,
		cache:    cache,
		catalog:  cat,
		logger:   logger,
		status:   Status{State: StateIdle, UpdatedAt: time.Now().UTC()},
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Observe registers fn for every state change. fn runs under the
// sequencer lock, so it must not block or call back into the sequencer.
func (s *Sequencer) Observe(fn func(Status)) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

func (s *Sequencer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Sequencer) Ready() bool {
	return s.Status().State == StateReady
}

// Cache exposes the descriptor cache driven by this sequencer
func (s *Sequencer) Cache() *DescriptorCache {
	return s.cache
}

// Start begins initialization unless this lifecycle already started.
// Work continues after ctx is cancelled.
func (s *Sequencer) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	done := s.done
	attempt := s.status.Attempt + 1
	s.mu.Unlock()

	go s.run(context.WithoutCancel(ctx), done, attempt)
}

// Wait starts initialization if needed and blocks until it reaches Ready or
// Failed, or ctx ends. A Failed lifecycle returns its reason.
func (s *Sequencer) Wait(ctx context.Context) (Status, error) {
	s.Start(ctx)

	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return s.Status(), ctx.Err()
	}

	st := s.Status()
	if st.State == StateFailed {
		return st, st.Err
	}
	return st, nil
}

// Retry restarts a Failed lifecycle from Idle
func (s *Sequencer) Retry(ctx context.Context) error {
	s.mu.Lock()
	if s.status.State != StateFailed {
		s.mu.Unlock()
		return ErrNotFailed
	}
	s.started = false
	s.done = make(chan struct{})
	s.setLocked(Status{State: StateIdle, Attempt: s.status.Attempt})
	s.mu.Unlock()

	s.logger.Info("initialization retry requested")
	s.Start(ctx)
	return nil
}

// Reload rebuilds the cache while Ready. The state stays Ready throughout
// and a failed rebuild keeps the previous snapshot.
func (s *Sequencer) Reload(ctx context.Context) (*BuildReport, error) {
	if !s.Ready() {
		return nil, ErrNotReady
	}

	report, err := s.cache.Build(ctx, s.catalog.Records(), s.provider)
	if err != nil {
		s.logger.Warn("descriptor cache reload failed, previous snapshot kept", slog.Any("error", err))
		return report, err
	}

	s.mu.Lock()
	st := s.status
	st.Entries = report.Succeeded
	st.Failures = len(report.Failures)
	s.setLocked(st)
	s.mu.Unlock()

	return report, nil
}

func (s *Sequencer) run(ctx context.Context, done chan struct{}, attempt int) {
	finish := sync.OnceFunc(func() { close(done) })
	defer finish()

	s.transition(Status{State: StateLoadingProvider, Attempt: attempt})

	if err := s.provider.Initialize(ctx); err != nil {
		s.fail(attempt, domain.ErrModelLoad.WithError(err))
		return
	}

	s.transition(Status{State: StateBuildingCache, Attempt: attempt})

	records := s.catalog.Records()

	if s.seed != nil {
		if snap, ok := s.trySeed(ctx, records); ok {
			s.transition(Status{State: StateReady, Attempt: attempt, Entries: snap.Len(), Refreshing: true})
			// Waiters are released on the seeded snapshot
			finish()
			s.refresh(ctx, records)
			return
		}
	}

	report, err := s.cache.Build(ctx, records, s.provider)
	if err != nil {
		failures := 0
		if report != nil {
			failures = len(report.Failures)
		}
		s.failWith(Status{State: StateFailed, Attempt: attempt, Failures: failures}, err)
		return
	}

	s.transition(Status{
		State:    StateReady,
		Attempt:  attempt,
		Entries:  report.Succeeded,
		Failures: len(report.Failures),
	})
}

// refresh rebuilds from the catalog after a seeded start. A failed refresh
// keeps the restored snapshot live.
func (s *Sequencer) refresh(ctx context.Context, records []domain.Celebrity) {
	report, err := s.cache.Build(ctx, records, s.provider)
	if err != nil {
		s.logger.Warn("descriptor refresh failed, restored snapshot kept", slog.Any("error", err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.status
	st.Refreshing = false
	if err == nil {
		st.Entries = report.Succeeded
		st.Failures = len(report.Failures)
	}
	s.setLocked(st)
}

func (s *Sequencer) trySeed(ctx context.Context, records []domain.Celebrity) (*Snapshot, bool) {
	entries, err := s.seed(ctx)
	if err != nil {
		s.logger.Warn("descriptor seed unavailable, building from catalog", slog.Any("error", err))
		return nil, false
	}
	snap, err := s.cache.Restore(entries, records)
	if err != nil {
		s.logger.Info("descriptor seed empty, building from catalog")
		return nil, false
	}
	s.logger.Info("descriptor cache restored from seed", slog.Int("entries", snap.Len()))
	return snap, true
}

func (s *Sequencer) fail(attempt int, err error) {
	s.failWith(Status{State: StateFailed, Attempt: attempt}, err)
}

func (s *Sequencer) failWith(st Status, err error) {
	st.Err = err
	st.Reason = reasonOf(err)
	s.logger.Error("initialization failed",
		slog.String("reason", st.Reason),
		slog.Int("attempt", st.Attempt),
		slog.Any("error", err),
	)
	s.transition(st)
}

func (s *Sequencer) transition(st Status) {
	s.mu.Lock()
	s.setLocked(st)
	s.mu.Unlock()
}

// setLocked stores st and notifies observers; s.mu must be held
func (s *Sequencer) setLocked(st Status) {
	st.UpdatedAt = time.Now().UTC()
	s.status = st

	s.logger.Debug("initialization state changed", slog.String("state", string(st.State)))

	for _, fn := range s.observers {
		fn(st)
	}
}

func reasonOf(err error) string {
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
