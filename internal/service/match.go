package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/celebmatch/internal/audit"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/domain"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/matching"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/metrics"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/provider"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/share"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/ws"
)

// MaxTopK bounds the number of results a caller may request
const MaxTopK = 10

// Readiness reports the initialization state and the live snapshot
type Readiness interface {
	Status() matching.Status
	Cache() *matching.DescriptorCache
}

// DescriptorMemo remembers descriptors of previously seen images
type DescriptorMemo interface {
	Get(ctx context.Context, image []byte) (domain.Descriptor, bool)
	Put(ctx context.Context, image []byte, d domain.Descriptor)
}

// QuotaChecker limits match attempts per user
type QuotaChecker interface {
	CheckMatchQuota(ctx context.Context, userID uuid.UUID, limit int) error
}

// ImageStore uploads user photos and returns a public URL
type ImageStore interface {
	Put(ctx context.Context, data []byte) (string, error)
}

// MatchHistoryRepositoryInterface persists matches of authenticated users
type MatchHistoryRepositoryInterface interface {
	Create(ctx context.Context, entry *domain.MatchHistoryEntry) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.MatchHistoryEntry, error)
	GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.MatchHistoryEntry, error)
}

// Recorder receives match metrics
type Recorder interface {
	ObserveMatch(outcome string, d time.Duration)
	ObserveMemo(hit bool)
}

// Notifier pushes events to a user's websocket clients
type Notifier interface {
	SendToUser(userID uuid.UUID, eventType ws.EventType, data interface{})
}

// MatchRequest is one user photo to match
type MatchRequest struct {
	UserID *uuid.UUID
	Image  []byte
	TopK   int
}

type nopRecorder struct{}

func (nopRecorder) ObserveMatch(string, time.Duration) {}
func (nopRecorder) ObserveMemo(bool)                   {}

type MatchService struct {
	provider  provider.DescriptorProvider
	engine    *matching.Engine
	readiness Readiness
	logger    *slog.Logger

	memo       DescriptorMemo
	quota      QuotaChecker
	quotaLimit int
	uploads    ImageStore
	history    MatchHistoryRepositoryInterface
	recorder   Recorder
	notifier   Notifier
	audit      audit.Logger
	shareURL   string
}

func NewMatchService(
	descriptorProvider provider.DescriptorProvider,
	engine *matching.Engine,
	readiness Readiness,
	logger *slog.Logger,
) *MatchService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MatchService{
		provider:  descriptorProvider,
		engine:    engine,
		readiness: readiness,
		logger:    logger,
		recorder:  nopRecorder{},
		audit:     &audit.NoOpLogger{},
	}
}

func (s *MatchService) WithMemo(memo DescriptorMemo) *MatchService {
	s.memo = memo
	return s
}

func (s *MatchService) WithQuota(quota QuotaChecker, perHour int) *MatchService {
	s.quota = quota
	s.quotaLimit = perHour
	return s
}

func (s *MatchService) WithUploads(store ImageStore) *MatchService {
	s.uploads = store
	return s
}

func (s *MatchService) WithHistory(history MatchHistoryRepositoryInterface) *MatchService {
	s.history = history
	return s
}

func (s *MatchService) WithRecorder(recorder Recorder) *MatchService {
	if recorder != nil {
		s.recorder = recorder
	}
	return s
}

func (s *MatchService) WithNotifier(notifier Notifier) *MatchService {
	s.notifier = notifier
	return s
}

func (s *MatchService) WithAudit(logger audit.Logger) *MatchService {
	if logger != nil {
		s.audit = logger
	}
	return s
}

func (s *MatchService) WithShareURL(url string) *MatchService {
	s.shareURL = url
	return s
}

// Match finds the celebrities closest to the face in req.Image
func (s *MatchService) Match(ctx context.Context, req MatchRequest) (outcome *domain.MatchOutcome, err error) {
	start := time.Now()
	defer func() {
		s.recorder.ObserveMatch(outcomeLabel(err), time.Since(start))
	}()

	if req.TopK < 0 || req.TopK > MaxTopK {
		return nil, domain.ErrValidationFailed.WithError(fmt.Errorf("top_k must be between 1 and %d", MaxTopK))
	}
	if len(req.Image) == 0 {
		return nil, domain.ErrInvalidImage
	}

	if err := s.checkReady(); err != nil {
		return nil, err
	}

	if req.UserID != nil && s.quota != nil {
		if err := s.quota.CheckMatchQuota(ctx, *req.UserID, s.quotaLimit); err != nil {
			return nil, err
		}
	}

	descriptor, err := s.describe(ctx, req.Image)
	if err != nil {
		return nil, err
	}

	results, err := s.engine.Match(descriptor, s.readiness.Cache().Snapshot(), req.TopK)
	if err != nil {
		return nil, err
	}

	outcome = &domain.MatchOutcome{Results: results}
	s.auditMatch(ctx, req.UserID, results)

	if len(results) > 0 {
		content := share.Build(results[0], s.shareURL)
		outcome.Share = &content
	}

	if req.UserID != nil {
		s.persist(ctx, *req.UserID, req.Image, outcome)
	}

	outcome.LatencyMs = time.Since(start).Milliseconds()
	return outcome, nil
}

func (s *MatchService) checkReady() error {
	st := s.readiness.Status()
	switch st.State {
	case matching.StateReady:
		return nil
	case matching.StateFailed:
		return domain.ErrMatchingUnavailable.WithError(fmt.Errorf("initialization failed: %s", st.Reason))
	default:
		return domain.ErrCacheNotReady
	}
}

func (s *MatchService) describe(ctx context.Context, image []byte) (domain.Descriptor, error) {
	if s.memo != nil {
		d, ok := s.memo.Get(ctx, image)
		s.recorder.ObserveMemo(ok)
		if ok {
			return d, nil
		}
	}

	d, err := s.provider.DetectDescriptor(ctx, image)
	switch {
	case errors.Is(err, provider.ErrNoFace):
		return nil, domain.ErrNoFaceDetected
	case errors.Is(err, provider.ErrInvalidImage):
		return nil, domain.ErrInvalidImage.WithError(err)
	case err != nil:
		return nil, domain.ErrDetectionFailed.WithError(err)
	}

	if s.memo != nil {
		s.memo.Put(ctx, image, d)
	}
	return d, nil
}

// persist uploads the photo and records history. Failures are logged and
// leave outcome without a MatchID.
func (s *MatchService) persist(ctx context.Context, userID uuid.UUID, image []byte, outcome *domain.MatchOutcome) {
	if s.uploads != nil {
		url, err := s.uploads.Put(ctx, image)
		if err != nil {
			s.logger.Warn("user photo upload failed",
				slog.String("user_id", userID.String()),
				slog.Any("error", err),
			)
		} else {
			outcome.UserImageRef = url
			s.record(ctx, audit.Event{
				EventType: audit.EventPhotoStored,
				UserID:    &userID,
				Subject:   url,
				Success:   true,
			})
		}
	}

	if s.history == nil {
		return
	}

	entry := &domain.MatchHistoryEntry{
		UserID:       userID,
		UserImageRef: outcome.UserImageRef,
		Results:      outcome.Results,
	}
	if err := s.history.Create(ctx, entry); err != nil {
		s.logger.Warn("match history not saved",
			slog.String("user_id", userID.String()),
			slog.Any("error", err),
		)
		return
	}

	id := entry.ID
	outcome.MatchID = &id

	if s.notifier != nil {
		s.notifier.SendToUser(userID, ws.EventMatchCompleted, entry)
	}
}

func (s *MatchService) auditMatch(ctx context.Context, userID *uuid.UUID, results []domain.MatchResult) {
	event := audit.Event{
		EventType: audit.EventPhotoMatched,
		UserID:    userID,
		Success:   true,
		Metadata:  map[string]string{"results": strconv.Itoa(len(results))},
	}
	if len(results) > 0 {
		event.Metadata["top_celebrity_id"] = results[0].CelebrityID
	}
	s.record(ctx, event)
}

func (s *MatchService) record(ctx context.Context, event audit.Event) {
	if err := s.audit.Log(ctx, event); err != nil {
		s.logger.Warn("audit event dropped",
			slog.String("event_type", string(event.EventType)),
			slog.Any("error", err),
		)
	}
}

// History lists the user's recent matches, newest first
func (s *MatchService) History(ctx context.Context, userID uuid.UUID, limit int) ([]domain.MatchHistoryEntry, error) {
	if s.history == nil {
		return []domain.MatchHistoryEntry{}, nil
	}
	return s.history.ListByUser(ctx, userID, limit)
}

// GetMatch returns one of the user's matches
func (s *MatchService) GetMatch(ctx context.Context, userID, id uuid.UUID) (*domain.MatchHistoryEntry, error) {
	if s.history == nil {
		return nil, domain.ErrMatchNotFound
	}
	return s.history.GetByID(ctx, userID, id)
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeMatched
	case errors.Is(err, domain.ErrNoFaceDetected):
		return metrics.OutcomeNoFace
	case errors.Is(err, domain.ErrCacheNotReady), errors.Is(err, domain.ErrMatchingUnavailable):
		return metrics.OutcomeNotReady
	case errors.Is(err, domain.ErrRateLimitExceeded):
		return metrics.OutcomeRateLimited
	default:
		return metrics.OutcomeError
	}
}
