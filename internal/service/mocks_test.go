package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/saturnino-fabrica-de-software/celebmatch/internal/audit"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/domain"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/matching"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/ws"
)

type MockDescriptorProvider struct {
	mock.Mock
}

func (m *MockDescriptorProvider) Initialize(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockDescriptorProvider) DetectDescriptor(ctx context.Context, image []byte) (domain.Descriptor, error) {
	args := m.Called(ctx, image)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(domain.Descriptor), args.Error(1)
}

type MockMemo struct {
	mock.Mock
}

func (m *MockMemo) Get(ctx context.Context, image []byte) (domain.Descriptor, bool) {
	args := m.Called(ctx, image)
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).(domain.Descriptor), args.Bool(1)
}

func (m *MockMemo) Put(ctx context.Context, image []byte, d domain.Descriptor) {
	m.Called(ctx, image, d)
}

type MockQuota struct {
	mock.Mock
}

func (m *MockQuota) CheckMatchQuota(ctx context.Context, userID uuid.UUID, limit int) error {
	return m.Called(ctx, userID, limit).Error(0)
}

type MockImageStore struct {
	mock.Mock
}

func (m *MockImageStore) Put(ctx context.Context, data []byte) (string, error) {
	args := m.Called(ctx, data)
	return args.String(0), args.Error(1)
}

type MockHistoryRepository struct {
	mock.Mock
}

func (m *MockHistoryRepository) Create(ctx context.Context, entry *domain.MatchHistoryEntry) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *MockHistoryRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.MatchHistoryEntry, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.MatchHistoryEntry), args.Error(1)
}

func (m *MockHistoryRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.MatchHistoryEntry, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MatchHistoryEntry), args.Error(1)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

type MockTokenIssuer struct {
	mock.Mock
}

func (m *MockTokenIssuer) Generate(user *domain.User) (string, time.Time, error) {
	args := m.Called(user)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}

type recordingNotifier struct {
	users  []uuid.UUID
	events []ws.EventType
}

func (n *recordingNotifier) SendToUser(userID uuid.UUID, eventType ws.EventType, data interface{}) {
	n.users = append(n.users, userID)
	n.events = append(n.events, eventType)
}

type recordingRecorder struct {
	outcomes []string
	memo     []bool
}

func (r *recordingRecorder) ObserveMatch(outcome string, d time.Duration) {
	r.outcomes = append(r.outcomes, outcome)
}

func (r *recordingRecorder) ObserveMemo(hit bool) {
	r.memo = append(r.memo, hit)
}

type recordingAudit struct {
	events []audit.Event
}

func (a *recordingAudit) Log(_ context.Context, event audit.Event) error {
	a.events = append(a.events, event)
	return nil
}

func (a *recordingAudit) types() []audit.EventType {
	out := make([]audit.EventType, 0, len(a.events))
	for _, e := range a.events {
		out = append(out, e.EventType)
	}
	return out
}

// fakeReadiness serves a fixed status and a cache seeded with entries
type fakeReadiness struct {
	status matching.Status
	cache  *matching.DescriptorCache
}

func (f *fakeReadiness) Status() matching.Status {
	return f.status
}

func (f *fakeReadiness) Cache() *matching.DescriptorCache {
	return f.cache
}

// axis returns a unit descriptor along dimension i scaled by v
func axis(i int, v float64) domain.Descriptor {
	d := make(domain.Descriptor, domain.DescriptorDimension)
	d[i] = v
	return d
}

var testCelebrities = []domain.Celebrity{
	{ID: "1", Name: "Shawn Mendes", ImageRef: "https://img/1"},
	{ID: "2", Name: "Emma Watson", ImageRef: "https://img/2"},
	{ID: "3", Name: "Chris Hemsworth", ImageRef: "https://img/3"},
}

func readyCache() *fakeReadiness {
	cache := matching.NewDescriptorCache(nil, matching.DefaultBuildOptions(), nil)
	_, err := cache.Restore([]matching.Entry{
		{CelebrityID: "1", Descriptor: axis(0, 1)},
		{CelebrityID: "2", Descriptor: axis(1, 1)},
		{CelebrityID: "3", Descriptor: axis(2, 1)},
	}, testCelebrities)
	if err != nil {
		panic(err)
	}
	return &fakeReadiness{status: matching.Status{State: matching.StateReady}, cache: cache}
}
