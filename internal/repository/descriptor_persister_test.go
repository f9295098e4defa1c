package repository

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/celebmatch/internal/domain"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/matching"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/provider/mock"
)

type recordingWriter struct {
	mu       sync.Mutex
	versions []uint64
	models   []string
	rows     [][]StoredDescriptor
	err      error
	delay    time.Duration
	active   int
	overlap  bool
}

func (w *recordingWriter) ReplaceAll(ctx context.Context, model string, version uint64, items []StoredDescriptor) error {
	w.mu.Lock()
	w.active++
	if w.active > 1 {
		w.overlap = true
	}
	delay, err := w.delay, w.err
	w.mu.Unlock()

	time.Sleep(delay)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.active--
	if err != nil {
		return err
	}
	w.versions = append(w.versions, version)
	w.models = append(w.models, model)
	w.rows = append(w.rows, items)
	return nil
}

func (w *recordingWriter) written() []uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]uint64(nil), w.versions...)
}

type bytesFetcher struct{}

func (bytesFetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	return bytes.Repeat([]byte(ref), 200), nil
}

func persisterRecords() []domain.Celebrity {
	return []domain.Celebrity{
		{ID: "c1", Name: "Celebrity 1", ImageRef: "img-1"},
		{ID: "c2", Name: "Celebrity 2", ImageRef: "img-2"},
	}
}

// builtSnapshots publishes n generations from the mock provider
func builtSnapshots(t *testing.T, n int) []*matching.Snapshot {
	t.Helper()
	cache := matching.NewDescriptorCache(bytesFetcher{}, matching.DefaultBuildOptions(), nil)
	var snaps []*matching.Snapshot
	for i := 0; i < n; i++ {
		_, err := cache.Build(context.Background(), persisterRecords(), mock.New())
		require.NoError(t, err)
		snaps = append(snaps, cache.Snapshot())
	}
	return snaps
}

func TestDescriptorPersister_Persist(t *testing.T) {
	w := &recordingWriter{}
	p := NewDescriptorPersister(w, "mock/sha256", time.Second, nil)
	snap := builtSnapshots(t, 1)[0]

	written, err := p.Persist(context.Background(), snap)

	require.NoError(t, err)
	assert.True(t, written)
	assert.Equal(t, []uint64{snap.Version()}, w.written())
	assert.Equal(t, []string{"mock/sha256"}, w.models)
	require.Len(t, w.rows[0], 2)
	assert.Equal(t, "Celebrity 1", w.rows[0][0].Celebrity.Name)
	assert.Equal(t, domain.DescriptorDimension, len(w.rows[0][0].Descriptor))

	// the same generation twice is written once
	written, err = p.Persist(context.Background(), snap)
	require.NoError(t, err)
	assert.False(t, written)
	assert.Len(t, w.written(), 1)
}

func TestDescriptorPersister_SkipsOlderVersions(t *testing.T) {
	w := &recordingWriter{}
	p := NewDescriptorPersister(w, "mock/sha256", time.Second, nil)
	snaps := builtSnapshots(t, 2)

	written, err := p.Persist(context.Background(), snaps[1])
	require.NoError(t, err)
	assert.True(t, written)

	written, err = p.Persist(context.Background(), snaps[0])
	require.NoError(t, err)
	assert.False(t, written)

	assert.Equal(t, []uint64{snaps[1].Version()}, w.written())
}

func TestDescriptorPersister_SkipsRestored(t *testing.T) {
	w := &recordingWriter{}
	p := NewDescriptorPersister(w, "mock/sha256", time.Second, nil)

	cache := matching.NewDescriptorCache(bytesFetcher{}, matching.DefaultBuildOptions(), nil)
	snap, err := cache.Restore([]matching.Entry{
		{CelebrityID: "c1", Descriptor: mock.Descriptor([]byte("img-1"))},
	}, persisterRecords())
	require.NoError(t, err)
	require.True(t, snap.Restored())

	written, err := p.Persist(context.Background(), snap)

	require.NoError(t, err)
	assert.False(t, written)
	assert.Empty(t, w.written())
}

func TestDescriptorPersister_FailedWriteIsRetried(t *testing.T) {
	w := &recordingWriter{err: errors.New("connection reset")}
	p := NewDescriptorPersister(w, "mock/sha256", time.Second, nil)
	snap := builtSnapshots(t, 1)[0]

	written, err := p.Persist(context.Background(), snap)
	assert.Error(t, err)
	assert.False(t, written)

	w.mu.Lock()
	w.err = nil
	w.mu.Unlock()

	written, err = p.Persist(context.Background(), snap)
	require.NoError(t, err)
	assert.True(t, written)
}

func TestDescriptorPersister_ObserveSerializesWrites(t *testing.T) {
	w := &recordingWriter{delay: 20 * time.Millisecond}
	p := NewDescriptorPersister(w, "mock/sha256", time.Second, nil)
	snaps := builtSnapshots(t, 4)

	for _, snap := range snaps {
		p.Observe(snap)
	}

	latest := snaps[len(snaps)-1].Version()
	assert.Eventually(t, func() bool {
		v := w.written()
		return len(v) > 0 && v[len(v)-1] == latest
	}, 2*time.Second, 10*time.Millisecond)

	// let any stragglers finish; they must all be skipped
	time.Sleep(100 * time.Millisecond)

	versions := w.written()
	assert.Equal(t, latest, versions[len(versions)-1])
	for i := 1; i < len(versions); i++ {
		assert.Greater(t, versions[i], versions[i-1])
	}
	w.mu.Lock()
	assert.False(t, w.overlap)
	w.mu.Unlock()
}

func TestDescriptorPersister_WiredToCache(t *testing.T) {
	w := &recordingWriter{}
	p := NewDescriptorPersister(w, "mock/sha256", time.Second, nil)

	cache := matching.NewDescriptorCache(bytesFetcher{}, matching.DefaultBuildOptions(), nil)
	cache.OnPublish(p.Observe)

	_, err := cache.Restore([]matching.Entry{
		{CelebrityID: "c1", Descriptor: mock.Descriptor([]byte("img-1"))},
	}, persisterRecords())
	require.NoError(t, err)
	_, err = cache.Build(context.Background(), persisterRecords(), mock.New())
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return len(w.written()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []uint64{cache.Snapshot().Version()}, w.written())
}
