//go:build integration

package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/saturnino-fabrica-de-software/celebmatch/internal/database"
	"github.com/saturnino-fabrica-de-software/celebmatch/internal/domain"
)

func setupTestDB(t *testing.T) PgxPool {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "pgvector/pgvector:pg16",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "celebmatch_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	cfg := database.DefaultPoolConfig(fmt.Sprintf("postgres://test:test@%s:%s/celebmatch_test?sslmode=disable", host, port.Port()))

	sqlDB, err := database.NewPool(cfg)
	require.NoError(t, err)
	_, err = database.MigrateUp(sqlDB, "celebmatch_test")
	require.NoError(t, err)
	_ = sqlDB.Close()

	pool, err := database.NewPgxPool(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return pool
}

func TestRepositoriesIntegration(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	users := NewUserRepository(pool)
	history := NewMatchHistoryRepository(pool)
	descriptors := NewCelebrityDescriptorRepository(pool)

	user := &domain.User{Email: "ana@example.com", Name: "Ana", PasswordHash: "hash"}
	require.NoError(t, users.Create(ctx, user))

	t.Run("email is case-insensitively unique", func(t *testing.T) {
		err := users.Create(ctx, &domain.User{Email: "ANA@example.com", Name: "Other", PasswordHash: "x"})
		assert.ErrorIs(t, err, domain.ErrUserExists)

		found, err := users.GetByEmail(ctx, "Ana@Example.com")
		require.NoError(t, err)
		assert.Equal(t, user.ID, found.ID)
	})

	t.Run("history round trip", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			entry := &domain.MatchHistoryEntry{
				UserID:  user.ID,
				Results: []domain.MatchResult{{CelebrityID: "1", Name: "Shawn Mendes", MatchPercentage: 90 - i}},
			}
			require.NoError(t, history.Create(ctx, entry))
		}

		entries, err := history.ListByUser(ctx, user.ID, 2)
		require.NoError(t, err)
		require.Len(t, entries, 2)

		got, err := history.GetByID(ctx, user.ID, entries[0].ID)
		require.NoError(t, err)
		assert.Equal(t, entries[0].Results, got.Results)

		_, err = history.GetByID(ctx, uuid.New(), entries[0].ID)
		assert.ErrorIs(t, err, domain.ErrMatchNotFound)
	})

	t.Run("descriptors replace and list", func(t *testing.T) {
		d := unitDescriptor()
		first := []StoredDescriptor{
			{Celebrity: domain.Celebrity{ID: "1", Name: "Shawn Mendes", ImageRef: "a"}, Descriptor: d},
			{Celebrity: domain.Celebrity{ID: "2", Name: "Emma Watson", ImageRef: "b"}, Descriptor: d},
		}
		require.NoError(t, descriptors.ReplaceAll(ctx, "mock/sha256", 1, first))
		require.NoError(t, descriptors.ReplaceAll(ctx, "mock/sha256", 2, first[1:]))

		other, err := descriptors.List(ctx, "deepface/Facenet/opencv")
		require.NoError(t, err)
		assert.Empty(t, other)

		items, err := descriptors.List(ctx, "mock/sha256")
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "2", items[0].Celebrity.ID)
		assert.Equal(t, uint64(2), items[0].Version)
		assert.Equal(t, d, items[0].Descriptor)
	})
}
