package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/saturnino-fabrica-de-software/celebmatch/internal/domain"
)

// PgxPool is the subset of *pgxpool.Pool used by repositories.
// pgxmock.PgxPoolIface satisfies it in tests.
type PgxPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// UserRepositoryInterface defines operations for user data access
type UserRepositoryInterface interface {
	Create(ctx context.Context, user *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// MatchHistoryRepositoryInterface defines operations for persisted matches
type MatchHistoryRepositoryInterface interface {
	Create(ctx context.Context, entry *domain.MatchHistoryEntry) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.MatchHistoryEntry, error)
	GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.MatchHistoryEntry, error)
}

// DescriptorRepositoryInterface persists published celebrity descriptors
type DescriptorRepositoryInterface interface {
	DescriptorWriter
	List(ctx context.Context, model string) ([]StoredDescriptor, error)
}
