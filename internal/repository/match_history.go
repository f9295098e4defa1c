package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/saturnino-fabrica-de-software/celebmatch/internal/domain"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

type MatchHistoryRepository struct {
	pool PgxPool
}

func NewMatchHistoryRepository(pool PgxPool) *MatchHistoryRepository {
	return &MatchHistoryRepository{pool: pool}
}

func (r *MatchHistoryRepository) Create(ctx context.Context, entry *domain.MatchHistoryEntry) error {
	query := `
		INSERT INTO celebrity_matches (id, user_id, user_image, celebrities, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING created_at
	`

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Results == nil {
		entry.Results = []domain.MatchResult{}
	}

	results, err := json.Marshal(entry.Results)
	if err != nil {
		return fmt.Errorf("marshal match results: %w", err)
	}

	err = r.pool.QueryRow(ctx, query,
		entry.ID,
		entry.UserID,
		entry.UserImageRef,
		results,
	).Scan(&entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("create match history: %w", err)
	}

	return nil
}

// ListByUser returns the user's most recent matches, newest first.
func (r *MatchHistoryRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.MatchHistoryEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	query := `
		SELECT id, user_id, user_image, celebrities, created_at
		FROM celebrity_matches
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list match history: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.MatchHistoryEntry, 0, limit)
	for rows.Next() {
		entry, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan match history: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate match history: %w", err)
	}

	return entries, nil
}

// GetByID only returns matches owned by userID.
func (r *MatchHistoryRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.MatchHistoryEntry, error) {
	query := `
		SELECT id, user_id, user_image, celebrities, created_at
		FROM celebrity_matches
		WHERE id = $1 AND user_id = $2
	`

	entry, err := scanMatch(r.pool.QueryRow(ctx, query, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrMatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get match history: %w", err)
	}

	return entry, nil
}

func scanMatch(row pgx.Row) (*domain.MatchHistoryEntry, error) {
	var entry domain.MatchHistoryEntry
	var raw []byte

	if err := row.Scan(&entry.ID, &entry.UserID, &entry.UserImageRef, &raw, &entry.CreatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(raw, &entry.Results); err != nil {
		return nil, fmt.Errorf("decode match results: %w", err)
	}

	return &entry, nil
}
