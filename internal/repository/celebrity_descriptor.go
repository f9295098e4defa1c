package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/saturnino-fabrica-de-software/celebmatch/internal/domain"
)

// StoredDescriptor is a celebrity descriptor as kept in celebrity_descriptors.
// Model is the fingerprint of the provider that computed Descriptor.
type StoredDescriptor struct {
	Celebrity  domain.Celebrity
	Descriptor domain.Descriptor
	Model      string
	Version    uint64
	CreatedAt  time.Time
}

type CelebrityDescriptorRepository struct {
	pool PgxPool
}

func NewCelebrityDescriptorRepository(pool PgxPool) *CelebrityDescriptorRepository {
	return &CelebrityDescriptorRepository{pool: pool}
}

// ReplaceAll swaps the stored set for items, all computed by model, in one
// transaction.
func (r *CelebrityDescriptorRepository) ReplaceAll(ctx context.Context, model string, version uint64, items []StoredDescriptor) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM celebrity_descriptors`); err != nil {
		return fmt.Errorf("clear descriptors: %w", err)
	}

	query := `
		INSERT INTO celebrity_descriptors (celebrity_id, name, image_ref, descriptor, model, snapshot_version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`

	for _, item := range items {
		if len(item.Descriptor) != domain.DescriptorDimension {
			return domain.ErrDescriptorShapeMismatch.WithError(
				fmt.Errorf("celebrity %s: got %d values", item.Celebrity.ID, len(item.Descriptor)),
			)
		}

		_, err := tx.Exec(ctx, query,
			item.Celebrity.ID,
			item.Celebrity.Name,
			item.Celebrity.ImageRef,
			toVector(item.Descriptor),
			model,
			int64(version),
		)
		if err != nil {
			return fmt.Errorf("insert descriptor %s: %w", item.Celebrity.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit descriptors: %w", err)
	}

	return nil
}

// List returns the descriptors computed by model. Rows from any other model
// live in a different descriptor space and are left out.
func (r *CelebrityDescriptorRepository) List(ctx context.Context, model string) ([]StoredDescriptor, error) {
	query := `
		SELECT celebrity_id, name, image_ref, descriptor, model, snapshot_version, created_at
		FROM celebrity_descriptors
		WHERE model = $1
		ORDER BY celebrity_id
	`

	rows, err := r.pool.Query(ctx, query, model)
	if err != nil {
		return nil, fmt.Errorf("list descriptors: %w", err)
	}
	defer rows.Close()

	var items []StoredDescriptor
	for rows.Next() {
		var item StoredDescriptor
		var vec pgvector.Vector
		var version int64

		if err := rows.Scan(
			&item.Celebrity.ID,
			&item.Celebrity.Name,
			&item.Celebrity.ImageRef,
			&vec,
			&item.Model,
			&version,
			&item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan descriptor: %w", err)
		}

		item.Descriptor = fromVector(vec)
		item.Version = uint64(version)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate descriptors: %w", err)
	}

	return items, nil
}

func toVector(d domain.Descriptor) pgvector.Vector {
	floats := make([]float32, len(d))
	for i, v := range d {
		floats[i] = float32(v)
	}
	return pgvector.NewVector(floats)
}

func fromVector(v pgvector.Vector) domain.Descriptor {
	s := v.Slice()
	if s == nil {
		return nil
	}
	out := make(domain.Descriptor, len(s))
	for i, f := range s {
		out[i] = float64(f)
	}
	return out
}

var _ DescriptorRepositoryInterface = (*CelebrityDescriptorRepository)(nil)
