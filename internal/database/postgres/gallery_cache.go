package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// GalleryCacheRepository stores gallery embeddings as pgvector columns
type GalleryCacheRepository struct {
	pool *Pool
}

// NewGalleryCacheRepository creates a new PostgreSQL gallery cache
func NewGalleryCacheRepository(pool *Pool) *GalleryCacheRepository {
	return &GalleryCacheRepository{pool: pool}
}

// Get returns the cached embedding for the content hash and model
func (r *GalleryCacheRepository) Get(ctx context.Context, contentHash, model string) ([]float64, bool, error) {
	var vec pgvector.Vector
	err := r.pool.QueryRow(ctx,
		"SELECT embedding FROM gallery_embeddings WHERE content_hash = $1 AND model = $2",
		contentHash, model,
	).Scan(&vec)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query gallery embedding: %w", err)
	}
	return toFloat64(vec.Slice()), true, nil
}

// Put stores or replaces the embedding for the content hash and model
func (r *GalleryCacheRepository) Put(ctx context.Context, contentHash, model string, embedding []float64) error {
	query := `
		INSERT INTO gallery_embeddings (content_hash, model, dim, embedding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (content_hash, model) DO UPDATE SET
			dim = EXCLUDED.dim,
			embedding = EXCLUDED.embedding,
			created_at = NOW()
	`

	vec := pgvector.NewVector(toFloat32(embedding))
	if _, err := r.pool.Exec(ctx, query, contentHash, model, len(embedding), vec); err != nil {
		return fmt.Errorf("save gallery embedding: %w", err)
	}
	return nil
}

// List returns every cached embedding, newest first
func (r *GalleryCacheRepository) List(ctx context.Context) ([]database.CachedEmbedding, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT content_hash, model, embedding, created_at
		FROM gallery_embeddings
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query gallery embeddings: %w", err)
	}
	defer rows.Close()

	var out []database.CachedEmbedding
	for rows.Next() {
		var emb database.CachedEmbedding
		var vec pgvector.Vector
		if err := rows.Scan(&emb.ContentHash, &emb.Model, &vec, &emb.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan gallery embedding: %w", err)
		}
		emb.Embedding = toFloat64(vec.Slice())
		out = append(out, emb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate gallery embeddings: %w", err)
	}
	return out, nil
}

// Prune deletes cached embeddings whose content hash is not in keep
func (r *GalleryCacheRepository) Prune(ctx context.Context, keep []string) (int64, error) {
	res, err := r.pool.Exec(ctx,
		"DELETE FROM gallery_embeddings WHERE NOT (content_hash = ANY($1))",
		pq.Array(keep),
	)
	if err != nil {
		return 0, fmt.Errorf("prune gallery embeddings: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

// Verify interface compliance
var _ database.GalleryCache = (*GalleryCacheRepository)(nil)
