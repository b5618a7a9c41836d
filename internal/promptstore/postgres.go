package promptstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/insightdelivered/statement-ledger/internal/models"
)

// PostgresStore backs PromptStore with a Prompts table. The slot with
// issuer_tag = NULL is the default; a partial unique index on the database
// enforces at most one active row per slot (schema owned by the
// prompt-management surface, out of scope here — spec.md §1).
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const resolvePromptQuery = `
SELECT id, issuer_tag, text, version, is_active, is_default
FROM prompts
WHERE is_active
  AND ((issuer_tag = $1 AND $1 IS NOT NULL) OR (issuer_tag IS NULL AND $1 IS NULL))
ORDER BY (issuer_tag IS NULL) ASC
LIMIT 1
`

func (s *PostgresStore) ResolvePrompt(ctx context.Context, issuerTag *string) (models.Prompt, error) {
	if issuerTag != nil {
		if p, err := s.queryOne(ctx, issuerTag); err == nil {
			return p, nil
		} else if !errors.Is(err, pgx.ErrNoRows) {
			return models.Prompt{}, fmt.Errorf("resolve prompt for issuer %q: %w", *issuerTag, err)
		}
	}

	p, err := s.queryOne(ctx, nil)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Prompt{}, fmt.Errorf("%w", models.ErrNoPromptConfigured)
		}
		return models.Prompt{}, fmt.Errorf("resolve default prompt: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) queryOne(ctx context.Context, issuerTag *string) (models.Prompt, error) {
	row := s.pool.QueryRow(ctx, resolvePromptQuery, issuerTag)
	var p models.Prompt
	if err := row.Scan(&p.ID, &p.IssuerTag, &p.Text, &p.Version, &p.IsActive, &p.IsDefault); err != nil {
		return models.Prompt{}, err
	}
	return p, nil
}
