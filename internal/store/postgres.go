package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/insightdelivered/statement-ledger/internal/models"
)

// PostgresStore persists runs across three tables: processing_runs,
// run_flags (one row per flagged CanonicalRow, not per row — most rows
// carry no flags and are never written here), and feedback_submissions.
// feedback_submissions.run_id carries ON DELETE CASCADE so deleting a run
// cannot leave orphaned feedback (Invariant 4, schema owned outside this
// package — spec.md §1).
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const insertRunQuery = `
INSERT INTO processing_runs (id, source_name, created_at, model_tag, prompt_id, rows, user_accuracy_confirmed, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

const insertFlagQuery = `
INSERT INTO run_flags (run_id, row_index, balance_mismatch, type_corrected, invalid_structure)
VALUES ($1, $2, $3, $4, $5)
`

func (s *PostgresStore) CreateRun(ctx context.Context, run models.ProcessingRun) (string, error) {
	id := uuid.NewString()
	rowsJSON, err := json.Marshal(run.Rows)
	if err != nil {
		return "", fmt.Errorf("marshal rows: %w", err)
	}
	metaJSON, err := json.Marshal(run.Metadata)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, insertRunQuery, id, run.SourceName, time.Now(), run.ModelTag, run.PromptID, rowsJSON, models.AccuracyUnknown, metaJSON); err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	for _, f := range run.Flags {
		if !f.HasAny() {
			continue
		}
		if _, err := tx.Exec(ctx, insertFlagQuery, id, f.RowIndex, f.BalanceMismatch, f.TypeCorrected, f.InvalidStructure); err != nil {
			return "", fmt.Errorf("insert flag: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

const confirmAccuracyQuery = `
UPDATE processing_runs SET user_accuracy_confirmed = $2 WHERE id = $1
`

func (s *PostgresStore) ConfirmAccuracy(ctx context.Context, runID string, isAccurate bool) error {
	state := models.AccuracyRejected
	if isAccurate {
		state = models.AccuracyConfirmed
	}
	tag, err := s.pool.Exec(ctx, confirmAccuracyQuery, runID, state)
	if err != nil {
		return fmt.Errorf("confirm accuracy: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", models.ErrRunNotFound, runID)
	}
	return nil
}

const selectRunQuery = `
SELECT id, source_name, created_at, model_tag, prompt_id, rows, user_accuracy_confirmed, metadata
FROM processing_runs WHERE id = $1
`

const selectFlagsQuery = `
SELECT row_index, balance_mismatch, type_corrected, invalid_structure
FROM run_flags WHERE run_id = $1 ORDER BY row_index
`

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (models.ProcessingRun, error) {
	var run models.ProcessingRun
	var rowsJSON, metaJSON []byte

	row := s.pool.QueryRow(ctx, selectRunQuery, runID)
	if err := row.Scan(&run.ID, &run.SourceName, &run.CreatedAt, &run.ModelTag, &run.PromptID, &rowsJSON, &run.UserAccuracyConfirmed, &metaJSON); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ProcessingRun{}, fmt.Errorf("%w: %s", models.ErrRunNotFound, runID)
		}
		return models.ProcessingRun{}, fmt.Errorf("select run: %w", err)
	}
	if err := json.Unmarshal(rowsJSON, &run.Rows); err != nil {
		return models.ProcessingRun{}, fmt.Errorf("unmarshal rows: %w", err)
	}
	if err := json.Unmarshal(metaJSON, &run.Metadata); err != nil {
		return models.ProcessingRun{}, fmt.Errorf("unmarshal metadata: %w", err)
	}

	rows, err := s.pool.Query(ctx, selectFlagsQuery, runID)
	if err != nil {
		return models.ProcessingRun{}, fmt.Errorf("select flags: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var f models.Flag
		if err := rows.Scan(&f.RowIndex, &f.BalanceMismatch, &f.TypeCorrected, &f.InvalidStructure); err != nil {
			return models.ProcessingRun{}, fmt.Errorf("scan flag: %w", err)
		}
		run.Flags = append(run.Flags, f)
	}

	return run, nil
}

const insertFeedbackQuery = `
INSERT INTO feedback_submissions (id, run_id, submitted_at, corrected_rows, analysis)
VALUES ($1, $2, $3, $4, $5)
`

func (s *PostgresStore) SubmitFeedback(ctx context.Context, runID string, correctedRows []models.CanonicalRow) (models.FeedbackSubmission, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return models.FeedbackSubmission{}, err
	}

	analysis := Diff(run.Rows, correctedRows)
	fb := models.FeedbackSubmission{
		ID:            uuid.NewString(),
		RunID:         runID,
		SubmittedAt:   time.Now(),
		CorrectedRows: correctedRows,
		Analysis:      analysis,
	}

	correctedJSON, err := json.Marshal(correctedRows)
	if err != nil {
		return models.FeedbackSubmission{}, fmt.Errorf("marshal corrected rows: %w", err)
	}
	analysisJSON, err := json.Marshal(analysis)
	if err != nil {
		return models.FeedbackSubmission{}, fmt.Errorf("marshal analysis: %w", err)
	}

	if _, err := s.pool.Exec(ctx, insertFeedbackQuery, fb.ID, runID, fb.SubmittedAt, correctedJSON, analysisJSON); err != nil {
		return models.FeedbackSubmission{}, fmt.Errorf("insert feedback: %w", err)
	}
	return fb, nil
}
