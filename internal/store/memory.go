package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/insightdelivered/statement-ledger/internal/models"
)

// MemoryStore is an in-memory Store, guarded by a single RWMutex. It backs
// ledgerctl (the database-free CLI path) and unit tests.
type MemoryStore struct {
	mu        sync.RWMutex
	runs      map[string]models.ProcessingRun
	feedbacks map[string][]models.FeedbackSubmission
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:      make(map[string]models.ProcessingRun),
		feedbacks: make(map[string][]models.FeedbackSubmission),
	}
}

func (s *MemoryStore) CreateRun(ctx context.Context, run models.ProcessingRun) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run.ID = uuid.NewString()
	run.CreatedAt = time.Now()
	run.UserAccuracyConfirmed = models.AccuracyUnknown
	s.runs[run.ID] = run
	return run.ID, nil
}

func (s *MemoryStore) ConfirmAccuracy(ctx context.Context, runID string, isAccurate bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrRunNotFound, runID)
	}
	if isAccurate {
		run.UserAccuracyConfirmed = models.AccuracyConfirmed
	} else {
		run.UserAccuracyConfirmed = models.AccuracyRejected
	}
	s.runs[runID] = run
	return nil
}

func (s *MemoryStore) GetRun(ctx context.Context, runID string) (models.ProcessingRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[runID]
	if !ok {
		return models.ProcessingRun{}, fmt.Errorf("%w: %s", models.ErrRunNotFound, runID)
	}
	return run, nil
}

func (s *MemoryStore) SubmitFeedback(ctx context.Context, runID string, correctedRows []models.CanonicalRow) (models.FeedbackSubmission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[runID]
	if !ok {
		return models.FeedbackSubmission{}, fmt.Errorf("%w: %s", models.ErrRunNotFound, runID)
	}

	analysis := Diff(run.Rows, correctedRows)
	fb := models.FeedbackSubmission{
		ID:            uuid.NewString(),
		RunID:         runID,
		SubmittedAt:   time.Now(),
		CorrectedRows: correctedRows,
		Analysis:      analysis,
	}
	s.feedbacks[runID] = append(s.feedbacks[runID], fb)
	return fb, nil
}
