// Package store implements RunStore (C7): persistence for processing runs,
// accuracy confirmations, and feedback submissions, plus the pure diff
// analysis that backs the feedback endpoint.
package store

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/statement-ledger/internal/models"
)

// Store is the narrow persistence contract the orchestrator and the API
// handlers depend on. Two implementations exist: PostgresStore for the
// server path, MemoryStore for the database-free CLI path and tests.
type Store interface {
	CreateRun(ctx context.Context, run models.ProcessingRun) (string, error)
	ConfirmAccuracy(ctx context.Context, runID string, isAccurate bool) error
	GetRun(ctx context.Context, runID string) (models.ProcessingRun, error)
	SubmitFeedback(ctx context.Context, runID string, correctedRows []models.CanonicalRow) (models.FeedbackSubmission, error)
}

// Diff is pure: a positional, element-wise comparison of an original row
// set against a corrected one. Row matching is positional — re-ordering is
// reported as modifications, not moves; this is an explicit non-goal of
// the comparison, not an oversight.
func Diff(original, corrected []models.CanonicalRow) models.DiffAnalysis {
	analysis := models.DiffAnalysis{
		FieldChangeCounts: make(map[string]int),
	}

	n := len(original)
	if len(corrected) < n {
		n = len(corrected)
	}

	for i := 0; i < n; i++ {
		changes := diffRow(i, original[i], corrected[i])
		if len(changes) > 0 {
			analysis.RowsModified++
			analysis.CellChanges = append(analysis.CellChanges, changes...)
			for _, c := range changes {
				analysis.FieldChangeCounts[c.Field]++
			}
		}
	}

	if len(corrected) > len(original) {
		analysis.RowsAdded = len(corrected) - len(original)
	}
	if len(original) > len(corrected) {
		analysis.RowsDeleted = len(original) - len(corrected)
	}

	return analysis
}

func diffRow(index int, a, b models.CanonicalRow) []models.CellChange {
	var changes []models.CellChange

	fields := []struct {
		name     string
		oldValue string
		newValue string
	}{
		{"date", a.Date, b.Date},
		{"description", a.Description, b.Description},
		{"amount", amountText(a.Amount), amountText(b.Amount)},
		{"type", typeText(a.Type), typeText(b.Type)},
		{"running_balance", a.RunningBalance.String(), b.RunningBalance.String()},
		{"balance_mismatch", boolText(a.BalanceMismatch), boolText(b.BalanceMismatch)},
		{"type_corrected", boolText(a.TypeCorrected), boolText(b.TypeCorrected)},
		{"invalid_structure", boolText(a.InvalidStructure), boolText(b.InvalidStructure)},
	}

	for _, f := range fields {
		if f.oldValue != f.newValue {
			changes = append(changes, models.CellChange{
				RowIndex: index,
				Field:    f.name,
				Old:      f.oldValue,
				New:      f.newValue,
			})
		}
	}
	return changes
}

func amountText(a *decimal.Decimal) string {
	if a == nil {
		return ""
	}
	return a.String()
}

func typeText(t *models.TransactionType) string {
	if t == nil {
		return ""
	}
	return string(*t)
}

func boolText(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
