// Package reconcile implements the Reconciler (C6): the balance-validation
// and type-flip repair pass that turns normalized rows into flagged,
// arithmetic-checked rows. This is the part of the pipeline where a single
// wrong debit/credit column produces a cascading, non-obvious failure if
// done carelessly — see DefaultTolerance and the type-flip rule below.
package reconcile

import (
	"github.com/shopspring/decimal"

	"github.com/insightdelivered/statement-ledger/internal/models"
)

// DefaultTolerance is the balance-equality constant spec.md fixes: two
// balances within this absolute delta are considered equal. Callers with a
// configured epsilon (config.Engine.BalanceTolerance) should pass it to Run
// instead of this default.
var DefaultTolerance = decimal.NewFromFloat(0.10)

// Run applies the reconciliation algorithm to a chronologically ordered
// slice of canonical rows, returning a new slice with provenance flags
// populated and, where repairable, corrected types. The input is never
// mutated. tolerance is the absolute delta within which a running balance
// is accepted without repair.
func Run(rows []models.CanonicalRow, tolerance decimal.Decimal) []models.CanonicalRow {
	out := make([]models.CanonicalRow, len(rows))
	copy(out, rows)
	for i := range out {
		out[i].BalanceMismatch = false
		out[i].TypeCorrected = false
		out[i].InvalidStructure = false
	}

	firstValid := -1
	for i := range out {
		if isValid(&out[i]) {
			firstValid = i
			break
		}
	}

	if firstValid < 0 {
		for i := range out {
			out[i].InvalidStructure = true
		}
		return out
	}

	for i := 0; i < firstValid; i++ {
		out[i].InvalidStructure = true
		out[i].BalanceMismatch = true
	}

	lastValid := firstValid
	for i := firstValid + 1; i < len(out); i++ {
		row := &out[i]

		if !isValid(row) {
			row.InvalidStructure = true
			row.BalanceMismatch = true
			continue
		}

		if row.Type == nil {
			// Opening-balance shape: no arithmetic check, per spec step 4.
			lastValid = i
			continue
		}

		prev := &out[lastValid]
		reconcileArithmetic(prev, row, tolerance)
		// A row corrected by an earlier pass already carries its flipped type
		// and balances as-is; keeping its flag makes a second pass a no-op.
		if rows[i].TypeCorrected && !row.BalanceMismatch {
			row.TypeCorrected = true
		}
		lastValid = i
	}

	return out
}

// reconcileArithmetic implements steps 3b–3e against the previous valid
// row, including the type-flip repair and its tie-break rule.
func reconcileArithmetic(prev, row *models.CanonicalRow, tolerance decimal.Decimal) {
	expected := prev.RunningBalance.Add(signed(*row.Type, *row.Amount))
	delta := row.RunningBalance.Sub(expected).Abs()
	if delta.LessThanOrEqual(tolerance) {
		return
	}

	flipped := row.Type.Flip()
	expectedFlipped := prev.RunningBalance.Add(signed(flipped, *row.Amount))
	deltaFlipped := row.RunningBalance.Sub(expectedFlipped).Abs()
	if deltaFlipped.LessThanOrEqual(tolerance) {
		row.TypeCorrected = true
		row.Type = &flipped
		row.BalanceMismatch = false
		return
	}

	row.BalanceMismatch = true
}

// signed returns the arithmetic contribution of a row's amount: positive
// for credit, negative for debit.
func signed(t models.TransactionType, amount decimal.Decimal) decimal.Decimal {
	if t.Signed() < 0 {
		return amount.Neg()
	}
	return amount
}

// isValid is the strict validity predicate: non-empty date and either a
// finite (amount, type) pair or opening-balance shape. RunningBalance is a
// decimal.Decimal field (never nil), so it is always "finite" by
// construction; KeyNormalizer is responsible for rejecting rows it could
// not parse a balance for in the first place.
func isValid(row *models.CanonicalRow) bool {
	return row.Valid()
}
