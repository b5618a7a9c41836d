package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the reconciled sign of a canonical row's amount.
type TransactionType string

const (
	Credit TransactionType = "credit"
	Debit  TransactionType = "debit"
)

// Flip returns the opposite transaction type, the single repair move the
// reconciler is allowed to make.
func (t TransactionType) Flip() TransactionType {
	if t == Credit {
		return Debit
	}
	return Credit
}

// Signed returns +1 for credit, -1 for debit.
func (t TransactionType) Signed() int64 {
	if t == Credit {
		return 1
	}
	return -1
}

// CanonicalRow is the reconciliation unit: one transaction line, normalized
// onto a fixed schema, carrying provenance flags set by the reconciler.
type CanonicalRow struct {
	Date        string `json:"date"`
	Description string `json:"description"`

	// Amount is zero iff Type is nil (opening-balance row). Otherwise it is
	// non-negative.
	Amount *decimal.Decimal `json:"amount"`
	// Type is nil iff this is an opening-balance row.
	Type *TransactionType `json:"type"`

	RunningBalance decimal.Decimal `json:"running_balance"`

	BalanceMismatch  bool `json:"balance_mismatch"`
	TypeCorrected    bool `json:"type_corrected"`
	InvalidStructure bool `json:"invalid_structure"`
}

// IsOpeningBalance reports whether the row is the statement's opening
// balance marker: amount zero, type nil, description matching (case
// insensitively) "OPENING BALANCE".
func (r *CanonicalRow) IsOpeningBalance() bool {
	if r.Type != nil || r.Amount == nil || !r.Amount.IsZero() {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(r.Description), "OPENING BALANCE")
}

// Valid reports whether the row satisfies the reconciler's strict validity
// predicate: non-empty date, finite running balance, and either a
// (amount, type) pair or opening-balance shape (amount = 0, type = null).
func (r *CanonicalRow) Valid() bool {
	if r.Date == "" {
		return false
	}
	if r.Type == nil {
		return r.Amount != nil && r.Amount.IsZero()
	}
	return r.Amount != nil && (*r.Type == Credit || *r.Type == Debit)
}

// Flag is the compact per-row provenance record persisted alongside a run,
// emitted only for rows that have at least one flag set.
type Flag struct {
	RowIndex         int  `json:"row_index"`
	BalanceMismatch  bool `json:"balance_mismatch"`
	TypeCorrected    bool `json:"type_corrected"`
	InvalidStructure bool `json:"invalid_structure"`
}

// HasAny reports whether the flag carries any signal worth persisting.
func (f Flag) HasAny() bool {
	return f.BalanceMismatch || f.TypeCorrected || f.InvalidStructure
}

// AccuracyState is the tri-state user confirmation on a ProcessingRun.
type AccuracyState int

const (
	AccuracyUnknown AccuracyState = iota
	AccuracyConfirmed
	AccuracyRejected
)

// StatementMetadata is best-effort account metadata surfaced alongside the
// reconciled rows. It is advisory — never required by any invariant and
// never blocks ingestion when absent.
type StatementMetadata struct {
	AccountHolder   string `json:"account_holder"`
	AccountNumber   string `json:"account_number"`
	SortCode        string `json:"sort_code"`
	StatementPeriod string `json:"statement_period"`
}

// ProcessingRun is the persisted record of one successful ingestion.
type ProcessingRun struct {
	ID                    string        `json:"id"`
	SourceName            string        `json:"source_name"`
	CreatedAt             time.Time     `json:"created_at"`
	ModelTag              string        `json:"model_tag"`
	PromptID              string        `json:"prompt_id"`
	Rows                  []CanonicalRow `json:"raw_rows"`
	Flags                 []Flag        `json:"flags"`
	UserAccuracyConfirmed AccuracyState `json:"user_accuracy_confirmed"`
	Metadata              StatementMetadata `json:"metadata"`
}

// CellChange is one field-level edit detected by Diff.
type CellChange struct {
	RowIndex int    `json:"row_index"`
	Field    string `json:"field"`
	Old      string `json:"old"`
	New      string `json:"new"`
}

// DiffAnalysis is the result of comparing a run's original rows against a
// user's corrected rows, positionally, field by field.
type DiffAnalysis struct {
	RowsAdded         int            `json:"rows_added"`
	RowsDeleted       int            `json:"rows_deleted"`
	RowsModified      int            `json:"rows_modified"`
	CellChanges       []CellChange   `json:"cell_changes"`
	FieldChangeCounts map[string]int `json:"field_change_counts"`
}

// FeedbackSubmission is one immutable user correction of a run.
type FeedbackSubmission struct {
	ID            string         `json:"id"`
	RunID         string         `json:"run_id"`
	SubmittedAt   time.Time      `json:"submitted_at"`
	CorrectedRows []CanonicalRow `json:"corrected_rows"`
	Analysis      DiffAnalysis   `json:"analysis"`
}

// Prompt is an extraction prompt, scoped to an issuer tag or the default
// (nil) slot. Exactly one active prompt exists per slot.
type Prompt struct {
	ID        string  `json:"id"`
	IssuerTag *string `json:"issuer_tag"`
	Text      string  `json:"text"`
	Version   int     `json:"version"`
	IsActive  bool    `json:"is_active"`
	IsDefault bool    `json:"is_default"`
}
