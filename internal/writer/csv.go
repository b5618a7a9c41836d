// Package writer materializes a reconciled run as the CSV download
// artifact, per spec.md §6.
package writer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"github.com/insightdelivered/statement-ledger/internal/models"
)

// csvRow is the on-disk shape: one row per transaction, columns in the
// order spec.md §6 names them. gocsv drives marshaling off the `csv` tags.
type csvRow struct {
	Date             string `csv:"date"`
	Description      string `csv:"description"`
	Amount           string `csv:"amount"`
	Type             string `csv:"type"`
	RunningBalance   string `csv:"running_balance"`
	BalanceMismatch  string `csv:"balance_mismatch"`
	TypeCorrected    string `csv:"type_corrected"`
	InvalidStructure string `csv:"invalid_structure"`
}

func toCSVRow(r models.CanonicalRow) csvRow {
	return csvRow{
		Date:             r.Date,
		Description:      r.Description,
		Amount:           amountText(r.Amount),
		Type:             typeText(r.Type),
		RunningBalance:   r.RunningBalance.String(),
		BalanceMismatch:  boolText(r.BalanceMismatch),
		TypeCorrected:    boolText(r.TypeCorrected),
		InvalidStructure: boolText(r.InvalidStructure),
	}
}

func amountText(a *decimal.Decimal) string {
	if a == nil {
		return ""
	}
	return a.String()
}

// WriteToFile writes rows as CSV to path, creating or truncating it.
func WriteToFile(path string, rows []models.CanonicalRow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv artifact %q: %w", path, err)
	}
	defer f.Close()
	return Write(f, rows)
}

// Write renders rows as CSV (one header row, then one row per transaction)
// to out. Null fields render as the empty string; booleans as true/false.
func Write(out io.Writer, rows []models.CanonicalRow) error {
	csvRows := make([]*csvRow, len(rows))
	for i, r := range rows {
		row := toCSVRow(r)
		csvRows[i] = &row
	}

	writer := csv.NewWriter(out)
	if err := gocsv.MarshalCSV(csvRows, gocsv.NewSafeCSVWriter(writer)); err != nil {
		return fmt.Errorf("marshal csv: %w", err)
	}
	return nil
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
