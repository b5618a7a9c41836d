package normalize

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/statement-ledger/internal/models"
)

func text(s string) models.RowValue  { return models.TextValue(s) }
func num(f float64) models.RowValue  { return models.NumberValue(decimal.NewFromFloat(f)) }

func TestCleanKey(t *testing.T) {
	cases := map[string]string{
		"Transaction  Date": "Transaction Date",
		" Balance\n":        "Balance",
		"Debit\tAmount":     "Debit Amount",
		"Plain":             "Plain",
	}
	for in, want := range cases {
		if got := CleanKey(in); got != want {
			t.Errorf("CleanKey(%q) = %q, want %q", in, got, want)
		}
	}
}

// TestNormalize_KeyAliasing encodes the key-aliasing scenario literally:
// {"Transaction Date":"10/Apr/2024","Narration":"X","Debit":"1,500.50","Balance":"25,000.75"}
// must resolve to {date:"10/Apr/2024",description:"X",amount:1500.50,type:debit,running_balance:25000.75}.
func TestNormalize_KeyAliasing(t *testing.T) {
	raw := models.RawRow{
		"Transaction Date": text("10/Apr/2024"),
		"Narration":        text("X"),
		"Debit":            text("1,500.50"),
		"Balance":          text("25,000.75"),
	}

	row, ok := Normalize(CleanKeys(raw))
	if !ok {
		t.Fatalf("expected row to be admitted")
	}
	if row.Date != "10/Apr/2024" {
		t.Errorf("Date = %q, want 10/Apr/2024", row.Date)
	}
	if row.Description != "X" {
		t.Errorf("Description = %q, want X", row.Description)
	}
	if row.Type == nil || *row.Type != models.Debit {
		t.Fatalf("Type = %v, want debit", row.Type)
	}
	if row.Amount == nil || !row.Amount.Equal(decimal.NewFromFloat(1500.50)) {
		t.Errorf("Amount = %v, want 1500.50", row.Amount)
	}
	if !row.RunningBalance.Equal(decimal.NewFromFloat(25000.75)) {
		t.Errorf("RunningBalance = %v, want 25000.75", row.RunningBalance)
	}
}

func TestNormalize_CreditCandidate(t *testing.T) {
	raw := models.RawRow{
		"Value Date":      text("01/Jan/2024"),
		"Transaction Remarks": text("Salary"),
		"Deposit(Cr)":     text("2,000.00"),
		"running_balance": text("10,000.00"),
	}
	row, ok := Normalize(CleanKeys(raw))
	if !ok {
		t.Fatalf("expected row to be admitted")
	}
	if row.Type == nil || *row.Type != models.Credit {
		t.Fatalf("Type = %v, want credit", row.Type)
	}
	if !row.Amount.Equal(decimal.NewFromFloat(2000)) {
		t.Errorf("Amount = %v, want 2000", row.Amount)
	}
}

func TestNormalize_DirectCanonicalFields(t *testing.T) {
	raw := models.RawRow{
		"date":            text("02/Feb/2024"),
		"description":     text("Transfer"),
		"amount":          num(-42.5),
		"type":            text("debit"),
		"running_balance": text("957.50"),
	}
	row, ok := Normalize(CleanKeys(raw))
	if !ok {
		t.Fatalf("expected row to be admitted")
	}
	if !row.Amount.Equal(decimal.NewFromFloat(42.5)) {
		t.Errorf("Amount = %v, want 42.5 (absolute value)", row.Amount)
	}
	if *row.Type != models.Debit {
		t.Errorf("Type = %v, want debit", *row.Type)
	}
}

func TestNormalize_OpeningBalanceRow(t *testing.T) {
	raw := models.RawRow{
		"Date":    text("01/Jan/2024"),
		"Narration": text("Opening Balance"),
		"Balance": text("5,000.00"),
	}
	row, ok := Normalize(CleanKeys(raw))
	if !ok {
		t.Fatalf("expected opening-balance row to be admitted")
	}
	if row.Type != nil {
		t.Errorf("Type = %v, want nil for opening balance", *row.Type)
	}
	if row.Amount == nil || !row.Amount.IsZero() {
		t.Errorf("Amount = %v, want 0 for opening balance", row.Amount)
	}
	if !row.IsOpeningBalance() {
		t.Errorf("expected IsOpeningBalance() to be true")
	}
}

func TestNormalize_RejectsMissingDate(t *testing.T) {
	raw := models.RawRow{
		"Narration": text("X"),
		"Debit":     text("10.00"),
		"Balance":   text("90.00"),
	}
	if _, ok := Normalize(CleanKeys(raw)); ok {
		t.Fatalf("expected row without a date to be rejected")
	}
}

func TestNormalize_RejectsMissingBalance(t *testing.T) {
	raw := models.RawRow{
		"Date":      text("01/Jan/2024"),
		"Narration": text("X"),
		"Debit":     text("10.00"),
	}
	if _, ok := Normalize(CleanKeys(raw)); ok {
		t.Fatalf("expected row without a running balance to be rejected")
	}
}

func TestNormalize_RejectsNoAmountNoType(t *testing.T) {
	raw := models.RawRow{
		"Date":      text("01/Jan/2024"),
		"Narration": text("Some fee note"),
		"Balance":   text("90.00"),
	}
	if _, ok := Normalize(CleanKeys(raw)); ok {
		t.Fatalf("expected row with no amount/type candidates to be rejected")
	}
}

func TestRows_CountsRejections(t *testing.T) {
	raw := []models.RawRow{
		{"Date": text("01/Jan/2024"), "Narration": text("Opening Balance"), "Balance": text("100.00")},
		{"Narration": text("missing date"), "Debit": text("5.00"), "Balance": text("95.00")},
		{"Date": text("02/Jan/2024"), "Narration": text("Coffee"), "Debit": text("5.00"), "Balance": text("95.00")},
	}
	admitted, rejected := Rows(raw)
	if len(admitted) != 2 {
		t.Errorf("admitted = %d, want 2", len(admitted))
	}
	if rejected != 1 {
		t.Errorf("rejected = %d, want 1", rejected)
	}
}
