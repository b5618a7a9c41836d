// Package normalize implements KeyNormalizer (C5): turning heterogeneous
// RawRow values into the canonical CanonicalRow schema, per spec.md §4.5.
package normalize

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/statement-ledger/internal/models"
)

// dateKeys, descriptionKeys, and balanceKeys are the candidate source keys
// for each canonical field, in priority order — first non-empty wins.
var (
	dateKeys        = []string{"date", "Transaction Date", "Value Date", "Date"}
	descriptionKeys = []string{"description", "Transaction Remarks", "Narration", "Transaction details"}
	balanceKeys     = []string{"running_balance", "Balance"}
	debitKeys       = []string{"Debit", "Withdrawal (Dr)"}
	creditKeys      = []string{"Credit", "Deposit(Cr)"}
)

// CleanKey collapses any run of whitespace (including embedded newlines and
// tabs) in a key into a single space, and trims the result.
func CleanKey(key string) string {
	var b strings.Builder
	inSpace := false
	for _, r := range key {
		if isWhitespace(r) {
			inSpace = true
			continue
		}
		if inSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		inSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

func isWhitespace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}

// CleanKeys returns a copy of raw with every key passed through CleanKey.
// Later duplicate keys (after cleaning) overwrite earlier ones.
func CleanKeys(raw models.RawRow) models.RawRow {
	out := make(models.RawRow, len(raw))
	for k, v := range raw {
		out[CleanKey(k)] = v
	}
	return out
}

// Normalize turns a single (already key-cleaned) RawRow into a
// CanonicalRow. The second return value reports whether the row was
// admitted; rejected rows must be logged by the caller, never silently
// kept (spec.md §4.5 Step 4).
func Normalize(raw models.RawRow) (*models.CanonicalRow, bool) {
	date := firstNonEmpty(raw, dateKeys)
	if date == "" {
		return nil, false
	}

	description := collapseDescription(firstNonEmpty(raw, descriptionKeys))

	balanceStr := firstNonEmpty(raw, balanceKeys)
	if balanceStr == "" {
		return nil, false
	}
	balance, err := parseDecimal(balanceStr)
	if err != nil {
		return nil, false
	}

	amount, txType, ok := resolveAmountAndType(raw, description)
	if !ok {
		return nil, false
	}

	row := &models.CanonicalRow{
		Date:           date,
		Description:    description,
		Amount:         amount,
		Type:           txType,
		RunningBalance: balance,
	}
	return row, true
}

// resolveAmountAndType implements spec.md §4.5 Step 3.
func resolveAmountAndType(raw models.RawRow, description string) (*decimal.Decimal, *models.TransactionType, bool) {
	if amt, typ, ok := directAmountAndType(raw); ok {
		abs := amt.Abs()
		return &abs, &typ, true
	}

	debit := firstPositiveAmount(raw, debitKeys)
	if debit != nil {
		t := models.Debit
		return debit, &t, true
	}

	credit := firstPositiveAmount(raw, creditKeys)
	if credit != nil {
		t := models.Credit
		return credit, &t, true
	}

	if isOpeningBalanceDescription(description) {
		zero := decimal.Zero
		return &zero, nil, true
	}

	return nil, nil, false
}

// directAmountAndType looks for a pre-resolved (amount, type) pair already
// on the row, e.g. when the model emitted canonical field names directly.
func directAmountAndType(raw models.RawRow) (decimal.Decimal, models.TransactionType, bool) {
	amtVal, ok := lookupAny(raw, []string{"amount", "Amount"})
	if !ok || amtVal.Kind != models.KindNumber {
		return decimal.Zero, "", false
	}
	typeVal, ok := lookupAny(raw, []string{"type", "Type"})
	if !ok || typeVal.Kind != models.KindText {
		return decimal.Zero, "", false
	}
	switch strings.ToLower(strings.TrimSpace(typeVal.Text)) {
	case string(models.Credit):
		return amtVal.Num, models.Credit, true
	case string(models.Debit):
		return amtVal.Num, models.Debit, true
	default:
		return decimal.Zero, "", false
	}
}

func firstPositiveAmount(raw models.RawRow, keys []string) *decimal.Decimal {
	s := firstNonEmpty(raw, keys)
	if s == "" {
		return nil
	}
	d, err := parseDecimal(s)
	if err != nil {
		return nil
	}
	if d.IsPositive() {
		return &d
	}
	return nil
}

// firstNonEmpty returns the textual form of the first key in keys whose
// value is present in raw and non-empty.
func firstNonEmpty(raw models.RawRow, keys []string) string {
	for _, k := range keys {
		v, ok := lookupAny(raw, []string{k})
		if !ok || v.IsEmpty() {
			continue
		}
		return strings.TrimSpace(v.AsString())
	}
	return ""
}

// lookupAny does a case-sensitive-first, then case-insensitive lookup,
// since LLM key casing is not fully reliable even after whitespace
// cleaning.
func lookupAny(raw models.RawRow, keys []string) (models.RowValue, bool) {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			return v, true
		}
	}
	for _, k := range keys {
		for rk, v := range raw {
			if strings.EqualFold(rk, k) {
				return v, true
			}
		}
	}
	return models.RowValue{}, false
}

// parseDecimal strips thousands separators and currency symbols before
// parsing, tolerating the punctuation variance issuer tables show up with.
func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	replacer := strings.NewReplacer(
		",", "",
		"£", "",
		"$", "",
		"€", "",
		"£", "",
		"€", "",
		" ", "",
		" ", "",
	)
	s = replacer.Replace(s)
	if s == "" || s == "-" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func collapseDescription(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.Join(strings.Fields(s), " ")
}

// isOpeningBalanceDescription reports whether description matches (case
// insensitively) "OPENING BALANCE".
func isOpeningBalanceDescription(description string) bool {
	return strings.EqualFold(strings.TrimSpace(description), "OPENING BALANCE")
}

// Rows applies CleanKeys and Normalize to every raw row in order, returning
// the admitted canonical rows and the count of rejected rows (for logging
// by the caller — spec.md requires rejections be logged, never silently
// dropped).
func Rows(raw []models.RawRow) (admitted []models.CanonicalRow, rejected int) {
	for _, r := range raw {
		cleaned := CleanKeys(r)
		row, ok := Normalize(cleaned)
		if !ok {
			rejected++
			continue
		}
		admitted = append(admitted, *row)
	}
	return admitted, rejected
}
