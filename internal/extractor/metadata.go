package extractor

import (
	"regexp"
	"strings"

	"github.com/insightdelivered/statement-ledger/internal/models"
)

// Metadata performs the best-effort account-metadata extraction described in
// SPEC_FULL.md §10: account holder, account number, sort code, and
// statement period. It never fails the run — callers treat every field as
// advisory, the same stance the spec takes toward BankClassifier (C2).
func Metadata(pages []string) models.StatementMetadata {
	text := strings.Join(pages, "\n")
	return models.StatementMetadata{
		AccountHolder:   extractNameNearLabel(text, []string{"Account holder", "Account name", "Mr ", "Mrs ", "Ms "}),
		AccountNumber:   findAccountNumber(text),
		SortCode:        findSortCode(text),
		StatementPeriod: extractPeriod(text),
	}
}

// UK bank account numbers (8 digits) and sort codes (XX-XX-XX).
var (
	accountNumberPattern = regexp.MustCompile(`\b(\d{8})\b`)
	sortCodePattern      = regexp.MustCompile(`\b(\d{2}-\d{2}-\d{2})\b`)
	datePatternSlash     = regexp.MustCompile(`\b(\d{1,2}/\d{1,2}/\d{2,4})\b`)
	datePatternText      = regexp.MustCompile(`(?i)\b(\d{1,2}\s+(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+\d{2,4})\b`)
)

func findAccountNumber(text string) string {
	return accountNumberPattern.FindString(text)
}

func findSortCode(text string) string {
	return sortCodePattern.FindString(text)
}

func extractNameNearLabel(text string, labels []string) string {
	for _, line := range strings.Split(text, "\n") {
		for _, label := range labels {
			idx := strings.Index(line, label)
			if idx < 0 {
				continue
			}
			rest := strings.TrimSpace(line[idx+len(label):])
			if strings.HasPrefix(rest, ":") {
				rest = strings.TrimSpace(rest[1:])
			}
			if rest == "" {
				continue
			}
			// Take the rest of the line up to a wide gap (column boundary).
			return strings.TrimSpace(strings.Split(rest, "  ")[0])
		}
	}
	return ""
}

func extractPeriod(text string) string {
	for _, line := range strings.Split(text, "\n") {
		lower := strings.ToLower(line)
		if !strings.Contains(lower, "statement period") && !strings.Contains(lower, "period") {
			continue
		}
		if dates := datePatternSlash.FindAllString(line, 2); len(dates) == 2 {
			return dates[0] + " to " + dates[1]
		}
		if dates := datePatternText.FindAllString(line, 2); len(dates) == 2 {
			return dates[0] + " to " + dates[1]
		}
	}
	return ""
}
