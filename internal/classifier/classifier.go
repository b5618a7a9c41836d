// Package classifier implements BankClassifier (C2): from page-1 text,
// produce a canonical issuer tag or none. Classification is advisory and
// never blocks a run.
package classifier

import (
	"context"
	"strings"

	"github.com/insightdelivered/statement-ledger/internal/llmtext"
)

const maxPageOneChars = 2000

const identificationPrompt = `You are identifying the bank that issued a bank statement.
Read the statement text below and reply with ONLY the bank's name, nothing else.
If you cannot tell, reply with the single word "unknown".

Statement text:
`

// canonicalizations maps a substring that may appear anywhere in the
// model's free-text answer onto a canonical, upper-case issuer tag. This is
// the teacher's own bank-identifier table, now applied to the model's
// answer rather than driving detection directly.
var canonicalizations = []struct {
	substr string
	tag    string
}{
	{"metro", "METRO"},
	{"hsbc", "HSBC"},
	{"barclays", "BARCLAYS"},
	{"icici", "ICICI"},
}

// Classify submits the first page's text (truncated to 2,000 characters) to
// completer and returns a canonical issuer tag, or nil if the bank could
// not be identified. Any transport error yields nil: classification
// is advisory, never blocking, per spec.md §4.2.
func Classify(ctx context.Context, completer llmtext.TextCompleter, pageOne string) *string {
	truncated := pageOne
	if len(truncated) > maxPageOneChars {
		truncated = truncated[:maxPageOneChars]
	}

	answer, err := completer.Complete(ctx, identificationPrompt+truncated)
	if err != nil {
		return nil
	}

	return canonicalize(answer)
}

// canonicalize applies the validity checks and substring table from
// spec.md §4.2 to a raw model answer.
func canonicalize(answer string) *string {
	line := firstLine(answer)
	if line == "" || len(line) > 50 || strings.EqualFold(line, "unknown") {
		return nil
	}

	lower := strings.ToLower(line)
	for _, c := range canonicalizations {
		if strings.Contains(lower, c.substr) {
			tag := c.tag
			return &tag
		}
	}

	tag := strings.ToUpper(strings.TrimSpace(line))
	return &tag
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
