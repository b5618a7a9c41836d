package llmtext

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/statement-ledger/internal/models"
)

// Extract submits prompt to completer and parses the response into raw
// rows, per spec.md §4.4:
//  1. strip a leading ```json fence and trailing ``` fence if present.
//  2. parse as JSON; unparseable -> ErrLlmResponseUnparseable.
//  3. accept a top-level array, or {"transactions": [...]}; anything else
//     -> ErrLlmResponseShapeInvalid.
//  4. reject any array element that is not an object.
//
// Extract does not reorder, deduplicate, or normalize keys — that is
// KeyNormalizer's (C5) job.
func Extract(ctx context.Context, completer TextCompleter, prompt string) ([]models.RawRow, error) {
	raw, err := completer.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	stripped := stripFences(raw)

	var decoded any
	if err := json.Unmarshal([]byte(stripped), &decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrLlmResponseUnparseable, err)
	}

	rowsAny, err := rowsFromShape(decoded)
	if err != nil {
		return nil, err
	}

	if err := validateRows(rowsAny); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrLlmResponseShapeInvalid, err)
	}

	rows := make([]models.RawRow, 0, len(rowsAny))
	for _, elem := range rowsAny {
		obj, ok := elem.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: array element is not an object", models.ErrLlmResponseShapeInvalid)
		}
		rows = append(rows, toRawRow(obj))
	}
	return rows, nil
}

// rowsFromShape accepts either a top-level array or an object with key
// "transactions" whose value is an array.
func rowsFromShape(decoded any) ([]any, error) {
	switch v := decoded.(type) {
	case []any:
		return v, nil
	case map[string]any:
		txns, ok := v["transactions"]
		if !ok {
			return nil, fmt.Errorf("%w: object missing \"transactions\" key", models.ErrLlmResponseShapeInvalid)
		}
		arr, ok := txns.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: \"transactions\" is not an array", models.ErrLlmResponseShapeInvalid)
		}
		return arr, nil
	default:
		return nil, fmt.Errorf("%w: top-level value is neither an array nor an object", models.ErrLlmResponseShapeInvalid)
	}
}

func toRawRow(obj map[string]any) models.RawRow {
	row := make(models.RawRow, len(obj))
	for k, v := range obj {
		row[k] = toRowValue(v)
	}
	return row
}

func toRowValue(v any) models.RowValue {
	switch t := v.(type) {
	case nil:
		return models.NullValue()
	case string:
		return models.TextValue(t)
	case float64:
		return models.NumberValue(decimal.NewFromFloat(t))
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		if err != nil {
			return models.TextValue(t.String())
		}
		return models.NumberValue(d)
	default:
		// The schema guarantees string/number/null leaves; anything else
		// getting here is treated as its JSON text form.
		b, _ := json.Marshal(t)
		return models.TextValue(string(b))
	}
}

// stripFences removes a single leading ```json (or ```) fence and a single
// trailing ``` fence, if present, tolerating surrounding whitespace.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if idx := strings.Index(s, "\n"); idx != -1 {
		s = s[idx+1:]
	} else {
		return strings.TrimSpace(strings.TrimPrefix(s, "```"))
	}
	s = strings.TrimRight(s, "\n\t ")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
