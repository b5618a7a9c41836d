// Package models defines the shared data types that cross component
// boundaries in the ingestion-and-reconciliation pipeline: the opaque raw
// row produced by the LLM, the canonical row the reconciler operates on,
// and the persisted run/feedback/prompt records.
package models

import "github.com/shopspring/decimal"

// RowValueKind tags the dynamic shape of a single RawRow cell, exactly as
// the LLM produced it before KeyNormalizer resolves it onto the canonical
// schema. This is the only place in the pipeline where heterogeneous,
// issuer-shaped data is allowed to live.
type RowValueKind int

const (
	KindNull RowValueKind = iota
	KindText
	KindNumber
)

// RowValue is a tagged union over the three JSON leaf shapes an LLM
// extraction response can produce for a cell: string, number, or null.
type RowValue struct {
	Kind RowValueKind
	Text string
	Num  decimal.Decimal
}

func NullValue() RowValue { return RowValue{Kind: KindNull} }

func TextValue(s string) RowValue { return RowValue{Kind: KindText, Text: s} }

func NumberValue(n decimal.Decimal) RowValue { return RowValue{Kind: KindNumber, Num: n} }

// IsNull reports whether the value is the JSON null leaf.
func (v RowValue) IsNull() bool { return v.Kind == KindNull }

// IsEmpty reports whether the value carries no usable content: null, or an
// all-whitespace string. Numbers (including zero) are never empty.
func (v RowValue) IsEmpty() bool {
	switch v.Kind {
	case KindNull:
		return true
	case KindText:
		return trimmed(v.Text) == ""
	default:
		return false
	}
}

// AsString renders the value as text, the same way it would appear in a
// CSV cell: null becomes "", numbers use their plain decimal form.
func (v RowValue) AsString() string {
	switch v.Kind {
	case KindNull:
		return ""
	case KindText:
		return v.Text
	case KindNumber:
		return v.Num.String()
	}
	return ""
}

func trimmed(s string) string {
	start, end := 0, len(s)
	for start < end && isSpaceByte(s[start]) {
		start++
	}
	for end > start && isSpaceByte(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f' || b == '\v'
}

// RawRow is an opaque key/value row exactly as produced by the LLM for one
// transaction line, after KeyNormalizer's whitespace cleaning of the keys.
// Values are issuer-shaped; RawRow never appears downstream of KeyNormalizer.
type RawRow map[string]RowValue
