// Package logging holds the structured field-name constants shared by the
// pipeline's log statements, so call sites agree on a key for "which page"
// or "which run" instead of drifting across ad-hoc string literals.
package logging

const (
	FieldRunID      = "run_id"
	FieldPageIndex  = "page_index"
	FieldPageCount  = "page_count"
	FieldIssuerTag  = "issuer_tag"
	FieldSourceName = "source_name"
	FieldRowCount   = "row_count"
	FieldRejected   = "rows_rejected"
	FieldError      = "error"
)
