package models

import "errors"

// Engine error kinds, per the propagation policy in SPEC_FULL.md §7.
// Surfaced kinds are returned to the caller (api maps them to HTTP status);
// per-page kinds are recorded and the page is skipped, never propagated.
var (
	// ErrMalformedSource: PDF unparseable by any extraction tier.
	ErrMalformedSource = errors.New("malformed source: PDF could not be parsed")

	// ErrNoTextExtracted: zero pages of readable text across the document.
	ErrNoTextExtracted = errors.New("no text extracted from document")

	// ErrNoPromptConfigured: neither an issuer-specific nor the default
	// prompt slot has an active prompt. Fatal for the run.
	ErrNoPromptConfigured = errors.New("no active prompt configured")

	// ErrLlmResponseUnparseable: the LLM response was not valid JSON
	// after fence stripping. Page-local, recoverable.
	ErrLlmResponseUnparseable = errors.New("llm response is not valid JSON")

	// ErrLlmResponseShapeInvalid: valid JSON but not an array, nor an
	// object with a "transactions" array. Page-local, recoverable.
	ErrLlmResponseShapeInvalid = errors.New("llm response has an unexpected shape")

	// ErrLlmTransportError: the completion call itself failed (network,
	// timeout, non-2xx). Page-local, recoverable; retry policy lives in
	// the TextCompleter adapter.
	ErrLlmTransportError = errors.New("llm transport error")

	// ErrNoTransactionsExtracted: reconciliation produced zero rows.
	ErrNoTransactionsExtracted = errors.New("no transactions extracted")

	// ErrRunPersistenceFailed: RunStore.CreateRun failed. Logged, never
	// surfaced; the caller receives runId = null.
	ErrRunPersistenceFailed = errors.New("run persistence failed")

	// ErrArtifactNotFound: the requested download id does not exist or
	// is unreadable.
	ErrArtifactNotFound = errors.New("artifact not found")

	// ErrRunNotFound: confirmAccuracy/submitFeedback referenced an unknown run.
	ErrRunNotFound = errors.New("run not found")
)
