// Package promptstore implements PromptStore (C3): resolving the active
// extraction prompt for an issuer (falling back to the default slot) and
// expanding it with page text.
package promptstore

import (
	"context"
	"strings"

	"github.com/insightdelivered/statement-ledger/internal/models"
)

// Store resolves the active prompt for an issuer tag, falling back to the
// default (nil) slot. Implementations must fail with ErrNoPromptConfigured
// when neither slot has an active prompt — that error is fatal for the run.
type Store interface {
	ResolvePrompt(ctx context.Context, issuerTag *string) (models.Prompt, error)
}

// textContentMarker is the only interpolation point a prompt may contain.
const textContentMarker = "${textContent}"

// Expand substitutes every occurrence of ${textContent} in text with
// pageText. No other interpolation is performed.
func Expand(text, pageText string) string {
	return strings.ReplaceAll(text, textContentMarker, pageText)
}
