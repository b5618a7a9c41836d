// Package llmtext implements the LlmExtractor (C4) contract: submit an
// expanded prompt to a text-completion service and parse its response into
// raw transaction rows.
package llmtext

import "context"

// TextCompleter is the narrow boundary this package (and BankClassifier, C2)
// talks to. The production adapter wraps google.golang.org/genai; tests use
// a stub. Prompt authoring and the LLM provider SDK itself are external
// collaborators per spec.md — this interface is the contract.
type TextCompleter interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
