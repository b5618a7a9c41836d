package promptstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/insightdelivered/statement-ledger/internal/models"
)

// MemoryStore is an in-memory Store, keyed by issuer tag ("" for the
// default slot). It backs ledgerctl (the database-free CLI path) and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	prompts map[string]models.Prompt
}

// NewMemoryStore builds a store seeded with defaultPrompt in the default
// slot. Additional issuer-specific prompts can be added with Put.
func NewMemoryStore(defaultPrompt models.Prompt) *MemoryStore {
	s := &MemoryStore{prompts: make(map[string]models.Prompt)}
	defaultPrompt.IsDefault = true
	defaultPrompt.IsActive = true
	defaultPrompt.IssuerTag = nil
	s.prompts[""] = defaultPrompt
	return s
}

// Put installs (or replaces) the active prompt for an issuer tag. A nil tag
// replaces the default slot.
func (s *MemoryStore) Put(p models.Prompt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ""
	if p.IssuerTag != nil {
		key = *p.IssuerTag
	}
	s.prompts[key] = p
}

func (s *MemoryStore) ResolvePrompt(ctx context.Context, issuerTag *string) (models.Prompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if issuerTag != nil {
		if p, ok := s.prompts[*issuerTag]; ok && p.IsActive {
			return p, nil
		}
	}

	if p, ok := s.prompts[""]; ok && p.IsActive {
		return p, nil
	}

	return models.Prompt{}, fmt.Errorf("%w: no active default prompt", models.ErrNoPromptConfigured)
}
