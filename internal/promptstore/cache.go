package promptstore

import (
	"context"
	"sync"

	"github.com/insightdelivered/statement-ledger/internal/models"
)

// RunCache wraps a Store with a cache scoped to the lifetime of one
// pipeline run, per spec.md §4.3 ("the implementation may cache them for
// the lifetime of one run"). It is not safe to reuse across runs; a caller
// constructs one per run. The orchestrator does not use it: Process resolves
// the prompt once per call directly from its Store.
type RunCache struct {
	backing Store
	mu      sync.Mutex
	cached  map[string]models.Prompt
}

func NewRunCache(backing Store) *RunCache {
	return &RunCache{backing: backing, cached: make(map[string]models.Prompt)}
}

func (c *RunCache) ResolvePrompt(ctx context.Context, issuerTag *string) (models.Prompt, error) {
	key := ""
	if issuerTag != nil {
		key = *issuerTag
	}

	c.mu.Lock()
	if p, ok := c.cached[key]; ok {
		c.mu.Unlock()
		return p, nil
	}
	c.mu.Unlock()

	p, err := c.backing.ResolvePrompt(ctx, issuerTag)
	if err != nil {
		return models.Prompt{}, err
	}

	c.mu.Lock()
	c.cached[key] = p
	c.mu.Unlock()
	return p, nil
}
