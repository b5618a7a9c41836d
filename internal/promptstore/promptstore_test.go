package promptstore

import (
	"context"
	"errors"
	"testing"

	"github.com/insightdelivered/statement-ledger/internal/models"
)

func TestExpand(t *testing.T) {
	got := Expand("Read this: ${textContent} end.", "PAGE TEXT")
	want := "Read this: PAGE TEXT end."
	if got != want {
		t.Errorf("Expand() = %q, want %q", got, want)
	}
}

func TestExpand_NoMarker(t *testing.T) {
	got := Expand("no marker here", "PAGE TEXT")
	if got != "no marker here" {
		t.Errorf("Expand() = %q, want unchanged", got)
	}
}

func TestMemoryStore_FallsBackToDefault(t *testing.T) {
	s := NewMemoryStore(models.Prompt{ID: "default", Text: "default text"})
	issuer := "HSBC"
	p, err := s.ResolvePrompt(context.Background(), &issuer)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != "default" {
		t.Errorf("expected default prompt, got %q", p.ID)
	}
}

func TestMemoryStore_IssuerSpecificWins(t *testing.T) {
	s := NewMemoryStore(models.Prompt{ID: "default", Text: "default text"})
	tag := "HSBC"
	s.Put(models.Prompt{ID: "hsbc-prompt", IssuerTag: &tag, IsActive: true, Text: "hsbc text"})

	p, err := s.ResolvePrompt(context.Background(), &tag)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != "hsbc-prompt" {
		t.Errorf("expected issuer-specific prompt, got %q", p.ID)
	}
}

func TestMemoryStore_NoDefaultFailsClosed(t *testing.T) {
	s := &MemoryStore{prompts: map[string]models.Prompt{}}
	_, err := s.ResolvePrompt(context.Background(), nil)
	if !errors.Is(err, models.ErrNoPromptConfigured) {
		t.Fatalf("expected ErrNoPromptConfigured, got %v", err)
	}
}

type countingStore struct {
	calls int
	p     models.Prompt
}

func (c *countingStore) ResolvePrompt(ctx context.Context, issuerTag *string) (models.Prompt, error) {
	c.calls++
	return c.p, nil
}

func TestRunCache_CachesPerSlot(t *testing.T) {
	backing := &countingStore{p: models.Prompt{ID: "p1"}}
	cache := NewRunCache(backing)

	for i := 0; i < 3; i++ {
		if _, err := cache.ResolvePrompt(context.Background(), nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if backing.calls != 1 {
		t.Fatalf("expected 1 backing call, got %d", backing.calls)
	}
}
