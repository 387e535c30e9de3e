package embedding

import (
	"context"
	"math"
	"testing"
	"time"
)

func TestLocalEmbedder_Deterministic(t *testing.T) {
	e := NewLocalEmbedder(64)
	ctx := context.Background()

	v1, err := e.Embed(ctx, "fixed the auth bug in login.go")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	v2, err := e.Embed(ctx, "fixed the auth bug in login.go")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(v1) != 64 {
		t.Fatalf("expected 64 dims, got %d", len(v1))
	}
	for i := range v1 {
		if v1[i] != v2[i] {
			t.Fatalf("expected deterministic embedding, differed at index %d", i)
		}
	}
}

func TestLocalEmbedder_L2Normalized(t *testing.T) {
	e := NewLocalEmbedder(32)
	v, err := e.Embed(context.Background(), "some non-empty text with several words")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if math.Abs(math.Sqrt(sumSq)-1.0) > 1e-3 {
		t.Errorf("expected unit-norm vector, got norm %v", math.Sqrt(sumSq))
	}
}

func TestLocalEmbedder_EmptyTextIsZeroVector(t *testing.T) {
	e := NewLocalEmbedder(16)
	v, err := e.Embed(context.Background(), "")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	for _, x := range v {
		if x != 0 {
			t.Errorf("expected zero vector for empty text, got %v", v)
			break
		}
	}
}

func TestCosineSimilarity(t *testing.T) {
	e := NewLocalEmbedder(64)
	ctx := context.Background()
	a, _ := e.Embed(ctx, "refactored the parser module")
	b, _ := e.Embed(ctx, "refactored the parser module")
	c, _ := e.Embed(ctx, "completely unrelated topic about baking bread")

	if sim := CosineSimilarity(a, b); sim < 0.999 {
		t.Errorf("expected identical text to have similarity ~1, got %v", sim)
	}
	if sim := CosineSimilarity(a, c); sim > 0.9 {
		t.Errorf("expected unrelated text to have lower similarity, got %v", sim)
	}
}

func TestCosineSimilarity_MismatchedDims(t *testing.T) {
	if got := CosineSimilarity(Vector{1, 2}, Vector{1, 2, 3}); got != 0 {
		t.Errorf("expected 0 for mismatched dims, got %v", got)
	}
}

func TestBuildContextualPrefix(t *testing.T) {
	ts := time.Date(2026, 3, 5, 14, 30, 0, 0, time.UTC)
	got := BuildContextualPrefix("abcdef1234567890", ts, []string{"b.go", "a.go"}, "fix bug", "edited files", "tests pass")
	want := "Session abcdef12 at 2026-03-05 14:30. Files: a.go, b.go. fix bug -> edited files -> tests pass"
	if got != want {
		t.Errorf("BuildContextualPrefix() = %q, want %q", got, want)
	}
}

func TestBuildContextualPrefix_NoOutcome(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	got := BuildContextualPrefix("short", ts, nil, "intent", "action", "")
	want := "Session short at 2026-01-01 00:00. Files: . intent -> action"
	if got != want {
		t.Errorf("BuildContextualPrefix() = %q, want %q", got, want)
	}
}
