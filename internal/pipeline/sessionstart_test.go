package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/avrilcode/compactmem/internal/embedding"
	"github.com/avrilcode/compactmem/internal/graph"
	"github.com/avrilcode/compactmem/internal/model"
	"github.com/avrilcode/compactmem/internal/store"
)

func newTestSessionStart(t *testing.T) (*SessionStart, *store.SQLiteStore) {
	t.Helper()
	dir := t.TempDir()
	s, err := store.NewSQLiteStore(filepath.Join(dir, "mem.db"), embedding.Dims)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return &SessionStart{
		Store:         s,
		Embedder:      embedding.NewLocalEmbedder(embedding.Dims),
		Graph:         graph.NewCache(filepath.Join(dir, "kg"), 300),
		MinSimilarity: 0,
		KMax:          10,
		KRecent:       2,
		Alpha:         0.6,
		Beta:          0.4,
	}, s
}

func seedMemory(t *testing.T, s *store.SQLiteStore, e embedding.Embedder, id, sessionID, intent string, importance float64, ts time.Time) {
	t.Helper()
	vec, err := e.Embed(context.Background(), intent)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	m := model.Memory{
		ID: id, SessionID: sessionID, Timestamp: ts, Intent: intent,
		Outcome: "tests pass", Importance: importance, Embedding: vec,
	}
	if err := s.Put(context.Background(), []model.Memory{m}, nil, nil); err != nil {
		t.Fatalf("put: %v", err)
	}
}

func TestSessionStart_Run_EmptyQueryReturnsEmpty(t *testing.T) {
	p, _ := newTestSessionStart(t)
	res, err := p.Run(context.Background(), "s1", "   ")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Injected != 0 || res.Context != "" {
		t.Errorf("expected empty result for blank query, got %+v", res)
	}
}

func TestSessionStart_Run_RanksBySimilarity(t *testing.T) {
	ctx := context.Background()
	p, s := newTestSessionStart(t)
	e := p.Embedder

	seedMemory(t, s, e, "m1", "s1", "fixed a nil pointer crash in the checkout handler", 5, time.Now())
	seedMemory(t, s, e, "m2", "s1", "wrote release notes for the changelog", 5, time.Now())

	res, err := p.Run(ctx, "s1", "checkout handler keeps crashing with a nil pointer")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Injected == 0 {
		t.Fatal("expected at least one injected memory")
	}
}

func TestSessionStart_Run_QualityGateExcludesUnrelated(t *testing.T) {
	ctx := context.Background()
	p, s := newTestSessionStart(t)
	p.MinSimilarity = 0.9
	e := p.Embedder

	seedMemory(t, s, e, "m1", "s1", "completely unrelated note about baking sourdough bread", 5, time.Now())

	// An empty sessionID keeps the k_recent prepend (which always runs,
	// regardless of the query, per spec) from adding this memory back in,
	// isolating the similarity quality gate's own exclusion behavior.
	res, err := p.Run(ctx, "", "how do I configure the payment gateway retry policy")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Injected != 0 {
		t.Errorf("expected the similarity quality gate to exclude the unrelated memory, got %d injected", res.Injected)
	}
}

func TestSessionStart_Run_QualityGateFailsButRecentStillPrepended(t *testing.T) {
	ctx := context.Background()
	p, s := newTestSessionStart(t)
	p.MinSimilarity = 0.9
	e := p.Embedder

	seedMemory(t, s, e, "m1", "s1", "completely unrelated note about baking sourdough bread", 5, time.Now())

	res, err := p.Run(ctx, "s1", "how do I configure the payment gateway retry policy")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Injected == 0 {
		t.Error("expected the k_recent prepend to still surface a memory even though the quality gate rejected it on similarity")
	}
}

func TestSessionStart_Run_RecentPrepended(t *testing.T) {
	ctx := context.Background()
	p, s := newTestSessionStart(t)
	e := p.Embedder

	seedMemory(t, s, e, "old", "s1", "something about the billing system", 1, time.Now().Add(-48*time.Hour))
	seedMemory(t, s, e, "new", "s1", "most recent thing worked on", 1, time.Now())

	res, err := p.Run(ctx, "s1", "totally different topic with no overlap at all xyz")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Injected == 0 {
		t.Error("expected recent-prepend to guarantee at least one injected memory")
	}
}
