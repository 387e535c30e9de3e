package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/avrilcode/compactmem/internal/model"
)

const testDims = 8

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "test.db"), testDims)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testVector(seed float32) []float32 {
	v := make([]float32, testDims)
	for i := range v {
		v[i] = seed + float32(i)*0.01
	}
	return v
}

func testMemory(id string, importance float64) model.Memory {
	return model.Memory{
		ID:         id,
		SessionID:  "sess-1",
		Timestamp:  time.Now().UTC(),
		ChunkIndex: 0,
		Intent:     "fix the bug in " + id,
		Action:     "edited the handler",
		Outcome:    "tests pass",
		Importance: importance,
		Embedding:  testVector(float32(len(id))),
	}
}

func TestPutAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mem := testMemory("mem_a", 5)
	if err := s.Put(ctx, []model.Memory{mem}, nil, nil); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := s.Get(ctx, "mem_a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Intent != mem.Intent {
		t.Errorf("expected intent %q, got %q", mem.Intent, got.Intent)
	}

	got2, err := s.Get(ctx, "mem_a")
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if got2.AccessCount < 1 {
		t.Errorf("expected access_count incremented, got %d", got2.AccessCount)
	}
}

func TestPut_RejectsDuplicateID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mem := testMemory("dup", 1)
	if err := s.Put(ctx, []model.Memory{mem}, nil, nil); err != nil {
		t.Fatalf("first put: %v", err)
	}
	if err := s.Put(ctx, []model.Memory{mem}, nil, nil); err == nil {
		t.Error("expected error on duplicate memory ID")
	}
}

func TestPut_RejectsWrongDims(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mem := testMemory("bad-dims", 1)
	mem.Embedding = []float32{1, 2, 3}
	if err := s.Put(ctx, []model.Memory{mem}, nil, nil); err == nil {
		t.Error("expected error for wrong embedding dimensionality")
	}
}

func TestPut_AtomicAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	good := testMemory("ok-1", 1)
	bad := testMemory("ok-1", 2) // duplicate ID within the same batch

	if err := s.Put(ctx, []model.Memory{good, bad}, nil, nil); err == nil {
		t.Fatal("expected batch put to fail")
	}
	if n, _ := s.Count(ctx); n != 0 {
		t.Errorf("expected no partial write after failed batch, got %d rows", n)
	}
}

func TestQuery_FiltersBySession(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	memA := testMemory("a", 10)
	memA.Embedding = testVector(1.0)
	memB := testMemory("b", 1)
	memB.Embedding = testVector(1.0)
	memB.SessionID = "other-session"

	if err := s.Put(ctx, []model.Memory{memA, memB}, nil, nil); err != nil {
		t.Fatalf("put: %v", err)
	}

	results, err := s.Query(ctx, testVector(1.0), 10, Filter{SessionID: "sess-1"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	for _, r := range results {
		if r.Memory.SessionID != "sess-1" {
			t.Errorf("expected only sess-1 results, got %q", r.Memory.SessionID)
		}
	}
}

func TestDeleteAndScan(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mem := testMemory("to-delete", 1)
	if err := s.Put(ctx, []model.Memory{mem}, nil, nil); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Delete(ctx, []string{"to-delete"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	mems, err := s.Scan(ctx, Filter{})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(mems) != 0 {
		t.Errorf("expected no memories after delete, got %d", len(mems))
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.Put(ctx, []model.Memory{testMemory("low", 1), testMemory("high", 25)}, nil, nil); err != nil {
		t.Fatalf("put: %v", err)
	}
	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Total != 2 {
		t.Errorf("expected total 2, got %d", st.Total)
	}
	if st.ByCategory[string(model.ImportanceCritical)] != 1 {
		t.Errorf("expected 1 critical memory, got %d", st.ByCategory[string(model.ImportanceCritical)])
	}
}

func TestEntitiesEdgesAndOrphanGC(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mem := testMemory("with-entity", 1)
	ent := model.Entity{ID: "ent_1", Type: model.EntityFile, SurfaceForm: "foo.go", CanonicalForm: "foo.go"}
	edge := model.MemoryEntityEdge{MemoryID: mem.ID, EntityID: ent.ID, Weight: 1}

	if err := s.Put(ctx, []model.Memory{mem}, []model.Entity{ent}, []model.MemoryEntityEdge{edge}); err != nil {
		t.Fatalf("put: %v", err)
	}

	ents, err := s.Entities(ctx)
	if err != nil || len(ents) != 1 {
		t.Fatalf("expected 1 entity, got %d (err=%v)", len(ents), err)
	}

	if err := s.Delete(ctx, []string{mem.ID}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	n, err := s.DeleteOrphanEntities(ctx)
	if err != nil {
		t.Fatalf("orphan gc: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 orphan entity gc'd, got %d", n)
	}
}

func TestKeywordSearch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mem := testMemory("kw", 1)
	mem.Intent = "investigate the checkout flow timeout"
	if err := s.Put(ctx, []model.Memory{mem}, nil, nil); err != nil {
		t.Fatalf("put: %v", err)
	}

	results, err := s.KeywordSearch(ctx, []string{"checkout"}, 10)
	if err != nil {
		t.Fatalf("keyword search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 keyword match, got %d", len(results))
	}
}
