package graph

import (
	"testing"

	"github.com/avrilcode/compactmem/internal/model"
)

func testEntities() []model.Entity {
	return []model.Entity{
		{ID: "e1", Type: model.EntityFile, CanonicalForm: "auth.go"},
		{ID: "e2", Type: model.EntityFunction, CanonicalForm: "login"},
		{ID: "e3", Type: model.EntityBug, CanonicalForm: "nil pointer"},
		{ID: "e4", Type: model.EntityTool, CanonicalForm: "golangci-lint"},
	}
}

func TestBuild_CoMentionEdges(t *testing.T) {
	entities := testEntities()
	edges := []model.MemoryEntityEdge{
		{MemoryID: "m1", EntityID: "e1"},
		{MemoryID: "m1", EntityID: "e2"},
		{MemoryID: "m2", EntityID: "e2"},
		{MemoryID: "m2", EntityID: "e3"},
	}
	g := Build(entities, edges)

	if g.Node("e1").Degree != 1 {
		t.Errorf("expected e1 degree 1, got %d", g.Node("e1").Degree)
	}
	if g.Node("e2").Degree != 2 {
		t.Errorf("expected e2 degree 2 (co-mentioned with e1 and e3), got %d", g.Node("e2").Degree)
	}
	if g.Node("e4").Degree != 0 {
		t.Errorf("expected isolated e4 to have degree 0, got %d", g.Node("e4").Degree)
	}
}

func TestPageRank_SumsToOne(t *testing.T) {
	entities := testEntities()
	edges := []model.MemoryEntityEdge{
		{MemoryID: "m1", EntityID: "e1"},
		{MemoryID: "m1", EntityID: "e2"},
		{MemoryID: "m2", EntityID: "e2"},
		{MemoryID: "m2", EntityID: "e3"},
	}
	g := Build(entities, edges)

	var total float64
	for _, id := range []string{"e1", "e2", "e3", "e4"} {
		total += g.Node(id).PageRank
	}
	if total < 0.99 || total > 1.01 {
		t.Errorf("expected pagerank to sum to ~1, got %v", total)
	}
}

func TestHopsBetween(t *testing.T) {
	entities := testEntities()
	edges := []model.MemoryEntityEdge{
		{MemoryID: "m1", EntityID: "e1"},
		{MemoryID: "m1", EntityID: "e2"},
		{MemoryID: "m2", EntityID: "e2"},
		{MemoryID: "m2", EntityID: "e3"},
	}
	g := Build(entities, edges)

	if got := g.HopsBetween("e1", "e1"); got != 0 {
		t.Errorf("expected 0 hops to self, got %d", got)
	}
	if got := g.HopsBetween("e1", "e2"); got != 1 {
		t.Errorf("expected 1 hop e1->e2, got %d", got)
	}
	if got := g.HopsBetween("e1", "e3"); got != 2 {
		t.Errorf("expected 2 hops e1->e3, got %d", got)
	}
	if got := g.HopsBetween("e1", "e4"); got != 3 {
		t.Errorf("expected beyond-2-hop sentinel 3 for disconnected e4, got %d", got)
	}
}

func TestAttenuation(t *testing.T) {
	cases := map[int]float64{0: 1.0, 1: 0.5, 2: 0.25, 3: 0, 10: 0}
	for hops, want := range cases {
		if got := Attenuation(hops); got != want {
			t.Errorf("Attenuation(%d) = %v, want %v", hops, got, want)
		}
	}
}

func TestTopEntities(t *testing.T) {
	entities := testEntities()
	edges := []model.MemoryEntityEdge{
		{MemoryID: "m1", EntityID: "e1"},
		{MemoryID: "m1", EntityID: "e2"},
		{MemoryID: "m2", EntityID: "e2"},
		{MemoryID: "m2", EntityID: "e3"},
	}
	g := Build(entities, edges)

	top := g.TopEntities(2)
	if len(top) != 2 {
		t.Fatalf("expected 2 top entities, got %d", len(top))
	}
	if top[0].PageRank < top[1].PageRank {
		t.Error("expected top entities sorted by descending pagerank")
	}
}

func TestStatistics(t *testing.T) {
	entities := testEntities()
	edges := []model.MemoryEntityEdge{
		{MemoryID: "m1", EntityID: "e1"},
		{MemoryID: "m1", EntityID: "e2"},
	}
	g := Build(entities, edges)
	stats := g.Statistics()
	if stats.NodeCount != 4 {
		t.Errorf("expected 4 nodes, got %d", stats.NodeCount)
	}
	if stats.EdgeCount != 1 {
		t.Errorf("expected 1 edge, got %d", stats.EdgeCount)
	}
}
