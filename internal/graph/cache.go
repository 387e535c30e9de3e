package graph

import (
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/avrilcode/compactmem/internal/model"
)

// Cache wraps a Graph with a file-backed TTL snapshot in the directory
// given to NewCache; the CLI uses "<db path>.kg_cache", beside the database
// file rather than in a folder inside it. Readers observe either the
// pre- or post-rebuild graph, never a partial one, because a rebuild
// writes to a ulid-staged temp file and atomically renames it into place.
type Cache struct {
	dir     string
	ttl     time.Duration
	entropy *rand.Rand

	graph   *Graph
	builtAt time.Time
}

type snapshot struct {
	BuiltAt  time.Time       `json:"built_at"`
	Entities []model.Entity  `json:"entities"`
	Edges    []model.MemoryEntityEdge `json:"edges"`
}

// NewCache returns a graph cache rooted at dir with the given TTL in
// seconds (default 300, per spec §4.6). The directory is created by the
// first Rebuild, not here.
func NewCache(dir string, ttlSeconds int) *Cache {
	if ttlSeconds <= 0 {
		ttlSeconds = 300
	}
	return &Cache{
		dir:     dir,
		ttl:     time.Duration(ttlSeconds) * time.Second,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *Cache) snapshotPath() string {
	return filepath.Join(c.dir, "graph.json")
}

// Get returns the cached graph if fresh, else nil. Callers that get nil
// must call Rebuild.
func (c *Cache) Get() *Graph {
	if c.graph != nil && time.Since(c.builtAt) < c.ttl {
		return c.graph
	}

	info, err := os.Stat(c.snapshotPath())
	if err != nil {
		return nil
	}
	if time.Since(info.ModTime()) >= c.ttl {
		return nil
	}

	b, err := os.ReadFile(c.snapshotPath())
	if err != nil {
		return nil
	}
	var snap snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil
	}
	c.graph = Build(snap.Entities, snap.Edges)
	c.builtAt = snap.BuiltAt
	return c.graph
}

// Rebuild constructs a fresh graph from the given entities/edges and
// atomically publishes it: write to a staged temp file, then rename, so
// concurrent readers never observe a partially-written snapshot.
func (c *Cache) Rebuild(entities []model.Entity, edges []model.MemoryEntityEdge) (*Graph, error) {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	snap := snapshot{BuiltAt: now, Entities: entities, Edges: edges}
	b, err := json.Marshal(snap)
	if err != nil {
		return nil, err
	}

	token := ulid.MustNew(ulid.Timestamp(now), c.entropy).String()
	stagedPath := filepath.Join(c.dir, "graph."+token+".tmp")
	if err := os.WriteFile(stagedPath, b, 0o644); err != nil {
		return nil, err
	}
	if err := os.Rename(stagedPath, c.snapshotPath()); err != nil {
		os.Remove(stagedPath)
		return nil, err
	}

	g := Build(entities, edges)
	c.graph = g
	c.builtAt = now
	return g, nil
}

// Invalidate drops the in-memory cache (but leaves the on-disk snapshot,
// which will simply be rebuilt on next stale read). Used by the PreCompact
// pipeline after a prune sweep removes memories (spec §4.9).
func (c *Cache) Invalidate() {
	c.graph = nil
	c.builtAt = time.Time{}
}
