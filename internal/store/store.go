// Package store provides the memory+vector storage interface and its
// SQLite/sqlite-vec implementation (spec §4.5, C6).
package store

import (
	"context"
	"time"

	"github.com/avrilcode/compactmem/internal/model"
)

// Filter is a metadata predicate applied to Query/Scan. Zero-valued fields
// are not applied.
type Filter struct {
	SessionID     string
	MinImportance float64
	Since         time.Time
	Until         time.Time
	HasCode       *bool
	HasFiles      *bool
	HasArchitecture *bool
}

// QueryResult pairs a memory with its cosine distance to the query vector.
type QueryResult struct {
	Memory   model.Memory
	Distance float64
}

// Similarity returns 1-distance, the cosine similarity.
func (r QueryResult) Similarity() float64 {
	return 1 - r.Distance
}

// Stats is the §6.4 stats() aggregation.
type Stats struct {
	Total        int                `json:"total"`
	ByCategory   map[string]int     `json:"by_category"`
	ByFlag       map[string]int     `json:"by_flag"`
	AvgImportance float64           `json:"avg_importance"`
}

// Store is the persistent vector+metadata store contract of spec §4.5.
type Store interface {
	// Put writes a batch of memories plus their entities/edges atomically:
	// all-or-nothing (spec §5 transactional requirement). Rejects duplicate
	// IDs and wrong-dimensionality vectors.
	Put(ctx context.Context, memories []model.Memory, entities []model.Entity, edges []model.MemoryEntityEdge) error

	// Get is an O(1) lookup by stable ID.
	Get(ctx context.Context, id string) (*model.Memory, error)

	// Query runs approximate nearest-neighbor search over cosine distance.
	Query(ctx context.Context, vec []float32, k int, filter Filter) ([]QueryResult, error)

	// Delete atomically removes memories by ID.
	Delete(ctx context.Context, ids []string) error

	// Scan iterates all memories matching filter.
	Scan(ctx context.Context, filter Filter) ([]model.Memory, error)

	// Count returns the total live memory count.
	Count(ctx context.Context) (int, error)

	// Stats returns cheap aggregations for §6.4.
	Stats(ctx context.Context) (Stats, error)

	// Entities returns every live entity.
	Entities(ctx context.Context) ([]model.Entity, error)

	// Edges returns every memory-entity edge.
	Edges(ctx context.Context) ([]model.MemoryEntityEdge, error)

	// DeleteOrphanEntities removes entities referenced by no live memory
	// (pruner entity GC) and returns the count removed.
	DeleteOrphanEntities(ctx context.Context) (int, error)

	// KeywordSearch runs an FTS5 match over intent/action/outcome text.
	KeywordSearch(ctx context.Context, keywords []string, limit int) ([]model.Memory, error)

	// Close closes the store.
	Close() error
}
