// Package query implements the read-side operations of spec §6.4: topic
// search, keyword search, aggregate stats, and export. Adapted from
// rcliao-agent-memory/internal/store's search.go/stats.go/export.go,
// generalized from namespace+key lookups to the vector+metadata model.
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/avrilcode/compactmem/internal/cluster"
	"github.com/avrilcode/compactmem/internal/embedding"
	"github.com/avrilcode/compactmem/internal/graph"
	"github.com/avrilcode/compactmem/internal/model"
	"github.com/avrilcode/compactmem/internal/store"
)

// Service bundles the store+embedder pair every read operation needs.
type Service struct {
	Store    store.Store
	Embedder embedding.Embedder
}

// SearchParams configures a semantic topic search.
type SearchParams struct {
	Topic         string
	K             int
	MinImportance float64
	SessionID     string
}

// Search embeds topic (unprefixed, like a SessionStart query) and runs an
// ANN query with metadata filters applied.
func (s *Service) Search(ctx context.Context, p SearchParams) ([]store.QueryResult, error) {
	if p.Topic == "" {
		return nil, fmt.Errorf("search: topic is required")
	}
	k := p.K
	if k <= 0 {
		k = 20
	}
	vec, err := s.Embedder.Embed(ctx, p.Topic)
	if err != nil {
		return nil, fmt.Errorf("embed topic: %w", err)
	}
	return s.Store.Query(ctx, vec, k, store.Filter{
		SessionID:     p.SessionID,
		MinImportance: p.MinImportance,
	})
}

// KeywordSearch runs an FTS5 match over intent/action/outcome text.
func (s *Service) KeywordSearch(ctx context.Context, keywords []string, limit int) ([]model.Memory, error) {
	return s.Store.KeywordSearch(ctx, keywords, limit)
}

// Stats returns the §6.4 aggregate counts.
func (s *Service) Stats(ctx context.Context) (store.Stats, error) {
	return s.Store.Stats(ctx)
}

// Export returns every memory matching filter, ordered as the store
// chooses (most recent first), suitable for JSON serialization.
func (s *Service) Export(ctx context.Context, filter store.Filter) ([]model.Memory, error) {
	return s.Store.Scan(ctx, filter)
}

// GraphSummary is the knowledge-graph half of the `stats` CLI output:
// aggregate centrality stats plus the top entities by PageRank.
type GraphSummary struct {
	Stats       graph.Stats  `json:"stats"`
	TopEntities []graph.Node `json:"top_entities"`
}

// GraphSummary reads cache (rebuilding from the store if stale) and
// returns its Statistics/TopEntities for CLI display alongside store
// stats.
func (s *Service) GraphSummary(ctx context.Context, cache *graph.Cache, topN int) (GraphSummary, error) {
	g := cache.Get()
	if g == nil {
		entities, err := s.Store.Entities(ctx)
		if err != nil {
			return GraphSummary{}, fmt.Errorf("load entities for graph summary: %w", err)
		}
		edges, err := s.Store.Edges(ctx)
		if err != nil {
			return GraphSummary{}, fmt.Errorf("load edges for graph summary: %w", err)
		}
		g, err = cache.Rebuild(entities, edges)
		if err != nil {
			return GraphSummary{}, fmt.Errorf("rebuild graph: %w", err)
		}
	}
	return GraphSummary{Stats: g.Statistics(), TopEntities: g.TopEntities(topN)}, nil
}

// ClusterSummaries groups a session's memories into topical clusters for
// CLI display (spec §4.10: "derived data for CLI summaries only"). An
// empty sessionID clusters every stored memory together.
func (s *Service) ClusterSummaries(ctx context.Context, sessionID string, threshold float64) ([]cluster.Cluster, error) {
	mems, err := s.Store.Scan(ctx, store.Filter{SessionID: sessionID})
	if err != nil {
		return nil, fmt.Errorf("scan memories: %w", err)
	}
	return cluster.ClusterMemories(mems, threshold), nil
}

// ExportToFile writes the filtered export as indented JSON to path.
func (s *Service) ExportToFile(ctx context.Context, filter store.Filter, path string) (int, error) {
	memories, err := s.Export(ctx, filter)
	if err != nil {
		return 0, err
	}
	b, err := json.MarshalIndent(memories, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("marshal export: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return 0, fmt.Errorf("write export: %w", err)
	}
	return len(memories), nil
}
