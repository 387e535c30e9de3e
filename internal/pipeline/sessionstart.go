package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/avrilcode/compactmem/internal/embedding"
	"github.com/avrilcode/compactmem/internal/entity"
	"github.com/avrilcode/compactmem/internal/graph"
	"github.com/avrilcode/compactmem/internal/hostlog"
	"github.com/avrilcode/compactmem/internal/model"
	"github.com/avrilcode/compactmem/internal/store"
	"github.com/avrilcode/compactmem/internal/taskctx"
)

// SessionStart wires the whole retrieval chain behind one Run call.
type SessionStart struct {
	Store         store.Store
	Embedder      embedding.Embedder
	Graph         *graph.Cache
	Log           *hostlog.Logger
	MinSimilarity float64
	KMax          int
	KRecent       int
	Alpha         float64
	Beta          float64
	MinImportance float64
}

// Recommendation is one ranked memory surfaced for re-injection.
type Recommendation struct {
	Memory         model.Memory
	Similarity     float64
	TaskImportance float64
	TaskBoost      float64
	FinalScore     float64
	Recent         bool
}

// SessionStartResult is the formatted context plus how many memories fed it.
type SessionStartResult struct {
	Context  string
	Injected int
}

// Run finds, scores, and formats the memories most relevant to taskQuery.
// A query with no surviving candidates is a valid, non-error outcome
// (spec §4.7: "zero survivors past the quality gate is not an error").
func (s *SessionStart) Run(ctx context.Context, sessionID, taskQuery string) (SessionStartResult, error) {
	taskQuery = strings.TrimSpace(taskQuery)
	if taskQuery == "" {
		return SessionStartResult{}, nil
	}

	queryEntities := entity.Extract(taskQuery).Entities

	vec, err := s.Embedder.Embed(ctx, taskQuery) // unprefixed, per spec §4.5
	if err != nil {
		return SessionStartResult{}, fmt.Errorf("embed query: %w", err)
	}

	kMax := s.kMax()
	hits, err := s.Store.Query(ctx, vec, kMax*2, store.Filter{MinImportance: s.MinImportance})
	if err != nil {
		return SessionStartResult{}, fmt.Errorf("query store: %w", err)
	}

	minSim := s.MinSimilarity
	if minSim <= 0 {
		minSim = 0.35
	}

	var survivors []store.QueryResult
	for _, h := range hits {
		if h.Similarity() >= minSim {
			survivors = append(survivors, h)
		}
	}

	// Even when the quality gate fails every candidate, step 7 (the
	// k_recent prepend) still always runs below, so only the query-based
	// ranking (steps 4-6) is skipped here.
	var recs []Recommendation
	if len(survivors) > 0 {
		entityFreq, err := s.memoryEntityFreq(ctx)
		if err != nil {
			s.warn("load entity edges: %v", err)
		}
		g := s.graphSnapshot()

		recs = make([]Recommendation, 0, len(survivors))
		for _, h := range survivors {
			taskImportance, boost := taskctx.Score(g, h.Memory.Importance, queryEntities, entityFreq[h.Memory.ID])
			recs = append(recs, Recommendation{
				Memory:         h.Memory,
				Similarity:     h.Similarity(),
				TaskImportance: taskImportance,
				TaskBoost:      boost,
			})
		}

		maxImportance := 0.0
		for _, r := range recs {
			if r.TaskImportance > maxImportance {
				maxImportance = r.TaskImportance
			}
		}
		alpha, beta := s.Alpha, s.Beta
		if alpha == 0 && beta == 0 {
			alpha, beta = 0.6, 0.4
		}
		for i := range recs {
			normalized := 0.0
			if maxImportance > 0 {
				normalized = recs[i].TaskImportance / maxImportance
			}
			recs[i].FinalScore = alpha*recs[i].Similarity + beta*normalized
		}

		sort.Slice(recs, func(i, j int) bool { return recs[i].FinalScore > recs[j].FinalScore })
		if len(recs) > kMax {
			recs = recs[:kMax]
		}
	}

	recs = s.prependRecent(ctx, sessionID, recs)

	return SessionStartResult{
		Context:  formatContext(recs),
		Injected: len(recs),
	}, nil
}

func (s *SessionStart) kMax() int {
	if s.KMax <= 0 {
		return 20
	}
	return s.KMax
}

func (s *SessionStart) kRecent() int {
	if s.KRecent <= 0 {
		return 4
	}
	return s.KRecent
}

func (s *SessionStart) warn(format string, args ...interface{}) {
	if s.Log != nil {
		s.Log.Warn(format, args...)
	}
}

func (s *SessionStart) graphSnapshot() *graph.Graph {
	if s.Graph == nil {
		return nil
	}
	if g := s.Graph.Get(); g != nil {
		return g
	}
	entities, err1 := s.Store.Entities(context.Background())
	edges, err2 := s.Store.Edges(context.Background())
	if err1 != nil || err2 != nil {
		return nil
	}
	g, err := s.Graph.Rebuild(entities, edges)
	if err != nil {
		return nil
	}
	return g
}

func (s *SessionStart) memoryEntityFreq(ctx context.Context) (map[string]map[string]int, error) {
	edges, err := s.Store.Edges(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]map[string]int)
	for _, e := range edges {
		if out[e.MemoryID] == nil {
			out[e.MemoryID] = make(map[string]int)
		}
		out[e.MemoryID][e.EntityID] += e.Weight
	}
	return out, nil
}

// prependRecent adds the session's k_recent most recent memories not
// already present, marked Recent, at the front of the list (spec §4.8
// step "always include the N most recent memories regardless of score").
func (s *SessionStart) prependRecent(ctx context.Context, sessionID string, recs []Recommendation) []Recommendation {
	if sessionID == "" {
		return recs
	}
	recent, err := s.Store.Scan(ctx, store.Filter{SessionID: sessionID})
	if err != nil {
		s.warn("scan recent memories: %v", err)
		return recs
	}

	present := map[string]bool{}
	for _, r := range recs {
		present[r.Memory.ID] = true
	}

	k := s.kRecent()
	var prepend []Recommendation
	for _, m := range recent {
		if len(prepend) >= k {
			break
		}
		if present[m.ID] {
			continue
		}
		prepend = append(prepend, Recommendation{Memory: m, Recent: true})
		present[m.ID] = true
	}
	return append(prepend, recs...)
}

// formatContext renders the ranked set as the one-line-per-memory
// additional_context string, each prefixed with its importance glyph
// (supplemented feature 1) and, for task-boosted hits, the boost applied.
func formatContext(recs []Recommendation) string {
	if len(recs) == 0 {
		return ""
	}
	var lines []string
	for _, r := range recs {
		line := r.Memory.Category().Glyph() + " " + r.Memory.Summary()
		switch {
		case r.Recent:
			line += " [recent]"
		case r.TaskBoost > 0:
			line += fmt.Sprintf(" [+%.0f%% task relevance]", r.TaskBoost*100)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
