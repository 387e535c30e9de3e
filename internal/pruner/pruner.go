// Package pruner implements the three ordered prune policies of spec §4.9
// (C9): age+importance, redundancy, capacity. Ported from
// original_source/hooks/memory_pruner.py.
package pruner

import (
	"context"
	"sort"

	"github.com/avrilcode/compactmem/internal/embedding"
	"github.com/avrilcode/compactmem/internal/model"
	"github.com/avrilcode/compactmem/internal/scorer"
	"github.com/avrilcode/compactmem/internal/store"
)

// Policy holds the prune thresholds of spec §4.9.
type Policy struct {
	OldThresholdDays    int
	LowImportanceThresh float64
	RedundancyThreshold float64
	MaxPerSession       int
}

// DefaultPolicy returns the spec's default thresholds.
func DefaultPolicy() Policy {
	return Policy{
		OldThresholdDays:    90,
		LowImportanceThresh: 3.0,
		RedundancyThreshold: 0.95,
		MaxPerSession:       500,
	}
}

// Result reports what a sweep did (or would do, in dry-run mode).
type Result struct {
	AgePruned        []string
	RedundancyPruned []string
	CapacityPruned   []string
	OrphanEntitiesGC int
}

// Total returns the combined count of memories removed.
func (r Result) Total() int {
	return len(r.AgePruned) + len(r.RedundancyPruned) + len(r.CapacityPruned)
}

// Sweep runs all three policies in order. In dry-run mode nothing is
// deleted; the Result still reports what would have been removed
// (operability requirement, spec §4.9).
func Sweep(ctx context.Context, s store.Store, p Policy, dryRun bool) (Result, error) {
	var res Result

	all, err := s.Scan(ctx, store.Filter{})
	if err != nil {
		return res, err
	}

	toDelete := map[string]bool{}

	// 1. Age & importance.
	for _, m := range all {
		age := scorer.AgeDays(m.Timestamp)
		if age > float64(p.OldThresholdDays) && m.Importance < p.LowImportanceThresh {
			res.AgePruned = append(res.AgePruned, m.ID)
			toDelete[m.ID] = true
		}
	}

	// 2. Redundancy: pairwise cosine similarity above threshold; keep the
	// higher-importance one, ties broken by recency (keep newer).
	survivors := filterOut(all, toDelete)
	for i := 0; i < len(survivors); i++ {
		if toDelete[survivors[i].ID] {
			continue
		}
		for j := i + 1; j < len(survivors); j++ {
			if toDelete[survivors[j].ID] {
				continue
			}
			sim := embedding.CosineSimilarity(survivors[i].Embedding, survivors[j].Embedding)
			if sim <= p.RedundancyThreshold {
				continue
			}
			loser := pickRedundant(survivors[i], survivors[j])
			res.RedundancyPruned = append(res.RedundancyPruned, loser.ID)
			toDelete[loser.ID] = true
		}
	}

	// 3. Capacity: per session, keep only the top-importance max_per_session.
	bySession := map[string][]model.Memory{}
	for _, m := range filterOut(all, toDelete) {
		bySession[m.SessionID] = append(bySession[m.SessionID], m)
	}
	for _, mems := range bySession {
		if len(mems) <= p.MaxPerSession {
			continue
		}
		sort.Slice(mems, func(a, b int) bool { return mems[a].Importance > mems[b].Importance })
		for _, m := range mems[p.MaxPerSession:] {
			res.CapacityPruned = append(res.CapacityPruned, m.ID)
			toDelete[m.ID] = true
		}
	}

	if dryRun || len(toDelete) == 0 {
		return res, nil
	}

	ids := make([]string, 0, len(toDelete))
	for id := range toDelete {
		ids = append(ids, id)
	}
	if err := s.Delete(ctx, ids); err != nil {
		return res, err
	}

	n, err := s.DeleteOrphanEntities(ctx)
	if err != nil {
		return res, err
	}
	res.OrphanEntitiesGC = n

	return res, nil
}

func filterOut(mems []model.Memory, excluded map[string]bool) []model.Memory {
	var out []model.Memory
	for _, m := range mems {
		if !excluded[m.ID] {
			out = append(out, m)
		}
	}
	return out
}

// pickRedundant returns the memory that should be deleted: lower
// importance, or on a tie the older one (keep newer).
func pickRedundant(a, b model.Memory) model.Memory {
	if a.Importance != b.Importance {
		if a.Importance < b.Importance {
			return a
		}
		return b
	}
	if a.Timestamp.Before(b.Timestamp) {
		return a
	}
	return b
}
