// Package taskctx implements the task-context scorer (spec §4.7, C8):
// task_importance = base_importance * (1 + task_boost), where task_boost
// sums graph-hop relevance times mention frequency across a memory's
// entities, clipped to [0, 2]. Ported from
// original_source/hooks/task_context_scorer.py.
package taskctx

import (
	"github.com/avrilcode/compactmem/internal/graph"
	"github.com/avrilcode/compactmem/internal/model"
)

const (
	freqCap      = 3
	boostCapLow  = 0.0
	boostCapHigh = 2.0
)

// Score computes task_importance for one memory given the query's entity
// set and the memory's own entity mention counts. Never mutates the
// memory's stored importance.
func Score(g *graph.Graph, baseImportance float64, queryEntities []model.Entity, memoryEntityFreq map[string]int) (taskImportance, taskBoost float64) {
	if g == nil || len(queryEntities) == 0 || len(memoryEntityFreq) == 0 {
		return baseImportance, 0
	}

	queryKeys := make([]string, 0, len(queryEntities))
	for _, e := range queryEntities {
		queryKeys = append(queryKeys, e.Key())
	}

	for entityID, freq := range memoryEntityFreq {
		node := g.Node(entityID)
		if node == nil {
			continue
		}
		rel := relevance(g, node.Entity.Key(), queryKeys)
		if rel == 0 {
			continue
		}
		if freq > freqCap {
			freq = freqCap
		}
		taskBoost += rel * float64(freq)
	}

	if taskBoost > boostCapHigh {
		taskBoost = boostCapHigh
	}
	if taskBoost < boostCapLow {
		taskBoost = boostCapLow
	}

	return baseImportance * (1 + taskBoost), taskBoost
}

// relevance(e, Q) = max over q in Q of the graph-hop attenuation: exact
// match 1.0, 1-hop 0.5, 2-hop 0.25, else 0.
func relevance(g *graph.Graph, entityKey string, queryKeys []string) float64 {
	entityNode := g.EntityByCanonical(entityKey)
	if entityNode == nil {
		return 0
	}
	var best float64
	for _, qk := range queryKeys {
		if qk == entityKey {
			return 1.0
		}
		qNode := g.EntityByCanonical(qk)
		if qNode == nil {
			continue
		}
		hops := g.HopsBetween(entityNode.Entity.ID, qNode.Entity.ID)
		if a := graph.Attenuation(hops); a > best {
			best = a
		}
	}
	return best
}
