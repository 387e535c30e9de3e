// Package cluster implements agglomerative average-linkage clustering over
// memory embeddings for topical summaries (spec §4.10, C10). Derived,
// display-only data — never used in ranking. Ported algorithmically from
// original_source/hooks/memory_clustering.py's sklearn
// AgglomerativeClustering(metric="cosine", linkage="average") call.
package cluster

import (
	"regexp"
	"sort"
	"strings"

	"github.com/avrilcode/compactmem/internal/embedding"
	"github.com/avrilcode/compactmem/internal/model"
)

// DefaultDistanceThreshold is the default stopping distance (spec §4.10).
const DefaultDistanceThreshold = 0.4

// Cluster is a group of memories with a derived keyword summary
// (supplemented feature 3).
type Cluster struct {
	MemoryIDs []string
	Summary   string
}

// ClusterMemories groups a session's memories by average-linkage agglomerative
// clustering over cosine distance, stopping once the minimum inter-cluster
// distance exceeds threshold.
func ClusterMemories(memories []model.Memory, threshold float64) []Cluster {
	if threshold <= 0 {
		threshold = DefaultDistanceThreshold
	}
	n := len(memories)
	if n == 0 {
		return nil
	}
	if n == 1 {
		return []Cluster{{MemoryIDs: []string{memories[0].ID}, Summary: summarize(memories)}}
	}

	groups := make([][]int, n)
	for i := range groups {
		groups[i] = []int{i}
	}

	dist := func(a, b []int) float64 {
		var sum float64
		var count int
		for _, i := range a {
			for _, j := range b {
				sum += 1 - embedding.CosineSimilarity(memories[i].Embedding, memories[j].Embedding)
				count++
			}
		}
		if count == 0 {
			return 1
		}
		return sum / float64(count)
	}

	for len(groups) > 1 {
		bestI, bestJ := -1, -1
		bestDist := 1e9
		for i := 0; i < len(groups); i++ {
			for j := i + 1; j < len(groups); j++ {
				d := dist(groups[i], groups[j])
				if d < bestDist {
					bestDist = d
					bestI, bestJ = i, j
				}
			}
		}
		if bestDist > threshold {
			break
		}
		merged := append(append([]int{}, groups[bestI]...), groups[bestJ]...)
		groups = append(groups[:bestI], groups[bestI+1:]...)
		groups = removeAt(groups, adjustIndex(bestJ, bestI))
		groups = append(groups, merged)
	}

	out := make([]Cluster, 0, len(groups))
	for _, g := range groups {
		sort.Ints(g)
		var ids []string
		var mems []model.Memory
		for _, idx := range g {
			ids = append(ids, memories[idx].ID)
			mems = append(mems, memories[idx])
		}
		out = append(out, Cluster{MemoryIDs: ids, Summary: summarize(mems)})
	}
	return out
}

func adjustIndex(j, removedI int) int {
	if j > removedI {
		return j - 1
	}
	return j
}

func removeAt(groups [][]int, idx int) [][]int {
	return append(groups[:idx], groups[idx+1:]...)
}

var wordRe = regexp.MustCompile(`[a-zA-Z]{4,}`)

var stopwords = map[string]bool{
	"with": true, "that": true, "this": true, "from": true, "have": true,
	"were": true, "they": true, "then": true, "into": true, "will": true,
}

// summarize builds a keyword-frequency summary string, matching
// memory_clustering.py's _generate_cluster_summaries (supplemented feature 3).
func summarize(mems []model.Memory) string {
	freq := map[string]int{}
	for _, m := range mems {
		for _, w := range wordRe.FindAllString(strings.ToLower(m.Intent+" "+m.Action), -1) {
			if stopwords[w] {
				continue
			}
			freq[w]++
		}
	}
	type kv struct {
		word  string
		count int
	}
	var kvs []kv
	for w, c := range freq {
		kvs = append(kvs, kv{w, c})
	}
	sort.Slice(kvs, func(i, j int) bool {
		if kvs[i].count != kvs[j].count {
			return kvs[i].count > kvs[j].count
		}
		return kvs[i].word < kvs[j].word
	})

	top := kvs
	if len(top) > 5 {
		top = top[:5]
	}
	words := make([]string, len(top))
	for i, k := range top {
		words[i] = k.word
	}
	return strings.Join(words, ", ")
}
