// Package graph implements the entity co-mention knowledge graph: build,
// centrality (PageRank/betweenness/degree), k-hop traversal, and a
// TTL-cached snapshot (spec §4.6, §9, C7).
package graph

import (
	"sort"

	"github.com/avrilcode/compactmem/internal/model"
)

// Node is an entity plus its derived centrality scores and access count
// (supplemented feature 2).
type Node struct {
	Entity      model.Entity
	PageRank    float64
	Betweenness float64
	Degree      int
	AccessCount int
}

// Graph is an undirected weighted entity co-mention graph. Nodes are
// entities; edges are weighted by co-mention count across memories.
type Graph struct {
	nodes map[string]*Node           // entityID -> node
	adj   map[string]map[string]int  // entityID -> neighborID -> weight
}

// Stats mirrors knowledge_graph.py's get_statistics (supplemented feature 4).
type Stats struct {
	NodeCount     int             `json:"node_count"`
	EdgeCount     int             `json:"edge_count"`
	ByType        map[string]int  `json:"by_type"`
	AvgDegree     float64         `json:"avg_degree"`
	Density       float64         `json:"density"`
}

// Build constructs the graph from a scan of memories and their
// memory-entity edges: one co-mention edge per unordered entity pair that
// appears together in the same memory, multiplicity adding to weight.
// The graph is derived state — reconstructible from memories alone (spec §3).
func Build(entities []model.Entity, edges []model.MemoryEntityEdge) *Graph {
	g := &Graph{
		nodes: make(map[string]*Node),
		adj:   make(map[string]map[string]int),
	}
	for _, e := range entities {
		g.nodes[e.ID] = &Node{Entity: e}
		g.adj[e.ID] = make(map[string]int)
	}

	byMemory := make(map[string][]string)
	for _, ed := range edges {
		byMemory[ed.MemoryID] = append(byMemory[ed.MemoryID], ed.EntityID)
	}

	for _, entIDs := range byMemory {
		for i := 0; i < len(entIDs); i++ {
			if n, ok := g.nodes[entIDs[i]]; ok {
				n.AccessCount++
			}
			for j := i + 1; j < len(entIDs); j++ {
				a, b := entIDs[i], entIDs[j]
				if a == b {
					continue
				}
				if _, ok := g.adj[a]; !ok {
					continue
				}
				if _, ok := g.adj[b]; !ok {
					continue
				}
				g.adj[a][b]++
				g.adj[b][a]++
			}
		}
	}

	g.computeCentrality()
	return g
}

func (g *Graph) computeCentrality() {
	for id, n := range g.nodes {
		n.Degree = len(g.adj[id])
	}
	pagerank(g, 0.85, 1e-6, 100)
	betweenness(g)
}

// pagerank implements the standard power-iteration PageRank with damping,
// convergence tolerance, and max iterations from spec §4.6. Disconnected
// components are handled naturally via the teleportation term.
func pagerank(g *Graph, damping, tol float64, maxIter int) {
	n := len(g.nodes)
	if n == 0 {
		return
	}
	ids := make([]string, 0, n)
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids) // deterministic iteration order

	rank := make(map[string]float64, n)
	for _, id := range ids {
		rank[id] = 1.0 / float64(n)
	}

	weightSum := func(id string) float64 {
		var s float64
		for _, w := range g.adj[id] {
			s += float64(w)
		}
		return s
	}
	outWeight := make(map[string]float64, n)
	for _, id := range ids {
		outWeight[id] = weightSum(id)
	}

	for iter := 0; iter < maxIter; iter++ {
		next := make(map[string]float64, n)
		base := (1 - damping) / float64(n)
		for _, id := range ids {
			next[id] = base
		}
		var danglingMass float64
		for _, id := range ids {
			if outWeight[id] == 0 {
				danglingMass += rank[id]
				continue
			}
			for nb, w := range g.adj[id] {
				next[nb] += damping * rank[id] * float64(w) / outWeight[id]
			}
		}
		if danglingMass > 0 {
			share := damping * danglingMass / float64(n)
			for _, id := range ids {
				next[id] += share
			}
		}

		var delta float64
		for _, id := range ids {
			delta += abs(next[id] - rank[id])
		}
		rank = next
		if delta < tol {
			break
		}
	}

	for id, n := range g.nodes {
		n.PageRank = rank[id]
	}
}

// betweenness computes unweighted-shortest-path betweenness centrality via
// Brandes' algorithm, capped implicitly by the small graph sizes this
// system operates over (single-host entity graphs, not web-scale).
func betweenness(g *Graph) {
	centrality := make(map[string]float64, len(g.nodes))
	for id := range g.nodes {
		centrality[id] = 0
	}

	nodeIDs := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		nodeIDs = append(nodeIDs, id)
	}
	sort.Strings(nodeIDs)

	for _, s := range nodeIDs {
		stack := []string{}
		pred := make(map[string][]string)
		sigma := make(map[string]float64)
		dist := make(map[string]int)
		for _, id := range nodeIDs {
			sigma[id] = 0
			dist[id] = -1
		}
		sigma[s] = 1
		dist[s] = 0
		queue := []string{s}

		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			stack = append(stack, v)
			neighbors := make([]string, 0, len(g.adj[v]))
			for nb := range g.adj[v] {
				neighbors = append(neighbors, nb)
			}
			sort.Strings(neighbors)
			for _, w := range neighbors {
				if dist[w] < 0 {
					dist[w] = dist[v] + 1
					queue = append(queue, w)
				}
				if dist[w] == dist[v]+1 {
					sigma[w] += sigma[v]
					pred[w] = append(pred[w], v)
				}
			}
		}

		delta := make(map[string]float64)
		for i := len(stack) - 1; i >= 0; i-- {
			w := stack[i]
			for _, v := range pred[w] {
				delta[v] += (sigma[v] / sigma[w]) * (1 + delta[w])
			}
			if w != s {
				centrality[w] += delta[w]
			}
		}
	}

	// Undirected graph: each pair counted twice.
	for id, n := range g.nodes {
		n.Betweenness = centrality[id] / 2
	}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// Attenuation returns the k-hop attenuation factor for spec §4.6/§4.7:
// 1.0 exact match, 0.5 one hop, 0.25 two hops, 0 beyond.
func Attenuation(hops int) float64 {
	switch hops {
	case 0:
		return 1.0
	case 1:
		return 0.5
	case 2:
		return 0.25
	default:
		return 0
	}
}

// Neighbors returns every entity within maxHops (<=2) of the given entity,
// along with its hop distance.
func (g *Graph) Neighbors(entityID string, maxHops int) map[string]int {
	if maxHops > 2 {
		maxHops = 2
	}
	dist := map[string]int{entityID: 0}
	queue := []string{entityID}
	for len(queue) > 0 && maxHops > 0 {
		var next []string
		for _, cur := range queue {
			for nb := range g.adj[cur] {
				if _, seen := dist[nb]; seen {
					continue
				}
				dist[nb] = dist[cur] + 1
				if dist[nb] <= maxHops {
					next = append(next, nb)
				}
			}
		}
		queue = next
		maxHops--
		if len(queue) == 0 {
			break
		}
	}
	return dist
}

// HopsBetween returns the shortest hop distance between a and b, capped at
// 3 (meaning "beyond 2-hop, not used").
func (g *Graph) HopsBetween(a, b string) int {
	if a == b {
		return 0
	}
	neighbors := g.Neighbors(a, 2)
	if h, ok := neighbors[b]; ok {
		return h
	}
	return 3
}

// Node returns the node for an entity ID, or nil if absent.
func (g *Graph) Node(entityID string) *Node {
	return g.nodes[entityID]
}

// EntityByCanonical looks up a node by (type, canonical_form) key.
func (g *Graph) EntityByCanonical(key string) *Node {
	for _, n := range g.nodes {
		if n.Entity.Key() == key {
			return n
		}
	}
	return nil
}

// TopEntities returns the top n entities by PageRank, tie-broken by access
// count (supplemented feature 2).
func (g *Graph) TopEntities(n int) []Node {
	all := make([]Node, 0, len(g.nodes))
	for _, node := range g.nodes {
		all = append(all, *node)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].PageRank != all[j].PageRank {
			return all[i].PageRank > all[j].PageRank
		}
		return all[i].AccessCount > all[j].AccessCount
	})
	if n > 0 && n < len(all) {
		all = all[:n]
	}
	return all
}

// Statistics mirrors get_statistics (supplemented feature 4).
func (g *Graph) Statistics() Stats {
	byType := map[string]int{}
	for _, n := range g.nodes {
		byType[string(n.Entity.Type)]++
	}
	edgeCount := 0
	for _, nbrs := range g.adj {
		edgeCount += len(nbrs)
	}
	edgeCount /= 2

	nodeCount := len(g.nodes)
	var avgDegree, density float64
	if nodeCount > 0 {
		var total int
		for _, n := range g.nodes {
			total += n.Degree
		}
		avgDegree = float64(total) / float64(nodeCount)
	}
	if nodeCount > 1 {
		maxEdges := float64(nodeCount*(nodeCount-1)) / 2
		density = float64(edgeCount) / maxEdges
	}

	return Stats{
		NodeCount: nodeCount,
		EdgeCount: edgeCount,
		ByType:    byType,
		AvgDegree: avgDegree,
		Density:   density,
	}
}
