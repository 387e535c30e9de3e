// Package embedding provides the deterministic local embedding model and
// the contextual-prefix builder (spec §4.4, §4.5, C5).
//
// The teacher's network-backed providers (Ollama, OpenAI-compatible) are
// dropped here: spec.md's Non-goals explicitly rule out "any
// network-dependent embedding ... service". See DESIGN.md.
package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"time"
)

// Vector is a float32 embedding vector.
type Vector = []float32

// Dims is the deploy-time embedding dimensionality (spec §4.4, §9 Open
// Question: "D is a deploy-time constant").
const Dims = 256

// Embedder generates embedding vectors from text.
type Embedder interface {
	Embed(ctx context.Context, text string) (Vector, error)
	Dims() int
}

// CosineSimilarity computes cosine similarity between two vectors.
func CosineSimilarity(a, b Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// LocalEmbedder is a deterministic, offline feature-hashing embedder: each
// token shingle hashes into a signed bucket of a fixed-D vector, which is
// then L2-normalized. No network access, no model weights to load — this
// is the standard "hashing trick" representation, reproducible across
// processes and machines.
type LocalEmbedder struct {
	dims int
}

// NewLocalEmbedder constructs the local embedder at the given dimensionality.
func NewLocalEmbedder(dims int) *LocalEmbedder {
	if dims <= 0 {
		dims = Dims
	}
	return &LocalEmbedder{dims: dims}
}

func (e *LocalEmbedder) Dims() int { return e.dims }

// Embed is deterministic and offline: the same text always maps to the same
// vector (testable property 1).
func (e *LocalEmbedder) Embed(_ context.Context, text string) (Vector, error) {
	v := make([]float64, e.dims)
	tokens := tokenize(text)
	for _, tok := range shingles(tokens, 2) {
		h := fnv.New64a()
		h.Write([]byte(tok))
		sum := h.Sum64()
		idx := int(sum % uint64(e.dims))
		sign := 1.0
		if (sum>>63)&1 == 1 {
			sign = -1.0
		}
		v[idx] += sign
	}

	var norm float64
	for _, x := range v {
		norm += x * x
	}
	norm = math.Sqrt(norm)

	out := make(Vector, e.dims)
	if norm == 0 {
		return out, nil
	}
	for i, x := range v {
		out[i] = float32(x / norm)
	}
	return out, nil
}

func tokenize(text string) []string {
	text = strings.ToLower(text)
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range text {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

// shingles builds unigrams plus n-grams of the given size, so the hashed
// space captures some local order (e.g. "auth.py" differs from "py auth").
func shingles(tokens []string, n int) []string {
	out := append([]string{}, tokens...)
	for i := 0; i+n <= len(tokens); i++ {
		out = append(out, strings.Join(tokens[i:i+n], "_"))
	}
	return out
}

// BuildContextualPrefix implements the critical contextual-embedding design
// decision of spec §4.5:
//
//	Session {session_id_short} at {YYYY-MM-DD HH:MM}. Files: {f1, f2, …}. {enhanced_summary}
func BuildContextualPrefix(sessionID string, ts time.Time, files []string, intent, action, outcome string) string {
	short := sessionID
	if len(short) > 8 {
		short = short[:8]
	}
	sorted := append([]string{}, files...)
	sort.Strings(sorted)

	summary := intent + " -> " + action
	if outcome != "" {
		summary += " -> " + outcome
	}

	return fmt.Sprintf("Session %s at %s. Files: %s. %s",
		short, ts.UTC().Format("2006-01-02 15:04"), strings.Join(sorted, ", "), summary)
}
