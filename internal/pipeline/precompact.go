// Package pipeline orchestrates the two hook phases over the leaf
// packages: PreCompact ingestion (spec §4.1-§4.11, §6.2) and SessionStart
// retrieval (spec §4.7-§4.8, §6.3). Ported from
// original_source/hooks/precompact_memory_extractor_v2.py and
// session_start_memory_injector.py.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"time"

	"github.com/avrilcode/compactmem/internal/artifact"
	"github.com/avrilcode/compactmem/internal/chunker"
	"github.com/avrilcode/compactmem/internal/cluster"
	"github.com/avrilcode/compactmem/internal/embedding"
	"github.com/avrilcode/compactmem/internal/entity"
	"github.com/avrilcode/compactmem/internal/graph"
	"github.com/avrilcode/compactmem/internal/hostlog"
	"github.com/avrilcode/compactmem/internal/model"
	"github.com/avrilcode/compactmem/internal/pruner"
	"github.com/avrilcode/compactmem/internal/scorer"
	"github.com/avrilcode/compactmem/internal/store"
	"github.com/avrilcode/compactmem/internal/transcript"
)

// PreCompact wires the whole ingestion chain behind one Run call.
type PreCompact struct {
	Store                 store.Store
	Embedder              embedding.Embedder
	Graph                 *graph.Cache
	Log                   *hostlog.Logger
	Scorer                scorer.Weights
	ChunkOpts             chunker.Options
	PrunePolicy           pruner.Policy
	MaxTranscriptMessages int
	// ClusterThreshold is the distance cutoff for the optional post-sweep
	// clustering step; 0 falls back to cluster.DefaultDistanceThreshold.
	ClusterThreshold float64
}

// PreCompactResult reports what a single ingestion run did.
type PreCompactResult struct {
	MemoriesStored int
	Pruned         int
	Clusters       int
}

var newFileRe = regexp.MustCompile(`(?i)\b(wrote|created|creating|new file)\b`)

// Run loads, chunks, scores, embeds, and persists a transcript, then
// opportunistically rebuilds the knowledge graph cache and sweeps the
// pruner. Per spec §7: an unreadable transcript aborts before any store
// write (malformed lines are skipped by transcript.Load); embedder failure
// aborts the whole run (retried once first); a store failure aborts. Run
// does not recover panics itself; the CLI entrypoints wrap it with
// hook.Guard.
func (p *PreCompact) Run(ctx context.Context, sessionID, transcriptPath string) (PreCompactResult, error) {
	msgs, err := transcript.Load(transcriptPath)
	if err != nil {
		return PreCompactResult{}, fmt.Errorf("load transcript: %w", err)
	}
	msgs = windowMessages(msgs, p.maxMessages())

	chunks := chunker.Chunk(msgs, p.ChunkOpts)
	if len(chunks) == 0 {
		return PreCompactResult{}, nil
	}

	existingIDs, err := existingMemoryIDs(ctx, p.Store, sessionID)
	if err != nil {
		p.warn("load existing memory ids: %v", err)
	}

	now := time.Now().UTC()
	memories := make([]model.Memory, 0, len(chunks))
	var edges []model.MemoryEntityEdge
	entitySet := map[string]model.Entity{}

	for idx, c := range chunks {
		id := memoryID(sessionID, idx, c.Intent)
		if existingIDs[id] {
			// Already ingested this chunk in a prior PreCompact run for
			// this session (content-addressed ID collides); skip it as a
			// no-op rather than aborting the whole batch on a duplicate.
			continue
		}

		combined := c.IntentFull + "\n" + c.ActionFull + "\n" + c.OutcomeFull
		arts, flags := artifact.Extract(combined)
		extracted := entity.Extract(combined)

		in := scorer.ChunkInput{
			Intent:    c.Intent,
			Action:    c.Action,
			Outcome:   c.Outcome,
			Artifacts: arts,
			IsNewFile: len(arts.Files) > 0 && newFileRe.MatchString(c.ActionFull),
			AgeDays:   0,
		}
		importance := scorer.Score(in, p.Scorer)

		prefix := embedding.BuildContextualPrefix(sessionID, now, arts.Files, c.IntentFull, c.ActionFull, c.OutcomeFull)
		vec, err := embedWithRetry(ctx, p.Embedder, prefix)
		if err != nil {
			p.warn("embed chunk %d: %v", idx, err)
			return PreCompactResult{}, fmt.Errorf("embed chunk %d: %w", idx, err)
		}

		mem := model.Memory{
			ID:           id,
			SessionID:    sessionID,
			Timestamp:    now,
			ChunkIndex:   idx,
			Intent:       c.Intent,
			Action:       c.Action,
			Outcome:      c.Outcome,
			Importance:   importance,
			Artifacts:    arts,
			Flags:        flags,
			Embedding:    vec,
			EmbeddedText: prefix,
		}
		memories = append(memories, mem)

		for _, e := range extracted.Entities {
			key := e.Key()
			existing, ok := entitySet[key]
			if !ok {
				e.ID = entityID(key)
				entitySet[key] = e
				existing = e
			}
			edges = append(edges, model.MemoryEntityEdge{MemoryID: id, EntityID: existing.ID, Weight: 1})
		}
	}

	entities := make([]model.Entity, 0, len(entitySet))
	for _, e := range entitySet {
		entities = append(entities, e)
	}

	if err := p.Store.Put(ctx, memories, entities, edges); err != nil {
		return PreCompactResult{}, fmt.Errorf("store put: %w", err)
	}

	res := PreCompactResult{MemoriesStored: len(memories)}

	if p.Graph != nil {
		allEntities, err1 := p.Store.Entities(ctx)
		allEdges, err2 := p.Store.Edges(ctx)
		if err1 != nil {
			p.warn("load entities for graph rebuild: %v", err1)
		} else if err2 != nil {
			p.warn("load edges for graph rebuild: %v", err2)
		} else if _, err := p.Graph.Rebuild(allEntities, allEdges); err != nil {
			p.warn("graph rebuild: %v", err)
		}
	}

	swept, err := pruner.Sweep(ctx, p.Store, p.PrunePolicy, false)
	if err != nil {
		p.warn("prune sweep: %v", err)
	} else {
		res.Pruned = swept.Total()
		if swept.Total() > 0 && p.Graph != nil {
			p.Graph.Invalidate()
		}
	}

	// Clusterer (optional, spec's data-flow step after Pruner.sweep):
	// derived data for CLI summaries only, never a retrieval signal, so a
	// failure here is logged and otherwise ignored.
	if sessionMems, err := p.Store.Scan(ctx, store.Filter{SessionID: sessionID}); err != nil {
		p.warn("scan session for clustering: %v", err)
	} else {
		res.Clusters = len(cluster.ClusterMemories(sessionMems, p.ClusterThreshold))
	}

	return res, nil
}

func (p *PreCompact) maxMessages() int {
	if p.MaxTranscriptMessages <= 0 {
		return 1000
	}
	return p.MaxTranscriptMessages
}

func (p *PreCompact) warn(format string, args ...interface{}) {
	if p.Log != nil {
		p.Log.Warn(format, args...)
	}
}

// windowMessages keeps the most recent max messages, matching spec §4.11's
// overflow policy for long transcripts.
func windowMessages(msgs []transcript.Message, max int) []transcript.Message {
	if max <= 0 || len(msgs) <= max {
		return msgs
	}
	return msgs[len(msgs)-max:]
}

// embedWithRetry retries exactly once on embedder failure before giving up
// (spec §7: "embedder errors retry once then abort").
func embedWithRetry(ctx context.Context, e embedding.Embedder, text string) (embedding.Vector, error) {
	vec, err := e.Embed(ctx, text)
	if err == nil {
		return vec, nil
	}
	return e.Embed(ctx, text)
}

// existingMemoryIDs returns the set of memory IDs already stored for
// sessionID, so Run can skip chunks it has already ingested in an earlier
// PreCompact invocation instead of letting Store.Put abort the whole batch
// on the first duplicate (spec §3: re-ingesting an overlapping transcript
// prefix across compaction events is the normal case, not an error).
func existingMemoryIDs(ctx context.Context, s store.Store, sessionID string) (map[string]bool, error) {
	if sessionID == "" {
		return nil, nil
	}
	mems, err := s.Scan(ctx, store.Filter{SessionID: sessionID})
	if err != nil {
		return nil, err
	}
	ids := make(map[string]bool, len(mems))
	for _, m := range mems {
		ids[m.ID] = true
	}
	return ids, nil
}

// memoryID derives a stable, content-addressed ID so re-ingesting the same
// transcript segment never produces a duplicate memory under a different
// ID (spec §3: "memory IDs are stable across re-runs").
func memoryID(sessionID string, chunkIndex int, intent string) string {
	h := sha256.Sum256([]byte(sessionID + "\x00" + fmt.Sprint(chunkIndex) + "\x00" + intent))
	return "mem_" + hex.EncodeToString(h[:])[:24]
}

// entityID derives a stable ID from an entity's (type, canonical_form) key,
// so the same entity always round-trips to the same row across runs.
func entityID(key string) string {
	h := sha256.Sum256([]byte(key))
	return "ent_" + hex.EncodeToString(h[:])[:24]
}
