// Package entity extracts typed, canonicalized entities from chunk text,
// ported from the rule-based extractor in the original Python hooks
// (spec §4.3, C3).
package entity

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/avrilcode/compactmem/internal/model"
)

var (
	fileRe = regexp.MustCompile("`?([a-zA-Z0-9_/\\-.]+\\.(py|js|ts|jsx|tsx|java|cpp|h|go|json|yaml|yml|md|txt))`?")

	funcDefRe   = regexp.MustCompile(`\b(?:def|function|func)\s+([a-zA-Z_][a-zA-Z0-9_]*)`)
	funcCallRe  = regexp.MustCompile("`([a-zA-Z_][a-zA-Z0-9_]*)\\(\\)`")

	bugRe = regexp.MustCompile(`(?i)(TypeError|ValueError|AttributeError|KeyError|IndexError|ImportError|RuntimeError|NullPointerException|panic):\s*([^.\n]+)`)

	// errorRe covers generic failure language that isn't a named exception
	// class (those route to EntityBug above), matching entity_extractor.py's
	// second BUG_PATTERN but kept as its own ERROR type per the data model's
	// wider typed vocabulary.
	errorRe = regexp.MustCompile(`(?i)\b(error|failed|failure|crash(?:ed)?|timed out|timeout):\s*([^.\n]{5,100})`)

	featureRe = regexp.MustCompile(`(?i)\b(implemented|added|built)\s+([^.\n]{5,80})`)

	decisionRe = regexp.MustCompile(`(?i)(decided to|chose|selected|will use|going with|switched to)\s+([^.\n]{3,100})`)

	toolRe = regexp.MustCompile("`([a-z][a-z0-9]*(?:[-_][a-z0-9]+)+)`")

	// otherRe is the fallback bucket for noteworthy mentions that don't fit
	// any of the typed categories above, keeping EntityOther reachable.
	otherRe = regexp.MustCompile(`(?i)\b(note|observed|worth mentioning):\s*([^.\n]{5,100})`)
)

// Extracted holds the entities and relationships recognized in one chunk's
// combined text.
type Extracted struct {
	Entities      []model.Entity
	Relationships []Relationship
}

// Relationship mirrors the original extractor's typed links between
// entities (MODIFIES, FIXES, USES, IMPLEMENTS).
type Relationship struct {
	Source string
	Type   string
	Target string
}

// Extract recognizes entities and their relationships in combined chunk text.
func Extract(text string) Extracted {
	var ents []model.Entity

	for _, m := range fileRe.FindAllStringSubmatch(text, -1) {
		ents = append(ents, newEntity(model.EntityFile, strings.Trim(m[0], "`"), canonicalFile))
	}
	for _, m := range funcDefRe.FindAllStringSubmatch(text, -1) {
		ents = append(ents, newEntity(model.EntityFunction, m[1], canonicalLower))
	}
	for _, m := range funcCallRe.FindAllStringSubmatch(text, -1) {
		ents = append(ents, newEntity(model.EntityFunction, m[1], canonicalLower))
	}
	for _, m := range bugRe.FindAllStringSubmatch(text, -1) {
		name := strings.TrimSpace(m[0])
		if len(name) > 100 {
			name = name[:100]
		}
		ents = append(ents, newEntity(model.EntityBug, name, canonicalLower))
	}
	for _, m := range errorRe.FindAllStringSubmatch(text, -1) {
		name := strings.TrimSpace(m[0])
		if len(name) > 100 {
			name = name[:100]
		}
		ents = append(ents, newEntity(model.EntityError, name, canonicalLower))
	}
	for _, m := range otherRe.FindAllStringSubmatch(text, -1) {
		name := strings.TrimSpace(m[0])
		if len(name) > 100 {
			name = name[:100]
		}
		ents = append(ents, newEntity(model.EntityOther, name, canonicalLower))
	}
	for _, m := range featureRe.FindAllStringSubmatch(text, -1) {
		ents = append(ents, newEntity(model.EntityFeature, strings.TrimSpace(m[2]), canonicalLower))
	}
	for _, m := range decisionRe.FindAllStringSubmatch(text, -1) {
		name := strings.TrimSpace(m[0])
		if len(name) > 100 {
			name = name[:100]
		}
		ents = append(ents, newEntity(model.EntityDecision, name, canonicalLower))
	}
	for _, m := range toolRe.FindAllStringSubmatch(text, -1) {
		ents = append(ents, newEntity(model.EntityTool, m[1], canonicalLower))
	}

	ents = dedupe(ents)
	rels := extractRelationships(text, ents)
	return Extracted{Entities: ents, Relationships: rels}
}

func newEntity(t model.EntityType, surface string, canon func(string) string) model.Entity {
	c := canon(surface)
	return model.Entity{Type: t, SurfaceForm: surface, CanonicalForm: c}
}

func canonicalFile(s string) string {
	return filepath.ToSlash(strings.ToLower(strings.TrimPrefix(s, "./")))
}

func canonicalLower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// dedupe removes duplicate (type, canonical_form) pairs, matching
// EntityExtractor.deduplicate_entities.
func dedupe(ents []model.Entity) []model.Entity {
	seen := map[string]bool{}
	var out []model.Entity
	for _, e := range ents {
		k := e.Key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, e)
	}
	return out
}

// extractRelationships finds MODIFIES/FIXES/USES/IMPLEMENTS links by
// textual co-occurrence, matching entity_extractor.py's extract_relationships.
func extractRelationships(text string, ents []model.Entity) []Relationship {
	var rels []Relationship
	byType := func(t model.EntityType) []model.Entity {
		var out []model.Entity
		for _, e := range ents {
			if e.Type == t {
				out = append(out, e)
			}
		}
		return out
	}

	files := byType(model.EntityFile)
	features := byType(model.EntityFeature)
	funcs := byType(model.EntityFunction)
	bugs := byType(model.EntityBug)
	tools := byType(model.EntityTool)

	for _, f := range files {
		for _, other := range append(append([]model.Entity{}, features...), funcs...) {
			if strings.Contains(text, other.SurfaceForm) && strings.Contains(text, f.SurfaceForm) {
				rels = append(rels, Relationship{Source: other.CanonicalForm, Type: "MODIFIES", Target: f.CanonicalForm})
			}
		}
	}
	for _, b := range bugs {
		for _, ft := range features {
			rels = append(rels, Relationship{Source: ft.CanonicalForm, Type: "FIXES", Target: b.CanonicalForm})
		}
	}
	for _, tl := range tools {
		for _, other := range append(append(append([]model.Entity{}, files...), features...), funcs...) {
			if strings.Contains(text, tl.SurfaceForm) {
				rels = append(rels, Relationship{Source: other.CanonicalForm, Type: "USES", Target: tl.CanonicalForm})
			}
		}
	}
	for _, fn := range funcs {
		for _, ft := range features {
			rels = append(rels, Relationship{Source: fn.CanonicalForm, Type: "IMPLEMENTS", Target: ft.CanonicalForm})
		}
	}

	return rels
}
