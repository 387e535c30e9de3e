// Package scorer computes multi-signal importance scores (spec §4.2, C2).
// Pure function, deterministic, never raises.
package scorer

import (
	"math"
	"regexp"
	"time"

	"github.com/avrilcode/compactmem/internal/model"
)

// Weights are the ten default signal weights from spec §4.2's table.
// Implementers may expose config to override these.
type Weights struct {
	DecisionMarker      float64
	ErrorResolution     float64
	Learning            float64
	FileCreation        float64
	TestSuccess         float64
	ToolUsagePerCall    float64
	ToolUsageCap        int
	CodePresence        float64
	Architecture        float64
	FileOpsPerFile      float64
	FileOpsCap          int
}

// DefaultWeights returns the spec's default signal weights.
func DefaultWeights() Weights {
	return Weights{
		DecisionMarker:   10.0,
		ErrorResolution:  8.0,
		Learning:         7.0,
		FileCreation:     6.0,
		TestSuccess:      5.0,
		ToolUsagePerCall: 0.5,
		ToolUsageCap:     10,
		CodePresence:     2.0,
		Architecture:     4.0,
		FileOpsPerFile:   0.3,
		FileOpsCap:       15,
	}
}

var (
	decisionMarkerRe  = regexp.MustCompile(`(?i)\b(decided to|chose|selected|will use|going with)\b`)
	errorTokenRe      = regexp.MustCompile(`(?i)\b(error|exception|bug|traceback|failed)\b`)
	resolutionTokenRe = regexp.MustCompile(`(?i)\b(fixed|resolved|works now|passing|solved)\b`)
	learningRe        = regexp.MustCompile(`(?i)\b(learned|discovered|turns out|realized)\b`)
	testSuccessRe     = regexp.MustCompile(`(?i)\b(tests? pass(es|ed)?|all green|exit 0|exit code 0)\b`)
	toolCallRe        = regexp.MustCompile(`(?im)^called\s+\S+`)
)

// ChunkInput is the subset of chunk data the scorer needs.
type ChunkInput struct {
	Intent     string
	Action     string
	Outcome    string
	Artifacts  model.Artifacts
	IsNewFile  bool // file_creation signal: artifact contains a new file, not just an edit
	AgeDays    float64
}

// Score computes importance = sum(w_i * signal_i) * recency_decay(age).
// Never raises; returns 0 for inputs that fail to parse meaningfully.
func Score(in ChunkInput, w Weights) float64 {
	combined := in.Intent + "\n" + in.Action + "\n" + in.Outcome
	if combined == "\n\n" {
		return 0
	}

	var total float64

	if decisionMarkerRe.MatchString(combined) {
		total += w.DecisionMarker
	}
	if errorTokenRe.MatchString(combined) && resolutionTokenRe.MatchString(combined) {
		total += w.ErrorResolution
	}
	if learningRe.MatchString(combined) {
		total += w.Learning
	}
	if in.IsNewFile {
		total += w.FileCreation
	}
	if testSuccessRe.MatchString(combined) {
		total += w.TestSuccess
	}

	toolCalls := len(toolCallRe.FindAllString(in.Action, -1))
	if toolCalls > w.ToolUsageCap {
		toolCalls = w.ToolUsageCap
	}
	total += float64(toolCalls) * w.ToolUsagePerCall

	if len(in.Artifacts.CodeSnippets) > 0 {
		total += w.CodePresence
	}
	if len(in.Artifacts.Architecture) > 0 {
		total += w.Architecture
	}

	fileCount := len(in.Artifacts.Files)
	if fileCount > w.FileOpsCap {
		fileCount = w.FileOpsCap
	}
	total += float64(fileCount) * w.FileOpsPerFile

	decay := RecencyDecay(in.AgeDays)
	return total * decay
}

// RecencyDecay implements the multiplicative 0.5^(days_old/30) factor.
func RecencyDecay(ageDays float64) float64 {
	if ageDays <= 0 {
		return 1.0
	}
	return math.Pow(0.5, ageDays/30.0)
}

// AgeDays computes the elapsed days between a timestamp and now, used by
// the pruner and scorer alike.
func AgeDays(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return time.Since(t).Hours() / 24.0
}
