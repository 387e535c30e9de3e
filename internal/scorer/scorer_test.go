package scorer

import (
	"testing"
	"time"

	"github.com/avrilcode/compactmem/internal/model"
)

func TestScore_EmptyInputReturnsZero(t *testing.T) {
	if got := Score(ChunkInput{}, DefaultWeights()); got != 0 {
		t.Errorf("expected 0 for empty chunk, got %v", got)
	}
}

func TestScore_DecisionMarkerAdded(t *testing.T) {
	in := ChunkInput{Intent: "we decided to use SQLite for storage"}
	got := Score(in, DefaultWeights())
	if got < DefaultWeights().DecisionMarker {
		t.Errorf("expected decision marker weight applied, got %v", got)
	}
}

func TestScore_ErrorResolutionRequiresBoth(t *testing.T) {
	w := DefaultWeights()
	onlyError := Score(ChunkInput{Outcome: "hit an exception"}, w)
	both := Score(ChunkInput{Outcome: "hit an exception, now fixed and tests passing"}, w)
	if both-onlyError < w.ErrorResolution-0.01 {
		t.Errorf("expected error+resolution combo to add %v, got delta %v", w.ErrorResolution, both-onlyError)
	}
}

func TestScore_ToolUsageCappedAndArtifactsCounted(t *testing.T) {
	w := DefaultWeights()
	action := ""
	for i := 0; i < 20; i++ {
		action += "called write: x\n"
	}
	in := ChunkInput{
		Action:    action,
		Artifacts: model.Artifacts{CodeSnippets: []model.CodeSnippet{{Text: "x"}}, Files: make([]string, 30)},
	}
	got := Score(in, w)
	maxToolContribution := float64(w.ToolUsageCap) * w.ToolUsagePerCall
	maxFileContribution := float64(w.FileOpsCap) * w.FileOpsPerFile
	upperBound := maxToolContribution + maxFileContribution + w.CodePresence + 0.01
	if got > upperBound {
		t.Errorf("expected capped contribution <= %v, got %v", upperBound, got)
	}
}

func TestRecencyDecay(t *testing.T) {
	if got := RecencyDecay(0); got != 1.0 {
		t.Errorf("RecencyDecay(0) = %v, want 1.0", got)
	}
	if got := RecencyDecay(30); got < 0.49 || got > 0.51 {
		t.Errorf("RecencyDecay(30) = %v, want ~0.5", got)
	}
	if got := RecencyDecay(60); got < 0.24 || got > 0.26 {
		t.Errorf("RecencyDecay(60) = %v, want ~0.25", got)
	}
}

func TestAgeDays(t *testing.T) {
	if AgeDays(time.Time{}) != 0 {
		t.Error("expected zero age for zero timestamp")
	}
	ts := time.Now().Add(-48 * time.Hour)
	got := AgeDays(ts)
	if got < 1.9 || got > 2.1 {
		t.Errorf("AgeDays(48h ago) = %v, want ~2", got)
	}
}
