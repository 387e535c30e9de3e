// Package chunker splits an ordered transcript into Intent/Action/Outcome
// chunks along semantic boundaries (spec §4.1).
package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/avrilcode/compactmem/internal/transcript"
)

const (
	DefaultIntentCap  = 500
	DefaultActionCap  = 1000
	DefaultOutcomeCap = 300

	// minBoundaryGap is the minimum action-text length between blocks before
	// a topic-shift boundary is honored; short blocks merge instead of
	// fragmenting into needless chunks (mirrors the teacher's mergeBlocks
	// "don't fragment tiny blocks" behavior).
	minBoundaryGap = 120
)

// Options configures chunking behavior.
type Options struct {
	IntentCap  int
	ActionCap  int
	OutcomeCap int
}

// DefaultOptions returns spec-mandated soft caps (500/1000/300).
func DefaultOptions() Options {
	return Options{IntentCap: DefaultIntentCap, ActionCap: DefaultActionCap, OutcomeCap: DefaultOutcomeCap}
}

// Result is one emitted Intent/Action/Outcome chunk. The *Full fields carry
// the untruncated text for the embedder's contextual prefix, per spec §4.1
// step 6 ("embedded_text uses the full action before truncation flagging").
type Result struct {
	Intent     string
	Action     string
	Outcome    string
	IntentFull string
	ActionFull string
	OutcomeFull string
}

var (
	decisionMarkerRe = regexp.MustCompile(`(?i)\b(decided to|chose|selected|will use|going with|switched to)\b`)
	successRe        = regexp.MustCompile(`(?i)\b(done|fixed|resolved|tests? pass(es|ed)?|all green|works now|completed|succeeded)\b`)
	failureRe        = regexp.MustCompile(`(?i)\b(error|failed|failure|exception|crash(ed)?|broke|broken)\b`)
)

// turn groups one user message with every following non-user message up to
// (but not including) the next user message.
type turn struct {
	intent  transcript.Message
	actions []transcript.Message
}

func groupByUserTurn(msgs []transcript.Message) []turn {
	var turns []turn
	var cur *turn
	for _, m := range msgs {
		if m.Role == transcript.RoleUser {
			if cur != nil {
				turns = append(turns, *cur)
			}
			cur = &turn{intent: m}
			continue
		}
		if cur == nil {
			// Leading assistant/tool chatter with no preceding user turn:
			// synthesize an empty-intent turn so it isn't dropped.
			cur = &turn{}
		}
		cur.actions = append(cur.actions, m)
	}
	if cur != nil {
		turns = append(turns, *cur)
	}
	return turns
}

// buildActionText concatenates assistant/tool messages into one action
// string, collapsing every run of 3 or more consecutive file-write tool
// calls into a single grouped line (spec §4.1 step 5). Runs longer than 5
// are not split; they also become one grouped line.
func buildActionText(msgs []transcript.Message) string {
	var parts []string
	var fileOpRun []string

	flushRun := func() {
		if len(fileOpRun) == 0 {
			return
		}
		if len(fileOpRun) >= 3 {
			parts = append(parts, "Wrote files: "+strings.Join(fileOpRun, ", "))
		} else {
			parts = append(parts, fileOpRun...)
		}
		fileOpRun = nil
	}

	for _, m := range msgs {
		text := strings.TrimSpace(m.Text)
		if text == "" && m.ToolName == "" {
			continue
		}
		if isFileWriteCall(m) {
			fileOpRun = append(fileOpRun, fileWriteSummary(m))
			continue
		}
		flushRun()
		if m.ToolName != "" {
			line := "called " + m.ToolName
			if text != "" {
				line += ": " + text
			}
			parts = append(parts, line)
			continue
		}
		parts = append(parts, text)
	}
	flushRun()

	return strings.Join(parts, "\n")
}

func isFileWriteCall(m transcript.Message) bool {
	switch strings.ToLower(m.ToolName) {
	case "write", "edit", "str_replace", "create_file", "multiedit":
		return true
	}
	return false
}

func fileWriteSummary(m transcript.Message) string {
	if t := strings.TrimSpace(m.Text); t != "" {
		return t
	}
	return m.ToolName
}

// detectOutcome pulls the final sentence(s) describing success/failure from
// action text (spec §4.1 step 3). When no textual marker is present, it
// falls back to the turn's tool-result success flags so a structurally
// successful/failed tool call still registers an outcome.
func detectOutcome(actionText string, toolSignal toolOutcome) string {
	sentences := splitSentences(actionText)
	for i := len(sentences) - 1; i >= 0 && i >= len(sentences)-3; i-- {
		s := sentences[i]
		if successRe.MatchString(s) || failureRe.MatchString(s) {
			return strings.TrimSpace(s)
		}
	}
	if toolSignal.present {
		if toolSignal.success {
			return "tool call succeeded"
		}
		return "tool call failed"
	}
	return ""
}

// toolOutcome carries the structural success/failure signal derived from
// ToolResult.Success flags across a turn's actions.
type toolOutcome struct {
	present bool
	success bool
}

// turnToolOutcome scans a turn's action messages for tool_result success
// flags (spec §4.1 step 3: "by tool result success flags"). A failure
// anywhere in the turn wins over a later success.
func turnToolOutcome(msgs []transcript.Message) toolOutcome {
	var out toolOutcome
	for _, m := range msgs {
		if m.ToolResult == nil {
			continue
		}
		out.present = true
		out.success = m.ToolResult.Success
		if !out.success {
			return out
		}
	}
	return out
}

var sentenceSplitRe = regexp.MustCompile(`[.!?]\s+`)

func splitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return sentenceSplitRe.Split(text, -1)
}

// shouldChunkHere detects a natural topic-shift boundary within a single
// turn's action text: a decision marker block, or a long gap between
// otherwise unrelated paragraphs (spec §4.1 step 4).
func shouldChunkHere(prevBlock, nextBlock string) bool {
	if len(prevBlock) < minBoundaryGap || len(nextBlock) < minBoundaryGap {
		return false
	}
	return decisionMarkerRe.MatchString(nextBlock) && !decisionMarkerRe.MatchString(prevBlock)
}

// splitIntoBoundaryBlocks splits action text on blank lines, the same
// paragraph-boundary unit the teacher's splitBlocks uses for markdown.
func splitIntoBoundaryBlocks(text string) []string {
	raw := strings.Split(text, "\n\n")
	var blocks []string
	for _, b := range raw {
		b = strings.TrimSpace(b)
		if b != "" {
			blocks = append(blocks, b)
		}
	}
	if len(blocks) == 0 {
		return nil
	}
	return blocks
}

func truncate(s string, cap int) string {
	if len(s) <= cap {
		return s
	}
	return s[:cap] + "..."
}

func hashKey(intent, action string) string {
	h := sha256.Sum256([]byte(intent + "\x00" + action))
	return hex.EncodeToString(h[:])
}

// Chunk converts an ordered transcript into Intent/Action/Outcome chunks.
// Empty input yields empty output; every emitted chunk has a non-empty
// Intent (spec §4.1 contract).
func Chunk(msgs []transcript.Message, opts Options) []Result {
	if opts.IntentCap == 0 {
		opts = DefaultOptions()
	}
	if len(msgs) == 0 {
		return nil
	}

	var results []Result
	var lastKey string

	for _, t := range groupByUserTurn(msgs) {
		intent := strings.TrimSpace(t.intent.Text)
		if intent == "" {
			intent = "(continued from prior context)"
		}

		if len(t.actions) == 0 {
			r := finalizeResult(intent, "", opts, toolOutcome{})
			key := hashKey(r.Intent, r.Action)
			if key != lastKey {
				results = append(results, r)
				lastKey = key
			}
			continue
		}

		toolSignal := turnToolOutcome(t.actions)
		actionText := buildActionText(t.actions)
		blocks := splitIntoBoundaryBlocks(actionText)
		if len(blocks) == 0 {
			blocks = []string{actionText}
		}

		// Natural-boundary override: split the action into multiple chunks
		// sharing the originating intent when a topic shift is detected.
		var groups []string
		cur := blocks[0]
		for i := 1; i < len(blocks); i++ {
			if shouldChunkHere(cur, blocks[i]) {
				groups = append(groups, cur)
				cur = blocks[i]
				continue
			}
			cur = cur + "\n\n" + blocks[i]
		}
		groups = append(groups, cur)

		for _, g := range groups {
			r := finalizeResult(intent, g, opts, toolSignal)
			key := hashKey(r.Intent, r.Action)
			if key == lastKey {
				continue
			}
			results = append(results, r)
			lastKey = key
		}
	}

	return results
}

func finalizeResult(intent, action string, opts Options, toolSignal toolOutcome) Result {
	outcome := detectOutcome(action, toolSignal)
	return Result{
		Intent:      truncate(intent, opts.IntentCap),
		Action:      truncate(action, opts.ActionCap),
		Outcome:     truncate(outcome, opts.OutcomeCap),
		IntentFull:  intent,
		ActionFull:  action,
		OutcomeFull: outcome,
	}
}
