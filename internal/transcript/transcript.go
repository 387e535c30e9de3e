// Package transcript loads the line-delimited JSON conversation transcript
// the PreCompact hook is handed (spec §6.2), tolerating extra fields and the
// host's nested message envelope.
package transcript

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Role is the tagged variant for a transcript message's speaker, per
// spec §9 ("define a tagged variant for message role").
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a loose bag-of-fields carrier for a tool invocation.
type ToolCall struct {
	Name  string          `json:"tool_name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

// ToolResult is a loose bag-of-fields carrier for a tool result.
type ToolResult struct {
	Success bool            `json:"success,omitempty"`
	Output  json.RawMessage `json:"output,omitempty"`
	Raw     json.RawMessage `json:"-"`
}

// Message is one transcript turn.
type Message struct {
	Role       Role       `json:"role"`
	Text       string     `json:"content"`
	ToolName   string     `json:"tool_name,omitempty"`
	ToolResult *ToolResult `json:"tool_result,omitempty"`
	Timestamp  time.Time  `json:"-"`
}

// rawMessage mirrors the tolerant host wire shape, including the nested
// envelope some hosts use ({"type": ..., "message": {"role":..., ...}}).
type rawMessage struct {
	Role      string          `json:"role"`
	Content   json.RawMessage `json:"content"`
	Timestamp string          `json:"timestamp"`
	ToolName  string          `json:"tool_name"`
	ToolResult json.RawMessage `json:"tool_result"`
	Message   *rawMessage     `json:"message"`
}

// Load reads a JSONL transcript file, unwrapping nested message envelopes
// and tolerating unknown fields, per spec §6.2 and §9.
func Load(path string) ([]Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	var out []Message
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rm rawMessage
		if err := json.Unmarshal(line, &rm); err != nil {
			// Malformed single line: per §7 (per-chunk extraction errors), skip and continue.
			continue
		}
		out = append(out, rm.unwrap())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan transcript: %w", err)
	}
	return out, nil
}

// unwrap resolves the host's nested message envelope, following
// precompact_memory_extractor_v2.py's message.get("message", msg) pattern.
func (rm rawMessage) unwrap() Message {
	inner := rm
	if rm.Message != nil {
		inner = *rm.Message
	}

	var text string
	if err := json.Unmarshal(inner.Content, &text); err != nil {
		// content may be a structured block list rather than a bare string;
		// best-effort fall back to the raw JSON text.
		text = string(inner.Content)
	}

	m := Message{
		Role:     Role(inner.Role),
		Text:     text,
		ToolName: inner.ToolName,
	}
	if inner.Timestamp != "" {
		if t, err := time.Parse(time.RFC3339, inner.Timestamp); err == nil {
			m.Timestamp = t
		}
	}
	if len(inner.ToolResult) > 0 {
		var tr ToolResult
		tr.Raw = inner.ToolResult
		_ = json.Unmarshal(inner.ToolResult, &tr)
		m.ToolResult = &tr
	}
	return m
}
