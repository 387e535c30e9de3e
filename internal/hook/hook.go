// Package hook defines the lifecycle hook JSON envelopes of spec §6.1 and
// the stdin/stdout glue the CLI entrypoints use to invoke the pipeline,
// including the top-level panic recovery spec §7/§9 require ("every
// top-level invocation catches all exceptions ... never propagate to the
// host").
package hook

import (
	"encoding/json"
	"fmt"
	"io"
)

// PreCompactInput is the §6.1 PreCompact hook request.
type PreCompactInput struct {
	SessionID      string `json:"session_id"`
	TranscriptPath string `json:"transcript_path"`
	HookEventName  string `json:"hook_event_name"`
	Trigger        string `json:"trigger"`
}

// PreCompactOutput is the §6.1 PreCompact hook response.
type PreCompactOutput struct {
	Status          string `json:"status"`
	MemoriesStored  int    `json:"memories_stored"`
	Pruned          int    `json:"pruned"`
	Error           string `json:"error,omitempty"`
	SystemMessage   string `json:"systemMessage,omitempty"` // supplemented feature 5
}

// SessionStartInput is the §6.1 SessionStart hook request.
type SessionStartInput struct {
	SessionID     string `json:"session_id"`
	TaskQuery     string `json:"task_query"`
	HookEventName string `json:"hook_event_name"`
	Matcher       string `json:"matcher"`
}

// SessionStartOutput is the §6.1 SessionStart hook response.
type SessionStartOutput struct {
	AdditionalContext string `json:"additional_context"`
	MemoriesInjected  int    `json:"memories_injected"`
}

// ReadInput decodes a hook request from r, tolerating unknown fields.
func ReadInput(r io.Reader, v interface{}) error {
	dec := json.NewDecoder(r)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode hook input: %w", err)
	}
	return nil
}

// WriteOutput encodes a hook response to w.
func WriteOutput(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	return enc.Encode(v)
}

// Guard recovers a panic from fn and reports it via onPanic, matching
// spec §9's exception/panic policy: every top-level invocation catches all
// exceptions, logs, and returns a structured error — never propagates to
// the host.
func Guard(fn func() error, onPanic func(recovered interface{})) (err error) {
	defer func() {
		if r := recover(); r != nil {
			onPanic(r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
