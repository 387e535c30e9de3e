package hook

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestReadWriteOutput_RoundTrip(t *testing.T) {
	in := `{"session_id":"s1","transcript_path":"/tmp/t.jsonl","hook_event_name":"PreCompact","trigger":"manual"}`
	var got PreCompactInput
	if err := ReadInput(strings.NewReader(in), &got); err != nil {
		t.Fatalf("read input: %v", err)
	}
	if got.SessionID != "s1" || got.TranscriptPath != "/tmp/t.jsonl" {
		t.Errorf("unexpected decoded input: %+v", got)
	}

	var buf bytes.Buffer
	out := PreCompactOutput{Status: "ok", MemoriesStored: 3}
	if err := WriteOutput(&buf, out); err != nil {
		t.Fatalf("write output: %v", err)
	}
	if !strings.Contains(buf.String(), `"memories_stored":3`) {
		t.Errorf("expected encoded output to contain memories_stored, got %q", buf.String())
	}
}

func TestGuard_RecoversPanic(t *testing.T) {
	var recovered interface{}
	err := Guard(func() error {
		panic("boom")
	}, func(r interface{}) {
		recovered = r
	})
	if err == nil {
		t.Fatal("expected an error from a recovered panic")
	}
	if recovered != "boom" {
		t.Errorf("expected recovered value 'boom', got %v", recovered)
	}
}

func TestGuard_PassesThroughNormalError(t *testing.T) {
	wantErr := errors.New("plain failure")
	err := Guard(func() error {
		return wantErr
	}, func(interface{}) {
		t.Error("onPanic should not be called for a normal error")
	})
	if err != wantErr {
		t.Errorf("expected the original error to pass through, got %v", err)
	}
}
