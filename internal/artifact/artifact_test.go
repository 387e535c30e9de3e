package artifact

import (
	"strings"
	"testing"
)

func TestExtract_CodeBlock(t *testing.T) {
	text := "Here is the fix:\n```go\nfunc add(a, b int) int { return a + b }\n```\nDone."
	a, flags := Extract(text)
	if len(a.CodeSnippets) != 1 {
		t.Fatalf("expected 1 code snippet, got %d", len(a.CodeSnippets))
	}
	if a.CodeSnippets[0].Language != "go" {
		t.Errorf("expected language go, got %q", a.CodeSnippets[0].Language)
	}
	if !flags.HasCode {
		t.Error("expected HasCode flag set")
	}
}

func TestExtract_Files(t *testing.T) {
	text := "Edited internal/store/sqlite.go and cmd/compactmem/main.go, also touched 123.ts which is a false positive."
	a, flags := Extract(text)
	if !flags.HasFiles {
		t.Error("expected HasFiles flag set")
	}
	found := map[string]bool{}
	for _, f := range a.Files {
		found[f] = true
	}
	if !found["internal/store/sqlite.go"] || !found["cmd/compactmem/main.go"] {
		t.Errorf("expected both real files found, got %v", a.Files)
	}
	if found["123.ts"] {
		t.Error("expected numeric-only false positive filtered out")
	}
}

func TestExtract_Commands(t *testing.T) {
	text := "Ran it locally:\n$ go test ./...\nAll green."
	a, _ := Extract(text)
	if len(a.Commands) != 1 || a.Commands[0] != "go test ./..." {
		t.Errorf("expected one extracted command, got %v", a.Commands)
	}
}

func TestExtract_Errors(t *testing.T) {
	text := "Got this:\nTraceback (most recent call last):\nValueError: bad input\nThen fixed it."
	a, _ := Extract(text)
	if len(a.Errors) == 0 {
		t.Error("expected at least one extracted error line")
	}
}

func TestExtract_TracebackIncludesContinuationLines(t *testing.T) {
	text := "Got this:\n" +
		"Traceback (most recent call last):\n" +
		"  File \"app.py\", line 42, in run\n" +
		"    result = compute()\n" +
		"ValueError: bad input\n" +
		"Then fixed it."
	a, _ := Extract(text)
	var traceback string
	for _, e := range a.Errors {
		if strings.HasPrefix(e, "Traceback") {
			traceback = e
		}
	}
	if traceback == "" {
		t.Fatalf("expected a Traceback error entry, got %v", a.Errors)
	}
	if !strings.Contains(traceback, "compute()") {
		t.Errorf("expected the traceback match to include its indented continuation lines, got %q", traceback)
	}
}

func TestExtract_Architecture(t *testing.T) {
	text := "We settled on a pipeline architecture for the ingestion flow."
	a, flags := Extract(text)
	if len(a.Architecture) == 0 {
		t.Error("expected an architecture sentence extracted")
	}
	if !flags.HasArchitecture {
		t.Error("expected HasArchitecture flag set")
	}
}

func TestExtract_SuccessFlag(t *testing.T) {
	_, flagsOK := Extract("all tests pass now, fully resolved.")
	if !flagsOK.Success {
		t.Error("expected Success true for a clean success message")
	}

	_, flagsFailed := Extract("tests pass but then it crashed with an exception")
	if flagsFailed.Success {
		t.Error("expected Success false when a failure marker is also present")
	}
}
