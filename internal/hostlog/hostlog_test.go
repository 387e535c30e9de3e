package hostlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpen_WritesToFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "debug.log")

	l, err := Open(path, "precompact")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer l.Close()

	l.Printf("stored %d memories", 3)
	l.Warn("embed chunk %d: %v", 1, "timeout")
	l.Close()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	content := string(b)
	if !strings.Contains(content, "[precompact]") {
		t.Errorf("expected component tag in log, got %q", content)
	}
	if !strings.Contains(content, "stored 3 memories") {
		t.Errorf("expected formatted message, got %q", content)
	}
	if !strings.Contains(content, "WARN") {
		t.Errorf("expected WARN marker, got %q", content)
	}
}

func TestOpen_EmptyPathDiscardsOutput(t *testing.T) {
	l, err := Open("", "sessionstart")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	l.Printf("this should not panic or error")
	if err := l.Close(); err != nil {
		t.Errorf("expected no error closing discard logger, got %v", err)
	}
}
