package pipeline

import (
	"strings"
	"testing"
)

func TestDirtyAppend(t *testing.T) {
	got := DirtyAppend("prior summary", "hi there", "hello, how can I help?")
	want := "prior summary\n[PENDING] User: hi there | Bot: hello, how can I help?"
	if got != want {
		t.Errorf("DirtyAppend() = %q, want %q", got, want)
	}
}

func TestDirtyAppendTruncates(t *testing.T) {
	existing := strings.Repeat("x", maxSummaryLen)
	got := DirtyAppend(existing, "u", "b")
	if len(got) != maxSummaryLen {
		t.Errorf("DirtyAppend() len = %d, want %d", len(got), maxSummaryLen)
	}
	if !strings.Contains(got, "[PENDING] User: u | Bot: b") {
		t.Errorf("DirtyAppend() = %q, want tail to contain pending marker", got)
	}
}
