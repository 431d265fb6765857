package git

import "testing"

func TestMessage(t *testing.T) {
	msg := FormatMessage("1.7.10", "decompiled_classes_version = 3\n")
	if msg != "Version 1.7.10\n\ndecompiled_classes_version = 3\n" {
		t.Fatalf("unexpected message: %q", msg)
	}

	summary, body, ok := SplitMessage(msg)
	if !ok {
		t.Fatal("expected a body")
	}
	if summary != "Version 1.7.10" {
		t.Errorf("summary = %q", summary)
	}
	if body != "decompiled_classes_version = 3\n" {
		t.Errorf("body = %q", body)
	}

	if _, _, ok := SplitMessage("Version 1.0\n"); ok {
		t.Error("a single-line message has no body")
	}
}
