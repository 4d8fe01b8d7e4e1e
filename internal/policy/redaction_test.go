package policy

import (
	"strings"
	"testing"
)

func TestRedactPII(t *testing.T) {
	input := "Reach me at iris@example.com or +1 (555) 123-9876 anytime."
	out, changed := RedactPII(input)
	if !changed {
		t.Fatalf("changed = false, want true")
	}
	for _, marker := range []string{"[REDACTED_EMAIL]", "[REDACTED_PHONE]"} {
		if !strings.Contains(out, marker) {
			t.Fatalf("output missing marker %q: %q", marker, out)
		}
	}
}

func TestRedactPIINoMatch(t *testing.T) {
	out, changed := RedactPII("just a harmless sentence")
	if changed {
		t.Fatalf("changed = true, want false")
	}
	if out != "just a harmless sentence" {
		t.Fatalf("output mutated: %q", out)
	}
}

func TestLogSafeTruncates(t *testing.T) {
	out := LogSafe(strings.Repeat("x", 100), 10)
	if out != strings.Repeat("x", 10)+"..." {
		t.Fatalf("LogSafe() = %q", out)
	}
}
