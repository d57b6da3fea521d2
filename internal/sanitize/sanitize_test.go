package sanitize

import (
	"strings"
	"testing"
)

func TestName_ReplacesUnsafeCharacters(t *testing.T) {
	got := Name(`a<b>c:d"e/f\g|h?i*j`)
	if strings.ContainsAny(got, `<>:"/\|?*`) {
		t.Fatalf("result still contains unsafe characters: %q", got)
	}
}

func TestName_TrimsTrailingDotsAndSpaces(t *testing.T) {
	got := Name("report.  ")
	if strings.HasSuffix(got, ".") || strings.HasSuffix(got, " ") {
		t.Fatalf("expected trailing dot/space trimmed, got %q", got)
	}
}

func TestName_EmptyBecomesUnderscore(t *testing.T) {
	if got := Name("..."); got != "_" {
		t.Fatalf("expected %q, got %q", "_", got)
	}
}

func TestName_ReservedDeviceNames(t *testing.T) {
	for _, in := range []string{"CON", "con", "NUL.txt", "lpt3"} {
		got := Name(in)
		if !strings.HasPrefix(got, "_") {
			t.Fatalf("expected reserved name %q to be prefixed, got %q", in, got)
		}
	}
}

func TestName_TotalityInvariant(t *testing.T) {
	inputs := []string{"", "   ", "CON", "a/b\\c", strings.Repeat("x", 1000), "plain.txt"}
	for _, in := range inputs {
		got := Name(in)
		if got == "" {
			t.Fatalf("sanitize(%q) produced empty result", in)
		}
		if len(got) > 255 {
			t.Fatalf("sanitize(%q) exceeded 255 bytes: %d", in, len(got))
		}
		if strings.ContainsAny(got, `<>:"/\|?*`) {
			t.Fatalf("sanitize(%q) contains unsafe characters: %q", in, got)
		}
		if strings.HasSuffix(got, ".") || strings.HasSuffix(got, " ") {
			t.Fatalf("sanitize(%q) ends in dot/space: %q", in, got)
		}
	}
}

func TestName_Idempotent(t *testing.T) {
	inputs := []string{"CON", "a<b>c", "normal_file.txt", strings.Repeat("z", 500), "..."}
	for _, in := range inputs {
		once := Name(in)
		twice := Name(once)
		if once != twice {
			t.Fatalf("sanitize not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

func TestName_TruncatesToByteLimit(t *testing.T) {
	long := strings.Repeat("a", 1000)
	got := Name(long)
	if len(got) > 255 {
		t.Fatalf("expected at most 255 bytes, got %d", len(got))
	}
}
