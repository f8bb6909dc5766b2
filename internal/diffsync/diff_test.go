package diffsync

import (
	"strings"
	"testing"
)

func TestDiffEmptyWhenEqual(t *testing.T) {
	edits := Diff("Same text", "Same text")
	if !edits.IsEmpty() {
		t.Errorf("expected empty edit list, got %v", edits)
	}
}

func TestDiffFromEmpty(t *testing.T) {
	edits := Diff("", "hello")
	if edits.Len() != 1 {
		t.Fatalf("expected 1 edit, got %d", edits.Len())
	}
	e := edits.Edits[0]
	if e.Kind != KindInsert || e.Pos != 0 || e.Text != "hello" {
		t.Errorf("unexpected edit: %v", e)
	}
}

func TestDiffToEmpty(t *testing.T) {
	edits := Diff("hello", "")
	if edits.Len() != 1 {
		t.Fatalf("expected 1 edit, got %d", edits.Len())
	}
	e := edits.Edits[0]
	if e.Kind != KindDelete || e.Pos != 0 || e.Len != len("hello") {
		t.Errorf("unexpected edit: %v", e)
	}
}

func TestDiffAndPatchRoundTrip(t *testing.T) {
	original := "The quick brown fox"
	modified := "The quick red fox jumps"

	edits := Diff(original, modified)
	result, err := Patch(original, edits)
	if err != nil {
		t.Fatalf("patch error: %v", err)
	}
	if result != modified {
		t.Errorf("got %q, want %q", result, modified)
	}
}

func TestDiffSingleReplace(t *testing.T) {
	edits := Diff("The quick brown fox", "The quick red fox jumps")
	if edits.Len() != 1 {
		t.Fatalf("expected exactly 1 edit, got %d", edits.Len())
	}
	if edits.Edits[0].Kind != KindReplace {
		t.Errorf("expected Replace, got %v", edits.Edits[0].Kind)
	}
}

func TestPatchEmptyEditsIsIdentity(t *testing.T) {
	for _, s := range []string{"", "hello", "The quick brown fox"} {
		result, err := Patch(s, EmptyEditList(s))
		if err != nil {
			t.Fatalf("patch error: %v", err)
		}
		if result != s {
			t.Errorf("got %q, want %q", result, s)
		}
	}
}

func TestPatchClampsOutOfRangePositions(t *testing.T) {
	edits := NewEditList([]Edit{Insert(1000, "!")}, "hi")
	result, err := Patch("hi", edits)
	if err != nil {
		t.Fatalf("patch error: %v", err)
	}
	if result != "hi!" {
		t.Errorf("got %q, want %q", result, "hi!")
	}
}

func TestFuzzyPatchTreatsDrift(t *testing.T) {
	original := "Hello world"
	modified := "Hello beautiful world"

	edits := Diff(original, modified)

	different := "Hello cruel world"
	result, err := Patch(different, edits)
	if err != nil {
		t.Fatalf("patch error: %v", err)
	}
	if !strings.Contains(result, "beautiful") {
		t.Errorf("expected result to contain %q, got %q", "beautiful", result)
	}
}

func TestDiffMultibyteUTF8Boundaries(t *testing.T) {
	edits := Diff("héllo", "hello")
	if edits.Len() != 1 {
		t.Fatalf("expected 1 edit, got %d", edits.Len())
	}
	// "é" is 2 bytes in UTF-8; the edit position must land after "h" (byte 1),
	// never inside the multi-byte rune.
	e := edits.Edits[0]
	if e.Pos != 1 {
		t.Errorf("expected edit position 1 (after 'h'), got %d", e.Pos)
	}
	result, err := Patch("héllo", edits)
	if err != nil {
		t.Fatalf("patch error: %v", err)
	}
	if result != "hello" {
		t.Errorf("got %q, want %q", result, "hello")
	}
}

func TestDiffPatchRoundTripTable(t *testing.T) {
	cases := []struct {
		name string
		from string
		to   string
	}{
		{"identical", "abc", "abc"},
		{"append", "abc", "abcdef"},
		{"prepend", "abc", "xyzabc"},
		{"middle replace", "abcdef", "abXYZf"},
		{"full replace", "abc", "xyz"},
		{"shrink", "abcdef", "af"},
		{"grow from short", "a", "a very long string indeed"},
		{"unicode", "日本語のテスト", "日本語の新テスト"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			edits := Diff(tc.from, tc.to)
			result, err := Patch(tc.from, edits)
			if err != nil {
				t.Fatalf("patch error: %v", err)
			}
			if result != tc.to {
				t.Errorf("got %q, want %q", result, tc.to)
			}
		})
	}
}

func TestChecksumIsAdvisoryNotGating(t *testing.T) {
	edits := Diff("hello", "hello world")
	// Corrupt the checksum; Patch must still succeed since the checksum is
	// never consulted by the base algorithm.
	edits.Checksum = "deadbeef"
	result, err := Patch("hello", edits)
	if err != nil {
		t.Fatalf("patch error: %v", err)
	}
	if result != "hello world" {
		t.Errorf("got %q, want %q", result, "hello world")
	}
}
