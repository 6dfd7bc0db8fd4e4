package ingestion

import (
	"strings"
	"testing"
)

func TestBaseSlug(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{
			name:  "normalizes punctuation and case",
			title: "How to Make French Pancakes in 10 Minutes!",
			want:  "how-to-make-french-pancakes-in-10-minutes",
		},
		{
			name:  "collapses whitespace and hyphens",
			title: "Quick  --  Easy   Ramen",
			want:  "quick-easy-ramen",
		},
		{
			name:  "drops non-ascii letters",
			title: "Crème Brûlée",
			want:  "crme-brle",
		},
		{
			name:  "only punctuation",
			title: "!!! ???",
			want:  "",
		},
		{
			name:  "unicode spaces become hyphens",
			title: "Pancakes\u00a0Recipe\u2003for\u3000Two",
			want:  "pancakes-recipe-for-two",
		},
		{
			name:  "trailing hyphen removed",
			title: "Tacos -",
			want:  "tacos",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BaseSlug(tt.title); got != tt.want {
				t.Errorf("BaseSlug(%q) = %q, want %q", tt.title, got, tt.want)
			}
		})
	}
}

func TestBaseSlugTruncation(t *testing.T) {
	// 59 letters, a space, then more words: the cut lands on the hyphen.
	atHyphen := strings.Repeat("a", 59) + " bbbbbbbbbb"
	got := BaseSlug(atHyphen)
	if got != strings.Repeat("a", 59) {
		t.Errorf("expected hyphen at the cut to be stripped, got %q (len %d)", got, len(got))
	}

	long := strings.Repeat("pancake", 10) + " with syrup"
	got = BaseSlug(long)
	if len(got) != MaxSlugLength {
		t.Errorf("expected length %d, got %d (%q)", MaxSlugLength, len(got), got)
	}
	if strings.HasSuffix(got, "-") {
		t.Errorf("slug must not end with a hyphen: %q", got)
	}
}

func TestAllocateSlugResolvesCollisions(t *testing.T) {
	existing := map[string]struct{}{
		"pancakes":   {},
		"pancakes-1": {},
	}

	if got := AllocateSlug("Pancakes!!!", existing); got != "pancakes-2" {
		t.Fatalf("AllocateSlug = %q, want pancakes-2", got)
	}
	if _, added := existing["pancakes-2"]; added {
		t.Fatal("AllocateSlug must not mutate the existing set")
	}

	if got := AllocateSlug("Waffles", existing); got != "waffles" {
		t.Fatalf("AllocateSlug = %q, want waffles", got)
	}
}

func TestAllocateSlugEmptyTitle(t *testing.T) {
	if got := AllocateSlug("???", nil); got != fallbackSlug {
		t.Fatalf("AllocateSlug = %q, want %q", got, fallbackSlug)
	}

	existing := map[string]struct{}{fallbackSlug: {}}
	if got := AllocateSlug("", existing); got != fallbackSlug+"-1" {
		t.Fatalf("AllocateSlug = %q, want %q", got, fallbackSlug+"-1")
	}
}
