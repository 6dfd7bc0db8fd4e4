package ingestion

import (
	"regexp"
	"strconv"
	"strings"
)

// MaxSlugLength caps the base slug derived from a title.
const MaxSlugLength = 60

// fallbackSlug is used when a title has no usable characters.
const fallbackSlug = "recipe"

// Whitespace includes Unicode space separators such as NBSP and the BOM,
// so words joined by them still become hyphenated.
var (
	slugInvalidChars = regexp.MustCompile(`[^a-z0-9\s\v\p{Z}\x{FEFF}-]`)
	slugWhitespace   = regexp.MustCompile(`[\s\v\p{Z}\x{FEFF}]+`)
	slugHyphens      = regexp.MustCompile(`-+`)
)

// BaseSlug derives a URL-safe identifier from title without collision handling.
func BaseSlug(title string) string {
	slug := strings.ToLower(title)
	slug = slugInvalidChars.ReplaceAllString(slug, "")
	slug = slugWhitespace.ReplaceAllString(slug, "-")
	slug = slugHyphens.ReplaceAllString(slug, "-")
	if len(slug) > MaxSlugLength {
		slug = slug[:MaxSlugLength]
	}
	return strings.TrimSuffix(slug, "-")
}

// AllocateSlug returns BaseSlug(title), suffixed with -1, -2, ... until it is
// not in existing. It performs no I/O and does not modify existing.
func AllocateSlug(title string, existing map[string]struct{}) string {
	base := BaseSlug(title)
	if base == "" {
		base = fallbackSlug
	}

	slug := base
	for counter := 1; ; counter++ {
		if _, taken := existing[slug]; !taken {
			return slug
		}
		slug = base + "-" + strconv.Itoa(counter)
	}
}
