package textutil

import (
	"regexp"
	"sort"
	"strings"
)

// hashtagRegex matches hashtags: a '#' followed by alphanumerics or underscores.
// Supports formats like: #tag, #tag_name, #tag123
var hashtagRegex = regexp.MustCompile(`#(\w+)`)

// ExtractHashtags parses hashtags from caption text.
// Returns a sorted list of unique lowercase tags; a caption with no
// hashtags yields an empty slice, never an error.
func ExtractHashtags(text string) []string {
	// Find all hashtags
	matches := hashtagRegex.FindAllStringSubmatch(text, -1)

	// Use a map to deduplicate tags
	tagMap := make(map[string]bool)
	for _, match := range matches {
		if len(match) > 1 {
			tag := strings.ToLower(match[1])
			tagMap[tag] = true
		}
	}

	// Convert map to slice
	tags := make([]string, 0, len(tagMap))
	for tag := range tagMap {
		tags = append(tags, tag)
	}

	// Sort for consistent ordering
	sort.Strings(tags)

	return tags
}

// NormalizeHashtag canonicalizes a user-entered hashtag: trims whitespace,
// strips a leading '#', and lowercases.
func NormalizeHashtag(value string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(value), "#"))
}

// NormalizeCreator canonicalizes a creator handle: trims whitespace,
// strips a leading '@', and lowercases.
func NormalizeCreator(value string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(value), "@"))
}
