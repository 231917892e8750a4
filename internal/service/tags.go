package service

import (
	"sort"
	"strings"
)

// SplitTags splits a raw comma-separated tags field into trimmed, non-empty tags.
// Order and duplicates within the field are preserved.
func SplitTags(field string) []string {
	if field == "" {
		return nil
	}
	parts := strings.Split(field, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if tag := strings.TrimSpace(p); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// AggregateTags returns the distinct tags across all fields, sorted ascending.
// Comparison is case-sensitive after trimming.
func AggregateTags(fields []string) []string {
	seen := make(map[string]struct{})
	for _, field := range fields {
		for _, tag := range SplitTags(field) {
			seen[tag] = struct{}{}
		}
	}

	tags := make([]string, 0, len(seen))
	for tag := range seen {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
