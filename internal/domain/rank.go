package domain

import (
	"sort"
	"strings"
)

// Rank sorts entries in place by score descending, ties by
// case-insensitive display name ascending.
func Rank(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return strings.ToLower(entries[i].DisplayName) < strings.ToLower(entries[j].DisplayName)
	})
}
