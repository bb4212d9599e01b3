package inventory

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// sortByName orders items by name ascending using locale-aware collation.
// Herb names are predominantly Chinese; byte order would interleave them
// arbitrarily with pinyin entries.
func sortByName[T any](items []T, name func(T) string) {
	c := collate.New(language.Chinese)
	sort.SliceStable(items, func(i, j int) bool {
		return c.CompareString(name(items[i]), name(items[j])) < 0
	})
}
