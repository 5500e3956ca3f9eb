// Package classify decides which tags of the rule database apply to an item.
package classify

import (
	"sort"

	"rgehrsitz/tagsync/internal/rules"
)

// MatchTags returns the keys of every tag that applies to item, in ascending
// order. A tag applies when the item is explicitly included by it, or when the
// item's name contains one of the tag's common names and no exclusion hits.
// The result does not depend on map iteration order.
func MatchTags(item *rules.Item, db *rules.Database) []rules.TagKey {
	globallyExcluded := isGloballyExcluded(item, db)

	var matched []rules.TagKey
	for key, tag := range db.Tags {
		if Matches(item, tag, globallyExcluded) {
			matched = append(matched, key)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i] < matched[j] })
	return matched
}

// Matches reports whether a single tag applies. An explicit include wins over
// every exclusion.
func Matches(item *rules.Item, tag *rules.Tag, globallyExcluded bool) bool {
	if tag.IncludeItems.Has(item.ID) {
		return true
	}
	if globallyExcluded {
		return false
	}
	if !rules.ContainsAnyFold(item.Name, tag.CommonNames) {
		return false
	}
	return !isExcluded(item, tag)
}

func isExcluded(item *rules.Item, tag *rules.Tag) bool {
	switch {
	case rules.ContainsAnyFold(item.Name, tag.ExcludeNames):
		return true
	case tag.ExcludeItems.Has(item.ID):
		return true
	case tag.ExcludeMods.Has(item.Mod):
		return true
	case item.EditorID != "" && tag.ExcludeEditorIDs.Has(item.EditorID):
		return true
	}
	return false
}

func isGloballyExcluded(item *rules.Item, db *rules.Database) bool {
	g := db.GlobalExcludes
	return g.ExcludeMods.Has(item.Mod) ||
		g.ExcludeItems.Has(item.ID) ||
		rules.ContainsAnyFold(item.Name, g.Phrases)
}
