package repository

import (
	"rgehrsitz/tagsync/internal/rules"
)

// OptimizeDatabase removes redundant match criteria and caches the canonical
// tag order. It runs once, before the database becomes read-only.
func OptimizeDatabase(db *rules.Database) *rules.Database {
	for _, tag := range db.Tags {
		tag.CommonNames = dedupFolded(tag.CommonNames)
		tag.ExcludeNames = dedupFolded(tag.ExcludeNames)
		tag.Keywords = dedup(tag.Keywords)
	}
	db.GlobalExcludes.Phrases = dedupFolded(db.GlobalExcludes.Phrases)
	db.SourceMods = dedup(db.SourceMods)
	db.Index()
	return db
}

// dedupFolded drops needles that are case-insensitive duplicates of an earlier
// one, and needles that contain an earlier needle, since the shorter one
// already matches everything the longer one does.
func dedupFolded(needles []string) []string {
	out := make([]string, 0, len(needles))
	for _, n := range needles {
		redundant := false
		for _, kept := range out {
			if rules.ContainsFold(n, kept) {
				redundant = true
				break
			}
		}
		if redundant {
			continue
		}
		// a later, shorter needle makes earlier longer ones redundant
		filtered := out[:0]
		for _, kept := range out {
			if !rules.ContainsFold(kept, n) {
				filtered = append(filtered, kept)
			}
		}
		out = append(filtered, n)
	}
	return out
}

func dedup[T comparable](values []T) []T {
	seen := make(map[T]bool, len(values))
	out := make([]T, 0, len(values))
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
