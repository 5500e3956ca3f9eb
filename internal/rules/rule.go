// Package rules holds the typed rule database and the item model it is
// evaluated against.
package rules

import "sort"

type TagKey string

// Tag is one classification rule: match criteria plus the outputs it derives.
type Tag struct {
	Key               TagKey
	CommonNames       []string
	ExcludeNames      []string
	ExcludeEditorIDs  Set[string]
	ExcludeMods       Set[ModID]
	ExcludeSourceMods Set[ModID]
	IncludeItems      Set[ItemID]
	ExcludeItems      Set[ItemID]
	Keywords          []string // editor ids of the tag entities this tag resolves to

	OutputDescription   string
	AnimationDefault    Category
	AnimationByMod      []ModOverride
	AnimationByName     []NameOverride
	AnimationByItem     []ItemOverride
	IgnoreAnimationMods Set[ModID]

	Scripts []Script
}

type ModOverride struct {
	Mod       ModID
	Animation Category
}

type NameOverride struct {
	Contains  string
	Animation Category
}

type ItemOverride struct {
	Item      ItemID
	Animation Category
}

// Script is a behavior script attached to items of a tag.
type Script struct {
	Name             string
	Requires         ModID
	ExcludeMods      Set[ModID]
	ExcludeItems     Set[ItemID]
	ObjectParams     map[string]ItemID
	ObjectListParams map[string][]ItemID
	FloatParams      map[string]float64
	FloatListParams  map[string][]float64
}

// GlobalExcludes apply to every tag.
type GlobalExcludes struct {
	ExcludeMods  Set[ModID]
	ExcludeItems Set[ItemID]
	Phrases      []string
}

// Database is the fully resolved rule database. It is read-only once built.
type Database struct {
	SchemaVersion     int
	PatchVersion      int
	Tags              map[TagKey]*Tag
	GlobalExcludes    GlobalExcludes
	SourceMods        []ModID
	InjectedTags      map[string]ItemID // entity editor id -> form key
	ExperimentalLevel int

	keys []TagKey
}

// Index caches the canonical tag order. Call it after the last change to Tags.
func (db *Database) Index() {
	db.keys = sortedKeys(db.Tags)
}

// Keys returns tag keys in canonical (ascending) order.
func (db *Database) Keys() []TagKey {
	if db.keys != nil && len(db.keys) == len(db.Tags) {
		return db.keys
	}
	return sortedKeys(db.Tags)
}

func sortedKeys(tags map[TagKey]*Tag) []TagKey {
	keys := make([]TagKey, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
