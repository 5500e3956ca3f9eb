// Package resolve derives the final attributes of a classified item: its tag
// entities, animation category and scripts.
package resolve

import (
	"strings"

	"rgehrsitz/tagsync/internal/rules"
)

const DefaultStripPrefix = "WeapType"

// Resolution is the target state for one item. Each Changed flag is set only
// when the target differs from the item's current state.
type Resolution struct {
	Primary rules.TagKey

	Tags        []rules.TagEntity
	TagsChanged bool

	Equip        rules.EquipCategory
	EquipChanged bool

	Animation        rules.Category
	AnimationChanged bool

	Scripts []rules.Script
}

// Changed reports whether any attribute needs an override.
func (r Resolution) Changed() bool {
	return r.TagsChanged || r.EquipChanged || r.AnimationChanged || len(r.Scripts) > 0
}

type Resolver struct {
	db          *rules.Database
	catalog     Catalog
	loaded      rules.Set[rules.ModID]
	stripPrefix string
}

type Option func(*Resolver)

// WithStripPrefix sets the editor id prefix of existing tags dropped in
// experimental mode.
func WithStripPrefix(prefix string) Option {
	return func(r *Resolver) {
		if prefix != "" {
			r.stripPrefix = prefix
		}
	}
}

func NewResolver(db *rules.Database, catalog Catalog, loadOrder []rules.ModID, opts ...Option) *Resolver {
	r := &Resolver{
		db:          db,
		catalog:     catalog,
		loaded:      rules.NewSet(loadOrder...),
		stripPrefix: DefaultStripPrefix,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve computes the target state of item given its matched tags in
// ascending key order. The first key is the primary tag.
func (r *Resolver) Resolve(item *rules.Item, matched []rules.TagKey) Resolution {
	if len(matched) == 0 {
		return Resolution{}
	}
	res := Resolution{Primary: matched[0]}

	res.Tags = r.resolveTags(item, matched)
	res.TagsChanged = !rules.SameEntities(res.Tags, item.Tags)

	primary := r.db.Tags[res.Primary]
	if primary == nil {
		return res
	}
	// Items without weapon animation data (armor, misc) keep their equip slot.
	if item.AnimationCategory != "" {
		if anim := r.animation(item, primary); anim != "" {
			res.Animation = anim
			res.AnimationChanged = anim != item.AnimationCategory
			if res.AnimationChanged {
				res.Equip, res.EquipChanged = rules.RequiredEquip(anim, item.EquipCategory)
			}
		}
	}
	res.Scripts = r.scripts(item, primary)
	return res
}

func (r *Resolver) resolveTags(item *rules.Item, matched []rules.TagKey) []rules.TagEntity {
	seen := rules.NewSet[rules.EntityKey]()
	var out []rules.TagEntity
	add := func(e rules.TagEntity) {
		if seen.Has(e.Key()) {
			return
		}
		seen.Add(e.Key())
		out = append(out, e)
	}

	strip := r.db.ExperimentalLevel >= 1
	for _, e := range item.Tags {
		if strip && strings.HasPrefix(e.EditorID, r.stripPrefix) {
			continue
		}
		add(e)
	}
	for _, key := range matched {
		for _, e := range r.catalog[key] {
			add(e)
		}
	}
	return out
}

// animation walks the override chain: item, mod, name, default.
func (r *Resolver) animation(item *rules.Item, tag *rules.Tag) rules.Category {
	if tag.IgnoreAnimationMods.Has(item.Mod) {
		return ""
	}
	for _, o := range tag.AnimationByItem {
		if o.Item == item.ID {
			return o.Animation
		}
	}
	for _, o := range tag.AnimationByMod {
		if o.Mod == item.Mod {
			return o.Animation
		}
	}
	for _, o := range tag.AnimationByName {
		if rules.ContainsFold(item.Name, o.Contains) {
			return o.Animation
		}
	}
	return tag.AnimationDefault
}

func (r *Resolver) scripts(item *rules.Item, tag *rules.Tag) []rules.Script {
	var out []rules.Script
	attached := rules.NewSet(item.Scripts...)
	for _, s := range tag.Scripts {
		switch {
		case s.Requires != "" && !r.loaded.Has(s.Requires):
		case s.ExcludeMods.Has(item.Mod), s.ExcludeItems.Has(item.ID):
		case attached.Has(s.Name):
		default:
			attached.Add(s.Name)
			out = append(out, s)
		}
	}
	return out
}
