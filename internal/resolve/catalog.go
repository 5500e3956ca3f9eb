package resolve

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"rgehrsitz/tagsync/internal/rules"
	"rgehrsitz/tagsync/internal/store"

	"github.com/rs/zerolog/log"
)

// Catalog maps each tag to the concrete tag entities it resolves to.
type Catalog map[rules.TagKey][]rules.TagEntity

// BuildCatalog resolves every tag's keywords against the source mods present in
// the load order. Injected tags not provided by any source are synthesized and,
// unless dryRun is set, registered with the store.
func BuildCatalog(ctx context.Context, db *rules.Database, st store.Store, dryRun bool) (Catalog, error) {
	loadOrder, err := st.LoadOrder(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading load order: %w", err)
	}
	loaded := rules.NewSet(loadOrder...)

	catalog := make(Catalog, len(db.Tags))
	for _, key := range db.Keys() {
		tag := db.Tags[key]
		catalog[key] = nil
		for _, src := range db.SourceMods {
			if !loaded.Has(src) || tag.ExcludeSourceMods.Has(src) {
				continue
			}
			for _, kw := range tag.Keywords {
				entity, ok, err := st.ResolveTagEntity(ctx, kw, src)
				if err != nil {
					return nil, fmt.Errorf("resolving %s in %s: %w", kw, src, err)
				}
				if !ok {
					continue
				}
				log.Debug().Str("tag", string(key)).Str("entity", entity.EditorID).Str("mod", string(src)).Msg("Resolved tag entity")
				catalog.add(key, entity)
			}
		}
	}

	if err := catalog.inject(ctx, db, st, dryRun); err != nil {
		return nil, err
	}
	return catalog, nil
}

func (c Catalog) inject(ctx context.Context, db *rules.Database, st store.Store, dryRun bool) error {
	names := make([]string, 0, len(db.InjectedTags))
	for name := range db.InjectedTags {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		entity, err := ParseEntity(name, db.InjectedTags[name])
		if err != nil {
			log.Warn().Err(err).Str("entity", name).Msg("Skipping injected tag")
			continue
		}

		users := tagsUsing(db, name)
		if c.provides(users, entity.Key()) {
			continue
		}
		if !dryRun {
			if err := st.AddTagEntity(ctx, entity); err != nil {
				return fmt.Errorf("injecting %s: %w", name, err)
			}
		}
		log.Info().Bool("dryRun", dryRun).Str("entity", name).Str("id", entity.ID).Str("mod", string(entity.Mod)).Msg("Injected tag entity")
		for _, key := range users {
			c.add(key, entity)
		}
	}
	return nil
}

func (c Catalog) add(key rules.TagKey, entity rules.TagEntity) {
	for _, e := range c[key] {
		if e.Key() == entity.Key() {
			return
		}
	}
	c[key] = append(c[key], entity)
}

func (c Catalog) provides(keys []rules.TagKey, want rules.EntityKey) bool {
	for _, key := range keys {
		for _, e := range c[key] {
			if e.Key() == want {
				return true
			}
		}
	}
	return false
}

func tagsUsing(db *rules.Database, editorID string) []rules.TagKey {
	var keys []rules.TagKey
	for _, key := range db.Keys() {
		for _, kw := range db.Tags[key].Keywords {
			if kw == editorID {
				keys = append(keys, key)
				break
			}
		}
	}
	return keys
}

// ParseEntity builds a tag entity from a form key of the form "ID:Mod".
func ParseEntity(editorID string, formKey rules.ItemID) (rules.TagEntity, error) {
	id, mod, ok := strings.Cut(string(formKey), ":")
	if !ok || id == "" || mod == "" {
		return rules.TagEntity{}, fmt.Errorf("invalid form key %q", formKey)
	}
	return rules.TagEntity{ID: id, EditorID: editorID, Mod: rules.ModID(mod)}, nil
}
