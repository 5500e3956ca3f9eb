// Package runtime runs the classification pass over every item in a store.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"rgehrsitz/tagsync/internal/classify"
	"rgehrsitz/tagsync/internal/resolve"
	"rgehrsitz/tagsync/internal/rules"
	"rgehrsitz/tagsync/internal/store"

	"github.com/rs/zerolog/log"
)

// ErrTemplated marks items that inherit their data from a template record.
var ErrTemplated = errors.New("templated item")

// Runner applies a rule database to the items of a store.
type Runner struct {
	store store.Store
	db    *rules.Database
	opts  []resolve.Option

	// DryRun computes changes without writing anything to the store.
	DryRun bool
}

// ItemError reports a problem with a single item. It never aborts a run.
type ItemError struct {
	Item    rules.ItemID
	Message string
	Err     error
}

func (e *ItemError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("item %s: %s: %v", e.Item, e.Message, e.Err)
	}
	return fmt.Sprintf("item %s: %s", e.Item, e.Message)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

// Report summarizes a run.
type Report struct {
	Scanned    int
	Matched    int
	Overridden int
	Skipped    int

	TagChanges       int
	EquipChanges     int
	AnimationChanges int
	ScriptsAttached  int

	Errors []*ItemError
}

// Changes is the total number of attribute changes made.
func (r *Report) Changes() int {
	return r.TagChanges + r.EquipChanges + r.AnimationChanges + r.ScriptsAttached
}

func NewRunner(st store.Store, db *rules.Database, opts ...resolve.Option) *Runner {
	return &Runner{store: st, db: db, opts: opts}
}

// Run classifies every item and writes at most one override per item. Store
// failures while enumerating abort the run; failures on one item are recorded
// in the report.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	if r.db.ExperimentalLevel > 0 {
		log.Warn().Int("level", r.db.ExperimentalLevel).Msg("Running with experimental mode")
	}

	catalog, err := resolve.BuildCatalog(ctx, r.db, r.store, r.DryRun)
	if err != nil {
		return nil, fmt.Errorf("building tag catalog: %w", err)
	}
	loadOrder, err := r.store.LoadOrder(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading load order: %w", err)
	}
	resolver := resolve.NewResolver(r.db, catalog, loadOrder, r.opts...)

	items, err := r.store.Enumerate(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerating items: %w", err)
	}

	report := &Report{}
	log.Info().Int("items", len(items)).Int("tags", len(r.db.Tags)).Msg("Started classification run")
	for i := range items {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Scanned++
		if err := r.step(ctx, resolver, &items[i], report); err != nil {
			report.Skipped++
			report.Errors = append(report.Errors, err)
			if errors.Is(err, ErrTemplated) {
				log.Debug().Str("item", string(err.Item)).Msg("Skipping templated item")
				continue
			}
			log.Warn().Err(err).Msg("Skipping item")
		}
	}

	log.Info().
		Int("scanned", report.Scanned).
		Int("matched", report.Matched).
		Int("overridden", report.Overridden).
		Int("skipped", report.Skipped).
		Int("changes", report.Changes()).
		Msg("Finished classification run")
	return report, nil
}

func (r *Runner) step(ctx context.Context, resolver *resolve.Resolver, item *rules.Item, report *Report) (ierr *ItemError) {
	defer func() {
		if rec := recover(); rec != nil {
			ierr = &ItemError{Item: item.ID, Message: fmt.Sprint(rec)}
		}
	}()

	if err := validate(item); err != nil {
		return err
	}

	matched := classify.MatchTags(item, r.db)
	if len(matched) == 0 {
		return nil
	}
	report.Matched++
	log.Debug().
		Str("item", string(item.ID)).
		Str("name", item.Name).
		Str("matches", joinKeys(matched)).
		Str("is", r.describe(matched)).
		Msg("Matched item")

	res := resolver.Resolve(item, matched)
	if !res.Changed() {
		return nil
	}
	report.count(res)
	if r.DryRun {
		return nil
	}

	h, err := r.store.CreateOverride(ctx, *item)
	if err != nil {
		return &ItemError{Item: item.ID, Message: "creating override", Err: err}
	}
	if res.EquipChanged {
		h.SetEquipCategory(res.Equip)
		log.Debug().Str("item", string(item.ID)).Str("equip", string(res.Equip)).Msg("Setting equip category")
	}
	if res.AnimationChanged {
		h.SetAnimation(res.Animation)
		log.Debug().Str("item", string(item.ID)).Str("animation", string(res.Animation)).Msg("Setting animation type")
	}
	if res.TagsChanged {
		h.SetTags(res.Tags)
		log.Debug().Str("item", string(item.ID)).Int("tags", len(res.Tags)).Msg("Setting tags")
	}
	for _, s := range res.Scripts {
		h.AttachScript(s)
		log.Debug().Str("item", string(item.ID)).Str("script", s.Name).Msg("Attaching script")
	}
	if err := h.Commit(ctx); err != nil {
		return &ItemError{Item: item.ID, Message: "committing override", Err: err}
	}
	report.Overridden++
	return nil
}

func (rep *Report) count(res resolve.Resolution) {
	if res.TagsChanged {
		rep.TagChanges++
	}
	if res.EquipChanged {
		rep.EquipChanges++
	}
	if res.AnimationChanged {
		rep.AnimationChanges++
	}
	rep.ScriptsAttached += len(res.Scripts)
}

func validate(item *rules.Item) *ItemError {
	switch {
	case item.ID == "":
		return &ItemError{Item: item.ID, Message: "missing id"}
	case item.Mod == "":
		return &ItemError{Item: item.ID, Message: "missing mod"}
	case item.Templated:
		return &ItemError{Item: item.ID, Message: "skipped", Err: ErrTemplated}
	}
	return nil
}

func (r *Runner) describe(keys []rules.TagKey) string {
	var parts []string
	for _, k := range keys {
		if d := r.db.Tags[k].OutputDescription; d != "" {
			parts = append(parts, d)
		}
	}
	return strings.Join(parts, " & ")
}

func joinKeys(keys []rules.TagKey) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = string(k)
	}
	return strings.Join(parts, ",")
}
