// Package memory is an in-process item store.
package memory

import (
	"context"
	"fmt"
	"sort"

	"rgehrsitz/tagsync/internal/rules"
	"rgehrsitz/tagsync/internal/store"
)

var _ store.Store = (*Store)(nil)

// Store keeps items, tag entities and overrides in maps.
type Store struct {
	items     map[rules.ItemID]rules.Item
	overrides map[rules.ItemID]rules.Item
	scripts   map[rules.ItemID][]rules.Script
	entities  []rules.TagEntity
	loadOrder []rules.ModID

	// OverrideCount counts CreateOverride calls per item.
	OverrideCount map[rules.ItemID]int
}

func New(loadOrder ...rules.ModID) *Store {
	return &Store{
		items:         make(map[rules.ItemID]rules.Item),
		overrides:     make(map[rules.ItemID]rules.Item),
		scripts:       make(map[rules.ItemID][]rules.Script),
		loadOrder:     loadOrder,
		OverrideCount: make(map[rules.ItemID]int),
	}
}

// FromSnapshot builds a store holding the contents of snap.
func FromSnapshot(snap store.Snapshot) *Store {
	s := New(snap.LoadOrder...)
	s.entities = append(s.entities, snap.Entities...)
	for _, it := range snap.Items {
		s.AddItem(it)
	}
	return s
}

func (s *Store) AddItem(item rules.Item) {
	s.items[item.ID] = item
}

// Item returns the winning state of an item.
func (s *Store) Item(id rules.ItemID) (rules.Item, bool) {
	if o, ok := s.overrides[id]; ok {
		return o, true
	}
	it, ok := s.items[id]
	return it, ok
}

// AttachedScripts returns the full script definitions attached to an item.
func (s *Store) AttachedScripts(id rules.ItemID) []rules.Script {
	return s.scripts[id]
}

func (s *Store) Entities() []rules.TagEntity {
	return append([]rules.TagEntity(nil), s.entities...)
}

func (s *Store) Enumerate(ctx context.Context) ([]rules.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ids := make([]rules.ItemID, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]rules.Item, 0, len(ids))
	for _, id := range ids {
		it, _ := s.Item(id)
		out = append(out, it)
	}
	return out, nil
}

func (s *Store) CreateOverride(ctx context.Context, item rules.Item) (store.ItemHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, ok := s.items[item.ID]; !ok {
		return nil, fmt.Errorf("unknown item %s", item.ID)
	}
	s.OverrideCount[item.ID]++
	return &handle{Override: store.NewOverride(item), s: s}, nil
}

func (s *Store) ResolveTagEntity(ctx context.Context, editorID string, mod rules.ModID) (rules.TagEntity, bool, error) {
	if err := ctx.Err(); err != nil {
		return rules.TagEntity{}, false, err
	}
	for _, e := range s.entities {
		if e.EditorID == editorID && e.Mod == mod {
			return e, true, nil
		}
	}
	return rules.TagEntity{}, false, nil
}

func (s *Store) AddTagEntity(ctx context.Context, entity rules.TagEntity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for i, e := range s.entities {
		if e.Key() == entity.Key() {
			s.entities[i] = entity
			return nil
		}
	}
	s.entities = append(s.entities, entity)
	return nil
}

func (s *Store) LoadOrder(ctx context.Context) ([]rules.ModID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]rules.ModID(nil), s.loadOrder...), nil
}

type handle struct {
	*store.Override
	s *Store
}

func (h *handle) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.s.overrides[h.Item.ID] = h.Item
	h.s.scripts[h.Item.ID] = append(h.s.scripts[h.Item.ID], h.Scripts...)
	return nil
}
