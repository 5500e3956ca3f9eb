// Package store defines the item store the engine reads items from and writes
// overrides to.
package store

import (
	"context"

	"rgehrsitz/tagsync/internal/rules"
)

type Store interface {
	// Enumerate returns every item in its current winning state, overrides
	// from earlier runs included.
	Enumerate(ctx context.Context) ([]rules.Item, error)
	// CreateOverride opens an override copy of item. Changes made through the
	// handle become visible after Commit.
	CreateOverride(ctx context.Context, item rules.Item) (ItemHandle, error)
	// ResolveTagEntity finds the tag entity with this editor id defined by mod.
	ResolveTagEntity(ctx context.Context, editorID string, mod rules.ModID) (rules.TagEntity, bool, error)
	// AddTagEntity registers a synthesized tag entity.
	AddTagEntity(ctx context.Context, entity rules.TagEntity) error
	// LoadOrder lists the active mods, lowest priority first.
	LoadOrder(ctx context.Context) ([]rules.ModID, error)
}

// ItemHandle is a mutable override of one item.
type ItemHandle interface {
	SetEquipCategory(rules.EquipCategory)
	SetAnimation(rules.Category)
	SetTags([]rules.TagEntity)
	AttachScript(rules.Script)
	Commit(ctx context.Context) error
}

// Override is the pending state of an item handle. Backends embed it to share
// the bookkeeping of the setter methods.
type Override struct {
	Item    rules.Item
	Scripts []rules.Script
}

func NewOverride(item rules.Item) *Override {
	item.Tags = append([]rules.TagEntity(nil), item.Tags...)
	item.Scripts = append([]string(nil), item.Scripts...)
	return &Override{Item: item}
}

func (o *Override) SetEquipCategory(c rules.EquipCategory) {
	o.Item.EquipCategory = c
}

func (o *Override) SetAnimation(c rules.Category) {
	o.Item.AnimationCategory = c
}

func (o *Override) SetTags(tags []rules.TagEntity) {
	o.Item.Tags = append([]rules.TagEntity(nil), tags...)
}

func (o *Override) AttachScript(s rules.Script) {
	if o.Item.HasScript(s.Name) {
		return
	}
	o.Item.Scripts = append(o.Item.Scripts, s.Name)
	o.Scripts = append(o.Scripts, s)
}

// Snapshot is a portable dump of an item store, used to seed a backend.
type Snapshot struct {
	LoadOrder []rules.ModID     `json:"loadOrder"`
	Entities  []rules.TagEntity `json:"entities"`
	Items     []rules.Item      `json:"items"`
}
