package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"rgehrsitz/tagsync/internal/rules"
	"rgehrsitz/tagsync/internal/store"
)

func (c *Client) ResolveTagEntity(ctx context.Context, editorID string, mod rules.ModID) (rules.TagEntity, bool, error) {
	e := rules.TagEntity{EditorID: editorID, Mod: mod}
	err := c.db.QueryRowContext(ctx,
		`SELECT id FROM tag_entities WHERE editor_id = ? AND mod = ? ORDER BY id LIMIT 1`,
		editorID, mod).Scan(&e.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return rules.TagEntity{}, false, nil
	}
	if err != nil {
		return rules.TagEntity{}, false, fmt.Errorf("resolving tag entity %s: %w", editorID, err)
	}
	return e, true, nil
}

// AddTagEntity registers a synthesized entity. Adding an identical entity
// twice is a no-op.
func (c *Client) AddTagEntity(ctx context.Context, entity rules.TagEntity) error {
	return putTagEntity(ctx, c.db, entity, true)
}

func putTagEntity(ctx context.Context, ex execer, entity rules.TagEntity, synthesized bool) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO tag_entities (id, mod, editor_id, synthesized) VALUES (?, ?, ?, ?)
		ON CONFLICT(id, mod) DO UPDATE SET editor_id = excluded.editor_id`,
		entity.ID, entity.Mod, entity.EditorID, boolToInt(synthesized))
	if err != nil {
		return fmt.Errorf("adding tag entity %s: %w", entity.EditorID, err)
	}
	return nil
}

func (c *Client) LoadOrder(ctx context.Context) ([]rules.ModID, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT mod FROM load_order ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("querying load order: %w", err)
	}
	defer rows.Close()

	var mods []rules.ModID
	for rows.Next() {
		var m rules.ModID
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("scanning load order: %w", err)
		}
		mods = append(mods, m)
	}
	return mods, rows.Err()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Import replaces the load order and upserts the entities and items of a
// snapshot in one transaction. Existing overrides are kept.
func (c *Client) Import(ctx context.Context, snap store.Snapshot) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM load_order`); err != nil {
		return fmt.Errorf("clearing load order: %w", err)
	}
	for i, m := range snap.LoadOrder {
		if _, err := tx.ExecContext(ctx, `INSERT INTO load_order (position, mod) VALUES (?, ?)`, i, m); err != nil {
			return fmt.Errorf("writing load order: %w", err)
		}
	}
	for _, e := range snap.Entities {
		if err := putTagEntity(ctx, tx, e, false); err != nil {
			return err
		}
	}
	for _, it := range snap.Items {
		if err := putItem(ctx, tx, it); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing import: %w", err)
	}
	return nil
}
