package sqlite

import (
	"context"
	"fmt"
)

func (c *Client) EnsureSchema(ctx context.Context) error {
	ddl := `
	CREATE TABLE IF NOT EXISTS load_order (
		position INTEGER PRIMARY KEY,
		mod      TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS tag_entities (
		id          TEXT NOT NULL,
		mod         TEXT NOT NULL,
		editor_id   TEXT NOT NULL,
		synthesized INTEGER DEFAULT 0,
		PRIMARY KEY (id, mod)
	);

	CREATE TABLE IF NOT EXISTS items (
		id        TEXT PRIMARY KEY,
		editor_id TEXT DEFAULT '',
		name      TEXT DEFAULT '',
		mod       TEXT NOT NULL,
		tags      TEXT DEFAULT '[]',
		equip     TEXT DEFAULT '',
		animation TEXT DEFAULT '',
		scripts   TEXT DEFAULT '[]',
		templated INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS overrides (
		item_id    TEXT PRIMARY KEY REFERENCES items(id) ON DELETE CASCADE,
		tags       TEXT NOT NULL,
		equip      TEXT NOT NULL,
		animation  TEXT NOT NULL,
		scripts    TEXT NOT NULL,
		updated_at TEXT DEFAULT (datetime('now'))
	);

	CREATE TABLE IF NOT EXISTS override_scripts (
		item_id TEXT NOT NULL REFERENCES overrides(item_id) ON DELETE CASCADE,
		name    TEXT NOT NULL,
		params  TEXT DEFAULT '{}',
		PRIMARY KEY (item_id, name)
	);

	CREATE INDEX IF NOT EXISTS idx_tag_entities_editor_mod ON tag_entities (editor_id, mod);
	CREATE INDEX IF NOT EXISTS idx_items_mod ON items (mod);
	`
	if _, err := c.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
