package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"rgehrsitz/tagsync/internal/rules"
	"rgehrsitz/tagsync/internal/store"
)

// Enumerate returns items with their overrides applied, ordered by id. Rows
// are read completely before returning so callers may write while iterating.
func (c *Client) Enumerate(ctx context.Context) ([]rules.Item, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT i.id, i.editor_id, i.name, i.mod,
		       COALESCE(o.tags, i.tags),
		       COALESCE(o.equip, i.equip),
		       COALESCE(o.animation, i.animation),
		       COALESCE(o.scripts, i.scripts),
		       i.templated
		FROM items i
		LEFT JOIN overrides o ON o.item_id = i.id
		ORDER BY i.id`)
	if err != nil {
		return nil, fmt.Errorf("querying items: %w", err)
	}
	defer rows.Close()

	var items []rules.Item
	for rows.Next() {
		var (
			it               rules.Item
			tags, scripts    string
			equip, animation string
			templated        int
		)
		if err := rows.Scan(&it.ID, &it.EditorID, &it.Name, &it.Mod, &tags, &equip, &animation, &scripts, &templated); err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		if err := json.Unmarshal([]byte(tags), &it.Tags); err != nil {
			return nil, fmt.Errorf("decoding tags of %s: %w", it.ID, err)
		}
		if err := json.Unmarshal([]byte(scripts), &it.Scripts); err != nil {
			return nil, fmt.Errorf("decoding scripts of %s: %w", it.ID, err)
		}
		if len(it.Tags) == 0 {
			it.Tags = nil
		}
		if len(it.Scripts) == 0 {
			it.Scripts = nil
		}
		it.EquipCategory = rules.EquipCategory(equip)
		it.AnimationCategory = rules.Category(animation)
		it.Templated = templated != 0
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating items: %w", err)
	}
	return items, nil
}

func putItem(ctx context.Context, ex execer, it rules.Item) error {
	tags, scripts, err := encodeLists(it)
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx, `
		INSERT INTO items (id, editor_id, name, mod, tags, equip, animation, scripts, templated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			editor_id = excluded.editor_id,
			name = excluded.name,
			mod = excluded.mod,
			tags = excluded.tags,
			equip = excluded.equip,
			animation = excluded.animation,
			scripts = excluded.scripts,
			templated = excluded.templated`,
		it.ID, it.EditorID, it.Name, it.Mod, tags, it.EquipCategory, it.AnimationCategory, scripts, boolToInt(it.Templated))
	if err != nil {
		return fmt.Errorf("upserting item %s: %w", it.ID, err)
	}
	return nil
}

func (c *Client) CreateOverride(ctx context.Context, item rules.Item) (store.ItemHandle, error) {
	var one int
	err := c.db.QueryRowContext(ctx, `SELECT 1 FROM items WHERE id = ?`, item.ID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("unknown item %s", item.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("looking up item %s: %w", item.ID, err)
	}
	return &handle{Override: store.NewOverride(item), c: c}, nil
}

// AttachedScripts returns the scripts attached through overrides, with their
// properties.
func (c *Client) AttachedScripts(ctx context.Context, id rules.ItemID) ([]ScriptRecord, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT name, params FROM override_scripts WHERE item_id = ? ORDER BY name`, id)
	if err != nil {
		return nil, fmt.Errorf("querying scripts: %w", err)
	}
	defer rows.Close()

	var out []ScriptRecord
	for rows.Next() {
		var name, params string
		if err := rows.Scan(&name, &params); err != nil {
			return nil, fmt.Errorf("scanning script: %w", err)
		}
		rec := ScriptRecord{Name: name}
		if err := json.Unmarshal([]byte(params), &rec.Properties); err != nil {
			return nil, fmt.Errorf("decoding properties of %s: %w", name, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ScriptRecord is an attached script and its property values.
type ScriptRecord struct {
	Name       string
	Properties ScriptProperties
}

type ScriptProperties struct {
	Object     map[string]rules.ItemID   `json:"object,omitempty"`
	ObjectList map[string][]rules.ItemID `json:"objectList,omitempty"`
	Float      map[string]float64        `json:"float,omitempty"`
	FloatList  map[string][]float64      `json:"floatList,omitempty"`
}

type handle struct {
	*store.Override
	c *Client
}

// Commit writes the override and its new scripts in one transaction.
func (h *handle) Commit(ctx context.Context) error {
	tags, scripts, err := encodeLists(h.Item)
	if err != nil {
		return err
	}

	tx, err := h.c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO overrides (item_id, tags, equip, animation, scripts)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(item_id) DO UPDATE SET
			tags = excluded.tags,
			equip = excluded.equip,
			animation = excluded.animation,
			scripts = excluded.scripts,
			updated_at = datetime('now')`,
		h.Item.ID, tags, h.Item.EquipCategory, h.Item.AnimationCategory, scripts)
	if err != nil {
		return fmt.Errorf("writing override %s: %w", h.Item.ID, err)
	}

	for _, s := range h.Scripts {
		params, err := json.Marshal(ScriptProperties{
			Object:     s.ObjectParams,
			ObjectList: s.ObjectListParams,
			Float:      s.FloatParams,
			FloatList:  s.FloatListParams,
		})
		if err != nil {
			return fmt.Errorf("encoding properties of %s: %w", s.Name, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO override_scripts (item_id, name, params) VALUES (?, ?, ?)
			ON CONFLICT(item_id, name) DO NOTHING`,
			h.Item.ID, s.Name, string(params))
		if err != nil {
			return fmt.Errorf("attaching %s to %s: %w", s.Name, h.Item.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing override %s: %w", h.Item.ID, err)
	}
	return nil
}

func encodeLists(it rules.Item) (string, string, error) {
	tags := it.Tags
	if tags == nil {
		tags = []rules.TagEntity{}
	}
	scripts := it.Scripts
	if scripts == nil {
		scripts = []string{}
	}
	t, err := json.Marshal(tags)
	if err != nil {
		return "", "", fmt.Errorf("encoding tags of %s: %w", it.ID, err)
	}
	s, err := json.Marshal(scripts)
	if err != nil {
		return "", "", fmt.Errorf("encoding scripts of %s: %w", it.ID, err)
	}
	return string(t), string(s), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
