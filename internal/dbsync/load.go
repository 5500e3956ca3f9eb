package dbsync

import (
	"context"
	"errors"
	"fmt"

	"rgehrsitz/tagsync/internal/migrate"
	"rgehrsitz/tagsync/internal/repository"
	"rgehrsitz/tagsync/internal/rules"

	"github.com/rs/zerolog/log"
)

// LoadDatabase reads the persisted document, applies the local overlays in
// overlayDir and builds the typed rule database. The stored document is not
// modified.
func LoadDatabase(ctx context.Context, store DocumentStore, overlayDir string) (*rules.Database, error) {
	doc, err := store.Load(ctx)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("no local database, run sync first: %w", err)
	}
	if err != nil {
		return nil, err
	}
	doc, err = migrate.Upgrade(doc)
	if err != nil {
		return nil, err
	}
	doc, applied, err := ApplyOverlays(doc, overlayDir)
	if err != nil {
		return nil, err
	}
	doc, err = migrate.Migrate(doc)
	if err != nil {
		return nil, err
	}
	db, err := repository.Load(doc)
	if err != nil {
		return nil, err
	}
	log.Info().
		Int("patchVersion", db.PatchVersion).
		Int("tags", len(db.Tags)).
		Int("overlays", len(applied)).
		Msg("Loaded rule database")
	return db, nil
}

// MigrateStored upgrades the persisted document to the current schema and
// saves it when anything changed. It returns the version it started from.
func MigrateStored(ctx context.Context, store DocumentStore) (int, error) {
	doc, err := store.Load(ctx)
	if err != nil {
		return 0, err
	}
	from, err := migrate.SchemaVersion(doc)
	if err != nil {
		return 0, err
	}
	doc, err = migrate.Migrate(doc)
	if err != nil {
		return from, err
	}
	if from == migrate.CurrentSchemaVersion {
		return from, nil
	}
	if err := store.Save(ctx, doc); err != nil {
		return from, fmt.Errorf("saving migrated database: %w", err)
	}
	log.Info().Int("from", from).Int("to", migrate.CurrentSchemaVersion).Msg("Migrated database")
	return from, nil
}
