// Package dbsync brings the local rule database up to date by applying the
// remote patch manifest in order, one persisted patch at a time.
package dbsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"rgehrsitz/tagsync/internal/migrate"
	"rgehrsitz/tagsync/pkg/patch"

	"github.com/rs/zerolog/log"
)

// NetworkError reports a manifest or patch that could not be downloaded.
// Synchronization stops but the run continues with the persisted database.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// PatchApplyError reports a patch that was malformed or failed to apply.
// Nothing of that patch is persisted.
type PatchApplyError struct {
	Index int
	URL   string
	Err   error
}

func (e *PatchApplyError) Error() string {
	return fmt.Sprintf("applying patch %d (%s): %v", e.Index, e.URL, e.Err)
}

func (e *PatchApplyError) Unwrap() error {
	return e.Err
}

// Result describes one synchronization run.
type Result struct {
	StartVersion int
	Version      int
	Applied      int
	Document     map[string]any
	// Err is the recoverable failure that stopped the loop early, if any.
	Err error
}

// Synchronizer owns the local document for the duration of a sync.
type Synchronizer struct {
	fetcher Fetcher
	store   DocumentStore
}

func New(fetcher Fetcher, store DocumentStore) *Synchronizer {
	return &Synchronizer{fetcher: fetcher, store: store}
}

// Sync applies every manifest entry from the document's patchVersion onward.
// Download and apply failures end the loop and are reported in Result.Err; the
// returned error is reserved for an unreadable local document or a failed save.
// The document is kept in the shape the feed writes; migration happens on load.
func (s *Synchronizer) Sync(ctx context.Context, manifestURL string) (*Result, error) {
	doc, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	start, err := PatchVersion(doc)
	if err != nil {
		return nil, err
	}

	res := &Result{StartVersion: start, Version: start, Document: doc}
	log.Info().Int("patchVersion", start).Str("manifest", manifestURL).Msg("Started synchronizing database...")

	manifest, err := s.fetchManifest(ctx, manifestURL)
	if err != nil {
		res.Err = err
		log.Warn().Err(err).Msg("Failed to download patch manifest, keeping local database")
		return res, nil
	}
	if start > len(manifest) {
		log.Warn().Int("patchVersion", start).Int("manifestLength", len(manifest)).Msg("Local database is ahead of the manifest")
		return res, nil
	}

	for i := start; i < len(manifest); i++ {
		url := manifest[i]
		log.Info().Int("index", i).Str("url", url).Msg("Downloading patch")

		next, err := s.applyOne(ctx, res.Document, i, url)
		if err != nil {
			res.Err = err
			logFailure(err)
			return res, nil
		}
		if err := s.store.Save(ctx, next); err != nil {
			return res, fmt.Errorf("persisting patch %d: %w", i, err)
		}
		res.Document = next
		res.Version = i + 1
		res.Applied++
		log.Info().Int("index", i).Int("patchVersion", res.Version).Msg("Applied patch")
	}

	return res, nil
}

func (s *Synchronizer) load(ctx context.Context) (map[string]any, error) {
	doc, err := s.store.Load(ctx)
	if errors.Is(err, ErrNotFound) {
		log.Info().Msg("No local database, starting from patch 0")
		return map[string]any{"patchVersion": 0}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading local database: %w", err)
	}
	return doc, nil
}

func (s *Synchronizer) fetchManifest(ctx context.Context, url string) ([]string, error) {
	body, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	var manifest []string
	if err := json.Unmarshal(body, &manifest); err != nil {
		return nil, &NetworkError{URL: url, Err: fmt.Errorf("invalid manifest: %w", err)}
	}
	return manifest, nil
}

// applyOne returns the document with patch i applied. doc is left untouched.
func (s *Synchronizer) applyOne(ctx context.Context, doc map[string]any, i int, url string) (map[string]any, error) {
	body, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	p, err := patch.Decode(body)
	if err != nil {
		return nil, &PatchApplyError{Index: i, URL: url, Err: err}
	}
	next, err := p.ApplyTree(doc)
	if err != nil {
		return nil, &PatchApplyError{Index: i, URL: url, Err: err}
	}
	if fmt.Sprint(next["schemaVersion"]) != fmt.Sprint(doc["schemaVersion"]) {
		return nil, &PatchApplyError{Index: i, URL: url, Err: errors.New("patch must not change schemaVersion")}
	}
	next[versionKey(next)] = i + 1
	return next, nil
}

func logFailure(err error) {
	var applyErr *patch.ApplyError
	if errors.As(err, &applyErr) {
		log.Error().
			Err(applyErr.Err).
			Int("operation", applyErr.Index).
			Str("op", string(applyErr.Op)).
			Str("path", applyErr.Path).
			Msg("Patch failed, stopping synchronization")
		return
	}
	log.Error().Err(err).Msg("Patch failed, stopping synchronization")
}

// legacyVersionKey is the patch counter of documents written by older feeds.
const legacyVersionKey = "DBVer"

// versionKey names the patch counter field the document already uses.
func versionKey(doc map[string]any) string {
	if _, ok := doc["patchVersion"]; !ok {
		if _, legacy := doc[legacyVersionKey]; legacy {
			return legacyVersionKey
		}
	}
	return "patchVersion"
}

// PatchVersion reads the document's patch counter, accepting the legacy key.
// A missing counter is 0.
func PatchVersion(doc map[string]any) (int, error) {
	key := versionKey(doc)
	raw, ok := doc[key]
	if !ok {
		return 0, nil
	}
	var v int
	switch n := raw.(type) {
	case float64:
		v = int(n)
		if float64(v) != n {
			return 0, &migrate.SchemaError{Field: key, Message: "expected integer"}
		}
	case int:
		v = n
	default:
		return 0, &migrate.SchemaError{Field: key, Message: fmt.Sprintf("expected integer, got %T", raw)}
	}
	if v < 0 {
		return 0, &migrate.SchemaError{Field: key, Message: "must not be negative"}
	}
	return v, nil
}
