package dbsync

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"rgehrsitz/tagsync/pkg/patch"

	"github.com/rs/zerolog/log"
)

// OverlaySuffix marks local patch files applied on top of the synced database.
const OverlaySuffix = "_SWK.json"

// ApplyOverlays applies every local overlay patch in dir, in file name order, to
// the in-memory document. Overlays are never persisted. A failing overlay is
// logged and skipped as a whole.
func ApplyOverlays(doc map[string]any, dir string) (map[string]any, []string, error) {
	if dir == "" {
		return doc, nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return doc, nil, nil
		}
		return nil, nil, fmt.Errorf("reading overlay dir %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), OverlaySuffix) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var applied []string
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			log.Warn().Err(err).Str("overlay", name).Msg("Skipping unreadable overlay")
			continue
		}
		p, err := patch.Decode(data)
		if err != nil {
			log.Warn().Err(err).Str("overlay", name).Msg("Skipping malformed overlay")
			continue
		}
		next, err := p.ApplyTree(doc)
		if err != nil {
			log.Warn().Err(err).Str("overlay", name).Msg("Skipping overlay that failed to apply")
			continue
		}
		log.Info().Str("overlay", name).Msg("Applied data overlay")
		doc = next
		applied = append(applied, name)
	}
	return doc, applied, nil
}
