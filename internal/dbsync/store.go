package dbsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// DefaultDocumentName is the file name of the local database document.
const DefaultDocumentName = "database.json"

// ErrNotFound is returned by DocumentStore.Load when no document exists yet.
var ErrNotFound = errors.New("database document not found")

// DocumentStore persists the raw database document.
type DocumentStore interface {
	Load(ctx context.Context) (map[string]any, error)
	Save(ctx context.Context, doc map[string]any) error
}

// FileStore keeps the document as indented JSON in Dir.
type FileStore struct {
	Dir  string
	Name string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir, Name: DefaultDocumentName}
}

func (s *FileStore) Path() string {
	name := s.Name
	if name == "" {
		name = DefaultDocumentName
	}
	return filepath.Join(s.Dir, name)
}

func (s *FileStore) Load(ctx context.Context) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading %s: %w", s.Path(), err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", s.Path(), err)
	}
	if doc == nil {
		return nil, fmt.Errorf("decoding %s: document is not an object", s.Path())
	}
	return doc, nil
}

// Save writes the document to a temporary file and renames it into place, so
// readers only ever see a complete document.
func (s *FileStore) Save(ctx context.Context, doc map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", s.Dir, err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding database document: %w", err)
	}

	tmp, err := os.CreateTemp(s.Dir, ".database-*.json")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.Path()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", s.Path(), err)
	}
	return nil
}
