// Package migrate upgrades database documents written by older schema versions
// to the current shape.
package migrate

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// CurrentSchemaVersion is the schema version produced by Upgrade.
const CurrentSchemaVersion = 2

// RequiredFields must be present at the top level once a document is migrated.
var RequiredFields = []string{
	"schemaVersion",
	"patchVersion",
	"tags",
	"globalExcludes",
	"sourceMods",
	"injectedTags",
	"experimentalLevel",
}

// SchemaError reports a document that cannot be brought to the current schema.
type SchemaError struct {
	Field   string
	Message string
}

func (e *SchemaError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("schema error: %s", e.Message)
	}
	return fmt.Sprintf("schema error at '%s': %s", e.Field, e.Message)
}

type step struct {
	version int
	name    string
	apply   func(doc map[string]any) error
}

// steps run in order; a step only runs when the document is older than its
// version, and every step is a no-op on a document it already rewrote.
var steps = []step{
	{version: 1, name: "inline includes", apply: inlineIncludes},
	{version: 2, name: "rename legacy keys", apply: renameLegacyKeys},
}

// Upgrade applies every pending structural rewrite and stamps the document with
// CurrentSchemaVersion. It does not check for required fields.
func Upgrade(doc map[string]any) (map[string]any, error) {
	if doc == nil {
		return nil, &SchemaError{Message: "document is empty"}
	}
	version, err := SchemaVersion(doc)
	if err != nil {
		return nil, err
	}
	if version > CurrentSchemaVersion {
		return nil, &SchemaError{
			Field:   "schemaVersion",
			Message: fmt.Sprintf("version %d is newer than supported version %d", version, CurrentSchemaVersion),
		}
	}

	for _, s := range steps {
		if version >= s.version {
			continue
		}
		log.Info().Int("from", version).Int("to", s.version).Str("step", s.name).Msg("Migrating database schema")
		if err := s.apply(doc); err != nil {
			return nil, err
		}
		version = s.version
	}
	delete(doc, "CurrentSchemeVersion")
	doc["schemaVersion"] = CurrentSchemaVersion
	return doc, nil
}

// Migrate upgrades the document and then requires every top-level field.
func Migrate(doc map[string]any) (map[string]any, error) {
	doc, err := Upgrade(doc)
	if err != nil {
		return nil, err
	}
	for _, field := range RequiredFields {
		if _, ok := doc[field]; !ok {
			return nil, &SchemaError{Field: field, Message: "required field is missing"}
		}
	}
	return doc, nil
}

// SchemaVersion reads the schema version, accepting the legacy key. A document
// without either key is version 0.
func SchemaVersion(doc map[string]any) (int, error) {
	for _, key := range []string{"schemaVersion", "CurrentSchemeVersion"} {
		raw, ok := doc[key]
		if !ok {
			continue
		}
		v, ok := asInt(raw)
		if !ok {
			return 0, &SchemaError{Field: key, Message: fmt.Sprintf("expected integer, got %T", raw)}
		}
		return v, nil
	}
	return 0, nil
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	}
	return 0, false
}
