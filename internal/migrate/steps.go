package migrate

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

var topLevelRenames = map[string]string{
	"DB":               "tags",
	"excludes":         "globalExcludes",
	"sources":          "sourceMods",
	"InjectedKeywords": "injectedTags",
	"exp":              "experimentalLevel",
	"DBVer":            "patchVersion",
}

var tagRenames = map[string]string{
	"include":       "includeItems",
	"exclude":       "excludeNames",
	"excludeMod":    "excludeMods",
	"excludeSource": "excludeSourceMods",
	"excludeEditID": "excludeEditorIDs",
	"keyword":       "keywords",
}

var globalExcludeRenames = map[string]string{
	"excludeMod": "excludeMods",
	"weapons":    "excludeItems",
}

// inlineIncludes turns the flat legacy `includes: {itemID: tagKey}` map into a
// per-tag include list.
func inlineIncludes(doc map[string]any) error {
	rawIncludes, ok := doc["includes"]
	if !ok {
		return nil
	}
	includes, ok := rawIncludes.(map[string]any)
	if !ok {
		return &SchemaError{Field: "includes", Message: fmt.Sprintf("expected object, got %T", rawIncludes)}
	}

	tagsField := "tags"
	if _, ok := doc[tagsField]; !ok {
		tagsField = "DB"
	}
	tags, ok := doc[tagsField].(map[string]any)
	if !ok {
		return &SchemaError{Field: tagsField, Message: "includes present but no tag table to inline them into"}
	}

	for item, rawKey := range includes {
		key, ok := rawKey.(string)
		if !ok {
			return &SchemaError{Field: "includes." + item, Message: fmt.Sprintf("expected tag key, got %T", rawKey)}
		}
		tag, ok := tags[key].(map[string]any)
		if !ok {
			return &SchemaError{Field: "includes." + item, Message: fmt.Sprintf("unknown tag '%s'", key)}
		}
		list, _ := tag["include"].([]any)
		if !containsValue(list, item) {
			list = append(list, item)
		}
		tag["include"] = list
	}
	delete(doc, "includes")
	return nil
}

// renameLegacyKeys moves fields written under their old names to the current
// ones. When both names are present the current one wins.
func renameLegacyKeys(doc map[string]any) error {
	renameKeys(doc, topLevelRenames, "")

	if tags, ok := doc["tags"].(map[string]any); ok {
		for key, rawTag := range tags {
			tag, ok := rawTag.(map[string]any)
			if !ok {
				return &SchemaError{Field: "tags." + key, Message: fmt.Sprintf("expected object, got %T", rawTag)}
			}
			renameKeys(tag, tagRenames, "tags."+key+".")
		}
	}
	if excludes, ok := doc["globalExcludes"].(map[string]any); ok {
		renameKeys(excludes, globalExcludeRenames, "globalExcludes.")
	}
	return nil
}

func renameKeys(m map[string]any, renames map[string]string, prefix string) {
	for from, to := range renames {
		v, ok := m[from]
		if !ok {
			continue
		}
		delete(m, from)
		if _, exists := m[to]; exists {
			log.Warn().Str("legacy", prefix+from).Str("current", prefix+to).Msg("Dropping legacy field shadowed by current field")
			continue
		}
		m[to] = v
	}
}

func containsValue(list []any, v string) bool {
	for _, existing := range list {
		if s, ok := existing.(string); ok && s == v {
			return true
		}
	}
	return false
}
