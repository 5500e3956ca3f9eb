// Package repository turns a migrated database document into the typed,
// read-only rules.Database used for classification.
package repository

import (
	"fmt"
	"sort"

	"rgehrsitz/tagsync/internal/rules"

	"github.com/rs/zerolog/log"
)

// ParseError names the document field that could not be read.
type ParseError struct {
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at '%s': %v", e.Field, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Load parses, validates and optimizes a migrated document.
func Load(doc map[string]any) (*rules.Database, error) {
	db, err := ParseDatabase(doc)
	if err != nil {
		return nil, err
	}
	if err := ValidateDatabase(db); err != nil {
		return nil, err
	}
	return OptimizeDatabase(db), nil
}

// ParseDatabase converts the document tree into a rules.Database. Top-level
// fields are required; absent per-tag collections are empty.
func ParseDatabase(doc map[string]any) (*rules.Database, error) {
	log.Info().Msg("Started parsing database...")
	r := &reader{}

	db := &rules.Database{
		SchemaVersion:     r.integer(r.field(doc, "schemaVersion", ""), "schemaVersion"),
		PatchVersion:      r.integer(r.field(doc, "patchVersion", ""), "patchVersion"),
		ExperimentalLevel: r.integer(r.field(doc, "experimentalLevel", ""), "experimentalLevel"),
		SourceMods:        toIDs[rules.ModID](r.strings(r.field(doc, "sourceMods", ""), "sourceMods")),
		Tags:              make(map[rules.TagKey]*rules.Tag),
		InjectedTags:      make(map[string]rules.ItemID),
	}

	excludes := r.object(r.field(doc, "globalExcludes", ""), "globalExcludes")
	db.GlobalExcludes = rules.GlobalExcludes{
		ExcludeMods:  setOf[rules.ModID](r, excludes, "excludeMods", "globalExcludes"),
		ExcludeItems: setOf[rules.ItemID](r, excludes, "excludeItems", "globalExcludes"),
		Phrases:      r.optStrings(excludes, "phrases", "globalExcludes"),
	}

	injected := r.object(r.field(doc, "injectedTags", ""), "injectedTags")
	for _, name := range sortedKeys(injected) {
		db.InjectedTags[name] = rules.ItemID(r.str(injected[name], "injectedTags."+name))
	}

	tags := r.object(r.field(doc, "tags", ""), "tags")
	for _, key := range sortedKeys(tags) {
		tag := parseTag(r, key, tags[key])
		if r.err != nil {
			break
		}
		db.Tags[tag.Key] = tag
	}

	if r.err != nil {
		return nil, r.err
	}
	log.Info().Int("tags", len(db.Tags)).Int("patchVersion", db.PatchVersion).Msg("Parsed database")
	return db, nil
}

func parseTag(r *reader, key string, raw any) *rules.Tag {
	path := "tags." + key
	m := r.object(raw, path)

	tag := &rules.Tag{
		Key:                 rules.TagKey(key),
		CommonNames:         r.optStrings(m, "commonNames", path),
		ExcludeNames:        r.optStrings(m, "excludeNames", path),
		ExcludeEditorIDs:    setOf[string](r, m, "excludeEditorIDs", path),
		ExcludeMods:         setOf[rules.ModID](r, m, "excludeMods", path),
		ExcludeSourceMods:   setOf[rules.ModID](r, m, "excludeSourceMods", path),
		IncludeItems:        setOf[rules.ItemID](r, m, "includeItems", path),
		ExcludeItems:        setOf[rules.ItemID](r, m, "excludeItems", path),
		IgnoreAnimationMods: setOf[rules.ModID](r, m, "ignoreAnimationMods", path),
		Keywords:            r.optStrings(m, "keywords", path),
		OutputDescription:   r.optString(m, "outputDescription", path),
		AnimationDefault:    rules.Category(r.optString(m, "animationDefault", path)),
	}
	if _, ok := m["keywords"]; !ok {
		tag.Keywords = []string{key}
	}

	for i, o := range r.optObjects(m, "animationByMod", path) {
		p := fmt.Sprintf("%s.animationByMod.%d", path, i)
		tag.AnimationByMod = append(tag.AnimationByMod, rules.ModOverride{
			Mod:       rules.ModID(r.str(r.field(o, "mod", p), p+".mod")),
			Animation: rules.Category(r.str(r.field(o, "animation", p), p+".animation")),
		})
	}
	for i, o := range r.optObjects(m, "animationByName", path) {
		p := fmt.Sprintf("%s.animationByName.%d", path, i)
		tag.AnimationByName = append(tag.AnimationByName, rules.NameOverride{
			Contains:  r.str(r.field(o, "name", p), p+".name"),
			Animation: rules.Category(r.str(r.field(o, "animation", p), p+".animation")),
		})
	}
	for i, o := range r.optObjects(m, "animationByItem", path) {
		p := fmt.Sprintf("%s.animationByItem.%d", path, i)
		tag.AnimationByItem = append(tag.AnimationByItem, rules.ItemOverride{
			Item:      rules.ItemID(r.str(r.field(o, "item", p), p+".item")),
			Animation: rules.Category(r.str(r.field(o, "animation", p), p+".animation")),
		})
	}
	for i, o := range r.optObjects(m, "scripts", path) {
		tag.Scripts = append(tag.Scripts, parseScript(r, o, fmt.Sprintf("%s.scripts.%d", path, i)))
	}
	return tag
}

func parseScript(r *reader, m map[string]any, path string) rules.Script {
	s := rules.Script{
		Name:             r.str(r.field(m, "name", path), path+".name"),
		Requires:         rules.ModID(r.optString(m, "requires", path)),
		ExcludeMods:      setOf[rules.ModID](r, m, "excludeMods", path),
		ExcludeItems:     setOf[rules.ItemID](r, m, "excludeItems", path),
		ObjectParams:     make(map[string]rules.ItemID),
		ObjectListParams: make(map[string][]rules.ItemID),
		FloatParams:      make(map[string]float64),
		FloatListParams:  make(map[string][]float64),
	}
	for name, v := range r.optObject(m, "objectParams", path) {
		s.ObjectParams[name] = rules.ItemID(r.str(v, path+".objectParams."+name))
	}
	for name, v := range r.optObject(m, "objectListParams", path) {
		s.ObjectListParams[name] = toIDs[rules.ItemID](r.strings(v, path+".objectListParams."+name))
	}
	for name, v := range r.optObject(m, "floatParams", path) {
		s.FloatParams[name] = r.number(v, path+".floatParams."+name)
	}
	for name, v := range r.optObject(m, "floatListParams", path) {
		p := path + ".floatListParams." + name
		for i, f := range r.list(v, p) {
			s.FloatListParams[name] = append(s.FloatListParams[name], r.number(f, fmt.Sprintf("%s.%d", p, i)))
		}
	}
	return s
}

// ValidateDatabase rejects rules that would silently misbehave at match time.
func ValidateDatabase(db *rules.Database) error {
	log.Info().Msg("Started validating database...")
	for _, key := range db.Keys() {
		if err := validateTag(db.Tags[key]); err != nil {
			return err
		}
	}
	for i, phrase := range db.GlobalExcludes.Phrases {
		if phrase == "" {
			return &ParseError{Field: fmt.Sprintf("globalExcludes.phrases.%d", i), Err: fmt.Errorf("empty phrase would exclude every item")}
		}
	}
	return nil
}

func validateTag(tag *rules.Tag) error {
	path := "tags." + string(tag.Key)
	if tag.Key == "" {
		return &ParseError{Field: path, Err: fmt.Errorf("tag key cannot be empty")}
	}
	for i, name := range tag.CommonNames {
		if name == "" {
			return &ParseError{Field: fmt.Sprintf("%s.commonNames.%d", path, i), Err: fmt.Errorf("empty name would match every item")}
		}
	}
	for i, name := range tag.ExcludeNames {
		if name == "" {
			return &ParseError{Field: fmt.Sprintf("%s.excludeNames.%d", path, i), Err: fmt.Errorf("empty name would exclude every item")}
		}
	}
	if len(tag.CommonNames) == 0 && len(tag.IncludeItems) == 0 {
		log.Warn().Str("tag", string(tag.Key)).Msg("Tag has no common names and no includes, it can never match")
	}

	if err := validateCategory(tag.AnimationDefault, path+".animationDefault"); err != nil {
		return err
	}
	for i, o := range tag.AnimationByMod {
		if err := validateCategory(o.Animation, fmt.Sprintf("%s.animationByMod.%d", path, i)); err != nil {
			return err
		}
	}
	for i, o := range tag.AnimationByName {
		if o.Contains == "" {
			return &ParseError{Field: fmt.Sprintf("%s.animationByName.%d.name", path, i), Err: fmt.Errorf("name override needs a non-empty name")}
		}
		if err := validateCategory(o.Animation, fmt.Sprintf("%s.animationByName.%d", path, i)); err != nil {
			return err
		}
	}
	for i, o := range tag.AnimationByItem {
		if err := validateCategory(o.Animation, fmt.Sprintf("%s.animationByItem.%d", path, i)); err != nil {
			return err
		}
	}
	for i, s := range tag.Scripts {
		if s.Name == "" {
			return &ParseError{Field: fmt.Sprintf("%s.scripts.%d.name", path, i), Err: fmt.Errorf("script name cannot be empty")}
		}
	}
	return nil
}

func validateCategory(c rules.Category, field string) error {
	if c == "" || rules.IsSupportedCategory(c) {
		return nil
	}
	return &ParseError{Field: field, Err: fmt.Errorf("unsupported animation category '%s'", c)}
}

// reader walks the untyped document and remembers the first error so parsing
// code can read straight through.
type reader struct {
	err error
}

func (r *reader) fail(field string, format string, args ...any) {
	if r.err == nil {
		r.err = &ParseError{Field: field, Err: fmt.Errorf(format, args...)}
	}
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func (r *reader) field(m map[string]any, key, path string) any {
	if r.err != nil {
		return nil
	}
	v, ok := m[key]
	if !ok {
		r.fail(join(path, key), "required field is missing")
		return nil
	}
	return v
}

func (r *reader) object(v any, field string) map[string]any {
	if r.err != nil {
		return nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		r.fail(field, "expected object, got %T", v)
		return nil
	}
	return m
}

func (r *reader) optObject(m map[string]any, key, path string) map[string]any {
	v, ok := m[key]
	if !ok || r.err != nil {
		return nil
	}
	return r.object(v, join(path, key))
}

func (r *reader) list(v any, field string) []any {
	if r.err != nil {
		return nil
	}
	l, ok := v.([]any)
	if !ok {
		r.fail(field, "expected array, got %T", v)
		return nil
	}
	return l
}

func (r *reader) optObjects(m map[string]any, key, path string) []map[string]any {
	v, ok := m[key]
	if !ok || r.err != nil {
		return nil
	}
	field := join(path, key)
	var out []map[string]any
	for i, item := range r.list(v, field) {
		out = append(out, r.object(item, fmt.Sprintf("%s.%d", field, i)))
	}
	return out
}

func (r *reader) str(v any, field string) string {
	if r.err != nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		r.fail(field, "expected string, got %T", v)
	}
	return s
}

func (r *reader) optString(m map[string]any, key, path string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	return r.str(v, join(path, key))
}

func (r *reader) strings(v any, field string) []string {
	l := r.list(v, field)
	out := make([]string, 0, len(l))
	for i, item := range l {
		out = append(out, r.str(item, fmt.Sprintf("%s.%d", field, i)))
	}
	return out
}

func (r *reader) optStrings(m map[string]any, key, path string) []string {
	v, ok := m[key]
	if !ok {
		return []string{}
	}
	return r.strings(v, join(path, key))
}

func (r *reader) number(v any, field string) float64 {
	if r.err != nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	r.fail(field, "expected number, got %T", v)
	return 0
}

func (r *reader) integer(v any, field string) int {
	f := r.number(v, field)
	if r.err == nil && f != float64(int(f)) {
		r.fail(field, "expected integer, got %v", f)
	}
	return int(f)
}

func setOf[T ~string](r *reader, m map[string]any, key, path string) rules.Set[T] {
	return rules.NewSet(toIDs[T](r.optStrings(m, key, path))...)
}

func toIDs[T ~string](values []string) []T {
	out := make([]T, 0, len(values))
	for _, v := range values {
		out = append(out, T(v))
	}
	return out
}

// sortedKeys makes the first reported error independent of map order.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
