package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"rgehrsitz/tagsync/internal/repository"
	"rgehrsitz/tagsync/internal/rules"
	"rgehrsitz/tagsync/internal/store"
	"rgehrsitz/tagsync/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rapierDatabaseJSON = `{
    "schemaVersion": 2,
    "patchVersion": 3,
    "experimentalLevel": 0,
    "sourceMods": ["Keywords.esp"],
    "injectedTags": {},
    "globalExcludes": {"excludeMods": [], "excludeItems": [], "phrases": ["skin"]},
    "tags": {
        "Rapier": {
            "commonNames": ["rapier"],
            "keywords": ["WeapTypeRapier"],
            "outputDescription": "a rapier",
            "animationDefault": "OneHandSword",
            "scripts": [{"name": "RapierParry", "floatParams": {"Chance": 0.3}}]
        },
        "Greatsword": {
            "commonNames": ["greatsword"],
            "keywords": ["WeapTypeGreatsword"],
            "animationDefault": "TwoHandSword"
        }
    }
}`

var (
	vendor     = rules.TagEntity{ID: "08F958", EditorID: "VendorItemWeapon", Mod: "Skyrim.esm"}
	rapierKW   = rules.TagEntity{ID: "000801", EditorID: "WeapTypeRapier", Mod: "Keywords.esp"}
	greatKW    = rules.TagEntity{ID: "000802", EditorID: "WeapTypeGreatsword", Mod: "Keywords.esp"}
	steelRapID = rules.ItemID("000D1F:Blades.esp")
)

func loadDB(t *testing.T) *rules.Database {
	t.Helper()
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(rapierDatabaseJSON), &doc))
	db, err := repository.Load(doc)
	require.NoError(t, err)
	return db
}

func newStore(items ...rules.Item) *memory.Store {
	return memory.FromSnapshot(store.Snapshot{
		LoadOrder: []rules.ModID{"Skyrim.esm", "Keywords.esp", "Blades.esp"},
		Entities:  []rules.TagEntity{vendor, rapierKW, greatKW},
		Items:     items,
	})
}

func steelRapier() rules.Item {
	return rules.Item{
		ID:                steelRapID,
		EditorID:          "BladesSteelRapier",
		Name:              "Steel Rapier",
		Mod:               "Blades.esp",
		Tags:              []rules.TagEntity{vendor},
		EquipCategory:     rules.EquipEitherHand,
		AnimationCategory: rules.CategoryOneHandDagger,
	}
}

func TestRunner_SteelRapierEndToEnd(t *testing.T) {
	ctx := context.Background()
	st := newStore(steelRapier())
	r := NewRunner(st, loadDB(t))

	report, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Scanned)
	assert.Equal(t, 1, report.Matched)
	assert.Equal(t, 1, report.Overridden)
	assert.Equal(t, 1, report.TagChanges)
	assert.Equal(t, 1, report.AnimationChanges)
	assert.Equal(t, 0, report.EquipChanges)
	assert.Equal(t, 1, report.ScriptsAttached)

	it, ok := st.Item(steelRapID)
	require.True(t, ok)
	assert.Equal(t, rules.CategoryOneHandSword, it.AnimationCategory)
	assert.ElementsMatch(t, []rules.TagEntity{vendor, rapierKW}, it.Tags)
	assert.Equal(t, []string{"RapierParry"}, it.Scripts)
	assert.Equal(t, 0.3, st.AttachedScripts(steelRapID)[0].FloatParams["Chance"])

	second, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Changes(), "converged state needs no further changes")
	assert.Equal(t, 0, second.Overridden)
	assert.Equal(t, 1, st.OverrideCount[steelRapID])
}

func TestRunner_OneOverridePerItem(t *testing.T) {
	great := rules.Item{ID: "000E01:Blades.esp", Name: "Steel Greatsword", Mod: "Blades.esp",
		EquipCategory: rules.EquipEitherHand, AnimationCategory: rules.CategoryOneHandSword}
	st := newStore(great)

	report, err := NewRunner(st, loadDB(t)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.EquipChanges)
	assert.Equal(t, 1, report.AnimationChanges)
	assert.Equal(t, 1, report.TagChanges)
	assert.Equal(t, 1, st.OverrideCount["000E01:Blades.esp"])

	it, _ := st.Item("000E01:Blades.esp")
	assert.Equal(t, rules.EquipBothHands, it.EquipCategory)
	assert.Equal(t, rules.CategoryTwoHandSword, it.AnimationCategory)
}

func TestRunner_UnmatchedItemUntouched(t *testing.T) {
	st := newStore(rules.Item{ID: "000E02:Blades.esp", Name: "Iron Mace", Mod: "Blades.esp"},
		rules.Item{ID: "000E03:Blades.esp", Name: "Rapier Skin", Mod: "Blades.esp"})

	report, err := NewRunner(st, loadDB(t)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Scanned)
	assert.Equal(t, 0, report.Matched)
	assert.Empty(t, st.OverrideCount)
}

func TestRunner_SkipsTemplatedAndInvalidItems(t *testing.T) {
	templated := steelRapier()
	templated.ID = "000E04:Blades.esp"
	templated.Templated = true
	noMod := steelRapier()
	noMod.ID = "000E05:Blades.esp"
	noMod.Mod = ""
	st := newStore(steelRapier(), templated, noMod)

	report, err := NewRunner(st, loadDB(t)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Scanned)
	assert.Equal(t, 2, report.Skipped)
	assert.Equal(t, 1, report.Overridden, "per-item errors do not abort the run")
	require.Len(t, report.Errors, 2)

	var itemErr *ItemError
	require.True(t, errors.As(report.Errors[0], &itemErr))
	assert.True(t, errors.Is(report.Errors[0], ErrTemplated))
	assert.Equal(t, rules.ItemID("000E04:Blades.esp"), itemErr.Item)
	assert.Contains(t, report.Errors[1].Error(), "missing mod")
}

func TestRunner_DryRun(t *testing.T) {
	st := newStore(steelRapier())
	db := loadDB(t)
	db.Tags["Rapier"].Keywords = append(db.Tags["Rapier"].Keywords, "WeapTypeBlade")
	db.InjectedTags = map[string]rules.ItemID{"WeapTypeBlade": "000900:SynTags.esp"}
	before := st.Entities()
	r := NewRunner(st, db)
	r.DryRun = true

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.TagChanges)
	assert.Equal(t, 0, report.Overridden)
	assert.Empty(t, st.OverrideCount)
	assert.Equal(t, before, st.Entities(), "injected entities are not registered")
}

func TestRunner_ScriptOnlyChange(t *testing.T) {
	converged := steelRapier()
	converged.Tags = []rules.TagEntity{vendor, rapierKW}
	converged.AnimationCategory = rules.CategoryOneHandSword
	st := newStore(converged)

	report, err := NewRunner(st, loadDB(t)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.TagChanges)
	assert.Equal(t, 0, report.AnimationChanges)
	assert.Equal(t, 1, report.ScriptsAttached)
	assert.Equal(t, 1, report.Overridden)
}

func TestRunner_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner(newStore(steelRapier()), loadDB(t)).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestItemError(t *testing.T) {
	cause := errors.New("disk full")
	err := &ItemError{Item: "000001:Skyrim.esm", Message: "committing override", Err: cause}
	assert.Equal(t, "item 000001:Skyrim.esm: committing override: disk full", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "item X: missing id", (&ItemError{Item: "X", Message: "missing id"}).Error())
}
