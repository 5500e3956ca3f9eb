package resolve

import (
	"context"
	"testing"

	"rgehrsitz/tagsync/internal/rules"
	"rgehrsitz/tagsync/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func katanaDB() *rules.Database {
	katana := &rules.Tag{
		Key:              "Katana",
		CommonNames:      []string{"katana"},
		Keywords:         []string{"WeapTypeKatana"},
		AnimationDefault: rules.CategoryOneHandSword,
	}
	db := &rules.Database{Tags: map[rules.TagKey]*rules.Tag{"Katana": katana}}
	db.Index()
	return db
}

func katanaItem() *rules.Item {
	return &rules.Item{
		ID:                "000D1F:Blades.esp",
		Name:              "Odachi Katana",
		Mod:               "Blades.esp",
		EquipCategory:     rules.EquipEitherHand,
		AnimationCategory: rules.CategoryOneHandSword,
	}
}

func TestResolve_AnimationFallbackChain(t *testing.T) {
	db := katanaDB()
	tag := db.Tags["Katana"]
	tag.AnimationByItem = []rules.ItemOverride{{Item: "000D1F:Blades.esp", Animation: rules.CategoryOneHandDagger}}
	tag.AnimationByMod = []rules.ModOverride{{Mod: "Blades.esp", Animation: rules.CategoryTwoHandSword}}
	tag.AnimationByName = []rules.NameOverride{{Contains: "ODACHI", Animation: rules.CategoryTwoHandAxe}}
	r := NewResolver(db, Catalog{}, nil)
	matched := []rules.TagKey{"Katana"}

	assert.Equal(t, rules.CategoryOneHandDagger, r.Resolve(katanaItem(), matched).Animation, "item level")

	tag.AnimationByItem = nil
	assert.Equal(t, rules.CategoryTwoHandSword, r.Resolve(katanaItem(), matched).Animation, "mod level")

	tag.AnimationByMod = nil
	assert.Equal(t, rules.CategoryTwoHandAxe, r.Resolve(katanaItem(), matched).Animation, "name level")

	tag.AnimationByName = nil
	assert.Equal(t, rules.CategoryOneHandSword, r.Resolve(katanaItem(), matched).Animation, "default")
}

func TestResolve_ModOverrideOnlyForThatMod(t *testing.T) {
	db := katanaDB()
	db.Tags["Katana"].AnimationByMod = []rules.ModOverride{{Mod: "ModA.esp", Animation: rules.CategoryTwoHandSword}}
	r := NewResolver(db, Catalog{}, nil)

	res := r.Resolve(katanaItem(), []rules.TagKey{"Katana"})
	assert.Equal(t, rules.CategoryOneHandSword, res.Animation)
	assert.False(t, res.AnimationChanged)

	fromA := katanaItem()
	fromA.Mod = "ModA.esp"
	res = r.Resolve(fromA, []rules.TagKey{"Katana"})
	assert.Equal(t, rules.CategoryTwoHandSword, res.Animation)
	assert.True(t, res.AnimationChanged)
}

func TestResolve_TwoHandedForcesBothHands(t *testing.T) {
	db := katanaDB()
	db.Tags["Katana"].AnimationDefault = rules.CategoryTwoHandSword
	r := NewResolver(db, Catalog{}, nil)

	res := r.Resolve(katanaItem(), []rules.TagKey{"Katana"})
	assert.True(t, res.EquipChanged)
	assert.Equal(t, rules.EquipBothHands, res.Equip)

	db.Tags["Katana"].AnimationDefault = rules.CategoryOneHandSword
	both := katanaItem()
	both.EquipCategory = rules.EquipBothHands
	both.AnimationCategory = rules.CategoryOneHandDagger
	res = r.Resolve(both, []rules.TagKey{"Katana"})
	assert.True(t, res.EquipChanged)
	assert.Equal(t, rules.EquipEitherHand, res.Equip)
}

func TestResolve_EquipUntouchedWhenAnimationUnchanged(t *testing.T) {
	db := katanaDB()
	db.Tags["Katana"].AnimationDefault = rules.CategoryOneHandSword
	r := NewResolver(db, Catalog{}, nil)

	item := katanaItem()
	item.EquipCategory = rules.EquipBothHands
	res := r.Resolve(item, []rules.TagKey{"Katana"})
	assert.False(t, res.AnimationChanged)
	assert.False(t, res.EquipChanged)
}

func TestResolve_NoAnimationDataSkipsAnimationAndEquip(t *testing.T) {
	db := katanaDB()
	db.Tags["Katana"].AnimationDefault = rules.CategoryTwoHandSword
	r := NewResolver(db, Catalog{}, nil)

	item := katanaItem()
	item.AnimationCategory = ""
	res := r.Resolve(item, []rules.TagKey{"Katana"})
	assert.Equal(t, rules.Category(""), res.Animation)
	assert.False(t, res.AnimationChanged)
	assert.False(t, res.EquipChanged)
	assert.Equal(t, rules.EquipCategory(""), res.Equip)
}

func TestResolve_IgnoreAnimationMods(t *testing.T) {
	db := katanaDB()
	db.Tags["Katana"].AnimationDefault = rules.CategoryTwoHandSword
	db.Tags["Katana"].IgnoreAnimationMods = rules.NewSet[rules.ModID]("Blades.esp")
	r := NewResolver(db, Catalog{}, nil)

	res := r.Resolve(katanaItem(), []rules.TagKey{"Katana"})
	assert.False(t, res.AnimationChanged)
	assert.False(t, res.EquipChanged)
	assert.Equal(t, rules.Category(""), res.Animation)
}

func TestResolve_PrimaryTagIsFirstKey(t *testing.T) {
	db := katanaDB()
	db.Tags["Blade"] = &rules.Tag{Key: "Blade", AnimationDefault: rules.CategoryOneHandDagger}
	db.Index()
	r := NewResolver(db, Catalog{}, nil)

	res := r.Resolve(katanaItem(), []rules.TagKey{"Blade", "Katana"})
	assert.Equal(t, rules.TagKey("Blade"), res.Primary)
	assert.Equal(t, rules.CategoryOneHandDagger, res.Animation)
}

func TestResolve_TagsUnionAndStrip(t *testing.T) {
	katanaKW := rules.TagEntity{ID: "000801", EditorID: "WeapTypeKatana", Mod: "Keywords.esp"}
	oldSword := rules.TagEntity{ID: "01E711", EditorID: "WeapTypeSword", Mod: "Skyrim.esm"}
	vendor := rules.TagEntity{ID: "08F958", EditorID: "VendorItemWeapon", Mod: "Skyrim.esm"}

	db := katanaDB()
	r := NewResolver(db, Catalog{"Katana": {katanaKW}}, nil)
	it := katanaItem()
	it.Tags = []rules.TagEntity{oldSword, vendor}

	res := r.Resolve(it, []rules.TagKey{"Katana"})
	assert.True(t, res.TagsChanged)
	assert.Equal(t, []rules.TagEntity{oldSword, vendor, katanaKW}, res.Tags)

	db.ExperimentalLevel = 1
	res = r.Resolve(it, []rules.TagKey{"Katana"})
	assert.Equal(t, []rules.TagEntity{vendor, katanaKW}, res.Tags)

	it.Tags = []rules.TagEntity{katanaKW, vendor}
	res = r.Resolve(it, []rules.TagKey{"Katana"})
	assert.False(t, res.TagsChanged, "converged item needs no tag change")
}

func TestResolve_CustomStripPrefix(t *testing.T) {
	db := katanaDB()
	db.ExperimentalLevel = 1
	r := NewResolver(db, Catalog{}, nil, WithStripPrefix("Legacy"))
	it := katanaItem()
	it.Tags = []rules.TagEntity{{ID: "1", EditorID: "LegacyKatana", Mod: "A.esp"}, {ID: "2", EditorID: "WeapTypeSword", Mod: "A.esp"}}

	res := r.Resolve(it, []rules.TagKey{"Katana"})
	assert.Equal(t, []rules.TagEntity{{ID: "2", EditorID: "WeapTypeSword", Mod: "A.esp"}}, res.Tags)
}

func TestResolve_Scripts(t *testing.T) {
	db := katanaDB()
	db.Tags["Katana"].Scripts = []rules.Script{
		{Name: "Bleed", Requires: "Bleed.esp"},
		{Name: "Missing", Requires: "NotLoaded.esp"},
		{Name: "NoBlades", ExcludeMods: rules.NewSet[rules.ModID]("Blades.esp")},
		{Name: "NoItem", ExcludeItems: rules.NewSet[rules.ItemID]("000D1F:Blades.esp")},
		{Name: "Attached"},
		{Name: "Bleed"},
	}
	r := NewResolver(db, Catalog{}, []rules.ModID{"Skyrim.esm", "Bleed.esp"})
	it := katanaItem()
	it.Scripts = []string{"Attached"}

	res := r.Resolve(it, []rules.TagKey{"Katana"})
	require.Len(t, res.Scripts, 1)
	assert.Equal(t, "Bleed", res.Scripts[0].Name)
	assert.True(t, res.Changed())
}

func TestResolve_NoMatch(t *testing.T) {
	r := NewResolver(katanaDB(), Catalog{}, nil)
	res := r.Resolve(katanaItem(), nil)
	assert.False(t, res.Changed())
}

func TestBuildCatalog(t *testing.T) {
	ctx := context.Background()
	st := memory.New("Skyrim.esm", "Keywords.esp", "Old.esp")
	require.NoError(t, st.AddTagEntity(ctx, rules.TagEntity{ID: "000801", EditorID: "WeapTypeKatana", Mod: "Keywords.esp"}))
	require.NoError(t, st.AddTagEntity(ctx, rules.TagEntity{ID: "000802", EditorID: "WeapTypeKatana", Mod: "Old.esp"}))
	require.NoError(t, st.AddTagEntity(ctx, rules.TagEntity{ID: "000803", EditorID: "WeapTypeKatana", Mod: "Unloaded.esp"}))

	db := katanaDB()
	db.SourceMods = []rules.ModID{"Keywords.esp", "Old.esp", "Unloaded.esp"}
	db.Tags["Katana"].ExcludeSourceMods = rules.NewSet[rules.ModID]("Old.esp")

	catalog, err := BuildCatalog(ctx, db, st, false)
	require.NoError(t, err)
	assert.Equal(t, []rules.TagEntity{{ID: "000801", EditorID: "WeapTypeKatana", Mod: "Keywords.esp"}}, catalog["Katana"])
}

func TestBuildCatalog_InjectsMissingEntities(t *testing.T) {
	ctx := context.Background()
	st := memory.New("Keywords.esp")
	require.NoError(t, st.AddTagEntity(ctx, rules.TagEntity{ID: "000801", EditorID: "WeapTypeKatana", Mod: "Keywords.esp"}))

	db := katanaDB()
	db.SourceMods = []rules.ModID{"Keywords.esp"}
	db.Tags["Rapier"] = &rules.Tag{Key: "Rapier", Keywords: []string{"WeapTypeRapier"}}
	db.Index()
	db.InjectedTags = map[string]rules.ItemID{
		"WeapTypeKatana": "000801:Keywords.esp",
		"WeapTypeRapier": "000900:Tagsync.esp",
		"Broken":         "nocolon",
	}

	catalog, err := BuildCatalog(ctx, db, st, false)
	require.NoError(t, err)

	rapier := rules.TagEntity{ID: "000900", EditorID: "WeapTypeRapier", Mod: "Tagsync.esp"}
	assert.Equal(t, []rules.TagEntity{rapier}, catalog["Rapier"])
	assert.Len(t, catalog["Katana"], 1, "an entity already provided by a source is not injected again")
	assert.Contains(t, st.Entities(), rapier)
	assert.Len(t, st.Entities(), 2)
}

func TestParseEntity(t *testing.T) {
	e, err := ParseEntity("WeapTypeRapier", "000900:Tagsync.esp")
	require.NoError(t, err)
	assert.Equal(t, rules.TagEntity{ID: "000900", EditorID: "WeapTypeRapier", Mod: "Tagsync.esp"}, e)

	_, err = ParseEntity("X", ":Tagsync.esp")
	assert.Error(t, err)
}

func TestBuildCatalog_DryRunDoesNotRegister(t *testing.T) {
	ctx := context.Background()
	st := memory.New("Keywords.esp")
	db := katanaDB()
	db.InjectedTags = map[string]rules.ItemID{"WeapTypeKatana": "000900:Tagsync.esp"}

	catalog, err := BuildCatalog(ctx, db, st, true)
	require.NoError(t, err)
	assert.Equal(t, []rules.TagEntity{{ID: "000900", EditorID: "WeapTypeKatana", Mod: "Tagsync.esp"}}, catalog["Katana"])
	assert.Empty(t, st.Entities())
}
