package repository

import (
	"testing"

	"rgehrsitz/tagsync/internal/rules"

	"github.com/stretchr/testify/assert"
)

// TestDedupFolded checks that needles already covered by another needle are dropped.
func TestDedupFolded(t *testing.T) {
	assert.Equal(t, []string{"katana"}, dedupFolded([]string{"katana", "Katana", "KATANA"}))
	assert.Equal(t, []string{"sword"}, dedupFolded([]string{"greatsword", "sword", "shortsword"}))
	assert.Equal(t, []string{"rapier", "estoc"}, dedupFolded([]string{"rapier", "estoc"}))
	assert.Empty(t, dedupFolded(nil))
}

func TestDedup(t *testing.T) {
	assert.Equal(t, []rules.ModID{"A.esp", "B.esp"}, dedup([]rules.ModID{"A.esp", "B.esp", "A.esp"}))
}

func TestOptimizeDatabase(t *testing.T) {
	db := &rules.Database{
		Tags: map[rules.TagKey]*rules.Tag{
			"Rapier": {Key: "Rapier", CommonNames: []string{"Rapier", "rapier"}, Keywords: []string{"K", "K"}},
			"Katana": {Key: "Katana", CommonNames: []string{"katana"}},
		},
		GlobalExcludes: rules.GlobalExcludes{Phrases: []string{"Skin", "skin"}},
		SourceMods:     []rules.ModID{"A.esp", "A.esp"},
	}

	OptimizeDatabase(db)

	assert.Equal(t, []string{"Rapier"}, db.Tags["Rapier"].CommonNames)
	assert.Equal(t, []string{"K"}, db.Tags["Rapier"].Keywords)
	assert.Equal(t, []string{"Skin"}, db.GlobalExcludes.Phrases)
	assert.Equal(t, []rules.ModID{"A.esp"}, db.SourceMods)
	assert.Equal(t, []rules.TagKey{"Katana", "Rapier"}, db.Keys())
}
