package rules

// ItemID is a form key such as "000D1F:Skyrim.esm".
type ItemID string

// ModID is a plugin file name such as "Skyrim.esm".
type ModID string

// Item is a record read from the item store.
type Item struct {
	ID                ItemID        `json:"id"`
	EditorID          string        `json:"editorID"`
	Name              string        `json:"name"`
	Mod               ModID         `json:"mod"`
	Tags              []TagEntity   `json:"tags"`
	EquipCategory     EquipCategory `json:"equipCategory"`
	AnimationCategory Category      `json:"animationCategory,omitempty"` // empty when the item carries no animation data
	Scripts           []string      `json:"scripts,omitempty"`
	Templated         bool          `json:"templated,omitempty"`
}

// HasScript reports whether a script with this name is already attached.
func (it *Item) HasScript(name string) bool {
	for _, s := range it.Scripts {
		if s == name {
			return true
		}
	}
	return false
}

// TagEntity is a concrete tag record defined by a mod. Identity is (ID, Mod).
type TagEntity struct {
	ID       string `json:"id"`
	EditorID string `json:"editorID"`
	Mod      ModID  `json:"mod"`
}

// EntityKey identifies a TagEntity independent of its editor id.
type EntityKey struct {
	ID  string
	Mod ModID
}

func (e TagEntity) Key() EntityKey {
	return EntityKey{ID: e.ID, Mod: e.Mod}
}

// SameEntities reports whether a and b hold the same entities, ignoring order
// and duplicates.
func SameEntities(a, b []TagEntity) bool {
	left := make(Set[EntityKey], len(a))
	for _, e := range a {
		left.Add(e.Key())
	}
	right := make(Set[EntityKey], len(b))
	for _, e := range b {
		right.Add(e.Key())
	}
	if len(left) != len(right) {
		return false
	}
	for k := range left {
		if !right.Has(k) {
			return false
		}
	}
	return true
}
