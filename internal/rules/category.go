package rules

// Category is an animation category, e.g. "OneHandSword".
type Category string

const (
	CategoryHandToHand    Category = "HandToHand"
	CategoryOneHandSword  Category = "OneHandSword"
	CategoryOneHandDagger Category = "OneHandDagger"
	CategoryOneHandAxe    Category = "OneHandAxe"
	CategoryOneHandMace   Category = "OneHandMace"
	CategoryTwoHandSword  Category = "TwoHandSword"
	CategoryTwoHandAxe    Category = "TwoHandAxe"
	CategoryBow           Category = "Bow"
	CategoryStaff         Category = "Staff"
	CategoryCrossbow      Category = "Crossbow"
)

var SupportedCategories = []Category{
	CategoryHandToHand,
	CategoryOneHandSword,
	CategoryOneHandDagger,
	CategoryOneHandAxe,
	CategoryOneHandMace,
	CategoryTwoHandSword,
	CategoryTwoHandAxe,
	CategoryBow,
	CategoryStaff,
	CategoryCrossbow,
}

// EquipCategory is the coarse slot an item is equipped in.
type EquipCategory string

const (
	EquipEitherHand EquipCategory = "EitherHand"
	EquipBothHands  EquipCategory = "BothHands"
	EquipLeftHand   EquipCategory = "LeftHand"
	EquipRightHand  EquipCategory = "RightHand"
)

// twoHanded lists the categories that only work with EquipBothHands.
var twoHanded = map[Category]bool{
	CategoryTwoHandSword: true,
	CategoryTwoHandAxe:   true,
	CategoryBow:          true,
	CategoryCrossbow:     true,
}

func IsSupportedCategory(c Category) bool {
	for _, supported := range SupportedCategories {
		if c == supported {
			return true
		}
	}
	return false
}

// IsTwoHanded reports whether c requires both hands.
func (c Category) IsTwoHanded() bool {
	return twoHanded[c]
}

// RequiredEquip returns the equip category an item must have to use animation
// c, given its current equip category. ok is false when no adjustment is needed.
func RequiredEquip(c Category, current EquipCategory) (EquipCategory, bool) {
	switch {
	case c == "":
		return current, false
	case c.IsTwoHanded() && current != EquipBothHands:
		return EquipBothHands, true
	case !c.IsTwoHanded() && current == EquipBothHands:
		return EquipEitherHand, true
	}
	return current, false
}
