package enums

import "fmt"

// ItemType classifies an order line by the kind of product sold.
type ItemType string

const (
	ItemTypeDigital ItemType = "digital"
	ItemTypeTrack   ItemType = "track"
	ItemTypeVinyl   ItemType = "vinyl"
	ItemTypeMerch   ItemType = "merch"
)

var validItemTypes = []ItemType{
	ItemTypeDigital,
	ItemTypeTrack,
	ItemTypeVinyl,
	ItemTypeMerch,
}

// String implements fmt.Stringer.
func (i ItemType) String() string {
	return string(i)
}

// IsValid reports whether the value is a known ItemType.
func (i ItemType) IsValid() bool {
	for _, candidate := range validItemTypes {
		if candidate == i {
			return true
		}
	}
	return false
}

// IsPhysical reports whether items of this type consume stock and ship.
func (i ItemType) IsPhysical() bool {
	return i == ItemTypeVinyl || i == ItemTypeMerch
}

// ParseItemType converts raw input into an ItemType.
func ParseItemType(value string) (ItemType, error) {
	for _, candidate := range validItemTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid item type %q", value)
}
