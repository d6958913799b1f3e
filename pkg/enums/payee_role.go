package enums

import "fmt"

// PayeeRole identifies the kind of counterparty entitled to a share of an order.
type PayeeRole string

const (
	PayeeRoleArtist        PayeeRole = "artist"
	PayeeRoleMerchSupplier PayeeRole = "merch_supplier"
	PayeeRoleVinylSeller   PayeeRole = "vinyl_seller"
)

var validPayeeRoles = []PayeeRole{
	PayeeRoleArtist,
	PayeeRoleMerchSupplier,
	PayeeRoleVinylSeller,
}

// String implements fmt.Stringer.
func (p PayeeRole) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PayeeRole.
func (p PayeeRole) IsValid() bool {
	for _, candidate := range validPayeeRoles {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePayeeRole converts raw input into a PayeeRole.
func ParsePayeeRole(value string) (PayeeRole, error) {
	for _, candidate := range validPayeeRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payee role %q", value)
}
