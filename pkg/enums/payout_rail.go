package enums

import "fmt"

// PayoutRail identifies the mechanism used to move funds to a payee.
type PayoutRail string

const (
	PayoutRailInstant PayoutRail = "instant"
	PayoutRailBatch   PayoutRail = "batch"
)

var validPayoutRails = []PayoutRail{
	PayoutRailInstant,
	PayoutRailBatch,
}

// String implements fmt.Stringer.
func (p PayoutRail) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PayoutRail.
func (p PayoutRail) IsValid() bool {
	for _, candidate := range validPayoutRails {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePayoutRail converts raw input into a PayoutRail.
func ParsePayoutRail(value string) (PayoutRail, error) {
	for _, candidate := range validPayoutRails {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout rail %q", value)
}
