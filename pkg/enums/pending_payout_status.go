package enums

import "fmt"

// PendingPayoutStatus tracks a payee share that could not be dispatched yet.
type PendingPayoutStatus string

const (
	PendingPayoutStatusAwaitingConnect PendingPayoutStatus = "awaiting_connect"
	PendingPayoutStatusRetryPending    PendingPayoutStatus = "retry_pending"
	PendingPayoutStatusProcessing      PendingPayoutStatus = "processing"
	PendingPayoutStatusResolved        PendingPayoutStatus = "resolved"
	PendingPayoutStatusCancelled       PendingPayoutStatus = "cancelled"
)

var validPendingPayoutStatuses = []PendingPayoutStatus{
	PendingPayoutStatusAwaitingConnect,
	PendingPayoutStatusRetryPending,
	PendingPayoutStatusProcessing,
	PendingPayoutStatusResolved,
	PendingPayoutStatusCancelled,
}

// String implements fmt.Stringer.
func (p PendingPayoutStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PendingPayoutStatus.
func (p PendingPayoutStatus) IsValid() bool {
	for _, candidate := range validPendingPayoutStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsOpen reports whether the pending payout still holds funds for the payee.
func (p PendingPayoutStatus) IsOpen() bool {
	return p == PendingPayoutStatusAwaitingConnect ||
		p == PendingPayoutStatusRetryPending ||
		p == PendingPayoutStatusProcessing
}

// ParsePendingPayoutStatus converts raw input into a PendingPayoutStatus.
func ParsePendingPayoutStatus(value string) (PendingPayoutStatus, error) {
	for _, candidate := range validPendingPayoutStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid pending payout status %q", value)
}
