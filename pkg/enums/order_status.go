package enums

import "fmt"

// OrderStatus tracks the settlement lifecycle of an order.
type OrderStatus string

const (
	OrderStatusProcessing      OrderStatus = "processing"
	OrderStatusAwaitingRelease OrderStatus = "awaiting_release"
	OrderStatusCompleted       OrderStatus = "completed"
	OrderStatusCancelled       OrderStatus = "cancelled"
	OrderStatusRefunded        OrderStatus = "refunded"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusProcessing,
	OrderStatusAwaitingRelease,
	OrderStatusCompleted,
	OrderStatusCancelled,
	OrderStatusRefunded,
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
