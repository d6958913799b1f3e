package models

import (
	"time"

	"github.com/fairwavehq/fairwave-backend/pkg/enums"
)

// StockMovement is an immutable record of one stock counter change. Replaying
// all movements for an item in creation order reproduces its current counter.
type StockMovement struct {
	ID            string             `json:"id"`
	ItemRef       string             `json:"itemRef"`
	VariantKey    string             `json:"variantKey,omitempty"`
	Type          enums.MovementType `json:"type"`
	Quantity      int                `json:"quantity"`
	PreviousStock int                `json:"previousStock"`
	NewStock      int                `json:"newStock"`
	OrderID       string             `json:"orderId"`
	OrderNumber   string             `json:"orderNumber"`
	CreatedAt     time.Time          `json:"createdAt"`
}
