package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fairwavehq/fairwave-backend/pkg/enums"
)

// Dispute records one card-network dispute against a charge. Opening a
// dispute reverses every transfer in the order's transfer group; closing it
// finalizes the net impact.
type Dispute struct {
	ID                string              `json:"id"`
	DisputeRef        string              `json:"disputeRef"`
	ChargeRef         string              `json:"chargeRef"`
	OrderID           string              `json:"orderId,omitempty"`
	Amount            decimal.Decimal     `json:"amount"`
	Reason            string              `json:"reason"`
	Status            enums.DisputeStatus `json:"status"`
	TransfersReversed []ReversedTransfer  `json:"transfersReversed"`
	AmountRecovered   decimal.Decimal     `json:"amountRecovered"`
	NetImpact         *decimal.Decimal    `json:"netImpact,omitempty"`
	CreatedAt         time.Time           `json:"createdAt"`
	UpdatedAt         time.Time           `json:"updatedAt"`
}

// ReversedTransfer records one payout reversal performed while handling a
// dispute, so a won dispute can re-issue the same amounts.
type ReversedTransfer struct {
	PayoutID string          `json:"payoutId"`
	PayeeID  string          `json:"payeeId"`
	Amount   decimal.Decimal `json:"amount"`
}

// Refund accumulates the refunded amount for one processor charge so replayed
// or partial refund events can compute the incremental amount to reverse.
type Refund struct {
	ID             string          `json:"id"`
	ChargeRef      string          `json:"chargeRef"`
	OrderID        string          `json:"orderId,omitempty"`
	AmountRefunded decimal.Decimal `json:"amountRefunded"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}
