package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fairwavehq/fairwave-backend/pkg/enums"
)

// Payout records one successfully dispatched transfer to a payee for an order.
// ReversedAmount never exceeds Amount; the status is reversed exactly when the
// two are equal within rounding tolerance.
type Payout struct {
	ID                  string             `json:"id"`
	PayeeID             string             `json:"payeeId"`
	PayeeRole           enums.PayeeRole    `json:"payeeRole"`
	OrderID             string             `json:"orderId"`
	Amount              decimal.Decimal    `json:"amount"`
	Currency            enums.Currency     `json:"currency"`
	Rail                enums.PayoutRail   `json:"rail"`
	Status              enums.PayoutStatus `json:"status"`
	ReversedAmount      decimal.Decimal    `json:"reversedAmount"`
	ExternalTransferRef string             `json:"externalTransferRef"`
	CreatedAt           time.Time          `json:"createdAt"`
	UpdatedAt           time.Time          `json:"updatedAt"`
}

// Remaining returns the un-reversed portion of the payout.
func (p Payout) Remaining() decimal.Decimal {
	return p.Amount.Sub(p.ReversedAmount)
}

// PendingPayout holds a payee share that could not be dispatched immediately,
// either because the payee has no payout credential or because dispatch failed
// and awaits retry.
type PendingPayout struct {
	ID               string                    `json:"id"`
	PayeeID          string                    `json:"payeeId"`
	PayeeRole        enums.PayeeRole           `json:"payeeRole"`
	OrderID          string                    `json:"orderId"`
	OrderNumber      string                    `json:"orderNumber,omitempty"`
	Amount           decimal.Decimal           `json:"amount"`
	Currency         enums.Currency            `json:"currency"`
	Status           enums.PendingPayoutStatus `json:"status"`
	FailureReason    string                    `json:"failureReason,omitempty"`
	OriginalPayoutID string                    `json:"originalPayoutId,omitempty"`
	Attempts         int                       `json:"attempts"`
	CreatedAt        time.Time                 `json:"createdAt"`
	UpdatedAt        time.Time                 `json:"updatedAt"`
}
