package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fairwavehq/fairwave-backend/pkg/enums"
)

// Payee is an artist, merch supplier, or vinyl seller entitled to net shares.
// Credentials decide the payout rail: a linked transfer account enables
// instant transfers, a payout email enables batch payouts.
type Payee struct {
	ID                string           `json:"id"`
	Name              string           `json:"name"`
	Email             string           `json:"email"`
	Role              enums.PayeeRole  `json:"role"`
	PreferredRail     enums.PayoutRail `json:"preferredRail,omitempty"`
	TransferAccountID string           `json:"transferAccountId,omitempty"`
	PayoutEmail       string           `json:"payoutEmail,omitempty"`
	PendingBalance    decimal.Decimal  `json:"pendingBalance"`
	LifetimeEarnings  decimal.Decimal  `json:"lifetimeEarnings"`
	PendingNotifiedAt *time.Time       `json:"pendingNotifiedAt,omitempty"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}

// HasTransferAccount reports whether the instant rail is available.
func (p Payee) HasTransferAccount() bool {
	return p.TransferAccountID != ""
}

// HasPayoutEmail reports whether the batch rail is available.
func (p Payee) HasPayoutEmail() bool {
	return p.PayoutEmail != ""
}

// RailFor picks the payout rail per the routing policy: the preferred rail
// when its credential is present, otherwise whichever single credential
// exists. The second return is false when no rail is usable.
func (p Payee) RailFor() (enums.PayoutRail, bool) {
	switch p.PreferredRail {
	case enums.PayoutRailInstant:
		if p.HasTransferAccount() {
			return enums.PayoutRailInstant, true
		}
	case enums.PayoutRailBatch:
		if p.HasPayoutEmail() {
			return enums.PayoutRailBatch, true
		}
	}
	if p.HasTransferAccount() {
		return enums.PayoutRailInstant, true
	}
	if p.HasPayoutEmail() {
		return enums.PayoutRailBatch, true
	}
	return "", false
}
