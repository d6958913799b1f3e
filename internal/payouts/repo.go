package payouts

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fairwavehq/fairwave-backend/pkg/docstore"
	"github.com/fairwavehq/fairwave-backend/pkg/enums"
	"github.com/fairwavehq/fairwave-backend/pkg/models"
)

var errStoreRequired = errors.New("payouts store is required")

// Repo persists payout and pending-payout ledgers in the document store.
type Repo struct {
	store docstore.Store
}

// NewRepo wires the payouts repo to the document store.
func NewRepo(store docstore.Store) (*Repo, error) {
	if store == nil {
		return nil, errStoreRequired
	}
	return &Repo{store: store}, nil
}

func (r *Repo) CreatePayout(ctx context.Context, payout models.Payout) error {
	return r.store.Set(ctx, models.CollectionPayouts, payout.ID, payout)
}

func (r *Repo) GetPayout(ctx context.Context, id string) (*models.Payout, bool, error) {
	var payout models.Payout
	found, err := r.store.Get(ctx, models.CollectionPayouts, id, &payout)
	if err != nil || !found {
		return nil, false, err
	}
	return &payout, true, nil
}

// ListPayoutsByOrder returns every payout dispatched for the order.
func (r *Repo) ListPayoutsByOrder(ctx context.Context, orderID string) ([]models.Payout, error) {
	docs, err := r.store.Query(ctx, models.CollectionPayouts, docstore.Query{
		Filters: []docstore.Filter{{Field: "orderId", Op: docstore.OpEqual, Value: orderID}},
	})
	if err != nil {
		return nil, err
	}
	payouts := make([]models.Payout, 0, len(docs))
	for _, doc := range docs {
		var p models.Payout
		if err := doc.Decode(&p); err != nil {
			return nil, err
		}
		payouts = append(payouts, p)
	}
	return payouts, nil
}

// RecordReversal applies a reversal amount to a payout, updating its status.
func (r *Repo) RecordReversal(ctx context.Context, payout models.Payout, amount decimal.Decimal) (models.Payout, error) {
	payout.ReversedAmount = payout.ReversedAmount.Add(amount).Round(2)
	if payout.ReversedAmount.GreaterThanOrEqual(payout.Amount) {
		payout.ReversedAmount = payout.Amount
		payout.Status = enums.PayoutStatusReversed
	} else {
		payout.Status = enums.PayoutStatusPartiallyReversed
	}
	payout.UpdatedAt = time.Now().UTC()

	err := r.store.Update(ctx, models.CollectionPayouts, payout.ID, map[string]any{
		"reversedAmount": payout.ReversedAmount,
		"status":         payout.Status,
		"updatedAt":      payout.UpdatedAt,
	})
	return payout, err
}

func (r *Repo) CreatePendingPayout(ctx context.Context, pending models.PendingPayout) error {
	return r.store.Set(ctx, models.CollectionPendingPayouts, pending.ID, pending)
}

// ListOpenPendingByPayeeOrder returns pending payouts still awaiting action
// for one payee on one order.
func (r *Repo) ListOpenPendingByPayeeOrder(ctx context.Context, payeeID, orderID string) ([]models.PendingPayout, error) {
	return r.queryPending(ctx, docstore.Query{
		Filters: []docstore.Filter{
			{Field: "payeeId", Op: docstore.OpEqual, Value: payeeID},
			{Field: "orderId", Op: docstore.OpEqual, Value: orderID},
			{Field: "status", Op: docstore.OpIn, Value: openPendingStatuses()},
		},
	})
}

// ListOpenPendingByOrder returns every still-open pending payout for an order.
func (r *Repo) ListOpenPendingByOrder(ctx context.Context, orderID string) ([]models.PendingPayout, error) {
	return r.queryPending(ctx, docstore.Query{
		Filters: []docstore.Filter{
			{Field: "orderId", Op: docstore.OpEqual, Value: orderID},
			{Field: "status", Op: docstore.OpIn, Value: openPendingStatuses()},
		},
	})
}

// ListRetryPending returns the oldest retry-pending payouts, up to limit.
func (r *Repo) ListRetryPending(ctx context.Context, limit int) ([]models.PendingPayout, error) {
	return r.queryPending(ctx, docstore.Query{
		Filters: []docstore.Filter{
			{Field: "status", Op: docstore.OpEqual, Value: enums.PendingPayoutStatusRetryPending},
		},
		OrderBy: "createdAt",
		Limit:   limit,
	})
}

// UpdatePendingStatus transitions a pending payout, bumping attempts when a
// retry failed again.
func (r *Repo) UpdatePendingStatus(ctx context.Context, id string, status enums.PendingPayoutStatus, fields map[string]any) error {
	updates := map[string]any{
		"status":    status,
		"updatedAt": time.Now().UTC(),
	}
	for k, v := range fields {
		updates[k] = v
	}
	return r.store.Update(ctx, models.CollectionPendingPayouts, id, updates)
}

// ShrinkPending proportionally reduces a pending payout after a partial refund.
func (r *Repo) ShrinkPending(ctx context.Context, id string, newAmount decimal.Decimal) error {
	return r.store.Update(ctx, models.CollectionPendingPayouts, id, map[string]any{
		"amount":    newAmount.Round(2),
		"updatedAt": time.Now().UTC(),
	})
}

func (r *Repo) queryPending(ctx context.Context, q docstore.Query) ([]models.PendingPayout, error) {
	docs, err := r.store.Query(ctx, models.CollectionPendingPayouts, q)
	if err != nil {
		return nil, err
	}
	pendings := make([]models.PendingPayout, 0, len(docs))
	for _, doc := range docs {
		var p models.PendingPayout
		if err := doc.Decode(&p); err != nil {
			return nil, err
		}
		pendings = append(pendings, p)
	}
	return pendings, nil
}

func openPendingStatuses() []enums.PendingPayoutStatus {
	return []enums.PendingPayoutStatus{
		enums.PendingPayoutStatusAwaitingConnect,
		enums.PendingPayoutStatusRetryPending,
		enums.PendingPayoutStatusProcessing,
	}
}
