package reconcile

import (
	"context"
	"errors"

	"github.com/fairwavehq/fairwave-backend/pkg/docstore"
	"github.com/fairwavehq/fairwave-backend/pkg/models"
)

var errStoreRequired = errors.New("reconcile store is required")

// Repo persists the refund and dispute ledgers in the document store.
type Repo struct {
	store docstore.Store
}

// NewRepo wires the reconcile repo to the document store.
func NewRepo(store docstore.Store) (*Repo, error) {
	if store == nil {
		return nil, errStoreRequired
	}
	return &Repo{store: store}, nil
}

// FindRefundByCharge returns the accumulated refund record for a charge.
func (r *Repo) FindRefundByCharge(ctx context.Context, chargeRef string) (*models.Refund, bool, error) {
	docs, err := r.store.Query(ctx, models.CollectionRefunds, docstore.Query{
		Filters: []docstore.Filter{{Field: "chargeRef", Op: docstore.OpEqual, Value: chargeRef}},
		Limit:   1,
	})
	if err != nil || len(docs) == 0 {
		return nil, false, err
	}
	var refund models.Refund
	if err := docs[0].Decode(&refund); err != nil {
		return nil, false, err
	}
	return &refund, true, nil
}

func (r *Repo) SaveRefund(ctx context.Context, refund models.Refund) error {
	return r.store.Set(ctx, models.CollectionRefunds, refund.ID, refund)
}

// FindDisputeByRef returns the dispute keyed by the processor's dispute id.
func (r *Repo) FindDisputeByRef(ctx context.Context, disputeRef string) (*models.Dispute, bool, error) {
	docs, err := r.store.Query(ctx, models.CollectionDisputes, docstore.Query{
		Filters: []docstore.Filter{{Field: "disputeRef", Op: docstore.OpEqual, Value: disputeRef}},
		Limit:   1,
	})
	if err != nil || len(docs) == 0 {
		return nil, false, err
	}
	var dispute models.Dispute
	if err := docs[0].Decode(&dispute); err != nil {
		return nil, false, err
	}
	return &dispute, true, nil
}

func (r *Repo) SaveDispute(ctx context.Context, dispute models.Dispute) error {
	return r.store.Set(ctx, models.CollectionDisputes, dispute.ID, dispute)
}
