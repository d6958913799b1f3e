package orders

import (
	"context"
	"errors"
	"time"

	"github.com/fairwavehq/fairwave-backend/pkg/docstore"
	"github.com/fairwavehq/fairwave-backend/pkg/enums"
	"github.com/fairwavehq/fairwave-backend/pkg/models"
)

var errStoreRequired = errors.New("orders store is required")

// Repo persists order documents.
type Repo struct {
	store docstore.Store
}

// NewRepo wires the orders repo to the document store.
func NewRepo(store docstore.Store) (*Repo, error) {
	if store == nil {
		return nil, errStoreRequired
	}
	return &Repo{store: store}, nil
}

func (r *Repo) Create(ctx context.Context, order models.Order) error {
	return r.store.Set(ctx, models.CollectionOrders, order.ID, order)
}

func (r *Repo) Get(ctx context.Context, id string) (*models.Order, bool, error) {
	var order models.Order
	found, err := r.store.Get(ctx, models.CollectionOrders, id, &order)
	if err != nil || !found {
		return nil, false, err
	}
	return &order, true, nil
}

// FindByPaymentReference is the idempotency lookup: at most one order exists
// per non-null payment reference.
func (r *Repo) FindByPaymentReference(ctx context.Context, paymentReference string) (*models.Order, bool, error) {
	if paymentReference == "" {
		return nil, false, nil
	}
	docs, err := r.store.Query(ctx, models.CollectionOrders, docstore.Query{
		Filters: []docstore.Filter{{Field: "paymentReference", Op: docstore.OpEqual, Value: paymentReference}},
		Limit:   1,
	})
	if err != nil {
		return nil, false, err
	}
	if len(docs) == 0 {
		return nil, false, nil
	}
	var order models.Order
	if err := docs[0].Decode(&order); err != nil {
		return nil, false, err
	}
	return &order, true, nil
}

func (r *Repo) UpdateStatus(ctx context.Context, id string, status enums.OrderStatus) error {
	return r.store.Update(ctx, models.CollectionOrders, id, map[string]any{
		"status":    status,
		"updatedAt": time.Now().UTC(),
	})
}
