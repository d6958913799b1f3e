package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fairwavehq/fairwave-backend/pkg/docstore"
	"github.com/fairwavehq/fairwave-backend/pkg/models"
)

var errStoreRequired = errors.New("catalog store is required")

// Repo reads catalog entities and maintains payee earning counters. Lookups
// report expected absence through the boolean so callers can fall back
// without error plumbing.
type Repo struct {
	store docstore.Store
}

// NewRepo wires the catalog repo to the document store.
func NewRepo(store docstore.Store) (*Repo, error) {
	if store == nil {
		return nil, errStoreRequired
	}
	return &Repo{store: store}, nil
}

func (r *Repo) GetRelease(ctx context.Context, id string) (*models.Release, bool, error) {
	var release models.Release
	found, err := r.store.Get(ctx, models.CollectionReleases, id, &release)
	if err != nil || !found {
		return nil, false, err
	}
	return &release, true, nil
}

func (r *Repo) GetTrack(ctx context.Context, id string) (*models.Track, bool, error) {
	var track models.Track
	found, err := r.store.Get(ctx, models.CollectionTracks, id, &track)
	if err != nil || !found {
		return nil, false, err
	}
	return &track, true, nil
}

func (r *Repo) GetMerchItem(ctx context.Context, id string) (*models.MerchItem, bool, error) {
	var item models.MerchItem
	found, err := r.store.Get(ctx, models.CollectionMerchItems, id, &item)
	if err != nil || !found {
		return nil, false, err
	}
	return &item, true, nil
}

func (r *Repo) GetVinylItem(ctx context.Context, id string) (*models.VinylItem, bool, error) {
	var item models.VinylItem
	found, err := r.store.Get(ctx, models.CollectionVinylItems, id, &item)
	if err != nil || !found {
		return nil, false, err
	}
	return &item, true, nil
}

func (r *Repo) GetVinylListing(ctx context.Context, id string) (*models.VinylListing, bool, error) {
	var listing models.VinylListing
	found, err := r.store.Get(ctx, models.CollectionVinylListings, id, &listing)
	if err != nil || !found {
		return nil, false, err
	}
	return &listing, true, nil
}

func (r *Repo) GetPayee(ctx context.Context, id string) (*models.Payee, bool, error) {
	var payee models.Payee
	found, err := r.store.Get(ctx, models.CollectionPayees, id, &payee)
	if err != nil || !found {
		return nil, false, err
	}
	return &payee, true, nil
}

// AddLifetimeEarnings adjusts a payee's lifetime earnings counter by delta.
// Negative deltas record reversals; the counter is floored at zero.
func (r *Repo) AddLifetimeEarnings(ctx context.Context, payeeID string, delta decimal.Decimal) error {
	payee, found, err := r.GetPayee(ctx, payeeID)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	next := payee.LifetimeEarnings.Add(delta)
	if next.IsNegative() {
		next = decimal.Zero
	}
	return r.store.Update(ctx, models.CollectionPayees, payeeID, map[string]any{
		"lifetimeEarnings": next,
		"updatedAt":        time.Now().UTC(),
	})
}

// AddPendingBalance adjusts a payee's pending-earnings counter by delta,
// floored at zero.
func (r *Repo) AddPendingBalance(ctx context.Context, payeeID string, delta decimal.Decimal) error {
	payee, found, err := r.GetPayee(ctx, payeeID)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	next := payee.PendingBalance.Add(delta)
	if next.IsNegative() {
		next = decimal.Zero
	}
	return r.store.Update(ctx, models.CollectionPayees, payeeID, map[string]any{
		"pendingBalance": next,
		"updatedAt":      time.Now().UTC(),
	})
}

// MarkPendingNotified records that the one-time pending-earnings notification
// went out, so later orders do not repeat it.
func (r *Repo) MarkPendingNotified(ctx context.Context, payeeID string, at time.Time) error {
	return r.store.Update(ctx, models.CollectionPayees, payeeID, map[string]any{
		"pendingNotifiedAt": at.UTC(),
		"updatedAt":         time.Now().UTC(),
	})
}
