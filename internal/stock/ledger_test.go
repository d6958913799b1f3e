package stock

import (
	"context"
	"io"
	"testing"

	"github.com/fairwavehq/fairwave-backend/pkg/docstore"
	"github.com/fairwavehq/fairwave-backend/pkg/enums"
	"github.com/fairwavehq/fairwave-backend/pkg/logger"
	"github.com/fairwavehq/fairwave-backend/pkg/models"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "stock-test", Output: io.Discard})
}

func newTestLedger(t *testing.T) (*Ledger, *docstore.MemoryStore) {
	t.Helper()
	store := docstore.NewMemoryStore()
	ledger, err := NewLedger(store, testLogger())
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	return ledger, store
}

func TestVinylSellAndReturn(t *testing.T) {
	ctx := context.Background()
	ledger, store := newTestLedger(t)

	vinyl := models.VinylItem{ID: "vinyl-1", Title: "LP", ArtistID: "artist-1", Stock: 10}
	if err := store.Set(ctx, models.CollectionVinylItems, vinyl.ID, vinyl); err != nil {
		t.Fatalf("seed vinyl: %v", err)
	}

	item := models.OrderItem{ID: "vinyl-1", Type: enums.ItemTypeVinyl, Quantity: 3}
	if err := ledger.Decrement(ctx, item, "order-1", "FW-260801-000001"); err != nil {
		t.Fatalf("decrement: %v", err)
	}

	var got models.VinylItem
	if _, err := store.Get(ctx, models.CollectionVinylItems, vinyl.ID, &got); err != nil {
		t.Fatalf("get vinyl: %v", err)
	}
	if got.Stock != 7 || got.Sold != 3 {
		t.Fatalf("unexpected counters stock=%d sold=%d", got.Stock, got.Sold)
	}

	if err := ledger.Refund(ctx, item, "order-1", "FW-260801-000001"); err != nil {
		t.Fatalf("refund: %v", err)
	}
	if _, err := store.Get(ctx, models.CollectionVinylItems, vinyl.ID, &got); err != nil {
		t.Fatalf("get vinyl: %v", err)
	}
	if got.Stock != 10 || got.Sold != 0 {
		t.Fatalf("refund did not restore counters stock=%d sold=%d", got.Stock, got.Sold)
	}

	movements, err := store.Query(ctx, models.CollectionVinylStockMovements, docstore.Query{
		Filters: []docstore.Filter{{Field: "itemRef", Op: docstore.OpEqual, Value: vinyl.ID}},
	})
	if err != nil {
		t.Fatalf("query movements: %v", err)
	}
	if len(movements) != 2 {
		t.Fatalf("expected 2 movements, got %d", len(movements))
	}

	// Replaying signed deltas reproduces the final counter.
	delta := 0
	for _, doc := range movements {
		var m models.StockMovement
		if err := doc.Decode(&m); err != nil {
			t.Fatalf("decode movement: %v", err)
		}
		if m.Type == enums.MovementTypeSell {
			delta -= m.Quantity
		} else {
			delta += m.Quantity
		}
	}
	if got.Stock != vinyl.Stock+delta {
		t.Fatalf("movement replay mismatch: stock=%d, initial+delta=%d", got.Stock, vinyl.Stock+delta)
	}
}

func TestStockNeverGoesNegative(t *testing.T) {
	ctx := context.Background()
	ledger, store := newTestLedger(t)

	vinyl := models.VinylItem{ID: "vinyl-1", Title: "LP", ArtistID: "artist-1", Stock: 2}
	if err := store.Set(ctx, models.CollectionVinylItems, vinyl.ID, vinyl); err != nil {
		t.Fatalf("seed vinyl: %v", err)
	}

	item := models.OrderItem{ID: "vinyl-1", Type: enums.ItemTypeVinyl, Quantity: 5}
	if err := ledger.Decrement(ctx, item, "order-1", "FW-260801-000001"); err != nil {
		t.Fatalf("decrement: %v", err)
	}

	var got models.VinylItem
	if _, err := store.Get(ctx, models.CollectionVinylItems, vinyl.ID, &got); err != nil {
		t.Fatalf("get vinyl: %v", err)
	}
	if got.Stock != 0 {
		t.Fatalf("expected floor at zero, got %d", got.Stock)
	}
}

func TestMerchVariantResolution(t *testing.T) {
	ctx := context.Background()
	ledger, store := newTestLedger(t)

	merch := models.MerchItem{
		ID:         "merch-1",
		Title:      "Tour Shirt",
		SupplierID: "supplier-1",
		Variants: []models.MerchVariant{
			{Key: "m-black", Size: "M", Color: "Black", Stock: 5},
			{Key: "l-black", Size: "L", Color: "Black", Stock: 4},
		},
		TotalStock:    9,
		LowStockLevel: 3,
	}
	if err := store.Set(ctx, models.CollectionMerchItems, merch.ID, merch); err != nil {
		t.Fatalf("seed merch: %v", err)
	}

	item := models.OrderItem{ID: "merch-1", Type: enums.ItemTypeMerch, Quantity: 2, Size: "M", Color: "Black"}
	if err := ledger.Decrement(ctx, item, "order-1", "FW-260801-000001"); err != nil {
		t.Fatalf("decrement: %v", err)
	}

	var got models.MerchItem
	if _, err := store.Get(ctx, models.CollectionMerchItems, merch.ID, &got); err != nil {
		t.Fatalf("get merch: %v", err)
	}
	if got.Variants[0].Stock != 3 || got.Variants[0].Sold != 2 {
		t.Fatalf("unexpected variant counters %+v", got.Variants[0])
	}
	if got.TotalStock != 7 || got.SoldStock != 2 {
		t.Fatalf("unexpected aggregates total=%d sold=%d", got.TotalStock, got.SoldStock)
	}
	if got.LowStock {
		t.Fatal("low stock flag set too early")
	}
}

func TestMerchSizePrefixFallback(t *testing.T) {
	ctx := context.Background()
	ledger, store := newTestLedger(t)

	merch := models.MerchItem{
		ID:         "merch-1",
		Title:      "Hoodie",
		SupplierID: "supplier-1",
		Variants: []models.MerchVariant{
			{Key: "xl-navy", Size: "XL", Color: "Navy", Stock: 2},
			{Key: "s-navy", Size: "S", Color: "Navy", Stock: 2},
		},
		TotalStock:    4,
		LowStockLevel: 3,
	}
	if err := store.Set(ctx, models.CollectionMerchItems, merch.ID, merch); err != nil {
		t.Fatalf("seed merch: %v", err)
	}

	// No exact key for xl-blue; the same-size-prefix variant absorbs it.
	item := models.OrderItem{ID: "merch-1", Type: enums.ItemTypeMerch, Quantity: 1, Size: "XL", Color: "Blue"}
	if err := ledger.Decrement(ctx, item, "order-1", "FW-260801-000001"); err != nil {
		t.Fatalf("decrement: %v", err)
	}

	var got models.MerchItem
	if _, err := store.Get(ctx, models.CollectionMerchItems, merch.ID, &got); err != nil {
		t.Fatalf("get merch: %v", err)
	}
	if got.Variants[0].Stock != 1 {
		t.Fatalf("expected xl variant decremented, got %+v", got.Variants)
	}
	if !got.LowStock {
		t.Fatal("expected low stock flag after decrement")
	}
}

func TestMerchSoleVariantFallback(t *testing.T) {
	ctx := context.Background()
	ledger, store := newTestLedger(t)

	merch := models.MerchItem{
		ID:         "merch-1",
		Title:      "Poster",
		SupplierID: "supplier-1",
		Variants:   []models.MerchVariant{{Key: "onesize", Stock: 3}},
		TotalStock: 3,
	}
	if err := store.Set(ctx, models.CollectionMerchItems, merch.ID, merch); err != nil {
		t.Fatalf("seed merch: %v", err)
	}

	item := models.OrderItem{ID: "merch-1", Type: enums.ItemTypeMerch, Quantity: 1, Size: "A2"}
	if err := ledger.Decrement(ctx, item, "order-1", "FW-260801-000001"); err != nil {
		t.Fatalf("decrement: %v", err)
	}

	var got models.MerchItem
	if _, err := store.Get(ctx, models.CollectionMerchItems, merch.ID, &got); err != nil {
		t.Fatalf("get merch: %v", err)
	}
	if got.Variants[0].Stock != 2 {
		t.Fatalf("sole variant not decremented: %+v", got.Variants)
	}
}

func TestListingSellMarksSold(t *testing.T) {
	ctx := context.Background()
	ledger, store := newTestLedger(t)

	listing := models.VinylListing{ID: "listing-1", SellerID: "seller-1", Title: "Rare LP", Stock: 1}
	if err := store.Set(ctx, models.CollectionVinylListings, listing.ID, listing); err != nil {
		t.Fatalf("seed listing: %v", err)
	}

	item := models.OrderItem{ID: "item-1", Type: enums.ItemTypeVinyl, SourceListingID: "listing-1", SellerID: "seller-1", Quantity: 1}
	if err := ledger.Decrement(ctx, item, "order-1", "FW-260801-000001"); err != nil {
		t.Fatalf("decrement: %v", err)
	}

	var got models.VinylListing
	if _, err := store.Get(ctx, models.CollectionVinylListings, listing.ID, &got); err != nil {
		t.Fatalf("get listing: %v", err)
	}
	if got.Stock != 0 || !got.Sold {
		t.Fatalf("expected sold-out listing, stock=%d sold=%v", got.Stock, got.Sold)
	}
}

func TestDigitalItemsCarryNoInventory(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger(t)

	item := models.OrderItem{ID: "digital-1", Type: enums.ItemTypeDigital, Quantity: 1}
	if err := ledger.Decrement(ctx, item, "order-1", "FW-260801-000001"); err != nil {
		t.Fatalf("digital decrement should be a no-op: %v", err)
	}
}
