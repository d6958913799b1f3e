package stock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fairwavehq/fairwave-backend/pkg/docstore"
	"github.com/fairwavehq/fairwave-backend/pkg/enums"
	"github.com/fairwavehq/fairwave-backend/pkg/logger"
	"github.com/fairwavehq/fairwave-backend/pkg/models"
)

var (
	errStoreRequired  = errors.New("stock store is required")
	errLoggerRequired = errors.New("stock logger is required")
)

// Ledger adjusts inventory counters for physical items and appends immutable
// movement records. Counters never go below zero, even when oversold.
type Ledger struct {
	store  docstore.Store
	logger *logger.Logger
}

// NewLedger wires the stock ledger to the document store.
func NewLedger(store docstore.Store, logg *logger.Logger) (*Ledger, error) {
	if store == nil {
		return nil, errStoreRequired
	}
	if logg == nil {
		return nil, errLoggerRequired
	}
	return &Ledger{store: store, logger: logg}, nil
}

// Decrement sells the item's quantity out of its stock counter.
func (l *Ledger) Decrement(ctx context.Context, item models.OrderItem, orderID, orderNumber string) error {
	return l.apply(ctx, item, orderID, orderNumber, enums.MovementTypeSell)
}

// Refund returns the item's quantity to its stock counter. The caller owns
// at-most-once semantics per order.
func (l *Ledger) Refund(ctx context.Context, item models.OrderItem, orderID, orderNumber string) error {
	return l.apply(ctx, item, orderID, orderNumber, enums.MovementTypeReturn)
}

func (l *Ledger) apply(ctx context.Context, item models.OrderItem, orderID, orderNumber string, movement enums.MovementType) error {
	if item.Quantity <= 0 {
		return fmt.Errorf("item %s has non-positive quantity %d", item.ID, item.Quantity)
	}

	switch item.Type {
	case enums.ItemTypeMerch:
		return l.applyMerch(ctx, item, orderID, orderNumber, movement)
	case enums.ItemTypeVinyl:
		if item.SourceListingID != "" {
			return l.applyListing(ctx, item, orderID, orderNumber, movement)
		}
		return l.applyVinyl(ctx, item, orderID, orderNumber, movement)
	default:
		// Digital items carry no inventory.
		return nil
	}
}

func (l *Ledger) applyVinyl(ctx context.Context, item models.OrderItem, orderID, orderNumber string, movement enums.MovementType) error {
	var vinyl models.VinylItem
	found, err := l.store.Get(ctx, models.CollectionVinylItems, item.ID, &vinyl)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("vinyl item %s not found", item.ID)
	}

	previous := vinyl.Stock
	next, sold := move(previous, vinyl.Sold, item.Quantity, movement)

	if err := l.store.Update(ctx, models.CollectionVinylItems, item.ID, map[string]any{
		"stock":     next,
		"sold":      sold,
		"updatedAt": time.Now().UTC(),
	}); err != nil {
		return err
	}
	return l.appendMovement(ctx, models.CollectionVinylStockMovements, item.ID, "", movement, item.Quantity, previous, next, orderID, orderNumber)
}

func (l *Ledger) applyListing(ctx context.Context, item models.OrderItem, orderID, orderNumber string, movement enums.MovementType) error {
	var listing models.VinylListing
	found, err := l.store.Get(ctx, models.CollectionVinylListings, item.SourceListingID, &listing)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("vinyl listing %s not found", item.SourceListingID)
	}

	previous := listing.Stock
	var next int
	if movement == enums.MovementTypeSell {
		next = floorZero(previous - item.Quantity)
	} else {
		next = previous + item.Quantity
	}

	if err := l.store.Update(ctx, models.CollectionVinylListings, item.SourceListingID, map[string]any{
		"stock":     next,
		"sold":      next == 0,
		"updatedAt": time.Now().UTC(),
	}); err != nil {
		return err
	}
	return l.appendMovement(ctx, models.CollectionVinylStockMovements, item.SourceListingID, "", movement, item.Quantity, previous, next, orderID, orderNumber)
}

func (l *Ledger) applyMerch(ctx context.Context, item models.OrderItem, orderID, orderNumber string, movement enums.MovementType) error {
	var merch models.MerchItem
	found, err := l.store.Get(ctx, models.CollectionMerchItems, item.ID, &merch)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("merch item %s not found", item.ID)
	}

	idx := resolveVariant(merch.Variants, item.Size, item.Color)
	if idx < 0 {
		return fmt.Errorf("merch item %s has no variant for size=%q color=%q", item.ID, item.Size, item.Color)
	}

	variant := merch.Variants[idx]
	previous := variant.Stock
	next, sold := move(previous, variant.Sold, item.Quantity, movement)
	merch.Variants[idx].Stock = next
	merch.Variants[idx].Sold = sold

	total, soldTotal := 0, 0
	for _, v := range merch.Variants {
		total += v.Stock
		soldTotal += v.Sold
	}
	lowStock := merch.LowStockLevel > 0 && total <= merch.LowStockLevel

	if err := l.store.Update(ctx, models.CollectionMerchItems, item.ID, map[string]any{
		"variants":   merch.Variants,
		"totalStock": total,
		"soldStock":  soldTotal,
		"lowStock":   lowStock,
		"updatedAt":  time.Now().UTC(),
	}); err != nil {
		return err
	}
	return l.appendMovement(ctx, models.CollectionMerchStockMovements, item.ID, variant.Key, movement, item.Quantity, previous, next, orderID, orderNumber)
}

func (l *Ledger) appendMovement(ctx context.Context, collection, itemRef, variantKey string, movement enums.MovementType, quantity, previous, next int, orderID, orderNumber string) error {
	record := models.StockMovement{
		ID:            uuid.NewString(),
		ItemRef:       itemRef,
		VariantKey:    variantKey,
		Type:          movement,
		Quantity:      quantity,
		PreviousStock: previous,
		NewStock:      next,
		OrderID:       orderID,
		OrderNumber:   orderNumber,
		CreatedAt:     time.Now().UTC(),
	}
	return l.store.Set(ctx, collection, record.ID, record)
}

// SoldRecorded reports whether a sell movement already exists for the item on
// this order, so repair flows never decrement twice.
func (l *Ledger) SoldRecorded(ctx context.Context, item models.OrderItem, orderID string) (bool, error) {
	var collection, itemRef string
	switch item.Type {
	case enums.ItemTypeMerch:
		collection, itemRef = models.CollectionMerchStockMovements, item.ID
	case enums.ItemTypeVinyl:
		collection, itemRef = models.CollectionVinylStockMovements, item.ID
		if item.SourceListingID != "" {
			itemRef = item.SourceListingID
		}
	default:
		return true, nil
	}

	docs, err := l.store.Query(ctx, collection, docstore.Query{
		Filters: []docstore.Filter{
			{Field: "itemRef", Op: docstore.OpEqual, Value: itemRef},
			{Field: "orderId", Op: docstore.OpEqual, Value: orderID},
			{Field: "type", Op: docstore.OpEqual, Value: enums.MovementTypeSell},
		},
		Limit: 1,
	})
	if err != nil {
		return false, err
	}
	return len(docs) > 0, nil
}

func move(stock, sold, quantity int, movement enums.MovementType) (int, int) {
	if movement == enums.MovementTypeSell {
		return floorZero(stock - quantity), sold + quantity
	}
	return stock + quantity, floorZero(sold - quantity)
}

func floorZero(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// resolveVariant finds the stock-bearing variant for a size/color pick. The
// derived key wins; a sole variant absorbs unmatched picks; otherwise any
// variant sharing the size prefix is accepted.
func resolveVariant(variants []models.MerchVariant, size, color string) int {
	if len(variants) == 0 {
		return -1
	}

	key := VariantKey(size, color)
	for i, v := range variants {
		if v.Key == key {
			return i
		}
	}
	if len(variants) == 1 {
		return 0
	}
	if normalized := normalizeToken(size); normalized != "" {
		for i, v := range variants {
			if strings.HasPrefix(v.Key, normalized) {
				return i
			}
		}
	}
	return -1
}

// VariantKey derives the canonical variant key from a size/color pick.
func VariantKey(size, color string) string {
	parts := []string{}
	for _, raw := range []string{size, color} {
		if token := normalizeToken(raw); token != "" {
			parts = append(parts, token)
		}
	}
	return strings.Join(parts, "-")
}

func normalizeToken(raw string) string {
	token := strings.ToLower(strings.TrimSpace(raw))
	return strings.ReplaceAll(token, " ", "_")
}
