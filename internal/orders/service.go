package orders

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fairwavehq/fairwave-backend/internal/notify"
	"github.com/fairwavehq/fairwave-backend/internal/payouts"
	"github.com/fairwavehq/fairwave-backend/pkg/enums"
	pkgerrors "github.com/fairwavehq/fairwave-backend/pkg/errors"
	"github.com/fairwavehq/fairwave-backend/pkg/logger"
	"github.com/fairwavehq/fairwave-backend/pkg/metrics"
	"github.com/fairwavehq/fairwave-backend/pkg/models"
)

var (
	errRepoRequired    = errors.New("orders repo is required")
	errCatalogRequired = errors.New("catalog reader is required")
	errStockRequired   = errors.New("stock ledger is required")
	errRouterRequired  = errors.New("payout router is required")
	errNotifyRequired  = errors.New("notifier is required")
	errLoggerRequired  = errors.New("orders logger is required")
)

// catalogReader resolves fulfillment metadata for digital items.
type catalogReader interface {
	GetRelease(ctx context.Context, id string) (*models.Release, bool, error)
	GetTrack(ctx context.Context, id string) (*models.Track, bool, error)
}

// stockLedger adjusts inventory for physical items.
type stockLedger interface {
	Decrement(ctx context.Context, item models.OrderItem, orderID, orderNumber string) error
	Refund(ctx context.Context, item models.OrderItem, orderID, orderNumber string) error
	SoldRecorded(ctx context.Context, item models.OrderItem, orderID string) (bool, error)
}

// payoutRouter fans the payment out to payees.
type payoutRouter interface {
	Dispatch(ctx context.Context, order models.Order) ([]payouts.Result, error)
	CoveredPayees(ctx context.Context, orderID string) (map[string]bool, error)
}

// notifier sends the order's transactional mail. Failures come back as
// outcomes, never as errors.
type notifier interface {
	OrderConfirmation(ctx context.Context, order models.Order) notify.Outcome
	FulfillmentAlert(ctx context.Context, order models.Order) notify.Outcome
	PayeeSaleSummary(ctx context.Context, payee models.Payee, order models.Order, items []models.OrderItem, amount decimal.Decimal) notify.Outcome
}

// eventPublisher emits settlement events for downstream consumers.
type eventPublisher interface {
	Publish(ctx context.Context, eventType string, payload any) (string, error)
}

// CreateOrderInput carries a confirmed payment's cart into the assembler.
type CreateOrderInput struct {
	Items            []models.OrderItem
	Customer         models.Customer
	Shipping         *models.ShippingAddress
	Totals           models.OrderTotals
	PaymentMethod    enums.PaymentMethod
	PaymentReference string
}

// CreateOrderResult identifies the order the input settled into. Duplicate is
// true when an earlier delivery of the same payment already created it.
type CreateOrderResult struct {
	OrderID     string
	OrderNumber string
	Duplicate   bool
}

// Assembler builds the canonical order document from a confirmed payment and
// drives the settlement pipeline: persist once, decrement stock, fan out
// payouts, send notifications. Steps after the persist are deliberately
// non-transactional; repair endpoints re-run the ones that failed.
type Assembler struct {
	repo    *Repo
	catalog catalogReader
	stock   stockLedger
	router  payoutRouter
	notify  notifier
	events  eventPublisher
	metrics *metrics.SettlementMetrics
	logger  *logger.Logger
}

// NewAssembler validates and wires the order assembler. The event publisher
// is optional; everything else is required.
func NewAssembler(repo *Repo, catalog catalogReader, stock stockLedger, router payoutRouter, n notifier, events eventPublisher, m *metrics.SettlementMetrics, logg *logger.Logger) (*Assembler, error) {
	if repo == nil {
		return nil, errRepoRequired
	}
	if catalog == nil {
		return nil, errCatalogRequired
	}
	if stock == nil {
		return nil, errStockRequired
	}
	if router == nil {
		return nil, errRouterRequired
	}
	if n == nil {
		return nil, errNotifyRequired
	}
	if logg == nil {
		return nil, errLoggerRequired
	}
	return &Assembler{
		repo:    repo,
		catalog: catalog,
		stock:   stock,
		router:  router,
		notify:  n,
		events:  events,
		metrics: m,
		logger:  logg,
	}, nil
}

// CreateOrder persists exactly one order per payment reference and runs the
// settlement fan-out. A duplicate delivery returns the existing order with no
// new side effects.
func (a *Assembler) CreateOrder(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	ctx = a.logger.WithPaymentRef(ctx, input.PaymentReference)

	if input.PaymentReference != "" {
		existing, found, err := a.repo.FindByPaymentReference(ctx, input.PaymentReference)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "idempotency lookup failed")
		}
		if found {
			a.logger.Info(ctx, "duplicate payment event, returning existing order")
			return &CreateOrderResult{OrderID: existing.ID, OrderNumber: existing.OrderNumber, Duplicate: true}, nil
		}
	}

	now := time.Now().UTC()
	order := models.Order{
		ID:               uuid.NewString(),
		OrderNumber:      newOrderNumber(now),
		Customer:         input.Customer,
		Shipping:         input.Shipping,
		Items:            a.enrichItems(ctx, input.Items),
		Totals:           input.Totals,
		PaymentMethod:    input.PaymentMethod,
		PaymentReference: input.PaymentReference,
		Status:           enums.OrderStatusProcessing,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	applyItemFlags(&order)
	if order.HasPreOrderItems {
		order.Status = enums.OrderStatusAwaitingRelease
	}

	ctx = a.logger.WithOrderID(ctx, order.ID)
	if err := a.repo.Create(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persisting order failed")
	}
	a.metrics.IncOrderCreated()
	a.logger.Info(ctx, fmt.Sprintf("order %s created", order.OrderNumber))

	a.decrementStock(ctx, order)
	results := a.dispatchPayouts(ctx, order)
	a.sendNotifications(ctx, order, results)
	a.publishSettled(ctx, order, results)

	return &CreateOrderResult{OrderID: order.ID, OrderNumber: order.OrderNumber}, nil
}

// RepairStock re-runs stock decrements for items that have no recorded sell
// movement on the order. Safe to invoke repeatedly.
func (a *Assembler) RepairStock(ctx context.Context, orderID string) (int, error) {
	order, found, err := a.repo.Get(ctx, orderID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading order failed")
	}
	if !found {
		return 0, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}

	ctx = a.logger.WithOrderID(ctx, order.ID)
	repaired := 0
	for _, item := range order.Items {
		if !item.Type.IsPhysical() {
			continue
		}
		recorded, err := a.stock.SoldRecorded(ctx, item, order.ID)
		if err != nil {
			return repaired, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "movement lookup failed")
		}
		if recorded {
			continue
		}
		if err := a.stock.Decrement(ctx, item, order.ID, order.OrderNumber); err != nil {
			a.logger.Error(ctx, fmt.Sprintf("stock repair failed for item %s", item.ID), err)
			continue
		}
		repaired++
	}
	return repaired, nil
}

// RepairPayouts re-dispatches payee groups that have neither a payout nor an
// open pending row for the order. Safe to invoke repeatedly.
func (a *Assembler) RepairPayouts(ctx context.Context, orderID string) ([]payouts.Result, error) {
	order, found, err := a.repo.Get(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading order failed")
	}
	if !found {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}

	ctx = a.logger.WithOrderID(ctx, order.ID)
	covered, err := a.router.CoveredPayees(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payout lookup failed")
	}

	uncovered := *order
	uncovered.Items = nil
	for _, item := range order.Items {
		if payeeID := item.PayeeID(); payeeID != "" && !covered[payeeID] {
			uncovered.Items = append(uncovered.Items, item)
		}
	}
	if len(uncovered.Items) == 0 {
		return nil, nil
	}

	results, err := a.router.Dispatch(ctx, uncovered)
	if err != nil {
		return results, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payout repair failed")
	}
	a.sendPayeeSummaries(ctx, *order, results)
	return results, nil
}

// enrichItems fills fulfillment metadata from the catalog. Lookups are
// best-effort; a missing catalog record leaves the item as the cart sent it.
func (a *Assembler) enrichItems(ctx context.Context, items []models.OrderItem) []models.OrderItem {
	enriched := make([]models.OrderItem, len(items))
	for i, item := range items {
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		if item.Quantity < 1 {
			item.Quantity = 1
		}
		if item.Type == enums.ItemTypeDigital || item.Type == enums.ItemTypeTrack {
			a.enrichDigital(ctx, &item)
		}
		enriched[i] = item
	}
	return enriched
}

func (a *Assembler) enrichDigital(ctx context.Context, item *models.OrderItem) {
	if item.ReleaseID == "" {
		return
	}
	release, found, err := a.catalog.GetRelease(ctx, item.ReleaseID)
	if err != nil || !found {
		if err != nil {
			a.logger.Error(ctx, fmt.Sprintf("release lookup failed for item %s", item.ID), err)
		}
		return
	}

	if item.ArtworkURL == "" {
		item.ArtworkURL = release.ResolveArtworkURL()
	}
	if item.ArtistID == "" {
		item.ArtistID = release.ArtistID
	}

	if item.Type == enums.ItemTypeDigital {
		if item.FileURL == "" {
			item.FileURL = release.ResolveFileURL()
		}
		return
	}

	// Track resolution priority: by id, then by name against the release's
	// tracklist, then fall back to including the full tracklist.
	if item.TrackID != "" {
		track, found, err := a.catalog.GetTrack(ctx, item.TrackID)
		if err != nil {
			a.logger.Error(ctx, fmt.Sprintf("track lookup failed for item %s", item.ID), err)
		}
		if found {
			item.Tracks = []models.TrackInfo{{ID: track.ID, Title: track.Title, FileURL: track.FileURL}}
			return
		}
	}
	for _, track := range release.Tracks {
		if strings.EqualFold(strings.TrimSpace(track.Title), strings.TrimSpace(item.Title)) {
			item.Tracks = []models.TrackInfo{{ID: track.ID, Title: track.Title, FileURL: track.FileURL}}
			return
		}
	}
	all := make([]models.TrackInfo, 0, len(release.Tracks))
	for _, track := range release.Tracks {
		all = append(all, models.TrackInfo{ID: track.ID, Title: track.Title, FileURL: track.FileURL})
	}
	item.Tracks = all
}

func (a *Assembler) decrementStock(ctx context.Context, order models.Order) {
	for _, item := range order.Items {
		if !item.Type.IsPhysical() {
			continue
		}
		if err := a.stock.Decrement(ctx, item, order.ID, order.OrderNumber); err != nil {
			// One bad stock record must not block sibling items.
			a.logger.Error(ctx, fmt.Sprintf("stock decrement failed for item %s", item.ID), err)
		}
	}
}

func (a *Assembler) dispatchPayouts(ctx context.Context, order models.Order) []payouts.Result {
	results, err := a.router.Dispatch(ctx, order)
	if err != nil {
		a.logger.Error(ctx, "payout dispatch incomplete", err)
	}
	return results
}

func (a *Assembler) sendNotifications(ctx context.Context, order models.Order, results []payouts.Result) {
	outcomes := []notify.Outcome{a.notify.OrderConfirmation(ctx, order)}
	if order.HasPhysicalItems {
		outcomes = append(outcomes, a.notify.FulfillmentAlert(ctx, order))
	}
	a.sendPayeeSummaries(ctx, order, results)

	for _, outcome := range outcomes {
		if outcome.Failed() {
			a.logger.Warn(ctx, fmt.Sprintf("%s notification failed: %v", outcome.Kind, outcome.Err))
		}
	}
}

func (a *Assembler) sendPayeeSummaries(ctx context.Context, order models.Order, results []payouts.Result) {
	for _, result := range results {
		if result.PayeeEmail == "" || !result.Amount.IsPositive() {
			continue
		}
		payee := models.Payee{
			ID:    result.PayeeID,
			Name:  result.PayeeName,
			Email: result.PayeeEmail,
			Role:  result.PayeeRole,
		}
		if outcome := a.notify.PayeeSaleSummary(ctx, payee, order, result.Items, result.Amount); outcome.Failed() {
			a.logger.Warn(ctx, fmt.Sprintf("payee summary failed for %s: %v", result.PayeeID, outcome.Err))
		}
	}
}

func (a *Assembler) publishSettled(ctx context.Context, order models.Order, results []payouts.Result) {
	if a.events == nil {
		return
	}
	payload := map[string]any{
		"orderId":     order.ID,
		"orderNumber": order.OrderNumber,
		"total":       order.Totals.Total,
		"payees":      len(results),
		"settledAt":   order.CreatedAt,
	}
	if _, err := a.events.Publish(ctx, "order.settled", payload); err != nil {
		a.logger.Warn(ctx, fmt.Sprintf("settlement event publish failed: %v", err))
	}

	if len(results) == 0 {
		return
	}
	shares := make([]map[string]any, 0, len(results))
	for _, result := range results {
		shares = append(shares, map[string]any{
			"payeeId":     result.PayeeID,
			"rail":        result.Rail,
			"disposition": result.Disposition,
			"amount":      result.Amount,
		})
	}
	if _, err := a.events.Publish(ctx, "payout.dispatched", map[string]any{
		"orderId": order.ID,
		"shares":  shares,
	}); err != nil {
		a.logger.Warn(ctx, fmt.Sprintf("payout event publish failed: %v", err))
	}
}

func validateInput(input CreateOrderInput) error {
	if strings.TrimSpace(input.Customer.Email) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer email is required")
	}
	if len(input.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order has no items")
	}
	if !input.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown payment method")
	}
	return nil
}

func applyItemFlags(order *models.Order) {
	var latest *time.Time
	for _, item := range order.Items {
		if item.Type.IsPhysical() {
			order.HasPhysicalItems = true
		}
		if item.PreOrder {
			order.HasPreOrderItems = true
			if item.PreOrderRelease != nil && (latest == nil || item.PreOrderRelease.After(*latest)) {
				latest = item.PreOrderRelease
			}
		}
	}
	order.PreOrderRelease = latest
}

// newOrderNumber builds the human-readable order handle, FW-YYMMDD-XXXXXX.
func newOrderNumber(now time.Time) string {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		n = big.NewInt(now.UnixNano() % 1_000_000)
	}
	return fmt.Sprintf("FW-%s-%06d", now.Format("060102"), n.Int64())
}
