package payouts

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	"github.com/fairwavehq/fairwave-backend/internal/fees"
	"github.com/fairwavehq/fairwave-backend/internal/notify"
	"github.com/fairwavehq/fairwave-backend/pkg/enums"
	"github.com/fairwavehq/fairwave-backend/pkg/logger"
	"github.com/fairwavehq/fairwave-backend/pkg/metrics"
	"github.com/fairwavehq/fairwave-backend/pkg/models"
	"github.com/fairwavehq/fairwave-backend/pkg/paypalclient"
)

var (
	errRepoRequired      = errors.New("payouts repo is required")
	errPayeesRequired    = errors.New("payee directory is required")
	errTransfersRequired = errors.New("transfer client is required")
	errBatchRequired     = errors.New("batch payout client is required")
	errNotifierRequired  = errors.New("pending notifier is required")
	errLoggerRequired    = errors.New("payouts logger is required")
)

// transferClient is the instant-rail surface of the payment processor.
type transferClient interface {
	CreateTransfer(ctx context.Context, accountID string, amount decimal.Decimal, currency, transferGroup string) (*stripe.Transfer, error)
}

// batchClient is the email-addressed batch payout surface.
type batchClient interface {
	SendPayout(ctx context.Context, receiverEmail string, amount decimal.Decimal, currency, senderItemID, note string) (*paypalclient.PayoutResult, error)
}

// payeeDirectory resolves payees and maintains their earning counters.
type payeeDirectory interface {
	GetPayee(ctx context.Context, id string) (*models.Payee, bool, error)
	AddLifetimeEarnings(ctx context.Context, payeeID string, delta decimal.Decimal) error
	AddPendingBalance(ctx context.Context, payeeID string, delta decimal.Decimal) error
	MarkPendingNotified(ctx context.Context, payeeID string, at time.Time) error
}

// pendingNotifier sends the one-time pending-earnings nudge.
type pendingNotifier interface {
	PendingEarnings(ctx context.Context, payee models.Payee, amount decimal.Decimal) notify.Outcome
}

// Disposition is the three-state outcome of routing one payee group.
type Disposition string

const (
	DispositionDispatched      Disposition = "dispatched"
	DispositionAwaitingConnect Disposition = "awaiting_connect"
	DispositionRetryPending    Disposition = "retry_pending"
)

// Result reports how one payee's share of an order was routed.
type Result struct {
	PayeeID       string
	PayeeName     string
	PayeeEmail    string
	PayeeRole     enums.PayeeRole
	Items         []models.OrderItem
	Amount        decimal.Decimal
	Rail          enums.PayoutRail
	Disposition   Disposition
	PayoutID      string
	PendingID     string
	FailureReason string
}

// Service partitions order items by payee, computes net shares, and dispatches
// each share to whichever rail is valid for the payee, recording the outcome.
// A group never hard-fails the order: dispatch problems become pending rows.
type Service struct {
	repo        *Repo
	payees      payeeDirectory
	transfers   transferClient
	batch       batchClient
	notifier    pendingNotifier
	calc        fees.Calculator
	metrics     *metrics.SettlementMetrics
	logger      *logger.Logger
	currency    enums.Currency
	maxAttempts int
}

// NewService validates and wires the payout router.
func NewService(repo *Repo, payees payeeDirectory, transfers transferClient, batch batchClient, notifier pendingNotifier, calc fees.Calculator, m *metrics.SettlementMetrics, logg *logger.Logger, currency enums.Currency, maxAttempts int) (*Service, error) {
	if repo == nil {
		return nil, errRepoRequired
	}
	if payees == nil {
		return nil, errPayeesRequired
	}
	if transfers == nil {
		return nil, errTransfersRequired
	}
	if batch == nil {
		return nil, errBatchRequired
	}
	if notifier == nil {
		return nil, errNotifierRequired
	}
	if logg == nil {
		return nil, errLoggerRequired
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Service{
		repo:        repo,
		payees:      payees,
		transfers:   transfers,
		batch:       batch,
		notifier:    notifier,
		calc:        calc,
		metrics:     m,
		logger:      logg,
		currency:    currency,
		maxAttempts: maxAttempts,
	}, nil
}

type payeeGroup struct {
	payeeID string
	role    enums.PayeeRole
	items   []models.OrderItem
	total   decimal.Decimal
}

// Dispatch fans the order's payment out to its payees. Store errors abort;
// dispatch errors per group do not.
func (s *Service) Dispatch(ctx context.Context, order models.Order) ([]Result, error) {
	groups := groupByPayee(order.Items)
	results := make([]Result, 0, len(groups))

	for _, group := range groups {
		result, err := s.dispatchGroup(ctx, order, group, len(groups))
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

func (s *Service) dispatchGroup(ctx context.Context, order models.Order, group payeeGroup, batchSize int) (Result, error) {
	ctx = s.logger.WithPayeeID(ctx, group.payeeID)
	result := Result{
		PayeeID:   group.payeeID,
		PayeeRole: group.role,
		Items:     group.items,
	}

	payee, found, err := s.payees.GetPayee(ctx, group.payeeID)
	if err != nil {
		return result, err
	}

	net := s.calc.NetShare(group.total, group.role, batchSize)
	result.Amount = net
	if !net.IsPositive() {
		result.Disposition = DispositionDispatched
		return result, nil
	}

	if !found {
		return s.recordAwaitingConnect(ctx, order, nil, result, "payee record missing")
	}
	result.PayeeName = payee.Name
	result.PayeeEmail = payee.Email

	rail, ok := payee.RailFor()
	if !ok {
		return s.recordAwaitingConnect(ctx, order, payee, result, "")
	}
	result.Rail = rail

	transferred, externalRef, dispatchErr := s.sendOnRail(ctx, *payee, rail, net, order.ID, order.OrderNumber)
	if dispatchErr != nil {
		return s.recordRetryPending(ctx, order, result, dispatchErr)
	}
	return s.recordPayout(ctx, order.ID, result, rail, transferred, externalRef)
}

// sendOnRail moves the net share over the chosen rail. The batch rail deducts
// its own service fee before dispatch; the returned amount is what actually
// moved.
func (s *Service) sendOnRail(ctx context.Context, payee models.Payee, rail enums.PayoutRail, net decimal.Decimal, orderID, orderNumber string) (decimal.Decimal, string, error) {
	switch rail {
	case enums.PayoutRailInstant:
		transfer, err := s.transfers.CreateTransfer(ctx, payee.TransferAccountID, net, s.currency.String(), orderID)
		if err != nil {
			return decimal.Zero, "", err
		}
		return net, transfer.ID, nil
	case enums.PayoutRailBatch:
		amount := net.Sub(s.calc.BatchRailFee(net))
		senderItemID := fmt.Sprintf("%s-%s", orderID, payee.ID)
		note := fmt.Sprintf("Fairwave payout for order %s", orderNumber)
		payout, err := s.batch.SendPayout(ctx, payee.PayoutEmail, amount, s.currency.String(), senderItemID, note)
		if err != nil {
			return decimal.Zero, "", err
		}
		return amount, payout.BatchID, nil
	default:
		return decimal.Zero, "", fmt.Errorf("unsupported payout rail %q", rail)
	}
}

func (s *Service) recordPayout(ctx context.Context, orderID string, result Result, rail enums.PayoutRail, amount decimal.Decimal, externalRef string) (Result, error) {
	payout := models.Payout{
		ID:                  uuid.NewString(),
		PayeeID:             result.PayeeID,
		PayeeRole:           result.PayeeRole,
		OrderID:             orderID,
		Amount:              amount,
		Currency:            s.currency,
		Rail:                rail,
		Status:              enums.PayoutStatusCompleted,
		ReversedAmount:      decimal.Zero,
		ExternalTransferRef: externalRef,
		CreatedAt:           time.Now().UTC(),
		UpdatedAt:           time.Now().UTC(),
	}
	if err := s.repo.CreatePayout(ctx, payout); err != nil {
		return result, err
	}
	if err := s.payees.AddLifetimeEarnings(ctx, result.PayeeID, amount); err != nil {
		return result, err
	}
	if err := s.resolveEarlierPendings(ctx, result.PayeeID, orderID); err != nil {
		return result, err
	}

	s.metrics.IncPayout(rail.String())
	result.Amount = amount
	result.Rail = rail
	result.Disposition = DispositionDispatched
	result.PayoutID = payout.ID
	s.logger.Info(ctx, fmt.Sprintf("payout dispatched via %s", rail))
	return result, nil
}

func (s *Service) recordAwaitingConnect(ctx context.Context, order models.Order, payee *models.Payee, result Result, reason string) (Result, error) {
	pending := models.PendingPayout{
		ID:            uuid.NewString(),
		PayeeID:       result.PayeeID,
		PayeeRole:     result.PayeeRole,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		Amount:        result.Amount,
		Currency:      s.currency,
		Status:        enums.PendingPayoutStatusAwaitingConnect,
		FailureReason: reason,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	if err := s.repo.CreatePendingPayout(ctx, pending); err != nil {
		return result, err
	}
	if err := s.payees.AddPendingBalance(ctx, result.PayeeID, result.Amount); err != nil {
		return result, err
	}

	// The nudge to connect a payout method goes out once per payee, not per order.
	if payee != nil && payee.PendingNotifiedAt == nil {
		if outcome := s.notifier.PendingEarnings(ctx, *payee, result.Amount); !outcome.Failed() {
			if err := s.payees.MarkPendingNotified(ctx, payee.ID, time.Now().UTC()); err != nil {
				return result, err
			}
		}
	}

	s.metrics.IncPendingPayout(string(enums.PendingPayoutStatusAwaitingConnect))
	result.Disposition = DispositionAwaitingConnect
	result.PendingID = pending.ID
	result.FailureReason = reason
	s.logger.Info(ctx, "payout parked awaiting connection")
	return result, nil
}

func (s *Service) recordRetryPending(ctx context.Context, order models.Order, result Result, dispatchErr error) (Result, error) {
	pending := models.PendingPayout{
		ID:            uuid.NewString(),
		PayeeID:       result.PayeeID,
		PayeeRole:     result.PayeeRole,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		Amount:        result.Amount,
		Currency:      s.currency,
		Status:        enums.PendingPayoutStatusRetryPending,
		FailureReason: dispatchErr.Error(),
		Attempts:      1,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	if err := s.repo.CreatePendingPayout(ctx, pending); err != nil {
		return result, err
	}

	s.metrics.IncPendingPayout(string(enums.PendingPayoutStatusRetryPending))
	result.Disposition = DispositionRetryPending
	result.PendingID = pending.ID
	result.FailureReason = dispatchErr.Error()
	s.logger.Error(ctx, "payout dispatch failed, parked for retry", dispatchErr)
	return result, nil
}

func (s *Service) resolveEarlierPendings(ctx context.Context, payeeID, orderID string) error {
	pendings, err := s.repo.ListOpenPendingByPayeeOrder(ctx, payeeID, orderID)
	if err != nil {
		return err
	}
	for _, pending := range pendings {
		if err := s.repo.UpdatePendingStatus(ctx, pending.ID, enums.PendingPayoutStatusResolved, nil); err != nil {
			return err
		}
		if pending.Status == enums.PendingPayoutStatusAwaitingConnect {
			if err := s.payees.AddPendingBalance(ctx, payeeID, pending.Amount.Neg()); err != nil {
				return err
			}
		}
	}
	return nil
}

// CoveredPayees returns the payees that already have a payout or an open
// pending row for the order, so repair flows skip them.
func (s *Service) CoveredPayees(ctx context.Context, orderID string) (map[string]bool, error) {
	covered := map[string]bool{}
	payouts, err := s.repo.ListPayoutsByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	for _, p := range payouts {
		covered[p.PayeeID] = true
	}
	pendings, err := s.repo.ListOpenPendingByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	for _, p := range pendings {
		covered[p.PayeeID] = true
	}
	return covered, nil
}

// RetryPending re-attempts dispatch for parked retry-pending shares. After
// maxAttempts failures a share flips to awaiting_connect so it surfaces in
// support tooling instead of looping forever. Returns how many were resolved.
func (s *Service) RetryPending(ctx context.Context, batchSize int) (int, error) {
	pendings, err := s.repo.ListRetryPending(ctx, batchSize)
	if err != nil {
		return 0, err
	}

	resolved := 0
	for _, pending := range pendings {
		ok, err := s.retryOne(ctx, pending)
		if err != nil {
			return resolved, err
		}
		if ok {
			resolved++
		}
	}
	return resolved, nil
}

func (s *Service) retryOne(ctx context.Context, pending models.PendingPayout) (bool, error) {
	ctx = s.logger.WithPayeeID(ctx, pending.PayeeID)

	payee, found, err := s.payees.GetPayee(ctx, pending.PayeeID)
	if err != nil {
		return false, err
	}

	var rail enums.PayoutRail
	var ok bool
	if found {
		rail, ok = payee.RailFor()
	}
	if !found || !ok {
		// Credential disappeared since the original failure.
		if err := s.repo.UpdatePendingStatus(ctx, pending.ID, enums.PendingPayoutStatusAwaitingConnect, nil); err != nil {
			return false, err
		}
		return false, s.payees.AddPendingBalance(ctx, pending.PayeeID, pending.Amount)
	}

	// Rows written before order numbers were stamped on pendings fall back
	// to the order ID in the payout note.
	orderNumber := pending.OrderNumber
	if orderNumber == "" {
		orderNumber = pending.OrderID
	}
	transferred, externalRef, dispatchErr := s.sendOnRail(ctx, *payee, rail, pending.Amount, pending.OrderID, orderNumber)
	if dispatchErr != nil {
		attempts := pending.Attempts + 1
		if attempts >= s.maxAttempts {
			if err := s.repo.UpdatePendingStatus(ctx, pending.ID, enums.PendingPayoutStatusAwaitingConnect, map[string]any{
				"attempts":      attempts,
				"failureReason": dispatchErr.Error(),
			}); err != nil {
				return false, err
			}
			return false, s.payees.AddPendingBalance(ctx, pending.PayeeID, pending.Amount)
		}
		return false, s.repo.UpdatePendingStatus(ctx, pending.ID, enums.PendingPayoutStatusRetryPending, map[string]any{
			"attempts":      attempts,
			"failureReason": dispatchErr.Error(),
		})
	}

	payout := models.Payout{
		ID:                  uuid.NewString(),
		PayeeID:             pending.PayeeID,
		PayeeRole:           pending.PayeeRole,
		OrderID:             pending.OrderID,
		Amount:              transferred,
		Currency:            s.currency,
		Rail:                rail,
		Status:              enums.PayoutStatusCompleted,
		ReversedAmount:      decimal.Zero,
		ExternalTransferRef: externalRef,
		CreatedAt:           time.Now().UTC(),
		UpdatedAt:           time.Now().UTC(),
	}
	if err := s.repo.CreatePayout(ctx, payout); err != nil {
		return false, err
	}
	if err := s.repo.UpdatePendingStatus(ctx, pending.ID, enums.PendingPayoutStatusResolved, map[string]any{
		"originalPayoutId": payout.ID,
	}); err != nil {
		return false, err
	}
	if err := s.payees.AddLifetimeEarnings(ctx, pending.PayeeID, transferred); err != nil {
		return false, err
	}

	s.metrics.IncPayout(rail.String())
	s.logger.Info(ctx, fmt.Sprintf("pending payout resolved via %s", rail))
	return true, nil
}

// groupByPayee buckets items by their resolved payee, in stable payee order.
// Items that resolve to no payee (platform-owned freebies) are skipped.
func groupByPayee(items []models.OrderItem) []payeeGroup {
	byPayee := map[string]*payeeGroup{}
	for _, item := range items {
		payeeID := item.PayeeID()
		if payeeID == "" {
			continue
		}
		group, ok := byPayee[payeeID]
		if !ok {
			group = &payeeGroup{payeeID: payeeID, role: item.PayeeRole()}
			byPayee[payeeID] = group
		}
		group.items = append(group.items, item)
		group.total = group.total.Add(item.LineTotal())
	}

	ids := make([]string, 0, len(byPayee))
	for id := range byPayee {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	groups := make([]payeeGroup, 0, len(ids))
	for _, id := range ids {
		groups = append(groups, *byPayee[id])
	}
	return groups
}
