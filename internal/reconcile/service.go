package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"go.uber.org/multierr"

	"github.com/fairwavehq/fairwave-backend/internal/notify"
	"github.com/fairwavehq/fairwave-backend/pkg/enums"
	pkgerrors "github.com/fairwavehq/fairwave-backend/pkg/errors"
	"github.com/fairwavehq/fairwave-backend/pkg/logger"
	"github.com/fairwavehq/fairwave-backend/pkg/metrics"
	"github.com/fairwavehq/fairwave-backend/pkg/models"
	"github.com/fairwavehq/fairwave-backend/pkg/paypalclient"
	stripeclient "github.com/fairwavehq/fairwave-backend/pkg/stripe"
)

var (
	errRepoRequired      = errors.New("reconcile repo is required")
	errOrdersRequired    = errors.New("order finder is required")
	errPayoutsRequired   = errors.New("payout ledger is required")
	errPayeesRequired    = errors.New("payee directory is required")
	errTransfersRequired = errors.New("transfer client is required")
	errBatchRequired     = errors.New("batch payout client is required")
	errNotifierRequired  = errors.New("reversal notifier is required")
	errLoggerRequired    = errors.New("reconcile logger is required")
)

// orderFinder resolves the order a processor charge settled into.
type orderFinder interface {
	FindByPaymentReference(ctx context.Context, paymentReference string) (*models.Order, bool, error)
}

// payoutLedger is the payout and pending-payout persistence surface.
type payoutLedger interface {
	ListPayoutsByOrder(ctx context.Context, orderID string) ([]models.Payout, error)
	RecordReversal(ctx context.Context, payout models.Payout, amount decimal.Decimal) (models.Payout, error)
	CreatePayout(ctx context.Context, payout models.Payout) error
	CreatePendingPayout(ctx context.Context, pending models.PendingPayout) error
	ListOpenPendingByOrder(ctx context.Context, orderID string) ([]models.PendingPayout, error)
	UpdatePendingStatus(ctx context.Context, id string, status enums.PendingPayoutStatus, fields map[string]any) error
	ShrinkPending(ctx context.Context, id string, newAmount decimal.Decimal) error
}

// transferClient is the processor surface reconciliation needs: reversing
// transfers, re-issuing them, and listing a group to catch ledger drift.
type transferClient interface {
	CreateTransfer(ctx context.Context, accountID string, amount decimal.Decimal, currency, transferGroup string) (*stripe.Transfer, error)
	ReverseTransfer(ctx context.Context, transferID string, amount decimal.Decimal) (*stripe.TransferReversal, error)
	ListTransfersByGroup(ctx context.Context, transferGroup string) ([]*stripe.Transfer, error)
}

// batchClient re-issues shares to payees who only carry the batch rail.
type batchClient interface {
	SendPayout(ctx context.Context, receiverEmail string, amount decimal.Decimal, currency, senderItemID, note string) (*paypalclient.PayoutResult, error)
}

// payeeDirectory resolves payees and maintains their earning counters.
type payeeDirectory interface {
	GetPayee(ctx context.Context, id string) (*models.Payee, bool, error)
	AddLifetimeEarnings(ctx context.Context, payeeID string, delta decimal.Decimal) error
	AddPendingBalance(ctx context.Context, payeeID string, delta decimal.Decimal) error
}

// reversalNotifier tells a payee their payout was clawed back.
type reversalNotifier interface {
	PayoutReversed(ctx context.Context, payee models.Payee, orderNumber string, amount decimal.Decimal) notify.Outcome
}

// eventPublisher emits reconciliation events for downstream consumers.
type eventPublisher interface {
	Publish(ctx context.Context, eventType string, payload any) (string, error)
}

// Service reconciles refunds and disputes against the payout ledger. Refunds
// reverse payee shares proportionally to the refunded fraction of the charge;
// disputes reverse everything and settle the net impact when they close.
type Service struct {
	repo      *Repo
	orders    orderFinder
	payouts   payoutLedger
	payees    payeeDirectory
	transfers transferClient
	batch     batchClient
	notifier  reversalNotifier
	events    eventPublisher
	metrics   *metrics.SettlementMetrics
	logger    *logger.Logger
	currency  enums.Currency
}

// NewService validates and wires the reconciler. The event publisher is
// optional; without one reconciliation events are not emitted.
func NewService(repo *Repo, orders orderFinder, payoutLedger payoutLedger, payees payeeDirectory, transfers transferClient, batch batchClient, notifier reversalNotifier, events eventPublisher, m *metrics.SettlementMetrics, logg *logger.Logger, currency enums.Currency) (*Service, error) {
	if repo == nil {
		return nil, errRepoRequired
	}
	if orders == nil {
		return nil, errOrdersRequired
	}
	if payoutLedger == nil {
		return nil, errPayoutsRequired
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
	return &Service{
		repo:      repo,
		orders:    orders,
		payouts:   payoutLedger,
		payees:    payees,
		transfers: transfers,
		batch:     batch,
		notifier:  notifier,
		events:    events,
		metrics:   m,
		logger:    logg,
		currency:  currency,
	}, nil
}

// OnRefund applies a refund event carrying the charge's cumulative refunded
// total. Replayed and out-of-order events are safe: only the amount refunded
// since the last processed event is reversed, proportionally across payouts.
func (s *Service) OnRefund(ctx context.Context, chargeRef string, totalCharge, totalRefunded decimal.Decimal) error {
	if chargeRef == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "charge reference is required")
	}
	if !totalCharge.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "charge amount must be positive")
	}
	ctx = s.logger.WithPaymentRef(ctx, chargeRef)

	order, found, err := s.orders.FindByPaymentReference(ctx, chargeRef)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "order lookup failed")
	}
	if !found {
		s.logger.Warn(ctx, "refund for unknown charge, nothing to reconcile")
		return nil
	}
	ctx = s.logger.WithOrderID(ctx, order.ID)

	record, haveRecord, err := s.repo.FindRefundByCharge(ctx, chargeRef)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refund lookup failed")
	}
	already := decimal.Zero
	if haveRecord {
		already = record.AmountRefunded
	}
	newly := totalRefunded.Sub(already)
	if !newly.IsPositive() {
		s.logger.Info(ctx, "refund event carries no new amount, skipping")
		return nil
	}
	fraction := newly.Div(totalCharge)

	var errs error
	payouts, err := s.payouts.ListPayoutsByOrder(ctx, order.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payout lookup failed")
	}
	for _, payout := range payouts {
		share := payout.Amount.Mul(fraction).Round(2)
		if share.GreaterThan(payout.Remaining()) {
			share = payout.Remaining()
		}
		if !share.IsPositive() {
			continue
		}
		if err := s.reversePayout(ctx, payout, share, order.OrderNumber, "refund"); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	fullRefund := totalRefunded.GreaterThanOrEqual(totalCharge)
	if err := s.adjustPendings(ctx, order.ID, fraction, fullRefund); err != nil {
		errs = multierr.Append(errs, err)
	}

	now := time.Now().UTC()
	if !haveRecord {
		record = &models.Refund{ID: uuid.NewString(), ChargeRef: chargeRef, OrderID: order.ID, CreatedAt: now}
	}
	record.AmountRefunded = totalRefunded
	record.UpdatedAt = now
	if err := s.repo.SaveRefund(ctx, *record); err != nil {
		errs = multierr.Append(errs, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persisting refund record failed"))
	}

	s.publish(ctx, "payout.reversed", map[string]any{
		"orderId":        order.ID,
		"chargeRef":      chargeRef,
		"trigger":        "refund",
		"amountRefunded": totalRefunded,
		"newlyRefunded":  newly,
	})
	return errs
}

// OnDisputeOpened freezes the order's settlement: every transfer in the
// order's group is reversed and open pendings are cancelled. Replaying the
// same dispute reference returns the existing record.
func (s *Service) OnDisputeOpened(ctx context.Context, disputeRef, chargeRef string, amount decimal.Decimal, reason string) (*models.Dispute, error) {
	if disputeRef == "" || chargeRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dispute and charge references are required")
	}
	if existing, found, err := s.repo.FindDisputeByRef(ctx, disputeRef); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "dispute lookup failed")
	} else if found {
		return existing, nil
	}

	ctx = s.logger.WithPaymentRef(ctx, chargeRef)
	order, found, err := s.orders.FindByPaymentReference(ctx, chargeRef)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "order lookup failed")
	}
	if !found {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no order for disputed charge")
	}
	ctx = s.logger.WithOrderID(ctx, order.ID)
	s.logger.Warn(ctx, fmt.Sprintf("dispute %s opened, reversing all transfers", disputeRef))

	var errs error
	var reversed []models.ReversedTransfer
	recovered := decimal.Zero

	payouts, err := s.payouts.ListPayoutsByOrder(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payout lookup failed")
	}
	knownTransfers := make(map[string]bool, len(payouts))
	for _, payout := range payouts {
		if payout.ExternalTransferRef != "" {
			knownTransfers[payout.ExternalTransferRef] = true
		}
		remaining := payout.Remaining()
		if !remaining.IsPositive() {
			continue
		}
		if err := s.reversePayout(ctx, payout, remaining, order.OrderNumber, "dispute"); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		reversed = append(reversed, models.ReversedTransfer{
			PayoutID: payout.ID,
			PayeeID:  payout.PayeeID,
			Amount:   remaining,
		})
		recovered = recovered.Add(remaining)
	}

	// Transfers the processor knows about but the ledger does not are drift
	// from a crashed dispatch; reverse them too so the dispute recovers
	// everything that left the platform balance.
	if err := s.reverseUntracked(ctx, order.ID, knownTransfers, &recovered); err != nil {
		errs = multierr.Append(errs, err)
	}

	if err := s.adjustPendings(ctx, order.ID, decimal.Zero, true); err != nil {
		errs = multierr.Append(errs, err)
	}

	now := time.Now().UTC()
	dispute := models.Dispute{
		ID:                uuid.NewString(),
		DisputeRef:        disputeRef,
		ChargeRef:         chargeRef,
		OrderID:           order.ID,
		Amount:            amount,
		Reason:            reason,
		Status:            enums.DisputeStatusOpen,
		TransfersReversed: reversed,
		AmountRecovered:   recovered,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.repo.SaveDispute(ctx, dispute); err != nil {
		errs = multierr.Append(errs, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persisting dispute failed"))
	}

	s.publish(ctx, "dispute.opened", map[string]any{
		"disputeRef":      disputeRef,
		"orderId":         order.ID,
		"amount":          amount,
		"reason":          reason,
		"amountRecovered": recovered,
	})
	return &dispute, errs
}

// OnDisputeClosed settles a dispute. Lost: the net impact is the disputed
// amount minus what the open reversed. Won: every reversed share is re-issued
// and the net impact is zero. Closing a closed dispute is a no-op.
func (s *Service) OnDisputeClosed(ctx context.Context, disputeRef string, won bool) (*models.Dispute, error) {
	dispute, found, err := s.repo.FindDisputeByRef(ctx, disputeRef)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "dispute lookup failed")
	}
	if !found {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "dispute not found")
	}
	if dispute.Status != enums.DisputeStatusOpen {
		return dispute, nil
	}
	ctx = s.logger.WithOrderID(ctx, dispute.OrderID)

	var errs error
	if won {
		orderNumber := dispute.OrderID
		if order, ok, err := s.orders.FindByPaymentReference(ctx, dispute.ChargeRef); err == nil && ok {
			orderNumber = order.OrderNumber
		}
		for _, rt := range dispute.TransfersReversed {
			if err := s.reissueShare(ctx, dispute.OrderID, orderNumber, rt); err != nil {
				errs = multierr.Append(errs, err)
			}
		}
		dispute.Status = enums.DisputeStatusWon
		netImpact := decimal.Zero
		dispute.NetImpact = &netImpact
	} else {
		dispute.Status = enums.DisputeStatusLost
		netImpact := dispute.Amount.Sub(dispute.AmountRecovered)
		dispute.NetImpact = &netImpact
	}

	dispute.UpdatedAt = time.Now().UTC()
	if err := s.repo.SaveDispute(ctx, *dispute); err != nil {
		errs = multierr.Append(errs, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persisting dispute failed"))
	}

	s.publish(ctx, "dispute.closed", map[string]any{
		"disputeRef": disputeRef,
		"orderId":    dispute.OrderID,
		"won":        won,
		"netImpact":  dispute.NetImpact,
	})
	return dispute, errs
}

// reversePayout claws back the given amount from one payout: processor
// reversal for instant-rail transfers, then ledger and earnings updates.
func (s *Service) reversePayout(ctx context.Context, payout models.Payout, amount decimal.Decimal, orderNumber, trigger string) error {
	ctx = s.logger.WithPayeeID(ctx, payout.PayeeID)
	if payout.Rail == enums.PayoutRailInstant && payout.ExternalTransferRef != "" {
		if _, err := s.transfers.ReverseTransfer(ctx, payout.ExternalTransferRef, amount); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("reversing transfer %s failed", payout.ExternalTransferRef))
		}
	}
	if _, err := s.payouts.RecordReversal(ctx, payout, amount); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "recording reversal failed")
	}
	if err := s.payees.AddLifetimeEarnings(ctx, payout.PayeeID, amount.Neg()); err != nil {
		s.logger.Error(ctx, "earnings clawback failed", err)
	}
	s.metrics.IncReversal(trigger)

	payee, found, err := s.payees.GetPayee(ctx, payout.PayeeID)
	if err == nil && found {
		if outcome := s.notifier.PayoutReversed(ctx, *payee, orderNumber, amount); outcome.Failed() {
			s.logger.Warn(ctx, fmt.Sprintf("reversal notification failed: %v", outcome.Err))
		}
	}
	return nil
}

func (s *Service) reverseUntracked(ctx context.Context, orderID string, known map[string]bool, recovered *decimal.Decimal) error {
	transfers, err := s.transfers.ListTransfersByGroup(ctx, orderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing transfer group failed")
	}
	var errs error
	for _, t := range transfers {
		if known[t.ID] || t.AmountReversed >= t.Amount {
			continue
		}
		remaining := stripeclient.FromCents(t.Amount - t.AmountReversed)
		s.logger.Warn(ctx, fmt.Sprintf("reversing untracked transfer %s", t.ID))
		if _, err := s.transfers.ReverseTransfer(ctx, t.ID, remaining); err != nil {
			errs = multierr.Append(errs, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("reversing transfer %s failed", t.ID)))
			continue
		}
		*recovered = recovered.Add(remaining)
	}
	return errs
}

// adjustPendings shrinks or cancels the order's open pending rows. Cancel
// everything when cancelAll is set, otherwise shave off the given fraction.
// The payee's pending balance only moves for awaiting_connect rows since
// only those credited it.
func (s *Service) adjustPendings(ctx context.Context, orderID string, fraction decimal.Decimal, cancelAll bool) error {
	pendings, err := s.payouts.ListOpenPendingByOrder(ctx, orderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "pending lookup failed")
	}
	var errs error
	for _, pending := range pendings {
		if cancelAll {
			if err := s.payouts.UpdatePendingStatus(ctx, pending.ID, enums.PendingPayoutStatusCancelled, nil); err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			if pending.Status == enums.PendingPayoutStatusAwaitingConnect {
				if err := s.payees.AddPendingBalance(ctx, pending.PayeeID, pending.Amount.Neg()); err != nil {
					s.logger.Error(ctx, "pending balance adjustment failed", err)
				}
			}
			continue
		}
		reduce := pending.Amount.Mul(fraction).Round(2)
		if reduce.GreaterThan(pending.Amount) {
			reduce = pending.Amount
		}
		if !reduce.IsPositive() {
			continue
		}
		if err := s.payouts.ShrinkPending(ctx, pending.ID, pending.Amount.Sub(reduce)); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if pending.Status == enums.PendingPayoutStatusAwaitingConnect {
			if err := s.payees.AddPendingBalance(ctx, pending.PayeeID, reduce.Neg()); err != nil {
				s.logger.Error(ctx, "pending balance adjustment failed", err)
			}
		}
	}
	return errs
}

// reissueShare restores one reversed share after a won dispute: back out on
// the payee's rail when they still carry a credential, otherwise a pending
// row so the funds surface when they connect.
func (s *Service) reissueShare(ctx context.Context, orderID, orderNumber string, rt models.ReversedTransfer) error {
	ctx = s.logger.WithPayeeID(ctx, rt.PayeeID)
	payee, found, err := s.payees.GetPayee(ctx, rt.PayeeID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payee lookup failed")
	}

	if found {
		if rail, ok := payee.RailFor(); ok {
			return s.reissueOnRail(ctx, orderID, orderNumber, *payee, rail, rt.Amount)
		}
	}

	now := time.Now().UTC()
	pending := models.PendingPayout{
		ID:            uuid.NewString(),
		PayeeID:       rt.PayeeID,
		PayeeRole:     payeeRoleOrDefault(payee),
		OrderID:       orderID,
		OrderNumber:   orderNumber,
		Amount:        rt.Amount,
		Currency:      s.currency,
		Status:        enums.PendingPayoutStatusAwaitingConnect,
		FailureReason: "dispute won, payout credential unavailable",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.payouts.CreatePendingPayout(ctx, pending); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "recording re-issue pending failed")
	}
	if found {
		if err := s.payees.AddPendingBalance(ctx, rt.PayeeID, rt.Amount); err != nil {
			s.logger.Error(ctx, "pending balance restore failed", err)
		}
	}
	s.metrics.IncPendingPayout("dispute_won_reissue")
	return nil
}

// reissueOnRail sends a won-dispute share back out. The batch rail fee is
// not deducted on a re-issue: the payee's earnings must restore to exactly
// what the dispute clawed back, so the platform absorbs the second send.
func (s *Service) reissueOnRail(ctx context.Context, orderID, orderNumber string, payee models.Payee, rail enums.PayoutRail, amount decimal.Decimal) error {
	var externalRef string
	switch rail {
	case enums.PayoutRailInstant:
		transfer, err := s.transfers.CreateTransfer(ctx, payee.TransferAccountID, amount, s.currency.String(), orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "re-issuing transfer failed")
		}
		externalRef = transfer.ID
	case enums.PayoutRailBatch:
		senderItemID := fmt.Sprintf("%s-%s-reissue", orderID, payee.ID)
		note := fmt.Sprintf("Fairwave payout for order %s", orderNumber)
		result, err := s.batch.SendPayout(ctx, payee.PayoutEmail, amount, s.currency.String(), senderItemID, note)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "re-issuing batch payout failed")
		}
		externalRef = result.BatchID
	default:
		return pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("unsupported payout rail %q", rail))
	}

	now := time.Now().UTC()
	payout := models.Payout{
		ID:                  uuid.NewString(),
		PayeeID:             payee.ID,
		PayeeRole:           payee.Role,
		OrderID:             orderID,
		Amount:              amount,
		Currency:            s.currency,
		Rail:                rail,
		Status:              enums.PayoutStatusCompleted,
		ExternalTransferRef: externalRef,
		ReversedAmount:      decimal.Zero,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.payouts.CreatePayout(ctx, payout); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "recording re-issued payout failed")
	}
	if err := s.payees.AddLifetimeEarnings(ctx, payee.ID, amount); err != nil {
		s.logger.Error(ctx, "earnings restore failed", err)
	}
	s.metrics.IncPayout(string(rail))
	return nil
}

// publish is fire-and-forget: reconciliation never fails on a dropped event.
func (s *Service) publish(ctx context.Context, eventType string, payload map[string]any) {
	if s.events == nil {
		return
	}
	if _, err := s.events.Publish(ctx, eventType, payload); err != nil {
		s.logger.Warn(ctx, fmt.Sprintf("%s event publish failed: %v", eventType, err))
	}
}

func payeeRoleOrDefault(payee *models.Payee) enums.PayeeRole {
	if payee != nil {
		return payee.Role
	}
	return enums.PayeeRoleArtist
}
