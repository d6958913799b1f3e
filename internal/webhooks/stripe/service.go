package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/fairwavehq/fairwave-backend/internal/orders"
	"github.com/fairwavehq/fairwave-backend/pkg/enums"
	pkgerrors "github.com/fairwavehq/fairwave-backend/pkg/errors"
	"github.com/fairwavehq/fairwave-backend/pkg/logger"
	"github.com/fairwavehq/fairwave-backend/pkg/metrics"
	"github.com/fairwavehq/fairwave-backend/pkg/models"
	stripeclient "github.com/fairwavehq/fairwave-backend/pkg/stripe"
)

var (
	errGuardRequired      = errors.New("idempotency guard is required")
	errAssemblerRequired  = errors.New("order assembler is required")
	errReconcilerRequired = errors.New("reconciler is required")
	errSessionsRequired   = errors.New("session fetcher is required")
	errSecretRequired     = errors.New("webhook signing secret is required")
	errLoggerRequired     = errors.New("webhook logger is required")
)

// orderCreator is the settlement entry point for completed checkouts.
type orderCreator interface {
	CreateOrder(ctx context.Context, input orders.CreateOrderInput) (*orders.CreateOrderResult, error)
}

// sessionFetcher retrieves checkout sessions for the confirmation poll.
type sessionFetcher interface {
	GetCheckoutSession(ctx context.Context, id string) (*stripe.CheckoutSession, error)
}

// reconciler unwinds settlements on refund and dispute events.
type reconciler interface {
	OnRefund(ctx context.Context, chargeRef string, totalCharge, totalRefunded decimal.Decimal) error
	OnDisputeOpened(ctx context.Context, disputeRef, chargeRef string, amount decimal.Decimal, reason string) (*models.Dispute, error)
	OnDisputeClosed(ctx context.Context, disputeRef string, won bool) (*models.Dispute, error)
}

// Service authenticates inbound processor events, suppresses duplicates, and
// routes each event type into the core pipeline. Unrecognized event types are
// acknowledged without action so the processor stops redelivering them.
type Service struct {
	guard      *IdempotencyGuard
	assembler  orderCreator
	reconciler reconciler
	sessions   sessionFetcher
	secret     string
	metrics    *metrics.SettlementMetrics
	logger     *logger.Logger

	// construct is swapped in tests to skip real signature computation.
	construct func(payload []byte, header, secret string) (stripe.Event, error)
}

// NewService validates and wires the webhook event router.
func NewService(guard *IdempotencyGuard, assembler orderCreator, rec reconciler, sessions sessionFetcher, signingSecret string, m *metrics.SettlementMetrics, logg *logger.Logger) (*Service, error) {
	if guard == nil {
		return nil, errGuardRequired
	}
	if assembler == nil {
		return nil, errAssemblerRequired
	}
	if rec == nil {
		return nil, errReconcilerRequired
	}
	if sessions == nil {
		return nil, errSessionsRequired
	}
	if signingSecret == "" {
		return nil, errSecretRequired
	}
	if logg == nil {
		return nil, errLoggerRequired
	}
	return &Service{
		guard:      guard,
		assembler:  assembler,
		reconciler: rec,
		sessions:   sessions,
		secret:     signingSecret,
		metrics:    m,
		logger:     logg,
		construct:  webhook.ConstructEvent,
	}, nil
}

// ConfirmCheckout is the client polling fallback for slow webhook delivery.
// It verifies the session settled with the processor before re-entering the
// idempotent order pipeline.
func (s *Service) ConfirmCheckout(ctx context.Context, sessionID string) (*orders.CreateOrderResult, error) {
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	session, err := s.sessions.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetching checkout session failed")
	}
	if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment has not settled yet")
	}
	input, err := buildOrderInput(session)
	if err != nil {
		return nil, err
	}
	return s.assembler.CreateOrder(ctx, input)
}

// HandleEvent verifies the payload signature and processes the event exactly
// once. A failed handler releases the idempotency mark so the processor's
// redelivery can retry.
func (s *Service) HandleEvent(ctx context.Context, payload []byte, signatureHeader string) error {
	event, err := s.construct(payload, signatureHeader, s.secret)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "webhook signature verification failed")
	}
	eventType := string(event.Type)
	ctx = s.logger.WithField(ctx, "event_id", event.ID)

	duplicate, err := s.guard.CheckAndMark(ctx, event.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "idempotency check failed")
	}
	if duplicate {
		s.logger.Info(ctx, fmt.Sprintf("duplicate delivery of %s, skipping", eventType))
		s.metrics.IncWebhookEvent(eventType, "duplicate")
		return nil
	}

	handled, err := s.route(ctx, event)
	if err != nil {
		if delErr := s.guard.Delete(ctx, event.ID); delErr != nil {
			s.logger.Error(ctx, "releasing idempotency mark failed", delErr)
		}
		s.metrics.IncWebhookEvent(eventType, "failed")
		return err
	}
	if !handled {
		s.metrics.IncWebhookEvent(eventType, "ignored")
		return nil
	}
	s.metrics.IncWebhookEvent(eventType, "processed")
	return nil
}

func (s *Service) route(ctx context.Context, event stripe.Event) (bool, error) {
	switch string(event.Type) {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return false, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decoding checkout session failed")
		}
		return true, s.handleCheckoutCompleted(ctx, session)

	case "charge.refunded":
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return false, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decoding charge failed")
		}
		return true, s.reconciler.OnRefund(ctx,
			chargePaymentRef(&charge),
			stripeclient.FromCents(charge.Amount),
			stripeclient.FromCents(charge.AmountRefunded))

	case "charge.dispute.created":
		dispute, err := decodeDispute(event.Data.Raw)
		if err != nil {
			return false, err
		}
		_, err = s.reconciler.OnDisputeOpened(ctx, dispute.ID,
			disputePaymentRef(dispute),
			stripeclient.FromCents(dispute.Amount),
			string(dispute.Reason))
		return true, err

	case "charge.dispute.closed":
		dispute, err := decodeDispute(event.Data.Raw)
		if err != nil {
			return false, err
		}
		_, err = s.reconciler.OnDisputeClosed(ctx, dispute.ID, dispute.Status == stripe.DisputeStatusWon)
		return true, err

	default:
		s.logger.Info(ctx, fmt.Sprintf("ignoring event type %s", event.Type))
		return false, nil
	}
}

// cartMetadata is the serialized cart the checkout flow stashes on the
// session so the settlement engine can rebuild the order.
type cartMetadata struct {
	Items    []models.OrderItem      `json:"items"`
	Shipping *models.ShippingAddress `json:"shipping,omitempty"`
	Totals   *models.OrderTotals     `json:"totals,omitempty"`
	Customer *models.Customer        `json:"customer,omitempty"`
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, session stripe.CheckoutSession) error {
	input, err := buildOrderInput(&session)
	if err != nil {
		return err
	}
	result, err := s.assembler.CreateOrder(ctx, input)
	if err != nil {
		return err
	}
	if result.Duplicate {
		s.logger.Info(ctx, fmt.Sprintf("checkout already settled as order %s", result.OrderNumber))
	}
	return nil
}

func buildOrderInput(session *stripe.CheckoutSession) (orders.CreateOrderInput, error) {
	raw, ok := session.Metadata["cart"]
	if !ok || raw == "" {
		return orders.CreateOrderInput{}, pkgerrors.New(pkgerrors.CodeValidation, "checkout session carries no cart metadata")
	}
	var cart cartMetadata
	if err := json.Unmarshal([]byte(raw), &cart); err != nil {
		return orders.CreateOrderInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decoding cart metadata failed")
	}

	input := orders.CreateOrderInput{
		Items:            cart.Items,
		Shipping:         cart.Shipping,
		PaymentMethod:    enums.PaymentMethodCard,
		PaymentReference: sessionPaymentRef(session),
	}
	if cart.Customer != nil {
		input.Customer = *cart.Customer
	}
	if session.CustomerDetails != nil {
		if input.Customer.Email == "" {
			input.Customer.Email = session.CustomerDetails.Email
		}
		if input.Customer.Phone == "" {
			input.Customer.Phone = session.CustomerDetails.Phone
		}
	}
	if cart.Totals != nil {
		input.Totals = *cart.Totals
	} else {
		input.Totals = models.OrderTotals{Total: stripeclient.FromCents(session.AmountTotal)}
	}
	return input, nil
}

func decodeDispute(raw json.RawMessage) (*stripe.Dispute, error) {
	var dispute stripe.Dispute
	if err := json.Unmarshal(raw, &dispute); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decoding dispute failed")
	}
	return &dispute, nil
}

// Orders key their idempotency on the payment intent; fall back to the
// session or charge id for payment flows that never minted one.
func sessionPaymentRef(session *stripe.CheckoutSession) string {
	if session.PaymentIntent != nil && session.PaymentIntent.ID != "" {
		return session.PaymentIntent.ID
	}
	return session.ID
}

func chargePaymentRef(charge *stripe.Charge) string {
	if charge.PaymentIntent != nil && charge.PaymentIntent.ID != "" {
		return charge.PaymentIntent.ID
	}
	return charge.ID
}

func disputePaymentRef(dispute *stripe.Dispute) string {
	if dispute.PaymentIntent != nil && dispute.PaymentIntent.ID != "" {
		return dispute.PaymentIntent.ID
	}
	if dispute.Charge != nil {
		return dispute.Charge.ID
	}
	return ""
}
