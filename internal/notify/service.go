package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fairwavehq/fairwave-backend/pkg/logger"
	"github.com/fairwavehq/fairwave-backend/pkg/models"
)

var (
	errMailerRequired = errors.New("notify mailer is required")
	errLoggerRequired = errors.New("notify logger is required")
)

// mailer is the outbound mail surface the service depends on.
type mailer interface {
	Send(ctx context.Context, toEmail, toName, subject, htmlBody string) error
}

// Outcome reports one attempted notification. Failures are recorded, never
// propagated; callers decide whether to inspect them.
type Outcome struct {
	Kind      string
	Recipient string
	Err       error
}

// Failed reports whether the send did not go through.
func (o Outcome) Failed() bool { return o.Err != nil }

// Service sends the settlement pipeline's transactional mail.
type Service struct {
	mailer           mailer
	fulfillmentEmail string
	logger           *logger.Logger
}

// NewService wires the notification service to a mailer.
func NewService(m mailer, fulfillmentEmail string, logg *logger.Logger) (*Service, error) {
	if m == nil {
		return nil, errMailerRequired
	}
	if logg == nil {
		return nil, errLoggerRequired
	}
	return &Service{
		mailer:           m,
		fulfillmentEmail: strings.TrimSpace(fulfillmentEmail),
		logger:           logg,
	}, nil
}

// OrderConfirmation tells the customer their order settled.
func (s *Service) OrderConfirmation(ctx context.Context, order models.Order) Outcome {
	data := map[string]any{
		"FirstName":        order.Customer.FirstName,
		"OrderNumber":      order.OrderNumber,
		"Items":            order.Items,
		"Total":            order.Totals.Total.StringFixed(2),
		"HasPhysicalItems": order.HasPhysicalItems,
	}
	subject := fmt.Sprintf("Order %s confirmed", order.OrderNumber)
	return s.send(ctx, "order_confirmation", order.Customer.Email, order.Customer.FirstName, subject, data)
}

// FulfillmentAlert tells the warehouse an order has physical items to ship.
func (s *Service) FulfillmentAlert(ctx context.Context, order models.Order) Outcome {
	if s.fulfillmentEmail == "" {
		return Outcome{Kind: "fulfillment_alert", Err: errors.New("no fulfillment address configured")}
	}
	physical := make([]models.OrderItem, 0, len(order.Items))
	for _, item := range order.Items {
		if item.Type.IsPhysical() {
			physical = append(physical, item)
		}
	}
	data := map[string]any{
		"OrderNumber": order.OrderNumber,
		"Items":       physical,
	}
	subject := fmt.Sprintf("Fulfill order %s", order.OrderNumber)
	return s.send(ctx, "fulfillment_alert", s.fulfillmentEmail, "Fulfillment", subject, data)
}

// PayeeSaleSummary tells one payee which of their items sold and their share.
func (s *Service) PayeeSaleSummary(ctx context.Context, payee models.Payee, order models.Order, items []models.OrderItem, amount decimal.Decimal) Outcome {
	data := map[string]any{
		"OrderNumber": order.OrderNumber,
		"Items":       items,
		"Amount":      amount.StringFixed(2),
	}
	subject := fmt.Sprintf("You made a sale (order %s)", order.OrderNumber)
	return s.send(ctx, "payee_sale", payee.Email, payee.Name, subject, data)
}

// PendingEarnings is the one-time nudge to connect a payout method.
func (s *Service) PendingEarnings(ctx context.Context, payee models.Payee, amount decimal.Decimal) Outcome {
	data := map[string]any{"Amount": amount.StringFixed(2)}
	return s.send(ctx, "pending_earnings", payee.Email, payee.Name, "You have pending earnings", data)
}

// PayoutReversed tells a payee a refund or dispute clawed back part of a payout.
func (s *Service) PayoutReversed(ctx context.Context, payee models.Payee, orderNumber string, amount decimal.Decimal) Outcome {
	data := map[string]any{
		"OrderNumber": orderNumber,
		"Amount":      amount.StringFixed(2),
	}
	subject := fmt.Sprintf("Payout reversed for order %s", orderNumber)
	return s.send(ctx, "payout_reversed", payee.Email, payee.Name, subject, data)
}

func (s *Service) send(ctx context.Context, kind, toEmail, toName, subject string, data any) Outcome {
	outcome := Outcome{Kind: kind, Recipient: toEmail}
	if strings.TrimSpace(toEmail) == "" {
		outcome.Err = errors.New("recipient email missing")
		s.logFailure(ctx, outcome)
		return outcome
	}

	html, err := render(kind, data)
	if err != nil {
		outcome.Err = err
		s.logFailure(ctx, outcome)
		return outcome
	}
	if err := s.mailer.Send(ctx, toEmail, toName, subject, html); err != nil {
		outcome.Err = err
		s.logFailure(ctx, outcome)
		return outcome
	}
	return outcome
}

func (s *Service) logFailure(ctx context.Context, outcome Outcome) {
	ctx = s.logger.WithFields(ctx, map[string]any{"notification": outcome.Kind})
	s.logger.Warn(ctx, fmt.Sprintf("notification failed: %v", outcome.Err))
}
