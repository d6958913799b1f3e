package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"
	"github.com/stripe/stripe-go/v84/paymentintent"
	"github.com/stripe/stripe-go/v84/transfer"
	"github.com/stripe/stripe-go/v84/transferreversal"

	"github.com/fairwavehq/fairwave-backend/pkg/config"
	"github.com/fairwavehq/fairwave-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errSecretRequired   = errors.New("stripe webhook secret is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// Client wraps Stripe's API plus env-specific metadata. The settlement
// pipeline uses it for Connect transfers, transfer reversals, and payment
// lookups during webhook handling.
type Client struct {
	environment   string
	signingSecret string
}

// NewClient initializes Stripe once with the configured secrets and env.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}

	signingSecret := strings.TrimSpace(cfg.Secret)
	if signingSecret == "" {
		return nil, errSecretRequired
	}

	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}

	stripe.Key = apiKey

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("stripe client initialized (%s)", env))
	}

	return &Client{
		environment:   env,
		signingSecret: signingSecret,
	}, nil
}

// Environment reports the normalized Stripe environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// SigningSecret returns the webhook signing secret.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

// CreateTransfer moves amount to the payee's connected account, tagged with
// the order's transfer group so later reversals can find it.
func (c *Client) CreateTransfer(ctx context.Context, accountID string, amount decimal.Decimal, currency, transferGroup string) (*stripe.Transfer, error) {
	params := &stripe.TransferParams{
		Amount:        stripe.Int64(ToCents(amount)),
		Currency:      stripe.String(currency),
		Destination:   stripe.String(accountID),
		TransferGroup: stripe.String(transferGroup),
	}
	params.Context = ctx
	return transfer.New(params)
}

// ReverseTransfer pulls amount back from a previously created transfer.
func (c *Client) ReverseTransfer(ctx context.Context, transferID string, amount decimal.Decimal) (*stripe.TransferReversal, error) {
	params := &stripe.TransferReversalParams{
		ID:     stripe.String(transferID),
		Amount: stripe.Int64(ToCents(amount)),
	}
	params.Context = ctx
	return transferreversal.New(params)
}

// ListTransfersByGroup returns every transfer tagged with the group.
func (c *Client) ListTransfersByGroup(ctx context.Context, transferGroup string) ([]*stripe.Transfer, error) {
	params := &stripe.TransferListParams{
		TransferGroup: stripe.String(transferGroup),
	}
	params.Context = ctx

	var transfers []*stripe.Transfer
	iter := transfer.List(params)
	for iter.Next() {
		transfers = append(transfers, iter.Transfer())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return transfers, nil
}

// GetPaymentIntent fetches a payment intent with its latest charge expanded.
func (c *Client) GetPaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	params.AddExpand("latest_charge")
	return paymentintent.Get(id, params)
}

// GetCheckoutSession fetches a checkout session with line items expanded.
func (c *Client) GetCheckoutSession(ctx context.Context, id string) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("line_items")
	return session.Get(id, params)
}

// ToCents converts a decimal money amount to Stripe's integer minor units.
func ToCents(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// FromCents converts Stripe's integer minor units back to a decimal amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100))
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidStripeEnv
	}
}

func validateAPIKey(env, key string) error {
	switch env {
	case testEnv:
		if strings.HasPrefix(key, "sk_test") || strings.HasPrefix(key, "rk_test") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a test secret key (sk_test/rk_test)", testEnv)
	case liveEnv:
		if strings.HasPrefix(key, "sk_live") || strings.HasPrefix(key, "rk_live") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a live secret key (sk_live/rk_live)", liveEnv)
	default:
		return errInvalidStripeEnv
	}
}
