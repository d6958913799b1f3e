package paypalclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fairwavehq/fairwave-backend/pkg/config"
	pkgerrors "github.com/fairwavehq/fairwave-backend/pkg/errors"
	"github.com/fairwavehq/fairwave-backend/pkg/logger"
)

const (
	sandboxEnv = "sandbox"
	liveEnv    = "live"
)

var (
	errClientIDRequired = errors.New("paypal client id is required")
	errSecretRequired   = errors.New("paypal secret is required")
	errInvalidEnv       = fmt.Errorf("paypal environment must be %q or %q", sandboxEnv, liveEnv)
	errLoggerRequired   = errors.New("paypal logger is required")
)

var baseURLs = map[string]string{
	sandboxEnv: "https://api-m.sandbox.paypal.com",
	liveEnv:    "https://api-m.paypal.com",
}

// Client exposes PayPal payout primitives with centralized auth, logging, and
// error mapping. Tokens are minted with the client-credentials grant and
// cached until shortly before expiry.
type Client struct {
	httpClient *http.Client
	clientID   string
	secret     string
	baseURL    string
	env        string
	logger     *logger.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient initializes the PayPal wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.PayPalConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	clientID := strings.TrimSpace(cfg.ClientID)
	if clientID == "" {
		return nil, errClientIDRequired
	}
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errSecretRequired
	}

	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		clientID:   clientID,
		secret:     secret,
		baseURL:    baseURLs[env],
		env:        env,
		logger:     logg,
	}

	logg.Info(ctx, "paypal client initialized")
	return c, nil
}

// Environment reports the normalized PayPal environment.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.env
}

// PayoutResult captures the provider references for a submitted payout.
type PayoutResult struct {
	BatchID       string
	BatchStatus   string
	SenderBatchID string
}

type payoutRequest struct {
	SenderBatchHeader struct {
		SenderBatchID string `json:"sender_batch_id"`
		EmailSubject  string `json:"email_subject,omitempty"`
	} `json:"sender_batch_header"`
	Items []payoutItem `json:"items"`
}

type payoutItem struct {
	RecipientType string       `json:"recipient_type"`
	Receiver      string       `json:"receiver"`
	Note          string       `json:"note,omitempty"`
	SenderItemID  string       `json:"sender_item_id"`
	Amount        payoutAmount `json:"amount"`
}

type payoutAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type payoutResponse struct {
	BatchHeader struct {
		PayoutBatchID     string `json:"payout_batch_id"`
		BatchStatus       string `json:"batch_status"`
		SenderBatchHeader struct {
			SenderBatchID string `json:"sender_batch_id"`
		} `json:"sender_batch_header"`
	} `json:"batch_header"`
}

// SendPayout submits a single-item payout to the receiver's email. The
// senderItemID doubles as PayPal's idempotency handle for the item.
func (c *Client) SendPayout(ctx context.Context, receiverEmail string, amount decimal.Decimal, currency, senderItemID, note string) (*PayoutResult, error) {
	if strings.TrimSpace(receiverEmail) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout receiver email is required")
	}
	if !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout amount must be positive")
	}
	if strings.TrimSpace(senderItemID) == "" {
		senderItemID = uuid.NewString()
	}

	var req payoutRequest
	req.SenderBatchHeader.SenderBatchID = fmt.Sprintf("fw-%s", senderItemID)
	req.SenderBatchHeader.EmailSubject = "You have a payout from Fairwave"
	req.Items = []payoutItem{{
		RecipientType: "EMAIL",
		Receiver:      receiverEmail,
		Note:          note,
		SenderItemID:  senderItemID,
		Amount: payoutAmount{
			Value:    amount.StringFixed(2),
			Currency: strings.ToUpper(currency),
		},
	}}

	c.log(ctx, "request", "send_payout", map[string]any{
		"receiver":       receiverEmail,
		"amount":         amount.StringFixed(2),
		"sender_item_id": senderItemID,
	})

	var resp payoutResponse
	if err := c.post(ctx, "/v1/payments/payouts", req, &resp); err != nil {
		c.log(ctx, "error", "send_payout", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "send_payout", map[string]any{
		"batch_id":     resp.BatchHeader.PayoutBatchID,
		"batch_status": resp.BatchHeader.BatchStatus,
	})
	return &PayoutResult{
		BatchID:       resp.BatchHeader.PayoutBatchID,
		BatchStatus:   resp.BatchHeader.BatchStatus,
		SenderBatchID: resp.BatchHeader.SenderBatchHeader.SenderBatchID,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode paypal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build paypal request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "paypal request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read paypal response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.mapError(resp.StatusCode, raw)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode paypal response")
		}
	}
	return nil
}

func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := strings.NewReader("grant_type=client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token", form)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build paypal token request")
	}
	req.SetBasicAuth(c.clientID, c.secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "paypal token request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read paypal token response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", c.mapError(resp.StatusCode, raw)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode paypal token response")
	}
	if body.AccessToken == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "paypal token response missing access token")
	}

	c.accessToken = body.AccessToken
	// Renew a minute early so in-flight requests never carry a stale token.
	c.tokenExpiry = time.Now().Add(time.Duration(body.ExpiresIn)*time.Second - time.Minute)
	return c.accessToken, nil
}

func (c *Client) mapError(status int, raw []byte) error {
	var body struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(raw, &body)

	message := body.Message
	if message == "" {
		message = strings.TrimSpace(string(raw))
	}
	err := fmt.Errorf("paypal %d %s: %s", status, body.Name, message)

	switch status {
	case http.StatusUnauthorized:
		return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "paypal request rejected")
	case http.StatusForbidden:
		return pkgerrors.Wrap(pkgerrors.CodeForbidden, err, "paypal request rejected")
	case http.StatusNotFound:
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "paypal resource not found")
	case http.StatusConflict:
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "paypal request conflicted")
	case http.StatusTooManyRequests:
		return pkgerrors.Wrap(pkgerrors.CodeRateLimit, err, "paypal rate limited")
	case http.StatusUnprocessableEntity:
		return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "paypal rejected payout")
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "paypal rejected request")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "paypal request failed")
	}
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("paypal %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("paypal %s", phase))
	}
}

func redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"receiver", "email", "secret", "token"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = sandboxEnv
	}
	switch env {
	case sandboxEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidEnv
	}
}
