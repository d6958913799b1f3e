package sendgrid

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sg "github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/fairwavehq/fairwave-backend/pkg/config"
	pkgerrors "github.com/fairwavehq/fairwave-backend/pkg/errors"
	"github.com/fairwavehq/fairwave-backend/pkg/logger"
)

var (
	errAPIKeyRequired = errors.New("sendgrid api key is required")
	errFromRequired   = errors.New("sendgrid from address is required")
	errLoggerRequired = errors.New("sendgrid logger is required")
)

// Client sends transactional mail through SendGrid.
type Client struct {
	sender *sg.Client
	from   string
	logger *logger.Logger
}

// NewClient validates the SendGrid credentials and builds the mail client.
func NewClient(ctx context.Context, cfg config.SendgridConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	from := strings.TrimSpace(cfg.DefaultFrom)
	if from == "" {
		return nil, errFromRequired
	}

	logg.Info(ctx, "sendgrid client initialized")
	return &Client{
		sender: sg.NewSendClient(apiKey),
		from:   from,
		logger: logg,
	}, nil
}

// Send delivers one HTML email to the recipient.
func (c *Client) Send(ctx context.Context, toEmail, toName, subject, htmlBody string) error {
	if strings.TrimSpace(toEmail) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient email is required")
	}

	from := mail.NewEmail("Fairwave", c.from)
	to := mail.NewEmail(toName, toEmail)
	message := mail.NewSingleEmail(from, subject, to, "", htmlBody)

	resp, err := c.sender.SendWithContext(ctx, message)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sendgrid send failed")
	}
	if resp.StatusCode >= 400 {
		err := fmt.Errorf("sendgrid %d: %s", resp.StatusCode, strings.TrimSpace(resp.Body))
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sendgrid rejected message")
	}

	fields := map[string]any{"subject": subject, "status": resp.StatusCode}
	c.logger.Info(c.logger.WithFields(ctx, fields), "email sent")
	return nil
}
