package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/fairwavehq/fairwave-backend/api/responses"
	pkgerrors "github.com/fairwavehq/fairwave-backend/pkg/errors"
	"github.com/fairwavehq/fairwave-backend/pkg/logger"
)

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, payload []byte, signatureHeader string) error
}

// StripeWebhook receives settlement and reconciliation events. Signature
// verification, replay suppression, and routing live in the service; this
// handler only moves bytes.
func StripeWebhook(svc StripeWebhookService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		sigHeader := r.Header.Get("Stripe-Signature")
		if sigHeader == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "stripe signature missing"))
			return
		}

		if err := svc.HandleEvent(ctx, payload, sigHeader); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, nil)
	}
}
