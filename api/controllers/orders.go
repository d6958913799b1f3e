package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fairwavehq/fairwave-backend/api/middleware"
	"github.com/fairwavehq/fairwave-backend/api/responses"
	"github.com/fairwavehq/fairwave-backend/api/validators"
	"github.com/fairwavehq/fairwave-backend/internal/orders"
	"github.com/fairwavehq/fairwave-backend/pkg/enums"
	pkgerrors "github.com/fairwavehq/fairwave-backend/pkg/errors"
	"github.com/fairwavehq/fairwave-backend/pkg/logger"
	"github.com/fairwavehq/fairwave-backend/pkg/models"
)

// confirmService is the polling fallback into the settlement pipeline.
type confirmService interface {
	ConfirmCheckout(ctx context.Context, sessionID string) (*orders.CreateOrderResult, error)
}

// orderReader loads persisted orders.
type orderReader interface {
	Get(ctx context.Context, id string) (*models.Order, bool, error)
}

type confirmOrderRequest struct {
	SessionID string `json:"sessionId" validate:"required"`
}

// ConfirmOrder lets a client that never saw its webhook land poll the
// settlement state. Re-entering an already settled checkout returns the
// existing order.
func ConfirmOrder(svc confirmService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "confirmation service unavailable"))
			return
		}

		var req confirmOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ConfirmCheckout(r.Context(), req.SessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusCreated
		if result.Duplicate {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, map[string]any{
			"orderId":     result.OrderID,
			"orderNumber": result.OrderNumber,
		})
	}
}

// GetOrder returns one order. Customers only see their own; support and
// admin actors see any.
func GetOrder(repo orderReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order repository unavailable"))
			return
		}

		orderID := chi.URLParam(r, "orderID")
		if orderID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order id required"))
			return
		}

		order, found, err := repo.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading order failed"))
			return
		}
		if !found {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))
			return
		}

		role := middleware.RoleFromContext(r.Context())
		if role == string(enums.ActorRoleCustomer) && order.Customer.UserID != middleware.UserIDFromContext(r.Context()) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to this account"))
			return
		}

		responses.WriteSuccess(w, order)
	}
}
