package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fairwavehq/fairwave-backend/api/responses"
	"github.com/fairwavehq/fairwave-backend/internal/payouts"
	pkgerrors "github.com/fairwavehq/fairwave-backend/pkg/errors"
	"github.com/fairwavehq/fairwave-backend/pkg/logger"
	"github.com/fairwavehq/fairwave-backend/pkg/models"
)

type payoutLister interface {
	ListPayoutsByOrder(ctx context.Context, orderID string) ([]models.Payout, error)
	ListOpenPendingByOrder(ctx context.Context, orderID string) ([]models.PendingPayout, error)
}

type stockRepairer interface {
	RepairStock(ctx context.Context, orderID string) (int, error)
}

type payoutRepairer interface {
	RepairPayouts(ctx context.Context, orderID string) ([]payouts.Result, error)
}

type pendingRetrier interface {
	RetryPending(ctx context.Context, batchSize int) (int, error)
}

// AdminListOrderPayouts returns the full payout ledger for an order,
// settled rows alongside whatever is still open.
func AdminListOrderPayouts(repo payoutLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := chi.URLParam(r, "orderID")
		if orderID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order id required"))
			return
		}

		settled, err := repo.ListPayoutsByOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing payouts failed"))
			return
		}
		pending, err := repo.ListOpenPendingByOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing pending payouts failed"))
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"payouts": settled,
			"pending": pending,
		})
	}
}

// AdminRepairStock re-runs stock decrements for an order that settled
// before its inventory writes landed.
func AdminRepairStock(svc stockRepairer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := chi.URLParam(r, "orderID")
		if orderID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order id required"))
			return
		}

		repaired, err := svc.RepairStock(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"repaired": repaired})
	}
}

// AdminRepairPayouts re-dispatches the payout fan-out for payees the
// ledger shows no coverage for. Already covered payees are untouched.
func AdminRepairPayouts(svc payoutRepairer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := chi.URLParam(r, "orderID")
		if orderID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order id required"))
			return
		}

		results, err := svc.RepairPayouts(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"dispatched": len(results), "results": results})
	}
}

// AdminRetryPayouts runs one sweep of the retry queue, same work the
// background worker does on its interval.
func AdminRetryPayouts(svc pendingRetrier, batchSize int, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		retried, err := svc.RetryPending(r.Context(), batchSize)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"retried": retried})
	}
}
