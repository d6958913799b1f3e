package controllers

import (
	"context"
	"net/http"

	"github.com/fairwavehq/fairwave-backend/api/responses"
	"github.com/fairwavehq/fairwave-backend/pkg/config"
	pkgerrors "github.com/fairwavehq/fairwave-backend/pkg/errors"
	"github.com/fairwavehq/fairwave-backend/pkg/logger"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Fairwave-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady verifies the docstore and redis are reachable before reporting
// ready. Nil pingers are skipped so tests can exercise a partial stack.
func HealthReady(cfg *config.Config, logg *logger.Logger, pingers map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Fairwave-Env", cfg.App.Env)
		for name, p := range pingers {
			if p == nil {
				continue
			}
			if err := p.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unavailable"))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
