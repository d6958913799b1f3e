package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fairwavehq/fairwave-backend/api/controllers"
	"github.com/fairwavehq/fairwave-backend/internal/orders"
	pkgauth "github.com/fairwavehq/fairwave-backend/pkg/auth"
	"github.com/fairwavehq/fairwave-backend/pkg/config"
	"github.com/fairwavehq/fairwave-backend/pkg/docstore"
	"github.com/fairwavehq/fairwave-backend/pkg/enums"
	"github.com/fairwavehq/fairwave-backend/pkg/logger"
	"github.com/fairwavehq/fairwave-backend/pkg/models"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "8080"},
		JWT: config.JWTConfig{
			Secret:            "router-test-secret",
			Issuer:            "fairwave-test",
			ExpirationMinutes: 5,
		},
	}
}

func newTestRouter(t *testing.T) (http.Handler, *orders.Repo, *config.Config) {
	t.Helper()

	cfg := testConfig()
	logg := logger.New(logger.Options{ServiceName: "routes-test", Output: io.Discard})

	store := docstore.NewMemoryStore()
	ordersRepo, err := orders.NewRepo(store)
	if err != nil {
		t.Fatalf("orders repo: %v", err)
	}

	router := NewRouter(Deps{
		Config:  cfg,
		Logger:  logg,
		Pingers: map[string]controllers.Pinger{"docstore": stubPinger{}},
		Orders:  ordersRepo,
	})
	return router, ordersRepo, cfg
}

func mintToken(t *testing.T, cfg *config.Config, userID string, role enums.ActorRole) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(cfg.JWT, time.Now(), pkgauth.AccessTokenPayload{
		UserID: userID,
		Email:  userID + "@fairwave.fm",
		Role:   role,
	})
	if err != nil {
		t.Fatalf("minting token: %v", err)
	}
	return token
}

func TestHealthEndpoints(t *testing.T) {
	router, _, _ := newTestRouter(t)

	for _, path := range []string{"/health/live", "/health/ready"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s returned %d", path, rec.Code)
		}
		if env := rec.Header().Get("X-Fairwave-Env"); env != "test" {
			t.Fatalf("%s env header = %q", path, env)
		}
	}
}

func TestOrdersRequireAuth(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/orders/order-1", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestGetOrderOwnership(t *testing.T) {
	router, repo, cfg := newTestRouter(t)

	order := models.Order{
		ID:          "order-1",
		OrderNumber: "FW-260826-000001",
		Customer:    models.Customer{Email: "buyer@fairwave.fm", UserID: "user-1"},
		Status:      enums.OrderStatusProcessing,
		CreatedAt:   time.Now().UTC(),
	}
	if err := repo.Create(context.Background(), order); err != nil {
		t.Fatalf("seeding order: %v", err)
	}

	owner := mintToken(t, cfg, "user-1", enums.ActorRoleCustomer)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/order-1", nil)
	req.Header.Set("Authorization", "Bearer "+owner)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("owner fetch returned %d: %s", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Data models.Order `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if envelope.Data.OrderNumber != "FW-260826-000001" {
		t.Fatalf("unexpected order number %q", envelope.Data.OrderNumber)
	}

	stranger := mintToken(t, cfg, "user-2", enums.ActorRoleCustomer)
	req = httptest.NewRequest(http.MethodGet, "/api/v1/orders/order-1", nil)
	req.Header.Set("Authorization", "Bearer "+stranger)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("stranger fetch returned %d", rec.Code)
	}

	support := mintToken(t, cfg, "support-1", enums.ActorRoleSupport)
	req = httptest.NewRequest(http.MethodGet, "/api/v1/orders/order-1", nil)
	req.Header.Set("Authorization", "Bearer "+support)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("support fetch returned %d", rec.Code)
	}
}

func TestAdminRoutesEnforceRole(t *testing.T) {
	router, _, cfg := newTestRouter(t)

	customer := mintToken(t, cfg, "user-1", enums.ActorRoleCustomer)
	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/orders/order-1/payouts", nil)
	req.Header.Set("Authorization", "Bearer "+customer)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("customer hit admin route, got %d", rec.Code)
	}
}

func TestReadyReportsDependencyFailure(t *testing.T) {
	cfg := testConfig()
	logg := logger.New(logger.Options{ServiceName: "routes-test", Output: io.Discard})
	store := docstore.NewMemoryStore()
	ordersRepo, err := orders.NewRepo(store)
	if err != nil {
		t.Fatalf("orders repo: %v", err)
	}

	router := NewRouter(Deps{
		Config:  cfg,
		Logger:  logg,
		Pingers: map[string]controllers.Pinger{"redis": stubPinger{err: context.DeadlineExceeded}},
		Orders:  ordersRepo,
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when a dependency is down, got %d", rec.Code)
	}
}
