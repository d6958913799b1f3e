package payouts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	"github.com/fairwavehq/fairwave-backend/internal/catalog"
	"github.com/fairwavehq/fairwave-backend/internal/fees"
	"github.com/fairwavehq/fairwave-backend/internal/notify"
	"github.com/fairwavehq/fairwave-backend/pkg/config"
	"github.com/fairwavehq/fairwave-backend/pkg/docstore"
	"github.com/fairwavehq/fairwave-backend/pkg/enums"
	"github.com/fairwavehq/fairwave-backend/pkg/logger"
	"github.com/fairwavehq/fairwave-backend/pkg/metrics"
	"github.com/fairwavehq/fairwave-backend/pkg/models"
	"github.com/fairwavehq/fairwave-backend/pkg/paypalclient"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeTransferClient struct {
	calls []transferCall
	err   error
}

type transferCall struct {
	accountID string
	amount    decimal.Decimal
	group     string
}

func (f *fakeTransferClient) CreateTransfer(ctx context.Context, accountID string, amount decimal.Decimal, currency, transferGroup string) (*stripe.Transfer, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.calls = append(f.calls, transferCall{accountID: accountID, amount: amount, group: transferGroup})
	return &stripe.Transfer{ID: fmt.Sprintf("tr_%d", len(f.calls))}, nil
}

type fakeBatchClient struct {
	calls []batchCall
	err   error
}

type batchCall struct {
	email  string
	amount decimal.Decimal
	note   string
}

func (f *fakeBatchClient) SendPayout(ctx context.Context, receiverEmail string, amount decimal.Decimal, currency, senderItemID, note string) (*paypalclient.PayoutResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.calls = append(f.calls, batchCall{email: receiverEmail, amount: amount, note: note})
	return &paypalclient.PayoutResult{BatchID: fmt.Sprintf("batch_%d", len(f.calls)), BatchStatus: "PENDING"}, nil
}

type fakeNotifier struct {
	pendingSent int
	fail        bool
}

func (f *fakeNotifier) PendingEarnings(ctx context.Context, payee models.Payee, amount decimal.Decimal) notify.Outcome {
	f.pendingSent++
	outcome := notify.Outcome{Kind: "pending_earnings", Recipient: payee.Email}
	if f.fail {
		outcome.Err = errors.New("send failed")
	}
	return outcome
}

type routerFixture struct {
	store     *docstore.MemoryStore
	repo      *Repo
	payees    *catalog.Repo
	transfers *fakeTransferClient
	batch     *fakeBatchClient
	notifier  *fakeNotifier
	svc       *Service
}

func newFixture(t *testing.T) *routerFixture {
	t.Helper()
	store := docstore.NewMemoryStore()
	repo, err := NewRepo(store)
	if err != nil {
		t.Fatalf("new repo: %v", err)
	}
	payees, err := catalog.NewRepo(store)
	if err != nil {
		t.Fatalf("new catalog repo: %v", err)
	}
	transfers := &fakeTransferClient{}
	batch := &fakeBatchClient{}
	notifier := &fakeNotifier{}
	calc := fees.NewCalculator(config.FeesConfig{
		ArtistRatePercent:    d("1"),
		MerchRatePercent:     d("5"),
		ProcessorRatePercent: d("1.3"),
		ProcessorFixed:       d("0.30"),
		BatchPayoutPercent:   d("2"),
	})
	logg := logger.New(logger.Options{ServiceName: "payouts-test", Output: io.Discard})
	svc, err := NewService(repo, payees, transfers, batch, notifier, calc, metrics.NewSettlementMetrics(nil), logg, enums.CurrencyUSD, 3)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &routerFixture{store: store, repo: repo, payees: payees, transfers: transfers, batch: batch, notifier: notifier, svc: svc}
}

func (f *routerFixture) seedPayee(t *testing.T, payee models.Payee) {
	t.Helper()
	if err := f.store.Set(context.Background(), models.CollectionPayees, payee.ID, payee); err != nil {
		t.Fatalf("seed payee: %v", err)
	}
}

func artistOrder(total string) models.Order {
	return models.Order{
		ID:          "order-1",
		OrderNumber: "FW-260801-000001",
		Items: []models.OrderItem{
			{ID: "item-1", Type: enums.ItemTypeDigital, Title: "Album", ArtistID: "artist-1", Price: d(total), Quantity: 1},
		},
	}
}

func TestDispatchInstantRail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedPayee(t, models.Payee{ID: "artist-1", Name: "Artist", Email: "a@example.com", Role: enums.PayeeRoleArtist, TransferAccountID: "acct_1"})

	results, err := f.svc.Dispatch(ctx, artistOrder("100.00"))
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	result := results[0]
	if result.Disposition != DispositionDispatched || result.Rail != enums.PayoutRailInstant {
		t.Fatalf("unexpected result %+v", result)
	}
	// 100.00 - 1.00 platform - 1.60 processor = 97.40
	if !result.Amount.Equal(d("97.40")) {
		t.Fatalf("expected net 97.40, got %s", result.Amount)
	}
	if len(f.transfers.calls) != 1 || f.transfers.calls[0].group != "order-1" {
		t.Fatalf("unexpected transfer calls %+v", f.transfers.calls)
	}

	payouts, err := f.repo.ListPayoutsByOrder(ctx, "order-1")
	if err != nil {
		t.Fatalf("list payouts: %v", err)
	}
	if len(payouts) != 1 || payouts[0].Status != enums.PayoutStatusCompleted {
		t.Fatalf("unexpected payouts %+v", payouts)
	}

	payee, _, _ := f.payees.GetPayee(ctx, "artist-1")
	if !payee.LifetimeEarnings.Equal(d("97.40")) {
		t.Fatalf("lifetime earnings not incremented: %s", payee.LifetimeEarnings)
	}
}

func TestDispatchBatchRailDeductsServiceFee(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedPayee(t, models.Payee{ID: "artist-1", Name: "Artist", Email: "a@example.com", Role: enums.PayeeRoleArtist, PayoutEmail: "pay@example.com"})

	results, err := f.svc.Dispatch(ctx, artistOrder("100.00"))
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	result := results[0]
	if result.Rail != enums.PayoutRailBatch {
		t.Fatalf("expected batch rail, got %s", result.Rail)
	}
	// 97.40 net minus 2% batch fee (1.95) = 95.45 actually moved.
	if !result.Amount.Equal(d("95.45")) {
		t.Fatalf("expected 95.45, got %s", result.Amount)
	}
	if len(f.batch.calls) != 1 || !f.batch.calls[0].amount.Equal(d("95.45")) {
		t.Fatalf("unexpected batch calls %+v", f.batch.calls)
	}

	payee, _, _ := f.payees.GetPayee(ctx, "artist-1")
	if !payee.LifetimeEarnings.Equal(d("95.45")) {
		t.Fatalf("earnings should reflect moved amount: %s", payee.LifetimeEarnings)
	}
}

func TestDispatchUnconnectedPayee(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedPayee(t, models.Payee{ID: "artist-1", Name: "Artist", Email: "a@example.com", Role: enums.PayeeRoleArtist})

	results, err := f.svc.Dispatch(ctx, artistOrder("100.00"))
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	result := results[0]
	if result.Disposition != DispositionAwaitingConnect {
		t.Fatalf("expected awaiting_connect, got %s", result.Disposition)
	}

	payouts, _ := f.repo.ListPayoutsByOrder(ctx, "order-1")
	if len(payouts) != 0 {
		t.Fatalf("expected zero payouts, got %d", len(payouts))
	}
	pendings, err := f.repo.ListOpenPendingByPayeeOrder(ctx, "artist-1", "order-1")
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pendings) != 1 || pendings[0].Status != enums.PendingPayoutStatusAwaitingConnect {
		t.Fatalf("unexpected pendings %+v", pendings)
	}
	if f.notifier.pendingSent != 1 {
		t.Fatalf("expected exactly one pending-earnings notification, got %d", f.notifier.pendingSent)
	}

	payee, _, _ := f.payees.GetPayee(ctx, "artist-1")
	if !payee.PendingBalance.Equal(d("97.40")) {
		t.Fatalf("pending balance not incremented: %s", payee.PendingBalance)
	}
	if payee.PendingNotifiedAt == nil {
		t.Fatal("payee should be marked notified")
	}

	// A second order must not repeat the nudge.
	second := artistOrder("50.00")
	second.ID = "order-2"
	if _, err := f.svc.Dispatch(ctx, second); err != nil {
		t.Fatalf("second dispatch: %v", err)
	}
	if f.notifier.pendingSent != 1 {
		t.Fatalf("pending-earnings notification repeated: %d", f.notifier.pendingSent)
	}
}

func TestDispatchFailureParksForRetry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedPayee(t, models.Payee{ID: "artist-1", Name: "Artist", Email: "a@example.com", Role: enums.PayeeRoleArtist, TransferAccountID: "acct_1"})
	f.transfers.err = errors.New("processor unavailable")

	results, err := f.svc.Dispatch(ctx, artistOrder("100.00"))
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if results[0].Disposition != DispositionRetryPending {
		t.Fatalf("expected retry_pending, got %s", results[0].Disposition)
	}

	pendings, _ := f.repo.ListRetryPending(ctx, 10)
	if len(pendings) != 1 || pendings[0].FailureReason != "processor unavailable" {
		t.Fatalf("unexpected pendings %+v", pendings)
	}

	// Processor recovers; the retry worker resolves the share.
	f.transfers.err = nil
	resolved, err := f.svc.RetryPending(ctx, 10)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if resolved != 1 {
		t.Fatalf("expected 1 resolved, got %d", resolved)
	}

	payouts, _ := f.repo.ListPayoutsByOrder(ctx, "order-1")
	if len(payouts) != 1 || !payouts[0].Amount.Equal(d("97.40")) {
		t.Fatalf("unexpected payouts after retry %+v", payouts)
	}
	if remaining, _ := f.repo.ListRetryPending(ctx, 10); len(remaining) != 0 {
		t.Fatalf("pending row should be resolved, got %+v", remaining)
	}
}

func TestRetryKeepsOrderNumberInBatchNote(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedPayee(t, models.Payee{ID: "artist-1", Name: "Artist", Email: "a@example.com", Role: enums.PayeeRoleArtist, PayoutEmail: "a@paypal.example.com"})
	f.batch.err = errors.New("provider unavailable")

	if _, err := f.svc.Dispatch(ctx, artistOrder("100.00")); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	pendings, _ := f.repo.ListRetryPending(ctx, 10)
	if len(pendings) != 1 || pendings[0].OrderNumber != "FW-260801-000001" {
		t.Fatalf("pending should carry the order number, got %+v", pendings)
	}

	f.batch.err = nil
	resolved, err := f.svc.RetryPending(ctx, 10)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if resolved != 1 {
		t.Fatalf("expected 1 resolved, got %d", resolved)
	}

	if len(f.batch.calls) != 1 {
		t.Fatalf("batch calls = %+v", f.batch.calls)
	}
	if f.batch.calls[0].note != "Fairwave payout for order FW-260801-000001" {
		t.Fatalf("note = %q", f.batch.calls[0].note)
	}
}

func TestRetryExhaustionFlipsToAwaitingConnect(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedPayee(t, models.Payee{ID: "artist-1", Name: "Artist", Email: "a@example.com", Role: enums.PayeeRoleArtist, TransferAccountID: "acct_1"})
	f.transfers.err = errors.New("processor unavailable")

	if _, err := f.svc.Dispatch(ctx, artistOrder("100.00")); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	// maxAttempts is 3; the first failure counted as attempt one.
	for i := 0; i < 2; i++ {
		if _, err := f.svc.RetryPending(ctx, 10); err != nil {
			t.Fatalf("retry %d: %v", i, err)
		}
	}

	if remaining, _ := f.repo.ListRetryPending(ctx, 10); len(remaining) != 0 {
		t.Fatalf("expected no retry-pending rows, got %+v", remaining)
	}
	pendings, err := f.repo.ListOpenPendingByPayeeOrder(ctx, "artist-1", "order-1")
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pendings) != 1 || pendings[0].Status != enums.PendingPayoutStatusAwaitingConnect {
		t.Fatalf("expected awaiting_connect after exhaustion, got %+v", pendings)
	}
	payee, _, _ := f.payees.GetPayee(ctx, "artist-1")
	if !payee.PendingBalance.Equal(d("97.40")) {
		t.Fatalf("pending balance should hold the unpaid share: %s", payee.PendingBalance)
	}
}

func TestDispatchGroupsItemsByPayee(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedPayee(t, models.Payee{ID: "artist-1", Name: "Artist", Email: "a@example.com", Role: enums.PayeeRoleArtist, TransferAccountID: "acct_1"})
	f.seedPayee(t, models.Payee{ID: "supplier-1", Name: "Supplier", Email: "s@example.com", Role: enums.PayeeRoleMerchSupplier, TransferAccountID: "acct_2"})

	order := models.Order{
		ID:          "order-1",
		OrderNumber: "FW-260801-000002",
		Items: []models.OrderItem{
			{ID: "item-1", Type: enums.ItemTypeDigital, Title: "Album", ArtistID: "artist-1", Price: d("10.00"), Quantity: 1},
			{ID: "item-2", Type: enums.ItemTypeTrack, Title: "Single", ArtistID: "artist-1", Price: d("2.00"), Quantity: 2},
			{ID: "item-3", Type: enums.ItemTypeMerch, Title: "Shirt", SupplierID: "supplier-1", Price: d("25.00"), Quantity: 1},
		},
	}

	results, err := f.svc.Dispatch(ctx, order)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 payee groups, got %d", len(results))
	}
	// Stable ordering: artist-1 before supplier-1.
	if results[0].PayeeID != "artist-1" || results[1].PayeeID != "supplier-1" {
		t.Fatalf("unexpected group order %+v", results)
	}
	if len(results[0].Items) != 2 || len(results[1].Items) != 1 {
		t.Fatalf("unexpected item grouping")
	}

	// Artist bucket: 14.00 - 1% (0.14) - (1.3% of 14 + 0.15) = 14.00 - 0.14 - 0.33 = 13.53
	if !results[0].Amount.Equal(d("13.53")) {
		t.Fatalf("unexpected artist net %s", results[0].Amount)
	}
	// Merch bucket: 25.00 - 5% (1.25) - (1.3% of 25 + 0.15) = 25.00 - 1.25 - 0.48 = 23.27
	if !results[1].Amount.Equal(d("23.27")) {
		t.Fatalf("unexpected supplier net %s", results[1].Amount)
	}
}
