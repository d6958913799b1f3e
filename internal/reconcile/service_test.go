package reconcile

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	"github.com/fairwavehq/fairwave-backend/internal/catalog"
	"github.com/fairwavehq/fairwave-backend/internal/notify"
	"github.com/fairwavehq/fairwave-backend/internal/orders"
	"github.com/fairwavehq/fairwave-backend/internal/payouts"
	"github.com/fairwavehq/fairwave-backend/pkg/docstore"
	"github.com/fairwavehq/fairwave-backend/pkg/enums"
	"github.com/fairwavehq/fairwave-backend/pkg/logger"
	"github.com/fairwavehq/fairwave-backend/pkg/metrics"
	"github.com/fairwavehq/fairwave-backend/pkg/models"
	"github.com/fairwavehq/fairwave-backend/pkg/paypalclient"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeTransfers struct {
	reversals []reversalCall
	created   []createCall
	byGroup   map[string][]*stripe.Transfer
}

type reversalCall struct {
	transferID string
	amount     decimal.Decimal
}

type createCall struct {
	accountID string
	amount    decimal.Decimal
	group     string
}

func (f *fakeTransfers) CreateTransfer(_ context.Context, accountID string, amount decimal.Decimal, currency, transferGroup string) (*stripe.Transfer, error) {
	f.created = append(f.created, createCall{accountID: accountID, amount: amount, group: transferGroup})
	return &stripe.Transfer{ID: fmt.Sprintf("tr_new_%d", len(f.created))}, nil
}

func (f *fakeTransfers) ReverseTransfer(_ context.Context, transferID string, amount decimal.Decimal) (*stripe.TransferReversal, error) {
	f.reversals = append(f.reversals, reversalCall{transferID: transferID, amount: amount})
	return &stripe.TransferReversal{ID: fmt.Sprintf("trr_%d", len(f.reversals))}, nil
}

func (f *fakeTransfers) ListTransfersByGroup(_ context.Context, transferGroup string) ([]*stripe.Transfer, error) {
	return f.byGroup[transferGroup], nil
}

type fakeBatch struct {
	sent []batchCall
}

type batchCall struct {
	email        string
	amount       decimal.Decimal
	senderItemID string
	note         string
}

func (f *fakeBatch) SendPayout(_ context.Context, receiverEmail string, amount decimal.Decimal, _, senderItemID, note string) (*paypalclient.PayoutResult, error) {
	f.sent = append(f.sent, batchCall{email: receiverEmail, amount: amount, senderItemID: senderItemID, note: note})
	return &paypalclient.PayoutResult{BatchID: fmt.Sprintf("pb_new_%d", len(f.sent))}, nil
}

type fakeNotifier struct {
	reversed []string
}

func (f *fakeNotifier) PayoutReversed(_ context.Context, payee models.Payee, _ string, _ decimal.Decimal) notify.Outcome {
	f.reversed = append(f.reversed, payee.ID)
	return notify.Outcome{Kind: "payout_reversed", Recipient: payee.Email}
}

type fixture struct {
	store     *docstore.MemoryStore
	ordersRp  *orders.Repo
	payoutsRp *payouts.Repo
	payees    *catalog.Repo
	transfers *fakeTransfers
	batch     *fakeBatch
	notifier  *fakeNotifier
	svc       *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := docstore.NewMemoryStore()
	repo, err := NewRepo(store)
	if err != nil {
		t.Fatalf("new repo: %v", err)
	}
	ordersRp, err := orders.NewRepo(store)
	if err != nil {
		t.Fatalf("new orders repo: %v", err)
	}
	payoutsRp, err := payouts.NewRepo(store)
	if err != nil {
		t.Fatalf("new payouts repo: %v", err)
	}
	payees, err := catalog.NewRepo(store)
	if err != nil {
		t.Fatalf("new catalog repo: %v", err)
	}
	transfers := &fakeTransfers{byGroup: map[string][]*stripe.Transfer{}}
	batch := &fakeBatch{}
	notifier := &fakeNotifier{}
	logg := logger.New(logger.Options{ServiceName: "reconcile-test", Output: io.Discard})
	svc, err := NewService(repo, ordersRp, payoutsRp, payees, transfers, batch, notifier, nil, metrics.NewSettlementMetrics(nil), logg, enums.CurrencyUSD)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &fixture{store: store, ordersRp: ordersRp, payoutsRp: payoutsRp, payees: payees, transfers: transfers, batch: batch, notifier: notifier, svc: svc}
}

func (f *fixture) seedPayee(t *testing.T, payee models.Payee) {
	t.Helper()
	if err := f.store.Set(context.Background(), models.CollectionPayees, payee.ID, payee); err != nil {
		t.Fatalf("seed payee: %v", err)
	}
}

func (f *fixture) seedOrder(t *testing.T, chargeRef string) models.Order {
	t.Helper()
	order := models.Order{
		ID:               uuid.NewString(),
		OrderNumber:      "FW-260826-000001",
		Customer:         models.Customer{Email: "buyer@example.com"},
		Totals:           models.OrderTotals{Total: d("100.00")},
		PaymentMethod:    enums.PaymentMethodCard,
		PaymentReference: chargeRef,
		Status:           enums.OrderStatusProcessing,
		CreatedAt:        time.Now().UTC(),
		UpdatedAt:        time.Now().UTC(),
	}
	if err := f.ordersRp.Create(context.Background(), order); err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order
}

func (f *fixture) seedPayout(t *testing.T, orderID, payeeID, amount, transferRef string) models.Payout {
	t.Helper()
	payout := models.Payout{
		ID:                  uuid.NewString(),
		PayeeID:             payeeID,
		PayeeRole:           enums.PayeeRoleArtist,
		OrderID:             orderID,
		Amount:              d(amount),
		Currency:            enums.CurrencyUSD,
		Rail:                enums.PayoutRailInstant,
		Status:              enums.PayoutStatusCompleted,
		ReversedAmount:      decimal.Zero,
		ExternalTransferRef: transferRef,
		CreatedAt:           time.Now().UTC(),
		UpdatedAt:           time.Now().UTC(),
	}
	if err := f.payoutsRp.CreatePayout(context.Background(), payout); err != nil {
		t.Fatalf("seed payout: %v", err)
	}
	return payout
}

func (f *fixture) payeeBalance(t *testing.T, id string) (lifetime, pending decimal.Decimal) {
	t.Helper()
	payee, found, err := f.payees.GetPayee(context.Background(), id)
	if err != nil || !found {
		t.Fatalf("payee %s not readable: found=%v err=%v", id, found, err)
	}
	return payee.LifetimeEarnings, payee.PendingBalance
}

func TestOnRefundPartialReversesProportionally(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedPayee(t, models.Payee{ID: "artist-1", Name: "Mar", Email: "mar@example.com", Role: enums.PayeeRoleArtist, TransferAccountID: "acct_1", LifetimeEarnings: d("97.40")})
	order := f.seedOrder(t, "ch_partial")
	payout := f.seedPayout(t, order.ID, "artist-1", "97.40", "tr_1")

	if err := f.svc.OnRefund(ctx, "ch_partial", d("100.00"), d("50.00")); err != nil {
		t.Fatalf("OnRefund: %v", err)
	}

	if len(f.transfers.reversals) != 1 {
		t.Fatalf("reversals = %+v", f.transfers.reversals)
	}
	call := f.transfers.reversals[0]
	if call.transferID != "tr_1" || !call.amount.Equal(d("48.70")) {
		t.Fatalf("reversal = %s %s, want tr_1 48.70", call.transferID, call.amount)
	}

	updated, _, err := f.payoutsRp.GetPayout(ctx, payout.ID)
	if err != nil {
		t.Fatalf("GetPayout: %v", err)
	}
	if updated.Status != enums.PayoutStatusPartiallyReversed {
		t.Fatalf("status = %s, want partially_reversed", updated.Status)
	}
	if !updated.ReversedAmount.Equal(d("48.70")) {
		t.Fatalf("reversed amount = %s", updated.ReversedAmount)
	}

	lifetime, _ := f.payeeBalance(t, "artist-1")
	if !lifetime.Equal(d("48.70")) {
		t.Fatalf("lifetime earnings = %s, want 48.70", lifetime)
	}
	if len(f.notifier.reversed) != 1 || f.notifier.reversed[0] != "artist-1" {
		t.Fatalf("notifications = %v", f.notifier.reversed)
	}
}

func TestOnRefundReplayIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedPayee(t, models.Payee{ID: "artist-1", Email: "mar@example.com", TransferAccountID: "acct_1", LifetimeEarnings: d("97.40")})
	order := f.seedOrder(t, "ch_replay")
	f.seedPayout(t, order.ID, "artist-1", "97.40", "tr_1")

	if err := f.svc.OnRefund(ctx, "ch_replay", d("100.00"), d("50.00")); err != nil {
		t.Fatalf("first OnRefund: %v", err)
	}
	if err := f.svc.OnRefund(ctx, "ch_replay", d("100.00"), d("50.00")); err != nil {
		t.Fatalf("replayed OnRefund: %v", err)
	}

	if len(f.transfers.reversals) != 1 {
		t.Fatalf("replay caused extra reversal: %+v", f.transfers.reversals)
	}

	// Escalating the cumulative total reverses only the delta, clamped to
	// what the payout has left.
	if err := f.svc.OnRefund(ctx, "ch_replay", d("100.00"), d("100.00")); err != nil {
		t.Fatalf("full OnRefund: %v", err)
	}
	if len(f.transfers.reversals) != 2 {
		t.Fatalf("reversals = %+v", f.transfers.reversals)
	}
	if !f.transfers.reversals[1].amount.Equal(d("48.70")) {
		t.Fatalf("second reversal = %s, want 48.70", f.transfers.reversals[1].amount)
	}

	pts, err := f.payoutsRp.ListPayoutsByOrder(ctx, order.ID)
	if err != nil || len(pts) != 1 {
		t.Fatalf("ListPayoutsByOrder: %v %v", pts, err)
	}
	if pts[0].Status != enums.PayoutStatusReversed {
		t.Fatalf("status = %s, want reversed", pts[0].Status)
	}
	if !pts[0].Remaining().IsZero() {
		t.Fatalf("remaining = %s, want 0", pts[0].Remaining())
	}
}

func TestOnRefundNeverExceedsPayout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedPayee(t, models.Payee{ID: "artist-1", Email: "mar@example.com", TransferAccountID: "acct_1", LifetimeEarnings: d("97.40")})
	order := f.seedOrder(t, "ch_over")
	f.seedPayout(t, order.ID, "artist-1", "97.40", "tr_1")

	// Cumulative refund above the charge still only claws back the payout.
	if err := f.svc.OnRefund(ctx, "ch_over", d("100.00"), d("150.00")); err != nil {
		t.Fatalf("OnRefund: %v", err)
	}
	if len(f.transfers.reversals) != 1 || !f.transfers.reversals[0].amount.Equal(d("97.40")) {
		t.Fatalf("reversals = %+v", f.transfers.reversals)
	}
}

func TestOnRefundUnknownChargeIsNoOp(t *testing.T) {
	f := newFixture(t)
	if err := f.svc.OnRefund(context.Background(), "ch_ghost", d("100.00"), d("50.00")); err != nil {
		t.Fatalf("OnRefund: %v", err)
	}
	if len(f.transfers.reversals) != 0 {
		t.Fatalf("reversals = %+v", f.transfers.reversals)
	}
}

func TestOnRefundAdjustsPendings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedPayee(t, models.Payee{ID: "artist-1", Email: "mar@example.com", PendingBalance: d("97.40")})
	order := f.seedOrder(t, "ch_pending")
	pending := models.PendingPayout{
		ID:        uuid.NewString(),
		PayeeID:   "artist-1",
		PayeeRole: enums.PayeeRoleArtist,
		OrderID:   order.ID,
		Amount:    d("97.40"),
		Currency:  enums.CurrencyUSD,
		Status:    enums.PendingPayoutStatusAwaitingConnect,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := f.payoutsRp.CreatePendingPayout(ctx, pending); err != nil {
		t.Fatalf("seed pending: %v", err)
	}

	// Half refund shaves half off the pending share and the balance.
	if err := f.svc.OnRefund(ctx, "ch_pending", d("100.00"), d("50.00")); err != nil {
		t.Fatalf("partial OnRefund: %v", err)
	}
	open, err := f.payoutsRp.ListOpenPendingByOrder(ctx, order.ID)
	if err != nil || len(open) != 1 {
		t.Fatalf("open pendings: %v %v", open, err)
	}
	if !open[0].Amount.Equal(d("48.70")) {
		t.Fatalf("pending amount = %s, want 48.70", open[0].Amount)
	}
	_, balance := f.payeeBalance(t, "artist-1")
	if !balance.Equal(d("48.70")) {
		t.Fatalf("pending balance = %s, want 48.70", balance)
	}

	// Full refund cancels what is left.
	if err := f.svc.OnRefund(ctx, "ch_pending", d("100.00"), d("100.00")); err != nil {
		t.Fatalf("full OnRefund: %v", err)
	}
	open, err = f.payoutsRp.ListOpenPendingByOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("ListOpenPendingByOrder: %v", err)
	}
	if len(open) != 0 {
		t.Fatalf("open pendings after full refund = %+v", open)
	}
	_, balance = f.payeeBalance(t, "artist-1")
	if !balance.IsZero() {
		t.Fatalf("pending balance = %s, want 0", balance)
	}
}

func TestDisputeRoundTripLost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedPayee(t, models.Payee{ID: "artist-1", Email: "mar@example.com", TransferAccountID: "acct_1", LifetimeEarnings: d("97.40")})
	order := f.seedOrder(t, "ch_dispute")
	f.seedPayout(t, order.ID, "artist-1", "97.40", "tr_1")

	dispute, err := f.svc.OnDisputeOpened(ctx, "dp_1", "ch_dispute", d("100.00"), "fraudulent")
	if err != nil {
		t.Fatalf("OnDisputeOpened: %v", err)
	}
	if dispute.Status != enums.DisputeStatusOpen {
		t.Fatalf("status = %s, want open", dispute.Status)
	}
	if len(dispute.TransfersReversed) != 1 || !dispute.AmountRecovered.Equal(d("97.40")) {
		t.Fatalf("dispute = %+v", dispute)
	}
	if len(f.transfers.reversals) != 1 {
		t.Fatalf("reversals = %+v", f.transfers.reversals)
	}
	lifetime, _ := f.payeeBalance(t, "artist-1")
	if !lifetime.IsZero() {
		t.Fatalf("lifetime earnings = %s, want 0", lifetime)
	}

	// Replay returns the existing dispute without reversing again.
	again, err := f.svc.OnDisputeOpened(ctx, "dp_1", "ch_dispute", d("100.00"), "fraudulent")
	if err != nil {
		t.Fatalf("replayed OnDisputeOpened: %v", err)
	}
	if again.ID != dispute.ID || len(f.transfers.reversals) != 1 {
		t.Fatalf("replay not idempotent: %+v", again)
	}

	closed, err := f.svc.OnDisputeClosed(ctx, "dp_1", false)
	if err != nil {
		t.Fatalf("OnDisputeClosed: %v", err)
	}
	if closed.Status != enums.DisputeStatusLost {
		t.Fatalf("status = %s, want lost", closed.Status)
	}
	if closed.NetImpact == nil || !closed.NetImpact.Equal(d("2.60")) {
		t.Fatalf("net impact = %v, want 2.60", closed.NetImpact)
	}
}

func TestDisputeWonReissuesTransfers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedPayee(t, models.Payee{ID: "artist-1", Email: "mar@example.com", Role: enums.PayeeRoleArtist, TransferAccountID: "acct_1", LifetimeEarnings: d("97.40")})
	order := f.seedOrder(t, "ch_won")
	f.seedPayout(t, order.ID, "artist-1", "97.40", "tr_1")

	if _, err := f.svc.OnDisputeOpened(ctx, "dp_won", "ch_won", d("100.00"), "unrecognized"); err != nil {
		t.Fatalf("OnDisputeOpened: %v", err)
	}

	closed, err := f.svc.OnDisputeClosed(ctx, "dp_won", true)
	if err != nil {
		t.Fatalf("OnDisputeClosed: %v", err)
	}
	if closed.Status != enums.DisputeStatusWon {
		t.Fatalf("status = %s, want won", closed.Status)
	}
	if closed.NetImpact == nil || !closed.NetImpact.IsZero() {
		t.Fatalf("net impact = %v, want 0", closed.NetImpact)
	}

	if len(f.transfers.created) != 1 {
		t.Fatalf("re-issued transfers = %+v", f.transfers.created)
	}
	reissue := f.transfers.created[0]
	if reissue.accountID != "acct_1" || !reissue.amount.Equal(d("97.40")) || reissue.group != order.ID {
		t.Fatalf("re-issue = %+v", reissue)
	}
	lifetime, _ := f.payeeBalance(t, "artist-1")
	if !lifetime.Equal(d("97.40")) {
		t.Fatalf("lifetime earnings = %s, want 97.40", lifetime)
	}

	pts, err := f.payoutsRp.ListPayoutsByOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("ListPayoutsByOrder: %v", err)
	}
	completed := 0
	for _, p := range pts {
		if p.Status == enums.PayoutStatusCompleted {
			completed++
		}
	}
	if completed != 1 {
		t.Fatalf("completed payouts after win = %d, want 1", completed)
	}

	// Closing twice is a no-op.
	if _, err := f.svc.OnDisputeClosed(ctx, "dp_won", true); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if len(f.transfers.created) != 1 {
		t.Fatalf("second close re-issued again: %+v", f.transfers.created)
	}
}

func TestDisputeWonWithoutCredentialGoesPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedPayee(t, models.Payee{ID: "artist-1", Email: "mar@example.com", Role: enums.PayeeRoleArtist, TransferAccountID: "acct_1", LifetimeEarnings: d("97.40")})
	order := f.seedOrder(t, "ch_gone")
	f.seedPayout(t, order.ID, "artist-1", "97.40", "tr_1")

	if _, err := f.svc.OnDisputeOpened(ctx, "dp_gone", "ch_gone", d("100.00"), "unrecognized"); err != nil {
		t.Fatalf("OnDisputeOpened: %v", err)
	}

	// The payee disconnects before the dispute resolves.
	f.seedPayee(t, models.Payee{ID: "artist-1", Email: "mar@example.com", Role: enums.PayeeRoleArtist})

	if _, err := f.svc.OnDisputeClosed(ctx, "dp_gone", true); err != nil {
		t.Fatalf("OnDisputeClosed: %v", err)
	}
	if len(f.transfers.created) != 0 {
		t.Fatalf("transfer to disconnected payee: %+v", f.transfers.created)
	}

	open, err := f.payoutsRp.ListOpenPendingByOrder(ctx, order.ID)
	if err != nil || len(open) != 1 {
		t.Fatalf("open pendings: %v %v", open, err)
	}
	if open[0].Status != enums.PendingPayoutStatusAwaitingConnect || !open[0].Amount.Equal(d("97.40")) {
		t.Fatalf("pending = %+v", open[0])
	}
	_, balance := f.payeeBalance(t, "artist-1")
	if !balance.Equal(d("97.40")) {
		t.Fatalf("pending balance = %s, want 97.40", balance)
	}
}

func TestDisputeWonReissuesBatchRail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedPayee(t, models.Payee{ID: "artist-1", Email: "mar@example.com", PayoutEmail: "mar@paypal.example.com", Role: enums.PayeeRoleArtist, LifetimeEarnings: d("97.40")})
	order := f.seedOrder(t, "ch_batch")
	payout := models.Payout{
		ID:                  uuid.NewString(),
		PayeeID:             "artist-1",
		PayeeRole:           enums.PayeeRoleArtist,
		OrderID:             order.ID,
		Amount:              d("97.40"),
		Currency:            enums.CurrencyUSD,
		Rail:                enums.PayoutRailBatch,
		Status:              enums.PayoutStatusCompleted,
		ReversedAmount:      decimal.Zero,
		ExternalTransferRef: "pb_1",
		CreatedAt:           time.Now().UTC(),
		UpdatedAt:           time.Now().UTC(),
	}
	if err := f.payoutsRp.CreatePayout(ctx, payout); err != nil {
		t.Fatalf("seed payout: %v", err)
	}

	if _, err := f.svc.OnDisputeOpened(ctx, "dp_batch", "ch_batch", d("100.00"), "unrecognized"); err != nil {
		t.Fatalf("OnDisputeOpened: %v", err)
	}
	lifetime, _ := f.payeeBalance(t, "artist-1")
	if !lifetime.IsZero() {
		t.Fatalf("lifetime earnings after open = %s, want 0", lifetime)
	}

	if _, err := f.svc.OnDisputeClosed(ctx, "dp_batch", true); err != nil {
		t.Fatalf("OnDisputeClosed: %v", err)
	}

	if len(f.transfers.created) != 0 {
		t.Fatalf("instant transfer to batch-only payee: %+v", f.transfers.created)
	}
	if len(f.batch.sent) != 1 {
		t.Fatalf("batch payouts = %+v, want 1", f.batch.sent)
	}
	sent := f.batch.sent[0]
	// The re-issue restores the full share: no batch rail fee second time.
	if sent.email != "mar@paypal.example.com" || !sent.amount.Equal(d("97.40")) {
		t.Fatalf("re-issue = %+v", sent)
	}
	if sent.note != fmt.Sprintf("Fairwave payout for order %s", order.OrderNumber) {
		t.Fatalf("note = %q", sent.note)
	}

	lifetime, _ = f.payeeBalance(t, "artist-1")
	if !lifetime.Equal(d("97.40")) {
		t.Fatalf("lifetime earnings = %s, want 97.40", lifetime)
	}

	pts, err := f.payoutsRp.ListPayoutsByOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("ListPayoutsByOrder: %v", err)
	}
	completed := 0
	for _, p := range pts {
		if p.Status == enums.PayoutStatusCompleted && p.Rail == enums.PayoutRailBatch && p.ReversedAmount.IsZero() {
			completed++
		}
	}
	if completed != 1 {
		t.Fatalf("completed batch payouts after win = %d, want 1", completed)
	}

	open, err := f.payoutsRp.ListOpenPendingByOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("ListOpenPendingByOrder: %v", err)
	}
	if len(open) != 0 {
		t.Fatalf("open pendings for credentialed payee: %+v", open)
	}
}

func TestDisputeReversesUntrackedTransfers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedPayee(t, models.Payee{ID: "artist-1", Email: "mar@example.com", TransferAccountID: "acct_1"})
	order := f.seedOrder(t, "ch_drift")
	f.seedPayout(t, order.ID, "artist-1", "50.00", "tr_known")
	f.transfers.byGroup[order.ID] = []*stripe.Transfer{
		{ID: "tr_known", Amount: 5000},
		{ID: "tr_orphan", Amount: 2000},
	}

	dispute, err := f.svc.OnDisputeOpened(ctx, "dp_drift", "ch_drift", d("70.00"), "fraudulent")
	if err != nil {
		t.Fatalf("OnDisputeOpened: %v", err)
	}

	ids := map[string]bool{}
	for _, call := range f.transfers.reversals {
		ids[call.transferID] = true
	}
	if !ids["tr_known"] || !ids["tr_orphan"] {
		t.Fatalf("reversals = %+v", f.transfers.reversals)
	}
	if !dispute.AmountRecovered.Equal(d("70")) {
		t.Fatalf("recovered = %s, want 70", dispute.AmountRecovered)
	}
}
