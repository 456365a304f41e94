package report

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulseboard/pulseboard/internal/customer"
	"github.com/pulseboard/pulseboard/internal/ledger"
	"github.com/pulseboard/pulseboard/internal/subscription"
)

type fixture struct {
	store     *MemoryStore
	customers *customer.MemoryStore
	subs      *subscription.MemoryStore
	txns      *ledger.MemoryStore
	gen       *Generator
}

func newFixture() *fixture {
	f := &fixture{
		store:     NewMemoryStore(),
		customers: customer.NewMemoryStore(),
		subs:      subscription.NewMemoryStore(),
		txns:      ledger.NewMemoryStore(),
	}
	f.gen = NewGenerator(f.store, f.customers, f.subs, f.txns, 10)
	return f
}

func (f *fixture) seedOrg(t *testing.T, now time.Time) {
	t.Helper()
	ctx := context.Background()

	for i, id := range []string{"cus_1", "cus_2", "cus_3"} {
		signup := now.AddDate(0, -3+i, 0)
		require.NoError(t, f.customers.Create(ctx, &customer.Customer{
			ID: id, OrganizationID: "org_1", Name: id, Email: id + "@x.test",
			Status: customer.StatusActive, Region: "EU",
			SignupDate: signup, LastActiveAt: now.AddDate(0, 0, -i*20),
			CreatedAt: signup, UpdatedAt: signup,
		}))
	}

	subs := []*subscription.Subscription{
		{ID: "sub_1", OrganizationID: "org_1", CustomerID: "cus_1", Plan: subscription.PlanPro,
			PricePerMonth: 99, Status: subscription.StatusActive, StartDate: now, CreatedAt: now, UpdatedAt: now},
		{ID: "sub_2", OrganizationID: "org_1", CustomerID: "cus_2", Plan: subscription.PlanBasic,
			PricePerMonth: 29, Status: subscription.StatusCancelled, StartDate: now.AddDate(0, -2, 0),
			CreatedAt: now.AddDate(0, -2, 0), UpdatedAt: now.AddDate(0, 0, -5)},
	}
	end := now.AddDate(0, 0, -5)
	subs[1].EndDate = &end
	for _, s := range subs {
		require.NoError(t, f.subs.Create(ctx, s))
	}

	require.NoError(t, f.txns.Create(ctx, &ledger.Transaction{
		ID: "txn_1", OrganizationID: "org_1", CustomerID: "cus_1", SubscriptionID: "sub_1",
		Amount: 99, Currency: "USD", Status: ledger.StatusSuccess, CreatedAt: now.AddDate(0, 0, -10),
	}))
}

func pendingReport(t *testing.T, store Store, now time.Time) *Report {
	t.Helper()
	r := &Report{
		ID:             "rep_1",
		OrganizationID: "org_1",
		Type:           TypeMonthly,
		Status:         StatusPending,
		PeriodStart:    now.AddDate(0, -1, 0),
		PeriodEnd:      now,
		CreatedAt:      now,
	}
	require.NoError(t, store.Create(context.Background(), r))
	return r
}

func TestGenerate_Summary(t *testing.T) {
	f := newFixture()
	now := time.Now()
	f.seedOrg(t, now)
	pendingReport(t, f.store, now)

	f.gen.generate(context.Background(), job{orgID: "org_1", reportID: "rep_1"})

	got, err := f.store.Get(context.Background(), "org_1", "rep_1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	require.NotNil(t, got.Summary)
	require.NotNil(t, got.CompletedAt)

	assert.EqualValues(t, 3, got.Summary.TotalUsers)
	assert.EqualValues(t, 2, got.Summary.ActiveUsers, "cus_3 was last active before the period")
	assert.Equal(t, 99.0, got.Summary.Revenue)
	assert.Equal(t, 99.0, got.Summary.MRR)
	assert.Equal(t, 1188.0, got.Summary.ARR)
	assert.Equal(t, 0.5, got.Summary.ChurnRate, "1 of 2 subscriptions cancelled in the period")
}

func TestGenerate_UnknownReportIsDropped(t *testing.T) {
	f := newFixture()

	// Must not panic or create anything.
	f.gen.generate(context.Background(), job{orgID: "org_1", reportID: "rep_ghost"})

	reports, err := f.store.List(context.Background(), "org_1", Filter{})
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestGenerator_StartStopDrainsQueue(t *testing.T) {
	f := newFixture()
	now := time.Now()
	f.seedOrg(t, now)
	pendingReport(t, f.store, now)

	f.gen.Start(context.Background())
	require.NoError(t, f.gen.Enqueue("org_1", "rep_1"))
	f.gen.Stop()

	got, err := f.store.Get(context.Background(), "org_1", "rep_1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status, "Stop waits for queued work")
}

func TestEnqueue_QueueFull(t *testing.T) {
	gen := NewGenerator(NewMemoryStore(), customer.NewMemoryStore(), subscription.NewMemoryStore(), ledger.NewMemoryStore(), 1)

	require.NoError(t, gen.Enqueue("org_1", "rep_1"))
	assert.Equal(t, ErrQueueFull, gen.Enqueue("org_1", "rep_2"))
}
