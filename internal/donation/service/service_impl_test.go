package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/smallbiznis/givebox/internal/clock"
	"github.com/smallbiznis/givebox/internal/donation/domain"
	"github.com/smallbiznis/givebox/internal/donation/repository"
	widgetrepository "github.com/smallbiznis/givebox/internal/widget/repository"
	"github.com/smallbiznis/givebox/pkg/db/dbtest"
	"github.com/smallbiznis/givebox/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc     domain.Service
	conn    *gorm.DB
	clock   *clock.FakeClock
	orgID   string
	widget  string
	causeID string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	fake := clock.NewFakeClock(testNow)

	f := &fixture{
		conn:    conn,
		clock:   fake,
		orgID:   uuid.NewString(),
		widget:  uuid.NewString(),
		causeID: uuid.NewString(),
	}
	seed := []struct {
		query string
		args  []any
	}{
		{
			`INSERT INTO organizations (id, owner_id, name, slug, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
			[]any{f.orgID, "user_owner", "Acme", "acme", testNow, testNow},
		},
		{
			`INSERT INTO widgets (id, organization_id, name, slug, config, is_active, created_at, updated_at) VALUES (?, ?, ?, ?, '{}', ?, ?, ?)`,
			[]any{f.widget, f.orgID, "Main", "main", true, testNow, testNow},
		},
		{
			`INSERT INTO causes (id, widget_id, name, raised_amount, suggested_amounts, is_active, created_at, updated_at) VALUES (?, ?, ?, 0, '[]', ?, ?, ?)`,
			[]any{f.causeID, f.widget, "Water", true, testNow, testNow},
		},
	}
	for _, stmt := range seed {
		require.NoError(t, conn.Exec(stmt.query, stmt.args...).Error)
	}

	f.svc = NewService(Params{
		DB:         conn,
		Log:        zap.NewNop(),
		Clock:      fake,
		Repo:       repository.NewRepository(conn),
		WidgetRepo: widgetrepository.NewRepository(conn),
	})
	return f
}

func (f *fixture) pending(t *testing.T, email string, amount int64) *domain.Donation {
	t.Helper()
	d, err := f.svc.CreatePending(context.Background(), domain.CreatePendingRequest{
		WidgetID:        f.widget,
		CauseID:         f.causeID,
		OrganizationID:  f.orgID,
		DonorEmail:      email,
		Amount:          amount,
		PaymentIntentID: "pi_" + uuid.NewString(),
	})
	require.NoError(t, err)
	return d
}

func (f *fixture) raised(t *testing.T) int64 {
	t.Helper()
	var raised int64
	require.NoError(t, f.conn.Raw(`SELECT raised_amount FROM causes WHERE id = ?`, f.causeID).Scan(&raised).Error)
	return raised
}

func TestCreatePendingValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	base := domain.CreatePendingRequest{
		WidgetID:        f.widget,
		OrganizationID:  f.orgID,
		DonorEmail:      "donor@example.org",
		Amount:          2500,
		PaymentIntentID: "pi_1",
	}

	zero := base
	zero.Amount = 0
	_, err := f.svc.CreatePending(ctx, zero)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	badEmail := base
	badEmail.DonorEmail = "nope"
	_, err = f.svc.CreatePending(ctx, badEmail)
	assert.ErrorIs(t, err, domain.ErrInvalidDonor)

	d, err := f.svc.CreatePending(ctx, base)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, d.Status)
	assert.Equal(t, domain.DefaultCurrency, d.Currency)
	assert.Nil(t, d.CauseID)
}

func TestMarkSucceededCountsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.pending(t, "donor@example.org", 2500)

	changed, err := f.svc.MarkSucceeded(ctx, *d.StripePaymentIntentID, "ch_1")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = f.svc.MarkSucceeded(ctx, *d.StripePaymentIntentID, "ch_1")
	require.NoError(t, err)
	assert.False(t, changed)

	assert.Equal(t, int64(2500), f.raised(t))

	got, err := f.svc.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSucceeded, got.Status)
	require.NotNil(t, got.StripeChargeID)
	assert.Equal(t, "ch_1", *got.StripeChargeID)
	require.NotNil(t, got.ProcessedAt)
	assert.Equal(t, int64(2500), got.Amount)
}

func TestMarkSucceededLeavesRefundedAlone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.pending(t, "donor@example.org", 2500)

	changed, err := f.svc.MarkSucceeded(ctx, *d.StripePaymentIntentID, "ch_1")
	require.NoError(t, err)
	require.True(t, changed)
	require.NoError(t, f.conn.Exec(`UPDATE donations SET status = ? WHERE id = ?`, domain.StatusRefunded, d.ID).Error)

	changed, err = f.svc.MarkSucceeded(ctx, *d.StripePaymentIntentID, "ch_1")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, int64(2500), f.raised(t))

	got, err := f.svc.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRefunded, got.Status)
}

func TestMarkSucceededSettlesFailedRetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.pending(t, "donor@example.org", 1200)

	_, err := f.svc.MarkFailed(ctx, *d.StripePaymentIntentID, "card declined")
	require.NoError(t, err)
	changed, err := f.svc.MarkSucceeded(ctx, *d.StripePaymentIntentID, "ch_2")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, int64(1200), f.raised(t))
}

func TestMarkSucceededUnknownIntentIsNoop(t *testing.T) {
	f := newFixture(t)
	changed, err := f.svc.MarkSucceeded(context.Background(), "pi_missing", "")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, int64(0), f.raised(t))
}

func TestConcurrentSettlementSumsExactly(t *testing.T) {
	f := newFixture(t)

	const donations = 25
	intents := make([]string, donations)
	var want int64
	for i := range intents {
		amount := int64(100 * (i + 1))
		want += amount
		intents[i] = *f.pending(t, fmt.Sprintf("donor%d@example.org", i), amount).StripePaymentIntentID
	}

	var wg sync.WaitGroup
	for _, intent := range intents {
		for delivery := 0; delivery < 2; delivery++ {
			wg.Add(1)
			go func(intent string) {
				defer wg.Done()
				_, err := f.svc.MarkSucceeded(context.Background(), intent, "")
				assert.NoError(t, err)
			}(intent)
		}
	}
	wg.Wait()

	assert.Equal(t, want, f.raised(t))
}

func TestMarkFailedOnlyMovesPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	failed := f.pending(t, "a@example.org", 1000)
	changed, err := f.svc.MarkFailed(ctx, *failed.StripePaymentIntentID, "")
	require.NoError(t, err)
	assert.True(t, changed)
	got, err := f.svc.Get(ctx, failed.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, domain.DefaultFailureReason, *got.ErrorMessage)

	settled := f.pending(t, "b@example.org", 1000)
	_, err = f.svc.MarkSucceeded(ctx, *settled.StripePaymentIntentID, "")
	require.NoError(t, err)
	changed, err = f.svc.MarkFailed(ctx, *settled.StripePaymentIntentID, "card declined")
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestWithTxRollsBackSettlement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.pending(t, "donor@example.org", 700)

	err := f.conn.Transaction(func(tx *gorm.DB) error {
		changed, err := f.svc.WithTx(tx).MarkSucceeded(ctx, *d.StripePaymentIntentID, "")
		require.NoError(t, err)
		require.True(t, changed)
		return fmt.Errorf("abort")
	})
	require.Error(t, err)

	assert.Equal(t, int64(0), f.raised(t))
	got, err := f.svc.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
}

func TestListPaginates(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		f.pending(t, fmt.Sprintf("d%d@example.org", i), 100)
	}

	resp, err := f.svc.List(context.Background(), f.orgID, pagination.Pagination{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), resp.Total)
	assert.Equal(t, 2, resp.Pages)
	assert.Len(t, resp.Donations, 1)
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	settle := func(email string, amount int64) {
		d := f.pending(t, email, amount)
		_, err := f.svc.MarkSucceeded(ctx, *d.StripePaymentIntentID, "")
		require.NoError(t, err)
	}

	f.clock.Set(testNow.AddDate(0, 0, -2))
	settle("a@example.org", 1000)
	f.clock.Set(testNow)
	settle("a@example.org", 3000)
	settle("b@example.org", 2000)
	f.pending(t, "c@example.org", 9999)

	stats, err := f.svc.Stats(ctx, f.orgID)
	require.NoError(t, err)
	assert.Equal(t, int64(6000), stats.TotalRaised)
	assert.Equal(t, int64(3), stats.TotalDonations)
	assert.Equal(t, int64(2000), stats.AverageDonation)
	assert.Equal(t, int64(2), stats.UniqueDonors)

	require.Len(t, stats.Daily, domain.StatsWindowDays)
	last := stats.Daily[len(stats.Daily)-1]
	assert.Equal(t, "2026-03-15", last.Date)
	assert.Equal(t, int64(5000), last.Amount)
	assert.Equal(t, int64(2), last.Count)
	assert.Equal(t, int64(1000), stats.Daily[len(stats.Daily)-3].Amount)
}
