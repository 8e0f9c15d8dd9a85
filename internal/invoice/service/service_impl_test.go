package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/smallbiznis/givebox/internal/clock"
	invoicedomain "github.com/smallbiznis/givebox/internal/invoice/domain"
	"github.com/smallbiznis/givebox/internal/invoice/repository"
	"github.com/smallbiznis/givebox/pkg/db/dbtest"
	"github.com/smallbiznis/givebox/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRecordPaidIsIdempotent(t *testing.T) {
	conn := dbtest.Open(t)
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	orgID := uuid.NewString()
	require.NoError(t, conn.Exec(
		`INSERT INTO organizations (id, owner_id, name, slug, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		orgID, "user_1", "Acme", "acme", now, now,
	).Error)

	svc := NewService(ServiceParam{
		Log:   zap.NewNop(),
		Clock: clock.NewFakeClock(now),
		Repo:  repository.NewRepository(conn),
	})
	ctx := context.Background()
	in := invoicedomain.ProcessorInvoice{
		OrganizationID:  orgID,
		StripeInvoiceID: "in_1",
		AmountPaid:      4900,
		Currency:        "USD",
	}

	inserted, err := svc.RecordPaid(ctx, in)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = svc.RecordPaid(ctx, in)
	require.NoError(t, err)
	assert.False(t, inserted)

	resp, err := svc.List(ctx, orgID, pagination.Pagination{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, resp.Invoices, 1)
	assert.Equal(t, int64(4900), resp.Invoices[0].Amount)
	assert.Equal(t, "usd", resp.Invoices[0].Currency)
	assert.Equal(t, invoicedomain.StatusPaid, resp.Invoices[0].Status)
	require.NotNil(t, resp.Invoices[0].PaidAt)

	_, err = svc.RecordPaid(ctx, invoicedomain.ProcessorInvoice{OrganizationID: "nope", StripeInvoiceID: "in_2"})
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidOrganization)
}
