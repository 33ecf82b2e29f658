package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teambilling/internal/domain"
)

// billedMember sets up a tenant with a 50/day-10 fee and one member.
func billedMember(t *testing.T, f *fixture) (*domain.Tenant, *domain.Member) {
	t.Helper()
	tenant := f.tenant(t, day(2023, time.December, 1))
	require.NoError(t, f.fees.SetFeeConfig(context.Background(), &domain.FeeConfig{TenantID: tenant.ID, Amount: dec("50"), DueDay: 10}))
	return tenant, f.member(t, tenant.ID)
}

func TestResolveStatus_LateAfterDueDay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, day(2024, 1, 1))
	tenant, m := billedMember(t, f)
	_, err := f.invoices.GenerateInvoices(ctx, tenant.ID, 1, 2024)
	require.NoError(t, err)

	st, err := f.status.ResolveStatus(ctx, m.ID, day(2024, 1, 11))
	require.NoError(t, err)
	assert.Equal(t, domain.ClassificationLate, st.Classification)
	assert.True(t, dec("50").Equal(st.TotalOutstanding), st.TotalOutstanding.String())
	assert.Equal(t, 1, st.MonthsOutstanding)
	assert.Equal(t, 1, st.DaysPastDue)
}

func TestResolveStatus_ImplicitCurrentMonth(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, day(2024, 1, 1))
	_, m := billedMember(t, f)

	st, err := f.status.ResolveStatus(ctx, m.ID, day(2024, 1, 5))
	require.NoError(t, err)
	assert.Equal(t, domain.ClassificationPending, st.Classification)
	assert.True(t, st.TotalOutstanding.IsZero())

	st, err = f.status.ResolveStatus(ctx, m.ID, day(2024, 1, 11))
	require.NoError(t, err)
	assert.Equal(t, domain.ClassificationLate, st.Classification)
	assert.True(t, dec("50").Equal(st.TotalOutstanding))
	assert.Equal(t, 1, st.MonthsOutstanding)
}

func TestResolveStatus_PendingAndPaid(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, day(2024, 1, 1))
	tenant, m := billedMember(t, f)
	_, err := f.invoices.GenerateInvoices(ctx, tenant.ID, 1, 2024)
	require.NoError(t, err)

	st, err := f.status.ResolveStatus(ctx, m.ID, day(2024, 1, 10))
	require.NoError(t, err)
	assert.Equal(t, domain.ClassificationPending, st.Classification)
	assert.True(t, dec("50").Equal(st.TotalOutstanding))

	invs, err := f.invoices.ListInvoices(ctx, m.ID)
	require.NoError(t, err)
	_, err = f.invoices.RecordPayment(ctx, invs[0].ID, day(2024, 1, 8))
	require.NoError(t, err)

	st, err = f.status.ResolveStatus(ctx, m.ID, day(2024, 1, 20))
	require.NoError(t, err)
	assert.Equal(t, domain.ClassificationPaid, st.Classification)
	assert.True(t, st.TotalOutstanding.IsZero())
	assert.Zero(t, st.MonthsOutstanding)
}

func TestResolveStatus_ExemptAndUndefined(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, day(2024, 1, 1))
	tenant := f.tenant(t, day(2023, time.December, 1))
	m := f.member(t, tenant.ID)

	st, err := f.status.ResolveStatus(ctx, m.ID, day(2024, 1, 20))
	require.NoError(t, err)
	assert.Equal(t, domain.ClassificationUndefined, st.Classification)

	require.NoError(t, f.debts.AddDebt(ctx, &domain.HistoricalDebt{MemberID: m.ID, TenantID: tenant.ID, Amount: dec("80"), Month: 6, Year: 2023}))
	require.NoError(t, f.fees.SetException(ctx, &domain.FeeException{MemberID: m.ID, TenantID: tenant.ID, IsExempt: true}))

	st, err = f.status.ResolveStatus(ctx, m.ID, day(2024, 1, 20))
	require.NoError(t, err)
	assert.Equal(t, domain.ClassificationExempt, st.Classification, "exemption wins over outstanding debt")
	assert.True(t, st.TotalOutstanding.IsZero())
}

func TestResolveStatus_BacklogBeforeDueDayIsPending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, day(2024, 1, 1))
	tenant, m := billedMember(t, f)
	_, err := f.invoices.GenerateInvoices(ctx, tenant.ID, 1, 2024)
	require.NoError(t, err)
	_, err = f.invoices.GenerateInvoices(ctx, tenant.ID, 2, 2024)
	require.NoError(t, err)

	st, err := f.status.ResolveStatus(ctx, m.ID, day(2024, 2, 3))
	require.NoError(t, err)
	assert.Equal(t, domain.ClassificationPending, st.Classification, "february is not due yet")
	assert.True(t, dec("100").Equal(st.TotalOutstanding), st.TotalOutstanding.String())
	assert.Equal(t, 2, st.MonthsOutstanding)
	assert.Zero(t, st.DaysPastDue)

	// paying the current month leaves january as backlog
	feb, err := f.store.Invoices.GetByMemberPeriod(ctx, m.ID, domain.Period{Month: 2, Year: 2024})
	require.NoError(t, err)
	_, err = f.invoices.RecordPayment(ctx, feb.ID, day(2024, 2, 2))
	require.NoError(t, err)

	st, err = f.status.ResolveStatus(ctx, m.ID, day(2024, 2, 3))
	require.NoError(t, err)
	assert.Equal(t, domain.ClassificationLate, st.Classification)
	assert.True(t, dec("50").Equal(st.TotalOutstanding), st.TotalOutstanding.String())
	assert.Equal(t, 1, st.MonthsOutstanding)
	assert.Equal(t, 24, st.DaysPastDue)
}

func TestResolveStatus_HistoricalDebt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, day(2024, 1, 1))
	tenant, m := billedMember(t, f)
	_, err := f.invoices.GenerateInvoices(ctx, tenant.ID, 1, 2024)
	require.NoError(t, err)
	require.NoError(t, f.debts.AddDebt(ctx, &domain.HistoricalDebt{
		MemberID: m.ID, TenantID: tenant.ID, Amount: dec("30"), Month: 12, Year: 2023, Description: "carried over",
	}))

	st, err := f.status.ResolveStatus(ctx, m.ID, day(2024, 1, 5))
	require.NoError(t, err)
	assert.Equal(t, domain.ClassificationPending, st.Classification)
	assert.True(t, dec("80").Equal(st.TotalOutstanding))
	assert.Equal(t, 2, st.MonthsOutstanding)

	st, err = f.status.ResolveStatus(ctx, m.ID, day(2024, 1, 11))
	require.NoError(t, err)
	assert.Equal(t, domain.ClassificationVeryLate, st.Classification)
	assert.True(t, dec("80").Equal(st.TotalOutstanding))
	assert.Equal(t, 32, st.DaysPastDue, "counted from the debt's due date")
}

func TestResolveStatus_VeryLate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, day(2024, 1, 1))
	f.policy.VeryLateAfterDays = 5
	f.wire(t)
	tenant, m := billedMember(t, f)
	_, err := f.invoices.GenerateInvoices(ctx, tenant.ID, 1, 2024)
	require.NoError(t, err)

	st, err := f.status.ResolveStatus(ctx, m.ID, day(2024, 1, 15))
	require.NoError(t, err)
	assert.Equal(t, domain.ClassificationLate, st.Classification, "5 days is not beyond the threshold")
	assert.Equal(t, 5, st.DaysPastDue)

	st, err = f.status.ResolveStatus(ctx, m.ID, day(2024, 1, 16))
	require.NoError(t, err)
	assert.Equal(t, domain.ClassificationVeryLate, st.Classification)
	assert.Equal(t, 6, st.DaysPastDue)
}

func TestResolveStatus_OutstandingNeverDecreasesWithoutPayment(t *testing.T) {
	for _, generate := range []bool{true, false} {
		name := "WithoutInvoices"
		if generate {
			name = "MonthlyInvoices"
		}
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, day(2024, 1, 1))
			tenant, m := billedMember(t, f)

			prev := decimal.Zero
			for asOf := day(2024, 1, 1); asOf.Before(day(2024, 5, 1)); asOf = asOf.AddDate(0, 0, 1) {
				if generate && asOf.Day() == 1 {
					_, err := f.invoices.GenerateInvoices(ctx, tenant.ID, int(asOf.Month()), asOf.Year())
					require.NoError(t, err)
				}
				st, err := f.status.ResolveStatus(ctx, m.ID, asOf)
				require.NoError(t, err)
				require.True(t, st.TotalOutstanding.GreaterThanOrEqual(prev),
					"outstanding dropped from %s to %s on %s", prev, st.TotalOutstanding, asOf.Format(time.DateOnly))
				prev = st.TotalOutstanding
			}
			assert.True(t, dec("200").Equal(prev), prev.String())
		})
	}
}

func TestResolveStatus_MissedMonthsWithoutInvoices(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, day(2024, 1, 1))
	_, m := billedMember(t, f)

	st, err := f.status.ResolveStatus(ctx, m.ID, day(2024, 1, 31))
	require.NoError(t, err)
	assert.True(t, dec("50").Equal(st.TotalOutstanding))

	st, err = f.status.ResolveStatus(ctx, m.ID, day(2024, 3, 1))
	require.NoError(t, err)
	assert.Equal(t, domain.ClassificationPending, st.Classification)
	assert.True(t, dec("100").Equal(st.TotalOutstanding), st.TotalOutstanding.String())
	assert.Equal(t, 2, st.MonthsOutstanding)

	st, err = f.status.ResolveStatus(ctx, m.ID, day(2024, 3, 11))
	require.NoError(t, err)
	assert.Equal(t, domain.ClassificationVeryLate, st.Classification)
	assert.True(t, dec("150").Equal(st.TotalOutstanding))
	assert.Equal(t, 61, st.DaysPastDue)
}

func TestResolveStatus_JoinedAfterDueDay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, day(2024, 1, 20))
	tenant, _ := billedMember(t, f)
	m := &domain.Member{TenantID: tenant.ID, Name: "Late joiner"}
	require.NoError(t, f.admin.AddMember(ctx, m))
	assert.Equal(t, day(2024, 1, 20), m.JoinedAt)

	st, err := f.status.ResolveStatus(ctx, m.ID, day(2024, 1, 25))
	require.NoError(t, err)
	assert.Equal(t, domain.ClassificationPaid, st.Classification, "nothing is owed for the joining month")
	assert.True(t, st.TotalOutstanding.IsZero())

	st, err = f.status.ResolveStatus(ctx, m.ID, day(2024, 2, 11))
	require.NoError(t, err)
	assert.Equal(t, domain.ClassificationLate, st.Classification)
	assert.True(t, dec("50").Equal(st.TotalOutstanding))
	assert.Equal(t, 1, st.MonthsOutstanding)
}

func TestResolveTenant(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, day(2024, 1, 1))
	tenant, _ := billedMember(t, f)
	f.member(t, tenant.ID)

	statuses, err := f.status.ResolveTenant(ctx, tenant.ID, day(2024, 1, 11))
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	for _, st := range statuses {
		assert.Equal(t, domain.ClassificationLate, st.Classification)
	}
}

func TestAddDebt_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, day(2024, 1, 1))
	tenant, m := billedMember(t, f)
	other := f.tenant(t, day(2024, 1, 1))

	var verr *ValidationError
	err := f.debts.AddDebt(ctx, &domain.HistoricalDebt{MemberID: m.ID, TenantID: tenant.ID, Amount: dec("0"), Month: 1, Year: 2023})
	assert.ErrorAs(t, err, &verr)

	err = f.debts.AddDebt(ctx, &domain.HistoricalDebt{MemberID: m.ID, TenantID: tenant.ID, Amount: dec("10"), Month: 13, Year: 2023})
	assert.ErrorAs(t, err, &verr)

	err = f.debts.AddDebt(ctx, &domain.HistoricalDebt{MemberID: m.ID, TenantID: other.ID, Amount: dec("10"), Month: 1, Year: 2023})
	assert.ErrorAs(t, err, &verr)

	err = f.debts.AddDebt(ctx, &domain.HistoricalDebt{MemberID: 9999, TenantID: tenant.ID, Amount: dec("10"), Month: 1, Year: 2023})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
