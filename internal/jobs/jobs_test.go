package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teambilling/internal/channel"
	"teambilling/internal/clock"
	"teambilling/internal/config"
	"teambilling/internal/domain"
	"teambilling/internal/lock"
	"teambilling/internal/metrics"
	"teambilling/internal/repository"
	"teambilling/internal/repository/memory"
	"teambilling/internal/service"
)

var created = time.Date(2024, time.January, 1, 6, 0, 0, 0, time.UTC)

type nopChannel struct{ err error }

func (c *nopChannel) Name() string                      { return channel.NameEmail }
func (c *nopChannel) CanDeliver(channel.Recipient) bool { return true }
func (c *nopChannel) Send(context.Context, channel.Recipient, channel.Message) error {
	return c.err
}

// failingState fails evaluation for one tenant and delegates the rest.
type failingState struct {
	service.BillingStateService
	tenantID int32
}

func (s *failingState) Evaluate(ctx context.Context, t *domain.Tenant, now time.Time) (*domain.Transition, error) {
	if t.ID == s.tenantID {
		return nil, &domain.PersistenceFailure{Op: "apply state change", Err: errors.New("connection reset")}
	}
	return s.BillingStateService.Evaluate(ctx, t, now)
}

type env struct {
	store    *repository.Store
	clock    *clock.Fixed
	channel  *nopChannel
	admin    service.AdminService
	fees     service.FeeService
	services *Services
	registry *prometheus.Registry
	metrics  *metrics.Metrics
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		store:    memory.NewStore(),
		clock:    clock.NewFixed(created),
		channel:  &nopChannel{},
		registry: prometheus.NewRegistry(),
	}
	e.metrics = metrics.NewMetrics(e.registry)

	policy := domain.DefaultBillingPolicy()
	renderer, err := service.NewRenderer(policy.Templates)
	require.NoError(t, err)
	dispatcher := service.NewDispatcher([]channel.Channel{e.channel}, time.Second, e.metrics)
	notifier := service.NewNotifier(dispatcher, e.store.Notifications, renderer, nil, policy)

	e.fees = service.NewFeeService(e.store.Fees, e.store.Members, policy)
	e.admin = service.NewAdminService(e.store.Tenants, e.store.Members, e.store.Subscriptions, notifier, e.clock, e.metrics)
	e.services = &Services{
		State:    service.NewBillingStateService(e.store.Tenants, service.NewSubscriptionSignal(e.store.Subscriptions), notifier, policy, e.metrics),
		Invoices: service.NewInvoiceService(e.store.Invoices, e.store.Members, e.fees, e.metrics),
	}
	return e
}

func (e *env) runner(locker lock.Locker) *JobRunner {
	cfg := &config.Config{Billing: config.BillingConfig{Workers: 3, BatchDeadlineSeconds: 60}}
	return NewJobRunner(e.store, e.services, locker, e.clock, e.metrics, cfg)
}

func (e *env) tenants(t *testing.T, n int) []int32 {
	t.Helper()
	ids := make([]int32, 0, n)
	for i := 0; i < n; i++ {
		tenant := &domain.Tenant{Name: "Club", Email: "club@example.test", CreatedAt: created}
		require.NoError(t, e.admin.CreateTenant(context.Background(), tenant))
		ids = append(ids, tenant.ID)
	}
	return ids
}

func (e *env) state(t *testing.T, id int32) domain.AccessState {
	t.Helper()
	tenant, err := e.store.Tenants.GetByID(context.Background(), id)
	require.NoError(t, err)
	return tenant.AccessState
}

func TestRunDailyEvaluation(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	ids := e.tenants(t, 5)
	jr := e.runner(lock.NewLocal(time.Minute))

	report, err := jr.RunDailyEvaluation(ctx, created.AddDate(0, 0, 8))
	require.NoError(t, err)
	assert.Equal(t, 5, report.TenantsEvaluated)
	assert.Equal(t, 5, report.Transitioned)
	assert.Zero(t, report.RemindersSent)
	assert.Empty(t, report.Errors)
	assert.True(t, report.Complete())
	for _, id := range ids {
		assert.Equal(t, domain.AccessStateOverdue, e.state(t, id))
	}

	// rerunning the same day is a no-op
	again, err := jr.RunDailyEvaluation(ctx, created.AddDate(0, 0, 8))
	require.NoError(t, err)
	assert.Equal(t, 5, again.TenantsEvaluated)
	assert.Zero(t, again.Transitioned)

	last, err := jr.LastReport(ctx)
	require.NoError(t, err)
	assert.Equal(t, again.RunID, last.RunID)

	assert.Equal(t, float64(2), testutil.ToFloat64(e.metrics.BatchRunsTotal.WithLabelValues("complete")))
}

func TestRunDailyEvaluation_Reminders(t *testing.T) {
	e := newEnv(t)
	e.tenants(t, 2)
	jr := e.runner(lock.NewLocal(time.Minute))

	report, err := jr.RunDailyEvaluation(context.Background(), created.AddDate(0, 0, 5))
	require.NoError(t, err)
	assert.Equal(t, 2, report.RemindersSent)
	assert.Zero(t, report.Transitioned)
}

func TestRunDailyEvaluation_IsolatesTenantFailures(t *testing.T) {
	e := newEnv(t)
	ids := e.tenants(t, 3)
	e.services.State = &failingState{BillingStateService: e.services.State, tenantID: ids[1]}

	locker := lock.NewLocal(time.Minute)
	release, err := locker.Acquire(context.Background(), lock.TenantKey(ids[2]))
	require.NoError(t, err)
	defer release(context.Background())

	report, err := e.runner(locker).RunDailyEvaluation(context.Background(), created.AddDate(0, 0, 10))
	require.NoError(t, err)

	assert.Equal(t, 1, report.TenantsEvaluated)
	require.Len(t, report.Errors, 2)
	assert.Equal(t, domain.TenantError{TenantID: ids[1], Stage: StagePersist, Message: "apply state change: connection reset"}, report.Errors[0])
	assert.Equal(t, ids[2], report.Errors[1].TenantID)
	assert.Equal(t, StageLock, report.Errors[1].Stage)

	assert.Equal(t, domain.AccessStateBlocked, e.state(t, ids[0]))
	assert.Equal(t, domain.AccessStateActive, e.state(t, ids[1]))
	assert.Equal(t, domain.AccessStateActive, e.state(t, ids[2]))
}

func TestRunDailyEvaluation_DispatchFailureIsReported(t *testing.T) {
	e := newEnv(t)
	ids := e.tenants(t, 1)
	e.channel.err = errors.New("provider unavailable")

	report, err := e.runner(lock.NewLocal(time.Minute)).RunDailyEvaluation(context.Background(), created.AddDate(0, 0, 8))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Transitioned)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, StageDispatch, report.Errors[0].Stage)
	assert.Equal(t, domain.AccessStateOverdue, e.state(t, ids[0]))
}

func TestRunDailyEvaluation_Cancelled(t *testing.T) {
	e := newEnv(t)
	ids := e.tenants(t, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := e.runner(lock.NewLocal(time.Minute)).RunDailyEvaluation(ctx, created.AddDate(0, 0, 8))
	require.NoError(t, err)
	assert.False(t, report.Complete())
	assert.Equal(t, ids, report.Incomplete)
	assert.Zero(t, report.TenantsEvaluated)

	saved, err := e.store.BatchReports.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, report.RunID, saved.RunID)
}

func TestRunDailyEvaluation_RedisLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	e := newEnv(t)
	ids := e.tenants(t, 2)
	locker := lock.NewRedis(client, time.Minute, "")

	report, err := e.runner(locker).RunDailyEvaluation(context.Background(), created.AddDate(0, 0, 8))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Transitioned)
	assert.Empty(t, mr.Keys(), "locks are released")
	assert.Equal(t, domain.AccessStateOverdue, e.state(t, ids[1]))
}

func TestGenerateMonthlyInvoices(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	ids := e.tenants(t, 2)
	require.NoError(t, e.fees.SetFeeConfig(ctx, &domain.FeeConfig{TenantID: ids[0], Amount: decimal.NewFromInt(50), DueDay: 10}))
	for _, id := range ids {
		require.NoError(t, e.admin.AddMember(ctx, &domain.Member{TenantID: id, Name: "Player"}))
	}
	jr := e.runner(lock.NewLocal(time.Minute))

	count, err := jr.GenerateMonthlyInvoices(ctx, time.Date(2024, time.March, 1, 1, 0, 0, 0, time.UTC))
	require.NoError(t, err, "unconfigured members do not fail the run")
	assert.Equal(t, 1, count)

	count, err = jr.GenerateMonthlyInvoices(ctx, time.Date(2024, time.March, 2, 1, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, count)

	n, err := jr.MarkLateInvoices(ctx, time.Date(2024, time.March, 11, 5, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRunWithRecovery(t *testing.T) {
	jr := newEnv(t).runner(lock.NewLocal(time.Minute))
	assert.NotPanics(t, func() {
		jr.runWithRecovery("panicky", func() { panic("boom") })
	})
}
