package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pscheid92/plantpulse/internal/adapter/memstore"
	"github.com/pscheid92/plantpulse/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyStore fails Snapshot while down is set and counts every call.
type flakyStore struct {
	*memstore.Inventory
	down  atomic.Bool
	calls atomic.Int32
}

func (s *flakyStore) Snapshot(ctx context.Context) ([]domain.StockRecord, error) {
	s.calls.Add(1)
	if s.down.Load() {
		return nil, errors.New("connection refused")
	}
	return s.Inventory.Snapshot(ctx)
}

// hangingStore blocks Snapshot until the caller's context ends, the way a
// pgx query does.
type hangingStore struct {
	*memstore.Inventory
	entered chan struct{}
}

func (s *hangingStore) Snapshot(ctx context.Context) ([]domain.StockRecord, error) {
	s.entered <- struct{}{}
	<-ctx.Done()
	return nil, fmt.Errorf("query snapshot: %w", ctx.Err())
}

type breakerSpy struct {
	noopPollObserver
	states []int
	alerts map[string]int
}

func (b *breakerSpy) ObserveBreaker(state int)            { b.states = append(b.states, state) }
func (b *breakerSpy) ObserveAlerts(counts map[string]int) { b.alerts = counts }

func TestRefreshNow_PublishesAllViews(t *testing.T) {
	f := newFixture(t,
		record("s1", "resin", "a", "5", "10", "20"),
		record("s2", "resin", "b", "100", "10", "20"),
	)

	require.NoError(t, f.poller.RefreshNow(context.Background()))

	assert.Equal(t, []string{
		domain.EventInventorySummary,
		domain.EventInventoryAlerts,
		domain.EventInventoryStats,
	}, f.rec.events(dashboard))

	latest, ok := f.poller.Latest(ViewSummary)
	require.True(t, ok)
	summary := latest.(domain.Summary)
	assert.Equal(t, 2, summary.TotalRecords)
	assert.Equal(t, 1, summary.BySeverity[domain.SeverityCritical])
	assert.True(t, summary.TotalOnHand.Equal(d("105")))
}

func TestLatest_EmptyBeforeFirstBuild(t *testing.T) {
	f := newFixture(t)

	_, ok := f.poller.Latest(ViewAlerts)
	assert.False(t, ok)

	_, ok = f.poller.Latest("bogus")
	assert.False(t, ok)
}

func TestCurrent_DoesNotPublish(t *testing.T) {
	f := newFixture(t, record("s1", "resin", "a", "0", "10", "20"))

	payload, err := f.poller.Current(context.Background(), ViewAlerts)
	require.NoError(t, err)

	alerts := payload.(domain.AlertsView).Alerts
	require.Len(t, alerts, 1)
	assert.Equal(t, domain.SeverityOutOfStock, alerts[0].Severity)
	assert.True(t, alerts[0].ShortBy.Equal(d("20")))
	assert.Empty(t, f.rec.events(dashboard))

	_, err = f.poller.Current(context.Background(), "bogus")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRun_TicksEachView(t *testing.T) {
	f := newFixture(t, record("s1", "resin", "a", "50", "10", "20"))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.poller.Run(ctx)
		close(done)
	}()

	waitCtx, waitCancel := context.WithTimeout(ctx, 2*time.Second)
	defer waitCancel()
	require.NoError(t, f.clock.BlockUntilContext(waitCtx, 3))
	assert.Len(t, f.rec.events(dashboard), 3)

	f.rec.reset()
	f.clock.Advance(30 * time.Second)
	assert.Eventually(t, func() bool {
		return len(f.rec.events(dashboard)) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{domain.EventInventorySummary}, f.rec.events(dashboard))

	f.rec.reset()
	f.clock.Advance(15 * time.Second)
	assert.Eventually(t, func() bool {
		return len(f.rec.events(dashboard)) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{domain.EventInventoryStats}, f.rec.events(dashboard))

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop after cancel")
	}
}

func TestRefresh_StoreFailureOpensBreaker(t *testing.T) {
	f := newFixture(t, record("s1", "resin", "a", "50", "10", "20"))
	store := &flakyStore{Inventory: f.store}
	spy := &breakerSpy{}
	poller := NewPoller(store, f.rec, f.clock, PollerConfig{BreakerFailures: 3, BreakerCooldown: time.Minute}, spy)

	require.NoError(t, poller.RefreshNow(context.Background()))
	f.rec.reset()

	store.down.Store(true)
	err := poller.RefreshNow(context.Background())
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.Equal(t, domain.CodeStoreUnavailable, domain.ErrorCode(err))
	assert.Empty(t, f.rec.events(dashboard), "nothing is published for a failed build")
	require.NotEmpty(t, spy.states)

	before := store.calls.Load()
	err = poller.RefreshNow(context.Background())
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.Equal(t, before, store.calls.Load(), "open breaker must not reach the store")

	latest, ok := poller.Latest(ViewSummary)
	require.True(t, ok, "last good view is kept")
	assert.Equal(t, 1, latest.(domain.Summary).TotalRecords)
}

func TestCurrent_CancelledCallerDoesNotTripBreaker(t *testing.T) {
	f := newFixture(t, record("s1", "resin", "a", "50", "10", "20"))
	store := &flakyStore{Inventory: f.store}
	spy := &breakerSpy{}
	poller := NewPoller(store, f.rec, f.clock, PollerConfig{BreakerFailures: 3, BreakerCooldown: time.Minute}, spy)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for range 5 {
		_, err := poller.Current(ctx, ViewSummary)
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, domain.ErrStoreUnavailable)
	}

	assert.NoError(t, poller.RefreshNow(context.Background()))
	assert.Empty(t, spy.states)
}

func TestCurrent_AbortMidQueryDoesNotTripBreaker(t *testing.T) {
	f := newFixture(t, record("s1", "resin", "a", "50", "10", "20"))
	store := &hangingStore{Inventory: f.store, entered: make(chan struct{})}
	spy := &breakerSpy{}
	poller := NewPoller(store, f.rec, f.clock, PollerConfig{BreakerFailures: 3, BreakerCooldown: time.Minute}, spy)

	for range 3 {
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			<-store.entered
			cancel()
		}()
		_, err := poller.Current(ctx, ViewSummary)
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, domain.ErrStoreUnavailable)
	}

	assert.Empty(t, spy.states, "breaker stays closed")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	go func() { <-store.entered }()
	_, err := poller.Current(ctx, ViewSummary)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, spy.states)
}

func TestRefresh_ObservesAlertCounts(t *testing.T) {
	f := newFixture(t,
		record("s1", "resin", "a", "0", "10", "20"),
		record("s2", "resin", "b", "15", "10", "20"),
	)
	spy := &breakerSpy{}
	poller := NewPoller(f.store, f.rec, f.clock, PollerConfig{}, spy)

	require.NoError(t, poller.RefreshNow(context.Background()))

	assert.Equal(t, map[string]int{"low": 1, "critical": 0, "out_of_stock": 1}, spy.alerts)
}

func TestAcknowledge(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t,
		record("s1", "resin", "a", "5", "10", "20"),
		record("s2", "resin", "b", "100", "10", "20"),
	)

	t.Run("normal record is rejected", func(t *testing.T) {
		assert.ErrorIs(t, f.poller.Acknowledge(ctx, "s2"), domain.ErrInvalidInput)
	})

	t.Run("unknown record", func(t *testing.T) {
		assert.ErrorIs(t, f.poller.Acknowledge(ctx, "nope"), domain.ErrNotFound)
	})

	t.Run("alerting record is flagged and republished", func(t *testing.T) {
		f.rec.reset()
		require.NoError(t, f.poller.Acknowledge(ctx, "s1"))

		assert.Equal(t, []string{domain.EventInventoryAlerts}, f.rec.events(dashboard))
		latest, _ := f.poller.Latest(ViewAlerts)
		alerts := latest.(domain.AlertsView).Alerts
		require.Len(t, alerts, 1)
		assert.True(t, alerts[0].Acknowledged)
	})

	t.Run("recovery clears the flag", func(t *testing.T) {
		_, err := f.store.ApplyMovement(ctx, domain.MovementRequest{StockID: "s1", Type: domain.MovementReceipt, Quantity: d("50"), ActorID: "u1", At: t0})
		require.NoError(t, err)
		require.NoError(t, f.poller.RefreshNow(ctx))

		_, err = f.store.ApplyMovement(ctx, domain.MovementRequest{StockID: "s1", Type: domain.MovementIssue, Quantity: d("50"), ActorID: "u1", At: t0})
		require.NoError(t, err)
		require.NoError(t, f.poller.RefreshNow(ctx))

		latest, _ := f.poller.Latest(ViewAlerts)
		alerts := latest.(domain.AlertsView).Alerts
		require.Len(t, alerts, 1)
		assert.False(t, alerts[0].Acknowledged)
	})
}
