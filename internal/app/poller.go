package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/plantpulse/internal/domain"
	"github.com/pscheid92/plantpulse/internal/platform/correlation"
	"github.com/sony/gobreaker"
)

type View string

const (
	ViewSummary View = "summary"
	ViewAlerts  View = "alerts"
	ViewStats   View = "stats"
)

var views = []View{ViewSummary, ViewAlerts, ViewStats}

func (v View) Event() string {
	switch v {
	case ViewSummary:
		return domain.EventInventorySummary
	case ViewAlerts:
		return domain.EventInventoryAlerts
	default:
		return domain.EventInventoryStats
	}
}

type PollerConfig struct {
	SummaryInterval time.Duration
	AlertsInterval  time.Duration
	StatsInterval   time.Duration
	// BreakerFailures consecutive store failures open the breaker for
	// BreakerCooldown.
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

func (c PollerConfig) interval(v View) time.Duration {
	switch v {
	case ViewSummary:
		return c.SummaryInterval
	case ViewAlerts:
		return c.AlertsInterval
	default:
		return c.StatsInterval
	}
}

// PollObserver receives refresh outcomes, usually for metrics.
type PollObserver interface {
	ObserveRefresh(view string, took time.Duration, err error)
	ObserveAlerts(bySeverity map[string]int)
	ObserveBreaker(state int)
}

type noopPollObserver struct{}

func (noopPollObserver) ObserveRefresh(string, time.Duration, error) {}
func (noopPollObserver) ObserveAlerts(map[string]int)                {}
func (noopPollObserver) ObserveBreaker(int)                          {}

type viewState struct {
	mu     sync.Mutex
	latest any
}

// Poller periodically derives the summary, alerts and stats views from the
// inventory store and publishes each to every dashboard session. Each view
// builds under its own lock, so a build always starts from state at least
// as new as the one published before it.
type Poller struct {
	store       domain.InventoryStore
	broadcaster Broadcaster
	clock       clockwork.Clock
	cfg         PollerConfig
	breaker     *gobreaker.CircuitBreaker
	observer    PollObserver
	views       map[View]*viewState

	ackMu sync.Mutex
	acked map[string]struct{}
}

func NewPoller(store domain.InventoryStore, broadcaster Broadcaster, clock clockwork.Clock, cfg PollerConfig, observer PollObserver) *Poller {
	if observer == nil {
		observer = noopPollObserver{}
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 3
	}
	if cfg.BreakerCooldown == 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}

	p := &Poller{
		store:       store,
		broadcaster: broadcaster,
		clock:       clock,
		cfg:         cfg,
		observer:    observer,
		views:       make(map[View]*viewState, len(views)),
		acked:       make(map[string]struct{}),
	}
	for _, v := range views {
		p.views[v] = &viewState{}
	}

	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "inventory-store",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrNotFound) || errors.Is(err, errCallerGone)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed", "component", name, "from", from.String(), "to", to.String())
			observer.ObserveBreaker(int(to))
		},
	})
	return p
}

// Run refreshes every view once, then ticks each view on its own interval
// until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	_ = p.RefreshNow(correlation.WithID(ctx, correlation.NewID()))

	var wg sync.WaitGroup
	for _, v := range views {
		wg.Go(func() { p.loop(ctx, v, p.cfg.interval(v)) })
	}
	wg.Wait()
}

func (p *Poller) loop(ctx context.Context, v View, interval time.Duration) {
	ticker := p.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			_ = p.refresh(correlation.WithID(ctx, correlation.NewID()), v)
		}
	}
}

// RefreshNow rebuilds and publishes all three views. Used after a committed
// mutation so dashboards see the change without waiting for a tick.
func (p *Poller) RefreshNow(ctx context.Context) error {
	var errs []error
	for _, v := range views {
		if err := p.refresh(ctx, v); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Current builds v from the store and returns it without publishing.
func (p *Poller) Current(ctx context.Context, v View) (any, error) {
	vs, ok := p.views[v]
	if !ok {
		return nil, fmt.Errorf("%w: unknown view %q", domain.ErrInvalidInput, v)
	}
	vs.mu.Lock()
	defer vs.mu.Unlock()

	payload, err := p.build(ctx, v)
	if err != nil {
		return nil, err
	}
	vs.latest = payload
	return payload, nil
}

// Latest returns the last successfully built v, if any.
func (p *Poller) Latest(v View) (any, bool) {
	vs, ok := p.views[v]
	if !ok {
		return nil, false
	}
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return vs.latest, vs.latest != nil
}

// Acknowledge marks an alerting record as seen. The mark is dropped once
// the record is back to normal. The alerts view is republished.
func (p *Poller) Acknowledge(ctx context.Context, stockID string) error {
	rec, err := p.read(ctx, func() (any, error) { return p.store.Stock(ctx, stockID) })
	if err != nil {
		return err
	}
	if rec.(domain.StockRecord).Severity() == domain.SeverityNormal {
		return fmt.Errorf("%w: stock %q is not alerting", domain.ErrInvalidInput, stockID)
	}

	p.ackMu.Lock()
	p.acked[stockID] = struct{}{}
	p.ackMu.Unlock()

	return p.refresh(ctx, ViewAlerts)
}

func (p *Poller) refresh(ctx context.Context, v View) error {
	vs := p.views[v]
	vs.mu.Lock()
	defer vs.mu.Unlock()

	start := p.clock.Now()
	payload, err := p.build(ctx, v)
	p.observer.ObserveRefresh(string(v), p.clock.Since(start), err)
	if err != nil {
		slog.WarnContext(ctx, "Inventory view refresh failed", "view", v, "error", err)
		return err
	}

	vs.latest = payload
	p.broadcaster.ToGroup(dashboardGroup, domain.Envelope{Event: v.Event(), Data: payload})
	slog.DebugContext(ctx, "Inventory view published", "view", v)
	return nil
}

func (p *Poller) build(ctx context.Context, v View) (any, error) {
	res, err := p.read(ctx, func() (any, error) { return p.store.Snapshot(ctx) })
	if err != nil {
		return nil, err
	}
	records := res.([]domain.StockRecord)
	now := p.clock.Now()

	switch v {
	case ViewSummary:
		return domain.BuildSummary(records, now), nil
	case ViewAlerts:
		p.pruneAcks(records)
		view := domain.BuildAlerts(records, p.isAcked, now)
		p.observer.ObserveAlerts(countBySeverity(records))
		return view, nil
	default:
		counts, err := p.read(ctx, func() (any, error) {
			return p.store.MovementCounts(ctx, now.Add(-24*time.Hour))
		})
		if err != nil {
			return nil, err
		}
		return domain.BuildStats(records, counts.(map[domain.MovementType]int), now), nil
	}
}

// errCallerGone marks a store error caused by the caller's own context
// ending. The breaker does not count it as a store failure.
var errCallerGone = errors.New("caller went away")

// read runs a store call through the breaker. Store failures surface as
// ErrStoreUnavailable; a cancelled or expired caller context is returned
// as is and never counts against the store.
func (p *Poller) read(ctx context.Context, fn func() (any, error)) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := p.breaker.Execute(func() (any, error) {
		res, err := fn()
		if err != nil && ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", errCallerGone, ctx.Err())
		}
		return res, err
	})
	switch {
	case err == nil:
		return res, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, fmt.Errorf("%w: circuit open", domain.ErrStoreUnavailable)
	case errors.Is(err, errCallerGone):
		return nil, ctx.Err()
	case errors.Is(err, domain.ErrNotFound):
		return nil, err
	default:
		return nil, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
}

func (p *Poller) isAcked(stockID string) bool {
	p.ackMu.Lock()
	defer p.ackMu.Unlock()
	_, ok := p.acked[stockID]
	return ok
}

func (p *Poller) pruneAcks(records []domain.StockRecord) {
	p.ackMu.Lock()
	defer p.ackMu.Unlock()
	for _, r := range records {
		if _, ok := p.acked[r.ID]; ok && r.Severity() == domain.SeverityNormal {
			delete(p.acked, r.ID)
		}
	}
}

func countBySeverity(records []domain.StockRecord) map[string]int {
	counts := map[string]int{
		string(domain.SeverityLow):        0,
		string(domain.SeverityCritical):   0,
		string(domain.SeverityOutOfStock): 0,
	}
	for _, r := range records {
		if s := r.Severity(); s != domain.SeverityNormal {
			counts[string(s)]++
		}
	}
	return counts
}
