package app

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/plantpulse/internal/adapter/memstore"
	"github.com/pscheid92/plantpulse/internal/domain"
	"github.com/shopspring/decimal"
)

var t0 = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeSession struct {
	id    string
	actor domain.Actor
}

func (s fakeSession) ID() string          { return s.id }
func (s fakeSession) Actor() domain.Actor { return s.actor }

func sessionWith(id string, perms ...domain.Permission) fakeSession {
	return fakeSession{id: "conn-" + id, actor: domain.Actor{ID: id, Role: domain.RoleOperator, Permissions: perms}}
}

type delivery struct {
	target string
	env    domain.Envelope
}

// recorder is a Broadcaster that remembers every delivery.
type recorder struct {
	mu  sync.Mutex
	out []delivery
}

func (r *recorder) record(target string, env domain.Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out = append(r.out, delivery{target: target, env: env})
}

func (r *recorder) ToGroup(key domain.GroupKey, env domain.Envelope) { r.record(key.String(), env) }

func (r *recorder) ToGroups(keys []domain.GroupKey, env domain.Envelope) {
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.String()
	}
	r.record(strings.Join(names, ","), env)
}

func (r *recorder) ToActor(actorID string, env domain.Envelope) {
	r.record(domain.UserGroup(actorID).String(), env)
}

func (r *recorder) ToConn(connID string, env domain.Envelope) bool {
	r.record("conn:"+connID, env)
	return true
}

// events lists the event names delivered to target, in order.
func (r *recorder) events(target string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, o := range r.out {
		if o.target == target {
			out = append(out, o.env.Event)
		}
	}
	return out
}

// last returns the most recent envelope with the given event.
func (r *recorder) last(event string) (delivery, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.out) - 1; i >= 0; i-- {
		if r.out[i].env.Event == event {
			return r.out[i], true
		}
	}
	return delivery{}, false
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out = nil
}

const dashboard = "perm:read:dashboard"

func record(id, material, location, onHand, minimum, reorder string) domain.StockRecord {
	return domain.StockRecord{
		ID:           id,
		MaterialID:   material,
		MaterialCode: strings.ToUpper(material),
		MaterialName: material,
		LocationID:   location,
		LocationName: location,
		OnHand:       d(onHand),
		Reserved:     decimal.Zero,
		UnitCost:     d("2"),
		MinimumStock: d(minimum),
		ReorderPoint: d(reorder),
		UpdatedAt:    t0,
	}
}

type fixture struct {
	clock  *clockwork.FakeClock
	store  *memstore.Inventory
	rec    *recorder
	poller *Poller
	router *Router
}

func newFixture(t *testing.T, records ...domain.StockRecord) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(t0)
	store := memstore.NewInventory(records...)
	rec := &recorder{}
	poller := NewPoller(store, rec, clock, PollerConfig{
		SummaryInterval: 30 * time.Second,
		AlertsInterval:  60 * time.Second,
		StatsInterval:   45 * time.Second,
	}, nil)

	router := NewRouter(domain.CommandPermissions)
	if err := NewInventory(store, poller, rec, clock).Register(router); err != nil {
		t.Fatal(err)
	}
	return &fixture{clock: clock, store: store, rec: rec, poller: poller, router: router}
}
