package app

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/plantpulse/internal/domain"
)

// SessionDirectory is the view of live sessions user:manage and
// metrics:request need.
type SessionDirectory interface {
	Count() int
	CountActor(actorID string) int
	DisconnectActor(actorID, reason string) int
}

// ActorInvalidator drops cached account state; may be nil.
type ActorInvalidator interface {
	Invalidate(ctx context.Context, actorID string) error
}

// AccountStatus flips the active flag of an account in the store.
type AccountStatus interface {
	SetActive(ctx context.Context, actorID string, active bool) error
}

// Plant holds reactor and station state and handles the control,
// metrics and user management commands.
type Plant struct {
	broadcaster Broadcaster
	sessions    SessionDirectory
	accounts    AccountStatus
	invalidator ActorInvalidator
	clock       clockwork.Clock

	mu       sync.RWMutex
	reactors map[string]domain.Reactor
	stations map[string]domain.Station
}

func NewPlant(broadcaster Broadcaster, sessions SessionDirectory, accounts AccountStatus, invalidator ActorInvalidator, clock clockwork.Clock) *Plant {
	p := &Plant{
		broadcaster: broadcaster,
		sessions:    sessions,
		accounts:    accounts,
		invalidator: invalidator,
		clock:       clock,
		reactors:    make(map[string]domain.Reactor),
		stations:    make(map[string]domain.Station),
	}

	now := clock.Now()
	for _, r := range []domain.Reactor{
		{ID: "R-101", Name: "Reactor 101", State: domain.ReactorRunning, Temperature: 182.5, Pressure: 4.2},
		{ID: "R-102", Name: "Reactor 102", State: domain.ReactorRunning, Temperature: 176.0, Pressure: 3.9},
		{ID: "R-201", Name: "Reactor 201", State: domain.ReactorStopped, Temperature: 21.0, Pressure: 1.0},
	} {
		r.UpdatedAt = now
		p.reactors[r.ID] = r
	}
	for _, s := range []domain.Station{
		{ID: "S-1", Name: "Mixing", Line: "line-1", State: domain.StationRunning},
		{ID: "S-2", Name: "Curing", Line: "line-1", State: domain.StationRunning},
		{ID: "S-3", Name: "Packing", Line: "line-2", State: domain.StationPaused},
	} {
		s.UpdatedAt = now
		p.stations[s.ID] = s
	}
	return p
}

func (p *Plant) Register(r *Router) error {
	handlers := map[domain.Command]Handler{
		domain.CmdReactorControl: p.controlReactor,
		domain.CmdStationControl: p.controlStation,
		domain.CmdMetricsRequest: p.requestMetrics,
		domain.CmdUserManage:     p.manageUser,
	}
	for cmd, h := range handlers {
		if err := r.Register(cmd, h); err != nil {
			return err
		}
	}
	return nil
}

func (p *Plant) Reactors() []domain.Reactor {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := slices.Collect(maps.Values(p.reactors))
	slices.SortFunc(out, func(a, b domain.Reactor) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (p *Plant) Stations() []domain.Station {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := slices.Collect(maps.Values(p.stations))
	slices.SortFunc(out, func(a, b domain.Station) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (p *Plant) Metrics() domain.PlantMetrics {
	p.mu.RLock()
	defer p.mu.RUnlock()

	m := domain.PlantMetrics{
		ActiveSessions: p.sessions.Count(),
		ReactorsTotal:  len(p.reactors),
		StationsTotal:  len(p.stations),
		GeneratedAt:    p.clock.Now(),
	}
	for _, r := range p.reactors {
		if r.State == domain.ReactorRunning {
			m.ReactorsRunning++
		}
	}
	for _, s := range p.stations {
		if s.State == domain.StationRunning {
			m.StationsRunning++
		}
	}
	return m
}

type controlRequest struct {
	ReactorID string `json:"reactorId"`
	StationID string `json:"stationId"`
	Action    string `json:"action"`
}

func (p *Plant) controlReactor(ctx context.Context, sess domain.Session, payload json.RawMessage) (any, error) {
	req, err := decode[controlRequest](payload)
	if err != nil {
		return nil, err
	}
	state, err := domain.ReactorStateFor(req.Action)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	reactor, ok := p.reactors[req.ReactorID]
	if !ok {
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: reactor %q", domain.ErrNotFound, req.ReactorID)
	}
	reactor.State = state
	reactor.UpdatedBy = sess.Actor().ID
	reactor.UpdatedAt = p.clock.Now()
	p.reactors[reactor.ID] = reactor
	p.mu.Unlock()

	slog.InfoContext(ctx, "Reactor state changed", "reactor_id", reactor.ID, "state", state, "actor_id", reactor.UpdatedBy)
	p.broadcaster.ToGroup(dashboardGroup, domain.Envelope{Event: domain.EventReactorStatus, Data: reactor})
	return reactor, nil
}

func (p *Plant) controlStation(ctx context.Context, sess domain.Session, payload json.RawMessage) (any, error) {
	req, err := decode[controlRequest](payload)
	if err != nil {
		return nil, err
	}
	state, err := domain.StationStateFor(req.Action)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	station, ok := p.stations[req.StationID]
	if !ok {
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: station %q", domain.ErrNotFound, req.StationID)
	}
	station.State = state
	station.UpdatedBy = sess.Actor().ID
	station.UpdatedAt = p.clock.Now()
	p.stations[station.ID] = station
	p.mu.Unlock()

	slog.InfoContext(ctx, "Station state changed", "station_id", station.ID, "state", state, "actor_id", station.UpdatedBy)
	p.broadcaster.ToGroup(dashboardGroup, domain.Envelope{Event: domain.EventStationStatus, Data: station})
	return station, nil
}

func (p *Plant) requestMetrics(_ context.Context, _ domain.Session, _ json.RawMessage) (any, error) {
	return Reply{Event: domain.EventMetricsUpdate, Data: p.Metrics()}, nil
}

type manageUserRequest struct {
	Action string `json:"action"`
	UserID string `json:"userId"`
	Reason string `json:"reason"`
}

type manageUserResult struct {
	Action   string `json:"action"`
	UserID   string `json:"userId"`
	Sessions int    `json:"sessions"`
}

func (p *Plant) manageUser(ctx context.Context, sess domain.Session, payload json.RawMessage) (any, error) {
	req, err := decode[manageUserRequest](payload)
	if err != nil {
		return nil, err
	}
	if req.UserID == "" {
		return nil, fmt.Errorf("%w: userId is required", domain.ErrInvalidInput)
	}

	switch req.Action {
	case "count":
		return manageUserResult{Action: req.Action, UserID: req.UserID, Sessions: p.sessions.CountActor(req.UserID)}, nil

	case "disconnect":
		if p.invalidator != nil {
			if err := p.invalidator.Invalidate(ctx, req.UserID); err != nil {
				slog.WarnContext(ctx, "Failed to invalidate cached actor", "actor_id", req.UserID, "error", err)
			}
		}
		n := p.kick(ctx, sess, req.UserID, cmp.Or(req.Reason, "disconnected by administrator"))
		return manageUserResult{Action: req.Action, UserID: req.UserID, Sessions: n}, nil

	case "deactivate":
		if err := p.accounts.SetActive(ctx, req.UserID, false); err != nil {
			return nil, err
		}
		slog.InfoContext(ctx, "Actor deactivated", "actor_id", req.UserID, "by", sess.Actor().ID)
		n := p.kick(ctx, sess, req.UserID, cmp.Or(req.Reason, "account deactivated"))
		return manageUserResult{Action: req.Action, UserID: req.UserID, Sessions: n}, nil

	case "activate":
		if err := p.accounts.SetActive(ctx, req.UserID, true); err != nil {
			return nil, err
		}
		slog.InfoContext(ctx, "Actor activated", "actor_id", req.UserID, "by", sess.Actor().ID)
		return manageUserResult{Action: req.Action, UserID: req.UserID, Sessions: p.sessions.CountActor(req.UserID)}, nil

	default:
		return nil, fmt.Errorf("%w: unknown user action %q", domain.ErrInvalidInput, req.Action)
	}
}

// kick notifies every session of actorID and then closes them.
func (p *Plant) kick(ctx context.Context, sess domain.Session, actorID, reason string) int {
	p.broadcaster.ToActor(actorID, domain.Envelope{
		Event: domain.EventUserDisconnected,
		Data:  map[string]string{"reason": reason, "by": sess.Actor().ID},
	})
	n := p.sessions.DisconnectActor(actorID, reason)
	slog.InfoContext(ctx, "Actor disconnected", "actor_id", actorID, "sessions", n, "by", sess.Actor().ID)
	return n
}
