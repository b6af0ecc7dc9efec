package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/pscheid92/plantpulse/internal/domain"
)

type account struct {
	actor  domain.Actor
	active bool
}

// Actors is an in-memory account directory.
type Actors struct {
	mu       sync.RWMutex
	accounts map[string]account
}

var _ domain.ActorDirectory = (*Actors)(nil)

func NewActors(actors ...domain.Actor) *Actors {
	a := &Actors{accounts: make(map[string]account, len(actors))}
	for _, actor := range actors {
		a.accounts[actor.ID] = account{actor: actor, active: true}
	}
	return a
}

func (a *Actors) ResolveActiveActor(_ context.Context, actorID string) (domain.Actor, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	acc, ok := a.accounts[actorID]
	if !ok || !acc.active {
		return domain.Actor{}, fmt.Errorf("%w: %q", domain.ErrInactiveActor, actorID)
	}
	return acc.actor, nil
}

func (a *Actors) ActorActive(_ context.Context, actorID string) (bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	acc, ok := a.accounts[actorID]
	return ok && acc.active, nil
}

func (a *Actors) SetActive(_ context.Context, actorID string, active bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	acc, ok := a.accounts[actorID]
	if !ok {
		return fmt.Errorf("%w: actor %q", domain.ErrNotFound, actorID)
	}
	acc.active = active
	a.accounts[actorID] = acc
	return nil
}
