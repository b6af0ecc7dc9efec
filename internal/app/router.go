package app

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/pscheid92/plantpulse/internal/domain"
)

// Handler runs one command for a session. The returned value is sent back
// to the caller; a Reply chooses the event name itself.
type Handler func(ctx context.Context, sess domain.Session, payload json.RawMessage) (any, error)

// Reply is a handler result sent under Event instead of "<command>:response".
type Reply struct {
	Event string
	Data  any
}

// Router is the single place commands are authorized. A command is known
// only if it appears in the permission table and has a handler bound.
type Router struct {
	permissions map[domain.Command]domain.Permission
	handlers    map[domain.Command]Handler
}

func NewRouter(permissions map[domain.Command]domain.Permission) *Router {
	return &Router{
		permissions: maps.Clone(permissions),
		handlers:    make(map[domain.Command]Handler, len(permissions)),
	}
}

func (r *Router) Register(cmd domain.Command, h Handler) error {
	if _, ok := r.permissions[cmd]; !ok {
		return fmt.Errorf("command %q has no permission entry", cmd)
	}
	r.handlers[cmd] = h
	return nil
}

// Commands lists the commands that have a handler bound, sorted.
func (r *Router) Commands() []domain.Command {
	return slices.Sorted(maps.Keys(r.handlers))
}

// Dispatch authorizes and runs a command. The handler is never invoked when
// the actor lacks the required permission.
func (r *Router) Dispatch(ctx context.Context, sess domain.Session, command string, payload json.RawMessage) (any, error) {
	cmd := domain.Command(command)
	required, ok := r.permissions[cmd]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnrecognized, command)
	}
	h, ok := r.handlers[cmd]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnrecognized, command)
	}

	if required != domain.AnyAuthenticated && !sess.Actor().HasPermission(required) {
		return nil, fmt.Errorf("%w: %s requires %s", domain.ErrForbidden, command, required)
	}

	return h(ctx, sess, payload)
}

// decode unmarshals a command payload, reporting failures as invalid input.
func decode[T any](payload json.RawMessage) (T, error) {
	var v T
	if len(payload) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(payload, &v); err != nil {
		return v, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return v, nil
}
