package domain

import (
	"context"
	"slices"
)

type Role string

const (
	RoleOperator   Role = "operator"
	RoleSupervisor Role = "supervisor"
	RoleViewer     Role = "viewer"
	RoleAdmin      Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleOperator, RoleSupervisor, RoleViewer, RoleAdmin:
		return true
	}
	return false
}

type Permission string

const (
	PermReadDashboard   Permission = "read:dashboard"
	PermControlReactors Permission = "control:reactors"
	PermControlStations Permission = "control:stations"
	PermManageUsers     Permission = "manage:users"
	PermWriteInventory  Permission = "write:inventory"
)

// Actor is an authenticated identity. It is resolved once per session and
// never changes while the session lives.
type Actor struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Role        Role         `json:"role"`
	Permissions []Permission `json:"permissions"`
	Department  string       `json:"department,omitempty"`
	Shift       string       `json:"shift,omitempty"`
}

func (a Actor) HasPermission(p Permission) bool {
	return slices.Contains(a.Permissions, p)
}

// CredentialVerifier turns a raw credential into the identity it asserts.
// Implementations return ErrMalformedCredential, ErrExpiredCredential or
// ErrUnknownCredential.
type CredentialVerifier interface {
	Verify(ctx context.Context, credential string) (Actor, error)
}

// ActorResolver looks up the current account state for an actor id.
// A missing or deactivated account yields ErrInactiveActor.
type ActorResolver interface {
	ResolveActiveActor(ctx context.Context, actorID string) (Actor, error)
}

// ActorDirectory is the account store of record. ActorActive reports only
// the active flag; SetActive returns ErrNotFound for an unknown id.
type ActorDirectory interface {
	ActorResolver
	ActorActive(ctx context.Context, actorID string) (bool, error)
	SetActive(ctx context.Context, actorID string, active bool) error
}

// Session is the part of a live connection that command handlers see.
type Session interface {
	ID() string
	Actor() Actor
}
