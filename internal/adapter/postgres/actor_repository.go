package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pscheid92/plantpulse/internal/domain"
)

// ActorRepo resolves accounts from the actors table.
type ActorRepo struct {
	pool *pgxpool.Pool
}

var _ domain.ActorDirectory = (*ActorRepo)(nil)

func NewActorRepo(pool *pgxpool.Pool) *ActorRepo {
	return &ActorRepo{pool: pool}
}

func (r *ActorRepo) ResolveActiveActor(ctx context.Context, actorID string) (domain.Actor, error) {
	var (
		actor  domain.Actor
		role   string
		perms  []string
		active bool
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, role, permissions, department, shift, active FROM actors WHERE id = $1`, actorID).
		Scan(&actor.ID, &actor.Name, &role, &perms, &actor.Department, &actor.Shift, &active)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Actor{}, fmt.Errorf("%w: %q", domain.ErrInactiveActor, actorID)
	}
	if err != nil {
		return domain.Actor{}, fmt.Errorf("failed to load actor: %w", err)
	}
	if !active {
		return domain.Actor{}, fmt.Errorf("%w: %q", domain.ErrInactiveActor, actorID)
	}

	actor.Role = domain.Role(role)
	actor.Permissions = make([]domain.Permission, len(perms))
	for i, p := range perms {
		actor.Permissions[i] = domain.Permission(p)
	}
	return actor, nil
}

// Upsert creates or replaces an account.
func (r *ActorRepo) Upsert(ctx context.Context, actor domain.Actor, active bool) error {
	perms := make([]string, len(actor.Permissions))
	for i, p := range actor.Permissions {
		perms[i] = string(p)
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO actors (id, name, role, permissions, department, shift, active, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			role = EXCLUDED.role,
			permissions = EXCLUDED.permissions,
			department = EXCLUDED.department,
			shift = EXCLUDED.shift,
			active = EXCLUDED.active,
			updated_at = now()`,
		actor.ID, actor.Name, string(actor.Role), perms, actor.Department, actor.Shift, active)
	if err != nil {
		return fmt.Errorf("failed to upsert actor: %w", err)
	}
	return nil
}

// ActorActive reports the active flag; an unknown id is inactive.
func (r *ActorRepo) ActorActive(ctx context.Context, actorID string) (bool, error) {
	var active bool
	err := r.pool.QueryRow(ctx, `SELECT active FROM actors WHERE id = $1`, actorID).Scan(&active)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check actor: %w", err)
	}
	return active, nil
}

func (r *ActorRepo) SetActive(ctx context.Context, actorID string, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE actors SET active = $2, updated_at = now() WHERE id = $1`, actorID, active)
	if err != nil {
		return fmt.Errorf("failed to update actor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: actor %q", domain.ErrNotFound, actorID)
	}
	return nil
}
