package memstore

import (
	"context"
	"testing"

	"github.com/pscheid92/plantpulse/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActors(t *testing.T) {
	viewer := domain.Actor{ID: "v", Role: domain.RoleViewer}
	a := NewActors(viewer)
	ctx := context.Background()

	got, err := a.ResolveActiveActor(ctx, "v")
	require.NoError(t, err)
	assert.Equal(t, viewer, got)

	_, err = a.ResolveActiveActor(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrInactiveActor)

	require.NoError(t, a.SetActive(ctx, "v", false))
	_, err = a.ResolveActiveActor(ctx, "v")
	assert.ErrorIs(t, err, domain.ErrInactiveActor)
	active, err := a.ActorActive(ctx, "v")
	require.NoError(t, err)
	assert.False(t, active)

	require.NoError(t, a.SetActive(ctx, "v", true))
	_, err = a.ResolveActiveActor(ctx, "v")
	assert.NoError(t, err)
}

func TestActors_UnknownAccount(t *testing.T) {
	a := NewActors()
	ctx := context.Background()

	assert.ErrorIs(t, a.SetActive(ctx, "ghost", false), domain.ErrNotFound)
	active, err := a.ActorActive(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, active)
}
