package app

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pscheid92/plantpulse/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type verifierFunc func(ctx context.Context, credential string) (domain.Actor, error)

func (f verifierFunc) Verify(ctx context.Context, credential string) (domain.Actor, error) {
	return f(ctx, credential)
}

type resolverFunc func(ctx context.Context, actorID string) (domain.Actor, error)

func (f resolverFunc) ResolveActiveActor(ctx context.Context, actorID string) (domain.Actor, error) {
	return f(ctx, actorID)
}

var claimsFromToken = verifierFunc(func(_ context.Context, credential string) (domain.Actor, error) {
	if credential != "good" {
		return domain.Actor{}, domain.ErrUnknownCredential
	}
	return domain.Actor{ID: "u1", Role: domain.RoleAdmin, Permissions: []domain.Permission{domain.PermManageUsers}}, nil
})

var storedOperator = resolverFunc(func(_ context.Context, actorID string) (domain.Actor, error) {
	if actorID != "u1" {
		return domain.Actor{}, domain.ErrInactiveActor
	}
	return domain.Actor{ID: "u1", Name: "Sam", Role: domain.RoleOperator, Permissions: []domain.Permission{domain.PermReadDashboard}}, nil
})

func TestAuthenticate_StoredActorWins(t *testing.T) {
	auth := NewAuthenticator(claimsFromToken, storedOperator, time.Second)

	actor, err := auth.Authenticate(context.Background(), "good")
	require.NoError(t, err)

	assert.Equal(t, domain.RoleOperator, actor.Role)
	assert.False(t, actor.HasPermission(domain.PermManageUsers))
	assert.Equal(t, "Sam", actor.Name)
}

func TestAuthenticate_Failures(t *testing.T) {
	deactivated := verifierFunc(func(context.Context, string) (domain.Actor, error) {
		return domain.Actor{ID: "u2"}, nil
	})

	tests := []struct {
		name       string
		verifier   domain.CredentialVerifier
		credential string
		want       error
		reason     string
	}{
		{"missing credential", claimsFromToken, "", domain.ErrUnauthenticated, "missing"},
		{"unknown credential", claimsFromToken, "forged", domain.ErrUnknownCredential, "unknown"},
		{"inactive account", deactivated, "good", domain.ErrInactiveActor, "inactive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var reasons []string
			auth := NewAuthenticator(tt.verifier, storedOperator, time.Second)
			auth.OnFailure(func(reason string) { reasons = append(reasons, reason) })

			_, err := auth.Authenticate(context.Background(), tt.credential)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, []string{tt.reason}, reasons)
		})
	}
}

func TestAuthenticate_Timeout(t *testing.T) {
	hanging := resolverFunc(func(ctx context.Context, _ string) (domain.Actor, error) {
		<-ctx.Done()
		return domain.Actor{}, fmt.Errorf("query cancelled: %w", ctx.Err())
	})
	auth := NewAuthenticator(claimsFromToken, hanging, 20*time.Millisecond)

	start := time.Now()
	_, err := auth.Authenticate(context.Background(), "good")

	assert.ErrorIs(t, err, domain.ErrAuthTimeout)
	assert.Equal(t, domain.CodeAuthTimeout, domain.ErrorCode(err))
	assert.Less(t, time.Since(start), time.Second)
}

func TestAuthenticate_VerifierIgnoringContextStillTimesOut(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	stuck := verifierFunc(func(context.Context, string) (domain.Actor, error) {
		<-release
		return domain.Actor{}, nil
	})
	auth := NewAuthenticator(stuck, storedOperator, 20*time.Millisecond)

	_, err := auth.Authenticate(context.Background(), "good")
	assert.ErrorIs(t, err, domain.ErrAuthTimeout)
}
