package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pscheid92/plantpulse/internal/domain"
)

// Authenticator turns a handshake credential into the actor a session acts
// as. The account store is authoritative: attributes carried in the
// credential are replaced by the stored ones.
type Authenticator struct {
	verifier  domain.CredentialVerifier
	actors    domain.ActorResolver
	timeout   time.Duration
	onFailure func(reason string)
}

func NewAuthenticator(verifier domain.CredentialVerifier, actors domain.ActorResolver, timeout time.Duration) *Authenticator {
	return &Authenticator{verifier: verifier, actors: actors, timeout: timeout}
}

// OnFailure registers a callback invoked with the failure reason of every
// rejected credential.
func (a *Authenticator) OnFailure(fn func(reason string)) {
	a.onFailure = fn
}

type authResult struct {
	actor domain.Actor
	err   error
}

func (a *Authenticator) Authenticate(ctx context.Context, credential string) (domain.Actor, error) {
	if credential == "" {
		return domain.Actor{}, a.fail(ctx, domain.ErrUnauthenticated)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	done := make(chan authResult, 1)
	go func() {
		actor, err := a.resolve(ctx, credential)
		done <- authResult{actor: actor, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			if errors.Is(res.err, context.DeadlineExceeded) {
				return domain.Actor{}, a.fail(ctx, fmt.Errorf("%w: %w", domain.ErrAuthTimeout, res.err))
			}
			return domain.Actor{}, a.fail(ctx, res.err)
		}
		return res.actor, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return domain.Actor{}, a.fail(ctx, fmt.Errorf("%w after %s", domain.ErrAuthTimeout, a.timeout))
		}
		return domain.Actor{}, ctx.Err()
	}
}

func (a *Authenticator) resolve(ctx context.Context, credential string) (domain.Actor, error) {
	claimed, err := a.verifier.Verify(ctx, credential)
	if err != nil {
		return domain.Actor{}, err
	}

	actor, err := a.actors.ResolveActiveActor(ctx, claimed.ID)
	if err != nil {
		return domain.Actor{}, err
	}
	return actor, nil
}

func (a *Authenticator) fail(ctx context.Context, err error) error {
	reason := domain.AuthFailureReason(err)
	slog.WarnContext(ctx, "Session authentication failed", "reason", reason, "error", err)
	if a.onFailure != nil {
		a.onFailure(reason)
	}
	return err
}
