package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func failing(context.Context, goredis.Cmder) error    { return errors.New("connection refused") }
func succeeding(context.Context, goredis.Cmder) error { return nil }

func TestCircuitBreakerHook_StaysClosedOnSuccess(t *testing.T) {
	hook := NewCircuitBreakerHook(nil)
	ctx := context.Background()

	process := hook.ProcessHook(succeeding)
	for range 10 {
		assert.NoError(t, process(ctx, goredis.NewStringCmd(ctx, "get", "k")))
	}
	assert.Equal(t, circuitbreaker.ClosedState, hook.State())
}

func TestCircuitBreakerHook_NilIsNotAFailure(t *testing.T) {
	hook := NewCircuitBreakerHook(nil)
	ctx := context.Background()

	process := hook.ProcessHook(func(context.Context, goredis.Cmder) error { return goredis.Nil })
	for range 10 {
		assert.ErrorIs(t, process(ctx, goredis.NewStringCmd(ctx, "get", "k")), goredis.Nil)
	}
	assert.Equal(t, circuitbreaker.ClosedState, hook.State())
}

func TestCircuitBreakerHook_OpensAndFailsFast(t *testing.T) {
	var transitions []string
	hook := NewCircuitBreakerHook(func(to string) { transitions = append(transitions, to) })
	ctx := context.Background()

	process := hook.ProcessHook(failing)
	for range 5 {
		_ = process(ctx, goredis.NewStringCmd(ctx, "get", "k"))
	}
	assert.Equal(t, circuitbreaker.OpenState, hook.State())
	assert.Equal(t, []string{circuitbreaker.OpenState.String()}, transitions)

	called := false
	fastFail := hook.ProcessHook(func(context.Context, goredis.Cmder) error {
		called = true
		return nil
	})
	cmd := goredis.NewStringCmd(ctx, "get", "k")
	err := fastFail(ctx, cmd)

	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.ErrorIs(t, cmd.Err(), circuitbreaker.ErrOpen)
	assert.False(t, called)
}

func TestCircuitBreakerHook_HalfOpenRecovers(t *testing.T) {
	hook := newCircuitBreakerHook(10*time.Millisecond, nil)
	ctx := context.Background()

	process := hook.ProcessHook(failing)
	for range 5 {
		_ = process(ctx, goredis.NewStringCmd(ctx, "get", "k"))
	}
	assert.Equal(t, circuitbreaker.OpenState, hook.State())

	recovered := hook.ProcessHook(succeeding)
	assert.Eventually(t, func() bool {
		return recovered(ctx, goredis.NewStringCmd(ctx, "get", "k")) == nil
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, circuitbreaker.ClosedState, hook.State())
}
