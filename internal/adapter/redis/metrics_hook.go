package redis

import (
	"context"
	"errors"
	"net"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// OpObserver receives the outcome of every Redis command.
type OpObserver interface {
	ObserveRedisOp(operation string, took time.Duration, failed bool)
	ObserveRedisDialError()
}

// MetricsHook reports command latency and failures. A cache miss
// (redis.Nil) is not a failure.
type MetricsHook struct {
	observer OpObserver
}

var _ goredis.Hook = (*MetricsHook)(nil)

func NewMetricsHook(observer OpObserver) *MetricsHook {
	return &MetricsHook{observer: observer}
}

func (h *MetricsHook) DialHook(next goredis.DialHook) goredis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := next(ctx, network, addr)
		if err != nil {
			h.observer.ObserveRedisDialError()
		}
		return conn, err
	}
}

func (h *MetricsHook) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		h.observer.ObserveRedisOp(cmd.Name(), time.Since(start), failed(err))
		return err
	}
}

// Pipelines are reported as a single "pipeline" operation.
func (h *MetricsHook) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []goredis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		h.observer.ObserveRedisOp("pipeline", time.Since(start), failed(err))
		return err
	}
}

func failed(err error) bool {
	return err != nil && !errors.Is(err, goredis.Nil)
}
