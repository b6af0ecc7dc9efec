package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// QueryObserver receives the outcome of every query, usually for metrics.
type QueryObserver interface {
	ObserveQuery(query string, took time.Duration, err error)
}

// queryTracer times queries and labels them by statement kind only, which
// keeps metric cardinality bounded.
type queryTracer struct {
	observer QueryObserver
}

var _ pgx.QueryTracer = (*queryTracer)(nil)

type traceKey struct{}

type traceStart struct {
	at    time.Time
	query string
}

func (t *queryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, traceKey{}, traceStart{at: time.Now(), query: statementKind(data.SQL)})
}

func (t *queryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	start, ok := ctx.Value(traceKey{}).(traceStart)
	if !ok {
		return
	}
	t.observer.ObserveQuery(start.query, time.Since(start.at), data.Err)
}

// statementKind returns the leading keyword of sql, lower-cased.
func statementKind(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "unknown"
	}
	kind := strings.ToLower(fields[0])
	if len(kind) > 20 {
		kind = kind[:20]
	}
	return kind
}
