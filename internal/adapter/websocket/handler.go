package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/plantpulse/internal/adapter/identity"
	"github.com/pscheid92/plantpulse/internal/adapter/metrics"
	"github.com/pscheid92/plantpulse/internal/app"
	"github.com/pscheid92/plantpulse/internal/domain"
	"github.com/pscheid92/plantpulse/internal/platform/correlation"
	apperrors "github.com/pscheid92/plantpulse/internal/platform/errors"
	"github.com/pscheid92/plantpulse/internal/platform/ratelimit"
)

type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (domain.Actor, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, sess domain.Session, command string, payload json.RawMessage) (any, error)
}

type Greeter interface {
	Greet(sess domain.Session)
}

type HandlerConfig struct {
	// ConnLimiter is keyed by client IP, MsgLimiter by connection id.
	ConnLimiter *ratelimit.Window
	MsgLimiter  *ratelimit.Window
	Capacity    *ratelimit.GlobalLimiter
	CheckOrigin func(r *http.Request) bool
	Clock       clockwork.Clock
}

// Handler runs the lifecycle of one WebSocket session: admission checks,
// authentication before upgrade, registration, the read loop and cleanup.
type Handler struct {
	hub      *Hub
	auth     Authenticator
	router   Dispatcher
	greeter  Greeter
	cfg      HandlerConfig
	metrics  *metrics.WebSocketMetrics
	upgrader websocket.Upgrader
}

func NewHandler(hub *Hub, auth Authenticator, router Dispatcher, greeter Greeter, cfg HandlerConfig, wsMetrics *metrics.WebSocketMetrics) *Handler {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &Handler{
		hub:     hub,
		auth:    auth,
		router:  router,
		greeter: greeter,
		cfg:     cfg,
		metrics: wsMetrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     cfg.CheckOrigin,
		},
	}
}

func (h *Handler) ServeWS(c echo.Context) error {
	ip := c.RealIP()
	if !h.cfg.ConnLimiter.Allow(ip) {
		h.reject("rate_limited")
		slog.Warn("Connection rate limit exceeded", "ip", ip)
		return c.NoContent(http.StatusTooManyRequests)
	}

	ctx := c.Request().Context()
	actor, err := h.auth.Authenticate(ctx, identity.CredentialFromRequest(c.Request()))
	if err != nil {
		code := domain.ErrorCode(err)
		h.reject(code)
		return c.JSON(http.StatusUnauthorized, apperrors.UnauthorizedError(code, "authentication required").ToResponse())
	}

	if !h.cfg.Capacity.Acquire() {
		h.reject("capacity")
		slog.Warn("Connection capacity reached", "max", h.cfg.Capacity.Max())
		unavailable := apperrors.UnavailableError("server at connection capacity", nil)
		unavailable.Code = "capacity"
		return c.JSON(http.StatusServiceUnavailable, unavailable.ToResponse())
	}
	defer h.cfg.Capacity.Release()

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader already answered the client.
		slog.Debug("WebSocket upgrade failed", "error", err)
		return nil
	}

	conn := newConn(ws, actor, h.cfg.Clock)
	h.hub.Register(conn)
	defer func() {
		h.hub.Unregister(conn)
		h.cfg.MsgLimiter.Forget(conn.id)
		slog.Info("Session closed", "conn_id", conn.id, "actor_id", actor.ID,
			"duration", h.cfg.Clock.Since(conn.createdAt).Round(time.Second),
			"idle", h.cfg.Clock.Since(conn.LastActivity()).Round(time.Second))
	}()

	slog.Info("Session opened", "conn_id", conn.id, "actor_id", actor.ID, "role", actor.Role, "ip", ip)
	// The greeting is queued before any group broadcast can reach conn, and
	// nothing is written until conn is in its groups.
	h.greeter.Greet(conn)
	h.hub.Join(conn)
	conn.open()

	h.readLoop(context.WithoutCancel(ctx), conn)
	return nil
}

func (h *Handler) reject(reason string) {
	if h.metrics != nil {
		h.metrics.RejectedConnections.WithLabelValues(reason).Inc()
	}
}

func (h *Handler) readLoop(ctx context.Context, conn *Conn) {
	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				slog.Debug("Unexpected WebSocket close", "conn_id", conn.id, "error", err)
			}
			return
		}
		conn.touch()
		conn.extendReadDeadline()
		h.handleFrame(correlation.WithID(ctx, correlation.NewID()), conn, data)
	}
}

// handleFrame charges the message window before reading the frame, so
// malformed input counts against the connection like any command.
func (h *Handler) handleFrame(ctx context.Context, conn *Conn, data []byte) {
	if !h.cfg.MsgLimiter.Allow(conn.id) {
		h.observe(commandLabel(""), domain.CodeRateLimited, 0)
		h.sendError(ctx, conn, "", domain.ErrRateLimited)
		return
	}

	var in domain.Inbound
	if err := json.Unmarshal(data, &in); err != nil || in.Event == "" {
		h.sendError(ctx, conn, in.RequestID, fmt.Errorf("%w: frame needs an event", domain.ErrInvalidInput))
		return
	}
	label := commandLabel(in.Event)

	start := h.cfg.Clock.Now()
	res, err := h.router.Dispatch(ctx, conn, in.Event, in.Data)
	took := h.cfg.Clock.Since(start)
	if err != nil {
		h.observe(label, domain.ErrorCode(err), took)
		h.sendError(ctx, conn, in.RequestID, err)
		return
	}
	h.observe(label, "ok", took)

	env := domain.Envelope{Event: domain.ResponseEvent(in.Event), Data: res, RequestID: in.RequestID}
	if reply, ok := res.(app.Reply); ok {
		env.Event, env.Data = reply.Event, reply.Data
	}
	h.hub.ToConn(conn.id, env)
}

func (h *Handler) sendError(ctx context.Context, conn *Conn, requestID string, err error) {
	code := domain.ErrorCode(err)
	message := err.Error()
	if code == domain.CodeInternal {
		slog.ErrorContext(ctx, "Command failed", "conn_id", conn.id, "actor_id", conn.actor.ID, "error", err)
		message = "internal error"
	} else {
		slog.DebugContext(ctx, "Command rejected", "conn_id", conn.id, "actor_id", conn.actor.ID, "code", code, "error", err)
	}

	h.hub.ToConn(conn.id, domain.Envelope{
		Event:     domain.EventError,
		Data:      domain.ErrorPayload{Code: code, Message: message, RequestID: requestID},
		RequestID: requestID,
	})
}

func (h *Handler) observe(command, result string, took time.Duration) {
	if h.metrics == nil {
		return
	}
	h.metrics.Commands.WithLabelValues(command, result).Inc()
	if took > 0 {
		h.metrics.CommandDuration.WithLabelValues(command).Observe(took.Seconds())
	}
}

// commandLabel keeps metric cardinality bounded to the declared commands.
func commandLabel(event string) string {
	if _, ok := domain.CommandPermissions[domain.Command(event)]; ok {
		return event
	}
	return "unrecognized"
}
