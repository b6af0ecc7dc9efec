package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/plantpulse/internal/app"
	"github.com/pscheid92/plantpulse/internal/domain"
	"github.com/pscheid92/plantpulse/internal/platform/ratelimit"
	"github.com/stretchr/testify/require"
)

var (
	operator = domain.Actor{ID: "op-1", Name: "Olu", Role: domain.RoleOperator, Shift: "night",
		Permissions: []domain.Permission{domain.PermReadDashboard, domain.PermControlStations}}
	admin = domain.Actor{ID: "adm-1", Name: "Ada", Role: domain.RoleAdmin,
		Permissions: []domain.Permission{domain.PermReadDashboard, domain.PermManageUsers}}
	viewer = domain.Actor{ID: "view-1", Name: "Vic", Role: domain.RoleViewer,
		Permissions: []domain.Permission{domain.PermReadDashboard}}
)

// tokenAuth accepts the actor id as credential.
type tokenAuth map[string]domain.Actor

func (a tokenAuth) Authenticate(_ context.Context, credential string) (domain.Actor, error) {
	if credential == "" {
		return domain.Actor{}, domain.ErrUnauthenticated
	}
	actor, ok := a[credential]
	if !ok {
		return domain.Actor{}, domain.ErrUnknownCredential
	}
	return actor, nil
}

type infoGreeter struct{ hub *Hub }

func (g infoGreeter) Greet(sess domain.Session) {
	g.hub.ToConn(sess.ID(), domain.Envelope{Event: domain.EventUserInfo, Data: sess.Actor()})
}

type testServer struct {
	url      string
	hub      *Hub
	msgLimit *ratelimit.Window
	capacity *ratelimit.GlobalLimiter
}

type serverOpts struct {
	connCeiling int
	msgCeiling  int
	capacity    int64
}

func newTestServer(t *testing.T, opts serverOpts) *testServer {
	t.Helper()
	if opts.connCeiling == 0 {
		opts.connCeiling = 100
	}
	if opts.msgCeiling == 0 {
		opts.msgCeiling = 100
	}
	if opts.capacity == 0 {
		opts.capacity = 100
	}

	clock := clockwork.NewRealClock()
	hub := NewHub(nil)
	router := app.NewRouter(domain.CommandPermissions)
	require.NoError(t, app.NewPlant(hub, hub, nil, nil, clock).Register(router))

	ts := &testServer{
		hub:      hub,
		msgLimit: ratelimit.NewWindow(opts.msgCeiling, time.Minute, clock),
		capacity: ratelimit.NewGlobalLimiter(opts.capacity),
	}
	handler := NewHandler(hub, tokenAuth{operator.ID: operator, admin.ID: admin, viewer.ID: viewer}, router, infoGreeter{hub}, HandlerConfig{
		ConnLimiter: ratelimit.NewWindow(opts.connCeiling, time.Minute, clock),
		MsgLimiter:  ts.msgLimit,
		Capacity:    ts.capacity,
		CheckOrigin: func(*http.Request) bool { return true },
		Clock:       clock,
	}, nil)

	e := echo.New()
	e.GET("/ws", handler.ServeWS)
	srv := httptest.NewServer(e)
	t.Cleanup(func() {
		hub.CloseAll("test over")
		srv.Close()
	})

	ts.url = "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	return ts
}

func (ts *testServer) dial(token string) (*ws.Conn, *http.Response, error) {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	return ws.DefaultDialer.Dial(ts.url, header)
}

// connect dials as actor and consumes the user:info greeting.
func (ts *testServer) connect(t *testing.T, actor domain.Actor) *ws.Conn {
	t.Helper()
	c, _, err := ts.dial(actor.ID)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	env := readEnvelope(t, c)
	require.Equal(t, domain.EventUserInfo, env.Event)
	return c
}

func readEnvelope(t *testing.T, c *ws.Conn) domain.Inbound {
	t.Helper()
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env domain.Inbound
	_, data, err := c.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func send(t *testing.T, c *ws.Conn, event, requestID string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, c.WriteJSON(domain.Inbound{Event: event, Data: raw, RequestID: requestID}))
}

func newTestConnPair(t *testing.T) (server *ws.Conn, client *ws.Conn) {
	t.Helper()
	upgrader := ws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	ready := make(chan *ws.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		ready <- conn
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = clientConn.Close() })

	serverConn := <-ready
	t.Cleanup(func() { _ = serverConn.Close() })
	return serverConn, clientConn
}

// idleConn is a registered-ready Conn whose writer never runs, so frames
// stay queued until closeGraceful flushes them.
func idleConn(t *testing.T, actor domain.Actor) (*Conn, *ws.Conn) {
	t.Helper()
	server, client := newTestConnPair(t)
	return &Conn{
		id:     uuid.NewString(),
		actor:  actor,
		groups: domain.GroupsFor(actor),
		ws:     server,
		clock:  clockwork.NewRealClock(),
		send:   make(chan []byte, messageBufferSize),
		done:   make(chan struct{}),
	}, client
}

// bareConn is enough for registry bookkeeping and queue inspection.
func bareConn(actor domain.Actor) *Conn {
	return &Conn{
		id:     uuid.NewString(),
		actor:  actor,
		groups: domain.GroupsFor(actor),
		send:   make(chan []byte, messageBufferSize),
		done:   make(chan struct{}),
	}
}

// register indexes c and joins its groups, as ServeWS does after greeting.
func register(hub *Hub, c *Conn) {
	hub.Register(c)
	hub.Join(c)
}

func queued(c *Conn) []string {
	var events []string
	for {
		select {
		case msg := <-c.send:
			var env domain.Inbound
			if err := json.Unmarshal(msg, &env); err == nil {
				events = append(events, env.Event)
			}
		default:
			return events
		}
	}
}
