package websocket

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/plantpulse/internal/domain"
)

const (
	writeDeadline     = 5 * time.Second
	pingInterval      = 30 * time.Second
	pongDeadline      = 60 * time.Second
	messageBufferSize = 16
	maxFrameSize      = 64 << 10
)

// Conn is one authenticated WebSocket session. Actor and groups are fixed at
// construction and never change.
type Conn struct {
	id        string
	actor     domain.Actor
	groups    []domain.GroupKey
	createdAt time.Time

	ws       *websocket.Conn
	clock    clockwork.Clock
	send     chan []byte
	ready    chan struct{}
	done     chan struct{}
	openOnce sync.Once
	stopOnce sync.Once
	wg       sync.WaitGroup

	activityMu   sync.Mutex
	lastActivity time.Time
}

var _ domain.Session = (*Conn)(nil)

func newConn(ws *websocket.Conn, actor domain.Actor, clock clockwork.Clock) *Conn {
	now := clock.Now()
	c := &Conn{
		id:           uuid.NewString(),
		actor:        actor,
		groups:       domain.GroupsFor(actor),
		createdAt:    now,
		ws:           ws,
		clock:        clock,
		send:         make(chan []byte, messageBufferSize),
		ready:        make(chan struct{}),
		done:         make(chan struct{}),
		lastActivity: now,
	}
	c.configureReads()
	c.wg.Add(1)
	go c.writeLoop()
	return c
}

func (c *Conn) ID() string          { return c.id }
func (c *Conn) Actor() domain.Actor { return c.actor }

func (c *Conn) LastActivity() time.Time {
	c.activityMu.Lock()
	defer c.activityMu.Unlock()
	return c.lastActivity
}

func (c *Conn) touch() {
	c.activityMu.Lock()
	c.lastActivity = c.clock.Now()
	c.activityMu.Unlock()
}

// open lets the writer start flushing the queue. Frames enqueued before
// open are held back.
func (c *Conn) open() {
	c.openOnce.Do(func() { close(c.ready) })
}

// enqueue hands a frame to the writer without blocking. It reports false
// only when the queue is full; a closed connection swallows the frame.
func (c *Conn) enqueue(msg []byte) bool {
	select {
	case <-c.done:
		return true
	default:
	}

	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Conn) writeLoop() {
	defer c.wg.Done()
	select {
	case <-c.ready:
	case <-c.done:
		return
	}

	ticker := c.clock.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				// Unblocks the read loop, which unregisters the connection.
				_ = c.ws.Close()
				return
			}
		case <-ticker.Chan():
			if err := c.write(websocket.PingMessage, nil); err != nil {
				_ = c.ws.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// Socket deadlines are wall-clock.
func (c *Conn) write(messageType int, data []byte) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeDeadline))
	return c.ws.WriteMessage(messageType, data)
}

func (c *Conn) configureReads() {
	c.ws.SetReadLimit(maxFrameSize)
	c.extendReadDeadline()
	c.ws.SetPongHandler(func(string) error {
		c.extendReadDeadline()
		c.touch()
		return nil
	})
}

func (c *Conn) extendReadDeadline() {
	_ = c.ws.SetReadDeadline(time.Now().Add(pongDeadline))
}

// stop closes the socket without a close frame.
func (c *Conn) stop() {
	c.stopOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
	c.wg.Wait()
}

// closeGraceful flushes frames already queued, then sends a close frame
// with the given code and reason.
func (c *Conn) closeGraceful(code int, reason string) {
	c.stopOnce.Do(func() {
		close(c.done)
		// The writer must be gone before anyone else writes to the socket.
		c.wg.Wait()

		for flushing := true; flushing; {
			select {
			case msg := <-c.send:
				if err := c.write(websocket.TextMessage, msg); err != nil {
					flushing = false
				}
			default:
				flushing = false
			}
		}

		_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
		_ = c.ws.Close()
	})
}
