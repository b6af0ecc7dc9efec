package websocket

import (
	"sync"
	"sync/atomic"

	"github.com/pscheid92/plantpulse/internal/domain"
)

type group struct {
	mu      sync.RWMutex
	members map[string]*Conn
}

// Registry indexes live connections by id and by group. There is no global
// lock: each group guards its own member set. Empty groups are kept.
type Registry struct {
	groups sync.Map // domain.GroupKey -> *group
	conns  sync.Map // conn id -> *Conn
	count  atomic.Int64
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Add puts c in the connection index so it can be addressed directly. It
// joins no groups. Add reports false if c was already indexed.
func (r *Registry) Add(c *Conn) bool {
	if _, loaded := r.conns.LoadOrStore(c.id, c); loaded {
		return false
	}
	r.count.Add(1)
	return true
}

// Join adds an indexed c to every group it belongs to. Membership is
// checked under each group's lock, so a c that has already left is not
// added back.
func (r *Registry) Join(c *Conn) {
	for _, key := range c.groups {
		v, _ := r.groups.LoadOrStore(key, &group{members: make(map[string]*Conn)})
		g := v.(*group)
		g.mu.Lock()
		if _, live := r.conns.Load(c.id); live {
			g.members[c.id] = c
		}
		g.mu.Unlock()
	}
}

// Leave removes c from the index and from its groups. It reports whether
// c was indexed.
func (r *Registry) Leave(c *Conn) bool {
	if _, loaded := r.conns.LoadAndDelete(c.id); !loaded {
		return false
	}
	r.count.Add(-1)

	for _, key := range c.groups {
		v, ok := r.groups.Load(key)
		if !ok {
			continue
		}
		g := v.(*group)
		g.mu.Lock()
		delete(g.members, c.id)
		g.mu.Unlock()
	}
	return true
}

// Members returns a snapshot of the connections in key.
func (r *Registry) Members(key domain.GroupKey) []*Conn {
	v, ok := r.groups.Load(key)
	if !ok {
		return nil
	}
	g := v.(*group)
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]*Conn, 0, len(g.members))
	for _, c := range g.members {
		out = append(out, c)
	}
	return out
}

func (r *Registry) Conn(id string) (*Conn, bool) {
	v, ok := r.conns.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Conn), true
}

func (r *Registry) All() []*Conn {
	var out []*Conn
	r.conns.Range(func(_, v any) bool {
		out = append(out, v.(*Conn))
		return true
	})
	return out
}

func (r *Registry) Count() int {
	return int(r.count.Load())
}
