package app

import "github.com/pscheid92/plantpulse/internal/domain"

// Greeter pushes the initial state a freshly joined session is entitled to.
type Greeter struct {
	broadcaster Broadcaster
	plant       *Plant
	poller      *Poller
}

func NewGreeter(broadcaster Broadcaster, plant *Plant, poller *Poller) *Greeter {
	return &Greeter{broadcaster: broadcaster, plant: plant, poller: poller}
}

func (g *Greeter) Greet(sess domain.Session) {
	actor := sess.Actor()
	g.broadcaster.ToConn(sess.ID(), domain.Envelope{Event: domain.EventUserInfo, Data: actor})

	if !actor.HasPermission(domain.PermReadDashboard) {
		return
	}

	g.broadcaster.ToConn(sess.ID(), domain.Envelope{Event: domain.EventMetricsInitial, Data: g.plant.Metrics()})
	g.broadcaster.ToConn(sess.ID(), domain.Envelope{Event: domain.EventReactorInitial, Data: g.plant.Reactors()})
	g.broadcaster.ToConn(sess.ID(), domain.Envelope{Event: domain.EventStationInitial, Data: g.plant.Stations()})

	for _, v := range views {
		if payload, ok := g.poller.Latest(v); ok {
			g.broadcaster.ToConn(sess.ID(), domain.Envelope{Event: v.Event(), Data: payload})
		}
	}
}
