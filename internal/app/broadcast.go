package app

import "github.com/pscheid92/plantpulse/internal/domain"

// Broadcaster delivers envelopes to live sessions. Empty targets and closed
// connections are silent no-ops.
type Broadcaster interface {
	ToGroup(key domain.GroupKey, env domain.Envelope)
	ToGroups(keys []domain.GroupKey, env domain.Envelope)
	ToActor(actorID string, env domain.Envelope)
	ToConn(connID string, env domain.Envelope) bool
}

var dashboardGroup = domain.PermissionGroup(domain.PermReadDashboard)
