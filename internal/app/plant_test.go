package app

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/plantpulse/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDirectory struct {
	total        int
	perActor     map[string]int
	disconnected []string
}

func (f *fakeDirectory) Count() int                    { return f.total }
func (f *fakeDirectory) CountActor(actorID string) int { return f.perActor[actorID] }

func (f *fakeDirectory) DisconnectActor(actorID, reason string) int {
	f.disconnected = append(f.disconnected, actorID+": "+reason)
	n := f.perActor[actorID]
	f.total -= n
	delete(f.perActor, actorID)
	return n
}

type invalidatorFunc func(ctx context.Context, actorID string) error

func (f invalidatorFunc) Invalidate(ctx context.Context, actorID string) error {
	return f(ctx, actorID)
}

type fakeAccounts struct {
	active map[string]bool
}

func (f *fakeAccounts) SetActive(_ context.Context, actorID string, active bool) error {
	if _, ok := f.active[actorID]; !ok {
		return domain.ErrNotFound
	}
	f.active[actorID] = active
	return nil
}

var admin = fakeSession{id: "conn-admin", actor: domain.Actor{
	ID:   "adm",
	Role: domain.RoleAdmin,
	Permissions: []domain.Permission{
		domain.PermReadDashboard, domain.PermControlReactors, domain.PermControlStations, domain.PermManageUsers,
	},
}}

func plantFixture(t *testing.T, dir *fakeDirectory, inv ActorInvalidator) (*Plant, *Router, *recorder) {
	t.Helper()
	return plantFixtureWithAccounts(t, dir, &fakeAccounts{active: map[string]bool{}}, inv)
}

func plantFixtureWithAccounts(t *testing.T, dir *fakeDirectory, accounts AccountStatus, inv ActorInvalidator) (*Plant, *Router, *recorder) {
	t.Helper()
	rec := &recorder{}
	plant := NewPlant(rec, dir, accounts, inv, clockwork.NewFakeClockAt(t0))
	router := NewRouter(domain.CommandPermissions)
	require.NoError(t, plant.Register(router))
	return plant, router, rec
}

func TestReactorControl(t *testing.T) {
	plant, router, rec := plantFixture(t, &fakeDirectory{}, nil)

	res, err := router.Dispatch(context.Background(), admin, string(domain.CmdReactorControl), json.RawMessage(`{"reactorId":"R-201","action":"start"}`))
	require.NoError(t, err)

	reactor := res.(domain.Reactor)
	assert.Equal(t, domain.ReactorRunning, reactor.State)
	assert.Equal(t, "adm", reactor.UpdatedBy)
	assert.Equal(t, []string{domain.EventReactorStatus}, rec.events(dashboard))
	assert.Equal(t, 3, plant.Metrics().ReactorsRunning)

	_, err = router.Dispatch(context.Background(), admin, string(domain.CmdReactorControl), json.RawMessage(`{"reactorId":"R-999","action":"stop"}`))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = router.Dispatch(context.Background(), admin, string(domain.CmdReactorControl), json.RawMessage(`{"reactorId":"R-101","action":"explode"}`))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Len(t, rec.events(dashboard), 1)
}

func TestStationControl(t *testing.T) {
	plant, router, rec := plantFixture(t, &fakeDirectory{}, nil)

	res, err := router.Dispatch(context.Background(), admin, string(domain.CmdStationControl), json.RawMessage(`{"stationId":"S-1","action":"pause"}`))
	require.NoError(t, err)

	assert.Equal(t, domain.StationPaused, res.(domain.Station).State)
	assert.Equal(t, []string{domain.EventStationStatus}, rec.events(dashboard))
	assert.Equal(t, 1, plant.Metrics().StationsRunning)

	_, err = router.Dispatch(context.Background(), admin, string(domain.CmdStationControl), json.RawMessage(`{"stationId":"S-9","action":"resume"}`))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMetricsRequest(t *testing.T) {
	_, router, rec := plantFixture(t, &fakeDirectory{total: 4}, nil)

	res, err := router.Dispatch(context.Background(), admin, string(domain.CmdMetricsRequest), nil)
	require.NoError(t, err)

	reply := res.(Reply)
	assert.Equal(t, domain.EventMetricsUpdate, reply.Event)
	m := reply.Data.(domain.PlantMetrics)
	assert.Equal(t, 4, m.ActiveSessions)
	assert.Equal(t, 3, m.ReactorsTotal)
	assert.Equal(t, 2, m.ReactorsRunning)
	assert.Equal(t, 3, m.StationsTotal)
	assert.Equal(t, t0, m.GeneratedAt)
	assert.Empty(t, rec.events(dashboard))
}

func TestUserManage_Disconnect(t *testing.T) {
	dir := &fakeDirectory{total: 3, perActor: map[string]int{"u7": 2, "u8": 1}}
	var invalidated []string
	inv := invalidatorFunc(func(_ context.Context, actorID string) error {
		invalidated = append(invalidated, actorID)
		return errors.New("redis down")
	})
	_, router, rec := plantFixture(t, dir, inv)

	res, err := router.Dispatch(context.Background(), admin, string(domain.CmdUserManage), json.RawMessage(`{"action":"disconnect","userId":"u7","reason":"badge revoked"}`))
	require.NoError(t, err)

	assert.Equal(t, manageUserResult{Action: "disconnect", UserID: "u7", Sessions: 2}, res)
	assert.Equal(t, []string{"u7"}, invalidated, "cache failure does not block the disconnect")
	assert.Equal(t, []string{"u7: badge revoked"}, dir.disconnected)

	notice, ok := rec.last(domain.EventUserDisconnected)
	require.True(t, ok)
	assert.Equal(t, domain.UserGroup("u7").String(), notice.target)
	assert.Equal(t, map[string]string{"reason": "badge revoked", "by": "adm"}, notice.env.Data)
}

func TestUserManage_Deactivate(t *testing.T) {
	dir := &fakeDirectory{total: 3, perActor: map[string]int{"u7": 2, "u8": 1}}
	accounts := &fakeAccounts{active: map[string]bool{"u7": true, "u8": true}}
	_, router, rec := plantFixtureWithAccounts(t, dir, accounts, nil)

	res, err := router.Dispatch(context.Background(), admin, string(domain.CmdUserManage), json.RawMessage(`{"action":"deactivate","userId":"u7"}`))
	require.NoError(t, err)

	assert.Equal(t, manageUserResult{Action: "deactivate", UserID: "u7", Sessions: 2}, res)
	assert.False(t, accounts.active["u7"])
	assert.True(t, accounts.active["u8"])
	assert.Equal(t, []string{"u7: account deactivated"}, dir.disconnected)

	notice, ok := rec.last(domain.EventUserDisconnected)
	require.True(t, ok)
	assert.Equal(t, domain.UserGroup("u7").String(), notice.target)

	res, err = router.Dispatch(context.Background(), admin, string(domain.CmdUserManage), json.RawMessage(`{"action":"activate","userId":"u7"}`))
	require.NoError(t, err)
	assert.Equal(t, manageUserResult{Action: "activate", UserID: "u7", Sessions: 0}, res)
	assert.True(t, accounts.active["u7"])
}

func TestUserManage_DeactivateUnknownAccount(t *testing.T) {
	dir := &fakeDirectory{perActor: map[string]int{}}
	_, router, rec := plantFixture(t, dir, nil)

	_, err := router.Dispatch(context.Background(), admin, string(domain.CmdUserManage), json.RawMessage(`{"action":"deactivate","userId":"ghost"}`))
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, dir.disconnected)
	_, ok := rec.last(domain.EventUserDisconnected)
	assert.False(t, ok)
}

func TestUserManage_Count(t *testing.T) {
	dir := &fakeDirectory{total: 3, perActor: map[string]int{"u7": 2}}
	_, router, _ := plantFixture(t, dir, nil)

	res, err := router.Dispatch(context.Background(), admin, string(domain.CmdUserManage), json.RawMessage(`{"action":"count","userId":"u7"}`))
	require.NoError(t, err)
	assert.Equal(t, manageUserResult{Action: "count", UserID: "u7", Sessions: 2}, res)
	assert.Empty(t, dir.disconnected)
}

func TestUserManage_Rejections(t *testing.T) {
	_, router, _ := plantFixture(t, &fakeDirectory{}, nil)

	for _, payload := range []string{
		`{"action":"disconnect"}`,
		`{"action":"promote","userId":"u7"}`,
		`[1,2]`,
	} {
		_, err := router.Dispatch(context.Background(), admin, string(domain.CmdUserManage), json.RawMessage(payload))
		assert.ErrorIs(t, err, domain.ErrInvalidInput, payload)
	}
}

func TestPlant_ListsAreSorted(t *testing.T) {
	plant, _, _ := plantFixture(t, &fakeDirectory{}, nil)

	var ids []string
	for _, r := range plant.Reactors() {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"R-101", "R-102", "R-201"}, ids)

	ids = nil
	for _, s := range plant.Stations() {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"S-1", "S-2", "S-3"}, ids)
}
