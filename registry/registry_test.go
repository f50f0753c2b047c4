// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package registry_test

import (
	"context"
	"sync"
	"testing"

	"github.com/blinklabs-io/roster/database"
	"github.com/blinklabs-io/roster/database/models"
	"github.com/blinklabs-io/roster/event"
	"github.com/blinklabs-io/roster/internal/test/testutil"
	"github.com/blinklabs-io/roster/registry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const (
	curator = registry.AccountId("curator-1")
	monitor = registry.AccountId("monitor-1")
	alice   = registry.AccountId("alice")
	bob     = registry.AccountId("bob")
	rpcSvc  = registry.ServiceId("rpc-polkadot")
)

// recorder collects published events synchronously
type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) Deliver(evt event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *recorder) Close() {}

type fixture struct {
	t   *testing.T
	ctx context.Context
	db  *database.Database
	reg *registry.Registry
	rec *recorder
}

func newFixture(t *testing.T, opts ...registry.Option) *fixture {
	t.Helper()
	return newFixtureOn(t, testutil.NewTestDatabase(t), opts...)
}

func newFixtureOn(
	t *testing.T,
	db *database.Database,
	opts ...registry.Option,
) *fixture {
	t.Helper()
	bus := event.NewEventBus(nil, nil)
	t.Cleanup(bus.Stop)
	rec := &recorder{}
	for _, evtType := range registry.EventTypes {
		bus.RegisterSubscriber(evtType, rec)
	}
	reg, err := registry.New(db, bus, opts...)
	require.NoError(t, err)
	return &fixture{t: t, ctx: t.Context(), db: db, reg: reg, rec: rec}
}

// take returns the events recorded so far and resets the recorder
func (f *fixture) take() []event.Event {
	f.rec.mu.Lock()
	defer f.rec.mu.Unlock()
	ret := f.rec.events
	f.rec.events = nil
	return ret
}

func (f *fixture) bootstrapCurator(id registry.AccountId) {
	f.t.Helper()
	require.NoError(f.t, f.reg.Roles.AssignCurator(f.ctx, registry.None(), id))
}

func (f *fixture) activeMember(id registry.AccountId) {
	f.t.Helper()
	require.NoError(f.t, f.reg.Members.Register(f.ctx, registry.Signed(id)))
	require.NoError(
		f.t,
		f.reg.Members.Unlock(f.ctx, registry.Signed(curator), id),
	)
}

func (f *fixture) activeService(id registry.ServiceId) {
	f.t.Helper()
	require.NoError(f.t, f.reg.Services.Register(
		f.ctx,
		registry.Signed(curator),
		registry.ServiceRegistration{
			Id:      id,
			ChainId: "polkadot",
			Type:    registry.ServiceTypeRPC,
			Level:   1,
			Status:  registry.ServiceActive,
		},
	))
}

func (f *fixture) monitor(id registry.AccountId) {
	f.t.Helper()
	require.NoError(f.t, f.reg.Members.Register(f.ctx, registry.Signed(id)))
	require.NoError(
		f.t,
		f.reg.Roles.AssignMonitor(f.ctx, registry.Signed(curator), id),
	)
}

// standard sets up a curator, a monitor, an active member and an active
// service, then discards the setup events
func (f *fixture) standard() {
	f.t.Helper()
	f.bootstrapCurator(curator)
	f.monitor(monitor)
	f.activeMember(alice)
	f.activeService(rpcSvc)
	f.take()
}

type dump struct {
	state   *registry.State
	index   []registry.AlertIndexKey
	journal int
}

func (f *fixture) dump() dump {
	f.t.Helper()
	state, err := f.reg.ExportState()
	require.NoError(f.t, err)
	index, err := f.reg.Alerts.IndexEntries()
	require.NoError(f.t, err)
	rows, err := f.db.GetNotifications(models.NotificationFilter{})
	require.NoError(f.t, err)
	return dump{state: state, index: index, journal: len(rows)}
}

func (d dump) equal(t *testing.T, other dump) {
	t.Helper()
	assert.Equal(t, d.state.Members, other.state.Members)
	assert.Equal(t, d.state.Services, other.state.Services)
	assert.Equal(t, d.state.Curators, other.state.Curators)
	assert.Equal(t, d.state.Monitors, other.state.Monitors)
	assert.Equal(t, d.state.Alerts, other.state.Alerts)
	assert.Equal(t, d.index, other.index)
	assert.Equal(t, d.journal, other.journal)
}

func TestNewRequiresDatabase(t *testing.T) {
	_, err := registry.New(nil, nil)
	require.ErrorIs(t, err, registry.ErrNilDatabase)
}

func TestKindOf(t *testing.T) {
	testCases := []struct {
		err  error
		kind registry.Kind
	}{
		{registry.ErrNotACurator, registry.KindAuthorization},
		{registry.ErrUnauthenticated, registry.KindAuthorization},
		{registry.ErrAlertNotFound, registry.KindNotFound},
		{registry.ErrDuplicateAlert, registry.KindStateConflict},
		{registry.ErrCannotRemoveLastCurator, registry.KindCapacity},
		{registry.ErrInvalidArgument, registry.KindValidation},
		{assert.AnError, registry.KindUnknown},
		{nil, registry.KindUnknown},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.kind, registry.KindOf(tc.err), "%v", tc.err)
	}
}

func TestOneEventAndJournalRowPerMutation(t *testing.T) {
	f := newFixture(t)
	f.bootstrapCurator(curator)
	require.NoError(t, f.reg.Members.Register(f.ctx, registry.Signed(alice)))
	require.NoError(
		t,
		f.reg.Members.Unlock(f.ctx, registry.Signed(curator), alice),
	)
	events := f.take()
	require.Len(t, events, 3)
	assert.Equal(t, registry.CuratorAssignedEventType, events[0].Type)
	assert.Equal(t, registry.MemberRegisteredEventType, events[1].Type)
	assert.Equal(t, registry.MemberStatusUpdatedEventType, events[2].Type)
	assert.Equal(
		t,
		registry.MemberStatusUpdatedEvent{
			Member:   alice,
			Previous: registry.MemberLocked,
			Current:  registry.MemberActive,
		},
		events[2].Data,
	)

	rows, err := f.db.GetNotifications(models.NotificationFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	// Newest first
	assert.Equal(t, string(registry.MemberStatusUpdatedEventType), rows[0].EventType)
	assert.Equal(t, string(alice), rows[0].Subject)
	assert.JSONEq(
		t,
		`{"member":"alice","previous":0,"current":1}`,
		string(rows[0].Payload),
	)

	// A rejected call adds neither
	err = f.reg.Members.Register(f.ctx, registry.Signed(alice))
	require.ErrorIs(t, err, registry.ErrAlreadyExists)
	assert.Empty(t, f.take())
	rows, err = f.db.GetNotifications(models.NotificationFilter{})
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestMetrics(t *testing.T) {
	promReg := prometheus.NewRegistry()
	f := newFixture(t, registry.WithPromRegistry(promReg))
	f.standard()
	err := f.reg.Members.Register(f.ctx, registry.Signed(alice))
	require.ErrorIs(t, err, registry.ErrAlreadyExists)

	families, err := promReg.Gather()
	require.NoError(t, err)
	got := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			name := mf.GetName()
			for _, lp := range m.GetLabel() {
				name += "," + lp.GetValue()
			}
			switch {
			case m.GetCounter() != nil:
				got[name] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				got[name] = m.GetGauge().GetValue()
			}
		}
	}
	assert.InDelta(t, 2, got["roster_registry_members"], 0)
	assert.InDelta(t, 1, got["roster_registry_curators"], 0)
	assert.InDelta(t, 1, got["roster_registry_monitors"], 0)
	assert.InDelta(t, 1, got["roster_registry_services"], 0)
	assert.InDelta(t, 0, got["roster_registry_alerts"], 0)
	assert.InDelta(t, 2, got["roster_registry_operations_total,register_member,ok"], 0)
	assert.InDelta(
		t,
		1,
		got["roster_registry_operations_total,register_member,state_conflict"],
		0,
	)
}

func TestNoGoroutinesLeftBehind(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	db, err := database.New(&database.Config{})
	require.NoError(t, err)
	bus := event.NewEventBus(nil, nil)
	reg, err := registry.New(db, bus)
	require.NoError(t, err)
	ctx := t.Context()
	require.NoError(t, reg.Roles.AssignCurator(ctx, registry.None(), curator))
	_, err = reg.Alerts.RebuildIndex(ctx)
	require.NoError(t, err)
	bus.Stop()
	require.NoError(t, db.Close())
}
