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
	"encoding/json"
	"testing"

	"github.com/blinklabs-io/roster/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportImportRoundTrip(t *testing.T) {
	src := newFixture(t)
	src.standard()
	src.activeMember(bob)
	require.NoError(t, src.reg.Alerts.Register(src.ctx, registry.Signed(monitor), downAlert(1, alice)))
	require.NoError(t, src.reg.Alerts.Register(src.ctx, registry.Signed(monitor), downAlert(2, bob)))
	want := src.dump()

	state, err := src.reg.ExportState()
	require.NoError(t, err)
	data, err := json.Marshal(state)
	require.NoError(t, err)
	var decoded registry.State
	require.NoError(t, json.Unmarshal(data, &decoded))

	dst := newFixture(t)
	require.NoError(t, dst.reg.ImportState(dst.ctx, registry.Root(), &decoded))
	got := dst.dump()
	assert.Equal(t, want.state.Members, got.state.Members)
	assert.Equal(t, want.state.Services, got.state.Services)
	assert.Equal(t, want.state.Curators, got.state.Curators)
	assert.Equal(t, want.state.Monitors, got.state.Monitors)
	assert.Equal(t, want.state.Alerts, got.state.Alerts)
	assert.Equal(t, want.index, got.index)
	dst.requireIndexConsistent()

	events := dst.take()
	require.Len(t, events, 1)
	assert.Equal(
		t,
		registry.StateImportedEvent{
			Members:  3,
			Services: 1,
			Curators: 1,
			Monitors: 1,
			Alerts:   2,
		},
		events[0].Data,
	)

	// The imported roles gate further calls
	err = dst.reg.Alerts.Register(dst.ctx, registry.Signed(monitor), downAlert(3, alice))
	require.ErrorIs(t, err, registry.ErrDuplicateAlert)
}

func TestImportReplacesExistingState(t *testing.T) {
	f := newFixture(t)
	f.standard()
	require.NoError(t, f.reg.Alerts.Register(f.ctx, registry.Signed(monitor), downAlert(1, alice)))

	state := &registry.State{
		Members:  []registry.Member{{Id: bob, Status: registry.MemberActive}},
		Curators: []registry.AccountId{bob},
	}
	require.NoError(t, f.reg.ImportState(f.ctx, registry.Root(), state))
	members, err := f.reg.Members.List()
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, bob, members[0].Id)
	assert.False(t, f.reg.Roles.IsCurator(curator))
	assert.True(t, f.reg.Roles.IsCurator(bob))
	entries, err := f.reg.Alerts.IndexEntries()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestImportRejected(t *testing.T) {
	f := newFixture(t)
	f.standard()
	f.take()
	before := f.dump()

	curators := []registry.AccountId{curator}
	svc := registry.Service{
		Id:      rpcSvc,
		ChainId: "polkadot",
		Type:    registry.ServiceTypeRPC,
		Level:   1,
		Status:  registry.ServiceActive,
	}
	down := func(id uint64, member registry.AccountId) registry.Alert {
		return registry.Alert{
			Monitor: monitor,
			AlertId: id,
			Member:  member,
			Service: rpcSvc,
			Domain:  "rpc.example.org",
			Type:    "Down",
		}
	}
	testCases := []struct {
		name   string
		origin registry.Origin
		state  *registry.State
		err    error
	}{
		{"signed", registry.Signed(curator), &registry.State{}, registry.ErrNotAuthorized},
		{"unsigned", registry.None(), &registry.State{}, registry.ErrUnauthenticated},
		{"nil state", registry.Root(), nil, registry.ErrInvalidArgument},
		{"no curators", registry.Root(), &registry.State{
			Members: []registry.Member{{Id: alice, Status: registry.MemberActive}},
		}, registry.ErrInvalidArgument},
		{"too many curators", registry.Root(), &registry.State{
			Curators: []registry.AccountId{"a", "b", "c", "d", "e", "f"},
		}, registry.ErrInvalidArgument},
		{"curator twice", registry.Root(), &registry.State{
			Curators: []registry.AccountId{curator, curator},
		}, registry.ErrInvalidArgument},
		{"member twice", registry.Root(), &registry.State{
			Curators: curators,
			Members: []registry.Member{
				{Id: alice, Status: registry.MemberActive},
				{Id: alice, Status: registry.MemberLocked},
			},
		}, registry.ErrInvalidArgument},
		{"service twice", registry.Root(), &registry.State{
			Curators: curators,
			Services: []registry.Service{svc, svc},
		}, registry.ErrInvalidArgument},
		{"monitor without member", registry.Root(), &registry.State{
			Curators: curators,
			Monitors: []registry.AccountId{monitor},
		}, registry.ErrMemberNotFound},
		{"monitor twice", registry.Root(), &registry.State{
			Curators: curators,
			Members:  []registry.Member{{Id: monitor, Status: registry.MemberActive}},
			Monitors: []registry.AccountId{monitor, monitor},
		}, registry.ErrInvalidArgument},
		{"bad alert", registry.Root(), &registry.State{
			Curators: curators,
			Alerts:   []registry.Alert{{Monitor: monitor, AlertId: 1}},
		}, registry.ErrInvalidArgument},
		{"alert key twice", registry.Root(), &registry.State{
			Curators: curators,
			Alerts:   []registry.Alert{down(1, alice), down(1, bob)},
		}, registry.ErrInvalidArgument},
		{"shared triple", registry.Root(), &registry.State{
			Curators: curators,
			Alerts:   []registry.Alert{down(1, alice), down(2, alice)},
		}, registry.ErrInvalidArgument},
	}
	for _, tc := range testCases {
		err := f.reg.ImportState(f.ctx, tc.origin, tc.state)
		require.ErrorIs(t, err, tc.err, tc.name)
	}
	assert.Empty(t, f.take())
	before.equal(t, f.dump())
}
