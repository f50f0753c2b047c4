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
	"strings"
	"testing"

	"github.com/blinklabs-io/roster/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceRegister(t *testing.T) {
	f := newFixture(t)
	f.bootstrapCurator(curator)
	require.NoError(t, f.reg.Members.Register(f.ctx, registry.Signed(alice)))
	f.take()
	reg := registry.ServiceRegistration{
		Id:      rpcSvc,
		ChainId: "polkadot",
		Type:    registry.ServiceTypeBOOT,
		Level:   3,
		Status:  registry.ServiceLocked,
	}

	err := f.reg.Services.Register(f.ctx, registry.Signed(alice), reg)
	require.ErrorIs(t, err, registry.ErrNotACurator)

	bad := []registry.ServiceRegistration{
		{Id: ""},
		{Id: registry.ServiceId(strings.Repeat("s", registry.MaxIdLength+1))},
		{Id: "ok", ChainId: registry.ChainId(strings.Repeat("c", registry.MaxIdLength+1))},
		{Id: "ok", Level: registry.MaxLevel + 1},
		{Id: "ok", Type: registry.ServiceType(9)},
		{Id: "ok", Status: registry.ServiceStatus(9)},
	}
	for _, b := range bad {
		err := f.reg.Services.Register(f.ctx, registry.Signed(curator), b)
		require.ErrorIs(t, err, registry.ErrInvalidArgument, "%+v", b)
	}
	assert.Empty(t, f.take())

	require.NoError(t, f.reg.Services.Register(f.ctx, registry.Signed(curator), reg))
	svc, err := f.reg.Services.Get(rpcSvc)
	require.NoError(t, err)
	assert.Equal(t, registry.Service(reg), svc)
	events := f.take()
	require.Len(t, events, 1)
	assert.Equal(t, registry.ServiceRegisteredEvent{Service: svc}, events[0].Data)

	err = f.reg.Services.Register(f.ctx, registry.Signed(curator), reg)
	require.ErrorIs(t, err, registry.ErrAlreadyExists)

	_, err = f.reg.Services.Get("missing")
	require.ErrorIs(t, err, registry.ErrServiceNotFound)
}

func TestServiceStatusMachine(t *testing.T) {
	f := newFixture(t)
	f.bootstrapCurator(curator)
	c := registry.Signed(curator)
	require.NoError(t, f.reg.Services.Register(f.ctx, c, registry.ServiceRegistration{
		Id:     rpcSvc,
		Status: registry.ServiceNone,
	}))
	f.take()

	status := func() registry.ServiceStatus {
		svc, err := f.reg.Services.Get(rpcSvc)
		require.NoError(t, err)
		return svc.Status
	}

	require.ErrorIs(t, f.reg.Services.Unlock(f.ctx, c, rpcSvc), registry.ErrInvalidTransition)
	require.ErrorIs(t, f.reg.Services.Undelete(f.ctx, c, rpcSvc), registry.ErrInvalidTransition)
	assert.Empty(t, f.take())

	require.NoError(t, f.reg.Services.Lock(f.ctx, c, rpcSvc))
	assert.Equal(t, registry.ServiceLocked, status())
	require.NoError(t, f.reg.Services.Unlock(f.ctx, c, rpcSvc))
	assert.Equal(t, registry.ServiceActive, status())
	require.NoError(t, f.reg.Services.Delete(f.ctx, c, rpcSvc))
	assert.Equal(t, registry.ServiceDeleted, status())
	require.ErrorIs(t, f.reg.Services.Lock(f.ctx, c, rpcSvc), registry.ErrInvalidTransition)
	// The default undelete target leaves the service Deleted
	require.NoError(t, f.reg.Services.Undelete(f.ctx, c, rpcSvc))
	assert.Equal(t, registry.ServiceDeleted, status())

	events := f.take()
	require.Len(t, events, 4)
	assert.Equal(
		t,
		registry.ServiceStatusUpdatedEvent{
			Service:  rpcSvc,
			Previous: registry.ServiceNone,
			Current:  registry.ServiceLocked,
		},
		events[0].Data,
	)
	assert.Equal(
		t,
		registry.ServiceStatusUpdatedEvent{
			Service:  rpcSvc,
			Previous: registry.ServiceDeleted,
			Current:  registry.ServiceDeleted,
		},
		events[3].Data,
	)
}

func TestServiceLevelAndGate(t *testing.T) {
	f := newFixture(t)
	f.bootstrapCurator(curator)
	f.activeService(rpcSvc)
	f.take()

	err := f.reg.Services.UpdateLevel(f.ctx, registry.Signed(alice), rpcSvc, 2)
	require.ErrorIs(t, err, registry.ErrNotACurator)
	err = f.reg.Services.Lock(f.ctx, registry.None(), rpcSvc)
	require.ErrorIs(t, err, registry.ErrUnauthenticated)
	err = f.reg.Services.UpdateLevel(f.ctx, registry.Signed(curator), "missing", 2)
	require.ErrorIs(t, err, registry.ErrServiceNotFound)

	require.NoError(t, f.reg.Services.UpdateLevel(f.ctx, registry.Signed(curator), rpcSvc, 5))
	events := f.take()
	require.Len(t, events, 1)
	assert.Equal(t, registry.ServiceLevelUpdatedEventType, events[0].Type)
	assert.Equal(
		t,
		registry.ServiceLevelUpdatedEvent{Service: rpcSvc, Previous: 1, Current: 5},
		events[0].Data,
	)

	services, err := f.reg.Services.List()
	require.NoError(t, err)
	require.Len(t, services, 1)
	assert.Equal(t, registry.MembershipLevel(5), services[0].Level)
}

func TestParseServiceEnums(t *testing.T) {
	st, err := registry.ParseServiceType("RPC")
	require.NoError(t, err)
	assert.Equal(t, registry.ServiceTypeRPC, st)
	_, err = registry.ParseServiceType("grpc")
	require.ErrorIs(t, err, registry.ErrInvalidArgument)

	ss, err := registry.ParseServiceStatus("active")
	require.NoError(t, err)
	assert.Equal(t, registry.ServiceActive, ss)
	_, err = registry.ParseServiceStatus("gone")
	require.ErrorIs(t, err, registry.ErrInvalidArgument)
}
