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

package registry

import "github.com/blinklabs-io/roster/event"

const (
	MemberRegisteredEventType    = event.EventType("registry.member.registered")
	MemberStatusUpdatedEventType = event.EventType("registry.member.status")
	MemberLevelUpdatedEventType  = event.EventType("registry.member.level")

	CuratorAssignedEventType = event.EventType("registry.curator.assigned")
	CuratorRemovedEventType  = event.EventType("registry.curator.removed")
	MonitorAssignedEventType = event.EventType("registry.monitor.assigned")
	MonitorRemovedEventType  = event.EventType("registry.monitor.removed")

	ServiceRegisteredEventType    = event.EventType("registry.service.registered")
	ServiceStatusUpdatedEventType = event.EventType("registry.service.status")
	ServiceLevelUpdatedEventType  = event.EventType("registry.service.level")

	AlertRegisteredEventType   = event.EventType("registry.alert.registered")
	AlertClearedEventType      = event.EventType("registry.alert.cleared")
	AlertIndexRebuiltEventType = event.EventType("registry.alert.index_rebuilt")

	StateImportedEventType = event.EventType("registry.state.imported")
)

// EventTypes lists every event type the registry publishes
var EventTypes = []event.EventType{
	MemberRegisteredEventType,
	MemberStatusUpdatedEventType,
	MemberLevelUpdatedEventType,
	CuratorAssignedEventType,
	CuratorRemovedEventType,
	MonitorAssignedEventType,
	MonitorRemovedEventType,
	ServiceRegisteredEventType,
	ServiceStatusUpdatedEventType,
	ServiceLevelUpdatedEventType,
	AlertRegisteredEventType,
	AlertClearedEventType,
	AlertIndexRebuiltEventType,
	StateImportedEventType,
}

type MemberRegisteredEvent struct {
	Member AccountId       `json:"member"`
	Status MemberStatus    `json:"status"`
	Level  MembershipLevel `json:"level"`
}

type MemberStatusUpdatedEvent struct {
	Member   AccountId    `json:"member"`
	Previous MemberStatus `json:"previous"`
	Current  MemberStatus `json:"current"`
}

type MemberLevelUpdatedEvent struct {
	Member   AccountId       `json:"member"`
	Previous MembershipLevel `json:"previous"`
	Current  MembershipLevel `json:"current"`
}

// RoleEvent is the payload of the curator and monitor assignment events
type RoleEvent struct {
	Account AccountId `json:"account"`
	Origin  string    `json:"origin"`
}

type ServiceRegisteredEvent struct {
	Service Service `json:"service"`
}

type ServiceStatusUpdatedEvent struct {
	Service  ServiceId     `json:"service"`
	Previous ServiceStatus `json:"previous"`
	Current  ServiceStatus `json:"current"`
}

type ServiceLevelUpdatedEvent struct {
	Service  ServiceId       `json:"service"`
	Previous MembershipLevel `json:"previous"`
	Current  MembershipLevel `json:"current"`
}

type AlertRegisteredEvent struct {
	Alert Alert `json:"alert"`
	// Replaced is the alert previously stored under the same key, if any
	Replaced *Alert `json:"replaced,omitempty"`
}

type AlertClearedEvent struct {
	Alert     Alert     `json:"alert"`
	ClearedBy AccountId `json:"clearedBy"`
}

type AlertIndexRebuiltEvent struct {
	Epoch   uint64 `json:"epoch"`
	Alerts  int    `json:"alerts"`
	Entries int    `json:"entries"`
	Removed int    `json:"removed"`
}

type StateImportedEvent struct {
	Members  int `json:"members"`
	Services int `json:"services"`
	Curators int `json:"curators"`
	Monitors int `json:"monitors"`
	Alerts   int `json:"alerts"`
}
