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

import (
	"cmp"
	"fmt"
	"strings"

	"github.com/blinklabs-io/roster/database/types"
)

const (
	// MaxCurators bounds the curator set
	MaxCurators = 5
	// MaxAccountIdLength bounds account identifiers, in bytes
	MaxAccountIdLength = 64
	// MaxIdLength bounds service, chain and domain ids and alert types, in bytes
	MaxIdLength = 32
	// MaxLevel is the highest membership tier
	MaxLevel MembershipLevel = 6
)

type (
	AccountId string
	ServiceId string
	ChainId   string
	DomainId  string
	AlertType string
)

// MemberStatus is the lifecycle state of a member
type MemberStatus uint8

const (
	MemberLocked MemberStatus = iota
	MemberActive
	MemberChilled
	MemberDeleted
)

var memberStatusNames = []string{"locked", "active", "chilled", "deleted"}

func (s MemberStatus) String() string {
	if int(s) < len(memberStatusNames) {
		return memberStatusNames[s]
	}
	return fmt.Sprintf("MemberStatus(%d)", s)
}

func (s MemberStatus) valid() bool {
	return s <= MemberDeleted
}

// ServiceStatus is the lifecycle state of a service
type ServiceStatus uint8

const (
	ServiceNone ServiceStatus = iota
	ServiceLocked
	ServiceActive
	ServiceChilled
	ServiceDeleted
)

var serviceStatusNames = []string{
	"none",
	"locked",
	"active",
	"chilled",
	"deleted",
}

func (s ServiceStatus) String() string {
	if int(s) < len(serviceStatusNames) {
		return serviceStatusNames[s]
	}
	return fmt.Sprintf("ServiceStatus(%d)", s)
}

func (s ServiceStatus) valid() bool {
	return s <= ServiceDeleted
}

// ParseServiceStatus accepts the lower-case status names
func ParseServiceStatus(name string) (ServiceStatus, error) {
	for i, n := range serviceStatusNames {
		if strings.EqualFold(name, n) {
			return ServiceStatus(i), nil // #nosec G115
		}
	}
	return 0, fmt.Errorf("%w: unknown service status %q", ErrInvalidArgument, name)
}

type ServiceType uint8

const (
	ServiceTypeNone ServiceType = iota
	ServiceTypeRPC
	ServiceTypeBOOT
)

var serviceTypeNames = []string{"none", "rpc", "boot"}

func (t ServiceType) String() string {
	if int(t) < len(serviceTypeNames) {
		return serviceTypeNames[t]
	}
	return fmt.Sprintf("ServiceType(%d)", t)
}

func (t ServiceType) valid() bool {
	return t <= ServiceTypeBOOT
}

// ParseServiceType accepts the lower-case type names
func ParseServiceType(name string) (ServiceType, error) {
	for i, n := range serviceTypeNames {
		if strings.EqualFold(name, n) {
			return ServiceType(i), nil // #nosec G115
		}
	}
	return 0, fmt.Errorf("%w: unknown service type %q", ErrInvalidArgument, name)
}

// MembershipLevel is a tier from 1 to MaxLevel. LevelNone means untiered
type MembershipLevel uint8

const LevelNone MembershipLevel = 0

func (l MembershipLevel) String() string {
	if l == LevelNone {
		return "none"
	}
	return fmt.Sprintf("%d", l)
}

func (l MembershipLevel) valid() bool {
	return l <= MaxLevel
}

// UndeleteStatus selects the state an undeleted member or service moves to
type UndeleteStatus uint8

const (
	// UndeleteToDeleted leaves the record in Deleted
	UndeleteToDeleted UndeleteStatus = iota
	UndeleteToLocked
	UndeleteToActive
)

var undeleteStatusNames = []string{"deleted", "locked", "active"}

func (u UndeleteStatus) String() string {
	if int(u) < len(undeleteStatusNames) {
		return undeleteStatusNames[u]
	}
	return fmt.Sprintf("UndeleteStatus(%d)", u)
}

// ParseUndeleteStatus accepts "deleted", "locked" or "active". An empty
// string selects the default
func ParseUndeleteStatus(name string) (UndeleteStatus, error) {
	if name == "" {
		return UndeleteToDeleted, nil
	}
	for i, n := range undeleteStatusNames {
		if strings.EqualFold(name, n) {
			return UndeleteStatus(i), nil // #nosec G115
		}
	}
	return 0, fmt.Errorf(
		"%w: unknown undelete status %q",
		ErrInvalidArgument,
		name,
	)
}

func (u UndeleteStatus) memberStatus() MemberStatus {
	switch u {
	case UndeleteToLocked:
		return MemberLocked
	case UndeleteToActive:
		return MemberActive
	default:
		return MemberDeleted
	}
}

func (u UndeleteStatus) serviceStatus() ServiceStatus {
	switch u {
	case UndeleteToLocked:
		return ServiceLocked
	case UndeleteToActive:
		return ServiceActive
	default:
		return ServiceDeleted
	}
}

type Member struct {
	Id     AccountId       `json:"id"`
	Status MemberStatus    `json:"status"`
	Level  MembershipLevel `json:"level"`
}

type Service struct {
	Id      ServiceId       `json:"id"`
	ChainId ChainId         `json:"chainId"`
	Type    ServiceType     `json:"type"`
	Level   MembershipLevel `json:"level"`
	Status  ServiceStatus   `json:"status"`
}

// ServiceRegistration holds the arguments of ServiceStore.Register
type ServiceRegistration struct {
	Id      ServiceId
	ChainId ChainId
	Type    ServiceType
	Level   MembershipLevel
	Status  ServiceStatus
}

// AlertKey is the primary key of an alert
type AlertKey struct {
	Monitor AccountId `json:"monitor"`
	AlertId uint64    `json:"alertId"`
}

func (k AlertKey) Compare(other AlertKey) int {
	if c := cmp.Compare(k.Monitor, other.Monitor); c != 0 {
		return c
	}
	return cmp.Compare(k.AlertId, other.AlertId)
}

// Bytes returns the storage key
func (k AlertKey) Bytes() []byte {
	return types.AlertKey(string(k.Monitor), k.AlertId)
}

func (k AlertKey) String() string {
	return fmt.Sprintf("%s/%d", k.Monitor, k.AlertId)
}

// ParseAlertKeyBytes reverses AlertKey.Bytes
func ParseAlertKeyBytes(key []byte) (AlertKey, error) {
	monitor, id, err := types.ParseAlertKey(key)
	if err != nil {
		return AlertKey{}, err
	}
	return AlertKey{Monitor: AccountId(monitor), AlertId: id}, nil
}

// AlertIndexKey is the uniqueness key of a live alert
type AlertIndexKey struct {
	Member  AccountId `json:"member"`
	Service ServiceId `json:"service"`
	Type    AlertType `json:"type"`
}

func (k AlertIndexKey) Compare(other AlertIndexKey) int {
	if c := cmp.Compare(k.Member, other.Member); c != 0 {
		return c
	}
	if c := cmp.Compare(k.Service, other.Service); c != 0 {
		return c
	}
	return cmp.Compare(k.Type, other.Type)
}

// Bytes returns the storage key of k within an index generation
func (k AlertIndexKey) Bytes(generation uint64) []byte {
	return types.AlertIndexKey(
		generation,
		string(k.Member),
		string(k.Service),
		string(k.Type),
	)
}

func (k AlertIndexKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Member, k.Service, k.Type)
}

// ParseAlertIndexKeyBytes reverses AlertIndexKey.Bytes, returning the key
// and its generation
func ParseAlertIndexKeyBytes(key []byte) (AlertIndexKey, uint64, error) {
	generation, member, service, alertType, err := types.ParseAlertIndexKey(key)
	if err != nil {
		return AlertIndexKey{}, 0, err
	}
	return AlertIndexKey{
		Member:  AccountId(member),
		Service: ServiceId(service),
		Type:    AlertType(alertType),
	}, generation, nil
}

type Alert struct {
	Monitor AccountId `json:"monitor"`
	AlertId uint64    `json:"alertId"`
	Member  AccountId `json:"member"`
	Service ServiceId `json:"service"`
	Domain  DomainId  `json:"domain"`
	Type    AlertType `json:"type"`
}

// Key returns the primary key of the alert
func (a Alert) Key() AlertKey {
	return AlertKey{Monitor: a.Monitor, AlertId: a.AlertId}
}

// IndexKey returns the uniqueness key of the alert
func (a Alert) IndexKey() AlertIndexKey {
	return AlertIndexKey{Member: a.Member, Service: a.Service, Type: a.Type}
}

// AlertRegistration holds the arguments of AlertRegistry.Register
type AlertRegistration struct {
	AlertId uint64
	Member  AccountId
	Service ServiceId
	Domain  DomainId
	Type    AlertType
}

func validateAccountId(id AccountId) error {
	if id == "" || len(id) > MaxAccountIdLength {
		return fmt.Errorf(
			"%w: account id must be 1-%d bytes",
			ErrInvalidArgument,
			MaxAccountIdLength,
		)
	}
	return nil
}

func validateBounded[T ~string](field string, v T, allowEmpty bool) error {
	if (!allowEmpty && v == "") || len(v) > MaxIdLength {
		return fmt.Errorf(
			"%w: %s must be at most %d bytes",
			ErrInvalidArgument,
			field,
			MaxIdLength,
		)
	}
	return nil
}

func validateLevel(level MembershipLevel) error {
	if !level.valid() {
		return fmt.Errorf(
			"%w: level %d out of range",
			ErrInvalidArgument,
			level,
		)
	}
	return nil
}
