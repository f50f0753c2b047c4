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
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/blinklabs-io/roster/database"
)

// ServiceStore holds service records. Every mutation is curator-gated
type ServiceStore struct {
	r *Registry
}

// Get returns the service record for id
func (s *ServiceStore) Get(id ServiceId) (Service, error) {
	var svc Service
	err := s.r.view(func(txn *database.Txn) error {
		var err error
		svc, err = mustGetService(txn, id)
		return err
	})
	return svc, err
}

// List returns every service ordered by id
func (s *ServiceStore) List() ([]Service, error) {
	var ret []Service
	err := s.r.view(func(txn *database.Txn) error {
		var err error
		ret, err = scanServices(txn)
		return err
	})
	slices.SortFunc(ret, func(a, b Service) int {
		return strings.Compare(string(a.Id), string(b.Id))
	})
	return ret, err
}

func validateServiceRegistration(reg ServiceRegistration) error {
	if err := validateBounded("service id", reg.Id, false); err != nil {
		return err
	}
	if err := validateBounded("chain id", reg.ChainId, true); err != nil {
		return err
	}
	if err := validateLevel(reg.Level); err != nil {
		return err
	}
	if !reg.Type.valid() {
		return fmt.Errorf("%w: service type %d", ErrInvalidArgument, reg.Type)
	}
	if !reg.Status.valid() {
		return fmt.Errorf("%w: service status %d", ErrInvalidArgument, reg.Status)
	}
	return nil
}

// Register creates a service with the caller-supplied initial status
func (s *ServiceStore) Register(
	ctx context.Context,
	origin Origin,
	reg ServiceRegistration,
) error {
	return s.r.mutate(ctx, "register_service", func(txn *database.Txn) (notification, error) {
		if _, err := requireCurator(txn, origin); err != nil {
			return notification{}, err
		}
		if err := validateServiceRegistration(reg); err != nil {
			return notification{}, err
		}
		_, found, err := getService(txn, reg.Id)
		if err != nil {
			return notification{}, err
		}
		if found {
			return notification{}, fmt.Errorf("%w: service %s", ErrAlreadyExists, reg.Id)
		}
		svc := Service(reg)
		if err := putService(txn, svc); err != nil {
			return notification{}, err
		}
		return notification{
			eventType: ServiceRegisteredEventType,
			subject:   string(svc.Id),
			data:      ServiceRegisteredEvent{Service: svc},
		}, nil
	})
}

// Lock moves id to Locked unless it is Deleted
func (s *ServiceStore) Lock(ctx context.Context, origin Origin, id ServiceId) error {
	return s.transition(ctx, "lock_service", origin, id, func(cur ServiceStatus) bool {
		return cur != ServiceDeleted
	}, ServiceLocked)
}

// Unlock moves id from Locked to Active
func (s *ServiceStore) Unlock(ctx context.Context, origin Origin, id ServiceId) error {
	return s.transition(ctx, "unlock_service", origin, id, func(cur ServiceStatus) bool {
		return cur == ServiceLocked
	}, ServiceActive)
}

// Delete moves id to Deleted from any status
func (s *ServiceStore) Delete(ctx context.Context, origin Origin, id ServiceId) error {
	return s.transition(ctx, "delete_service", origin, id, func(ServiceStatus) bool {
		return true
	}, ServiceDeleted)
}

// Undelete moves id out of Deleted, to the status chosen with
// WithUndeleteStatus
func (s *ServiceStore) Undelete(ctx context.Context, origin Origin, id ServiceId) error {
	return s.transition(ctx, "undelete_service", origin, id, func(cur ServiceStatus) bool {
		return cur == ServiceDeleted
	}, s.r.undeleteStatus.serviceStatus())
}

// UpdateLevel sets the required membership level of id
func (s *ServiceStore) UpdateLevel(
	ctx context.Context,
	origin Origin,
	id ServiceId,
	level MembershipLevel,
) error {
	return s.r.mutate(ctx, "update_service_level", func(txn *database.Txn) (notification, error) {
		if _, err := requireCurator(txn, origin); err != nil {
			return notification{}, err
		}
		if err := validateBounded("service id", id, false); err != nil {
			return notification{}, err
		}
		if err := validateLevel(level); err != nil {
			return notification{}, err
		}
		svc, err := mustGetService(txn, id)
		if err != nil {
			return notification{}, err
		}
		prev := svc.Level
		svc.Level = level
		if err := putService(txn, svc); err != nil {
			return notification{}, err
		}
		return notification{
			eventType: ServiceLevelUpdatedEventType,
			subject:   string(id),
			data: ServiceLevelUpdatedEvent{
				Service:  id,
				Previous: prev,
				Current:  level,
			},
		}, nil
	})
}

func (s *ServiceStore) transition(
	ctx context.Context,
	op string,
	origin Origin,
	id ServiceId,
	allowed func(ServiceStatus) bool,
	next ServiceStatus,
) error {
	return s.r.mutate(ctx, op, func(txn *database.Txn) (notification, error) {
		if _, err := requireCurator(txn, origin); err != nil {
			return notification{}, err
		}
		if err := validateBounded("service id", id, false); err != nil {
			return notification{}, err
		}
		svc, err := mustGetService(txn, id)
		if err != nil {
			return notification{}, err
		}
		if !allowed(svc.Status) {
			return notification{}, fmt.Errorf(
				"%w: service %s is %s",
				ErrInvalidTransition,
				id,
				svc.Status,
			)
		}
		prev := svc.Status
		svc.Status = next
		if err := putService(txn, svc); err != nil {
			return notification{}, err
		}
		return notification{
			eventType: ServiceStatusUpdatedEventType,
			subject:   string(id),
			data: ServiceStatusUpdatedEvent{
				Service:  id,
				Previous: prev,
				Current:  next,
			},
		}, nil
	})
}

func mustGetService(txn *database.Txn, id ServiceId) (Service, error) {
	svc, found, err := getService(txn, id)
	if err != nil {
		return Service{}, err
	}
	if !found {
		return Service{}, fmt.Errorf("%w: %s", ErrServiceNotFound, id)
	}
	return svc, nil
}
