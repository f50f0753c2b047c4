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

	"github.com/blinklabs-io/roster/database"
	"github.com/blinklabs-io/roster/database/types"
)

// RoleStore holds the curator and monitor sets
type RoleStore struct {
	r *Registry
}

func isCurator(txn *database.Txn, id AccountId) (bool, error) {
	return txn.Has(types.CuratorKey(string(id)))
}

func isMonitor(txn *database.Txn, id AccountId) (bool, error) {
	return txn.Has(types.MonitorKey(string(id)))
}

func curatorCount(txn *database.Txn) (int, error) {
	keys, err := txn.Keys([]byte(types.CuratorKeyPrefix))
	return len(keys), err
}

// IsCurator reports whether id is a curator. A storage failure is logged and
// reported as false
func (s *RoleStore) IsCurator(id AccountId) bool {
	return s.lookup("curator", id, isCurator)
}

// IsMonitor reports whether id is a monitor. A storage failure is logged and
// reported as false
func (s *RoleStore) IsMonitor(id AccountId) bool {
	return s.lookup("monitor", id, isMonitor)
}

func (s *RoleStore) lookup(
	role string,
	id AccountId,
	fn func(*database.Txn, AccountId) (bool, error),
) bool {
	var ok bool
	err := s.r.view(func(txn *database.Txn) error {
		var err error
		ok, err = fn(txn, id)
		return err
	})
	if err != nil {
		s.r.logger.Error(
			"role lookup failed",
			"role", role,
			"account", id,
			"error", err,
		)
		return false
	}
	return ok
}

// Curators lists the curator set in key order
func (s *RoleStore) Curators() ([]AccountId, error) {
	return s.list(types.CuratorKeyPrefix)
}

// Monitors lists the monitor set in key order
func (s *RoleStore) Monitors() ([]AccountId, error) {
	return s.list(types.MonitorKeyPrefix)
}

func (s *RoleStore) list(prefix string) ([]AccountId, error) {
	var ret []AccountId
	err := s.r.view(func(txn *database.Txn) error {
		var err error
		ret, err = scanAccounts(txn, prefix)
		return err
	})
	return ret, err
}

// AssignCurator adds id to the curator set. It is not gated on the origin:
// the host decides who may dispatch it
func (s *RoleStore) AssignCurator(
	ctx context.Context,
	origin Origin,
	id AccountId,
) error {
	return s.r.mutate(ctx, "assign_curator", func(txn *database.Txn) (notification, error) {
		if err := validateAccountId(id); err != nil {
			return notification{}, err
		}
		ok, err := isCurator(txn, id)
		if err != nil {
			return notification{}, err
		}
		if ok {
			return notification{}, fmt.Errorf("%w: %s", ErrAlreadyCurator, id)
		}
		count, err := curatorCount(txn)
		if err != nil {
			return notification{}, err
		}
		if count >= MaxCurators {
			return notification{}, ErrCuratorLimitReached
		}
		if err := txn.Set(types.CuratorKey(string(id)), presenceMarker); err != nil {
			return notification{}, err
		}
		return notification{
			eventType: CuratorAssignedEventType,
			subject:   string(id),
			data:      RoleEvent{Account: id, Origin: origin.String()},
		}, nil
	})
}

// RemoveCurator removes id from the curator set. It requires the root origin
// and never removes the last curator
func (s *RoleStore) RemoveCurator(
	ctx context.Context,
	origin Origin,
	id AccountId,
) error {
	return s.r.mutate(ctx, "remove_curator", func(txn *database.Txn) (notification, error) {
		if err := ensureRoot(origin); err != nil {
			return notification{}, err
		}
		if err := validateAccountId(id); err != nil {
			return notification{}, err
		}
		ok, err := isCurator(txn, id)
		if err != nil {
			return notification{}, err
		}
		if !ok {
			return notification{}, fmt.Errorf("%w: %s", ErrNotACurator, id)
		}
		count, err := curatorCount(txn)
		if err != nil {
			return notification{}, err
		}
		if count <= 1 {
			return notification{}, ErrCannotRemoveLastCurator
		}
		if err := txn.Delete(types.CuratorKey(string(id))); err != nil {
			return notification{}, err
		}
		return notification{
			eventType: CuratorRemovedEventType,
			subject:   string(id),
			data:      RoleEvent{Account: id, Origin: origin.String()},
		}, nil
	})
}

// AssignMonitor adds a registered member to the monitor set. Assigning an
// existing monitor succeeds and notifies again
func (s *RoleStore) AssignMonitor(
	ctx context.Context,
	origin Origin,
	id AccountId,
) error {
	return s.r.mutate(ctx, "assign_monitor", func(txn *database.Txn) (notification, error) {
		if _, err := requireCurator(txn, origin); err != nil {
			return notification{}, err
		}
		if err := validateAccountId(id); err != nil {
			return notification{}, err
		}
		_, found, err := getMember(txn, id)
		if err != nil {
			return notification{}, err
		}
		if !found {
			return notification{}, fmt.Errorf("%w: %s", ErrMemberNotFound, id)
		}
		if err := txn.Set(types.MonitorKey(string(id)), presenceMarker); err != nil {
			return notification{}, err
		}
		return notification{
			eventType: MonitorAssignedEventType,
			subject:   string(id),
			data:      RoleEvent{Account: id, Origin: origin.String()},
		}, nil
	})
}

// RemoveMonitor removes id from the monitor set
func (s *RoleStore) RemoveMonitor(
	ctx context.Context,
	origin Origin,
	id AccountId,
) error {
	return s.r.mutate(ctx, "remove_monitor", func(txn *database.Txn) (notification, error) {
		if _, err := requireCurator(txn, origin); err != nil {
			return notification{}, err
		}
		if err := validateAccountId(id); err != nil {
			return notification{}, err
		}
		ok, err := isMonitor(txn, id)
		if err != nil {
			return notification{}, err
		}
		if !ok {
			return notification{}, fmt.Errorf("%w: %s", ErrNotAMonitor, id)
		}
		if err := txn.Delete(types.MonitorKey(string(id))); err != nil {
			return notification{}, err
		}
		return notification{
			eventType: MonitorRemovedEventType,
			subject:   string(id),
			data:      RoleEvent{Account: id, Origin: origin.String()},
		}, nil
	})
}
