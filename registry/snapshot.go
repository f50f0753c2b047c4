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
	"time"

	"github.com/blinklabs-io/roster/database"
	"github.com/blinklabs-io/roster/database/types"
)

// State is a full copy of the registry collections. The alert index is not
// part of it; ImportState derives it again
type State struct {
	ExportedAt time.Time   `json:"exportedAt"`
	Members    []Member    `json:"members"`
	Services   []Service   `json:"services"`
	Curators   []AccountId `json:"curators"`
	Monitors   []AccountId `json:"monitors"`
	Alerts     []Alert     `json:"alerts"`
}

// ExportState copies every collection from one snapshot
func (r *Registry) ExportState() (*State, error) {
	state := &State{ExportedAt: time.Now().UTC()}
	err := r.view(func(txn *database.Txn) error {
		var err error
		if state.Members, err = scanMembers(txn); err != nil {
			return err
		}
		if state.Services, err = scanServices(txn); err != nil {
			return err
		}
		if state.Curators, err = scanAccounts(txn, types.CuratorKeyPrefix); err != nil {
			return err
		}
		if state.Monitors, err = scanAccounts(txn, types.MonitorKeyPrefix); err != nil {
			return err
		}
		state.Alerts, err = scanAlerts(txn)
		return err
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

func (s *State) validate() error {
	if len(s.Curators) == 0 {
		return fmt.Errorf("%w: state has no curators", ErrInvalidArgument)
	}
	if len(s.Curators) > MaxCurators {
		return fmt.Errorf(
			"%w: %d curators exceeds %d",
			ErrInvalidArgument,
			len(s.Curators),
			MaxCurators,
		)
	}
	members := make(map[AccountId]struct{}, len(s.Members))
	for _, m := range s.Members {
		if err := validateAccountId(m.Id); err != nil {
			return err
		}
		if !m.Status.valid() {
			return fmt.Errorf("%w: member %s status %d", ErrInvalidArgument, m.Id, m.Status)
		}
		if err := validateLevel(m.Level); err != nil {
			return err
		}
		if _, ok := members[m.Id]; ok {
			return fmt.Errorf("%w: member %s listed twice", ErrInvalidArgument, m.Id)
		}
		members[m.Id] = struct{}{}
	}
	services := make(map[ServiceId]struct{}, len(s.Services))
	for _, svc := range s.Services {
		if err := validateServiceRegistration(ServiceRegistration(svc)); err != nil {
			return err
		}
		if _, ok := services[svc.Id]; ok {
			return fmt.Errorf("%w: service %s listed twice", ErrInvalidArgument, svc.Id)
		}
		services[svc.Id] = struct{}{}
	}
	if err := uniqueAccounts("curator", s.Curators, validateAccountId); err != nil {
		return err
	}
	err := uniqueAccounts("monitor", s.Monitors, func(id AccountId) error {
		if _, ok := members[id]; !ok {
			return fmt.Errorf("%w: monitor %s", ErrMemberNotFound, id)
		}
		return nil
	})
	if err != nil {
		return err
	}
	keys := make(map[AlertKey]struct{}, len(s.Alerts))
	triples := make(map[AlertIndexKey]AlertKey, len(s.Alerts))
	for _, alert := range s.Alerts {
		if err := validateAccountId(alert.Monitor); err != nil {
			return err
		}
		if err := validateAlertRegistration(AlertRegistration{
			AlertId: alert.AlertId,
			Member:  alert.Member,
			Service: alert.Service,
			Domain:  alert.Domain,
			Type:    alert.Type,
		}); err != nil {
			return err
		}
		if _, ok := keys[alert.Key()]; ok {
			return fmt.Errorf("%w: alert %s listed twice", ErrInvalidArgument, alert.Key())
		}
		keys[alert.Key()] = struct{}{}
		// Live alerts never share a triple, so neither may an imported state
		if prior, ok := triples[alert.IndexKey()]; ok {
			return fmt.Errorf(
				"%w: alerts %s and %s share %s",
				ErrInvalidArgument,
				prior,
				alert.Key(),
				alert.IndexKey(),
			)
		}
		triples[alert.IndexKey()] = alert.Key()
	}
	return nil
}

func uniqueAccounts(role string, ids []AccountId, check func(AccountId) error) error {
	seen := make(map[AccountId]struct{}, len(ids))
	for _, id := range ids {
		if err := check(id); err != nil {
			return err
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%w: %s %s listed twice", ErrInvalidArgument, role, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// ImportState replaces every collection with state and derives the index
// again. It requires the root origin. The state is written in batches while
// readers are held back, and it takes effect in one final commit that also
// switches the index. If the import stops part way, the registry refuses
// other work until a state is imported again
func (r *Registry) ImportState(
	ctx context.Context,
	origin Origin,
	state *State,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.run(ctx, "import_state", func(ctx context.Context) (notification, error) {
		if err := ensureRoot(origin); err != nil {
			return notification{}, err
		}
		if state == nil {
			return notification{}, fmt.Errorf("%w: nil state", ErrInvalidArgument)
		}
		if err := state.validate(); err != nil {
			return notification{}, err
		}
		if err := ctx.Err(); err != nil {
			return notification{}, err
		}
		r.gate.Lock()
		defer r.gate.Unlock()
		if err := r.stageState(ctx, state); err != nil {
			return notification{}, err
		}
		build, err := r.buildIndexGeneration(ctx, state.Alerts)
		if err != nil {
			return notification{}, err
		}
		n, err := r.commit(ctx, func(txn *database.Txn) (notification, error) {
			if err := setIndexGeneration(txn, build.next); err != nil {
				return notification{}, err
			}
			if err := txn.Delete([]byte(types.ImportPendingKey)); err != nil {
				return notification{}, err
			}
			return notification{
				eventType: StateImportedEventType,
				subject:   "state",
				data: StateImportedEvent{
					Members:  len(state.Members),
					Services: len(state.Services),
					Curators: len(state.Curators),
					Monitors: len(state.Monitors),
					Alerts:   len(state.Alerts),
				},
			}, nil
		})
		if err != nil {
			return notification{}, err
		}
		r.importPending.Store(false)
		r.dropIndexGeneration(context.WithoutCancel(ctx), build.live)
		return n, nil
	})
}

// stageState marks an import as under way and then swaps the collections
// for those of state, a batch at a time
func (r *Registry) stageState(ctx context.Context, state *State) error {
	err := r.db.Update(func(txn *database.Txn) error {
		return txn.Set([]byte(types.ImportPendingKey), presenceMarker)
	})
	if err != nil {
		return err
	}
	r.importPending.Store(true)
	var old [][]byte
	err = r.db.View(func(txn *database.Txn) error {
		for _, prefix := range types.CollectionKeyPrefixes {
			keys, err := txn.Keys([]byte(prefix))
			if err != nil {
				return err
			}
			old = append(old, keys...)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := writeBatches(ctx, r, old, deleteKey); err != nil {
		return err
	}
	if err := writeBatches(ctx, r, state.Members, putMember); err != nil {
		return err
	}
	if err := writeBatches(ctx, r, state.Services, putService); err != nil {
		return err
	}
	err = writeBatches(ctx, r, state.Curators, func(txn *database.Txn, id AccountId) error {
		return txn.Set(types.CuratorKey(string(id)), presenceMarker)
	})
	if err != nil {
		return err
	}
	err = writeBatches(ctx, r, state.Monitors, func(txn *database.Txn, id AccountId) error {
		return txn.Set(types.MonitorKey(string(id)), presenceMarker)
	})
	if err != nil {
		return err
	}
	return writeBatches(ctx, r, state.Alerts, putAlert)
}
