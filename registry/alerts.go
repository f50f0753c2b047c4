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
	"strconv"
	"time"

	"github.com/blinklabs-io/roster/database"
	"github.com/blinklabs-io/roster/database/models"
)

// AlertRegistry holds alert records and the derived index over (member,
// service, alert type). Both are updated in the same transaction, and the
// index can be rebuilt from the alerts at any time
type AlertRegistry struct {
	r *Registry
}

// RebuildResult summarizes an index rebuild
type RebuildResult struct {
	Epoch    uint64
	Alerts   int
	Entries  int
	Removed  int
	Duration time.Duration
}

// IndexReport lists the differences between the index and the alerts
type IndexReport struct {
	// Missing holds keys of live alerts that have no index entry
	Missing []AlertIndexKey
	// Stale holds index entries with no live alert behind them
	Stale []AlertIndexKey
}

// Consistent reports whether the index matches the alerts exactly
func (r IndexReport) Consistent() bool {
	return len(r.Missing) == 0 && len(r.Stale) == 0
}

func validateAlertRegistration(reg AlertRegistration) error {
	if err := validateAccountId(reg.Member); err != nil {
		return err
	}
	if err := validateBounded("service id", reg.Service, false); err != nil {
		return err
	}
	if err := validateBounded("domain id", reg.Domain, true); err != nil {
		return err
	}
	return validateBounded("alert type", reg.Type, true)
}

// Register stores an alert from the signing monitor. The member and the
// service must both be Active, and no live alert may share the (member,
// service, type) triple. An alert already stored under the same key is
// replaced, and its index entry dropped with it
func (a *AlertRegistry) Register(
	ctx context.Context,
	origin Origin,
	reg AlertRegistration,
) error {
	return a.r.mutate(ctx, "register_alert", func(txn *database.Txn) (notification, error) {
		caller, err := ensureSigned(origin)
		if err != nil {
			return notification{}, err
		}
		if err := validateAlertRegistration(reg); err != nil {
			return notification{}, err
		}
		ok, err := isMonitor(txn, caller)
		if err != nil {
			return notification{}, err
		}
		if !ok {
			return notification{}, fmt.Errorf("%w: %s", ErrNotAMonitor, caller)
		}
		member, err := mustGetMember(txn, reg.Member)
		if err != nil {
			return notification{}, err
		}
		if member.Status != MemberActive {
			return notification{}, fmt.Errorf(
				"%w: %s is %s",
				ErrMemberNotActive,
				reg.Member,
				member.Status,
			)
		}
		svc, err := mustGetService(txn, reg.Service)
		if err != nil {
			return notification{}, err
		}
		if svc.Status != ServiceActive {
			return notification{}, fmt.Errorf(
				"%w: %s is %s",
				ErrServiceNotActive,
				reg.Service,
				svc.Status,
			)
		}
		alert := Alert{
			Monitor: caller,
			AlertId: reg.AlertId,
			Member:  reg.Member,
			Service: reg.Service,
			Domain:  reg.Domain,
			Type:    reg.Type,
		}
		ix, err := openIndex(txn)
		if err != nil {
			return notification{}, err
		}
		dup, err := ix.has(alert.IndexKey())
		if err != nil {
			return notification{}, err
		}
		if dup {
			return notification{}, fmt.Errorf(
				"%w: %s",
				ErrDuplicateAlert,
				alert.IndexKey(),
			)
		}
		prior, replaced, err := getAlert(txn, alert.Key())
		if err != nil {
			return notification{}, err
		}
		if replaced {
			if err := ix.remove(prior.IndexKey()); err != nil {
				return notification{}, err
			}
		}
		if err := putAlert(txn, alert); err != nil {
			return notification{}, err
		}
		if err := ix.add(alert.IndexKey()); err != nil {
			return notification{}, err
		}
		evt := AlertRegisteredEvent{Alert: alert}
		if replaced {
			evt.Replaced = &prior
		}
		return notification{
			eventType: AlertRegisteredEventType,
			subject:   alert.Key().String(),
			data:      evt,
		}, nil
	})
}

// Clear removes an alert the signing monitor registered under alertId
func (a *AlertRegistry) Clear(
	ctx context.Context,
	origin Origin,
	alertId uint64,
) error {
	return a.r.mutate(ctx, "clear_alert", func(txn *database.Txn) (notification, error) {
		caller, err := ensureSigned(origin)
		if err != nil {
			return notification{}, err
		}
		alert, err := mustGetAlert(txn, AlertKey{Monitor: caller, AlertId: alertId})
		if err != nil {
			return notification{}, err
		}
		return removeAlert(txn, alert, caller)
	})
}

// ClearAsCurator removes any monitor's alert
func (a *AlertRegistry) ClearAsCurator(
	ctx context.Context,
	origin Origin,
	monitor AccountId,
	alertId uint64,
) error {
	return a.r.mutate(ctx, "clear_alert_as_curator", func(txn *database.Txn) (notification, error) {
		caller, err := requireCurator(txn, origin)
		if err != nil {
			return notification{}, err
		}
		if err := validateAccountId(monitor); err != nil {
			return notification{}, err
		}
		alert, err := mustGetAlert(txn, AlertKey{Monitor: monitor, AlertId: alertId})
		if err != nil {
			return notification{}, err
		}
		return removeAlert(txn, alert, caller)
	})
}

// removeAlert deletes the record and the index entry derived from the
// stored record, whoever is clearing it
func removeAlert(
	txn *database.Txn,
	alert Alert,
	clearedBy AccountId,
) (notification, error) {
	ix, err := openIndex(txn)
	if err != nil {
		return notification{}, err
	}
	if err := txn.Delete(alert.Key().Bytes()); err != nil {
		return notification{}, err
	}
	if err := ix.remove(alert.IndexKey()); err != nil {
		return notification{}, err
	}
	return notification{
		eventType: AlertClearedEventType,
		subject:   alert.Key().String(),
		data:      AlertClearedEvent{Alert: alert, ClearedBy: clearedBy},
	}, nil
}

func mustGetAlert(txn *database.Txn, key AlertKey) (Alert, error) {
	alert, found, err := getAlert(txn, key)
	if err != nil {
		return Alert{}, err
	}
	if !found {
		return Alert{}, fmt.Errorf("%w: %s", ErrAlertNotFound, key)
	}
	return alert, nil
}

// RebuildIndex derives the index again from the alerts. The new index is
// written in batches beside the live one and replaces it in a single commit.
// Concurrent calls for the same epoch share a single rebuild
func (a *AlertRegistry) RebuildIndex(ctx context.Context) (RebuildResult, error) {
	return a.rebuild(ctx, 0)
}

// OnEpochStart rebuilds the index for the epoch that just began
func (a *AlertRegistry) OnEpochStart(ctx context.Context, epoch uint64) error {
	res, err := a.rebuild(ctx, epoch)
	if err != nil {
		return err
	}
	a.r.logger.Info(
		"rebuilt alert index",
		"epoch", epoch,
		"alerts", res.Alerts,
		"entries", res.Entries,
		"removed", res.Removed,
		"duration", res.Duration,
	)
	return nil
}

func (a *AlertRegistry) rebuild(ctx context.Context, epoch uint64) (RebuildResult, error) {
	key := "rebuild/" + strconv.FormatUint(epoch, 10)
	v, err, _ := a.r.rebuildGroup.Do(key, func() (any, error) {
		a.r.mu.Lock()
		defer a.r.mu.Unlock()
		var res RebuildResult
		err := a.r.run(ctx, "rebuild_index", func(ctx context.Context) (notification, error) {
			var n notification
			var err error
			res, n, err = a.rebuildLocked(ctx, epoch)
			return n, err
		})
		if err != nil {
			return RebuildResult{}, err
		}
		if m := a.r.metrics; m != nil {
			m.rebuilds.Inc()
			m.rebuildDuration.Observe(res.Duration.Seconds())
			m.indexEntries.Set(float64(res.Entries))
		}
		return res, nil
	})
	if err != nil {
		return RebuildResult{}, err
	}
	return v.(RebuildResult), nil
}

// rebuildLocked builds the next index generation from the alerts, switches
// to it together with the rebuild record and journal row, and then drops the
// retired generation. The caller holds r.mu, so no alert changes underneath
func (a *AlertRegistry) rebuildLocked(
	ctx context.Context,
	epoch uint64,
) (RebuildResult, notification, error) {
	if err := a.r.ready(); err != nil {
		return RebuildResult{}, notification{}, err
	}
	start := time.Now()
	var alerts []Alert
	err := a.r.db.View(func(txn *database.Txn) error {
		var err error
		alerts, err = scanAlerts(txn)
		return err
	})
	if err != nil {
		return RebuildResult{}, notification{}, err
	}
	build, err := a.r.buildIndexGeneration(ctx, alerts)
	if err != nil {
		return RebuildResult{}, notification{}, err
	}
	res := RebuildResult{
		Epoch:   epoch,
		Alerts:  len(alerts),
		Entries: build.entries,
		Removed: build.retired,
	}
	n, err := a.r.commit(ctx, func(txn *database.Txn) (notification, error) {
		if err := setIndexGeneration(txn, build.next); err != nil {
			return notification{}, err
		}
		res.Duration = time.Since(start)
		if err := a.r.db.AddIndexRebuild(
			&models.IndexRebuild{
				Epoch:      epoch,
				Alerts:     res.Alerts,
				Entries:    res.Entries,
				DurationMs: res.Duration.Milliseconds(),
			},
			txn,
		); err != nil {
			return notification{}, err
		}
		return notification{
			eventType: AlertIndexRebuiltEventType,
			subject:   fmt.Sprintf("epoch/%d", epoch),
			data: AlertIndexRebuiltEvent{
				Epoch:   epoch,
				Alerts:  res.Alerts,
				Entries: res.Entries,
				Removed: res.Removed,
			},
		}, nil
	})
	if err != nil {
		return RebuildResult{}, notification{}, err
	}
	a.r.dropIndexGeneration(context.WithoutCancel(ctx), build.live)
	return res, n, nil
}

// Get returns the alert stored under key
func (a *AlertRegistry) Get(key AlertKey) (Alert, error) {
	var alert Alert
	err := a.r.view(func(txn *database.Txn) error {
		var err error
		alert, err = mustGetAlert(txn, key)
		return err
	})
	return alert, err
}

// List returns every alert ordered by key
func (a *AlertRegistry) List() ([]Alert, error) {
	var ret []Alert
	err := a.r.view(func(txn *database.Txn) error {
		var err error
		ret, err = scanAlerts(txn)
		return err
	})
	slices.SortFunc(ret, func(x, y Alert) int {
		return x.Key().Compare(y.Key())
	})
	return ret, err
}

// IndexEntries returns every index entry ordered by key
func (a *AlertRegistry) IndexEntries() ([]AlertIndexKey, error) {
	var ret []AlertIndexKey
	err := a.r.view(func(txn *database.Txn) error {
		ix, err := openIndex(txn)
		if err != nil {
			return err
		}
		ret, err = ix.keys()
		return err
	})
	slices.SortFunc(ret, AlertIndexKey.Compare)
	return ret, err
}

// HasIndexEntry reports whether key is indexed
func (a *AlertRegistry) HasIndexEntry(key AlertIndexKey) (bool, error) {
	var ok bool
	err := a.r.view(func(txn *database.Txn) error {
		ix, err := openIndex(txn)
		if err != nil {
			return err
		}
		ok, err = ix.has(key)
		return err
	})
	return ok, err
}

// VerifyIndex compares the index with the alerts in one snapshot without
// changing either
func (a *AlertRegistry) VerifyIndex() (IndexReport, error) {
	var report IndexReport
	err := a.r.view(func(txn *database.Txn) error {
		alerts, err := scanAlerts(txn)
		if err != nil {
			return err
		}
		ix, err := openIndex(txn)
		if err != nil {
			return err
		}
		indexed, err := ix.keys()
		if err != nil {
			return err
		}
		want := make(map[AlertIndexKey]struct{}, len(alerts))
		for _, alert := range alerts {
			want[alert.IndexKey()] = struct{}{}
		}
		have := make(map[AlertIndexKey]struct{}, len(indexed))
		for _, key := range indexed {
			have[key] = struct{}{}
			if _, ok := want[key]; !ok {
				report.Stale = append(report.Stale, key)
			}
		}
		for key := range want {
			if _, ok := have[key]; !ok {
				report.Missing = append(report.Missing, key)
			}
		}
		return nil
	})
	slices.SortFunc(report.Missing, AlertIndexKey.Compare)
	slices.SortFunc(report.Stale, AlertIndexKey.Compare)
	return report, err
}
