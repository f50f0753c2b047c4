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

// Package epoch derives fixed-length epochs from a genesis time and
// publishes an event on the bus each time a boundary is crossed
package epoch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/blinklabs-io/roster/event"
	"github.com/prometheus/client_golang/prometheus"
)

const DefaultClockTolerance = 100 * time.Millisecond

// retryDelay is how long the loop waits before re-reading the clock when a
// wake-up landed before the expected boundary
const retryDelay = 10 * time.Millisecond

var ErrInvalidEpochLength = errors.New("epoch length must be positive")

// Config holds configuration for the Clock
type Config struct {
	Logger       *slog.Logger
	EventBus     *event.EventBus
	PromRegistry prometheus.Registerer
	// Genesis is the start of epoch 0
	Genesis time.Time
	// EpochLength is the duration of every epoch
	EpochLength time.Duration
	// ClockTolerance is how late a wake-up may be before it is logged as drift
	ClockTolerance time.Duration
}

// Clock tracks the current epoch and publishes event.EpochTransitionEvent
// once for each epoch it observes starting
type Clock struct {
	config  Config
	logger  *slog.Logger
	metrics *clockMetrics
	cancel  context.CancelFunc
	nowFunc func() time.Time
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool

	epochEmitMu      sync.Mutex
	lastEmittedEpoch uint64
	emitted          bool
}

// New creates a Clock. It does not start ticking until Start is called
func New(cfg Config) (*Clock, error) {
	if cfg.EpochLength <= 0 {
		return nil, ErrInvalidEpochLength
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.ClockTolerance == 0 {
		cfg.ClockTolerance = DefaultClockTolerance
	}
	c := &Clock{
		config:  cfg,
		logger:  cfg.Logger.With("component", "epoch"),
		nowFunc: time.Now,
	}
	if cfg.PromRegistry != nil {
		c.metrics = newClockMetrics(cfg.PromRegistry)
	}
	return c, nil
}

// EpochAt returns the epoch containing t. Times before genesis are epoch 0
func (c *Clock) EpochAt(t time.Time) uint64 {
	if t.Before(c.config.Genesis) {
		return 0
	}
	return uint64(t.Sub(c.config.Genesis) / c.config.EpochLength)
}

// EpochStart returns the wall-clock start of epoch
func (c *Clock) EpochStart(epoch uint64) time.Time {
	return c.config.Genesis.Add(time.Duration(epoch) * c.config.EpochLength)
}

// CurrentEpoch returns the epoch containing the current time
func (c *Clock) CurrentEpoch() uint64 {
	return c.EpochAt(c.nowFunc())
}

// TimeUntilNextEpoch returns the duration until the next boundary
func (c *Clock) TimeUntilNextEpoch() time.Duration {
	now := c.nowFunc()
	return c.EpochStart(c.EpochAt(now) + 1).Sub(now)
}

// MarkEpochEmitted records that a transition into epoch was published.
// It returns false if that epoch, or a later one, was already recorded
func (c *Clock) MarkEpochEmitted(epoch uint64) bool {
	c.epochEmitMu.Lock()
	defer c.epochEmitMu.Unlock()
	if c.emitted && epoch <= c.lastEmittedEpoch {
		return false
	}
	c.lastEmittedEpoch = epoch
	c.emitted = true
	return true
}

// LastEmittedEpoch returns the last epoch recorded by MarkEpochEmitted
func (c *Clock) LastEmittedEpoch() (uint64, bool) {
	c.epochEmitMu.Lock()
	defer c.epochEmitMu.Unlock()
	return c.lastEmittedEpoch, c.emitted
}

// SetLastEmittedEpoch seeds the tracker from stored state, such as the
// epoch of the last recorded index rebuild
func (c *Clock) SetLastEmittedEpoch(epoch uint64) {
	c.epochEmitMu.Lock()
	defer c.epochEmitMu.Unlock()
	c.lastEmittedEpoch = epoch
	c.emitted = true
}

// Start begins the boundary loop. If no epoch has been recorded yet, the
// current epoch is treated as already emitted so only future boundaries
// publish
func (c *Clock) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}
	c.running = true
	if _, ok := c.LastEmittedEpoch(); !ok {
		c.SetLastEmittedEpoch(c.CurrentEpoch())
	}
	var loopCtx context.Context
	loopCtx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go c.run(loopCtx)
}

// Stop halts the loop and waits for it to exit
func (c *Clock) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.cancel()
	c.mu.Unlock()
	c.wg.Wait()
}

func (c *Clock) run(ctx context.Context) {
	defer c.wg.Done()
	for {
		now := c.nowFunc()
		next := c.EpochStart(c.EpochAt(now) + 1)
		wait := next.Sub(now)
		if wait <= 0 {
			wait = retryDelay
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		woke := c.nowFunc()
		if drift := woke.Sub(next); drift > c.config.ClockTolerance {
			c.logger.Warn(
				"epoch clock drift detected",
				"expected", next,
				"drift", drift,
			)
		}
		c.check(woke)
	}
}

// check publishes a transition if now falls in an epoch later than the last
// one emitted
func (c *Clock) check(now time.Time) bool {
	epoch := c.EpochAt(now)
	prev, _ := c.LastEmittedEpoch()
	if !c.MarkEpochEmitted(epoch) {
		return false
	}
	if epoch > prev+1 {
		c.logger.Warn(
			"skipped epochs",
			"from", prev,
			"to", epoch,
		)
	}
	c.logger.Info(
		"epoch transition",
		"previous_epoch", prev,
		"epoch", epoch,
	)
	if c.metrics != nil {
		c.metrics.current.Set(float64(epoch))
		c.metrics.transitions.Inc()
	}
	if c.config.EventBus != nil {
		c.config.EventBus.Publish(
			event.EpochTransitionEventType,
			event.NewEvent(
				event.EpochTransitionEventType,
				event.EpochTransitionEvent{
					PreviousEpoch: prev,
					NewEpoch:      epoch,
					BoundaryTime:  c.EpochStart(epoch),
				},
			),
		)
	}
	return true
}
