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


package kafkasink

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/blinklabs-io/roster/event"
	kafka "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	closed   int
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed > 0 {
		return io.ErrClosedPipe
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed++
	return nil
}

func (w *recordingWriter) sent() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.messages...)
}

func testForwarder() (*Forwarder, *recordingWriter) {
	w := &recordingWriter{}
	return newForwarder(w, slog.New(slog.NewJSONHandler(io.Discard, nil))), w
}

func TestNewValidates(t *testing.T) {
	_, err := New(Config{Topic: "roster"})
	require.ErrorIs(t, err, ErrNoBrokers)
	_, err = New(Config{Brokers: []string{"localhost:9092"}})
	require.ErrorIs(t, err, ErrNoTopic)
	f, err := New(Config{Brokers: []string{"localhost:9092"}, Topic: "roster"})
	require.NoError(t, err)
	f.Close()
}

func TestForwardsAttachedTypes(t *testing.T) {
	const (
		locked  event.EventType = "registry.member.status"
		ignored event.EventType = "epoch.transition"
	)
	f, w := testForwarder()
	bus := event.NewEventBus(nil, nil)
	f.Attach(bus, locked)

	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	bus.Publish(locked, event.Event{Type: locked, Timestamp: ts, Data: map[string]string{"member": "alice"}})
	bus.Publish(ignored, event.NewEvent(ignored, 7))

	msgs := w.sent()
	require.Len(t, msgs, 1)
	assert.Equal(t, []byte(locked), msgs[0].Key)
	assert.Equal(t, ts, msgs[0].Time)
	require.Len(t, msgs[0].Headers, 1)
	assert.Equal(t, eventTypeHeader, msgs[0].Headers[0].Key)

	var got struct {
		Timestamp time.Time         `json:"timestamp"`
		Type      event.EventType   `json:"type"`
		Data      map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(msgs[0].Value, &got))
	assert.Equal(t, locked, got.Type)
	assert.True(t, ts.Equal(got.Timestamp))
	assert.Equal(t, "alice", got.Data["member"])

	bus.Stop()
	assert.Equal(t, 1, w.closed)
}

func TestClosedWriterDropsSubscription(t *testing.T) {
	const typ event.EventType = "registry.alert.cleared"
	f, w := testForwarder()
	bus := event.NewEventBus(nil, nil)
	defer bus.Stop()
	f.Attach(bus, typ)
	f.Close()

	bus.Publish(typ, event.NewEvent(typ, 1))
	bus.Publish(typ, event.NewEvent(typ, 2))
	assert.Empty(t, w.sent())
	assert.Equal(t, 1, w.closed)
}

func TestUnencodableEventKeepsSubscription(t *testing.T) {
	const typ event.EventType = "registry.alert.registered"
	f, w := testForwarder()
	bus := event.NewEventBus(nil, nil)
	defer bus.Stop()
	f.Attach(bus, typ)

	bus.Publish(typ, event.NewEvent(typ, func() {}))
	bus.Publish(typ, event.NewEvent(typ, "ok"))
	assert.Len(t, w.sent(), 1)
}
