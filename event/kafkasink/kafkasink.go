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


// Package kafkasink forwards event bus events to a Kafka topic as JSON
// messages. It plugs into the bus as a remote subscriber.
package kafkasink

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/blinklabs-io/roster/event"
	kafka "github.com/segmentio/kafka-go"
)

var (
	ErrNoBrokers = errors.New("kafka forwarding requires at least one broker")
	ErrNoTopic   = errors.New("kafka forwarding requires a topic")
)

const eventTypeHeader = "event-type"

// messageWriter is the part of kafka.Writer the forwarder uses
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Config struct {
	Logger  *slog.Logger
	Brokers []string
	Topic   string
}

// Message is the JSON value of every forwarded record
type Message struct {
	Timestamp time.Time       `json:"timestamp"`
	Type      event.EventType `json:"type"`
	Data      any             `json:"data"`
}

// Forwarder implements event.Subscriber. Writes are asynchronous so a slow
// broker never holds up the publisher
type Forwarder struct {
	writer    messageWriter
	logger    *slog.Logger
	closeOnce sync.Once
	closeErr  error
}

func New(cfg Config) (*Forwarder, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}
	if cfg.Topic == "" {
		return nil, ErrNoTopic
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	logger = logger.With("component", "kafka")
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Warn(
					"failed to forward events",
					"topic", cfg.Topic,
					"count", len(messages),
					"error", err,
				)
			}
		},
	}
	return newForwarder(writer, logger), nil
}

func newForwarder(writer messageWriter, logger *slog.Logger) *Forwarder {
	return &Forwarder{writer: writer, logger: logger}
}

// Attach registers the forwarder on bus for each of types
func (f *Forwarder) Attach(bus *event.EventBus, types ...event.EventType) {
	for _, t := range types {
		bus.RegisterSubscriber(t, f)
	}
}

// Deliver encodes evt and hands it to the writer. Only a closed writer is
// reported back, which makes the bus drop the subscription
func (f *Forwarder) Deliver(evt event.Event) error {
	value, err := json.Marshal(Message{
		Timestamp: evt.Timestamp,
		Type:      evt.Type,
		Data:      evt.Data,
	})
	if err != nil {
		f.logger.Warn("failed to encode event", "type", evt.Type, "error", err)
		return nil
	}
	msg := kafka.Message{
		Key:   []byte(evt.Type),
		Value: value,
		Time:  evt.Timestamp,
		Headers: []kafka.Header{
			{Key: eventTypeHeader, Value: []byte(evt.Type)},
		},
	}
	if err := f.writer.WriteMessages(context.Background(), msg); err != nil {
		if errors.Is(err, io.ErrClosedPipe) {
			return err
		}
		f.logger.Warn("failed to queue event", "type", evt.Type, "error", err)
	}
	return nil
}

// Close flushes pending messages. The bus calls it once per attached type,
// only the first call reaches the writer
func (f *Forwarder) Close() {
	f.closeOnce.Do(func() {
		f.closeErr = f.writer.Close()
		if f.closeErr != nil {
			f.logger.Warn("failed to close kafka writer", "error", f.closeErr)
		}
	})
}
