// Package nats adapts a NATS JetStream pull consumer and publisher into
// this module's reactive-streams contracts via the bridge package.
package nats

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/flowkit/reactor"
	"github.com/flowkit/reactor/bridge"
	"github.com/nats-io/nats.go"
)

// PullMaxWaiting bounds how many pending pull requests the server keeps
// queued for a Source's consumer.
var PullMaxWaiting = 128

// FetchBatchSize is how many messages a Source fetches from its pull
// consumer per round.
var FetchBatchSize = 16

// Source streams messages fetched from a NATS JetStream pull consumer.
type Source struct {
	*bridge.FromChannel
	conn *nats.Conn
}

// NewSource connects to url and returns a Publisher over the messages
// received on subjectName via a pull-based JetStream consumer, until ctx
// is cancelled.
func NewSource(ctx context.Context, subjectName, url string) (*Source, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats: connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("nats: jetstream context: %w", err)
	}
	sub, err := js.PullSubscribe(subjectName, "flowkit-reactor", nats.PullMaxWaiting(PullMaxWaiting))
	if err != nil {
		return nil, fmt.Errorf("nats: pull subscribe: %w", err)
	}

	ch := make(chan any)
	source := &Source{FromChannel: bridge.NewFromChannel(ch), conn: conn}
	go source.run(ctx, sub, ch)
	return source, nil
}

func (s *Source) run(ctx context.Context, sub *nats.Subscription, ch chan any) {
	defer close(ch)
	defer sub.Drain()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		messages, err := sub.Fetch(FetchBatchSize, nats.Context(ctx))
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("nats: fetch failed",
				slog.Group("connector", "kind", "nats.jetstream"), slog.Any("error", err))
			continue
		}
		for _, msg := range messages {
			if err := msg.Ack(); err != nil {
				slog.Error("nats: ack failed",
					slog.Group("connector", "kind", "nats.jetstream"), slog.Any("error", err))
			}
			ch <- msg
		}
	}
}

// Sink publishes every element of a Publisher to a NATS JetStream subject.
// Elements must be []byte.
type Sink struct {
	conn      *nats.Conn
	js        nats.JetStreamContext
	subject   string
	toChannel *bridge.ToChannel
	done      chan struct{}
}

// NewSink connects to url and subscribes to publisher, publishing its
// []byte elements to subjectName.
func NewSink(subjectName, url string, publisher reactor.Publisher) (*Sink, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats: connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("nats: jetstream context: %w", err)
	}
	toChannel := bridge.NewToChannel(publisher, 16)
	sink := &Sink{conn: conn, js: js, subject: subjectName, toChannel: toChannel, done: make(chan struct{})}
	go sink.run()
	return sink, nil
}

func (s *Sink) run() {
	defer close(s.done)
	defer s.conn.Close()
	for element := range s.toChannel.Out() {
		payload, ok := element.([]byte)
		if !ok {
			slog.Error("nats: sink received a non-[]byte element",
				slog.Group("connector", "kind", "nats.jetstream"))
			continue
		}
		if _, err := s.js.Publish(s.subject, payload); err != nil {
			slog.Error("nats: publish failed",
				slog.Group("connector", "kind", "nats.jetstream"), slog.Any("error", err))
		}
	}
}

// Await blocks until the upstream publisher has completed or failed.
func (s *Sink) Await() error {
	<-s.done
	return s.toChannel.Err()
}
