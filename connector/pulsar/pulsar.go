// Package pulsar adapts an Apache Pulsar consumer and producer into this
// module's reactive-streams contracts via the bridge package.
package pulsar

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/apache/pulsar-client-go/pulsar"
	"github.com/flowkit/reactor"
	"github.com/flowkit/reactor/bridge"
)

// Source streams messages received from a Pulsar consumer.
type Source struct {
	*bridge.FromChannel
	client   pulsar.Client
	consumer pulsar.Consumer
}

// NewSource connects with clientOptions, subscribes with consumerOptions,
// and returns a Publisher over the messages received, until ctx is
// cancelled.
func NewSource(ctx context.Context, clientOptions *pulsar.ClientOptions,
	consumerOptions *pulsar.ConsumerOptions) (*Source, error) {
	client, err := pulsar.NewClient(*clientOptions)
	if err != nil {
		return nil, fmt.Errorf("pulsar: new client: %w", err)
	}
	consumer, err := client.Subscribe(*consumerOptions)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("pulsar: subscribe: %w", err)
	}

	ch := make(chan any)
	source := &Source{FromChannel: bridge.NewFromChannel(ch), client: client, consumer: consumer}
	go source.run(ctx, ch)
	return source, nil
}

func (s *Source) run(ctx context.Context, ch chan any) {
	defer close(ch)
	defer s.consumer.Close()
	defer s.client.Close()
	for {
		select {
		case <-ctx.Done():
			return
		default:
			message, err := s.consumer.Receive(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Error("pulsar: receive failed",
					slog.Group("connector", "kind", "pulsar"), slog.Any("error", err))
				continue
			}
			s.consumer.Ack(message)
			ch <- message
		}
	}
}

// Sink publishes every element of a Publisher to a Pulsar producer.
// pulsar.Message and string elements are accepted.
type Sink struct {
	client    pulsar.Client
	producer  pulsar.Producer
	toChannel *bridge.ToChannel
	done      chan struct{}
}

// NewSink connects with clientOptions, creates a producer with
// producerOptions, and subscribes to publisher.
func NewSink(ctx context.Context, clientOptions *pulsar.ClientOptions,
	producerOptions *pulsar.ProducerOptions, publisher reactor.Publisher) (*Sink, error) {
	client, err := pulsar.NewClient(*clientOptions)
	if err != nil {
		return nil, fmt.Errorf("pulsar: new client: %w", err)
	}
	producer, err := client.CreateProducer(*producerOptions)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("pulsar: create producer: %w", err)
	}

	toChannel := bridge.NewToChannel(publisher, 16)
	sink := &Sink{client: client, producer: producer, toChannel: toChannel, done: make(chan struct{})}
	go sink.run(ctx)
	return sink, nil
}

func (s *Sink) run(ctx context.Context) {
	defer close(s.done)
	defer s.producer.Close()
	defer s.client.Close()
	for element := range s.toChannel.Out() {
		var err error
		switch message := element.(type) {
		case pulsar.Message:
			_, err = s.producer.Send(ctx, &pulsar.ProducerMessage{Payload: message.Payload()})
		case string:
			_, err = s.producer.Send(ctx, &pulsar.ProducerMessage{Payload: []byte(message)})
		default:
			slog.Error("pulsar: sink received an unsupported element type",
				slog.Group("connector", "kind", "pulsar"), slog.Any("type", fmt.Sprintf("%T", message)))
			continue
		}
		if err != nil {
			slog.Error("pulsar: send failed",
				slog.Group("connector", "kind", "pulsar"), slog.Any("error", err))
		}
	}
}

// Await blocks until the upstream publisher has completed or failed.
func (s *Sink) Await() error {
	<-s.done
	return s.toChannel.Err()
}
