// Package kafka adapts an Apache Kafka consumer group and producer into
// this module's reactive-streams contracts via the bridge package.
package kafka

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"
	"github.com/flowkit/reactor"
	"github.com/flowkit/reactor/bridge"
)

// Source streams messages claimed by a Kafka consumer group.
type Source struct {
	*bridge.FromChannel
	consumer sarama.ConsumerGroup
}

// NewSource joins groupID on addrs and returns a Publisher over the
// messages claimed from topics. Consuming runs until ctx is cancelled.
func NewSource(ctx context.Context, addrs []string, groupID string,
	config *sarama.Config, topics ...string) (*Source, error) {
	consumerGroup, err := sarama.NewConsumerGroup(addrs, groupID, config)
	if err != nil {
		return nil, fmt.Errorf("kafka: new consumer group: %w", err)
	}

	ch := make(chan any)
	handler := &groupHandler{ready: make(chan struct{}), out: ch}
	source := &Source{FromChannel: bridge.NewFromChannel(ch), consumer: consumerGroup}
	go source.run(ctx, topics, handler)
	return source, nil
}

func (s *Source) run(ctx context.Context, topics []string, handler *groupHandler) {
	defer close(handler.out)
	defer s.consumer.Close()
	for {
		if err := s.consumer.Consume(ctx, topics, handler); err != nil {
			slog.Error("kafka: consume failed",
				slog.Group("connector", "kind", "kafka"), slog.Any("error", err))
		}
		handler.ready = make(chan struct{})
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// groupHandler implements sarama.ConsumerGroupHandler, forwarding every
// claimed message into the Source's channel.
type groupHandler struct {
	ready chan struct{}
	out   chan any
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error {
	close(h.ready)
	return nil
}

func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession,
	claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message := <-claim.Messages():
			if message != nil {
				session.MarkMessage(message, "")
				h.out <- message
			}
		case <-session.Context().Done():
			return session.Context().Err()
		}
	}
}

// Sink publishes every element of a Publisher to a Kafka topic via a
// sarama.SyncProducer. Elements must be *sarama.ProducerMessage.
type Sink struct {
	producer  sarama.SyncProducer
	toChannel *bridge.ToChannel
	done      chan struct{}
}

// NewSink subscribes to publisher and produces its *sarama.ProducerMessage
// elements to their configured topic and partition.
func NewSink(addrs []string, config *sarama.Config, publisher reactor.Publisher) (*Sink, error) {
	producer, err := sarama.NewSyncProducer(addrs, config)
	if err != nil {
		return nil, fmt.Errorf("kafka: new sync producer: %w", err)
	}
	toChannel := bridge.NewToChannel(publisher, 16)
	sink := &Sink{producer: producer, toChannel: toChannel, done: make(chan struct{})}
	go sink.run()
	return sink, nil
}

func (s *Sink) run() {
	defer close(s.done)
	defer s.producer.Close()
	for element := range s.toChannel.Out() {
		message, ok := element.(*sarama.ProducerMessage)
		if !ok {
			slog.Error("kafka: sink received a non-ProducerMessage element",
				slog.Group("connector", "kind", "kafka"))
			continue
		}
		if _, _, err := s.producer.SendMessage(message); err != nil {
			slog.Error("kafka: send message failed",
				slog.Group("connector", "kind", "kafka"), slog.Any("error", err))
		}
	}
}

// Await blocks until the upstream publisher has completed or failed.
func (s *Sink) Await() error {
	<-s.done
	return s.toChannel.Err()
}
