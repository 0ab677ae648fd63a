// Package redis adapts Redis Pub/Sub and Redis Streams into this module's
// reactive-streams contracts via the bridge package.
package redis

import (
	"context"
	"log/slog"

	"github.com/flowkit/reactor"
	"github.com/flowkit/reactor/bridge"
	"github.com/redis/go-redis/v9"
)

// PubSubSource streams messages published to a Redis Pub/Sub channel.
type PubSubSource struct {
	*bridge.FromChannel
	client *redis.Client
}

// NewPubSubSource subscribes client to channel and returns a Publisher
// over the messages it receives, until ctx is cancelled.
func NewPubSubSource(ctx context.Context, client *redis.Client, channel string) (*PubSubSource, error) {
	pubSub := client.Subscribe(ctx, channel)
	if _, err := pubSub.Receive(ctx); err != nil {
		return nil, err
	}

	ch := make(chan any)
	source := &PubSubSource{FromChannel: bridge.NewFromChannel(ch), client: client}
	go source.run(ctx, pubSub, ch)
	return source, nil
}

func (s *PubSubSource) run(ctx context.Context, pubSub *redis.PubSub, ch chan any) {
	defer close(ch)
	defer pubSub.Close()
	msgs := pubSub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			ch <- msg
		}
	}
}

// PubSubSink publishes every element of a Publisher to a Redis Pub/Sub
// channel. Elements are passed to redis.Client.Publish as-is.
type PubSubSink struct {
	client    *redis.Client
	channel   string
	toChannel *bridge.ToChannel
	done      chan struct{}
}

// NewPubSubSink subscribes to publisher and publishes its elements on
// channel.
func NewPubSubSink(ctx context.Context, client *redis.Client, channel string,
	publisher reactor.Publisher) *PubSubSink {
	toChannel := bridge.NewToChannel(publisher, 16)
	sink := &PubSubSink{client: client, channel: channel, toChannel: toChannel, done: make(chan struct{})}
	go sink.run(ctx)
	return sink
}

func (s *PubSubSink) run(ctx context.Context) {
	defer close(s.done)
	for element := range s.toChannel.Out() {
		if err := s.client.Publish(ctx, s.channel, element).Err(); err != nil {
			slog.Error("redis: publish failed",
				slog.Group("connector", "kind", "redis.pubsub"), slog.Any("error", err))
		}
	}
}

// Await blocks until the upstream publisher has completed or failed.
func (s *PubSubSink) Await() error {
	<-s.done
	return s.toChannel.Err()
}

// StreamGroupConfig names the consumer group a StreamSource reads a Redis
// Stream through.
type StreamGroupConfig struct {
	Stream   string
	Group    string
	Consumer string
	StartID  string
	MkStream bool
}

// StreamSource streams entries read from a Redis Stream consumer group.
type StreamSource struct {
	*bridge.FromChannel
	client *redis.Client
}

// NewStreamSource creates cfg's consumer group if needed and returns a
// Publisher over the entries it reads, until ctx is cancelled.
func NewStreamSource(ctx context.Context, client *redis.Client, cfg StreamGroupConfig) (*StreamSource, error) {
	if err := client.XGroupCreateMkStream(ctx, cfg.Stream, cfg.Group, cfg.StartID).Err(); err != nil &&
		!isBusyGroupErr(err) {
		return nil, err
	}

	ch := make(chan any)
	source := &StreamSource{FromChannel: bridge.NewFromChannel(ch), client: client}
	go source.run(ctx, cfg, ch)
	return source, nil
}

func (s *StreamSource) run(ctx context.Context, cfg StreamGroupConfig, ch chan any) {
	defer close(ch)
	for {
		streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    cfg.Group,
			Consumer: cfg.Consumer,
			Streams:  []string{cfg.Stream, ">"},
			Count:    16,
			Block:    0,
		}).Result()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("redis: xreadgroup failed",
				slog.Group("connector", "kind", "redis.stream"), slog.Any("error", err))
			continue
		}
		for _, stream := range streams {
			for _, message := range stream.Messages {
				ch <- message
				s.client.XAck(ctx, cfg.Stream, cfg.Group, message.ID)
			}
		}
	}
}

func isBusyGroupErr(err error) bool {
	return err != nil && len(err.Error()) >= 9 && err.Error()[:9] == "BUSYGROUP"
}
