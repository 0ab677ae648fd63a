// Package gcp adapts Google Cloud Storage object iteration and writing
// into this module's reactive-streams contracts via the bridge package.
package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/flowkit/reactor"
	"github.com/flowkit/reactor/bridge"
	"google.golang.org/api/iterator"
)

// SourceConfig configures a Storage Source.
type SourceConfig struct {
	Bucket    string
	Prefix    string
	Delimiter string
}

// Object pairs a GCS object name with its content.
type Object struct {
	Key  string
	Data io.ReadCloser
}

// Source streams every object matching a bucket query as an Object.
type Source struct {
	*bridge.FromChannel
	client *storage.Client
}

// NewSource returns a Publisher over every object under config's bucket
// and prefix, until ctx is cancelled or iteration completes.
func NewSource(ctx context.Context, client *storage.Client, config *SourceConfig) *Source {
	ch := make(chan any)
	source := &Source{FromChannel: bridge.NewFromChannel(ch), client: client}
	go source.run(ctx, config, ch)
	return source
}

func (s *Source) run(ctx context.Context, config *SourceConfig, ch chan any) {
	defer close(ch)

	bucketHandle := s.client.Bucket(config.Bucket)
	if _, err := bucketHandle.Attrs(ctx); err != nil {
		slog.Error("gcp: bucket attrs failed",
			slog.Group("connector", "kind", "gcp.storage"),
			slog.String("bucket", config.Bucket), slog.Any("error", err))
		return
	}

	it := bucketHandle.Objects(ctx, &storage.Query{Prefix: config.Prefix, Delimiter: config.Delimiter})
	for {
		attrs, err := it.Next()
		if err != nil {
			if !errors.Is(err, iterator.Done) {
				slog.Error("gcp: list object failed",
					slog.Group("connector", "kind", "gcp.storage"),
					slog.String("bucket", config.Bucket), slog.Any("error", err))
			}
			return
		}

		reader, err := bucketHandle.Object(attrs.Name).NewReader(ctx)
		if err != nil {
			slog.Error("gcp: open reader failed",
				slog.Group("connector", "kind", "gcp.storage"),
				slog.String("object", attrs.Name), slog.Any("error", err))
			continue
		}

		select {
		case ch <- Object{Key: attrs.Name, Data: reader}:
		case <-ctx.Done():
			return
		}
	}
}

// SinkConfig configures a Storage Sink.
type SinkConfig struct {
	Bucket      string
	Parallelism int
}

// Sink writes every element of a Publisher to GCS. Elements must be
// Object or *Object; Data is closed after each write.
type Sink struct {
	client    *storage.Client
	config    *SinkConfig
	toChannel *bridge.ToChannel
	done      chan struct{}
}

// NewSink subscribes to publisher and writes its Object elements to
// config.Bucket using config.Parallelism concurrent writers.
func NewSink(ctx context.Context, client *storage.Client, config *SinkConfig,
	publisher reactor.Publisher) *Sink {
	if config.Parallelism < 1 {
		config.Parallelism = 1
	}
	toChannel := bridge.NewToChannel(publisher, config.Parallelism)
	sink := &Sink{client: client, config: config, toChannel: toChannel, done: make(chan struct{})}
	go sink.writeObjects(ctx)
	return sink
}

func (s *Sink) writeObjects(ctx context.Context) {
	defer close(s.done)
	bucketHandle := s.client.Bucket(s.config.Bucket)
	var wg sync.WaitGroup
	for i := 0; i < s.config.Parallelism; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for element := range s.toChannel.Out() {
				var err error
				switch object := element.(type) {
				case Object:
					err = s.writeObject(ctx, bucketHandle, &object)
				case *Object:
					err = s.writeObject(ctx, bucketHandle, object)
				default:
					slog.Error("gcp: sink received an unsupported element type",
						slog.Group("connector", "kind", "gcp.storage"),
						slog.String("type", fmt.Sprintf("%T", object)))
				}
				if err != nil {
					slog.Error("gcp: write object failed",
						slog.Group("connector", "kind", "gcp.storage"), slog.Any("error", err))
				}
			}
		}()
	}
	wg.Wait()
}

func (s *Sink) writeObject(ctx context.Context, bucketHandle *storage.BucketHandle, object *Object) error {
	defer object.Data.Close()

	writer := bucketHandle.Object(object.Key).NewWriter(ctx)
	if _, err := io.Copy(writer, object.Data); err != nil {
		return fmt.Errorf("gcp: write object %s: %w", object.Key, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("gcp: close writer %s: %w", object.Key, err)
	}
	return nil
}

// Await blocks until the upstream publisher has completed or failed.
func (s *Sink) Await() error {
	<-s.done
	return s.toChannel.Err()
}
