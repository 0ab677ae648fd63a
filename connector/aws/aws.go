// Package aws adapts AWS S3 object listing/reading and writing into this
// module's reactive-streams contracts via the bridge package.
package aws

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/flowkit/reactor"
	"github.com/flowkit/reactor/bridge"
)

const defaultChunkSize = 5 * 1024 * 1024 // 5 MB

// SourceConfig configures an S3 Source.
type SourceConfig struct {
	// Bucket is the name of the S3 bucket to read from.
	Bucket string
	// Path is the prefix within the bucket to list. The bucket root is
	// used if empty.
	Path string
	// Parallelism is the number of concurrent object readers. Defaults
	// to 1.
	Parallelism int
	// ChunkSize is the number of bytes read per object. Defaults to 5 MB.
	ChunkSize int
}

// Object pairs an S3 object key with its content.
type Object struct {
	Key  string
	Data io.Reader
}

// Source streams every object under a bucket prefix as an Object.
type Source struct {
	*bridge.FromChannel
	client *s3.Client
}

// NewSource lists every object under config.Path in config.Bucket and
// returns a Publisher over their contents, read with config.Parallelism
// concurrent workers.
func NewSource(ctx context.Context, client *s3.Client, config *SourceConfig) *Source {
	if config.Parallelism < 1 {
		config.Parallelism = 1
	}
	if config.ChunkSize < 1 {
		config.ChunkSize = defaultChunkSize
	}

	ch := make(chan any)
	keys := make(chan string, config.Parallelism)
	source := &Source{FromChannel: bridge.NewFromChannel(ch), client: client}
	go source.listObjects(ctx, config, keys)
	go source.getObjects(ctx, config, keys, ch)
	return source
}

func (s *Source) listObjects(ctx context.Context, config *SourceConfig, keys chan<- string) {
	defer close(keys)
	var continuationToken *string
	for {
		listResponse, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            &config.Bucket,
			Prefix:            &config.Path,
			ContinuationToken: continuationToken,
		})
		if err != nil {
			slog.Error("aws: list objects failed",
				slog.Group("connector", "kind", "aws.s3"), slog.Any("error", err))
			return
		}
		for _, object := range listResponse.Contents {
			keys <- *object.Key
		}
		continuationToken = listResponse.NextContinuationToken
		if continuationToken == nil {
			return
		}
	}
}

func (s *Source) getObjects(ctx context.Context, config *SourceConfig, keys <-chan string, out chan any) {
	var wg sync.WaitGroup
	for i := 0; i < config.Parallelism; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case key, ok := <-keys:
					if !ok {
						return
					}
					object, err := s.client.GetObject(ctx, &s3.GetObjectInput{
						Bucket: &config.Bucket,
						Key:    &key,
					})
					if err != nil {
						slog.Error("aws: get object failed",
							slog.Group("connector", "kind", "aws.s3"),
							slog.String("key", key), slog.Any("error", err))
						continue
					}
					data := make([]byte, config.ChunkSize)
					n, err := bufio.NewReaderSize(object.Body, config.ChunkSize).Read(data)
					if err != nil && err != io.EOF {
						slog.Error("aws: read object failed",
							slog.Group("connector", "kind", "aws.s3"),
							slog.String("key", key), slog.Any("error", err))
						continue
					}
					out <- Object{Key: key, Data: bytes.NewReader(data[:n])}
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	wg.Wait()
	close(out)
}

// SinkConfig configures an S3 Sink.
type SinkConfig struct {
	Bucket      string
	Parallelism int
}

// Sink writes every element of a Publisher to S3. Elements must be Object
// or *Object, using Key as the destination object key.
type Sink struct {
	client    *s3.Client
	config    *SinkConfig
	toChannel *bridge.ToChannel
	done      chan struct{}
}

// NewSink subscribes to publisher and writes its Object elements to
// config.Bucket using config.Parallelism concurrent writers.
func NewSink(ctx context.Context, client *s3.Client, config *SinkConfig,
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
	var wg sync.WaitGroup
	for i := 0; i < s.config.Parallelism; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for element := range s.toChannel.Out() {
				var err error
				switch object := element.(type) {
				case Object:
					err = s.writeObject(ctx, &object)
				case *Object:
					err = s.writeObject(ctx, object)
				default:
					slog.Error("aws: sink received an unsupported element type",
						slog.Group("connector", "kind", "aws.s3"),
						slog.String("type", fmt.Sprintf("%T", object)))
				}
				if err != nil {
					slog.Error("aws: write object failed",
						slog.Group("connector", "kind", "aws.s3"), slog.Any("error", err))
				}
			}
		}()
	}
	wg.Wait()
}

func (s *Sink) writeObject(ctx context.Context, object *Object) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &s.config.Bucket,
		Key:    &object.Key,
		Body:   object.Data,
	})
	if err != nil {
		return fmt.Errorf("aws: put object %s: %w", object.Key, err)
	}
	return nil
}

// Await blocks until the upstream publisher has completed or failed.
func (s *Sink) Await() error {
	<-s.done
	return s.toChannel.Err()
}
