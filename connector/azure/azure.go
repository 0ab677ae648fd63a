// Package azure adapts Azure Blob Storage listing/downloading and
// uploading into this module's reactive-streams contracts via the bridge
// package.
package azure

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"github.com/flowkit/reactor"
	"github.com/flowkit/reactor/bridge"
)

// SourceConfig configures a Blob Storage Source.
type SourceConfig struct {
	Container string
	Prefix    string
	// Flat ignores blob prefixes (virtual directories) when true.
	Flat bool
}

// Object pairs a blob name with its content.
type Object struct {
	Key  string
	Data io.ReadCloser
}

// Source streams every blob under a container prefix as an Object.
type Source struct {
	*bridge.FromChannel
	client          *azblob.Client
	containerClient *container.Client
	config          *SourceConfig
}

// NewSource returns a Publisher over every blob under config's container
// and prefix, until ctx is cancelled or listing completes.
func NewSource(ctx context.Context, client *azblob.Client, config *SourceConfig) *Source {
	ch := make(chan any)
	source := &Source{
		FromChannel:     bridge.NewFromChannel(ch),
		client:          client,
		containerClient: client.ServiceClient().NewContainerClient(config.Container),
		config:          config,
	}
	go source.run(ctx, ch)
	return source
}

func (s *Source) run(ctx context.Context, ch chan any) {
	defer close(ch)
	s.listBlobsHierarchy(ctx, &s.config.Prefix, nil, ch)
}

func (s *Source) listBlobsHierarchy(ctx context.Context, prefix, marker *string, ch chan any) {
	pager := s.containerClient.NewListBlobsHierarchyPager("/", &container.ListBlobsHierarchyOptions{
		Prefix: prefix,
		Marker: marker,
	})

	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			slog.Error("azure: list blobs failed",
				slog.Group("connector", "kind", "azure.blob"), slog.Any("error", err))
			return
		}
		marker = resp.Marker

		if !s.config.Flat && resp.Segment.BlobPrefixes != nil {
			for _, prefix := range resp.Segment.BlobPrefixes {
				s.listBlobsHierarchy(ctx, prefix.Name, nil, ch)
			}
		}

		for _, blob := range resp.Segment.BlobItems {
			download, err := s.client.DownloadStream(ctx, s.config.Container, *blob.Name, nil)
			if err != nil {
				slog.Error("azure: download blob failed",
					slog.Group("connector", "kind", "azure.blob"), slog.Any("error", err))
				continue
			}
			select {
			case ch <- Object{Key: *blob.Name, Data: download.Body}:
			case <-ctx.Done():
				return
			}
		}
	}

	if marker != nil && *marker != "" {
		s.listBlobsHierarchy(ctx, prefix, marker, ch)
	}
}

// SinkConfig configures a Blob Storage Sink.
type SinkConfig struct {
	Container     string
	Parallelism   int
	UploadOptions *blockblob.UploadStreamOptions
}

// Sink uploads every element of a Publisher to Azure Blob Storage.
// Elements must be Object or *Object.
type Sink struct {
	client    *azblob.Client
	config    *SinkConfig
	toChannel *bridge.ToChannel
	done      chan struct{}
}

// NewSink subscribes to publisher and uploads its Object elements to
// config.Container using config.Parallelism concurrent writers.
func NewSink(ctx context.Context, client *azblob.Client, config *SinkConfig,
	publisher reactor.Publisher) *Sink {
	if config.Parallelism < 1 {
		config.Parallelism = 1
	}
	toChannel := bridge.NewToChannel(publisher, config.Parallelism)
	sink := &Sink{client: client, config: config, toChannel: toChannel, done: make(chan struct{})}
	go sink.uploadBlobs(ctx)
	return sink
}

func (s *Sink) uploadBlobs(ctx context.Context) {
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
					err = s.uploadBlob(ctx, &object)
				case *Object:
					err = s.uploadBlob(ctx, object)
				default:
					slog.Error("azure: sink received an unsupported element type",
						slog.Group("connector", "kind", "azure.blob"),
						slog.String("type", fmt.Sprintf("%T", object)))
				}
				if err != nil {
					slog.Error("azure: upload blob failed",
						slog.Group("connector", "kind", "azure.blob"), slog.Any("error", err))
				}
			}
		}()
	}
	wg.Wait()
}

func (s *Sink) uploadBlob(ctx context.Context, object *Object) error {
	defer object.Data.Close()
	_, err := s.client.UploadStream(ctx, s.config.Container, object.Key, object.Data, s.config.UploadOptions)
	if err != nil {
		return fmt.Errorf("azure: upload blob %s: %w", object.Key, err)
	}
	return nil
}

// Await blocks until the upstream publisher has completed or failed.
func (s *Sink) Await() error {
	<-s.done
	return s.toChannel.Err()
}
