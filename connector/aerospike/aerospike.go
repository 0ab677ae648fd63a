// Package aerospike adapts Aerospike namespace scans and change polling,
// plus record writes, into this module's reactive-streams contracts via
// the bridge package.
package aerospike

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"log/slog"
	"time"

	aero "github.com/aerospike/aerospike-client-go/v6"
	"github.com/flowkit/reactor"
	"github.com/flowkit/reactor/bridge"
)

// Properties names the cluster, namespace and set a connector targets.
type Properties struct {
	Policy    *aero.ClientPolicy
	Hostname  string
	Port      int
	Namespace string
	SetName   string
}

// PollingProperties configures a Source's incremental-scan mode. A nil
// *PollingProperties makes a Source scan the namespace/set exactly once.
type PollingProperties struct {
	PollingInterval time.Duration
}

// Source streams the records of an Aerospike namespace/set, either with
// a single full scan or with a recurring scan over records updated since
// the last poll.
type Source struct {
	*bridge.FromChannel
	client *aero.Client
}

// NewSource connects using properties and returns a Publisher over the
// scanned records, until ctx is cancelled. Pass a nil scanPolicy to use
// aero.NewScanPolicy's defaults. Pass a nil polling to scan once.
func NewSource(ctx context.Context, properties *Properties, scanPolicy *aero.ScanPolicy,
	polling *PollingProperties) (*Source, error) {
	client, err := aero.NewClientWithPolicy(properties.Policy, properties.Hostname, properties.Port)
	if err != nil {
		return nil, err
	}
	if scanPolicy == nil {
		scanPolicy = aero.NewScanPolicy()
	}

	ch := make(chan any)
	source := &Source{FromChannel: bridge.NewFromChannel(ch), client: client}
	go source.run(ctx, properties, scanPolicy, polling, ch)
	return source, nil
}

func (s *Source) run(ctx context.Context, properties *Properties, scanPolicy *aero.ScanPolicy,
	polling *PollingProperties, ch chan any) {
	defer close(ch)
	defer s.client.Close()

	if polling == nil {
		s.scan(ctx, properties, scanPolicy, ch)
		return
	}

	ticker := time.NewTicker(polling.PollingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			since := t.Add(-polling.PollingInterval).UnixNano()
			scanPolicy.FilterExpression = aero.ExpGreater(aero.ExpLastUpdate(), aero.ExpIntVal(since))
			s.scan(ctx, properties, scanPolicy, ch)
		}
	}
}

func (s *Source) scan(ctx context.Context, properties *Properties, scanPolicy *aero.ScanPolicy, ch chan any) {
	recordSet, err := s.client.ScanAll(scanPolicy, properties.Namespace, properties.SetName)
	if err != nil {
		slog.Error("aerospike: scan failed",
			slog.Group("connector", "kind", "aerospike"), slog.Any("error", err))
		return
	}
	for result := range recordSet.Results() {
		if result.Err != nil {
			slog.Error("aerospike: scan record error",
				slog.Group("connector", "kind", "aerospike"), slog.Any("error", result.Err))
			continue
		}
		select {
		case ch <- result.Record:
		case <-ctx.Done():
			return
		}
	}
}

// KeyBins pairs an explicit Aerospike key with the bins to write. Use it
// to target a specific key with a Sink; use a bare aero.BinMap element
// to have Sink derive the key from a content hash.
type KeyBins struct {
	Key  *aero.Key
	Bins aero.BinMap
}

// Sink writes every element of a Publisher to Aerospike. Elements must
// be KeyBins or aero.BinMap.
type Sink struct {
	client      *aero.Client
	properties  *Properties
	writePolicy *aero.WritePolicy
	toChannel   *bridge.ToChannel
	done        chan struct{}
}

// NewSink connects using properties and subscribes to publisher, writing
// its elements with writePolicy (or aero.NewWritePolicy(0, 0) if nil).
func NewSink(properties *Properties, writePolicy *aero.WritePolicy,
	publisher reactor.Publisher) (*Sink, error) {
	client, err := aero.NewClientWithPolicy(properties.Policy, properties.Hostname, properties.Port)
	if err != nil {
		return nil, err
	}
	if writePolicy == nil {
		writePolicy = aero.NewWritePolicy(0, 0)
	}

	toChannel := bridge.NewToChannel(publisher, 16)
	sink := &Sink{client: client, properties: properties, writePolicy: writePolicy,
		toChannel: toChannel, done: make(chan struct{})}
	go sink.run()
	return sink, nil
}

func (s *Sink) run() {
	defer close(s.done)
	defer s.client.Close()
	for element := range s.toChannel.Out() {
		switch value := element.(type) {
		case KeyBins:
			if err := s.client.Put(s.writePolicy, value.Key, value.Bins); err != nil {
				slog.Error("aerospike: put failed",
					slog.Group("connector", "kind", "aerospike"), slog.Any("error", err))
			}
		case aero.BinMap:
			if err := s.putByHash(value); err != nil {
				slog.Error("aerospike: put failed",
					slog.Group("connector", "kind", "aerospike"), slog.Any("error", err))
			}
		default:
			slog.Error("aerospike: sink received an unsupported element type",
				slog.Group("connector", "kind", "aerospike"))
		}
	}
}

func (s *Sink) putByHash(bins aero.BinMap) error {
	payload, err := json.Marshal(bins)
	if err != nil {
		return err
	}
	key, err := aero.NewKey(s.properties.Namespace, s.properties.SetName, sha256.Sum256(payload))
	if err != nil {
		return err
	}
	return s.client.Put(s.writePolicy, key, bins)
}

// Await blocks until the upstream publisher has completed or failed.
func (s *Sink) Await() error {
	<-s.done
	return s.toChannel.Err()
}
