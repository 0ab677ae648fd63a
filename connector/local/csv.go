package local

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"

	"github.com/flowkit/reactor"
	"github.com/flowkit/reactor/bridge"
)

// CSVSource streams a CSV file downstream one record at a time; each
// streaming element is a []string.
type CSVSource struct {
	*bridge.FromChannel
}

// NewCSVSource opens fileName and returns a Publisher over its records.
func NewCSVSource(fileName string) (*CSVSource, error) {
	file, err := os.Open(fileName)
	if err != nil {
		return nil, fmt.Errorf("local: open csv source %q: %w", fileName, err)
	}
	ch := make(chan any)
	go func() {
		defer file.Close()
		defer close(ch)
		reader := csv.NewReader(file)
		for {
			record, err := reader.Read()
			if err != nil {
				if err.Error() != "EOF" {
					slog.Error("local: csv source read failed",
						slog.Group("connector", "kind", "csv", "path", fileName),
						slog.Any("error", err))
				}
				return
			}
			ch <- record
		}
	}()
	return &CSVSource{FromChannel: bridge.NewFromChannel(ch)}, nil
}

// CSVSink subscribes to a Publisher of []string rows and writes them to a
// CSV file.
type CSVSink struct {
	toChannel *bridge.ToChannel
	done      chan struct{}
}

// NewCSVSink subscribes to publisher and writes its []string rows to
// fileName.
func NewCSVSink(publisher reactor.Publisher, fileName string) (*CSVSink, error) {
	file, err := os.Create(fileName)
	if err != nil {
		return nil, fmt.Errorf("local: create csv sink %q: %w", fileName, err)
	}
	toChannel := bridge.NewToChannel(publisher, 16)
	sink := &CSVSink{toChannel: toChannel, done: make(chan struct{})}
	go func() {
		defer close(sink.done)
		defer file.Close()
		writer := csv.NewWriter(file)
		defer writer.Flush()
		for element := range toChannel.Out() {
			record, ok := element.([]string)
			if !ok {
				slog.Error("local: csv sink received a non-[]string element",
					slog.Group("connector", "kind", "csv", "path", fileName))
				continue
			}
			if err := writer.Write(record); err != nil {
				slog.Error("local: csv sink write failed",
					slog.Group("connector", "kind", "csv", "path", fileName),
					slog.Any("error", err))
			}
		}
	}()
	return sink, nil
}

// Await blocks until the upstream publisher has completed or failed.
func (s *CSVSink) Await() error {
	<-s.done
	return s.toChannel.Err()
}
