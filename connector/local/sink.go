package local

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"

	"github.com/flowkit/reactor"
	"github.com/flowkit/reactor/bridge"
)

// FileSink subscribes to a Publisher and writes every element to a file,
// one per line, via fmt.Sprint.
type FileSink struct {
	toChannel *bridge.ToChannel
	done      chan struct{}
}

// NewFileSink subscribes to publisher and writes its elements to fileName,
// truncating any existing content. Call Await to block until the
// publisher completes and the file has been flushed and closed.
func NewFileSink(publisher reactor.Publisher, fileName string) (*FileSink, error) {
	file, err := os.Create(fileName)
	if err != nil {
		return nil, fmt.Errorf("local: create file sink %q: %w", fileName, err)
	}
	toChannel := bridge.NewToChannel(publisher, 16)
	sink := &FileSink{toChannel: toChannel, done: make(chan struct{})}
	go func() {
		defer close(sink.done)
		defer file.Close()
		writer := bufio.NewWriter(file)
		defer writer.Flush()
		for element := range toChannel.Out() {
			if _, err := fmt.Fprintln(writer, element); err != nil {
				slog.Error("local: file sink write failed",
					slog.Group("connector", "kind", "file", "path", fileName),
					slog.Any("error", err))
			}
		}
	}()
	return sink, nil
}

// Await blocks until the upstream publisher has completed or failed and
// every buffered element has been written.
func (s *FileSink) Await() error {
	<-s.done
	return s.toChannel.Err()
}

// StdoutSink subscribes to a Publisher and prints every element to
// standard output.
type StdoutSink struct {
	toChannel *bridge.ToChannel
	done      chan struct{}
}

// NewStdoutSink subscribes to publisher and prints its elements.
func NewStdoutSink(publisher reactor.Publisher) *StdoutSink {
	toChannel := bridge.NewToChannel(publisher, 16)
	sink := &StdoutSink{toChannel: toChannel, done: make(chan struct{})}
	go func() {
		defer close(sink.done)
		for element := range toChannel.Out() {
			fmt.Println(element)
		}
	}()
	return sink
}

// Await blocks until the upstream publisher has completed or failed.
func (s *StdoutSink) Await() error {
	<-s.done
	return s.toChannel.Err()
}

// IgnoreSink subscribes to a Publisher and discards every element; useful
// for load-testing a processor chain without paying for a real sink.
type IgnoreSink struct {
	toChannel *bridge.ToChannel
	done      chan struct{}
}

// NewIgnoreSink subscribes to publisher and discards its elements.
func NewIgnoreSink(publisher reactor.Publisher) *IgnoreSink {
	toChannel := bridge.NewToChannel(publisher, 16)
	sink := &IgnoreSink{toChannel: toChannel, done: make(chan struct{})}
	go func() {
		defer close(sink.done)
		for range toChannel.Out() {
		}
	}()
	return sink
}

// Await blocks until the upstream publisher has completed or failed.
func (s *IgnoreSink) Await() error {
	<-s.done
	return s.toChannel.Err()
}
