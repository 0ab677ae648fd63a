// Package local holds the connectors that depend on nothing beyond the
// standard library: files, CSV, TCP/UDP sockets, standard output, and a
// discard sink. Everything with a real third-party dependency (a broker,
// a cloud object store, a database) lives in its own nested module under
// connector/ instead, so the root module's dependency graph stays exactly
// as thin as the processor core needs.
package local

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"

	"github.com/flowkit/reactor"
	"github.com/flowkit/reactor/bridge"
)

// FileSource streams a text file downstream one line at a time. The
// streaming element is a line of text, without its trailing newline.
type FileSource struct {
	*bridge.FromChannel
}

// NewFileSource opens fileName and returns a Publisher over its lines.
// Scanning happens on a background goroutine started immediately; reading
// errors are logged and end the stream the way the upstream scan ends it.
func NewFileSource(fileName string) (*FileSource, error) {
	file, err := os.Open(fileName)
	if err != nil {
		return nil, fmt.Errorf("local: open file source %q: %w", fileName, err)
	}
	ch := make(chan any)
	go func() {
		defer file.Close()
		defer close(ch)
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			ch <- scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			slog.Error("local: file source scan failed",
				slog.Group("connector", "kind", "file", "path", fileName),
				slog.Any("error", err))
		}
	}()
	return &FileSource{FromChannel: bridge.NewFromChannel(ch)}, nil
}

var _ reactor.Publisher = (*FileSource)(nil)
