package local

import (
	"github.com/flowkit/reactor"
	"github.com/flowkit/reactor/bridge"
)

// ChanSource adapts a plain Go channel the caller already owns into a
// Publisher, for wiring hand-rolled producers into a processor chain
// without writing a dedicated connector.
type ChanSource struct {
	*bridge.FromChannel
}

// NewChanSource returns a Publisher draining in.
func NewChanSource(in <-chan any) *ChanSource {
	return &ChanSource{FromChannel: bridge.NewFromChannel(in)}
}

// ChanSink adapts a Publisher into a plain Go channel the caller drains
// itself.
type ChanSink struct {
	*bridge.ToChannel
}

// NewChanSink subscribes to publisher and returns the channel of its
// elements, buffered to bufferSize.
func NewChanSink(publisher reactor.Publisher, bufferSize int) *ChanSink {
	return &ChanSink{ToChannel: bridge.NewToChannel(publisher, bufferSize)}
}
