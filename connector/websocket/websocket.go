// Package websocket adapts a gorilla/websocket client connection into
// this module's reactive-streams contracts via the bridge package.
package websocket

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/flowkit/reactor"
	"github.com/flowkit/reactor/bridge"
	ws "github.com/gorilla/websocket"
)

// Message is a single WebSocket frame. MsgType is one of the message type
// constants from RFC 6455 section 11.8 (ws.TextMessage, ws.BinaryMessage).
type Message struct {
	MsgType int
	Payload []byte
}

// Source streams messages read from a WebSocket connection.
type Source struct {
	*bridge.FromChannel
	conn *ws.Conn
}

// NewSource dials url with the default dialer and returns a Publisher over
// the messages it receives, until ctx is cancelled or the peer sends a
// close frame.
func NewSource(ctx context.Context, url string) (*Source, error) {
	return NewSourceWithDialer(ctx, url, ws.DefaultDialer)
}

// NewSourceWithDialer is NewSource with a caller-supplied dialer.
func NewSourceWithDialer(ctx context.Context, url string, dialer *ws.Dialer) (*Source, error) {
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket: dial: %w", err)
	}

	ch := make(chan any)
	source := &Source{FromChannel: bridge.NewFromChannel(ch), conn: conn}
	go source.run(ctx, ch)
	return source, nil
}

func (s *Source) run(ctx context.Context, ch chan any) {
	defer close(ch)
	defer s.conn.Close()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		messageType, payload, err := s.conn.ReadMessage()
		if err != nil {
			slog.Error("websocket: read failed",
				slog.Group("connector", "kind", "websocket"), slog.Any("error", err))
			return
		}
		if messageType == ws.CloseMessage {
			return
		}
		ch <- Message{MsgType: messageType, Payload: payload}
	}
}

// Sink writes every element of a Publisher to a WebSocket connection.
// Message, *Message, string and []byte elements are all accepted.
type Sink struct {
	conn      *ws.Conn
	toChannel *bridge.ToChannel
	done      chan struct{}
}

// NewSink dials url with the default dialer and subscribes to publisher.
func NewSink(url string, publisher reactor.Publisher) (*Sink, error) {
	return NewSinkWithDialer(url, ws.DefaultDialer, publisher)
}

// NewSinkWithDialer is NewSink with a caller-supplied dialer.
func NewSinkWithDialer(url string, dialer *ws.Dialer, publisher reactor.Publisher) (*Sink, error) {
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket: dial: %w", err)
	}
	toChannel := bridge.NewToChannel(publisher, 16)
	sink := &Sink{conn: conn, toChannel: toChannel, done: make(chan struct{})}
	go sink.run()
	return sink, nil
}

func (s *Sink) run() {
	defer close(s.done)
	defer s.conn.Close()
	for element := range s.toChannel.Out() {
		var err error
		switch m := element.(type) {
		case Message:
			err = s.conn.WriteMessage(m.MsgType, m.Payload)
		case *Message:
			err = s.conn.WriteMessage(m.MsgType, m.Payload)
		case string:
			err = s.conn.WriteMessage(ws.TextMessage, []byte(m))
		case []byte:
			err = s.conn.WriteMessage(ws.BinaryMessage, m)
		default:
			slog.Error("websocket: sink received an unsupported element type",
				slog.Group("connector", "kind", "websocket"), slog.Any("type", fmt.Sprintf("%T", m)))
			continue
		}
		if err != nil {
			slog.Error("websocket: write failed",
				slog.Group("connector", "kind", "websocket"), slog.Any("error", err))
		}
	}
}

// Await blocks until the upstream publisher has completed or failed.
func (s *Sink) Await() error {
	<-s.done
	return s.toChannel.Err()
}
