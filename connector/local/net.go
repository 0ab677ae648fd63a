package local

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"

	"github.com/flowkit/reactor/bridge"
)

// ConnType names the socket type a NetSource listens on.
type ConnType string

const (
	TCP ConnType = "tcp"
	UDP ConnType = "udp"
)

// NetSource streams newline-delimited text received over a TCP or UDP
// socket; each streaming element is one line, without its newline.
type NetSource struct {
	*bridge.FromChannel
	listener net.Listener
	conn     net.PacketConn
}

// NewNetSource listens on address using connType and returns a Publisher
// over the lines it receives.
func NewNetSource(connType ConnType, address string) (*NetSource, error) {
	ch := make(chan any)
	source := &NetSource{FromChannel: bridge.NewFromChannel(ch)}

	switch connType {
	case TCP:
		listener, err := net.Listen(string(connType), address)
		if err != nil {
			return nil, fmt.Errorf("local: listen tcp %q: %w", address, err)
		}
		source.listener = listener
		go source.acceptTCP(listener, ch)
	case UDP:
		conn, err := net.ListenPacket(string(connType), address)
		if err != nil {
			return nil, fmt.Errorf("local: listen udp %q: %w", address, err)
		}
		source.conn = conn
		go source.readUDP(conn, ch)
	default:
		return nil, fmt.Errorf("local: unknown connection type %q", connType)
	}
	return source, nil
}

func (s *NetSource) acceptTCP(listener net.Listener, ch chan any) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			close(ch)
			return
		}
		go s.readLines(conn, ch)
	}
}

func (s *NetSource) readLines(conn net.Conn, ch chan any) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		ch <- scanner.Text()
	}
	if err := scanner.Err(); err != nil {
		slog.Error("local: net source read failed",
			slog.Group("connector", "kind", "net"), slog.Any("error", err))
	}
}

func (s *NetSource) readUDP(conn net.PacketConn, ch chan any) {
	buf := make([]byte, 64*1024)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			close(ch)
			return
		}
		ch <- string(buf[:n])
	}
}

// Close stops accepting new connections or packets.
func (s *NetSource) Close() error {
	if s.listener != nil {
		return s.listener.Close()
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
