// Package trace streams exploration steps live over TCP to any connected
// listener, using the same length-prefixed framing style the teacher's
// virtual CAN bus uses for frames: a 4-byte big-endian length prefix
// followed by the payload, here JSON instead of a fixed binary struct since
// an Event's shape varies with what fired.
package trace

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"
)

// Event is one step broadcast to every connected listener.
type Event struct {
	RunID string `json:"run_id"`
	Step  int    `json:"step"`
	Rule  string `json:"rule"`
	Error string `json:"error,omitempty"`
}

func serializeEvent(e Event) ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	framed := make([]byte, 4, 4+len(payload))
	binary.BigEndian.PutUint32(framed, uint32(len(payload)))
	return append(framed, payload...), nil
}

func deserializeEvent(payload []byte) (Event, error) {
	var e Event
	err := json.Unmarshal(payload, &e)
	return e, err
}

// Server fans one stream of Events out to every connected TCP client,
// dropping any client whose write fails.
type Server struct {
	logger   *slog.Logger
	mu       sync.Mutex
	listener net.Listener
	clients  map[net.Conn]struct{}
}

func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		logger:  logger.With("service", "[TRACE]"),
		clients: make(map[net.Conn]struct{}),
	}
}

// Listen starts accepting connections on addr in the background.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("trace: listen %s: %w", addr, err)
	}
	s.listener = ln
	go s.acceptLoop()
	return nil
}

// Addr returns the address the listener is actually bound to, useful when
// Listen was called with a ":0" port.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.clients[conn] = struct{}{}
		s.mu.Unlock()
		s.logger.Info("client connected", "remote", conn.RemoteAddr())
	}
}

// Broadcast sends e to every currently connected client, closing and
// dropping any whose write returns an error. Each write blocks until it
// completes or fails.
func (s *Server) Broadcast(e Event) {
	framed, err := serializeEvent(e)
	if err != nil {
		s.logger.Error("serialize event", "err", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.clients {
		if _, err := conn.Write(framed); err != nil {
			s.logger.Warn("dropping client", "remote", conn.RemoteAddr(), "err", err)
			conn.Close()
			delete(s.clients, conn)
		}
	}
}

// Close stops accepting connections and disconnects every client.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.clients {
		conn.Close()
		delete(s.clients, conn)
	}
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

// Client connects to a trace Server and yields Events as they arrive.
type Client struct {
	conn net.Conn
	r    *bufio.Reader
}

func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("trace: dial %s: %w", addr, err)
	}
	return &Client{conn: conn, r: bufio.NewReader(conn)}, nil
}

// Next blocks for the next Event on the wire. Safe to call repeatedly: the
// underlying reader is buffered once at Dial time, not recreated per call,
// so bytes read ahead for one Event are never discarded before the next.
func (c *Client) Next() (Event, error) {
	r := c.r
	var lenBuf [4]byte
	if _, err := fullRead(r, lenBuf[:]); err != nil {
		return Event{}, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	payload := make([]byte, n)
	if _, err := fullRead(r, payload); err != nil {
		return Event{}, err
	}
	return deserializeEvent(payload)
}

func fullRead(r *bufio.Reader, buf []byte) (int, error) {
	read := 0
	for read < len(buf) {
		n, err := r.Read(buf[read:])
		read += n
		if err != nil {
			return read, err
		}
	}
	return read, nil
}

func (c *Client) Close() error { return c.conn.Close() }
