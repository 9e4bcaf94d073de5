package oscio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxDatagram is the largest UDP payload the server reads.
const maxDatagram = 65535

// Drop reasons reported to a DropObserver.
const (
	DropMalformed = "malformed"
	DropEmpty     = "empty"
)

// DropObserver counts packets the server could not decode.
type DropObserver interface {
	PacketDropped(reason string)
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithDropObserver reports undecodable packets to obs.
func WithDropObserver(obs DropObserver) ServerOption {
	return func(s *Server) {
		s.drops = obs
	}
}

// WithDropLogLimit limits drop warnings to one per interval with the given
// burst. Drops beyond the limit are still counted.
func WithDropLogLimit(every time.Duration, burst int) ServerOption {
	return func(s *Server) {
		s.dropLog = rate.NewLimiter(rate.Every(every), burst)
	}
}

// Server receives OSC over UDP.
type Server struct {
	addr    string
	handler Handler
	log     *slog.Logger
	drops   DropObserver
	dropLog *rate.Limiter

	mu    sync.Mutex
	conn  net.PacketConn
	ready chan struct{}
}

// NewServer returns a server that will listen on addr (host:port; port 0
// picks a free port) and deliver messages to h.
func NewServer(addr string, h Handler, opts ...ServerOption) (*Server, error) {
	if h == nil {
		return nil, errors.New("oscio: nil handler")
	}

	s := &Server{
		addr:    addr,
		handler: h,
		log:     slog.Default(),
		dropLog: rate.NewLimiter(rate.Every(time.Second), 5),
		ready:   make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.log = s.log.With("component", "oscio")

	return s, nil
}

// Ready is closed once the socket is bound.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Addr returns the bound address, or nil before Ready.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// Serve binds the socket and dispatches packets until ctx is cancelled. It
// returns nil on cancellation and a wrapped error if the socket fails.
// Serve may be called once.
func (s *Server) Serve(ctx context.Context) error {
	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp", s.addr)
	if err != nil {
		return fmt.Errorf("oscio: listen %s: %w", s.addr, err)
	}
	defer conn.Close()

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	close(s.ready)

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	s.log.Info("listening for OSC", "addr", conn.LocalAddr().String())

	buf := make([]byte, maxDatagram)
	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				s.log.Info("OSC server stopped")
				return nil
			}
			return fmt.Errorf("oscio: read: %w", err)
		}

		s.handle(buf[:n], from)
	}
}

func (s *Server) handle(data []byte, from net.Addr) {
	_, err := HandleBytes(data, s.handler)
	if err == nil {
		return
	}

	reason := DropMalformed
	if errors.Is(err, ErrEmptyPacket) {
		reason = DropEmpty
	}

	if s.drops != nil {
		s.drops.PacketDropped(reason)
	}

	if s.dropLog.Allow() {
		s.log.Warn("dropping OSC packet", "from", from.String(), "reason", reason, "error", err)
	}
}
