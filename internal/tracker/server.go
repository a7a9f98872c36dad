package tracker

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/dmitrijs2005/peerchat/internal/common"
	"github.com/dmitrijs2005/peerchat/internal/logging"
	"github.com/dmitrijs2005/peerchat/internal/netx"
	"github.com/dmitrijs2005/peerchat/internal/protocol"
	"github.com/dmitrijs2005/peerchat/internal/tracker/config"
)

// Server serves a Registry over TCP. Each connection runs on its own
// goroutine and may carry several sequential requests.
type Server struct {
	address     string
	registry    *Registry
	logger      logging.Logger
	jwtSecret   []byte
	tokenTTL    time.Duration
	idleTimeout time.Duration

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
	done     chan struct{}
	stopOnce sync.Once
}

func NewServer(cfg *config.Config, l logging.Logger, r *Registry) *Server {
	return &Server{
		address:     cfg.ListenAddr,
		registry:    r,
		logger:      l.With("module", "tracker"),
		jwtSecret:   []byte(cfg.SecretKey),
		tokenTTL:    cfg.TokenValidityDuration,
		idleTimeout: cfg.IdleTimeout,
		conns:       make(map[net.Conn]struct{}),
		done:        make(chan struct{}),
	}
}

// Start binds the listener and begins accepting in the background.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info(ctx, "Starting tracker", "address", ln.Addr().String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop(ctx, ln)
	}()
	return nil
}

// Run starts the server and blocks until ctx is cancelled or Stop is called.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		s.logger.Info(ctx, "Stopping tracker...")
	case <-s.done:
	}
	s.Stop()
	return nil
}

// Addr is the bound listener address, nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes the listener and every open connection and waits for the
// handlers to exit. It is safe to call more than once.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)

		s.mu.Lock()
		if s.listener != nil {
			_ = s.listener.Close()
		}
		for c := range s.conns {
			_ = c.Close()
		}
		s.mu.Unlock()
	})
	s.wg.Wait()
}

func (s *Server) stopping() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.stopping() || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn(ctx, "accept failed", "error", err)
			continue
		}

		s.mu.Lock()
		if s.stopping() {
			s.mu.Unlock()
			_ = conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.wg.Add(1)
		s.mu.Unlock()

		go func() {
			defer s.wg.Done()
			defer func() {
				s.mu.Lock()
				delete(s.conns, conn)
				s.mu.Unlock()
				_ = conn.Close()
			}()
			s.serveConn(ctx, conn)
		}()
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	log := s.logger.With("remote", conn.RemoteAddr().String())
	fr := protocol.NewFrameReaderSize(conn, protocol.DefaultMaxFrameSize)
	lastActivity := time.Now()

	for {
		if err := conn.SetReadDeadline(time.Now().Add(netx.DefaultPollInterval)); err != nil {
			return
		}
		frame, err := fr.Next()
		if err != nil {
			switch {
			case netx.IsTimeout(err):
				if s.stopping() {
					return
				}
				if s.idleTimeout > 0 && time.Since(lastActivity) > s.idleTimeout {
					log.Debug(ctx, "closing idle connection")
					return
				}
				continue
			case errors.Is(err, common.ErrProtocol):
				log.Warn(ctx, "malformed frame", "error", err)
				continue
			default:
				if !netx.IsClosed(err) {
					log.Warn(ctx, "read failed", "error", err)
				}
				return
			}
		}
		lastActivity = time.Now()

		if frame.IsResponse() {
			log.Warn(ctx, "unexpected response frame", "header", frame.Header)
			continue
		}

		status, payload := s.handle(ctx, log, frame)
		resp, err := protocol.EncodeResponse(frame.ID, status, payload)
		if err != nil {
			log.Error(ctx, "encode response", "error", err)
			return
		}
		if err := netx.WriteFull(conn, resp, 5*time.Second); err != nil {
			log.Warn(ctx, "write failed", "error", err)
			return
		}
	}
}
