package host

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/dmitrijs2005/peerchat/internal/common"
	"github.com/dmitrijs2005/peerchat/internal/logging"
	"github.com/dmitrijs2005/peerchat/internal/models"
)

type Host struct {
	opts    Options
	logger  logging.Logger
	tracker Tracker

	listener net.Listener
	active   atomic.Int32

	// viewMu serializes VIEW requests so the tracker and the local flag
	// change in the same order.
	viewMu sync.Mutex

	peersMu sync.Mutex
	peers   map[*peer]struct{}

	authenMu       sync.Mutex
	authen         map[string]models.AuthorizedPeer
	viewPermission bool

	logMu    sync.Mutex
	messages []models.Message

	queue *broadcastQueue

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a host. tracker may be nil for a host that is not listed.
func New(opts Options, tracker Tracker, l logging.Logger) *Host {
	opts.setDefaults()

	h := &Host{
		opts:           opts,
		logger:         l.With("module", "host", "channel", opts.ChannelName),
		tracker:        tracker,
		peers:          make(map[*peer]struct{}),
		authen:         make(map[string]models.AuthorizedPeer),
		viewPermission: opts.ViewPermission,
		queue:          newBroadcastQueue(),
		done:           make(chan struct{}),
	}
	h.authen[opts.Owner] = models.AuthorizedPeer{Role: common.RoleOwner, Status: common.StatusOffline}
	h.messages = append(h.messages, opts.Seed...)
	return h
}

// Start binds the listener, registers the channel with the tracker and
// starts accepting connections and broadcasting.
func (h *Host) Start(ctx context.Context) error {
	if h.opts.ChannelName == "" || h.opts.Owner == "" {
		return errors.New("channel name and owner are required")
	}

	ln, err := net.Listen("tcp", h.opts.ListenAddr)
	if err != nil {
		return err
	}

	if h.tracker != nil {
		addr := ln.Addr().(*net.TCPAddr)
		ip := h.opts.AdvertiseIP
		if ip == "" {
			ip = addr.IP.String()
		}
		rec := models.ChannelRecord{
			ChannelName:    h.opts.ChannelName,
			PeerServerIP:   ip,
			PeerServerPort: addr.Port,
			ViewPermission: h.ViewPermission(),
		}
		if err := h.tracker.Host(ctx, h.opts.Token, rec); err != nil {
			_ = ln.Close()
			return fmt.Errorf("register channel with tracker: %w", err)
		}
	}

	h.listener = ln
	h.logger.Info(ctx, "Starting channel host", "address", ln.Addr().String())

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		h.acceptLoop(ctx)
	}()
	go func() {
		defer h.wg.Done()
		h.broadcastLoop(ctx)
	}()
	return nil
}

// Run starts the host and blocks until ctx is cancelled or Stop is called.
func (h *Host) Run(ctx context.Context) error {
	if err := h.Start(ctx); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		h.logger.Info(ctx, "Stopping channel host...")
	case <-h.done:
	}
	h.Stop()
	return nil
}

// Addr is the listener address, nil before Start.
func (h *Host) Addr() net.Addr {
	if h.listener == nil {
		return nil
	}
	return h.listener.Addr()
}

// Stop closes the listener and every peer connection and waits for all
// goroutines. It is safe to call more than once.
func (h *Host) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		if h.listener != nil {
			_ = h.listener.Close()
		}

		h.peersMu.Lock()
		for p := range h.peers {
			_ = p.conn.Close()
		}
		h.peersMu.Unlock()
	})
	h.wg.Wait()
}

func (h *Host) stopping() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

func (h *Host) acceptLoop(ctx context.Context) {
	for {
		conn, err := h.listener.Accept()
		if err != nil {
			if h.stopping() || errors.Is(err, net.ErrClosed) {
				return
			}
			h.logger.Warn(ctx, "accept failed", "error", err)
			continue
		}

		if int(h.active.Load()) >= h.opts.MaxConnections {
			h.logger.Warn(ctx, "connection limit reached, rejecting", "remote", conn.RemoteAddr().String())
			_ = conn.Close()
			continue
		}
		h.active.Add(1)

		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			defer h.active.Add(-1)
			h.handleConn(ctx, conn)
		}()
	}
}
