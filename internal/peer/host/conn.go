package host

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/peerchat/internal/common"
	"github.com/dmitrijs2005/peerchat/internal/logging"
	"github.com/dmitrijs2005/peerchat/internal/models"
	"github.com/dmitrijs2005/peerchat/internal/netx"
	"github.com/dmitrijs2005/peerchat/internal/protocol"
)

// peer is one connected client. It exists only while its socket is open.
type peer struct {
	conn      net.Conn
	addr      string
	identity  models.Identity
	invisible atomic.Bool
	// joinedAt is the log length at registration; the peer got every
	// message before it in the CONNECT snapshot.
	joinedAt int

	writeMu   sync.Mutex
	closeOnce sync.Once
	log       logging.Logger
}

func (p *peer) username() string { return p.identity.Username }

// write sends one frame. Callers must not hold any host mutex.
func (p *peer) write(frame []byte, timeout time.Duration) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return netx.WriteFull(p.conn, frame, timeout)
}

func (h *Host) respond(ctx context.Context, p *peer, id string, status protocol.Status, payload any) error {
	frame, err := protocol.EncodeResponse(id, status, payload)
	if err != nil {
		p.log.Error(ctx, "encode response", "error", err)
		return err
	}
	return p.write(frame, h.opts.WriteTimeout)
}

// nextFrame reads the next frame, polling so shutdown is noticed. A zero
// deadline waits until the host stops.
func (h *Host) nextFrame(ctx context.Context, conn net.Conn, fr *protocol.FrameReader, log logging.Logger, deadline time.Time) (protocol.Frame, error) {
	for {
		if err := conn.SetReadDeadline(time.Now().Add(netx.DefaultPollInterval)); err != nil {
			return protocol.Frame{}, err
		}
		f, err := fr.Next()
		if err == nil {
			return f, nil
		}
		switch {
		case netx.IsTimeout(err):
			if h.stopping() {
				return protocol.Frame{}, net.ErrClosed
			}
			if !deadline.IsZero() && time.Now().After(deadline) {
				return protocol.Frame{}, err
			}
		case errors.Is(err, common.ErrProtocol):
			log.Warn(ctx, "malformed frame", "error", err)
		default:
			return protocol.Frame{}, err
		}
	}
}

func (h *Host) handleConn(ctx context.Context, conn net.Conn) {
	addr := conn.RemoteAddr().String()
	log := h.logger.With("remote", addr)
	fr := protocol.NewFrameReaderSize(conn, protocol.DefaultMaxFrameSize)

	first, err := h.nextFrame(ctx, conn, fr, log, time.Now().Add(h.opts.HandshakeTimeout))
	if err != nil {
		if !netx.IsClosed(err) {
			log.Debug(ctx, "handshake read failed", "error", err)
		}
		_ = conn.Close()
		return
	}

	p := &peer{conn: conn, addr: addr, log: log}

	if first.Command() != protocol.CommandConnect {
		log.Warn(ctx, "expected CONNECT", "header", first.Header)
		_ = h.respond(ctx, p, first.ID, protocol.StatusRequestError, protocol.Notice{Message: "expected CONNECT"})
		_ = conn.Close()
		return
	}

	var identity models.Identity
	if err := first.Bind(&identity); err != nil || identity.Username == "" {
		_ = h.respond(ctx, p, first.ID, protocol.StatusRequestError, protocol.Notice{Message: "invalid identity"})
		_ = conn.Close()
		return
	}
	p.identity = identity
	p.invisible.Store(identity.Invisible)
	p.log = log.With("user", identity.Username)

	// Holding the write mutex until the snapshot is sent keeps broadcasts
	// behind the CONNECT response on this socket.
	p.writeMu.Lock()
	snapshot, err := h.register(p)
	if err != nil {
		frame, _ := protocol.EncodeResponse(first.ID, protocol.StatusUnauthorized, protocol.Notice{Message: err.Error()})
		_ = netx.WriteFull(conn, frame, h.opts.WriteTimeout)
		p.writeMu.Unlock()
		p.log.Info(ctx, "connection refused", "reason", err)
		_ = conn.Close()
		return
	}
	frame, err := protocol.EncodeResponse(first.ID, protocol.StatusOK, snapshot)
	if err == nil {
		err = netx.WriteFull(conn, frame, h.opts.WriteTimeout)
	}
	p.writeMu.Unlock()
	if err != nil {
		p.log.Warn(ctx, "send snapshot failed", "error", err)
		h.teardown(ctx, p)
		return
	}

	p.log.Info(ctx, "peer connected", "user_type", identity.UserType, "invisible", identity.Invisible, "snapshot", len(snapshot))
	defer h.teardown(ctx, p)

	for {
		f, err := h.nextFrame(ctx, conn, fr, p.log, time.Time{})
		if err != nil {
			if !netx.IsClosed(err) && !h.stopping() {
				p.log.Warn(ctx, "read failed", "error", err)
			}
			return
		}
		if f.IsResponse() {
			p.log.Warn(ctx, "unexpected response frame", "header", f.Header)
			continue
		}
		if err := h.dispatch(ctx, p, f); err != nil {
			p.log.Warn(ctx, "write failed", "error", err)
			return
		}
	}
}

var errNotAuthorized = errors.New("channel is private and you are not an authorized member")

// register authorizes p, adds it to the connected list and returns the
// catch-up snapshot. The snapshot and registration are atomic with respect
// to appends.
func (h *Host) register(p *peer) ([]models.Message, error) {
	h.peersMu.Lock()
	defer h.peersMu.Unlock()

	if h.stopping() {
		return nil, errors.New("host is shutting down")
	}

	h.authenMu.Lock()
	ap, member := h.authen[p.username()]
	if !h.viewPermission && !member {
		h.authenMu.Unlock()
		return nil, errNotAuthorized
	}
	if member && !p.invisible.Load() {
		ap.Status = common.StatusOnline
		h.authen[p.username()] = ap
	}

	h.logMu.Lock()
	snapshot := make([]models.Message, len(h.messages))
	copy(snapshot, h.messages)
	p.joinedAt = len(h.messages)
	h.logMu.Unlock()
	h.authenMu.Unlock()

	h.peers[p] = struct{}{}
	return snapshot, nil
}

// teardown removes p and closes its socket. Only the first call per peer
// has any effect.
func (h *Host) teardown(ctx context.Context, p *peer) {
	p.closeOnce.Do(func() {
		h.peersMu.Lock()
		delete(h.peers, p)
		stillConnected := false
		for other := range h.peers {
			if other.username() == p.username() {
				stillConnected = true
				break
			}
		}

		h.authenMu.Lock()
		if ap, ok := h.authen[p.username()]; ok && !stillConnected {
			ap.Status = common.StatusOffline
			h.authen[p.username()] = ap
		}
		h.authenMu.Unlock()
		h.peersMu.Unlock()

		_ = p.conn.Close()
		p.log.Info(ctx, "peer disconnected")
	})
}
