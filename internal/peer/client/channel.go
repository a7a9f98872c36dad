package client

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/dmitrijs2005/peerchat/internal/common"
	"github.com/dmitrijs2005/peerchat/internal/logging"
	"github.com/dmitrijs2005/peerchat/internal/models"
	"github.com/dmitrijs2005/peerchat/internal/netx"
	"github.com/dmitrijs2005/peerchat/internal/protocol"
)

// channelConn is the client state for one joined channel.
type channelConn struct {
	name   string
	record models.ChannelRecord
	conn   net.Conn
	fr     *protocol.FrameReader
	log    logging.Logger

	writeMu sync.Mutex

	pendMu  sync.Mutex
	pending map[string]chan protocol.Frame

	// messages is guarded by Client.mu.
	messages []models.Message

	done      chan struct{}
	closeOnce sync.Once
}

func newChannelConn(record models.ChannelRecord, conn net.Conn, fr *protocol.FrameReader, log logging.Logger) *channelConn {
	return &channelConn{
		name:    record.ChannelName,
		record:  record,
		conn:    conn,
		fr:      fr,
		log:     log,
		pending: make(map[string]chan protocol.Frame),
		done:    make(chan struct{}),
	}
}

func (cc *channelConn) close() {
	cc.closeOnce.Do(func() {
		close(cc.done)
		_ = cc.conn.Close()
	})
}

func (cc *channelConn) register(id string) chan protocol.Frame {
	slot := make(chan protocol.Frame, 1)
	cc.pendMu.Lock()
	cc.pending[id] = slot
	cc.pendMu.Unlock()
	return slot
}

func (cc *channelConn) deregister(id string) {
	cc.pendMu.Lock()
	delete(cc.pending, id)
	cc.pendMu.Unlock()
}

// deliver hands a response to its waiter. Responses nobody waits for any
// more are dropped.
func (cc *channelConn) deliver(f protocol.Frame) bool {
	cc.pendMu.Lock()
	slot, ok := cc.pending[f.ID]
	if ok {
		delete(cc.pending, f.ID)
	}
	cc.pendMu.Unlock()
	if !ok {
		return false
	}
	select {
	case slot <- f:
	default:
	}
	return true
}

func (cc *channelConn) write(frame []byte, c *Client) error {
	cc.writeMu.Lock()
	defer cc.writeMu.Unlock()
	return netx.WriteFull(cc.conn, frame, c.opts.WriteTimeout)
}

// receive runs until the connection ends. It routes responses to waiters and
// applies MESSAGE pushes to the channel log.
func (c *Client) receive(ctx context.Context, cc *channelConn) {
	defer func() {
		cc.close()
		c.forget(cc)
	}()

	for {
		f, err := cc.fr.Next()
		if err != nil {
			if errors.Is(err, protocol.ErrFrameTooLarge) {
				cc.log.Error(ctx, "leaving channel after oversized frame", "error", err)
				return
			}
			if errors.Is(err, common.ErrProtocol) {
				cc.log.Warn(ctx, "malformed frame skipped", "error", err)
				continue
			}
			select {
			case <-cc.done:
			default:
				if netx.IsClosed(err) {
					cc.log.Info(ctx, "channel connection closed by host")
				} else {
					cc.log.Warn(ctx, "channel connection lost", "error", err)
				}
			}
			return
		}

		switch {
		case f.IsResponse():
			if !cc.deliver(f) {
				cc.log.Debug(ctx, "dropping late or unknown response", "id", f.ID, "status", f.Header)
			}
		case f.Command() == protocol.CommandMessage:
			var msgs []models.Message
			if err := f.Bind(&msgs); err != nil {
				cc.log.Warn(ctx, "bad MESSAGE push", "error", err)
				continue
			}
			c.appendMessages(cc, msgs)
		default:
			cc.log.Debug(ctx, "ignoring frame", "header", f.Header)
		}
	}
}
