package host

import (
	"context"

	"github.com/dmitrijs2005/peerchat/internal/models"
	"github.com/dmitrijs2005/peerchat/internal/protocol"
)

// broadcastLoop delivers queued messages until the host stops. Each peer
// gets one MESSAGE frame per batch holding the messages it has not seen.
func (h *Host) broadcastLoop(ctx context.Context) {
	for {
		batch := h.queue.pop(h.done, h.opts.BatchSize)
		if batch == nil {
			return
		}

		h.peersMu.Lock()
		targets := make([]*peer, 0, len(h.peers))
		for p := range h.peers {
			targets = append(targets, p)
		}
		h.peersMu.Unlock()

		for _, p := range targets {
			msgs := pendingFor(p, batch)
			if len(msgs) == 0 {
				continue
			}
			frame, err := protocol.EncodePush(protocol.CommandMessage, msgs)
			if err != nil {
				h.logger.Error(ctx, "encode broadcast", "error", err)
				continue
			}
			if err := p.write(frame, h.opts.WriteTimeout); err != nil {
				p.log.Warn(ctx, "broadcast failed, dropping peer", "error", err)
				h.teardown(ctx, p)
			}
		}
	}
}

// pendingFor selects the batch items p must receive: logged after it joined
// and not sent by itself.
func pendingFor(p *peer, batch []queued) []models.Message {
	var out []models.Message
	for _, item := range batch {
		if item.seq < p.joinedAt || item.sender == p {
			continue
		}
		out = append(out, item.msg)
	}
	return out
}
