package host

import (
	"context"
	"maps"
	"sort"

	"github.com/dmitrijs2005/peerchat/internal/models"
)

func (h *Host) ChannelName() string { return h.opts.ChannelName }

func (h *Host) Owner() string { return h.opts.Owner }

func (h *Host) ViewPermission() bool {
	h.authenMu.Lock()
	defer h.authenMu.Unlock()
	return h.viewPermission
}

// Messages returns a copy of the message log.
func (h *Host) Messages() []models.Message {
	h.logMu.Lock()
	defer h.logMu.Unlock()
	out := make([]models.Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// AuthorizedPeers returns a copy of the member list.
func (h *Host) AuthorizedPeers() map[string]models.AuthorizedPeer {
	h.authenMu.Lock()
	defer h.authenMu.Unlock()
	return maps.Clone(h.authen)
}

// ConnectedUsers returns the usernames of connected peers, sorted.
func (h *Host) ConnectedUsers() []string {
	h.peersMu.Lock()
	defer h.peersMu.Unlock()
	out := make([]string, 0, len(h.peers))
	for p := range h.peers {
		out = append(out, p.username())
	}
	sort.Strings(out)
	return out
}

// dumpState writes the host state to the operator log.
func (h *Host) dumpState(ctx context.Context) {
	h.peersMu.Lock()
	connected := make([]string, 0, len(h.peers))
	for p := range h.peers {
		connected = append(connected, p.username()+"@"+p.addr)
	}
	h.authenMu.Lock()
	authen := maps.Clone(h.authen)
	view := h.viewPermission
	h.logMu.Lock()
	logged := len(h.messages)
	h.logMu.Unlock()
	h.authenMu.Unlock()
	h.peersMu.Unlock()

	sort.Strings(connected)
	h.logger.Info(ctx, "debug state",
		"owner", h.opts.Owner,
		"view_permission", view,
		"connected", connected,
		"authorized", authen,
		"messages", logged,
		"queued", h.queue.len(),
		"active_connections", h.active.Load(),
	)
}
