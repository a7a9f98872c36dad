package host

import (
	"context"
	"fmt"
	"maps"

	"github.com/dmitrijs2005/peerchat/internal/common"
	"github.com/dmitrijs2005/peerchat/internal/models"
	"github.com/dmitrijs2005/peerchat/internal/protocol"
)

var empty = struct{}{}

// dispatch applies one request from p. The returned error is a write
// failure; the connection is dropped on it.
func (h *Host) dispatch(ctx context.Context, p *peer, f protocol.Frame) error {
	switch f.Command() {
	case protocol.CommandMessage:
		return h.handleMessage(ctx, p, f)
	case protocol.CommandView:
		return h.handleView(ctx, p, f)
	case protocol.CommandDebug:
		h.dumpState(ctx)
		return nil
	case protocol.CommandRetInfo:
		return h.handleRetInfo(ctx, p, f)
	case protocol.CommandInvisible:
		return h.handleInvisible(ctx, p, f)
	case protocol.CommandAuthorize:
		return h.handleAuthorize(ctx, p, f)
	default:
		p.log.Warn(ctx, "unknown command ignored", "header", f.Header)
		return nil
	}
}

func (h *Host) badRequest(ctx context.Context, p *peer, f protocol.Frame, err error) error {
	return h.respond(ctx, p, f.ID, protocol.StatusRequestError, protocol.Notice{Message: err.Error()})
}

func (h *Host) unauthorized(ctx context.Context, p *peer, f protocol.Frame, msg string) error {
	p.log.Info(ctx, "request refused", "command", f.Header, "reason", msg)
	return h.respond(ctx, p, f.ID, protocol.StatusUnauthorized, protocol.Notice{Message: msg})
}

func (h *Host) isOwner(p *peer) bool {
	return p.username() == h.opts.Owner
}

func (h *Host) handleMessage(ctx context.Context, p *peer, f protocol.Frame) error {
	var stubs []protocol.MessageStub
	if err := f.Bind(&stubs); err != nil {
		return h.badRequest(ctx, p, f, err)
	}

	h.authenMu.Lock()
	_, member := h.authen[p.username()]
	if !h.viewPermission && !member {
		h.authenMu.Unlock()
		return h.unauthorized(ctx, p, f, "only authorized members may post in this channel")
	}

	h.logMu.Lock()
	for _, s := range stubs {
		msg := models.NewMessage(p.username(), s.MessageContent)
		seq := len(h.messages)
		h.messages = append(h.messages, msg)
		h.queue.push(queued{seq: seq, msg: msg, sender: p})
	}
	h.logMu.Unlock()
	h.authenMu.Unlock()

	return h.respond(ctx, p, f.ID, protocol.StatusOK, empty)
}

func (h *Host) handleView(ctx context.Context, p *peer, f protocol.Frame) error {
	var req protocol.HostView
	if err := f.Bind(&req); err != nil {
		return h.badRequest(ctx, p, f, err)
	}
	if !h.isOwner(p) {
		return h.unauthorized(ctx, p, f, "only the channel owner may change view permission")
	}

	h.viewMu.Lock()
	if h.tracker != nil {
		if err := h.tracker.View(ctx, h.opts.Token, h.opts.ChannelName, req.Permission); err != nil {
			h.viewMu.Unlock()
			p.log.Error(ctx, "tracker rejected view change", "error", err)
			return h.respond(ctx, p, f.ID, protocol.StatusServerError, protocol.Notice{Message: "tracker update failed"})
		}
	}
	h.authenMu.Lock()
	h.viewPermission = req.Permission
	h.authenMu.Unlock()
	h.viewMu.Unlock()

	p.log.Info(ctx, "view permission changed", "view_permission", req.Permission)
	return h.respond(ctx, p, f.ID, protocol.StatusOK, empty)
}

func (h *Host) handleRetInfo(ctx context.Context, p *peer, f protocol.Frame) error {
	h.authenMu.Lock()
	if _, ok := h.authen[p.username()]; !ok {
		h.authenMu.Unlock()
		return h.unauthorized(ctx, p, f, "only authorized members may retrieve channel info")
	}
	info := models.ChannelInfo{
		AuthenPeers:    maps.Clone(h.authen),
		ViewPermission: h.viewPermission,
	}
	h.logMu.Lock()
	info.Messages = make([]models.Message, len(h.messages))
	copy(info.Messages, h.messages)
	h.logMu.Unlock()
	h.authenMu.Unlock()

	return h.respond(ctx, p, f.ID, protocol.StatusOK, info)
}

func (h *Host) handleInvisible(ctx context.Context, p *peer, f protocol.Frame) error {
	var req protocol.InvisibleRequest
	if err := f.Bind(&req); err != nil {
		return h.badRequest(ctx, p, f, err)
	}

	h.authenMu.Lock()
	ap, ok := h.authen[p.username()]
	if !ok {
		h.authenMu.Unlock()
		return h.unauthorized(ctx, p, f, "only authorized members may change visibility")
	}
	if req.Invisible {
		ap.Status = common.StatusOffline
	} else {
		ap.Status = common.StatusOnline
	}
	h.authen[p.username()] = ap
	p.invisible.Store(req.Invisible)
	h.authenMu.Unlock()

	msg := "you are now visible"
	if req.Invisible {
		msg = "you are now invisible"
	}
	return h.respond(ctx, p, f.ID, protocol.StatusOK, protocol.Notice{Message: msg})
}

func (h *Host) handleAuthorize(ctx context.Context, p *peer, f protocol.Frame) error {
	var req protocol.AuthorizeRequest
	if err := f.Bind(&req); err != nil {
		return h.badRequest(ctx, p, f, err)
	}
	if !h.isOwner(p) {
		return h.unauthorized(ctx, p, f, "only the channel owner may authorize members")
	}
	if req.AuthorType != protocol.AuthorAdd && req.AuthorType != protocol.AuthorRemove {
		return h.badRequest(ctx, p, f, fmt.Errorf("unknown author_type %d", req.AuthorType))
	}

	h.peersMu.Lock()
	var target *peer
	for other := range h.peers {
		if other.username() == req.Target {
			target = other
			break
		}
	}

	var reason string
	switch {
	case target == nil:
		reason = fmt.Sprintf("%s is not connected", req.Target)
	case target.identity.IsGuest():
		reason = fmt.Sprintf("%s is a guest", req.Target)
	case req.Target == h.opts.Owner:
		reason = "the owner's membership cannot change"
	}
	if reason != "" {
		h.peersMu.Unlock()
		return h.badRequest(ctx, p, f, fmt.Errorf("%w: %s", common.ErrRequest, reason))
	}

	h.authenMu.Lock()
	_, member := h.authen[req.Target]
	switch {
	case req.AuthorType == protocol.AuthorAdd && member:
		reason = fmt.Sprintf("%s is already authorized", req.Target)
	case req.AuthorType == protocol.AuthorRemove && !member:
		reason = fmt.Sprintf("%s is not authorized", req.Target)
	case req.AuthorType == protocol.AuthorAdd:
		status := common.StatusOnline
		if target.invisible.Load() {
			status = common.StatusOffline
		}
		h.authen[req.Target] = models.AuthorizedPeer{Role: common.RoleUser, Status: status}
	default:
		delete(h.authen, req.Target)
	}
	h.authenMu.Unlock()
	h.peersMu.Unlock()

	if reason != "" {
		return h.badRequest(ctx, p, f, fmt.Errorf("%w: %s", common.ErrRequest, reason))
	}

	msg := fmt.Sprintf("%s is now authorized", req.Target)
	if req.AuthorType == protocol.AuthorRemove {
		msg = fmt.Sprintf("%s is no longer authorized", req.Target)
	}
	p.log.Info(ctx, "membership changed", "target", req.Target, "author_type", req.AuthorType)
	return h.respond(ctx, p, f.ID, protocol.StatusOK, protocol.Notice{Message: msg})
}
