package tracker

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/peerchat/internal/common"
	"github.com/dmitrijs2005/peerchat/internal/logging"
	"github.com/dmitrijs2005/peerchat/internal/protocol"
	"github.com/dmitrijs2005/peerchat/internal/tracker/auth"
)

// handle applies one request and returns the response status and payload.
func (s *Server) handle(ctx context.Context, log logging.Logger, f protocol.Frame) (protocol.Status, any) {
	var err error
	var payload any = struct{}{}

	switch f.Command() {
	case protocol.CommandList:
		payload = s.registry.List()

	case protocol.CommandHost:
		var req protocol.HostRequest
		var owner string
		if err = f.Bind(&req); err == nil {
			owner, err = s.channelOwner(req.Token)
		}
		if err == nil {
			err = s.registry.Host(owner, req.ChannelRecord)
		}
		if err == nil {
			rec := req.ChannelRecord
			log.Info(ctx, "channel hosted", "channel", rec.ChannelName, "owner", owner, "address", rec.Address(), "view_permission", rec.ViewPermission)
		}

	case protocol.CommandView:
		var req protocol.ChannelView
		var owner string
		if err = f.Bind(&req); err == nil {
			owner, err = s.channelOwner(req.Token)
		}
		if err == nil {
			err = s.registry.View(owner, req.ChannelName, req.ViewPermission)
		}

	case protocol.CommandSignIn:
		var req protocol.Credentials
		if err = f.Bind(&req); err == nil {
			err = s.registry.SignIn(ctx, req.Username, req.Password)
		}
		if err == nil {
			payload, err = s.issueToken(req.Username, common.UserTypeRegistered)
		}

	case protocol.CommandSignUp:
		var req protocol.Credentials
		if err = f.Bind(&req); err == nil {
			err = s.registry.SignUp(ctx, req.Username, req.Password)
		}
		if err == nil {
			payload, err = s.issueToken(req.Username, common.UserTypeRegistered)
		}

	case protocol.CommandGuest:
		var req protocol.GuestRequest
		if err = f.Bind(&req); err == nil {
			err = s.registry.Guest(ctx, req.Username)
		}
		if err == nil {
			payload, err = s.issueToken(req.Username, common.UserTypeGuest)
		}

	default:
		log.Warn(ctx, "unknown command", "header", f.Header)
		return protocol.StatusRequestError, protocol.Notice{Message: "unknown command " + f.Header}
	}

	if err == nil {
		return protocol.StatusOK, payload
	}

	if errors.Is(err, common.ErrUnauthorized) {
		log.Warn(ctx, "request unauthorized", "command", f.Header, "error", err)
		return protocol.StatusUnauthorized, protocol.Notice{Message: err.Error()}
	}

	if errors.Is(err, common.ErrRequest) || errors.Is(err, common.ErrProtocol) {
		log.Debug(ctx, "request rejected", "command", f.Header, "error", err)
		return protocol.StatusRequestError, protocol.Notice{Message: err.Error()}
	}

	log.Error(ctx, "request failed", "command", f.Header, "error", err)
	return protocol.StatusServerError, protocol.Notice{Message: "internal error"}
}

func (s *Server) issueToken(username, userType string) (protocol.TokenResponse, error) {
	tok, err := auth.GenerateToken(username, userType, s.jwtSecret, s.tokenTTL)
	if err != nil {
		return protocol.TokenResponse{}, err
	}
	return protocol.TokenResponse{Token: tok}, nil
}

// channelOwner validates a session token and returns the username it was
// issued to. Guests may not own channels.
func (s *Server) channelOwner(token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: token is required", common.ErrUnauthorized)
	}
	claims, err := auth.ParseToken(token, s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrUnauthorized, err)
	}
	if claims.UserType != common.UserTypeRegistered {
		return "", fmt.Errorf("%w: %s users cannot host channels", common.ErrUnauthorized, claims.UserType)
	}
	return claims.Username, nil
}
