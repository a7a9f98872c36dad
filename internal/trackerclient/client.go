// Package trackerclient talks to the tracker. Every call opens a fresh TCP
// connection, sends one request, waits for the correlated response and
// closes the connection.
package trackerclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/dmitrijs2005/peerchat/internal/common"
	"github.com/dmitrijs2005/peerchat/internal/models"
	"github.com/dmitrijs2005/peerchat/internal/netx"
	"github.com/dmitrijs2005/peerchat/internal/protocol"
)

const DefaultTimeout = 5 * time.Second

type Client struct {
	address string
	timeout time.Duration
	dialer  net.Dialer
}

func New(address string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{address: address, timeout: timeout}
}

func (c *Client) Address() string { return c.address }

func (c *Client) List(ctx context.Context) ([]models.ChannelRecord, error) {
	var out []models.ChannelRecord
	if err := c.Do(ctx, protocol.CommandList, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Host registers record under the owner identified by token.
func (c *Client) Host(ctx context.Context, token string, record models.ChannelRecord) error {
	return c.Do(ctx, protocol.CommandHost, protocol.HostRequest{ChannelRecord: record, Token: token}, nil)
}

func (c *Client) View(ctx context.Context, token, channel string, permission bool) error {
	return c.Do(ctx, protocol.CommandView, protocol.ChannelView{ChannelName: channel, ViewPermission: permission, Token: token}, nil)
}

func (c *Client) SignIn(ctx context.Context, username, password string) (string, error) {
	return c.token(ctx, protocol.CommandSignIn, protocol.Credentials{Username: username, Password: password})
}

func (c *Client) SignUp(ctx context.Context, username, password string) (string, error) {
	return c.token(ctx, protocol.CommandSignUp, protocol.Credentials{Username: username, Password: password})
}

func (c *Client) Guest(ctx context.Context, username string) (string, error) {
	return c.token(ctx, protocol.CommandGuest, protocol.GuestRequest{Username: username})
}

func (c *Client) token(ctx context.Context, cmd protocol.Command, payload any) (string, error) {
	var resp protocol.TokenResponse
	if err := c.Do(ctx, cmd, payload, &resp); err != nil {
		return "", err
	}
	return resp.Token, nil
}

// Do performs one request. Network failures wrap common.ErrTransport; non-OK
// statuses come back as *protocol.ResponseError. When out is non-nil the OK
// payload is decoded into it. Malformed frames and responses for other ids
// are skipped.
func (c *Client) Do(ctx context.Context, cmd protocol.Command, payload any, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	frame, id, err := protocol.EncodeRequest(cmd, payload, "")
	if err != nil {
		return err
	}

	conn, err := c.dialer.DialContext(ctx, "tcp", c.address)
	if err != nil {
		return fmt.Errorf("%w: dial tracker %s: %w", common.ErrTransport, c.address, err)
	}
	defer conn.Close()

	deadline, _ := ctx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("%w: %w", common.ErrTransport, err)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	if err := netx.WriteFull(conn, frame, 0); err != nil {
		return fmt.Errorf("%w: send %s: %w", common.ErrTransport, cmd, err)
	}

	fr := protocol.NewFrameReader(conn)
	for {
		resp, err := fr.Next()
		if err != nil {
			if errors.Is(err, common.ErrProtocol) {
				continue
			}
			if netx.IsTimeout(err) {
				if errors.Is(ctx.Err(), context.Canceled) {
					return ctx.Err()
				}
				return fmt.Errorf("%w: %s", common.ErrTimeout, cmd)
			}
			return fmt.Errorf("%w: receive %s: %w", common.ErrTransport, cmd, err)
		}
		if !resp.IsResponse() || resp.ID != id {
			continue
		}
		if err := protocol.ResponseErr(resp); err != nil {
			return err
		}
		if out != nil {
			return resp.Bind(out)
		}
		return nil
	}
}
