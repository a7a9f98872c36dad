package client

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net"
	"slices"
	"sync"
	"time"

	"github.com/dmitrijs2005/peerchat/internal/common"
	"github.com/dmitrijs2005/peerchat/internal/logging"
	"github.com/dmitrijs2005/peerchat/internal/models"
	"github.com/dmitrijs2005/peerchat/internal/netx"
	"github.com/dmitrijs2005/peerchat/internal/peer/cache"
	"github.com/dmitrijs2005/peerchat/internal/protocol"
)

type Client struct {
	opts    Options
	logger  logging.Logger
	tracker Tracker
	cache   *cache.Cache
	dialer  net.Dialer

	mu       sync.Mutex
	session  Session
	channels map[string]*channelConn
	wg       sync.WaitGroup
}

// New creates a client. tracker and c may be nil; without a cache, messages
// for unconnected channels fail with common.ErrNotConnected.
func New(tracker Tracker, c *cache.Cache, opts Options, l logging.Logger) *Client {
	opts.setDefaults()
	return &Client{
		opts:     opts,
		logger:   l.With("module", "client"),
		tracker:  tracker,
		cache:    c,
		channels: make(map[string]*channelConn),
	}
}

func (c *Client) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// SetSession sets the identity used by later joins.
func (c *Client) SetSession(s Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = s
}

func (c *Client) SignIn(ctx context.Context, username, password string) error {
	if c.tracker == nil {
		return fmt.Errorf("%w: no tracker configured", common.ErrRequest)
	}
	tok, err := c.tracker.SignIn(ctx, username, password)
	if err != nil {
		return err
	}
	c.SetSession(Session{Username: username, UserType: common.UserTypeRegistered, Token: tok})
	return nil
}

func (c *Client) SignUp(ctx context.Context, username, password string) error {
	if c.tracker == nil {
		return fmt.Errorf("%w: no tracker configured", common.ErrRequest)
	}
	tok, err := c.tracker.SignUp(ctx, username, password)
	if err != nil {
		return err
	}
	c.SetSession(Session{Username: username, UserType: common.UserTypeRegistered, Token: tok})
	return nil
}

func (c *Client) Guest(ctx context.Context, username string) error {
	if c.tracker == nil {
		return fmt.Errorf("%w: no tracker configured", common.ErrRequest)
	}
	tok, err := c.tracker.Guest(ctx, username)
	if err != nil {
		return err
	}
	c.SetSession(Session{Username: username, UserType: common.UserTypeGuest, Token: tok})
	return nil
}

func (c *Client) ListChannels(ctx context.Context) ([]models.ChannelRecord, error) {
	if c.tracker == nil {
		return nil, fmt.Errorf("%w: no tracker configured", common.ErrRequest)
	}
	return c.tracker.List(ctx)
}

// JoinByName looks the channel up on the tracker and joins it.
func (c *Client) JoinByName(ctx context.Context, name string) error {
	records, err := c.ListChannels(ctx)
	if err != nil {
		return err
	}
	for _, r := range records {
		if r.ChannelName == name {
			return c.Join(ctx, r)
		}
	}
	return fmt.Errorf("%w: channel %q: %w", common.ErrRequest, name, common.ErrorNotFound)
}

// Join connects to the channel's host, loads the catch-up snapshot, starts
// the receiver and replays cached messages. A refused or failed join leaves
// no state behind.
func (c *Client) Join(ctx context.Context, record models.ChannelRecord) error {
	session := c.Session()
	if session.Username == "" {
		return fmt.Errorf("%w: sign in before joining", common.ErrUnauthorized)
	}

	c.mu.Lock()
	_, joined := c.channels[record.ChannelName]
	c.mu.Unlock()
	if joined {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.JoinTimeout)
	defer cancel()

	conn, err := c.dialer.DialContext(ctx, "tcp", record.Address())
	if err != nil {
		return fmt.Errorf("%w: dial %s: %w", common.ErrTransport, record.Address(), err)
	}

	log := c.logger.With("channel", record.ChannelName)
	cc := newChannelConn(record, conn, protocol.NewFrameReaderSize(conn, c.opts.MaxFrameSize), log)

	snapshot, err := c.handshake(ctx, cc, session)
	if err != nil {
		_ = conn.Close()
		return err
	}
	cc.messages = snapshot

	c.mu.Lock()
	if _, dup := c.channels[record.ChannelName]; dup {
		c.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	c.channels[record.ChannelName] = cc
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		c.receive(context.WithoutCancel(ctx), cc)
	}()

	log.Info(ctx, "joined channel", "messages", len(snapshot))
	c.replay(context.WithoutCancel(ctx), cc)
	return nil
}

// handshake sends CONNECT and waits for its response. MESSAGE pushes that
// arrive first are appended after the snapshot.
func (c *Client) handshake(ctx context.Context, cc *channelConn, s Session) ([]models.Message, error) {
	frame, id, err := protocol.EncodeRequest(protocol.CommandConnect, models.Identity{
		Username:  s.Username,
		UserType:  s.UserType,
		Invisible: s.Invisible,
	}, "")
	if err != nil {
		return nil, err
	}

	deadline, _ := ctx.Deadline()
	if err := cc.conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrTransport, err)
	}
	defer cc.conn.SetDeadline(time.Time{})

	if err := cc.write(frame, c); err != nil {
		return nil, fmt.Errorf("%w: send CONNECT: %w", common.ErrTransport, err)
	}

	var early []models.Message
	for {
		f, err := cc.fr.Next()
		if err != nil {
			if errors.Is(err, protocol.ErrFrameTooLarge) {
				return nil, fmt.Errorf("CONNECT to %s: %w", cc.name, err)
			}
			if errors.Is(err, common.ErrProtocol) {
				continue
			}
			if netx.IsTimeout(err) {
				return nil, fmt.Errorf("%w: CONNECT to %s", common.ErrTimeout, cc.name)
			}
			return nil, fmt.Errorf("%w: CONNECT to %s: %w", common.ErrTransport, cc.name, err)
		}

		if f.IsResponse() && f.ID == id {
			if err := protocol.ResponseErr(f); err != nil {
				return nil, err
			}
			var snapshot []models.Message
			if err := f.Bind(&snapshot); err != nil {
				return nil, err
			}
			return append(snapshot, early...), nil
		}
		if f.Command() == protocol.CommandMessage {
			var msgs []models.Message
			if err := f.Bind(&msgs); err == nil {
				early = append(early, msgs...)
			}
		}
	}
}

// replay sends the channel's cached messages as one MESSAGE request and
// clears them once the host accepts.
func (c *Client) replay(ctx context.Context, cc *channelConn) {
	if c.cache == nil {
		return
	}
	contents := c.cache.Pending(cc.name)
	if len(contents) == 0 {
		return
	}

	username := c.Session().Username
	stubs := make([]protocol.MessageStub, len(contents))
	for i, content := range contents {
		stubs[i] = protocol.MessageStub{Username: username, MessageContent: content}
	}

	f, err := c.SendRequestAndWait(ctx, cc.name, protocol.CommandMessage, stubs, c.opts.RequestTimeout)
	if err == nil {
		err = protocol.ResponseErr(f)
	}
	if err != nil {
		cc.log.Warn(ctx, "cached messages not delivered", "count", len(contents), "error", err)
		return
	}

	c.cache.Remove(ctx, cc.name, len(contents))
	msgs := make([]models.Message, len(contents))
	for i, content := range contents {
		msgs[i] = models.NewMessage(username, content)
	}
	c.mu.Lock()
	cc.messages = append(cc.messages, msgs...)
	c.mu.Unlock()
	cc.log.Info(ctx, "cached messages delivered", "count", len(contents))
}

func (c *Client) channel(name string) (*channelConn, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cc, ok := c.channels[name]
	return cc, ok
}

// forget drops cc from the joined set if it is still the current
// connection for its channel.
func (c *Client) forget(cc *channelConn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.channels[cc.name]; ok && cur == cc {
		delete(c.channels, cc.name)
	}
}

func (c *Client) appendMessages(cc *channelConn, msgs []models.Message) {
	c.mu.Lock()
	cc.messages = append(cc.messages, msgs...)
	c.mu.Unlock()

	if c.opts.OnMessage != nil {
		for _, m := range msgs {
			c.opts.OnMessage(cc.name, m)
		}
	}
}

// SendRequestAndWait sends a request on the channel's connection and waits
// up to timeout for the response with the same id. The response is returned
// whatever its status. A response arriving after the timeout is dropped.
func (c *Client) SendRequestAndWait(ctx context.Context, channel string, cmd protocol.Command, payload any, timeout time.Duration) (protocol.Frame, error) {
	cc, ok := c.channel(channel)
	if !ok {
		return protocol.Frame{}, fmt.Errorf("%w: %s", common.ErrNotConnected, channel)
	}
	if timeout <= 0 {
		timeout = c.opts.RequestTimeout
	}

	frame, id, err := protocol.EncodeRequest(cmd, payload, "")
	if err != nil {
		return protocol.Frame{}, err
	}

	slot := cc.register(id)
	if err := cc.write(frame, c); err != nil {
		cc.deregister(id)
		cc.close()
		return protocol.Frame{}, fmt.Errorf("%w: send %s: %w", common.ErrTransport, cmd, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case f := <-slot:
		return f, nil
	case <-timer.C:
		cc.deregister(id)
		return protocol.Frame{}, fmt.Errorf("%w: %s on %s", common.ErrTimeout, cmd, channel)
	case <-cc.done:
		cc.deregister(id)
		return protocol.Frame{}, fmt.Errorf("%w: %s closed while waiting for %s", common.ErrTransport, channel, cmd)
	case <-ctx.Done():
		cc.deregister(id)
		return protocol.Frame{}, ctx.Err()
	}
}

// call is SendRequestAndWait followed by status mapping and payload decoding.
func (c *Client) call(ctx context.Context, channel string, cmd protocol.Command, payload any, out any) error {
	f, err := c.SendRequestAndWait(ctx, channel, cmd, payload, c.opts.RequestTimeout)
	if err != nil {
		return err
	}
	if err := protocol.ResponseErr(f); err != nil {
		return err
	}
	if out != nil {
		return f.Bind(out)
	}
	return nil
}

// SendMessage posts content to channel. When the channel is not connected
// the content is cached for replay on the next join.
func (c *Client) SendMessage(ctx context.Context, channel, content string) (Delivery, error) {
	username := c.Session().Username
	stubs := []protocol.MessageStub{{Username: username, MessageContent: content}}

	err := c.call(ctx, channel, protocol.CommandMessage, stubs, nil)
	switch {
	case err == nil:
		c.mu.Lock()
		if cc, ok := c.channels[channel]; ok {
			cc.messages = append(cc.messages, models.NewMessage(username, content))
		}
		c.mu.Unlock()
		return DeliverySent, nil

	case errors.Is(err, common.ErrNotConnected) && c.cache != nil:
		c.cache.Add(ctx, channel, content)
		c.logger.Info(ctx, "channel not connected, message cached", "channel", channel)
		return DeliveryCached, nil

	default:
		return DeliveryFailed, err
	}
}

func (c *Client) SetViewPermission(ctx context.Context, channel string, permission bool) error {
	return c.call(ctx, channel, protocol.CommandView, protocol.HostView{Username: c.Session().Username, Permission: permission}, nil)
}

func (c *Client) RetrieveInfo(ctx context.Context, channel string) (models.ChannelInfo, error) {
	var info models.ChannelInfo
	err := c.call(ctx, channel, protocol.CommandRetInfo, protocol.InfoRequest{Username: c.Session().Username}, &info)
	return info, err
}

func (c *Client) SetInvisible(ctx context.Context, channel string, invisible bool) (string, error) {
	var n protocol.Notice
	err := c.call(ctx, channel, protocol.CommandInvisible, protocol.InvisibleRequest{Username: c.Session().Username, Invisible: invisible}, &n)
	return n.Message, err
}

// Authorize adds (add=true) or removes target from the channel's members.
func (c *Client) Authorize(ctx context.Context, channel, target string, add bool) (string, error) {
	kind := protocol.AuthorRemove
	if add {
		kind = protocol.AuthorAdd
	}
	var n protocol.Notice
	err := c.call(ctx, channel, protocol.CommandAuthorize, protocol.AuthorizeRequest{
		Actor:      c.Session().Username,
		Target:     target,
		AuthorType: kind,
	}, &n)
	return n.Message, err
}

// Debug asks the host to dump its state to its log. There is no reply.
func (c *Client) Debug(ctx context.Context, channel string) error {
	cc, ok := c.channel(channel)
	if !ok {
		return fmt.Errorf("%w: %s", common.ErrNotConnected, channel)
	}
	frame, _, err := protocol.EncodeRequest(protocol.CommandDebug, nil, "")
	if err != nil {
		return err
	}
	if err := cc.write(frame, c); err != nil {
		cc.close()
		return fmt.Errorf("%w: send DEBUG: %w", common.ErrTransport, err)
	}
	return nil
}

// Connected lists joined channels, sorted.
func (c *Client) Connected() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Sorted(maps.Keys(c.channels))
}

// Messages returns a copy of the channel's log, nil when not joined.
func (c *Client) Messages(channel string) []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	cc, ok := c.channels[channel]
	if !ok {
		return nil
	}
	return slices.Clone(cc.messages)
}

// Disconnect closes the channel connection and clears its state.
func (c *Client) Disconnect(channel string) error {
	c.mu.Lock()
	cc, ok := c.channels[channel]
	if ok {
		delete(c.channels, channel)
	}
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", common.ErrNotConnected, channel)
	}
	cc.close()
	return nil
}

// DisconnectAll closes every channel and waits for the receivers to exit.
func (c *Client) DisconnectAll() {
	c.mu.Lock()
	all := slices.Collect(maps.Values(c.channels))
	c.channels = make(map[string]*channelConn)
	c.mu.Unlock()

	for _, cc := range all {
		cc.close()
	}
	c.wg.Wait()
}
