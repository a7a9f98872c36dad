package host

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/peerchat/internal/common"
	"github.com/dmitrijs2005/peerchat/internal/logging"
	"github.com/dmitrijs2005/peerchat/internal/models"
	"github.com/dmitrijs2005/peerchat/internal/protocol"
	"github.com/stretchr/testify/require"
)

type fakeTracker struct {
	mu       sync.Mutex
	hosted   []models.ChannelRecord
	views    []bool
	tokens   []string
	failView bool
}

func (f *fakeTracker) Host(ctx context.Context, token string, rec models.ChannelRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, token)
	f.hosted = append(f.hosted, rec)
	return nil
}

func (f *fakeTracker) View(ctx context.Context, token, channel string, permission bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, token)
	if f.failView {
		return fmt.Errorf("%w: tracker unreachable", common.ErrTransport)
	}
	f.views = append(f.views, permission)
	return nil
}

func startHost(t *testing.T, opts Options, tr Tracker) *Host {
	t.Helper()
	if opts.ChannelName == "" {
		opts.ChannelName = "general"
	}
	if opts.Owner == "" {
		opts.Owner = "alice"
	}
	if opts.Token == "" {
		opts.Token = "alice-token"
	}
	h := New(opts, tr, logging.Nop())
	require.NoError(t, h.Start(context.Background()))
	t.Cleanup(h.Stop)
	return h
}

const ioTimeout = 3 * time.Second

// testPeer is a raw protocol client.
type testPeer struct {
	t      *testing.T
	conn   net.Conn
	fr     *protocol.FrameReader
	pushed []models.Message
}

func dial(t *testing.T, h *Host) *testPeer {
	t.Helper()
	conn, err := net.Dial("tcp", h.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &testPeer{t: t, conn: conn, fr: protocol.NewFrameReader(conn)}
}

func (p *testPeer) send(cmd protocol.Command, payload any) (string, error) {
	frame, id, err := protocol.EncodeRequest(cmd, payload, "")
	if err != nil {
		return "", err
	}
	_, err = p.conn.Write(frame)
	return id, err
}

func (p *testPeer) next() (protocol.Frame, error) {
	if err := p.conn.SetReadDeadline(time.Now().Add(ioTimeout)); err != nil {
		return protocol.Frame{}, err
	}
	return p.fr.Next()
}

// await reads until the response for id arrives, buffering pushes.
func (p *testPeer) await(id string) (protocol.Frame, error) {
	for {
		f, err := p.next()
		if err != nil {
			return f, err
		}
		if f.IsResponse() && f.ID == id {
			return f, nil
		}
		if f.Command() == protocol.CommandMessage && f.ID == "" {
			var msgs []models.Message
			if err := f.Bind(&msgs); err != nil {
				return f, err
			}
			p.pushed = append(p.pushed, msgs...)
			continue
		}
		return f, fmt.Errorf("unexpected frame %s id=%q", f.Header, f.ID)
	}
}

func (p *testPeer) call(cmd protocol.Command, payload any) (protocol.Frame, error) {
	id, err := p.send(cmd, payload)
	if err != nil {
		return protocol.Frame{}, err
	}
	return p.await(id)
}

func (p *testPeer) mustCall(cmd protocol.Command, payload any) protocol.Frame {
	p.t.Helper()
	f, err := p.call(cmd, payload)
	require.NoError(p.t, err)
	return f
}

// connect sends CONNECT and returns the response frame.
func (p *testPeer) connect(username, userType string, invisible bool) protocol.Frame {
	p.t.Helper()
	return p.mustCall(protocol.CommandConnect, models.Identity{Username: username, UserType: userType, Invisible: invisible})
}

// join connects and requires OK, returning the snapshot.
func (p *testPeer) join(username string) []models.Message {
	p.t.Helper()
	f := p.connect(username, common.UserTypeRegistered, false)
	require.Equal(p.t, protocol.StatusOK, f.Status(), "CONNECT for %s", username)
	var snapshot []models.Message
	require.NoError(p.t, f.Bind(&snapshot))
	return snapshot
}

func (p *testPeer) post(contents ...string) (protocol.Frame, error) {
	stubs := make([]protocol.MessageStub, 0, len(contents))
	for _, c := range contents {
		stubs = append(stubs, protocol.MessageStub{MessageContent: c})
	}
	return p.call(protocol.CommandMessage, stubs)
}

func (p *testPeer) mustPost(contents ...string) {
	p.t.Helper()
	f, err := p.post(contents...)
	require.NoError(p.t, err)
	require.Equal(p.t, protocol.StatusOK, f.Status())
}

// waitPushed reads pushes until at least n messages have arrived.
func (p *testPeer) waitPushed(n int) ([]models.Message, error) {
	for len(p.pushed) < n {
		f, err := p.next()
		if err != nil {
			return p.pushed, err
		}
		if f.Command() != protocol.CommandMessage || f.ID != "" {
			return p.pushed, errors.New("unexpected frame " + f.Header)
		}
		var msgs []models.Message
		if err := f.Bind(&msgs); err != nil {
			return p.pushed, err
		}
		p.pushed = append(p.pushed, msgs...)
	}
	return p.pushed, nil
}

// expectClosed requires the host to close the connection.
func (p *testPeer) expectClosed() {
	p.t.Helper()
	for {
		_, err := p.next()
		if err == nil {
			continue
		}
		require.Falsef(p.t, errors.Is(err, common.ErrProtocol), "unexpected protocol error %v", err)
		require.Falsef(p.t, isTimeout(err), "connection was not closed")
		return
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func contents(msgs []models.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.MessageContent
	}
	return out
}
