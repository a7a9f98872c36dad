package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/peerchat/internal/common"
	"github.com/dmitrijs2005/peerchat/internal/logging"
	"github.com/dmitrijs2005/peerchat/internal/models"
	"github.com/dmitrijs2005/peerchat/internal/netx"
	"github.com/dmitrijs2005/peerchat/internal/peer/cache"
	"github.com/dmitrijs2005/peerchat/internal/peer/host"
	"github.com/dmitrijs2005/peerchat/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHost(t *testing.T, opts host.Options) (*host.Host, models.ChannelRecord) {
	t.Helper()
	if opts.ChannelName == "" {
		opts.ChannelName = "general"
	}
	if opts.Owner == "" {
		opts.Owner = "alice"
	}
	h := host.New(opts, nil, logging.Nop())
	require.NoError(t, h.Start(context.Background()))
	t.Cleanup(h.Stop)

	ip, port, err := netx.SplitHostPort(h.Addr().String())
	require.NoError(t, err)
	return h, models.ChannelRecord{ChannelName: opts.ChannelName, PeerServerIP: ip, PeerServerPort: port, ViewPermission: opts.ViewPermission}
}

func newClient(t *testing.T, username string, c *cache.Cache, opts Options) *Client {
	t.Helper()
	cl := New(nil, c, opts, logging.Nop())
	cl.SetSession(Session{Username: username, UserType: common.UserTypeRegistered})
	t.Cleanup(cl.DisconnectAll)
	return cl
}

func newCache(t *testing.T, username string) (*cache.Cache, *cache.JSONFileStore) {
	t.Helper()
	store, err := cache.NewJSONFileStore(t.TempDir(), username)
	require.NoError(t, err)
	c, err := cache.New(context.Background(), store, logging.Nop())
	require.NoError(t, err)
	return c, store
}

var welcome = []models.Message{{Username: "system", MessageContent: "Welcome to the channel!", Time: "00:00:00"}}

func TestJoin_SnapshotAndLiveMessages(t *testing.T) {
	ctx := context.Background()
	h, rec := startHost(t, host.Options{ViewPermission: true, Seed: welcome})

	var (
		hookMu sync.Mutex
		hooked []models.Message
	)
	alice := newClient(t, "alice", nil, Options{OnMessage: func(channel string, m models.Message) {
		hookMu.Lock()
		defer hookMu.Unlock()
		assert.Equal(t, "general", channel)
		hooked = append(hooked, m)
	}})
	bob := newClient(t, "bob", nil, Options{})

	require.NoError(t, alice.Join(ctx, rec))
	require.NoError(t, bob.Join(ctx, rec))
	assert.Equal(t, welcome, alice.Messages("general"))
	assert.Equal(t, []string{"general"}, bob.Connected())

	d, err := bob.SendMessage(ctx, "general", "hi alice")
	require.NoError(t, err)
	assert.Equal(t, DeliverySent, d)

	require.Eventually(t, func() bool { return len(alice.Messages("general")) == 2 }, 3*time.Second, 10*time.Millisecond)
	got := alice.Messages("general")[1]
	assert.Equal(t, "bob", got.Username)
	assert.Equal(t, "hi alice", got.MessageContent)

	hookMu.Lock()
	assert.Len(t, hooked, 1)
	hookMu.Unlock()

	// The sender keeps a local copy since hosts do not echo.
	bobLog := bob.Messages("general")
	require.Len(t, bobLog, 2)
	assert.Equal(t, "hi alice", bobLog[1].MessageContent)

	assert.Len(t, h.Messages(), 2)
}

func TestJoin_UnauthorizedLeavesNoState(t *testing.T) {
	_, rec := startHost(t, host.Options{ViewPermission: false})

	dave := newClient(t, "dave", nil, Options{})
	err := dave.Join(context.Background(), rec)

	assert.ErrorIs(t, err, common.ErrUnauthorized)
	var re *protocol.ResponseError
	assert.True(t, errors.As(err, &re))
	assert.Empty(t, dave.Connected())
	assert.Nil(t, dave.Messages("general"))
}

func TestJoin_RequiresSession(t *testing.T) {
	_, rec := startHost(t, host.Options{ViewPermission: true})
	cl := New(nil, nil, Options{}, logging.Nop())

	assert.ErrorIs(t, cl.Join(context.Background(), rec), common.ErrUnauthorized)
}

func TestJoin_SnapshotLargerThanServerFrameLimit(t *testing.T) {
	seed := make([]models.Message, 30_000)
	for i := range seed {
		seed[i] = models.Message{
			Username:       "alice",
			MessageContent: fmt.Sprintf("%05d %s", i, strings.Repeat("catch-up history ", 7)),
			Time:           "12:00:00",
		}
	}
	_, rec := startHost(t, host.Options{ViewPermission: true, Seed: seed})

	bob := newClient(t, "bob", nil, Options{JoinTimeout: 20 * time.Second})
	require.NoError(t, bob.Join(context.Background(), rec))

	got := bob.Messages("general")
	require.Len(t, got, len(seed))
	assert.Equal(t, seed[len(seed)-1], got[len(got)-1])
}

func TestJoin_FrameLimitFailsFast(t *testing.T) {
	seed := make([]models.Message, 100)
	for i := range seed {
		seed[i] = models.Message{Username: "alice", MessageContent: strings.Repeat("x", 100), Time: "12:00:00"}
	}
	_, rec := startHost(t, host.Options{ViewPermission: true, Seed: seed})

	bob := newClient(t, "bob", nil, Options{MaxFrameSize: 1024, JoinTimeout: 10 * time.Second})
	start := time.Now()
	err := bob.Join(context.Background(), rec)

	require.ErrorIs(t, err, protocol.ErrFrameTooLarge)
	assert.NotErrorIs(t, err, common.ErrTimeout)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Empty(t, bob.Connected())
}

func TestJoin_DialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ip, port, err := netx.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	require.NoError(t, ln.Close())

	cl := newClient(t, "bob", nil, Options{JoinTimeout: time.Second})
	err = cl.Join(context.Background(), models.ChannelRecord{ChannelName: "gone", PeerServerIP: ip, PeerServerPort: port})
	assert.ErrorIs(t, err, common.ErrTransport)
	assert.Empty(t, cl.Connected())
}

func TestSendMessage_CachesThenReplaysOnJoin(t *testing.T) {
	ctx := context.Background()
	h, rec := startHost(t, host.Options{ViewPermission: true})

	c, store := newCache(t, "bob")
	bob := newClient(t, "bob", c, Options{})

	d, err := bob.SendMessage(ctx, "general", "written offline")
	require.NoError(t, err)
	assert.Equal(t, DeliveryCached, d)
	d, err = bob.SendMessage(ctx, "general", "still offline")
	require.NoError(t, err)
	assert.Equal(t, DeliveryCached, d)

	persisted, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"written offline", "still offline"}, persisted["general"])

	require.NoError(t, bob.Join(ctx, rec))

	log := h.Messages()
	require.Len(t, log, 2)
	assert.Equal(t, "bob", log[0].Username)
	assert.Equal(t, "written offline", log[0].MessageContent)
	assert.Equal(t, "still offline", log[1].MessageContent)

	assert.Empty(t, c.Pending("general"))
	persisted, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, persisted)

	assert.Len(t, bob.Messages("general"), 2)
}

func TestSendMessage_NoCacheNotConnected(t *testing.T) {
	bob := newClient(t, "bob", nil, Options{})
	d, err := bob.SendMessage(context.Background(), "general", "x")
	assert.Equal(t, DeliveryFailed, d)
	assert.ErrorIs(t, err, common.ErrNotConnected)
}

func TestSendMessage_UnauthorizedIsReturned(t *testing.T) {
	ctx := context.Background()
	_, rec := startHost(t, host.Options{ViewPermission: true})

	alice := newClient(t, "alice", nil, Options{})
	bob := newClient(t, "bob", nil, Options{})
	require.NoError(t, alice.Join(ctx, rec))
	require.NoError(t, bob.Join(ctx, rec))

	require.NoError(t, alice.SetViewPermission(ctx, "general", false))

	d, err := bob.SendMessage(ctx, "general", "am I muted?")
	assert.Equal(t, DeliveryFailed, d)
	assert.ErrorIs(t, err, common.ErrUnauthorized)
	assert.Equal(t, []string{"general"}, bob.Connected(), "lowering view permission does not evict")
}

func TestOwnerOperations(t *testing.T) {
	ctx := context.Background()
	h, rec := startHost(t, host.Options{ViewPermission: true, Seed: welcome})

	alice := newClient(t, "alice", nil, Options{})
	carol := newClient(t, "carol", nil, Options{})
	require.NoError(t, alice.Join(ctx, rec))
	require.NoError(t, carol.Join(ctx, rec))

	msg, err := alice.Authorize(ctx, "general", "carol", true)
	require.NoError(t, err)
	assert.Contains(t, msg, "carol")

	_, err = alice.Authorize(ctx, "general", "nobody", true)
	assert.ErrorIs(t, err, common.ErrRequest)

	_, err = carol.Authorize(ctx, "general", "alice", false)
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	info, err := carol.RetrieveInfo(ctx, "general")
	require.NoError(t, err)
	assert.Equal(t, welcome, info.Messages)
	assert.Equal(t, common.RoleUser, info.AuthenPeers["carol"].Role)

	msg, err = carol.SetInvisible(ctx, "general", true)
	require.NoError(t, err)
	assert.NotEmpty(t, msg)
	assert.Equal(t, common.StatusOffline, h.AuthorizedPeers()["carol"].Status)

	require.NoError(t, alice.Debug(ctx, "general"))
	_, err = alice.RetrieveInfo(ctx, "general")
	require.NoError(t, err, "DEBUG must not leave a stray response behind")

	assert.ErrorIs(t, alice.Debug(ctx, "elsewhere"), common.ErrNotConnected)
}

func TestDisconnect(t *testing.T) {
	ctx := context.Background()
	h, rec := startHost(t, host.Options{ViewPermission: true})

	bob := newClient(t, "bob", nil, Options{})
	require.NoError(t, bob.Join(ctx, rec))
	require.Eventually(t, func() bool { return len(h.ConnectedUsers()) == 1 }, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, bob.Disconnect("general"))
	assert.Empty(t, bob.Connected())
	assert.ErrorIs(t, bob.Disconnect("general"), common.ErrNotConnected)

	require.Eventually(t, func() bool { return len(h.ConnectedUsers()) == 0 }, 3*time.Second, 10*time.Millisecond)

	// Rejoining works after a disconnect.
	require.NoError(t, bob.Join(ctx, rec))
	assert.Equal(t, []string{"general"}, bob.Connected())
}

func TestHostShutdownClearsChannel(t *testing.T) {
	ctx := context.Background()
	h, rec := startHost(t, host.Options{ViewPermission: true})

	bob := newClient(t, "bob", nil, Options{})
	require.NoError(t, bob.Join(ctx, rec))

	h.Stop()

	require.Eventually(t, func() bool { return len(bob.Connected()) == 0 }, 3*time.Second, 10*time.Millisecond)
	_, err := bob.RetrieveInfo(ctx, "general")
	assert.ErrorIs(t, err, common.ErrNotConnected)
}
