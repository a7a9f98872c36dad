package cli

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/peerchat/internal/common"
	"github.com/dmitrijs2005/peerchat/internal/logging"
	"github.com/dmitrijs2005/peerchat/internal/peer/cache"
	"github.com/dmitrijs2005/peerchat/internal/peer/config"
	"github.com/dmitrijs2005/peerchat/internal/tracker"
	trackerconfig "github.com/dmitrijs2005/peerchat/internal/tracker/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTracker(t *testing.T) string {
	t.Helper()
	cfg := &trackerconfig.Config{}
	cfg.LoadDefaults()
	cfg.ListenAddr = "127.0.0.1:0"

	s := tracker.NewServer(cfg, logging.Nop(), tracker.NewRegistry(nil))
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(s.Stop)
	return s.Addr().String()
}

func newTestApp(t *testing.T, trackerAddr string, mutate func(*config.Config)) *App {
	t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.TrackerAddr = trackerAddr
	cfg.CacheDir = t.TempDir()
	cfg.TrackerTimeout = 2 * time.Second
	if mutate != nil {
		mutate(cfg)
	}

	a := NewApp(cfg, logging.Nop())
	a.reader = bufio.NewReader(strings.NewReader(""))
	a.out = io.Discard
	t.Cleanup(func() { a.endSession(context.Background()) })
	return a
}

func stubInputs(t *testing.T, username string, password []byte) {
	t.Helper()
	origST, origGP := getSimpleText, getPassword
	getSimpleText = func(_ *bufio.Reader, _ string, _ io.Writer) (string, error) { return username, nil }
	getPassword = func(_ io.Writer) ([]byte, error) { return password, nil }
	t.Cleanup(func() {
		getSimpleText = origST
		getPassword = origGP
	})
}

func TestApp_SignUpHostAndChat(t *testing.T) {
	out := capturePrintln(t)
	ctx := context.Background()
	addr := startTracker(t)

	alice := newTestApp(t, addr, nil)
	stubInputs(t, "alice", []byte("pw"))
	require.NoError(t, alice.SignUp(ctx))
	assert.True(t, alice.isSignedIn())
	assert.Equal(t, "(alice)", alice.getStatus())

	require.NoError(t, alice.Host(ctx, "general", true))
	assert.Equal(t, []string{"general"}, alice.client.Connected())
	assert.Equal(t, "(alice #general)", alice.getStatus())
	require.Len(t, alice.client.Messages("general"), 1, "welcome message seeded")

	bob := newTestApp(t, addr, nil)
	require.NoError(t, bob.Guest(ctx, "bob"))
	assert.Equal(t, "(bob guest)", bob.getStatus())
	require.NoError(t, bob.List(ctx))
	require.NoError(t, bob.Join(ctx, "general"))

	require.NoError(t, bob.Send(ctx, "general", "hi alice"))
	require.Eventually(t, func() bool {
		return strings.Contains(strings.Join(out(), "\n"), "#general [")
	}, 3*time.Second, 10*time.Millisecond)
	assert.Len(t, alice.client.Messages("general"), 2)

	require.NoError(t, alice.Info(ctx, "general"))
	require.NoError(t, alice.View(ctx, "general", false))
	require.NoError(t, alice.Debug(ctx, "general"))

	printed := strings.Join(out(), "\n")
	assert.Contains(t, printed, "Signed in as alice")
	assert.Contains(t, printed, "Hosting #general")
	assert.Contains(t, printed, "#general [")
	assert.Contains(t, printed, "bob: hi alice")
	assert.Contains(t, printed, "general")
	assert.Contains(t, printed, "message sent")

	// Guests cannot be authorized nor host.
	assert.ErrorIs(t, alice.Authorize(ctx, "general", "bob", true), common.ErrRequest)
	assert.ErrorIs(t, bob.Host(ctx, "bobs", true), common.ErrUnauthorized)

	require.NoError(t, bob.Leave(ctx, "general"))
	assert.ErrorIs(t, bob.Show(ctx, "general"), common.ErrNotConnected)
}

func TestApp_SignInWrongPassword(t *testing.T) {
	capturePrintln(t)
	ctx := context.Background()
	addr := startTracker(t)

	a := newTestApp(t, addr, nil)
	stubInputs(t, "carol", []byte("right"))
	require.NoError(t, a.SignUp(ctx))
	require.NoError(t, a.SignOut(ctx))
	assert.False(t, a.isSignedIn())

	stubInputs(t, "carol", []byte("wrong"))
	assert.ErrorIs(t, a.SignIn(ctx), common.ErrRequest)
	assert.False(t, a.isSignedIn())

	stubInputs(t, "carol", []byte("right"))
	require.NoError(t, a.SignIn(ctx))
	assert.True(t, a.isSignedIn())
}

func TestApp_EmptyUsername(t *testing.T) {
	capturePrintln(t)
	a := newTestApp(t, startTracker(t), nil)
	stubInputs(t, "", []byte("pw"))
	assert.ErrorIs(t, a.SignIn(context.Background()), common.ErrRequest)
}

func TestApp_GuestRandomName(t *testing.T) {
	capturePrintln(t)
	a := newTestApp(t, startTracker(t), nil)
	require.NoError(t, a.Guest(context.Background(), ""))
	assert.True(t, strings.HasPrefix(a.client.Session().Username, "guest-"))
}

func TestApp_CachedMessagesReplayOnJoin(t *testing.T) {
	for _, store := range []string{config.CacheStoreJSON, config.CacheStoreSQLite} {
		t.Run(store, func(t *testing.T) {
			out := capturePrintln(t)
			ctx := context.Background()
			addr := startTracker(t)

			owner := newTestApp(t, addr, nil)
			stubInputs(t, "owner", []byte("pw"))
			require.NoError(t, owner.SignUp(ctx))
			require.NoError(t, owner.Host(ctx, "lobby", true))

			dir := t.TempDir()
			dave := newTestApp(t, addr, func(c *config.Config) {
				c.CacheStore = store
				c.CacheDir = dir
			})
			stubInputs(t, "dave", []byte("pw"))
			require.NoError(t, dave.SignUp(ctx))

			require.NoError(t, dave.Send(ctx, "lobby", "offline note"))
			assert.Contains(t, strings.Join(out(), "\n"), "message cached")

			switch store {
			case config.CacheStoreJSON:
				name, err := cache.FileName("dave")
				require.NoError(t, err)
				_, err = os.Stat(filepath.Join(dir, name))
				require.NoError(t, err)
			case config.CacheStoreSQLite:
				_, err := os.Stat(filepath.Join(dir, "dave_cache.db"))
				require.NoError(t, err)
			}

			// A new session sees the persisted entry.
			require.NoError(t, dave.SignOut(ctx))
			require.NoError(t, dave.SignIn(ctx))
			assert.Contains(t, strings.Join(out(), "\n"), "Cached messages waiting for: [lobby]")

			require.NoError(t, dave.Join(ctx, "lobby"))
			require.Eventually(t, func() bool {
				for _, m := range owner.client.Messages("lobby") {
					if m.Username == "dave" && m.MessageContent == "offline note" {
						return true
					}
				}
				return false
			}, 3*time.Second, 10*time.Millisecond)
		})
	}
}

func TestApp_UnknownCacheStore(t *testing.T) {
	capturePrintln(t)
	a := newTestApp(t, startTracker(t), func(c *config.Config) { c.CacheStore = "redis" })
	err := a.Guest(context.Background(), "eve")
	assert.ErrorIs(t, err, common.ErrRequest)
	assert.False(t, a.isSignedIn())
}

func TestApp_RunExitsOnQuit(t *testing.T) {
	capturePrintln(t)
	a := newTestApp(t, startTracker(t), nil)
	a.reader = bufio.NewReader(strings.NewReader("help\nquit\n"))

	done := make(chan struct{})
	go func() {
		a.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestApp_RunWaitsForRunningCommandOnCancel(t *testing.T) {
	capturePrintln(t)
	a := newTestApp(t, startTracker(t), nil)

	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })
	a.reader = bufio.NewReader(pr)

	prompted := make(chan struct{})
	release := make(chan struct{})
	origST, origGP := getSimpleText, getPassword
	getSimpleText = func(_ *bufio.Reader, _ string, _ io.Writer) (string, error) {
		close(prompted)
		<-release
		return "erin", nil
	}
	getPassword = func(_ io.Writer) ([]byte, error) { return []byte("pw"), nil }
	t.Cleanup(func() {
		getSimpleText = origST
		getPassword = origGP
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Run(ctx)
		close(done)
	}()

	_, err := pw.Write([]byte("signup\n"))
	require.NoError(t, err)
	select {
	case <-prompted:
	case <-time.After(3 * time.Second):
		t.Fatal("signup did not start")
	}

	cancel()
	select {
	case <-done:
		t.Fatal("Run returned while a command was still running")
	case <-time.After(200 * time.Millisecond):
	}

	close(release)
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after the command finished")
	}
	assert.Nil(t, a.client)
	assert.Empty(t, a.hosts)
	assert.True(t, a.closed)
}

func TestApp_GuestNameCannotEscapeCacheDir(t *testing.T) {
	capturePrintln(t)
	addr := startTracker(t)

	for _, store := range []string{config.CacheStoreJSON, config.CacheStoreSQLite} {
		t.Run(store, func(t *testing.T) {
			root := t.TempDir()
			cacheDir := filepath.Join(root, "cache")
			a := newTestApp(t, addr, func(c *config.Config) {
				c.CacheStore = store
				c.CacheDir = cacheDir
			})

			err := a.Guest(context.Background(), "../escaped-"+store)
			assert.ErrorIs(t, err, common.ErrRequest)
			assert.False(t, a.isSignedIn())

			entries, err := os.ReadDir(root)
			require.NoError(t, err)
			for _, e := range entries {
				assert.NotContains(t, e.Name(), "escaped", "nothing may be written outside the cache dir")
			}
		})
	}
}
