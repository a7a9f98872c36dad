package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/dmitrijs2005/peerchat/internal/common"
	"github.com/dmitrijs2005/peerchat/internal/filex"
	"github.com/dmitrijs2005/peerchat/internal/peer/cache"
	"github.com/dmitrijs2005/peerchat/internal/peer/client"
	"github.com/dmitrijs2005/peerchat/internal/peer/config"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

func (a *App) credentials() (string, []byte, error) {
	username, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return "", nil, err
	}
	if username == "" {
		return "", nil, fmt.Errorf("%w: username is required", common.ErrRequest)
	}
	if err := cache.CheckUsername(username); err != nil {
		return "", nil, err
	}
	password, err := getPassword(a.out)
	if err != nil {
		return "", nil, err
	}
	return username, password, nil
}

// SignIn prompts for credentials and authenticates with the tracker.
func (a *App) SignIn(ctx context.Context) error {
	username, password, err := a.credentials()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	c := client.New(a.tracker, nil, a.clientOptions(), a.logger)
	if err := c.SignIn(ctx, username, string(password)); err != nil {
		return err
	}
	return a.startSession(ctx, c.Session())
}

// SignUp prompts for credentials and creates an account on the tracker.
func (a *App) SignUp(ctx context.Context) error {
	username, password, err := a.credentials()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	c := client.New(a.tracker, nil, a.clientOptions(), a.logger)
	if err := c.SignUp(ctx, username, string(password)); err != nil {
		return err
	}
	return a.startSession(ctx, c.Session())
}

// Guest starts a guest session. An empty name gets a random one.
func (a *App) Guest(ctx context.Context, name string) error {
	if name == "" {
		suffix, err := common.MakeRandHexString(3)
		if err != nil {
			return err
		}
		name = "guest-" + suffix
	}
	if err := cache.CheckUsername(name); err != nil {
		return err
	}

	c := client.New(a.tracker, nil, a.clientOptions(), a.logger)
	if err := c.Guest(ctx, name); err != nil {
		return err
	}
	return a.startSession(ctx, c.Session())
}

// SignOut leaves every channel, stops hosted channels and drops the session.
func (a *App) SignOut(ctx context.Context) error {
	a.endSession(ctx)
	printlnFn("Signed out")
	return nil
}

func (a *App) startSession(ctx context.Context, s client.Session) error {
	a.endSession(ctx)

	c, err := a.openCache(ctx, s.Username)
	if err != nil {
		return fmt.Errorf("open message cache: %w", err)
	}
	a.client = client.New(a.tracker, c, a.clientOptions(), a.logger)
	a.client.SetSession(s)

	printlnFn("Signed in as", s.Username)
	if pending := c.Channels(); len(pending) > 0 {
		printlnFn("Cached messages waiting for:", pending)
	}
	return nil
}

func (a *App) endSession(ctx context.Context) {
	for name, h := range a.hosts {
		h.Stop()
		delete(a.hosts, name)
	}
	if a.client != nil {
		a.client.DisconnectAll()
		a.client = nil
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn(ctx, "closing cache store", "error", err)
		}
		a.store = nil
	}
}

func (a *App) openCache(ctx context.Context, username string) (*cache.Cache, error) {
	var store cache.Store

	switch a.config.CacheStore {
	case config.CacheStoreJSON:
		s, err := cache.NewJSONFileStore(a.config.CacheDir, username)
		if err != nil {
			return nil, err
		}
		store = s

	case config.CacheStoreSQLite:
		dsn := a.config.SQLiteDSN
		if dsn == "" {
			if err := cache.CheckUsername(username); err != nil {
				return nil, err
			}
			dir, err := filex.EnsureDir(a.config.CacheDir)
			if err != nil {
				return nil, err
			}
			dsn = filepath.Join(dir, username+"_cache.db")
		}
		s, err := cache.OpenSQLiteStore(ctx, dsn)
		if err != nil {
			return nil, err
		}
		a.store = s
		store = s

	default:
		return nil, fmt.Errorf("%w: unknown cache store %q", common.ErrRequest, a.config.CacheStore)
	}

	return cache.New(ctx, store, a.logger)
}
