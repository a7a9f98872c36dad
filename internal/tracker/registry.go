package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/peerchat/internal/common"
	"github.com/dmitrijs2005/peerchat/internal/models"
	"github.com/dmitrijs2005/peerchat/internal/tracker/accounts"
)

func requestError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", common.ErrRequest, fmt.Sprintf(format, args...))
}

// Registry is the tracker state. All mutations go through mu.
type Registry struct {
	mu       sync.RWMutex
	channels []models.ChannelRecord
	owners   map[string]string
	guests   map[string]struct{}
	accounts accounts.Repository
}

func NewRegistry(repo accounts.Repository) *Registry {
	if repo == nil {
		repo = accounts.NewMemoryRepository()
	}
	return &Registry{
		owners:   make(map[string]string),
		guests:   make(map[string]struct{}),
		accounts: repo,
	}
}

// List returns a copy of the channel directory in registration order.
func (r *Registry) List() []models.ChannelRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.ChannelRecord, len(r.channels))
	copy(out, r.channels)
	return out
}

// Host registers a channel on behalf of owner. A record with the same name
// replaces the old one in place, but only for the owner who registered it.
func (r *Registry) Host(owner string, record models.ChannelRecord) error {
	if record.ChannelName == "" {
		return requestError("channel_name is required")
	}
	if record.PeerServerIP == "" || record.PeerServerPort <= 0 || record.PeerServerPort > 65535 {
		return requestError("invalid peer server address %q:%d", record.PeerServerIP, record.PeerServerPort)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.channels {
		if r.channels[i].ChannelName == record.ChannelName {
			if r.owners[record.ChannelName] != owner {
				return notOwner(owner, record.ChannelName)
			}
			r.channels[i] = record
			return nil
		}
	}
	r.channels = append(r.channels, record)
	r.owners[record.ChannelName] = owner
	return nil
}

// View updates the view permission of a hosted channel. Only the channel's
// owner may change it.
func (r *Registry) View(owner, name string, permission bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.channels {
		if r.channels[i].ChannelName == name {
			if r.owners[name] != owner {
				return notOwner(owner, name)
			}
			r.channels[i].ViewPermission = permission
			return nil
		}
	}
	return fmt.Errorf("%w: channel %q: %w", common.ErrRequest, name, common.ErrorNotFound)
}

// Owner returns the username that registered the channel.
func (r *Registry) Owner(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	owner, ok := r.owners[name]
	return owner, ok
}

func notOwner(user, channel string) error {
	return fmt.Errorf("%w: %q does not own channel %q", common.ErrUnauthorized, user, channel)
}

// SignIn checks credentials. A wrong username and a wrong password are
// reported the same way.
func (r *Registry) SignIn(ctx context.Context, username, password string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, err := r.accounts.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return requestError("invalid username or password")
		}
		return err
	}
	if !accounts.CheckPassword(account, password) {
		return requestError("invalid username or password")
	}
	return nil
}

// SignUp registers a new account.
func (r *Registry) SignUp(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return requestError("username and password are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.accounts.GetByUsername(ctx, username)
	switch {
	case err == nil:
		return requestError("username %q is taken", username)
	case !errors.Is(err, common.ErrorNotFound):
		return err
	}

	if err := r.accounts.Create(ctx, accounts.NewAccount(username, password)); err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return requestError("username %q is taken", username)
		}
		return err
	}
	return nil
}

// Guest records a guest session. Guest names may not shadow registered
// accounts; reusing a guest name is allowed.
func (r *Registry) Guest(ctx context.Context, username string) error {
	if username == "" {
		return requestError("username is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.accounts.GetByUsername(ctx, username)
	switch {
	case err == nil:
		return requestError("username %q belongs to a registered user", username)
	case !errors.Is(err, common.ErrorNotFound):
		return err
	}

	r.guests[username] = struct{}{}
	return nil
}

// IsGuest reports whether username has an active guest record.
func (r *Registry) IsGuest(username string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.guests[username]
	return ok
}
