package cli

import (
	"context"
	"fmt"
	"net"
	"slices"

	"github.com/dmitrijs2005/peerchat/internal/common"
	"github.com/dmitrijs2005/peerchat/internal/models"
	"github.com/dmitrijs2005/peerchat/internal/netx"
	"github.com/dmitrijs2005/peerchat/internal/peer/host"
)

const systemUser = "system"

// Host starts serving channel from this process, registers it with the
// tracker and joins it. Guests cannot own channels.
func (a *App) Host(ctx context.Context, channel string, public bool) error {
	s := a.client.Session()
	if s.UserType == common.UserTypeGuest {
		return fmt.Errorf("%w: guests cannot host channels", common.ErrUnauthorized)
	}
	if _, ok := a.hosts[channel]; ok {
		return fmt.Errorf("%w: already hosting %s", common.ErrRequest, channel)
	}

	var seed []models.Message
	if a.config.WelcomeMessage != "" {
		seed = append(seed, models.NewMessage(systemUser, a.config.WelcomeMessage))
	}

	h := host.New(host.Options{
		ChannelName:    channel,
		Owner:          s.Username,
		Token:          s.Token,
		ListenAddr:     a.config.ListenAddr,
		AdvertiseIP:    a.config.AdvertiseIP,
		ViewPermission: public,
		MaxConnections: a.config.MaxConnections,
		Seed:           seed,
	}, a.tracker, a.logger)
	if err := h.Start(ctx); err != nil {
		return err
	}
	a.hosts[channel] = h

	ip, port, err := netx.SplitHostPort(h.Addr().String())
	if err != nil {
		return err
	}
	if parsed := net.ParseIP(ip); parsed == nil || parsed.IsUnspecified() {
		ip = "127.0.0.1"
	}
	printlnFn(fmt.Sprintf("Hosting #%s on %s:%d", channel, ip, port))

	return a.client.Join(ctx, models.ChannelRecord{
		ChannelName:    channel,
		PeerServerIP:   ip,
		PeerServerPort: port,
		ViewPermission: public,
	})
}

func (a *App) View(ctx context.Context, channel string, public bool) error {
	if err := a.client.SetViewPermission(ctx, channel, public); err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("#%s view permission set to %t", channel, public))
	return nil
}

// Info prints the channel's members and log size.
func (a *App) Info(ctx context.Context, channel string) error {
	info, err := a.client.RetrieveInfo(ctx, channel)
	if err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("#%s public=%t messages=%d", channel, info.ViewPermission, len(info.Messages)))

	names := make([]string, 0, len(info.AuthenPeers))
	for name := range info.AuthenPeers {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		p := info.AuthenPeers[name]
		printlnFn(fmt.Sprintf("  %-16s %-6s %s", name, p.Role, p.Status))
	}
	return nil
}

// Invisible toggles visibility in channel. Later joins announce the same
// setting.
func (a *App) Invisible(ctx context.Context, channel string, on bool) error {
	msg, err := a.client.SetInvisible(ctx, channel, on)
	if err != nil {
		return err
	}
	s := a.client.Session()
	s.Invisible = on
	a.client.SetSession(s)
	printlnFn(msg)
	return nil
}

func (a *App) Authorize(ctx context.Context, channel, user string, add bool) error {
	msg, err := a.client.Authorize(ctx, channel, user, add)
	if err != nil {
		return err
	}
	printlnFn(msg)
	return nil
}

func (a *App) Debug(ctx context.Context, channel string) error {
	if err := a.client.Debug(ctx, channel); err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("#%s state written to the host log", channel))
	return nil
}
