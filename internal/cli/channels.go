package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/peerchat/internal/common"
)

// List prints the channels known to the tracker.
func (a *App) List(ctx context.Context) error {
	records, err := a.tracker.List(ctx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		printlnFn("No channels")
		return nil
	}
	for _, r := range records {
		view := "private"
		if r.ViewPermission {
			view = "public"
		}
		printlnFn(fmt.Sprintf("%-20s %-21s %s", r.ChannelName, r.Address(), view))
	}
	return nil
}

// Channels prints joined and hosted channels.
func (a *App) Channels(context.Context) error {
	printlnFn("Joined:", a.client.Connected())
	hosted := make([]string, 0, len(a.hosts))
	for name := range a.hosts {
		hosted = append(hosted, name)
	}
	printlnFn("Hosting:", hosted)
	return nil
}

func (a *App) Join(ctx context.Context, channel string) error {
	if err := a.client.JoinByName(ctx, channel); err != nil {
		return err
	}
	return a.Show(ctx, channel)
}

func (a *App) Leave(_ context.Context, channel string) error {
	if err := a.client.Disconnect(channel); err != nil {
		return err
	}
	printlnFn("Left", channel)
	return nil
}

// Send posts text to channel, or caches it when the channel is not joined.
func (a *App) Send(ctx context.Context, channel, text string) error {
	d, err := a.client.SendMessage(ctx, channel, text)
	if err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("#%s message %s", channel, d))
	return nil
}

// Show prints the channel's message log.
func (a *App) Show(_ context.Context, channel string) error {
	msgs := a.client.Messages(channel)
	if msgs == nil {
		return fmt.Errorf("%w: %s", common.ErrNotConnected, channel)
	}
	printlnFn(fmt.Sprintf("#%s (%d messages)", channel, len(msgs)))
	for _, m := range msgs {
		printlnFn(m.String())
	}
	return nil
}
