package host

import (
	"context"
	"time"

	"github.com/dmitrijs2005/peerchat/internal/models"
)

const (
	DefaultMaxConnections   = 10
	DefaultBatchSize        = 50
	DefaultWriteTimeout     = 5 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
)

// Tracker is the part of the tracker client a host needs.
type Tracker interface {
	Host(ctx context.Context, token string, record models.ChannelRecord) error
	View(ctx context.Context, token, channel string, permission bool) error
}

// Options configures a Host.
type Options struct {
	ChannelName string
	Owner       string
	// Token is the owner's tracker session, sent with HOST and VIEW.
	Token string
	// ListenAddr is the local bind address; port 0 picks a free port.
	ListenAddr string
	// AdvertiseIP is the address published to the tracker. Empty uses the
	// bound listener's IP.
	AdvertiseIP      string
	ViewPermission   bool
	MaxConnections   int
	BatchSize        int
	WriteTimeout     time.Duration
	HandshakeTimeout time.Duration
	// Seed is appended to the message log before the first connection.
	Seed []models.Message
}

func (o *Options) setDefaults() {
	if o.ListenAddr == "" {
		o.ListenAddr = "127.0.0.1:0"
	}
	if o.MaxConnections <= 0 {
		o.MaxConnections = DefaultMaxConnections
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = DefaultHandshakeTimeout
	}
}
