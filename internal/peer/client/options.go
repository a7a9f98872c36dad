package client

import (
	"context"
	"time"

	"github.com/dmitrijs2005/peerchat/internal/models"
)

const (
	DefaultRequestTimeout = 5 * time.Second
	DefaultJoinTimeout    = 5 * time.Second
	DefaultWriteTimeout   = 5 * time.Second
)

// Tracker is the part of the tracker client a peer needs.
type Tracker interface {
	List(ctx context.Context) ([]models.ChannelRecord, error)
	SignIn(ctx context.Context, username, password string) (string, error)
	SignUp(ctx context.Context, username, password string) (string, error)
	Guest(ctx context.Context, username string) (string, error)
}

type Options struct {
	RequestTimeout time.Duration
	JoinTimeout    time.Duration
	WriteTimeout   time.Duration
	// MaxFrameSize caps a single frame read from a host. Zero means no
	// limit; a host's snapshot grows with its log.
	MaxFrameSize int
	// OnMessage, when set, is called from a receiver goroutine for every
	// message pushed by a host.
	OnMessage func(channel string, msg models.Message)
}

func (o *Options) setDefaults() {
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = DefaultRequestTimeout
	}
	if o.JoinTimeout <= 0 {
		o.JoinTimeout = DefaultJoinTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
}

// Session is the identity announced in CONNECT.
type Session struct {
	Username  string
	UserType  string
	Token     string
	Invisible bool
}

// Delivery tells what SendMessage did with a message.
type Delivery int

const (
	DeliveryFailed Delivery = iota
	DeliverySent
	DeliveryCached
)

func (d Delivery) String() string {
	switch d {
	case DeliverySent:
		return "sent"
	case DeliveryCached:
		return "cached"
	default:
		return "failed"
	}
}
