package protocol

import "github.com/dmitrijs2005/peerchat/internal/models"

// Credentials is the SIGNIN and SIGNUP payload.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// GuestRequest is the GUEST payload.
type GuestRequest struct {
	Username string `json:"username"`
}

// TokenResponse is the OK payload of SIGNIN, SIGNUP and GUEST.
type TokenResponse struct {
	Token string `json:"token"`
}

// HostRequest is the HOST payload: the channel record plus the owner's
// session token.
type HostRequest struct {
	models.ChannelRecord
	Token string `json:"token"`
}

// ChannelView is the VIEW payload sent to the tracker.
type ChannelView struct {
	ChannelName    string `json:"channel_name"`
	ViewPermission bool   `json:"view_permission"`
	Token          string `json:"token"`
}

// HostView is the VIEW payload sent to a channel host.
type HostView struct {
	Username   string `json:"username"`
	Permission bool   `json:"permission"`
}

// InfoRequest is the RET_INFO payload.
type InfoRequest struct {
	Username string `json:"username"`
}

// InvisibleRequest is the INVISIBLE payload.
type InvisibleRequest struct {
	Username  string `json:"username"`
	Invisible bool   `json:"invisible"`
}

// AuthorType selects the AUTHORIZE action.
type AuthorType int

const (
	AuthorRemove AuthorType = 0
	AuthorAdd    AuthorType = 1
)

// AuthorizeRequest is the AUTHORIZE payload.
type AuthorizeRequest struct {
	Actor      string     `json:"actor"`
	Target     string     `json:"target"`
	AuthorType AuthorType `json:"author_type"`
}

// MessageStub is one item of a client's MESSAGE request. The host stamps
// time and overrides the username.
type MessageStub struct {
	Username       string `json:"username"`
	MessageContent string `json:"message_content"`
}
