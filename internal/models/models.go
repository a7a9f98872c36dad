// Package models holds the data types exchanged between the tracker, hosts
// and clients. JSON tags match the wire payloads.
package models

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/dmitrijs2005/peerchat/internal/common"
)

// ChannelRecord is the tracker's entry for one hosted channel.
type ChannelRecord struct {
	ChannelName    string `json:"channel_name"`
	PeerServerIP   string `json:"peer_server_ip"`
	PeerServerPort int    `json:"peer_server_port"`
	ViewPermission bool   `json:"view_permission"`
}

// Address returns host:port of the peer host serving the channel.
func (c ChannelRecord) Address() string {
	return net.JoinHostPort(c.PeerServerIP, strconv.Itoa(c.PeerServerPort))
}

// Account is a registered tracker user. Password holds the clear-text value
// only on the way in; repositories keep Hash and Salt.
type Account struct {
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
	Hash     []byte `json:"-"`
	Salt     []byte `json:"-"`
}

// Message is one chat line. Time is stamped by the host on receipt.
type Message struct {
	Username       string `json:"username"`
	MessageContent string `json:"message_content"`
	Time           string `json:"time"`
}

// NewMessage returns a message stamped with the current local time.
func NewMessage(username, content string) Message {
	return Message{Username: username, MessageContent: content, Time: time.Now().Format(common.MessageTimeLayout)}
}

func (m Message) String() string {
	return fmt.Sprintf("[%s] %s: %s", m.Time, m.Username, m.MessageContent)
}

// AuthorizedPeer is the host-side membership record for one username.
type AuthorizedPeer struct {
	Role   string `json:"role"`
	Status string `json:"status"`
}

// Identity is the CONNECT payload a client sends when it opens a channel
// connection.
type Identity struct {
	Username  string `json:"username"`
	UserType  string `json:"user_type"`
	Invisible bool   `json:"invisible"`
}

// IsGuest reports whether the identity belongs to a guest session.
func (i Identity) IsGuest() bool {
	return i.UserType == common.UserTypeGuest
}

// ChannelInfo is the RET_INFO response payload.
type ChannelInfo struct {
	Messages       []Message                 `json:"messages"`
	AuthenPeers    map[string]AuthorizedPeer `json:"authen_peers"`
	ViewPermission bool                      `json:"view_permission"`
}
