package common

// MessageTimeLayout is the layout of the time stamp a host puts on every message.
const MessageTimeLayout = "15:04:05"

// Roles and statuses of an authorized peer.
const (
	RoleOwner = "owner"
	RoleUser  = "user"

	StatusOnline  = "online"
	StatusOffline = "offline"
)

// User types announced in CONNECT.
const (
	UserTypeRegistered = "user"
	UserTypeGuest      = "guest"
)
