// Package tracker implements the channel directory peers use to discover
// each other. A Registry holds the hosted channels, registered accounts and
// guest sessions; a Server exposes it over TCP using the frame protocol.
package tracker
