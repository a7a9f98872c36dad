// Package client is the peer side of the chat: it keeps one TCP connection
// and one receiver goroutine per joined channel, correlates responses with
// their requests, and caches messages for channels that are not connected.
package client
