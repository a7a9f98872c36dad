// Package protocol implements the peerchat wire format.
//
// A frame is a header, a dash and a JSON envelope, terminated by a newline:
//
//	MESSAGE-{"id":"5d0c...","payload":[{"username":"bob","message_content":"hi"}]}\n
//
// The header is a Command for requests and a Status for responses. The
// envelope id correlates a response with the request that caused it; pushes
// from a host (broadcast MESSAGE frames) carry an empty id.
//
// Decode works on an accumulating buffer and only consumes complete frames,
// so callers can feed it arbitrary chunks read from a socket. FrameReader
// wraps that loop around an io.Reader.
package protocol
