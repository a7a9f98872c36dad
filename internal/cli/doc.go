// Package cli provides the interactive peerchat front end.
//
// It wires configuration, the tracker client, the offline message cache,
// the channel client and any channels this peer hosts behind a line-based
// REPL. Typical flow: sign in (or join as a guest), list channels, join
// one and chat. Messages written to a channel that is not joined are cached
// and replayed on the next join.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits
// or the process is signalled.
package cli
