// Package host runs one chat channel. It accepts peer connections,
// authorizes them against the channel's view permission and member list,
// applies their commands, keeps the ordered message log and broadcasts new
// messages to every connected peer.
//
// Mutexes are always taken in the order peers → authen → log. A peer's write
// mutex is only ever taken with none of them held, except while a new
// connection is registered and not yet visible to the broadcaster.
package host
