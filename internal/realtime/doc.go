// Package realtime implements the websocket gateway: upgrade
// negotiation, per-connection authentication lifecycle, token-expiry
// scheduling, rate limiting, and structured error frames.
//
// # Architecture
//
// The Controller owns the set of live connections and drives each one
// through its authentication states:
//
//	unauthenticated → authenticated → expired → closed
//
// Three auth modes govern how a connection earns accountability:
//   - public: accepted immediately with anonymous accountability; auth
//     frames may escalate later, and failures soft-downgrade back to
//     anonymous rather than closing the socket.
//   - handshake: the transport upgrade completes unconditionally, then
//     the first frame must be an auth message within the configured
//     timeout or the connection is closed.
//   - strict: the upgrade request itself must carry a valid
//     access_token query parameter; failures are rejected with HTTP 401
//     before any frame is exchanged.
//
// Frames within one connection are processed strictly in arrival order
// by that connection's read loop. The controller mutex guards the live
// set and each connection's auth state; a connection holds at most one
// pending expiry timer at any moment, and arming a new one always
// cancels the old one first.
//
// Token expiry uses short-horizon timers: a timer is armed only when
// the token's remaining lifetime falls inside the sweep interval, and a
// periodic sweep picks up connections whose expiry has drifted into
// range since they authenticated.
//
// Protocol-specific frame handling (subscriptions, ping) sits behind
// the Handler strategy so the same controller core can serve different
// message dialects.
package realtime
