// Package rpcconn is an RPC client connection manager: it keeps a fixed
// set of message-framed connections to a list of remote endpoints alive,
// dispatches outbound requests across them using a pluggable routing
// strategy, and recovers from connection loss with exponential backoff.
//
// The hard part is the interplay between three things happening at once:
//
//   - a per-connection lifecycle state machine (connecting -> open ->
//     closed -> reconnecting), run on its own goroutine;
//   - a request-dispatch surface that has to keep working while some
//     connections are down;
//   - an external [pkg/reactor.Reactor] that owns the actual sockets and
//     timers and whose scheduling the client does not control.
//
// ## How it works
//
// A [Client] is given a fixed list of [Endpoint]s, a [pkg/reactor.Reactor]
// and a [ConnectionFactory]. [Client.Start] spins up one reconnection
// driver per endpoint and blocks until every endpoint has produced its
// first live connection, or the reactor is stopped first. From then on,
// [Client.SendRequest] consults the [RoutingStrategy] for a live
// connection and retries transparently on [ErrConnectionClosed].
//
// Every registry mutation is serialized through the client's own event
// loop goroutine, so the rest of the package can read snapshots without
// holding a lock across a blocking call. The client lifecycle is guarded
// by a mutex, and each driver keeps its own state on its own goroutine.
//
// ## Design principles
//
// Dependencies are kept to what the domain actually needs:
//
//   - [github.com/quic-go/quic-go], for the default multiplexed-stream
//     reactor implementation in pkg/reactor.
//   - [github.com/hashicorp/go-metrics], to let you choose how telemetry
//     is collected.
//   - [log/slog], to let you choose how structured logs are treated.
//
// No endpoint discovery, no load-aware routing, no request-level
// timeouts beyond what you impose on the context you pass in.
package rpcconn
