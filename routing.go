package rpcconn

import "math/rand/v2"

// RoutingStrategy picks one live connection to carry payload, or nil if
// none is suitable (treated by SendRequest as "no connection available").
//
// Implementations are called once per SendRequest dispatch attempt, with
// no locking by this package: concurrent SendRequest calls invoke the
// strategy concurrently, so a stateful strategy must be safe for
// concurrent use.
type RoutingStrategy func(live []*ConnectionEntry, payload []byte) *ConnectionEntry

// UniformRandomStrategy is the default RoutingStrategy: it picks
// uniformly at random among the live entries. A hand-rolled pick over
// math/rand/v2 is used here rather than a third-party load-balancing
// library because the operation is a single unweighted coin flip, not a
// policy with state to maintain (see DESIGN.md).
func UniformRandomStrategy(live []*ConnectionEntry, _ []byte) *ConnectionEntry {
	if len(live) == 0 {
		return nil
	}
	return live[rand.IntN(len(live))]
}
