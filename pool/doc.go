// Package pool implements the multi-relay subscription manager.
//
// A subscription is opened against the union of an ordered relay list with a
// single filter. One connection task runs per relay; events from all relays
// funnel into a bounded queue drained by a single dispatcher, so the caller
// observes a serialized event stream regardless of how many relays feed it.
//
// Duplicates are expected: the same event id commonly arrives from several
// relays, and this layer deliberately does not deduplicate; event identity
// belongs to the aggregation layer. A partially unreachable relay set is not
// an error either; delivery continues from whichever relays respond, and the
// per-relay outcome is available as a best-effort side channel.
package pool
