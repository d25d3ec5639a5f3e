// Package client glues the protocol, pool, aggregator and store layers into
// a response-collection session: fetch the latest form specification for an
// (owner, formId) pair, then watch every configured relay for response
// events and fold them into per-respondent rows.
//
// A Watch replays locally cached events first, subscribes the live relays
// with a since cursor just past the cache, and serializes all aggregator
// access on a single goroutine.
package client
