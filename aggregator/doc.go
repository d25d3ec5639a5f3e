// Package aggregator reduces a stream of response events to one canonical
// row per respondent identity.
//
// Events arrive at-least-once and in no particular order: relays re-emit
// duplicates and deliver history interleaved with live traffic. The
// aggregator deduplicates by respondent, keeping the event with the highest
// createdAt (latest-wins, replace not merge) and counting every raw ingest
// from an identity as a submission attempt. Encrypted events are opened with
// the conversation key for (local secret, author); an event that cannot be
// decrypted is rejected softly: it still counts, but contributes a "cannot
// decrypt" placeholder row rather than failing the session.
//
// Ingest must be called from one goroutine per session (feed it from a
// subscription's delivery channel); row ordering is insertion order, an
// independent concern from the createdAt ordering that drives replacement.
package aggregator
