// Package store persists relay events in a local SQLite database so a
// client can resume response collection without re-downloading history.
//
// Events are keyed by their event ID, which makes replays from multiple
// relays idempotent: the same event arriving twice is written once. The
// highest stored created_at per form feeds the "since" cursor of the next
// subscription.
package store
