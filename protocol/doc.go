// Package protocol implements the wire format of the form network.
//
// Every entity that travels over a relay (a form specification, a single
// question, an answer set) is encoded as a Tag: an ordered array of strings
// whose first element names the record kind. The package decodes tags once at
// the boundary into typed structures; positional indexing never leaks out of
// the codec.
//
// # Record kinds
//
//   - "field":    one question of a form, with its options and render config
//   - "response": one answer, correlated to a field by id
//   - "name", "settings", "relay": form-level metadata
//
// Nested JSON payloads (a field's option list, its render config, a
// response's metadata) each have their own parser with a documented fallback
// default, so a malformed or absent payload degrades to an empty value
// instead of failing the whole record.
//
// The package is pure: no I/O, no clock, no network.
package protocol
