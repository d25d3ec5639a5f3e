// Package httpserver provides a small read-only HTTP facade over a form
// collection session, for dashboards and local tooling.
//
// The server follows a base-server pattern: it owns the router, the
// standard health endpoints (/livez, /readyz, /drain, /undrain) and the
// lifecycle (background start, graceful shutdown), while session-specific
// endpoints are added by components implementing RouteRegistrar.
//
// SessionHandler is the bundled registrar: it exposes the relay health map,
// the parsed form specification and the aggregated response rows of one
// live session as JSON.
package httpserver
