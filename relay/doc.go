// Package relay provides the transport primitive for one relay endpoint and
// the connection health monitor.
//
// A Conn speaks the relay wire protocol over a websocket: the client opens
// logical subscriptions with a filter ("REQ"), the relay streams matching
// events ("EVENT") followed by an end-of-stored-events marker ("EOSE"), and
// either side tears the subscription down ("CLOSE"/"CLOSED"). Callers above
// this package treat the connection as an opaque event stream.
//
// The Monitor probes relay reachability with short-lived connections. Each
// probe transitions a relay's status unknown → pending → connected|error and
// always closes the socket it opened. Probes carry a generation token so a
// slow superseded probe cannot overwrite the status a newer probe reported.
package relay
