/*
Package testutil provides testing utilities for the form network protocol
implementation.

The centerpiece is FakeRelay: an in-process websocket server speaking the
relay wire protocol (REQ/EVENT/EOSE/CLOSE) against stored and live-published
events, so transport, subscription, and aggregation tests run without a real
relay. It also offers event generators producing plaintext and encrypted
response events.

	fr := testutil.NewFakeRelay(t)
	fr.Store(testutil.ResponseEvent("author", "owner", "form-1", 100,
	    protocol.EncodeAnswer("f1", "hello", "")))
	conn, _ := relay.Dial(ctx, fr.URL(), nil)
*/
package testutil
