package client_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ashu01304/nostr-forms-sub000/aggregator"
	"github.com/ashu01304/nostr-forms-sub000/client"
	"github.com/ashu01304/nostr-forms-sub000/crypto"
	"github.com/ashu01304/nostr-forms-sub000/pool"
	"github.com/ashu01304/nostr-forms-sub000/protocol"
	"github.com/ashu01304/nostr-forms-sub000/store"
	"github.com/ashu01304/nostr-forms-sub000/testutil"
)

func newClient(t *testing.T, st *store.Store) *client.Client {
	t.Helper()
	c, err := client.New(client.Options{
		Pool:  pool.New(pool.Options{DialTimeout: 2 * time.Second}),
		Store: st,
	})
	require.NoError(t, err)
	return c
}

func fetchCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestFetchFormSpecPicksLatest(t *testing.T) {
	owner := testutil.Identity("owner")
	r := testutil.NewFakeRelay(t)

	older := testutil.SpecEvent(owner, "survey", 100, protocol.Tag{"name", "Old Name"},
		protocol.Tag{"field", "f_text", "text", "Q?", "[]", `{"renderElement":"shortText"}`})
	newer := testutil.SpecEvent(owner, "survey", 200, testutil.SimpleFormTags()...)
	r.Store(older, newer)

	c := newClient(t, nil)
	spec, err := c.FetchFormSpec(fetchCtx(t), []string{r.URL()}, owner, "survey", nil)
	require.NoError(t, err)
	require.Equal(t, "Test Form", spec.DisplayName())
	require.Len(t, spec.Fields, 2)
	require.Equal(t, owner, spec.Owner)
	require.Equal(t, "survey", spec.ID)
}

func TestFetchFormSpecNotFound(t *testing.T) {
	r := testutil.NewFakeRelay(t)

	c := newClient(t, nil)
	_, err := c.FetchFormSpec(fetchCtx(t), []string{r.URL()}, testutil.Identity("owner"), "missing", nil)
	require.ErrorIs(t, err, client.ErrSpecNotFound)
}

func TestFetchFormSpecEncrypted(t *testing.T) {
	ownerSecret, _, ownerID := testutil.NewIdentity(t)
	viewSecret, _, viewID := testutil.NewIdentity(t)

	payload, err := json.Marshal(testutil.SimpleFormTags())
	require.NoError(t, err)
	key, err := crypto.DeriveConversationKey(ownerSecret, viewID)
	require.NoError(t, err)
	sealed, err := crypto.Encrypt(key, payload)
	require.NoError(t, err)

	ev := testutil.SpecEvent(ownerID, "survey", 100)
	ev.Content = sealed

	r := testutil.NewFakeRelay(t)
	r.Store(ev)

	c := newClient(t, nil)

	// Without the view key only the outer event is readable.
	_, err = c.FetchFormSpec(fetchCtx(t), []string{r.URL()}, ownerID, "survey", nil)
	require.ErrorIs(t, err, client.ErrViewKeyRequired)

	spec, err := c.FetchFormSpec(fetchCtx(t), []string{r.URL()}, ownerID, "survey", viewSecret)
	require.NoError(t, err)
	require.Equal(t, "Test Form", spec.DisplayName())
	require.Len(t, spec.Fields, 2)

	wrongSecret, _, _ := testutil.NewIdentity(t)
	_, err = c.FetchFormSpec(fetchCtx(t), []string{r.URL()}, ownerID, "survey", wrongSecret)
	require.ErrorIs(t, err, crypto.ErrAuthenticationFailure)
}

func watchSpec(t *testing.T, owner string) *protocol.FormSpec {
	t.Helper()
	spec, err := protocol.ParseFormSpec(owner, "survey", testutil.SimpleFormTags())
	require.NoError(t, err)
	return spec
}

func nextUpdate(t *testing.T, w *client.Watch) client.Update {
	t.Helper()
	select {
	case u, ok := <-w.Updates():
		require.True(t, ok, "updates channel closed early")
		return u
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for update")
		return client.Update{}
	}
}

func TestWatchResponsesAggregatesStoredAndLive(t *testing.T) {
	ownerSecret, _, ownerID := testutil.NewIdentity(t)
	r := testutil.NewFakeRelay(t)

	r.Store(testutil.ResponseEvent(testutil.Identity("alice"), ownerID, "survey", 100,
		protocol.EncodeAnswer("f_text", "alice", ""),
		protocol.EncodeOptionAnswer("f_opt", []string{"optA", "optC"}, "")))

	c := newClient(t, nil)
	spec := watchSpec(t, ownerID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w, err := c.WatchResponses(ctx, []string{r.URL()}, spec, aggregator.SecretKeySource(ownerSecret))
	require.NoError(t, err)
	defer w.Close()

	u := nextUpdate(t, w)
	require.Equal(t, r.URL(), u.Relay)
	require.True(t, u.Result.Installed)
	require.Equal(t, "A, C", u.Result.Row.Values["f_opt"])
	require.Equal(t, "A, C", u.Result.Row.Labels["Pick some"])

	select {
	case <-w.EOSE():
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for EOSE")
	}

	// A submission arriving after end-of-stored still lands.
	r.Publish(testutil.ResponseEvent(testutil.Identity("bob"), ownerID, "survey", 150,
		protocol.EncodeAnswer("f_text", "bob", "")))

	u = nextUpdate(t, w)
	require.True(t, u.Result.Installed)
	require.Equal(t, "bob", u.Result.Row.Values["f_text"])

	rows := w.Rows()
	require.Len(t, rows, 2)
	require.Equal(t, "alice", rows[0].Values["f_text"])

	summary := w.Summary()
	require.NotEmpty(t, summary)
}

func TestWatchResponsesEncrypted(t *testing.T) {
	ownerSecret, _, ownerID := testutil.NewIdentity(t)
	_, respondent, _ := testutil.NewIdentity(t)

	r := testutil.NewFakeRelay(t)
	r.Store(testutil.EncryptedResponseEvent(t, respondent, ownerID, "survey", 100,
		protocol.EncodeAnswer("f_text", "secret answer", "")))

	c := newClient(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w, err := c.WatchResponses(ctx, []string{r.URL()}, watchSpec(t, ownerID), aggregator.SecretKeySource(ownerSecret))
	require.NoError(t, err)
	defer w.Close()

	u := nextUpdate(t, w)
	require.True(t, u.Result.Installed)
	require.True(t, u.Result.Row.Readable)
	require.Equal(t, "secret answer", u.Result.Row.Values["f_text"])
}

func TestWatchSeenCountAcrossRelays(t *testing.T) {
	ownerSecret, _, ownerID := testutil.NewIdentity(t)

	ev := testutil.ResponseEvent(testutil.Identity("alice"), ownerID, "survey", 100,
		protocol.EncodeAnswer("f_text", "alice", ""))

	r1 := testutil.NewFakeRelay(t)
	r1.Store(ev)
	r1.DuplicateStored(2)
	r2 := testutil.NewFakeRelay(t)
	r2.Store(ev)

	c := newClient(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w, err := c.WatchResponses(ctx, []string{r1.URL(), r2.URL()}, watchSpec(t, ownerID), aggregator.SecretKeySource(ownerSecret))
	require.NoError(t, err)
	defer w.Close()

	for i := 0; i < 3; i++ {
		u := nextUpdate(t, w)
		require.Equal(t, ev.ID, u.Result.Row.EventID)
	}

	rows := w.Rows()
	require.Len(t, rows, 1)
	require.Equal(t, 3, rows[0].SeenCount)
	require.Equal(t, "alice", rows[0].Values["f_text"])
}

func TestWatchResumesFromStore(t *testing.T) {
	ownerSecret, _, ownerID := testutil.NewIdentity(t)

	st, err := store.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer st.Close()

	cachedEv := testutil.ResponseEvent(testutil.Identity("alice"), ownerID, "survey", 100,
		protocol.EncodeAnswer("f_text", "cached", ""))
	require.NoError(t, st.PutEvent(context.Background(), ownerID, "survey", cachedEv))

	r := testutil.NewFakeRelay(t)
	// The relay still carries the cached event plus a newer one; the since
	// cursor keeps the replayed copy off the wire.
	r.Store(cachedEv, testutil.ResponseEvent(testutil.Identity("bob"), ownerID, "survey", 200,
		protocol.EncodeAnswer("f_text", "fresh", "")))

	c := newClient(t, st)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w, err := c.WatchResponses(ctx, []string{r.URL()}, watchSpec(t, ownerID), aggregator.SecretKeySource(ownerSecret))
	require.NoError(t, err)
	defer w.Close()

	u := nextUpdate(t, w)
	require.Empty(t, u.Relay, "first update should come from the cache")
	require.Equal(t, "cached", u.Result.Row.Values["f_text"])

	u = nextUpdate(t, w)
	require.Equal(t, r.URL(), u.Relay)
	require.Equal(t, "fresh", u.Result.Row.Values["f_text"])

	select {
	case <-w.EOSE():
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for EOSE")
	}
	require.Len(t, w.Rows(), 2)

	// The fresh event was cached for the next session.
	latest, err := st.LatestCreatedAt(context.Background(), ownerID, "survey")
	require.NoError(t, err)
	require.EqualValues(t, 200, latest)
}

func TestWatchCloseEndsUpdates(t *testing.T) {
	ownerSecret, _, ownerID := testutil.NewIdentity(t)
	r := testutil.NewFakeRelay(t)

	c := newClient(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w, err := c.WatchResponses(ctx, []string{r.URL()}, watchSpec(t, ownerID), aggregator.SecretKeySource(ownerSecret))
	require.NoError(t, err)

	select {
	case <-w.EOSE():
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for EOSE")
	}
	w.Close()

	select {
	case _, ok := <-w.Updates():
		require.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("updates channel did not close")
	}

	reach := w.Reachability()
	require.NoError(t, reach[r.URL()])
}
