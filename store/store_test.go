package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ashu01304/nostr-forms-sub000/protocol"
	"github.com/ashu01304/nostr-forms-sub000/store"
	"github.com/ashu01304/nostr-forms-sub000/testutil"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func TestStorePutAndRead(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	owner := testutil.Identity("owner")
	author := testutil.Identity("respondent")

	ev1 := testutil.ResponseEvent(author, owner, "survey", 100, protocol.EncodeAnswer("f_text", "hello", ""))
	ev2 := testutil.ResponseEvent(author, owner, "survey", 200, protocol.EncodeAnswer("f_text", "world", ""))

	require.NoError(t, s.PutEvent(ctx, owner, "survey", ev2))
	require.NoError(t, s.PutEvent(ctx, owner, "survey", ev1))

	events, err := s.Events(ctx, owner, "survey")
	require.NoError(t, err)
	require.Len(t, events, 2)

	// Oldest first, regardless of insertion order.
	require.Equal(t, ev1.ID, events[0].ID)
	require.Equal(t, ev2.ID, events[1].ID)
	require.Equal(t, author, events[0].PubKey)
	require.Equal(t, ev1.Tags, events[0].Tags)
}

func TestStoreIgnoresDuplicates(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	owner := testutil.Identity("owner")
	ev := testutil.ResponseEvent(testutil.Identity("respondent"), owner, "survey", 100)

	require.NoError(t, s.PutEvent(ctx, owner, "survey", ev))
	require.NoError(t, s.PutEvent(ctx, owner, "survey", ev))

	events, err := s.Events(ctx, owner, "survey")
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestStoreRejectsEventWithoutID(t *testing.T) {
	s := openStore(t)

	err := s.PutEvent(context.Background(), testutil.Identity("owner"), "survey", &protocol.Event{})
	require.Error(t, err)
}

func TestStoreScopesByForm(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	owner := testutil.Identity("owner")
	other := testutil.Identity("other-owner")
	author := testutil.Identity("respondent")

	require.NoError(t, s.PutEvent(ctx, owner, "survey", testutil.ResponseEvent(author, owner, "survey", 100)))
	require.NoError(t, s.PutEvent(ctx, owner, "poll", testutil.ResponseEvent(author, owner, "poll", 110)))
	require.NoError(t, s.PutEvent(ctx, other, "survey", testutil.ResponseEvent(author, other, "survey", 120)))

	events, err := s.Events(ctx, owner, "survey")
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.EqualValues(t, 100, events[0].CreatedAt)
}

func TestStoreLatestCreatedAt(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	owner := testutil.Identity("owner")
	author := testutil.Identity("respondent")

	latest, err := s.LatestCreatedAt(ctx, owner, "survey")
	require.NoError(t, err)
	require.Zero(t, latest)

	require.NoError(t, s.PutEvent(ctx, owner, "survey", testutil.ResponseEvent(author, owner, "survey", 100)))
	require.NoError(t, s.PutEvent(ctx, owner, "survey", testutil.ResponseEvent(author, owner, "survey", 250)))
	require.NoError(t, s.PutEvent(ctx, owner, "survey", testutil.ResponseEvent(author, owner, "survey", 180)))

	latest, err = s.LatestCreatedAt(ctx, owner, "survey")
	require.NoError(t, err)
	require.EqualValues(t, 250, latest)
}
