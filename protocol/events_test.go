package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResponseFilterWireForm(t *testing.T) {
	f := ResponseFilter("owner-pub", "form-1", 1700000000)
	b, err := json.Marshal(f)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	require.Equal(t, []any{float64(KindFormResponse)}, m["kinds"])
	require.Equal(t, []any{"owner-pub"}, m["#p"])
	require.Equal(t, []any{"form-1"}, m["#d"])
	require.Equal(t, float64(1700000000), m["since"])
	require.NotContains(t, m, "until")
	require.NotContains(t, m, "limit")
}

func TestFilterMatches(t *testing.T) {
	ev := &Event{
		ID:        "ev1",
		PubKey:    "author",
		CreatedAt: 100,
		Kind:      KindFormResponse,
		Tags: []Tag{
			{"p", "owner-pub"},
			{"d", "form-1"},
			{"response", "f1", "hi", "{}"},
		},
	}

	require.True(t, ResponseFilter("owner-pub", "form-1", 0).Matches(ev))
	require.False(t, ResponseFilter("owner-pub", "form-2", 0).Matches(ev))
	require.False(t, ResponseFilter("other", "form-1", 0).Matches(ev))
	require.False(t, ResponseFilter("owner-pub", "form-1", 101).Matches(ev))
	require.False(t, SpecFilter("owner-pub", "form-1").Matches(ev))
	require.False(t, Filter{}.Matches(nil))
}

func TestEventAccessors(t *testing.T) {
	ev := &Event{
		Kind: KindFormResponse,
		Tags: []Tag{
			{"d", "form-1"},
			{"response", "f1", "a", "{}"},
			{"response", "f2", "b", "{}"},
		},
	}
	require.Equal(t, "form-1", ev.FormID())
	require.Len(t, ev.PlaintextAnswers(), 2)
}

func TestParseAnswerPayload(t *testing.T) {
	payload := `[["response","f1","optA;optB","{}"],["noise","x"],["response","f2","42","{}"]]`
	tags, err := ParseAnswerPayload([]byte(payload))
	require.NoError(t, err)
	require.Len(t, tags, 2)
	require.Equal(t, "f1", tags[0].Value(1))

	_, err = ParseAnswerPayload([]byte(`{"not":"an array"}`))
	require.ErrorIs(t, err, ErrMalformedTag)
}
