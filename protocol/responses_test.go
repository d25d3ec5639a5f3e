package protocol

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func testSpec(t *testing.T) *FormSpec {
	t.Helper()
	optionsTag, err := EncodeField(testOptionField())
	require.NoError(t, err)
	spec, err := ParseFormSpec("owner-pub", "form-1", []Tag{
		{"name", "Customer Feedback"},
		{"settings", `{"description":"d","encryptForm":true,"disallowAnonymous":true}`},
		{"relay", "wss://relay.example.com"},
		{"field", "fld_name", "text", "Your name", "[]", `{"renderElement":"shortText"}`},
		optionsTag,
	})
	require.NoError(t, err)
	return spec
}

func TestAnswerRoundTrip(t *testing.T) {
	tag := EncodeOptionAnswer("fld_product", []string{"optC", "optA"}, `{"other":"free text"}`)
	require.Equal(t, Tag{"response", "fld_product", "optC;optA", `{"other":"free text"}`}, tag)

	a, err := DecodeAnswer(tag)
	require.NoError(t, err)
	require.Equal(t, "fld_product", a.FieldID)
	// Selection order is preserved verbatim, no reordering or dedup.
	require.Equal(t, []string{"optC", "optA"}, a.SelectedOptionIDs())
	require.Equal(t, `{"other":"free text"}`, a.Metadata)
}

func TestDecodeAnswerMalformed(t *testing.T) {
	_, err := DecodeAnswer(Tag{"field", "f1"})
	require.ErrorIs(t, err, ErrMalformedTag)
	_, err = DecodeAnswer(Tag{"response"})
	require.ErrorIs(t, err, ErrMalformedTag)
}

func TestResolveOptionLabelsInSpecOrder(t *testing.T) {
	spec := testSpec(t)

	// Selected out of order; labels come back in the field's option order.
	a, err := DecodeAnswer(EncodeOptionAnswer("fld_product", []string{"optC", "optA"}, ""))
	require.NoError(t, err)
	r := ResolveAnswer(a, spec)
	require.Equal(t, "Which product are you reviewing?", r.QuestionLabel)
	require.Equal(t, "Product A, Product C", r.ResponseLabel)
	require.False(t, r.Extra)
}

func TestResolveDropsUnknownOptionIDs(t *testing.T) {
	spec := testSpec(t)

	a, err := DecodeAnswer(EncodeOptionAnswer("fld_product", []string{"optA", "optZ", "optC"}, ""))
	require.NoError(t, err)
	r := ResolveAnswer(a, spec)
	require.Equal(t, "Product A, Product C", r.ResponseLabel)
	// The raw value still carries the unmatched id.
	require.Equal(t, "optA;optZ;optC", a.Value)
}

func TestResolveUnknownFieldIsExtraColumn(t *testing.T) {
	spec := testSpec(t)

	a := Answer{FieldID: "fld_removed_in_v2", Value: "hello"}
	r := ResolveAnswer(a, spec)
	require.True(t, r.Extra)
	require.Equal(t, "hello", r.ResponseLabel)
	require.Contains(t, r.QuestionLabel, "fld_remo")

	// A nil spec resolves everything as extra rather than failing.
	r = ResolveAnswer(a, nil)
	require.True(t, r.Extra)
}

func TestResolveUnknownFieldMultibyteID(t *testing.T) {
	spec := testSpec(t)

	// Truncating the placeholder must not split a rune.
	a := Answer{FieldID: "поле_идентификатор", Value: "привет"}
	r := ResolveAnswer(a, spec)
	require.True(t, r.Extra)
	require.True(t, utf8.ValidString(r.QuestionLabel))
	require.Contains(t, r.QuestionLabel, "поле_иде")
	require.NotContains(t, r.QuestionLabel, "поле_иден")
}

func TestParseFormSpec(t *testing.T) {
	spec := testSpec(t)
	require.Equal(t, "Customer Feedback", spec.DisplayName())
	require.True(t, spec.Settings.EncryptForm)
	require.True(t, spec.Settings.DisallowAnonymous)
	require.Equal(t, []string{"wss://relay.example.com"}, spec.Relays)
	require.Len(t, spec.Fields, 2)

	f, ok := spec.FieldByID("fld_product")
	require.True(t, ok)
	require.Equal(t, FieldTypeOption, f.Type)
}

func TestParseFormSpecSkipsMalformedFields(t *testing.T) {
	spec, err := ParseFormSpec("owner", "form", []Tag{
		{"field", "short"},
		{"field", "f1", "text", "Q1"},
		{"field", "f1", "text", "duplicate id, skipped"},
	})
	require.NoError(t, err)
	require.Len(t, spec.Fields, 1)
	require.Equal(t, "Q1", spec.Fields[0].Label)

	_, err = ParseFormSpec("owner", "form", []Tag{{"name", "empty"}})
	require.ErrorIs(t, err, ErrNoFields)
}
