package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testOptionField() Field {
	return Field{
		ID:    "fld_product",
		Type:  FieldTypeOption,
		Label: "Which product are you reviewing?",
		Options: []Option{
			{ID: "optA", Label: "Product A", Meta: "{}"},
			{ID: "optB", Label: "Product B", Meta: "{}"},
			{ID: "optC", Label: "Product C", Meta: `{"isOther":true}`},
		},
		Config: FieldConfig{RenderElement: RenderCheckboxes, Required: true},
	}
}

func TestFieldRoundTrip(t *testing.T) {
	cases := []struct {
		name  string
		field Field
	}{
		{"text field", Field{
			ID:     "fld_name",
			Type:   FieldTypeText,
			Label:  "Your name",
			Config: FieldConfig{RenderElement: RenderShortText},
		}},
		{"number field", Field{
			ID:     "fld_rating",
			Type:   FieldTypeNumber,
			Label:  "Rating 1-5",
			Config: FieldConfig{RenderElement: RenderNumber, Required: true},
		}},
		{"option field", testOptionField()},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tag, err := EncodeField(tc.field)
			require.NoError(t, err)
			require.Equal(t, TagKindField, tag.Kind())

			decoded, err := DecodeField(tag)
			require.NoError(t, err)

			// Raw is a serialization artifact, not part of the identity.
			decoded.Config.Raw = ""
			require.Equal(t, tc.field, decoded)
		})
	}
}

func TestDecodeFieldMalformed(t *testing.T) {
	cases := []struct {
		name string
		tag  Tag
	}{
		{"wrong discriminator", Tag{"response", "f1", "x", "{}"}},
		{"empty tag", Tag{}},
		{"arity below 4", Tag{"field", "f1", "text"}},
		{"bad options json", Tag{"field", "f1", "option", "Q", "not-json", "{}"}},
		{"bad config json", Tag{"field", "f1", "text", "Q", "[]", "{broken"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeField(tc.tag)
			require.ErrorIs(t, err, ErrMalformedTag)
		})
	}
}

func TestDecodeFieldDefaultsAbsentPayloads(t *testing.T) {
	f, err := DecodeField(Tag{"field", "f1", "text", "Your name"})
	require.NoError(t, err)
	require.Empty(t, f.Options)
	require.Equal(t, "{}", f.Config.Raw)
	require.False(t, f.Config.Required)
}

func TestDecodeFieldPreservesUnknownConfigKeys(t *testing.T) {
	raw := `{"renderElement":"shortText","required":true,"validationRules":{"regex":{"pattern":".*"}}}`
	f, err := DecodeField(Tag{"field", "f1", "text", "Email", "[]", raw})
	require.NoError(t, err)
	require.Equal(t, RenderShortText, f.Config.RenderElement)
	require.True(t, f.Config.Required)
	require.Equal(t, raw, f.Config.Raw)
}

func TestFieldOptionLookup(t *testing.T) {
	f := testOptionField()

	label, ok := f.OptionLabel("optB")
	require.True(t, ok)
	require.Equal(t, "Product B", label)

	_, ok = f.OptionLabel("optZ")
	require.False(t, ok)

	require.True(t, f.MultiSelect())
	f.Config.RenderElement = RenderRadio
	require.False(t, f.MultiSelect())
}
