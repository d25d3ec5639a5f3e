package protocol

import (
	"encoding/json"
	"fmt"
)

// FieldType is the primitive type of a form question.
type FieldType string

// Primitive field types.
const (
	FieldTypeText   FieldType = "text"
	FieldTypeNumber FieldType = "number"
	FieldTypeOption FieldType = "option"
	FieldTypeLabel  FieldType = "label"
)

// Render elements carried in a field's config. Only the single- vs
// multi-select distinction matters to the codec; everything else is opaque
// rendering advice for the presentation layer.
const (
	RenderShortText  = "shortText"
	RenderParagraph  = "paragraph"
	RenderNumber     = "number"
	RenderRadio      = "radioButton"
	RenderCheckboxes = "checkboxes"
	RenderDropdown   = "dropdown"
)

// Option is one selectable choice within an option-typed field.
type Option struct {
	ID    string
	Label string
	// Meta carries option-level JSON metadata ("{}" when absent). Opaque to
	// the codec.
	Meta string
}

// FieldConfig is the decoded view of a field's config JSON. Any keys beyond
// the ones modeled here are preserved verbatim in Raw.
type FieldConfig struct {
	RenderElement string `json:"renderElement"`
	Required      bool   `json:"required"`

	// Raw is the original config JSON, "{}" when the field carried none.
	Raw string `json:"-"`
}

// Field is one question of a form specification, decoded from a "field" tag:
//
//	["field", id, type, label, optionsJSON, configJSON]
//
// Options is populated only for option-typed fields.
type Field struct {
	ID      string
	Type    FieldType
	Label   string
	Options []Option
	Config  FieldConfig
}

// MultiSelect reports whether the field accepts multiple selected options.
func (f Field) MultiSelect() bool {
	return f.Config.RenderElement == RenderCheckboxes
}

// OptionLabel returns the label for an option id and whether it exists.
func (f Field) OptionLabel(optionID string) (string, bool) {
	for _, o := range f.Options {
		if o.ID == optionID {
			return o.Label, true
		}
	}
	return "", false
}

// EncodeField encodes a field into its wire tag. The inverse of DecodeField.
func EncodeField(f Field) (Tag, error) {
	opts, err := encodeOptions(f.Options)
	if err != nil {
		return nil, err
	}
	cfg := f.Config.Raw
	if cfg == "" {
		cfg, err = encodeConfig(f.Config)
		if err != nil {
			return nil, err
		}
	}
	return Tag{TagKindField, f.ID, string(f.Type), f.Label, opts, cfg}, nil
}

// DecodeField decodes a "field" tag. It fails with ErrMalformedTag when the
// discriminator mismatches, the arity is below 4, or an options/config
// payload is present but not valid JSON. Absent payloads default to "[]" and
// "{}" respectively.
func DecodeField(t Tag) (Field, error) {
	if t.Kind() != TagKindField {
		return Field{}, fmt.Errorf("%w: want %q discriminator, got %q", ErrMalformedTag, TagKindField, t.Kind())
	}
	if len(t) < 4 {
		return Field{}, fmt.Errorf("%w: field tag arity %d < 4", ErrMalformedTag, len(t))
	}

	f := Field{
		ID:    t[1],
		Type:  FieldType(t[2]),
		Label: t[3],
	}

	var err error
	if f.Options, err = parseOptions(t.Value(4)); err != nil {
		return Field{}, err
	}
	if f.Config, err = parseConfig(t.Value(5)); err != nil {
		return Field{}, err
	}
	return f, nil
}

// parseOptions decodes the options JSON payload: an array of
// [id, label(, metaJSON)] tuples. An empty payload decodes to no options.
func parseOptions(raw string) ([]Option, error) {
	if raw == "" || raw == "[]" {
		return nil, nil
	}
	var tuples [][]string
	if err := json.Unmarshal([]byte(raw), &tuples); err != nil {
		return nil, fmt.Errorf("%w: options payload: %v", ErrMalformedTag, err)
	}
	opts := make([]Option, 0, len(tuples))
	for _, tu := range tuples {
		if len(tu) < 2 {
			continue
		}
		o := Option{ID: tu[0], Label: tu[1], Meta: "{}"}
		if len(tu) > 2 && tu[2] != "" {
			o.Meta = tu[2]
		}
		opts = append(opts, o)
	}
	return opts, nil
}

func encodeOptions(opts []Option) (string, error) {
	tuples := make([][]string, 0, len(opts))
	for _, o := range opts {
		meta := o.Meta
		if meta == "" {
			meta = "{}"
		}
		tuples = append(tuples, []string{o.ID, o.Label, meta})
	}
	b, err := json.Marshal(tuples)
	if err != nil {
		return "", fmt.Errorf("encode options: %w", err)
	}
	return string(b), nil
}

// parseConfig decodes the config JSON payload. An empty payload decodes to
// the zero config with Raw "{}".
func parseConfig(raw string) (FieldConfig, error) {
	if raw == "" || raw == "{}" {
		return FieldConfig{Raw: "{}"}, nil
	}
	var cfg FieldConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return FieldConfig{}, fmt.Errorf("%w: config payload: %v", ErrMalformedTag, err)
	}
	cfg.Raw = raw
	return cfg, nil
}

func encodeConfig(cfg FieldConfig) (string, error) {
	b, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return string(b), nil
}
