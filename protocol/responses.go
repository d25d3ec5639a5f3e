package protocol

import (
	"fmt"
	"strings"
)

// Separator between selected option ids in an option answer's value.
const optionIDSeparator = ";"

// Answer is one decoded "response" tag:
//
//	["response", fieldId, value, metadataJSON]
//
// For option-typed fields Value is a ";"-joined list of selected option ids.
// Metadata is an opaque JSON payload ("{}" when absent); for option fields it
// may carry the free text of an "other" choice.
type Answer struct {
	FieldID  string
	Value    string
	Metadata string
}

// SelectedOptionIDs splits an option answer's value into option ids. The
// caller-supplied order is preserved; no deduplication is performed.
func (a Answer) SelectedOptionIDs() []string {
	if a.Value == "" {
		return nil
	}
	return strings.Split(a.Value, optionIDSeparator)
}

// EncodeAnswer encodes a free-form answer value for fieldID.
func EncodeAnswer(fieldID, value, metadata string) Tag {
	if metadata == "" {
		metadata = "{}"
	}
	return Tag{TagKindResponse, fieldID, value, metadata}
}

// EncodeOptionAnswer encodes a selection of option ids for fieldID. The ids
// are joined in the order given; reordering and deduplication are the
// caller's responsibility.
func EncodeOptionAnswer(fieldID string, optionIDs []string, metadata string) Tag {
	return EncodeAnswer(fieldID, strings.Join(optionIDs, optionIDSeparator), metadata)
}

// DecodeAnswer decodes a "response" tag. Fails with ErrMalformedTag on a
// discriminator mismatch or arity below 2.
func DecodeAnswer(t Tag) (Answer, error) {
	if t.Kind() != TagKindResponse {
		return Answer{}, fmt.Errorf("%w: want %q discriminator, got %q", ErrMalformedTag, TagKindResponse, t.Kind())
	}
	if len(t) < 2 {
		return Answer{}, fmt.Errorf("%w: response tag arity %d < 2", ErrMalformedTag, len(t))
	}
	a := Answer{FieldID: t[1], Value: t.Value(2), Metadata: t.Value(3)}
	if a.Metadata == "" {
		a.Metadata = "{}"
	}
	return a, nil
}

// ResolvedAnswer is the display view of one answer, resolved against a form
// specification.
type ResolvedAnswer struct {
	FieldID string
	// QuestionLabel is the field's label, or a synthesized placeholder when
	// the field is unknown to the specification.
	QuestionLabel string
	// ResponseLabel is the human-readable answer. For option fields it is
	// the comma-joined labels of the matched options, in the order the
	// specification lists them.
	ResponseLabel string
	// Extra marks an answer whose field id is absent from the specification
	// (schema drift between form versions). Displayed as an extra column
	// keyed by the raw id.
	Extra bool
}

// ResolveAnswer resolves an answer against spec for display.
//
// A field id missing from the specification never fails resolution: the
// question label falls back to a placeholder built from the truncated id and
// the answer is marked Extra. For option fields, selected ids that match no
// option are dropped from the label but remain in the raw answer value.
func ResolveAnswer(a Answer, spec *FormSpec) ResolvedAnswer {
	var field Field
	var known bool
	if spec != nil {
		field, known = spec.FieldByID(a.FieldID)
	}
	if !known {
		return ResolvedAnswer{
			FieldID:       a.FieldID,
			QuestionLabel: placeholderLabel(a.FieldID),
			ResponseLabel: a.Value,
			Extra:         true,
		}
	}

	resolved := ResolvedAnswer{
		FieldID:       a.FieldID,
		QuestionLabel: field.Label,
		ResponseLabel: a.Value,
	}
	if field.Type == FieldTypeOption {
		resolved.ResponseLabel = resolveOptionLabels(field, a)
	}
	return resolved
}

// resolveOptionLabels joins the labels of the selected options in the order
// the field declares them, not the order they were selected. Unknown option
// ids are silently dropped.
func resolveOptionLabels(field Field, a Answer) string {
	selected := make(map[string]bool, 4)
	for _, id := range a.SelectedOptionIDs() {
		selected[id] = true
	}
	var labels []string
	for _, o := range field.Options {
		if selected[o.ID] {
			labels = append(labels, o.Label)
		}
	}
	return strings.Join(labels, ", ")
}

func placeholderLabel(fieldID string) string {
	const maxIDLen = 8
	id := fieldID
	// Truncate by runes so a multibyte field id stays valid UTF-8.
	if runes := []rune(id); len(runes) > maxIDLen {
		id = string(runes[:maxIDLen])
	}
	return fmt.Sprintf("Unknown field (%s…)", id)
}
