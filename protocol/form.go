package protocol

import (
	"encoding/json"
	"errors"
)

// FormSettings is the decoded "settings" tag payload. Unknown keys are
// ignored; a malformed payload decodes to the zero settings.
type FormSettings struct {
	Description       string   `json:"description"`
	PublicForm        bool     `json:"publicForm"`
	EncryptForm       bool     `json:"encryptForm"`
	DisallowAnonymous bool     `json:"disallowAnonymous"`
	NotifyIdentities  []string `json:"notifyNpubs"`
	ThankYouPage      bool     `json:"thankYouPage"`
}

// FormSpec is a decoded form specification: the ordered tag list published
// by a form owner, identified by (Owner, ID). A specification is immutable
// once published; republishing under the same id is a new version.
type FormSpec struct {
	// Owner is the publishing identity (hex public key).
	Owner string
	// ID is the form identifier, unique per owner.
	ID string

	Name     string
	Settings FormSettings
	Fields   []Field
	// Relays are the form's preferred relay endpoints, from "relay" tags.
	Relays []string

	// Tags is the raw tag list the specification was decoded from.
	Tags []Tag

	fieldIndex map[string]int
}

// ErrNoFields is returned for a specification without a single decodable
// field tag.
var ErrNoFields = errors.New("protocol: form specification has no fields")

// ParseFormSpec decodes a form specification from its tag list. Malformed
// field tags are skipped rather than failing the specification; an entirely
// fieldless spec fails with ErrNoFields.
func ParseFormSpec(owner, formID string, tags []Tag) (*FormSpec, error) {
	spec := &FormSpec{
		Owner:      owner,
		ID:         formID,
		Tags:       tags,
		fieldIndex: make(map[string]int),
	}

	for _, t := range tags {
		switch t.Kind() {
		case TagKindName:
			spec.Name = t.Value(1)
		case TagKindSettings:
			// Settings are advisory; a bad payload falls back to defaults.
			_ = json.Unmarshal([]byte(t.Value(1)), &spec.Settings)
		case TagKindRelay:
			if url := t.Value(1); url != "" {
				spec.Relays = append(spec.Relays, url)
			}
		case TagKindField:
			f, err := DecodeField(t)
			if err != nil {
				continue
			}
			if _, dup := spec.fieldIndex[f.ID]; dup {
				continue
			}
			spec.fieldIndex[f.ID] = len(spec.Fields)
			spec.Fields = append(spec.Fields, f)
		}
	}

	if len(spec.Fields) == 0 {
		return nil, ErrNoFields
	}
	return spec, nil
}

// FieldByID looks up a field by its id.
func (s *FormSpec) FieldByID(id string) (Field, bool) {
	if s == nil {
		return Field{}, false
	}
	i, ok := s.fieldIndex[id]
	if !ok {
		return Field{}, false
	}
	return s.Fields[i], true
}

// DisplayName returns the form's name, or a fallback for unnamed forms.
func (s *FormSpec) DisplayName() string {
	if s == nil || s.Name == "" {
		return "Untitled Form"
	}
	return s.Name
}
