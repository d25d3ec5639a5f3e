package protocol

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Event kinds on the relay network.
const (
	// KindFormSpec is an addressable form specification event; the form id
	// is carried in its "d" tag and the owner is the event author.
	KindFormSpec = 30168
	// KindFormResponse is a response event, correlated to a form by its
	// ("p", owner) and ("d", formId) tags.
	KindFormResponse = 1069
)

// Correlation tag names, filterable server-side by relays.
const (
	TagOwner  = "p"
	TagFormID = "d"
)

// Event is the opaque envelope delivered by the relay transport. When
// Content is empty the answer tags travel in plaintext among Tags; otherwise
// Content is ciphertext that decrypts to a JSON array of "response" tags.
type Event struct {
	ID        string `json:"id"`
	PubKey    string `json:"pubkey"`
	CreatedAt int64  `json:"created_at"`
	Kind      int    `json:"kind"`
	Tags      []Tag  `json:"tags"`
	Content   string `json:"content"`
	Sig       string `json:"sig"`
}

// TagValue returns the second element of the event's first tag with the
// given name, or "".
func (e *Event) TagValue(name string) string {
	return FindTag(e.Tags, name).Value(1)
}

// FormID returns the form identifier the event addresses, from its "d" tag.
func (e *Event) FormID() string {
	return e.TagValue(TagFormID)
}

// PlaintextAnswers returns the event's plaintext "response" tags. Meaningful
// only when Content is empty.
func (e *Event) PlaintextAnswers() []Tag {
	return FilterTags(e.Tags, TagKindResponse)
}

// ParseAnswerPayload decodes a decrypted response payload: a JSON array of
// tags, of which the "response"-kind ones are the answers.
func ParseAnswerPayload(payload []byte) ([]Tag, error) {
	var tags []Tag
	if err := json.Unmarshal(payload, &tags); err != nil {
		return nil, fmt.Errorf("%w: answer payload: %v", ErrMalformedTag, err)
	}
	return FilterTags(tags, TagKindResponse), nil
}

// Filter selects events on a relay subscription. The zero value matches
// everything; relays apply all set conditions conjunctively.
type Filter struct {
	IDs     []string
	Authors []string
	Kinds   []int
	// TagFilters maps a tag name to accepted values, serialized as the
	// "#<name>" filter keys relays index.
	TagFilters map[string][]string
	Since      int64
	Until      int64
	Limit      int
}

// ResponseFilter builds the canonical filter for a form's response events.
func ResponseFilter(owner, formID string, since int64) Filter {
	return Filter{
		Kinds: []int{KindFormResponse},
		TagFilters: map[string][]string{
			TagOwner:  {owner},
			TagFormID: {formID},
		},
		Since: since,
	}
}

// SpecFilter builds the filter resolving a form specification event.
func SpecFilter(owner, formID string) Filter {
	return Filter{
		Kinds:      []int{KindFormSpec},
		Authors:    []string{owner},
		TagFilters: map[string][]string{TagFormID: {formID}},
	}
}

// MarshalJSON serializes the filter in the relay wire form, emitting tag
// conditions as "#<name>" keys and omitting unset conditions.
func (f Filter) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, 8)
	if len(f.IDs) > 0 {
		m["ids"] = f.IDs
	}
	if len(f.Authors) > 0 {
		m["authors"] = f.Authors
	}
	if len(f.Kinds) > 0 {
		m["kinds"] = f.Kinds
	}
	for name, values := range f.TagFilters {
		if len(values) > 0 {
			m["#"+name] = values
		}
	}
	if f.Since > 0 {
		m["since"] = f.Since
	}
	if f.Until > 0 {
		m["until"] = f.Until
	}
	if f.Limit > 0 {
		m["limit"] = f.Limit
	}
	return json.Marshal(m)
}

// Matches reports whether an event satisfies every set condition of the
// filter. Used for client-side checks against relays that over-deliver.
func (f Filter) Matches(e *Event) bool {
	if e == nil {
		return false
	}
	if len(f.IDs) > 0 && !slices.Contains(f.IDs, e.ID) {
		return false
	}
	if len(f.Authors) > 0 && !slices.Contains(f.Authors, e.PubKey) {
		return false
	}
	if len(f.Kinds) > 0 && !slices.Contains(f.Kinds, e.Kind) {
		return false
	}
	for name, values := range f.TagFilters {
		if len(values) == 0 {
			continue
		}
		if !eventHasTagValue(e, name, values) {
			return false
		}
	}
	if f.Since > 0 && e.CreatedAt < f.Since {
		return false
	}
	if f.Until > 0 && e.CreatedAt > f.Until {
		return false
	}
	return true
}

func eventHasTagValue(e *Event, name string, values []string) bool {
	for _, t := range FilterTags(e.Tags, name) {
		if slices.Contains(values, t.Value(1)) {
			return true
		}
	}
	return false
}
