package protocol

import "errors"

// Tag is the universal wire record: an ordered array of strings whose first
// element is the record kind discriminator.
type Tag []string

// Tag discriminators.
const (
	TagKindField    = "field"
	TagKindResponse = "response"
	TagKindName     = "name"
	TagKindSettings = "settings"
	TagKindRelay    = "relay"
)

// ErrMalformedTag is returned when a tag's discriminator or arity does not
// match the record kind being decoded. Callers recover locally with
// placeholder values; this error is never fatal to a session.
var ErrMalformedTag = errors.New("protocol: malformed tag")

// Kind returns the tag's discriminator, or "" for an empty tag.
func (t Tag) Kind() string {
	if len(t) == 0 {
		return ""
	}
	return t[0]
}

// Value returns the element at position i, or "" when the tag is shorter.
func (t Tag) Value(i int) string {
	if i < 0 || i >= len(t) {
		return ""
	}
	return t[i]
}

// FindTag returns the first tag with the given discriminator, or nil.
func FindTag(tags []Tag, kind string) Tag {
	for _, t := range tags {
		if t.Kind() == kind {
			return t
		}
	}
	return nil
}

// FilterTags returns all tags with the given discriminator, preserving order.
func FilterTags(tags []Tag, kind string) []Tag {
	var out []Tag
	for _, t := range tags {
		if t.Kind() == kind {
			out = append(out, t)
		}
	}
	return out
}
