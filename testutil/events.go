package testutil

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/ashu01304/nostr-forms-sub000/crypto"
	"github.com/ashu01304/nostr-forms-sub000/protocol"
)

// eventID derives a deterministic id from the event body, so two generated
// events with identical content share an id the way real relay events do.
func eventID(pubkey string, createdAt int64, kind int, tags []protocol.Tag, content string) string {
	body, _ := json.Marshal([]any{0, pubkey, createdAt, kind, tags, content})
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// ResponseEvent builds a plaintext response event carrying the given answer
// tags, correlated to (owner, formID).
func ResponseEvent(author, owner, formID string, createdAt int64, answers ...protocol.Tag) *protocol.Event {
	tags := []protocol.Tag{
		{protocol.TagOwner, owner},
		{protocol.TagFormID, formID},
	}
	tags = append(tags, answers...)
	return &protocol.Event{
		ID:        eventID(author, createdAt, protocol.KindFormResponse, tags, ""),
		PubKey:    author,
		CreatedAt: createdAt,
		Kind:      protocol.KindFormResponse,
		Tags:      tags,
	}
}

// EncryptedResponseEvent builds a response event whose answers are sealed
// under the conversation key between the author and the owner.
func EncryptedResponseEvent(t *testing.T, author *crypto.LocalSigner, ownerIdentity, formID string, createdAt int64, answers ...protocol.Tag) *protocol.Event {
	t.Helper()
	key, err := crypto.SignerConversationKey(author, ownerIdentity)
	if err != nil {
		t.Fatalf("derive conversation key: %v", err)
	}
	payload, err := json.Marshal(answers)
	if err != nil {
		t.Fatalf("marshal answers: %v", err)
	}
	content, err := crypto.Encrypt(key, payload)
	if err != nil {
		t.Fatalf("encrypt answers: %v", err)
	}

	authorID, err := author.PublicIdentity()
	if err != nil {
		t.Fatalf("author identity: %v", err)
	}
	tags := []protocol.Tag{
		{protocol.TagOwner, ownerIdentity},
		{protocol.TagFormID, formID},
	}
	return &protocol.Event{
		ID:        eventID(authorID, createdAt, protocol.KindFormResponse, tags, content),
		PubKey:    authorID,
		CreatedAt: createdAt,
		Kind:      protocol.KindFormResponse,
		Tags:      tags,
		Content:   content,
	}
}

// SpecEvent builds a plaintext form specification event for (owner, formID)
// with the given spec tags among its event tags.
func SpecEvent(owner, formID string, createdAt int64, specTags ...protocol.Tag) *protocol.Event {
	tags := []protocol.Tag{{protocol.TagFormID, formID}}
	tags = append(tags, specTags...)
	return &protocol.Event{
		ID:        eventID(owner, createdAt, protocol.KindFormSpec, tags, ""),
		PubKey:    owner,
		CreatedAt: createdAt,
		Kind:      protocol.KindFormSpec,
		Tags:      tags,
	}
}

// SimpleFormTags returns the tags of a minimal two-field form: a short text
// field "f_text" and a multi-select option field "f_opt" with options
// optA/optB/optC.
func SimpleFormTags() []protocol.Tag {
	return []protocol.Tag{
		{"name", "Test Form"},
		{"settings", `{"description":"test"}`},
		{"field", "f_text", "text", "Your name", "[]", `{"renderElement":"shortText"}`},
		{"field", "f_opt", "option", "Pick some",
			`[["optA","A","{}"],["optB","B","{}"],["optC","C","{}"]]`,
			`{"renderElement":"checkboxes"}`},
	}
}

// NewIdentity generates a fresh keypair, returning the raw secret the way a
// cached view/edit key is supplied, the signer over it, and the public
// identity.
func NewIdentity(t *testing.T) ([]byte, *crypto.LocalSigner, string) {
	t.Helper()
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		t.Fatalf("generate secret: %v", err)
	}
	signer, err := crypto.NewLocalSigner(secret)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	id, err := signer.PublicIdentity()
	if err != nil {
		t.Fatalf("public identity: %v", err)
	}
	return secret, signer, id
}

// Identity returns a deterministic fake hex identity for tests that do not
// exercise real key agreement.
func Identity(name string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("identity:%s", name)))
	return hex.EncodeToString(sum[:])
}
