package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/curve25519"
)

// Signer is the identity capability the module consumes. Implementations
// may hold the secret locally or proxy to an external signing device; the
// module never sees more than these operations.
type Signer interface {
	// PublicIdentity returns the hex-encoded public identity.
	PublicIdentity() (string, error)

	// SignPayload signs an arbitrary payload under the identity.
	SignPayload(payload []byte) ([]byte, error)

	// DeriveSharedSecret performs key agreement with a peer identity and
	// returns the raw shared secret. Callers feed it to a KDF before use.
	DeriveSharedSecret(peerIdentity string) ([]byte, error)
}

// LocalSigner is a Signer backed by an in-memory X25519 secret supplied by
// the identity collaborator as an opaque byte buffer.
type LocalSigner struct {
	secret [32]byte
	public [32]byte
}

// NewLocalSigner wraps a 32-byte secret. The buffer is copied; the caller
// retains ownership of its copy.
func NewLocalSigner(secret []byte) (*LocalSigner, error) {
	if len(secret) != 32 {
		return nil, fmt.Errorf("crypto: secret must be 32 bytes, got %d", len(secret))
	}
	s := &LocalSigner{}
	copy(s.secret[:], secret)
	curve25519.ScalarBaseMult(&s.public, &s.secret)
	return s, nil
}

// GenerateLocalSigner creates a signer with a fresh random secret. Intended
// for tests and ephemeral anonymous respondents.
func GenerateLocalSigner() (*LocalSigner, error) {
	var secret [32]byte
	if _, err := rand.Read(secret[:]); err != nil {
		return nil, fmt.Errorf("crypto: generate secret: %w", err)
	}
	return NewLocalSigner(secret[:])
}

// PublicIdentity returns the hex-encoded X25519 public key.
func (s *LocalSigner) PublicIdentity() (string, error) {
	return hex.EncodeToString(s.public[:]), nil
}

// SignPayload signs payload with a keyed hash under the local secret.
func (s *LocalSigner) SignPayload(payload []byte) ([]byte, error) {
	return signHMAC(s.secret[:], payload), nil
}

// DeriveSharedSecret performs X25519 key agreement with the peer identity.
func (s *LocalSigner) DeriveSharedSecret(peerIdentity string) ([]byte, error) {
	peer, err := decodeIdentity(peerIdentity)
	if err != nil {
		return nil, err
	}
	shared, err := curve25519.X25519(s.secret[:], peer)
	if err != nil {
		return nil, fmt.Errorf("crypto: key agreement: %w", err)
	}
	return shared, nil
}

func decodeIdentity(identity string) ([]byte, error) {
	b, err := hex.DecodeString(identity)
	if err != nil || len(b) != 32 {
		return nil, fmt.Errorf("crypto: bad peer identity %q", truncateForError(identity))
	}
	return b, nil
}

// truncateForError keeps error text short when an identity string is junk.
func truncateForError(s string) string {
	if len(s) > 16 {
		return s[:16] + "…"
	}
	return s
}

func signHMAC(key, payload []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(payload)
	return mac.Sum(nil)
}
