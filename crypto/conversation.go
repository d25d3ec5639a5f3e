package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// ConversationKey is the symmetric key shared by two identities.
type ConversationKey [32]byte

// Envelope version understood by this implementation. The version byte leads
// every ciphertext so the scheme can evolve without breaking old payloads.
const envelopeVersion = 0x01

const (
	nonceSize      = chacha20poly1305.NonceSizeX
	minEnvelopeLen = 1 + nonceSize + chacha20poly1305.Overhead
)

// hkdfInfo domain-separates conversation keys from any other use of the same
// key agreement.
var hkdfInfo = []byte("form-conversation-key-v1")

var (
	// ErrAuthenticationFailure marks a ciphertext that failed authentication:
	// tampered payload or a key derived from the wrong identity pair.
	ErrAuthenticationFailure = errors.New("crypto: message authentication failed")

	// ErrFormatError marks a ciphertext this implementation cannot parse:
	// bad encoding, unknown version byte, or truncated payload.
	ErrFormatError = errors.New("crypto: malformed ciphertext")
)

// DeriveConversationKey derives the symmetric key shared between the holder
// of localSecret and remoteIdentity. Both parties derive the same key from
// the pair of identities, whichever side runs the derivation.
func DeriveConversationKey(localSecret []byte, remoteIdentity string) (ConversationKey, error) {
	var key ConversationKey
	if len(localSecret) != 32 {
		return key, fmt.Errorf("crypto: secret must be 32 bytes, got %d", len(localSecret))
	}
	peer, err := decodeIdentity(remoteIdentity)
	if err != nil {
		return key, err
	}
	shared, err := curve25519.X25519(localSecret, peer)
	if err != nil {
		return key, fmt.Errorf("crypto: key agreement: %w", err)
	}
	kdf := hkdf.New(sha256.New, shared, nil, hkdfInfo)
	if _, err := io.ReadFull(kdf, key[:]); err != nil {
		return key, fmt.Errorf("crypto: key derivation: %w", err)
	}
	return key, nil
}

// SignerConversationKey derives the conversation key through a Signer
// capability, for callers that do not hold the raw secret.
func SignerConversationKey(s Signer, remoteIdentity string) (ConversationKey, error) {
	var key ConversationKey
	shared, err := s.DeriveSharedSecret(remoteIdentity)
	if err != nil {
		return key, err
	}
	kdf := hkdf.New(sha256.New, shared, nil, hkdfInfo)
	if _, err := io.ReadFull(kdf, key[:]); err != nil {
		return key, fmt.Errorf("crypto: key derivation: %w", err)
	}
	return key, nil
}

// Encrypt seals plaintext under the conversation key. The result is a base64
// envelope: version byte, random 24-byte nonce, then the authenticated
// ciphertext.
func Encrypt(key ConversationKey, plaintext []byte) (string, error) {
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return "", fmt.Errorf("crypto: init cipher: %w", err)
	}

	envelope := make([]byte, 1+nonceSize, minEnvelopeLen+len(plaintext))
	envelope[0] = envelopeVersion
	if _, err := rand.Read(envelope[1 : 1+nonceSize]); err != nil {
		return "", fmt.Errorf("crypto: nonce: %w", err)
	}

	envelope = aead.Seal(envelope, envelope[1:1+nonceSize], plaintext, envelope[:1])
	return base64.StdEncoding.EncodeToString(envelope), nil
}

// Decrypt opens a base64 envelope produced by Encrypt. It fails with
// ErrFormatError when the envelope cannot be parsed and with
// ErrAuthenticationFailure when authentication fails.
func Decrypt(key ConversationKey, ciphertext string) ([]byte, error) {
	envelope, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: not base64", ErrFormatError)
	}
	if len(envelope) < minEnvelopeLen {
		return nil, fmt.Errorf("%w: truncated payload (%d bytes)", ErrFormatError, len(envelope))
	}
	if envelope[0] != envelopeVersion {
		return nil, fmt.Errorf("%w: unsupported version 0x%02x", ErrFormatError, envelope[0])
	}

	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, fmt.Errorf("crypto: init cipher: %w", err)
	}

	nonce := envelope[1 : 1+nonceSize]
	plaintext, err := aead.Open(nil, nonce, envelope[1+nonceSize:], envelope[:1])
	if err != nil {
		return nil, ErrAuthenticationFailure
	}
	return plaintext, nil
}
