package aggregator

import (
	"errors"
	"sync"

	"github.com/ashu01304/nostr-forms-sub000/crypto"
)

// KeySource yields the conversation key for a respondent identity. It is the
// aggregation session's decryption context: typically backed by the form's
// view or edit key, supplied read-only by the caller.
type KeySource interface {
	ConversationKey(peerIdentity string) (crypto.ConversationKey, error)
}

// ErrNoKey is returned by a key source that has no secret to derive from: a
// viewer without view or edit access. Encrypted events then reject softly.
var ErrNoKey = errors.New("aggregator: no decryption key available")

// SecretKeySource builds a KeySource from an opaque 32-byte secret. Derived
// keys are cached per peer; the secret itself is never logged or copied out.
func SecretKeySource(secret []byte) KeySource {
	return &secretKeySource{secret: secret, cache: make(map[string]crypto.ConversationKey)}
}

type secretKeySource struct {
	secret []byte

	mu    sync.Mutex
	cache map[string]crypto.ConversationKey
}

func (s *secretKeySource) ConversationKey(peer string) (crypto.ConversationKey, error) {
	if len(s.secret) == 0 {
		return crypto.ConversationKey{}, ErrNoKey
	}
	s.mu.Lock()
	key, ok := s.cache[peer]
	s.mu.Unlock()
	if ok {
		return key, nil
	}

	key, err := crypto.DeriveConversationKey(s.secret, peer)
	if err != nil {
		return crypto.ConversationKey{}, err
	}
	s.mu.Lock()
	s.cache[peer] = key
	s.mu.Unlock()
	return key, nil
}

// SignerKeySource builds a KeySource from a Signer capability, for callers
// that hold no raw secret. A nil signer yields ErrNoKey for every peer.
func SignerKeySource(signer crypto.Signer) KeySource {
	return &signerKeySource{signer: signer}
}

type signerKeySource struct {
	signer crypto.Signer
}

func (s *signerKeySource) ConversationKey(peer string) (crypto.ConversationKey, error) {
	if s.signer == nil {
		return crypto.ConversationKey{}, ErrNoKey
	}
	return crypto.SignerConversationKey(s.signer, peer)
}
