package crypto

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func testKeyPair(t *testing.T) (*LocalSigner, *LocalSigner) {
	t.Helper()
	alice, err := GenerateLocalSigner()
	require.NoError(t, err)
	bob, err := GenerateLocalSigner()
	require.NoError(t, err)
	return alice, bob
}

func TestConversationKeyIsOrderIndependent(t *testing.T) {
	alice, bob := testKeyPair(t)
	alicePub, err := alice.PublicIdentity()
	require.NoError(t, err)
	bobPub, err := bob.PublicIdentity()
	require.NoError(t, err)

	k1, err := DeriveConversationKey(alice.secret[:], bobPub)
	require.NoError(t, err)
	k2, err := DeriveConversationKey(bob.secret[:], alicePub)
	require.NoError(t, err)
	require.Equal(t, k1, k2)

	// Deriving through the Signer capability gives the same key.
	k3, err := SignerConversationKey(alice, bobPub)
	require.NoError(t, err)
	require.Equal(t, k1, k3)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	alice, bob := testKeyPair(t)
	bobPub, _ := bob.PublicIdentity()
	key, err := DeriveConversationKey(alice.secret[:], bobPub)
	require.NoError(t, err)

	plaintext := []byte(`[["response","f1","optA;optB","{}"]]`)
	ct, err := Encrypt(key, plaintext)
	require.NoError(t, err)

	// Two encryptions of the same plaintext differ (random nonce).
	ct2, err := Encrypt(key, plaintext)
	require.NoError(t, err)
	require.NotEqual(t, ct, ct2)

	got, err := Decrypt(key, ct)
	require.NoError(t, err)
	require.Equal(t, plaintext, got)
}

func TestDecryptWrongKeyFailsAuthentication(t *testing.T) {
	alice, bob := testKeyPair(t)
	eve, err := GenerateLocalSigner()
	require.NoError(t, err)
	bobPub, _ := bob.PublicIdentity()
	evePub, _ := eve.PublicIdentity()

	key, err := DeriveConversationKey(alice.secret[:], bobPub)
	require.NoError(t, err)
	ct, err := Encrypt(key, []byte("secret answers"))
	require.NoError(t, err)

	wrongKey, err := DeriveConversationKey(alice.secret[:], evePub)
	require.NoError(t, err)
	_, err = Decrypt(wrongKey, ct)
	require.ErrorIs(t, err, ErrAuthenticationFailure)
}

func TestDecryptTamperFailsAuthentication(t *testing.T) {
	alice, bob := testKeyPair(t)
	bobPub, _ := bob.PublicIdentity()
	key, err := DeriveConversationKey(alice.secret[:], bobPub)
	require.NoError(t, err)
	ct, err := Encrypt(key, []byte("secret answers"))
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(ct)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0x01
	_, err = Decrypt(key, base64.StdEncoding.EncodeToString(raw))
	require.ErrorIs(t, err, ErrAuthenticationFailure)
}

func TestDecryptFormatErrors(t *testing.T) {
	var key ConversationKey

	cases := []struct {
		name       string
		ciphertext string
	}{
		{"not base64", "!!! definitely not base64 !!!"},
		{"truncated", base64.StdEncoding.EncodeToString([]byte{envelopeVersion, 1, 2, 3})},
		{"unknown version", base64.StdEncoding.EncodeToString(make([]byte, minEnvelopeLen))},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decrypt(key, tc.ciphertext)
			require.ErrorIs(t, err, ErrFormatError)
		})
	}
}

func TestNewLocalSignerValidation(t *testing.T) {
	_, err := NewLocalSigner([]byte("too short"))
	require.Error(t, err)

	s, err := NewLocalSigner(make([]byte, 32))
	require.NoError(t, err)
	id, err := s.PublicIdentity()
	require.NoError(t, err)
	require.Len(t, id, 64)

	_, err = s.DeriveSharedSecret("not-hex")
	require.Error(t, err)
}
