// Package crypto provides the end-to-end encryption layer protecting
// response content, and the signer capability the rest of the module
// consumes.
//
// Two parties derive the same conversation key from the pair of their
// asymmetric identities: an X25519 key agreement followed by HKDF-SHA256.
// Response payloads are sealed with XChaCha20-Poly1305 under that key, in a
// versioned envelope with a random nonce, and transported as base64.
//
// The active signer is an explicit capability passed in by the caller, never
// a process-wide global; login/logout on the presentation side produces a
// new Signer instance. The package never generates, persists, or logs the
// caller's long-term secret.
package crypto
