// Package cryptox derives password verifiers for the account store.
package cryptox

import (
	"crypto/sha256"
	"crypto/subtle"

	"golang.org/x/crypto/argon2"
)

// SaltSize is the length of per-account salts.
const SaltSize = 32

// Argon2id parameters. Changing them invalidates every stored verifier.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
)

// DeriveKey stretches password with salt using argon2id.
func DeriveKey(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}

// MakeVerifier hashes a derived key. Only the verifier is persisted, never
// the key itself.
func MakeVerifier(key []byte) []byte {
	hash := sha256.Sum256(key)
	return hash[:]
}

// PasswordVerifier is DeriveKey followed by MakeVerifier.
func PasswordVerifier(password, salt []byte) []byte {
	return MakeVerifier(DeriveKey(password, salt))
}

// CheckPassword reports whether password matches the stored verifier.
// The comparison is constant time.
func CheckPassword(password, salt, verifier []byte) bool {
	candidate := PasswordVerifier(password, salt)
	return subtle.ConstantTimeCompare(candidate, verifier) == 1
}
