// Package cryptox holds the password hashing used by the backend.
package cryptox

import (
	"crypto/subtle"

	"github.com/dmitrijs2005/inspectsync/internal/common"
	"golang.org/x/crypto/argon2"
)

// SaltSize is the length of a freshly generated password salt.
const SaltSize = 16

// NewSalt returns SaltSize random bytes.
func NewSalt() []byte {
	return common.GenerateRandByteArray(SaltSize)
}

// HashPassword derives a 32 byte argon2id hash of password with salt.
func HashPassword(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, 32)
}

// VerifyPassword reports whether password hashes to want under salt. The
// comparison runs in constant time.
func VerifyPassword(password, salt, want []byte) bool {
	got := HashPassword(password, salt)
	return subtle.ConstantTimeCompare(got, want) == 1
}
