package auth

import (
	"crypto/sha256"
	"crypto/subtle"

	"golang.org/x/crypto/pbkdf2"
)

const digestLen = 32

// Hasher derives password digests with PBKDF2-HMAC-SHA256 over a single
// process-wide salt and iteration count. Deterministic on purpose: digests
// are compared by value against what is stored. Rotating the salt or the
// iteration count invalidates every stored hash; there is no migration path.
type Hasher struct {
	salt  []byte
	iters int
}

func NewHasher(salt string, iterations int) *Hasher {
	return &Hasher{salt: []byte(salt), iters: iterations}
}

// Hash derives the digest for a password.
func (h *Hasher) Hash(password string) []byte {
	return pbkdf2.Key([]byte(password), h.salt, h.iters, digestLen, sha256.New)
}

// Verify re-derives the digest and compares it in constant time.
func (h *Hasher) Verify(password string, storedDigest []byte) bool {
	if len(storedDigest) == 0 {
		return false
	}
	derived := pbkdf2.Key([]byte(password), h.salt, h.iters, len(storedDigest), sha256.New)
	return subtle.ConstantTimeCompare(derived, storedDigest) == 1
}
