package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasherDeterministic(t *testing.T) {
	h := NewHasher("test-salt", 1000)

	first := h.Hash("Password1")
	second := h.Hash("Password1")
	assert.Equal(t, first, second, "same password must hash to the same digest")
	assert.Len(t, first, 32)
}

func TestHasherVerify(t *testing.T) {
	h := NewHasher("test-salt", 1000)
	digest := h.Hash("Password1")

	assert.True(t, h.Verify("Password1", digest))
	assert.False(t, h.Verify("Password2", digest))
	assert.False(t, h.Verify("", digest))
	assert.False(t, h.Verify("Password1", nil))
}

func TestHasherParametersChangeDigest(t *testing.T) {
	base := NewHasher("test-salt", 1000)
	otherSalt := NewHasher("other-salt", 1000)
	otherIters := NewHasher("test-salt", 2000)

	digest := base.Hash("Password1")
	assert.NotEqual(t, digest, otherSalt.Hash("Password1"))
	assert.NotEqual(t, digest, otherIters.Hash("Password1"))
}
