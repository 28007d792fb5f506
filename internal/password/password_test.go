package password

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// testParams keeps Argon2 cheap enough for unit tests.
func testParams() Params {
	return Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
}

func TestHashVerifyRoundTrip(t *testing.T) {
	h := NewHasher(testParams())

	for _, pw := range []string{"Secret123", "Passw0rd!", "", "密码1234", strings.Repeat("x", 200)} {
		encoded, err := h.Hash(pw)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$m=1024,t=1,p=1$"), encoded)

		ok, err := h.Verify(pw, encoded)
		require.NoError(t, err)
		assert.True(t, ok, "password %q should verify", pw)

		ok, err = h.Verify(pw+"x", encoded)
		require.NoError(t, err)
		assert.False(t, ok, "altered password should not verify")
	}
}

func TestHashUsesFreshSalt(t *testing.T) {
	h := NewHasher(testParams())

	a, err := h.Hash("Secret123")
	require.NoError(t, err)
	b, err := h.Hash("Secret123")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestVerifyRespectsEmbeddedParams(t *testing.T) {
	old := NewHasher(testParams())
	encoded, err := old.Hash("Secret123")
	require.NoError(t, err)

	stronger := testParams()
	stronger.Iterations = 2
	upgraded := NewHasher(stronger)

	ok, err := upgraded.Verify("Secret123", encoded)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, upgraded.NeedsRehash(encoded))
	assert.False(t, old.NeedsRehash(encoded))
}

func TestVerifyMalformed(t *testing.T) {
	h := NewHasher(testParams())

	tests := []struct {
		name    string
		encoded string
	}{
		{"empty", ""},
		{"plain text", "not-a-hash"},
		{"wrong algorithm", "$argon2i$v=19$m=1024,t=1,p=1$c2FsdHNhbHQ$a2V5a2V5"},
		{"missing key", "$argon2id$v=19$m=1024,t=1,p=1$c2FsdHNhbHQ"},
		{"bad params", "$argon2id$v=19$m=x,t=1,p=1$c2FsdHNhbHQ$a2V5a2V5"},
		{"zero memory", "$argon2id$v=19$m=0,t=1,p=1$c2FsdHNhbHQ$a2V5a2V5"},
		{"bad salt", "$argon2id$v=19$m=1024,t=1,p=1$!!!$a2V5a2V5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := h.Verify("Secret123", tt.encoded)
			assert.False(t, ok)
			require.Error(t, err)

			var hashErr *HashingError
			assert.True(t, errors.As(err, &hashErr))
			assert.ErrorIs(t, err, ErrMalformedHash)
		})
	}
}

func TestVerifyIncompatibleVersion(t *testing.T) {
	h := NewHasher(testParams())

	_, err := h.Verify("Secret123", "$argon2id$v=16$m=1024,t=1,p=1$c2FsdHNhbHQ$a2V5a2V5")
	assert.ErrorIs(t, err, ErrIncompatibleVersion)
}

func TestVerifyBcrypt(t *testing.T) {
	h := NewHasher(testParams())

	legacy, err := bcrypt.GenerateFromPassword([]byte("Secret123"), bcrypt.MinCost)
	require.NoError(t, err)

	ok, err := h.Verify("Secret123", string(legacy))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("wrong-password1", string(legacy))
	require.NoError(t, err)
	assert.False(t, ok)

	assert.True(t, h.NeedsRehash(string(legacy)))
}

func TestNewHasherDefaults(t *testing.T) {
	h := NewHasher(Params{})
	assert.Equal(t, DefaultParams(), h.params)
}
