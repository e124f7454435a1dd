package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealRoundTrip(t *testing.T) {
	s, err := NewSealer("hunter2", 1000)
	require.NoError(t, err)

	blob, err := s.Seal([]byte("eyJhbGciOi"))
	require.NoError(t, err)
	assert.NotContains(t, string(blob), "eyJhbGciOi")

	plain, err := s.Open(blob)
	require.NoError(t, err)
	assert.Equal(t, "eyJhbGciOi", string(plain))
}

func TestOpenWrongPassphrase(t *testing.T) {
	s, err := NewSealer("right", 1000)
	require.NoError(t, err)
	blob, err := s.Seal([]byte("secret"))
	require.NoError(t, err)

	other, err := NewSealer("wrong", 1000)
	require.NoError(t, err)
	_, err = other.Open(blob)
	assert.ErrorIs(t, err, ErrWrongPassphrase)
}

func TestNewSealerRejectsEmptyPassphrase(t *testing.T) {
	_, err := NewSealer("", 0)
	assert.Error(t, err)
}

func TestSignerVerify(t *testing.T) {
	s := NewSigner("k")
	require.NotNil(t, s)

	sig := s.Sign([]byte(`{"a":1}`), 1700000000)
	assert.Len(t, sig, 64)
	assert.True(t, s.Verify([]byte(`{"a":1}`), 1700000000, sig))
	assert.False(t, s.Verify([]byte(`{"a":2}`), 1700000000, sig))
	assert.False(t, s.Verify([]byte(`{"a":1}`), 1700000001, sig))
	assert.False(t, s.Verify([]byte(`{"a":1}`), 1700000000, "zz"))

	assert.Nil(t, NewSigner(""))
}
