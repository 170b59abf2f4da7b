package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignParse(t *testing.T) {
	s := NewSigner("secret")
	tok, err := s.Sign("user-1", "sess-1", time.Hour)
	require.NoError(t, err)

	claims, err := s.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "sess-1", claims.SessionID)
}

func TestParseRejects(t *testing.T) {
	s := NewSigner("secret")
	tok, err := s.Sign("user-1", "sess-1", time.Hour)
	require.NoError(t, err)

	_, err = NewSigner("other").Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = s.Parse("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := NewSigner("secret")
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, err := expired.Sign("user-1", "", time.Hour)
	require.NoError(t, err)
	_, err = s.Parse(old)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestDefaultSecret(t *testing.T) {
	assert.True(t, NewSigner("").UsesDefaultSecret())
	assert.False(t, NewSigner("x").UsesDefaultSecret())
}
