package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionTokenRoundTrip(t *testing.T) {
	now := time.Now()
	tok, err := NewSessionToken("secret", 42, "Palm Grove", 15*time.Minute, now)
	require.NoError(t, err)
	assert.NotEmpty(t, tok.Session.ID)

	sess, err := ParseSessionToken("secret", tok.Token)
	require.NoError(t, err)
	assert.Equal(t, tok.Session.ID, sess.ID)
	assert.Equal(t, uint64(42), sess.HouseholdID)
	assert.Equal(t, "Palm Grove", sess.SocietyName)
	assert.Equal(t, now.Add(15*time.Minute).Unix(), sess.ExpiresAt.Unix())

	other, err := NewSessionToken("secret", 42, "Palm Grove", 15*time.Minute, now)
	require.NoError(t, err)
	assert.NotEqual(t, tok.Session.ID, other.Session.ID)
}

func TestSessionTokenRejected(t *testing.T) {
	tok, err := NewSessionToken("secret", 1, "Palm", time.Minute, time.Now())
	require.NoError(t, err)

	_, err = ParseSessionToken("other-secret", tok.Token)
	assert.ErrorIs(t, err, ErrInvalidSession)

	_, err = ParseSessionToken("secret", tok.Token+"x")
	assert.ErrorIs(t, err, ErrInvalidSession)

	expired, err := NewSessionToken("secret", 1, "Palm", time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	_, err = ParseSessionToken("secret", expired.Token)
	assert.ErrorIs(t, err, ErrInvalidSession)

	// a token without the society claim is not a voter session
	bare, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "1",
		ID:        "x",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = ParseSessionToken("secret", bare)
	assert.ErrorIs(t, err, ErrInvalidSession)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, SessionClaims{Society: "Palm"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ParseSessionToken("secret", none)
	assert.ErrorIs(t, err, ErrInvalidSession)
}
