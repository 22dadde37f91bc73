package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	iss := NewIssuer("s3cret", 72*time.Hour)
	tok, exp, err := iss.Issue("user-1", "ADMIN")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(72*time.Hour), exp, time.Minute)

	id, err := iss.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", id.UserID)
	assert.True(t, id.IsAdmin())
}

func TestParseRejectsExpired(t *testing.T) {
	iss := NewIssuer("s3cret", time.Hour)
	past := time.Now().Add(-2 * time.Hour)
	iss.now = func() time.Time { return past }
	tok, _, err := iss.Issue("user-1", "USER")
	require.NoError(t, err)

	iss.now = time.Now
	_, err = iss.Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsOtherSecret(t *testing.T) {
	tok, _, err := NewIssuer("one", time.Hour).Issue("user-1", "USER")
	require.NoError(t, err)
	_, err = NewIssuer("two", time.Hour).Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsNoneAlg(t *testing.T) {
	claims := Claims{Role: "ADMIN", RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = NewIssuer("s3cret", time.Hour).Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIdentityContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithIdentity(context.Background(), Identity{UserID: "u", Role: "USER"})
	id, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "u", id.UserID)
	assert.False(t, id.IsAdmin())
}
