package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signHS256(t *testing.T, secret, sub string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestValidateReturnsSubject(t *testing.T) {
	jv, err := NewJWTValidator("HS256", "", "test-secret")
	require.NoError(t, err)

	sub, err := jv.Validate(signHS256(t, "test-secret", "user-42"))
	require.NoError(t, err)
	assert.Equal(t, "user-42", sub)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	jv, err := NewJWTValidator("HS256", "", "test-secret")
	require.NoError(t, err)

	_, err = jv.Validate(signHS256(t, "other-secret", "user-42"))
	assert.Error(t, err)
}

func TestValidateRejectsMissingSubject(t *testing.T) {
	jv, err := NewJWTValidator("HS256", "", "test-secret")
	require.NoError(t, err)

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = jv.Validate(s)
	assert.Error(t, err)
}

func TestNewValidatorRejectsUnknownAlg(t *testing.T) {
	_, err := NewJWTValidator("none", "", "")
	assert.Error(t, err)

	_, err = NewJWTValidator("HS256", "", "")
	assert.Error(t, err, "hs256 needs a secret")
}
