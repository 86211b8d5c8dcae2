package authn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateTokenRoundTrip(t *testing.T) {
	m := NewJWTManager("test-secret", "taskqueue-test")

	pair, err := m.GenerateTokenPair("admin")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)

	claims, err := m.ValidateToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Subject)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	m := NewJWTManager("test-secret", "taskqueue-test")
	_, err := m.ValidateToken("not-a-real-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	signer := NewJWTManager("secret-a", "taskqueue-test")
	verifier := NewJWTManager("secret-b", "taskqueue-test")

	pair, err := signer.GenerateTokenPair("admin")
	require.NoError(t, err)

	_, err = verifier.ValidateToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestHashAndCheckToken(t *testing.T) {
	hash, err := HashToken("super-secret-admin-token")
	require.NoError(t, err)

	assert.NoError(t, CheckToken(hash, "super-secret-admin-token"))
	assert.ErrorIs(t, CheckToken(hash, "wrong-token"), ErrInvalidCredentials)
}
