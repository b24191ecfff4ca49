package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "registra/pkg/domain"
	dErrors "registra/pkg/domain-errors"
	"registra/pkg/requestcontext"
)

var verifier = NewVerifier("test-signing-key", "test-issuer")

var actor = requestcontext.ActorContext{
	ActorID:  "actor-1",
	TenantID: id.NewTenantID(),
	Role:     id.RoleAdmin,
}

var expiresIn = time.Hour

func Test_GenerateToken(t *testing.T) {
	token, err := verifier.GenerateToken(actor, expiresIn)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	resolved, err := verifier.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, actor, resolved)
}

func Test_VerifyToken_InvalidToken(t *testing.T) {
	_, err := verifier.VerifyToken("invalid-token-string")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_VerifyToken_ExpiredToken(t *testing.T) {
	token, err := verifier.GenerateToken(actor, -time.Hour)
	require.NoError(t, err)

	_, err = verifier.VerifyToken(token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	assert.Contains(t, err.Error(), "expired")
}

func Test_VerifyToken_UnknownRole(t *testing.T) {
	bad := actor
	bad.Role = "janitor"
	token, err := verifier.GenerateToken(bad, expiresIn)
	require.NoError(t, err)

	_, err = verifier.VerifyToken(token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_VerifyToken_WrongKey(t *testing.T) {
	other := NewVerifier("another-key", "test-issuer")
	token, err := other.GenerateToken(actor, expiresIn)
	require.NoError(t, err)

	_, err = verifier.VerifyToken(token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}
