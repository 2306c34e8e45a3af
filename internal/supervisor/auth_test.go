package supervisor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerifyToken(t *testing.T) {
	a := NewAuthenticator("test-secret")
	token, err := a.IssueToken("dashboard", time.Minute)
	require.NoError(t, err)
	assert.NoError(t, a.Verify(token))
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	a := NewAuthenticator("test-secret")
	token, err := a.IssueToken("dashboard", -time.Second)
	require.NoError(t, err)
	assert.Error(t, a.Verify(token))
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	a := NewAuthenticator("secret-a")
	token, err := a.IssueToken("dashboard", time.Minute)
	require.NoError(t, err)

	other := NewAuthenticator("secret-b")
	assert.Error(t, other.Verify(token))
}

func TestVerifyRejectsEmptyToken(t *testing.T) {
	a := NewAuthenticator("test-secret")
	assert.Error(t, a.Verify(""))
}

func TestVerifyRejectsGarbageToken(t *testing.T) {
	a := NewAuthenticator("test-secret")
	assert.Error(t, a.Verify("not-a-jwt"))
}
