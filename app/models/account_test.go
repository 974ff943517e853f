package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAccount(t *testing.T) {
	a, err := NewAccount("auth0|abc123", "user@example.com")
	require.NoError(t, err)

	assert.NotEmpty(t, a.UUID)
	assert.Equal(t, "auth0|abc123", a.ExternalID)
	assert.Equal(t, ROLE_USER, a.Role)
	assert.False(t, a.IsAdmin())
	assert.Zero(t, a.Credits)
}

func TestNewAccountValidation(t *testing.T) {
	_, err := NewAccount("", "user@example.com")
	assert.Error(t, err)

	_, err = NewAccount("auth0|abc123", "not-an-email")
	assert.Error(t, err)
}

func TestAccountIssueAPIKey(t *testing.T) {
	a := &Account{}

	key, err := a.IssueAPIKey()
	require.NoError(t, err)
	require.NotEmpty(t, key)

	assert.Contains(t, key, "ra_")
	assert.NotEmpty(t, a.APIKeyHash)
	assert.Equal(t, key[:10], a.APIKeyPrefix)
	assert.NotNil(t, a.APIKeyCreatedAt)
	assert.True(t, a.HasActiveAPIKey())
	assert.Equal(t, HashAPIKey(key), a.APIKeyHash)

	// The raw key is not stored anywhere on the struct.
	assert.NotContains(t, a.APIKeyHash, key)
}

func TestAccountIsAdmin(t *testing.T) {
	a := &Account{Role: ROLE_ADMIN}
	assert.True(t, a.IsAdmin())
}
