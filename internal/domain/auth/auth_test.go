package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokens_RoundTrip(t *testing.T) {
	tokens := NewTokens("secret", "cafe", time.Hour)

	for _, role := range []Role{RoleUser, RoleStaff, RoleAdmin} {
		token, err := tokens.Issue(Identity{UserID: "u1", Role: role})
		require.NoError(t, err)

		id, err := tokens.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, Identity{UserID: "u1", Role: role}, id)
	}
}

func TestTokens_Rejects(t *testing.T) {
	issued := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	tokens := NewTokens("secret", "cafe", time.Hour)
	tokens.now = func() time.Time { return issued }

	token, err := tokens.Issue(Identity{UserID: "u1", Role: RoleUser})
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		later := NewTokens("secret", "cafe", time.Hour)
		later.now = func() time.Time { return issued.Add(2 * time.Hour) }
		_, err := later.Verify(token)
		require.ErrorIs(t, err, ErrInvalidToken)
	})
	t.Run("wrong secret", func(t *testing.T) {
		other := NewTokens("other", "cafe", time.Hour)
		other.now = tokens.now
		_, err := other.Verify(token)
		require.ErrorIs(t, err, ErrInvalidToken)
	})
	t.Run("wrong issuer", func(t *testing.T) {
		other := NewTokens("secret", "elsewhere", time.Hour)
		other.now = tokens.now
		_, err := other.Verify(token)
		require.ErrorIs(t, err, ErrInvalidToken)
	})
	t.Run("garbage", func(t *testing.T) {
		_, err := tokens.Verify("not-a-token")
		require.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestTokens_IssueValidation(t *testing.T) {
	tokens := NewTokens("secret", "cafe", time.Hour)

	_, err := tokens.Issue(Identity{Role: RoleUser})
	require.Error(t, err)

	_, err = tokens.Issue(Identity{UserID: "u1", Role: "root"})
	require.Error(t, err)
}

func TestRole_Allows(t *testing.T) {
	assert.True(t, RoleAdmin.Allows(RoleStaff))
	assert.True(t, RoleAdmin.Allows(RoleUser))
	assert.True(t, RoleStaff.Allows(RoleStaff))
	assert.False(t, RoleStaff.Allows(RoleAdmin))
	assert.False(t, RoleUser.Allows(RoleStaff))
	assert.False(t, Role("guest").Allows(RoleUser))
}

func TestIdentityContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithIdentity(context.Background(), Identity{UserID: "u1", Role: RoleStaff})
	id, ok := FromContext(ctx)
	require.True(t, ok)
	assert.True(t, id.IsStaff())
}
