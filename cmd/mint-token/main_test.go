package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/cafe-ordering/internal/domain/auth"
)

func TestMint(t *testing.T) {
	token, err := mint("s3cret", "cafe-ordering", time.Hour, "u-1", auth.RoleStaff)
	require.NoError(t, err)

	id, err := auth.NewTokens("s3cret", "cafe-ordering", time.Hour).Verify(token)
	require.NoError(t, err)
	assert.Equal(t, auth.Identity{UserID: "u-1", Role: auth.RoleStaff}, id)

	_, err = mint("", "cafe-ordering", time.Hour, "u-1", auth.RoleUser)
	require.Error(t, err)
	_, err = mint("s3cret", "cafe-ordering", time.Hour, "u-1", "root")
	require.Error(t, err)

	token, err = mint("s3cret", "cafe-ordering", time.Hour, "", auth.RoleUser)
	require.NoError(t, err)
	id, err = auth.NewTokens("s3cret", "cafe-ordering", time.Hour).Verify(token)
	require.NoError(t, err)
	assert.Len(t, id.UserID, 36)
}
