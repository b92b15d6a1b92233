package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bricksync/backend/internal/infrastructure/auth"
)

func TestInMemoryTokenBlacklist_RevokeSingleToken(t *testing.T) {
	blacklist := auth.NewInMemoryTokenBlacklist()
	ctx := context.Background()

	require.NoError(t, blacklist.Revoke(ctx, "session-jti-1", time.Hour))

	revoked, err := blacklist.IsRevoked(ctx, "session-jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = blacklist.IsRevoked(ctx, "session-jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestInMemoryTokenBlacklist_EntryExpires(t *testing.T) {
	blacklist := auth.NewInMemoryTokenBlacklist()
	ctx := context.Background()

	require.NoError(t, blacklist.Revoke(ctx, "short-lived", time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	// Once the token itself would be expired, the entry stops mattering
	revoked, err := blacklist.IsRevoked(ctx, "short-lived")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestInMemoryTokenBlacklist_RevokeUserCutoff(t *testing.T) {
	blacklist := auth.NewInMemoryTokenBlacklist()
	ctx := context.Background()

	issuedBefore := time.Now()

	revoked, err := blacklist.IsUserRevokedSince(ctx, "user-1", issuedBefore)
	require.NoError(t, err)
	assert.False(t, revoked, "no cutoff recorded yet")

	require.NoError(t, blacklist.RevokeUser(ctx, "user-1", time.Hour))

	// Token issued before the cutoff is now dead
	revoked, err = blacklist.IsUserRevokedSince(ctx, "user-1", issuedBefore)
	require.NoError(t, err)
	assert.True(t, revoked)

	// A session opened after the cutoff survives
	revoked, err = blacklist.IsUserRevokedSince(ctx, "user-1", time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.False(t, revoked)

	// Other users are untouched
	revoked, err = blacklist.IsUserRevokedSince(ctx, "user-2", issuedBefore)
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestInMemoryTokenBlacklist_ManyEntries(t *testing.T) {
	blacklist := auth.NewInMemoryTokenBlacklist()
	ctx := context.Background()

	jtis := []string{"a", "b", "c", "d"}
	for _, jti := range jtis {
		require.NoError(t, blacklist.Revoke(ctx, jti, time.Hour))
	}
	for _, jti := range jtis {
		revoked, err := blacklist.IsRevoked(ctx, jti)
		require.NoError(t, err)
		assert.True(t, revoked, "jti %s", jti)
	}

	revoked, err := blacklist.IsRevoked(ctx, "never-revoked")
	require.NoError(t, err)
	assert.False(t, revoked)
}
