package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"formflow-backend/pkg/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisInvites(t *testing.T) (*RedisInviteStore, *miniredis.Miniredis) {
	t.Helper()
	m := miniredis.RunT(t)
	rc, err := NewRedisClient(context.Background(), RedisConfig{Addr: m.Addr()})
	require.NoError(t, err)
	store := NewRedisInviteStore(rc)
	t.Cleanup(func() { store.Close() })
	return store, m
}

func redisInvite(token string, expiresAt time.Time) *models.WorkspaceInvite {
	return &models.WorkspaceInvite{
		Token:       token,
		WorkspaceID: "ws-1",
		Permission:  models.PermissionEdit,
		OwnerName:   "Olivia",
		CreatedAt:   expiresAt.Add(-time.Hour),
		ExpiresAt:   expiresAt,
	}
}

func TestNewRedisClientRequiresAddr(t *testing.T) {
	_, err := NewRedisClient(context.Background(), RedisConfig{})
	assert.Error(t, err)
}

func TestRedisInviteStore(t *testing.T) {
	ctx := context.Background()
	store, _ := newRedisInvites(t)

	inv := redisInvite("tok-1", time.Now().Add(time.Hour))
	require.NoError(t, store.CreateInvite(ctx, inv))

	err := store.CreateInvite(ctx, redisInvite("tok-1", time.Now().Add(2*time.Hour)))
	assert.True(t, errors.Is(err, ErrDuplicate))

	got, err := store.GetInviteByToken(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "ws-1", got.WorkspaceID)
	assert.Equal(t, models.PermissionEdit, got.Permission)
	assert.WithinDuration(t, inv.ExpiresAt, got.ExpiresAt, time.Second)

	require.NoError(t, store.DeleteInvite(ctx, "tok-1"))
	_, err = store.GetInviteByToken(ctx, "tok-1")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(store.DeleteInvite(ctx, "tok-1"), ErrNotFound))

	assert.NoError(t, store.HealthCheck(ctx))
}

func TestRedisInviteGraceTTL(t *testing.T) {
	ctx := context.Background()
	store, m := newRedisInvites(t)

	require.NoError(t, store.CreateInvite(ctx, redisInvite("live", time.Now().Add(time.Hour))))
	assert.InDelta(t, float64(time.Hour+inviteGrace), float64(m.TTL(inviteKey("live"))), float64(time.Minute))

	// long expired still gets the grace window rather than a non-positive TTL
	require.NoError(t, store.CreateInvite(ctx, redisInvite("stale", time.Now().Add(-2*inviteGrace))))
	assert.InDelta(t, float64(inviteGrace), float64(m.TTL(inviteKey("stale"))), float64(time.Minute))

	// within the grace window an expired invite is still readable, so redemption can say "expired"
	m.FastForward(2 * time.Hour)
	got, err := store.GetInviteByToken(ctx, "live")
	require.NoError(t, err)
	assert.True(t, got.ExpiredAt(time.Now().Add(2*time.Hour)))

	m.FastForward(inviteGrace)
	_, err = store.GetInviteByToken(ctx, "live")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRedisDeleteExpiredInvites(t *testing.T) {
	ctx := context.Background()
	store, m := newRedisInvites(t)
	now := time.Now()

	require.NoError(t, store.CreateInvite(ctx, redisInvite("fresh", now.Add(time.Hour))))
	require.NoError(t, store.CreateInvite(ctx, redisInvite("old", now.Add(-time.Minute))))
	require.NoError(t, m.Set(inviteKey("garbled"), "{not json"))
	require.NoError(t, m.Set("other:key", "untouched"))

	n, err := store.DeleteExpiredInvites(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = store.GetInviteByToken(ctx, "fresh")
	assert.NoError(t, err)
	_, err = store.GetInviteByToken(ctx, "old")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, m.Exists("other:key"))

	n, err = store.DeleteExpiredInvites(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedisInviteOverlay(t *testing.T) {
	ctx := context.Background()
	base := newLocal(t)
	invites, m := newRedisInvites(t)
	db := WithInviteStore(base, invites)

	require.NoError(t, db.CreateInvite(ctx, redisInvite("tok-2", time.Now().Add(time.Hour))))
	assert.True(t, m.Exists(inviteKey("tok-2")))
	_, err := base.GetInviteByToken(ctx, "tok-2")
	assert.True(t, errors.Is(err, ErrNotFound))

	assert.NoError(t, db.HealthCheck(ctx))
	m.Close()
	assert.Error(t, db.HealthCheck(ctx))
}
