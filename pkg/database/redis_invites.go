package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"formflow-backend/pkg/models"

	"github.com/redis/go-redis/v9"
)

const invitePrefix = "formflow:invite:"

// inviteGrace keeps an expired key around long enough for redemption to report "expired"
// instead of "not found"
const inviteGrace = 24 * time.Hour

// RedisInviteStore keeps invites in Redis with a TTL tied to their expiry
type RedisInviteStore struct {
	rc *redis.Client
}

// RedisConfig mirrors the REDIS_* settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient dials and pings Redis
func NewRedisClient(ctx context.Context, conf RedisConfig) (*redis.Client, error) {
	if conf.Addr == "" {
		return nil, errors.New("redis address is empty")
	}
	rc := redis.NewClient(&redis.Options{
		Addr:         conf.Addr,
		Password:     conf.Password,
		DB:           conf.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx).Err(); err != nil {
		rc.Close()
		return nil, fmt.Errorf("redis connect error: %w", err)
	}
	return rc, nil
}

func NewRedisInviteStore(rc *redis.Client) *RedisInviteStore {
	return &RedisInviteStore{rc: rc}
}

func inviteKey(token string) string {
	return invitePrefix + token
}

func (s *RedisInviteStore) CreateInvite(ctx context.Context, inv *models.WorkspaceInvite) error {
	payload, err := json.Marshal(inv)
	if err != nil {
		return err
	}
	ttl := time.Until(inv.ExpiresAt) + inviteGrace
	if ttl <= 0 {
		ttl = inviteGrace
	}
	ok, err := s.rc.SetNX(ctx, inviteKey(inv.Token), payload, ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to create invite: %w", err)
	}
	if !ok {
		return fmt.Errorf("invite token: %w", ErrDuplicate)
	}
	return nil
}

func (s *RedisInviteStore) GetInviteByToken(ctx context.Context, token string) (*models.WorkspaceInvite, error) {
	raw, err := s.rc.Get(ctx, inviteKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, notFound("invite")
		}
		return nil, fmt.Errorf("failed to get invite: %w", err)
	}
	var inv models.WorkspaceInvite
	if err := json.Unmarshal(raw, &inv); err != nil {
		return nil, fmt.Errorf("failed to decode invite: %w", err)
	}
	return &inv, nil
}

func (s *RedisInviteStore) DeleteInvite(ctx context.Context, token string) error {
	n, err := s.rc.Del(ctx, inviteKey(token)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete invite: %w", err)
	}
	if n == 0 {
		return notFound("invite")
	}
	return nil
}

func (s *RedisInviteStore) HealthCheck(ctx context.Context) error {
	return s.rc.Ping(ctx).Err()
}

func (s *RedisInviteStore) Close() error {
	return s.rc.Close()
}

// DeleteExpiredInvites scans the invite keyspace; Redis TTLs reclaim the rest on their own
func (s *RedisInviteStore) DeleteExpiredInvites(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	iter := s.rc.Scan(ctx, 0, invitePrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		raw, err := s.rc.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("failed to read %s: %w", key, err)
		}
		var inv models.WorkspaceInvite
		if err := json.Unmarshal(raw, &inv); err != nil || inv.ExpiredAt(cutoff) {
			n, err := s.rc.Del(ctx, key).Result()
			if err != nil {
				return removed, fmt.Errorf("failed to delete %s: %w", key, err)
			}
			removed += n
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("failed to scan invites: %w", err)
	}
	return removed, nil
}

// WithInviteStore serves invite operations from invites and everything else from base
func WithInviteStore(base DatabaseInterface, invites InviteStore) DatabaseInterface {
	return &inviteOverlay{DatabaseInterface: base, invites: invites}
}

type inviteOverlay struct {
	DatabaseInterface
	invites InviteStore
}

func (o *inviteOverlay) CreateInvite(ctx context.Context, inv *models.WorkspaceInvite) error {
	return o.invites.CreateInvite(ctx, inv)
}

func (o *inviteOverlay) GetInviteByToken(ctx context.Context, token string) (*models.WorkspaceInvite, error) {
	return o.invites.GetInviteByToken(ctx, token)
}

func (o *inviteOverlay) DeleteInvite(ctx context.Context, token string) error {
	return o.invites.DeleteInvite(ctx, token)
}

func (o *inviteOverlay) DeleteExpiredInvites(ctx context.Context, cutoff time.Time) (int64, error) {
	return o.invites.DeleteExpiredInvites(ctx, cutoff)
}

func (o *inviteOverlay) HealthCheck(ctx context.Context) error {
	if err := o.DatabaseInterface.HealthCheck(ctx); err != nil {
		return err
	}
	if hc, ok := o.invites.(interface{ HealthCheck(context.Context) error }); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

func (o *inviteOverlay) Close() error {
	err := o.DatabaseInterface.Close()
	if c, ok := o.invites.(interface{ Close() error }); ok {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
