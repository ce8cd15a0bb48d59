package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/society-voting/internal/model"
)

// SessionRepo keeps the revocation list of voter sessions in Redis.  A
// session is revoked once its ballot is committed or the voter logs out;
// the entry lives until the session would have expired anyway.  With a nil
// client every session is treated as live and revocation is a no-op; the
// voted flag in the store still prevents a second ballot.
type SessionRepo struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

// NewSessionRepo returns a SessionRepo using the given client and key prefix.
func NewSessionRepo(rdb *redis.Client, prefix string) *SessionRepo {
	if prefix == "" {
		prefix = "session:revoked"
	}
	return &SessionRepo{rdb: rdb, prefix: prefix, now: time.Now}
}

func (r *SessionRepo) key(id string) string { return r.prefix + ":" + id }

// Revoke marks the session as unusable until its expiry.
func (r *SessionRepo) Revoke(ctx context.Context, sess model.Session) error {
	if r == nil || r.rdb == nil || sess.ID == "" {
		return nil
	}
	ttl := sess.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	return r.rdb.Set(ctx, r.key(sess.ID), sess.HouseholdID, ttl).Err()
}

// IsRevoked reports whether the session id has been revoked.
func (r *SessionRepo) IsRevoked(ctx context.Context, id string) (bool, error) {
	if r == nil || r.rdb == nil || id == "" {
		return false, nil
	}
	n, err := r.rdb.Exists(ctx, r.key(id)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
