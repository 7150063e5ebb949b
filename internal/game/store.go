package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionStore persists sessions.
type SessionStore interface {
	Load(ctx context.Context, userID string) (Session, error)
	Save(ctx context.Context, userID string, s Session) error
}

// RedisStore keeps one JSON session per user.
type RedisStore struct {
	R *redis.Client
	// TTL bounds how long an idle session is remembered.
	TTL time.Duration
}

func sessionKey(userID string) string {
	return "game:session:" + userID
}

func (s RedisStore) Load(ctx context.Context, userID string) (Session, error) {
	if s.R == nil {
		return Session{}, errors.New("game: redis client not configured")
	}
	data, err := s.R.Get(ctx, sessionKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{State: Idle}, nil
		}
		return Session{}, fmt.Errorf("game: load session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return Session{State: Idle}, nil
	}
	return sess, nil
}

func (s RedisStore) Save(ctx context.Context, userID string, sess Session) error {
	if s.R == nil {
		return errors.New("game: redis client not configured")
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("game: encode session: %w", err)
	}
	ttl := s.TTL
	if until := time.Until(sess.LockedUntil); until > ttl {
		ttl = until
	}
	if err := s.R.Set(ctx, sessionKey(userID), data, ttl).Err(); err != nil {
		return fmt.Errorf("game: save session: %w", err)
	}
	return nil
}
