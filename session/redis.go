package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/veldtec/accountauth/cookie"
)

// ErrRedisUnavailable wraps Redis transport failures surfaced by the store.
var ErrRedisUnavailable = errors.New("session redis unavailable")

const (
	defaultPrefix   = "sess"
	defaultLifetime = 24 * time.Hour
	sessionIDBytes  = 16
)

// Config carries Redis session store settings.
type Config struct {
	// Prefix namespaces session keys in Redis. Defaults to "sess".
	Prefix string

	// CookieName is the cookie carrying the opaque session id.
	CookieName string

	// Lifetime bounds the server-side TTL of a session. Defaults to 24h.
	Lifetime time.Duration
}

// Redis is a Store backed by a shared Redis instance, with the session id
// carried in a cookie. One value per request; not safe for concurrent use.
type Redis struct {
	ctx    context.Context
	client *redis.Client
	jar    cookie.Jar
	cfg    Config

	id      string
	values  map[string]string
	started bool
}

// NewRedis returns a request-scoped session store. The context bounds all
// Redis calls made by the store for this request.
func NewRedis(ctx context.Context, client *redis.Client, jar cookie.Jar, cfg Config) *Redis {
	if cfg.Prefix == "" {
		cfg.Prefix = defaultPrefix
	}
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = defaultLifetime
	}

	return &Redis{
		ctx:    ctx,
		client: client,
		jar:    jar,
		cfg:    cfg,
	}
}

func (s *Redis) key() string {
	return s.cfg.Prefix + ":" + s.id
}

func newSessionID() (string, error) {
	raw := make([]byte, sessionIDBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Start describes the start operation and its observable behavior.
func (s *Redis) Start() error {
	if s.started {
		return nil
	}

	if id, ok := s.jar.Get(s.cfg.CookieName); ok && id != "" {
		s.id = id
		stored, err := s.client.HGetAll(s.ctx, s.key()).Result()
		if err != nil {
			return errors.Join(ErrRedisUnavailable, err)
		}
		s.values = stored
	} else {
		id, err := newSessionID()
		if err != nil {
			return err
		}
		s.id = id
		s.values = make(map[string]string)
		if err := s.jar.Set(s.cfg.CookieName, s.id, time.Time{}); err != nil {
			return err
		}
	}

	if s.values == nil {
		s.values = make(map[string]string)
	}
	s.started = true
	return nil
}

// Clear describes the clear operation and its observable behavior.
func (s *Redis) Clear() {
	if !s.started {
		return
	}
	s.values = make(map[string]string)
}

// Set describes the set operation and its observable behavior.
func (s *Redis) Set(key, value string) {
	if !s.started {
		return
	}
	s.values[key] = value
}

// Get describes the get operation and its observable behavior.
func (s *Redis) Get(key string) (string, bool) {
	if !s.started {
		return "", false
	}
	value, ok := s.values[key]
	return value, ok
}

// Has describes the has operation and its observable behavior.
func (s *Redis) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Remove describes the remove operation and its observable behavior.
func (s *Redis) Remove(key string) {
	if !s.started {
		return
	}
	delete(s.values, key)
}

// RenewID deletes the server-side state under the old id, assigns a fresh
// id, and rewrites the session cookie. Buffered values survive the renewal
// and are persisted under the new id on Close.
func (s *Redis) RenewID() error {
	if !s.started {
		return errors.New("session not started")
	}

	if err := s.client.Del(s.ctx, s.key()).Err(); err != nil {
		return errors.Join(ErrRedisUnavailable, err)
	}

	id, err := newSessionID()
	if err != nil {
		return err
	}
	s.id = id
	return s.jar.Set(s.cfg.CookieName, s.id, time.Time{})
}

// Close replaces the server-side state with the buffered values and
// releases the session handle.
func (s *Redis) Close() error {
	if !s.started {
		return nil
	}

	pipe := s.client.TxPipeline()
	pipe.Del(s.ctx, s.key())
	if len(s.values) > 0 {
		pipe.HSet(s.ctx, s.key(), s.values)
		pipe.Expire(s.ctx, s.key(), s.cfg.Lifetime)
	}
	if _, err := pipe.Exec(s.ctx); err != nil {
		return errors.Join(ErrRedisUnavailable, err)
	}

	s.started = false
	s.values = nil
	return nil
}

// Destroy deletes the server-side state and the session cookie. Safe to
// call on a store that was never started; it then targets the id from the
// inbound cookie, if any.
func (s *Redis) Destroy() error {
	if !s.started {
		if id, ok := s.jar.Get(s.cfg.CookieName); ok && id != "" {
			s.id = id
		}
	}

	var delErr error
	if s.id != "" {
		if err := s.client.Del(s.ctx, s.key()).Err(); err != nil {
			delErr = errors.Join(ErrRedisUnavailable, err)
		}
	}

	s.jar.Delete(s.cfg.CookieName)
	s.started = false
	s.values = nil
	s.id = ""
	return delErr
}
