package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// SessionTTL is the lifetime of a normal session.
	SessionTTL = 24 * time.Hour
	// RememberTTL is the lifetime of a "remember me" session.
	RememberTTL = 30 * 24 * time.Hour

	SessionCookie = "session_id"
)

// SessionStore wraps Redis for session and flash-message management.
// A session maps sessionID -> userID; the userID is empty for anonymous
// sessions, which exist only to carry flash messages across a redirect.
type SessionStore struct {
	rdb *redis.Client
}

func NewSessionStore(rdb *redis.Client) *SessionStore {
	return &SessionStore{rdb: rdb}
}

// Create stores a new session for userID (empty for anonymous) and returns
// its ID.
func (s *SessionStore) Create(ctx context.Context, userID string, remember bool) (string, error) {
	sid := uuid.New().String()
	err := s.rdb.Set(ctx, "session:"+sid, userID, ttl(remember)).Err()
	return sid, err
}

// Get returns the userID bound to a session, or "" if the session is
// anonymous, missing, or expired.
func (s *SessionStore) Get(ctx context.Context, sessionID string) (string, error) {
	val, err := s.rdb.Get(ctx, "session:"+sessionID).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}

// Delete removes a session and its pending flashes.
func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	return s.rdb.Del(ctx, "session:"+sessionID, "flash:"+sessionID).Err()
}

// AddFlash queues a one-shot message for the session.
func (s *SessionStore) AddFlash(ctx context.Context, sessionID, message string) error {
	key := "flash:" + sessionID
	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, key, message)
	pipe.Expire(ctx, key, SessionTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// PopFlashes returns and clears all pending flash messages for the session.
func (s *SessionStore) PopFlashes(ctx context.Context, sessionID string) ([]string, error) {
	key := "flash:" + sessionID
	pipe := s.rdb.TxPipeline()
	rng := pipe.LRange(ctx, key, 0, -1)
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}
	return rng.Val(), nil
}

func ttl(remember bool) time.Duration {
	if remember {
		return RememberTTL
	}
	return SessionTTL
}

// SetSessionCookie installs the session cookie on the response.
func SetSessionCookie(w http.ResponseWriter, sid string, remember bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sid,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(ttl(remember) / time.Second),
	})
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}
