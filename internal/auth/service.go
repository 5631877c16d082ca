package auth

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"notesai/internal/models"
	"notesai/internal/redis"
)

const redisTokenPrefix = "notesai:token:"

var (
	ErrTokenRequired = errors.New("token required")
	ErrInvalidToken  = errors.New("invalid token")
	ErrTokenExpired  = errors.New("token expired")
)

// Service issues, validates, and revokes anonymous session tokens.
type Service struct {
	db             *sql.DB
	cache          *redis.Client
	tokenTTL       time.Duration
	cookieName     string
	headerName     string
	csrfCookieName string
	csrfHeaderName string
}

// NewService constructs an auth service with the supplied token lifetime. cache
// may be nil.
func NewService(db *sql.DB, cache *redis.Client, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &Service{
		db:             db,
		cache:          cache,
		tokenTTL:       ttl,
		cookieName:     "session_token",
		headerName:     "Authorization",
		csrfCookieName: "csrf_token",
		csrfHeaderName: "X-CSRF-Token",
	}
}

// StartSession creates a new anonymous session and returns it with its token.
func (s *Service) StartSession(ctx context.Context) (*models.Session, string, error) {
	now := time.Now().UTC()
	session := &models.Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(s.tokenTTL),
	}
	var lastErr error
	for i := 0; i < 5; i++ {
		token, err := generateToken()
		if err != nil {
			return nil, "", err
		}
		_, lastErr = s.db.ExecContext(ctx,
			`INSERT INTO sessions (id, token, created_at, expires_at) VALUES (?, ?, ?, ?)`,
			session.ID, token, session.CreatedAt, session.ExpiresAt,
		)
		if lastErr == nil {
			s.cacheToken(ctx, token, session.ID, session.ExpiresAt)
			return session, token, nil
		}
	}
	return nil, "", fmt.Errorf("could not start session: %w", lastErr)
}

// NewCSRFToken returns a random token used for CSRF protection.
func (s *Service) NewCSRFToken() (string, error) {
	return generateToken()
}

// ValidateToken verifies the token exists and has not expired, returning the session id.
func (s *Service) ValidateToken(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrTokenRequired
	}
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, redisTokenPrefix+token)
		switch {
		case err == nil:
			sessionID, expires, ok := decodeCachedToken(raw)
			if ok && time.Now().Before(expires) {
				return sessionID, nil
			}
			s.ForgetToken(ctx, token)
		case !errors.Is(err, redis.ErrCacheMiss):
			log.Printf("auth token cache lookup failed: %v", err)
		}
	}

	var (
		sessionID string
		expires   time.Time
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, expires_at FROM sessions WHERE token = ?`, token,
	).Scan(&sessionID, &expires)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrInvalidToken
		}
		return "", fmt.Errorf("lookup token: %w", err)
	}
	if time.Now().UTC().After(expires) {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
		return "", ErrTokenExpired
	}
	s.cacheToken(ctx, token, sessionID, expires)
	return sessionID, nil
}

// RevokeToken ends the session owning the token.
func (s *Service) RevokeToken(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	s.ForgetToken(ctx, token)
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// ForgetToken drops the cached lookup for token. The session row is left alone.
func (s *Service) ForgetToken(ctx context.Context, token string) {
	if s.cache == nil || token == "" {
		return
	}
	if err := s.cache.Del(ctx, redisTokenPrefix+token); err != nil {
		log.Printf("auth token cache delete failed: %v", err)
	}
}

// cacheToken stores token -> session id until the session expires.
func (s *Service) cacheToken(ctx context.Context, token, sessionID string, expires time.Time) {
	if s.cache == nil {
		return
	}
	ttl := time.Until(expires)
	if ttl <= 0 {
		return
	}
	value := sessionID + "|" + strconv.FormatInt(expires.UnixNano(), 10)
	if err := s.cache.Set(ctx, redisTokenPrefix+token, value, ttl); err != nil {
		log.Printf("auth token cache store failed: %v", err)
	}
}

func decodeCachedToken(raw []byte) (string, time.Time, bool) {
	sessionID, nanos, found := strings.Cut(string(raw), "|")
	if !found || sessionID == "" {
		return "", time.Time{}, false
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return "", time.Time{}, false
	}
	return sessionID, time.Unix(0, n), true
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// SessionCookieName returns the cookie name storing session tokens.
func (s *Service) SessionCookieName() string {
	return s.cookieName
}

// CSRFCookieName returns the cookie used for CSRF tokens.
func (s *Service) CSRFCookieName() string {
	return s.csrfCookieName
}

// CSRFHeaderName returns the CSRF header name.
func (s *Service) CSRFHeaderName() string {
	return s.csrfHeaderName
}

// TokenTTL reports the configured token lifetime.
func (s *Service) TokenTTL() time.Duration {
	return s.tokenTTL
}
