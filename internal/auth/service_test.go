package auth

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"

	"notesai/internal/config"
	"notesai/internal/redis"
	"notesai/internal/storage"
)

func TestAuthStartValidateRevoke(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	svc := NewService(db, nil, time.Hour)
	session, token, err := svc.StartSession(context.Background())
	if err != nil {
		t.Fatalf("StartSession error: %v", err)
	}
	if token == "" || session.ID == "" {
		t.Fatalf("expected token and session id")
	}
	sessionID, err := svc.ValidateToken(context.Background(), token)
	if err != nil || sessionID != session.ID {
		t.Fatalf("ValidateToken failed: id=%s err=%v", sessionID, err)
	}
	if err := svc.RevokeToken(context.Background(), token); err != nil {
		t.Fatalf("RevokeToken error: %v", err)
	}
	if _, err := svc.ValidateToken(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token after revoke, got %v", err)
	}
	if _, err := svc.ValidateToken(context.Background(), ""); !errors.Is(err, ErrTokenRequired) {
		t.Fatalf("expected token required, got %v", err)
	}
}

func TestAuthSessionsAreDistinct(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	svc := NewService(db, nil, time.Hour)
	a, tokenA, err := svc.StartSession(context.Background())
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	b, tokenB, err := svc.StartSession(context.Background())
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if a.ID == b.ID || tokenA == tokenB {
		t.Fatalf("sessions must not share ids or tokens")
	}
}

func TestAuthValidateExpiredToken(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	svc := NewService(db, nil, 10*time.Millisecond)
	_, token, err := svc.StartSession(context.Background())
	if err != nil {
		t.Fatalf("StartSession error: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, err := svc.ValidateToken(context.Background(), token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected expiration error, got %v", err)
	}
	// ensure session removed
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sessions WHERE token = ?`, token).Scan(&count); err != nil {
		t.Fatalf("query sessions: %v", err)
	}
	if count != 0 {
		t.Fatalf("expired session not purged")
	}
}

func TestAuthTokenCacheUsesRedis(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	mr := miniredis.RunT(t)
	cacheClient, err := redis.NewRedisClientAddr(mr.Addr())
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer cacheClient.Close()

	svc := NewService(db, cacheClient, time.Hour)
	ctx := context.Background()

	session, token, err := svc.StartSession(ctx)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	key := redisTokenPrefix + token
	got, err := mr.Get(key)
	if err != nil {
		t.Fatalf("get redis token: %v", err)
	}
	if cachedID, expires, ok := decodeCachedToken([]byte(got)); !ok || cachedID != session.ID || !expires.Equal(session.ExpiresAt) {
		t.Fatalf("expected session %s in rdb, got %s", session.ID, got)
	}
	if ttl := mr.TTL(key); ttl <= 0 || ttl > time.Hour {
		t.Fatalf("unexpected redis ttl %v", ttl)
	}

	_, _ = db.Exec(`DELETE FROM sessions WHERE token = ?`, token)
	sessionID, err := svc.ValidateToken(ctx, token)
	if err != nil || sessionID != session.ID {
		t.Fatalf("ValidateToken via rdb failed: id=%s err=%v", sessionID, err)
	}

	if err := svc.RevokeToken(ctx, token); err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}
	if mr.Exists(key) {
		t.Fatalf("expected redis key deleted")
	}
	if _, err := svc.ValidateToken(ctx, token); err == nil {
		t.Fatalf("expected error after revoke and rdb delete")
	}
}

func TestAuthTokenCacheHonoursSessionExpiry(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	mr := miniredis.RunT(t)
	cacheClient, err := redis.NewRedisClientAddr(mr.Addr())
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer cacheClient.Close()

	svc := NewService(db, cacheClient, time.Hour)
	ctx := context.Background()

	expires := time.Now().UTC().Add(50 * time.Millisecond)
	if _, err := db.Exec(`INSERT INTO sessions (id, token, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		"s1", "tok", time.Now().UTC(), expires); err != nil {
		t.Fatalf("insert session: %v", err)
	}
	if id, err := svc.ValidateToken(ctx, "tok"); err != nil || id != "s1" {
		t.Fatalf("ValidateToken before expiry: id=%s err=%v", id, err)
	}
	key := redisTokenPrefix + "tok"
	if ttl := mr.TTL(key); ttl <= 0 || ttl > 50*time.Millisecond {
		t.Fatalf("cache ttl should follow session expiry, got %v", ttl)
	}

	// miniredis does not expire keys on wall-clock time, so the stale entry is
	// still present here.
	time.Sleep(80 * time.Millisecond)
	if id, err := svc.ValidateToken(ctx, "tok"); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected expired token, got id=%q err=%v", id, err)
	}
	if mr.Exists(key) {
		t.Fatalf("expired token still cached")
	}
}

func TestAuthForgetTokenDropsCache(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	mr := miniredis.RunT(t)
	cacheClient, err := redis.NewRedisClientAddr(mr.Addr())
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer cacheClient.Close()

	svc := NewService(db, cacheClient, time.Hour)
	ctx := context.Background()
	_, token, err := svc.StartSession(ctx)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	_, _ = db.Exec(`DELETE FROM sessions WHERE token = ?`, token)
	svc.ForgetToken(ctx, token)
	if _, err := svc.ValidateToken(ctx, token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token once forgotten, got %v", err)
	}
}

func TestAuthStartSessionWrapsDatabaseError(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db, nil, time.Hour)
	db.Close()

	_, _, err := svc.StartSession(context.Background())
	if err == nil {
		t.Fatalf("expected error with closed database")
	}
	if errors.Unwrap(err) == nil {
		t.Fatalf("database error not wrapped: %v", err)
	}
}

func TestMiddlewareAndCSRF(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := openTestDB(t)
	defer db.Close()
	svc := NewService(db, nil, time.Hour)
	_, token, err := svc.StartSession(context.Background())
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	router := gin.New()
	protected := router.Group("/", svc.Middleware(), svc.CSRFMiddleware())
	protected.GET("/ping", func(c *gin.Context) {
		id, _ := SessionIDFromContext(c)
		c.String(http.StatusOK, id)
	})
	protected.POST("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	tests := []struct {
		name   string
		method string
		setup  func(r *http.Request)
		want   int
	}{
		{"no session", http.MethodGet, func(r *http.Request) {}, http.StatusUnauthorized},
		{"bad token", http.MethodGet, func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
		{"cookie get", http.MethodGet, func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: svc.SessionCookieName(), Value: token})
		}, http.StatusOK},
		{"cookie post without csrf", http.MethodPost, func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: svc.SessionCookieName(), Value: token})
		}, http.StatusForbidden},
		{"cookie post with csrf", http.MethodPost, func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: svc.SessionCookieName(), Value: token})
			r.AddCookie(&http.Cookie{Name: svc.CSRFCookieName(), Value: "c1"})
			r.Header.Set(svc.CSRFHeaderName(), "c1")
		}, http.StatusNoContent},
		{"bearer post skips csrf", http.MethodPost, func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+token)
		}, http.StatusNoContent},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/ping", nil)
			tc.setup(req)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	cfg := &config.Config{
		Databases: map[string]config.DatabaseConfig{
			"sqlite3": {
				DSN: ":memory:",
			},
		},
	}
	db, err := storage.Open("sqlite3", cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	return db
}
