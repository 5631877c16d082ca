package notes

import (
	"context"
	"log"
	"time"
)

const DefaultSessionCleanupInterval = 10 * time.Minute

// StartSessionCleaner periodically removes expired sessions until ctx is done.
func (s *Service) StartSessionCleaner(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSessionCleanupInterval
	}
	go s.cleanupLoop(ctx, interval)
}

func (s *Service) cleanupLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.cleanupExpiredSessions(ctx); err != nil {
				log.Printf("cleanup sessions error: %v", err)
			} else if n > 0 {
				debugLog("cleaned %d expired sessions", n)
			}
		}
	}
}

// cleanupExpiredSessions drops the workspace and the session row (ledger rows
// cascade) of every session past its expiry, then reports its token.
func (s *Service) cleanupExpiredSessions(ctx context.Context) (int, error) {
	if s.db == nil {
		return 0, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, token FROM sessions WHERE expires_at <= ?`, s.now().UTC())
	if err != nil {
		return 0, err
	}
	type expiredSession struct{ id, token string }
	var expired []expiredSession
	for rows.Next() {
		var e expiredSession
		if err := rows.Scan(&e.id, &e.token); err != nil {
			rows.Close()
			return 0, err
		}
		expired = append(expired, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	removed := 0
	for _, e := range expired {
		if err := s.store.Delete(ctx, e.id); err != nil {
			log.Printf("drop workspace %s failed: %v", e.id, err)
			continue
		}
		if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, e.id); err != nil {
			log.Printf("delete session %s failed: %v", e.id, err)
			continue
		}
		if s.expired != nil {
			s.expired(ctx, e.token)
		}
		removed++
	}
	return removed, nil
}
