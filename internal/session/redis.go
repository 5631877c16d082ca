package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"notesai/internal/models"
	"notesai/internal/redis"
)

const (
	workspaceKeyPrefix = "notesai:workspace:"
	maxUpdateAttempts  = 5
)

// ErrUpdateConflict is returned when Update kept losing the optimistic race.
var ErrUpdateConflict = errors.New("workspace update conflict")

// RedisStore keeps workspaces as JSON under notesai:workspace:<id>, optionally
// sealed. Each Update refreshes the key's TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	sealer *Sealer
	now    func() time.Time
}

// NewRedisStore uses sealer when non-nil.
func NewRedisStore(client *redis.Client, ttl time.Duration, sealer *Sealer) *RedisStore {
	return &RedisStore{client: client, ttl: ttl, sealer: sealer, now: time.Now}
}

func workspaceKey(sessionID string) string {
	return workspaceKeyPrefix + sessionID
}

func (s *RedisStore) Get(ctx context.Context, sessionID string) (*models.Workspace, error) {
	if sessionID == "" {
		return nil, ErrEmptySessionID
	}
	raw, err := s.client.Get(ctx, workspaceKey(sessionID))
	if errors.Is(err, redis.ErrCacheMiss) {
		return &models.Workspace{SessionID: sessionID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load workspace: %w", err)
	}
	return s.decode(sessionID, raw)
}

func (s *RedisStore) Update(ctx context.Context, sessionID string, fn func(ws *models.Workspace) error) (*models.Workspace, error) {
	if sessionID == "" {
		return nil, ErrEmptySessionID
	}
	key := workspaceKey(sessionID)
	var result *models.Workspace
	txf := func(tx *goredis.Tx) error {
		ws := &models.Workspace{SessionID: sessionID}
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.ErrCacheMiss):
		case err != nil:
			return fmt.Errorf("load workspace: %w", err)
		default:
			if ws, err = s.decode(sessionID, raw); err != nil {
				return err
			}
		}
		if err := fn(ws); err != nil {
			return err
		}
		ws.SessionID = sessionID
		ws.UpdatedAt = s.now()
		payload, err := s.encode(ws)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, payload, s.ttl)
			return nil
		})
		if err == nil {
			result = ws
		}
		return err
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := s.client.Watch(ctx, key, txf)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, redis.ErrConflict) {
			return nil, err
		}
		log.Printf("workspace %s update conflict, retry %d", sessionID, attempt+1)
	}
	return nil, ErrUpdateConflict
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, workspaceKey(sessionID)); err != nil && !errors.Is(err, redis.ErrCacheMiss) {
		return fmt.Errorf("delete workspace: %w", err)
	}
	return nil
}

func (s *RedisStore) encode(ws *models.Workspace) ([]byte, error) {
	data, err := json.Marshal(ws)
	if err != nil {
		return nil, fmt.Errorf("marshal workspace: %w", err)
	}
	if s.sealer == nil {
		return data, nil
	}
	return s.sealer.Seal(data)
}

func (s *RedisStore) decode(sessionID string, raw []byte) (*models.Workspace, error) {
	if s.sealer != nil {
		plain, err := s.sealer.Open(raw)
		if err != nil {
			return nil, fmt.Errorf("open workspace %s: %w", sessionID, err)
		}
		raw = plain
	}
	var ws models.Workspace
	if err := json.Unmarshal(raw, &ws); err != nil {
		return nil, fmt.Errorf("decode workspace %s: %w", sessionID, err)
	}
	return &ws, nil
}
