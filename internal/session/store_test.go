package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notesai/internal/models"
	"notesai/internal/redis"
)

func newRedisStore(t *testing.T, sealer *Sealer) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := redis.NewRedisClientAddr(mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, time.Hour, sealer), mr
}

func testSealer(t *testing.T) *Sealer {
	t.Helper()
	s, err := NewSealer([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	return s
}

// storeContract runs the behaviour every Store must share.
func storeContract(t *testing.T, store Store) {
	ctx := context.Background()

	ws, err := store.Get(ctx, "unknown")
	require.NoError(t, err)
	require.NotNil(t, ws)
	assert.Equal(t, "unknown", ws.SessionID)
	assert.Equal(t, "", ws.Text)

	_, err = store.Get(ctx, "")
	assert.ErrorIs(t, err, ErrEmptySessionID)

	updated, err := store.Update(ctx, "a", func(ws *models.Workspace) error {
		ws.Text = "The sky is blue."
		ws.Revision++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.Revision)
	assert.False(t, updated.UpdatedAt.IsZero())

	// sessions are isolated
	other, err := store.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "", other.Text)

	boom := errors.New("boom")
	_, err = store.Update(ctx, "a", func(ws *models.Workspace) error {
		ws.Text = "discarded"
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "The sky is blue.", got.Text)

	require.NoError(t, store.Delete(ctx, "a"))
	got, err = store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "", got.Text)
	assert.Equal(t, int64(0), got.Revision)
}

func TestMemoryStoreContract(t *testing.T) {
	storeContract(t, NewMemoryStore(time.Hour))
}

func TestRedisStoreContract(t *testing.T) {
	store, _ := newRedisStore(t, nil)
	storeContract(t, store)
}

func TestSealedRedisStoreContract(t *testing.T) {
	store, _ := newRedisStore(t, testSealer(t))
	storeContract(t, store)
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := store.Update(ctx, "a", func(ws *models.Workspace) error {
		ws.Text = "note"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())

	now = now.Add(2 * time.Minute)
	ws, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "", ws.Text)
	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStoreConcurrentUpdates(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Update(ctx, "a", func(ws *models.Workspace) error {
				ws.Revision++
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	ws, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(50), ws.Revision)
}

func TestRedisStoreTTLAndSealing(t *testing.T) {
	store, mr := newRedisStore(t, testSealer(t))
	ctx := context.Background()

	_, err := store.Update(ctx, "s1", func(ws *models.Workspace) error {
		ws.Text = "secret lecture notes"
		return nil
	})
	require.NoError(t, err)

	raw, err := mr.Get(workspaceKey("s1"))
	require.NoError(t, err)
	assert.NotContains(t, raw, "secret lecture notes")
	assert.Equal(t, time.Hour, mr.TTL(workspaceKey("s1")))

	// a store with a different key cannot read the payload
	other, err := NewSealer([]byte("fedcba9876543210fedcba9876543210"))
	require.NoError(t, err)
	store.sealer = other
	_, err = store.Get(ctx, "s1")
	assert.Error(t, err)

	mr.FastForward(2 * time.Hour)
	store.sealer = nil
	ws, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "", ws.Text)
}

func TestRedisStoreConflictingWriterIsRetried(t *testing.T) {
	store, mr := newRedisStore(t, nil)
	ctx := context.Background()

	_, err := store.Update(ctx, "s1", func(ws *models.Workspace) error {
		ws.Revision = 1
		return nil
	})
	require.NoError(t, err)

	attempts := 0
	ws, err := store.Update(ctx, "s1", func(ws *models.Workspace) error {
		attempts++
		if attempts == 1 {
			mr.Set(workspaceKey("s1"), `{"session_id":"s1","text":"newer","revision":2}`)
		}
		ws.Summary = "sum"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, "newer", ws.Text)
	assert.Equal(t, int64(2), ws.Revision)
	assert.Equal(t, "sum", ws.Summary)
}

func TestNewSealerFromEnv(t *testing.T) {
	t.Setenv(SessionKeyEnv, "")
	s, err := NewSealerFromEnv()
	require.NoError(t, err)
	assert.Nil(t, s)

	t.Setenv(SessionKeyEnv, "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY=")
	s, err = NewSealerFromEnv()
	require.NoError(t, err)
	require.NotNil(t, s)

	sealed, err := s.Seal([]byte("hello"))
	require.NoError(t, err)
	plain, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(plain))

	t.Setenv(SessionKeyEnv, "too-short")
	_, err = NewSealerFromEnv()
	assert.Error(t, err)
}
