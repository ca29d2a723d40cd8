package services

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"bulkedit-admin/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 両方の実装に同じ振る舞いを要求する
func storesUnderTest(t *testing.T) map[string]SessionStore {
	t.Helper()
	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"), time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })
	return map[string]SessionStore{
		"memory": NewMemoryStore(time.Hour),
		"sqlite": sqlite,
	}
}

func TestSessionStoreLifecycle(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			sess, err := store.Create(" 123 ")
			require.NoError(t, err)
			assert.NotEmpty(t, sess.ID)
			assert.Equal(t, "123", sess.StoreID)
			assert.Equal(t, models.SyncStatusSyncing, sess.SyncStatus)

			updated, err := store.Update(sess.ID, func(s *models.Session) error {
				s.Messages = append(s.Messages, models.ChatMessage{ID: "m1", Role: models.RoleUser, Text: "oi"})
				s.RevertProcessing = map[string]bool{"7": true}
				return nil
			})
			require.NoError(t, err)
			assert.Len(t, updated.Messages, 1)

			got, err := store.Get(sess.ID)
			require.NoError(t, err)
			assert.Equal(t, "oi", got.Messages[0].Text)
			assert.True(t, got.RevertProcessing["7"])

			require.NoError(t, store.Delete(sess.ID))
			_, err = store.Get(sess.ID)
			assert.True(t, errors.Is(err, ErrSessionNotFound))
		})
	}
}

func TestSessionStoreUpdateErrorDiscardsChanges(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			sess, err := store.Create("1")
			require.NoError(t, err)

			boom := errors.New("boom")
			_, err = store.Update(sess.ID, func(s *models.Session) error {
				s.StoreID = "changed"
				return boom
			})
			assert.ErrorIs(t, err, boom)

			got, err := store.Get(sess.ID)
			require.NoError(t, err)
			assert.Equal(t, "1", got.StoreID)
		})
	}
}

func TestSessionStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	sess, err := store.Create("1")
	require.NoError(t, err)

	_, err = store.Update(sess.ID, func(s *models.Session) error {
		s.Products = []models.Product{{ID: "p1"}}
		return nil
	})
	require.NoError(t, err)

	got, err := store.Get(sess.ID)
	require.NoError(t, err)
	got.Products[0].ID = "mutated"

	again, err := store.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FlexID("p1"), again.Products[0].ID)
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	sess, err := store.Create("1")
	require.NoError(t, err)
	other, err := store.Create("2")
	require.NoError(t, err)

	now = now.Add(30 * time.Second)
	_, err = store.Update(sess.ID, func(*models.Session) error { return nil })
	require.NoError(t, err, "更新で有効期限が延長される")

	now = now.Add(45 * time.Second)
	_, err = store.Get(sess.ID)
	assert.NoError(t, err)

	assert.Equal(t, 1, store.Sweep(), "更新されていないセッションだけが期限切れ")
	_, err = store.Get(other.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")

	store, err := NewSQLiteStore(path, time.Hour)
	require.NoError(t, err)
	sess, err := store.Create("55")
	require.NoError(t, err)
	_, err = store.Update(sess.ID, func(s *models.Session) error {
		s.ActiveToolID = "price"
		s.ChatLoading = true
		s.RevertProcessing = map[string]bool{"7": true}
		return nil
	})
	require.NoError(t, err)

	// 同じプロセス内では送信中の印は保たれる
	inFlight, err := store.Get(sess.ID)
	require.NoError(t, err)
	assert.True(t, inFlight.ChatLoading)
	assert.True(t, inFlight.RevertProcessing["7"])
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path, time.Hour)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "55", got.StoreID)
	assert.Equal(t, "price", got.ActiveToolID)
	// 再起動前の送信・取り消しは失われているので印も残さない
	assert.False(t, got.ChatLoading)
	assert.Empty(t, got.RevertProcessing)
}

func TestSQLiteStoreExpiry(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"), time.Minute)
	require.NoError(t, err)
	defer store.Close()

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	sess, err := store.Create("1")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = store.Get(sess.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestNewSessionStoreSelectsBackend(t *testing.T) {
	mem, err := NewSessionStore("", time.Hour)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, mem)

	sq, err := NewSessionStore(filepath.Join(t.TempDir(), "s.db"), time.Hour)
	require.NoError(t, err)
	defer sq.Close()
	assert.IsType(t, &SQLiteStore{}, sq)
}
