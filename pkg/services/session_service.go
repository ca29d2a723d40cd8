package services

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"bulkedit-admin/pkg/models"

	"github.com/google/uuid"
)

// SessionStore は管理画面セッションの読み書き境界です。
// Get と Update はコピーを返すため、呼び出し側が返り値を書き換えても保存内容は変わりません。
type SessionStore interface {
	Create(storeID string) (*models.Session, error)
	Get(id string) (*models.Session, error)
	// Update は fn がエラーを返した場合、変更を破棄します。
	Update(id string, fn func(*models.Session) error) (*models.Session, error)
	Delete(id string) error
	Close() error
}

func newSession(storeID string, now time.Time, ttl time.Duration) *models.Session {
	return &models.Session{
		ID:         uuid.New().String(),
		StoreID:    strings.TrimSpace(storeID),
		SyncStatus: models.SyncStatusSyncing,
		Messages:   make([]models.ChatMessage, 0),
		CreatedAt:  now,
		UpdatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}
}

// NewSessionStore は path が空ならメモリ、指定があればSQLiteのストアを返します。
func NewSessionStore(path string, ttl time.Duration) (SessionStore, error) {
	if strings.TrimSpace(path) == "" {
		return NewMemoryStore(ttl), nil
	}
	store, err := NewSQLiteStore(path, ttl)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// MemoryStore はプロセス内で保持するセッションストアです。再起動で内容は失われます。
type MemoryStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[string]*models.Session
	now   func() time.Time
}

// NewMemoryStore は新しいMemoryStoreを生成します。
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &MemoryStore{
		ttl:   ttl,
		items: make(map[string]*models.Session),
		now:   time.Now,
	}
}

// Create は新しいセッションを登録します。
func (s *MemoryStore) Create(storeID string) (*models.Session, error) {
	sess := newSession(storeID, s.now(), s.ttl)
	s.mu.Lock()
	s.items[sess.ID] = sess
	s.mu.Unlock()
	log.Printf("🟢 [session] created id=%s store=%s", sess.ID, sess.StoreID)
	return sess.Clone(), nil
}

// Get はセッションのコピーを返します。
func (s *MemoryStore) Get(id string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.lookupLocked(id)
	if err != nil {
		return nil, err
	}
	return sess.Clone(), nil
}

// Update はロックを保持したまま fn を適用し、有効期限を延長します。
// fn の中でネットワーク呼び出しをしてはいけません。
func (s *MemoryStore) Update(id string, fn func(*models.Session) error) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.lookupLocked(id)
	if err != nil {
		return nil, err
	}
	draft := sess.Clone()
	if err := fn(draft); err != nil {
		return nil, err
	}
	now := s.now()
	draft.UpdatedAt = now
	draft.ExpiresAt = now.Add(s.ttl)
	s.items[id] = draft
	return draft.Clone(), nil
}

// Delete はセッションを削除します。存在しなくてもエラーにしません。
func (s *MemoryStore) Delete(id string) error {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

// Sweep は期限切れのセッションを削除し、削除件数を返します。
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for id, sess := range s.items {
		if now.After(sess.ExpiresAt) {
			delete(s.items, id)
			removed++
		}
	}
	return removed
}

func (s *MemoryStore) lookupLocked(id string) (*models.Session, error) {
	sess, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if s.now().After(sess.ExpiresAt) {
		delete(s.items, id)
		log.Printf("⚠️ [session] expired id=%s", id)
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}
