package services

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"bulkedit-admin/pkg/models"

	_ "modernc.org/sqlite"
)

// SQLiteStore はセッションをSQLiteに保存し、再起動後も画面状態を復元します。
// 1セッション = 1行のJSONで、読み込み(Get)と保存(Update)が唯一の境界です。
type SQLiteStore struct {
	db  *sql.DB
	mu  sync.Mutex
	ttl time.Duration
	now func() time.Time
}

// NewSQLiteStore はデータベースを開き、スキーマを初期化します。
func NewSQLiteStore(path string, ttl time.Duration) (*SQLiteStore, error) {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// modernc sqlite は同時書き込みに弱いため接続を1本に絞る
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db, ttl: ttl, now: time.Now}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := store.resetInFlight(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reset in-flight state: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS panel_sessions (
		id TEXT PRIMARY KEY,
		store_id TEXT NOT NULL,
		data TEXT NOT NULL,
		expires_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_panel_sessions_expires ON panel_sessions(expires_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// resetInFlight は前回のプロセスで送信中・取り消し中だった印を消します。
// それらのリクエストは再起動で失われており、印が残るとチャットや取り消しが二度と使えなくなります。
func (s *SQLiteStore) resetInFlight() error {
	rows, err := s.db.Query(`SELECT data FROM panel_sessions`)
	if err != nil {
		return err
	}
	var stale []*models.Session
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			rows.Close()
			return err
		}
		var sess models.Session
		if err := json.Unmarshal([]byte(data), &sess); err != nil {
			log.Printf("⚠️ [session] skip unreadable session row: %v", err)
			continue
		}
		if sess.ChatLoading || len(sess.RevertProcessing) > 0 {
			stale = append(stale, &sess)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, sess := range stale {
		sess.ChatLoading = false
		sess.RevertProcessing = nil
		if err := s.save(sess); err != nil {
			return err
		}
	}
	if len(stale) > 0 {
		log.Printf("🧹 [session] cleared in-flight flags on %d sessions", len(stale))
	}
	return nil
}

// Create は新しいセッションを保存します。
func (s *SQLiteStore) Create(storeID string) (*models.Session, error) {
	sess := newSession(storeID, s.now(), s.ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.save(sess); err != nil {
		return nil, err
	}
	log.Printf("🟢 [session] created id=%s store=%s (sqlite)", sess.ID, sess.StoreID)
	return sess, nil
}

// Get はセッションを読み込みます。
func (s *SQLiteStore) Get(id string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(id)
}

// Update はセッションを読み込み、fn を適用して保存します。
func (s *SQLiteStore) Update(id string, fn func(*models.Session) error) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if err := fn(sess); err != nil {
		return nil, err
	}
	now := s.now()
	sess.UpdatedAt = now
	sess.ExpiresAt = now.Add(s.ttl)
	if err := s.save(sess); err != nil {
		return nil, err
	}
	return sess.Clone(), nil
}

// Delete はセッションを削除します。
func (s *SQLiteStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec(`DELETE FROM panel_sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Sweep は期限切れのセッションを削除します。
func (s *SQLiteStore) Sweep() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(`DELETE FROM panel_sessions WHERE expires_at < ?`, s.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep sessions: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) load(id string) (*models.Session, error) {
	var data string
	var expiresAt int64
	err := s.db.QueryRow(`SELECT data, expires_at FROM panel_sessions WHERE id = ?`, id).Scan(&data, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if s.now().Unix() > expiresAt {
		if _, err := s.db.Exec(`DELETE FROM panel_sessions WHERE id = ?`, id); err != nil {
			log.Printf("⚠️ [session] failed to delete expired session %s: %v", id, err)
		}
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	var sess models.Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	if sess.Messages == nil {
		sess.Messages = make([]models.ChatMessage, 0)
	}
	return &sess, nil
}

func (s *SQLiteStore) save(sess *models.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO panel_sessions (id, store_id, data, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			store_id = excluded.store_id,
			data = excluded.data,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`,
		sess.ID, sess.StoreID, string(data), sess.ExpiresAt.Unix(), sess.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}
