package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"bulkedit-admin/pkg/backend"
	"bulkedit-admin/pkg/models"
)

// HistoryView は画面に出す履歴エントリです。
type HistoryView struct {
	models.HistoryEntry
	Revertable bool `json:"revertable"`
	Processing bool `json:"processing"`
}

// HistoryService は実行済みアクションの一覧と取り消しを扱います。取り消しの処理自体はバックエンドが行います。
type HistoryService struct {
	store        SessionStore
	client       *backend.Client
	refreshDelay time.Duration
	// afterFunc はテストで差し替えます
	afterFunc func(time.Duration, func())
}

// NewHistoryService は新しいHistoryServiceを生成します。
func NewHistoryService(store SessionStore, client *backend.Client, refreshDelay time.Duration) *HistoryService {
	return &HistoryService{
		store:        store,
		client:       client,
		refreshDelay: refreshDelay,
		afterFunc: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
}

// Views は履歴を表示用に変換します。取り消しボタンは成功ステータスのエントリにのみ付きます。
func Views(sess *models.Session) []HistoryView {
	views := make([]HistoryView, 0, len(sess.History))
	for _, h := range sess.History {
		views = append(views, HistoryView{
			HistoryEntry: h,
			Revertable:   h.Revertable(),
			Processing:   sess.RevertProcessing[string(h.ID)],
		})
	}
	return views
}

// List はバックエンドから履歴を取得してセッションに保存します。
func (s *HistoryService) List(ctx context.Context, sessionID string) (*models.Session, error) {
	sess, err := s.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.HasStore() {
		return nil, ErrNoStore
	}

	storeID := sess.StoreID
	entries, err := s.client.History(ctx, storeID)
	if err != nil {
		log.Printf("❌ [history] store=%s: %v", storeID, err)
		return nil, err
	}
	if entries == nil {
		entries = []models.HistoryEntry{}
	}

	return s.store.Update(sessionID, func(sess *models.Session) error {
		if sess.StoreID != storeID {
			return ErrStoreChanged
		}
		sess.History = entries
		return nil
	})
}

// Revert は確認済みのエントリの取り消しを依頼します。対象エントリだけを処理中にし、
// 一定時間後に一覧を取り直してバックエンド側のステータス変化を反映します。
// ステータスを先回りして書き換えることはしません。
func (s *HistoryService) Revert(ctx context.Context, sessionID, entryID string, confirmed bool) (*models.Session, error) {
	if !confirmed {
		return nil, ErrNotConfirmed
	}

	var storeID string
	sess, err := s.store.Update(sessionID, func(sess *models.Session) error {
		if !sess.HasStore() {
			return ErrNoStore
		}
		entry, ok := findEntry(sess.History, entryID)
		if !ok || !entry.Revertable() {
			return fmt.Errorf("%w: %s", ErrNotRevertable, entryID)
		}
		if sess.RevertProcessing[entryID] {
			return ErrRevertInFlight
		}
		if sess.RevertProcessing == nil {
			sess.RevertProcessing = make(map[string]bool)
		}
		sess.RevertProcessing[entryID] = true
		storeID = sess.StoreID
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.client.Revert(detached(ctx), entryID); err != nil {
		log.Printf("❌ [history] revert id=%s store=%s: %v", entryID, storeID, err)
		if _, uerr := s.store.Update(sessionID, func(sess *models.Session) error {
			delete(sess.RevertProcessing, entryID)
			return nil
		}); uerr != nil {
			log.Printf("⚠️ [history] failed to clear processing id=%s: %v", entryID, uerr)
		}
		return nil, err
	}
	log.Printf("↩️ [history] revert requested id=%s store=%s", entryID, storeID)

	s.afterFunc(s.refreshDelay, func() {
		s.refreshAfterRevert(sessionID, entryID)
	})
	return sess, nil
}

func (s *HistoryService) refreshAfterRevert(sessionID, entryID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := s.List(ctx, sessionID); err != nil {
		log.Printf("⚠️ [history] refresh after revert id=%s: %v", entryID, err)
	}
	if _, err := s.store.Update(sessionID, func(sess *models.Session) error {
		delete(sess.RevertProcessing, entryID)
		return nil
	}); err != nil {
		log.Printf("⚠️ [history] failed to clear processing id=%s: %v", entryID, err)
	}
}

func findEntry(entries []models.HistoryEntry, id string) (models.HistoryEntry, bool) {
	for _, e := range entries {
		if string(e.ID) == id {
			return e, true
		}
	}
	return models.HistoryEntry{}, false
}
