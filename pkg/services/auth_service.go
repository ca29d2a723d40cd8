package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"bulkedit-admin/pkg/backend"
	"bulkedit-admin/pkg/models"
)

// LoginError はログイン失敗時に画面へ出すメッセージを持ちます。
type LoginError struct {
	Message string
	Err     error
}

func (e *LoginError) Error() string {
	return fmt.Sprintf("login failed: %s", e.Message)
}

func (e *LoginError) Unwrap() error {
	return e.Err
}

// AuthService はバックエンドが発行する認証情報をセッションに結び付けます。
// 認証そのものはバックエンドの責務で、ここでは結果を保持するだけです。
type AuthService struct {
	store  SessionStore
	client *backend.Client
}

// NewAuthService は新しいAuthServiceを生成します。
func NewAuthService(store SessionStore, client *backend.Client) *AuthService {
	return &AuthService{store: store, client: client}
}

// Login はストアIDとパスワードでバックエンドにログインし、トークンとストアIDをセッションに保存します。
// 失敗時はバックエンドの detail をそのまま、無ければ固定の文言を LoginError で返します。
func (s *AuthService) Login(ctx context.Context, sessionID, storeID, password string) (*models.Session, error) {
	storeID = strings.TrimSpace(storeID)
	if storeID == "" || password == "" {
		return nil, &LoginError{Message: MsgLoginFailure, Err: ErrNoStore}
	}

	resp, err := s.client.Login(ctx, storeID, password)
	if err != nil {
		log.Printf("❌ [auth] login store=%s: %v", storeID, err)
		msg := MsgLoginFailure
		if detail := backend.DetailOf(err); detail != "" {
			msg = detail
		}
		return nil, &LoginError{Message: msg, Err: err}
	}

	log.Printf("🔑 [auth] login ok store=%s", resp.StoreID)
	return s.store.Update(sessionID, func(sess *models.Session) error {
		if sess.StoreID != resp.StoreID {
			resetStoreState(sess)
		}
		sess.StoreID = resp.StoreID
		sess.AccessToken = resp.AccessToken
		return nil
	})
}

// OAuthURL はバックエンドが返すOAuth開始URLを返します。
func (s *AuthService) OAuthURL(ctx context.Context) (string, error) {
	u, err := s.client.OAuthURL(ctx)
	if err != nil {
		log.Printf("❌ [auth] oauth url: %v", err)
		return "", err
	}
	return u, nil
}

// BindStore はクエリで渡されたストアIDをセッションに結び付けます。別のストアに切り替わる場合は
// キャッシュやトランスクリプトを捨てます。
func (s *AuthService) BindStore(sessionID, storeID string) (*models.Session, error) {
	storeID = strings.TrimSpace(storeID)
	return s.store.Update(sessionID, func(sess *models.Session) error {
		if storeID == "" || sess.StoreID == storeID {
			return nil
		}
		resetStoreState(sess)
		sess.StoreID = storeID
		sess.AccessToken = ""
		return nil
	})
}

// Logout はセッションを破棄します。存在しないセッションはエラーにしません。
func (s *AuthService) Logout(sessionID string) error {
	if err := s.store.Delete(sessionID); err != nil && !errors.Is(err, ErrSessionNotFound) {
		return err
	}
	return nil
}

func resetStoreState(sess *models.Session) {
	sess.StoreName = ""
	sess.TotalProducts = 0
	sess.TotalCategories = 0
	sess.LastError = ""
	sess.SyncStatus = models.SyncStatusSyncing
	sess.SyncProgress = 0
	sess.Messages = []models.ChatMessage{}
	sess.ChatLoading = false
	sess.Products = nil
	sess.ProductsLoaded = false
	sess.ActiveToolID = ""
	sess.Filter = nil
	sess.Filtered = nil
	sess.History = nil
	sess.RevertProcessing = nil
	sess.Alert = ""
}
