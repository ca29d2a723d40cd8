package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"bulkedit-admin/pkg/backend"
	"bulkedit-admin/pkg/models"

	"golang.org/x/sync/errgroup"
)

const (
	syncProgressStep = 15
	syncProgressCap  = 90
	syncTimeout      = 30 * time.Second
)

// CatalogService はストアのステータス確認・同期の起動・商品キャッシュを扱います。
type CatalogService struct {
	store      SessionStore
	client     *backend.Client
	batchLimit int
}

// NewCatalogService は新しいCatalogServiceを生成します。
func NewCatalogService(store SessionStore, client *backend.Client, batchLimit int) *CatalogService {
	if batchLimit <= 0 {
		batchLimit = 50
	}
	return &CatalogService{store: store, client: client, batchLimit: batchLimit}
}

// RefreshStatus はバックエンドにステータスを問い合わせます。
// カタログが空なら同期未完了とみなし、同期リクエストを投げっぱなしで送って進捗を進めます。
func (s *CatalogService) RefreshStatus(ctx context.Context, sessionID string) (*models.Session, error) {
	sess, err := s.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.HasStore() {
		return nil, ErrNoStore
	}

	storeID := sess.StoreID
	status, err := s.client.Status(ctx, storeID)
	if err != nil {
		log.Printf("❌ [catalog] status store=%s: %v", storeID, err)
		if _, uerr := s.store.Update(sessionID, func(sess *models.Session) error {
			if sess.StoreID != storeID {
				return ErrStoreChanged
			}
			sess.LastError = err.Error()
			return nil
		}); uerr != nil && !errors.Is(uerr, ErrStoreChanged) {
			log.Printf("⚠️ [catalog] failed to record status error: %v", uerr)
		}
		return nil, err
	}

	syncing := status.TotalProducts == 0
	if syncing {
		s.triggerSync(ctx, storeID)
	}

	return s.store.Update(sessionID, func(sess *models.Session) error {
		if sess.StoreID != storeID {
			return ErrStoreChanged
		}
		sess.StoreName = status.StoreName
		sess.TotalProducts = status.TotalProducts
		sess.TotalCategories = status.TotalCategories
		sess.LastError = status.LastError
		if syncing {
			sess.SyncStatus = models.SyncStatusSyncing
			sess.SyncProgress = nextProgress(sess.SyncProgress)
		} else {
			sess.SyncStatus = models.SyncStatusOnline
			sess.SyncProgress = 100
		}
		return nil
	})
}

func nextProgress(current int) int {
	if current >= 100 {
		current = 0
	}
	next := current + syncProgressStep
	if next > syncProgressCap {
		next = syncProgressCap
	}
	return next
}

// triggerSync は結果を待たずに同期を依頼します。リクエスト元のキャンセルには追従しません。
func (s *CatalogService) triggerSync(ctx context.Context, storeID string) {
	syncCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), syncTimeout)
	go func() {
		defer cancel()
		if err := s.client.TriggerSync(syncCtx, storeID); err != nil {
			log.Printf("⚠️ [catalog] sync trigger store=%s: %v", storeID, err)
			return
		}
		log.Printf("🔄 [catalog] sync requested store=%s", storeID)
	}()
}

// LoadProducts は商品を最大 batchLimit 件取得してセッションに保持します。
// 取得済みで force も検索語も無い場合はネットワークに出ません。
// アクセストークンがあればトークン認証の一覧、無ければストアID指定の一覧を使います。
func (s *CatalogService) LoadProducts(ctx context.Context, sessionID, search string, force bool) (*models.Session, error) {
	sess, err := s.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.HasStore() && sess.AccessToken == "" {
		return nil, ErrNoStore
	}
	search = strings.TrimSpace(search)
	if sess.ProductsLoaded && !force && search == "" {
		return sess, nil
	}

	var products []models.Product
	if sess.AccessToken != "" {
		products, err = s.client.ListProductsWithToken(ctx, sess.AccessToken, s.batchLimit, search)
	} else {
		products, err = s.client.ListProducts(ctx, sess.StoreID, s.batchLimit, search)
	}
	if err != nil {
		log.Printf("❌ [catalog] products store=%s: %v", sess.StoreID, err)
		return nil, err
	}
	if products == nil {
		products = []models.Product{}
	}

	storeID, token := sess.StoreID, sess.AccessToken
	log.Printf("📦 [catalog] %d products loaded store=%s", len(products), storeID)
	return s.store.Update(sessionID, func(sess *models.Session) error {
		// 取得中にストアが切り替わった場合は新しいストアのキャッシュを汚さない
		if sess.StoreID != storeID || sess.AccessToken != token {
			return ErrStoreChanged
		}
		sess.Products = products
		sess.ProductsLoaded = true
		// 一覧が変わったのでフィルター結果を再計算する
		if sess.Filter != nil {
			sess.Filtered = FilterProducts(products, sess.Filter.Field, sess.Filter.Operator, sess.Filter.Value)
		}
		return nil
	})
}

// ApplyFilter は最後に取得した商品一覧からフィルター結果を計算し直して保存します。
func (s *CatalogService) ApplyFilter(sessionID string, filter models.FilterState) (*models.Session, error) {
	filter.Field = strings.TrimSpace(filter.Field)
	filter.Operator = strings.TrimSpace(filter.Operator)
	return s.store.Update(sessionID, func(sess *models.Session) error {
		f := filter
		sess.Filter = &f
		sess.Filtered = FilterProducts(sess.Products, filter.Field, filter.Operator, filter.Value)
		return nil
	})
}

// ClearFilter はフィルター状態を消去します。
func (s *CatalogService) ClearFilter(sessionID string) (*models.Session, error) {
	return s.store.Update(sessionID, func(sess *models.Session) error {
		sess.Filter = nil
		sess.Filtered = nil
		return nil
	})
}

// VisibleProducts はフィルター適用中ならその結果、そうでなければ全件を返します。
func VisibleProducts(sess *models.Session) []models.Product {
	if sess.Filter != nil {
		return sess.Filtered
	}
	return sess.Products
}

// Dashboard はステータス確認と商品取得を並行に実行します。片方の失敗はもう片方を止めません。
func (s *CatalogService) Dashboard(ctx context.Context, sessionID string) (*models.Session, []error) {
	var statusErr, productsErr error
	var g errgroup.Group
	g.Go(func() error {
		_, statusErr = s.RefreshStatus(ctx, sessionID)
		return nil
	})
	g.Go(func() error {
		_, productsErr = s.LoadProducts(ctx, sessionID, "", false)
		return nil
	})
	_ = g.Wait()

	var errs []error
	for _, err := range []error{statusErr, productsErr} {
		if err != nil {
			errs = append(errs, err)
		}
	}

	sess, err := s.store.Get(sessionID)
	if err != nil {
		return nil, append(errs, fmt.Errorf("reload session: %w", err))
	}
	return sess, errs
}
