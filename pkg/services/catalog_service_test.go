package services

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"bulkedit-admin/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func catalogProducts() []gin.H {
	return []gin.H{
		{"id": "1", "name": "Red Shoe", "sku": "RS-1", "price": "99.90", "stock": 4},
		{"id": "2", "name": "Blue Shoe", "sku": "BS-1", "price": "89.90", "stock": 0},
		{"id": "3", "name": "Red Hat", "sku": "RH-1", "price": "29.90", "stock": 12},
	}
}

func TestRefreshStatusOnline(t *testing.T) {
	fb := newFakeBackend(t, func(r *gin.Engine) {
		r.GET("/admin/status/:store", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"loja_nome": "Loja", "total_produtos_banco": 3, "total_categorias_banco": 1})
		})
	})
	store := NewMemoryStore(time.Hour)
	catalog := NewCatalogService(store, fb.client, 50)
	sess := newSessionFor(t, store, "123")

	updated, err := catalog.RefreshStatus(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusOnline, updated.SyncStatus)
	assert.Equal(t, 100, updated.SyncProgress)
	assert.Equal(t, "Loja", updated.StoreName)
	assert.Equal(t, 3, updated.TotalProducts)
}

func TestRefreshStatusEmptyCatalogTriggersSync(t *testing.T) {
	synced := make(chan string, 4)
	fb := newFakeBackend(t, func(r *gin.Engine) {
		r.GET("/admin/status/:store", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"loja_nome": "Loja", "total_produtos_banco": 0})
		})
		r.POST("/sync", func(c *gin.Context) {
			synced <- c.Query("store_id")
			c.Status(http.StatusAccepted)
		})
	})
	store := NewMemoryStore(time.Hour)
	catalog := NewCatalogService(store, fb.client, 50)
	sess := newSessionFor(t, store, "123")

	updated, err := catalog.RefreshStatus(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusSyncing, updated.SyncStatus)
	assert.Equal(t, syncProgressStep, updated.SyncProgress)

	select {
	case id := <-synced:
		assert.Equal(t, "123", id)
	case <-time.After(2 * time.Second):
		t.Fatal("sync was not requested")
	}
}

func TestNextProgressIsCapped(t *testing.T) {
	progress := 0
	for i := 0; i < 10; i++ {
		progress = nextProgress(progress)
		assert.LessOrEqual(t, progress, syncProgressCap)
	}
	assert.Equal(t, syncProgressCap, progress)
	assert.Equal(t, syncProgressStep, nextProgress(100))
}

func TestRefreshStatusRecordsError(t *testing.T) {
	fb := newFakeBackend(t, func(r *gin.Engine) {
		r.GET("/admin/status/:store", func(c *gin.Context) {
			c.JSON(http.StatusBadGateway, gin.H{"detail": "nuvemshop offline"})
		})
	})
	store := NewMemoryStore(time.Hour)
	catalog := NewCatalogService(store, fb.client, 50)
	sess := newSessionFor(t, store, "123")

	_, err := catalog.RefreshStatus(context.Background(), sess.ID)
	require.Error(t, err)

	got, err := store.Get(sess.ID)
	require.NoError(t, err)
	assert.Contains(t, got.LastError, "nuvemshop offline")
}

func TestRefreshStatusWithoutStore(t *testing.T) {
	fb := newFakeBackend(t, func(r *gin.Engine) {})
	store := NewMemoryStore(time.Hour)
	catalog := NewCatalogService(store, fb.client, 50)
	sess := newSessionFor(t, store, "")

	_, err := catalog.RefreshStatus(context.Background(), sess.ID)
	assert.True(t, errors.Is(err, ErrNoStore))
	assert.Zero(t, fb.count())
}

func TestLoadProductsCachesUntilForced(t *testing.T) {
	var calls atomic.Int64
	var lastLimit string
	fb := newFakeBackend(t, func(r *gin.Engine) {
		r.GET("/products/:store", func(c *gin.Context) {
			calls.Add(1)
			lastLimit = c.Query("limit")
			c.JSON(http.StatusOK, catalogProducts())
		})
	})
	store := NewMemoryStore(time.Hour)
	catalog := NewCatalogService(store, fb.client, 25)
	sess := newSessionFor(t, store, "123")

	updated, err := catalog.LoadProducts(context.Background(), sess.ID, "", false)
	require.NoError(t, err)
	assert.Len(t, updated.Products, 3)
	assert.Equal(t, "25", lastLimit)

	_, err = catalog.LoadProducts(context.Background(), sess.ID, "", false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), calls.Load())

	_, err = catalog.LoadProducts(context.Background(), sess.ID, "", true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load())

	_, err = catalog.LoadProducts(context.Background(), sess.ID, "shoe", false)
	require.NoError(t, err)
	assert.Equal(t, int64(3), calls.Load())
}

func TestLoadProductsUsesAccessToken(t *testing.T) {
	var auth string
	fb := newFakeBackend(t, func(r *gin.Engine) {
		r.GET("/products", func(c *gin.Context) {
			auth = c.GetHeader("Authorization")
			c.JSON(http.StatusOK, catalogProducts())
		})
	})
	store := NewMemoryStore(time.Hour)
	catalog := NewCatalogService(store, fb.client, 50)
	sess := newSessionFor(t, store, "123")
	_, err := store.Update(sess.ID, func(s *models.Session) error {
		s.AccessToken = "tok"
		return nil
	})
	require.NoError(t, err)

	_, err = catalog.LoadProducts(context.Background(), sess.ID, "", false)
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", auth)
}

func TestFilterLifecycle(t *testing.T) {
	fb := newFakeBackend(t, func(r *gin.Engine) {
		r.GET("/products/:store", func(c *gin.Context) { c.JSON(http.StatusOK, catalogProducts()) })
	})
	store := NewMemoryStore(time.Hour)
	catalog := NewCatalogService(store, fb.client, 50)
	sess := newSessionFor(t, store, "123")
	_, err := catalog.LoadProducts(context.Background(), sess.ID, "", false)
	require.NoError(t, err)

	updated, err := catalog.ApplyFilter(sess.ID, models.FilterState{Field: "title", Operator: "contains", Value: "red"})
	require.NoError(t, err)
	visible := VisibleProducts(updated)
	require.Len(t, visible, 2)
	assert.Equal(t, "Red Shoe", visible[0].Name)
	assert.Equal(t, "Red Hat", visible[1].Name)
	assert.Len(t, updated.Products, 3, "cache untouched")

	updated, err = catalog.ClearFilter(sess.ID)
	require.NoError(t, err)
	assert.Nil(t, updated.Filter)
	assert.Len(t, VisibleProducts(updated), 3)
}

func TestDashboardCollectsBothErrors(t *testing.T) {
	fb := newFakeBackend(t, func(r *gin.Engine) {
		r.GET("/admin/status/:store", func(c *gin.Context) {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "status down"})
		})
		r.GET("/products/:store", func(c *gin.Context) { c.JSON(http.StatusOK, catalogProducts()) })
	})
	store := NewMemoryStore(time.Hour)
	catalog := NewCatalogService(store, fb.client, 50)
	sess := newSessionFor(t, store, "123")

	updated, errs := catalog.Dashboard(context.Background(), sess.ID)
	require.NotNil(t, updated)
	assert.Len(t, errs, 1)
	assert.Len(t, updated.Products, 3, "product load is independent of status failure")
}

func TestLoadProductsDiscardedAfterStoreSwitch(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	fb := newFakeBackend(t, func(r *gin.Engine) {
		r.GET("/products/:store", func(c *gin.Context) {
			storeID := c.Param("store")
			if storeID == "A" {
				close(entered)
				<-release
			}
			c.JSON(http.StatusOK, []gin.H{{"id": storeID + "-1", "name": "Produto da loja " + storeID, "price": "1.00"}})
		})
	})
	store := NewMemoryStore(time.Hour)
	catalog := NewCatalogService(store, fb.client, 50)
	auth := NewAuthService(store, fb.client)
	sess := newSessionFor(t, store, "A")

	done := make(chan error, 1)
	go func() {
		_, err := catalog.LoadProducts(context.Background(), sess.ID, "", false)
		done <- err
	}()
	<-entered
	_, err := auth.BindStore(sess.ID, "B")
	require.NoError(t, err)
	close(release)

	assert.ErrorIs(t, <-done, ErrStoreChanged)
	got, err := store.Get(sess.ID)
	require.NoError(t, err)
	assert.False(t, got.ProductsLoaded)
	assert.Empty(t, got.Products)

	// 新しいストアの一覧は改めて取得される
	got, err = catalog.LoadProducts(context.Background(), sess.ID, "", false)
	require.NoError(t, err)
	require.Len(t, got.Products, 1)
	assert.Equal(t, "Produto da loja B", got.Products[0].Name)
}
