package services

import (
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"bulkedit-admin/pkg/backend"
	"bulkedit-admin/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

// fakeBackend は受け取ったリクエスト数を数えるバックエンドのスタブです。
type fakeBackend struct {
	client   *backend.Client
	requests atomic.Int64
}

func newFakeBackend(t *testing.T, register func(r *gin.Engine)) *fakeBackend {
	t.Helper()
	gin.SetMode(gin.TestMode)
	fb := &fakeBackend{}
	r := gin.New()
	r.Use(func(c *gin.Context) {
		fb.requests.Add(1)
		c.Next()
	})
	register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	fb.client = backend.NewClient(srv.URL, 5*time.Second)
	return fb
}

func (fb *fakeBackend) count() int64 {
	return fb.requests.Load()
}

func newSessionFor(t *testing.T, store SessionStore, storeID string) *models.Session {
	t.Helper()
	sess, err := store.Create(storeID)
	require.NoError(t, err)
	return sess
}
