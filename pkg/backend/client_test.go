package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeBackend(t *testing.T, register func(r *gin.Engine)) *Client {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", 5*time.Second)
}

func TestStatus(t *testing.T) {
	client := newFakeBackend(t, func(r *gin.Engine) {
		r.GET("/admin/status/:store", func(c *gin.Context) {
			assert.Equal(t, "123", c.Param("store"))
			c.JSON(http.StatusOK, gin.H{
				"loja_nome":              "Loja Teste",
				"total_produtos_banco":   42,
				"total_categorias_banco": 7,
				"ultimo_erro":            nil,
			})
		})
	})

	status, err := client.Status(context.Background(), "123")
	require.NoError(t, err)
	assert.Equal(t, "Loja Teste", status.StoreName)
	assert.Equal(t, 42, status.TotalProducts)
	assert.Equal(t, 7, status.TotalCategories)
	assert.Empty(t, status.LastError)
}

func TestListProductsVariants(t *testing.T) {
	var gotAuth, gotQuery string
	client := newFakeBackend(t, func(r *gin.Engine) {
		products := []gin.H{
			{"id": "1", "name": "Red Shoe", "sku": "A1", "price": "19.90", "stock": 3},
			{"id": "2", "name": "Blue Hat", "sku": "B2", "price": 5.5, "stock": 0},
		}
		r.GET("/products/:store", func(c *gin.Context) {
			gotQuery = c.Request.URL.RawQuery
			c.JSON(http.StatusOK, products)
		})
		r.GET("/products", func(c *gin.Context) {
			gotAuth = c.GetHeader("Authorization")
			c.JSON(http.StatusOK, products[:1])
		})
	})

	products, err := client.ListProducts(context.Background(), "55", 50, "shoe")
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "limit=50&search=shoe", gotQuery)
	assert.Equal(t, "19.9", products[0].Price.String())
	assert.Equal(t, "5.5", products[1].Price.String())

	products, err = client.ListProductsWithToken(context.Background(), "tok", 10, "")
	require.NoError(t, err)
	assert.Len(t, products, 1)
	assert.Equal(t, "Bearer tok", gotAuth)
}

func TestListProductsAcceptsNumericIDs(t *testing.T) {
	client := newFakeBackend(t, func(r *gin.Engine) {
		r.GET("/products/:store", func(c *gin.Context) {
			c.Data(http.StatusOK, "application/json", []byte(`[
				{"id": 101, "name": "Tênis", "sku": "T1", "price": 99.9, "stock": 4,
				 "variants": [{"id": 9001, "sku": "T1-40", "price": "99.90", "stock": 2}]},
				{"id": "abc", "name": "Meia", "sku": "M1", "price": "9.90", "stock": 1}
			]`))
		})
	})

	products, err := client.ListProducts(context.Background(), "55", 50, "")
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "101", string(products[0].ID))
	require.Len(t, products[0].Variants, 1)
	assert.Equal(t, "9001", string(products[0].Variants[0].ID))
	assert.Equal(t, "abc", string(products[1].ID))
}

func TestChatCarriesCommandVerbatim(t *testing.T) {
	var got ChatRequest
	client := newFakeBackend(t, func(r *gin.Engine) {
		r.POST("/chat", func(c *gin.Context) {
			assert.NoError(t, c.ShouldBindJSON(&got))
			c.Data(http.StatusOK, "application/json", []byte(`{"response":"ok","command":{"changes":[{"action":"increase","field":"price","value":"10%"}],"extra":1},"action":"preview"}`))
		})
	})

	resp, err := client.Chat(context.Background(), ChatRequest{Message: "suba 10%", StoreID: "9", Context: "dashboard"})
	require.NoError(t, err)
	assert.Equal(t, "suba 10%", got.Message)
	assert.Equal(t, "dashboard", got.Context)
	assert.Equal(t, "ok", resp.Response)
	assert.Equal(t, "preview", resp.Action)
	assert.JSONEq(t, `{"changes":[{"action":"increase","field":"price","value":"10%"}],"extra":1}`, string(resp.Command))
}

func TestApplyChangesForwardsCommand(t *testing.T) {
	var body map[string]json.RawMessage
	client := newFakeBackend(t, func(r *gin.Engine) {
		r.POST("/apply-changes", func(c *gin.Context) {
			assert.NoError(t, c.ShouldBindJSON(&body))
			c.JSON(http.StatusOK, gin.H{"message": "12 produtos atualizados"})
		})
	})

	cmd := json.RawMessage(`{"changes":[{"action":"set","field":"stock","value":5}]}`)
	resp, err := client.ApplyChanges(context.Background(), "9", cmd)
	require.NoError(t, err)
	assert.Equal(t, "12 produtos atualizados", resp.Message)
	assert.JSONEq(t, string(cmd), string(body["command"]))
	assert.JSONEq(t, `"9"`, string(body["store_id"]))
}

func TestHistoryAcceptsNumericIDs(t *testing.T) {
	client := newFakeBackend(t, func(r *gin.Engine) {
		r.GET("/history/:store", func(c *gin.Context) {
			c.Data(http.StatusOK, "application/json", []byte(`[
				{"id": 17, "action_summary": "Preço +10%", "affected_count": 4, "status": "SUCCESS", "created_at": "2024-01-01T10:00:00", "full_command": "{}"},
				{"id": "abc", "action_summary": "Estoque", "affected_count": 1, "status": "REVERTED", "created_at": "2024-01-02T10:00:00", "full_command": "{}"}
			]`))
		})
	})

	entries, err := client.History(context.Background(), "9")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "17", string(entries[0].ID))
	assert.True(t, entries[0].Revertable())
	assert.Equal(t, "abc", string(entries[1].ID))
	assert.False(t, entries[1].Revertable())
}

func TestLoginFailureSurfacesDetail(t *testing.T) {
	client := newFakeBackend(t, func(r *gin.Engine) {
		r.POST("/auth/login", func(c *gin.Context) {
			c.JSON(http.StatusUnauthorized, gin.H{"detail": "Senha incorreta"})
		})
	})

	_, err := client.Login(context.Background(), "9", "x")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "Senha incorreta", DetailOf(err))
}

func TestErrorDetailIgnoresStructuredDetail(t *testing.T) {
	client := newFakeBackend(t, func(r *gin.Engine) {
		r.POST("/auth/login", func(c *gin.Context) {
			c.Data(http.StatusUnprocessableEntity, "application/json", []byte(`{"detail":[{"loc":["body","password"],"msg":"field required"}]}`))
		})
	})

	_, err := client.Login(context.Background(), "9", "")
	require.Error(t, err)
	assert.Empty(t, DetailOf(err))
}

func TestLoginDefaultsStoreID(t *testing.T) {
	client := newFakeBackend(t, func(r *gin.Engine) {
		r.POST("/auth/login", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"access_token": "tok"})
		})
	})

	resp, err := client.Login(context.Background(), "77", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok", resp.AccessToken)
	assert.Equal(t, "77", resp.StoreID)
}

func TestOAuthURLAndRevert(t *testing.T) {
	var revertedID string
	client := newFakeBackend(t, func(r *gin.Engine) {
		r.GET("/auth/nuvemshop/url", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"url": "https://www.nuvemshop.com.br/apps/1/authorize"})
		})
		r.POST("/history/revert/:id", func(c *gin.Context) {
			revertedID = c.Param("id")
			c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
		})
	})

	u, err := client.OAuthURL(context.Background())
	require.NoError(t, err)
	assert.Contains(t, u, "authorize")

	require.NoError(t, client.Revert(context.Background(), "17"))
	assert.Equal(t, "17", revertedID)
}

func TestObserverReceivesRoutes(t *testing.T) {
	var mu sync.Mutex
	var routes []string
	var statuses []int
	client := newFakeBackend(t, func(r *gin.Engine) {
		r.POST("/sync", func(c *gin.Context) { c.Status(http.StatusNoContent) })
		r.GET("/history/:store", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })
	})
	client.SetObserver(func(method, path string, status int, _ time.Duration, _ error) {
		mu.Lock()
		defer mu.Unlock()
		routes = append(routes, method+" "+path)
		statuses = append(statuses, status)
	})

	require.NoError(t, client.TriggerSync(context.Background(), "9"))
	_, err := client.History(context.Background(), "9")
	require.Error(t, err)

	assert.Equal(t, []string{"POST /sync", "GET /history/:id"}, routes)
	assert.Equal(t, []int{http.StatusNoContent, http.StatusInternalServerError}, statuses)
}

func TestNetworkFailure(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", time.Second)
	_, err := client.Status(context.Background(), "9")
	assert.Error(t, err)
	assert.Empty(t, DetailOf(err))
}

type countingTransport struct {
	mu    sync.Mutex
	calls int
}

func (t *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.mu.Lock()
	t.calls++
	t.mu.Unlock()
	return http.DefaultTransport.RoundTrip(req)
}

func TestSetTransport(t *testing.T) {
	client := newFakeBackend(t, func(r *gin.Engine) {
		r.GET("/auth/nuvemshop/url", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"url": "https://example.com/oauth"})
		})
	})
	rt := &countingTransport{}
	client.SetTransport(rt)

	u, err := client.OAuthURL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/oauth", u)
	assert.Equal(t, 1, rt.calls)
}
