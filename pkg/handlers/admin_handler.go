package handlers

import (
	"crypto/subtle"
	"log"
	"net/http"
	"strings"
	"sync/atomic"

	config "bulkedit-admin/configs"

	"github.com/gin-gonic/gin"
)

// AdminHandler は管理者向け操作のハンドラです。
type AdminHandler struct {
	AdminUsername string
	AdminPassword string

	// maintenance はサーバーがメンテナンスモードかどうかを示します。
	maintenance atomic.Bool
}

// NewAdminHandler は新しいAdminHandlerを生成します。
func NewAdminHandler(cfg *config.Config) *AdminHandler {
	return &AdminHandler{
		AdminUsername: cfg.AdminUsername,
		AdminPassword: cfg.AdminPassword,
	}
}

// AdminCredentials は管理者認証のためのリクエストボディです。
type AdminCredentials struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AdminHandler) authorize(c *gin.Context) bool {
	var input AdminCredentials
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Username and password are required"})
		return false
	}

	// パスワード未設定の場合は常に拒否する
	userOK := subtle.ConstantTimeCompare([]byte(input.Username), []byte(h.AdminUsername)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(input.Password), []byte(h.AdminPassword)) == 1
	if h.AdminPassword == "" || !userOK || !passOK {
		log.Printf("❌ [admin] invalid credentials user=%s", input.Username)
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid credentials"})
		return false
	}
	return true
}

// StartMaintenance はメンテナンスモードを開始します。
func (h *AdminHandler) StartMaintenance(c *gin.Context) {
	if !h.authorize(c) {
		return
	}
	h.maintenance.Store(true)
	log.Printf("🛠️ [admin] maintenance mode started")
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Maintenance mode started"})
}

// StopMaintenance はメンテナンスモードを停止します。
func (h *AdminHandler) StopMaintenance(c *gin.Context) {
	if !h.authorize(c) {
		return
	}
	h.maintenance.Store(false)
	log.Printf("✅ [admin] maintenance mode stopped")
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Maintenance mode stopped"})
}

// InMaintenance はメンテナンス中かどうかを返します。
func (h *AdminHandler) InMaintenance() bool {
	return h.maintenance.Load()
}

// GetHealthStatus は現在のサーバーの状態を返します。
func (h *AdminHandler) GetHealthStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"isMaintenanceMode": h.maintenance.Load()})
}

// HealthCheck は外部のヘルスチェッカー（例: ロードバランサー）からのリクエストに応答します。
func (h *AdminHandler) HealthCheck(c *gin.Context) {
	if h.maintenance.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "message": "Server is in maintenance mode"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// MaintenanceGate はメンテナンス中の画面とAPIに503を返します。管理APIとヘルスチェックは通します。
func (h *AdminHandler) MaintenanceGate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !h.maintenance.Load() {
			c.Next()
			return
		}
		path := c.Request.URL.Path
		if path == "/health" || strings.HasPrefix(path, "/api/v1/admin") {
			c.Next()
			return
		}
		if strings.HasPrefix(path, "/api/") {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "Server is in maintenance mode"})
			return
		}
		c.HTML(http.StatusServiceUnavailable, "maintenance.html", nil)
		c.Abort()
	}
}
