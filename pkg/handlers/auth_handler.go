package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// AuthHandler はログインとセッションの操作のハンドラです。
type AuthHandler struct {
	svc      *Services
	sessions *SessionManager
}

// NewAuthHandler は新しいAuthHandlerを生成します。
func NewAuthHandler(svc *Services, sessions *SessionManager) *AuthHandler {
	return &AuthHandler{svc: svc, sessions: sessions}
}

// LoginRequest はパスワードログインのリクエストボディです。
type LoginRequest struct {
	StoreID  string `json:"store_id" form:"store_id" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

// GetSession は現在のセッションの状態を返します。
func (h *AuthHandler) GetSession(c *gin.Context) {
	sess, err := h.svc.Store.Get(sessionID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "session": sessionView(sess)})
}

// Login はバックエンドでログインし、結果をセッションに保存します。
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "store_id e password são obrigatórios"})
		return
	}

	sess, err := h.svc.Auth.Login(c.Request.Context(), sessionID(c), req.StoreID, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "session": sessionView(sess)})
}

// OAuthURL はバックエンドのOAuth開始URLを返します。
func (h *AuthHandler) OAuthURL(c *gin.Context) {
	u, err := h.svc.Auth.OAuthURL(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "url": u})
}

// OAuthRedirect はOAuth開始URLへリダイレクトします。
func (h *AuthHandler) OAuthRedirect(c *gin.Context) {
	u, err := h.svc.Auth.OAuthURL(c.Request.Context())
	if err != nil {
		h.svc.flash(sessionID(c), userMessage(err))
		c.Redirect(http.StatusSeeOther, "/login")
		return
	}
	c.Redirect(http.StatusFound, u)
}

// Logout はセッションを破棄してクッキーを削除します。
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.svc.Auth.Logout(sessionID(c)); err != nil {
		respondError(c, err)
		return
	}
	h.sessions.Clear(c)
	c.JSON(http.StatusOK, gin.H{"success": true})
}
