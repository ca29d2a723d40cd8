package handlers

import (
	"log"
	"net/http"
	"net/url"
	"strings"

	"bulkedit-admin/pkg/services"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// SecurityHeaders は管理画面のiframe埋め込みを許可するオリジンを CSP frame-ancestors で制限します。
func SecurityHeaders(frameAncestors string) gin.HandlerFunc {
	csp := "frame-ancestors " + strings.TrimSpace(frameAncestors)
	return func(c *gin.Context) {
		c.Header("Content-Security-Policy", csp)
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}

// APIKeyAuth は運用系APIを X-API-KEY ヘッダーで保護します。キーが未設定なら素通しします。
func APIKeyAuth(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}
		providedKey := c.GetHeader("X-API-KEY")
		if providedKey != apiKey {
			log.Printf("❌ [認証] 無効なAPI Key: path=%s", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

// SameOrigin は状態を変更するリクエストのうち、送信元がパネル自身でも allowed でもないものを拒否します。
// 送信元は Origin、無ければ Referer で判定します。どちらも無いリクエストはブラウザ以外からとみなして通しますが、
// Sec-Fetch-Site が cross-site の場合は拒否します。allowed は CORS と同じく "https://*.example.com" 形式を受け付けます。
func SameOrigin(allowed []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		source := c.GetHeader("Origin")
		if source == "" {
			if ref, err := url.Parse(c.GetHeader("Referer")); err == nil && ref.Host != "" {
				source = ref.Scheme + "://" + ref.Host
			}
		}
		if source == "" {
			if c.GetHeader("Sec-Fetch-Site") == "cross-site" {
				rejectCrossSite(c, "(no origin)")
				return
			}
			c.Next()
			return
		}
		if !trustedOrigin(c.Request, source, allowed) {
			rejectCrossSite(c, source)
			return
		}
		c.Next()
	}
}

func rejectCrossSite(c *gin.Context, source string) {
	log.Printf("❌ [csrf] cross-site %s %s from %s", c.Request.Method, c.Request.URL.Path, source)
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": "Origem não permitida."})
}

func trustedOrigin(r *http.Request, source string, allowed []string) bool {
	u, err := url.Parse(source)
	if err != nil || u.Host == "" {
		// "null" はサンドボックス化されたフレームなど
		return false
	}
	host := r.Host
	if fwd := r.Header.Get("X-Forwarded-Host"); fwd != "" {
		host = strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	if strings.EqualFold(u.Host, host) {
		return true
	}
	origin := strings.ToLower(u.Scheme + "://" + u.Host)
	for _, pattern := range allowed {
		pattern = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(pattern), "/"))
		if pattern == origin {
			return true
		}
		if prefix, suffix, ok := strings.Cut(pattern, "*"); ok &&
			len(origin) > len(prefix)+len(suffix) &&
			strings.HasPrefix(origin, prefix) && strings.HasSuffix(origin, suffix) {
			return true
		}
	}
	return false
}

// RequireJSON はボディ付きの POST / PUT / PATCH に application/json を要求します。
// フォームや text/plain のボディはブラウザがプリフライト無しで送れるため受け付けません。
func RequireJSON() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			if c.Request.ContentLength != 0 && c.ContentType() != binding.MIMEJSON {
				c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, gin.H{"success": false, "error": "Content-Type deve ser application/json."})
				return
			}
		}
		c.Next()
	}
}

// SessionManager はブラウザごとのセッションを署名付きクッキーで識別します。
type SessionManager struct {
	store      services.SessionStore
	auth       *services.AuthService
	signer     *services.TokenSigner
	cookieName string
	secure     bool
}

// NewSessionManager は新しいSessionManagerを生成します。
func NewSessionManager(store services.SessionStore, auth *services.AuthService, signer *services.TokenSigner, cookieName string, secure bool) *SessionManager {
	return &SessionManager{
		store:      store,
		auth:       auth,
		signer:     signer,
		cookieName: cookieName,
		secure:     secure,
	}
}

// Load はクッキーからセッションを復元し、無ければ作成します。
// ?store_id= が付いていればそのストアをセッションに結び付けます。
func (m *SessionManager) Load() gin.HandlerFunc {
	return func(c *gin.Context) {
		storeID := strings.TrimSpace(c.Query("store_id"))

		sid := m.resolve(c)
		if sid == "" {
			sess, err := m.store.Create(storeID)
			if err != nil {
				log.Printf("❌ [session] create: %v", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "error": "session unavailable"})
				return
			}
			sid = sess.ID
		} else if storeID != "" {
			if _, err := m.auth.BindStore(sid, storeID); err != nil {
				log.Printf("⚠️ [session] bind store=%s: %v", storeID, err)
			}
		}

		if err := m.issue(c, sid); err != nil {
			log.Printf("❌ [session] sign: %v", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "error": "session unavailable"})
			return
		}
		c.Set(sessionKey, sid)
		c.Next()
	}
}

func (m *SessionManager) resolve(c *gin.Context) string {
	raw, err := c.Cookie(m.cookieName)
	if err != nil || raw == "" {
		return ""
	}
	sid, err := m.signer.Parse(raw)
	if err != nil {
		return ""
	}
	if _, err := m.store.Get(sid); err != nil {
		return ""
	}
	return sid
}

// issue はクッキーを再発行して有効期限を延長します。
func (m *SessionManager) issue(c *gin.Context, sid string) error {
	token, err := m.signer.Sign(sid)
	if err != nil {
		return err
	}
	m.setCookie(c, token, int(m.signer.TTL().Seconds()))
	return nil
}

// Clear はセッションクッキーを削除します。
func (m *SessionManager) Clear(c *gin.Context) {
	m.setCookie(c, "", -1)
}

func (m *SessionManager) setCookie(c *gin.Context, value string, maxAge int) {
	// iframe内で送られるには SameSite=None と Secure の両方が必要
	if m.secure {
		c.SetSameSite(http.SameSiteNoneMode)
	} else {
		c.SetSameSite(http.SameSiteLaxMode)
	}
	c.SetCookie(m.cookieName, value, maxAge, "/", "", m.secure, true)
}
