package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"bulkedit-admin/pkg/models"
	"bulkedit-admin/pkg/services"

	"github.com/gin-gonic/gin"
)

// PageData は画面テンプレートに渡すデータです。
type PageData struct {
	Session    *models.Session
	Tools      []models.Tool
	ActiveTool *models.Tool
	Query      string
	Products   []models.Product
	Filter     models.FilterState
	History    []services.HistoryView
	Syncing    bool
	Alert      string
	Errors     []string
	StoreID    string
}

// PageHandler はiframe内に表示する管理画面のハンドラです。フォームの送信後は元の画面へリダイレクトします。
type PageHandler struct {
	svc      *Services
	sessions *SessionManager
}

// NewPageHandler は新しいPageHandlerを生成します。
func NewPageHandler(svc *Services, sessions *SessionManager) *PageHandler {
	return &PageHandler{svc: svc, sessions: sessions}
}

func (h *PageHandler) basePage(c *gin.Context) (*PageData, error) {
	sess, alert, err := h.svc.popAlert(sessionID(c))
	if err != nil {
		return nil, err
	}
	data := &PageData{
		Session:  sess,
		Tools:    h.svc.Tools.Search(c.Query("q")),
		Query:    c.Query("q"),
		Alert:    alert,
		StoreID:  sess.StoreID,
		Syncing:  sess.SyncStatus == models.SyncStatusSyncing,
		Filter:   models.FilterState{Field: services.FilterFieldAll, Operator: services.FilterOpContains},
		Products: services.VisibleProducts(sess),
	}
	if sess.Filter != nil {
		data.Filter = *sess.Filter
	}
	if tool, ok := h.svc.Tools.Lookup(sess.ActiveToolID); ok {
		data.ActiveTool = &tool
	}
	return data, nil
}

// Dashboard はメイン画面です。ストアが未設定ならログイン画面へ送ります。
func (h *PageHandler) Dashboard(c *gin.Context) {
	sess, err := h.svc.Store.Get(sessionID(c))
	if err != nil {
		c.Redirect(http.StatusSeeOther, "/login")
		return
	}
	if !sess.HasStore() {
		c.Redirect(http.StatusSeeOther, "/login")
		return
	}

	_, errs := h.svc.Catalog.Dashboard(c.Request.Context(), sess.ID)

	data, err := h.basePage(c)
	if err != nil {
		c.Redirect(http.StatusSeeOther, "/login")
		return
	}
	for _, e := range errs {
		data.Errors = append(data.Errors, userMessage(e))
	}
	c.HTML(http.StatusOK, "dashboard.html", data)
}

// HistoryPage は履歴画面です。
func (h *PageHandler) HistoryPage(c *gin.Context) {
	_, listErr := h.svc.History.List(c.Request.Context(), sessionID(c))
	if errors.Is(listErr, services.ErrNoStore) {
		c.Redirect(http.StatusSeeOther, "/login")
		return
	}

	data, err := h.basePage(c)
	if err != nil {
		c.Redirect(http.StatusSeeOther, "/login")
		return
	}
	if listErr != nil {
		data.Errors = append(data.Errors, userMessage(listErr))
	}
	data.History = services.Views(data.Session)
	c.HTML(http.StatusOK, "history.html", data)
}

// LoginPage はログイン画面です。
func (h *PageHandler) LoginPage(c *gin.Context) {
	data, err := h.basePage(c)
	if err != nil {
		data = &PageData{}
	}
	c.HTML(http.StatusOK, "login.html", data)
}

// SubmitLogin はログインフォームの送信です。
func (h *PageHandler) SubmitLogin(c *gin.Context) {
	sid := sessionID(c)
	_, err := h.svc.Auth.Login(c.Request.Context(), sid, c.PostForm("store_id"), c.PostForm("password"))
	if err != nil {
		h.svc.flash(sid, userMessage(err))
		c.Redirect(http.StatusSeeOther, "/login")
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// SubmitLogout はセッションを破棄します。
func (h *PageHandler) SubmitLogout(c *gin.Context) {
	if err := h.svc.Auth.Logout(sessionID(c)); err != nil {
		log.Printf("⚠️ [panel] logout: %v", err)
	}
	h.sessions.Clear(c)
	c.Redirect(http.StatusSeeOther, "/login")
}

// SubmitChat はチャットフォームの送信です。失敗文言はトランスクリプトに入るのでアラートは出しません。
func (h *PageHandler) SubmitChat(c *gin.Context) {
	sid := sessionID(c)
	if _, err := h.svc.Chat.Send(c.Request.Context(), sid, c.PostForm("message")); err != nil {
		if errors.Is(err, services.ErrChatBusy) || errors.Is(err, services.ErrNoStore) {
			h.svc.flash(sid, userMessage(err))
		}
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// SubmitApply はコマンド実行フォームの送信です。確認はブラウザのダイアログで行います。
func (h *PageHandler) SubmitApply(c *gin.Context) {
	sid := sessionID(c)
	in := services.ApplyInput{
		MessageID: c.PostForm("message_id"),
		Confirmed: c.PostForm("confirmed") == "true",
	}
	// バックエンドの失敗はトランスクリプトに、changes が無い場合のアラートはサービス側で保存済み
	_, err := h.svc.Chat.Apply(c.Request.Context(), sid, in)
	if err != nil && !errors.Is(err, services.ErrMissingChanges) && statusFor(err) != http.StatusBadGateway {
		h.svc.flash(sid, userMessage(err))
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// SubmitFilter はフィルターフォームの送信です。
func (h *PageHandler) SubmitFilter(c *gin.Context) {
	var filter models.FilterState
	if err := c.ShouldBind(&filter); err != nil {
		h.svc.flash(sessionID(c), "Filtro inválido.")
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	if _, err := h.svc.Catalog.ApplyFilter(sessionID(c), filter); err != nil {
		h.svc.flash(sessionID(c), userMessage(err))
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// SubmitClearFilter はフィルターを解除します。
func (h *PageHandler) SubmitClearFilter(c *gin.Context) {
	if _, err := h.svc.Catalog.ClearFilter(sessionID(c)); err != nil {
		h.svc.flash(sessionID(c), userMessage(err))
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// SubmitRefresh は商品一覧を取り直します。検索語があればバックエンド検索になります。
func (h *PageHandler) SubmitRefresh(c *gin.Context) {
	search := strings.TrimSpace(c.PostForm("search"))
	if _, err := h.svc.Catalog.LoadProducts(c.Request.Context(), sessionID(c), search, true); err != nil {
		h.svc.flash(sessionID(c), userMessage(err))
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// SubmitTool はツールの選択です。
func (h *PageHandler) SubmitTool(c *gin.Context) {
	if _, err := h.svc.Tools.Select(sessionID(c), c.PostForm("tool_id")); err != nil {
		h.svc.flash(sessionID(c), userMessage(err))
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// SubmitRevert は取り消しフォームの送信です。
func (h *PageHandler) SubmitRevert(c *gin.Context) {
	sid := sessionID(c)
	confirmed := c.PostForm("confirmed") == "true"
	if _, err := h.svc.History.Revert(c.Request.Context(), sid, c.PostForm("id"), confirmed); err != nil {
		msg := userMessage(err)
		if statusFor(err) == http.StatusBadGateway {
			msg = services.MsgRevertFailure
		}
		h.svc.flash(sid, msg)
	}
	c.Redirect(http.StatusSeeOther, "/history")
}
