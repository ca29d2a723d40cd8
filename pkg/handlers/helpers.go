package handlers

import (
	"errors"
	"html/template"
	"log"
	"net/http"

	"bulkedit-admin/pkg/backend"
	"bulkedit-admin/pkg/models"
	"bulkedit-admin/pkg/services"

	"github.com/gin-gonic/gin"
)

// Services はハンドラが共有するサービス群です。
type Services struct {
	Store   services.SessionStore
	Auth    *services.AuthService
	Catalog *services.CatalogService
	Tools   *services.ToolService
	Chat    *services.ChatService
	History *services.HistoryService
	Export  *services.ExportService
}

const sessionKey = "session_id"

// flash は次の画面表示で一度だけ出すアラートを保存します。
func (s *Services) flash(sid, msg string) {
	if _, err := s.Store.Update(sid, func(sess *models.Session) error {
		sess.Alert = msg
		return nil
	}); err != nil {
		log.Printf("⚠️ [session] flash: %v", err)
	}
}

// popAlert はアラートを取り出して消去します。
func (s *Services) popAlert(sid string) (*models.Session, string, error) {
	var alert string
	sess, err := s.Store.Update(sid, func(sess *models.Session) error {
		alert = sess.Alert
		sess.Alert = ""
		return nil
	})
	return sess, alert, err
}

// sessionID はセッションミドルウェアが設定したIDを返します。
func sessionID(c *gin.Context) string {
	return c.GetString(sessionKey)
}

// statusFor はサービスのエラーをHTTPステータスに変換します。
func statusFor(err error) int {
	var loginErr *services.LoginError
	switch {
	case errors.As(err, &loginErr):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrSessionNotFound):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrNoStore),
		errors.Is(err, services.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotConfirmed):
		return http.StatusPreconditionRequired
	case errors.Is(err, services.ErrMissingChanges):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrCommandNotFound),
		errors.Is(err, services.ErrUnknownTool):
		return http.StatusNotFound
	case errors.Is(err, services.ErrChatBusy),
		errors.Is(err, services.ErrNotRevertable),
		errors.Is(err, services.ErrRevertInFlight),
		errors.Is(err, services.ErrStoreChanged):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

// userMessage は画面に出す文言を返します。内部のエラー文は出しません。
func userMessage(err error) string {
	var loginErr *services.LoginError
	switch {
	case errors.As(err, &loginErr):
		return loginErr.Message
	case errors.Is(err, services.ErrSessionNotFound):
		return "Sessão expirada. Recarregue a página."
	case errors.Is(err, services.ErrNoStore):
		return "Loja não identificada. Abra o painel pela Nuvemshop."
	case errors.Is(err, services.ErrEmptyMessage):
		return "Digite uma mensagem."
	case errors.Is(err, services.ErrChatBusy):
		return "Aguarde a resposta anterior."
	case errors.Is(err, services.ErrMissingChanges):
		return services.MsgMissingChanges
	case errors.Is(err, services.ErrNotConfirmed):
		return "Confirme a ação antes de continuar."
	case errors.Is(err, services.ErrCommandNotFound):
		return "Comando não encontrado."
	case errors.Is(err, services.ErrNotRevertable):
		return "Esta ação não pode ser desfeita."
	case errors.Is(err, services.ErrRevertInFlight):
		return "Esta ação já está sendo desfeita."
	case errors.Is(err, services.ErrUnknownTool):
		return "Ferramenta desconhecida."
	case errors.Is(err, services.ErrStoreChanged):
		return "A loja foi alterada. Recarregue a página."
	default:
		return "Erro ao conectar com o servidor. Tente novamente."
	}
}

// isAlert はモーダルのアラートで知らせるべきエラーかどうかを返します。
func isAlert(err error) bool {
	return errors.Is(err, services.ErrMissingChanges)
}

// respondError はエラーをJSONのエンベロープで返します。
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Printf("❌ [%s %s] %v", c.Request.Method, c.FullPath(), err)
	}
	body := gin.H{
		"success": false,
		"error":   userMessage(err),
	}
	if isAlert(err) {
		body["alert"] = true
	}
	if errors.Is(err, services.ErrNotConfirmed) {
		body["confirmation_required"] = true
	}
	if detail := backend.DetailOf(err); detail != "" {
		body["detail"] = detail
	}
	c.JSON(status, body)
}

// MessageView はトランスクリプトの表示用データです。
type MessageView struct {
	models.ChatMessage
	HTML    template.HTML  `json:"html,omitempty"`
	Preview *models.Change `json:"preview,omitempty"`
}

func messageViews(messages []models.ChatMessage) []MessageView {
	views := make([]MessageView, 0, len(messages))
	for _, m := range messages {
		v := MessageView{ChatMessage: m}
		if m.Role == models.RoleAssistant && !m.System {
			v.HTML = services.RenderMarkdown(m.Text)
		}
		v.Preview = commandPreview(m.Command)
		views = append(views, v)
	}
	return views
}

// commandPreview は最初の変更だけを返します。changes が無ければ nil です。
func commandPreview(raw []byte) *models.Change {
	cmd, ok := models.ParseCommand(raw)
	if !ok {
		return nil
	}
	change, ok := cmd.Preview()
	if !ok {
		return nil
	}
	return &change
}

func sessionView(sess *models.Session) gin.H {
	return gin.H{
		"id":               sess.ID,
		"store_id":         sess.StoreID,
		"store_name":       sess.StoreName,
		"authenticated":    sess.AccessToken != "",
		"total_products":   sess.TotalProducts,
		"total_categories": sess.TotalCategories,
		"last_error":       sess.LastError,
		"sync_status":      sess.SyncStatus,
		"sync_progress":    sess.SyncProgress,
		"active_tool_id":   sess.ActiveToolID,
		"chat_loading":     sess.ChatLoading,
		"filter":           sess.Filter,
		"alert":            sess.Alert,
	}
}
