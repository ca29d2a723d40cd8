package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ToolHandler はサイドバーのツールのハンドラです。
type ToolHandler struct {
	svc *Services
}

// NewToolHandler は新しいToolHandlerを生成します。
func NewToolHandler(svc *Services) *ToolHandler {
	return &ToolHandler{svc: svc}
}

// SelectToolRequest はツール選択のリクエストボディです。空文字はダッシュボードに戻ります。
type SelectToolRequest struct {
	ToolID string `json:"tool_id" form:"tool_id"`
}

// ListTools はツール一覧を返します。?q= でタイトルをあいまい検索します。
func (h *ToolHandler) ListTools(c *gin.Context) {
	tools := h.svc.Tools.Search(c.Query("q"))
	c.JSON(http.StatusOK, gin.H{"success": true, "tools": tools})
}

// SelectTool はツールを有効にします。
func (h *ToolHandler) SelectTool(c *gin.Context) {
	var req SelectToolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "tool_id inválido"})
		return
	}
	sess, err := h.svc.Tools.Select(sessionID(c), req.ToolID)
	if err != nil {
		respondError(c, err)
		return
	}
	body := gin.H{"success": true, "session": sessionView(sess), "context": h.svc.Tools.ChatContext(sess)}
	if tool, ok := h.svc.Tools.Lookup(sess.ActiveToolID); ok {
		body["tool"] = tool
	}
	c.JSON(http.StatusOK, body)
}
