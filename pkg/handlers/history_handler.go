package handlers

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"bulkedit-admin/pkg/services"

	"github.com/gin-gonic/gin"
)

// HistoryHandler は履歴と取り消しのハンドラです。
type HistoryHandler struct {
	svc *Services
}

// NewHistoryHandler は新しいHistoryHandlerを生成します。
func NewHistoryHandler(svc *Services) *HistoryHandler {
	return &HistoryHandler{svc: svc}
}

// RevertRequest は取り消しのリクエストボディです。
type RevertRequest struct {
	Confirmed bool `json:"confirmed" form:"confirmed"`
}

// ListHistory は履歴を取得して返します。
func (h *HistoryHandler) ListHistory(c *gin.Context) {
	sess, err := h.svc.History.List(c.Request.Context(), sessionID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "history": services.Views(sess)})
}

// Revert はエントリの取り消しを依頼します。一覧は少し待ってから取り直されます。
func (h *HistoryHandler) Revert(c *gin.Context) {
	var req RevertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Requisição inválida."})
		return
	}

	sess, err := h.svc.History.Revert(c.Request.Context(), sessionID(c), c.Param("id"), req.Confirmed)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"success": true, "history": services.Views(sess)})
}

// ExportHistory は取得済みの履歴をExcelで返します。
func (h *HistoryHandler) ExportHistory(c *gin.Context) {
	sess, err := h.svc.Store.Get(sessionID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	f, err := h.svc.Export.History(sess.History)
	if err != nil {
		log.Printf("❌ [export] history: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Erro ao gerar a planilha."})
		return
	}
	writeWorkbook(c, f, fmt.Sprintf("historico-%s-%s.xlsx", sess.StoreID, time.Now().Format("20060102")))
}
