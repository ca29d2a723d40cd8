package handlers

import (
	"net/http"

	"bulkedit-admin/pkg/services"

	"github.com/gin-gonic/gin"
)

// ChatHandler はアシスタントとのチャットのハンドラです。
type ChatHandler struct {
	svc *Services
}

// NewChatHandler は新しいChatHandlerを生成します。
func NewChatHandler(svc *Services) *ChatHandler {
	return &ChatHandler{svc: svc}
}

// ChatInputRequest はチャット送信のリクエストボディです。
type ChatInputRequest struct {
	Message string `json:"message" form:"message"`
}

// GetTranscript はトランスクリプトを返します。
func (h *ChatHandler) GetTranscript(c *gin.Context) {
	sess, err := h.svc.Store.Get(sessionID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"messages": messageViews(sess.Messages),
		"loading":  sess.ChatLoading,
		"context":  h.svc.Tools.ChatContext(sess),
	})
}

// ChatInput はメッセージをアシスタントへ送ります。失敗時もトランスクリプトを返します。
func (h *ChatHandler) ChatInput(c *gin.Context) {
	var req ChatInputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Requisição inválida."})
		return
	}

	sess, err := h.svc.Chat.Send(c.Request.Context(), sessionID(c), req.Message)
	if err != nil && sess == nil {
		respondError(c, err)
		return
	}
	body := gin.H{"success": err == nil, "messages": messageViews(sess.Messages)}
	if err != nil {
		body["error"] = services.MsgChatFailure
		c.JSON(statusFor(err), body)
		return
	}
	c.JSON(http.StatusOK, body)
}

// ApplyChanges は確認済みのコマンドをバックエンドへ転送します。
func (h *ChatHandler) ApplyChanges(c *gin.Context) {
	var in services.ApplyInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Requisição inválida."})
		return
	}

	sess, err := h.svc.Chat.Apply(c.Request.Context(), sessionID(c), in)
	if err != nil && sess == nil {
		respondError(c, err)
		return
	}
	body := gin.H{"success": err == nil, "messages": messageViews(sess.Messages)}
	if err != nil {
		// 失敗文言はトランスクリプトの最後に追加済み
		body["error"] = sess.Messages[len(sess.Messages)-1].Text
		c.JSON(statusFor(err), body)
		return
	}
	c.JSON(http.StatusOK, body)
}
