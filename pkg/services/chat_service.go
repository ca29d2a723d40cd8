package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"bulkedit-admin/pkg/backend"
	"bulkedit-admin/pkg/models"

	"github.com/google/uuid"
)

// ChatService はチャットの送信と、AIが提案したコマンドの実行を扱います。
type ChatService struct {
	store  SessionStore
	client *backend.Client
	tools  *ToolService
}

// NewChatService は新しいChatServiceを生成します。
func NewChatService(store SessionStore, client *backend.Client, tools *ToolService) *ChatService {
	return &ChatService{store: store, client: client, tools: tools}
}

func newMessage(role models.Role, text string, command json.RawMessage) models.ChatMessage {
	return models.ChatMessage{
		ID:        uuid.New().String(),
		Role:      role,
		Text:      text,
		Command:   command,
		CreatedAt: time.Now(),
	}
}

// detached はリクエスト元の切断に追従しないコンテキストを返します。
// 上限はクライアントの BackendTimeout で、0 なら待ち続けます。
func detached(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

// Send はユーザーのメッセージを即座にトランスクリプトへ追加してからバックエンドへ送ります。
// ストアIDが無い、またはテキストが空の場合は何もしません。送信中の再送信は ErrChatBusy で拒否しますが、
// 送信中のリクエストは取り消しません。失敗時は固定のエラーメッセージを追加し、再試行はしません。
func (s *ChatService) Send(ctx context.Context, sessionID, text string) (*models.Session, error) {
	text = strings.TrimSpace(text)

	var req backend.ChatRequest
	_, err := s.store.Update(sessionID, func(sess *models.Session) error {
		if !sess.HasStore() {
			return ErrNoStore
		}
		if text == "" {
			return ErrEmptyMessage
		}
		if sess.ChatLoading {
			return ErrChatBusy
		}
		sess.Messages = append(sess.Messages, newMessage(models.RoleUser, text, nil))
		sess.ChatLoading = true
		req = backend.ChatRequest{
			Message: text,
			StoreID: sess.StoreID,
			Context: s.tools.ChatContext(sess),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	reply, chatErr := s.client.Chat(detached(ctx), req)
	if chatErr != nil {
		log.Printf("❌ [chat] store=%s: %v", req.StoreID, chatErr)
	}

	sess, err := s.store.Update(sessionID, func(sess *models.Session) error {
		// 切り替え後のトランスクリプトに前のストアの応答を混ぜない
		if sess.StoreID != req.StoreID {
			return ErrStoreChanged
		}
		sess.ChatLoading = false
		if chatErr != nil {
			sess.Messages = append(sess.Messages, newMessage(models.RoleAssistant, MsgChatFailure, nil))
			return nil
		}
		sess.Messages = append(sess.Messages, newMessage(models.RoleAssistant, reply.Response, reply.Command))
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrStoreChanged) {
			log.Printf("⚠️ [chat] reply for store=%s discarded: session switched stores", req.StoreID)
		}
		return nil, err
	}
	if chatErr != nil {
		return sess, fmt.Errorf("chat request failed: %w", chatErr)
	}
	return sess, nil
}

// ApplyInput は実行するコマンドの指定です。MessageID があればトランスクリプトのコマンドを使います。
type ApplyInput struct {
	MessageID string          `json:"message_id" form:"message_id"`
	Command   json.RawMessage `json:"command"`
	Confirmed bool            `json:"confirmed" form:"confirmed"`
}

// Apply は確認済みのコマンドを一切加工せずにバックエンドへ転送し、結果をトランスクリプトへ追加します。
// changes 配列が無いコマンドは ErrMissingChanges で、未確認なら ErrNotConfirmed で、
// いずれもネットワーク呼び出しをせずに中断します。
func (s *ChatService) Apply(ctx context.Context, sessionID string, in ApplyInput) (*models.Session, error) {
	sess, err := s.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.HasStore() {
		return nil, ErrNoStore
	}

	command := in.Command
	if in.MessageID != "" {
		command = nil
		for _, m := range sess.Messages {
			if m.ID == in.MessageID && m.HasCommand() {
				command = m.Command
				break
			}
		}
		if command == nil {
			return nil, fmt.Errorf("%w: %s", ErrCommandNotFound, in.MessageID)
		}
	}

	if _, ok := models.ParseCommand(command); !ok {
		s.setAlert(sessionID, MsgMissingChanges)
		return nil, ErrMissingChanges
	}
	if !in.Confirmed {
		return nil, ErrNotConfirmed
	}

	storeID := sess.StoreID
	resp, applyErr := s.client.ApplyChanges(detached(ctx), storeID, command)
	text := MsgApplyFallback
	switch {
	case applyErr != nil:
		log.Printf("❌ [apply] store=%s: %v", storeID, applyErr)
		text = MsgApplyFailure
		if detail := backend.DetailOf(applyErr); detail != "" {
			text = fmt.Sprintf("%s (%s)", MsgApplyFailure, detail)
		}
	case resp.Message != "":
		text = resp.Message
		log.Printf("✅ [apply] store=%s: %s", storeID, resp.Message)
	}

	updated, err := s.store.Update(sessionID, func(sess *models.Session) error {
		if sess.StoreID != storeID {
			return ErrStoreChanged
		}
		sess.Messages = append(sess.Messages, newMessage(models.RoleAssistant, text, nil))
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrStoreChanged) {
			log.Printf("⚠️ [apply] result for store=%s discarded: session switched stores", storeID)
		}
		return nil, err
	}
	if applyErr != nil {
		return updated, fmt.Errorf("apply changes failed: %w", applyErr)
	}
	return updated, nil
}

func (s *ChatService) setAlert(sessionID, alert string) {
	if _, err := s.store.Update(sessionID, func(sess *models.Session) error {
		sess.Alert = alert
		return nil
	}); err != nil && !errors.Is(err, ErrSessionNotFound) {
		log.Printf("⚠️ [chat] failed to set alert: %v", err)
	}
}
