package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SyncStatus カタログ同期の状態
type SyncStatus string

const (
	SyncStatusSyncing SyncStatus = "syncing"
	SyncStatusOnline  SyncStatus = "online"
)

// Role チャットメッセージの送信者
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// 履歴エントリのステータス（バックエンドは大文字で返すことがある）
const (
	HistoryStatusSuccess  = "success"
	HistoryStatusReverted = "reverted"
)

// Session はブラウザ1つ分の管理画面の状態です。ページを再読み込みしても
// バックエンドから再取得できるもの以外は保持しません。
type Session struct {
	ID          string `json:"id"`
	StoreID     string `json:"store_id"`
	AccessToken string `json:"access_token,omitempty"`

	StoreName       string     `json:"store_name,omitempty"`
	TotalProducts   int        `json:"total_products"`
	TotalCategories int        `json:"total_categories"`
	LastError       string     `json:"last_error,omitempty"`
	SyncStatus      SyncStatus `json:"sync_status"`
	SyncProgress    int        `json:"sync_progress"` // 0-100

	Messages []ChatMessage `json:"messages"`
	// ChatLoading は送信中の間trueになり、二重送信を防ぎます（送信中のリクエストは取り消しません）
	ChatLoading bool `json:"chat_loading"`

	Products       []Product    `json:"products,omitempty"`
	ProductsLoaded bool         `json:"products_loaded"`
	ActiveToolID   string       `json:"active_tool_id,omitempty"`
	Filter         *FilterState `json:"filter,omitempty"`
	Filtered       []Product    `json:"filtered,omitempty"`

	History          []HistoryEntry  `json:"history,omitempty"`
	RevertProcessing map[string]bool `json:"revert_processing,omitempty"`

	// Alert は次の画面描画で一度だけ表示するメッセージです
	Alert string `json:"alert,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// HasStore reports whether a store identifier is bound to the session.
func (s *Session) HasStore() bool {
	return strings.TrimSpace(s.StoreID) != ""
}

// Clone はスライスとマップを複製したコピーを返します。
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Messages = append([]ChatMessage(nil), s.Messages...)
	c.Products = append([]Product(nil), s.Products...)
	c.Filtered = append([]Product(nil), s.Filtered...)
	c.History = append([]HistoryEntry(nil), s.History...)
	if s.Filter != nil {
		f := *s.Filter
		c.Filter = &f
	}
	if s.RevertProcessing != nil {
		c.RevertProcessing = make(map[string]bool, len(s.RevertProcessing))
		for k, v := range s.RevertProcessing {
			c.RevertProcessing[k] = v
		}
	}
	return &c
}

// Product 商品のビューモデル（バックエンドのレスポンスをそのまま保持）
type Product struct {
	ID       FlexID          `json:"id"`
	Name     string          `json:"name"`
	SKU      string          `json:"sku"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock"`
	Image    string          `json:"image,omitempty"`
	Variants []Variant       `json:"variants,omitempty"`
}

// Variant 商品バリエーション
type Variant struct {
	ID    FlexID          `json:"id"`
	SKU   string          `json:"sku"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}

// ChatMessage トランスクリプトの1メッセージ。追加のみで並べ替えや削除はしません。
type ChatMessage struct {
	ID        string          `json:"id"`
	Role      Role            `json:"role"`
	Text      string          `json:"text"`
	Command   json.RawMessage `json:"command,omitempty"`
	System    bool            `json:"system,omitempty"` // モード切替のバナー
	CreatedAt time.Time       `json:"created_at"`
}

// HasCommand reports whether the message carries a proposed change payload.
func (m ChatMessage) HasCommand() bool {
	trimmed := bytes.TrimSpace(m.Command)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// Change 一括編集の1変更
type Change struct {
	Action string          `json:"action"`
	Field  string          `json:"field"`
	Value  json.RawMessage `json:"value"`
}

// ValueText は値を表示用の文字列にします。
func (c Change) ValueText() string {
	var s string
	if err := json.Unmarshal(c.Value, &s); err == nil {
		return s
	}
	return string(c.Value)
}

// Command はAIの提案する変更内容です。送信時は元のJSONをそのまま転送します。
type Command struct {
	Changes []Change `json:"changes"`
}

// ParseCommand は生のコマンドから表示用の構造を取り出します。
// changes 配列が無い場合は ok=false を返します。
func ParseCommand(raw json.RawMessage) (cmd Command, ok bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return Command{}, false
	}
	var body struct {
		Changes *[]Change `json:"changes"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || body.Changes == nil {
		return Command{}, false
	}
	return Command{Changes: *body.Changes}, true
}

// Preview は最初の変更だけを返します。
func (c Command) Preview() (Change, bool) {
	if len(c.Changes) == 0 {
		return Change{}, false
	}
	return c.Changes[0], true
}

// FilterState 商品フィルターの入力値
type FilterState struct {
	Field    string `json:"field" form:"field"`
	Operator string `json:"operator" form:"operator"`
	Value    string `json:"value" form:"value"`
}

// FlexID はバックエンドが数値でも文字列でも返すIDを受け取ります（商品・履歴で共通）。
type FlexID string

// UnmarshalJSON accepts both JSON numbers and strings.
func (id *FlexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", string(data), err)
	}
	*id = FlexID(n.String())
	return nil
}

// HistoryEntry 実行済み一括編集の履歴
type HistoryEntry struct {
	ID            FlexID  `json:"id"`
	ActionSummary string  `json:"action_summary"`
	AffectedCount int     `json:"affected_count"`
	Status        string  `json:"status"`
	CreatedAt     string  `json:"created_at"`
	FullCommand   string  `json:"full_command"`
}

// Revertable は取り消しボタンを表示できるか（成功したエントリのみ）を返します。
func (h HistoryEntry) Revertable() bool {
	return strings.EqualFold(strings.TrimSpace(h.Status), HistoryStatusSuccess)
}

// StoreStatus /admin/status のレスポンス
type StoreStatus struct {
	StoreName       string `json:"loja_nome"`
	TotalProducts   int    `json:"total_produtos_banco"`
	TotalCategories int    `json:"total_categorias_banco"`
	LastError       string `json:"ultimo_erro"`
}

// Tool サイドバーの一括編集ツール
type Tool struct {
	ID          string `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
	Color       string `json:"color" yaml:"color"`
	Icon        string `json:"icon" yaml:"icon"`
}
