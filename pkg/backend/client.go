package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"bulkedit-admin/pkg/models"
)

// Observer はバックエンド呼び出しごとに結果を受け取るフックです。
type Observer func(method, path string, status int, elapsed time.Duration, err error)

// Client は一括編集バックエンドのREST APIへのリクエストを管理します。
// 認証、商品の保存、AIによるコマンド生成、一括編集の実行はすべてバックエンド側の責務です。
type Client struct {
	baseURL    string
	httpClient *http.Client
	observer   Observer
}

// NewClient は新しいバックエンドクライアントを作成します。
// timeout が0の場合はタイムアウトを設定しません。
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// SetObserver は呼び出し結果の通知先を設定します。
func (c *Client) SetObserver(o Observer) {
	c.observer = o
}

// SetTransport はHTTPトランスポートを差し替えます（プロキシ経由の疎通確認など）。
func (c *Client) SetTransport(rt http.RoundTripper) {
	c.httpClient.Transport = rt
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// --- データ構造定義 ---

// APIError はバックエンドが2xx以外を返したときのエラーです。
type APIError struct {
	StatusCode int
	Detail     string
	Body       string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("backend error (status: %d): %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("backend error (status: %d): %s", e.StatusCode, e.Body)
}

// DetailOf はエラーがAPIErrorならバックエンドのdetailを返します。
func DetailOf(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Detail
	}
	return ""
}

// ChatRequest /chat へのリクエスト
type ChatRequest struct {
	Message string `json:"message"`
	StoreID string `json:"store_id"`
	Context string `json:"context,omitempty"`
}

// ChatResponse /chat のレスポンス
type ChatResponse struct {
	Response string          `json:"response"`
	Command  json.RawMessage `json:"command,omitempty"`
	Action   string          `json:"action,omitempty"`
}

// ApplyRequest /apply-changes へのリクエスト
type ApplyRequest struct {
	StoreID string          `json:"store_id"`
	Command json.RawMessage `json:"command"`
}

// ApplyResponse /apply-changes のレスポンス
type ApplyResponse struct {
	Message string `json:"message"`
}

// LoginRequest /auth/login へのリクエスト
type LoginRequest struct {
	StoreID  string `json:"store_id"`
	Password string `json:"password"`
}

// LoginResponse /auth/login のレスポンス
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	StoreID     string `json:"store_id"`
}

type oauthURLResponse struct {
	URL string `json:"url"`
}

type errorResponse struct {
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

// --- メソッド定義 ---

// Status ストアの商品数・同期状態を取得
func (c *Client) Status(ctx context.Context, storeID string) (*models.StoreStatus, error) {
	var status models.StoreStatus
	if err := c.doRequest(ctx, http.MethodGet, "/admin/status/"+url.PathEscape(storeID), "", nil, &status); err != nil {
		return nil, fmt.Errorf("ステータス取得に失敗: %w", err)
	}
	return &status, nil
}

// TriggerSync カタログ同期を開始（レスポンスは使用しない）
func (c *Client) TriggerSync(ctx context.Context, storeID string) error {
	path := "/sync?store_id=" + url.QueryEscape(storeID)
	if err := c.doRequest(ctx, http.MethodPost, path, "", nil, nil); err != nil {
		return fmt.Errorf("同期リクエストに失敗: %w", err)
	}
	return nil
}

// ListProducts ストアIDで商品一覧を取得
func (c *Client) ListProducts(ctx context.Context, storeID string, limit int, search string) ([]models.Product, error) {
	path := "/products/" + url.PathEscape(storeID) + productQuery(limit, search)
	var products []models.Product
	if err := c.doRequest(ctx, http.MethodGet, path, "", nil, &products); err != nil {
		return nil, fmt.Errorf("商品一覧の取得に失敗: %w", err)
	}
	return products, nil
}

// ListProductsWithToken アクセストークンで商品一覧を取得
func (c *Client) ListProductsWithToken(ctx context.Context, token string, limit int, search string) ([]models.Product, error) {
	path := "/products" + productQuery(limit, search)
	var products []models.Product
	if err := c.doRequest(ctx, http.MethodGet, path, token, nil, &products); err != nil {
		return nil, fmt.Errorf("商品一覧の取得に失敗: %w", err)
	}
	return products, nil
}

// Chat 自然言語メッセージを送信
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var resp ChatResponse
	if err := c.doRequest(ctx, http.MethodPost, "/chat", "", req, &resp); err != nil {
		return nil, fmt.Errorf("チャット送信に失敗: %w", err)
	}
	return &resp, nil
}

// ApplyChanges 承認されたコマンドをそのまま転送
func (c *Client) ApplyChanges(ctx context.Context, storeID string, command json.RawMessage) (*ApplyResponse, error) {
	var resp ApplyResponse
	req := ApplyRequest{StoreID: storeID, Command: command}
	if err := c.doRequest(ctx, http.MethodPost, "/apply-changes", "", req, &resp); err != nil {
		return nil, fmt.Errorf("変更の適用に失敗: %w", err)
	}
	return &resp, nil
}

// History 実行済みアクションの一覧を取得
func (c *Client) History(ctx context.Context, storeID string) ([]models.HistoryEntry, error) {
	var entries []models.HistoryEntry
	if err := c.doRequest(ctx, http.MethodGet, "/history/"+url.PathEscape(storeID), "", nil, &entries); err != nil {
		return nil, fmt.Errorf("履歴の取得に失敗: %w", err)
	}
	return entries, nil
}

// Revert 履歴エントリの取り消しを依頼
func (c *Client) Revert(ctx context.Context, id string) error {
	if err := c.doRequest(ctx, http.MethodPost, "/history/revert/"+url.PathEscape(id), "", nil, nil); err != nil {
		return fmt.Errorf("取り消しに失敗: %w", err)
	}
	return nil
}

// OAuthURL OAuthリダイレクト先を取得
func (c *Client) OAuthURL(ctx context.Context) (string, error) {
	var resp oauthURLResponse
	if err := c.doRequest(ctx, http.MethodGet, "/auth/nuvemshop/url", "", nil, &resp); err != nil {
		return "", fmt.Errorf("OAuth URLの取得に失敗: %w", err)
	}
	if resp.URL == "" {
		return "", fmt.Errorf("OAuth URLが空です")
	}
	return resp.URL, nil
}

// Login ストアIDとパスワードでアクセストークンを取得
func (c *Client) Login(ctx context.Context, storeID, password string) (*LoginResponse, error) {
	var resp LoginResponse
	req := LoginRequest{StoreID: storeID, Password: password}
	if err := c.doRequest(ctx, http.MethodPost, "/auth/login", "", req, &resp); err != nil {
		return nil, fmt.Errorf("ログインに失敗: %w", err)
	}
	if resp.StoreID == "" {
		resp.StoreID = storeID
	}
	return &resp, nil
}

func productQuery(limit int, search string) string {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if search != "" {
		q.Set("search", search)
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// doRequest はHTTPリクエストの実行と基本的なレスポンス処理を行う共通メソッドです。
// responseData が nil の場合、ボディは読み捨てます。
func (c *Client) doRequest(ctx context.Context, method, path, token string, requestData, responseData interface{}) (err error) {
	start := time.Now()
	status := 0
	if c.observer != nil {
		defer func() {
			c.observer(method, routeOf(path), status, time.Since(start), err)
		}()
	}

	var body io.Reader
	if requestData != nil {
		requestBody, err := json.Marshal(requestData)
		if err != nil {
			return fmt.Errorf("リクエストのJSON化に失敗: %w", err)
		}
		body = bytes.NewReader(requestBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if requestData != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの実行に失敗: %w", err)
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("レスポンスの読み取りに失敗: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Detail:     parseDetail(respBody),
			Body:       string(respBody),
		}
	}

	if responseData == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, responseData); err != nil {
		return fmt.Errorf("レスポンスのJSON解析に失敗: %w", err)
	}
	return nil
}

// parseDetail はエラーボディから人が読めるメッセージを取り出します。
// detail が文字列以外（バリデーションエラーの配列など）の場合は空を返します。
func parseDetail(body []byte) string {
	var e errorResponse
	if err := json.Unmarshal(body, &e); err != nil {
		return ""
	}
	var detail string
	if len(e.Detail) > 0 && json.Unmarshal(e.Detail, &detail) == nil && detail != "" {
		return detail
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

// routeOf はモニタリング用にIDを含まないルートへ丸めます。
func routeOf(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	for _, prefix := range []string{"/admin/status/", "/products/", "/history/revert/", "/history/"} {
		if strings.HasPrefix(path, prefix) {
			return prefix + ":id"
		}
	}
	return path
}
