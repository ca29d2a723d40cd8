package services

import (
	"fmt"
	"strings"
	"time"

	"bulkedit-admin/pkg/models"

	"github.com/google/uuid"
	"github.com/sahilm/fuzzy"
)

// DashboardContext はツール未選択時にチャットへ送るコンテキストです。
const DashboardContext = "dashboard"

// ToolService はサイドバーの一括編集ツールの選択状態を扱います。
type ToolService struct {
	store SessionStore
	tools []models.Tool
}

// NewToolService は新しいToolServiceを生成します。
func NewToolService(store SessionStore, tools []models.Tool) *ToolService {
	if len(tools) == 0 {
		tools = models.DefaultTools
	}
	return &ToolService{store: store, tools: tools}
}

// Catalog はツールの固定カタログを返します。
func (s *ToolService) Catalog() []models.Tool {
	return s.tools
}

// Lookup はIDでツールを返します。
func (s *ToolService) Lookup(id string) (models.Tool, bool) {
	return models.FindTool(s.tools, id)
}

// Search はタイトルのあいまい検索を行います。空のクエリなら全件を返します。
func (s *ToolService) Search(query string) []models.Tool {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.tools
	}

	targets := make([]string, len(s.tools))
	for i, t := range s.tools {
		targets[i] = t.Title
	}

	matches := fuzzy.Find(query, targets)
	result := make([]models.Tool, len(matches))
	for i, match := range matches {
		result[i] = s.tools[match.Index]
	}
	return result
}

// Select はツールを有効にします。同時に有効なツールは1つだけで、選択するとフィルター状態は消去されます。
// toolID が空の場合はダッシュボードに戻ります。どちらの場合もモード切替のバナーを追加します。
func (s *ToolService) Select(sessionID, toolID string) (*models.Session, error) {
	toolID = strings.TrimSpace(toolID)

	var banner string
	if toolID == "" {
		banner = "Modo painel: converse sobre a sua loja."
	} else {
		tool, ok := s.Lookup(toolID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTool, toolID)
		}
		banner = fmt.Sprintf("Modo de edição: %s", tool.Title)
	}

	return s.store.Update(sessionID, func(sess *models.Session) error {
		if sess.ActiveToolID == toolID {
			return nil
		}
		sess.ActiveToolID = toolID
		sess.Filter = nil
		sess.Filtered = nil
		sess.Messages = append(sess.Messages, models.ChatMessage{
			ID:        uuid.New().String(),
			Role:      models.RoleAssistant,
			Text:      banner,
			System:    true,
			CreatedAt: time.Now(),
		})
		return nil
	})
}

// ChatContext は有効なツールのタイトル、無ければ "dashboard" を返します。
func (s *ToolService) ChatContext(sess *models.Session) string {
	if sess.ActiveToolID == "" {
		return DashboardContext
	}
	if tool, ok := s.Lookup(sess.ActiveToolID); ok {
		return tool.Title
	}
	return DashboardContext
}
