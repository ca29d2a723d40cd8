package config

import (
	"fmt"
	"os"
	"strings"

	"bulkedit-admin/pkg/models"

	"gopkg.in/yaml.v3"
)

// ToolCatalogConfig はツールカタログYAMLの構造を定義
type ToolCatalogConfig struct {
	Tools []models.Tool `yaml:"tools"`

	Metadata struct {
		LastUpdated string `yaml:"last_updated"`
		Version     string `yaml:"version"`
	} `yaml:"metadata"`
}

// LoadToolCatalog はTOOL_CATALOG_PATHが指定されていればYAMLからツール一覧を読み込み、
// 指定が無ければ組み込みのカタログを返します。
func LoadToolCatalog() ([]models.Tool, error) {
	path := getEnv("TOOL_CATALOG_PATH", "")
	if path == "" {
		return models.DefaultTools, nil
	}
	return LoadToolCatalogFile(path)
}

// LoadToolCatalogFile は指定したYAMLファイルからツール一覧を読み込みます。
func LoadToolCatalogFile(path string) ([]models.Tool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ツールカタログの読み込みに失敗: %w", err)
	}

	var catalog ToolCatalogConfig
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("YAMLのパースに失敗: %w", err)
	}

	return catalog.validate()
}

func (c *ToolCatalogConfig) validate() ([]models.Tool, error) {
	if len(c.Tools) == 0 {
		return nil, fmt.Errorf("ツールカタログが空です")
	}
	seen := make(map[string]bool, len(c.Tools))
	for i, t := range c.Tools {
		id := strings.TrimSpace(t.ID)
		if id == "" || strings.TrimSpace(t.Title) == "" {
			return nil, fmt.Errorf("ツール %d: id と title は必須です", i+1)
		}
		if seen[id] {
			return nil, fmt.Errorf("ツールIDが重複しています: %s", id)
		}
		seen[id] = true
		c.Tools[i].ID = id
	}
	return c.Tools, nil
}
