package handlers

import (
	"fmt"
	"html/template"

	"bulkedit-admin/pkg/services"
	"bulkedit-admin/web"

	"github.com/shopspring/decimal"
)

// TemplateFuncs は画面テンプレートで使う関数です。
func TemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"markdown": services.RenderMarkdown,
		"preview":  commandPreview,
		"price": func(d decimal.Decimal) string {
			return d.StringFixed(2)
		},
	}
}

// LoadTemplates は埋め込まれたテンプレートを読み込みます。
func LoadTemplates() (*template.Template, error) {
	tmpl, err := template.New("").Funcs(TemplateFuncs()).ParseFS(web.Templates, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("テンプレートの読み込みに失敗: %w", err)
	}
	return tmpl, nil
}
