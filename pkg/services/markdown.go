package services

import (
	"bytes"
	"html"
	"html/template"
	"log"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// markdown は生のHTMLを出力しない設定（WithUnsafe を付けない）なので、
// アシスタントの返答に含まれるタグはエスケープされます。
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
)

// RenderMarkdown はアシスタントの返答をHTMLに変換します。変換に失敗した場合はエスケープしたテキストを返します。
func RenderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(text), &buf); err != nil {
		log.Printf("⚠️ [markdown] render failed: %v", err)
		return template.HTML(strings.ReplaceAll(html.EscapeString(text), "\n", "<br>"))
	}
	return template.HTML(buf.String())
}
