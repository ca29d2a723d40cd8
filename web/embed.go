// Package web は管理画面のHTMLテンプレートをバイナリに埋め込みます。
package web

import "embed"

//go:embed templates/*.html
var Templates embed.FS
