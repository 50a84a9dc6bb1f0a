// Package security はアプリケーションのセキュリティ機能を提供する。
//
// 管理画面で入力された商品説明のHTMLをサニタイズし、
// 商品画像URLがストア外部の安全な宛先を指しているかを検証する。
package security

import (
	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService は商品説明HTMLのサニタイズ機能のインターフェースを定義する。
type ContentSanitizerService interface {
	// Sanitize はHTMLコンテンツをサニタイズして安全なHTMLを返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(rawHTML string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのPolicyはスレッドセーフなので共有して使う。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はリッチテキストエディタの出力向けポリシーでサニタイザーを生成する。
// ポリシーの内容:
//   - 許可タグ: p, br, h2〜h4, ul, ol, li, blockquote, pre, code, strong, em, u, s, a, img
//   - 禁止タグ: script, iframe, style および全てのon*イベント属性
//   - aとimgのURL: http/httpsのみ
//   - aタグ: target="_blank" と rel="noopener noreferrer" を自動付与
func NewContentSanitizer() *contentSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "h2", "h3", "h4",
		"ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em", "u", "s",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AllowURLSchemes("http", "https")
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	p.AllowAttrs("src", "alt").OnElements("img")

	return &contentSanitizer{
		policy: p,
	}
}

// Sanitize はHTMLコンテンツをサニタイズして安全なHTMLを返す。
func (s *contentSanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}
