package catalog

import (
	"strings"

	"golang.org/x/net/html"
)

// DefaultExcerptLength は商品カードに表示する抜粋の最大文字数。
const DefaultExcerptLength = 140

// Excerpt はサニタイズ済みHTMLからテキストだけを取り出し、maxRunes文字以内に切り詰める。
// 連続する空白は1つにまとめる。切り詰めた場合は末尾に省略記号を付ける。
func Excerpt(sanitizedHTML string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}

	var b strings.Builder
	tokenizer := html.NewTokenizer(strings.NewReader(sanitizedHTML))

loop:
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			break loop
		case html.TextToken:
			b.Write(tokenizer.Text())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			// ブロック要素の境目で単語がつながらないようにする
			b.WriteByte(' ')
		}
	}

	text := []rune(strings.Join(strings.Fields(b.String()), " "))
	if len(text) <= maxRunes {
		return string(text)
	}

	cut := strings.TrimRight(string(text[:maxRunes]), " ")
	if i := strings.LastIndexByte(cut, ' '); i > len(cut)/2 {
		cut = cut[:i]
	}
	return cut + "…"
}
