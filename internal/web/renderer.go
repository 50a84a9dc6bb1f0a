// Package web はHTMLページの描画とフラッシュメッセージを提供する。
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/money"
)

//go:embed templates/*.html
var templateFS embed.FS

// ページテンプレート名。templates/<name>.html に対応する。
const (
	PageProducts      = "products"
	PageProduct       = "product"
	PageAbout         = "about"
	PageContact       = "contact"
	PageRegister      = "register"
	PageLogin         = "login"
	PageCart          = "cart"
	PageSuccess       = "success"
	PageCancel        = "cancel"
	PageError         = "error"
	PageAdminProducts = "admin_products"
	PageAdminProduct  = "admin_product_form"
	PageAdminCategory = "admin_category_form"
)

var pageNames = []string{
	PageProducts, PageProduct, PageAbout, PageContact, PageRegister, PageLogin,
	PageCart, PageSuccess, PageCancel, PageError,
	PageAdminProducts, PageAdminProduct, PageAdminCategory,
}

// Page はレイアウトと各ページテンプレートに渡す値。
type Page struct {
	Title      string
	User       *model.User
	Categories []model.Category
	CartCount  int64
	CSRFToken  string
	Flashes    []Flash
	Data       any
}

// Renderer は埋め込みテンプレートからページを描画する。
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer は全ページテンプレートをレイアウトと組み合わせてパースする。
// 金額はcurrencyの表記で表示する。
func NewRenderer(currency string) (*Renderer, error) {
	funcs := template.FuncMap{
		"money": func(amount int64) string {
			return money.Format(amount, currency)
		},
		// 商品説明は保存時にサニタイズ済み
		"trustedHTML": func(s string) template.HTML {
			return template.HTML(s)
		},
	}

	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS,
			"templates/layout.html",
			"templates/"+name+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		pages[name] = t
	}

	return &Renderer{pages: pages}, nil
}

// Render はページを描画してステータスコードとともに書き込む。
// 描画に失敗した場合は途中までの出力を送らず500を返す。
func (r *Renderer) Render(w http.ResponseWriter, status int, name string, page *Page) {
	t, ok := r.pages[name]
	if !ok {
		slog.Error("unknown page template", slog.String("template", name))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, page); err != nil {
		slog.Error("failed to render page",
			slog.String("template", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
