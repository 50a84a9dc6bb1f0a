package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/storefront/internal/catalog"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/web"
)

// CatalogServiceInterface は商品閲覧ハンドラーが必要とするサービスインターフェース。
type CatalogServiceInterface interface {
	ListAll(ctx context.Context) ([]catalog.ProductCard, error)
	ListByCategory(ctx context.Context, alias string) (*model.Category, []catalog.ProductCard, error)
	ProductByAlias(ctx context.Context, alias string) (*model.ProductWithCategory, error)
	Categories(ctx context.Context) ([]model.Category, error)
}

// StoreHandler は商品一覧・詳細と静的ページのHTTPハンドラー。
type StoreHandler struct {
	pages   *Pages
	catalog CatalogServiceInterface
}

// NewStoreHandler はStoreHandlerを生成する。
func NewStoreHandler(pages *Pages, catalog CatalogServiceInterface) *StoreHandler {
	return &StoreHandler{pages: pages, catalog: catalog}
}

// Index は全商品を一覧表示する。
// GET /
func (h *StoreHandler) Index(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListAll(r.Context())
	if err != nil {
		h.pages.RenderError(w, r, err)
		return
	}

	h.pages.Render(w, r, http.StatusOK, web.PageProducts, "", web.ProductListData{
		Heading:  "All products",
		Products: products,
	})
}

// Category はカテゴリに属する商品を一覧表示する。
// GET /category/{alias}
func (h *StoreHandler) Category(w http.ResponseWriter, r *http.Request) {
	category, products, err := h.catalog.ListByCategory(r.Context(), chi.URLParam(r, "alias"))
	if err != nil {
		h.pages.RenderError(w, r, err)
		return
	}

	h.pages.Render(w, r, http.StatusOK, web.PageProducts, category.Name, web.ProductListData{
		Heading:  category.Name,
		Category: category,
		Products: products,
	})
}

// Product は商品詳細を表示する。
// GET /product/{alias}
func (h *StoreHandler) Product(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalog.ProductByAlias(r.Context(), chi.URLParam(r, "alias"))
	if err != nil {
		h.pages.RenderError(w, r, err)
		return
	}

	h.pages.Render(w, r, http.StatusOK, web.PageProduct, product.Name, web.ProductData{Product: product})
}

// About GET /about
func (h *StoreHandler) About(w http.ResponseWriter, r *http.Request) {
	h.pages.Render(w, r, http.StatusOK, web.PageAbout, "About", nil)
}

// Contact GET /contact
func (h *StoreHandler) Contact(w http.ResponseWriter, r *http.Request) {
	h.pages.Render(w, r, http.StatusOK, web.PageContact, "Contact", nil)
}
