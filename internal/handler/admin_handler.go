package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/storefront/internal/admin"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/web"
)

// AdminServiceInterface は管理画面ハンドラーが必要とするサービスインターフェース。
type AdminServiceInterface interface {
	ListProducts(ctx context.Context) ([]model.ProductWithCategory, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
	GetProduct(ctx context.Context, id int64) (*model.Product, error)
	CreateProduct(ctx context.Context, form admin.ProductForm) (*model.Product, error)
	UpdateProduct(ctx context.Context, id int64, form admin.ProductForm) (*model.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	CreateCategory(ctx context.Context, form admin.CategoryForm) (*model.Category, error)
}

// AdminHandler は商品カタログ管理のHTTPハンドラー。
// 管理者権限の確認はRequireAdminMiddlewareで行う。
type AdminHandler struct {
	pages    *Pages
	service  AdminServiceInterface
	currency string
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(pages *Pages, service AdminServiceInterface, currency string) *AdminHandler {
	return &AdminHandler{pages: pages, service: service, currency: currency}
}

// Index は管理用の商品一覧を表示する。
// GET /admin
func (h *AdminHandler) Index(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context())
	if err != nil {
		h.pages.RenderError(w, r, err)
		return
	}
	h.pages.Render(w, r, http.StatusOK, web.PageAdminProducts, "Admin", web.AdminProductsData{Products: products})
}

// NewProduct GET /admin/products/new
func (h *AdminHandler) NewProduct(w http.ResponseWriter, r *http.Request) {
	h.renderProductForm(w, r, http.StatusOK, "/admin/products/new", false, admin.ProductForm{}, nil)
}

// CreateProduct は商品を登録してトップページへ戻す。
// POST /admin/products/new
func (h *AdminHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	form := productFormFromRequest(r)

	product, err := h.service.CreateProduct(r.Context(), form)
	if err != nil {
		h.handleFormError(w, r, "/admin/products/new", false, form, err)
		return
	}

	h.pages.Flash(w, web.FlashInfo, product.Name+" was added.")
	redirect(w, r, "/")
}

// EditProduct GET /admin/products/{id}/edit
func (h *AdminHandler) EditProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}

	product, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		h.pages.RenderError(w, r, err)
		return
	}

	h.renderProductForm(w, r, http.StatusOK, editPath(id), true, admin.FormFromProduct(product, h.currency), nil)
}

// UpdateProduct は商品を更新して商品詳細ページへ戻す。
// POST /admin/products/{id}/edit
func (h *AdminHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}
	form := productFormFromRequest(r)

	product, err := h.service.UpdateProduct(r.Context(), id, form)
	if err != nil {
		h.handleFormError(w, r, editPath(id), true, form, err)
		return
	}

	h.pages.Flash(w, web.FlashInfo, product.Name+" was updated.")
	redirect(w, r, "/product/"+product.Alias)
}

// DeleteProduct POST /admin/products/{id}/delete
func (h *AdminHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteProduct(r.Context(), id); err != nil {
		h.pages.RenderError(w, r, err)
		return
	}

	h.pages.Flash(w, web.FlashInfo, "Product deleted.")
	redirect(w, r, "/admin")
}

// NewCategory GET /admin/categories/new
func (h *AdminHandler) NewCategory(w http.ResponseWriter, r *http.Request) {
	h.pages.Render(w, r, http.StatusOK, web.PageAdminCategory, "Add category", web.AdminCategoryFormData{})
}

// CreateCategory POST /admin/categories/new
func (h *AdminHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	form := admin.CategoryForm{
		Name:        r.PostFormValue("name"),
		Description: r.PostFormValue("description"),
	}

	category, err := h.service.CreateCategory(r.Context(), form)
	if err != nil {
		appErr, ok := asAppError(err)
		if ok && appErr.Fields != nil {
			h.pages.Render(w, r, statusForAppError(appErr), web.PageAdminCategory, "Add category", web.AdminCategoryFormData{
				Form:   form,
				Errors: appErr.Fields,
			})
			return
		}
		h.pages.RenderError(w, r, err)
		return
	}

	h.pages.Flash(w, web.FlashInfo, category.Name+" was added.")
	redirect(w, r, "/admin")
}

// handleFormError は入力エラーと決済代行サービスのエラーをフォーム上に表示し、
// それ以外はエラーページを描画する。
func (h *AdminHandler) handleFormError(w http.ResponseWriter, r *http.Request, action string, editing bool, form admin.ProductForm, err error) {
	appErr, ok := asAppError(err)
	switch {
	case ok && appErr.Fields != nil:
		h.renderProductForm(w, r, statusForAppError(appErr), action, editing, form, appErr.Fields)
	case ok && appErr.Code == model.ErrCodePaymentFailed:
		h.renderProductForm(w, r, http.StatusBadGateway, action, editing, form, map[string]string{"form": appErr.Message})
	default:
		h.pages.RenderError(w, r, err)
	}
}

func (h *AdminHandler) renderProductForm(w http.ResponseWriter, r *http.Request, status int, action string, editing bool, form admin.ProductForm, errs map[string]string) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		h.pages.RenderError(w, r, err)
		return
	}

	title := "Add product"
	if editing {
		title = "Edit product"
	}
	h.pages.Render(w, r, status, web.PageAdminProduct, title, web.AdminProductFormData{
		Action:     action,
		Editing:    editing,
		Form:       form,
		Categories: categories,
		Errors:     errs,
	})
}

// productID はURLの商品IDを読み取る。不正な値の場合は404を描画してfalseを返す。
func (h *AdminHandler) productID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.pages.RenderError(w, r, model.NewProductNotFoundError(raw))
		return 0, false
	}
	return id, true
}

func productFormFromRequest(r *http.Request) admin.ProductForm {
	return admin.ProductForm{
		Name:        r.PostFormValue("name"),
		Price:       r.PostFormValue("price"),
		Stock:       r.PostFormValue("stock"),
		ImageURL:    r.PostFormValue("image_url"),
		Description: r.PostFormValue("description"),
		CategoryID:  r.PostFormValue("category_id"),
	}
}

func editPath(id int64) string {
	return "/admin/products/" + strconv.FormatInt(id, 10) + "/edit"
}
