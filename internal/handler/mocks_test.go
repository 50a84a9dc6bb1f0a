package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/storefront/internal/admin"
	"github.com/hitoshi/storefront/internal/auth"
	"github.com/hitoshi/storefront/internal/catalog"
	"github.com/hitoshi/storefront/internal/checkout"
	"github.com/hitoshi/storefront/internal/middleware"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/web"
)

// --- モック定義 ---

type mockCatalogService struct {
	listAllFn        func(ctx context.Context) ([]catalog.ProductCard, error)
	listByCategoryFn func(ctx context.Context, alias string) (*model.Category, []catalog.ProductCard, error)
	productByAliasFn func(ctx context.Context, alias string) (*model.ProductWithCategory, error)
	categoriesFn     func(ctx context.Context) ([]model.Category, error)
}

func (m *mockCatalogService) ListAll(ctx context.Context) ([]catalog.ProductCard, error) {
	if m.listAllFn != nil {
		return m.listAllFn(ctx)
	}
	return nil, nil
}

func (m *mockCatalogService) ListByCategory(ctx context.Context, alias string) (*model.Category, []catalog.ProductCard, error) {
	if m.listByCategoryFn != nil {
		return m.listByCategoryFn(ctx, alias)
	}
	return nil, nil, model.NewCategoryNotFoundError(alias)
}

func (m *mockCatalogService) ProductByAlias(ctx context.Context, alias string) (*model.ProductWithCategory, error) {
	if m.productByAliasFn != nil {
		return m.productByAliasFn(ctx, alias)
	}
	return nil, model.NewProductNotFoundError(alias)
}

func (m *mockCatalogService) Categories(ctx context.Context) ([]model.Category, error) {
	if m.categoriesFn != nil {
		return m.categoriesFn(ctx)
	}
	return []model.Category{{ID: 1, Name: "Shoes", Alias: "shoes"}}, nil
}

type mockCartService struct {
	addFn      func(ctx context.Context, cartID string, productID, quantity int64) (*model.CartSnapshot, error)
	snapshotFn func(ctx context.Context, cartID string) (*model.CartSnapshot, error)
}

func (m *mockCartService) Add(ctx context.Context, cartID string, productID, quantity int64) (*model.CartSnapshot, error) {
	if m.addFn != nil {
		return m.addFn(ctx, cartID, productID, quantity)
	}
	return model.NewCartSnapshot(cartID, nil), nil
}

func (m *mockCartService) Snapshot(ctx context.Context, cartID string) (*model.CartSnapshot, error) {
	if m.snapshotFn != nil {
		return m.snapshotFn(ctx, cartID)
	}
	return model.NewCartSnapshot(cartID, nil), nil
}

type mockCheckoutService struct {
	startFn   func(ctx context.Context, cartID string) (*checkout.StartResult, error)
	confirmFn func(ctx context.Context, cartID, remoteSessionID string) (*model.Checkout, error)
	cancelFn  func(ctx context.Context, cartID, checkoutID string) (*model.Checkout, error)
}

func (m *mockCheckoutService) Start(ctx context.Context, cartID string) (*checkout.StartResult, error) {
	if m.startFn != nil {
		return m.startFn(ctx, cartID)
	}
	return nil, model.NewEmptyCartError()
}

func (m *mockCheckoutService) Confirm(ctx context.Context, cartID, remoteSessionID string) (*model.Checkout, error) {
	if m.confirmFn != nil {
		return m.confirmFn(ctx, cartID, remoteSessionID)
	}
	return nil, model.NewCheckoutNotFoundError(remoteSessionID)
}

func (m *mockCheckoutService) Cancel(ctx context.Context, cartID, checkoutID string) (*model.Checkout, error) {
	if m.cancelFn != nil {
		return m.cancelFn(ctx, cartID, checkoutID)
	}
	return nil, model.NewCheckoutNotFoundError(checkoutID)
}

type mockAuthService struct {
	registerFn func(ctx context.Context, in auth.RegisterInput) (*model.Session, error)
	loginFn    func(ctx context.Context, email, password string) (*model.Session, error)
	logoutFn   func(ctx context.Context, sessionID string) error
}

func (m *mockAuthService) Register(ctx context.Context, in auth.RegisterInput) (*model.Session, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, in)
	}
	return &model.Session{ID: "new-session"}, nil
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*model.Session, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return &model.Session{ID: "login-session"}, nil
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

type mockAdminService struct {
	listProductsFn   func(ctx context.Context) ([]model.ProductWithCategory, error)
	listCategoriesFn func(ctx context.Context) ([]model.Category, error)
	getProductFn     func(ctx context.Context, id int64) (*model.Product, error)
	createProductFn  func(ctx context.Context, form admin.ProductForm) (*model.Product, error)
	updateProductFn  func(ctx context.Context, id int64, form admin.ProductForm) (*model.Product, error)
	deleteProductFn  func(ctx context.Context, id int64) error
	createCategoryFn func(ctx context.Context, form admin.CategoryForm) (*model.Category, error)
}

func (m *mockAdminService) ListProducts(ctx context.Context) ([]model.ProductWithCategory, error) {
	if m.listProductsFn != nil {
		return m.listProductsFn(ctx)
	}
	return nil, nil
}

func (m *mockAdminService) ListCategories(ctx context.Context) ([]model.Category, error) {
	if m.listCategoriesFn != nil {
		return m.listCategoriesFn(ctx)
	}
	return []model.Category{{ID: 1, Name: "Shoes", Alias: "shoes"}}, nil
}

func (m *mockAdminService) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	if m.getProductFn != nil {
		return m.getProductFn(ctx, id)
	}
	return nil, model.NewProductNotFoundError("")
}

func (m *mockAdminService) CreateProduct(ctx context.Context, form admin.ProductForm) (*model.Product, error) {
	if m.createProductFn != nil {
		return m.createProductFn(ctx, form)
	}
	return &model.Product{ID: 1, Name: form.Name}, nil
}

func (m *mockAdminService) UpdateProduct(ctx context.Context, id int64, form admin.ProductForm) (*model.Product, error) {
	if m.updateProductFn != nil {
		return m.updateProductFn(ctx, id, form)
	}
	return &model.Product{ID: id, Name: form.Name}, nil
}

func (m *mockAdminService) DeleteProduct(ctx context.Context, id int64) error {
	if m.deleteProductFn != nil {
		return m.deleteProductFn(ctx, id)
	}
	return nil
}

func (m *mockAdminService) CreateCategory(ctx context.Context, form admin.CategoryForm) (*model.Category, error) {
	if m.createCategoryFn != nil {
		return m.createCategoryFn(ctx, form)
	}
	return &model.Category{ID: 1, Name: form.Name}, nil
}

// --- ヘルパー ---

var testCookies = middleware.CookieConfig{}

func newTestPages(t *testing.T, nav NavProvider, carts CartReader) *Pages {
	t.Helper()
	renderer, err := web.NewRenderer("usd")
	if err != nil {
		t.Fatalf("failed to create renderer: %v", err)
	}
	if nav == nil {
		nav = &mockCatalogService{}
	}
	if carts == nil {
		carts = &mockCartService{}
	}
	return NewPages(renderer, nav, carts, testCookies)
}

// newFormRequest はフォーム送信のリクエストを生成し、訪問者のカートIDをコンテキストに設定する。
func newFormRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req.WithContext(middleware.ContextWithCartID(req.Context(), "cart-1"))
}

// flashesFrom はレスポンスに設定されたフラッシュCookieを読み出す。
func flashesFrom(t *testing.T, w *httptest.ResponseRecorder) []web.Flash {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range w.Result().Cookies() {
		req.AddCookie(c)
	}
	return web.PopFlashes(httptest.NewRecorder(), req, testCookies)
}

func assertFlash(t *testing.T, w *httptest.ResponseRecorder, kind, message string) {
	t.Helper()
	flashes := flashesFrom(t, w)
	if len(flashes) != 1 || flashes[0].Kind != kind || flashes[0].Message != message {
		t.Errorf("flashes = %+v, want [%s: %q]", flashes, kind, message)
	}
}

func assertRedirect(t *testing.T, w *httptest.ResponseRecorder, location string) {
	t.Helper()
	if w.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want %d", w.Code, http.StatusSeeOther)
	}
	if got := w.Header().Get("Location"); got != location {
		t.Errorf("Location = %q, want %q", got, location)
	}
}

func assertBodyContains(t *testing.T, w *httptest.ResponseRecorder, substrings ...string) {
	t.Helper()
	body := w.Body.String()
	for _, s := range substrings {
		if !strings.Contains(body, s) {
			t.Errorf("body does not contain %q", s)
		}
	}
}

// withURLParam はchiのURLパラメータをリクエストに設定する。
func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}
