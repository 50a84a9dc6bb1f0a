package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/storefront/internal/metrics"
	"github.com/hitoshi/storefront/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ページ描画
	Pages *Pages

	// ミドルウェア依存
	UserLoader        middleware.UserLoader
	RateLimiter       *middleware.RateLimiter
	CSRF              middleware.CSRFConfig
	Cookies           middleware.CookieConfig
	CartTTL           time.Duration
	CORSAllowedOrigin string
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector

	// 運用
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// 商品閲覧・カート・決済
	CatalogService  CatalogServiceInterface
	CartService     CartServiceInterface
	CheckoutService CheckoutServiceInterface

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 管理
	AdminService AdminServiceInterface
	Currency     string
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Visitor → Session → Logging → RateLimit(General) → CSRF
//
// /health と /metrics はVisitor以降のチェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	store := NewStoreHandler(deps.Pages, deps.CatalogService)
	authHandler := NewAuthHandler(deps.Pages, deps.AuthService, deps.AuthConfig)
	cartHandler := NewCartHandler(deps.Pages, deps.CartService)
	checkoutHandler := NewCheckoutHandler(deps.Pages, deps.CheckoutService)
	adminHandler := NewAdminHandler(deps.Pages, deps.AdminService, deps.Currency)

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewVisitorMiddleware(deps.Cookies, deps.CartTTL))
		r.Use(middleware.NewSessionMiddleware(deps.UserLoader))
		r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewCSRFMiddleware(deps.CSRF))

		// 商品閲覧
		r.Get("/", store.Index)
		r.Get("/category/{alias}", store.Category)
		r.Get("/product/{alias}", store.Product)
		r.Get("/about", store.About)
		r.Get("/contact", store.Contact)

		// 認証（フォーム送信に専用のレート制限を追加）
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.AuthMiddleware())
			r.Get("/register", authHandler.RegisterForm)
			r.Post("/register", authHandler.Register)
			r.Get("/login", authHandler.LoginForm)
			r.Post("/login", authHandler.Login)
		})
		r.Get("/logout", authHandler.Logout)

		// カート
		r.Get("/cart", cartHandler.Show)
		r.Post("/cart/add", cartHandler.Add)
		r.Get("/api/cart", cartHandler.API)

		// 決済
		r.Post("/create-checkout-session", checkoutHandler.Create)
		r.Get("/success", checkoutHandler.Success)
		r.Get("/cancel", checkoutHandler.Cancel)

		// 管理画面
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.NewRequireAdminMiddleware(http.HandlerFunc(deps.Pages.Forbidden)))
			r.Get("/", adminHandler.Index)
			r.Get("/products/new", adminHandler.NewProduct)
			r.Post("/products/new", adminHandler.CreateProduct)
			r.Get("/products/{id}/edit", adminHandler.EditProduct)
			r.Post("/products/{id}/edit", adminHandler.UpdateProduct)
			r.Post("/products/{id}/delete", adminHandler.DeleteProduct)
			r.Get("/categories/new", adminHandler.NewCategory)
			r.Post("/categories/new", adminHandler.CreateCategory)
		})
	})

	r.NotFound(deps.Pages.NotFound)

	return r
}
