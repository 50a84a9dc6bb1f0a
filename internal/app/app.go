package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/storefront/internal/admin"
	"github.com/hitoshi/storefront/internal/auth"
	"github.com/hitoshi/storefront/internal/cart"
	"github.com/hitoshi/storefront/internal/catalog"
	"github.com/hitoshi/storefront/internal/checkout"
	"github.com/hitoshi/storefront/internal/config"
	"github.com/hitoshi/storefront/internal/database"
	"github.com/hitoshi/storefront/internal/handler"
	"github.com/hitoshi/storefront/internal/logger"
	"github.com/hitoshi/storefront/internal/metrics"
	"github.com/hitoshi/storefront/internal/middleware"
	"github.com/hitoshi/storefront/internal/payment"
	"github.com/hitoshi/storefront/internal/repository"
	"github.com/hitoshi/storefront/internal/security"
	"github.com/hitoshi/storefront/internal/web"
	"github.com/hitoshi/storefront/internal/worker/cleanup"
)

// imageProbeTimeout は商品画像URLの到達確認のタイムアウト。
const imageProbeTimeout = 5 * time.Second

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップしてから、環境変数からConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, os.Getenv("LOG_LEVEL"))

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// .env由来のLOG_LEVELを反映し直す
	logger.SetupDefault(w, cfg.LogLevel)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("cart_store", cfg.CartStore),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// openDatabase はDB接続を開いて疎通を確認し、未適用のマイグレーションを適用する。
func openDatabase(cfg *config.Config) (*sql.DB, database.Dialect, error) {
	db, dialect, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, "", fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := database.RunMigrations(db, dialect); err != nil {
		db.Close()
		return nil, "", fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database connection established",
		slog.String("dialect", string(dialect)),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)
	return db, dialect, nil
}

// newCartStore はCART_STOREの設定に応じたカートストアを生成する。
// redisの場合は疎通確認まで行う。返す関数で接続を閉じる。
func newCartStore(ctx context.Context, cfg *config.Config) (cart.Store, func(), error) {
	if cfg.CartStore != "redis" {
		return cart.NewMemoryStore(cfg.CartTTL), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	slog.Info("redis cart store connected", slog.String("addr", cfg.RedisAddr))
	return cart.NewRedisStore(client, cfg.CartTTL), func() { client.Close() }, nil
}

// services はserveとworkerで共有するドメインサービス群。
type services struct {
	sessions repository.SessionRepository
	auth     *auth.Service
	catalog  *catalog.Service
	cart     *cart.Service
	checkout *checkout.Service
	admin    *admin.Service
}

// newServices はリポジトリと決済ゲートウェイを組み立て、全ドメインサービスを生成する。
func newServices(cfg *config.Config, db *sql.DB, store cart.Store, gateway payment.Gateway, m metrics.MetricsCollector) *services {
	// 1. リポジトリの初期化
	userRepo := repository.NewSQLUserRepo(db)
	sessionRepo := repository.NewSQLSessionRepo(db)
	categoryRepo := repository.NewSQLCategoryRepo(db)
	productRepo := repository.NewSQLProductRepo(db)
	checkoutRepo := repository.NewSQLCheckoutRepo(db)

	// 2. ドメインサービスの初期化
	authService := auth.NewService(userRepo, sessionRepo, auth.ServiceConfig{
		SessionMaxAge: cfg.SessionMaxAge,
		AdminEmails:   cfg.AdminEmails,
	})
	catalogService := catalog.NewService(productRepo, categoryRepo, catalog.DefaultNavTTL)
	cartService := cart.NewService(store, productRepo, m)
	checkoutService := checkout.NewService(cartService, checkoutRepo, gateway, cfg.Currency, cfg.BaseURL, m)

	// 3. 管理サービスの初期化（カテゴリ変更時にナビゲーションのキャッシュを破棄する）
	mapping := payment.NewProductMapping(cfg.PaymentProductMap, cfg.PaymentCatchAllProduct)
	adminService := admin.NewService(
		productRepo, categoryRepo, gateway, mapping,
		security.NewContentSanitizer(),
		security.NewImageGuard(imageProbeTimeout),
		catalogService,
		admin.Config{Currency: cfg.Currency, ProbeImages: cfg.ImageProbe},
	)

	return &services{
		sessions: sessionRepo,
		auth:     authService,
		catalog:  catalogService,
		cart:     cartService,
		checkout: checkoutService,
		admin:    adminService,
	}
}

// newGateway はStripeゲートウェイをタイムアウトとサーキットブレーカーで包んで返す。
func newGateway(cfg *config.Config, m metrics.MetricsCollector) payment.Gateway {
	return payment.NewGuardedGateway(
		payment.NewStripeGateway(cfg.PaymentSecretKey, nil),
		payment.DefaultGuardSettings(cfg.PaymentTimeout),
		m,
	)
}

// newMetrics はプロセス・Goランタイムの標準コレクタを含むレジストリとCollectorを生成する。
func newMetrics() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// newHandler は全依存関係をワイヤリングしたHTTPハンドラーを返す。
// 返すRateLimiterは呼び出し側でStopすること。
func newHandler(cfg *config.Config, db *sql.DB, svc *services, m metrics.MetricsCollector, metricsHandler http.Handler) (http.Handler, *middleware.RateLimiter, error) {
	renderer, err := web.NewRenderer(cfg.Currency)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load templates: %w", err)
	}

	cookies := middleware.CookieConfig{
		Secure: cfg.CookieSecure,
		Domain: cfg.CookieDomain,
	}
	pages := handler.NewPages(renderer, svc.catalog, svc.cart, cookies)

	// configのレート制限はreq/min単位なのでreq/secに変換して設定する
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitAuth),
	)

	deps := &handler.RouterDeps{
		Pages:       pages,
		UserLoader:  svc.auth,
		RateLimiter: rateLimiter,
		CSRF: middleware.CSRFConfig{
			Secret:       cfg.SessionSecret,
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		Cookies:           cookies,
		CartTTL:           cfg.CartTTL,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		Logger:            slog.Default(),
		Metrics:           m,

		HealthChecker:  db,
		MetricsHandler: metricsHandler,

		CatalogService:  svc.catalog,
		CartService:     svc.cart,
		CheckoutService: svc.checkout,

		AuthService: svc.auth,
		AuthConfig: handler.AuthHandlerConfig{
			Cookies:       cookies,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		AdminService: svc.admin,
		Currency:     cfg.Currency,
	}

	return handler.NewRouter(deps), rateLimiter, nil
}

// runServe はWebサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされる（SIGINT/SIGTERM）とグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. DB接続とマイグレーション
	db, _, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. カートストア
	store, closeStore, err := newCartStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	// 3. メトリクスとドメインサービス
	reg, collector := newMetrics()
	svc := newServices(cfg, db, store, newGateway(cfg, collector), collector)

	// 4. ルーターの構築
	router, rateLimiter, err := newHandler(cfg, db, svc, collector, metrics.Handler(reg))
	if err != nil {
		return err
	}
	defer rateLimiter.Stop()

	// 5. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("web server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	case <-ctx.Done():
	}
	slog.Info("shutting down web server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("web server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 期限切れセッションの削除と保留中チェックアウトの打ち切りを定期実行する。
// ctxがキャンセルされるまでブロックする。
func runWorker(ctx context.Context, cfg *config.Config) error {
	db, _, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	store, closeStore, err := newCartStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	// ワーカーはスクレイプされないため、メトリクスは記録しない
	svc := newServices(cfg, db, store, newGateway(cfg, metrics.Nop{}), metrics.Nop{})

	job := cleanup.NewCleanupJob(svc.sessions, svc.checkout, slog.Default())
	job.CheckoutExpiry = cfg.CheckoutExpiry

	slog.Info("worker starting",
		slog.Duration("checkout_expiry", cfg.CheckoutExpiry),
	)

	job.Start(ctx, time.Hour)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	db, dialect, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := database.RunMigrations(db, dialect); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
// SQLiteのファイルパスは認証情報を含まないためそのまま返す。
func maskDatabaseURL(url string) string {
	if strings.HasPrefix(url, "sqlite://") {
		return url
	}
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
