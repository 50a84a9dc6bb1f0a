package payment

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v76"

	"github.com/hitoshi/storefront/internal/metrics"
)

// GuardSettings はGuardedGatewayの動作設定。
type GuardSettings struct {
	// Timeout は1回の呼び出しのタイムアウト。
	Timeout time.Duration
	// FailureThreshold は回路を開くまでの連続失敗回数。
	FailureThreshold uint32
	// OpenTimeout は回路を開いてから半開状態へ移るまでの時間。
	OpenTimeout time.Duration
}

// DefaultGuardSettings は既定の設定を返す。
func DefaultGuardSettings(timeout time.Duration) GuardSettings {
	return GuardSettings{
		Timeout:          timeout,
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
	}
}

// GuardedGateway はGatewayの呼び出しにタイムアウトとサーキットブレーカーを適用する。
// 決済代行サービスの障害時は、回路が開いている間ErrUnavailableを即座に返す。
type GuardedGateway struct {
	inner   Gateway
	timeout time.Duration
	cb      *gobreaker.CircuitBreaker[any]
	metrics metrics.MetricsCollector
}

// NewGuardedGateway はGuardedGatewayを生成する。
func NewGuardedGateway(inner Gateway, settings GuardSettings, m metrics.MetricsCollector) *GuardedGateway {
	if m == nil {
		m = metrics.Nop{}
	}
	threshold := settings.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "payment",
		MaxRequests: 1,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: isBreakerSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("payment circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})

	return &GuardedGateway{
		inner:   inner,
		timeout: settings.Timeout,
		cb:      cb,
		metrics: m,
	}
}

// isBreakerSuccess はリクエスト内容起因のエラー（4xx）を回路の失敗として数えない。
func isBreakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return stripeErr.HTTPStatusCode >= 400 && stripeErr.HTTPStatusCode < 500 &&
			stripeErr.HTTPStatusCode != 429
	}
	return false
}

// guard はタイムアウト付きコンテキストでfnをブレーカー経由で実行する。
func guard[T any](g *GuardedGateway, ctx context.Context, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	start := time.Now()
	defer func() {
		g.metrics.RecordPaymentLatency(operation, time.Since(start))
	}()

	result, err := g.cb.Execute(func() (any, error) {
		callCtx := ctx
		if g.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}
		return fn(callCtx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return zero, ErrUnavailable
	}
	if err != nil {
		return zero, err
	}
	v, _ := result.(T)
	return v, nil
}

// CreateCheckoutSession はホスト型チェックアウトのセッションを作成する。
func (g *GuardedGateway) CreateCheckoutSession(ctx context.Context, req *SessionRequest) (*Session, error) {
	return guard(g, ctx, "create_session", func(ctx context.Context) (*Session, error) {
		return g.inner.CreateCheckoutSession(ctx, req)
	})
}

// GetCheckoutSession はセッションの現在の状態を取得する。
func (g *GuardedGateway) GetCheckoutSession(ctx context.Context, id string) (*Session, error) {
	return guard(g, ctx, "get_session", func(ctx context.Context) (*Session, error) {
		return g.inner.GetCheckoutSession(ctx, id)
	})
}

// CreateProduct はリモート商品を作成する。
func (g *GuardedGateway) CreateProduct(ctx context.Context, in ProductInput) (string, error) {
	return guard(g, ctx, "create_product", func(ctx context.Context) (string, error) {
		return g.inner.CreateProduct(ctx, in)
	})
}

// ArchiveProduct はリモート商品を無効化する。
func (g *GuardedGateway) ArchiveProduct(ctx context.Context, productID string) error {
	_, err := guard(g, ctx, "archive_product", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, g.inner.ArchiveProduct(ctx, productID)
	})
	return err
}

// CreatePrice はリモート価格を作成する。
func (g *GuardedGateway) CreatePrice(ctx context.Context, productID string, unitAmount int64, currency string) (string, error) {
	return guard(g, ctx, "create_price", func(ctx context.Context) (string, error) {
		return g.inner.CreatePrice(ctx, productID, unitAmount, currency)
	})
}

// DeactivatePrice はリモート価格を無効化する。
func (g *GuardedGateway) DeactivatePrice(ctx context.Context, priceID string) error {
	_, err := guard(g, ctx, "deactivate_price", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, g.inner.DeactivatePrice(ctx, priceID)
	})
	return err
}

// State はサーキットブレーカーの現在の状態を返す。
func (g *GuardedGateway) State() gobreaker.State {
	return g.cb.State()
}

var _ Gateway = (*GuardedGateway)(nil)
