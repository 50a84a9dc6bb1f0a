package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/storefront/internal/metrics"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/payment"
	"github.com/hitoshi/storefront/internal/repository"
)

// sessionIDPlaceholder は決済代行サービスが戻り先URLに埋め込むセッションIDの置換子。
const sessionIDPlaceholder = "{CHECKOUT_SESSION_ID}"

// CartAccessor はチェックアウトが必要とするカート操作。
type CartAccessor interface {
	Snapshot(ctx context.Context, cartID string) (*model.CartSnapshot, error)
	Clear(ctx context.Context, cartID string) error
}

// StartResult はチェックアウト開始の結果。
type StartResult struct {
	CheckoutID  string
	RedirectURL string
}

// Service はチェックアウトの開始・確定・キャンセルを扱う。
type Service struct {
	carts     CartAccessor
	checkouts repository.CheckoutRepository
	gateway   payment.Gateway
	currency  string
	baseURL   string
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

// NewService はServiceを生成する。baseURLは戻り先URLの組み立てに使う。
func NewService(
	carts CartAccessor,
	checkouts repository.CheckoutRepository,
	gateway payment.Gateway,
	currency, baseURL string,
	m metrics.MetricsCollector,
) *Service {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Service{
		carts:     carts,
		checkouts: checkouts,
		gateway:   gateway,
		currency:  currency,
		baseURL:   baseURL,
		metrics:   m,
		logger:    slog.Default(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Start はカートの内容でチェックアウトセッションを作成し、決済ページのURLを返す。
// 空のカートはEMPTY_CART、決済代行サービスのエラーはPAYMENT_FAILED（メッセージは原文のまま）となる。
// どちらの場合もカートは変更しない。
func (s *Service) Start(ctx context.Context, cartID string) (*StartResult, error) {
	snapshot, err := s.carts.Snapshot(ctx, cartID)
	if err != nil {
		return nil, fmt.Errorf("failed to read cart: %w", err)
	}
	if snapshot.IsEmpty() {
		s.metrics.RecordCheckoutFailed("empty_cart")
		return nil, model.NewEmptyCartError()
	}

	now := s.now()
	checkout := &model.Checkout{
		ID:          s.newID(),
		CartID:      cartID,
		Status:      model.CheckoutStatusPending,
		AmountTotal: snapshot.Total,
		Currency:    s.currency,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.checkouts.Create(ctx, checkout); err != nil {
		return nil, fmt.Errorf("failed to record checkout: %w", err)
	}

	req := BuildSessionRequest(snapshot, s.currency, RedirectURLs{
		Success: s.baseURL + "/success?session_id=" + sessionIDPlaceholder,
		Cancel:  s.baseURL + "/cancel?checkout=" + url.QueryEscape(checkout.ID),
	})
	req.Metadata = map[string]string{"checkout_id": checkout.ID}

	session, err := s.gateway.CreateCheckoutSession(ctx, req)
	if err != nil {
		s.metrics.RecordCheckoutFailed("gateway")
		s.logger.Error("failed to create checkout session",
			slog.String("checkout_id", checkout.ID),
			slog.String("cart_id", cartID),
			slog.String("error", err.Error()),
		)
		if _, terr := s.checkouts.Transition(ctx, checkout.ID, model.CheckoutStatusPending, model.CheckoutStatusCancelled, s.now()); terr != nil {
			s.logger.Warn("failed to close checkout after gateway error",
				slog.String("checkout_id", checkout.ID),
				slog.String("error", terr.Error()),
			)
		}
		return nil, model.NewPaymentFailedError(payment.ErrorMessage(err))
	}

	// 決済ページは作成済みのため、記録に失敗しても誘導は続ける。
	// 戻り先ではセッションのメタデータからチェックアウトを特定する。
	if err := s.checkouts.SetRemoteSessionID(ctx, checkout.ID, session.ID, s.now()); err != nil {
		s.logger.Error("failed to record remote session",
			slog.String("checkout_id", checkout.ID),
			slog.String("session_id", session.ID),
			slog.String("error", err.Error()),
		)
	}
	s.metrics.RecordCheckoutCreated()

	s.logger.Info("checkout session created",
		slog.String("checkout_id", checkout.ID),
		slog.String("session_id", session.ID),
		slog.Int("line_items", len(snapshot.Items)),
		slog.Int64("amount_total", snapshot.Total),
	)

	return &StartResult{CheckoutID: checkout.ID, RedirectURL: session.URL}, nil
}

// Confirm は決済完了ページから呼ばれ、決済済みであればカートを空にしてチェックアウトを確定する。
// カートを空にできるまでは確定しないため、途中で失敗しても再訪問でやり直せる。
// 未決済の場合はカートを変更せず、保留中のチェックアウトをそのまま返す。
// 他の訪問者のカートに属するセッションはCHECKOUT_NOT_FOUNDとして扱う。
func (s *Service) Confirm(ctx context.Context, cartID, remoteSessionID string) (*model.Checkout, error) {
	checkout, err := s.checkouts.FindByRemoteSessionID(ctx, remoteSessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find checkout: %w", err)
	}
	if checkout != nil && checkout.CartID != cartID {
		return nil, model.NewCheckoutNotFoundError(remoteSessionID)
	}
	if checkout != nil && checkout.Status == model.CheckoutStatusPaid {
		return checkout, nil
	}

	session, err := s.gateway.GetCheckoutSession(ctx, remoteSessionID)
	if err != nil {
		if checkout == nil {
			return nil, model.NewCheckoutNotFoundError(remoteSessionID)
		}
		return nil, model.NewPaymentFailedError(payment.ErrorMessage(err))
	}
	if session.ClientReferenceID != "" && session.ClientReferenceID != cartID {
		return nil, model.NewCheckoutNotFoundError(remoteSessionID)
	}

	if checkout == nil {
		checkout, err = s.checkoutFromMetadata(ctx, session)
		if err != nil {
			return nil, err
		}
		if checkout == nil || checkout.CartID != cartID {
			return nil, model.NewCheckoutNotFoundError(remoteSessionID)
		}
		if checkout.Status == model.CheckoutStatusPaid {
			return checkout, nil
		}
	}

	if !session.Paid {
		return checkout, nil
	}

	if err := s.carts.Clear(ctx, cartID); err != nil {
		return nil, fmt.Errorf("failed to clear cart: %w", err)
	}

	// 期限切れやキャンセル済みでも決済が完了していれば確定する
	changed, err := s.checkouts.Transition(ctx, checkout.ID, checkout.Status, model.CheckoutStatusPaid, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to mark checkout paid: %w", err)
	}
	if changed {
		s.metrics.RecordCheckoutFinished(string(model.CheckoutStatusPaid))
		s.logger.Info("checkout paid",
			slog.String("checkout_id", checkout.ID),
			slog.String("session_id", remoteSessionID),
		)
	}
	checkout.Status = model.CheckoutStatusPaid

	return checkout, nil
}

// checkoutFromMetadata はリモートセッションIDが記録されていないチェックアウトを
// セッションのメタデータから探し、見つかればリモートセッションIDを記録し直す。
func (s *Service) checkoutFromMetadata(ctx context.Context, session *payment.Session) (*model.Checkout, error) {
	id := session.Metadata["checkout_id"]
	if id == "" {
		return nil, nil
	}
	checkout, err := s.checkouts.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find checkout: %w", err)
	}
	if checkout == nil || checkout.RemoteSessionID != "" {
		return nil, nil
	}

	if err := s.checkouts.SetRemoteSessionID(ctx, checkout.ID, session.ID, s.now()); err != nil {
		s.logger.Warn("failed to record remote session on return",
			slog.String("checkout_id", checkout.ID),
			slog.String("session_id", session.ID),
			slog.String("error", err.Error()),
		)
	} else {
		checkout.RemoteSessionID = session.ID
	}
	return checkout, nil
}

// Cancel はキャンセルページから呼ばれ、保留中のチェックアウトをキャンセル済みにする。
// カートはそのまま残す。
func (s *Service) Cancel(ctx context.Context, cartID, checkoutID string) (*model.Checkout, error) {
	checkout, err := s.checkouts.FindByID(ctx, checkoutID)
	if err != nil {
		return nil, fmt.Errorf("failed to find checkout: %w", err)
	}
	if checkout == nil || checkout.CartID != cartID {
		return nil, model.NewCheckoutNotFoundError(checkoutID)
	}

	changed, err := s.checkouts.Transition(ctx, checkout.ID, model.CheckoutStatusPending, model.CheckoutStatusCancelled, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to cancel checkout: %w", err)
	}
	if changed {
		checkout.Status = model.CheckoutStatusCancelled
		s.metrics.RecordCheckoutFinished(string(model.CheckoutStatusCancelled))
	}

	return checkout, nil
}

// ExpireStale はmaxAgeより古い保留中のチェックアウトを期限切れにし、件数を返す。
func (s *Service) ExpireStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	now := s.now()
	n, err := s.checkouts.ExpirePending(ctx, now.Add(-maxAge), now)
	if err != nil {
		return 0, fmt.Errorf("failed to expire checkouts: %w", err)
	}
	if n > 0 {
		s.metrics.RecordCheckoutsExpired(n)
	}
	return n, nil
}
