package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/storefront/internal/checkout"
	"github.com/hitoshi/storefront/internal/middleware"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/web"
)

// CheckoutServiceInterface はチェックアウトハンドラーが必要とするサービスインターフェース。
type CheckoutServiceInterface interface {
	Start(ctx context.Context, cartID string) (*checkout.StartResult, error)
	Confirm(ctx context.Context, cartID, remoteSessionID string) (*model.Checkout, error)
	Cancel(ctx context.Context, cartID, checkoutID string) (*model.Checkout, error)
}

// CheckoutHandler は決済ページへの誘導と戻り先ページのHTTPハンドラー。
type CheckoutHandler struct {
	pages   *Pages
	service CheckoutServiceInterface
}

// NewCheckoutHandler はCheckoutHandlerを生成する。
func NewCheckoutHandler(pages *Pages, service CheckoutServiceInterface) *CheckoutHandler {
	return &CheckoutHandler{pages: pages, service: service}
}

// Create はチェックアウトセッションを作成し、決済ページへ303でリダイレクトする。
// 決済代行サービスのエラーは本文にそのままのメッセージを載せて502で返す。
// POST /create-checkout-session
func (h *CheckoutHandler) Create(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Start(r.Context(), middleware.CartIDFromContext(r.Context()))
	if err != nil {
		appErr, ok := asAppError(err)
		switch {
		case ok && appErr.Code == model.ErrCodeEmptyCart:
			h.pages.Flash(w, web.FlashError, appErr.Message)
			redirect(w, r, "/cart")
		case ok && appErr.Code == model.ErrCodePaymentFailed:
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(appErr.Message))
		default:
			h.pages.RenderError(w, r, err)
		}
		return
	}

	redirect(w, r, result.RedirectURL)
}

// Success は決済完了後の戻り先。決済済みであればカートを空にする。
// GET /success?session_id=...
func (h *CheckoutHandler) Success(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		h.pages.RenderError(w, r, model.NewCheckoutNotFoundError(""))
		return
	}

	co, err := h.service.Confirm(r.Context(), middleware.CartIDFromContext(r.Context()), sessionID)
	if err != nil {
		h.pages.RenderError(w, r, err)
		return
	}

	h.pages.Render(w, r, http.StatusOK, web.PageSuccess, "Thank you", web.SuccessData{
		Paid:     co.Status == model.CheckoutStatusPaid,
		Checkout: co,
	})
}

// Cancel は決済キャンセル時の戻り先。カートはそのまま残す。
// チェックアウトIDが見つからない場合もキャンセルページは表示する。
// GET /cancel?checkout=...
func (h *CheckoutHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var co *model.Checkout
	if checkoutID := r.URL.Query().Get("checkout"); checkoutID != "" {
		var err error
		co, err = h.service.Cancel(r.Context(), middleware.CartIDFromContext(r.Context()), checkoutID)
		if err != nil {
			if _, ok := asAppError(err); !ok {
				h.pages.RenderError(w, r, err)
				return
			}
			slog.Warn("checkout cancel ignored",
				slog.String("checkout_id", checkoutID),
				slog.String("error", err.Error()),
			)
		}
	}

	h.pages.Render(w, r, http.StatusOK, web.PageCancel, "Checkout cancelled", web.CancelData{Checkout: co})
}
