// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/storefront/internal/middleware"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/web"
)

// NavProvider はナビゲーションに表示するカテゴリを返す。
type NavProvider interface {
	Categories(ctx context.Context) ([]model.Category, error)
}

// CartReader はヘッダーのカート点数表示のためにカートを読む。
type CartReader interface {
	Snapshot(ctx context.Context, cartID string) (*model.CartSnapshot, error)
}

// Pages は全ページ共通の値（ユーザー、ナビゲーション、カート点数、CSRFトークン、フラッシュ）を
// 組み立ててページを描画する。
type Pages struct {
	renderer *web.Renderer
	nav      NavProvider
	carts    CartReader
	cookies  middleware.CookieConfig
}

// NewPages はPagesを生成する。
func NewPages(renderer *web.Renderer, nav NavProvider, carts CartReader, cookies middleware.CookieConfig) *Pages {
	return &Pages{
		renderer: renderer,
		nav:      nav,
		carts:    carts,
		cookies:  cookies,
	}
}

// Render はページを描画する。ナビゲーションとカート点数の取得に失敗しても描画は続ける。
func (p *Pages) Render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	ctx := r.Context()
	page := &web.Page{
		Title:     title,
		User:      middleware.UserFromContext(ctx),
		CSRFToken: middleware.CSRFTokenFromContext(ctx),
		Data:      data,
	}

	categories, err := p.nav.Categories(ctx)
	if err != nil {
		slog.Warn("failed to load navigation categories", slog.String("error", err.Error()))
	}
	page.Categories = categories

	if cartID := middleware.CartIDFromContext(ctx); cartID != "" {
		snapshot, err := p.carts.Snapshot(ctx, cartID)
		if err != nil {
			slog.Warn("failed to read cart for header", slog.String("error", err.Error()))
		} else {
			page.CartCount = snapshot.ItemCount()
		}
	}

	page.Flashes = web.PopFlashes(w, r, p.cookies)
	p.renderer.Render(w, status, name, page)
}

// RenderError はエラーページを描画する。
// AppErrorはコードに応じたステータスで表示し、それ以外は500としてログに記録する。
func (p *Pages) RenderError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *model.AppError
	if errors.As(err, &appErr) {
		status := statusForAppError(appErr)
		p.Render(w, r, status, web.PageError, http.StatusText(status), web.ErrorData{Status: status, Error: appErr})
		return
	}

	slog.Error("internal server error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	p.Render(w, r, http.StatusInternalServerError, web.PageError, "Error", web.ErrorData{Status: http.StatusInternalServerError})
}

// Flash は次のページで表示するメッセージを保存する。
func (p *Pages) Flash(w http.ResponseWriter, kind, message string) {
	web.SetFlash(w, p.cookies, kind, message)
}

// NotFound は404ページを描画する。
func (p *Pages) NotFound(w http.ResponseWriter, r *http.Request) {
	p.Render(w, r, http.StatusNotFound, web.PageError, "Not Found", web.ErrorData{
		Status: http.StatusNotFound,
		Error: &model.AppError{
			Code:     "NOT_FOUND",
			Message:  "The page you are looking for does not exist.",
			Category: "catalog",
		},
	})
}

// Forbidden は管理者以外が管理画面にアクセスした場合の403ページを描画する。
func (p *Pages) Forbidden(w http.ResponseWriter, r *http.Request) {
	p.RenderError(w, r, model.NewForbiddenError())
}

// redirect はPOST後の画面遷移に使う303リダイレクトを返す。
func redirect(w http.ResponseWriter, r *http.Request, location string) {
	http.Redirect(w, r, location, http.StatusSeeOther)
}

// statusForAppError はAppErrorコードからHTTPステータスコードにマッピングする。
func statusForAppError(appErr *model.AppError) int {
	switch appErr.Code {
	case model.ErrCodeValidation:
		return http.StatusUnprocessableEntity
	case model.ErrCodeProductNotFound, model.ErrCodeCategoryNotFound,
		model.ErrCodeCheckoutNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeEmailTaken, model.ErrCodeDuplicateProduct,
		model.ErrCodeDuplicateCategory, model.ErrCodeOutOfStock:
		return http.StatusConflict
	case model.ErrCodeWrongPassword:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodePaymentFailed:
		return http.StatusBadGateway
	default:
		return http.StatusBadRequest
	}
}

// asAppError はerrがAppErrorであればそれを返す。
func asAppError(err error) (*model.AppError, bool) {
	var appErr *model.AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
