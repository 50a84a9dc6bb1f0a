package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/storefront/internal/auth"
	"github.com/hitoshi/storefront/internal/middleware"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/web"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, in auth.RegisterInput) (*model.Session, error)
	Login(ctx context.Context, email, password string) (*model.Session, error)
	Logout(ctx context.Context, sessionID string) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	Cookies       middleware.CookieConfig
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler は登録・ログイン・ログアウトのHTTPハンドラー。
type AuthHandler struct {
	pages   *Pages
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(pages *Pages, service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		pages:   pages,
		service: service,
		config:  config,
	}
}

// RegisterForm GET /register
func (h *AuthHandler) RegisterForm(w http.ResponseWriter, r *http.Request) {
	h.pages.Render(w, r, http.StatusOK, web.PageRegister, "Register", web.FormData{})
}

// Register はユーザー登録を処理し、登録後はログイン状態でトップへ戻す。
// 登録済みのメールアドレスの場合はメッセージを表示してログイン画面へ誘導する。
// POST /register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	in := auth.RegisterInput{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
		Name:     r.PostFormValue("name"),
	}

	session, err := h.service.Register(r.Context(), in)
	if err != nil {
		appErr, ok := asAppError(err)
		switch {
		case ok && appErr.Code == model.ErrCodeEmailTaken:
			h.pages.Flash(w, web.FlashError, appErr.Message)
			redirect(w, r, "/login")
		case ok && appErr.Code == model.ErrCodeValidation:
			h.pages.Render(w, r, http.StatusUnprocessableEntity, web.PageRegister, "Register", web.FormData{
				Values: map[string]string{"email": in.Email, "name": in.Name},
				Errors: appErr.Fields,
			})
		default:
			h.pages.RenderError(w, r, err)
		}
		return
	}

	middleware.SetSessionCookie(w, h.config.Cookies, session.ID, h.config.SessionMaxAge)
	h.pages.Flash(w, web.FlashInfo, "Welcome! Your account has been created.")
	redirect(w, r, "/")
}

// LoginForm GET /login
func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	h.pages.Render(w, r, http.StatusOK, web.PageLogin, "Log in", web.FormData{})
}

// Login はログインを処理する。
// 未登録のメールアドレスとパスワード不一致はそれぞれのメッセージを表示してログイン画面に戻す。
// POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	email := r.PostFormValue("email")

	session, err := h.service.Login(r.Context(), email, r.PostFormValue("password"))
	if err != nil {
		appErr, ok := asAppError(err)
		switch {
		case ok && (appErr.Code == model.ErrCodeUserNotFound || appErr.Code == model.ErrCodeWrongPassword):
			h.pages.Flash(w, web.FlashError, appErr.Message)
			redirect(w, r, "/login")
		case ok && appErr.Code == model.ErrCodeValidation:
			h.pages.Render(w, r, http.StatusUnprocessableEntity, web.PageLogin, "Log in", web.FormData{
				Values: map[string]string{"email": email},
				Errors: appErr.Fields,
			})
		default:
			h.pages.RenderError(w, r, err)
		}
		return
	}

	middleware.SetSessionCookie(w, h.config.Cookies, session.ID, h.config.SessionMaxAge)
	redirect(w, r, "/")
}

// Logout はセッションを破棄してトップへ戻す。
// セッション削除に失敗してもCookieは削除する。
// GET /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil && cookie.Value != "" {
		if err := h.service.Logout(r.Context(), cookie.Value); err != nil {
			slog.Error("failed to logout", slog.String("error", err.Error()))
		}
	}

	middleware.ClearSessionCookie(w, h.config.Cookies)
	redirect(w, r, "/")
}
