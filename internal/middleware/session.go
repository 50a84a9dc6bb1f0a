// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/storefront/internal/model"
)

// SessionCookieName はログインセッションIDを保持するCookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userContextKey はリクエストコンテキストにログインユーザーを格納するためのキー。
var userContextKey = contextKey("user")

// CookieConfig はミドルウェアが発行するCookieの共通設定。
type CookieConfig struct {
	Secure bool
	Domain string
}

// UserLoader はセッションIDからユーザーを取得するインターフェース。
// auth.Serviceが実装する。
type UserLoader interface {
	GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error)
}

// NewSessionMiddleware はHTTP Only Cookieからセッションを読み取り、
// 有効であればログインユーザーをリクエストコンテキストに注入するミドルウェアを返す。
// セッションが無い・無効なリクエストは未ログインとしてそのまま通す。
func NewSessionMiddleware(loader UserLoader) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, err := loader.GetCurrentUser(r.Context(), cookie.Value)
			if err != nil {
				slog.Debug("session not usable", slog.String("error", err.Error()))
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
		})
	}
}

// NewRequireUserMiddleware は未ログインのリクエストをログイン画面へリダイレクトする。
func NewRequireUserMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if UserFromContext(r.Context()) == nil {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// NewRequireAdminMiddleware は管理者以外のリクエストを拒否する。
// 未ログインはログイン画面へリダイレクトし、管理者でないユーザーにはforbiddenを応答する。
// forbiddenがnilの場合は403のテキストを返す。
func NewRequireAdminMiddleware(forbidden http.Handler) func(next http.Handler) http.Handler {
	if forbidden == nil {
		forbidden = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "forbidden", http.StatusForbidden)
		})
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserFromContext(r.Context())
			if user == nil {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			if !user.IsAdmin() {
				slog.Warn("admin access denied",
					slog.Int64("user_id", user.ID),
					slog.String("path", r.URL.Path),
				)
				forbidden.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SetSessionCookie はログインセッションのCookieを発行する。
func SetSessionCookie(w http.ResponseWriter, cfg CookieConfig, sessionID string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		Domain:   cfg.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie はログインセッションのCookieを削除する。
func ClearSessionCookie(w http.ResponseWriter, cfg CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   cfg.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// UserFromContext はリクエストコンテキストからログインユーザーを取得する。未ログインならnil。
func UserFromContext(ctx context.Context) *model.User {
	user, _ := ctx.Value(userContextKey).(*model.User)
	return user
}

// UserIDFromContext はログインユーザーのIDを返す。未ログインの場合はfalse。
func UserIDFromContext(ctx context.Context) (int64, bool) {
	user := UserFromContext(ctx)
	if user == nil {
		return 0, false
	}
	return user.ID, true
}

// ContextWithUser はコンテキストにログインユーザーを注入する。
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}
