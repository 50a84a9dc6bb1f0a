package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// CartCookieName は訪問者ごとのカートIDを保持するCookieの名前。
const CartCookieName = "cart_id"

var cartIDContextKey = contextKey("cart_id")

// NewVisitorMiddleware は訪問者ごとにカートIDを割り当てるミドルウェアを返す。
// Cookieに有効なUUIDが無い場合は新しく発行する。ログインの有無には関係しない。
func NewVisitorMiddleware(cfg CookieConfig, maxAge time.Duration) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cartID := ""
			if cookie, err := r.Cookie(CartCookieName); err == nil {
				if id, err := uuid.Parse(cookie.Value); err == nil {
					cartID = id.String()
				}
			}

			if cartID == "" {
				cartID = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     CartCookieName,
					Value:    cartID,
					Path:     "/",
					Domain:   cfg.Domain,
					MaxAge:   int(maxAge.Seconds()),
					HttpOnly: true,
					Secure:   cfg.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			next.ServeHTTP(w, r.WithContext(ContextWithCartID(r.Context(), cartID)))
		})
	}
}

// CartIDFromContext はリクエストコンテキストからカートIDを取得する。
func CartIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(cartIDContextKey).(string)
	return id
}

// ContextWithCartID はコンテキストにカートIDを注入する。
func ContextWithCartID(ctx context.Context, cartID string) context.Context {
	return context.WithValue(ctx, cartIDContextKey, cartID)
}
