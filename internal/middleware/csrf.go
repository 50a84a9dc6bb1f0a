package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strings"
)

const (
	// csrfCookieName はCSRFトークンを保持するCookieの名前。
	csrfCookieName = "csrf_token"

	// CSRFFieldName はフォームでCSRFトークンを送るフィールド名。
	CSRFFieldName = "csrf_token"

	// csrfHeaderName はJavaScriptからトークンを送る際のヘッダー名。
	csrfHeaderName = "X-CSRF-Token"
)

var csrfTokenContextKey = contextKey("csrf_token")

// CSRFConfig はCSRFミドルウェアの設定。
type CSRFConfig struct {
	Secret       string // トークン署名用の鍵（SESSION_SECRET）
	CookieSecure bool
	CookieDomain string
}

// NewCSRFMiddleware はダブルサブミット方式でCSRFトークンを検証するミドルウェアを返す。
// トークンはSecretで署名し、Cookieと同じ値がフォームのcsrf_tokenまたは
// X-CSRF-Tokenヘッダーで送られた場合のみ状態変更メソッドを通す。
// テンプレートで使えるよう、トークンはリクエストコンテキストにも格納する。
func NewCSRFMiddleware(config CSRFConfig) func(next http.Handler) http.Handler {
	key := []byte(config.Secret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ""
			if cookie, err := r.Cookie(csrfCookieName); err == nil && verifyCSRFToken(key, cookie.Value) {
				token = cookie.Value
			}

			if isSafeMethod(r.Method) {
				if token == "" {
					var err error
					token, err = generateCSRFToken(key)
					if err != nil {
						slog.Error("failed to generate CSRF token", slog.String("error", err.Error()))
						http.Error(w, "internal server error", http.StatusInternalServerError)
						return
					}
					setCSRFCookie(w, config, token)
				}
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), csrfTokenContextKey, token)))
				return
			}

			if token == "" {
				csrfFailure(w, r, "missing or invalid cookie token")
				return
			}

			submitted := r.Header.Get(csrfHeaderName)
			if submitted == "" {
				submitted = r.PostFormValue(CSRFFieldName)
			}
			if submitted == "" {
				csrfFailure(w, r, "missing submitted token")
				return
			}
			if subtle.ConstantTimeCompare([]byte(submitted), []byte(token)) != 1 {
				csrfFailure(w, r, "token mismatch")
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), csrfTokenContextKey, token)))
		})
	}
}

// CSRFTokenFromContext はフォームに埋め込むCSRFトークンを返す。
func CSRFTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(csrfTokenContextKey).(string)
	return token
}

func csrfFailure(w http.ResponseWriter, r *http.Request, reason string) {
	slog.Warn("CSRF validation failed",
		slog.String("reason", reason),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)
	http.Error(w, "CSRF token validation failed", http.StatusForbidden)
}

// isSafeMethod はHTTPメソッドが安全（読み取り専用）かどうかを判定する。
func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

func setCSRFCookie(w http.ResponseWriter, config CSRFConfig, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		Domain:   config.CookieDomain,
		MaxAge:   86400, // 24時間
		HttpOnly: true,
		Secure:   config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// generateCSRFToken は "乱数.署名" 形式のトークンを生成する。
func generateCSRFToken(key []byte) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	nonce := hex.EncodeToString(b)
	return nonce + "." + signCSRF(key, nonce), nil
}

// verifyCSRFToken はトークンの署名を検証する。
func verifyCSRFToken(key []byte, token string) bool {
	nonce, sig, ok := strings.Cut(token, ".")
	if !ok || nonce == "" {
		return false
	}
	return hmac.Equal([]byte(sig), []byte(signCSRF(key, nonce)))
}

func signCSRF(key []byte, nonce string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(nonce))
	return hex.EncodeToString(mac.Sum(nil))
}
