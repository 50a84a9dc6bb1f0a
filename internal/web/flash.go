package web

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/storefront/internal/middleware"
)

const flashCookieName = "flash"

// フラッシュメッセージの種類。
const (
	FlashInfo  = "info"
	FlashError = "error"
)

// Flash はリダイレクト後の1回の表示だけ残るメッセージ。
type Flash struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// SetFlash は次のリクエストで表示するメッセージをCookieに保存する。
func SetFlash(w http.ResponseWriter, cfg middleware.CookieConfig, kind, message string) {
	raw, err := json.Marshal([]Flash{{Kind: kind, Message: message}})
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    base64.RawURLEncoding.EncodeToString(raw),
		Path:     "/",
		Domain:   cfg.Domain,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// PopFlashes は保存されたメッセージを取り出し、Cookieを削除する。
// 壊れたCookieは無視する。
func PopFlashes(w http.ResponseWriter, r *http.Request, cfg middleware.CookieConfig) []Flash {
	cookie, err := r.Cookie(flashCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}

	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    "",
		Path:     "/",
		Domain:   cfg.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	raw, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return nil
	}
	var flashes []Flash
	if err := json.Unmarshal(raw, &flashes); err != nil {
		return nil
	}
	return flashes
}
