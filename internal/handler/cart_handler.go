package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/hitoshi/storefront/internal/middleware"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/web"
)

// CartServiceInterface はカートハンドラーが必要とするサービスインターフェース。
type CartServiceInterface interface {
	Add(ctx context.Context, cartID string, productID, quantity int64) (*model.CartSnapshot, error)
	Snapshot(ctx context.Context, cartID string) (*model.CartSnapshot, error)
}

// CartHandler はカートのHTTPハンドラー。
type CartHandler struct {
	pages   *Pages
	service CartServiceInterface
}

// NewCartHandler はCartHandlerを生成する。
func NewCartHandler(pages *Pages, service CartServiceInterface) *CartHandler {
	return &CartHandler{pages: pages, service: service}
}

// Show はカートの内容を表示する。
// GET /cart
func (h *CartHandler) Show(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.service.Snapshot(r.Context(), middleware.CartIDFromContext(r.Context()))
	if err != nil {
		h.pages.RenderError(w, r, err)
		return
	}

	h.pages.Render(w, r, http.StatusOK, web.PageCart, "Cart", web.CartData{Cart: snapshot})
}

// Add は商品をカートに追加する。
// Accept: application/json のリクエストには追加後のスナップショットをJSONで返し、
// フォーム送信にはカートページへのリダイレクトで応答する。
// POST /cart/add
func (h *CartHandler) Add(w http.ResponseWriter, r *http.Request) {
	wantsJSON := strings.Contains(r.Header.Get("Accept"), "application/json")

	productID, quantity, fields := parseAddToCart(r)
	if len(fields) > 0 {
		h.writeAddError(w, r, wantsJSON, model.NewValidationError(fields))
		return
	}

	snapshot, err := h.service.Add(r.Context(), middleware.CartIDFromContext(r.Context()), productID, quantity)
	if err != nil {
		h.writeAddError(w, r, wantsJSON, err)
		return
	}

	if wantsJSON {
		writeJSON(w, http.StatusOK, snapshot)
		return
	}

	h.pages.Flash(w, web.FlashInfo, "Added to cart.")
	redirect(w, r, "/cart")
}

// API はカートのスナップショットをJSONで返す。
// GET /api/cart
func (h *CartHandler) API(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.service.Snapshot(r.Context(), middleware.CartIDFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (h *CartHandler) writeAddError(w http.ResponseWriter, r *http.Request, wantsJSON bool, err error) {
	if wantsJSON {
		handleServiceError(w, err)
		return
	}

	appErr, ok := asAppError(err)
	if ok && (appErr.Code == model.ErrCodeOutOfStock || appErr.Code == model.ErrCodeValidation) {
		h.pages.Flash(w, web.FlashError, appErr.Message)
		redirect(w, r, "/cart")
		return
	}
	h.pages.RenderError(w, r, err)
}

// parseAddToCart はフォームから商品IDと数量を読み取る。数量の省略時は1とする。
func parseAddToCart(r *http.Request) (int64, int64, map[string]string) {
	fields := map[string]string{}

	productID, err := strconv.ParseInt(r.PostFormValue("product_id"), 10, 64)
	if err != nil || productID <= 0 {
		fields["product_id"] = "must be a product id"
	}

	quantity := int64(1)
	if raw := strings.TrimSpace(r.PostFormValue("quantity")); raw != "" {
		quantity, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || quantity < 1 {
			fields["quantity"] = "must be at least 1"
		}
	}

	return productID, quantity, fields
}

// handleServiceError はJSON APIでサービス層のエラーをレスポンスに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	if appErr, ok := asAppError(err); ok {
		middleware.WriteErrorResponse(w, statusForAppError(appErr), appErr)
		return
	}

	// AppError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
