// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// AppError はアプリケーション共通のエラーフォーマットを表す。
// 画面に表示する原因カテゴリと対処方法を含む。
type AppError struct {
	Code     string            // エラーコード
	Message  string            // エラーメッセージ
	Category string            // カテゴリ: auth, validation, catalog, cart, payment, system
	Action   string            // ユーザー向け対処方法
	Fields   map[string]string // 入力項目ごとのエラー（バリデーション時のみ）
}

// Error はerrorインターフェースを実装する。
func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeEmailTaken        = "EMAIL_TAKEN"
	ErrCodeUserNotFound      = "USER_NOT_FOUND"
	ErrCodeWrongPassword     = "WRONG_PASSWORD"
	ErrCodeValidation        = "VALIDATION_FAILED"
	ErrCodeProductNotFound   = "PRODUCT_NOT_FOUND"
	ErrCodeCategoryNotFound  = "CATEGORY_NOT_FOUND"
	ErrCodeDuplicateProduct  = "DUPLICATE_PRODUCT"
	ErrCodeDuplicateCategory = "DUPLICATE_CATEGORY"
	ErrCodeEmptyCart         = "EMPTY_CART"
	ErrCodeOutOfStock        = "OUT_OF_STOCK"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodePaymentFailed     = "PAYMENT_FAILED"
	ErrCodeCheckoutNotFound  = "CHECKOUT_NOT_FOUND"
)

// IsCode はエラーが指定コードのAppErrorかどうかを判定する。
func IsCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// NewEmailTakenError は登録済みメールアドレスでの再登録エラーを生成する。
func NewEmailTakenError() *AppError {
	return &AppError{
		Code:     ErrCodeEmailTaken,
		Message:  "User already exists.",
		Category: "auth",
		Action:   "Log in with the existing account instead.",
	}
}

// NewUserNotFoundError はユーザー未登録エラーを生成する。
func NewUserNotFoundError() *AppError {
	return &AppError{
		Code:     ErrCodeUserNotFound,
		Message:  "User does not exist.",
		Category: "auth",
		Action:   "Check the email address or register a new account.",
	}
}

// NewWrongPasswordError はパスワード不一致エラーを生成する。
func NewWrongPasswordError() *AppError {
	return &AppError{
		Code:     ErrCodeWrongPassword,
		Message:  "Wrong password.",
		Category: "auth",
		Action:   "Check the password and try again.",
	}
}

// NewValidationError は入力項目ごとのエラーを保持するバリデーションエラーを生成する。
func NewValidationError(fields map[string]string) *AppError {
	return &AppError{
		Code:     ErrCodeValidation,
		Message:  "Some fields are missing or invalid.",
		Category: "validation",
		Action:   "Correct the highlighted fields and submit again.",
		Fields:   fields,
	}
}

// NewProductNotFoundError は商品未検出エラーを生成する。
func NewProductNotFoundError(ref string) *AppError {
	return &AppError{
		Code:     ErrCodeProductNotFound,
		Message:  fmt.Sprintf("Product not found: %s", ref),
		Category: "catalog",
		Action:   "Go back to the product list.",
	}
}

// NewCategoryNotFoundError はカテゴリ未検出エラーを生成する。
func NewCategoryNotFoundError(alias string) *AppError {
	return &AppError{
		Code:     ErrCodeCategoryNotFound,
		Message:  fmt.Sprintf("Category not found: %s", alias),
		Category: "catalog",
		Action:   "Pick a category from the navigation bar.",
	}
}

// NewDuplicateProductError は同名商品の重複登録エラーを生成する。
func NewDuplicateProductError(name string) *AppError {
	return &AppError{
		Code:     ErrCodeDuplicateProduct,
		Message:  fmt.Sprintf("A product named %q already exists.", name),
		Category: "validation",
		Action:   "Choose a different product name.",
		Fields:   map[string]string{"name": "already in use"},
	}
}

// NewDuplicateCategoryError は同名カテゴリの重複登録エラーを生成する。
func NewDuplicateCategoryError(name string) *AppError {
	return &AppError{
		Code:     ErrCodeDuplicateCategory,
		Message:  fmt.Sprintf("A category named %q already exists.", name),
		Category: "validation",
		Action:   "Choose a different category name.",
		Fields:   map[string]string{"name": "already in use"},
	}
}

// NewEmptyCartError は空のカートでチェックアウトしようとした場合のエラーを生成する。
func NewEmptyCartError() *AppError {
	return &AppError{
		Code:     ErrCodeEmptyCart,
		Message:  "Your cart is empty.",
		Category: "cart",
		Action:   "Add a product to the cart before checking out.",
	}
}

// NewOutOfStockError は在庫切れエラーを生成する。
func NewOutOfStockError(name string) *AppError {
	return &AppError{
		Code:     ErrCodeOutOfStock,
		Message:  fmt.Sprintf("%s is out of stock.", name),
		Category: "cart",
		Action:   "Try again later or pick another product.",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *AppError {
	return &AppError{
		Code:     ErrCodeForbidden,
		Message:  "You do not have permission to access this page.",
		Category: "auth",
		Action:   "Log in with an administrator account.",
	}
}

// NewPaymentFailedError は決済代行サービス呼び出しの失敗を表すエラーを生成する。
// Messageには決済代行サービスが返したエラー文言をそのまま保持する。
func NewPaymentFailedError(reason string) *AppError {
	return &AppError{
		Code:     ErrCodePaymentFailed,
		Message:  reason,
		Category: "payment",
		Action:   "Wait a moment and try the checkout again.",
	}
}

// NewCheckoutNotFoundError はチェックアウト未検出エラーを生成する。
func NewCheckoutNotFoundError(ref string) *AppError {
	return &AppError{
		Code:     ErrCodeCheckoutNotFound,
		Message:  fmt.Sprintf("Checkout not found: %s", ref),
		Category: "payment",
		Action:   "Start the checkout again from the cart.",
	}
}
