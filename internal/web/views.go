package web

import (
	"github.com/hitoshi/storefront/internal/admin"
	"github.com/hitoshi/storefront/internal/catalog"
	"github.com/hitoshi/storefront/internal/model"
)

// ProductListData は商品一覧ページ（全商品・カテゴリ別）の表示内容。
type ProductListData struct {
	Heading  string
	Category *model.Category // 全商品一覧ではnil
	Products []catalog.ProductCard
}

// ProductData は商品詳細ページの表示内容。
type ProductData struct {
	Product *model.ProductWithCategory
}

// FormData は登録・ログインフォームの入力値と項目ごとのエラー。
type FormData struct {
	Values map[string]string
	Errors map[string]string
}

// CartData はカートページの表示内容。
type CartData struct {
	Cart *model.CartSnapshot
}

// SuccessData は決済完了ページの表示内容。
type SuccessData struct {
	Paid     bool
	Checkout *model.Checkout
}

// CancelData はキャンセルページの表示内容。
type CancelData struct {
	Checkout *model.Checkout
}

// ErrorData はエラーページの表示内容。
type ErrorData struct {
	Status int
	Error  *model.AppError
}

type AdminProductsData struct {
	Products []model.ProductWithCategory
}

// AdminProductFormData は商品の追加・編集フォームの表示内容。
type AdminProductFormData struct {
	Action     string // フォームの送信先
	Editing    bool
	Form       admin.ProductForm
	Categories []model.Category
	Errors     map[string]string
}

type AdminCategoryFormData struct {
	Form   admin.CategoryForm
	Errors map[string]string
}
