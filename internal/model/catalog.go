package model

import "time"

// Category は商品カテゴリを表す。
type Category struct {
	ID          int64
	Name        string
	Alias       string
	Description string
}

// Product は販売商品を表す。価格は最小通貨単位（セント等）の整数で保持する。
type Product struct {
	ID              int64
	Name            string
	Alias           string
	Price           int64
	Stock           int
	Description     string // サニタイズ済みHTML
	ImageURL        string
	RemoteProductID string
	RemotePriceID   string
	CategoryID      *int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ProductWithCategory は商品と所属カテゴリを結合したモデル。
// カテゴリ未設定の商品ではCategoryがnilになる。
type ProductWithCategory struct {
	Product
	Category *Category
}
