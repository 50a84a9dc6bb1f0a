package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/hitoshi/storefront/internal/database"
	"github.com/hitoshi/storefront/internal/model"
)

// newTestDB はマイグレーション適用済みのインメモリSQLiteを返す。
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, dialect, err := database.Open("sqlite://:memory:")
	if err != nil {
		t.Fatalf("インメモリDBのオープンに失敗: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.RunMigrations(db, dialect); err != nil {
		t.Fatalf("マイグレーション実行に失敗: %v", err)
	}
	return db
}

// seedUser はテスト用ユーザーを作成する。
func seedUser(t *testing.T, db *sql.DB, email string) *model.User {
	t.Helper()

	user := &model.User{
		Email:        email,
		PasswordHash: "hash",
		Name:         "Test",
		Role:         model.RoleCustomer,
		CreatedAt:    time.Now(),
	}
	if err := NewSQLUserRepo(db).Create(context.Background(), user); err != nil {
		t.Fatalf("ユーザー作成に失敗: %v", err)
	}
	return user
}

// seedCategory はテスト用カテゴリを作成する。
func seedCategory(t *testing.T, db *sql.DB, name, alias string) *model.Category {
	t.Helper()

	category := &model.Category{Name: name, Alias: alias, Description: name + " category"}
	if err := NewSQLCategoryRepo(db).Create(context.Background(), category); err != nil {
		t.Fatalf("カテゴリ作成に失敗: %v", err)
	}
	return category
}

// newProduct は保存前のテスト用商品を返す。
func newProduct(name, alias string, price int64, categoryID *int64) *model.Product {
	now := time.Now()
	return &model.Product{
		Name:            name,
		Alias:           alias,
		Price:           price,
		Stock:           5,
		Description:     "<p>" + name + "</p>",
		ImageURL:        "https://example.com/" + alias + ".png",
		RemoteProductID: "prod_" + alias,
		RemotePriceID:   "price_" + alias,
		CategoryID:      categoryID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
