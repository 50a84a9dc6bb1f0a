package database

import (
	"database/sql"
	"os"
	"testing"
	"time"
)

var expectedTables = []string{"users", "sessions", "categories", "products", "checkouts"}

// openMemoryDB はマイグレーション未適用のインメモリSQLiteを開く。
func openMemoryDB(t *testing.T) *sql.DB {
	t.Helper()

	db, _, err := Open("sqlite://:memory:")
	if err != nil {
		t.Fatalf("インメモリDBのオープンに失敗: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func countSQLiteTables(t *testing.T, db *sql.DB) int {
	t.Helper()

	var count int
	err := db.QueryRow(
		"SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name IN ('users','sessions','categories','products','checkouts')",
	).Scan(&count)
	if err != nil {
		t.Fatalf("テーブルカウント取得に失敗: %v", err)
	}
	return count
}

func TestRunMigrations_SQLite_Up(t *testing.T) {
	db := openMemoryDB(t)

	if err := RunMigrations(db, DialectSQLite); err != nil {
		t.Fatalf("マイグレーション実行に失敗: %v", err)
	}

	if got := countSQLiteTables(t, db); got != len(expectedTables) {
		t.Errorf("Up後のテーブル数が不正: got %d, want %d", got, len(expectedTables))
	}
}

func TestRunMigrations_SQLite_Idempotent(t *testing.T) {
	db := openMemoryDB(t)

	if err := RunMigrations(db, DialectSQLite); err != nil {
		t.Fatalf("1回目のマイグレーション実行に失敗: %v", err)
	}
	// 2回目はErrNoChangeとなるがエラーとして扱わない
	if err := RunMigrations(db, DialectSQLite); err != nil {
		t.Fatalf("2回目のマイグレーション実行に失敗（冪等性の問題）: %v", err)
	}
}

func TestMigrations_SQLite_UpAndDown(t *testing.T) {
	db := openMemoryDB(t)

	m, err := NewMigrator(db, DialectSQLite)
	if err != nil {
		t.Fatalf("Migrator生成に失敗: %v", err)
	}

	if err := m.Up(); err != nil {
		t.Fatalf("Up マイグレーション実行に失敗: %v", err)
	}
	if got := countSQLiteTables(t, db); got != len(expectedTables) {
		t.Errorf("Up後のテーブル数が不正: got %d, want %d", got, len(expectedTables))
	}

	if err := m.Down(); err != nil {
		t.Fatalf("Down マイグレーション実行に失敗: %v", err)
	}
	if got := countSQLiteTables(t, db); got != 0 {
		t.Errorf("Down後のテーブル数が不正: got %d, want 0", got)
	}
}

// TestUsersEmailUnique はusers.emailのユニーク制約が効いていることを検証する。
func TestUsersEmailUnique(t *testing.T) {
	db := openMemoryDB(t)
	if err := RunMigrations(db, DialectSQLite); err != nil {
		t.Fatalf("マイグレーション実行に失敗: %v", err)
	}

	insert := "INSERT INTO users (email, password_hash, name, created_at) VALUES ($1, $2, $3, $4)"
	now := time.Now().UTC()
	if _, err := db.Exec(insert, "a@example.com", "hash", "A", now); err != nil {
		t.Fatalf("1件目の登録に失敗: %v", err)
	}
	if _, err := db.Exec(insert, "a@example.com", "hash", "A2", now); err == nil {
		t.Fatal("重複メールアドレスの登録がエラーにならない")
	}
}

// TestProductsCategoryOnDeleteSetNull はカテゴリ削除時に商品のcategory_idがNULLになることを検証する。
func TestProductsCategoryOnDeleteSetNull(t *testing.T) {
	db := openMemoryDB(t)
	if err := RunMigrations(db, DialectSQLite); err != nil {
		t.Fatalf("マイグレーション実行に失敗: %v", err)
	}

	now := time.Now().UTC()
	if _, err := db.Exec("INSERT INTO categories (id, name, alias) VALUES (1, 'Shoes', 'shoes')"); err != nil {
		t.Fatalf("カテゴリ登録に失敗: %v", err)
	}
	_, err := db.Exec(
		`INSERT INTO products (name, alias, price, stock, description, image_url, category_id, created_at, updated_at)
		 VALUES ('Boot', 'boot', 1000, 1, 'desc', 'https://example.com/boot.png', 1, $1, $2)`,
		now, now,
	)
	if err != nil {
		t.Fatalf("商品登録に失敗: %v", err)
	}

	if _, err := db.Exec("DELETE FROM categories WHERE id = 1"); err != nil {
		t.Fatalf("カテゴリ削除に失敗: %v", err)
	}

	var categoryID sql.NullInt64
	if err := db.QueryRow("SELECT category_id FROM products WHERE alias = 'boot'").Scan(&categoryID); err != nil {
		t.Fatalf("商品取得に失敗: %v", err)
	}
	if categoryID.Valid {
		t.Errorf("category_id = %d, want NULL", categoryID.Int64)
	}
}

// TestRunMigrations_Postgres は TEST_DATABASE_URL が設定されている場合のみ実行する。
func TestRunMigrations_Postgres(t *testing.T) {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL が未設定のためスキップ")
	}

	db, dialect, err := Open(dbURL)
	if err != nil {
		t.Fatalf("データベースへの接続に失敗: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		t.Skipf("テスト用データベースに接続できません（スキップ）: %v", err)
	}

	cleanupSQL := `
		DROP TABLE IF EXISTS checkouts CASCADE;
		DROP TABLE IF EXISTS products CASCADE;
		DROP TABLE IF EXISTS categories CASCADE;
		DROP TABLE IF EXISTS sessions CASCADE;
		DROP TABLE IF EXISTS users CASCADE;
		DROP TABLE IF EXISTS schema_migrations CASCADE;
	`
	if _, err := db.Exec(cleanupSQL); err != nil {
		t.Fatalf("クリーンアップに失敗: %v", err)
	}

	if err := RunMigrations(db, dialect); err != nil {
		t.Fatalf("マイグレーション実行に失敗: %v", err)
	}

	for _, table := range expectedTables {
		t.Run("テーブル存在確認_"+table, func(t *testing.T) {
			var exists bool
			err := db.QueryRow(
				"SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1)",
				table,
			).Scan(&exists)
			if err != nil {
				t.Fatalf("テーブル存在確認クエリに失敗: %v", err)
			}
			if !exists {
				t.Errorf("テーブル %q が存在しません", table)
			}
		})
	}
}
