package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/storefront/internal/model"
)

// SQLProductRepo はdatabase/sqlを使用した商品リポジトリ。
type SQLProductRepo struct {
	db *sql.DB
}

// NewSQLProductRepo はSQLProductRepoを生成する。
func NewSQLProductRepo(db *sql.DB) *SQLProductRepo {
	return &SQLProductRepo{db: db}
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

const productColumns = `p.id, p.name, p.alias, p.price, p.stock, p.description, p.image_url,
	p.remote_product_id, p.remote_price_id, p.category_id, p.created_at, p.updated_at`

// productWithCategorySelect はカテゴリをLEFT JOINした商品取得クエリの共通部分。
const productWithCategorySelect = `SELECT ` + productColumns + `,
	c.name, c.alias, c.description
	FROM products p
	LEFT JOIN categories c ON c.id = p.category_id`

func scanProduct(s rowScanner, extra ...any) (*model.Product, error) {
	p := &model.Product{}
	var categoryID sql.NullInt64
	dest := []any{
		&p.ID, &p.Name, &p.Alias, &p.Price, &p.Stock, &p.Description, &p.ImageURL,
		&p.RemoteProductID, &p.RemotePriceID, &categoryID, &p.CreatedAt, &p.UpdatedAt,
	}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if categoryID.Valid {
		id := categoryID.Int64
		p.CategoryID = &id
	}
	return p, nil
}

func scanProductWithCategory(s rowScanner) (*model.ProductWithCategory, error) {
	var name, alias, description sql.NullString
	p, err := scanProduct(s, &name, &alias, &description)
	if err != nil {
		return nil, err
	}
	result := &model.ProductWithCategory{Product: *p}
	if p.CategoryID != nil && name.Valid {
		result.Category = &model.Category{
			ID:          *p.CategoryID,
			Name:        name.String,
			Alias:       alias.String,
			Description: description.String,
		}
	}
	return result, nil
}

func (r *SQLProductRepo) listWithCategory(ctx context.Context, query string, args ...any) ([]model.ProductWithCategory, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []model.ProductWithCategory
	for rows.Next() {
		p, err := scanProductWithCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}
	return products, nil
}

// List は全商品を所属カテゴリ付きでID順に返す。
func (r *SQLProductRepo) List(ctx context.Context) ([]model.ProductWithCategory, error) {
	return r.listWithCategory(ctx, productWithCategorySelect+` ORDER BY p.id`)
}

// ListByCategory は指定カテゴリの商品をID順に返す。
func (r *SQLProductRepo) ListByCategory(ctx context.Context, categoryID int64) ([]model.ProductWithCategory, error) {
	return r.listWithCategory(ctx, productWithCategorySelect+` WHERE p.category_id = $1 ORDER BY p.id`, categoryID)
}

// FindByID は指定IDの商品を取得する。見つからない場合はnilを返す。
func (r *SQLProductRepo) FindByID(ctx context.Context, id int64) (*model.Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products p WHERE p.id = $1`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}
	return p, nil
}

// FindByAlias はエイリアスで商品を所属カテゴリ付きで検索する。見つからない場合はnilを返す。
func (r *SQLProductRepo) FindByAlias(ctx context.Context, alias string) (*model.ProductWithCategory, error) {
	p, err := scanProductWithCategory(r.db.QueryRowContext(ctx,
		productWithCategorySelect+` WHERE p.alias = $1`,
		alias,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find product by alias: %w", err)
	}
	return p, nil
}

// FindByName は商品名（大文字小文字を区別しない）で商品を検索する。見つからない場合はnilを返す。
func (r *SQLProductRepo) FindByName(ctx context.Context, name string) (*model.Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products p WHERE lower(p.name) = lower($1)`,
		name,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find product by name: %w", err)
	}
	return p, nil
}

// Create は商品を作成し、採番されたIDを設定する。
func (r *SQLProductRepo) Create(ctx context.Context, product *model.Product) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO products (name, alias, price, stock, description, image_url,
			remote_product_id, remote_price_id, category_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id`,
		product.Name, product.Alias, product.Price, product.Stock, product.Description, product.ImageURL,
		product.RemoteProductID, product.RemotePriceID, nullableID(product.CategoryID),
		product.CreatedAt.UTC(), product.UpdatedAt.UTC(),
	).Scan(&product.ID)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}
	return nil
}

// Update は商品情報を上書き更新する。
func (r *SQLProductRepo) Update(ctx context.Context, product *model.Product) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE products
		 SET name = $1, alias = $2, price = $3, stock = $4, description = $5, image_url = $6,
			remote_product_id = $7, remote_price_id = $8, category_id = $9, updated_at = $10
		 WHERE id = $11`,
		product.Name, product.Alias, product.Price, product.Stock, product.Description, product.ImageURL,
		product.RemoteProductID, product.RemotePriceID, nullableID(product.CategoryID),
		product.UpdatedAt.UTC(), product.ID,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	return requireAffected(result)
}

// Delete は指定IDの商品を削除する。
func (r *SQLProductRepo) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM products WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return requireAffected(result)
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

func requireAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// compile-time interface check
var _ ProductRepository = (*SQLProductRepo)(nil)
