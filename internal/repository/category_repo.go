package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/storefront/internal/model"
)

// SQLCategoryRepo はdatabase/sqlを使用したカテゴリリポジトリ。
type SQLCategoryRepo struct {
	db *sql.DB
}

// NewSQLCategoryRepo はSQLCategoryRepoを生成する。
func NewSQLCategoryRepo(db *sql.DB) *SQLCategoryRepo {
	return &SQLCategoryRepo{db: db}
}

// List は全カテゴリを名前順で返す。
func (r *SQLCategoryRepo) List(ctx context.Context) ([]model.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, alias, description FROM categories ORDER BY name, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []model.Category
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Alias, &c.Description); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate categories: %w", err)
	}
	return categories, nil
}

// FindByAlias はエイリアスでカテゴリを検索する。見つからない場合はnilを返す。
func (r *SQLCategoryRepo) FindByAlias(ctx context.Context, alias string) (*model.Category, error) {
	return r.findOne(ctx, `SELECT id, name, alias, description FROM categories WHERE alias = $1`, alias)
}

// FindByID は指定IDのカテゴリを取得する。見つからない場合はnilを返す。
func (r *SQLCategoryRepo) FindByID(ctx context.Context, id int64) (*model.Category, error) {
	return r.findOne(ctx, `SELECT id, name, alias, description FROM categories WHERE id = $1`, id)
}

func (r *SQLCategoryRepo) findOne(ctx context.Context, query string, arg any) (*model.Category, error) {
	c := &model.Category{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&c.ID, &c.Name, &c.Alias, &c.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find category: %w", err)
	}
	return c, nil
}

// Create はカテゴリを作成し、採番されたIDを設定する。
func (r *SQLCategoryRepo) Create(ctx context.Context, category *model.Category) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO categories (name, alias, description)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		category.Name, category.Alias, category.Description,
	).Scan(&category.ID)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert category: %w", err)
	}
	return nil
}

// compile-time interface check
var _ CategoryRepository = (*SQLCategoryRepo)(nil)
