// Package catalog は商品一覧・カテゴリ別一覧・商品詳細の閲覧機能を提供する。
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/repository"
)

// DefaultNavTTL はカテゴリナビゲーションのキャッシュ有効期間。
const DefaultNavTTL = time.Minute

// ProductCard は一覧画面に表示する商品と説明文の抜粋。
type ProductCard struct {
	model.ProductWithCategory
	Excerpt string
}

// Service はカタログ閲覧のビジネスロジックを提供する。
type Service struct {
	products   repository.ProductRepository
	categories repository.CategoryRepository
	navTTL     time.Duration
	now        func() time.Time

	sfg      singleflight.Group // 同時のキャッシュミスを1回の読み込みにまとめる
	mu       sync.RWMutex
	nav      []model.Category
	navUntil time.Time
}

// NewService はServiceを生成する。navTTLが0以下の場合はDefaultNavTTLを使う。
func NewService(products repository.ProductRepository, categories repository.CategoryRepository, navTTL time.Duration) *Service {
	if navTTL <= 0 {
		navTTL = DefaultNavTTL
	}
	return &Service{
		products:   products,
		categories: categories,
		navTTL:     navTTL,
		now:        time.Now,
	}
}

// ListAll は全商品をカード形式で返す。
func (s *Service) ListAll(ctx context.Context) ([]ProductCard, error) {
	products, err := s.products.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return toCards(products), nil
}

// ListByCategory はエイリアスで指定したカテゴリの商品を返す。
// カテゴリが存在しない場合はCATEGORY_NOT_FOUNDを返す。
func (s *Service) ListByCategory(ctx context.Context, alias string) (*model.Category, []ProductCard, error) {
	category, err := s.categories.FindByAlias(ctx, alias)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find category: %w", err)
	}
	if category == nil {
		return nil, nil, model.NewCategoryNotFoundError(alias)
	}

	products, err := s.products.ListByCategory(ctx, category.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list products: %w", err)
	}
	return category, toCards(products), nil
}

// ProductByAlias はエイリアスで商品を取得する。存在しない場合はPRODUCT_NOT_FOUNDを返す。
// カテゴリ未設定の商品はCategoryがnilのまま返る。
func (s *Service) ProductByAlias(ctx context.Context, alias string) (*model.ProductWithCategory, error) {
	product, err := s.products.FindByAlias(ctx, alias)
	if err != nil {
		return nil, fmt.Errorf("failed to find product: %w", err)
	}
	if product == nil {
		return nil, model.NewProductNotFoundError(alias)
	}
	return product, nil
}

// Categories はナビゲーションに表示するカテゴリ一覧を返す。
// 結果はnavTTLの間キャッシュされる。
func (s *Service) Categories(ctx context.Context) ([]model.Category, error) {
	s.mu.RLock()
	if s.nav != nil && s.now().Before(s.navUntil) {
		nav := s.nav
		s.mu.RUnlock()
		return nav, nil
	}
	s.mu.RUnlock()

	v, err, _ := s.sfg.Do("nav", func() (interface{}, error) {
		categories, err := s.categories.List(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		if categories == nil {
			categories = []model.Category{}
		}

		s.mu.Lock()
		s.nav = categories
		s.navUntil = s.now().Add(s.navTTL)
		s.mu.Unlock()

		slog.Debug("category navigation reloaded", slog.Int("count", len(categories)))
		return categories, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	return v.([]model.Category), nil
}

// InvalidateCategories はカテゴリナビゲーションのキャッシュを破棄する。
// 管理画面でカテゴリを追加した後に呼ぶ。
func (s *Service) InvalidateCategories() {
	s.mu.Lock()
	s.nav = nil
	s.navUntil = time.Time{}
	s.mu.Unlock()
}

func toCards(products []model.ProductWithCategory) []ProductCard {
	cards := make([]ProductCard, 0, len(products))
	for _, p := range products {
		cards = append(cards, ProductCard{
			ProductWithCategory: p,
			Excerpt:             Excerpt(p.Description, DefaultExcerptLength),
		})
	}
	return cards
}
