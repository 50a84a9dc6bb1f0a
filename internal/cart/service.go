package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/hitoshi/storefront/internal/metrics"
	"github.com/hitoshi/storefront/internal/model"
)

// ProductFinder はカート追加時に商品を参照するためのインターフェース。
type ProductFinder interface {
	FindByID(ctx context.Context, id int64) (*model.Product, error)
}

// Service はカート操作のビジネスロジックを提供する。
// 商品の存在と在庫を確認してからStoreへ書き込む。
type Service struct {
	store    Store
	products ProductFinder
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
}

// NewService はServiceを生成する。
func NewService(store Store, products ProductFinder, m metrics.MetricsCollector) *Service {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Service{
		store:    store,
		products: products,
		metrics:  m,
		logger:   slog.Default(),
	}
}

// Add は商品をカートに追加し、追加後のスナップショットを返す。
// 数量が1未満の場合はバリデーションエラー、商品が存在しない場合はPRODUCT_NOT_FOUND、
// カート内の数量と合わせて在庫を超える場合はOUT_OF_STOCKを返す。
func (s *Service) Add(ctx context.Context, cartID string, productID, quantity int64) (*model.CartSnapshot, error) {
	if quantity < 1 {
		return nil, model.NewValidationError(map[string]string{"quantity": "must be at least 1"})
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to find product: %w", err)
	}
	if product == nil {
		return nil, model.NewProductNotFoundError(strconv.FormatInt(productID, 10))
	}

	if quantity > int64(product.Stock) {
		return nil, model.NewOutOfStockError(product.Name)
	}

	line := model.LineItem{
		ProductID: product.ID,
		Name:      product.Name,
		Alias:     product.Alias,
		UnitPrice: product.Price,
		Quantity:  quantity,
	}
	// カート内の数量と合わせた在庫の確認はStoreの追加と同じ原子操作で行う
	if err := s.store.AddItem(ctx, cartID, line, int64(product.Stock)); err != nil {
		if errors.Is(err, ErrLimitExceeded) {
			return nil, model.NewOutOfStockError(product.Name)
		}
		return nil, fmt.Errorf("failed to add item to cart: %w", err)
	}
	s.metrics.RecordCartAdd(quantity)

	s.logger.Debug("item added to cart",
		slog.String("cart_id", cartID),
		slog.Int64("product_id", productID),
		slog.Int64("quantity", quantity),
	)

	return s.Snapshot(ctx, cartID)
}

// Snapshot はカートの現在の内容を返す。
func (s *Service) Snapshot(ctx context.Context, cartID string) (*model.CartSnapshot, error) {
	snapshot, err := s.store.Snapshot(ctx, cartID)
	if err != nil {
		return nil, fmt.Errorf("failed to read cart: %w", err)
	}
	return snapshot, nil
}

// Clear はカートを空にする。
func (s *Service) Clear(ctx context.Context, cartID string) error {
	if err := s.store.Clear(ctx, cartID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}
