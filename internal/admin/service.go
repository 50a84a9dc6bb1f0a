// Package admin は管理者向けの商品・カテゴリ管理機能を提供する。
// 商品の作成・価格変更・削除は決済代行サービス側の商品と価格にも反映する。
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/storefront/internal/catalog"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/payment"
	"github.com/hitoshi/storefront/internal/repository"
	"github.com/hitoshi/storefront/internal/security"
	"github.com/hitoshi/storefront/internal/slug"
)

// remoteDescriptionLength は決済代行サービスへ送る商品説明の最大文字数。
const remoteDescriptionLength = 500

// CategoryCache はカテゴリ追加時に破棄するナビゲーションキャッシュ。
type CategoryCache interface {
	InvalidateCategories()
}

// Config は管理サービスの設定。
type Config struct {
	Currency    string
	ProbeImages bool // 保存前に画像URLへ実際にアクセスして確認する
}

// Service は商品カタログの管理操作を提供する。
type Service struct {
	products    repository.ProductRepository
	categories  repository.CategoryRepository
	gateway     payment.Gateway
	mapping     *payment.ProductMapping
	sanitizer   security.ContentSanitizerService
	images      security.ImageGuardService
	navCache    CategoryCache
	currency    string
	probeImages bool
	logger      *slog.Logger
	now         func() time.Time
}

// NewService はServiceを生成する。navCacheはnilでもよい。
func NewService(
	products repository.ProductRepository,
	categories repository.CategoryRepository,
	gateway payment.Gateway,
	mapping *payment.ProductMapping,
	sanitizer security.ContentSanitizerService,
	images security.ImageGuardService,
	navCache CategoryCache,
	cfg Config,
) *Service {
	return &Service{
		products:    products,
		categories:  categories,
		gateway:     gateway,
		mapping:     mapping,
		sanitizer:   sanitizer,
		images:      images,
		navCache:    navCache,
		currency:    cfg.Currency,
		probeImages: cfg.ProbeImages,
		logger:      slog.Default(),
		now:         time.Now,
	}
}

// ListProducts は管理画面用に全商品を返す。
func (s *Service) ListProducts(ctx context.Context) ([]model.ProductWithCategory, error) {
	products, err := s.products.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

// ListCategories はフォームの選択肢に使うカテゴリ一覧を返す。
func (s *Service) ListCategories(ctx context.Context) ([]model.Category, error) {
	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

// GetProduct は編集対象の商品を返す。存在しない場合はPRODUCT_NOT_FOUNDを返す。
func (s *Service) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find product: %w", err)
	}
	if product == nil {
		return nil, model.NewProductNotFoundError(strconv.FormatInt(id, 10))
	}
	return product, nil
}

// CreateProduct は商品を登録する。
// リモート商品と価格を先に作成し、ローカルの保存に失敗した場合はリモート側を無効化する。
func (s *Service) CreateProduct(ctx context.Context, form ProductForm) (*model.Product, error) {
	v, err := s.validateProduct(ctx, form)
	if err != nil {
		return nil, err
	}

	existing, err := s.products.FindByName(ctx, v.name)
	if err != nil {
		return nil, fmt.Errorf("failed to check product name: %w", err)
	}
	if existing != nil {
		return nil, model.NewDuplicateProductError(v.name)
	}

	remoteProductID, err := s.gateway.CreateProduct(ctx, s.remoteInput(v))
	if err != nil {
		s.logger.Error("failed to create remote product",
			slog.String("name", v.name),
			slog.String("error", err.Error()),
		)
		return nil, model.NewPaymentFailedError(payment.ErrorMessage(err))
	}

	remotePriceID, err := s.gateway.CreatePrice(ctx, remoteProductID, v.price, s.currency)
	if err != nil {
		s.logger.Error("failed to create remote price",
			slog.String("remote_product_id", remoteProductID),
			slog.String("error", err.Error()),
		)
		s.archiveRemoteProduct(ctx, remoteProductID)
		return nil, model.NewPaymentFailedError(payment.ErrorMessage(err))
	}

	now := s.now()
	product := &model.Product{
		Name:            v.name,
		Alias:           v.alias,
		Price:           v.price,
		Stock:           v.stock,
		Description:     v.description,
		ImageURL:        v.imageURL,
		RemoteProductID: remoteProductID,
		RemotePriceID:   remotePriceID,
		CategoryID:      v.categoryID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.products.Create(ctx, product); err != nil {
		s.deactivateRemotePrice(ctx, remotePriceID)
		s.archiveRemoteProduct(ctx, remoteProductID)
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewDuplicateProductError(v.name)
		}
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.logger.Info("product created",
		slog.Int64("product_id", product.ID),
		slog.String("alias", product.Alias),
		slog.String("remote_product_id", remoteProductID),
	)
	return product, nil
}

// UpdateProduct は商品を更新する。エイリアスは商品名から再生成する。
// 価格が変わった場合は新しいリモート価格を1つ作成し、古いリモート価格を1つ無効化する。
// 新しい価格の紐付け先リモート商品はProductMappingで決まる。
func (s *Service) UpdateProduct(ctx context.Context, id int64, form ProductForm) (*model.Product, error) {
	product, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	v, err := s.validateProduct(ctx, form)
	if err != nil {
		return nil, err
	}

	sameName, err := s.products.FindByName(ctx, v.name)
	if err != nil {
		return nil, fmt.Errorf("failed to check product name: %w", err)
	}
	if sameName != nil && sameName.ID != product.ID {
		return nil, model.NewDuplicateProductError(v.name)
	}

	oldPriceID := product.RemotePriceID
	priceChanged := v.price != product.Price

	if priceChanged {
		target := s.mapping.Resolve(product.ID, product.RemoteProductID)
		if target == "" {
			// リモート商品を持たない商品は価格変更の時点で作成する
			target, err = s.gateway.CreateProduct(ctx, s.remoteInput(v))
			if err != nil {
				return nil, model.NewPaymentFailedError(payment.ErrorMessage(err))
			}
			product.RemoteProductID = target
		}

		newPriceID, err := s.gateway.CreatePrice(ctx, target, v.price, s.currency)
		if err != nil {
			s.logger.Error("failed to create remote price",
				slog.Int64("product_id", product.ID),
				slog.String("remote_product_id", target),
				slog.String("error", err.Error()),
			)
			return nil, model.NewPaymentFailedError(payment.ErrorMessage(err))
		}
		product.RemotePriceID = newPriceID
	}

	product.Name = v.name
	product.Alias = v.alias
	product.Price = v.price
	product.Stock = v.stock
	product.Description = v.description
	product.ImageURL = v.imageURL
	product.CategoryID = v.categoryID
	product.UpdatedAt = s.now()

	if err := s.products.Update(ctx, product); err != nil {
		if priceChanged {
			s.deactivateRemotePrice(ctx, product.RemotePriceID)
		}
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return nil, model.NewDuplicateProductError(v.name)
		case errors.Is(err, repository.ErrNotFound):
			return nil, model.NewProductNotFoundError(strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	if priceChanged {
		s.deactivateRemotePrice(ctx, oldPriceID)
	}

	s.logger.Info("product updated",
		slog.Int64("product_id", product.ID),
		slog.Bool("price_changed", priceChanged),
	)
	return product, nil
}

// DeleteProduct は商品を削除し、リモートの価格と商品を無効化する。
// リモート側の失敗はログに記録するだけで削除自体は成功とする。
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	product, err := s.GetProduct(ctx, id)
	if err != nil {
		return err
	}

	if err := s.products.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewProductNotFoundError(strconv.FormatInt(id, 10))
		}
		return fmt.Errorf("failed to delete product: %w", err)
	}

	s.deactivateRemotePrice(ctx, product.RemotePriceID)
	s.archiveRemoteProduct(ctx, product.RemoteProductID)

	s.logger.Info("product deleted", slog.Int64("product_id", id))
	return nil
}

// CreateCategory はカテゴリを登録し、ナビゲーションのキャッシュを破棄する。
func (s *Service) CreateCategory(ctx context.Context, form CategoryForm) (*model.Category, error) {
	name := strings.TrimSpace(form.Name)
	alias := slug.Make(name)

	fields := map[string]string{}
	if name == "" {
		fields["name"] = "required"
	} else if alias == "" {
		fields["name"] = "must contain at least one letter or digit"
	}
	if len(fields) > 0 {
		return nil, model.NewValidationError(fields)
	}

	category := &model.Category{
		Name:        name,
		Alias:       alias,
		Description: strings.TrimSpace(form.Description),
	}
	if err := s.categories.Create(ctx, category); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewDuplicateCategoryError(name)
		}
		return nil, fmt.Errorf("failed to create category: %w", err)
	}

	if s.navCache != nil {
		s.navCache.InvalidateCategories()
	}

	s.logger.Info("category created",
		slog.Int64("category_id", category.ID),
		slog.String("alias", alias),
	)
	return category, nil
}

func (s *Service) remoteInput(v *validated) payment.ProductInput {
	return payment.ProductInput{
		Name:        v.name,
		Description: catalog.Excerpt(v.description, remoteDescriptionLength),
		ImageURL:    v.imageURL,
	}
}

func (s *Service) deactivateRemotePrice(ctx context.Context, priceID string) {
	if priceID == "" {
		return
	}
	if err := s.gateway.DeactivatePrice(ctx, priceID); err != nil {
		s.logger.Warn("failed to deactivate remote price",
			slog.String("remote_price_id", priceID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Service) archiveRemoteProduct(ctx context.Context, productID string) {
	if productID == "" {
		return
	}
	if err := s.gateway.ArchiveProduct(ctx, productID); err != nil {
		s.logger.Warn("failed to archive remote product",
			slog.String("remote_product_id", productID),
			slog.String("error", err.Error()),
		)
	}
}
