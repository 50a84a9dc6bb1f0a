package admin

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/money"
	"github.com/hitoshi/storefront/internal/slug"
)

// ProductForm は商品の追加・編集フォームの入力値。価格は主単位（"12.99"）で受け取る。
type ProductForm struct {
	Name        string
	Price       string
	Stock       string
	ImageURL    string
	Description string
	CategoryID  string
}

// CategoryForm はカテゴリ追加フォームの入力値。
type CategoryForm struct {
	Name        string
	Description string
}

// FormFromProduct は既存商品を編集フォームの初期値に変換する。
func FormFromProduct(p *model.Product, currency string) ProductForm {
	form := ProductForm{
		Name:        p.Name,
		Price:       money.FormatPlain(p.Price, currency),
		Stock:       strconv.Itoa(p.Stock),
		ImageURL:    p.ImageURL,
		Description: p.Description,
	}
	if p.CategoryID != nil {
		form.CategoryID = strconv.FormatInt(*p.CategoryID, 10)
	}
	return form
}

// validated はフォームを検証した結果。
type validated struct {
	name        string
	alias       string
	price       int64
	stock       int
	imageURL    string
	description string
	categoryID  *int64
}

// validateProduct はフォームを検証し、説明文をサニタイズする。
// 入力項目のエラーはまとめてVALIDATION_FAILEDとして返す。
func (s *Service) validateProduct(ctx context.Context, form ProductForm) (*validated, error) {
	fields := map[string]string{}
	v := &validated{
		name:     strings.TrimSpace(form.Name),
		imageURL: strings.TrimSpace(form.ImageURL),
	}

	if v.name == "" {
		fields["name"] = "required"
	} else if v.alias = slug.Make(v.name); v.alias == "" {
		fields["name"] = "must contain at least one letter or digit"
	}

	price, err := money.Parse(form.Price, s.currency)
	switch {
	case strings.TrimSpace(form.Price) == "":
		fields["price"] = "required"
	case errors.Is(err, money.ErrPrecision):
		fields["price"] = fmt.Sprintf("at most %d decimal places", money.Exponent(s.currency))
	case err != nil || price <= 0:
		fields["price"] = "must be a positive amount"
	default:
		v.price = price
	}

	stock, err := strconv.Atoi(strings.TrimSpace(form.Stock))
	switch {
	case strings.TrimSpace(form.Stock) == "":
		fields["stock"] = "required"
	case err != nil || stock < 0:
		fields["stock"] = "must be a whole number of 0 or more"
	default:
		v.stock = stock
	}

	if v.imageURL == "" {
		fields["image_url"] = "required"
	} else if err := s.images.ValidateURL(v.imageURL); err != nil {
		fields["image_url"] = "must be a public http(s) URL"
	} else if s.probeImages {
		if err := s.images.Probe(ctx, v.imageURL); err != nil {
			fields["image_url"] = "could not be loaded as an image"
		}
	}

	v.description = strings.TrimSpace(s.sanitizer.Sanitize(form.Description))
	if v.description == "" {
		fields["description"] = "required"
	}

	if raw := strings.TrimSpace(form.CategoryID); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			fields["category_id"] = "unknown category"
		} else {
			category, err := s.categories.FindByID(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("failed to find category: %w", err)
			}
			if category == nil {
				fields["category_id"] = "unknown category"
			} else {
				v.categoryID = &category.ID
			}
		}
	}

	if len(fields) > 0 {
		return nil, model.NewValidationError(fields)
	}
	return v, nil
}
