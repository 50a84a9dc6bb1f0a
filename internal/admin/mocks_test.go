package admin

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/payment"
	"github.com/hitoshi/storefront/internal/repository"
)

// memProductRepo は名前とエイリアスの一意性を持つインメモリの商品リポジトリ。
type memProductRepo struct {
	mu        sync.Mutex
	rows      map[int64]model.Product
	nextID    int64
	createErr error
	updateErr error
}

func newMemProductRepo() *memProductRepo {
	return &memProductRepo{rows: make(map[int64]model.Product)}
}

func (r *memProductRepo) conflict(p *model.Product) bool {
	for id, row := range r.rows {
		if id == p.ID {
			continue
		}
		if strings.EqualFold(row.Name, p.Name) || row.Alias == p.Alias {
			return true
		}
	}
	return false
}

func (r *memProductRepo) List(context.Context) ([]model.ProductWithCategory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.ProductWithCategory, 0, len(r.rows))
	for _, p := range r.rows {
		out = append(out, model.ProductWithCategory{Product: p})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memProductRepo) ListByCategory(context.Context, int64) ([]model.ProductWithCategory, error) {
	return nil, nil
}

func (r *memProductRepo) FindByID(_ context.Context, id int64) (*model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.rows[id]; ok {
		return &p, nil
	}
	return nil, nil
}

func (r *memProductRepo) FindByAlias(context.Context, string) (*model.ProductWithCategory, error) {
	return nil, nil
}

func (r *memProductRepo) FindByName(_ context.Context, name string) (*model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.rows {
		if strings.EqualFold(p.Name, name) {
			return &p, nil
		}
	}
	return nil, nil
}

func (r *memProductRepo) Create(_ context.Context, p *model.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if r.conflict(p) {
		return repository.ErrDuplicate
	}
	r.nextID++
	p.ID = r.nextID
	r.rows[p.ID] = *p
	return nil
}

func (r *memProductRepo) Update(_ context.Context, p *model.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	if _, ok := r.rows[p.ID]; !ok {
		return repository.ErrNotFound
	}
	if r.conflict(p) {
		return repository.ErrDuplicate
	}
	r.rows[p.ID] = *p
	return nil
}

func (r *memProductRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

// memCategoryRepo はインメモリのカテゴリリポジトリ。
type memCategoryRepo struct {
	rows   []model.Category
	nextID int64
}

func (r *memCategoryRepo) List(context.Context) ([]model.Category, error) {
	return append([]model.Category(nil), r.rows...), nil
}

func (r *memCategoryRepo) FindByAlias(_ context.Context, alias string) (*model.Category, error) {
	for _, c := range r.rows {
		if c.Alias == alias {
			return &c, nil
		}
	}
	return nil, nil
}

func (r *memCategoryRepo) FindByID(_ context.Context, id int64) (*model.Category, error) {
	for _, c := range r.rows {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, nil
}

func (r *memCategoryRepo) Create(_ context.Context, c *model.Category) error {
	for _, row := range r.rows {
		if row.Name == c.Name || row.Alias == c.Alias {
			return repository.ErrDuplicate
		}
	}
	r.nextID++
	c.ID = r.nextID
	r.rows = append(r.rows, *c)
	return nil
}

var _ repository.ProductRepository = (*memProductRepo)(nil)
var _ repository.CategoryRepository = (*memCategoryRepo)(nil)

// priceCall はCreatePriceの呼び出し記録。
type priceCall struct {
	productID string
	amount    int64
	currency  string
}

// recordingGateway は管理操作で呼ばれたリモートAPIを記録するゲートウェイ。
type recordingGateway struct {
	mu               sync.Mutex
	products         []payment.ProductInput
	prices           []priceCall
	deactivated      []string
	archived         []string
	createProductErr error
	createPriceErr   error
	deactivateErr    error
}

func (g *recordingGateway) CreateCheckoutSession(context.Context, *payment.SessionRequest) (*payment.Session, error) {
	return nil, fmt.Errorf("not used")
}

func (g *recordingGateway) GetCheckoutSession(context.Context, string) (*payment.Session, error) {
	return nil, fmt.Errorf("not used")
}

func (g *recordingGateway) CreateProduct(_ context.Context, in payment.ProductInput) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createProductErr != nil {
		return "", g.createProductErr
	}
	g.products = append(g.products, in)
	return fmt.Sprintf("prod_%d", len(g.products)), nil
}

func (g *recordingGateway) ArchiveProduct(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.archived = append(g.archived, id)
	return nil
}

func (g *recordingGateway) CreatePrice(_ context.Context, productID string, amount int64, currency string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createPriceErr != nil {
		return "", g.createPriceErr
	}
	g.prices = append(g.prices, priceCall{productID: productID, amount: amount, currency: currency})
	return fmt.Sprintf("price_%d", len(g.prices)), nil
}

func (g *recordingGateway) DeactivatePrice(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deactivated = append(g.deactivated, id)
	return g.deactivateErr
}

var _ payment.Gateway = (*recordingGateway)(nil)

// stubImageGuard は画像URLの検証結果を差し替えるスタブ。
type stubImageGuard struct {
	validateErr error
	probeErr    error
	probed      []string
}

func (g *stubImageGuard) ValidateURL(string) error { return g.validateErr }

func (g *stubImageGuard) Probe(_ context.Context, rawURL string) error {
	g.probed = append(g.probed, rawURL)
	return g.probeErr
}

// countingCache はInvalidateCategoriesの呼び出し回数を数える。
type countingCache struct{ n int }

func (c *countingCache) InvalidateCategories() { c.n++ }
