package checkout

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/payment"
	"github.com/hitoshi/storefront/internal/repository"
)

// memCheckoutRepo はCheckoutRepositoryのインメモリ実装。
type memCheckoutRepo struct {
	mu   sync.Mutex
	rows map[string]*model.Checkout
}

func newMemCheckoutRepo() *memCheckoutRepo {
	return &memCheckoutRepo{rows: make(map[string]*model.Checkout)}
}

func (r *memCheckoutRepo) Create(_ context.Context, c *model.Checkout) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.rows[c.ID] = &cp
	return nil
}

func (r *memCheckoutRepo) FindByID(_ context.Context, id string) (*model.Checkout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.rows[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (r *memCheckoutRepo) FindByRemoteSessionID(_ context.Context, sid string) (*model.Checkout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.rows {
		if sid != "" && c.RemoteSessionID == sid {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memCheckoutRepo) SetRemoteSessionID(_ context.Context, id, sid string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	c.RemoteSessionID = sid
	c.UpdatedAt = now
	return nil
}

func (r *memCheckoutRepo) Transition(_ context.Context, id string, from, to model.CheckoutStatus, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok || c.Status != from {
		return false, nil
	}
	c.Status = to
	c.UpdatedAt = now
	return true, nil
}

func (r *memCheckoutRepo) ExpirePending(_ context.Context, cutoff, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, c := range r.rows {
		if c.Status == model.CheckoutStatusPending && c.CreatedAt.Before(cutoff) {
			c.Status = model.CheckoutStatusExpired
			c.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (r *memCheckoutRepo) status(id string) model.CheckoutStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows[id].Status
}

var _ repository.CheckoutRepository = (*memCheckoutRepo)(nil)

// mockGateway はpayment.Gatewayのモック。チェックアウトで使うメソッドのみ差し替え可能。
type mockGateway struct {
	createSessionFn func(ctx context.Context, req *payment.SessionRequest) (*payment.Session, error)
	getSessionFn    func(ctx context.Context, id string) (*payment.Session, error)
}

func (m *mockGateway) CreateCheckoutSession(ctx context.Context, req *payment.SessionRequest) (*payment.Session, error) {
	return m.createSessionFn(ctx, req)
}

func (m *mockGateway) GetCheckoutSession(ctx context.Context, id string) (*payment.Session, error) {
	return m.getSessionFn(ctx, id)
}

func (m *mockGateway) CreateProduct(context.Context, payment.ProductInput) (string, error) {
	return "", nil
}

func (m *mockGateway) ArchiveProduct(context.Context, string) error { return nil }

func (m *mockGateway) CreatePrice(context.Context, string, int64, string) (string, error) {
	return "", nil
}

func (m *mockGateway) DeactivatePrice(context.Context, string) error { return nil }

// flakyCarts はClearが指定回数だけ失敗するCartAccessor。
type flakyCarts struct {
	CartAccessor
	clearFailures int
	clearCalls    int
}

func (c *flakyCarts) Clear(ctx context.Context, cartID string) error {
	c.clearCalls++
	if c.clearFailures > 0 {
		c.clearFailures--
		return errors.New("redis down")
	}
	return c.CartAccessor.Clear(ctx, cartID)
}

// unrecordedSessionRepo はSetRemoteSessionIDが常に失敗するCheckoutRepository。
type unrecordedSessionRepo struct {
	*memCheckoutRepo
}

func (r *unrecordedSessionRepo) SetRemoteSessionID(context.Context, string, string, time.Time) error {
	return errors.New("db locked")
}
