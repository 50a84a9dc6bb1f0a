package payment

import "context"

// mockGateway はGatewayのモック。未設定のメソッドはゼロ値を返す。
type mockGateway struct {
	createSessionFn   func(ctx context.Context, req *SessionRequest) (*Session, error)
	getSessionFn      func(ctx context.Context, id string) (*Session, error)
	createProductFn   func(ctx context.Context, in ProductInput) (string, error)
	archiveProductFn  func(ctx context.Context, productID string) error
	createPriceFn     func(ctx context.Context, productID string, unitAmount int64, currency string) (string, error)
	deactivatePriceFn func(ctx context.Context, priceID string) error
	calls             int
}

func (m *mockGateway) CreateCheckoutSession(ctx context.Context, req *SessionRequest) (*Session, error) {
	m.calls++
	if m.createSessionFn == nil {
		return &Session{}, nil
	}
	return m.createSessionFn(ctx, req)
}

func (m *mockGateway) GetCheckoutSession(ctx context.Context, id string) (*Session, error) {
	m.calls++
	if m.getSessionFn == nil {
		return &Session{ID: id}, nil
	}
	return m.getSessionFn(ctx, id)
}

func (m *mockGateway) CreateProduct(ctx context.Context, in ProductInput) (string, error) {
	m.calls++
	if m.createProductFn == nil {
		return "prod_mock", nil
	}
	return m.createProductFn(ctx, in)
}

func (m *mockGateway) ArchiveProduct(ctx context.Context, productID string) error {
	m.calls++
	if m.archiveProductFn == nil {
		return nil
	}
	return m.archiveProductFn(ctx, productID)
}

func (m *mockGateway) CreatePrice(ctx context.Context, productID string, unitAmount int64, currency string) (string, error) {
	m.calls++
	if m.createPriceFn == nil {
		return "price_mock", nil
	}
	return m.createPriceFn(ctx, productID, unitAmount, currency)
}

func (m *mockGateway) DeactivatePrice(ctx context.Context, priceID string) error {
	m.calls++
	if m.deactivatePriceFn == nil {
		return nil
	}
	return m.deactivatePriceFn(ctx, priceID)
}
