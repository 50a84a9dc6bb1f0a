package payment

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// StripeGateway はStripe APIを使用したGateway実装。
type StripeGateway struct {
	api *client.API
}

// NewStripeGateway はシークレットキーからStripeGatewayを生成する。
// backendsがnilの場合はStripeの本番エンドポイントを使用する。
func NewStripeGateway(secretKey string, backends *stripe.Backends) *StripeGateway {
	return &StripeGateway{api: client.New(secretKey, backends)}
}

// CreateCheckoutSession はStripe Checkoutのセッションを作成する。
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req *SessionRequest) (*Session, error) {
	params := checkoutSessionParams(req)
	params.Context = ctx

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}
	return toSession(s), nil
}

// GetCheckoutSession はStripe Checkoutのセッションを取得する。
func (g *StripeGateway) GetCheckoutSession(ctx context.Context, id string) (*Session, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	s, err := g.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("failed to get checkout session: %w", err)
	}
	return toSession(s), nil
}

// CreateProduct はStripeの商品を作成する。
func (g *StripeGateway) CreateProduct(ctx context.Context, in ProductInput) (string, error) {
	params := &stripe.ProductParams{
		Name: stripe.String(in.Name),
	}
	if in.Description != "" {
		params.Description = stripe.String(in.Description)
	}
	if in.ImageURL != "" {
		params.Images = stripe.StringSlice([]string{in.ImageURL})
	}
	params.Context = ctx

	p, err := g.api.Products.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create remote product: %w", err)
	}
	return p.ID, nil
}

// ArchiveProduct はStripeの商品をactive=falseにする。
// 価格が紐付いた商品は削除できないため無効化で代替する。
func (g *StripeGateway) ArchiveProduct(ctx context.Context, productID string) error {
	params := &stripe.ProductParams{Active: stripe.Bool(false)}
	params.Context = ctx

	if _, err := g.api.Products.Update(productID, params); err != nil {
		return fmt.Errorf("failed to archive remote product: %w", err)
	}
	return nil
}

// CreatePrice はStripeの価格を作成する。
func (g *StripeGateway) CreatePrice(ctx context.Context, productID string, unitAmount int64, currency string) (string, error) {
	params := &stripe.PriceParams{
		Product:    stripe.String(productID),
		UnitAmount: stripe.Int64(unitAmount),
		Currency:   stripe.String(currency),
	}
	params.Context = ctx

	p, err := g.api.Prices.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create remote price: %w", err)
	}
	return p.ID, nil
}

// DeactivatePrice はStripeの価格をactive=falseにする。
func (g *StripeGateway) DeactivatePrice(ctx context.Context, priceID string) error {
	params := &stripe.PriceParams{Active: stripe.Bool(false)}
	params.Context = ctx

	if _, err := g.api.Prices.Update(priceID, params); err != nil {
		return fmt.Errorf("failed to deactivate remote price: %w", err)
	}
	return nil
}

// checkoutSessionParams はSessionRequestをStripeのリクエストパラメータに変換する。
func checkoutSessionParams(req *SessionRequest) *stripe.CheckoutSessionParams {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	if req.ClientReferenceID != "" {
		params.ClientReferenceID = stripe.String(req.ClientReferenceID)
	}

	for _, item := range req.LineItems {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(req.Currency),
				UnitAmount: stripe.Int64(item.UnitAmount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
			},
			Quantity: stripe.Int64(item.Quantity),
		})
	}

	for _, opt := range req.ShippingOptions {
		params.ShippingOptions = append(params.ShippingOptions, &stripe.CheckoutSessionShippingOptionParams{
			ShippingRateData: &stripe.CheckoutSessionShippingOptionShippingRateDataParams{
				Type:        stripe.String("fixed_amount"),
				DisplayName: stripe.String(opt.DisplayName),
				FixedAmount: &stripe.CheckoutSessionShippingOptionShippingRateDataFixedAmountParams{
					Amount:   stripe.Int64(opt.Amount),
					Currency: stripe.String(req.Currency),
				},
				DeliveryEstimate: &stripe.CheckoutSessionShippingOptionShippingRateDataDeliveryEstimateParams{
					Minimum: &stripe.CheckoutSessionShippingOptionShippingRateDataDeliveryEstimateMinimumParams{
						Unit:  stripe.String("business_day"),
						Value: stripe.Int64(opt.Estimate.MinBusinessDays),
					},
					Maximum: &stripe.CheckoutSessionShippingOptionShippingRateDataDeliveryEstimateMaximumParams{
						Unit:  stripe.String("business_day"),
						Value: stripe.Int64(opt.Estimate.MaxBusinessDays),
					},
				},
			},
		})
	}

	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	return params
}

func toSession(s *stripe.CheckoutSession) *Session {
	return &Session{
		ID:                s.ID,
		URL:               s.URL,
		Paid:              s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		ClientReferenceID: s.ClientReferenceID,
		AmountTotal:       s.AmountTotal,
		Currency:          string(s.Currency),
		Metadata:          s.Metadata,
	}
}

var _ Gateway = (*StripeGateway)(nil)
