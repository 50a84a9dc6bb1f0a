// Package payment は決済代行サービス（ホスト型チェックアウトと商品・価格の同期）への
// アクセスを提供する。
package payment

import (
	"context"
	"errors"

	"github.com/stripe/stripe-go/v76"
)

// LineItem はチェックアウトセッションの1明細。
type LineItem struct {
	Name       string
	UnitAmount int64
	Quantity   int64
}

// DeliveryEstimate は営業日単位の配送見込み。
type DeliveryEstimate struct {
	MinBusinessDays int64
	MaxBusinessDays int64
}

// ShippingOption は固定額の配送オプション。
type ShippingOption struct {
	DisplayName string
	Amount      int64
	Estimate    DeliveryEstimate
}

// SessionRequest はチェックアウトセッション作成要求。
type SessionRequest struct {
	Currency          string
	LineItems         []LineItem
	ShippingOptions   []ShippingOption
	SuccessURL        string
	CancelURL         string
	ClientReferenceID string
	Metadata          map[string]string
}

// Session は決済代行サービス側のチェックアウトセッション。
type Session struct {
	ID                string
	URL               string
	Paid              bool
	ClientReferenceID string
	AmountTotal       int64
	Currency          string
	Metadata          map[string]string
}

// ProductInput はリモート商品の作成内容。Descriptionはプレーンテキスト。
type ProductInput struct {
	Name        string
	Description string
	ImageURL    string
}

// Gateway は決済代行サービスのインターフェース。
type Gateway interface {
	// CreateCheckoutSession はホスト型チェックアウトのセッションを作成する。
	CreateCheckoutSession(ctx context.Context, req *SessionRequest) (*Session, error)
	// GetCheckoutSession はセッションの現在の状態を取得する。
	GetCheckoutSession(ctx context.Context, id string) (*Session, error)
	// CreateProduct はリモート商品を作成し、そのIDを返す。
	CreateProduct(ctx context.Context, in ProductInput) (string, error)
	// ArchiveProduct はリモート商品を無効化する。
	ArchiveProduct(ctx context.Context, productID string) error
	// CreatePrice はリモート商品に価格を作成し、そのIDを返す。
	CreatePrice(ctx context.Context, productID string, unitAmount int64, currency string) (string, error)
	// DeactivatePrice はリモート価格を無効化する。
	DeactivatePrice(ctx context.Context, priceID string) error
}

// ErrUnavailable はサーキットブレーカーが開いており呼び出しを行わなかったことを表す。
var ErrUnavailable = errors.New("payment service is temporarily unavailable")

// ErrorMessage は決済代行サービスのエラーから利用者に返す文言を取り出す。
// APIエラーの場合はメッセージ本文のみを返し、それ以外はerr.Error()をそのまま返す。
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Msg != "" {
		return stripeErr.Msg
	}
	return err.Error()
}
