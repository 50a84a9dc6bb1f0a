// Package checkout はカートの内容から決済代行サービスのチェックアウトを組み立て、
// 決済結果に応じてカートを確定する。
package checkout

import (
	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/payment"
)

// 配送オプション
const (
	FreeShippingName = "Free shipping"
	NextDayAirName   = "Next day air"
	NextDayAirAmount = 1500
)

// ShippingOptions は全チェックアウトに付与する固定の配送オプションを返す。
func ShippingOptions() []payment.ShippingOption {
	return []payment.ShippingOption{
		{
			DisplayName: FreeShippingName,
			Amount:      0,
			Estimate:    payment.DeliveryEstimate{MinBusinessDays: 5, MaxBusinessDays: 7},
		},
		{
			DisplayName: NextDayAirName,
			Amount:      NextDayAirAmount,
			Estimate:    payment.DeliveryEstimate{MinBusinessDays: 1, MaxBusinessDays: 1},
		},
	}
}

// RedirectURLs は決済完了時とキャンセル時の戻り先。
type RedirectURLs struct {
	Success string
	Cancel  string
}

// BuildSessionRequest はカートのスナップショットからセッション作成要求を組み立てる。
// カートの1行がそのまま1明細になる。
func BuildSessionRequest(snapshot *model.CartSnapshot, currency string, urls RedirectURLs) *payment.SessionRequest {
	items := make([]payment.LineItem, 0, len(snapshot.Items))
	for _, line := range snapshot.Items {
		items = append(items, payment.LineItem{
			Name:       line.Name,
			UnitAmount: line.UnitPrice,
			Quantity:   line.Quantity,
		})
	}

	return &payment.SessionRequest{
		Currency:          currency,
		LineItems:         items,
		ShippingOptions:   ShippingOptions(),
		SuccessURL:        urls.Success,
		CancelURL:         urls.Cancel,
		ClientReferenceID: snapshot.CartID,
	}
}
