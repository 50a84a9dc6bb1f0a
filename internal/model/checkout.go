package model

import "time"

// CheckoutStatus はチェックアウトの状態を表す。
type CheckoutStatus string

const (
	// CheckoutStatusPending は決済ページへ誘導済みで結果待ちの状態。
	CheckoutStatusPending CheckoutStatus = "pending"
	// CheckoutStatusPaid は決済が確認された状態。
	CheckoutStatusPaid CheckoutStatus = "paid"
	// CheckoutStatusCancelled は購入者がキャンセルした状態。
	CheckoutStatusCancelled CheckoutStatus = "cancelled"
	// CheckoutStatusExpired は一定時間結果が返らず打ち切った状態。
	CheckoutStatusExpired CheckoutStatus = "expired"
)

// IsTerminal は終端状態かどうかを返す。
func (s CheckoutStatus) IsTerminal() bool {
	return s != CheckoutStatusPending
}

// Checkout は決済代行サービスのチェックアウトセッションとカートの対応を表す。
type Checkout struct {
	ID              string
	CartID          string
	RemoteSessionID string
	Status          CheckoutStatus
	AmountTotal     int64
	Currency        string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
