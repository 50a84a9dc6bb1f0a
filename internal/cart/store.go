// Package cart は訪問者ごとのショッピングカートを提供する。
package cart

import (
	"context"
	"errors"

	"github.com/hitoshi/storefront/internal/model"
)

var (
	// ErrInvalidQuantity は数量が1未満の追加要求を表す。
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	// ErrMissingCartID はカートIDが空であることを表す。
	ErrMissingCartID = errors.New("cart id is required")
	// ErrLimitExceeded は追加後の数量が上限を超えるため追加しなかったことを表す。
	ErrLimitExceeded = errors.New("quantity limit exceeded")
)

// Store はカートの保存先のインターフェース。
// 実装はカート単位で操作の原子性を保証すること。
type Store interface {
	// AddItem は商品がカートに無ければ行を追加し、既にあれば数量を加算する。
	// 既存行の商品名・単価は最初に追加した時点の値を維持する。
	// limitが1以上の場合、加算後の数量がlimitを超えるなら何も書き込まずErrLimitExceededを返す。
	// 上限の確認と書き込みは同じカートへの他の追加と競合しない。
	AddItem(ctx context.Context, cartID string, line model.LineItem, limit int64) error

	// Clear はカートを空にする。
	Clear(ctx context.Context, cartID string) error

	// Snapshot はカートの行を追加順に並べ、合計金額を計算して返す。
	// 存在しないカートは空のスナップショットとなる。
	Snapshot(ctx context.Context, cartID string) (*model.CartSnapshot, error)
}

func validateLine(cartID string, line model.LineItem) error {
	if cartID == "" {
		return ErrMissingCartID
	}
	if line.Quantity < 1 {
		return ErrInvalidQuantity
	}
	return nil
}
