// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/storefront/internal/model"
)

var (
	// ErrDuplicate はユニーク制約違反で登録・更新できなかったことを表す。
	ErrDuplicate = errors.New("duplicate record")
	// ErrNotFound は更新・削除の対象行が存在しなかったことを表す。
	ErrNotFound = errors.New("record not found")
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	// メールアドレスは小文字に正規化済みであること。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成し、採番されたIDをuser.IDに設定する。
	// メールアドレスが重複する場合はErrDuplicateを返す。
	Create(ctx context.Context, user *model.User) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。nowの時点で期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string, now time.Time) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID int64) error
	// DeleteExpired はnowの時点で期限切れのセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// CategoryRepository はカテゴリデータの永続化インターフェース。
type CategoryRepository interface {
	// List は全カテゴリを名前順で返す。
	List(ctx context.Context) ([]model.Category, error)
	// FindByAlias はエイリアスでカテゴリを検索する。見つからない場合はnilを返す。
	FindByAlias(ctx context.Context, alias string) (*model.Category, error)
	// FindByID は指定IDのカテゴリを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Category, error)
	// Create はカテゴリを作成し、採番されたIDを設定する。
	// 名前またはエイリアスが重複する場合はErrDuplicateを返す。
	Create(ctx context.Context, category *model.Category) error
}

// ProductRepository は商品データの永続化インターフェース。
type ProductRepository interface {
	// List は全商品を所属カテゴリ付きでID順に返す。
	List(ctx context.Context) ([]model.ProductWithCategory, error)

	// ListByCategory は指定カテゴリの商品をID順に返す。
	ListByCategory(ctx context.Context, categoryID int64) ([]model.ProductWithCategory, error)

	// FindByID は指定IDの商品を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Product, error)

	// FindByAlias はエイリアスで商品を所属カテゴリ付きで検索する。見つからない場合はnilを返す。
	FindByAlias(ctx context.Context, alias string) (*model.ProductWithCategory, error)

	// FindByName は商品名（大文字小文字を区別しない）で商品を検索する。見つからない場合はnilを返す。
	FindByName(ctx context.Context, name string) (*model.Product, error)

	// Create は商品を作成し、採番されたIDを設定する。
	// 名前またはエイリアスが重複する場合はErrDuplicateを返す。
	Create(ctx context.Context, product *model.Product) error

	// Update は商品情報を上書き更新する。
	// 対象が存在しない場合はErrNotFound、名前またはエイリアスが重複する場合はErrDuplicateを返す。
	Update(ctx context.Context, product *model.Product) error

	// Delete は指定IDの商品を削除する。対象が存在しない場合はErrNotFoundを返す。
	Delete(ctx context.Context, id int64) error
}

// CheckoutRepository はチェックアウト記録の永続化インターフェース。
type CheckoutRepository interface {
	// Create はチェックアウト記録を作成する。
	Create(ctx context.Context, checkout *model.Checkout) error

	// FindByID は指定IDのチェックアウトを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Checkout, error)

	// FindByRemoteSessionID は決済代行サービス側のセッションIDで検索する。見つからない場合はnilを返す。
	FindByRemoteSessionID(ctx context.Context, remoteSessionID string) (*model.Checkout, error)

	// SetRemoteSessionID は決済代行サービス側のセッションIDを記録する。
	SetRemoteSessionID(ctx context.Context, id, remoteSessionID string, now time.Time) error

	// Transition はステータスがfromの場合に限りtoへ遷移させる。
	// 遷移した場合はtrue、既に別の状態だった場合はfalseを返す。
	Transition(ctx context.Context, id string, from, to model.CheckoutStatus, now time.Time) (bool, error)

	// ExpirePending はcutoffより前に作成された保留中のチェックアウトを期限切れにし、件数を返す。
	ExpirePending(ctx context.Context, cutoff, now time.Time) (int64, error)
}
