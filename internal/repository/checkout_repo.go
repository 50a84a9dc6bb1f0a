package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/storefront/internal/model"
)

// SQLCheckoutRepo はdatabase/sqlを使用したチェックアウトリポジトリ。
type SQLCheckoutRepo struct {
	db *sql.DB
}

// NewSQLCheckoutRepo はSQLCheckoutRepoを生成する。
func NewSQLCheckoutRepo(db *sql.DB) *SQLCheckoutRepo {
	return &SQLCheckoutRepo{db: db}
}

const checkoutColumns = `id, cart_id, remote_session_id, status, amount_total, currency, created_at, updated_at`

func (r *SQLCheckoutRepo) findOne(ctx context.Context, where string, arg any) (*model.Checkout, error) {
	c := &model.Checkout{}
	var status string
	err := r.db.QueryRowContext(ctx,
		`SELECT `+checkoutColumns+` FROM checkouts WHERE `+where,
		arg,
	).Scan(&c.ID, &c.CartID, &c.RemoteSessionID, &status, &c.AmountTotal, &c.Currency, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find checkout: %w", err)
	}
	c.Status = model.CheckoutStatus(status)
	return c, nil
}

// Create はチェックアウト記録を作成する。
func (r *SQLCheckoutRepo) Create(ctx context.Context, checkout *model.Checkout) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO checkouts (`+checkoutColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		checkout.ID, checkout.CartID, checkout.RemoteSessionID, string(checkout.Status),
		checkout.AmountTotal, checkout.Currency, checkout.CreatedAt.UTC(), checkout.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create checkout: %w", err)
	}
	return nil
}

// FindByID は指定IDのチェックアウトを取得する。見つからない場合はnilを返す。
func (r *SQLCheckoutRepo) FindByID(ctx context.Context, id string) (*model.Checkout, error) {
	return r.findOne(ctx, `id = $1`, id)
}

// FindByRemoteSessionID は決済代行サービス側のセッションIDで検索する。見つからない場合はnilを返す。
func (r *SQLCheckoutRepo) FindByRemoteSessionID(ctx context.Context, remoteSessionID string) (*model.Checkout, error) {
	if remoteSessionID == "" {
		return nil, nil
	}
	return r.findOne(ctx, `remote_session_id = $1`, remoteSessionID)
}

// SetRemoteSessionID は決済代行サービス側のセッションIDを記録する。
func (r *SQLCheckoutRepo) SetRemoteSessionID(ctx context.Context, id, remoteSessionID string, now time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE checkouts SET remote_session_id = $1, updated_at = $2 WHERE id = $3`,
		remoteSessionID, now.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to set remote session id: %w", err)
	}
	return requireAffected(result)
}

// Transition はステータスがfromの場合に限りtoへ遷移させる。
// 現在の状態の確認と更新は1つのUPDATE文で行う。
func (r *SQLCheckoutRepo) Transition(ctx context.Context, id string, from, to model.CheckoutStatus, now time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE checkouts SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
		string(to), now.UTC(), id, string(from),
	)
	if err != nil {
		return false, fmt.Errorf("failed to update checkout status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// ExpirePending はcutoffより前に作成された保留中のチェックアウトを期限切れにする。
func (r *SQLCheckoutRepo) ExpirePending(ctx context.Context, cutoff, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE checkouts SET status = $1, updated_at = $2 WHERE status = $3 AND created_at < $4`,
		string(model.CheckoutStatusExpired), now.UTC(), string(model.CheckoutStatusPending), cutoff.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to expire pending checkouts: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ CheckoutRepository = (*SQLCheckoutRepo)(nil)
