package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/storefront/internal/model"
)

const (
	itemFieldPrefix = "item:"
	qtyFieldPrefix  = "qty:"

	// maxWatchRetries は上限付き追加で競合が続いた場合のやり直し回数。
	maxWatchRetries = 10
)

// lineMeta は行の数量以外の情報。最初の追加時にHSETNXで1度だけ書き込む。
type lineMeta struct {
	Name      string `json:"name"`
	Alias     string `json:"alias"`
	UnitPrice int64  `json:"unit_price"`
	AddedAt   int64  `json:"added_at"`
}

// RedisStore はカートごとに1つのRedisハッシュを使うStore実装。
// 複数のアプリケーションプロセスでカートを共有できる。
//
// ハッシュのフィールド構成:
//
//	item:{productID} → lineMeta(JSON)
//	qty:{productID}  → 数量
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisStore はRedisStoreを生成する。書き込みのたびにキーの有効期限をttlに延長する。
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    ttl,
		now:    time.Now,
	}
}

// AddItem はHSETNX・HINCRBY・EXPIREをMULTI/EXECでまとめて実行する。
// limitが指定された場合はキーをWATCHして現在の数量を確認し、
// 確認から書き込みまでの間に他の更新があればやり直す。
func (r *RedisStore) AddItem(ctx context.Context, cartID string, line model.LineItem, limit int64) error {
	if err := validateLine(cartID, line); err != nil {
		return err
	}

	meta, err := json.Marshal(lineMeta{
		Name:      line.Name,
		Alias:     line.Alias,
		UnitPrice: line.UnitPrice,
		AddedAt:   r.now().UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("marshal line failed: %w", err)
	}

	key := cartKey(cartID)
	id := strconv.FormatInt(line.ProductID, 10)
	write := func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, key, itemFieldPrefix+id, meta)
		pipe.HIncrBy(ctx, key, qtyFieldPrefix+id, line.Quantity)
		if r.ttl > 0 {
			pipe.Expire(ctx, key, r.ttl)
		}
		return nil
	}

	if limit <= 0 {
		if _, err := r.client.TxPipelined(ctx, write); err != nil {
			return fmt.Errorf("redis add item failed: %w", err)
		}
		return nil
	}

	capped := func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, qtyFieldPrefix+id).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current+line.Quantity > limit {
			return ErrLimitExceeded
		}
		_, err = tx.TxPipelined(ctx, write)
		return err
	}

	for attempt := 0; attempt < maxWatchRetries; attempt++ {
		err := r.client.Watch(ctx, capped, key)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, ErrLimitExceeded):
			return ErrLimitExceeded
		case errors.Is(err, redis.TxFailedErr):
			continue
		default:
			return fmt.Errorf("redis add item failed: %w", err)
		}
	}
	return fmt.Errorf("redis add item failed: cart %s kept changing after %d attempts", cartID, maxWatchRetries)
}

// Clear はカートのキーを削除する。
func (r *RedisStore) Clear(ctx context.Context, cartID string) error {
	if err := r.client.Del(ctx, cartKey(cartID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// Snapshot はハッシュ全体を読み出して追加順に並べる。
func (r *RedisStore) Snapshot(ctx context.Context, cartID string) (*model.CartSnapshot, error) {
	fields, err := r.client.HGetAll(ctx, cartKey(cartID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall failed: %w", err)
	}

	type entry struct {
		line    model.LineItem
		addedAt int64
	}
	entries := make(map[int64]*entry)
	get := func(id int64) *entry {
		e, ok := entries[id]
		if !ok {
			e = &entry{line: model.LineItem{ProductID: id}}
			entries[id] = e
		}
		return e
	}

	for field, value := range fields {
		switch {
		case strings.HasPrefix(field, itemFieldPrefix):
			id, err := strconv.ParseInt(strings.TrimPrefix(field, itemFieldPrefix), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid cart field %q: %w", field, err)
			}
			var meta lineMeta
			if err := json.Unmarshal([]byte(value), &meta); err != nil {
				return nil, fmt.Errorf("unmarshal line failed: %w", err)
			}
			e := get(id)
			e.line.Name = meta.Name
			e.line.Alias = meta.Alias
			e.line.UnitPrice = meta.UnitPrice
			e.addedAt = meta.AddedAt
		case strings.HasPrefix(field, qtyFieldPrefix):
			id, err := strconv.ParseInt(strings.TrimPrefix(field, qtyFieldPrefix), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid cart field %q: %w", field, err)
			}
			qty, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid quantity for product %d: %w", id, err)
			}
			get(id).line.Quantity = qty
		}
	}

	ordered := make([]*entry, 0, len(entries))
	for _, e := range entries {
		// メタ情報か数量の片方しかない行は読み飛ばす
		if e.line.Quantity < 1 || e.addedAt == 0 {
			continue
		}
		ordered = append(ordered, e)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].addedAt != ordered[j].addedAt {
			return ordered[i].addedAt < ordered[j].addedAt
		}
		return ordered[i].line.ProductID < ordered[j].line.ProductID
	})

	items := make([]model.LineItem, len(ordered))
	for i, e := range ordered {
		items[i] = e.line
	}
	return model.NewCartSnapshot(cartID, items), nil
}

func cartKey(cartID string) string {
	return fmt.Sprintf("cart:%s", cartID)
}

var _ Store = (*RedisStore)(nil)
